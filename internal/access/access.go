// Package access decides which dashboard pages and machines a user may reach.
//
// Every authenticated user can open the default pages. Permission-controlled
// pages need an explicit per-user grant, and admins can open everything. The
// Evaluator holds no state beyond its Policy, so one instance is shared by
// the HTTP middleware, the /access/check endpoint and the CLI.
//
//	ev := access.NewEvaluator(access.DefaultPolicy())
//	ev.HasAccess("/dns/nginx", false, user.AccessPages)
//	ev.FirstAccessiblePage(false, user.AccessPages)
package access

import (
	"fmt"
	"strings"

	"github.com/ksyq12/tsm/internal/errors"
)

// Dashboard pages.
const (
	PageHome        = "/home"
	PageMachines    = "/servers/machines"
	PageServices    = "/servers/services"
	PageNginx       = "/dns/nginx"
	PageRegistrar   = "/dns/registrar"
	PageAdmin       = "/admin"
	AdminLanding    = PageMachines
	FallbackLanding = PageHome
)

// DefaultPages are reachable by every authenticated user. They are never
// stored in a user's page list.
var DefaultPages = []string{PageHome, PageMachines}

// ControlledPages can be granted to non-admin users.
var ControlledPages = []string{PageServices, PageNginx, PageRegistrar, PageAdmin}

// MatchMode selects how a granted page is compared against a requested path.
type MatchMode string

const (
	// MatchSegment grants p for x when x == p or x starts with p + "/".
	MatchSegment MatchMode = "segment"
	// MatchPrefix grants p for x when x starts with p, so /admin also
	// grants /admin-panel.
	MatchPrefix MatchMode = "prefix"
)

// ParseMatchMode converts a config value into a MatchMode. Empty means segment.
func ParseMatchMode(s string) (MatchMode, error) {
	switch MatchMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", MatchSegment:
		return MatchSegment, nil
	case MatchPrefix:
		return MatchPrefix, nil
	default:
		return "", errors.Validation(fmt.Sprintf("unknown access match mode %q (valid: segment, prefix)", s))
	}
}

// Policy is the fixed permission layout the evaluator works against.
type Policy struct {
	DefaultPages     []string
	ControlledPages  []string
	AdminLandingPage string
	FallbackPage     string
	Match            MatchMode
}

// DefaultPolicy returns the built-in page layout with segment matching.
func DefaultPolicy() Policy {
	return Policy{
		DefaultPages:     append([]string(nil), DefaultPages...),
		ControlledPages:  append([]string(nil), ControlledPages...),
		AdminLandingPage: AdminLanding,
		FallbackPage:     FallbackLanding,
		Match:            MatchSegment,
	}
}

// Evaluator answers access questions for a Policy.
type Evaluator struct {
	policy Policy
}

// NewEvaluator creates an Evaluator. An empty Match falls back to MatchSegment.
func NewEvaluator(p Policy) *Evaluator {
	if p.Match == "" {
		p.Match = MatchSegment
	}
	return &Evaluator{policy: p}
}

// Policy returns the evaluator's policy.
func (e *Evaluator) Policy() Policy {
	return e.policy
}

func (e *Evaluator) matches(path, page string) bool {
	if page == "" {
		return false
	}
	if e.policy.Match == MatchPrefix {
		return strings.HasPrefix(path, page)
	}
	if path == page {
		return true
	}
	if strings.HasSuffix(page, "/") {
		return strings.HasPrefix(path, page)
	}
	return strings.HasPrefix(path, page+"/")
}

func (e *Evaluator) matchesAny(path string, pages []string) bool {
	for _, page := range pages {
		if e.matches(path, page) {
			return true
		}
	}
	return false
}

// HasAccess reports whether a user may open path. Admins may open anything;
// a nil userPages list only grants the default pages.
func (e *Evaluator) HasAccess(path string, isAdmin bool, userPages []string) bool {
	if isAdmin {
		return true
	}
	if e.matchesAny(path, e.policy.DefaultPages) {
		return true
	}
	if userPages == nil {
		return false
	}
	return e.matchesAny(path, userPages)
}

// FirstAccessiblePage returns where a user lands after login. The first
// granted page is returned as is.
func (e *Evaluator) FirstAccessiblePage(isAdmin bool, userPages []string) string {
	if isAdmin {
		return e.policy.AdminLandingPage
	}
	if len(userPages) > 0 {
		return userPages[0]
	}
	return e.policy.FallbackPage
}

// HasServerAccess reports whether a user may see the machine with machineID.
func (e *Evaluator) HasServerAccess(isAdmin bool, userServers []string, machineID string) bool {
	if isAdmin {
		return true
	}
	for _, id := range userServers {
		if id == machineID {
			return true
		}
	}
	return false
}

// IsControlledPage reports whether page can be granted per user.
func (e *Evaluator) IsControlledPage(page string) bool {
	for _, p := range e.policy.ControlledPages {
		if p == page {
			return true
		}
	}
	return false
}

// NormalizePages validates a page grant list before it is stored. Duplicates
// are dropped while keeping first-seen order, since the first entry is the
// landing page.
func (e *Evaluator) NormalizePages(pages []string) ([]string, error) {
	out := make([]string, 0, len(pages))
	seen := make(map[string]struct{}, len(pages))
	for _, page := range pages {
		page = strings.TrimSpace(page)
		if !e.IsControlledPage(page) {
			return nil, errors.Validation(fmt.Sprintf("page %q is not a permission-controlled page", page))
		}
		if _, dup := seen[page]; dup {
			continue
		}
		seen[page] = struct{}{}
		out = append(out, page)
	}
	return out, nil
}

// apiPages maps backend route prefixes to the page that gates them.
var apiPages = []struct {
	prefix string
	page   string
}{
	{"/pm2", PageServices},
	{"/nginx", PageNginx},
	{"/registrar", PageRegistrar},
	{"/admin", PageAdmin},
	{"/machines", PageMachines},
}

// RequiredPage returns the dashboard page that gates an API path, and false
// when the path is not gated by a page.
func RequiredPage(apiPath string) (string, bool) {
	for _, m := range apiPages {
		if apiPath == m.prefix || strings.HasPrefix(apiPath, m.prefix+"/") {
			return m.page, true
		}
	}
	return "", false
}
