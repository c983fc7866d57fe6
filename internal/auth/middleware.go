package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ksyq12/tsm/internal/access"
	"github.com/ksyq12/tsm/internal/errors"
	"github.com/ksyq12/tsm/internal/logger"
	"github.com/ksyq12/tsm/internal/models"
)

// DefaultCookieName is the session cookie used when none is configured.
const DefaultCookieName = "auth-token"

type contextKey int

const userContextKey contextKey = iota

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(userContextKey).(*models.User)
	return u
}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// UserLoader looks up the user a token belongs to.
type UserLoader interface {
	GetUserByPublicID(ctx context.Context, publicID string) (*models.User, error)
}

// ErrorWriter renders an error response.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Authenticator is the HTTP side of auth: session cookies and middleware.
type Authenticator struct {
	Tokens       *Tokens
	Users        UserLoader
	Evaluator    *access.Evaluator
	CookieName   string
	SecureCookie bool
	WriteError   ErrorWriter
}

func (a *Authenticator) cookieName() string {
	if a.CookieName == "" {
		return DefaultCookieName
	}
	return a.CookieName
}

func (a *Authenticator) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if a.WriteError != nil {
		a.WriteError(w, r, err)
		return
	}
	http.Error(w, err.Error(), errors.HTTPStatus(err))
}

// TokenFromRequest returns the bearer token, falling back to the session
// cookie.
func (a *Authenticator) TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(a.cookieName()); err == nil {
		return c.Value
	}
	return ""
}

// SetSession writes the session cookie.
func (a *Authenticator) SetSession(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName(),
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   a.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSession expires the session cookie.
func (a *Authenticator) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     a.cookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// Authenticate rejects requests without a valid session and stores the
// current user in the request context. The user is reloaded on every
// request so revoked grants and password changes take effect immediately.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := a.TokenFromRequest(r)
		if token == "" {
			a.writeError(w, r, errors.Unauthorized("authentication required"))
			return
		}

		session, err := a.Tokens.Verify(token)
		if err != nil {
			logger.DebugFields("Rejected session token", map[string]interface{}{
				"path":  r.URL.Path,
				"error": err.Error(),
			})
			a.writeError(w, r, err)
			return
		}

		user, err := a.Users.GetUserByPublicID(r.Context(), session.Subject)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				a.writeError(w, r, errors.Unauthorized("user no longer exists"))
				return
			}
			a.writeError(w, r, err)
			return
		}
		if user.TokenVersion != session.Version {
			a.writeError(w, r, errors.Unauthorized("session has been revoked"))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// RequireAdmin allows only admins through.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil {
			a.writeError(w, r, errors.Unauthorized("authentication required"))
			return
		}
		if !user.IsAdmin {
			a.writeError(w, r, errors.Forbidden("admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePage allows a request through when the user may open the
// dashboard page that gates its path.
func (a *Authenticator) RequirePage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil {
			a.writeError(w, r, errors.Unauthorized("authentication required"))
			return
		}
		page, gated := access.RequiredPage(r.URL.Path)
		if gated && !a.Evaluator.HasAccess(page, user.IsAdmin, user.AccessPages) {
			logger.DebugFields("Page access denied", map[string]interface{}{
				"user": user.PublicID,
				"page": page,
				"path": r.URL.Path,
			})
			a.writeError(w, r, errors.Forbidden("no access to "+page))
			return
		}
		next.ServeHTTP(w, r)
	})
}
