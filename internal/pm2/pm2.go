// Package pm2 reads and controls processes managed by the pm2 process
// manager.
package pm2

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ksyq12/tsm/internal/errors"
	"github.com/ksyq12/tsm/internal/executor"
	"github.com/ksyq12/tsm/internal/logger"
)

// App is one pm2-managed process.
type App struct {
	Name        string  `json:"name"`
	PmID        int     `json:"pm_id"`
	Status      string  `json:"status"`
	CPU         float64 `json:"cpu"`
	Memory      int64   `json:"memory"`
	Uptime      int64   `json:"uptime"`
	Restarts    int     `json:"restarts"`
	Script      string  `json:"script"`
	ExecMode    string  `json:"exec_mode"`
	Instances   int     `json:"instances"`
	PID         int     `json:"pid"`
	Version     string  `json:"version"`
	NodeVersion string  `json:"node_version"`
	Port        *int    `json:"port"`
}

// Action is a pm2 process command.
type Action string

// Supported actions.
const (
	ActionStart   Action = "start"
	ActionStop    Action = "stop"
	ActionRestart Action = "restart"
	ActionReload  Action = "reload"
)

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(s)); a {
	case ActionStart, ActionStop, ActionRestart, ActionReload:
		return a, nil
	}
	return "", errors.Validation(fmt.Sprintf("unknown pm2 action %q (valid: start, stop, restart, reload)", s))
}

var appName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._@-]*$`)

// ValidateName rejects names that could be mistaken for pm2 flags.
func ValidateName(name string) error {
	if !appName.MatchString(name) {
		return errors.Validation(fmt.Sprintf("invalid pm2 app name %q", name))
	}
	return nil
}

// Client runs the pm2 binary.
type Client struct {
	binary string
	exec   executor.CommandExecutor
	now    func() time.Time
}

// NewClient creates a Client. An empty binary means "pm2" on PATH.
func NewClient(binary string, exec executor.CommandExecutor) *Client {
	if binary == "" {
		binary = "pm2"
	}
	return &Client{binary: binary, exec: exec, now: time.Now}
}

// Binary returns the pm2 executable the client runs.
func (c *Client) Binary() string {
	return c.binary
}

// List returns every process pm2 manages.
func (c *Client) List(ctx context.Context) ([]App, error) {
	out, err := c.exec.Output(ctx, c.binary, "jlist")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to run pm2 jlist", err)
	}
	apps, err := parseJList(out, c.now())
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to parse pm2 output", err)
	}
	logger.Debug("pm2 reported %d apps", len(apps))
	return apps, nil
}

// Action runs action against the named process.
func (c *Client) Action(ctx context.Context, name string, action Action) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if _, err := ParseAction(string(action)); err != nil {
		return err
	}

	out, err := c.exec.Execute(ctx, c.binary, string(action), name)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, fmt.Sprintf("pm2 %s %s failed", action, name),
			fmt.Errorf("%s", strings.TrimSpace(string(out))))
	}
	logger.InfoFields("pm2 action", map[string]interface{}{"app": name, "action": string(action)})
	return nil
}

type jlistEntry struct {
	Name  string `json:"name"`
	PmID  int    `json:"pm_id"`
	PID   int    `json:"pid"`
	Monit struct {
		Memory int64   `json:"memory"`
		CPU    float64 `json:"cpu"`
	} `json:"monit"`
	Env struct {
		Status      string          `json:"status"`
		PmUptime    int64           `json:"pm_uptime"`
		RestartTime int             `json:"restart_time"`
		PmExecPath  string          `json:"pm_exec_path"`
		ExecMode    string          `json:"exec_mode"`
		Instances   json.RawMessage `json:"instances"`
		Version     string          `json:"version"`
		NodeVersion string          `json:"node_version"`
		Port        json.RawMessage `json:"PORT"`
		Vars        struct {
			Port json.RawMessage `json:"PORT"`
		} `json:"env"`
	} `json:"pm2_env"`
}

func parseJList(data []byte, now time.Time) ([]App, error) {
	entries, err := decodeEntries(data)
	if err != nil {
		return nil, err
	}

	apps := make([]App, 0, len(entries))
	for _, e := range entries {
		app := App{
			Name:        e.Name,
			PmID:        e.PmID,
			Status:      e.Env.Status,
			CPU:         e.Monit.CPU,
			Memory:      e.Monit.Memory,
			Restarts:    e.Env.RestartTime,
			Script:      e.Env.PmExecPath,
			ExecMode:    strings.TrimSuffix(e.Env.ExecMode, "_mode"),
			Instances:   intOr(e.Env.Instances, 1),
			PID:         e.PID,
			Version:     e.Env.Version,
			NodeVersion: e.Env.NodeVersion,
		}
		if app.Status == "online" && e.Env.PmUptime > 0 {
			app.Uptime = now.UnixMilli() - e.Env.PmUptime
			if app.Uptime < 0 {
				app.Uptime = 0
			}
		}
		if port, ok := parsePort(e.Env.Vars.Port); ok {
			app.Port = &port
		} else if port, ok := parsePort(e.Env.Port); ok {
			app.Port = &port
		}
		apps = append(apps, app)
	}
	return apps, nil
}

// decodeEntries skips any lines pm2 prints before the JSON, such as
// "[PM2] Spawning PM2 daemon" on first start.
func decodeEntries(data []byte) ([]jlistEntry, error) {
	var entries []jlistEntry
	err := json.Unmarshal(data, &entries)
	if err == nil {
		return entries, nil
	}

	text := string(data)
	for {
		i := strings.Index(text, "\n[")
		if i < 0 {
			return nil, err
		}
		text = text[i+1:]
		entries = nil
		if json.Unmarshal([]byte(text), &entries) == nil {
			return entries, nil
		}
	}
}

// parsePort accepts a JSON number or numeric string.
func parsePort(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	s := strings.Trim(string(raw), `"`)
	port, err := strconv.Atoi(s)
	if err != nil || port <= 0 || port > 65535 {
		return 0, false
	}
	return port, true
}

// intOr parses a JSON number, returning def for anything else (pm2 writes
// "max" for cluster apps sized to the CPU count).
func intOr(raw json.RawMessage, def int) int {
	if len(raw) == 0 {
		return def
	}
	n, err := strconv.Atoi(strings.Trim(string(raw), `"`))
	if err != nil {
		return def
	}
	return n
}
