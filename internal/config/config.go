package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/ksyq12/tsm/internal/access"
	"github.com/ksyq12/tsm/internal/errors"
	"github.com/ksyq12/tsm/internal/platform"
)

// Config represents the application configuration
type Config struct {
	Listen       string       `yaml:"listen"`
	DataDir      string       `yaml:"data_dir"`
	Database     string       `yaml:"database,omitempty"`
	TemplatesDir string       `yaml:"templates_dir,omitempty"`
	Nginx        NginxConfig  `yaml:"nginx"`
	PM2          PM2Config    `yaml:"pm2"`
	Auth         AuthConfig   `yaml:"auth"`
	Access       AccessConfig `yaml:"access"`
	CORS         CORSConfig   `yaml:"cors"`

	path string
}

// NginxConfig holds the nginx site directories.
type NginxConfig struct {
	Available        string `yaml:"available"`
	Enabled          string `yaml:"enabled"`
	ReloadAfterWrite bool   `yaml:"reload_after_write"`
}

// PM2Config locates the pm2 binary.
type PM2Config struct {
	Binary string `yaml:"binary"`
}

// AuthConfig controls session tokens and passwords.
type AuthConfig struct {
	JWTSecret         string        `yaml:"jwt_secret"`
	TokenTTL          time.Duration `yaml:"token_ttl"`
	CookieName        string        `yaml:"cookie_name"`
	SecureCookie      bool          `yaml:"secure_cookie"`
	ResetTokenTTL     time.Duration `yaml:"reset_token_ttl"`
	MinPasswordLength int           `yaml:"min_password_length"`
}

// AccessConfig selects how page paths are matched.
type AccessConfig struct {
	Match string `yaml:"match"`
}

// CORSConfig lists origins allowed to call the API from a browser.
type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

// MinJWTSecretLength is the shortest secret Validate accepts.
const MinJWTSecretLength = 16

// EnvConfigPath overrides the default config file location.
const EnvConfigPath = "TSM_CONFIG"

const configDir = ".config/tsm"
const configFile = "config.yaml"

// New creates a new Config with default values
func New() *Config {
	cfg := &Config{
		Listen: "127.0.0.1:8001",
		Nginx: NginxConfig{
			Available: "/etc/nginx/sites-available",
			Enabled:   "/etc/nginx/sites-enabled",
		},
		PM2: PM2Config{Binary: "pm2"},
		Auth: AuthConfig{
			TokenTTL:          7 * 24 * time.Hour,
			CookieName:        "auth-token",
			ResetTokenTTL:     time.Hour,
			MinPasswordLength: 2,
		},
		Access: AccessConfig{Match: string(access.MatchSegment)},
	}

	if paths, err := platform.DetectNginxPaths(); err == nil {
		cfg.Nginx.Available = paths.Available
		cfg.Nginx.Enabled = paths.Enabled
	}

	if dir, err := ConfigDir(); err == nil {
		cfg.DataDir = dir
	}

	return cfg
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, configDir), nil
}

// ConfigPath returns the config file path. TSM_CONFIG takes precedence over
// the home directory default.
func ConfigPath() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Load reads the config from path, or from ConfigPath when path is empty.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := New()
	cfg.path = path

	// If config doesn't exist, return default config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Save writes the config back to the file it was loaded from.
func (c *Config) Save() error {
	path := c.path
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	c.path = path
	return nil
}

// DatabasePath returns the SQLite file, defaulting to DataDir/tsm.db.
func (c *Config) DatabasePath() string {
	if c.Database != "" {
		return c.Database
	}
	return filepath.Join(c.DataDir, "tsm.db")
}

// TemplatesPath returns the nginx templates directory, defaulting to
// DataDir/templates/nginxConfigFiles.
func (c *Config) TemplatesPath() string {
	if c.TemplatesDir != "" {
		return c.TemplatesDir
	}
	return filepath.Join(c.DataDir, "templates", "nginxConfigFiles")
}

// MatchMode returns the configured access match mode.
func (c *Config) MatchMode() (access.MatchMode, error) {
	return access.ParseMatchMode(c.Access.Match)
}

// Validate checks the settings the HTTP API depends on.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return errors.New(errors.ErrCodeConfig, "listen address is required")
	}
	if len(c.Auth.JWTSecret) < MinJWTSecretLength {
		return errors.New(errors.ErrCodeConfig,
			fmt.Sprintf("auth.jwt_secret must be at least %d characters", MinJWTSecretLength))
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New(errors.ErrCodeConfig, "auth.token_ttl must be positive")
	}
	if c.Auth.ResetTokenTTL <= 0 {
		return errors.New(errors.ErrCodeConfig, "auth.reset_token_ttl must be positive")
	}
	if c.Auth.MinPasswordLength < 1 {
		return errors.New(errors.ErrCodeConfig, "auth.min_password_length must be at least 1")
	}
	if c.Auth.CookieName == "" {
		return errors.New(errors.ErrCodeConfig, "auth.cookie_name is required")
	}
	if _, err := c.MatchMode(); err != nil {
		return errors.Wrap(errors.ErrCodeConfig, "invalid access.match", err)
	}
	if c.Nginx.Available == "" {
		return errors.New(errors.ErrCodeConfig, "nginx.available is required")
	}
	return nil
}
