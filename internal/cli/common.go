package cli

import (
	"context"

	"github.com/ksyq12/tsm/internal/access"
	"github.com/ksyq12/tsm/internal/config"
	"github.com/ksyq12/tsm/internal/driver"
	"github.com/ksyq12/tsm/internal/errors"
	"github.com/ksyq12/tsm/internal/input"
	"github.com/ksyq12/tsm/internal/models"
	"github.com/ksyq12/tsm/internal/output"
	"github.com/ksyq12/tsm/internal/store"
)

// loadConfig loads the config named by --config
func loadConfig() (*config.Config, error) {
	cfg, err := deps.ConfigLoader.Load(configPath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfig, "failed to load config", err)
	}
	return cfg, nil
}

// loadConfigAndDriver loads config and returns the nginx driver
func loadConfigAndDriver() (*config.Config, driver.Driver, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	drv, err := deps.DriverFactory.Create(driver.Paths{
		Available: cfg.Nginx.Available,
		Enabled:   cfg.Nginx.Enabled,
	}, deps.Executor)
	if err != nil {
		return nil, nil, err
	}
	return cfg, drv, nil
}

// openStore opens the database configured in cfg. Callers close it.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	st, err := deps.StoreOpener.Open(ctx, cfg.DatabasePath())
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, "failed to open database "+cfg.DatabasePath(), err)
	}
	return st, nil
}

// newEvaluator builds the access evaluator for the configured match mode
func newEvaluator(cfg *config.Config) (*access.Evaluator, error) {
	mode, err := cfg.MatchMode()
	if err != nil {
		return nil, err
	}
	policy := access.DefaultPolicy()
	policy.Match = mode
	return access.NewEvaluator(policy), nil
}

// findUser resolves a user by public id or email
func findUser(ctx context.Context, st *store.Store, ref string) (*models.User, error) {
	if models.IsPublicID(ref) {
		return st.GetUserByPublicID(ctx, ref)
	}
	return st.GetUserByEmail(ctx, ref)
}

// testAndReload tests config and reloads nginx.
// If rollback is provided, it will be called on test failure
func testAndReload(ctx context.Context, drv driver.Driver, reload bool, rollback func() error) error {
	output.Info("Testing configuration...")
	if err := drv.Test(ctx); err != nil {
		if rollback != nil {
			if rbErr := rollback(); rbErr != nil {
				output.Warn("Rollback failed: %v", rbErr)
			}
		}
		return errors.Wrap(errors.ErrCodeDriver, "configuration test failed", err)
	}

	if reload {
		output.Info("Reloading %s...", drv.Name())
		if err := drv.Reload(ctx); err != nil {
			return err
		}
	}

	return nil
}

// outputResult handles JSON or human-readable output
func outputResult(data interface{}, successMsg string, args ...interface{}) error {
	if jsonOutput {
		return output.JSON(data)
	}
	output.Success(successMsg, args...)
	return nil
}

// confirm asks a yes/no question on the prompt writer
func confirm(question string) (bool, error) {
	return input.Confirm(deps.StdinReader, deps.Prompt, question)
}
