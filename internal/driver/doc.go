// Package driver manages nginx site files and the nginx process.
//
// A driver owns two directories: Available holds the site files and Enabled
// holds symlinks to the active ones. On layouts such as conf.d where both
// are the same directory, every file is active and Enable is a no-op.
//
// # Basic Usage
//
//	drv := driver.NewNginxWithPaths(
//	    "/etc/nginx/sites-available",
//	    "/etc/nginx/sites-enabled",
//	)
//
//	if err := drv.Write("app.example.com", content); err != nil {
//	    return err
//	}
//	if err := drv.Enable("app.example.com"); err != nil {
//	    return err
//	}
//	if err := drv.Test(ctx); err != nil {
//	    return err
//	}
//	return drv.Reload(ctx)
//
// Writes go through a temporary file and rename, so nginx never reads a
// half-written config.
//
// # Testing
//
// NewNginxWithExecutor accepts a mock executor.CommandExecutor for testing
// without running nginx. MockDriver keeps files in memory for callers that
// do not need a filesystem at all.
//
// # Error Handling
//
// Errors are *errors.AppError: NOT_FOUND for missing sites, VALIDATION for
// bad names and DRIVER for filesystem or nginx failures.
package driver
