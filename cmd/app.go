/*
Copyright © 2025 Travis Lyons travis.lyons@gmail.com

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
// Package cmd provides the command line interface for unitd.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/trly/unitd/internal/config"
	"github.com/trly/unitd/internal/db"
	"github.com/trly/unitd/internal/log"
	"github.com/trly/unitd/internal/system"
	"github.com/trly/unitd/internal/unit"
	"github.com/trly/unitd/internal/units"
)

type contextKey string

const appContextKey contextKey = "app"

// App holds the application dependencies for command line interface.
type App struct {
	Logger         log.Logger
	Config         *config.Settings
	ConfigProvider config.Provider
	Kernel         system.Kernel
	Host           units.Host
	// IsRoot reports whether privileged commands may run.
	IsRoot func() bool
	// Baked are the compiled-in units the default database is built from.
	Baked []unit.Unit
}

// NewApp creates a new App with all dependencies initialized.
func NewApp(logger log.Logger, configProv config.Provider) *App {
	host := units.Linux{}
	return &App{
		Logger:         logger,
		Config:         configProv.GetConfig(),
		ConfigProvider: configProv,
		Kernel:         system.Host{},
		Host:           host,
		IsRoot:         system.IsRoot,
		Baked:          units.Baked(host, nil, logger),
	}
}

// ErrNoDatabase is returned when the enable database does not exist yet.
var ErrNoDatabase = errors.New("failed to find unitd database")

// OpenDatabase loads the enable database. Unlike init, the command line never
// falls back to the default database.
func (a *App) OpenDatabase() (*db.Database, error) {
	d, err := db.Load(a.Config.DBPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoDatabase, a.Config.DBPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read database: %w", err)
	}
	return d, nil
}

// SaveDatabase persists d.
func (a *App) SaveDatabase(d *db.Database) error {
	return db.Save(a.Config.DBPath, d, a.Logger)
}

// getApp retrieves the App from the command context.
func getApp(cmd *cobra.Command) *App {
	return cmd.Context().Value(appContextKey).(*App)
}

// withApp stores app in ctx.
func withApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appContextKey, app)
}
