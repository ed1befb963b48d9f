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
package cmd

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/trly/unitd/internal/unit"
	"github.com/trly/unitd/internal/unitfile"
)

// DefaultLevel is the level service and control commands act on unless told otherwise.
const DefaultLevel = 1

var (
	// ErrAlreadyEnabled is returned when enabling a unit twice at one level.
	ErrAlreadyEnabled = errors.New("unit already enabled")
	// ErrNotEnabled is returned when disabling a unit that is not enabled.
	ErrNotEnabled = errors.New("unit was not enabled")
	// ErrLevelGap is returned when enabling at a level more than one past the last.
	ErrLevelGap = errors.New("cannot create level")
)

// ServiceCommand represents the service command.
type ServiceCommand struct{}

// GetCobraCommand returns the cobra command grouping the service subcommands.
func (c *ServiceCommand) GetCobraCommand() *cobra.Command {
	serviceCmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the enable database",
		Long:  "Enable, disable and inspect units in the enable database.",
	}

	serviceCmd.AddCommand(
		NewEnableCommand().GetCobraCommand(),
		NewDisableCommand().GetCobraCommand(),
		NewListCommand().GetCobraCommand(),
		NewShowCommand().GetCobraCommand(),
		NewGraphCommand().GetCobraCommand(),
		NewValidateCommand().GetCobraCommand(),
	)

	return serviceCmd
}

// EnableCommand represents the service enable command.
type EnableCommand struct{}

// NewEnableCommand creates a new EnableCommand.
func NewEnableCommand() *EnableCommand {
	return &EnableCommand{}
}

// GetCobraCommand returns the cobra command for enabling a unit.
func (c *EnableCommand) GetCobraCommand() *cobra.Command {
	var level int

	enableCmd := &cobra.Command{
		Use:   "enable <unit>",
		Short: "Enable a unit at a level",
		Long: `Enable a unit at a level. The declaration is read from the unit directory;
compiled-in units need no declaration.

Enabling at the level just past the last one creates it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.Run(getApp(cmd), args[0], level); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Enabled %s at level %d\n", args[0], level)
			return nil
		},
	}

	enableCmd.Flags().IntVarP(&level, "level", "l", DefaultLevel, "Level to enable the unit at")

	return enableCmd
}

// Run enables name at level and saves the database.
func (c *EnableCommand) Run(app *App, name string, level int) error {
	d, err := app.OpenDatabase()
	if err != nil {
		return err
	}

	n := unit.NewName(name)
	decl, err := unitfile.Find(app.Config.UnitDir, name)
	if err != nil && !(errors.Is(err, fs.ErrNotExist) && d.Known(n)) {
		return fmt.Errorf("loading unit %s: %w", name, err)
	}

	switch count := d.LevelCount(); {
	case level < 0:
		return fmt.Errorf("invalid level %d", level)
	case level == count:
		d.AddLevel()
	case level > count:
		return fmt.Errorf("%w %d: the database has %d levels", ErrLevelGap, level, count)
	}

	if d.IsEnabled(level, n) {
		return fmt.Errorf("%w: %s at level %d", ErrAlreadyEnabled, name, level)
	}

	if decl != nil {
		d.Register(decl)
	}
	if err := d.Enable(level, n); err != nil {
		return err
	}
	if err := d.Rebuild(); err != nil {
		return err
	}

	app.Logger.Debug("Enabled unit", "unit", name, "level", level)
	return app.SaveDatabase(d)
}

// DisableCommand represents the service disable command.
type DisableCommand struct{}

// NewDisableCommand creates a new DisableCommand.
func NewDisableCommand() *DisableCommand {
	return &DisableCommand{}
}

// GetCobraCommand returns the cobra command for disabling a unit.
func (c *DisableCommand) GetCobraCommand() *cobra.Command {
	var level int

	disableCmd := &cobra.Command{
		Use:   "disable <unit>",
		Short: "Disable a unit at a level",
		Long: `Disable a unit at a level. A declared unit that is no longer enabled at any
level is dropped from the database.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.Run(getApp(cmd), args[0], level); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Disabled %s at level %d\n", args[0], level)
			return nil
		},
	}

	disableCmd.Flags().IntVarP(&level, "level", "l", DefaultLevel, "Level to disable the unit at")

	return disableCmd
}

// Run disables name at level and saves the database.
func (c *DisableCommand) Run(app *App, name string, level int) error {
	d, err := app.OpenDatabase()
	if err != nil {
		return err
	}

	n := unit.NewName(name)
	if level < 0 || level >= d.LevelCount() {
		return fmt.Errorf("unknown level %d", level)
	}
	if !d.IsEnabled(level, n) {
		return fmt.Errorf("%w: %s at level %d", ErrNotEnabled, name, level)
	}

	if err := d.Disable(level, n); err != nil {
		return err
	}
	if !d.EnabledAnywhere(n) && d.Unregister(n) {
		app.Logger.Debug("Dropped unit from catalogue", "unit", name)
	}
	if err := d.Rebuild(); err != nil {
		return err
	}

	app.Logger.Debug("Disabled unit", "unit", name, "level", level)
	return app.SaveDatabase(d)
}
