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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trly/unitd/internal/ctl"
)

// ControlOptions holds start and stop command options.
type ControlOptions struct {
	Level int
}

// ControlCommand represents the live start and stop commands.
type ControlCommand struct {
	kind ctl.Kind
}

// NewControlCommand creates a command sending kind requests to init.
func NewControlCommand(kind ctl.Kind) *ControlCommand {
	return &ControlCommand{kind: kind}
}

// GetCobraCommand returns the cobra command for a live start or stop.
func (c *ControlCommand) GetCobraCommand() *cobra.Command {
	var opts ControlOptions

	short := "Enable and start a unit on the running system"
	if c.kind == ctl.Stop {
		short = "Stop and disable a unit on the running system"
	}

	controlCmd := &cobra.Command{
		Use:   string(c.kind) + " <unit>",
		Short: short,
		Long: short + `.

The request is handled by init; the enable database is updated only when it
succeeds.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Run(getApp(cmd), args[0], opts)
		},
	}

	controlCmd.Flags().IntVarP(&opts.Level, "level", "l", DefaultLevel, "Level the unit is enabled at")

	return controlCmd
}

// Run sends the request for name to init.
func (c *ControlCommand) Run(app *App, name string, opts ControlOptions) error {
	if !app.IsRoot() {
		return ErrNotPermitted
	}

	m := ctl.Message{Kind: c.kind, Unit: name, Level: opts.Level}
	if _, err := ctl.Parse(m.String()); err != nil {
		return err
	}

	if err := ctl.Send(app.Config.PipePath, m); err != nil {
		return fmt.Errorf("failed to write to pipe: %w", err)
	}
	app.Logger.Debug("Sent control message", "message", m)
	return nil
}

// ReloadCommand represents the reload command.
type ReloadCommand struct{}

// GetCobraCommand returns the cobra command asking init to re-read the database.
func (c *ReloadCommand) GetCobraCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Make init re-read the enable database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app := getApp(cmd)
			if !app.IsRoot() {
				return ErrNotPermitted
			}
			if err := ctl.Send(app.Config.PipePath, ctl.Message{Kind: ctl.DBReload}); err != nil {
				return fmt.Errorf("failed to write to pipe: %w", err)
			}
			return nil
		},
	}
}
