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

	"github.com/spf13/cobra"

	"github.com/trly/unitd/internal/ctl"
	"github.com/trly/unitd/internal/system"
)

// ErrNotPermitted is returned when a privileged command runs without root.
var ErrNotPermitted = errors.New("operation not permitted")

// TeardownOptions holds teardown command options.
type TeardownOptions struct {
	Force bool
}

// TeardownCommand represents the teardown command.
type TeardownCommand struct{}

// GetCobraCommand returns the cobra command that brings the system down.
func (c *TeardownCommand) GetCobraCommand() *cobra.Command {
	var opts TeardownOptions

	verbs := make([]string, len(system.Verbs))
	for i, v := range system.Verbs {
		verbs[i] = string(v)
	}

	teardownCmd := &cobra.Command{
		Use:   "teardown <halt|poweroff|reboot|kexec>",
		Short: "Tear the system down and halt, power off, reboot or kexec",
		Long: `Ask init to stop every unit and perform a power action.

With --force the power action happens immediately, without stopping units
or killing processes.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: verbs,
		RunE: func(cmd *cobra.Command, args []string) error {
			verb, err := system.ParseVerb(args[0])
			if err != nil {
				return err
			}
			return c.Run(getApp(cmd), verb, opts)
		},
	}

	teardownCmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "Skip the graceful teardown")

	return teardownCmd
}

// Run performs verb, directly when forced or through init otherwise.
func (c *TeardownCommand) Run(app *App, verb system.Verb, opts TeardownOptions) error {
	if !app.IsRoot() {
		return ErrNotPermitted
	}

	if opts.Force {
		app.Logger.Warn("Forcing power action without teardown", "action", verb)
		app.Kernel.Sync()
		if err := app.Kernel.Reboot(verb); err != nil {
			return fmt.Errorf("failed to %s: %w", verb, err)
		}
		return nil
	}

	if err := ctl.Send(app.Config.PipePath, ctl.Message{Kind: ctl.Kind(verb)}); err != nil {
		return fmt.Errorf("failed to write to pipe: %w", err)
	}
	return nil
}
