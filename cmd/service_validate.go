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
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/trly/unitd/internal/db"
	"github.com/trly/unitd/internal/resolve"
	"github.com/trly/unitd/internal/unit"
	"github.com/trly/unitd/internal/unitfile"
)

// ErrInvalidUnits is returned when validation finds at least one problem.
var ErrInvalidUnits = errors.New("invalid unit declarations")

// ValidateCommand represents the service validate command.
type ValidateCommand struct{}

// NewValidateCommand creates a new ValidateCommand.
func NewValidateCommand() *ValidateCommand {
	return &ValidateCommand{}
}

// GetCobraCommand returns the cobra command for validating unit declarations.
func (c *ValidateCommand) GetCobraCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [dir]",
		Short: "Validate the unit declarations in a directory",
		Long: `Validate the unit declarations in a directory, the configured unit
directory by default. The validation checks for:

- Valid toml, yaml or .service syntax and known fields
- Field values (names, environment, paths, restart policy)
- Needed units that neither the database nor the directory provide
- Ordering cycles between the declarations and the compiled-in units
- Weak values in sensitive environment variables (reported as warnings)`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			dir := app.Config.UnitDir
			if len(args) > 0 {
				dir = args[0]
			}
			return c.Run(cmd.OutOrStdout(), app, dir)
		},
	}
}

// Run validates every declaration in dir and prints one line per finding.
func (c *ValidateCommand) Run(w io.Writer, app *App, dir string) error {
	declared, loadErr := unitfile.LoadDir(dir, app.Logger)
	if declared == nil && loadErr != nil && !hasJoined(loadErr) {
		return loadErr
	}

	d, err := app.OpenDatabase()
	if err != nil {
		return err
	}

	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()
	warn := color.New(color.FgYellow).SprintFunc()

	problems := 0
	for _, err := range joined(loadErr) {
		fmt.Fprintf(w, "%s %v\n", bad("✗"), err)
		problems++
	}

	infos := maps.Clone(d.Infos)
	for _, u := range declared {
		infos[u.ID] = u.Info()
	}

	slices.SortFunc(declared, func(a, b *unit.Declared) int {
		return strings.Compare(a.ID.String(), b.ID.String())
	})

	sound := make([]unit.Info, 0, len(infos))
	broken := make(unit.NameSet)
	for _, u := range declared {
		if _, err := db.Closure(infos, unit.NewNameSet(u.ID)); err != nil {
			fmt.Fprintf(w, "%s %s: %v\n", bad("✗"), u.ID, err)
			broken.Add(u.ID)
			problems++
			continue
		}
		fmt.Fprintf(w, "%s %s\n", ok("✓"), u.ID)
		for _, finding := range unitfile.AuditEnv(u.Supervisor.Env) {
			fmt.Fprintf(w, "%s %s: %s\n", warn("!"), u.ID, finding)
		}
	}

	for n, info := range infos {
		if !broken.Has(n) {
			sound = append(sound, info)
		}
	}
	if _, err := resolve.Resolve(sound); err != nil {
		fmt.Fprintf(w, "%s %v\n", bad("✗"), err)
		problems++
	}

	if problems > 0 {
		return fmt.Errorf("%w: %d problems in %s", ErrInvalidUnits, problems, dir)
	}
	return nil
}

func hasJoined(err error) bool {
	_, ok := err.(interface{ Unwrap() []error })
	return ok
}

func joined(err error) []error {
	if err == nil {
		return nil
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
