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
	"io/fs"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/trly/unitd/internal/db"
	"github.com/trly/unitd/internal/supervisor"
	"github.com/trly/unitd/internal/unit"
	"github.com/trly/unitd/internal/unitfile"
)

// Show formats.
const (
	FormatText = "text"
	FormatINI  = "ini"
	FormatTOML = "toml"
	FormatYAML = "yaml"
)

// ShowOptions holds show command options.
type ShowOptions struct {
	Format string
}

// ShowCommand represents the service show command.
type ShowCommand struct{}

// NewShowCommand creates a new ShowCommand.
func NewShowCommand() *ShowCommand {
	return &ShowCommand{}
}

// GetCobraCommand returns the cobra command for showing one unit.
func (c *ShowCommand) GetCobraCommand() *cobra.Command {
	var opts ShowOptions

	showCmd := &cobra.Command{
		Use:   "show <unit>",
		Short: "Show a unit",
		Long: `Show a unit from the enable database, or from the unit directory when it
is not enabled. Declared units can be rendered as ini, toml or yaml.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Run(cmd.OutOrStdout(), getApp(cmd), args[0], opts)
		},
	}

	showCmd.Flags().StringVarP(&opts.Format, "format", "f", FormatText, "Output format (text, ini, toml, yaml)")

	return showCmd
}

// Run prints the unit called name.
func (c *ShowCommand) Run(w io.Writer, app *App, name string, opts ShowOptions) error {
	d, err := app.OpenDatabase()
	if err != nil {
		return err
	}

	n := unit.NewName(name)
	declared, ok := d.Units[n]
	if !ok && !d.Known(n) {
		declared, err = unitfile.Find(app.Config.UnitDir, name)
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", db.ErrUnknownUnit, name)
		}
		if err != nil {
			return err
		}
	}

	if declared == nil {
		if opts.Format != FormatText {
			return fmt.Errorf("%s is compiled in and has no %s form", name, opts.Format)
		}
		return c.printText(w, d, d.Infos[n], "baked", c.description(app, n), nil)
	}

	switch opts.Format {
	case FormatText:
		return c.printText(w, d, declared.Info(), string(declared.Type), declared.Desc, &declared.Supervisor)
	case FormatINI:
		return unitfile.Render(w, declared)
	case FormatTOML:
		return toml.NewEncoder(w).Encode(unitfile.FromUnit(declared))
	case FormatYAML:
		return printYAML(w, unitfile.FromUnit(declared))
	default:
		return fmt.Errorf("unsupported format: %s", opts.Format)
	}
}

func (c *ShowCommand) description(app *App, n unit.Name) string {
	for _, u := range app.Baked {
		if u.Name() == n {
			return u.Description()
		}
	}
	return ""
}

func (c *ShowCommand) printText(w io.Writer, d *db.Database, info unit.Info, kind, desc string, opts *supervisor.Options) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Name:        %s\n", info.Name)
	fmt.Fprintf(&b, "Kind:        %s\n", kind)
	if desc != "" {
		fmt.Fprintf(&b, "Description: %s\n", desc)
	}

	deps := info.Dependencies
	for _, rel := range []struct {
		label string
		names []unit.Name
	}{
		{"Needs", deps.Needs},
		{"Uses", deps.Uses},
		{"Wants", deps.Wants},
		{"Before", deps.Before},
		{"After", deps.After},
	} {
		if len(rel.names) > 0 {
			fmt.Fprintf(&b, "%-12s %s\n", rel.label+":", joinNames(rel.names))
		}
	}

	if opts != nil {
		fmt.Fprintf(&b, "Command:     %s\n", strings.Join(append([]string{opts.Cmd}, opts.Args...), " "))
		for _, pair := range opts.Env {
			fmt.Fprintf(&b, "Environment: %s\n", unitfile.Redact(pair))
		}
		fmt.Fprintf(&b, "Restart:     %s\n", opts.RestartPolicy)
	}

	var levels []string
	for i := range d.LevelCount() {
		if d.IsEnabled(i, info.Name) {
			levels = append(levels, fmt.Sprint(i))
		}
	}
	if len(levels) > 0 {
		fmt.Fprintf(&b, "Enabled at:  %s\n", strings.Join(levels, ", "))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func joinNames(names []unit.Name) string {
	ss := make([]string, len(names))
	for i, n := range names {
		ss[i] = n.String()
	}
	return strings.Join(ss, " ")
}

