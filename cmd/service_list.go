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
	"io"

	"github.com/fatih/color"
	"github.com/rodaine/table"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/trly/unitd/internal/db"
	"github.com/trly/unitd/internal/unit"
)

// ListOptions holds list command options.
type ListOptions struct {
	Plan   bool
	Level  int
	Output string
}

// ListCommand represents the service list command.
type ListCommand struct{}

// NewListCommand creates a new ListCommand.
func NewListCommand() *ListCommand {
	return &ListCommand{}
}

// GetCobraCommand returns the cobra command for listing enabled units.
func (c *ListCommand) GetCobraCommand() *cobra.Command {
	var opts ListOptions

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the units of every level",
		Long: `List the units of every level in start order. With --plan the units are
grouped into the waves that start concurrently.`,
		Args: cobra.NoArgs,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			switch opts.Output {
			case OutputText, OutputJSON, OutputYAML:
				return nil
			}
			return fmt.Errorf("unsupported output format: %s", opts.Output)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.Run(cmd.OutOrStdout(), getApp(cmd), opts)
		},
	}

	listCmd.Flags().BoolVarP(&opts.Plan, "plan", "p", false, "Group units into start waves")
	listCmd.Flags().IntVarP(&opts.Level, "level", "l", -1, "Only list this level")
	listCmd.Flags().StringVarP(&opts.Output, "output", "o", OutputText, "Output format (text, json, yaml)")
	err := listCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{OutputText, OutputJSON, OutputYAML}, cobra.ShellCompDirectiveNoFileComp
	})
	if err != nil {
		return listCmd
	}

	return listCmd
}

// Run prints the levels of the database.
func (c *ListCommand) Run(w io.Writer, app *App, opts ListOptions) error {
	d, err := app.OpenDatabase()
	if err != nil {
		return err
	}

	levels, err := c.collect(app, d, opts.Level)
	if err != nil {
		return err
	}

	if opts.Output != OutputText && opts.Output != "" {
		return PrintOutput(w, opts.Output, levels)
	}

	headerFmt := color.New(color.FgGreen, color.Underline).SprintfFunc()
	columnFmt := color.New(color.FgYellow).SprintfFunc()

	var tbl table.Table
	if opts.Plan {
		tbl = table.New("Level", "Wave", "Unit", "Kind", "Enabled", "Description")
	} else {
		tbl = table.New("Level", "Unit", "Kind", "Enabled", "Description")
	}
	tbl.WithWriter(w).WithHeaderFormatter(headerFmt).WithFirstColumnFormatter(columnFmt)

	for _, l := range levels {
		for i, wave := range l.Waves {
			for _, u := range wave {
				enabled := "yes"
				if !u.Enabled {
					enabled = "needed"
				}
				if opts.Plan {
					tbl.AddRow(l.Level, i, u.Name, u.Kind, enabled, u.Description)
				} else {
					tbl.AddRow(l.Level, u.Name, u.Kind, enabled, u.Description)
				}
			}
		}
	}
	tbl.Print()
	return nil
}

// collect turns the cached plans into output rows. only < 0 selects every level.
func (c *ListCommand) collect(app *App, d *db.Database, only int) ([]LevelOutput, error) {
	if only >= d.LevelCount() {
		return nil, fmt.Errorf("%w: %d", db.ErrUnknownLevel, only)
	}

	caser := cases.Title(language.English)
	descriptions := make(map[unit.Name]string, len(app.Baked))
	for _, u := range app.Baked {
		descriptions[u.Name()] = u.Description()
	}

	var out []LevelOutput
	for i := range d.LevelCount() {
		if only >= 0 && i != only {
			continue
		}
		plan, err := d.Level(i)
		if err != nil {
			return nil, err
		}

		lo := LevelOutput{Level: i, Waves: make([][]UnitItem, 0, len(plan))}
		for _, wave := range plan {
			items := make([]UnitItem, 0, len(wave))
			for _, n := range wave {
				item := UnitItem{
					Name:        n.String(),
					Kind:        caser.String("baked"),
					Description: descriptions[n],
					Enabled:     d.IsEnabled(i, n),
				}
				if u, ok := d.Units[n]; ok {
					item.Kind = caser.String(string(u.Type))
					item.Description = u.Desc
				}
				items = append(items, item)
			}
			lo.Waves = append(lo.Waves, items)
		}
		out = append(out, lo)
	}
	return out, nil
}
