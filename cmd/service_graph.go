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

	"github.com/spf13/cobra"

	"github.com/trly/unitd/internal/db"
	"github.com/trly/unitd/internal/resolve"
	"github.com/trly/unitd/internal/unit"
)

// GraphCommand represents the service graph command.
type GraphCommand struct{}

// NewGraphCommand creates a new GraphCommand.
func NewGraphCommand() *GraphCommand {
	return &GraphCommand{}
}

// GetCobraCommand returns the cobra command exporting the ordering graph.
func (c *GraphCommand) GetCobraCommand() *cobra.Command {
	var level int

	graphCmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the ordering graph in Graphviz DOT format",
		Long: `Print the ordering graph in Graphviz DOT format. With --level only the
units loaded for that level are drawn, otherwise the whole catalogue.

  unitd service graph --level 1 | dot -Tsvg > level1.svg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.Run(cmd.OutOrStdout(), getApp(cmd), level)
		},
	}

	graphCmd.Flags().IntVarP(&level, "level", "l", -1, "Only draw this level")

	return graphCmd
}

// Run writes the graph of level, or of every known unit when level < 0.
func (c *GraphCommand) Run(w io.Writer, app *App, level int) error {
	d, err := app.OpenDatabase()
	if err != nil {
		return err
	}

	var infos []unit.Info
	if level < 0 {
		for _, info := range d.Infos {
			infos = append(infos, info)
		}
	} else {
		if level >= d.LevelCount() {
			return fmt.Errorf("%w: %d", db.ErrUnknownLevel, level)
		}
		closure, err := db.Closure(d.Infos, d.Enabled[level])
		if err != nil {
			return err
		}
		for n := range closure {
			infos = append(infos, d.Infos[n])
		}
	}

	return resolve.WriteDOT(w, infos)
}
