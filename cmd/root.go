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
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/trly/unitd/internal/config"
	"github.com/trly/unitd/internal/ctl"
	"github.com/trly/unitd/internal/log"
)

// RootCommand represents the root command for unitd CLI.
type RootCommand struct{}

var (
	configFilePath string
	dbPath         string
	unitDir        string
	pipePath       string
	verbose        bool
)

// GetCobraCommand returns the cobra root command for unitd CLI.
func (c *RootCommand) GetCobraCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "unitd",
		Short: "unitd is an init system that boots units in dependency order.",
		Long: `unitd is an init system that boots units in dependency order.
Units are enabled per level; each level is resolved into waves of units that start concurrently.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if cmd.Context() != nil && cmd.Context().Value(appContextKey) != nil {
				return
			}

			provider := config.NewDefaultConfigProvider()
			if configFilePath != "" {
				provider.SetConfigFilePath(configFilePath)
			}
			cfg := provider.InitConfig()

			if verbose {
				cfg.Verbose = verbose
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			if unitDir != "" {
				cfg.UnitDir = unitDir
			}
			if pipePath != "" {
				cfg.PipePath = pipePath
			}

			log.Init(cfg.Verbose)
			if cfg.Verbose && viper.GetViper().ConfigFileUsed() != "" {
				fmt.Fprintf(os.Stderr, "%s using config: %s\n\n", cmd.Root().Use, viper.GetViper().ConfigFileUsed())
			}

			cmd.SetContext(withApp(cmd.Context(), NewApp(log.GetLogger(), provider)))
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configFilePath, "config", "", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db-path", "", "Path to the enable database")
	rootCmd.PersistentFlags().StringVar(&unitDir, "unit-dir", "", "Path to the unit declaration directory")
	rootCmd.PersistentFlags().StringVar(&pipePath, "pipe", "", "Path to the control pipe")

	rootCmd.AddCommand(
		(&InitCommand{}).GetCobraCommand(),
		(&SuperviseCommand{}).GetCobraCommand(),
		(&ServiceCommand{}).GetCobraCommand(),
		(&TeardownCommand{}).GetCobraCommand(),
		NewControlCommand(ctl.Start).GetCobraCommand(),
		NewControlCommand(ctl.Stop).GetCobraCommand(),
		(&ReloadCommand{}).GetCobraCommand(),
		NewVersionCommand().GetCobraCommand(),
	)

	return rootCmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := (&RootCommand{}).GetCobraCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
