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
	"os"

	"github.com/spf13/cobra"

	"github.com/trly/unitd/internal/log"
	"github.com/trly/unitd/internal/supervisor"
)

// SuperviseOptions holds supervise command options.
type SuperviseOptions struct {
	RestartDelay    uint64
	RestartAttempts int
	RestartPolicy   supervisor.Policy
	Pwd             string
	Root            string
	Env             []string
	User            string
	Group           string
	Stdout          string
	Stderr          string
}

// Options returns the supervisor options running args under o.
func (o SuperviseOptions) Options(args []string) supervisor.Options {
	opts := supervisor.NewOptions(args[0], args[1:]...)
	opts.RestartDelay = o.RestartDelay
	opts.RestartAttempts = o.RestartAttempts
	opts.RestartPolicy = o.RestartPolicy
	opts.Pwd = o.Pwd
	opts.Root = o.Root
	opts.Env = o.Env
	opts.User = o.User
	opts.Group = o.Group
	opts.Stdout = o.Stdout
	opts.Stderr = o.Stderr
	if len(opts.Args) == 0 {
		opts.Args = nil
	}
	return opts
}

// SuperviseCommand represents the supervise command.
type SuperviseCommand struct {
	opts SuperviseOptions
}

// GetCobraCommand returns the cobra command that supervises one process.
func (c *SuperviseCommand) GetCobraCommand() *cobra.Command {
	c.opts = SuperviseOptions{RestartAttempts: supervisor.Unlimited}

	superviseCmd := &cobra.Command{
		Use:   "supervise [flags] -- <cmd> [args...]",
		Short: "Run a process and restart it according to a policy",
		Long: `Run a process and restart it according to a policy.

Started by init for every daemon and oneshot unit. SIGTERM stops the child
and the supervisor.`,
		Args: cobra.MinimumNArgs(1),
		// Runs under init before any config exists.
		PersistentPreRun: func(*cobra.Command, []string) {},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.NewLoggerTo(os.Stderr, verbose)
			return supervisor.Serve(cmd.Context(), c.opts.Options(args), logger)
		},
	}

	flags := superviseCmd.Flags()
	flags.Uint64Var(&c.opts.RestartDelay, supervisor.FlagRestartDelay, 0, "Seconds to wait before a restart")
	flags.IntVar(&c.opts.RestartAttempts, supervisor.FlagRestartAttempts, supervisor.Unlimited, "Restart budget, -1 for unlimited")
	flags.Var(&c.opts.RestartPolicy, supervisor.FlagRestartPolicy, "Restart policy (never, on-failure, on-success, always)")
	flags.StringVar(&c.opts.Pwd, supervisor.FlagPwd, "", "Working directory of the child")
	flags.StringVar(&c.opts.Root, supervisor.FlagRoot, "", "Root directory of the child")
	flags.StringArrayVar(&c.opts.Env, supervisor.FlagEnv, nil, "KEY=VALUE added to the environment, repeatable")
	flags.StringVar(&c.opts.User, supervisor.FlagUser, "", "User to run the child as")
	flags.StringVar(&c.opts.Group, supervisor.FlagGroup, "", "Group to run the child as")
	flags.StringVar(&c.opts.Stdout, supervisor.FlagStdout, "", "File the child's stdout is appended to")
	flags.StringVar(&c.opts.Stderr, supervisor.FlagStderr, "", "File the child's stderr is appended to")

	err := superviseCmd.RegisterFlagCompletionFunc(supervisor.FlagRestartPolicy, func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"never", "on-failure", "on-success", "always"}, cobra.ShellCompDirectiveNoFileComp
	})
	if err != nil {
		return superviseCmd
	}

	return superviseCmd
}
