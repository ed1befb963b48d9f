package supervisor

import (
	"strconv"
	"time"
)

// Unlimited is the restart budget that never runs out.
const Unlimited = -1

// Flag names understood by the supervise command.
const (
	FlagRestartDelay    = "restart-delay"
	FlagRestartAttempts = "restart-attempts"
	FlagRestartPolicy   = "restart-policy"
	FlagPwd             = "pwd"
	FlagRoot            = "root"
	FlagEnv             = "env"
	FlagUser            = "user"
	FlagGroup           = "group"
	FlagStdout          = "stdout"
	FlagStderr          = "stderr"
)

// Options describe one supervised child and how it is restarted.
type Options struct {
	Cmd  string
	Args []string
	// Env holds KEY=VALUE pairs added to the inherited environment.
	Env  []string
	Pwd  string
	Root string
	// User and Group are numeric ids or names resolved through the user database.
	User  string
	Group string
	// Stdout and Stderr are appended to, created if missing. Empty means /dev/null.
	Stdout string
	Stderr string

	// RestartDelay is in whole seconds.
	RestartDelay uint64
	// RestartAttempts is the restart budget; Unlimited disables it.
	RestartAttempts int
	RestartPolicy   Policy
}

// NewOptions returns options for cmd with an unlimited budget and policy Never.
func NewOptions(cmd string, args ...string) Options {
	return Options{
		Cmd:             cmd,
		Args:            args,
		RestartAttempts: Unlimited,
		RestartPolicy:   Never,
	}
}

// Delay returns the restart delay as a duration.
func (o Options) Delay() time.Duration {
	return time.Duration(o.RestartDelay) * time.Second
}

// Argv renders the arguments of the supervise command that reproduces o.
func (o Options) Argv() []string {
	argv := []string{"supervise"}

	flag := func(name, value string) {
		argv = append(argv, "--"+name, value)
	}

	if o.RestartDelay > 0 {
		flag(FlagRestartDelay, strconv.FormatUint(o.RestartDelay, 10))
	}
	if o.RestartAttempts != Unlimited {
		flag(FlagRestartAttempts, strconv.Itoa(o.RestartAttempts))
	}
	flag(FlagRestartPolicy, o.RestartPolicy.String())
	if o.Pwd != "" {
		flag(FlagPwd, o.Pwd)
	}
	if o.Root != "" {
		flag(FlagRoot, o.Root)
	}
	for _, pair := range o.Env {
		flag(FlagEnv, pair)
	}
	if o.Group != "" {
		flag(FlagGroup, o.Group)
	}
	if o.User != "" {
		flag(FlagUser, o.User)
	}
	if o.Stdout != "" {
		flag(FlagStdout, o.Stdout)
	}
	if o.Stderr != "" {
		flag(FlagStderr, o.Stderr)
	}

	argv = append(argv, "--", o.Cmd)
	return append(argv, o.Args...)
}
