package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"os/user"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/trly/unitd/internal/log"
)

// ExecSpawner starts children with os/exec. The caller reaps them.
type ExecSpawner struct{}

type execChild struct {
	proc *os.Process
}

func (c execChild) Pid() int    { return c.proc.Pid }
func (c execChild) Kill() error { return c.proc.Kill() }

// Spawn implements Spawner.
func (ExecSpawner) Spawn(opts Options) (Child, error) {
	cmd := exec.Command(opts.Cmd, opts.Args...)
	cmd.Env = append(os.Environ(), opts.Env...)
	cmd.Dir = opts.Pwd

	attr := &syscall.SysProcAttr{Chroot: opts.Root}
	cred, err := credential(opts.User, opts.Group)
	if err != nil {
		return nil, err
	}
	attr.Credential = cred
	cmd.SysProcAttr = attr

	var files []*os.File
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()

	if opts.Stdout != "" {
		f, err := openAppend(opts.Stdout)
		if err != nil {
			return nil, fmt.Errorf("opening stdout: %w", err)
		}
		files = append(files, f)
		cmd.Stdout = f
	}
	if opts.Stderr != "" {
		f, err := openAppend(opts.Stderr)
		if err != nil {
			return nil, fmt.Errorf("opening stderr: %w", err)
		}
		files = append(files, f)
		cmd.Stderr = f
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return execChild{proc: cmd.Process}, nil
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
}

// credential resolves user and group to ids. A user without a group runs with
// the user's primary group.
func credential(userName, groupName string) (*syscall.Credential, error) {
	if userName == "" && groupName == "" {
		return nil, nil
	}

	cred := &syscall.Credential{
		Uid:         uint32(os.Getuid()),
		Gid:         uint32(os.Getgid()),
		NoSetGroups: true,
	}

	if userName != "" {
		uid, gid, err := lookupUser(userName)
		if err != nil {
			return nil, fmt.Errorf("failed to parse/locate user %q: %w", userName, err)
		}
		cred.Uid = uid
		if gid != nil {
			cred.Gid = *gid
		}
	}

	if groupName != "" {
		gid, err := lookupGroup(groupName)
		if err != nil {
			return nil, fmt.Errorf("failed to parse/locate group %q: %w", groupName, err)
		}
		cred.Gid = gid
	}

	return cred, nil
}

func lookupUser(name string) (uint32, *uint32, error) {
	if id, err := strconv.ParseUint(name, 10, 32); err == nil {
		return uint32(id), nil, nil
	}
	u, err := user.Lookup(name)
	if err != nil {
		return 0, nil, err
	}
	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return 0, nil, err
	}
	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return uint32(uid), nil, nil
	}
	g := uint32(gid)
	return uint32(uid), &g, nil
}

func lookupGroup(name string) (uint32, error) {
	if id, err := strconv.ParseUint(name, 10, 32); err == nil {
		return uint32(id), nil
	}
	g, err := user.LookupGroup(name)
	if err != nil {
		return 0, err
	}
	gid, err := strconv.ParseUint(g.Gid, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(gid), nil
}

// Serve supervises opts in the current process. SIGCHLD reaps every finished
// descendant and SIGTERM kills the child, refunding one attempt.
func Serve(ctx context.Context, opts Options, logger log.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigs := make(chan os.Signal, 16)
	signal.Notify(sigs, unix.SIGCHLD, unix.SIGTERM)
	defer signal.Stop(sigs)

	events := make(chan Event, 16)
	go translateSignals(ctx, sigs, events, logger)

	return New(opts, ExecSpawner{}, logger).Run(ctx, events)
}

func translateSignals(ctx context.Context, sigs <-chan os.Signal, events chan<- Event, logger log.Logger) {
	for {
		var sig os.Signal
		select {
		case <-ctx.Done():
			return
		case sig = <-sigs:
		}

		switch sig {
		case unix.SIGTERM:
			send(ctx, events, Terminate{})
		case unix.SIGCHLD:
			for _, ev := range reapAll(logger) {
				send(ctx, events, ev)
			}
		}
	}
}

func send(ctx context.Context, events chan<- Event, ev Event) {
	select {
	case <-ctx.Done():
	case events <- ev:
	}
}

// reapAll waits for every finished child without blocking.
func reapAll(logger log.Logger) []Event {
	var exited []Event
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			if !errors.Is(err, unix.ECHILD) {
				logger.Error("Failed to wait for children", "error", err)
			}
			return exited
		}
		if pid <= 0 {
			return exited
		}
		exited = append(exited, Exited{Pid: pid, Success: ws.Exited() && ws.ExitStatus() == 0})
	}
}
