package ctl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/trly/unitd/internal/log"
)

// ErrNotListening is returned by Send when init has no reader on the pipe.
var ErrNotListening = errors.New("init is not listening on the control pipe")

// Create makes a fresh FIFO at path.
func Create(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing stale pipe: %w", err)
	}
	if err := unix.Mkfifo(path, 0o600); err != nil {
		return fmt.Errorf("creating pipe %s: %w", path, err)
	}
	return nil
}

// Send writes m to the pipe at path without blocking on a missing reader.
func Send(path string, m Message) error {
	f, err := os.OpenFile(path, os.O_WRONLY|syscall.O_NONBLOCK, 0)
	if err != nil {
		if errors.Is(err, unix.ENXIO) || errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotListening, path)
		}
		return fmt.Errorf("opening pipe: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteString(m.String() + "\n"); err != nil {
		return fmt.Errorf("writing to pipe: %w", err)
	}
	return nil
}

// Listen reads messages from the FIFO at path and passes them to handle
// until ctx is done. Malformed lines are logged and dropped.
func Listen(ctx context.Context, path string, handle func(Message), logger log.Logger) error {
	// Opening read-write keeps a writer attached so reads never see EOF
	// between clients.
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("opening pipe: %w", err)
	}

	stop := context.AfterFunc(ctx, func() { _ = f.Close() })
	defer func() {
		if stop() {
			_ = f.Close()
		}
	}()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m, err := Parse(scanner.Text())
		if err != nil {
			logger.Warn("Ignoring control message", "error", err)
			continue
		}
		logger.Debug("Received control message", "message", m.String())
		handle(m)
	}

	if ctx.Err() != nil {
		return nil
	}
	return scanner.Err()
}
