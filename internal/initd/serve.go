package initd

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"

	"github.com/trly/unitd/internal/ctl"
	"github.com/trly/unitd/internal/event"
	"github.com/trly/unitd/internal/system"
	"github.com/trly/unitd/internal/unit"
)

// Serve reads the control pipe and the signal channel until a power action
// is requested, and returns it. Ctrl-Alt-Del arrives as SIGINT and reboots.
// Start, stop and reload requests run concurrently and are serialized by the
// loader's event lock.
func (i *Init) Serve(ctx context.Context, sigs <-chan os.Signal) (system.Verb, error) {
	if err := ctl.Create(i.cfg.PipePath); err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(i.cfg.PipePath) }()

	sctx := stopper.WithContext(ctx)
	power := make(chan system.Verb, 1)

	sctx.Go(func(sctx *stopper.Context) error {
		lctx, cancel := untilStopping(sctx)
		defer cancel()
		return ctl.Listen(lctx, i.cfg.PipePath, func(m ctl.Message) {
			i.dispatch(sctx, m, power)
		}, i.logger)
	})

	if i.cfg.WatchDatabase {
		w, err := i.watchDatabase(sctx)
		if err != nil {
			i.logger.Warn("Not watching database", "error", err)
		} else {
			sctx.Go(w)
		}
	}

	var verb system.Verb
	var err error
loop:
	for {
		select {
		case verb = <-power:
			break loop
		case sig := <-sigs:
			switch sig {
			case syscall.SIGINT:
				i.logger.Info("Ctrl-Alt-Del pressed, rebooting")
				verb = system.Reboot
				break loop
			case syscall.SIGCHLD:
				for _, e := range system.Reap() {
					i.logger.Debug("Reaped process", "pid", e.Pid, "status", e.Status.ExitStatus())
				}
			default:
				i.logger.Debug("Ignoring signal", "signal", sig.String())
			}
		case <-ctx.Done():
			err = ctx.Err()
			break loop
		}
	}

	sctx.Stop(time.Second)
	if werr := sctx.Wait(); werr != nil && err == nil && verb == "" {
		err = werr
	}
	return verb, err
}

func (i *Init) dispatch(sctx *stopper.Context, m ctl.Message, power chan<- system.Verb) {
	if m.IsTeardown() {
		select {
		case power <- system.Verb(m.Kind):
		default:
		}
		return
	}

	req := event.Request{Action: event.Reload}
	switch m.Kind {
	case ctl.Start:
		req = event.Request{Action: event.Start, Unit: unit.NewName(m.Unit), Level: m.Level}
	case ctl.Stop:
		req = event.Request{Action: event.Stop, Unit: unit.NewName(m.Unit), Level: m.Level}
	}

	sctx.Go(func(sctx *stopper.Context) error {
		i.handle(sctx, req)
		return nil
	})
}

func (i *Init) handle(ctx context.Context, req event.Request) {
	err := i.events.Handle(ctx, req)
	switch {
	case err == nil:
		i.logger.Info("Applied request", "action", req.Action.String(), "unit", req.Unit.String(), "level", req.Level)
	case errors.Is(err, event.ErrAlreadyInState):
		i.logger.Info("Nothing to do", "action", req.Action.String(), "unit", req.Unit.String(), "level", req.Level)
	default:
		i.logger.Error("Request failed", "action", req.Action.String(), "unit", req.Unit.String(), "level", req.Level, "error", err)
	}
}

// watchDatabase returns a task that issues a reload whenever the database
// file is replaced. The directory is watched because saves rename over the
// file.
func (i *Init) watchDatabase(sctx *stopper.Context) (func(*stopper.Context) error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(i.cfg.DBPath)); err != nil {
		_ = watcher.Close()
		return nil, err
	}
	sctx.Defer(func() { _ = watcher.Close() })

	base := filepath.Base(i.cfg.DBPath)
	return func(sctx *stopper.Context) error {
		for {
			select {
			case <-sctx.Stopping():
				return nil
			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Base(ev.Name) != base || !ev.Has(fsnotify.Create|fsnotify.Write) {
					continue
				}
				i.logger.Debug("Database changed on disk", "event", ev.String())
				i.handle(sctx, event.Request{Action: event.Reload})
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				i.logger.Warn("Database watch error", "error", err)
			}
		}
	}, nil
}

// untilStopping returns a context cancelled once sctx starts stopping.
func untilStopping(sctx *stopper.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(sctx)
	go func() {
		select {
		case <-sctx.Stopping():
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
