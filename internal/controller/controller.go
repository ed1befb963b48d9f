// Package controller boots the system level by level and tears it down in
// reverse.
package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/trly/unitd/internal/db"
	"github.com/trly/unitd/internal/loader"
	"github.com/trly/unitd/internal/log"
	"github.com/trly/unitd/internal/unit"
)

// ErrBootAborted is returned when a critical unit failed and boot was not
// continued.
var ErrBootAborted = errors.New("boot aborted")

// Controller walks the loader's plans.
type Controller struct {
	loader *loader.Loader
	policy CriticalPolicy
	logger log.Logger
}

// New creates a Controller. A nil policy aborts on critical failures.
func New(l *loader.Loader, policy CriticalPolicy, logger log.Logger) *Controller {
	if policy == nil {
		policy = Abort{}
	}
	return &Controller{loader: l, policy: policy, logger: logger}
}

// Boot starts every level in ascending order. A defaulted database is
// persisted afterwards.
func (c *Controller) Boot(ctx context.Context) error {
	var levels int
	if err := c.loader.Do(ctx, func(l *loader.Loader) { levels = l.LevelCount() }); err != nil {
		return err
	}

	// A unit pulled into several levels is started by the lowest one only.
	attempted := make(unit.NameSet)
	for i := 0; i < levels; i++ {
		c.logger.Info("Starting level", "level", i)
		if err := c.bootLevel(ctx, i, attempted); err != nil {
			return err
		}
	}

	var persistErr error
	if err := c.loader.Do(ctx, func(l *loader.Loader) {
		if l.Defaulted() {
			persistErr = l.Persist()
		}
	}); err != nil {
		return err
	}
	if persistErr != nil {
		c.logger.Warn("Failed to write database", "error", persistErr)
	}
	return nil
}

func (c *Controller) bootLevel(ctx context.Context, level int, attempted unit.NameSet) error {
	var waves [][]unit.Unit
	var err error
	if doErr := c.loader.Do(ctx, func(l *loader.Loader) { waves, err = l.Waves(level) }); doErr != nil {
		return doErr
	}
	if err != nil {
		return err
	}

	for j, wave := range waves {
		pending := make([]unit.Unit, 0, len(wave))
		for _, u := range wave {
			if attempted.Has(u.Name()) {
				continue
			}
			attempted.Add(u.Name())
			pending = append(pending, u)
		}
		if len(pending) == 0 {
			continue
		}

		c.logger.Debug("Starting wave", "level", level, "wave", j, "units", len(pending))
		outcomes := RunWave(ctx, pending, StartUnit)

		if err := c.loader.Do(ctx, func(l *loader.Loader) {
			for _, o := range outcomes {
				if o.Result == Started {
					l.MarkStarted(level, o.Unit)
				}
			}
		}); err != nil {
			return err
		}

		for _, o := range outcomes {
			if err := c.report(ctx, o); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Controller) report(ctx context.Context, o Outcome) error {
	switch o.Result {
	case Started:
		c.logger.Debug("Started unit", "unit", o.Unit.String())
		return nil
	case Skipped:
		c.logger.Warn("Failed preparations, skipping unit", "unit", o.Unit.String())
		return nil
	}

	if unit.IsRecoverable(o.Err) {
		c.logger.Warn("Unit failed", "unit", o.Unit.String(), "error", o.Err)
		return nil
	}

	c.logger.Error("Critical unit failed", "unit", o.Unit.String(), "error", o.Err)
	ok, err := c.policy.Continue(ctx, o.Unit, o.Err)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBootAborted, err)
	}
	if !ok {
		return fmt.Errorf("%w: %w", ErrBootAborted, o.Err)
	}
	return nil
}

// Teardown stops every started unit, levels in descending order. Failures
// are logged and never interrupt the walk. Running units the level's plan no
// longer lists are stopped after its last wave.
func (c *Controller) Teardown(ctx context.Context) error {
	var levels int
	if err := c.loader.Do(ctx, func(l *loader.Loader) { levels = l.LevelCount() }); err != nil {
		return err
	}

	for i := levels - 1; i >= 0; i-- {
		c.logger.Info("Stopping level", "level", i)

		var waves [][]unit.Unit
		var started unit.NameSet
		var err error
		if doErr := c.loader.Do(ctx, func(l *loader.Loader) {
			started = l.Started(i)
			waves, err = l.Waves(i)
			if err != nil {
				return
			}
			listed := make(unit.NameSet)
			for _, wave := range waves {
				for _, u := range wave {
					listed.Add(u.Name())
				}
			}
			if extra := started.Difference(listed); len(extra) > 0 {
				waves = append(waves, l.Handles(db.Level{extra.Sorted()})...)
			}
		}); doErr != nil {
			return doErr
		}
		if err != nil {
			c.logger.Warn("Failed to read level", "level", i, "error", err)
			continue
		}

		for _, wave := range waves {
			running := make([]unit.Unit, 0, len(wave))
			for _, u := range wave {
				if started.Has(u.Name()) {
					running = append(running, u)
				}
			}

			outcomes := RunWave(ctx, running, StopUnit)
			for _, o := range outcomes {
				if o.Err != nil {
					c.logger.Warn("Failed to stop unit", "unit", o.Unit.String(), "error", o.Err)
				}
			}

			if err := c.loader.Do(ctx, func(l *loader.Loader) {
				for _, o := range outcomes {
					l.MarkStopped(i, o.Unit)
				}
			}); err != nil {
				return err
			}
		}
	}
	return nil
}
