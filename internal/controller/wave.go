package controller

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/trly/unitd/internal/unit"
)

// Result is the outcome of running hooks on one unit.
type Result int

// Unit results.
const (
	Started Result = iota
	Skipped
	Failed
	Stopped
)

func (r Result) String() string {
	switch r {
	case Started:
		return "started"
	case Skipped:
		return "skipped"
	case Stopped:
		return "stopped"
	default:
		return "failed"
	}
}

// Outcome reports what happened to one unit of a wave.
type Outcome struct {
	Unit   unit.Name
	Result Result
	Err    error
}

// StartUnit prepares u and starts it when preparation allows.
func StartUnit(ctx context.Context, u unit.Unit) Outcome {
	out := Outcome{Unit: u.Name()}

	ok, err := u.Prepare(ctx)
	switch {
	case err != nil:
		out.Result, out.Err = Failed, fmt.Errorf("preparing %s: %w", u.Name(), err)
	case !ok:
		out.Result = Skipped
	default:
		if err := u.Start(ctx); err != nil {
			out.Result, out.Err = Failed, fmt.Errorf("starting %s: %w", u.Name(), err)
		} else {
			out.Result = Started
		}
	}
	return out
}

// StopUnit stops u and tears it down. Both hooks always run.
func StopUnit(ctx context.Context, u unit.Unit) Outcome {
	out := Outcome{Unit: u.Name(), Result: Stopped}

	if err := u.Stop(ctx); err != nil {
		out.Result, out.Err = Failed, fmt.Errorf("stopping %s: %w", u.Name(), err)
	}
	if err := u.Teardown(ctx); err != nil && out.Err == nil {
		out.Result, out.Err = Failed, fmt.Errorf("tearing down %s: %w", u.Name(), err)
	}
	return out
}

// RunWave applies fn to every unit concurrently and returns the outcomes in
// input order once all of them finished.
func RunWave(ctx context.Context, wave []unit.Unit, fn func(context.Context, unit.Unit) Outcome) []Outcome {
	outcomes := make([]Outcome, len(wave))

	var g errgroup.Group
	for i, u := range wave {
		g.Go(func() error {
			outcomes[i] = fn(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}
