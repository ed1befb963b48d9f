package controller

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/trly/unitd/internal/unit"
)

// CriticalPolicy decides whether boot goes on after an unrecoverable failure.
type CriticalPolicy interface {
	Continue(ctx context.Context, name unit.Name, err error) (bool, error)
}

// Abort stops boot on the first unrecoverable failure.
type Abort struct{}

// Continue implements CriticalPolicy.
func (Abort) Continue(context.Context, unit.Name, error) (bool, error) {
	return false, nil
}

// Prompt asks the operator on Out and reads y or n from In.
type Prompt struct {
	In  io.Reader
	Out io.Writer
}

// Continue implements CriticalPolicy. It asks again until the answer starts
// with y or n.
func (p Prompt) Continue(_ context.Context, name unit.Name, cause error) (bool, error) {
	r := bufio.NewReader(p.In)
	for {
		_, _ = fmt.Fprintf(p.Out, "critical unit %s failed: %v\ncontinue? [y/n]: ", name, cause)

		line, err := r.ReadString('\n')
		switch answer := strings.ToLower(strings.TrimSpace(line)); {
		case strings.HasPrefix(answer, "y"):
			return true, nil
		case strings.HasPrefix(answer, "n"):
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("failed to read answer: %w", err)
		}
	}
}
