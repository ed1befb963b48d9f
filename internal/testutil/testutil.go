// Package testutil provides common test utilities and helpers to reduce boilerplate in test files.
package testutil

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/trly/unitd/internal/config"
	"github.com/trly/unitd/internal/log"
)

// NewTestLogger creates a logger that writes to t.Logf for testing.
// This ensures test output is properly captured by the test framework.
func NewTestLogger(t testing.TB) log.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}

	// Create a custom handler that writes to t.Logf
	handler := &testHandler{t: t, opts: opts}
	slogLogger := slog.New(handler)

	return log.NewSlogAdapter(slogLogger)
}

// ConfigOption allows customization of test config settings.
type ConfigOption func(*config.Settings)

// WithDBPath sets a custom database path.
func WithDBPath(path string) ConfigOption {
	return func(cfg *config.Settings) {
		cfg.DBPath = path
	}
}

// WithUnitDir sets a custom unit declaration directory.
func WithUnitDir(dir string) ConfigOption {
	return func(cfg *config.Settings) {
		cfg.UnitDir = dir
	}
}

// WithVerbose sets verbose logging.
func WithVerbose(verbose bool) ConfigOption {
	return func(cfg *config.Settings) {
		cfg.Verbose = verbose
	}
}

// WithInteractive sets the boot failure prompt.
func WithInteractive(interactive bool) ConfigOption {
	return func(cfg *config.Settings) {
		cfg.Interactive = interactive
	}
}

// NewMockConfig creates a config provider for testing with optional customizations.
// Every path points into a per-test temporary directory.
func NewMockConfig(t testing.TB, opts ...ConfigOption) config.Provider {
	tmpDir := t.TempDir()

	cfg := config.Defaults()
	cfg.DBPath = filepath.Join(tmpDir, "unitd.db")
	cfg.UnitDir = filepath.Join(tmpDir, "units")
	cfg.PipePath = filepath.Join(tmpDir, "unitd.pipe")
	cfg.Interactive = false
	cfg.TeardownGrace = 0
	cfg.Verbose = true

	// Apply any custom options
	for _, opt := range opts {
		opt(cfg)
	}

	configProvider := config.NewDefaultConfigProvider()
	configProvider.SetConfig(cfg)
	return configProvider
}

// testHandler implements slog.Handler to write to testing.TB.
type testHandler struct {
	t     testing.TB
	opts  *slog.HandlerOptions
	attrs []slog.Attr
}

func (h *testHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (h *testHandler) Handle(_ context.Context, record slog.Record) error {
	args := make([]any, 0, len(h.attrs)+record.NumAttrs())
	for _, a := range h.attrs {
		args = append(args, a)
	}
	record.Attrs(func(a slog.Attr) bool {
		args = append(args, a)
		return true
	})
	h.t.Logf("[%s] %s %v", record.Level.String(), record.Message, args)
	return nil
}

func (h *testHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &testHandler{t: h.t, opts: h.opts, attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...)}
}

func (h *testHandler) WithGroup(_ string) slog.Handler {
	return &testHandler{t: h.t, opts: h.opts, attrs: h.attrs}
}
