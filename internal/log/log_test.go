package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestInit(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
	}{
		{
			name:    "default logging level",
			verbose: false,
		},
		{
			name:    "verbose logging level",
			verbose: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Init(tt.verbose)
			logger := GetLogger()

			if logger == nil {
				t.Error("expected logger to be initialized, got nil")
			}
		})
	}
}

func TestGetLogger(t *testing.T) {
	Init(false)
	logger := GetLogger()

	if logger == nil {
		t.Error("GetLogger() returned nil")
	}

	if logger != defaultLogger {
		t.Error("GetLogger() returned different logger instance than initialized")
	}
}

func TestNewLoggerToLevels(t *testing.T) {
	var buf bytes.Buffer

	quiet := NewLoggerTo(&buf, false)
	quiet.Debug("hidden")
	quiet.Info("Started unit", "unit", "procfs")

	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("debug message logged without verbose: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "unit=procfs") {
		t.Errorf("info message missing attributes: %q", buf.String())
	}

	buf.Reset()
	NewLoggerTo(&buf, true).Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("debug message not logged with verbose: %q", buf.String())
	}
}
