package cmd

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/trly/unitd/internal/system"
	"github.com/trly/unitd/internal/testutil"
	"github.com/trly/unitd/internal/unit"
	"github.com/trly/unitd/internal/units"
)

func init() {
	color.NoColor = true
}

// ExecuteCommandWithCapture executes a cobra command and captures its output.
func ExecuteCommandWithCapture(t *testing.T, cmd *cobra.Command, args []string) (output string, err error) {
	t.Helper()

	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return buf.String(), err
}

// ExecuteCommand is a simpler helper for commands that don't need output capture.
func ExecuteCommand(t *testing.T, cmd *cobra.Command, args []string) error {
	t.Helper()
	_, err := ExecuteCommandWithCapture(t, cmd, args)
	return err
}

// AssertCommandOutput verifies command output contains expected strings.
func AssertCommandOutput(t *testing.T, cmd *cobra.Command, args []string, expectedOutputs ...string) {
	t.Helper()
	output, err := ExecuteCommandWithCapture(t, cmd, args)
	assert.NoError(t, err)

	for _, expected := range expectedOutputs {
		assert.Contains(t, output, expected, "Expected output to contain: %s\nActual output: %s", expected, output)
	}
}

// AssertCommandFailure verifies a command fails with expected error.
func AssertCommandFailure(t *testing.T, cmd *cobra.Command, args []string, expectedError string) {
	t.Helper()
	_, err := ExecuteCommandWithCapture(t, cmd, args)
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), expectedError)
	}
}

// SetupCommandContext creates a command with app context for testing.
func SetupCommandContext(cmd *cobra.Command, app *App) {
	cmd.SetContext(withApp(context.Background(), app))
}

// fakeKernel records power syscalls instead of making them.
type fakeKernel struct {
	mu    sync.Mutex
	calls []string
}

func (k *fakeKernel) KillAll(sig unix.Signal) error {
	k.record(fmt.Sprintf("kill:%v", sig))
	return nil
}

func (k *fakeKernel) Sync() { k.record("sync") }

func (k *fakeKernel) Reboot(v system.Verb) error {
	k.record("reboot:" + string(v))
	return nil
}

func (k *fakeKernel) record(call string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.calls = append(k.calls, call)
}

func (k *fakeKernel) Calls() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]string(nil), k.calls...)
}

// AppBuilder builds an App backed by temporary paths and fakes.
type AppBuilder struct {
	app  *App
	noDB bool
}

// NewAppBuilder starts an App whose database and unit directory live in a
// temporary directory and whose baked units are a, and b needing a.
func NewAppBuilder(t *testing.T) *AppBuilder {
	t.Helper()
	provider := testutil.NewMockConfig(t)

	var deps unit.Dependencies
	deps.Need(unit.NewName("a"))

	return &AppBuilder{app: &App{
		Logger:         testutil.NewTestLogger(t),
		Config:         provider.GetConfig(),
		ConfigProvider: provider,
		Kernel:         &fakeKernel{},
		Host:           units.Linux{},
		IsRoot:         func() bool { return true },
		Baked: []unit.Unit{
			testutil.NewNullUnit("a", unit.Dependencies{}),
			testutil.NewNullUnit("b", deps),
		},
	}}
}

// WithRoot sets whether the caller counts as root.
func (b *AppBuilder) WithRoot(root bool) *AppBuilder {
	b.app.IsRoot = func() bool { return root }
	return b
}

// WithBaked replaces the compiled-in units.
func (b *AppBuilder) WithBaked(baked ...unit.Unit) *AppBuilder {
	b.app.Baked = baked
	return b
}

// WithoutDatabase skips writing the default database.
func (b *AppBuilder) WithoutDatabase() *AppBuilder {
	b.noDB = true
	return b
}

// Build writes the default database for the baked units and returns the App.
func (b *AppBuilder) Build(t *testing.T) *App {
	t.Helper()
	if !b.noDB {
		d, err := units.DefaultDatabase(b.app.Baked)
		require.NoError(t, err)
		require.NoError(t, b.app.SaveDatabase(d))
	}
	return b.app
}
