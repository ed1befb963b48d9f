package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trly/unitd/internal/supervisor"
	"github.com/trly/unitd/internal/unit"
)

func TestNewTestLogger(t *testing.T) {
	logger := NewTestLogger(t)
	assert.NotNil(t, logger)

	// Test that we can call logger methods without panic
	logger.Debug("test debug message", "unit", "procfs")
	logger.Info("test info message")
	logger.Warn("test warn message")
	logger.Error("test error message")
}

func TestNewMockConfig(t *testing.T) {
	t.Run("default config", func(t *testing.T) {
		provider := NewMockConfig(t)
		require.NotNil(t, provider)

		cfg := provider.GetConfig()
		require.NotNil(t, cfg)
		assert.True(t, cfg.Verbose)
		assert.False(t, cfg.Interactive)
		assert.NotEmpty(t, cfg.DBPath)
		assert.NotEqual(t, "/var/lib/unitd/unitd.db", cfg.DBPath)
	})

	t.Run("with options", func(t *testing.T) {
		provider := NewMockConfig(t,
			WithDBPath("/custom/unitd.db"),
			WithUnitDir("/custom/units"),
			WithVerbose(false),
			WithInteractive(true))

		cfg := provider.GetConfig()
		assert.Equal(t, "/custom/unitd.db", cfg.DBPath)
		assert.Equal(t, "/custom/units", cfg.UnitDir)
		assert.False(t, cfg.Verbose)
		assert.True(t, cfg.Interactive)
	})
}

func TestNullUnit(t *testing.T) {
	ctx := context.Background()
	u := NewNullUnit("a", unit.Dependencies{Needs: unit.Names("b")})
	u.StopErr = errors.New("busy")

	ok, err := u.Prepare(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, u.Start(ctx))
	assert.Error(t, u.Stop(ctx))
	require.NoError(t, u.Teardown(ctx))

	assert.Equal(t, []string{"prepare", "start", "stop", "teardown"}, u.Calls())
	assert.Equal(t, unit.Names("b"), Infos(u)[unit.NewName("a")].Dependencies.Needs)
}

func TestLauncher(t *testing.T) {
	l := &Launcher{}
	pid, err := l.Launch(context.Background(), supervisor.NewOptions("/bin/true"))
	require.NoError(t, err)
	assert.Equal(t, 1001, pid)
	require.NoError(t, l.Kill(context.Background(), pid))
	assert.Equal(t, []int{1001}, l.Killed)
	assert.Equal(t, []string{"/bin/true"}, l.Launched)
}
