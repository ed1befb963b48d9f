package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to reset viper and config.
func resetViper() {
	viper.Reset()
}

func TestInitConfigDefaults(t *testing.T) {
	resetViper()

	// Prevent viper from loading any real config files
	t.Setenv("HOME", t.TempDir())

	provider := NewDefaultConfigProvider()
	cfg := provider.InitConfig()

	assert.Equal(t, DefaultDBPath, cfg.DBPath)
	assert.Equal(t, DefaultUnitDir, cfg.UnitDir)
	assert.Equal(t, DefaultPipePath, cfg.PipePath)
	assert.Equal(t, DefaultPath, cfg.Path)
	assert.Equal(t, DefaultInteractive, cfg.Interactive)
	assert.Equal(t, DefaultTeardownGrace, cfg.TeardownGrace)
	assert.False(t, cfg.WatchDatabase)
	assert.Equal(t, cfg, provider.GetConfig())
}

func TestSetAndGetConfig(t *testing.T) {
	resetViper()
	testConfig := &Settings{
		DBPath:        "/tmp/unitd.db",
		UnitDir:       "/tmp/units",
		Interactive:   false,
		TeardownGrace: time.Second,
	}

	SetConfig(testConfig)
	assert.Equal(t, testConfig, GetConfig())
}

func TestCustomConfigFile(t *testing.T) {
	resetViper()
	t.Setenv("HOME", t.TempDir())

	tmpfile, err := os.CreateTemp(t.TempDir(), "config.*.yaml")
	require.NoError(t, err)

	configContent := `dbPath: "/data/unitd.db"
unitDir: "/data/units"
teardownGrace: 10s
interactive: false
watchDatabase: true
`
	_, err = tmpfile.WriteString(configContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	provider := NewDefaultConfigProvider()
	provider.SetConfigFilePath(tmpfile.Name())
	cfg := provider.InitConfig()

	assert.Equal(t, "/data/unitd.db", cfg.DBPath)
	assert.Equal(t, "/data/units", cfg.UnitDir)
	assert.Equal(t, 10*time.Second, cfg.TeardownGrace)
	assert.False(t, cfg.Interactive)
	assert.True(t, cfg.WatchDatabase)
	assert.Equal(t, DefaultPipePath, cfg.PipePath)
}

func TestEnvironmentOverride(t *testing.T) {
	resetViper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("UNITD_PIPEPATH", "/tmp/unitd.pipe")

	cfg := NewDefaultConfigProvider().InitConfig()
	assert.Equal(t, "/tmp/unitd.pipe", cfg.PipePath)
}
