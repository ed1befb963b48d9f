// Package config provides configuration management for unitd.
package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

// Provider defines the interface for configuration providers.
type Provider interface {
	// GetConfig returns the current application configuration.
	GetConfig() *Settings
	// SetConfig sets the application configuration.
	SetConfig(c *Settings)
	// InitConfig initializes the application configuration.
	InitConfig() *Settings
	// SetConfigFilePath sets the configuration file path.
	SetConfigFilePath(p string)
}

// defaultConfigProvider implements the Provider interface.
type defaultConfigProvider struct {
	cfg *Settings
}

// NewDefaultConfigProvider creates a new default config provider.
func NewDefaultConfigProvider() Provider {
	return &defaultConfigProvider{}
}

var defaultProvider = NewDefaultConfigProvider()

// Default configuration values.
const (
	DefaultDBPath         = "/var/lib/unitd/unitd.db"
	DefaultUnitDir        = "/etc/unitd/units"
	DefaultPipePath       = "/run/unitd.pipe"
	DefaultSupervisorPath = ""
	DefaultPath           = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"
	DefaultInteractive    = true
	DefaultTeardownGrace  = 3 * time.Second
	DefaultWatchDatabase  = false
	DefaultVerbose        = false
	DefaultEmergencyShell = "/bin/sh"
)

// EnvPrefix is the prefix of environment overrides, e.g. UNITD_DBPATH.
const EnvPrefix = "UNITD"

// Settings represents the configuration of unitd.
type Settings struct {
	// DBPath is the enable database file.
	DBPath string `yaml:"dbPath"`
	// UnitDir holds unit declaration files.
	UnitDir string `yaml:"unitDir"`
	// PipePath is the control FIFO read by init.
	PipePath string `yaml:"pipePath"`
	// SupervisorPath is the binary run as `supervise`; empty means this executable.
	SupervisorPath string `yaml:"supervisorPath"`
	// Path is exported as PATH at boot.
	Path string `yaml:"path"`
	// Interactive enables the prompt on unrecoverable boot failures.
	Interactive bool `yaml:"interactive"`
	// TeardownGrace is the wait between SIGTERM and SIGKILL at shutdown.
	TeardownGrace time.Duration `yaml:"teardownGrace"`
	// WatchDatabase reloads the database when the file changes.
	WatchDatabase  bool   `yaml:"watchDatabase"`
	EmergencyShell string `yaml:"emergencyShell"`
	Verbose        bool   `yaml:"verbose"`
}

func (p *defaultConfigProvider) SetConfig(c *Settings) {
	p.cfg = c
}

func (p *defaultConfigProvider) GetConfig() *Settings {
	return p.cfg
}

func (p *defaultConfigProvider) SetConfigFilePath(path string) {
	viper.SetConfigFile(path)
}

func (p *defaultConfigProvider) InitConfig() *Settings {
	p.cfg = initConfigInternal()
	return p.cfg
}

// SetConfig sets the application configuration.
func SetConfig(c *Settings) {
	defaultProvider.SetConfig(c)
}

// GetConfig returns the current application configuration.
func GetConfig() *Settings {
	return defaultProvider.GetConfig()
}

// SetConfigFilePath sets the configuration file path.
func SetConfigFilePath(p string) {
	defaultProvider.SetConfigFilePath(p)
}

// InitConfig initializes the application configuration.
func InitConfig() *Settings {
	return defaultProvider.InitConfig()
}

// Defaults returns the built-in settings.
func Defaults() *Settings {
	return &Settings{
		DBPath:         DefaultDBPath,
		UnitDir:        DefaultUnitDir,
		PipePath:       DefaultPipePath,
		SupervisorPath: DefaultSupervisorPath,
		Path:           DefaultPath,
		Interactive:    DefaultInteractive,
		TeardownGrace:  DefaultTeardownGrace,
		WatchDatabase:  DefaultWatchDatabase,
		EmergencyShell: DefaultEmergencyShell,
		Verbose:        DefaultVerbose,
	}
}

func initConfigInternal() *Settings {
	cfg := Defaults()

	viper.SetDefault("dbPath", DefaultDBPath)
	viper.SetDefault("unitDir", DefaultUnitDir)
	viper.SetDefault("pipePath", DefaultPipePath)
	viper.SetDefault("supervisorPath", DefaultSupervisorPath)
	viper.SetDefault("path", DefaultPath)
	viper.SetDefault("interactive", DefaultInteractive)
	viper.SetDefault("teardownGrace", DefaultTeardownGrace)
	viper.SetDefault("watchDatabase", DefaultWatchDatabase)
	viper.SetDefault("emergencyShell", DefaultEmergencyShell)
	viper.SetDefault("verbose", DefaultVerbose)

	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(os.ExpandEnv("$HOME/.config/unitd"))
	viper.AddConfigPath("/etc/unitd")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		panic(err)
	}

	return cfg
}
