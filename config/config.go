// Package config loads the settings of a solclock process from a config
// file, SOLCLOCK_* environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sarchlab/solclock/logging"
	"github.com/sarchlab/solclock/marstime"
)

// EnvPrefix prefixes every environment variable read by the loader. The key
// clock.time_ratio is read from SOLCLOCK_CLOCK_TIME_RATIO.
const EnvPrefix = "SOLCLOCK"

// Config holds all the settings.
type Config struct {
	Clock     ClockConfig     `mapstructure:"clock"`
	Events    EventsConfig    `mapstructure:"events"`
	Log       LogConfig       `mapstructure:"log"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Recording RecordingConfig `mapstructure:"recording"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ClockConfig configures the master clock.
type ClockConfig struct {
	// Start is a time stamp such as 01-Adir-01:000.000.
	Start              string        `mapstructure:"start"`
	MissionSol         int           `mapstructure:"mission_sol"`
	TimeRatio          float64       `mapstructure:"time_ratio"`
	TickInterval       time.Duration `mapstructure:"tick_interval"`
	MaxElapsedPerPulse float64       `mapstructure:"max_elapsed_per_pulse"`
	FailureLogRate     float64       `mapstructure:"failure_log_rate"`
	FailureLogBurst    int           `mapstructure:"failure_log_burst"`
}

// EventsConfig configures the event manager.
type EventsConfig struct {
	MaxFiringsPerPulse int `mapstructure:"max_firings_per_pulse"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MonitorConfig configures the HTTP monitor.
type MonitorConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Port        int  `mapstructure:"port"`
	OpenBrowser bool `mapstructure:"open_browser"`
}

// RecordingConfig configures the SQLite recorder.
type RecordingConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	BatchSize int    `mapstructure:"batch_size"`
}

// MetricsConfig configures the Prometheus collector.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

var defaults = map[string]any{
	"clock.start":                 "01-Adir-01:000.000",
	"clock.mission_sol":           1,
	"clock.time_ratio":            1000.0,
	"clock.tick_interval":         100 * time.Millisecond,
	"clock.max_elapsed_per_pulse": 0.0,
	"clock.failure_log_rate":      1.0,
	"clock.failure_log_burst":     10,

	"events.max_firings_per_pulse": 0,

	"log.level":  "info",
	"log.format": "text",

	"monitor.enabled":      false,
	"monitor.port":         0,
	"monitor.open_browser": false,

	"recording.enabled":    false,
	"recording.path":       "",
	"recording.batch_size": 1000,

	"metrics.enabled": false,
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		panic(err)
	}

	return c
}

// A Loader reads the configuration. Flags bound to keys override the
// environment, which overrides the config file, which overrides defaults.
type Loader struct {
	v       *viper.Viper
	envFile string
}

// NewLoader creates a loader that reads SOLCLOCK_* variables and, if
// present, a .env file in the working directory.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	return &Loader{v: v, envFile: ".env"}
}

// WithEnvFile sets the dotenv file to load. An empty name disables it.
func (l *Loader) WithEnvFile(name string) *Loader {
	l.envFile = name
	return l
}

// BindFlag lets a command line flag set a key when the flag is given.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("no flag for config key %q", key)
	}

	return l.v.BindPFlag(key, flag)
}

// Load reads the configuration. An empty configFile means no file.
func (l *Loader) Load(configFile string) (Config, error) {
	if l.envFile != "" {
		err := godotenv.Load(l.envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", l.envFile, err)
		}
	}

	if configFile != "" {
		l.v.SetConfigFile(configFile)
		if err := l.v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", configFile, err)
		}
	}

	var c Config
	if err := l.v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

// Validate checks the settings.
func (c Config) Validate() error {
	var errs []error

	if _, err := c.Clock.StartTime(); err != nil {
		errs = append(errs, err)
	}

	if c.Clock.TimeRatio <= 0 {
		errs = append(errs, fmt.Errorf("clock.time_ratio must be positive, got %v", c.Clock.TimeRatio))
	}

	if c.Clock.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("clock.tick_interval must be positive, got %v", c.Clock.TickInterval))
	}

	if c.Clock.MaxElapsedPerPulse < 0 {
		errs = append(errs, errors.New("clock.max_elapsed_per_pulse cannot be negative"))
	}

	if c.Events.MaxFiringsPerPulse < 0 {
		errs = append(errs, errors.New("events.max_firings_per_pulse cannot be negative"))
	}

	if _, err := logging.GetLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	if _, err := logging.GetFormatter(c.Log.Format); err != nil {
		errs = append(errs, err)
	}

	if c.Monitor.Port < 0 || c.Monitor.Port > 65535 {
		errs = append(errs, fmt.Errorf("monitor.port out of range: %d", c.Monitor.Port))
	}

	if c.Recording.BatchSize < 1 {
		errs = append(errs, errors.New("recording.batch_size must be at least 1"))
	}

	return errors.Join(errs...)
}

// StartTime returns the configured start of the simulation.
func (c ClockConfig) StartTime() (marstime.MarsTime, error) {
	t, err := marstime.Parse(c.Start)
	if err != nil {
		return marstime.MarsTime{}, fmt.Errorf("clock.start: %w", err)
	}

	t, err = marstime.New(t.Orbit(), t.Month(), t.SolOfMonth(), t.Millisol(), c.MissionSol)
	if err != nil {
		return marstime.MarsTime{}, fmt.Errorf("clock.mission_sol: %w", err)
	}

	return t, nil
}
