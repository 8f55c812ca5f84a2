package config

import (
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/sysmond/internal/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel = "info"

	defaultInterval        = 1.0
	defaultHistoryLength   = 60
	defaultProcessCount    = 10
	defaultProcessInterval = 2.0
	defaultBatteryInterval = 5.0
	defaultAutosaveSeconds = 60
	defaultMaxPoints       = 86400
	defaultMaxEvents       = 1000
	defaultMaxSessions     = 100
	defaultDBPath          = "/var/lib/sysmond/sysmond.db"
)

// Allowed values for the user-facing enumerated settings.
var (
	allowedIntervals      = []float64{0.5, 1, 2, 5}
	allowedHistoryLengths = []int{30, 60, 120, 300}
)

type Config struct {
	Interval        float64 `mapstructure:"interval"`
	HistoryLength   int     `mapstructure:"history_length"`
	ProcessCount    int     `mapstructure:"process_count"`
	ProcessInterval float64 `mapstructure:"process_interval"`
	BatteryInterval float64 `mapstructure:"battery_interval"`
	NoAlerts        bool    `mapstructure:"no_alerts"`
	Database        string  `mapstructure:"database"`
	LogLevel        string  `mapstructure:"log_level"`
	Debug           bool    `mapstructure:"debug"`
	Verbose         bool    `mapstructure:"verbose"`
}

// Load reads configuration from flags, an optional TOML file and the
// environment. Flags take precedence over the file, the file over defaults.
// The config file is looked up in /etc unless SYSMOND_CONFIG points
// elsewhere.
func Load() (*Config, error) {
	errFactory := errors.New()

	v := viper.New()
	v.SetDefault("interval", defaultInterval)
	v.SetDefault("history_length", defaultHistoryLength)
	v.SetDefault("process_count", defaultProcessCount)
	v.SetDefault("process_interval", defaultProcessInterval)
	v.SetDefault("battery_interval", defaultBatteryInterval)
	v.SetDefault("no_alerts", false)
	v.SetDefault("database", defaultDBPath)
	v.SetDefault("log_level", DefaultLogLevel)

	flags := pflag.NewFlagSet("sysmond", pflag.ContinueOnError)
	// Tolerate foreign flags so Load works inside test binaries.
	flags.ParseErrorsWhitelist.UnknownFlags = true
	flags.Float64("interval", defaultInterval, "Seconds between sampling ticks (0.5, 1, 2 or 5)")
	flags.Int("history-length", defaultHistoryLength, "Sparkline history length in samples (30, 60, 120 or 300)")
	flags.Int("process-count", defaultProcessCount, "Number of top processes to keep per tick")
	flags.Float64("process-interval", defaultProcessInterval, "Seconds between process enumerations")
	flags.Float64("battery-interval", defaultBatteryInterval, "Seconds between battery reads")
	flags.Bool("no-alerts", false, "Sample and record without evaluating alert rules")
	flags.String("database", defaultDBPath, "Path to the history database")
	flags.String("log-level", DefaultLogLevel, "Log level (debug, info, warning, error)")
	flags.Bool("debug", false, "Enable debugging mode")
	flags.Bool("verbose", false, "Enable verbose logging")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v.SetConfigName("sysmond")
	v.SetConfigType("toml")
	v.AddConfigPath("/etc")
	if path := os.Getenv("SYSMOND_CONFIG"); path != "" {
		v.SetConfigFile(path)
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return nil, errFactory.WithMessage(errors.ErrReadConfig, "Failed to read config file").WithData(err.Error())
			}
		}
	}

	v.SetEnvPrefix("SYSMOND")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	flags.Visit(func(f *pflag.Flag) {
		v.Set(strings.ReplaceAll(f.Name, "-", "_"), f.Value.String())
	})

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	applyLogLevel(config)

	return config, nil
}

// Validate rejects out-of-range settings before they are applied.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !containsFloat(allowedIntervals, c.Interval) {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}
	if !containsInt(allowedHistoryLengths, c.HistoryLength) {
		return errFactory.WithData(errors.ErrInvalidConfig, c.HistoryLength)
	}
	if c.ProcessCount < 1 || c.ProcessCount > 100 {
		return errFactory.WithData(errors.ErrInvalidConfig, c.ProcessCount)
	}
	if c.ProcessInterval < c.Interval {
		return errFactory.WithMessage(errors.ErrInvalidInterval, "process_interval below sampling interval")
	}
	if c.BatteryInterval < c.Interval {
		return errFactory.WithMessage(errors.ErrInvalidInterval, "battery_interval below sampling interval")
	}
	if c.Database == "" {
		return errFactory.New(errors.ErrMissingConfig)
	}
	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	return nil
}

// TickInterval returns the sampling interval as a duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Interval * float64(time.Second))
}

// ProcessThrottle returns the minimum time between process enumerations.
func (c *Config) ProcessThrottle() time.Duration {
	return time.Duration(c.ProcessInterval * float64(time.Second))
}

// BatteryThrottle returns the minimum time between battery reads.
func (c *Config) BatteryThrottle() time.Duration {
	return time.Duration(c.BatteryInterval * float64(time.Second))
}

// AutosaveInterval returns how often history is flushed to disk.
func (c *Config) AutosaveInterval() time.Duration {
	return defaultAutosaveSeconds * time.Second
}

// MaxHistoryPoints returns the capacity of the durable history log.
func (c *Config) MaxHistoryPoints() int { return defaultMaxPoints }

// MaxAlertEvents returns the capacity of the alert event log.
func (c *Config) MaxAlertEvents() int { return defaultMaxEvents }

// MaxSessions returns the capacity of the session summary log.
func (c *Config) MaxSessions() int { return defaultMaxSessions }

func applyLogLevel(c *Config) {
	switch {
	case c.Debug:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case c.Verbose:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	default:
		switch LogLevel(c.LogLevel) {
		case LogLevelDebug:
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		case LogLevelInfo:
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		case LogLevelWarning:
			zerolog.SetGlobalLevel(zerolog.WarnLevel)
		case LogLevelError:
			zerolog.SetGlobalLevel(zerolog.ErrorLevel)
		}
	}
}

func containsFloat(values []float64, v float64) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func containsInt(values []int, v int) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
