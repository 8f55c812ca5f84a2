package alert

import (
	"time"

	"codeberg.org/mutker/sysmond/internal/errors"
)

const (
	defaultDirPerm = 0o755

	// rollingWindow is the sample count backing sustained and anomaly
	// evaluation.
	rollingWindow = 60

	// sustainedSamples is the minimum window fill before a sustained rule
	// can fire.
	sustainedSamples = 30
)

type Config struct {
	DBPath string
	// MaxEvents bounds the in-memory and persisted event log.
	MaxEvents int
	// EventRetention is the age cutoff applied when loading events.
	EventRetention time.Duration
	// Clock returns the current time; tests substitute a fake.
	Clock func() time.Time
}

func DefaultConfig() Config {
	return Config{
		DBPath:         "/var/lib/sysmond/sysmond.db",
		MaxEvents:      1000,
		EventRetention: 7 * 24 * time.Hour,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.MaxEvents < 1 {
		return errFactory.WithData(errors.ErrInvalidConfig, c.MaxEvents)
	}
	if c.EventRetention <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, c.EventRetention)
	}

	return nil
}
