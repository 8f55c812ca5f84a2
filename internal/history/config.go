package history

import (
	"time"

	"codeberg.org/mutker/sysmond/internal/errors"
)

const defaultDirPerm = 0o755

type Config struct {
	DBPath string
	// MaxPoints bounds the in-memory and persisted point log.
	MaxPoints int
	// MaxSessions bounds the session log.
	MaxSessions int
	// PointRetention is the age cutoff applied when loading points.
	PointRetention time.Duration
	// AutosaveInterval is the cadence of the background point flush.
	AutosaveInterval time.Duration
	// Clock returns the current time; tests substitute a fake.
	Clock func() time.Time
}

func DefaultConfig() Config {
	return Config{
		DBPath:           "/var/lib/sysmond/sysmond.db",
		MaxPoints:        86400,
		MaxSessions:      100,
		PointRetention:   24 * time.Hour,
		AutosaveInterval: 60 * time.Second,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.MaxPoints < 1 || c.MaxSessions < 1 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "history capacities must be positive")
	}
	if c.PointRetention <= 0 || c.AutosaveInterval <= 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "history intervals must be positive")
	}

	return nil
}
