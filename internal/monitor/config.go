package monitor

import (
	"time"

	"codeberg.org/mutker/sysmond/internal/errors"
)

type Config struct {
	// Interval between sampling ticks.
	Interval time.Duration
	// ProcessThrottle is the minimum time between process enumerations.
	ProcessThrottle time.Duration
	// BatteryThrottle is the minimum time between battery and thermal
	// reads; the two share a cadence.
	BatteryThrottle time.Duration
	// HistoryLength is the sparkline ring buffer capacity in samples.
	HistoryLength int
	// ProcessCount is how many top processes each snapshot retains.
	ProcessCount int
	// Clock returns the current time; tests substitute a fake.
	Clock func() time.Time
}

func DefaultConfig() Config {
	return Config{
		Interval:        time.Second,
		ProcessThrottle: 2 * time.Second,
		BatteryThrottle: 5 * time.Second,
		HistoryLength:   60,
		ProcessCount:    10,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}
	if c.ProcessThrottle < c.Interval || c.BatteryThrottle < c.Interval {
		return errFactory.WithMessage(errors.ErrInvalidInterval, "throttle below sampling interval")
	}
	if c.HistoryLength < 1 {
		return errFactory.WithData(errors.ErrInvalidConfig, c.HistoryLength)
	}
	if c.ProcessCount < 1 {
		return errFactory.WithData(errors.ErrInvalidConfig, c.ProcessCount)
	}

	return nil
}
