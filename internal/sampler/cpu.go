package sampler

import (
	"time"

	"codeberg.org/mutker/sysmond/internal/errors"
	"codeberg.org/mutker/sysmond/internal/rate"
	"github.com/shirou/gopsutil/v3/cpu"
)

type cpuSampler struct{}

// NewCPUSampler returns a sampler reading per-core scheduler tick counters.
func NewCPUSampler() CPUSampler {
	return &cpuSampler{}
}

func (*cpuSampler) Sample() (CPUSnapshot, error) {
	errFactory := errors.New()

	times, err := cpu.Times(true)
	if err != nil {
		return CPUSnapshot{}, errFactory.Wrap(errors.ErrSamplerFailed, err)
	}

	cores := make(map[int]rate.CPUTicks, len(times))
	for i, t := range times {
		cores[i] = rate.CPUTicks{
			User:   t.User,
			System: t.System,
			Idle:   t.Idle,
			Nice:   t.Nice,
			Iowait: t.Iowait,
		}
	}

	snapshot := CPUSnapshot{
		CapturedAt: time.Now(),
		Cores:      cores,
	}

	// Core counts and frequency are informational; their absence does not
	// fail the sample.
	if physical, err := cpu.Counts(false); err == nil {
		snapshot.CoreCount = physical
	}
	if logical, err := cpu.Counts(true); err == nil {
		snapshot.ThreadCount = logical
	}
	if info, err := cpu.Info(); err == nil && len(info) > 0 && info[0].Mhz > 0 {
		snapshot.FreqMHz = info[0].Mhz
		snapshot.FreqKnown = true
	}

	return snapshot, nil
}
