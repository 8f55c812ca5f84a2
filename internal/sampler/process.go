package sampler

import (
	"time"

	"codeberg.org/mutker/sysmond/internal/errors"
	"github.com/shirou/gopsutil/v3/process"
)

type processSampler struct{}

// NewProcessSampler returns a sampler enumerating per-process accounting.
// Enumeration is the most expensive read in the set; the monitor throttles
// it independently of the main tick rate.
func NewProcessSampler() ProcessSampler {
	return &processSampler{}
}

func (*processSampler) Sample() (ProcessSnapshot, error) {
	errFactory := errors.New()

	procs, err := process.Processes()
	if err != nil {
		return ProcessSnapshot{}, errFactory.Wrap(errors.ErrSamplerFailed, err)
	}

	snapshot := ProcessSnapshot{
		CapturedAt: time.Now(),
		Procs:      make(map[int32]ProcessCounters, len(procs)),
	}

	for _, proc := range procs {
		// A process can exit between enumeration and read; skip it.
		name, err := proc.Name()
		if err != nil || name == "" {
			continue
		}

		counters := ProcessCounters{Name: name}

		if times, err := proc.Times(); err == nil {
			counters.CPUTime = times.User + times.System
		}
		if memPct, err := proc.MemoryPercent(); err == nil {
			counters.MemoryPercent = float64(memPct)
		}
		if memInfo, err := proc.MemoryInfo(); err == nil && memInfo != nil {
			counters.MemoryRSS = memInfo.RSS
		}
		if username, err := proc.Username(); err == nil {
			counters.Username = username
		}

		snapshot.Procs[proc.Pid] = counters
	}

	return snapshot, nil
}
