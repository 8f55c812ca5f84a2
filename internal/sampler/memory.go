package sampler

import (
	"time"

	"codeberg.org/mutker/sysmond/internal/errors"
	"github.com/shirou/gopsutil/v3/mem"
)

type memorySampler struct{}

// NewMemorySampler returns a sampler reading virtual memory and swap gauges.
func NewMemorySampler() MemorySampler {
	return &memorySampler{}
}

func (*memorySampler) Sample() (MemorySnapshot, error) {
	errFactory := errors.New()

	vm, err := mem.VirtualMemory()
	if err != nil {
		return MemorySnapshot{}, errFactory.Wrap(errors.ErrSamplerFailed, err)
	}

	snapshot := MemorySnapshot{
		CapturedAt:  time.Now(),
		Total:       vm.Total,
		Used:        vm.Used,
		Available:   vm.Available,
		UsedPercent: vm.UsedPercent,
	}

	// Swap is best effort; hosts without swap report zeroes.
	if swap, err := mem.SwapMemory(); err == nil {
		snapshot.SwapTotal = swap.Total
		snapshot.SwapUsed = swap.Used
		snapshot.SwapPercent = swap.UsedPercent
	}

	return snapshot, nil
}
