package sampler

import (
	"time"

	"codeberg.org/mutker/sysmond/internal/errors"
	"github.com/shirou/gopsutil/v3/disk"
)

type diskSampler struct{}

// NewDiskSampler returns a sampler reading per-device IO counters and
// mounted volume capacities.
func NewDiskSampler() DiskSampler {
	return &diskSampler{}
}

func (*diskSampler) Sample() (DiskSnapshot, error) {
	errFactory := errors.New()

	io, err := disk.IOCounters()
	if err != nil {
		return DiskSnapshot{}, errFactory.Wrap(errors.ErrSamplerFailed, err)
	}

	snapshot := DiskSnapshot{
		CapturedAt: time.Now(),
		ReadBytes:  make(map[string]uint64, len(io)),
		WriteBytes: make(map[string]uint64, len(io)),
	}

	for device, counters := range io {
		snapshot.ReadBytes[device] = counters.ReadBytes
		snapshot.WriteBytes[device] = counters.WriteBytes
	}

	// Volume capacities are best effort; a partition we cannot stat is
	// skipped, not fatal.
	if partitions, err := disk.Partitions(false); err == nil {
		for _, partition := range partitions {
			usage, err := disk.Usage(partition.Mountpoint)
			if err != nil {
				continue
			}
			snapshot.Volumes = append(snapshot.Volumes, Volume{
				Device:      partition.Device,
				Mountpoint:  partition.Mountpoint,
				Fstype:      partition.Fstype,
				Total:       usage.Total,
				Free:        usage.Free,
				UsedPercent: usage.UsedPercent,
			})
		}
	}

	return snapshot, nil
}
