package sampler

import (
	"time"

	"codeberg.org/mutker/sysmond/internal/errors"
	"github.com/shirou/gopsutil/v3/host"
)

type hostSampler struct{}

// NewHostSampler returns a sampler reading boot time and uptime.
func NewHostSampler() HostSampler {
	return &hostSampler{}
}

func (*hostSampler) Sample() (HostSnapshot, error) {
	errFactory := errors.New()

	bootTime, err := host.BootTime()
	if err != nil {
		return HostSnapshot{}, errFactory.Wrap(errors.ErrSamplerFailed, err)
	}

	now := time.Now()
	boot := time.Unix(int64(bootTime), 0)

	return HostSnapshot{
		CapturedAt: now,
		BootTime:   boot,
		Uptime:     now.Sub(boot),
	}, nil
}
