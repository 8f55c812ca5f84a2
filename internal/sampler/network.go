package sampler

import (
	"time"

	"codeberg.org/mutker/sysmond/internal/errors"
	psnet "github.com/shirou/gopsutil/v3/net"
)

type networkSampler struct{}

// NewNetworkSampler returns a sampler reading per-interface byte counters.
// Loopback interfaces are excluded.
func NewNetworkSampler() NetworkSampler {
	return &networkSampler{}
}

func (*networkSampler) Sample() (NetworkSnapshot, error) {
	errFactory := errors.New()

	counters, err := psnet.IOCounters(true)
	if err != nil {
		return NetworkSnapshot{}, errFactory.Wrap(errors.ErrSamplerFailed, err)
	}

	snapshot := NetworkSnapshot{
		CapturedAt: time.Now(),
		BytesSent:  make(map[string]uint64, len(counters)),
		BytesRecv:  make(map[string]uint64, len(counters)),
	}

	for _, counter := range counters {
		if counter.Name == "lo" || counter.Name == "lo0" {
			continue
		}
		snapshot.BytesSent[counter.Name] = counter.BytesSent
		snapshot.BytesRecv[counter.Name] = counter.BytesRecv
	}

	snapshot.Connected = isConnected()

	return snapshot, nil
}

// isConnected reports whether any non-loopback interface is up with an
// address. A failed interface listing counts as disconnected for this tick.
func isConnected() bool {
	interfaces, err := psnet.Interfaces()
	if err != nil {
		return false
	}

	for _, iface := range interfaces {
		up, loopback := false, false
		for _, flag := range iface.Flags {
			switch flag {
			case "up":
				up = true
			case "loopback":
				loopback = true
			}
		}
		if up && !loopback && len(iface.Addrs) > 0 {
			return true
		}
	}

	return false
}
