// Package sampler reads raw operating-system counters, one sampler per
// resource domain. Samplers return a timestamped snapshot and know nothing
// about rates; the monitor package derives those from consecutive
// snapshots. Absence of data (no battery, no permission for a volume) is a
// valid no-metric outcome, not an error.
package sampler

import (
	"time"

	"codeberg.org/mutker/sysmond/internal/rate"
)

// CPUSnapshot carries cumulative per-core scheduler counters.
type CPUSnapshot struct {
	CapturedAt  time.Time
	Cores       map[int]rate.CPUTicks
	CoreCount   int
	ThreadCount int
	FreqMHz     float64
	FreqKnown   bool
}

// MemorySnapshot carries point-in-time memory gauges. Memory needs no delta
// computation; the OS reports usage directly.
type MemorySnapshot struct {
	CapturedAt  time.Time
	Total       uint64
	Used        uint64
	Available   uint64
	UsedPercent float64
	SwapTotal   uint64
	SwapUsed    uint64
	SwapPercent float64
}

// NetworkSnapshot carries cumulative per-interface byte counters plus the
// host's link state.
type NetworkSnapshot struct {
	CapturedAt time.Time
	BytesSent  map[string]uint64
	BytesRecv  map[string]uint64
	Connected  bool
}

// Volume describes one mounted filesystem's capacity.
type Volume struct {
	Device      string
	Mountpoint  string
	Fstype      string
	Total       uint64
	Free        uint64
	UsedPercent float64
}

// DiskSnapshot carries cumulative per-device IO counters and volume
// capacities.
type DiskSnapshot struct {
	CapturedAt time.Time
	ReadBytes  map[string]uint64
	WriteBytes map[string]uint64
	Volumes    []Volume
}

// ProcessCounters holds one process's accounting at capture time. CPUTime
// is cumulative busy seconds; usage percent is derived from two snapshots.
type ProcessCounters struct {
	Name          string
	Username      string
	CPUTime       float64
	MemoryPercent float64
	MemoryRSS     uint64
}

// ProcessSnapshot carries per-PID accounting. Processes may appear and
// disappear between snapshots.
type ProcessSnapshot struct {
	CapturedAt time.Time
	Procs      map[int32]ProcessCounters
}

// BatteryReading is reported only when the host has a battery; samplers
// return it with a presence flag rather than a nullable field.
type BatteryReading struct {
	CapturedAt    time.Time
	Percent       float64
	PluggedIn     bool
	TimeLeft      time.Duration
	TimeLeftKnown bool
}

// ThermalReading is reported only when the host exposes temperature
// sensors; samplers return it with a presence flag rather than a nullable
// field.
type ThermalReading struct {
	CapturedAt time.Time
	// CPUTempC is the hottest CPU sensor in degrees Celsius, falling back
	// to the hottest sensor overall when no CPU sensor is identifiable.
	CPUTempC float64
	// MaxTempC is the hottest sensor of any kind.
	MaxTempC float64
}

// HostSnapshot carries boot time and uptime.
type HostSnapshot struct {
	CapturedAt time.Time
	BootTime   time.Time
	Uptime     time.Duration
}

// Sampler contracts, one per domain. Implementations own whatever OS handle
// they need and are stateless beyond it.
type (
	CPUSampler interface {
		Sample() (CPUSnapshot, error)
	}

	MemorySampler interface {
		Sample() (MemorySnapshot, error)
	}

	NetworkSampler interface {
		Sample() (NetworkSnapshot, error)
	}

	DiskSampler interface {
		Sample() (DiskSnapshot, error)
	}

	ProcessSampler interface {
		Sample() (ProcessSnapshot, error)
	}

	// BatterySampler reports ok=false when the host has no battery.
	BatterySampler interface {
		Sample() (BatteryReading, bool, error)
	}

	// ThermalSampler reports ok=false when the host has no temperature
	// sensors.
	ThermalSampler interface {
		Sample() (ThermalReading, bool, error)
	}

	HostSampler interface {
		Sample() (HostSnapshot, error)
	}
)

// Set bundles one sampler per domain for the monitor.
type Set struct {
	CPU     CPUSampler
	Memory  MemorySampler
	Network NetworkSampler
	Disk    DiskSampler
	Process ProcessSampler
	Battery BatterySampler
	Thermal ThermalSampler
	Host    HostSampler
}

// NewSet returns the default OS-backed samplers.
func NewSet() Set {
	return Set{
		CPU:     NewCPUSampler(),
		Memory:  NewMemorySampler(),
		Network: NewNetworkSampler(),
		Disk:    NewDiskSampler(),
		Process: NewProcessSampler(),
		Battery: NewBatterySampler(),
		Thermal: NewThermalSampler(),
		Host:    NewHostSampler(),
	}
}
