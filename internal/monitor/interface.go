// Package monitor coordinates sampling: it drives the tick cycle, applies
// the delta-rate calculators, maintains sparkline history and publishes an
// immutable metrics snapshot for consumers.
package monitor

import (
	"time"

	"codeberg.org/mutker/sysmond/internal/sampler"
)

// CPUMetrics is the derived CPU state for one tick.
type CPUMetrics struct {
	Sampled        bool
	OverallPercent float64
	PerCore        []float64
	CoreCount      int
	ThreadCount    int
	FreqMHz        float64
	FreqKnown      bool
}

// MemoryMetrics is the derived memory state for one tick.
type MemoryMetrics struct {
	Sampled     bool
	UsedPercent float64
	Used        uint64
	Total       uint64
	Available   uint64
	SwapPercent float64
	SwapUsed    uint64
	SwapTotal   uint64
}

// NetworkMetrics is the derived network state for one tick. Rates are
// summed across non-loopback interfaces.
type NetworkMetrics struct {
	Sampled     bool
	UploadBps   float64
	DownloadBps float64
	TotalSent   uint64
	TotalRecv   uint64
	Connected   bool
}

// DiskMetrics is the derived disk state for one tick. Rates are summed
// across devices.
type DiskMetrics struct {
	Sampled  bool
	ReadBps  float64
	WriteBps float64
	Volumes  []sampler.Volume
}

// ProcessInfo is one process's derived usage, sorted into the top-N set.
type ProcessInfo struct {
	PID           int32
	Name          string
	Username      string
	CPUPercent    float64
	MemoryPercent float64
	MemoryRSS     uint64
}

// BatteryMetrics carries the last battery reading; Present is false on
// hosts without one.
type BatteryMetrics struct {
	Present       bool
	Percent       float64
	PluggedIn     bool
	TimeLeft      time.Duration
	TimeLeftKnown bool
}

// ThermalMetrics carries the last temperature reading; Present is false on
// hosts without sensors.
type ThermalMetrics struct {
	Present  bool
	CPUTempC float64
	MaxTempC float64
}

// HostMetrics carries boot time and uptime.
type HostMetrics struct {
	Sampled  bool
	BootTime time.Time
	Uptime   time.Duration
}

// HistoryView is a copy of the sparkline ring buffers, oldest first.
type HistoryView struct {
	CPU       []float64
	Memory    []float64
	NetUp     []float64
	NetDown   []float64
	DiskRead  []float64
	DiskWrite []float64
}

// Snapshot is the externally-observable result of one tick. It is immutable
// once published; readers receive copies and never alias internal state.
type Snapshot struct {
	Timestamp time.Time
	Tick      uint64
	CPU       CPUMetrics
	Memory    MemoryMetrics
	Network   NetworkMetrics
	Disk      DiskMetrics
	Processes []ProcessInfo
	Battery   BatteryMetrics
	Thermal   ThermalMetrics
	Host      HostMetrics
	History   HistoryView
}

// Point is the per-tick history record fed to the history store.
type Point struct {
	Timestamp    time.Time
	CPUPercent   float64
	MemPercent   float64
	MemBytes     uint64
	NetUpBps     float64
	NetDownBps   float64
	DiskReadBps  float64
	DiskWriteBps float64
}

// Consumer receives each published snapshot. Snapshots are never mutated
// after publication; consumers may read them freely but must not write.
type Consumer interface {
	Publish(snapshot *Snapshot)
}
