// Package rate converts monotonically increasing OS counters into
// point-in-time percentages and byte rates. Each calculator owns the
// previous snapshot needed for the next delta and prunes state for entities
// that disappeared (cores going offline, interfaces unplugged, processes
// exiting).
package rate

import "time"

// CPUTicks holds cumulative scheduler time counters for one core, in the
// unit the sampler reports (seconds for gopsutil). Values never decrease on
// a healthy system; a decrease is treated as a counter reset.
type CPUTicks struct {
	User   float64
	System float64
	Idle   float64
	Nice   float64
	Iowait float64
}

func (t CPUTicks) busy() float64 {
	// Nice time counts as busy; iowait counts as idle time but still
	// belongs in the denominator.
	return t.User + t.System + t.Nice
}

func (t CPUTicks) total() float64 {
	return t.busy() + t.Idle + t.Iowait
}

// CPUCalculator derives per-core usage percentages from consecutive tick
// snapshots. Not safe for concurrent use; one sampling pass at a time.
type CPUCalculator struct {
	prev map[int]CPUTicks
}

func NewCPUCalculator() *CPUCalculator {
	return &CPUCalculator{prev: make(map[int]CPUTicks)}
}

// Update computes usage for every core present in both the previous and the
// current snapshot, then replaces the previous snapshot. The first call for
// any core yields no entry for it (warm-up tick). Cores missing from
// current are dropped silently.
func (c *CPUCalculator) Update(current map[int]CPUTicks) map[int]float64 {
	usage := make(map[int]float64, len(current))

	for core, curr := range current {
		prev, ok := c.prev[core]
		if !ok {
			continue
		}
		usage[core] = usagePercent(prev, curr)
	}

	next := make(map[int]CPUTicks, len(current))
	for core, curr := range current {
		next[core] = curr
	}
	c.prev = next

	return usage
}

// usagePercent computes (Δbusy / Δtotal) × 100 clamped to [0, 100]. A
// non-positive Δtotal (first sample, clock anomaly) yields 0 rather than an
// error.
func usagePercent(prev, curr CPUTicks) float64 {
	deltaTotal := curr.total() - prev.total()
	if deltaTotal <= 0 {
		return 0
	}

	deltaBusy := curr.busy() - prev.busy()
	if deltaBusy <= 0 {
		return 0
	}

	pct := deltaBusy / deltaTotal * 100
	if pct > 100 {
		return 100
	}

	return pct
}

// CounterRates derives bytes-per-second rates from cumulative byte counters
// keyed by entity (interface name, device name). Not safe for concurrent
// use.
type CounterRates struct {
	prev map[string]uint64
}

func NewCounterRates() *CounterRates {
	return &CounterRates{prev: make(map[string]uint64)}
}

// Update computes the per-entity rate over elapsed and replaces the stored
// counters. A counter lower than its predecessor (device replug, counter
// reset) produces a rate of 0 instead of a spurious spike. Entities seen for
// the first time yield no entry.
func (c *CounterRates) Update(current map[string]uint64, elapsed time.Duration) map[string]float64 {
	rates := make(map[string]float64, len(current))
	seconds := elapsed.Seconds()

	for entity, curr := range current {
		prev, ok := c.prev[entity]
		if !ok {
			continue
		}
		if seconds <= 0 || curr < prev {
			rates[entity] = 0
			continue
		}
		rates[entity] = float64(curr-prev) / seconds
	}

	next := make(map[string]uint64, len(current))
	for entity, curr := range current {
		next[entity] = curr
	}
	c.prev = next

	return rates
}

// Tracked returns the number of entities the calculator holds previous
// state for, after pruning.
func (c *CounterRates) Tracked() int {
	return len(c.prev)
}
