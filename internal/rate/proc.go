package rate

import "time"

// ProcessCPU derives per-process CPU usage percentages from cumulative busy
// seconds, keyed by PID. Usage can legitimately exceed 100 on multicore
// hosts; only negative deltas (PID reuse, counter reset) are floored to 0.
type ProcessCPU struct {
	prev map[int32]float64
}

func NewProcessCPU() *ProcessCPU {
	return &ProcessCPU{prev: make(map[int32]float64)}
}

// Update computes usage for every PID present in both snapshots, then
// replaces the previous state. PIDs absent from current are pruned; new
// PIDs warm up for one tick.
func (c *ProcessCPU) Update(current map[int32]float64, elapsed time.Duration) map[int32]float64 {
	usage := make(map[int32]float64, len(current))
	seconds := elapsed.Seconds()

	for pid, curr := range current {
		prev, ok := c.prev[pid]
		if !ok {
			continue
		}
		if seconds <= 0 || curr < prev {
			usage[pid] = 0
			continue
		}
		usage[pid] = (curr - prev) / seconds * 100
	}

	next := make(map[int32]float64, len(current))
	for pid, curr := range current {
		next[pid] = curr
	}
	c.prev = next

	return usage
}

// Tracked returns the number of PIDs with retained state.
func (c *ProcessCPU) Tracked() int {
	return len(c.prev)
}
