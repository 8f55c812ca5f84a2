// Package stats provides rolling-window statistics and anomaly scoring for
// derived metric streams.
package stats

import (
	"math"

	"codeberg.org/mutker/sysmond/internal/ring"
)

// Rolling is a fixed-window sample buffer with mean and population standard
// deviation. Not safe for concurrent use; callers serialize access.
type Rolling struct {
	window *ring.Buffer[float64]
}

// NewRolling creates a rolling window holding the last size samples.
func NewRolling(size int) *Rolling {
	return &Rolling{window: ring.New[float64](size)}
}

// Push appends a sample, evicting the oldest once the window is full.
func (r *Rolling) Push(value float64) {
	r.window.Append(value)
}

// Len returns the number of samples currently in the window.
func (r *Rolling) Len() int {
	return r.window.Len()
}

// Latest returns the most recent sample.
func (r *Rolling) Latest() (float64, bool) {
	return r.window.Latest()
}

// Mean returns the arithmetic mean of the window, or 0 if empty.
func (r *Rolling) Mean() float64 {
	samples := r.window.Snapshot()
	if len(samples) == 0 {
		return 0
	}

	sum := 0.0
	for _, s := range samples {
		sum += s
	}

	return sum / float64(len(samples))
}

// StdDev returns the population standard deviation of the window.
func (r *Rolling) StdDev() float64 {
	samples := r.window.Snapshot()
	if len(samples) == 0 {
		return 0
	}

	mean := r.Mean()
	sumSquares := 0.0
	for _, s := range samples {
		d := s - mean
		sumSquares += d * d
	}

	return math.Sqrt(sumSquares / float64(len(samples)))
}

// Max returns the largest sample in the window, or 0 if empty.
func (r *Rolling) Max() float64 {
	samples := r.window.Snapshot()
	maxVal := 0.0
	for i, s := range samples {
		if i == 0 || s > maxVal {
			maxVal = s
		}
	}

	return maxVal
}

// Clear discards all samples.
func (r *Rolling) Clear() {
	r.window.Clear()
}
