package rate_test

import (
	"testing"
	"time"

	"codeberg.org/mutker/sysmond/internal/rate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessCPUPercent(t *testing.T) {
	calc := rate.NewProcessCPU()
	calc.Update(map[int32]float64{100: 10.0}, time.Second)

	usage := calc.Update(map[int32]float64{100: 10.5}, time.Second)

	require.Contains(t, usage, int32(100))
	assert.InDelta(t, 50.0, usage[100], 1e-9)
}

func TestProcessCPUWarmupAndPrune(t *testing.T) {
	calc := rate.NewProcessCPU()

	usage := calc.Update(map[int32]float64{1: 1.0, 2: 2.0}, time.Second)
	assert.Empty(t, usage)

	usage = calc.Update(map[int32]float64{1: 1.5}, time.Second)
	assert.Contains(t, usage, int32(1))
	assert.NotContains(t, usage, int32(2), "exited process is dropped")
	assert.Equal(t, 1, calc.Tracked())
}

func TestProcessCPUReuseResetsToZero(t *testing.T) {
	calc := rate.NewProcessCPU()
	calc.Update(map[int32]float64{42: 100.0}, time.Second)

	// PID reused by a younger process: cumulative time went backwards.
	usage := calc.Update(map[int32]float64{42: 1.0}, time.Second)

	require.Contains(t, usage, int32(42))
	assert.Equal(t, 0.0, usage[42])
}
