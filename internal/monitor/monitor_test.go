package monitor_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/sysmond/internal/logger"
	"codeberg.org/mutker/sysmond/internal/monitor"
	"codeberg.org/mutker/sysmond/internal/rate"
	"codeberg.org/mutker/sysmond/internal/sampler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init(false, false, false)
	os.Exit(m.Run())
}

// fakeClock advances only when told to. Safe for concurrent use; the
// monitor's run loop and the test read it from different goroutines.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeCPU struct {
	calls int
	ticks []map[int]rate.CPUTicks
	err   error
}

func (f *fakeCPU) Sample() (sampler.CPUSnapshot, error) {
	if f.err != nil {
		return sampler.CPUSnapshot{}, f.err
	}
	idx := f.calls
	if idx >= len(f.ticks) {
		idx = len(f.ticks) - 1
	}
	f.calls++
	return sampler.CPUSnapshot{
		CapturedAt: time.Now(),
		Cores:      f.ticks[idx],
		CoreCount:  len(f.ticks[idx]),
	}, nil
}

type fakeMemory struct{ err error }

func (f *fakeMemory) Sample() (sampler.MemorySnapshot, error) {
	if f.err != nil {
		return sampler.MemorySnapshot{}, f.err
	}
	return sampler.MemorySnapshot{
		Total:       16 << 30,
		Used:        8 << 30,
		Available:   8 << 30,
		UsedPercent: 50,
	}, nil
}

type fakeNetwork struct {
	calls int
	sent  []uint64
	recv  []uint64
}

func (f *fakeNetwork) Sample() (sampler.NetworkSnapshot, error) {
	idx := f.calls
	if idx >= len(f.sent) {
		idx = len(f.sent) - 1
	}
	f.calls++
	return sampler.NetworkSnapshot{
		BytesSent: map[string]uint64{"en0": f.sent[idx]},
		BytesRecv: map[string]uint64{"en0": f.recv[idx]},
		Connected: true,
	}, nil
}

type fakeDisk struct {
	calls int
	read  []uint64
	write []uint64
}

func (f *fakeDisk) Sample() (sampler.DiskSnapshot, error) {
	idx := f.calls
	if idx >= len(f.read) {
		idx = len(f.read) - 1
	}
	f.calls++
	return sampler.DiskSnapshot{
		ReadBytes:  map[string]uint64{"disk0": f.read[idx]},
		WriteBytes: map[string]uint64{"disk0": f.write[idx]},
	}, nil
}

type fakeProcess struct {
	calls int
	procs map[int32]sampler.ProcessCounters
}

func (f *fakeProcess) Sample() (sampler.ProcessSnapshot, error) {
	f.calls++
	return sampler.ProcessSnapshot{Procs: f.procs}, nil
}

type fakeBattery struct {
	calls   int
	present bool
}

func (f *fakeBattery) Sample() (sampler.BatteryReading, bool, error) {
	f.calls++
	if !f.present {
		return sampler.BatteryReading{}, false, nil
	}
	return sampler.BatteryReading{Percent: 80, PluggedIn: true}, true, nil
}

type fakeThermal struct {
	calls   int
	present bool
}

func (f *fakeThermal) Sample() (sampler.ThermalReading, bool, error) {
	f.calls++
	if !f.present {
		return sampler.ThermalReading{}, false, nil
	}
	return sampler.ThermalReading{CPUTempC: 55, MaxTempC: 62}, true, nil
}

type fakeHost struct{}

func (*fakeHost) Sample() (sampler.HostSnapshot, error) {
	boot := time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC)
	return sampler.HostSnapshot{BootTime: boot, Uptime: 48 * time.Hour}, nil
}

type captureConsumer struct {
	snapshots []*monitor.Snapshot
}

func (c *captureConsumer) Publish(snapshot *monitor.Snapshot) {
	c.snapshots = append(c.snapshots, snapshot)
}

// countingConsumer is safe to read while the run loop publishes.
type countingConsumer struct {
	mu    sync.Mutex
	count int
}

func (c *countingConsumer) Publish(*monitor.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
}

func (c *countingConsumer) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

type fakeSet struct {
	set     sampler.Set
	cpu     *fakeCPU
	procs   *fakeProcess
	battery *fakeBattery
	thermal *fakeThermal
}

func fakeSamplers() fakeSet {
	cpu := &fakeCPU{ticks: []map[int]rate.CPUTicks{
		{0: {User: 100, System: 50, Idle: 850}},
		{0: {User: 150, System: 70, Idle: 930}},
		{0: {User: 200, System: 90, Idle: 1010}},
		{0: {User: 250, System: 110, Idle: 1090}},
		{0: {User: 300, System: 130, Idle: 1170}},
		{0: {User: 350, System: 150, Idle: 1250}},
	}}
	procs := &fakeProcess{procs: map[int32]sampler.ProcessCounters{
		1: {Name: "launchd", CPUTime: 1.0, MemoryPercent: 0.5},
		2: {Name: "chrome", CPUTime: 50.0, MemoryPercent: 8.0},
	}}
	battery := &fakeBattery{present: true}
	thermal := &fakeThermal{present: true}

	return fakeSet{
		set: sampler.Set{
			CPU:    cpu,
			Memory: &fakeMemory{},
			Network: &fakeNetwork{
				sent: []uint64{1000, 2000, 4000, 6000, 8000, 10000},
				recv: []uint64{5000, 10000, 20000, 30000, 40000, 50000},
			},
			Disk: &fakeDisk{
				read:  []uint64{0, 1024, 2048, 3072, 4096, 5120},
				write: []uint64{0, 512, 1024, 1536, 2048, 2560},
			},
			Process: procs,
			Battery: battery,
			Thermal: thermal,
			Host:    &fakeHost{},
		},
		cpu:     cpu,
		procs:   procs,
		battery: battery,
		thermal: thermal,
	}
}

func testConfig(clock *fakeClock) monitor.Config {
	cfg := monitor.DefaultConfig()
	cfg.Clock = clock.Now
	return cfg
}

func TestWarmupTickPublishesZeroRates(t *testing.T) {
	clock := newFakeClock()
	fakes := fakeSamplers()
	m, err := monitor.New(testConfig(clock), fakes.set)
	require.NoError(t, err)

	m.Tick(clock.Now())

	snapshot := m.Snapshot()
	require.NotNil(t, snapshot)
	assert.True(t, snapshot.CPU.Sampled)
	assert.Zero(t, snapshot.CPU.OverallPercent, "no previous snapshot, no usage yet")
	assert.Zero(t, snapshot.Network.UploadBps)
	assert.Zero(t, snapshot.Disk.ReadBps)
	assert.Equal(t, uint64(1), snapshot.Tick)
}

func TestSecondTickDerivesRates(t *testing.T) {
	clock := newFakeClock()
	fakes := fakeSamplers()
	m, err := monitor.New(testConfig(clock), fakes.set)
	require.NoError(t, err)

	m.Tick(clock.Now())
	clock.Advance(time.Second)
	m.Tick(clock.Now())

	snapshot := m.Snapshot()
	require.NotNil(t, snapshot)

	// Δbusy = 70, Δtotal = 150 → 46.67% on the single core.
	assert.InDelta(t, 46.6666, snapshot.CPU.OverallPercent, 0.001)
	assert.InDelta(t, 1000.0, snapshot.Network.UploadBps, 1e-6)
	assert.InDelta(t, 5000.0, snapshot.Network.DownloadBps, 1e-6)
	assert.InDelta(t, 1024.0, snapshot.Disk.ReadBps, 1e-6)
	assert.InDelta(t, 512.0, snapshot.Disk.WriteBps, 1e-6)
	assert.Equal(t, 50.0, snapshot.Memory.UsedPercent)
	assert.True(t, snapshot.Network.Connected)
}

func TestExpensiveSamplersThrottled(t *testing.T) {
	clock := newFakeClock()
	fakes := fakeSamplers()
	m, err := monitor.New(testConfig(clock), fakes.set)
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		m.Tick(clock.Now())
		clock.Advance(time.Second)
	}

	// 2s throttle: ticks at t=0,2,4 enumerate; t=1,3,5 reuse.
	assert.Equal(t, 3, fakes.procs.calls)
	// 5s throttle, shared by battery and thermal: ticks at t=0 and t=5.
	assert.Equal(t, 2, fakes.battery.calls)
	assert.Equal(t, 2, fakes.thermal.calls)

	snapshot := m.Snapshot()
	require.NotEmpty(t, snapshot.Processes, "throttled ticks carry the last process set forward")
	assert.Equal(t, "chrome", snapshot.Processes[0].Name, "sorted by CPU descending")
	assert.True(t, snapshot.Battery.Present)
	assert.True(t, snapshot.Thermal.Present)
	assert.Equal(t, 55.0, snapshot.Thermal.CPUTempC)
	assert.Equal(t, 62.0, snapshot.Thermal.MaxTempC)
}

func TestThermalAbsenceIsNotAnError(t *testing.T) {
	clock := newFakeClock()
	fakes := fakeSamplers()
	fakes.thermal.present = false
	m, err := monitor.New(testConfig(clock), fakes.set)
	require.NoError(t, err)

	m.Tick(clock.Now())

	snapshot := m.Snapshot()
	require.NotNil(t, snapshot)
	assert.False(t, snapshot.Thermal.Present)
	assert.True(t, snapshot.CPU.Sampled, "other domains unaffected")
}

func TestSamplerFailureSkipsMetricOnly(t *testing.T) {
	clock := newFakeClock()
	fakes := fakeSamplers()
	fakes.cpu.err = assert.AnError
	m, err := monitor.New(testConfig(clock), fakes.set)
	require.NoError(t, err)

	m.Tick(clock.Now())
	clock.Advance(time.Second)
	m.Tick(clock.Now())

	snapshot := m.Snapshot()
	require.NotNil(t, snapshot)
	assert.False(t, snapshot.CPU.Sampled, "failed domain is skipped, not carried")
	assert.True(t, snapshot.Memory.Sampled, "other domains unaffected")
	assert.True(t, snapshot.Network.Sampled)
	assert.Empty(t, snapshot.History.CPU, "no history appended for skipped metric")
	assert.Len(t, snapshot.History.Memory, 2)
}

func TestHistoryViewBounded(t *testing.T) {
	clock := newFakeClock()
	fakes := fakeSamplers()
	cfg := testConfig(clock)
	cfg.HistoryLength = 30
	m, err := monitor.New(cfg, fakes.set)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		m.Tick(clock.Now())
		clock.Advance(time.Second)
	}

	snapshot := m.Snapshot()
	assert.Len(t, snapshot.History.CPU, 30)
	assert.Len(t, snapshot.History.NetUp, 30)
}

func TestConsumersReceiveEveryPublish(t *testing.T) {
	clock := newFakeClock()
	fakes := fakeSamplers()
	capture := &captureConsumer{}
	m, err := monitor.New(testConfig(clock), fakes.set, capture)
	require.NoError(t, err)

	m.Tick(clock.Now())
	clock.Advance(time.Second)
	m.Tick(clock.Now())

	require.Len(t, capture.snapshots, 2)
	assert.True(t, capture.snapshots[0].Timestamp.Before(capture.snapshots[1].Timestamp),
		"timestamps strictly increase with emit order")
}

func TestHistoryPointConversion(t *testing.T) {
	snapshot := &monitor.Snapshot{
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		CPU:       monitor.CPUMetrics{Sampled: true, OverallPercent: 42.5},
		Memory:    monitor.MemoryMetrics{Sampled: true, UsedPercent: 61.2, Used: 9 << 30},
		Network:   monitor.NetworkMetrics{Sampled: true, UploadBps: 100, DownloadBps: 200},
		Disk:      monitor.DiskMetrics{Sampled: true, ReadBps: 300, WriteBps: 400},
	}

	point, ok := monitor.HistoryPoint(snapshot)
	require.True(t, ok)

	assert.Equal(t, snapshot.Timestamp, point.Timestamp)
	assert.Equal(t, 42.5, point.CPUPercent)
	assert.Equal(t, 61.2, point.MemPercent)
	assert.Equal(t, uint64(9<<30), point.MemBytes)
	assert.Equal(t, 100.0, point.NetUpBps)
	assert.Equal(t, 200.0, point.NetDownBps)
	assert.Equal(t, 300.0, point.DiskReadBps)
	assert.Equal(t, 400.0, point.DiskWriteBps)
}

func TestHistoryPointRejectsFailedDomains(t *testing.T) {
	snapshot := &monitor.Snapshot{
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		CPU:       monitor.CPUMetrics{Sampled: false},
		Memory:    monitor.MemoryMetrics{Sampled: true, UsedPercent: 61.2},
		Network:   monitor.NetworkMetrics{Sampled: true},
		Disk:      monitor.DiskMetrics{Sampled: true},
	}

	_, ok := monitor.HistoryPoint(snapshot)
	assert.False(t, ok, "a skipped metric must not persist as a zero")
}

func TestForceRefreshCoalescesIntoInFlightPass(t *testing.T) {
	clock := newFakeClock()
	fakes := fakeSamplers()
	cfg := testConfig(clock)
	// The ticker must stay silent; only refreshes drive ticks here.
	cfg.Interval = time.Hour
	counter := &countingConsumer{}
	m, err := monitor.New(cfg, fakes.set, counter)
	require.NoError(t, err)

	// Queued before the loop starts; all three predate the warm-up
	// publish and must be satisfied by it.
	m.ForceRefresh()
	m.ForceRefresh()
	m.ForceRefresh()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = m.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return counter.Count() == 1 },
		time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, counter.Count(), "stale requests ride the in-flight pass")

	// A request younger than the last publish earns exactly one tick.
	clock.Advance(time.Second)
	m.ForceRefresh()
	require.Eventually(t, func() bool { return counter.Count() == 2 },
		time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, 2, counter.Count())
}
