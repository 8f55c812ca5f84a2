package monitor

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/sysmond/internal/logger"
	"codeberg.org/mutker/sysmond/internal/rate"
	"codeberg.org/mutker/sysmond/internal/ring"
	"codeberg.org/mutker/sysmond/internal/sampler"
)

// Monitor owns the sampling cycle. Exactly one pass runs at a time: the
// run loop is the only goroutine that calls Tick, so the stateful per-entity
// calculators are never shared between passes. Publication swaps a pointer
// under a write lock, so readers never observe a half-updated snapshot.
type Monitor struct {
	cfg       Config
	samplers  sampler.Set
	consumers []Consumer

	cpuCalc  *rate.CPUCalculator
	netCalc  *rate.CounterRates
	diskCalc *rate.CounterRates
	procCalc *rate.ProcessCPU

	cpuHist     *ring.Buffer[float64]
	memHist     *ring.Buffer[float64]
	netUpHist   *ring.Buffer[float64]
	netDownHist *ring.Buffer[float64]
	diskRdHist  *ring.Buffer[float64]
	diskWrHist  *ring.Buffer[float64]

	lastTick     time.Time
	lastProcRun  time.Time
	lastBatRun   time.Time
	lastThermRun time.Time
	lastProcs    []ProcessInfo
	lastBattery  BatteryMetrics
	lastThermal  ThermalMetrics
	lastPublish  time.Time
	tickCount    uint64

	refreshCh  chan time.Time
	intervalCh chan time.Duration

	mu        sync.RWMutex
	published *Snapshot
}

// New constructs a Monitor with explicitly injected samplers and consumers.
func New(cfg Config, samplers sampler.Set, consumers ...Consumer) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &Monitor{
		cfg:         cfg,
		samplers:    samplers,
		consumers:   consumers,
		cpuCalc:     rate.NewCPUCalculator(),
		netCalc:     rate.NewCounterRates(),
		diskCalc:    rate.NewCounterRates(),
		procCalc:    rate.NewProcessCPU(),
		cpuHist:     ring.New[float64](cfg.HistoryLength),
		memHist:     ring.New[float64](cfg.HistoryLength),
		netUpHist:   ring.New[float64](cfg.HistoryLength),
		netDownHist: ring.New[float64](cfg.HistoryLength),
		diskRdHist:  ring.New[float64](cfg.HistoryLength),
		diskWrHist:  ring.New[float64](cfg.HistoryLength),
		refreshCh:   make(chan time.Time, 1),
		intervalCh:  make(chan time.Duration, 1),
	}, nil
}

// Run drives the tick cycle until the context is cancelled. An immediate
// warm-up tick primes the delta calculators so the first timed tick
// produces real rates.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.Tick(m.cfg.Clock())

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Monitor stopped")
			return nil
		case <-ticker.C:
			m.Tick(m.cfg.Clock())
		case requested := <-m.refreshCh:
			// A request that predates the last publish was satisfied by
			// the in-flight pass's snapshot; only younger requests earn a
			// new tick.
			if requested.After(m.lastPublish) {
				m.Tick(m.cfg.Clock())
			}
		case interval := <-m.intervalCh:
			ticker.Reset(interval)
			logger.Info().Dur("interval", interval).Msg("Sampling interval changed")
		}
	}
}

// ForceRefresh requests an immediate tick. Requests arriving while a pass
// is in flight coalesce into at most one queued refresh and are satisfied
// by that pass's snapshot rather than triggering a redundant tick.
func (m *Monitor) ForceRefresh() {
	select {
	case m.refreshCh <- m.cfg.Clock():
	default:
	}
}

// SetInterval changes the tick cadence. The in-flight pass (if any)
// completes and publishes before the new cadence takes effect.
func (m *Monitor) SetInterval(interval time.Duration) {
	if interval <= 0 {
		return
	}

	select {
	case m.intervalCh <- interval:
	default:
		// A pending change is superseded; drain and replace.
		select {
		case <-m.intervalCh:
		default:
		}
		m.intervalCh <- interval
	}
}

// Snapshot returns the last published snapshot, or nil before the first
// tick completes.
func (m *Monitor) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.published
}

// Tick executes one sampling pass at the given instant and publishes the
// result. It is exported so tests can drive the cycle deterministically;
// production code relies on Run as the single caller.
func (m *Monitor) Tick(now time.Time) {
	elapsed := now.Sub(m.lastTick)
	if m.lastTick.IsZero() {
		elapsed = 0
	}
	m.lastTick = now
	m.tickCount++

	snapshot := &Snapshot{
		Timestamp: now,
		Tick:      m.tickCount,
	}

	m.sampleCPU(snapshot)
	m.sampleMemory(snapshot)
	m.sampleNetwork(snapshot, elapsed)
	m.sampleDisk(snapshot, elapsed)
	m.sampleProcesses(snapshot, now)
	m.sampleBattery(snapshot, now)
	m.sampleThermal(snapshot, now)
	m.sampleHost(snapshot)

	m.appendHistory(snapshot)
	snapshot.History = HistoryView{
		CPU:       m.cpuHist.Snapshot(),
		Memory:    m.memHist.Snapshot(),
		NetUp:     m.netUpHist.Snapshot(),
		NetDown:   m.netDownHist.Snapshot(),
		DiskRead:  m.diskRdHist.Snapshot(),
		DiskWrite: m.diskWrHist.Snapshot(),
	}

	m.mu.Lock()
	m.published = snapshot
	m.mu.Unlock()

	for _, consumer := range m.consumers {
		consumer.Publish(snapshot)
	}

	m.lastPublish = m.cfg.Clock()
}

func (m *Monitor) sampleCPU(snapshot *Snapshot) {
	raw, err := m.samplers.CPU.Sample()
	if err != nil {
		logger.Warn().Err(err).Msg("CPU sample skipped this tick")
		return
	}

	usage := m.cpuCalc.Update(raw.Cores)

	perCore := make([]float64, 0, len(usage))
	for core := 0; core < len(raw.Cores); core++ {
		if pct, ok := usage[core]; ok {
			perCore = append(perCore, pct)
		}
	}

	overall := 0.0
	if len(perCore) > 0 {
		for _, pct := range perCore {
			overall += pct
		}
		overall /= float64(len(perCore))
	}

	snapshot.CPU = CPUMetrics{
		Sampled:        true,
		OverallPercent: overall,
		PerCore:        perCore,
		CoreCount:      raw.CoreCount,
		ThreadCount:    raw.ThreadCount,
		FreqMHz:        raw.FreqMHz,
		FreqKnown:      raw.FreqKnown,
	}
}

func (m *Monitor) sampleMemory(snapshot *Snapshot) {
	raw, err := m.samplers.Memory.Sample()
	if err != nil {
		logger.Warn().Err(err).Msg("Memory sample skipped this tick")
		return
	}

	snapshot.Memory = MemoryMetrics{
		Sampled:     true,
		UsedPercent: raw.UsedPercent,
		Used:        raw.Used,
		Total:       raw.Total,
		Available:   raw.Available,
		SwapPercent: raw.SwapPercent,
		SwapUsed:    raw.SwapUsed,
		SwapTotal:   raw.SwapTotal,
	}
}

func (m *Monitor) sampleNetwork(snapshot *Snapshot, elapsed time.Duration) {
	raw, err := m.samplers.Network.Sample()
	if err != nil {
		logger.Warn().Err(err).Msg("Network sample skipped this tick")
		return
	}

	// One calculator tracks both directions; keys are prefixed so an
	// interface's tx and rx counters stay distinct entities.
	counters := make(map[string]uint64, 2*len(raw.BytesSent))
	for name, sent := range raw.BytesSent {
		counters["tx:"+name] = sent
	}
	for name, recv := range raw.BytesRecv {
		counters["rx:"+name] = recv
	}
	rates := m.netCalc.Update(counters, elapsed)

	metrics := NetworkMetrics{
		Sampled:   true,
		Connected: raw.Connected,
	}
	for key, rate := range rates {
		if strings.HasPrefix(key, "tx:") {
			metrics.UploadBps += rate
		} else {
			metrics.DownloadBps += rate
		}
	}
	for _, sent := range raw.BytesSent {
		metrics.TotalSent += sent
	}
	for _, recv := range raw.BytesRecv {
		metrics.TotalRecv += recv
	}

	snapshot.Network = metrics
}

func (m *Monitor) sampleDisk(snapshot *Snapshot, elapsed time.Duration) {
	raw, err := m.samplers.Disk.Sample()
	if err != nil {
		logger.Warn().Err(err).Msg("Disk sample skipped this tick")
		return
	}

	counters := make(map[string]uint64, 2*len(raw.ReadBytes))
	for device, read := range raw.ReadBytes {
		counters["rd:"+device] = read
	}
	for device, written := range raw.WriteBytes {
		counters["wr:"+device] = written
	}
	rates := m.diskCalc.Update(counters, elapsed)

	metrics := DiskMetrics{
		Sampled: true,
		Volumes: raw.Volumes,
	}
	for key, rate := range rates {
		if strings.HasPrefix(key, "rd:") {
			metrics.ReadBps += rate
		} else {
			metrics.WriteBps += rate
		}
	}

	snapshot.Disk = metrics
}

func (m *Monitor) sampleProcesses(snapshot *Snapshot, now time.Time) {
	// Process enumeration is throttled independently of the tick rate; the
	// last result is carried forward between runs.
	if !m.lastProcRun.IsZero() && now.Sub(m.lastProcRun) < m.cfg.ProcessThrottle {
		snapshot.Processes = m.lastProcs
		return
	}

	raw, err := m.samplers.Process.Sample()
	if err != nil {
		logger.Warn().Err(err).Msg("Process sample skipped this tick")
		snapshot.Processes = m.lastProcs
		return
	}

	elapsed := now.Sub(m.lastProcRun)
	if m.lastProcRun.IsZero() {
		elapsed = 0
	}
	m.lastProcRun = now

	cpuTimes := make(map[int32]float64, len(raw.Procs))
	for pid, proc := range raw.Procs {
		cpuTimes[pid] = proc.CPUTime
	}
	cpuUsage := m.procCalc.Update(cpuTimes, elapsed)

	processes := make([]ProcessInfo, 0, len(raw.Procs))
	for pid, proc := range raw.Procs {
		processes = append(processes, ProcessInfo{
			PID:           pid,
			Name:          proc.Name,
			Username:      proc.Username,
			CPUPercent:    cpuUsage[pid],
			MemoryPercent: proc.MemoryPercent,
			MemoryRSS:     proc.MemoryRSS,
		})
	}

	sort.Slice(processes, func(i, j int) bool {
		if processes[i].CPUPercent != processes[j].CPUPercent {
			return processes[i].CPUPercent > processes[j].CPUPercent
		}
		return processes[i].MemoryPercent > processes[j].MemoryPercent
	})
	if len(processes) > m.cfg.ProcessCount {
		processes = processes[:m.cfg.ProcessCount]
	}

	m.lastProcs = processes
	snapshot.Processes = processes
}

func (m *Monitor) sampleBattery(snapshot *Snapshot, now time.Time) {
	if !m.lastBatRun.IsZero() && now.Sub(m.lastBatRun) < m.cfg.BatteryThrottle {
		snapshot.Battery = m.lastBattery
		return
	}
	m.lastBatRun = now

	raw, ok, err := m.samplers.Battery.Sample()
	if err != nil {
		logger.Warn().Err(err).Msg("Battery sample skipped this tick")
		snapshot.Battery = m.lastBattery
		return
	}
	if !ok {
		m.lastBattery = BatteryMetrics{}
		return
	}

	m.lastBattery = BatteryMetrics{
		Present:       true,
		Percent:       raw.Percent,
		PluggedIn:     raw.PluggedIn,
		TimeLeft:      raw.TimeLeft,
		TimeLeftKnown: raw.TimeLeftKnown,
	}
	snapshot.Battery = m.lastBattery
}

func (m *Monitor) sampleThermal(snapshot *Snapshot, now time.Time) {
	// Sensor reads share the battery cadence; both are slow hardware
	// queries that change little between ticks.
	if !m.lastThermRun.IsZero() && now.Sub(m.lastThermRun) < m.cfg.BatteryThrottle {
		snapshot.Thermal = m.lastThermal
		return
	}
	m.lastThermRun = now

	raw, ok, err := m.samplers.Thermal.Sample()
	if err != nil {
		logger.Warn().Err(err).Msg("Thermal sample skipped this tick")
		snapshot.Thermal = m.lastThermal
		return
	}
	if !ok {
		m.lastThermal = ThermalMetrics{}
		return
	}

	m.lastThermal = ThermalMetrics{
		Present:  true,
		CPUTempC: raw.CPUTempC,
		MaxTempC: raw.MaxTempC,
	}
	snapshot.Thermal = m.lastThermal
}

func (m *Monitor) sampleHost(snapshot *Snapshot) {
	raw, err := m.samplers.Host.Sample()
	if err != nil {
		logger.Warn().Err(err).Msg("Host sample skipped this tick")
		return
	}

	snapshot.Host = HostMetrics{
		Sampled:  true,
		BootTime: raw.BootTime,
		Uptime:   raw.Uptime,
	}
}

func (m *Monitor) appendHistory(snapshot *Snapshot) {
	if snapshot.CPU.Sampled {
		m.cpuHist.Append(snapshot.CPU.OverallPercent)
	}
	if snapshot.Memory.Sampled {
		m.memHist.Append(snapshot.Memory.UsedPercent)
	}
	if snapshot.Network.Sampled {
		m.netUpHist.Append(snapshot.Network.UploadBps)
		m.netDownHist.Append(snapshot.Network.DownloadBps)
	}
	if snapshot.Disk.Sampled {
		m.diskRdHist.Append(snapshot.Disk.ReadBps)
		m.diskWrHist.Append(snapshot.Disk.WriteBps)
	}
}

// HistoryPoint converts a snapshot into the per-tick record the history
// store persists. A tick where any of the point's source domains failed
// reports ok=false: a flat record cannot distinguish a skipped metric from
// a genuine zero, so the tick is not recorded at all.
func HistoryPoint(snapshot *Snapshot) (Point, bool) {
	if !snapshot.CPU.Sampled || !snapshot.Memory.Sampled ||
		!snapshot.Network.Sampled || !snapshot.Disk.Sampled {
		return Point{}, false
	}

	return Point{
		Timestamp:    snapshot.Timestamp,
		CPUPercent:   snapshot.CPU.OverallPercent,
		MemPercent:   snapshot.Memory.UsedPercent,
		MemBytes:     snapshot.Memory.Used,
		NetUpBps:     snapshot.Network.UploadBps,
		NetDownBps:   snapshot.Network.DownloadBps,
		DiskReadBps:  snapshot.Disk.ReadBps,
		DiskWriteBps: snapshot.Disk.WriteBps,
	}, true
}
