package alert_test

import (
	"os"
	"testing"
	"time"

	"codeberg.org/mutker/sysmond/internal/alert"
	"codeberg.org/mutker/sysmond/internal/errors"
	"codeberg.org/mutker/sysmond/internal/logger"
	"codeberg.org/mutker/sysmond/internal/monitor"
	"codeberg.org/mutker/sysmond/internal/sampler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init(false, false, false)
	os.Exit(m.Run())
}

var testStart = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func snapshotAt(offset time.Duration, cpuPercent float64) *monitor.Snapshot {
	return &monitor.Snapshot{
		Timestamp: testStart.Add(offset),
		CPU:       monitor.CPUMetrics{Sampled: true, OverallPercent: cpuPercent},
		Memory:    monitor.MemoryMetrics{Sampled: true, UsedPercent: 40},
		Network:   monitor.NetworkMetrics{Sampled: true, Connected: true},
		Disk:      monitor.DiskMetrics{Sampled: true},
	}
}

func newEngine(t *testing.T) *alert.Engine {
	t.Helper()
	engine, err := alert.New(alert.DefaultConfig(), nil)
	require.NoError(t, err)
	return engine
}

type captureNotifier struct {
	events []alert.Event
}

func (n *captureNotifier) Notify(event alert.Event) {
	n.events = append(n.events, event)
}

func TestCooldownFiresAtMostOncePerWindow(t *testing.T) {
	engine := newEngine(t)
	_, err := engine.AddRule(alert.Rule{
		Kind:      alert.KindCPU,
		Threshold: 50,
		Enabled:   true,
		Cooldown:  10 * time.Second,
	})
	require.NoError(t, err)

	// Six consecutive over-threshold ticks inside one cooldown window.
	for i := 0; i < 6; i++ {
		engine.Publish(snapshotAt(time.Duration(i)*time.Second, 90))
	}
	assert.Len(t, engine.Events(), 1)

	// The window expires; the rule may fire again.
	engine.Publish(snapshotAt(10*time.Second, 90))
	assert.Len(t, engine.Events(), 2)
}

func TestDisabledRuleNeverFires(t *testing.T) {
	engine := newEngine(t)
	_, err := engine.AddRule(alert.Rule{
		Kind:      alert.KindCPU,
		Threshold: 50,
		Enabled:   false,
	})
	require.NoError(t, err)

	engine.Publish(snapshotAt(0, 99))

	assert.Empty(t, engine.Events())
}

func TestSustainedRuleRequiresFullWindow(t *testing.T) {
	engine := newEngine(t)
	_, err := engine.AddRule(alert.Rule{
		Kind:      alert.KindSustainedCPU,
		Threshold: 50,
		Enabled:   true,
		Cooldown:  time.Hour,
	})
	require.NoError(t, err)

	for i := 0; i < 29; i++ {
		engine.Publish(snapshotAt(time.Duration(i)*time.Second, 100))
	}
	assert.Empty(t, engine.Events(), "29 samples never satisfy a sustained rule")

	engine.Publish(snapshotAt(29*time.Second, 100))
	assert.Len(t, engine.Events(), 1)
}

func TestConnectivityFiresOnTransitionOnly(t *testing.T) {
	engine := newEngine(t)
	_, err := engine.AddRule(alert.Rule{
		Kind:    alert.KindConnectivity,
		Enabled: true,
	})
	require.NoError(t, err)

	online := snapshotAt(0, 10)
	offline := snapshotAt(time.Second, 10)
	offline.Network.Connected = false

	engine.Publish(online)
	assert.Empty(t, engine.Events(), "initial state is not a transition")

	engine.Publish(offline)
	assert.Len(t, engine.Events(), 1)

	stillOffline := snapshotAt(2*time.Second, 10)
	stillOffline.Network.Connected = false
	engine.Publish(stillOffline)
	assert.Len(t, engine.Events(), 1, "staying disconnected is not a transition")

	engine.Publish(snapshotAt(3*time.Second, 10))
	reOffline := snapshotAt(4*time.Second, 10)
	reOffline.Network.Connected = false
	engine.Publish(reOffline)
	assert.Len(t, engine.Events(), 2, "each fresh disconnect fires")
}

func TestProcessRuleMatchesSubstringCaseInsensitive(t *testing.T) {
	engine := newEngine(t)
	_, err := engine.AddRule(alert.Rule{
		Kind:      alert.KindProcessCPU,
		Threshold: 50,
		Enabled:   true,
		Target:    "chrome",
	})
	require.NoError(t, err)

	snapshot := snapshotAt(0, 10)
	snapshot.Processes = []monitor.ProcessInfo{
		{PID: 10, Name: "Safari", CPUPercent: 95},
		{PID: 20, Name: "Google Chrome Helper", CPUPercent: 80},
		{PID: 30, Name: "chromedriver", CPUPercent: 99},
	}
	engine.Publish(snapshot)

	events := engine.Events()
	require.Len(t, events, 1)
	assert.Equal(t, 80.0, events[0].Value, "first matching process wins")
}

func TestDiskFreeRuleUsesLowSemantics(t *testing.T) {
	engine := newEngine(t)
	_, err := engine.AddRule(alert.Rule{
		Kind:      alert.KindDiskFree,
		Threshold: 10,
		Enabled:   true,
	})
	require.NoError(t, err)

	snapshot := snapshotAt(0, 10)
	snapshot.Disk.Volumes = []sampler.Volume{
		{Mountpoint: "/", UsedPercent: 50},
		{Mountpoint: "/data", UsedPercent: 95},
	}
	engine.Publish(snapshot)

	events := engine.Events()
	require.Len(t, events, 1)
	assert.InDelta(t, 5.0, events[0].Value, 1e-9, "fullest volume drives the rule")
}

func TestEventLogBounded(t *testing.T) {
	cfg := alert.DefaultConfig()
	cfg.MaxEvents = 5
	engine, err := alert.New(cfg, nil)
	require.NoError(t, err)

	_, err = engine.AddRule(alert.Rule{
		Kind:      alert.KindCPU,
		Threshold: 50,
		Enabled:   true,
	})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		engine.Publish(snapshotAt(time.Duration(i)*time.Second, 90))
	}

	events := engine.Events()
	assert.Len(t, events, 5)
	assert.Equal(t, testStart.Add(9*time.Second), events[4].Timestamp, "newest events survive eviction")
}

func TestNotifierReceivesEvents(t *testing.T) {
	notifier := &captureNotifier{}
	engine, err := alert.New(alert.DefaultConfig(), nil, notifier)
	require.NoError(t, err)

	_, err = engine.AddRule(alert.Rule{
		Kind:      alert.KindMemory,
		Threshold: 30,
		Enabled:   true,
		Cooldown:  time.Hour,
	})
	require.NoError(t, err)

	engine.Publish(snapshotAt(0, 10))

	require.Len(t, notifier.events, 1)
	assert.Equal(t, 40.0, notifier.events[0].Value)
	assert.NotEmpty(t, notifier.events[0].Message)
}

func TestRuleLifecycle(t *testing.T) {
	engine := newEngine(t)

	rule, err := engine.AddRule(alert.Rule{
		Kind:      alert.KindCPU,
		Threshold: 80,
		Enabled:   true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, rule.ID)

	rule.Threshold = 60
	require.NoError(t, engine.UpdateRule(rule))
	require.Len(t, engine.Rules(), 1)
	assert.Equal(t, 60.0, engine.Rules()[0].Threshold)

	require.NoError(t, engine.DeleteRule(rule.ID))
	assert.Empty(t, engine.Rules())

	err = engine.DeleteRule(rule.ID)
	assert.True(t, errors.HasCode(err, alert.ErrRuleNotFound))
}

func TestRuleValidation(t *testing.T) {
	engine := newEngine(t)

	_, err := engine.AddRule(alert.Rule{Kind: "bogus", Threshold: 10})
	assert.True(t, errors.HasCode(err, alert.ErrInvalidRule))

	_, err = engine.AddRule(alert.Rule{Kind: alert.KindProcessCPU, Threshold: 10})
	assert.True(t, errors.HasCode(err, alert.ErrInvalidRule), "process rule without target")

	_, err = engine.AddRule(alert.Rule{Kind: alert.KindCPU, Threshold: -1})
	assert.True(t, errors.HasCode(err, alert.ErrInvalidRule))
}

func TestMarkReadAndUnreadCount(t *testing.T) {
	engine := newEngine(t)
	_, err := engine.AddRule(alert.Rule{
		Kind:      alert.KindCPU,
		Threshold: 50,
		Enabled:   true,
	})
	require.NoError(t, err)

	engine.Publish(snapshotAt(0, 90))
	engine.Publish(snapshotAt(time.Second, 90))
	require.Equal(t, 2, engine.UnreadCount())

	events := engine.Events()
	require.NoError(t, engine.MarkRead(events[0].ID))
	assert.Equal(t, 1, engine.UnreadCount())

	engine.MarkAllRead()
	assert.Zero(t, engine.UnreadCount())

	err = engine.MarkRead("nope")
	assert.True(t, errors.HasCode(err, alert.ErrEventNotFound))
}

func TestAnomalyAdvisoryOnly(t *testing.T) {
	engine := newEngine(t)

	for i := 0; i < 40; i++ {
		engine.Publish(snapshotAt(time.Duration(i)*time.Second, 50))
	}
	report := engine.Anomaly()
	assert.False(t, report.CPU.Detected, "flat series has zero deviation")
	assert.Empty(t, engine.Events(), "anomaly scoring never emits events")

	engine.Publish(snapshotAt(41*time.Second, 100))
	report = engine.Anomaly()
	assert.True(t, report.CPU.Detected)
	assert.Empty(t, engine.Events())
}
