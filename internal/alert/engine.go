package alert

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/sysmond/internal/errors"
	"codeberg.org/mutker/sysmond/internal/logger"
	"codeberg.org/mutker/sysmond/internal/monitor"
	"codeberg.org/mutker/sysmond/internal/stats"
)

// Engine holds the rule set, the bounded event log and the rolling windows
// backing sustained and anomaly evaluation. One mutex serializes rule
// mutation against per-tick evaluation, so a mutation always takes effect on
// the next tick and never mid-pass.
type Engine struct {
	cfg       Config
	repo      Repository
	notifiers []Notifier

	mu        sync.Mutex
	rules     []Rule
	lastFired map[string]time.Time
	events    []Event
	cpuWindow *stats.Rolling
	memWindow *stats.Rolling
	connected bool
	connKnown bool
}

// New constructs an Engine. A nil repository leaves the engine fully
// in-memory; otherwise rules and recent events are loaded at construction.
func New(cfg Config, repo Repository, notifiers ...Notifier) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	e := &Engine{
		cfg:       cfg,
		repo:      repo,
		notifiers: notifiers,
		lastFired: make(map[string]time.Time),
		cpuWindow: stats.NewRolling(rollingWindow),
		memWindow: stats.NewRolling(rollingWindow),
	}

	if repo != nil {
		rules, err := repo.LoadRules()
		if err != nil {
			return nil, err
		}
		e.rules = rules

		cutoff := cfg.Clock().Add(-cfg.EventRetention)
		events, err := repo.LoadEvents(cfg.MaxEvents, cutoff)
		if err != nil {
			return nil, err
		}
		e.events = events

		logger.Info().
			Int("rules", len(rules)).
			Int("events", len(events)).
			Msg("Alert state loaded")
	}

	return e, nil
}

// Publish evaluates the full rule set against one snapshot. It implements
// the monitor's consumer contract and runs on the sampling goroutine.
func (e *Engine) Publish(snapshot *monitor.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if snapshot.CPU.Sampled {
		e.cpuWindow.Push(snapshot.CPU.OverallPercent)
	}
	if snapshot.Memory.Sampled {
		e.memWindow.Push(snapshot.Memory.UsedPercent)
	}

	disconnected := false
	if snapshot.Network.Sampled {
		disconnected = e.connKnown && e.connected && !snapshot.Network.Connected
		e.connected = snapshot.Network.Connected
		e.connKnown = true
	}

	now := snapshot.Timestamp
	for _, rule := range e.rules {
		if !rule.Enabled {
			continue
		}
		if last, ok := e.lastFired[rule.ID]; ok && now.Sub(last) < rule.Cooldown {
			continue
		}

		value, triggered, message := e.evaluate(rule, snapshot, disconnected)
		if !triggered {
			continue
		}

		e.lastFired[rule.ID] = now
		e.fire(rule, now, value, message)
	}
}

func (e *Engine) evaluate(rule Rule, snapshot *monitor.Snapshot, disconnected bool) (float64, bool, string) {
	switch rule.Kind {
	case KindCPU:
		if !snapshot.CPU.Sampled {
			return 0, false, ""
		}
		value := snapshot.CPU.OverallPercent
		return value, value >= rule.Threshold,
			fmt.Sprintf("CPU usage at %.1f%% (threshold %.1f%%)", value, rule.Threshold)

	case KindMemory:
		if !snapshot.Memory.Sampled {
			return 0, false, ""
		}
		value := snapshot.Memory.UsedPercent
		return value, value >= rule.Threshold,
			fmt.Sprintf("Memory usage at %.1f%% (threshold %.1f%%)", value, rule.Threshold)

	case KindNetwork:
		if !snapshot.Network.Sampled {
			return 0, false, ""
		}
		value := snapshot.Network.UploadBps + snapshot.Network.DownloadBps
		return value, value >= rule.Threshold,
			fmt.Sprintf("Network throughput at %.0f B/s (threshold %.0f B/s)", value, rule.Threshold)

	case KindDiskFree:
		if !snapshot.Disk.Sampled || len(snapshot.Disk.Volumes) == 0 {
			return 0, false, ""
		}
		// Low-free semantics: fires when the fullest volume drops to or
		// below the threshold.
		minFree := 100.0
		mount := ""
		for _, vol := range snapshot.Disk.Volumes {
			free := 100.0 - vol.UsedPercent
			if free < minFree {
				minFree = free
				mount = vol.Mountpoint
			}
		}
		return minFree, minFree <= rule.Threshold,
			fmt.Sprintf("Disk space on %s down to %.1f%% free (threshold %.1f%%)", mount, minFree, rule.Threshold)

	case KindSustainedCPU:
		if e.cpuWindow.Len() < sustainedSamples {
			return 0, false, ""
		}
		mean := e.cpuWindow.Mean()
		return mean, mean >= rule.Threshold,
			fmt.Sprintf("Sustained CPU usage at %.1f%% (threshold %.1f%%)", mean, rule.Threshold)

	case KindSustainedMemory:
		if e.memWindow.Len() < sustainedSamples {
			return 0, false, ""
		}
		mean := e.memWindow.Mean()
		return mean, mean >= rule.Threshold,
			fmt.Sprintf("Sustained memory usage at %.1f%% (threshold %.1f%%)", mean, rule.Threshold)

	case KindConnectivity:
		return 0, disconnected, "Network connection lost"

	case KindProcessCPU, KindProcessMemory:
		target := strings.ToLower(rule.Target)
		if target == "" {
			return 0, false, ""
		}
		for _, proc := range snapshot.Processes {
			if !strings.Contains(strings.ToLower(proc.Name), target) {
				continue
			}
			if rule.Kind == KindProcessCPU {
				return proc.CPUPercent, proc.CPUPercent >= rule.Threshold,
					fmt.Sprintf("%s CPU usage at %.1f%% (threshold %.1f%%)", proc.Name, proc.CPUPercent, rule.Threshold)
			}
			return proc.MemoryPercent, proc.MemoryPercent >= rule.Threshold,
				fmt.Sprintf("%s memory usage at %.1f%% (threshold %.1f%%)", proc.Name, proc.MemoryPercent, rule.Threshold)
		}
		return 0, false, ""
	}

	return 0, false, ""
}

func (e *Engine) fire(rule Rule, now time.Time, value float64, message string) {
	event := Event{
		ID:        newID(),
		RuleID:    rule.ID,
		Timestamp: now,
		Value:     value,
		Threshold: rule.Threshold,
		Message:   message,
	}

	e.events = append(e.events, event)
	if len(e.events) > e.cfg.MaxEvents {
		e.events = e.events[len(e.events)-e.cfg.MaxEvents:]
	}

	logger.Info().
		Str("rule", rule.ID).
		Str("kind", string(rule.Kind)).
		Float64("value", value).
		Msg(message)

	if e.repo != nil {
		if err := e.repo.SaveEvent(event); err != nil {
			logger.Warn().Err(err).Msg("Failed to persist alert event")
		}
	}

	for _, notifier := range e.notifiers {
		notifier.Notify(event)
	}
}

// AddRule validates and adds a rule, assigning an ID when absent. The rule
// participates in evaluation from the next tick.
func (e *Engine) AddRule(rule Rule) (Rule, error) {
	if err := validateRule(rule); err != nil {
		return Rule{}, err
	}
	if rule.ID == "" {
		rule.ID = newID()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.rules = append(e.rules, rule)
	e.saveRules()

	return rule, nil
}

// UpdateRule replaces the rule with the same ID.
func (e *Engine) UpdateRule(rule Rule) error {
	if err := validateRule(rule); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.rules {
		if e.rules[i].ID == rule.ID {
			e.rules[i] = rule
			e.saveRules()
			return nil
		}
	}

	return errors.New().WithData(ErrRuleNotFound, rule.ID)
}

// DeleteRule removes a rule. Historical events keep their ruleId reference.
func (e *Engine) DeleteRule(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.rules {
		if e.rules[i].ID == id {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			delete(e.lastFired, id)
			e.saveRules()
			return nil
		}
	}

	return errors.New().WithData(ErrRuleNotFound, id)
}

// Rules returns a copy of the current rule set.
func (e *Engine) Rules() []Rule {
	e.mu.Lock()
	defer e.mu.Unlock()

	rules := make([]Rule, len(e.rules))
	copy(rules, e.rules)

	return rules
}

// Events returns a copy of the event log, oldest first.
func (e *Engine) Events() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	events := make([]Event, len(e.events))
	copy(events, e.events)

	return events
}

// UnreadCount returns the number of unacknowledged events.
func (e *Engine) UnreadCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	count := 0
	for i := range e.events {
		if !e.events[i].Read {
			count++
		}
	}

	return count
}

// MarkRead acknowledges one event.
func (e *Engine) MarkRead(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.events {
		if e.events[i].ID == id {
			e.events[i].Read = true
			if e.repo != nil {
				if err := e.repo.MarkEventRead(id); err != nil {
					logger.Warn().Err(err).Msg("Failed to persist event acknowledgement")
				}
			}
			return nil
		}
	}

	return errors.New().WithData(ErrEventNotFound, id)
}

// MarkAllRead acknowledges every event.
func (e *Engine) MarkAllRead() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.events {
		e.events[i].Read = true
	}
	if e.repo != nil {
		if err := e.repo.MarkAllEventsRead(); err != nil {
			logger.Warn().Err(err).Msg("Failed to persist event acknowledgements")
		}
	}
}

// Anomaly scores the latest CPU and memory samples against their rolling
// windows. Advisory output only; it never fires a rule.
func (e *Engine) Anomaly() AnomalyReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	return AnomalyReport{
		CPU:    stats.Detect(e.cpuWindow),
		Memory: stats.Detect(e.memWindow),
	}
}

// saveRules persists the rule set; callers hold the mutex.
func (e *Engine) saveRules() {
	if e.repo == nil {
		return
	}

	rules := make([]Rule, len(e.rules))
	copy(rules, e.rules)

	if err := e.repo.SaveRules(rules); err != nil {
		logger.Warn().Err(err).Msg("Failed to persist alert rules")
	}
}

func validateRule(rule Rule) error {
	errFactory := errors.New()

	switch rule.Kind {
	case KindCPU, KindMemory, KindNetwork, KindDiskFree,
		KindSustainedCPU, KindSustainedMemory, KindConnectivity:
	case KindProcessCPU, KindProcessMemory:
		if rule.Target == "" {
			return errFactory.WithMessage(ErrInvalidRule, "process rule requires a target name")
		}
	default:
		return errFactory.WithData(ErrInvalidRule, rule.Kind)
	}

	if rule.Threshold < 0 {
		return errFactory.WithData(ErrInvalidRule, rule.Threshold)
	}
	if rule.Cooldown < 0 {
		return errFactory.WithData(ErrInvalidRule, rule.Cooldown)
	}

	return nil
}

func newID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}

	return hex.EncodeToString(buf)
}
