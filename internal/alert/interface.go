// Package alert evaluates user-authored rules against each published metrics
// snapshot and maintains the bounded event log.
package alert

import (
	"time"

	"codeberg.org/mutker/sysmond/internal/stats"
)

// RuleKind selects the predicate a rule evaluates.
type RuleKind string

const (
	// Instantaneous thresholds against the latest derived values.
	KindCPU      RuleKind = "cpu"
	KindMemory   RuleKind = "memory"
	KindNetwork  RuleKind = "network"
	KindDiskFree RuleKind = "disk_free"

	// Sustained thresholds against the rolling 30-sample mean.
	KindSustainedCPU    RuleKind = "cpu_sustained"
	KindSustainedMemory RuleKind = "memory_sustained"

	// Connectivity fires on the transition to disconnected.
	KindConnectivity RuleKind = "connectivity"

	// Process-scoped thresholds match the first process whose name contains
	// Target (case-insensitive).
	KindProcessCPU    RuleKind = "process_cpu"
	KindProcessMemory RuleKind = "process_memory"
)

// Rule is a user-authored alert rule. Rules mutate only through the engine's
// explicit update calls and take effect on the next tick.
type Rule struct {
	ID        string
	Kind      RuleKind
	Threshold float64
	Enabled   bool
	Cooldown  time.Duration
	// Target is the process-name substring for process-scoped kinds.
	Target string
}

// Event records one rule firing. Immutable once created except for the Read
// flag. RuleID may dangle if the rule is later deleted; consumers tolerate
// orphaned references.
type Event struct {
	ID        string
	RuleID    string
	Timestamp time.Time
	Value     float64
	Threshold float64
	Message   string
	Read      bool
}

// Notifier is the notification side-channel invoked when a rule fires.
type Notifier interface {
	Notify(event Event)
}

// AnomalyReport is the advisory outlier verdict for the CPU and memory
// rolling windows. It is a query result, not a triggerable rule.
type AnomalyReport struct {
	CPU    stats.Anomaly
	Memory stats.Anomaly
}

// Repository persists rules and events as independent record collections.
type Repository interface {
	SaveRules(rules []Rule) error
	LoadRules() ([]Rule, error)
	SaveEvent(event Event) error
	LoadEvents(maxEvents int, cutoff time.Time) ([]Event, error)
	MarkEventRead(id string) error
	MarkAllEventsRead() error
	Close() error
}
