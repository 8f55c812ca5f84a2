// Package history retains the bounded time-series of derived metrics,
// recording sessions with aggregate statistics, and the query and export
// operations over both.
package history

import (
	"time"

	"codeberg.org/mutker/sysmond/internal/monitor"
)

// Session summarizes one recording window. Aggregates are computed once at
// session end and never change afterwards.
type Session struct {
	ID         string
	StartTime  time.Time
	EndTime    time.Time
	PointCount int

	AvgCPU    float64
	MaxCPU    float64
	AvgMemory float64
	MaxMemory float64

	// Byte totals integrated from per-point rates over the session.
	NetUpBytes     float64
	NetDownBytes   float64
	DiskReadBytes  float64
	DiskWriteBytes float64

	AlertCount   int
	TopProcesses []string
}

// Repository persists history points and session summaries as independent
// record collections. Point writes are batched; sessions save on mutation.
type Repository interface {
	RecordPoint(point monitor.Point) error
	LoadPoints(cutoff time.Time, maxPoints int) ([]monitor.Point, error)
	SaveSession(session Session) error
	LoadSessions(maxSessions int) ([]Session, error)
	Close() error
}
