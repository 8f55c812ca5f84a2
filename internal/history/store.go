package history

import (
	"bytes"
	"crypto/rand"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"codeberg.org/mutker/sysmond/internal/errors"
	"codeberg.org/mutker/sysmond/internal/logger"
	"codeberg.org/mutker/sysmond/internal/monitor"
)

// csvHeader is the fixed export header; external tooling parses it.
var csvHeader = []string{
	"Timestamp", "CPU %", "Memory %", "Memory Bytes",
	"Upload B/s", "Download B/s", "Disk Read B/s", "Disk Write B/s",
}

// Store owns the bounded point log and the session log. One mutex guards
// both against concurrent recording, queries and session mutation.
type Store struct {
	cfg  Config
	repo Repository

	mu            sync.Mutex
	points        []monitor.Point
	sessions      []Session
	activeSession *Session
	sessionPoints []monitor.Point
}

// NewStore constructs a Store. A nil repository leaves it fully in-memory;
// otherwise retained points and sessions are loaded at construction.
func NewStore(cfg Config, repo Repository) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	s := &Store{
		cfg:  cfg,
		repo: repo,
	}

	if repo != nil {
		cutoff := cfg.Clock().Add(-cfg.PointRetention)
		points, err := repo.LoadPoints(cutoff, cfg.MaxPoints)
		if err != nil {
			return nil, err
		}
		s.points = points

		sessions, err := repo.LoadSessions(cfg.MaxSessions)
		if err != nil {
			return nil, err
		}
		s.sessions = sessions

		logger.Info().
			Int("points", len(points)).
			Int("sessions", len(sessions)).
			Msg("History loaded")
	}

	return s, nil
}

// Publish records one point per snapshot. It implements the monitor's
// consumer contract. Ticks with a failed source domain yield no point;
// recording zeros would forge data the samplers never produced.
func (s *Store) Publish(snapshot *monitor.Snapshot) {
	point, ok := monitor.HistoryPoint(snapshot)
	if !ok {
		return
	}
	s.Record(point)
}

// Record appends a point to the bounded log and, if a session is active, to
// the session-scoped buffer.
func (s *Store) Record(point monitor.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.points = append(s.points, point)
	if len(s.points) > s.cfg.MaxPoints {
		s.points = s.points[len(s.points)-s.cfg.MaxPoints:]
	}

	if s.activeSession != nil {
		s.sessionPoints = append(s.sessionPoints, point)
	}

	if s.repo != nil {
		if err := s.repo.RecordPoint(point); err != nil {
			logger.Warn().Err(err).Msg("Failed to buffer history point")
		}
	}
}

// StartSession begins a recording session. An already-active session is
// discarded and replaced.
func (s *Store) StartSession() Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := Session{
		ID:        newID(),
		StartTime: s.cfg.Clock(),
	}
	s.activeSession = &session
	s.sessionPoints = nil

	logger.Info().Str("session", session.ID).Msg("Recording session started")

	return session
}

// EndSession closes the active session, computing its aggregates and
// appending it to the bounded session log. A session that recorded no
// points is discarded and a nil summary returned.
func (s *Store) EndSession(alertCount int, topProcesses []string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeSession == nil {
		return nil, errors.New().New(ErrNoSession)
	}

	session := *s.activeSession
	points := s.sessionPoints
	s.activeSession = nil
	s.sessionPoints = nil

	if len(points) == 0 {
		logger.Debug().Str("session", session.ID).Msg("Empty session discarded")
		return nil, nil
	}

	session.EndTime = s.cfg.Clock()
	session.PointCount = len(points)
	session.AlertCount = alertCount
	session.TopProcesses = topProcesses
	aggregate(&session, points)

	s.sessions = append(s.sessions, session)
	if len(s.sessions) > s.cfg.MaxSessions {
		s.sessions = s.sessions[len(s.sessions)-s.cfg.MaxSessions:]
	}

	if s.repo != nil {
		if err := s.repo.SaveSession(session); err != nil {
			logger.Warn().Err(err).Msg("Failed to persist session")
		}
	}

	logger.Info().
		Str("session", session.ID).
		Int("points", session.PointCount).
		Msg("Recording session ended")

	return &session, nil
}

// SessionActive reports whether a recording session is in progress.
func (s *Store) SessionActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeSession != nil
}

// Sessions returns a copy of the session log, oldest first.
func (s *Store) Sessions() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := make([]Session, len(s.sessions))
	copy(sessions, s.sessions)

	return sessions
}

// Query returns all points within the trailing window [now-window, now].
func (s *Store) Query(window time.Duration) []monitor.Point {
	now := s.cfg.Clock()

	points, _ := s.QueryRange(now.Add(-window), now)

	return points
}

// QueryRange returns all points with timestamps in [start, end].
func (s *Store) QueryRange(start, end time.Time) ([]monitor.Point, error) {
	if end.Before(start) {
		return nil, errors.New().WithData(ErrInvalidRange, fmt.Sprintf("%s after %s", start, end))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []monitor.Point
	for _, p := range s.points {
		if p.Timestamp.Before(start) || p.Timestamp.After(end) {
			continue
		}
		out = append(out, p)
	}

	return out, nil
}

// Aggregated returns the trailing window downsampled to at most maxPoints
// by bucket-mean. Each bucket keeps its first point's timestamp. With
// maxPoints or fewer raw points, the raw slice is returned unchanged.
func (s *Store) Aggregated(window time.Duration, maxPoints int) []monitor.Point {
	points := s.Query(window)
	if maxPoints < 1 || len(points) <= maxPoints {
		return points
	}

	bucketSize := len(points) / maxPoints
	out := make([]monitor.Point, 0, maxPoints)
	for start := 0; start+bucketSize <= len(points) && len(out) < maxPoints; start += bucketSize {
		bucket := points[start : start+bucketSize]
		mean := monitor.Point{Timestamp: bucket[0].Timestamp}
		for _, p := range bucket {
			mean.CPUPercent += p.CPUPercent
			mean.MemPercent += p.MemPercent
			mean.MemBytes += p.MemBytes
			mean.NetUpBps += p.NetUpBps
			mean.NetDownBps += p.NetDownBps
			mean.DiskReadBps += p.DiskReadBps
			mean.DiskWriteBps += p.DiskWriteBps
		}
		n := float64(len(bucket))
		mean.CPUPercent /= n
		mean.MemPercent /= n
		mean.MemBytes /= uint64(len(bucket))
		mean.NetUpBps /= n
		mean.NetDownBps /= n
		mean.DiskReadBps /= n
		mean.DiskWriteBps /= n
		out = append(out, mean)
	}

	return out
}

// ExportCSV serializes the raw points of the trailing window. An empty
// window still yields the header row.
func (s *Store) ExportCSV(window time.Duration) ([]byte, error) {
	points := s.Query(window)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, errors.New().Wrap(ErrExportFailed, err)
	}
	for _, p := range points {
		record := []string{
			p.Timestamp.UTC().Format(time.RFC3339),
			strconv.FormatFloat(p.CPUPercent, 'f', 2, 64),
			strconv.FormatFloat(p.MemPercent, 'f', 2, 64),
			strconv.FormatUint(p.MemBytes, 10),
			strconv.FormatFloat(p.NetUpBps, 'f', 2, 64),
			strconv.FormatFloat(p.NetDownBps, 'f', 2, 64),
			strconv.FormatFloat(p.DiskReadBps, 'f', 2, 64),
			strconv.FormatFloat(p.DiskWriteBps, 'f', 2, 64),
		}
		if err := w.Write(record); err != nil {
			return nil, errors.New().Wrap(ErrExportFailed, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.New().Wrap(ErrExportFailed, err)
	}

	return buf.Bytes(), nil
}

type exportPoint struct {
	Timestamp    time.Time `json:"timestamp"`
	CPUPercent   float64   `json:"cpu_percent"`
	MemPercent   float64   `json:"memory_percent"`
	MemBytes     uint64    `json:"memory_bytes"`
	NetUpBps     float64   `json:"upload_bps"`
	NetDownBps   float64   `json:"download_bps"`
	DiskReadBps  float64   `json:"disk_read_bps"`
	DiskWriteBps float64   `json:"disk_write_bps"`
}

// ExportJSON serializes the raw points of the trailing window.
func (s *Store) ExportJSON(window time.Duration) ([]byte, error) {
	points := s.Query(window)

	out := make([]exportPoint, 0, len(points))
	for _, p := range points {
		out = append(out, exportPoint{
			Timestamp:    p.Timestamp.UTC(),
			CPUPercent:   p.CPUPercent,
			MemPercent:   p.MemPercent,
			MemBytes:     p.MemBytes,
			NetUpBps:     p.NetUpBps,
			NetDownBps:   p.NetDownBps,
			DiskReadBps:  p.DiskReadBps,
			DiskWriteBps: p.DiskWriteBps,
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, errors.New().Wrap(ErrExportFailed, err)
	}

	return data, nil
}

// aggregate fills the session's statistics from its recorded points. Byte
// totals integrate each point's rate over the spacing to its predecessor.
func aggregate(session *Session, points []monitor.Point) {
	for i, p := range points {
		session.AvgCPU += p.CPUPercent
		session.AvgMemory += p.MemPercent
		if p.CPUPercent > session.MaxCPU {
			session.MaxCPU = p.CPUPercent
		}
		if p.MemPercent > session.MaxMemory {
			session.MaxMemory = p.MemPercent
		}

		if i == 0 {
			continue
		}
		dt := p.Timestamp.Sub(points[i-1].Timestamp).Seconds()
		if dt <= 0 {
			continue
		}
		session.NetUpBytes += p.NetUpBps * dt
		session.NetDownBytes += p.NetDownBps * dt
		session.DiskReadBytes += p.DiskReadBps * dt
		session.DiskWriteBytes += p.DiskWriteBps * dt
	}

	n := float64(len(points))
	session.AvgCPU /= n
	session.AvgMemory /= n
}

func newID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}

	return hex.EncodeToString(buf)
}
