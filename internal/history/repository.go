package history

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/sysmond/internal/errors"
	"codeberg.org/mutker/sysmond/internal/logger"
	"codeberg.org/mutker/sysmond/internal/monitor"
	_ "github.com/mattn/go-sqlite3"
)

type repository struct {
	db  *sql.DB
	cfg Config

	mu            sync.Mutex
	buffer        []monitor.Point
	flushTicker   *time.Ticker
	shutdownChan  chan struct{}
	flushDoneChan chan struct{}
}

// NewRepository opens the history record collections in the shared database
// file. Point writes buffer in memory and flush on the autosave interval;
// the flush goroutine runs until Close.
func NewRepository(cfg Config) (Repository, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.DBPath,
			Error: err.Error(),
		})
	}

	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug().
		Str("path", cfg.DBPath).
		Dur("autosave", cfg.AutosaveInterval).
		Msg("History repository initialized")

	repo := &repository{
		db:            db,
		cfg:           cfg,
		shutdownChan:  make(chan struct{}),
		flushDoneChan: make(chan struct{}),
	}

	repo.flushTicker = time.NewTicker(cfg.AutosaveInterval)
	go repo.flusher()

	return repo, nil
}

// RecordPoint buffers one point for the next autosave flush.
func (r *repository) RecordPoint(point monitor.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer = append(r.buffer, point)

	return nil
}

// LoadPoints deletes points older than the cutoff and returns the newest
// maxPoints in oldest-first order.
func (r *repository) LoadPoints(cutoff time.Time, maxPoints int) ([]monitor.Point, error) {
	errFactory := errors.New()

	if _, err := r.db.Exec("DELETE FROM history_points WHERE timestamp < ?", cutoff.Unix()); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	rows, err := r.db.Query(`
		SELECT timestamp, cpu_percent, mem_percent, mem_bytes,
		       net_up_bps, net_down_bps, disk_read_bps, disk_write_bps
		FROM history_points
		ORDER BY timestamp DESC
		LIMIT ?
	`, maxPoints)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	var points []monitor.Point
	for rows.Next() {
		var (
			p  monitor.Point
			ts int64
		)
		err := rows.Scan(&ts, &p.CPUPercent, &p.MemPercent, &p.MemBytes,
			&p.NetUpBps, &p.NetDownBps, &p.DiskReadBps, &p.DiskWriteBps)
		if err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}
		p.Timestamp = time.Unix(ts, 0)
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}

	return points, nil
}

// SaveSession upserts one session summary and evicts the oldest rows past
// capacity.
func (r *repository) SaveSession(session Session) error {
	errFactory := errors.New()

	topProcesses, err := json.Marshal(session.TopProcesses)
	if err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	_, err = r.db.Exec(insertSessionSQL,
		session.ID,
		session.StartTime.Unix(),
		session.EndTime.Unix(),
		session.PointCount,
		session.AvgCPU,
		session.MaxCPU,
		session.AvgMemory,
		session.MaxMemory,
		session.NetUpBytes,
		session.NetDownBytes,
		session.DiskReadBytes,
		session.DiskWriteBytes,
		session.AlertCount,
		string(topProcesses),
	)
	if err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	_, err = r.db.Exec(`
		DELETE FROM sessions WHERE id NOT IN (
		    SELECT id FROM sessions ORDER BY start_time DESC LIMIT ?
		)
	`, r.cfg.MaxSessions)
	if err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	return nil
}

// LoadSessions returns the newest maxSessions in oldest-first order.
func (r *repository) LoadSessions(maxSessions int) ([]Session, error) {
	errFactory := errors.New()

	rows, err := r.db.Query(`
		SELECT id, start_time, end_time, point_count,
		       avg_cpu, max_cpu, avg_mem, max_mem,
		       net_up_bytes, net_down_bytes, disk_read_bytes, disk_write_bytes,
		       alert_count, top_processes
		FROM sessions
		ORDER BY start_time DESC
		LIMIT ?
	`, maxSessions)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var (
			session      Session
			start, end   int64
			topProcesses string
		)
		err := rows.Scan(&session.ID, &start, &end, &session.PointCount,
			&session.AvgCPU, &session.MaxCPU, &session.AvgMemory, &session.MaxMemory,
			&session.NetUpBytes, &session.NetDownBytes, &session.DiskReadBytes, &session.DiskWriteBytes,
			&session.AlertCount, &topProcesses)
		if err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}
		session.StartTime = time.Unix(start, 0)
		session.EndTime = time.Unix(end, 0)
		if err := json.Unmarshal([]byte(topProcesses), &session.TopProcesses); err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	for i, j := 0, len(sessions)-1; i < j; i, j = i+1, j-1 {
		sessions[i], sessions[j] = sessions[j], sessions[i]
	}

	return sessions, nil
}

// Close flushes buffered points, checkpoints the WAL and closes the
// database.
func (r *repository) Close() error {
	close(r.shutdownChan)
	r.flushTicker.Stop()
	<-r.flushDoneChan

	errFactory := errors.New()

	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}
	if err := r.db.Close(); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}

	logger.Debug().Msg("History repository closed")

	return nil
}

func (r *repository) flusher() {
	defer close(r.flushDoneChan)

	for {
		select {
		case <-r.flushTicker.C:
			r.mu.Lock()
			r.flush()
			r.mu.Unlock()
		case <-r.shutdownChan:
			r.mu.Lock()
			r.flush()
			r.mu.Unlock()
			return
		}
	}
}

// flush writes the buffered points in one transaction and prunes rows past
// the retention window and capacity. Callers hold the mutex.
func (r *repository) flush() {
	if len(r.buffer) == 0 {
		return
	}

	tx, err := r.db.Begin()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to begin history flush")
		return
	}

	stmt, err := tx.Prepare(insertPointSQL)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to prepare history insert")
		tx.Rollback()
		return
	}
	defer stmt.Close()

	for _, p := range r.buffer {
		_, err := stmt.Exec(p.Timestamp.Unix(), p.CPUPercent, p.MemPercent, p.MemBytes,
			p.NetUpBps, p.NetDownBps, p.DiskReadBps, p.DiskWriteBps)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to insert history point")
			tx.Rollback()
			return
		}
	}

	cutoff := time.Now().Add(-r.cfg.PointRetention).Unix()
	if _, err := tx.Exec("DELETE FROM history_points WHERE timestamp < ?", cutoff); err != nil {
		logger.Error().Err(err).Msg("Failed to prune history points")
		tx.Rollback()
		return
	}

	if err := tx.Commit(); err != nil {
		logger.Error().Err(err).Msg("Failed to commit history flush")
		return
	}

	logger.Debug().Int("points", len(r.buffer)).Msg("Flushed history points")
	r.buffer = r.buffer[:0]
}
