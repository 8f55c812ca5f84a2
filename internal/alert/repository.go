package alert

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"codeberg.org/mutker/sysmond/internal/errors"
	"codeberg.org/mutker/sysmond/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

type repository struct {
	db *sql.DB
}

// NewRepository opens the alert record collections in the shared database
// file. Rules are rewritten wholesale on mutation; events append.
func NewRepository(cfg Config) (Repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
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

	logger.Debug().Str("path", cfg.DBPath).Msg("Alert repository initialized")

	return &repository{db: db}, nil
}

// SaveRules replaces the persisted rule set in one transaction.
func (r *repository) SaveRules(rules []Rule) error {
	errFactory := errors.New()

	tx, err := r.db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	if _, err := tx.Exec("DELETE FROM alert_rules"); err != nil {
		tx.Rollback()
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	stmt, err := tx.Prepare(insertRuleSQL)
	if err != nil {
		tx.Rollback()
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer stmt.Close()

	for _, rule := range rules {
		_, err := stmt.Exec(
			rule.ID,
			string(rule.Kind),
			rule.Threshold,
			boolToInt(rule.Enabled),
			int64(rule.Cooldown/time.Second),
			rule.Target,
		)
		if err != nil {
			tx.Rollback()
			return errFactory.Wrap(ErrTransactionFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	return nil
}

// LoadRules returns the persisted rule set in insertion order.
func (r *repository) LoadRules() ([]Rule, error) {
	errFactory := errors.New()

	rows, err := r.db.Query(`
		SELECT id, kind, threshold, enabled, cooldown_seconds, target
		FROM alert_rules
		ORDER BY rowid
	`)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var (
			rule            Rule
			kind            string
			enabled         int
			cooldownSeconds int64
		)
		if err := rows.Scan(&rule.ID, &kind, &rule.Threshold, &enabled, &cooldownSeconds, &rule.Target); err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}
		rule.Kind = RuleKind(kind)
		rule.Enabled = enabled == 1
		rule.Cooldown = time.Duration(cooldownSeconds) * time.Second
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	return rules, nil
}

// SaveEvent appends one event.
func (r *repository) SaveEvent(event Event) error {
	_, err := r.db.Exec(insertEventSQL,
		event.ID,
		event.RuleID,
		event.Timestamp.Unix(),
		event.Value,
		event.Threshold,
		event.Message,
		boolToInt(event.Read),
	)
	if err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}

	return nil
}

// LoadEvents prunes events older than the cutoff, then returns the newest
// maxEvents in oldest-first order.
func (r *repository) LoadEvents(maxEvents int, cutoff time.Time) ([]Event, error) {
	errFactory := errors.New()

	if _, err := r.db.Exec("DELETE FROM alert_events WHERE timestamp < ?", cutoff.Unix()); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	rows, err := r.db.Query(`
		SELECT id, rule_id, timestamp, value, threshold, message, is_read
		FROM alert_events
		ORDER BY timestamp DESC
		LIMIT ?
	`, maxEvents)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event Event
			ts    int64
			read  int
		)
		if err := rows.Scan(&event.ID, &event.RuleID, &ts, &event.Value, &event.Threshold, &event.Message, &read); err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}
		event.Timestamp = time.Unix(ts, 0)
		event.Read = read == 1
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	// Newest-first from the query; callers expect oldest-first.
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}

	return events, nil
}

func (r *repository) MarkEventRead(id string) error {
	result, err := r.db.Exec("UPDATE alert_events SET is_read = 1 WHERE id = ?", id)
	if err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return errors.New().WithData(ErrEventNotFound, id)
	}

	return nil
}

func (r *repository) MarkAllEventsRead() error {
	if _, err := r.db.Exec("UPDATE alert_events SET is_read = 1"); err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}

	return nil
}

// Close checkpoints the WAL and closes the database.
func (r *repository) Close() error {
	errFactory := errors.New()

	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}
	if err := r.db.Close(); err != nil {
		return errFactory.Wrap(ErrStorageClose, err)
	}

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}
