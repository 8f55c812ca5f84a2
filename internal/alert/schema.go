package alert

import (
	"database/sql"

	"codeberg.org/mutker/sysmond/internal/errors"
)

const createTablesSQL = `
	CREATE TABLE IF NOT EXISTS alert_rules (
	    id               TEXT PRIMARY KEY,
	    kind             TEXT NOT NULL,
	    threshold        REAL NOT NULL,
	    enabled          INTEGER NOT NULL CHECK (enabled IN (0, 1)),
	    cooldown_seconds INTEGER NOT NULL,
	    target           TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS alert_events (
	    id        TEXT PRIMARY KEY,
	    rule_id   TEXT NOT NULL,
	    timestamp INTEGER NOT NULL,
	    value     REAL NOT NULL,
	    threshold REAL NOT NULL,
	    message   TEXT NOT NULL,
	    is_read   INTEGER NOT NULL CHECK (is_read IN (0, 1))
	);
	CREATE INDEX IF NOT EXISTS idx_alert_events_timestamp
	    ON alert_events (timestamp);`

const (
	insertRuleSQL = `
	INSERT INTO alert_rules (id, kind, threshold, enabled, cooldown_seconds, target)
	VALUES (?, ?, ?, ?, ?, ?)`

	insertEventSQL = `
	INSERT INTO alert_events (id, rule_id, timestamp, value, threshold, message, is_read)
	VALUES (?, ?, ?, ?, ?, ?, ?)`
)

func initSchema(db *sql.DB) error {
	if _, err := db.Exec(createTablesSQL); err != nil {
		return errors.New().Wrap(ErrSchemaInitFailed, err)
	}

	return nil
}
