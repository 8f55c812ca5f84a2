package history

import (
	"database/sql"

	"codeberg.org/mutker/sysmond/internal/errors"
)

const createTablesSQL = `
	CREATE TABLE IF NOT EXISTS history_points (
	    timestamp      INTEGER NOT NULL,
	    cpu_percent    REAL NOT NULL,
	    mem_percent    REAL NOT NULL,
	    mem_bytes      INTEGER NOT NULL,
	    net_up_bps     REAL NOT NULL,
	    net_down_bps   REAL NOT NULL,
	    disk_read_bps  REAL NOT NULL,
	    disk_write_bps REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_points_timestamp
	    ON history_points (timestamp);
	CREATE TABLE IF NOT EXISTS sessions (
	    id               TEXT PRIMARY KEY,
	    start_time       INTEGER NOT NULL,
	    end_time         INTEGER NOT NULL,
	    point_count      INTEGER NOT NULL,
	    avg_cpu          REAL NOT NULL,
	    max_cpu          REAL NOT NULL,
	    avg_mem          REAL NOT NULL,
	    max_mem          REAL NOT NULL,
	    net_up_bytes     REAL NOT NULL,
	    net_down_bytes   REAL NOT NULL,
	    disk_read_bytes  REAL NOT NULL,
	    disk_write_bytes REAL NOT NULL,
	    alert_count      INTEGER NOT NULL,
	    top_processes    TEXT NOT NULL
	);`

const (
	insertPointSQL = `
	INSERT INTO history_points (
	    timestamp, cpu_percent, mem_percent, mem_bytes,
	    net_up_bps, net_down_bps, disk_read_bps, disk_write_bps
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	insertSessionSQL = `
	INSERT OR REPLACE INTO sessions (
	    id, start_time, end_time, point_count,
	    avg_cpu, max_cpu, avg_mem, max_mem,
	    net_up_bytes, net_down_bytes, disk_read_bytes, disk_write_bytes,
	    alert_count, top_processes
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

func initSchema(db *sql.DB) error {
	if _, err := db.Exec(createTablesSQL); err != nil {
		return errors.New().Wrap(ErrSchemaInitFailed, err)
	}

	return nil
}
