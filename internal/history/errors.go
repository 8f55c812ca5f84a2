package history

import "codeberg.org/mutker/sysmond/internal/errors"

const (
	// Query errors
	ErrInvalidRange = errors.ErrInvalidRange
	ErrNoSession    = errors.ErrNoSession
	ErrExportFailed = errors.ErrExportFailed

	// Storage errors
	ErrInvalidDBPath     = errors.ErrorCode("history_invalid_db_path")
	ErrSchemaInitFailed  = errors.ErrorCode("history_schema_init_failed")
	ErrTransactionFailed = errors.ErrorCode("history_transaction_failed")
	ErrStorageAccess     = errors.ErrStorageAccess
	ErrStorageInit       = errors.ErrInitFailed
	ErrStorageClose      = errors.ErrShutdownFailed
)
