package alert

import "codeberg.org/mutker/sysmond/internal/errors"

const (
	// Rule errors
	ErrRuleNotFound  = errors.ErrRuleNotFound
	ErrInvalidRule   = errors.ErrInvalidRule
	ErrEventNotFound = errors.ErrorCode("alert_event_not_found")

	// Storage errors
	ErrInvalidDBPath     = errors.ErrorCode("alert_invalid_db_path")
	ErrSchemaInitFailed  = errors.ErrorCode("alert_schema_init_failed")
	ErrTransactionFailed = errors.ErrorCode("alert_transaction_failed")
	ErrStorageAccess     = errors.ErrStorageAccess
	ErrStorageInit       = errors.ErrInitFailed
	ErrStorageClose      = errors.ErrShutdownFailed
)
