package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrNotImplemented  ErrorCode = "not_implemented"
	ErrUnavailable     ErrorCode = "service_unavailable"
	ErrAlreadyRunning  ErrorCode = "already_running"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrMissingConfig   ErrorCode = "missing_configuration"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrInvalidInterval ErrorCode = "invalid_interval"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Sampling errors
	ErrSamplerFailed     ErrorCode = "sampler_read_failed"
	ErrSamplerAbsent     ErrorCode = "sampler_data_absent"
	ErrMonitorNotRunning ErrorCode = "monitor_not_running"

	// Alerting errors
	ErrRuleNotFound ErrorCode = "alert_rule_not_found"
	ErrInvalidRule  ErrorCode = "invalid_alert_rule"

	// History errors
	ErrInvalidRange  ErrorCode = "invalid_time_range"
	ErrNoSession     ErrorCode = "no_active_session"
	ErrExportFailed  ErrorCode = "export_failed"
	ErrStorageAccess ErrorCode = "storage_access_failed"

	// Operation errors
	ErrOperationFailed  ErrorCode = "operation_failed"
	ErrTimeout          ErrorCode = "operation_timeout"
	ErrInvalidOperation ErrorCode = "invalid_operation"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:          "Internal error occurred",
	ErrInvalidArgument:   "Invalid argument provided",
	ErrNotImplemented:    "Operation not implemented",
	ErrUnavailable:       "Service unavailable",
	ErrAlreadyRunning:    "Another instance is already running",
	ErrInvalidConfig:     "Invalid configuration",
	ErrMissingConfig:     "Missing configuration",
	ErrBindFlags:         "Failed to bind flags",
	ErrReadConfig:        "Failed to read configuration",
	ErrInvalidInterval:   "Invalid interval value",
	ErrInvalidLogLevel:   "Invalid log level",
	ErrInitFailed:        "Initialization failed",
	ErrShutdownFailed:    "Shutdown failed",
	ErrSamplerFailed:     "Failed to read resource counters",
	ErrSamplerAbsent:     "No data available for resource domain",
	ErrMonitorNotRunning: "Monitor is not running",
	ErrRuleNotFound:      "Alert rule not found",
	ErrInvalidRule:       "Invalid alert rule",
	ErrInvalidRange:      "Invalid time range",
	ErrNoSession:         "No recording session is active",
	ErrExportFailed:      "Failed to export history",
	ErrStorageAccess:     "Failed to access storage",
	ErrOperationFailed:   "Operation failed",
	ErrTimeout:           "Operation timed out",
	ErrInvalidOperation:  "Invalid operation",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
