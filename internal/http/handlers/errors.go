// Package handlers defines HTTP-layer error codes used across all API
// endpoints. Codes are lowercase snake_case and stable: clients branch on
// them programmatically, messages are for humans.
package handlers

const (
	ErrCodeBadRequest = "bad_request"
	ErrCodeNotFound   = "not_found"
	ErrCodeInternal   = "internal_error"

	// Domain-specific:
	ErrCodeIntakeFailed     = "intake_failed"
	ErrCodeReportFailed     = "report_failed"
	ErrCodeQueueFailed      = "queue_failed"
	ErrCodeSettingsFailed   = "settings_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
