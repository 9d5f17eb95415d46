// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case. Generic codes mirror HTTP status semantics;
// domain codes name the operation that failed. Clients branch on the code,
// never on the message. Throttling and idempotency conflicts are answered by
// middleware with their own codes.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "invalid_when",
//	  "message": "when must be epoch milliseconds or an ISO-8601 string"
//	}
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeNotFound     = "not_found"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeInvalidWhen      = "invalid_when"
	ErrCodeCreateFailed     = "create_failed"
	ErrCodeListFailed       = "list_failed"
	ErrCodeUpdateFailed     = "update_failed"
	ErrCodeCalendarDisabled = "calendar_disabled"
	ErrCodeCalendarFailed   = "calendar_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
