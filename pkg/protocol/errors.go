package protocol

import (
	"errors"
	"fmt"
)

// ErrorType distinguishes failures of the command content from failures
// of the surrounding protocol exchange (envelope, signature, framing).
type ErrorType string

const (
	ErrorTypeCommand  ErrorType = "command_error"
	ErrorTypeProtocol ErrorType = "protocol_error"
)

// ErrorCode is the machine-readable failure classification.
type ErrorCode string

const (
	// ErrorCodeConflict means the conversation lock is held; retryable.
	ErrorCodeConflict ErrorCode = "conflict"
	// ErrorCodeInvalidTransition covers illegal status edges and
	// write-once field mutations; fatal for that command version.
	ErrorCodeInvalidTransition ErrorCode = "invalid_transition"
	// ErrorCodeMissingField means a field required by the new status is absent.
	ErrorCodeMissingField ErrorCode = "missing_field"
	// ErrorCodeInvalidFieldValue means a field value is outside its domain.
	ErrorCodeInvalidFieldValue ErrorCode = "invalid_field_value"
	// ErrorCodeInvalidObject means the payload failed structural validation.
	ErrorCodeInvalidObject ErrorCode = "invalid_object"
	// ErrorCodeInvalidJWS means the envelope signature or framing is broken.
	ErrorCodeInvalidJWS ErrorCode = "invalid_jws"
	// ErrorCodeNotFound means no local user or account maps to a
	// referenced sub-identity.
	ErrorCodeNotFound ErrorCode = "not_found"
	// ErrorCodeLedgerSubmissionFailed means the settlement transaction was
	// rejected by the ledger; fatal, never silently retried.
	ErrorCodeLedgerSubmissionFailed ErrorCode = "ledger_submission_failed"
)

// OffChainErrorObject is the wire form of a failure, embedded in a
// failure acknowledgement.
type OffChainErrorObject struct {
	Type    ErrorType `json:"type"`
	Code    ErrorCode `json:"code"`
	Field   string    `json:"field,omitempty"`
	Message string    `json:"message,omitempty"`
}

// CommandError is the structured error surfaced by the validator, the
// command store and the business action handlers. It carries the
// conversation id when known so the inbound handler can acknowledge the
// right conversation.
type CommandError struct {
	Type        ErrorType
	Code        ErrorCode
	Field       string
	ReferenceID string
	Message     string
}

func (e *CommandError) Error() string {
	if e.ReferenceID != "" {
		return fmt.Sprintf("%s (%s): reference_id=%s: %s", e.Code, e.Type, e.ReferenceID, e.Message)
	}
	return fmt.Sprintf("%s (%s): %s", e.Code, e.Type, e.Message)
}

// ErrObject converts the error into its wire form.
func (e *CommandError) ErrObject() *OffChainErrorObject {
	return &OffChainErrorObject{
		Type:    e.Type,
		Code:    e.Code,
		Field:   e.Field,
		Message: e.Message,
	}
}

// NewCommandError builds a command-content error.
func NewCommandError(code ErrorCode, refID, format string, args ...any) *CommandError {
	return &CommandError{
		Type:        ErrorTypeCommand,
		Code:        code,
		ReferenceID: refID,
		Message:     fmt.Sprintf(format, args...),
	}
}

// NewProtocolError builds an envelope-level error.
func NewProtocolError(code ErrorCode, format string, args ...any) *CommandError {
	return &CommandError{
		Type:    ErrorTypeProtocol,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// FieldError attaches the offending field path to a command error.
func (e *CommandError) FieldError(field string) *CommandError {
	e.Field = field
	return e
}

// CodeOf extracts the error code from err, or "" when err carries none.
func CodeOf(err error) ErrorCode {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsConflict reports whether err is the retryable lock-held failure.
func IsConflict(err error) bool {
	return CodeOf(err) == ErrorCodeConflict
}
