package errors

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AppError carries both the internal description of a failure and the message
// shown to the end user in chat.
type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

// NewValidationError covers malformed or non-positive amounts and other bad input.
func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:        "E100",
		Message:     msg,
		UserMessage: fmt.Sprintf("Please check your input. %s", msg),
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}

// NewSelfTransferError rejects tips where sender and recipient are the same account.
func NewSelfTransferError() *AppError {
	return &AppError{
		Code:        "E101",
		Message:     "sender and recipient are the same account",
		UserMessage: "You cannot tip yourself.",
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}

// NewRecipientNotRegisteredError reports that an identifier resolved to no known account.
func NewRecipientNotRegisteredError(identifier string) *AppError {
	return &AppError{
		Code:        "E102",
		Message:     fmt.Sprintf("recipient %q is not registered", identifier),
		UserMessage: fmt.Sprintf("%s has not registered with the bot yet.", identifier),
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}

// NewInsufficientBalanceError reports that the sender cannot cover the tip.
func NewInsufficientBalanceError() *AppError {
	return &AppError{
		Code:        "E103",
		Message:     "sender balance below requested amount",
		UserMessage: "Insufficient balance to send this tip.",
		Severity:    SeverityLow,
		Retryable:   false,
		cause:       nil,
	}
}

// NewDatabaseError wraps storage failures. Any partial mutation has been rolled
// back by the time this error is constructed.
func NewDatabaseError(cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:        "E200",
		Message:     fmt.Sprintf("database error: %s", underlyingMsg),
		UserMessage: "A temporary problem occurred. Please try again later.",
		Severity:    SeverityHigh,
		Retryable:   true,
		cause:       cause,
	}
}

// NewLogWriteError covers a failed transfer-log append. The transfer itself is
// rolled back, but losing auditability silently is never acceptable, so this
// is always escalated to the operator channel.
func NewLogWriteError(cause error) *AppError {
	return &AppError{
		Code:        "E201",
		Message:     "transfer log write failed",
		UserMessage: "The tip could not be completed. Please try again later.",
		Severity:    SeverityCritical,
		Retryable:   false,
		cause:       cause,
	}
}

// NewOracleError wraps failures of the external balance oracle.
func NewOracleError(cause error) *AppError {
	return &AppError{
		Code:        "E300",
		Message:     "balance oracle request failed",
		UserMessage: "The balance service is temporarily unavailable.",
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}
