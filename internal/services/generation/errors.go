package generation

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies pipeline failures for the caller
type ErrorKind string

const (
	KindInput     ErrorKind = "input"     // caller must change the request
	KindTransient ErrorKind = "transient" // transport failure after bounded retries
	KindQuality   ErrorKind = "quality"   // content checks exhausted their retry budget
	KindConfig    ErrorKind = "config"    // service misconfiguration, never retryable
	KindTimeout   ErrorKind = "timeout"   // whole-request deadline reached
	KindBilling   ErrorKind = "billing"   // credit check or debit failed
)

// Error is the structured failure returned by the pipeline.
// Check names the specific failing check so callers never see a generic message.
type Error struct {
	Kind    ErrorKind
	Check   string
	Message string
	Details string
	Retry   bool
	Status  int
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Check != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Check)
	}
	if e.Details != "" {
		msg = msg + ": " + e.Details
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError extracts a pipeline Error from err
func AsError(err error) (*Error, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// Classify converts any error into a pipeline Error, treating unknown errors as retryable internal failures
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	if ge, ok := AsError(err); ok {
		return ge
	}
	return &Error{
		Kind:    KindTransient,
		Check:   "internal",
		Message: "generation failed",
		Retry:   true,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// InputError is a non-retryable rejection of the request as submitted
func InputError(check, message, details string) *Error {
	return &Error{
		Kind:    KindInput,
		Check:   check,
		Message: message,
		Details: details,
		Status:  http.StatusUnprocessableEntity,
	}
}

// ConflictError rejects a request ID that already belongs to a finished or billed run
func ConflictError(details string) *Error {
	return &Error{
		Kind:    KindInput,
		Check:   "idempotency_key",
		Message: "request id already used",
		Details: details,
		Status:  http.StatusConflict,
	}
}

// RateLimitError reports that the user exceeded their request allowance
func RateLimitError(details string) *Error {
	return &Error{
		Kind:    KindInput,
		Check:   "rate_limit",
		Message: "rate limit exceeded",
		Details: details,
		Retry:   true,
		Status:  http.StatusTooManyRequests,
	}
}

// InsufficientCreditsError reports a balance below the quoted cost
func InsufficientCreditsError(required, balance int) *Error {
	return &Error{
		Kind:    KindBilling,
		Check:   "credits",
		Message: "insufficient credits",
		Details: fmt.Sprintf("this script costs %d credits, balance is %d", required, balance),
		Status:  http.StatusPaymentRequired,
	}
}

// BillingError wraps a ledger failure
func BillingError(message string, err error) *Error {
	return &Error{
		Kind:    KindBilling,
		Check:   "ledger",
		Message: message,
		Retry:   true,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// QualityError reports a content check that failed after its retry budget
func QualityError(check, message, details string) *Error {
	return &Error{
		Kind:    KindQuality,
		Check:   check,
		Message: message,
		Details: details,
		Retry:   true,
		Status:  http.StatusInternalServerError,
	}
}

// TransientError reports a transport failure that outlasted its retries
func TransientError(message string, err error) *Error {
	return &Error{
		Kind:    KindTransient,
		Check:   "llm_transport",
		Message: message,
		Retry:   true,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// TimeoutError reports that the whole-request deadline was reached
func TimeoutError(stage string, err error) *Error {
	return &Error{
		Kind:    KindTimeout,
		Check:   "timeout",
		Message: "generation timed out",
		Details: fmt.Sprintf("deadline reached during %s, please retry", stage),
		Retry:   true,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// ConfigError reports a service misconfiguration such as missing credentials
func ConfigError(message string, err error) *Error {
	return &Error{
		Kind:    KindConfig,
		Check:   "configuration",
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}
