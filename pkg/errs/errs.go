// Package errs defines the engine's externally visible error taxonomy.
//
// Every error carries a machine-readable Code. Comparisons use the code, so
// errors.Is(err, errs.ErrAllProvidersExhausted) holds for any *Error with that
// code anywhere in the wrap chain.
package errs

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeInvalidScenario       Code = "INVALID_SCENARIO"
	CodeCacheUnavailable      Code = "CACHE_UNAVAILABLE"
	CodePayloadUnavailable    Code = "PAYLOAD_UNAVAILABLE"
	CodeAllProvidersExhausted Code = "ALL_PROVIDERS_EXHAUSTED"
	CodeNotFound              Code = "REPORT_NOT_FOUND"
	CodeInvalidFeedback       Code = "INVALID_FEEDBACK"
	CodeCancelled             Code = "CANCELLED"
	CodeConfiguration         Code = "CONFIGURATION_ERROR"
)

// Sentinels for errors.Is.
var (
	ErrInvalidScenario       = &Error{Code: CodeInvalidScenario}
	ErrCacheUnavailable      = &Error{Code: CodeCacheUnavailable}
	ErrPayloadUnavailable    = &Error{Code: CodePayloadUnavailable}
	ErrAllProvidersExhausted = &Error{Code: CodeAllProvidersExhausted}
	ErrNotFound              = &Error{Code: CodeNotFound}
	ErrInvalidFeedback       = &Error{Code: CodeInvalidFeedback}
	ErrCancelled             = &Error{Code: CodeCancelled}
	ErrConfiguration         = &Error{Code: CodeConfiguration}
)

type Error struct {
	Code    Code
	Op      string // operation that failed, e.g. "cache.get"
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	prefix := string(e.Code)
	if e.Op != "" {
		prefix = e.Op + ":" + prefix
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", prefix, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", prefix, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func New(code Code, op, message string, cause error) *Error {
	return &Error{Code: code, Op: op, Message: message, Err: cause}
}

func InvalidScenario(message string) *Error {
	return New(CodeInvalidScenario, "scenario.key", message, nil)
}

func CacheUnavailable(op string, cause error) *Error {
	return New(CodeCacheUnavailable, op, "report cache unavailable", cause)
}

func PayloadUnavailable(message string, cause error) *Error {
	return New(CodePayloadUnavailable, "keyfindings.payload", message, cause)
}

func AllProvidersExhausted(attempts int, lastErr error) *Error {
	return New(CodeAllProvidersExhausted, "orchestrator.generate",
		fmt.Sprintf("all providers exhausted after %d attempts", attempts), lastErr)
}

func NotFound(key string) *Error {
	return New(CodeNotFound, "cache.lookup", fmt.Sprintf("no report for key %s", key), nil)
}

func InvalidFeedback(message string) *Error {
	return New(CodeInvalidFeedback, "cache.feedback", message, nil)
}

func Cancelled(op string, cause error) *Error {
	return New(CodeCancelled, op, "operation cancelled", cause)
}

func Configuration(message string, cause error) *Error {
	return New(CodeConfiguration, "config", message, cause)
}

// CodeOf returns the code of the outermost *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
