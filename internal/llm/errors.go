package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
)

type ErrorKind string

const (
	KindRateLimited ErrorKind = "rate_limited"
	KindHTTP        ErrorKind = "http_error"
	KindTimeout     ErrorKind = "timeout"
	KindNetwork     ErrorKind = "network"
	KindMalformed   ErrorKind = "malformed"
)

var ErrEmptyResponse = errors.New("empty completion")

// AttemptError is the outcome of one failed provider call.
type AttemptError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *AttemptError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the same model may be tried again. Client errors
// and malformed bodies are final for the model; 5xx counts as transient.
func (e *AttemptError) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindTimeout, KindNetwork:
		return true
	case KindHTTP:
		return e.StatusCode >= http.StatusInternalServerError
	default:
		return false
	}
}

// KindOf returns the kind of an *AttemptError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var ae *AttemptError
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return "", false
}

// IsRetryable is false for anything that is not an *AttemptError.
func IsRetryable(err error) bool {
	var ae *AttemptError
	if errors.As(err, &ae) {
		return ae.Retryable()
	}
	return false
}

func statusError(code int, err error) *AttemptError {
	if code == http.StatusTooManyRequests {
		return &AttemptError{Kind: KindRateLimited, StatusCode: code, Err: err}
	}
	return &AttemptError{Kind: KindHTTP, StatusCode: code, Err: err}
}

// transportError classifies failures that happened before or while reading
// a response body.
func transportError(err error) *AttemptError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &AttemptError{Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &AttemptError{Kind: KindTimeout, Err: err}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.EOF) {
		return &AttemptError{Kind: KindMalformed, Err: err}
	}
	return &AttemptError{Kind: KindNetwork, Err: err}
}

func malformed(err error) *AttemptError {
	return &AttemptError{Kind: KindMalformed, Err: err}
}
