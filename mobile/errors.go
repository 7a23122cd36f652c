package mobile

import (
	"context"
	"errors"
	"io/fs"

	"github.com/kpumuk/tacho-weaver/internal/backend"
	"github.com/kpumuk/tacho-weaver/internal/ddd"
)

// Error codes match the method channel codes used by the Flutter plugin.
const (
	// ErrParser marks internal processing failures.
	ErrParser = "parser-error"
	// ErrTimeout marks an exceeded timeout.
	ErrTimeout = "timeout"
	// ErrCancelled marks an operation stopped by CancelActiveParse.
	ErrCancelled = "cancelled"
	// ErrInvalidArguments marks unusable input.
	ErrInvalidArguments = "invalid-arguments"
)

// NativeError is the coded error surfaced to Kotlin and Swift callers.
type NativeError struct {
	Code    string
	Message string
}

func (e *NativeError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func newNativeError(code, message string) *NativeError {
	return &NativeError{Code: code, Message: message}
}

// toNativeError classifies a parse failure. Cancellation is reported as a
// "cancelled" ParseResult before this point, and construction errors from
// CreateParser never pass through here.
func toNativeError(err error) *NativeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return newNativeError(ErrTimeout, "parse operation timed out")
	case errors.Is(err, ddd.ErrEmptyPayload),
		errors.Is(err, ddd.ErrInvalidSource),
		errors.Is(err, backend.ErrVerificationUnavailable),
		errors.Is(err, fs.ErrNotExist):
		return newNativeError(ErrInvalidArguments, err.Error())
	default:
		return newNativeError(ErrParser, err.Error())
	}
}
