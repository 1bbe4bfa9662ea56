package ingest

import (
	"fmt"
	"log/slog"
)

// DiscoveryError means the source itself is unreachable or unparseable.
// Fatal to the whole import job.
type DiscoveryError struct {
	Msg string
}

func (e *DiscoveryError) Error() string { return e.Msg }

func discoveryErrorf(format string, args ...any) error {
	return &DiscoveryError{Msg: fmt.Sprintf(format, args...)}
}

// ValidationError means a single file failed a local gate (format, size).
// Fatal to that file only.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// TransientIOError means a network or storage call for one file failed.
// Fatal to that file only; the job continues.
type TransientIOError struct {
	Msg string
	Err error
}

func (e *TransientIOError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *TransientIOError) Unwrap() error { return e.Err }

func transientErrorf(err error, format string, args ...any) error {
	return &TransientIOError{Msg: fmt.Sprintf(format, args...), Err: err}
}

// bestEffort logs a bookkeeping failure and discards it. Progress updates,
// audit rows and error-message persistence go through here so their own
// failure can never replace the error actually being reported.
func bestEffort(op string, err error) {
	if err != nil {
		slog.Warn("best-effort write failed", slog.String("op", op), slog.Any("error", err))
	}
}
