// Package backuperr defines the classified error kinds recorded on runs.
// Every failure surfaces a stable machine-checkable kind plus a
// human-readable detail string.
package backuperr

import (
	"errors"
	"fmt"
)

// Kind is a stable machine-checkable error classification.
type Kind string

const (
	// KindConfig covers invalid or missing target/destination/schedule
	// references. Reported synchronously; a run is never created.
	KindConfig Kind = "config"
	// KindConnection covers auth failures, unreachable hosts, and missing
	// tool binaries. The target itself is unaffected.
	KindConnection Kind = "connection"
	// KindToolUnavailable is a connection failure caused by a missing
	// external tool binary on the host, surfaced separately so callers can
	// give actionable guidance.
	KindToolUnavailable Kind = "tool_unavailable"
	// KindLockContention means the target is busy; the caller may retry.
	KindLockContention Kind = "lock_contention"
	// KindBackup is a driver-level failure mid-backup; target and artifact
	// state is assumed unchanged.
	KindBackup Kind = "backup"
	// KindRestore is a driver-level failure mid-restore; the target is
	// assumed possibly inconsistent.
	KindRestore Kind = "restore"
	// KindDestination means the artifact could not be stored or retrieved.
	KindDestination Kind = "destination"
	// KindTimeout means an external process or transfer exceeded its bound
	// and was force-terminated.
	KindTimeout Kind = "timeout"
	// KindCancelled means the run was cancelled by an operator.
	KindCancelled Kind = "cancelled"
	// KindSafetyBackup means the safety backup preceding a restore failed,
	// so the destructive step never ran.
	KindSafetyBackup Kind = "safety_backup_failed"
)

// Error carries a classified kind alongside the causing error.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error without a cause.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Newf creates a classified error with a formatted detail string.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap attaches a classification to err. A nil err returns nil.
func Wrap(kind Kind, detail string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// KindOf extracts the classification from err. Unclassified errors during a
// backup default to KindBackup; pass a fallback to control that.
func KindOf(err error, fallback Kind) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return fallback
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var be *Error
	return errors.As(err, &be) && be.Kind == kind
}
