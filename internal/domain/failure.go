package domain

import (
	"errors"
	"fmt"
	"strings"
)

// FailureReason classifies why an entry could not be resolved.
type FailureReason string

const (
	ReasonUnauthorized          FailureReason = "Unauthorized"
	ReasonTranscriptUnavailable FailureReason = "TranscriptUnavailable"
	ReasonRateLimited           FailureReason = "RateLimited"
	ReasonNetwork               FailureReason = "NetworkError"
	ReasonFileSystem            FailureReason = "FileSystemError"
	ReasonUnknown               FailureReason = "Unknown"
)

var knownReasons = []FailureReason{
	ReasonUnauthorized,
	ReasonTranscriptUnavailable,
	ReasonRateLimited,
	ReasonNetwork,
	ReasonFileSystem,
}

// ParseReason maps a logged reason name back to a FailureReason.
// Unrecognised names map to ReasonUnknown with ok=false.
func ParseReason(s string) (FailureReason, bool) {
	s = strings.TrimSpace(s)
	for _, r := range knownReasons {
		if string(r) == s {
			return r, true
		}
	}
	return ReasonUnknown, false
}

// FetchError is the only error type a Fetcher returns.
type FetchError struct {
	Kind   FailureReason
	Status int
	Detail string
	Err    error
}

func (e *FetchError) Error() string {
	msg := string(e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fatal reports whether the error invalidates the rest of the run.
func (e *FetchError) Fatal() bool {
	return e.Kind == ReasonUnauthorized
}

// Description is the free-text detail recorded in the failure log.
func (e *FetchError) Description() string {
	parts := make([]string, 0, 3)
	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status %d", e.Status))
	}
	if e.Detail != "" {
		parts = append(parts, e.Detail)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

// FatalKind names the class of a run-level failure.
type FatalKind string

const (
	FatalConfig    FatalKind = "config"
	FatalInput     FatalKind = "input"
	FatalOutputDir FatalKind = "output directory"
	FatalProgress  FatalKind = "progress store"
)

// FatalError aborts the whole run.
type FatalError struct {
	Kind FatalKind
	Err  error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal %s error: %v", e.Kind, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err as a FatalError of the given kind.
func Fatal(kind FatalKind, err error) error {
	return &FatalError{Kind: kind, Err: err}
}

// IsFatal reports whether err carries a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
