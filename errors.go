package parsehub

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateAdapter = errors.New("duplicate adapter platform")
	ErrInvalidAdapter   = errors.New("invalid adapter")
)

// ResolutionKind classifies why URL resolution failed.
type ResolutionKind int

const (
	// ResolutionNotFound means no well-formed URL was found in the input text.
	ResolutionNotFound ResolutionKind = iota
	// ResolutionTimeout means following a redirect exceeded the configured timeout.
	ResolutionTimeout
	// ResolutionUnreachable means following a redirect failed at the transport level.
	ResolutionUnreachable
)

func (k ResolutionKind) String() string {
	switch k {
	case ResolutionNotFound:
		return "not found"
	case ResolutionTimeout:
		return "timeout"
	case ResolutionUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// A ResolutionError is returned when the URL resolver cannot produce a resolved URL.
type ResolutionError struct {
	Kind  ResolutionKind
	Input string
	Err   error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve %q: %v: %v", e.Input, e.Kind, e.Err)
	}
	return fmt.Sprintf("resolve %q: %v", e.Input, e.Kind)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Is reports whether target is a ResolutionError of the same kind, so that
// errors.Is(err, &ResolutionError{Kind: ResolutionTimeout}) works.
func (e *ResolutionError) Is(target error) bool {
	t, ok := target.(*ResolutionError)
	return ok && t.Kind == e.Kind
}

// An UnknownPlatformError is returned when no registered adapter matches a resolved URL.
type UnknownPlatformError struct {
	URL string
	// Detail aggregates per-adapter match failures, for diagnostics only.
	Detail error
}

func (e *UnknownPlatformError) Error() string {
	return fmt.Sprintf("no adapter matched %q", e.URL)
}

func (e *UnknownPlatformError) Unwrap() error { return e.Detail }

// A ParseError wraps any failure raised by an adapter's entry point.
type ParseError struct {
	Platform Platform
	URL      string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q via %s: %v", e.URL, e.Platform.ID, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// A DownloadError is returned by the download engine after retries are exhausted
// or a non-retryable condition was hit.
type DownloadError struct {
	URL string
	// StatusCode is the non-retryable HTTP status, or 0 for transport/integrity/filesystem failures.
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %q: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("download %q: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// A DeleteError is returned when cleaning up a DownloadResult's directory fails
// for a reason other than the directory already being absent.
type DeleteError struct {
	Dir string
	Err error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("delete %q: %v", e.Dir, e.Err)
}

func (e *DeleteError) Unwrap() error { return e.Err }
