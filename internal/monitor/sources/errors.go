package sources

import (
	"errors"
	"fmt"
)

// FailureKind splits fetch failures into the two classes the executor treats
// differently.
type FailureKind string

const (
	// FailureTransient covers network-level trouble: timeouts, connection
	// resets, 5xx responses. Retried with backoff.
	FailureTransient FailureKind = "transient"
	// FailureParse covers unexpected response structure. Never retried;
	// repeated parse failures disable the source.
	FailureParse FailureKind = "parse"
)

// FetchError is the error type every adapter failure surfaces as.
type FetchError struct {
	Source string
	Kind   FailureKind
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s failure", e.Source, e.Kind)
	}
	return fmt.Sprintf("%s: %s failure: %v", e.Source, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable fetch failure.
func Transient(source string, err error) *FetchError {
	return &FetchError{Source: source, Kind: FailureTransient, Err: err}
}

// ParseFailure wraps err as a non-retryable structure failure.
func ParseFailure(source string, err error) *FetchError {
	return &FetchError{Source: source, Kind: FailureParse, Err: err}
}

// IsTransient reports whether err is (or wraps) a transient fetch failure.
// Errors that are not FetchError at all are treated as transient: an adapter
// that forgot to classify should not get its source disabled for it.
func IsTransient(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind == FailureTransient
	}
	return err != nil
}

// IsParseFailure reports whether err is (or wraps) a parse failure.
func IsParseFailure(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == FailureParse
}
