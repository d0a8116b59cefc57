package types

import (
	"errors"
	"fmt"
	"time"
)

// FetchErrorKind classifies upstream API failures.
type FetchErrorKind string

const (
	FetchNotFound     FetchErrorKind = "not_found"
	FetchRateLimited  FetchErrorKind = "rate_limited"
	FetchUnauthorized FetchErrorKind = "unauthorized"
	FetchNetwork      FetchErrorKind = "network"
	FetchUpstream     FetchErrorKind = "upstream"
)

// FetchError wraps a failed upstream fetch. Rate-limit and network failures
// are retryable in-client; everything is retryable at the workflow layer up
// to the bounded attempt count, after which the cycle is reported skipped.
type FetchError struct {
	Kind   FetchErrorKind
	Status int
	Err    error

	// RetryAfter is the server-directed wait from a Retry-After header,
	// already clamped by the client. Zero means no directive was given.
	RetryAfter time.Duration
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s (http %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether retrying the same request without operator
// intervention can succeed. Transport failures and transient gateway
// statuses qualify; auth, not-found and other upstream statuses do not.
func (e *FetchError) Retryable() bool {
	return e.Kind == FetchRateLimited || e.Kind == FetchNetwork
}

// RetryDelay returns the server-directed wait, if the server gave one.
func (e *FetchError) RetryDelay() (time.Duration, bool) {
	if e.RetryAfter > 0 {
		return e.RetryAfter, true
	}
	return 0, false
}

// AsFetchError unwraps err into a *FetchError if one is in the chain.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// DataAnomalyError marks a non-fatal inconsistency in upstream data. The
// offending participant or period is skipped; the rest of the cycle proceeds.
type DataAnomalyError struct {
	PlayerTag string
	Reason    string
}

func (e *DataAnomalyError) Error() string {
	if e.PlayerTag != "" {
		return fmt.Sprintf("data anomaly for %s: %s", e.PlayerTag, e.Reason)
	}
	return fmt.Sprintf("data anomaly: %s", e.Reason)
}

// StaleSnapshotError marks a snapshot older than the stored period. The
// snapshot is discarded; stored state is left untouched.
type StaleSnapshotError struct {
	Stored   PeriodKey
	Incoming PeriodKey
}

func (e *StaleSnapshotError) Error() string {
	return fmt.Sprintf("stale snapshot: incoming (%d,%d) behind stored (%d,%d)",
		e.Incoming.SeasonID, e.Incoming.SectionIndex, e.Stored.SeasonID, e.Stored.SectionIndex)
}

// IsStale reports whether err is a StaleSnapshotError.
func IsStale(err error) bool {
	var se *StaleSnapshotError
	return errors.As(err, &se)
}

// PersistenceConflictError wraps a state write that lost against a concurrent
// writer. Not fatal: the losing cycle skips, and the next cycle reconciles
// against the winner's record.
type PersistenceConflictError struct {
	Key string
	Err error
}

func (e *PersistenceConflictError) Error() string {
	return fmt.Sprintf("persistence conflict on %s: %v", e.Key, e.Err)
}

func (e *PersistenceConflictError) Unwrap() error { return e.Err }
