package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrProtectionQuery means the reservation ledger could not be read.
	// The engine fails closed on it: every candidate is treated as
	// protected and the deletion step is aborted.
	ErrProtectionQuery = errors.New("reservation protection query failed")

	// ErrBusinessBusy means another engine run holds the per-business lock.
	ErrBusinessBusy = errors.New("another engine run is in progress for this business")
)

// ConfigError reports an incomplete business configuration: a missing
// booking policy field or no active resources. Nothing is written when one
// is returned.
type ConfigError struct {
	Missing string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("business configuration incomplete: missing %s", e.Missing)
}

// ConflictError halts a run because active reservations fall on days the
// schedule is about to close. It carries the conflicts as data; the caller
// decides whether to abort or auto-protect the dates and retry.
type ConflictError struct {
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("schedule change conflicts with active reservations on %d date(s)", len(e.Conflicts))
}

// BatchError reports a failed write batch. Earlier batches stay committed;
// Completed carries how many rows made it before the failure.
type BatchError struct {
	Op        string
	Completed int
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%s batch failed after %d rows: %v", e.Op, e.Completed, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}
