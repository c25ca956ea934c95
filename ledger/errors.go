/*
errors.go - Centralized error types for the ledger domain

PURPOSE:
  All domain error values in one place. Service packages wrap these with
  context; the API layer maps them to HTTP statuses.

TAXONOMY:
  WorkerNotFound      referenced worker does not exist in the tenant
  WorkItemNotFound    referenced work item does not exist in the tenant
  GroupNotFound       status query on a group with zero rows (updates on a
                      missing group are a no-op success, NOT this error)
  Unauthorized        tenant mismatch / missing tenant key
  PartialBatchFailure a multi-row batch write failed and was rolled back

USAGE:
  if errors.Is(err, ledger.ErrWorkerNotFound) { ... }
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrWorkerNotFound is returned when a referenced worker does not exist
	// within the caller's tenant.
	ErrWorkerNotFound = errors.New("worker not found")

	// ErrWorkItemNotFound is returned when a referenced work item does not
	// exist within the caller's tenant.
	ErrWorkItemNotFound = errors.New("work item not found")

	// ErrGroupNotFound is returned by status queries when zero rows exist
	// for a group. Update operations on a missing group succeed with a zero
	// count instead of returning this.
	ErrGroupNotFound = errors.New("group not found")

	// ErrUnauthorized is returned on a tenant mismatch or a missing tenant key.
	ErrUnauthorized = errors.New("unauthorized: tenant mismatch")

	// ErrPartialBatchFailure is returned when a batch write fails. The store
	// rolls the whole batch back; no rows from the failed batch survive.
	ErrPartialBatchFailure = errors.New("batch write failed")

	// ErrEmptyBatch is returned when a submission names no work items or no
	// workers. A batch cannot exist without rows.
	ErrEmptyBatch = errors.New("batch has no work items or no workers")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// BatchWriteError reports how many rows were attempted when a batch write
// failed and was rolled back.
type BatchWriteError struct {
	GroupNo  GroupNo
	Rows     int
	Cause    error
}

func (e *BatchWriteError) Error() string {
	return fmt.Sprintf("batch %d write failed (%d rows rolled back): %v", e.GroupNo, e.Rows, e.Cause)
}

func (e *BatchWriteError) Unwrap() error { return ErrPartialBatchFailure }

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkerNotFound) ||
		errors.Is(err, ErrWorkItemNotFound) ||
		errors.Is(err, ErrGroupNotFound)
}
