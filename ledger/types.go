/*
Package ledger contains the core domain model for the work progress and
labor-cost ledger.

PURPOSE:
  This package defines the domain types and the allocation algorithm shared
  by the salary, diary, and store packages. It knows nothing about HTTP or
  SQL.

KEY CONCEPTS IN THIS FILE (types.go):
  - Worker: a roster member with a denormalized "current" daily rate
  - SalaryHistoryEntry: a dated rate change (the point-in-time timeline)
  - WorkItem: a unit of work with a ledger-maintained completed quantity
  - LedgerRow: one (work item, worker, date) progress/hours record
  - Batch: the set of LedgerRows sharing one GroupNo (one user submission)

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for every quantity, hour, and rate
  2. Type safety: distinct ID types for workers, work items, and groups
  3. Snapshots over sums: a WorkItem's completed quantity is always the
     latest absolute ProgressAtDate, never a sum of deltas
  4. Tenancy: every record carries the tenant key it was written under

SEE ALSO:
  - allocation.go: converts a batch submission into LedgerRows
  - errors.go: error taxonomy
  - store.go: persistence interfaces
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type WorkerID string
type WorkItemID string

// GroupNo ties together every row produced by one submission. A batch has no
// stored identity of its own; it is inferred from the shared GroupNo.
type GroupNo int64

// =============================================================================
// WORKER & SALARY HISTORY
// =============================================================================

// Worker is a roster member. DailyRate is a denormalized copy of the most
// recently ENTERED salary change (not necessarily the most recently
// effective one) and is the fallback when no history entry qualifies.
type Worker struct {
	ID        WorkerID
	Name      string
	Email     string
	DailyRate decimal.Decimal
	Deleted   bool
	Tenant    string
	CreatedAt time.Time
}

// SalaryHistoryEntry records that a worker's daily rate is DailyRate from
// ValidFrom onward. At most one entry exists per (worker, ValidFrom, tenant);
// a second write for the same date overwrites the rate.
type SalaryHistoryEntry struct {
	ID        string
	WorkerID  WorkerID
	DailyRate decimal.Decimal
	ValidFrom time.Time
	Tenant    string
	CreatedAt time.Time
}

// =============================================================================
// WORK ITEMS
// =============================================================================

// WorkItem is a unit of work with a target quantity. CompletedQuantity and
// Progress are maintained exclusively by ledger reconciliation: they mirror
// the ProgressAtDate of the item's most recent LedgerRow.
type WorkItem struct {
	ID                WorkItemID
	WorkID            string
	Name              string
	Unit              string
	Quantity          decimal.Decimal
	CompletedQuantity decimal.Decimal
	Progress          int
	InProgress        bool
	Tenant            string
	CreatedAt         time.Time
}

// CompletionPercent derives the integer progress percentage from a completed
// quantity. Zero when the target quantity is not positive.
func (w WorkItem) CompletionPercent(completed decimal.Decimal) int {
	if !w.Quantity.IsPositive() || !completed.IsPositive() {
		return 0
	}
	pct := completed.Div(w.Quantity).Mul(decimal.NewFromInt(100))
	return int(pct.IntPart())
}

// =============================================================================
// LEDGER ROWS
// =============================================================================

// LedgerRow is one per-work-item, per-worker, per-date record.
//
// INVARIANTS:
//   - Quantity is always a delta (the forward progress attributed to this
//     worker in this batch), never cumulative.
//   - ProgressAtDate is always the absolute cumulative snapshot submitted
//     for the work item, never a delta.
//   - DailyRateSnapshot is the worker's rate as of Date, frozen at write
//     time and repaired only by salary snapshot synchronization.
type LedgerRow struct {
	ID                string
	GroupNo           GroupNo
	WorkID            string
	WorkItemID        WorkItemID
	WorkerID          WorkerID
	WorkerName        string
	Date              time.Time
	Quantity          decimal.Decimal
	Unit              string
	WorkHours         decimal.Decimal
	ProgressAtDate    decimal.Decimal
	DailyRateSnapshot decimal.Decimal
	Accepted          bool
	Notes             string
	Tenant            string
	CreatedAt         time.Time
}

// HoursPerDay prices a daily rate against partial-day hours: a row's labor
// cost is DailyRateSnapshot * WorkHours / 8.
var HoursPerDay = decimal.NewFromInt(8)

// Cost returns the labor cost frozen onto this row.
func (r LedgerRow) Cost() decimal.Decimal {
	return r.DailyRateSnapshot.Mul(r.WorkHours).Div(HoursPerDay)
}

// =============================================================================
// TIME HELPERS
// =============================================================================

// Day normalizes a timestamp to its UTC calendar day. Ledger dates and
// salary ValidFrom dates are day-granular.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MustDecimal parses a decimal literal, returning zero on failure.
// For constants and test fixtures.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
