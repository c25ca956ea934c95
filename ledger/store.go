/*
store.go - Persistence interfaces between the domain services and the database

PURPOSE:
  The salary and diary services depend on these interfaces; store/sqlite
  implements all of them on one Store value. Every method is scoped by the
  tenant key — no query in the system crosses tenants.

ATOMIC BATCH REPLACE:
  ReplaceBatch is the only way a batch is written or rewritten. It deletes
  every row sharing the GroupNo and inserts the freshly computed set inside
  one database transaction: a crash or a bad row can never leave the batch
  empty or half-written.

SEE ALSO:
  - store/sqlite/sqlite.go: concrete implementation
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// WorkerStore persists roster members.
type WorkerStore interface {
	SaveWorker(ctx context.Context, w Worker) error
	GetWorker(ctx context.Context, tenant string, id WorkerID) (*Worker, error)

	// ListWorkers returns the tenant's workers ordered by name. Soft-deleted
	// workers are excluded unless includeDeleted is set.
	ListWorkers(ctx context.Context, tenant string, includeDeleted bool) ([]Worker, error)

	// UpdateWorkerDailyRate overwrites the denormalized current rate.
	UpdateWorkerDailyRate(ctx context.Context, tenant string, id WorkerID, rate decimal.Decimal) error
}

// SalaryStore persists the dated rate timeline.
type SalaryStore interface {
	// UpsertSalaryEntry inserts the entry, or overwrites the rate when one
	// already exists for the same (worker, ValidFrom, tenant).
	UpsertSalaryEntry(ctx context.Context, e SalaryHistoryEntry) error

	// SalaryEntryAt returns the entry with the greatest ValidFrom <= asOf,
	// or nil when no entry qualifies.
	SalaryEntryAt(ctx context.Context, tenant string, workerID WorkerID, asOf time.Time) (*SalaryHistoryEntry, error)

	// ListSalaryHistory returns the worker's entries, newest first.
	ListSalaryHistory(ctx context.Context, tenant string, workerID WorkerID) ([]SalaryHistoryEntry, error)
}

// RowStore persists ledger rows and batch-level operations over them.
type RowStore interface {
	// CreateRow inserts a single row and returns it with generated fields set.
	CreateRow(ctx context.Context, row LedgerRow) (*LedgerRow, error)

	// ReplaceBatch atomically deletes every row of the group and inserts the
	// given rows. Returns the number of rows inserted. Nothing is written if
	// any insert fails.
	ReplaceBatch(ctx context.Context, tenant string, groupNo GroupNo, rows []LedgerRow) (int, error)

	// DeleteBatch removes every row of the group; returns the delete count.
	DeleteBatch(ctx context.Context, tenant string, groupNo GroupNo) (int64, error)

	RowsByGroup(ctx context.Context, tenant string, groupNo GroupNo) ([]LedgerRow, error)
	RowsByWork(ctx context.Context, tenant string, workID string) ([]LedgerRow, error)

	// RowsForWorker returns rows attributable to a worker: matched by worker
	// id OR by case-insensitive name, deduplicated. cutoff limits the scan to
	// rows dated on or after it; pass the zero time for the full history.
	RowsForWorker(ctx context.Context, tenant string, id WorkerID, name string, cutoff time.Time) ([]LedgerRow, error)

	// RowsOnOrAfter returns every tenant row dated >= cutoff.
	RowsOnOrAfter(ctx context.Context, tenant string, cutoff time.Time) ([]LedgerRow, error)

	// LatestProgressBefore returns the most recent ProgressAtDate recorded
	// for the work item strictly before the given date, across all batches.
	// Zero when no earlier row exists.
	LatestProgressBefore(ctx context.Context, tenant string, workItemID WorkItemID, date time.Time) (decimal.Decimal, error)

	// LatestRow returns the work item's most recent row, ordered by date,
	// then creation time, then id. Nil when the item has no rows.
	LatestRow(ctx context.Context, tenant string, workItemID WorkItemID) (*LedgerRow, error)

	// UpdateRowRateSnapshot rewrites one row's frozen daily rate.
	UpdateRowRateSnapshot(ctx context.Context, tenant string, rowID string, rate decimal.Decimal) error

	// UpdateGroupAccepted flips the accepted flag on every row of the group;
	// returns the number of rows touched (0 is not an error).
	UpdateGroupAccepted(ctx context.Context, tenant string, groupNo GroupNo, accepted bool) (int64, error)
}

// WorkItemStore persists work items and their denormalized completion state.
type WorkItemStore interface {
	SaveWorkItem(ctx context.Context, wi WorkItem) error
	GetWorkItem(ctx context.Context, tenant string, id WorkItemID) (*WorkItem, error)
	ListWorkItems(ctx context.Context, tenant string) ([]WorkItem, error)

	// UpdateWorkItemCompleted sets the denormalized completed quantity and
	// derived progress percent.
	UpdateWorkItemCompleted(ctx context.Context, tenant string, id WorkItemID, completed decimal.Decimal, progress int) error
}
