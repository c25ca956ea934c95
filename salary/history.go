/*
Package salary manages the dated rate timeline and the repair of frozen
rate snapshots on ledger rows.

history.go - Salary history service

PURPOSE:
  Records dated salary changes, answers "what was this worker's daily rate
  on date D", and keeps the worker's denormalized current rate in step with
  the timeline.

KEY RULES:
  - At most one history entry per (worker, validFrom): a second change for
    the same effective date overwrites the rate in place.
  - Recording a change ALWAYS overwrites the worker's denormalized current
    DailyRate, even when the change is back-dated. The denormalized field
    tracks the most recently ENTERED change, not the most recently
    effective one; point-in-time reads always go through the timeline.
  - Rate lookups pick the entry with the greatest validFrom <= asOf. With
    no qualifying entry the worker's baseline DailyRate applies; an unknown
    worker resolves to rate 0, not an error.
  - After a change is saved, the worker's ledger rows dated on or after
    validFrom are resynchronized best-effort. Snapshot repair failing never
    fails the salary save.

SEE ALSO:
  - sync.go: the snapshot synchronizer this service delegates repair to
*/
package salary

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sitebook/labor-ledger/ledger"
)

// =============================================================================
// SERVICE
// =============================================================================

// HistoryService records and queries the salary timeline.
type HistoryService struct {
	workers  ledger.WorkerStore
	salaries ledger.SalaryStore
	sync     *Synchronizer
	log      *logrus.Logger
}

// NewHistoryService creates a history service. sync may be nil, in which
// case saved changes do not trigger snapshot repair.
func NewHistoryService(workers ledger.WorkerStore, salaries ledger.SalaryStore, sync *Synchronizer, log *logrus.Logger) *HistoryService {
	if log == nil {
		log = logrus.New()
	}
	return &HistoryService{
		workers:  workers,
		salaries: salaries,
		sync:     sync,
		log:      log,
	}
}

// AddChangeResult reports the outcome of recording a salary change.
type AddChangeResult struct {
	Success bool
	Message string

	// SyncedRows is how many ledger rows had their frozen rate repaired by
	// the follow-up synchronization. Zero when sync was skipped or failed.
	SyncedRows int
}

// AddSalaryChange records that the worker's daily rate is rate from
// validFrom onward, overwriting any existing entry for the same date, and
// unconditionally overwrites the worker's denormalized current rate.
func (s *HistoryService) AddSalaryChange(ctx context.Context, tenant string, workerID ledger.WorkerID, rate decimal.Decimal, validFrom time.Time) AddChangeResult {
	worker, err := s.workers.GetWorker(ctx, tenant, workerID)
	if err != nil {
		s.log.WithError(err).WithField("worker", workerID).Error("salary change: worker lookup failed")
		return AddChangeResult{Message: "failed to load worker"}
	}
	if worker == nil {
		return AddChangeResult{Message: "worker not found"}
	}

	entry := ledger.SalaryHistoryEntry{
		WorkerID:  workerID,
		DailyRate: rate,
		ValidFrom: ledger.Day(validFrom),
		Tenant:    tenant,
	}
	if err := s.salaries.UpsertSalaryEntry(ctx, entry); err != nil {
		s.log.WithError(err).WithField("worker", workerID).Error("salary change: history write failed")
		return AddChangeResult{Message: "failed to save salary change"}
	}

	// The denormalized rate tracks the latest ENTRY, effective date ignored.
	if err := s.workers.UpdateWorkerDailyRate(ctx, tenant, workerID, rate); err != nil {
		s.log.WithError(err).WithField("worker", workerID).Error("salary change: current rate update failed")
		return AddChangeResult{Message: "failed to update current rate"}
	}

	result := AddChangeResult{Success: true, Message: "salary change recorded"}

	// Best-effort repair of snapshots the new entry may have invalidated.
	if s.sync != nil {
		syncRes := s.sync.SyncWorkerAfter(ctx, tenant, workerID, entry.ValidFrom)
		if syncRes.Success {
			result.SyncedRows = syncRes.Updated
		} else {
			s.log.WithFields(logrus.Fields{
				"worker": workerID,
				"from":   entry.ValidFrom.Format("2006-01-02"),
			}).Warn("salary change saved but snapshot sync failed: " + syncRes.Message)
		}
	}

	return result
}

// GetCurrentSalary resolves the worker's daily rate as of the given date:
// the timeline entry with the greatest validFrom <= asOf, else the worker's
// baseline rate, else zero for an unknown worker.
func (s *HistoryService) GetCurrentSalary(ctx context.Context, tenant string, workerID ledger.WorkerID, asOf time.Time) (decimal.Decimal, error) {
	entry, err := s.salaries.SalaryEntryAt(ctx, tenant, workerID, asOf)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to resolve salary: %w", err)
	}
	if entry != nil {
		return entry.DailyRate, nil
	}

	worker, err := s.workers.GetWorker(ctx, tenant, workerID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load worker: %w", err)
	}
	if worker == nil {
		// Unknown workers price at zero rather than failing cost math.
		return decimal.Zero, nil
	}
	return worker.DailyRate, nil
}

// GetSalaryHistory returns the worker's recorded changes, newest first.
func (s *HistoryService) GetSalaryHistory(ctx context.Context, tenant string, workerID ledger.WorkerID) ([]ledger.SalaryHistoryEntry, error) {
	return s.salaries.ListSalaryHistory(ctx, tenant, workerID)
}
