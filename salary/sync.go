/*
sync.go - Salary snapshot synchronizer

PURPOSE:
  Ledger rows freeze the worker's daily rate at write time. When the salary
  timeline changes after the fact (back-dated raises, corrections), frozen
  snapshots go stale. The synchronizer recomputes each row's correct rate
  from the timeline and rewrites only the rows that differ.

MATCHING:
  A row belongs to a worker when its worker id matches OR its stored worker
  name matches case-insensitively. Rows written before the roster had ids
  only carry names.

IDEMPOTENCE:
  The expected rate is a pure function of (worker, row date, timeline), so
  a second run over an unchanged timeline updates zero rows.

SCOPES:
  SyncWorker       one worker, full history
  SyncWorkerAfter  one worker, rows dated >= cutoff
  SyncAll          every non-deleted worker in the tenant
  SyncAfterDate    every tenant row dated >= cutoff, worker resolved per row
*/
package salary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sitebook/labor-ledger/ledger"
)

// =============================================================================
// SYNCHRONIZER
// =============================================================================

// Synchronizer reconciles frozen rate snapshots with the salary timeline.
type Synchronizer struct {
	workers  ledger.WorkerStore
	salaries ledger.SalaryStore
	rows     ledger.RowStore
	log      *logrus.Logger
}

// NewSynchronizer creates a snapshot synchronizer.
func NewSynchronizer(workers ledger.WorkerStore, salaries ledger.SalaryStore, rows ledger.RowStore, log *logrus.Logger) *Synchronizer {
	if log == nil {
		log = logrus.New()
	}
	return &Synchronizer{
		workers:  workers,
		salaries: salaries,
		rows:     rows,
		log:      log,
	}
}

// SyncResult reports one synchronization pass.
type SyncResult struct {
	Success bool
	Message string

	// Updated counts rows whose snapshot was rewritten; Skipped counts rows
	// already carrying the correct rate. Unresolved counts rows that matched
	// nobody on the roster and therefore could not be checked at all — only
	// the date-scoped pass can produce these.
	Updated    int
	Skipped    int
	Unresolved int
}

// SyncAllResult reports a tenant-wide pass across workers.
type SyncAllResult struct {
	Success bool
	Message string

	WorkersProcessed int
	Updated          int
	Skipped          int
}

// SyncWorker reconciles every ledger row attributable to the worker.
func (s *Synchronizer) SyncWorker(ctx context.Context, tenant string, workerID ledger.WorkerID) SyncResult {
	return s.SyncWorkerAfter(ctx, tenant, workerID, time.Time{})
}

// SyncWorkerAfter reconciles the worker's rows dated on or after cutoff.
// The zero cutoff means the full history.
func (s *Synchronizer) SyncWorkerAfter(ctx context.Context, tenant string, workerID ledger.WorkerID, cutoff time.Time) SyncResult {
	worker, err := s.workers.GetWorker(ctx, tenant, workerID)
	if err != nil {
		s.log.WithError(err).WithField("worker", workerID).Error("snapshot sync: worker lookup failed")
		return SyncResult{Message: "failed to load worker"}
	}
	if worker == nil {
		return SyncResult{Message: "worker not found"}
	}

	rows, err := s.rows.RowsForWorker(ctx, tenant, worker.ID, worker.Name, cutoff)
	if err != nil {
		s.log.WithError(err).WithField("worker", workerID).Error("snapshot sync: row query failed")
		return SyncResult{Message: "failed to load ledger rows"}
	}

	updated, skipped, err := s.reconcileRows(ctx, tenant, worker, rows)
	if err != nil {
		return SyncResult{Message: "failed to rewrite snapshots", Updated: updated, Skipped: skipped}
	}

	s.log.WithFields(logrus.Fields{
		"worker":  worker.Name,
		"updated": updated,
		"skipped": skipped,
	}).Info("salary snapshots synchronized")

	return SyncResult{
		Success: true,
		Message: fmt.Sprintf("synchronized %d rows (%d already current)", updated, skipped),
		Updated: updated,
		Skipped: skipped,
	}
}

// SyncAll reconciles every non-deleted worker in the tenant. Zero workers
// is a success.
func (s *Synchronizer) SyncAll(ctx context.Context, tenant string) SyncAllResult {
	workers, err := s.workers.ListWorkers(ctx, tenant, false)
	if err != nil {
		s.log.WithError(err).Error("snapshot sync: worker listing failed")
		return SyncAllResult{Message: "failed to list workers"}
	}

	result := SyncAllResult{Success: true}
	for _, w := range workers {
		res := s.SyncWorkerAfter(ctx, tenant, w.ID, time.Time{})
		if !res.Success {
			// Keep going; report the first failure at the end.
			if result.Message == "" {
				result.Message = fmt.Sprintf("worker %s: %s", w.Name, res.Message)
			}
			result.Success = false
			continue
		}
		result.WorkersProcessed++
		result.Updated += res.Updated
		result.Skipped += res.Skipped
	}

	if result.Success {
		result.Message = fmt.Sprintf("synchronized %d workers: %d rows updated, %d current",
			result.WorkersProcessed, result.Updated, result.Skipped)
	}
	return result
}

// SyncAfterDate reconciles every tenant row dated on or after cutoff,
// resolving the owning worker per row by id or case-insensitive name. Rows
// that resolve to no roster member are reported as unresolved, distinct
// from rows whose snapshot was simply already current.
func (s *Synchronizer) SyncAfterDate(ctx context.Context, tenant string, cutoff time.Time) SyncResult {
	rows, err := s.rows.RowsOnOrAfter(ctx, tenant, cutoff)
	if err != nil {
		s.log.WithError(err).Error("snapshot sync: row query failed")
		return SyncResult{Message: "failed to load ledger rows"}
	}

	roster, err := s.workers.ListWorkers(ctx, tenant, true)
	if err != nil {
		s.log.WithError(err).Error("snapshot sync: worker listing failed")
		return SyncResult{Message: "failed to list workers"}
	}

	byID := make(map[ledger.WorkerID]*ledger.Worker, len(roster))
	byName := make(map[string]*ledger.Worker, len(roster))
	for i := range roster {
		byID[roster[i].ID] = &roster[i]
		byName[strings.ToLower(roster[i].Name)] = &roster[i]
	}

	updated, skipped, unresolved := 0, 0, 0
	for _, row := range rows {
		worker := byID[row.WorkerID]
		if worker == nil {
			worker = byName[strings.ToLower(row.WorkerName)]
		}
		if worker == nil {
			unresolved++
			s.log.WithFields(logrus.Fields{
				"row":    row.ID,
				"worker": row.WorkerName,
			}).Warn("snapshot sync: row matches nobody on the roster")
			continue
		}

		u, sk, err := s.reconcileRows(ctx, tenant, worker, []ledger.LedgerRow{row})
		if err != nil {
			return SyncResult{Message: "failed to rewrite snapshots", Updated: updated, Skipped: skipped, Unresolved: unresolved}
		}
		updated += u
		skipped += sk
	}

	s.log.WithFields(logrus.Fields{
		"cutoff":     ledger.Day(cutoff).Format("2006-01-02"),
		"updated":    updated,
		"skipped":    skipped,
		"unresolved": unresolved,
	}).Info("salary snapshots synchronized after date")

	return SyncResult{
		Success:    true,
		Message:    fmt.Sprintf("synchronized %d rows (%d already current, %d unattributable)", updated, skipped, unresolved),
		Updated:    updated,
		Skipped:    skipped,
		Unresolved: unresolved,
	}
}

// reconcileRows rewrites the snapshots of rows whose frozen rate disagrees
// with the timeline as of the row's date.
func (s *Synchronizer) reconcileRows(ctx context.Context, tenant string, worker *ledger.Worker, rows []ledger.LedgerRow) (updated, skipped int, err error) {
	for _, row := range rows {
		expected, err := s.rateAt(ctx, tenant, worker, row.Date)
		if err != nil {
			s.log.WithError(err).WithField("row", row.ID).Error("snapshot sync: rate resolution failed")
			return updated, skipped, err
		}

		if row.DailyRateSnapshot.Equal(expected) {
			skipped++
			continue
		}

		if err := s.rows.UpdateRowRateSnapshot(ctx, tenant, row.ID, expected); err != nil {
			s.log.WithError(err).WithField("row", row.ID).Error("snapshot sync: rewrite failed")
			return updated, skipped, err
		}
		updated++
	}
	return updated, skipped, nil
}

// rateAt resolves the worker's rate on a date: timeline first, baseline
// rate as the fallback.
func (s *Synchronizer) rateAt(ctx context.Context, tenant string, worker *ledger.Worker, date time.Time) (decimal.Decimal, error) {
	entry, err := s.salaries.SalaryEntryAt(ctx, tenant, worker.ID, date)
	if err != nil {
		return decimal.Zero, err
	}
	if entry != nil {
		return entry.DailyRate, nil
	}
	return worker.DailyRate, nil
}
