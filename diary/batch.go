/*
Package diary records work progress submissions as batches of ledger rows
and keeps the denormalized work-item completion totals in step with them.

batch.go - Batch submission service

PURPOSE:
  Turns one submission (slider values per work item, session hours per
  worker) into a persisted batch: computes the allocation, freezes each
  worker's daily rate as of the batch date onto the rows, writes the batch
  atomically, and reconciles the affected work items' completed totals.

BATCH IDENTITY:
  Rows of one submission share a GroupNo. Submitting with GroupNo 0 mints a
  new one; submitting with an existing GroupNo REPLACES that batch — the
  store deletes the old rows and inserts the new set in one transaction, so
  an edit can never leave the batch empty or half-written.

COMPLETION TOTALS:
  A work item's completedQuantity is always the ProgressAtDate of its most
  recent ledger row (date, then write time), never a sum of row deltas.
  Every write or delete that touches an item triggers a recompute.

SEE ALSO:
  - ledger/allocation.go: the pure allocation engine
  - approval.go: batch-level accept/revoke
*/
package diary

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sitebook/labor-ledger/ledger"
	"github.com/sitebook/labor-ledger/salary"
)

// =============================================================================
// SERVICE
// =============================================================================

// BatchService writes, reads, and deletes progress batches.
type BatchService struct {
	rows   ledger.RowStore
	items  ledger.WorkItemStore
	salary *salary.HistoryService
	log    *logrus.Logger

	mu        sync.Mutex
	lastGroup ledger.GroupNo
}

// NewBatchService creates a batch service.
func NewBatchService(rows ledger.RowStore, items ledger.WorkItemStore, history *salary.HistoryService, log *logrus.Logger) *BatchService {
	if log == nil {
		log = logrus.New()
	}
	return &BatchService{
		rows:   rows,
		items:  items,
		salary: history,
		log:    log,
	}
}

// nextGroupNo mints a millisecond-timestamp batch id, bumped past the last
// one handed out so two submissions in the same millisecond cannot collide.
func (s *BatchService) nextGroupNo() ledger.GroupNo {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := ledger.GroupNo(time.Now().UnixMilli())
	if n <= s.lastGroup {
		n = s.lastGroup + 1
	}
	s.lastGroup = n
	return n
}

// SubmitResult reports the outcome of writing a batch.
type SubmitResult struct {
	Success bool
	Message string

	GroupNo     ledger.GroupNo
	RowsWritten int
}

// SubmitBatch computes and persists one batch. A zero GroupNo on the
// request mints a new batch; an existing GroupNo replaces that batch
// atomically.
func (s *BatchService) SubmitBatch(ctx context.Context, tenant string, req ledger.BatchRequest) SubmitResult {
	if req.GroupNo == 0 {
		req.GroupNo = s.nextGroupNo()
	}
	req.Date = ledger.Day(req.Date)

	// Previous cumulative progress per item, strictly before the batch date.
	previous := make(map[ledger.WorkItemID]decimal.Decimal, len(req.Items))
	for _, item := range req.Items {
		prev, err := s.rows.LatestProgressBefore(ctx, tenant, item.WorkItemID, req.Date)
		if err != nil {
			s.log.WithError(err).WithField("item", item.WorkItemID).Error("batch submit: previous progress lookup failed")
			return SubmitResult{Message: "failed to load previous progress", GroupNo: req.GroupNo}
		}
		previous[item.WorkItemID] = prev
	}

	allocations, err := ledger.Allocate(req, previous)
	if err != nil {
		return SubmitResult{Message: err.Error(), GroupNo: req.GroupNo}
	}

	// Freeze each worker's rate as of the batch date, one lookup per worker.
	rates := make(map[ledger.WorkerID]decimal.Decimal, len(req.Workers))
	for _, w := range req.Workers {
		rate, err := s.salary.GetCurrentSalary(ctx, tenant, w.WorkerID, req.Date)
		if err != nil {
			s.log.WithError(err).WithField("worker", w.WorkerID).Error("batch submit: rate resolution failed")
			return SubmitResult{Message: "failed to resolve worker rate", GroupNo: req.GroupNo}
		}
		rates[w.WorkerID] = rate
	}

	rows := make([]ledger.LedgerRow, 0, len(allocations))
	for _, a := range allocations {
		rows = append(rows, ledger.LedgerRow{
			GroupNo:           req.GroupNo,
			WorkID:            req.WorkID,
			WorkItemID:        a.WorkItemID,
			WorkerID:          a.WorkerID,
			WorkerName:        a.WorkerName,
			Date:              req.Date,
			Quantity:          a.Quantity,
			Unit:              a.Unit,
			WorkHours:         a.WorkHours,
			ProgressAtDate:    a.ProgressAtDate,
			DailyRateSnapshot: rates[a.WorkerID],
			Notes:             req.Notes,
			Tenant:            tenant,
		})
	}

	written, err := s.rows.ReplaceBatch(ctx, tenant, req.GroupNo, rows)
	if err != nil {
		s.log.WithError(err).WithField("group", req.GroupNo).Error("batch submit: write failed")
		return SubmitResult{Message: "batch write failed, no rows were saved", GroupNo: req.GroupNo}
	}

	for _, item := range req.Items {
		if err := s.RecomputeWorkItemTotal(ctx, tenant, item.WorkItemID); err != nil {
			s.log.WithError(err).WithField("item", item.WorkItemID).Warn("batch submit: completion recompute failed")
		}
	}

	s.log.WithFields(logrus.Fields{
		"group": req.GroupNo,
		"rows":  written,
		"date":  req.Date.Format("2006-01-02"),
	}).Info("batch written")

	return SubmitResult{
		Success:     true,
		Message:     fmt.Sprintf("batch %d saved with %d rows", req.GroupNo, written),
		GroupNo:     req.GroupNo,
		RowsWritten: written,
	}
}

// DeleteResult reports a batch deletion.
type DeleteResult struct {
	Success bool
	Message string
	Deleted int64
}

// DeleteBatch removes every row of the group and reconciles the completion
// totals of the work items the batch touched.
func (s *BatchService) DeleteBatch(ctx context.Context, tenant string, groupNo ledger.GroupNo) DeleteResult {
	rows, err := s.rows.RowsByGroup(ctx, tenant, groupNo)
	if err != nil {
		s.log.WithError(err).WithField("group", groupNo).Error("batch delete: row query failed")
		return DeleteResult{Message: "failed to load batch"}
	}

	touched := make(map[ledger.WorkItemID]struct{}, len(rows))
	for _, r := range rows {
		touched[r.WorkItemID] = struct{}{}
	}

	deleted, err := s.rows.DeleteBatch(ctx, tenant, groupNo)
	if err != nil {
		s.log.WithError(err).WithField("group", groupNo).Error("batch delete failed")
		return DeleteResult{Message: "failed to delete batch"}
	}

	for itemID := range touched {
		if err := s.RecomputeWorkItemTotal(ctx, tenant, itemID); err != nil {
			s.log.WithError(err).WithField("item", itemID).Warn("batch delete: completion recompute failed")
		}
	}

	return DeleteResult{
		Success: true,
		Message: fmt.Sprintf("deleted %d rows", deleted),
		Deleted: deleted,
	}
}

// =============================================================================
// READS
// =============================================================================

// BatchView is one batch assembled for display, with its summed hours and
// frozen labor cost.
type BatchView struct {
	GroupNo    ledger.GroupNo
	WorkID     string
	Date       time.Time
	Notes      string
	Accepted   bool
	Rows       []ledger.LedgerRow
	TotalHours decimal.Decimal
	TotalCost  decimal.Decimal
}

func buildView(groupNo ledger.GroupNo, rows []ledger.LedgerRow) BatchView {
	view := BatchView{
		GroupNo:    groupNo,
		Rows:       rows,
		Accepted:   true,
		TotalHours: decimal.Zero,
		TotalCost:  decimal.Zero,
	}
	for _, r := range rows {
		view.WorkID = r.WorkID
		view.Date = r.Date
		view.Notes = r.Notes
		view.Accepted = view.Accepted && r.Accepted
		view.TotalHours = view.TotalHours.Add(r.WorkHours)
		view.TotalCost = view.TotalCost.Add(r.Cost())
	}
	return view
}

// GetBatch returns the batch's rows with summed hours and cost.
func (s *BatchService) GetBatch(ctx context.Context, tenant string, groupNo ledger.GroupNo) (*BatchView, error) {
	rows, err := s.rows.RowsByGroup(ctx, tenant, groupNo)
	if err != nil {
		return nil, fmt.Errorf("failed to load batch: %w", err)
	}
	if len(rows) == 0 {
		return nil, ledger.ErrGroupNotFound
	}
	view := buildView(groupNo, rows)
	return &view, nil
}

// ListBatches returns a work's batches, newest first.
func (s *BatchService) ListBatches(ctx context.Context, tenant string, workID string) ([]BatchView, error) {
	rows, err := s.rows.RowsByWork(ctx, tenant, workID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger rows: %w", err)
	}

	grouped := make(map[ledger.GroupNo][]ledger.LedgerRow)
	for _, r := range rows {
		grouped[r.GroupNo] = append(grouped[r.GroupNo], r)
	}

	views := make([]BatchView, 0, len(grouped))
	for groupNo, groupRows := range grouped {
		views = append(views, buildView(groupNo, groupRows))
	}
	sort.Slice(views, func(i, j int) bool {
		if !views[i].Date.Equal(views[j].Date) {
			return views[i].Date.After(views[j].Date)
		}
		return views[i].GroupNo > views[j].GroupNo
	})
	return views, nil
}

// =============================================================================
// COMPLETION RECONCILIATION
// =============================================================================

// RecomputeWorkItemTotal sets the item's completedQuantity to the
// ProgressAtDate of its most recent ledger row (zero when no rows remain)
// and derives the integer progress percent.
func (s *BatchService) RecomputeWorkItemTotal(ctx context.Context, tenant string, itemID ledger.WorkItemID) error {
	item, err := s.items.GetWorkItem(ctx, tenant, itemID)
	if err != nil {
		return fmt.Errorf("failed to load work item: %w", err)
	}
	if item == nil {
		// Rows may reference items outside the registry; nothing to update.
		return nil
	}

	latest, err := s.rows.LatestRow(ctx, tenant, itemID)
	if err != nil {
		return fmt.Errorf("failed to load latest row: %w", err)
	}

	completed := decimal.Zero
	if latest != nil {
		completed = latest.ProgressAtDate
	}

	return s.items.UpdateWorkItemCompleted(ctx, tenant, itemID, completed, item.CompletionPercent(completed))
}

// RefreshResult reports a tenant-wide completion reconciliation.
type RefreshResult struct {
	Success bool
	Message string
	Updated int
	Total   int
}

// RefreshAllCompletedQuantities recomputes every work item's completion
// total from its latest ledger row.
func (s *BatchService) RefreshAllCompletedQuantities(ctx context.Context, tenant string) RefreshResult {
	items, err := s.items.ListWorkItems(ctx, tenant)
	if err != nil {
		s.log.WithError(err).Error("completion refresh: item listing failed")
		return RefreshResult{Message: "failed to list work items"}
	}

	updated := 0
	for _, item := range items {
		if err := s.RecomputeWorkItemTotal(ctx, tenant, item.ID); err != nil {
			s.log.WithError(err).WithField("item", item.ID).Error("completion refresh failed")
			return RefreshResult{
				Message: fmt.Sprintf("failed at item %s", item.Name),
				Updated: updated,
				Total:   len(items),
			}
		}
		updated++
	}

	s.log.WithFields(logrus.Fields{"items": updated}).Info("completion totals refreshed")
	return RefreshResult{
		Success: true,
		Message: fmt.Sprintf("refreshed %d of %d work items", updated, len(items)),
		Updated: updated,
		Total:   len(items),
	}
}
