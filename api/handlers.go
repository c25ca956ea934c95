/*
handlers.go - HTTP API handlers for the labor ledger

PURPOSE:
  Exposes the ledger subsystem via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the salary and diary services.

ENDPOINTS:
  Workers & salary:
    POST   /api/workers                        Create worker
    GET    /api/workers                        List workers
    GET    /api/workers/{id}                   Get worker
    POST   /api/workers/{id}/salary            Record a dated rate change
    GET    /api/workers/{id}/salary?as_of=D    Resolve the rate on a date
    GET    /api/workers/{id}/salary/history    Rate timeline, newest first
    POST   /api/workers/{id}/salary/sync       Repair the worker's snapshots

  Tenant-wide sync:
    POST   /api/salary/sync                    Repair every worker
    POST   /api/salary/sync-after              Repair rows dated >= from

  Work items:
    POST   /api/work-items                     Create work item
    GET    /api/work-items                     List work items
    GET    /api/work-items/{id}                Get work item
    POST   /api/work-items/{id}/recompute      Recompute one completion total
    POST   /api/work-items/refresh             Recompute every total

  Batches:
    POST   /api/batches                        Submit a new batch
    GET    /api/batches?work_id=W              List a work's batches
    PUT    /api/batches/{groupNo}              Replace a batch atomically
    GET    /api/batches/{groupNo}              Batch rows + hours + cost
    DELETE /api/batches/{groupNo}              Delete a batch
    POST   /api/batches/{groupNo}/approval     Approve / revoke the batch
    GET    /api/batches/{groupNo}/approval     Approval status

TENANCY:
  Every route requires the X-Tenant header (see server.go). Handlers take
  the tenant from the request context only — tenant fields in request
  bodies are never trusted.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, missing tenant
  - 404: Resource not found
  - 500: Internal errors
  Action endpoints (submit, sync, approval) return their result DTO with
  success=false and HTTP 200/422 rather than leaking internals.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/sitebook/labor-ledger/diary"
	"github.com/sitebook/labor-ledger/ledger"
	"github.com/sitebook/labor-ledger/salary"
	"github.com/sitebook/labor-ledger/store/sqlite"
)

const dayFormat = "2006-01-02"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	History   *salary.HistoryService
	Sync      *salary.Synchronizer
	Batches   *diary.BatchService
	Approvals *diary.ApprovalCoordinator
}

// NewHandler wires the full service stack on top of one store.
func NewHandler(store *sqlite.Store, log *logrus.Logger) *Handler {
	sync := salary.NewSynchronizer(store, store, store, log)
	history := salary.NewHistoryService(store, store, sync, log)
	return &Handler{
		Store:     store,
		History:   history,
		Sync:      sync,
		Batches:   diary.NewBatchService(store, store, history, log),
		Approvals: diary.NewApprovalCoordinator(store, log),
	}
}

// =============================================================================
// WORKER HANDLERS
// =============================================================================

// CreateWorker creates or updates a roster member.
func (h *Handler) CreateWorker(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Worker name is required", nil)
		return
	}

	rate := decimal.Zero
	if req.DailyRate != "" {
		var err error
		rate, err = decimal.NewFromString(req.DailyRate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid daily_rate", err)
			return
		}
	}

	worker := ledger.Worker{
		ID:        ledger.WorkerID(req.ID),
		Name:      req.Name,
		Email:     req.Email,
		DailyRate: rate,
		Tenant:    tenantFrom(r),
	}
	if err := h.Store.SaveWorker(r.Context(), worker); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save worker", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": string(worker.ID), "name": worker.Name})
}

// ListWorkers returns the tenant's roster.
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	includeDeleted := r.URL.Query().Get("include_deleted") == "true"

	workers, err := h.Store.ListWorkers(r.Context(), tenantFrom(r), includeDeleted)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list workers", err)
		return
	}

	dtos := make([]WorkerDTO, len(workers))
	for i, wk := range workers {
		dtos[i] = toWorkerDTO(wk)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetWorker returns a single roster member.
func (h *Handler) GetWorker(w http.ResponseWriter, r *http.Request) {
	id := ledger.WorkerID(chi.URLParam(r, "id"))

	worker, err := h.Store.GetWorker(r.Context(), tenantFrom(r), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get worker", err)
		return
	}
	if worker == nil {
		writeError(w, http.StatusNotFound, "Worker not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toWorkerDTO(*worker))
}

// =============================================================================
// SALARY HANDLERS
// =============================================================================

// AddSalaryChange records a dated rate change and repairs affected snapshots.
func (h *Handler) AddSalaryChange(w http.ResponseWriter, r *http.Request) {
	id := ledger.WorkerID(chi.URLParam(r, "id"))

	var req SalaryChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	rate, err := decimal.NewFromString(req.DailyRate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid daily_rate", err)
		return
	}
	validFrom, err := time.Parse(dayFormat, req.ValidFrom)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid valid_from, expected YYYY-MM-DD", err)
		return
	}

	res := h.History.AddSalaryChange(r.Context(), tenantFrom(r), id, rate, validFrom)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, SalaryChangeResponse{
		Success:    res.Success,
		Message:    res.Message,
		SyncedRows: res.SyncedRows,
	})
}

// GetCurrentSalary resolves the worker's rate as of a date (default today).
func (h *Handler) GetCurrentSalary(w http.ResponseWriter, r *http.Request) {
	id := ledger.WorkerID(chi.URLParam(r, "id"))

	asOf := time.Now().UTC()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse(dayFormat, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of, expected YYYY-MM-DD", err)
			return
		}
		asOf = parsed
	}

	rate, err := h.History.GetCurrentSalary(r.Context(), tenantFrom(r), id, asOf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve salary", err)
		return
	}
	writeJSON(w, http.StatusOK, CurrentSalaryDTO{
		WorkerID:  string(id),
		AsOf:      ledger.Day(asOf).Format(dayFormat),
		DailyRate: rate.String(),
	})
}

// GetSalaryHistory returns the worker's rate timeline, newest first.
func (h *Handler) GetSalaryHistory(w http.ResponseWriter, r *http.Request) {
	id := ledger.WorkerID(chi.URLParam(r, "id"))

	entries, err := h.History.GetSalaryHistory(r.Context(), tenantFrom(r), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load salary history", err)
		return
	}

	dtos := make([]SalaryHistoryEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = SalaryHistoryEntryDTO{
			ID:        e.ID,
			DailyRate: e.DailyRate.String(),
			ValidFrom: e.ValidFrom.Format(dayFormat),
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SyncWorkerSnapshots repairs one worker's frozen rate snapshots.
func (h *Handler) SyncWorkerSnapshots(w http.ResponseWriter, r *http.Request) {
	id := ledger.WorkerID(chi.URLParam(r, "id"))

	res := h.Sync.SyncWorker(r.Context(), tenantFrom(r), id)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, SyncResponse{
		Success: res.Success, Message: res.Message,
		Updated: res.Updated, Skipped: res.Skipped,
	})
}

// SyncAllSnapshots repairs every active worker's snapshots.
func (h *Handler) SyncAllSnapshots(w http.ResponseWriter, r *http.Request) {
	res := h.Sync.SyncAll(r.Context(), tenantFrom(r))
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, SyncAllResponse{
		Success: res.Success, Message: res.Message,
		WorkersProcessed: res.WorkersProcessed,
		Updated:          res.Updated, Skipped: res.Skipped,
	})
}

// SyncSnapshotsAfterDate repairs rows dated on or after the given day.
func (h *Handler) SyncSnapshotsAfterDate(w http.ResponseWriter, r *http.Request) {
	var req SyncAfterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	from, err := time.Parse(dayFormat, req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from, expected YYYY-MM-DD", err)
		return
	}

	res := h.Sync.SyncAfterDate(r.Context(), tenantFrom(r), from)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, SyncResponse{
		Success: res.Success, Message: res.Message,
		Updated: res.Updated, Skipped: res.Skipped,
		Unresolved: res.Unresolved,
	})
}

// =============================================================================
// WORK ITEM HANDLERS
// =============================================================================

// CreateWorkItem creates or updates a work item.
func (h *Handler) CreateWorkItem(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Work item name is required", nil)
		return
	}

	quantity := decimal.Zero
	if req.Quantity != "" {
		var err error
		quantity, err = decimal.NewFromString(req.Quantity)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid quantity", err)
			return
		}
	}

	item := ledger.WorkItem{
		ID:       ledger.WorkItemID(req.ID),
		WorkID:   req.WorkID,
		Name:     req.Name,
		Unit:     req.Unit,
		Quantity: quantity,
		Tenant:   tenantFrom(r),
	}
	if err := h.Store.SaveWorkItem(r.Context(), item); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save work item", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": string(item.ID), "name": item.Name})
}

// ListWorkItems returns the tenant's work items.
func (h *Handler) ListWorkItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.Store.ListWorkItems(r.Context(), tenantFrom(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list work items", err)
		return
	}

	dtos := make([]WorkItemDTO, len(items))
	for i, item := range items {
		dtos[i] = toWorkItemDTO(item)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetWorkItem returns a single work item.
func (h *Handler) GetWorkItem(w http.ResponseWriter, r *http.Request) {
	id := ledger.WorkItemID(chi.URLParam(r, "id"))

	item, err := h.Store.GetWorkItem(r.Context(), tenantFrom(r), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get work item", err)
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "Work item not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toWorkItemDTO(*item))
}

// RecomputeWorkItem reconciles one item's completion total with the ledger.
func (h *Handler) RecomputeWorkItem(w http.ResponseWriter, r *http.Request) {
	id := ledger.WorkItemID(chi.URLParam(r, "id"))
	tenant := tenantFrom(r)

	if err := h.Batches.RecomputeWorkItemTotal(r.Context(), tenant, id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to recompute work item", err)
		return
	}

	item, err := h.Store.GetWorkItem(r.Context(), tenant, id)
	if err != nil || item == nil {
		writeError(w, http.StatusNotFound, "Work item not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkItemDTO(*item))
}

// RefreshCompletedQuantities reconciles every work item's completion total.
func (h *Handler) RefreshCompletedQuantities(w http.ResponseWriter, r *http.Request) {
	res := h.Batches.RefreshAllCompletedQuantities(r.Context(), tenantFrom(r))
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, RefreshResponse{
		Success: res.Success, Message: res.Message,
		Updated: res.Updated, Total: res.Total,
	})
}

// =============================================================================
// BATCH HANDLERS
// =============================================================================

// SubmitBatch computes and writes a new batch.
func (h *Handler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	h.saveBatch(w, r, 0)
}

// ReplaceBatch atomically rewrites an existing batch.
func (h *Handler) ReplaceBatch(w http.ResponseWriter, r *http.Request) {
	groupNo, ok := groupNoParam(w, r)
	if !ok {
		return
	}
	h.saveBatch(w, r, groupNo)
}

func (h *Handler) saveBatch(w http.ResponseWriter, r *http.Request, groupNo ledger.GroupNo) {
	var req SubmitBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := time.Parse(dayFormat, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD", err)
		return
	}

	batchReq := ledger.BatchRequest{
		GroupNo: groupNo,
		WorkID:  req.WorkID,
		Date:    date,
		Notes:   req.Notes,
	}
	for _, item := range req.Items {
		submitted, err := decimal.NewFromString(item.Submitted)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid submitted value for "+item.WorkItemID, err)
			return
		}
		batchReq.Items = append(batchReq.Items, ledger.BatchItem{
			WorkItemID: ledger.WorkItemID(item.WorkItemID),
			Unit:       item.Unit,
			Submitted:  submitted,
		})
	}
	for _, worker := range req.Workers {
		hours, err := decimal.NewFromString(worker.Hours)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid hours for "+worker.WorkerID, err)
			return
		}
		batchReq.Workers = append(batchReq.Workers, ledger.BatchWorker{
			WorkerID: ledger.WorkerID(worker.WorkerID),
			Name:     worker.Name,
			Hours:    hours,
		})
	}

	res := h.Batches.SubmitBatch(r.Context(), tenantFrom(r), batchReq)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, SubmitBatchResponse{
		Success:     res.Success,
		Message:     res.Message,
		GroupNo:     int64(res.GroupNo),
		RowsWritten: res.RowsWritten,
	})
}

// GetBatch returns a batch's rows with summed hours and cost.
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	groupNo, ok := groupNoParam(w, r)
	if !ok {
		return
	}

	view, err := h.Batches.GetBatch(r.Context(), tenantFrom(r), groupNo)
	if errors.Is(err, ledger.ErrGroupNotFound) {
		writeError(w, http.StatusNotFound, "Batch not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load batch", err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchDTO(*view))
}

// ListBatches returns a work's batches, newest first.
func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	workID := r.URL.Query().Get("work_id")
	if workID == "" {
		writeError(w, http.StatusBadRequest, "work_id query parameter is required", nil)
		return
	}

	views, err := h.Batches.ListBatches(r.Context(), tenantFrom(r), workID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list batches", err)
		return
	}

	dtos := make([]BatchDTO, len(views))
	for i, v := range views {
		dtos[i] = toBatchDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DeleteBatch removes a batch and reconciles the items it touched.
func (h *Handler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	groupNo, ok := groupNoParam(w, r)
	if !ok {
		return
	}

	res := h.Batches.DeleteBatch(r.Context(), tenantFrom(r), groupNo)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, DeleteBatchResponse{
		Success: res.Success, Message: res.Message, Deleted: res.Deleted,
	})
}

// =============================================================================
// APPROVAL HANDLERS
// =============================================================================

// UpdateGroupApproval approves or revokes the batch as one unit.
func (h *Handler) UpdateGroupApproval(w http.ResponseWriter, r *http.Request) {
	groupNo, ok := groupNoParam(w, r)
	if !ok {
		return
	}

	var req ApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res := h.Approvals.UpdateGroupApproval(r.Context(), tenantFrom(r), groupNo, req.Accepted)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, ApprovalResponse{
		Success: res.Success, Message: res.Message, UpdatedCount: res.UpdatedCount,
	})
}

// GetGroupApprovalStatus reports whether the batch is accepted.
func (h *Handler) GetGroupApprovalStatus(w http.ResponseWriter, r *http.Request) {
	groupNo, ok := groupNoParam(w, r)
	if !ok {
		return
	}

	res := h.Approvals.GetGroupApprovalStatus(r.Context(), tenantFrom(r), groupNo)
	if !res.Success {
		writeError(w, http.StatusNotFound, res.Message, nil)
		return
	}
	writeJSON(w, http.StatusOK, ApprovalStatusDTO{
		GroupNo:       int64(groupNo),
		AllApproved:   res.AllApproved,
		SomeApproved:  res.SomeApproved,
		TotalItems:    res.TotalItems,
		ApprovedItems: res.ApprovedItems,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func groupNoParam(w http.ResponseWriter, r *http.Request) (ledger.GroupNo, bool) {
	raw := chi.URLParam(r, "groupNo")
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid group number", err)
		return 0, false
	}
	return ledger.GroupNo(n), true
}

func toWorkerDTO(w ledger.Worker) WorkerDTO {
	return WorkerDTO{
		ID:        string(w.ID),
		Name:      w.Name,
		Email:     w.Email,
		DailyRate: w.DailyRate.String(),
		Deleted:   w.Deleted,
		CreatedAt: w.CreatedAt.Format(time.RFC3339),
	}
}

func toWorkItemDTO(item ledger.WorkItem) WorkItemDTO {
	return WorkItemDTO{
		ID:                string(item.ID),
		WorkID:            item.WorkID,
		Name:              item.Name,
		Unit:              item.Unit,
		Quantity:          item.Quantity.String(),
		CompletedQuantity: item.CompletedQuantity.String(),
		Progress:          item.Progress,
		InProgress:        item.InProgress,
		CreatedAt:         item.CreatedAt.Format(time.RFC3339),
	}
}

func toBatchDTO(v diary.BatchView) BatchDTO {
	dto := BatchDTO{
		GroupNo:    int64(v.GroupNo),
		WorkID:     v.WorkID,
		Date:       v.Date.Format(dayFormat),
		Notes:      v.Notes,
		Accepted:   v.Accepted,
		TotalHours: v.TotalHours.String(),
		TotalCost:  v.TotalCost.String(),
		Rows:       make([]LedgerRowDTO, len(v.Rows)),
	}
	for i, row := range v.Rows {
		dto.Rows[i] = LedgerRowDTO{
			ID:                row.ID,
			GroupNo:           int64(row.GroupNo),
			WorkID:            row.WorkID,
			WorkItemID:        string(row.WorkItemID),
			WorkerID:          string(row.WorkerID),
			WorkerName:        row.WorkerName,
			Date:              row.Date.Format(dayFormat),
			Quantity:          row.Quantity.String(),
			Unit:              row.Unit,
			WorkHours:         row.WorkHours.String(),
			ProgressAtDate:    row.ProgressAtDate.String(),
			DailyRateSnapshot: row.DailyRateSnapshot.String(),
			Accepted:          row.Accepted,
			Notes:             row.Notes,
		}
	}
	return dto
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
