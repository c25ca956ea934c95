/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Action outcome wrappers (success + message + counts)

NUMBERS:
  Every quantity, hour, and rate crosses the wire as a decimal STRING.
  JSON numbers are floats; rates and quantities are not.

DATES:
  Day-granular fields use YYYY-MM-DD. Timestamps use RFC3339.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

// =============================================================================
// WORKERS & SALARY
// =============================================================================

// WorkerDTO represents a roster member in API responses.
type WorkerDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	DailyRate string `json:"daily_rate"`
	Deleted   bool   `json:"deleted,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateWorkerRequest is the request to create or update a worker.
type CreateWorkerRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	DailyRate string `json:"daily_rate"`
}

// SalaryChangeRequest records a dated rate change for a worker.
type SalaryChangeRequest struct {
	DailyRate string `json:"daily_rate"`
	ValidFrom string `json:"valid_from"`
}

// SalaryChangeResponse reports the change plus any snapshot repair it ran.
type SalaryChangeResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	SyncedRows int    `json:"synced_rows"`
}

// CurrentSalaryDTO is a point-in-time rate resolution.
type CurrentSalaryDTO struct {
	WorkerID  string `json:"worker_id"`
	AsOf      string `json:"as_of"`
	DailyRate string `json:"daily_rate"`
}

// SalaryHistoryEntryDTO is one entry of a worker's rate timeline.
type SalaryHistoryEntryDTO struct {
	ID        string `json:"id"`
	DailyRate string `json:"daily_rate"`
	ValidFrom string `json:"valid_from"`
	CreatedAt string `json:"created_at,omitempty"`
}

// SyncResponse reports one snapshot synchronization pass. Unresolved is
// only ever non-zero on the date-scoped pass, which attributes rows to
// workers per row instead of starting from a worker.
type SyncResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Updated    int    `json:"updated"`
	Skipped    int    `json:"skipped"`
	Unresolved int    `json:"unresolved,omitempty"`
}

// SyncAllResponse reports a tenant-wide pass across workers.
type SyncAllResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	WorkersProcessed int    `json:"workers_processed"`
	Updated          int    `json:"updated"`
	Skipped          int    `json:"skipped"`
}

// SyncAfterRequest scopes a sync to rows dated on or after From.
type SyncAfterRequest struct {
	From string `json:"from"`
}

// =============================================================================
// WORK ITEMS
// =============================================================================

// WorkItemDTO represents a work item in API responses.
type WorkItemDTO struct {
	ID                string `json:"id"`
	WorkID            string `json:"work_id"`
	Name              string `json:"name"`
	Unit              string `json:"unit,omitempty"`
	Quantity          string `json:"quantity"`
	CompletedQuantity string `json:"completed_quantity"`
	Progress          int    `json:"progress"`
	InProgress        bool   `json:"in_progress"`
	CreatedAt         string `json:"created_at,omitempty"`
}

// CreateWorkItemRequest is the request to create or update a work item.
type CreateWorkItemRequest struct {
	ID       string `json:"id"`
	WorkID   string `json:"work_id"`
	Name     string `json:"name"`
	Unit     string `json:"unit"`
	Quantity string `json:"quantity"`
}

// RefreshResponse reports a tenant-wide completion reconciliation.
type RefreshResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Updated int    `json:"updated"`
	Total   int    `json:"total"`
}

// =============================================================================
// BATCHES
// =============================================================================

// BatchItemRequest is one work item in a submission with its absolute
// slider value.
type BatchItemRequest struct {
	WorkItemID string `json:"work_item_id"`
	Unit       string `json:"unit"`
	Submitted  string `json:"submitted"`
}

// BatchWorkerRequest is one worker in a submission with their session hours.
type BatchWorkerRequest struct {
	WorkerID string `json:"worker_id"`
	Name     string `json:"name"`
	Hours    string `json:"hours"`
}

// SubmitBatchRequest is one progress submission.
type SubmitBatchRequest struct {
	WorkID  string               `json:"work_id"`
	Date    string               `json:"date"`
	Notes   string               `json:"notes"`
	Items   []BatchItemRequest   `json:"items"`
	Workers []BatchWorkerRequest `json:"workers"`
}

// SubmitBatchResponse reports a batch write.
type SubmitBatchResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	GroupNo     int64  `json:"group_no"`
	RowsWritten int    `json:"rows_written"`
}

// LedgerRowDTO is one ledger row in API responses.
type LedgerRowDTO struct {
	ID                string `json:"id"`
	GroupNo           int64  `json:"group_no"`
	WorkID            string `json:"work_id"`
	WorkItemID        string `json:"work_item_id"`
	WorkerID          string `json:"worker_id,omitempty"`
	WorkerName        string `json:"worker_name,omitempty"`
	Date              string `json:"date"`
	Quantity          string `json:"quantity"`
	Unit              string `json:"unit,omitempty"`
	WorkHours         string `json:"work_hours"`
	ProgressAtDate    string `json:"progress_at_date"`
	DailyRateSnapshot string `json:"daily_rate_snapshot"`
	Accepted          bool   `json:"accepted"`
	Notes             string `json:"notes,omitempty"`
}

// BatchDTO is one batch with its summed hours and frozen labor cost.
type BatchDTO struct {
	GroupNo    int64          `json:"group_no"`
	WorkID     string         `json:"work_id"`
	Date       string         `json:"date"`
	Notes      string         `json:"notes,omitempty"`
	Accepted   bool           `json:"accepted"`
	TotalHours string         `json:"total_hours"`
	TotalCost  string         `json:"total_cost"`
	Rows       []LedgerRowDTO `json:"rows"`
}

// DeleteBatchResponse reports a batch deletion.
type DeleteBatchResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Deleted int64  `json:"deleted"`
}

// =============================================================================
// APPROVAL
// =============================================================================

// ApprovalRequest flips a batch's accepted flag.
type ApprovalRequest struct {
	Accepted bool `json:"accepted"`
}

// ApprovalResponse reports an approval update.
type ApprovalResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	UpdatedCount int64  `json:"updated_count"`
}

// ApprovalStatusDTO reports a batch's approval state.
type ApprovalStatusDTO struct {
	GroupNo       int64 `json:"group_no"`
	AllApproved   bool  `json:"all_approved"`
	SomeApproved  bool  `json:"some_approved"`
	TotalItems    int   `json:"total_items"`
	ApprovedItems int   `json:"approved_items"`
}

// ErrorResponse is the JSON shape of every error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
