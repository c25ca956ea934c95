/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements ledger.WorkerStore, ledger.SalaryStore, ledger.RowStore, and
  ledger.WorkItemStore on one Store value. In production the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  workers:        roster with the denormalized current daily rate
  salary_history: dated rate timeline, unique per (worker, valid_from, tenant)
  work_items:     targets plus the ledger-maintained completed quantity
  ledger_rows:    the progress/hours ledger, grouped by group_no

TENANCY:
  Every query filters on the tenant column. No read or write crosses tenants.

ATOMIC BATCH REPLACE:
  ReplaceBatch runs delete-by-group plus all inserts inside one database
  transaction. A failed insert rolls back the whole batch, including the
  delete, so an edit can never leave a batch empty or half-written.

DATES:
  Day-granular fields (row date, valid_from) are stored as YYYY-MM-DD so
  lexicographic comparison matches chronological order. Timestamps are
  RFC3339.

CONCURRENCY:
  sync.RWMutex plus SQLite WAL mode: readers don't block, writers are
  serialized, which also serializes concurrent edits of the same group.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - ledger/store.go: interface definitions
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/sitebook/labor-ledger/ledger"
)

const dayFormat = "2006-01-02"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Workers (roster)
	CREATE TABLE IF NOT EXISTS workers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		daily_rate TEXT NOT NULL DEFAULT '0',
		deleted BOOLEAN NOT NULL DEFAULT FALSE,
		tenant TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_workers_tenant_name
		ON workers(tenant, name);

	-- Salary history (point-in-time rate timeline)
	CREATE TABLE IF NOT EXISTS salary_history (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		daily_rate TEXT NOT NULL,
		valid_from TEXT NOT NULL,
		tenant TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: at most one entry per (worker, valid_from, tenant).
	-- A second write for the same date overwrites the rate via upsert.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_salary_history_unique
		ON salary_history(worker_id, valid_from, tenant);
	CREATE INDEX IF NOT EXISTS idx_salary_history_lookup
		ON salary_history(tenant, worker_id, valid_from DESC);

	-- Work items
	CREATE TABLE IF NOT EXISTS work_items (
		id TEXT PRIMARY KEY,
		work_id TEXT NOT NULL,
		name TEXT NOT NULL,
		unit TEXT,
		quantity TEXT NOT NULL DEFAULT '0',
		completed_quantity TEXT NOT NULL DEFAULT '0',
		progress INTEGER NOT NULL DEFAULT 0,
		in_progress BOOLEAN NOT NULL DEFAULT FALSE,
		tenant TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_work_items_tenant_work
		ON work_items(tenant, work_id);

	-- Ledger rows (batched by group_no)
	CREATE TABLE IF NOT EXISTS ledger_rows (
		id TEXT PRIMARY KEY,
		group_no INTEGER NOT NULL,
		work_id TEXT NOT NULL,
		work_item_id TEXT NOT NULL,
		worker_id TEXT,
		worker_name TEXT,
		date TEXT NOT NULL,
		quantity TEXT NOT NULL DEFAULT '0',
		unit TEXT,
		work_hours TEXT NOT NULL DEFAULT '0',
		progress_at_date TEXT NOT NULL DEFAULT '0',
		daily_rate_snapshot TEXT NOT NULL DEFAULT '0',
		accepted BOOLEAN NOT NULL DEFAULT FALSE,
		notes TEXT,
		tenant TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rows_tenant_group
		ON ledger_rows(tenant, group_no);
	-- Hot path: previous-progress lookups and latest-row queries
	CREATE INDEX IF NOT EXISTS idx_rows_item_date
		ON ledger_rows(tenant, work_item_id, date DESC, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_rows_tenant_worker
		ON ledger_rows(tenant, worker_id);
	CREATE INDEX IF NOT EXISTS idx_rows_tenant_name
		ON ledger_rows(tenant, worker_name COLLATE NOCASE);
	CREATE INDEX IF NOT EXISTS idx_rows_tenant_date
		ON ledger_rows(tenant, date);
	CREATE INDEX IF NOT EXISTS idx_rows_tenant_work
		ON ledger_rows(tenant, work_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// WORKER STORE (ledger.WorkerStore interface)
// =============================================================================

// SaveWorker inserts or updates a worker.
func (s *Store) SaveWorker(ctx context.Context, w ledger.Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w.ID == "" {
		w.ID = ledger.WorkerID(uuid.NewString())
	}

	query := `
		INSERT INTO workers (id, name, email, daily_rate, deleted, tenant, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			daily_rate = excluded.daily_rate,
			deleted = excluded.deleted
	`

	_, err := s.db.ExecContext(ctx, query,
		w.ID, w.Name, w.Email, w.DailyRate.String(), w.Deleted, w.Tenant,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetWorker retrieves a worker by id within the tenant. Nil when absent.
func (s *Store) GetWorker(ctx context.Context, tenant string, id ledger.WorkerID) (*ledger.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		w         ledger.Worker
		rate      string
		createdAt string
		email     sql.NullString
	)

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, daily_rate, deleted, tenant, created_at FROM workers WHERE id = ? AND tenant = ?",
		id, tenant,
	).Scan(&w.ID, &w.Name, &email, &rate, &w.Deleted, &w.Tenant, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	w.Email = email.String
	w.DailyRate = mustDecimal(rate)
	w.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &w, nil
}

// ListWorkers returns the tenant's workers ordered by name.
func (s *Store) ListWorkers(ctx context.Context, tenant string, includeDeleted bool) ([]ledger.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, name, email, daily_rate, deleted, tenant, created_at
		FROM workers
		WHERE tenant = ?
	`
	if !includeDeleted {
		query += " AND deleted = FALSE"
	}
	query += " ORDER BY name ASC"

	rows, err := s.db.QueryContext(ctx, query, tenant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workers []ledger.Worker
	for rows.Next() {
		var (
			w         ledger.Worker
			rate      string
			createdAt string
			email     sql.NullString
		)
		if err := rows.Scan(&w.ID, &w.Name, &email, &rate, &w.Deleted, &w.Tenant, &createdAt); err != nil {
			return nil, err
		}
		w.Email = email.String
		w.DailyRate = mustDecimal(rate)
		w.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

// UpdateWorkerDailyRate overwrites the denormalized current rate.
func (s *Store) UpdateWorkerDailyRate(ctx context.Context, tenant string, id ledger.WorkerID, rate decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE workers SET daily_rate = ? WHERE id = ? AND tenant = ?",
		rate.String(), id, tenant,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ledger.ErrWorkerNotFound
	}
	return nil
}

// =============================================================================
// SALARY STORE (ledger.SalaryStore interface)
// =============================================================================

// UpsertSalaryEntry inserts the entry, or overwrites the rate when one
// already exists for the same (worker, valid_from, tenant).
func (s *Store) UpsertSalaryEntry(ctx context.Context, e ledger.SalaryHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	query := `
		INSERT INTO salary_history (id, worker_id, daily_rate, valid_from, tenant, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(worker_id, valid_from, tenant) DO UPDATE SET
			daily_rate = excluded.daily_rate
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.WorkerID, e.DailyRate.String(),
		ledger.Day(e.ValidFrom).Format(dayFormat),
		e.Tenant,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// SalaryEntryAt returns the entry with the greatest valid_from <= asOf.
func (s *Store) SalaryEntryAt(ctx context.Context, tenant string, workerID ledger.WorkerID, asOf time.Time) (*ledger.SalaryHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, worker_id, daily_rate, valid_from, tenant, created_at
		FROM salary_history
		WHERE tenant = ? AND worker_id = ? AND valid_from <= ?
		ORDER BY valid_from DESC
		LIMIT 1
	`

	entries, err := s.querySalaryEntries(ctx, query, tenant, workerID, ledger.Day(asOf).Format(dayFormat))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// ListSalaryHistory returns the worker's entries, newest first.
func (s *Store) ListSalaryHistory(ctx context.Context, tenant string, workerID ledger.WorkerID) ([]ledger.SalaryHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, worker_id, daily_rate, valid_from, tenant, created_at
		FROM salary_history
		WHERE tenant = ? AND worker_id = ?
		ORDER BY valid_from DESC
	`

	return s.querySalaryEntries(ctx, query, tenant, workerID)
}

func (s *Store) querySalaryEntries(ctx context.Context, query string, args ...any) ([]ledger.SalaryHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ledger.SalaryHistoryEntry
	for rows.Next() {
		var (
			e         ledger.SalaryHistoryEntry
			rate      string
			validFrom string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.WorkerID, &rate, &validFrom, &e.Tenant, &createdAt); err != nil {
			return nil, err
		}
		e.DailyRate = mustDecimal(rate)
		e.ValidFrom, _ = time.Parse(dayFormat, validFrom)
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// WORK ITEM STORE (ledger.WorkItemStore interface)
// =============================================================================

// SaveWorkItem inserts or updates a work item. The completed quantity and
// progress columns are owned by ledger reconciliation and are not
// overwritten on update.
func (s *Store) SaveWorkItem(ctx context.Context, wi ledger.WorkItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if wi.ID == "" {
		wi.ID = ledger.WorkItemID(uuid.NewString())
	}

	query := `
		INSERT INTO work_items
		(id, work_id, name, unit, quantity, completed_quantity, progress, in_progress, tenant, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			work_id = excluded.work_id,
			name = excluded.name,
			unit = excluded.unit,
			quantity = excluded.quantity,
			in_progress = excluded.in_progress
	`

	_, err := s.db.ExecContext(ctx, query,
		wi.ID, wi.WorkID, wi.Name, wi.Unit,
		wi.Quantity.String(), wi.CompletedQuantity.String(),
		wi.Progress, wi.InProgress, wi.Tenant,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetWorkItem retrieves a work item by id within the tenant. Nil when absent.
func (s *Store) GetWorkItem(ctx context.Context, tenant string, id ledger.WorkItemID) (*ledger.WorkItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items, err := s.queryWorkItems(ctx,
		"SELECT id, work_id, name, unit, quantity, completed_quantity, progress, in_progress, tenant, created_at FROM work_items WHERE id = ? AND tenant = ?",
		id, tenant,
	)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// ListWorkItems returns the tenant's work items ordered by name.
func (s *Store) ListWorkItems(ctx context.Context, tenant string) ([]ledger.WorkItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryWorkItems(ctx,
		"SELECT id, work_id, name, unit, quantity, completed_quantity, progress, in_progress, tenant, created_at FROM work_items WHERE tenant = ? ORDER BY name ASC",
		tenant,
	)
}

// UpdateWorkItemCompleted sets the denormalized completed quantity and
// derived progress percent.
func (s *Store) UpdateWorkItemCompleted(ctx context.Context, tenant string, id ledger.WorkItemID, completed decimal.Decimal, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE work_items SET completed_quantity = ?, progress = ? WHERE id = ? AND tenant = ?",
		completed.String(), progress, id, tenant,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ledger.ErrWorkItemNotFound
	}
	return nil
}

func (s *Store) queryWorkItems(ctx context.Context, query string, args ...any) ([]ledger.WorkItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ledger.WorkItem
	for rows.Next() {
		var (
			wi        ledger.WorkItem
			unit      sql.NullString
			quantity  string
			completed string
			createdAt string
		)
		if err := rows.Scan(&wi.ID, &wi.WorkID, &wi.Name, &unit, &quantity, &completed,
			&wi.Progress, &wi.InProgress, &wi.Tenant, &createdAt); err != nil {
			return nil, err
		}
		wi.Unit = unit.String
		wi.Quantity = mustDecimal(quantity)
		wi.CompletedQuantity = mustDecimal(completed)
		wi.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		items = append(items, wi)
	}
	return items, rows.Err()
}

// =============================================================================
// ROW STORE (ledger.RowStore interface)
// =============================================================================

const rowColumns = `id, group_no, work_id, work_item_id, worker_id, worker_name, date,
	quantity, unit, work_hours, progress_at_date, daily_rate_snapshot,
	accepted, notes, tenant, created_at`

// CreateRow inserts a single row and returns it with generated fields set.
func (s *Store) CreateRow(ctx context.Context, row ledger.LedgerRow) (*ledger.LedgerRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.insertRow(ctx, s.db, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Store) insertRow(ctx context.Context, db interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}, row *ledger.LedgerRow) error {
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO ledger_rows
		(id, group_no, work_id, work_item_id, worker_id, worker_name, date,
		 quantity, unit, work_hours, progress_at_date, daily_rate_snapshot,
		 accepted, notes, tenant, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		row.ID, row.GroupNo, row.WorkID, row.WorkItemID,
		nullString(string(row.WorkerID)), nullString(row.WorkerName),
		ledger.Day(row.Date).Format(dayFormat),
		row.Quantity.String(), row.Unit, row.WorkHours.String(),
		row.ProgressAtDate.String(), row.DailyRateSnapshot.String(),
		row.Accepted, nullString(row.Notes), row.Tenant,
		row.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert ledger row: %w", err)
	}
	return nil
}

// ReplaceBatch atomically deletes every row of the group and inserts the
// given rows. Nothing is written if any insert fails.
func (s *Store) ReplaceBatch(ctx context.Context, tenant string, groupNo ledger.GroupNo, rows []ledger.LedgerRow) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := sqlTx.ExecContext(ctx,
		"DELETE FROM ledger_rows WHERE tenant = ? AND group_no = ?",
		tenant, groupNo,
	); err != nil {
		return 0, &ledger.BatchWriteError{GroupNo: groupNo, Rows: len(rows), Cause: err}
	}

	for i := range rows {
		if rows[i].Tenant != tenant {
			return 0, ledger.ErrUnauthorized
		}
		if err := s.insertRow(ctx, sqlTx, &rows[i]); err != nil {
			return 0, &ledger.BatchWriteError{GroupNo: groupNo, Rows: len(rows), Cause: err}
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return 0, &ledger.BatchWriteError{GroupNo: groupNo, Rows: len(rows), Cause: err}
	}
	return len(rows), nil
}

// DeleteBatch removes every row of the group; returns the delete count.
func (s *Store) DeleteBatch(ctx context.Context, tenant string, groupNo ledger.GroupNo) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM ledger_rows WHERE tenant = ? AND group_no = ?",
		tenant, groupNo,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RowsByGroup returns the rows of a batch, in insertion order.
func (s *Store) RowsByGroup(ctx context.Context, tenant string, groupNo ledger.GroupNo) ([]ledger.LedgerRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + rowColumns + ` FROM ledger_rows
		WHERE tenant = ? AND group_no = ?
		ORDER BY created_at ASC, id ASC`

	return s.queryRows(ctx, query, tenant, groupNo)
}

// RowsByWork returns every row belonging to a work, newest first.
func (s *Store) RowsByWork(ctx context.Context, tenant string, workID string) ([]ledger.LedgerRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + rowColumns + ` FROM ledger_rows
		WHERE tenant = ? AND work_id = ?
		ORDER BY date DESC, created_at DESC`

	return s.queryRows(ctx, query, tenant, workID)
}

// RowsForWorker returns rows matched by worker id OR case-insensitive name.
func (s *Store) RowsForWorker(ctx context.Context, tenant string, id ledger.WorkerID, name string, cutoff time.Time) ([]ledger.LedgerRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b strings.Builder
	b.WriteString("SELECT " + rowColumns + ` FROM ledger_rows
		WHERE tenant = ? AND (worker_id = ? OR worker_name = ? COLLATE NOCASE)`)
	args := []any{tenant, id, name}

	if !cutoff.IsZero() {
		b.WriteString(" AND date >= ?")
		args = append(args, ledger.Day(cutoff).Format(dayFormat))
	}
	b.WriteString(" ORDER BY date ASC, created_at ASC")

	return s.queryRows(ctx, b.String(), args...)
}

// RowsOnOrAfter returns every tenant row dated >= cutoff.
func (s *Store) RowsOnOrAfter(ctx context.Context, tenant string, cutoff time.Time) ([]ledger.LedgerRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + rowColumns + ` FROM ledger_rows
		WHERE tenant = ? AND date >= ?
		ORDER BY date ASC, created_at ASC`

	return s.queryRows(ctx, query, tenant, ledger.Day(cutoff).Format(dayFormat))
}

// LatestProgressBefore returns the most recent progress_at_date strictly
// before the given date, across all batches. Zero when none exists.
func (s *Store) LatestProgressBefore(ctx context.Context, tenant string, workItemID ledger.WorkItemID, date time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT progress_at_date FROM ledger_rows
		WHERE tenant = ? AND work_item_id = ? AND date < ?
		ORDER BY date DESC, created_at DESC, id DESC
		LIMIT 1
	`

	var progress string
	err := s.db.QueryRowContext(ctx, query,
		tenant, workItemID, ledger.Day(date).Format(dayFormat),
	).Scan(&progress)

	if err == sql.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return mustDecimal(progress), nil
}

// LatestRow returns the work item's most recent row. Same-day writes resolve
// to the newest one.
func (s *Store) LatestRow(ctx context.Context, tenant string, workItemID ledger.WorkItemID) (*ledger.LedgerRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + rowColumns + ` FROM ledger_rows
		WHERE tenant = ? AND work_item_id = ?
		ORDER BY date DESC, created_at DESC, id DESC
		LIMIT 1`

	rows, err := s.queryRows(ctx, query, tenant, workItemID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// UpdateRowRateSnapshot rewrites one row's frozen daily rate.
func (s *Store) UpdateRowRateSnapshot(ctx context.Context, tenant string, rowID string, rate decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE ledger_rows SET daily_rate_snapshot = ? WHERE id = ? AND tenant = ?",
		rate.String(), rowID, tenant,
	)
	return err
}

// UpdateGroupAccepted flips the accepted flag on every row of the group.
// Zero rows touched is a no-op, not an error.
func (s *Store) UpdateGroupAccepted(ctx context.Context, tenant string, groupNo ledger.GroupNo, accepted bool) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE ledger_rows SET accepted = ? WHERE tenant = ? AND group_no = ?",
		accepted, tenant, groupNo,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) queryRows(ctx context.Context, query string, args ...any) ([]ledger.LedgerRow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger rows: %w", err)
	}
	defer rows.Close()

	var out []ledger.LedgerRow
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanRow(rows *sql.Rows) (ledger.LedgerRow, error) {
	var (
		r          ledger.LedgerRow
		workerID   sql.NullString
		workerName sql.NullString
		date       string
		quantity   string
		unit       sql.NullString
		hours      string
		progress   string
		rate       string
		notes      sql.NullString
		createdAt  string
	)

	err := rows.Scan(
		&r.ID, &r.GroupNo, &r.WorkID, &r.WorkItemID, &workerID, &workerName,
		&date, &quantity, &unit, &hours, &progress, &rate,
		&r.Accepted, &notes, &r.Tenant, &createdAt,
	)
	if err != nil {
		return r, fmt.Errorf("failed to scan ledger row: %w", err)
	}

	r.WorkerID = ledger.WorkerID(workerID.String)
	r.WorkerName = workerName.String
	r.Date, _ = time.Parse(dayFormat, date)
	r.Quantity = mustDecimal(quantity)
	r.Unit = unit.String
	r.WorkHours = mustDecimal(hours)
	r.ProgressAtDate = mustDecimal(progress)
	r.DailyRateSnapshot = mustDecimal(rate)
	r.Notes = notes.String
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return r, nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
