package salary_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebook/labor-ledger/ledger"
	"github.com/sitebook/labor-ledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func seedRow(t *testing.T, store *sqlite.Store, workerID, workerName string, date time.Time, snapshot string) string {
	t.Helper()
	row, err := store.CreateRow(context.Background(), ledger.LedgerRow{
		GroupNo:           100,
		WorkID:            "work-1",
		WorkItemID:        "item-A",
		WorkerID:          ledger.WorkerID(workerID),
		WorkerName:        workerName,
		Date:              date,
		WorkHours:         dec("8"),
		DailyRateSnapshot: dec(snapshot),
		Tenant:            testTenant,
	})
	require.NoError(t, err)
	return row.ID
}

func snapshotOf(t *testing.T, store *sqlite.Store, rowID string) string {
	t.Helper()
	rows, err := store.RowsByGroup(context.Background(), testTenant, 100)
	require.NoError(t, err)
	for _, r := range rows {
		if r.ID == rowID {
			return r.DailyRateSnapshot.String()
		}
	}
	t.Fatalf("row %s not found", rowID)
	return ""
}

// =============================================================================
// PER-WORKER SYNC
// =============================================================================

func TestSyncWorker_UpdatesStaleSkipsCurrent(t *testing.T) {
	// GIVEN: a rate of 100 effective June 1, one stale row and one current row
	// THEN: exactly the stale row is rewritten

	store, history, sync := newFixture(t)
	ctx := context.Background()
	seedWorker(t, store, "w-1", "Kovacs Janos", "80")
	history.AddSalaryChange(ctx, testTenant, "w-1", dec("100"), day(2025, time.June, 1))

	stale := seedRow(t, store, "w-1", "Kovacs Janos", day(2025, time.June, 10), "80")
	current := seedRow(t, store, "w-1", "Kovacs Janos", day(2025, time.June, 12), "100")

	res := sync.SyncWorker(ctx, testTenant, "w-1")
	require.True(t, res.Success, res.Message)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Skipped)

	assert.Equal(t, "100", snapshotOf(t, store, stale))
	assert.Equal(t, "100", snapshotOf(t, store, current))
}

func TestSyncWorker_SecondRunUpdatesNothing(t *testing.T) {
	// Idempotence: an unchanged timeline makes the second pass a no-op.

	store, history, sync := newFixture(t)
	ctx := context.Background()
	seedWorker(t, store, "w-1", "Kovacs Janos", "80")
	history.AddSalaryChange(ctx, testTenant, "w-1", dec("100"), day(2025, time.June, 1))
	seedRow(t, store, "w-1", "Kovacs Janos", day(2025, time.June, 10), "80")

	first := sync.SyncWorker(ctx, testTenant, "w-1")
	require.True(t, first.Success)
	require.Equal(t, 1, first.Updated)

	second := sync.SyncWorker(ctx, testTenant, "w-1")
	require.True(t, second.Success)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 1, second.Skipped)
}

func TestSyncWorker_MatchesRowsByNameCaseInsensitive(t *testing.T) {
	// Rows written before the roster had ids carry only a name.

	store, history, sync := newFixture(t)
	ctx := context.Background()
	seedWorker(t, store, "w-1", "Kovacs Janos", "80")
	history.AddSalaryChange(ctx, testTenant, "w-1", dec("100"), day(2025, time.June, 1))

	orphan := seedRow(t, store, "", "KOVACS JANOS", day(2025, time.June, 10), "80")

	res := sync.SyncWorker(ctx, testTenant, "w-1")
	require.True(t, res.Success)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, "100", snapshotOf(t, store, orphan))
}

func TestSyncWorker_FallsBackToBaselineWithoutTimeline(t *testing.T) {
	// No history entry qualifies: the worker's baseline rate applies.

	store, _, sync := newFixture(t)
	ctx := context.Background()
	seedWorker(t, store, "w-1", "Kovacs Janos", "80")
	row := seedRow(t, store, "w-1", "Kovacs Janos", day(2025, time.June, 10), "55")

	res := sync.SyncWorker(ctx, testTenant, "w-1")
	require.True(t, res.Success)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, "80", snapshotOf(t, store, row))
}

func TestSyncWorker_UnknownWorkerFails(t *testing.T) {
	_, _, sync := newFixture(t)

	res := sync.SyncWorker(context.Background(), testTenant, "ghost")
	assert.False(t, res.Success)
	assert.Equal(t, "worker not found", res.Message)
}

// =============================================================================
// TENANT-WIDE SYNC
// =============================================================================

func TestSyncAll_CoversEveryActiveWorker(t *testing.T) {
	store, history, sync := newFixture(t)
	ctx := context.Background()

	seedWorker(t, store, "w-1", "Kovacs Janos", "80")
	seedWorker(t, store, "w-2", "Nagy Bela", "60")
	history.AddSalaryChange(ctx, testTenant, "w-1", dec("100"), day(2025, time.June, 1))
	history.AddSalaryChange(ctx, testTenant, "w-2", dec("70"), day(2025, time.June, 1))

	seedRow(t, store, "w-1", "Kovacs Janos", day(2025, time.June, 10), "80")
	seedRow(t, store, "w-2", "Nagy Bela", day(2025, time.June, 10), "70")

	res := sync.SyncAll(ctx, testTenant)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, 2, res.WorkersProcessed)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Skipped)
}

func TestSyncAll_SkipsDeletedWorkers(t *testing.T) {
	store, _, sync := newFixture(t)
	ctx := context.Background()

	require.NoError(t, store.SaveWorker(ctx, ledger.Worker{
		ID: "w-gone", Name: "Former Employee", DailyRate: dec("90"),
		Deleted: true, Tenant: testTenant,
	}))
	seedRow(t, store, "w-gone", "Former Employee", day(2025, time.June, 10), "55")

	res := sync.SyncAll(ctx, testTenant)
	require.True(t, res.Success)
	assert.Equal(t, 0, res.WorkersProcessed)
	assert.Equal(t, 0, res.Updated)
}

func TestSyncAll_EmptyTenantSucceeds(t *testing.T) {
	_, _, sync := newFixture(t)

	res := sync.SyncAll(context.Background(), testTenant)
	assert.True(t, res.Success)
	assert.Equal(t, 0, res.WorkersProcessed)
}

// =============================================================================
// DATE-SCOPED SYNC
// =============================================================================

func TestSyncAfterDate_OnlyTouchesRowsOnOrAfterCutoff(t *testing.T) {
	// GIVEN: stale rows on both sides of the cutoff
	// THEN: only the row on/after the cutoff is rewritten

	store, history, sync := newFixture(t)
	ctx := context.Background()
	seedWorker(t, store, "w-1", "Kovacs Janos", "80")
	history.AddSalaryChange(ctx, testTenant, "w-1", dec("100"), day(2025, time.May, 1))

	before := seedRow(t, store, "w-1", "Kovacs Janos", day(2025, time.June, 5), "80")
	after := seedRow(t, store, "w-1", "Kovacs Janos", day(2025, time.June, 15), "80")

	res := sync.SyncAfterDate(ctx, testTenant, day(2025, time.June, 10))
	require.True(t, res.Success, res.Message)
	assert.Equal(t, 1, res.Updated)

	assert.Equal(t, "80", snapshotOf(t, store, before), "row before the cutoff stays frozen")
	assert.Equal(t, "100", snapshotOf(t, store, after))
}

func TestSyncAfterDate_ReportsUnattributableRowsSeparately(t *testing.T) {
	// GIVEN: one row naming nobody on the roster and one already-current row
	// THEN: the orphan lands in Unresolved, not in Skipped — "could not
	//       attribute" and "nothing to do" are different answers

	store, _, sync := newFixture(t)
	seedWorker(t, store, "w-1", "Kovacs Janos", "80")
	seedRow(t, store, "", "Unknown Person", day(2025, time.June, 15), "80")
	seedRow(t, store, "w-1", "Kovacs Janos", day(2025, time.June, 15), "80")

	res := sync.SyncAfterDate(context.Background(), testTenant, day(2025, time.June, 1))
	require.True(t, res.Success)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 1, res.Skipped, "the current row is the only skip")
	assert.Equal(t, 1, res.Unresolved, "the orphan row must not be counted as a skip")
}
