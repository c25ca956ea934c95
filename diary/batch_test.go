package diary_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebook/labor-ledger/diary"
	"github.com/sitebook/labor-ledger/ledger"
	"github.com/sitebook/labor-ledger/salary"
	"github.com/sitebook/labor-ledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const testTenant = "tenant-1"

func dec(s string) decimal.Decimal { return ledger.MustDecimal(s) }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newFixture(t *testing.T) (*sqlite.Store, *diary.BatchService, *diary.ApprovalCoordinator) {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	history := salary.NewHistoryService(store, store, salary.NewSynchronizer(store, store, store, log), log)
	batches := diary.NewBatchService(store, store, history, log)
	approvals := diary.NewApprovalCoordinator(store, log)
	return store, batches, approvals
}

func seedRoster(t *testing.T, store *sqlite.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.SaveWorker(ctx, ledger.Worker{
		ID: "w-1", Name: "Kovacs Janos", DailyRate: dec("80"), Tenant: testTenant,
	}))
	require.NoError(t, store.SaveWorker(ctx, ledger.Worker{
		ID: "w-2", Name: "Nagy Bela", DailyRate: dec("60"), Tenant: testTenant,
	}))
	require.NoError(t, store.SaveWorkItem(ctx, ledger.WorkItem{
		ID: "item-A", WorkID: "work-1", Name: "Foundation", Unit: "m2",
		Quantity: dec("100"), Tenant: testTenant,
	}))
	require.NoError(t, store.SaveWorkItem(ctx, ledger.WorkItem{
		ID: "item-B", WorkID: "work-1", Name: "Walls", Unit: "m",
		Quantity: dec("50"), Tenant: testTenant,
	}))
}

func submission(groupNo ledger.GroupNo, date time.Time, submittedA string) ledger.BatchRequest {
	return ledger.BatchRequest{
		GroupNo: groupNo,
		WorkID:  "work-1",
		Date:    date,
		Items: []ledger.BatchItem{
			{WorkItemID: "item-A", Unit: "m2", Submitted: dec(submittedA)},
		},
		Workers: []ledger.BatchWorker{
			{WorkerID: "w-1", Name: "Kovacs Janos", Hours: dec("8")},
			{WorkerID: "w-2", Name: "Nagy Bela", Hours: dec("4")},
		},
	}
}

func completedOf(t *testing.T, store *sqlite.Store, id ledger.WorkItemID) ledger.WorkItem {
	t.Helper()
	item, err := store.GetWorkItem(context.Background(), testTenant, id)
	require.NoError(t, err)
	require.NotNil(t, item)
	return *item
}

// =============================================================================
// SUBMISSION
// =============================================================================

func TestSubmitBatch_WritesRowsAndFreezesRates(t *testing.T) {
	// GIVEN: two workers with baseline rates 80 and 60
	// WHEN: a batch is submitted
	// THEN: one row per (item, worker) lands, each frozen at its worker's rate

	store, batches, _ := newFixture(t)
	seedRoster(t, store)

	res := batches.SubmitBatch(context.Background(), testTenant, submission(0, day(2025, time.June, 10), "30"))
	require.True(t, res.Success, res.Message)
	require.NotZero(t, res.GroupNo, "a zero GroupNo must mint a fresh batch id")
	assert.Equal(t, 2, res.RowsWritten)

	rows, err := store.RowsByGroup(context.Background(), testTenant, res.GroupNo)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].DailyRateSnapshot.Equal(dec("80")))
	assert.True(t, rows[1].DailyRateSnapshot.Equal(dec("60")))
	assert.False(t, rows[0].Accepted, "new batches start unapproved")
}

func TestSubmitBatch_EmptySubmissionFails(t *testing.T) {
	_, batches, _ := newFixture(t)

	res := batches.SubmitBatch(context.Background(), testTenant, ledger.BatchRequest{
		Date: day(2025, time.June, 10),
	})
	assert.False(t, res.Success)
}

func TestSubmitBatch_ReplaceSwapsRowSetAtomically(t *testing.T) {
	// GIVEN: a saved batch of 2 rows
	// WHEN: the same GroupNo is resubmitted with one worker
	// THEN: the old rows are gone and exactly the new set remains

	store, batches, _ := newFixture(t)
	seedRoster(t, store)
	ctx := context.Background()

	first := batches.SubmitBatch(ctx, testTenant, submission(0, day(2025, time.June, 10), "30"))
	require.True(t, first.Success)

	edit := submission(first.GroupNo, day(2025, time.June, 10), "40")
	edit.Workers = edit.Workers[:1]
	second := batches.SubmitBatch(ctx, testTenant, edit)
	require.True(t, second.Success, second.Message)

	rows, err := store.RowsByGroup(ctx, testTenant, first.GroupNo)
	require.NoError(t, err)
	require.Len(t, rows, 1, "replace must not accumulate rows across edits")
	assert.True(t, rows[0].ProgressAtDate.Equal(dec("40")))
	assert.Equal(t, ledger.WorkerID("w-1"), rows[0].WorkerID)
}

// =============================================================================
// COMPLETION TOTALS
// =============================================================================

func TestCompletedQuantity_IsLatestSnapshotNotSumOfDeltas(t *testing.T) {
	// GIVEN: 30 recorded on June 10, then 50 on June 12
	// THEN: completedQuantity is 50 (the latest snapshot), never 80

	store, batches, _ := newFixture(t)
	seedRoster(t, store)
	ctx := context.Background()

	require.True(t, batches.SubmitBatch(ctx, testTenant, submission(0, day(2025, time.June, 10), "30")).Success)
	require.True(t, batches.SubmitBatch(ctx, testTenant, submission(0, day(2025, time.June, 12), "50")).Success)

	item := completedOf(t, store, "item-A")
	assert.True(t, item.CompletedQuantity.Equal(dec("50")), "got %s", item.CompletedQuantity)
	assert.Equal(t, 50, item.Progress, "50 of quantity 100 is 50 percent")
}

func TestDeleteBatch_RewindsCompletionToSurvivingRows(t *testing.T) {
	// Deleting the newest batch must roll the item total back to the
	// snapshot of the previous one.

	store, batches, _ := newFixture(t)
	seedRoster(t, store)
	ctx := context.Background()

	batches.SubmitBatch(ctx, testTenant, submission(0, day(2025, time.June, 10), "30"))
	second := batches.SubmitBatch(ctx, testTenant, submission(0, day(2025, time.June, 12), "50"))
	require.True(t, second.Success)

	res := batches.DeleteBatch(ctx, testTenant, second.GroupNo)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, int64(2), res.Deleted)

	item := completedOf(t, store, "item-A")
	assert.True(t, item.CompletedQuantity.Equal(dec("30")), "got %s", item.CompletedQuantity)
}

func TestDeleteBatch_LastBatchZeroesCompletion(t *testing.T) {
	store, batches, _ := newFixture(t)
	seedRoster(t, store)
	ctx := context.Background()

	only := batches.SubmitBatch(ctx, testTenant, submission(0, day(2025, time.June, 10), "30"))
	require.True(t, only.Success)

	res := batches.DeleteBatch(ctx, testTenant, only.GroupNo)
	require.True(t, res.Success)

	item := completedOf(t, store, "item-A")
	assert.True(t, item.CompletedQuantity.IsZero())
	assert.Equal(t, 0, item.Progress)
}

func TestRefreshAllCompletedQuantities_RepairsDriftedTotals(t *testing.T) {
	// GIVEN: an item whose stored total was corrupted out of band
	// WHEN: the tenant-wide refresh runs
	// THEN: the total is recomputed from the latest ledger row

	store, batches, _ := newFixture(t)
	seedRoster(t, store)
	ctx := context.Background()

	require.True(t, batches.SubmitBatch(ctx, testTenant, submission(0, day(2025, time.June, 10), "30")).Success)
	require.NoError(t, store.UpdateWorkItemCompleted(ctx, testTenant, "item-A", dec("999"), 99))

	res := batches.RefreshAllCompletedQuantities(ctx, testTenant)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, 2, res.Total)

	item := completedOf(t, store, "item-A")
	assert.True(t, item.CompletedQuantity.Equal(dec("30")), "got %s", item.CompletedQuantity)
}

// =============================================================================
// READS & COST
// =============================================================================

func TestGetBatch_SumsHoursAndFrozenCost(t *testing.T) {
	// Workers at rate 80 for 8h and rate 60 for 4h: cost is 80 + 30.

	store, batches, _ := newFixture(t)
	seedRoster(t, store)
	ctx := context.Background()

	res := batches.SubmitBatch(ctx, testTenant, submission(0, day(2025, time.June, 10), "30"))
	require.True(t, res.Success)

	view, err := batches.GetBatch(ctx, testTenant, res.GroupNo)
	require.NoError(t, err)
	assert.True(t, view.TotalHours.Equal(dec("12")))
	assert.True(t, view.TotalCost.Equal(dec("110")), "80*8/8 + 60*4/8 = 110, got %s", view.TotalCost)
	assert.Equal(t, "work-1", view.WorkID)
	assert.False(t, view.Accepted)
}

func TestGetBatch_MissingGroupFails(t *testing.T) {
	_, batches, _ := newFixture(t)

	_, err := batches.GetBatch(context.Background(), testTenant, 424242)
	assert.ErrorIs(t, err, ledger.ErrGroupNotFound)
}

func TestListBatches_GroupsByBatchNewestFirst(t *testing.T) {
	store, batches, _ := newFixture(t)
	seedRoster(t, store)
	ctx := context.Background()

	older := batches.SubmitBatch(ctx, testTenant, submission(0, day(2025, time.June, 10), "30"))
	newer := batches.SubmitBatch(ctx, testTenant, submission(0, day(2025, time.June, 12), "50"))
	require.True(t, older.Success)
	require.True(t, newer.Success)

	views, err := batches.ListBatches(ctx, testTenant, "work-1")
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, newer.GroupNo, views[0].GroupNo)
	assert.Equal(t, older.GroupNo, views[1].GroupNo)
	assert.Len(t, views[0].Rows, 2)
}
