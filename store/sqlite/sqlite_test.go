package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebook/labor-ledger/ledger"
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

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func row(groupNo ledger.GroupNo, item string, date time.Time, progress string) ledger.LedgerRow {
	return ledger.LedgerRow{
		GroupNo:        groupNo,
		WorkID:         "work-1",
		WorkItemID:     ledger.WorkItemID(item),
		WorkerID:       "w-1",
		WorkerName:     "Kovacs Janos",
		Date:           date,
		Quantity:       dec("5"),
		WorkHours:      dec("8"),
		ProgressAtDate: dec(progress),
		Tenant:         testTenant,
	}
}

// =============================================================================
// ATOMIC BATCH REPLACE
// =============================================================================

func TestReplaceBatch_MidBatchFailureLeavesOriginalIntact(t *testing.T) {
	// GIVEN: a saved batch of 2 rows
	// WHEN: a replacement fails on its second row (tenant mismatch)
	// THEN: the transaction rolls back and the ORIGINAL rows survive — the
	//       delete must not outlive the failed insert

	store := newStore(t)
	ctx := context.Background()

	n, err := store.ReplaceBatch(ctx, testTenant, 100, []ledger.LedgerRow{
		row(100, "item-A", day(2025, time.June, 10), "30"),
		row(100, "item-B", day(2025, time.June, 10), "10"),
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	bad := row(100, "item-C", day(2025, time.June, 11), "40")
	bad.Tenant = "intruder"
	_, err = store.ReplaceBatch(ctx, testTenant, 100, []ledger.LedgerRow{
		row(100, "item-A", day(2025, time.June, 11), "40"),
		bad,
	})
	require.ErrorIs(t, err, ledger.ErrUnauthorized)

	rows, err := store.RowsByGroup(ctx, testTenant, 100)
	require.NoError(t, err)
	require.Len(t, rows, 2, "failed replace must leave the original batch untouched")
	assert.Equal(t, ledger.WorkItemID("item-A"), rows[0].WorkItemID)
	assert.True(t, rows[0].ProgressAtDate.Equal(dec("30")), "original snapshot must survive the rollback")
}

func TestReplaceBatch_SwapsRowSet(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := store.ReplaceBatch(ctx, testTenant, 100, []ledger.LedgerRow{
		row(100, "item-A", day(2025, time.June, 10), "30"),
		row(100, "item-B", day(2025, time.June, 10), "10"),
	})
	require.NoError(t, err)

	n, err := store.ReplaceBatch(ctx, testTenant, 100, []ledger.LedgerRow{
		row(100, "item-A", day(2025, time.June, 10), "45"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rows, err := store.RowsByGroup(ctx, testTenant, 100)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].ProgressAtDate.Equal(dec("45")))
}

func TestReplaceBatch_DoesNotTouchOtherTenants(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	other := row(100, "item-A", day(2025, time.June, 10), "30")
	other.Tenant = "tenant-2"
	_, err := store.ReplaceBatch(ctx, "tenant-2", 100, []ledger.LedgerRow{other})
	require.NoError(t, err)

	_, err = store.ReplaceBatch(ctx, testTenant, 100, []ledger.LedgerRow{
		row(100, "item-A", day(2025, time.June, 10), "99"),
	})
	require.NoError(t, err)

	rows, err := store.RowsByGroup(ctx, "tenant-2", 100)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].ProgressAtDate.Equal(dec("30")), "same GroupNo in another tenant must be untouched")
}

// =============================================================================
// LATEST-ROW ORDERING
// =============================================================================

func TestLatestRow_SameDayResolvesToNewestWrite(t *testing.T) {
	// Two rows on the same date: the one written later wins.

	store := newStore(t)
	ctx := context.Background()

	older := row(1, "item-A", day(2025, time.June, 10), "30")
	older.CreatedAt = time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC)
	newer := row(2, "item-A", day(2025, time.June, 10), "35")
	newer.CreatedAt = time.Date(2025, time.June, 10, 15, 30, 0, 0, time.UTC)

	_, err := store.CreateRow(ctx, newer)
	require.NoError(t, err)
	_, err = store.CreateRow(ctx, older)
	require.NoError(t, err)

	latest, err := store.LatestRow(ctx, testTenant, "item-A")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.ProgressAtDate.Equal(dec("35")), "same-day rows tie-break on write time, got %s", latest.ProgressAtDate)
}

func TestLatestRow_DateOutranksWriteTime(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	early := row(1, "item-A", day(2025, time.June, 12), "50")
	early.CreatedAt = time.Date(2025, time.June, 12, 8, 0, 0, 0, time.UTC)
	lateBackfill := row(2, "item-A", day(2025, time.June, 10), "30")
	lateBackfill.CreatedAt = time.Date(2025, time.June, 13, 8, 0, 0, 0, time.UTC)

	_, err := store.CreateRow(ctx, early)
	require.NoError(t, err)
	_, err = store.CreateRow(ctx, lateBackfill)
	require.NoError(t, err)

	latest, err := store.LatestRow(ctx, testTenant, "item-A")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.ProgressAtDate.Equal(dec("50")), "a back-dated row written later must not outrank the newest date")
}

func TestLatestProgressBefore_IsStrictlyBefore(t *testing.T) {
	// A row dated ON the query date must not count as "previous".

	store := newStore(t)
	ctx := context.Background()

	_, err := store.CreateRow(ctx, row(1, "item-A", day(2025, time.June, 8), "20"))
	require.NoError(t, err)
	_, err = store.CreateRow(ctx, row(2, "item-A", day(2025, time.June, 10), "30"))
	require.NoError(t, err)

	prev, err := store.LatestProgressBefore(ctx, testTenant, "item-A", day(2025, time.June, 10))
	require.NoError(t, err)
	assert.True(t, prev.Equal(dec("20")), "got %s", prev)

	none, err := store.LatestProgressBefore(ctx, testTenant, "item-A", day(2025, time.June, 1))
	require.NoError(t, err)
	assert.True(t, none.IsZero(), "no earlier row means zero previous progress")
}

// =============================================================================
// SALARY TIMELINE STORAGE
// =============================================================================

func TestUpsertSalaryEntry_SameDateKeepsOneEntry(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertSalaryEntry(ctx, ledger.SalaryHistoryEntry{
		WorkerID: "w-1", DailyRate: dec("100"),
		ValidFrom: day(2025, time.June, 1), Tenant: testTenant,
	}))
	require.NoError(t, store.UpsertSalaryEntry(ctx, ledger.SalaryHistoryEntry{
		WorkerID: "w-1", DailyRate: dec("120"),
		ValidFrom: day(2025, time.June, 1), Tenant: testTenant,
	}))

	entries, err := store.ListSalaryHistory(ctx, testTenant, "w-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].DailyRate.Equal(dec("120")))
}

func TestSalaryEntryAt_PicksGreatestValidFromNotAfter(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	for _, e := range []struct{ rate, from string }{
		{"100", "2025-06-01"},
		{"200", "2025-06-15"},
	} {
		from, err := time.Parse("2006-01-02", e.from)
		require.NoError(t, err)
		require.NoError(t, store.UpsertSalaryEntry(ctx, ledger.SalaryHistoryEntry{
			WorkerID: "w-1", DailyRate: dec(e.rate), ValidFrom: from, Tenant: testTenant,
		}))
	}

	entry, err := store.SalaryEntryAt(ctx, testTenant, "w-1", day(2025, time.June, 14))
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.DailyRate.Equal(dec("100")))

	entry, err = store.SalaryEntryAt(ctx, testTenant, "w-1", day(2025, time.May, 1))
	require.NoError(t, err)
	assert.Nil(t, entry, "no entry qualifies before the first change")
}
