/*
allocation.go - Batch allocation engine

PURPOSE:
  Converts one user submission (absolute progress sliders for a set of work
  items, session hour totals for a set of workers) into the per-worker,
  per-work-item LedgerRows of a batch.

ALGORITHM (per work item I):
  1. delta(I)   = max(0, submitted(I) - previous(I)) where previous(I) is the
                  latest recorded ProgressAtDate strictly before the batch
                  date. Lowering the slider never records negative work.
  2. Every row of item I stores ProgressAtDate = submitted(I) raw, even when
     the delta was clamped to zero: the snapshot is what the user asked for.

  Per worker W and item I:
  3. quantity(W,I) = delta(I) * hours(W) / totalHours
     Progress attribution follows how much of the SESSION each worker
     worked, not how that worker split time across items.
  4. hours(W,I)    = hours(W) * delta(I) / totalDelta, falling back to an
     equal split across items when no item advanced. The inverse direction
     of step 3: a worker's own hours are split across items by how much
     each item moved.

CONSERVATION:
  Division residue is assigned to the final share so that per-item
  quantities always sum to exactly delta(I) and a worker's per-item hours
  always sum to exactly hours(W).

PURITY:
  The engine reads no shared state. Everything it needs arrives in one
  immutable BatchRequest plus the previous-progress map the caller fetched.

SEE ALSO:
  - diary/batch.go: fetches previous progress, freezes rate snapshots, and
    persists the computed rows atomically
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BATCH SUBMISSION INPUT
// =============================================================================

// BatchItem is one work item in a submission with its absolute slider value.
type BatchItem struct {
	WorkItemID WorkItemID
	Unit       string
	Submitted  decimal.Decimal
}

// BatchWorker is one worker in a submission with the total hours they worked
// in this session.
type BatchWorker struct {
	WorkerID WorkerID
	Name     string
	Hours    decimal.Decimal
}

// BatchRequest is the immutable input of one submission. The engine never
// reads anything that is not on this value.
type BatchRequest struct {
	GroupNo GroupNo
	WorkID  string
	Date    time.Time
	Notes   string
	Items   []BatchItem
	Workers []BatchWorker
}

// TotalHours sums the session hours of every worker in the batch.
func (r BatchRequest) TotalHours() decimal.Decimal {
	total := decimal.Zero
	for _, w := range r.Workers {
		total = total.Add(w.Hours)
	}
	return total
}

// =============================================================================
// ALLOCATION OUTPUT
// =============================================================================

// Allocation is one computed row of a batch, before the rate snapshot is
// frozen onto it.
type Allocation struct {
	WorkItemID     WorkItemID
	WorkerID       WorkerID
	WorkerName     string
	Unit           string
	Quantity       decimal.Decimal
	WorkHours      decimal.Decimal
	ProgressAtDate decimal.Decimal
	Delta          decimal.Decimal
}

// =============================================================================
// ENGINE
// =============================================================================

// Allocate computes the rows of one batch. previous maps each work item to
// the latest ProgressAtDate recorded strictly before the batch date;
// missing entries default to zero.
//
// The returned slice is ordered worker-major, item-minor: all rows of the
// first worker, then all rows of the second, matching submission order.
func Allocate(req BatchRequest, previous map[WorkItemID]decimal.Decimal) ([]Allocation, error) {
	if len(req.Items) == 0 || len(req.Workers) == 0 {
		return nil, ErrEmptyBatch
	}

	totalHours := req.TotalHours()

	// Per-item deltas, clamped at zero.
	deltas := make([]decimal.Decimal, len(req.Items))
	totalDelta := decimal.Zero
	for i, item := range req.Items {
		prev := previous[item.WorkItemID]
		delta := item.Submitted.Sub(prev)
		if delta.IsNegative() {
			delta = decimal.Zero
		}
		deltas[i] = delta
		totalDelta = totalDelta.Add(delta)
	}

	itemCount := decimal.NewFromInt(int64(len(req.Items)))
	allocations := make([]Allocation, 0, len(req.Items)*len(req.Workers))

	// Track how much of each item's delta has been handed out so the last
	// worker absorbs the division residue: per-item quantities must sum to
	// exactly delta.
	remaining := make([]decimal.Decimal, len(deltas))
	copy(remaining, deltas)

	for wi, worker := range req.Workers {
		lastWorker := wi == len(req.Workers)-1

		// A worker's hours are split across items by delta share; the last
		// item absorbs the residue so the splits sum to the session hours.
		hoursLeft := worker.Hours

		for ii, item := range req.Items {
			lastItem := ii == len(req.Items)-1

			// With a zero-hour session nothing can be attributed to anyone.
			var quantity decimal.Decimal
			switch {
			case !totalHours.IsPositive():
				quantity = decimal.Zero
			case lastWorker:
				quantity = remaining[ii]
			default:
				quantity = deltas[ii].Mul(worker.Hours).Div(totalHours)
			}
			remaining[ii] = remaining[ii].Sub(quantity)

			var hours decimal.Decimal
			switch {
			case lastItem:
				hours = hoursLeft
			case totalDelta.IsPositive():
				hours = worker.Hours.Mul(deltas[ii]).Div(totalDelta)
			default:
				hours = worker.Hours.Div(itemCount)
			}
			hoursLeft = hoursLeft.Sub(hours)

			allocations = append(allocations, Allocation{
				WorkItemID:     item.WorkItemID,
				WorkerID:       worker.WorkerID,
				WorkerName:     worker.Name,
				Unit:           item.Unit,
				Quantity:       quantity,
				WorkHours:      hours,
				ProgressAtDate: item.Submitted,
				Delta:          deltas[ii],
			})
		}
	}

	return allocations, nil
}
