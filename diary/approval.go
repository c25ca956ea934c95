/*
approval.go - Group approval coordinator

PURPOSE:
  Approves or revokes a batch as one unit: the accepted flag flips on every
  row sharing the GroupNo in a single statement, so a batch is never left
  part-approved.

ASYMMETRY (deliberate):
  - Updating a group with zero rows succeeds with UpdatedCount 0. Approval
    is declarative: "make this group accepted" is satisfiable on an empty
    group.
  - Querying the status of a group with zero rows FAILS. There is no status
    to report for a batch that does not exist.
*/
package diary

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sitebook/labor-ledger/ledger"
)

// =============================================================================
// COORDINATOR
// =============================================================================

// ApprovalCoordinator flips batch-level acceptance.
type ApprovalCoordinator struct {
	rows ledger.RowStore
	log  *logrus.Logger
}

// NewApprovalCoordinator creates an approval coordinator.
func NewApprovalCoordinator(rows ledger.RowStore, log *logrus.Logger) *ApprovalCoordinator {
	if log == nil {
		log = logrus.New()
	}
	return &ApprovalCoordinator{rows: rows, log: log}
}

// ApprovalResult reports an approval update.
type ApprovalResult struct {
	Success bool
	Message string

	// UpdatedCount is how many rows flipped. Zero rows is still a success.
	UpdatedCount int64
}

// UpdateGroupApproval sets the accepted flag on every row of the group. A
// missing group is a no-op success.
func (c *ApprovalCoordinator) UpdateGroupApproval(ctx context.Context, tenant string, groupNo ledger.GroupNo, accepted bool) ApprovalResult {
	count, err := c.rows.UpdateGroupAccepted(ctx, tenant, groupNo, accepted)
	if err != nil {
		c.log.WithError(err).WithField("group", groupNo).Error("approval update failed")
		return ApprovalResult{Message: "failed to update approval"}
	}

	verb := "approved"
	if !accepted {
		verb = "approval revoked for"
	}
	c.log.WithFields(logrus.Fields{
		"group": groupNo,
		"rows":  count,
	}).Info("group " + verb)

	return ApprovalResult{
		Success:      true,
		Message:      fmt.Sprintf("%s %d rows", verb, count),
		UpdatedCount: count,
	}
}

// StatusResult reports a batch's approval state.
type StatusResult struct {
	Success bool
	Message string

	AllApproved   bool
	SomeApproved  bool
	TotalItems    int
	ApprovedItems int
}

// GetGroupApprovalStatus reports the batch's approval state. Unlike the
// update, a missing group is a failure here.
func (c *ApprovalCoordinator) GetGroupApprovalStatus(ctx context.Context, tenant string, groupNo ledger.GroupNo) StatusResult {
	rows, err := c.rows.RowsByGroup(ctx, tenant, groupNo)
	if err != nil {
		c.log.WithError(err).WithField("group", groupNo).Error("approval status query failed")
		return StatusResult{Message: "failed to load group"}
	}
	if len(rows) == 0 {
		return StatusResult{Message: "group not found"}
	}

	// Approval flips atomically, so the rows normally agree; counting both
	// ways keeps the read honest if they ever do not.
	approved := 0
	for _, r := range rows {
		if r.Accepted {
			approved++
		}
	}

	return StatusResult{
		Success:       true,
		Message:       fmt.Sprintf("%d of %d rows approved", approved, len(rows)),
		AllApproved:   approved == len(rows),
		SomeApproved:  approved > 0,
		TotalItems:    len(rows),
		ApprovedItems: approved,
	}
}
