package rewards_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glasslink/rewards-engine/rewards"
	"github.com/glasslink/rewards-engine/rewards/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newWorkflowFixture(t *testing.T, policy rewards.WorkflowPolicy) (*rewards.Workflow, *store.Memory) {
	t.Helper()
	m := store.NewMemory()
	assigner := rewards.NewAssigner(m, m, nil, nil)
	workflow := rewards.NewWorkflow(m, assigner, nil, nil, policy, nil)
	return workflow, m
}

// =============================================================================
// REDEEM TESTS
// =============================================================================

func TestRedeem_DebitsAndCreatesPendingRedemption(t *testing.T) {
	// GIVEN: A customer with 600 points and a 100-point reward
	// WHEN: Redeeming
	// THEN: Balance drops to 500 and a redemption exists with the cost snapshot

	w, m := newWorkflowFixture(t, rewards.DefaultWorkflowPolicy())
	seedCustomer(t, m, "cust-1", "ana")
	seedOption(t, m, "opt-1", "Free Rock Chip Repair", 100)
	creditCustomer(t, m, "cust-1", 600)

	r, err := w.Redeem(context.Background(), "cust-1", "opt-1")
	require.NoError(t, err)

	assert.Equal(t, int64(500), balanceOf(t, m, "cust-1"))
	assert.Equal(t, int64(100), r.PointsSpent.Int64())
	assert.Equal(t, "Free Rock Chip Repair", r.OptionName)
	// No technicians seeded, so assignment was skipped.
	assert.Equal(t, rewards.RedemptionPending, r.Status)
	assert.Nil(t, r.TechnicianID)
}

func TestRedeem_InsufficientPoints(t *testing.T) {
	// GIVEN: A customer who has never earned a point
	// WHEN: Redeeming a 100-point reward
	// THEN: A structured insufficient-points error; nothing is written

	w, m := newWorkflowFixture(t, rewards.DefaultWorkflowPolicy())
	seedCustomer(t, m, "cust-1", "ana")
	seedOption(t, m, "opt-1", "Free Rock Chip Repair", 100)

	_, err := w.Redeem(context.Background(), "cust-1", "opt-1")
	require.ErrorIs(t, err, rewards.ErrInsufficientPoints)

	var ipe *rewards.InsufficientPointsError
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, int64(100), ipe.Required.Int64())
	assert.Equal(t, int64(0), ipe.Available.Int64())
	assert.Equal(t, "insufficient points: 100 required, 0 available", err.Error())

	assert.Zero(t, balanceOf(t, m, "cust-1"))
	redemptions, err := m.ListRedemptionsByCustomer(context.Background(), "cust-1")
	require.NoError(t, err)
	assert.Empty(t, redemptions)
}

func TestRedeem_ExactBalanceSucceeds(t *testing.T) {
	w, m := newWorkflowFixture(t, rewards.DefaultWorkflowPolicy())
	seedCustomer(t, m, "cust-1", "ana")
	seedOption(t, m, "opt-1", "Free Rock Chip Repair", 100)
	creditCustomer(t, m, "cust-1", 100)

	_, err := w.Redeem(context.Background(), "cust-1", "opt-1")
	require.NoError(t, err)
	assert.Zero(t, balanceOf(t, m, "cust-1"))
}

func TestRedeem_InactiveOptionNotRedeemable(t *testing.T) {
	w, m := newWorkflowFixture(t, rewards.DefaultWorkflowPolicy())
	seedCustomer(t, m, "cust-1", "ana")
	o := seedOption(t, m, "opt-1", "Retired Offer", 100)
	o.Active = false
	require.NoError(t, m.SaveOption(context.Background(), o))
	creditCustomer(t, m, "cust-1", 500)

	_, err := w.Redeem(context.Background(), "cust-1", "opt-1")
	assert.ErrorIs(t, err, rewards.ErrOptionNotFound)
	assert.Equal(t, int64(500), balanceOf(t, m, "cust-1"))
}

func TestRedeem_AssignsLeastLoadedTechnician(t *testing.T) {
	w, m := newWorkflowFixture(t, rewards.DefaultWorkflowPolicy())
	seedCustomer(t, m, "cust-1", "ana")
	seedOption(t, m, "opt-1", "Free Rock Chip Repair", 100)
	creditCustomer(t, m, "cust-1", 200)
	seedTechnician(t, m, "tech-a", "Marco")
	seedTechnician(t, m, "tech-b", "Dana")
	m.SetActiveJobs("tech-a", 3)
	m.SetActiveJobs("tech-b", 1)

	r, err := w.Redeem(context.Background(), "cust-1", "opt-1")
	require.NoError(t, err)
	assert.Equal(t, rewards.RedemptionAssigned, r.Status)
	require.NotNil(t, r.TechnicianID)
	assert.Equal(t, rewards.TechnicianID("tech-b"), *r.TechnicianID)
}

// =============================================================================
// FULFILL TESTS
// =============================================================================

func TestFulfill_FromAssigned(t *testing.T) {
	w, m := newWorkflowFixture(t, rewards.DefaultWorkflowPolicy())
	seedCustomer(t, m, "cust-1", "ana")
	seedOption(t, m, "opt-1", "Free Rock Chip Repair", 100)
	creditCustomer(t, m, "cust-1", 200)
	seedTechnician(t, m, "tech-a", "Marco")

	r, err := w.Redeem(context.Background(), "cust-1", "opt-1")
	require.NoError(t, err)
	require.Equal(t, rewards.RedemptionAssigned, r.Status)

	done, err := w.Fulfill(context.Background(), r.ID, "tech-a", "applied at visit")
	require.NoError(t, err)
	assert.Equal(t, rewards.RedemptionFulfilled, done.Status)
	require.NotNil(t, done.ProcessedBy)
	assert.Equal(t, rewards.TechnicianID("tech-a"), *done.ProcessedBy)
	assert.NotNil(t, done.FulfilledAt)
	assert.Equal(t, "applied at visit", done.Notes)
}

func TestFulfill_FromPendingUnderPolicy(t *testing.T) {
	// One-technician shops never assign; fulfillment straight from PENDING
	// is allowed when the policy says so.
	w, m := newWorkflowFixture(t, rewards.DefaultWorkflowPolicy())
	seedCustomer(t, m, "cust-1", "ana")
	seedOption(t, m, "opt-1", "Free Rock Chip Repair", 100)
	creditCustomer(t, m, "cust-1", 200)

	r, err := w.Redeem(context.Background(), "cust-1", "opt-1")
	require.NoError(t, err)
	require.Equal(t, rewards.RedemptionPending, r.Status)

	seedTechnician(t, m, "tech-a", "Marco")
	done, err := w.Fulfill(context.Background(), r.ID, "tech-a", "")
	require.NoError(t, err)
	assert.Equal(t, rewards.RedemptionFulfilled, done.Status)
}

func TestFulfill_FromPendingBlockedWithoutPolicy(t *testing.T) {
	policy := rewards.WorkflowPolicy{RefundOnRejection: true, AllowUnassignedFulfillment: false}
	w, m := newWorkflowFixture(t, policy)
	seedCustomer(t, m, "cust-1", "ana")
	seedOption(t, m, "opt-1", "Free Rock Chip Repair", 100)
	creditCustomer(t, m, "cust-1", 200)
	seedTechnician(t, m, "tech-a", "Marco")

	r, err := w.Redeem(context.Background(), "cust-1", "opt-1")
	require.NoError(t, err)

	// Force back to pending to simulate an unassigned redemption.
	r.Status = rewards.RedemptionPending
	r.TechnicianID = nil
	require.NoError(t, m.UpdateRedemption(context.Background(), *r))

	_, err = w.Fulfill(context.Background(), r.ID, "tech-a", "")
	assert.ErrorIs(t, err, rewards.ErrInvalidTransition)
}

func TestFulfill_TerminalStatesRejected(t *testing.T) {
	w, m := newWorkflowFixture(t, rewards.DefaultWorkflowPolicy())
	seedCustomer(t, m, "cust-1", "ana")
	seedOption(t, m, "opt-1", "Free Rock Chip Repair", 100)
	creditCustomer(t, m, "cust-1", 200)
	seedTechnician(t, m, "tech-a", "Marco")

	r, err := w.Redeem(context.Background(), "cust-1", "opt-1")
	require.NoError(t, err)
	_, err = w.Fulfill(context.Background(), r.ID, "tech-a", "")
	require.NoError(t, err)

	_, err = w.Fulfill(context.Background(), r.ID, "tech-a", "again")
	require.ErrorIs(t, err, rewards.ErrInvalidTransition)

	var ite *rewards.InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, rewards.RedemptionFulfilled, ite.From)
	assert.Equal(t, rewards.RedemptionFulfilled, ite.To)
}

func TestFulfill_UnknownTechnician(t *testing.T) {
	w, m := newWorkflowFixture(t, rewards.DefaultWorkflowPolicy())
	seedCustomer(t, m, "cust-1", "ana")
	seedOption(t, m, "opt-1", "Free Rock Chip Repair", 100)
	creditCustomer(t, m, "cust-1", 200)

	r, err := w.Redeem(context.Background(), "cust-1", "opt-1")
	require.NoError(t, err)

	_, err = w.Fulfill(context.Background(), r.ID, "ghost", "")
	assert.ErrorIs(t, err, rewards.ErrTechnicianNotFound)

	// Failed fulfillment leaves the redemption untouched.
	got, err := m.GetRedemption(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, rewards.RedemptionPending, got.Status)
}

// =============================================================================
// REJECT TESTS
// =============================================================================

func TestReject_RefundsSpentPoints(t *testing.T) {
	// GIVEN: A redemption that debited 100 of 600 points
	// WHEN: Staff rejects it
	// THEN: Balance returns to 600 via a refund entry referencing the redemption

	w, m := newWorkflowFixture(t, rewards.DefaultWorkflowPolicy())
	seedCustomer(t, m, "cust-1", "ana")
	seedOption(t, m, "opt-1", "Free Rock Chip Repair", 100)
	creditCustomer(t, m, "cust-1", 600)

	r, err := w.Redeem(context.Background(), "cust-1", "opt-1")
	require.NoError(t, err)
	require.Equal(t, int64(500), balanceOf(t, m, "cust-1"))

	rejected, err := w.Reject(context.Background(), r.ID, "out of stock")
	require.NoError(t, err)
	assert.Equal(t, rewards.RedemptionRejected, rejected.Status)
	assert.Equal(t, "out of stock", rejected.Notes)
	assert.Equal(t, int64(600), balanceOf(t, m, "cust-1"))

	entries, err := m.Entries(context.Background(), "cust-1")
	require.NoError(t, err)
	var refund *rewards.Entry
	for i := range entries {
		if entries[i].Kind == rewards.EntryRefund {
			refund = &entries[i]
		}
	}
	require.NotNil(t, refund, "expected a refund entry")
	assert.Equal(t, string(r.ID), refund.ReferenceID)
	assert.Equal(t, int64(100), refund.Delta.Int64())
}

func TestReject_NoRefundWhenPolicyOff(t *testing.T) {
	policy := rewards.WorkflowPolicy{RefundOnRejection: false, AllowUnassignedFulfillment: true}
	w, m := newWorkflowFixture(t, policy)
	seedCustomer(t, m, "cust-1", "ana")
	seedOption(t, m, "opt-1", "Free Rock Chip Repair", 100)
	creditCustomer(t, m, "cust-1", 600)

	r, err := w.Redeem(context.Background(), "cust-1", "opt-1")
	require.NoError(t, err)

	_, err = w.Reject(context.Background(), r.ID, "policy test")
	require.NoError(t, err)
	assert.Equal(t, int64(500), balanceOf(t, m, "cust-1"))
}

func TestReject_TerminalStatesRejected(t *testing.T) {
	w, m := newWorkflowFixture(t, rewards.DefaultWorkflowPolicy())
	seedCustomer(t, m, "cust-1", "ana")
	seedOption(t, m, "opt-1", "Free Rock Chip Repair", 100)
	creditCustomer(t, m, "cust-1", 600)

	r, err := w.Redeem(context.Background(), "cust-1", "opt-1")
	require.NoError(t, err)

	_, err = w.Reject(context.Background(), r.ID, "first")
	require.NoError(t, err)

	// A second rejection would double-refund; the state machine blocks it.
	_, err = w.Reject(context.Background(), r.ID, "second")
	assert.ErrorIs(t, err, rewards.ErrInvalidTransition)
	assert.Equal(t, int64(600), balanceOf(t, m, "cust-1"))
}
