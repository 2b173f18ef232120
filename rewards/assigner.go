/*
assigner.go - Workload-balancing technician assignment

PURPOSE:
  Picks the technician with the fewest active repair jobs for a pending
  redemption. "Active" means not terminal in the repair-tracking domain
  (completed or denied jobs don't count).

DETERMINISM:
  Ties go to the first technician in ID-ascending order. The store contract
  guarantees that enumeration order, so the same workload always produces
  the same assignment.

BEST EFFORT:
  Assignment failure never fails the redemption: with no technicians (or a
  workload query error) the redemption simply stays PENDING and unassigned.

SEE ALSO:
  - redemption.go: Calls Assign after a successful debit
  - store.go: JobCounter contract
*/
package rewards

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// TECHNICIAN ASSIGNER
// =============================================================================

// Assigner selects the least-loaded technician for pending redemptions.
type Assigner struct {
	store    Store
	jobs     JobCounter
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time
}

func NewAssigner(store Store, jobs JobCounter, notifier Notifier, log *zap.Logger) *Assigner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Assigner{
		store:    store,
		jobs:     jobs,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// Assign picks the technician with the fewest active jobs and moves the
// redemption to ASSIGNED. Returns nil with no error when no technicians
// exist; the caller leaves the redemption pending.
func (a *Assigner) Assign(ctx context.Context, r *Redemption) (*Technician, error) {
	if r.Status != RedemptionPending {
		return nil, &InvalidTransitionError{
			RedemptionID: r.ID,
			From:         r.Status,
			To:           RedemptionAssigned,
		}
	}

	techs, err := a.store.ListTechnicians(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing technicians: %w", err)
	}
	if len(techs) == 0 {
		return nil, nil
	}

	// First technician with the minimum count wins; the list is
	// ID-ascending so the choice is reproducible.
	var chosen *Technician
	minJobs := -1
	for i := range techs {
		count, err := a.jobs.ActiveJobs(ctx, techs[i].ID)
		if err != nil {
			return nil, fmt.Errorf("counting jobs for %s: %w", techs[i].ID, err)
		}
		if minJobs < 0 || count < minJobs {
			minJobs = count
			chosen = &techs[i]
		}
	}

	r.Status = RedemptionAssigned
	r.TechnicianID = &chosen.ID
	if err := a.store.UpdateRedemption(ctx, *r); err != nil {
		return nil, err
	}

	if a.notifier != nil {
		if err := a.notifier.Notify(ctx, Notification{
			Recipient:    string(chosen.ID),
			Message:      fmt.Sprintf("redemption %s assigned to you: %s", r.ID, r.OptionName),
			RedemptionID: r.ID,
		}); err != nil {
			a.log.Warn("technician notification failed",
				zap.String("technician_id", string(chosen.ID)),
				zap.String("redemption_id", string(r.ID)),
				zap.Error(err),
			)
		}
	}

	return chosen, nil
}
