/*
redemption.go - Redemption workflow state machine

PURPOSE:
  Governs a redemption from creation through fulfillment:

      PENDING ──▶ ASSIGNED ──▶ FULFILLED (terminal)
         │            │
         └──────┬─────┘
                ▼
            REJECTED (terminal)

  Fulfilling directly from PENDING is allowed when the unassigned-fulfillment
  policy is on (a shop with one technician never assigns).

ATOMICITY:
  Redeem runs the balance check, the debit, and the redemption insert in one
  transaction against the account row, so two concurrent redemptions cannot
  both pass the check against a stale balance. Technician assignment happens
  after commit and is best-effort: if it fails, the redemption stays PENDING
  unassigned rather than rolling back the debit.

SIDE EFFECTS:
  Fulfillment notifies the customer and forwards the discount to the repair
  subsystem; rejection refunds the points when the refund policy is on.
  All side-channel failures are logged, never propagated.

SEE ALSO:
  - assigner.go: Technician selection
  - ledger.go: Entry semantics
  - errors.go: Rejection reasons
*/
package rewards

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// WORKFLOW POLICY
// =============================================================================

// WorkflowPolicy carries the toggles the business can flip without code
// changes. Defaults: refund on rejection, unassigned fulfillment allowed.
type WorkflowPolicy struct {
	RefundOnRejection          bool
	AllowUnassignedFulfillment bool
}

func DefaultWorkflowPolicy() WorkflowPolicy {
	return WorkflowPolicy{
		RefundOnRejection:          true,
		AllowUnassignedFulfillment: true,
	}
}

// =============================================================================
// REDEMPTION WORKFLOW
// =============================================================================

// Workflow is the redemption state machine. Construct with NewWorkflow;
// repair may be nil when no repair-tracking integration is wired.
type Workflow struct {
	store    TxStore
	assigner *Assigner
	notifier Notifier
	repair   RepairService
	policy   WorkflowPolicy
	log      *zap.Logger
	now      func() time.Time
}

func NewWorkflow(store TxStore, assigner *Assigner, notifier Notifier, repair RepairService, policy WorkflowPolicy, log *zap.Logger) *Workflow {
	if log == nil {
		log = zap.NewNop()
	}
	return &Workflow{
		store:    store,
		assigner: assigner,
		notifier: notifier,
		repair:   repair,
		policy:   policy,
		log:      log,
		now:      time.Now,
	}
}

// Redeem exchanges points for a reward option. The debit and the PENDING
// redemption commit atomically; assignment follows best-effort.
func (w *Workflow) Redeem(ctx context.Context, customerID CustomerID, optionID string) (*Redemption, error) {
	if optionID == "" {
		return nil, &ValidationError{Field: "option_id", Message: "must not be empty"}
	}

	var redemption Redemption
	err := w.store.WithTx(ctx, func(s Store) error {
		option, err := s.GetOption(ctx, optionID)
		if err != nil {
			return err
		}
		if !option.Active {
			return ErrOptionNotFound
		}

		acct, err := s.Account(ctx, customerID)
		if err != nil {
			return err
		}
		available := ZeroPoints()
		if acct != nil {
			available = acct.Balance
		}
		if available.LessThan(option.PointsRequired) {
			return &InsufficientPointsError{
				CustomerID: customerID,
				Required:   option.PointsRequired,
				Available:  available,
			}
		}

		now := w.now().UTC()
		redemption = Redemption{
			ID:          RedemptionID(uuid.NewString()),
			CustomerID:  customerID,
			OptionID:    option.ID,
			OptionName:  option.Name,
			PointsSpent: option.PointsRequired,
			Status:      RedemptionPending,
			CreatedAt:   now,
		}

		debit := Entry{
			ID:          EntryID(uuid.NewString()),
			CustomerID:  customerID,
			Delta:       option.PointsRequired.Neg(),
			Kind:        EntryRedemption,
			ReferenceID: string(redemption.ID),
			Reason:      "redeemed " + option.Name,
			CreatedAt:   now,
		}
		if err := s.Debit(ctx, debit); err != nil {
			return err
		}

		return s.InsertRedemption(ctx, redemption)
	})
	if err != nil {
		return nil, err
	}

	// Best-effort: a failed assignment leaves the redemption PENDING.
	if w.assigner != nil {
		if _, err := w.assigner.Assign(ctx, &redemption); err != nil {
			w.log.Warn("technician assignment failed, redemption stays pending",
				zap.String("redemption_id", string(redemption.ID)),
				zap.Error(err),
			)
		}
	}

	return &redemption, nil
}

// Fulfill marks a redemption FULFILLED and records who processed it.
// Valid from ASSIGNED, and from PENDING under the unassigned-fulfillment
// policy.
func (w *Workflow) Fulfill(ctx context.Context, id RedemptionID, technicianID TechnicianID, notes string) (*Redemption, error) {
	var fulfilled Redemption
	err := w.store.WithTx(ctx, func(s Store) error {
		r, err := s.GetRedemption(ctx, id)
		if err != nil {
			return err
		}
		if !w.canFulfill(r.Status) {
			return &InvalidTransitionError{RedemptionID: id, From: r.Status, To: RedemptionFulfilled}
		}
		if _, err := s.GetTechnician(ctx, technicianID); err != nil {
			return err
		}

		now := w.now().UTC()
		r.Status = RedemptionFulfilled
		r.ProcessedBy = &technicianID
		r.ProcessedAt = &now
		r.FulfilledAt = &now
		if notes != "" {
			r.Notes = notes
		}
		fulfilled = *r
		return s.UpdateRedemption(ctx, *r)
	})
	if err != nil {
		return nil, err
	}

	w.notifyCustomer(ctx, fulfilled, fmt.Sprintf("your reward %q is ready", fulfilled.OptionName))
	w.applyDiscount(ctx, fulfilled)

	return &fulfilled, nil
}

// Reject marks a redemption REJECTED from PENDING or ASSIGNED. Under the
// refund policy the spent points come back as a refund entry referencing
// the redemption.
func (w *Workflow) Reject(ctx context.Context, id RedemptionID, reason string) (*Redemption, error) {
	var rejected Redemption
	err := w.store.WithTx(ctx, func(s Store) error {
		r, err := s.GetRedemption(ctx, id)
		if err != nil {
			return err
		}
		if r.Status.IsTerminal() {
			return &InvalidTransitionError{RedemptionID: id, From: r.Status, To: RedemptionRejected}
		}

		now := w.now().UTC()
		r.Status = RedemptionRejected
		r.ProcessedAt = &now
		if reason != "" {
			r.Notes = reason
		}
		rejected = *r
		if err := s.UpdateRedemption(ctx, *r); err != nil {
			return err
		}

		if !w.policy.RefundOnRejection {
			return nil
		}
		refund := Entry{
			ID:          EntryID(uuid.NewString()),
			CustomerID:  r.CustomerID,
			Delta:       r.PointsSpent,
			Kind:        EntryRefund,
			ReferenceID: string(r.ID),
			Reason:      "redemption rejected: " + reason,
			CreatedAt:   now,
		}
		return s.Credit(ctx, refund)
	})
	if err != nil {
		return nil, err
	}

	w.notifyCustomer(ctx, rejected, fmt.Sprintf("your redemption of %q was declined", rejected.OptionName))

	return &rejected, nil
}

func (w *Workflow) canFulfill(from RedemptionStatus) bool {
	if from == RedemptionAssigned {
		return true
	}
	return from == RedemptionPending && w.policy.AllowUnassignedFulfillment
}

func (w *Workflow) notifyCustomer(ctx context.Context, r Redemption, msg string) {
	if w.notifier == nil {
		return
	}
	if err := w.notifier.Notify(ctx, Notification{
		Recipient:    string(r.CustomerID),
		Message:      msg,
		RedemptionID: r.ID,
	}); err != nil {
		w.log.Warn("customer notification failed",
			zap.String("customer_id", string(r.CustomerID)),
			zap.String("redemption_id", string(r.ID)),
			zap.Error(err),
		)
	}
}

func (w *Workflow) applyDiscount(ctx context.Context, r Redemption) {
	if w.repair == nil {
		return
	}
	option, err := w.store.GetOption(ctx, r.OptionID)
	if err != nil {
		w.log.Warn("discount lookup failed",
			zap.String("redemption_id", string(r.ID)),
			zap.Error(err),
		)
		return
	}
	if err := w.repair.ApplyDiscount(ctx, r.CustomerID, r.ID, option.Type); err != nil {
		w.log.Warn("repair subsystem discount call failed",
			zap.String("customer_id", string(r.CustomerID)),
			zap.String("redemption_id", string(r.ID)),
			zap.Error(err),
		)
	}
}
