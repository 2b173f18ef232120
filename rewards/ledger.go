/*
ledger.go - Points accounting over the append-only entry log

PURPOSE:
  The ledger is the source of truth for every point the business grants or
  takes back. Referral awards, welcome bonuses, redemption debits, refunds,
  and manual adjustments are all entries; the account balance is the replay
  of those entries.

INVARIANTS:
  1. APPEND-ONLY: entries are inserted, never updated or deleted
  2. NON-NEGATIVE: no sequence of operations may take a balance below zero
  3. DERIVABLE: PointsAccount.Balance always equals ReplayBalance(entries)

CORRECTIONS:
  Mistakes are fixed with new entries. A rejected redemption gets a refund
  entry referencing the redemption; the debit stays in the history.

SEE ALSO:
  - store.go: AccountStore contract (Credit/Debit atomicity)
  - redemption.go: Debits and refunds
  - referral.go: Credits
*/
package rewards

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// LEDGER - Balance queries and manual adjustments
// =============================================================================

// Ledger exposes balance and history reads plus staff adjustments.
// Construct with NewLedger; mutation paths for referrals and redemptions
// live in their own services.
type Ledger struct {
	store AccountStore
	now   func() time.Time
}

func NewLedger(store AccountStore) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// Balance returns the customer's current balance. A customer who was never
// credited has a zero balance, not an error.
func (l *Ledger) Balance(ctx context.Context, id CustomerID) (Points, error) {
	acct, err := l.store.Account(ctx, id)
	if err != nil {
		return ZeroPoints(), err
	}
	if acct == nil {
		return ZeroPoints(), nil
	}
	return acct.Balance, nil
}

// History returns the customer's entries, oldest first.
func (l *Ledger) History(ctx context.Context, id CustomerID) ([]Entry, error) {
	return l.store.Entries(ctx, id)
}

// Adjust applies a manual staff correction. Positive deltas credit, negative
// deltas debit under the usual non-negative check.
func (l *Ledger) Adjust(ctx context.Context, id CustomerID, delta Points, reason string) (Entry, error) {
	if delta.IsZero() {
		return Entry{}, &ValidationError{Field: "delta", Message: "must be non-zero"}
	}
	entry := Entry{
		ID:         EntryID(uuid.NewString()),
		CustomerID: id,
		Delta:      delta,
		Kind:       EntryAdjustment,
		Reason:     reason,
		CreatedAt:  l.now().UTC(),
	}
	var err error
	if delta.IsNegative() {
		err = l.store.Debit(ctx, entry)
	} else {
		err = l.store.Credit(ctx, entry)
	}
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// ReplayBalance folds a customer's entries into a balance. Used by tests and
// consistency checks to verify the materialized account row.
func ReplayBalance(entries []Entry) Points {
	balance := ZeroPoints()
	for _, e := range entries {
		balance = balance.Add(e.Delta)
	}
	return balance
}
