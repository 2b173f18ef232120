/*
referral.go - Referral processing and point awards

PURPOSE:
  Records a successful referral and credits both sides: a fixed award to the
  code's owner and a welcome bonus to the referred customer.

ATOMICITY:
  The referral row and both credits are a single transaction. A referral
  recorded without its credits (or vice versa) is an invariant violation, so
  any failure inside WithTx rolls everything back.

REJECTIONS:
  ErrCodeNotFound      - code does not exist (exact, case-sensitive match)
  ErrSelfReferral      - code owner equals the referred customer
  ErrDuplicateReferral - (code, referred customer) already recorded; the
                         unique constraint makes the second call a no-op
                         with no further credits

SEE ALSO:
  - codes.go: Code issuance and validation
  - ledger.go: Entry semantics
*/
package rewards

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultReferrerAward = 500
	DefaultWelcomeBonus  = 100
)

// =============================================================================
// REFERRAL SERVICE
// =============================================================================

// ReferralService records referrals and pays out awards.
type ReferralService struct {
	store         TxStore
	referrerAward Points
	welcomeBonus  Points
	now           func() time.Time
}

func NewReferralService(store TxStore, referrerAward, welcomeBonus int64) *ReferralService {
	if referrerAward <= 0 {
		referrerAward = DefaultReferrerAward
	}
	if welcomeBonus <= 0 {
		welcomeBonus = DefaultWelcomeBonus
	}
	return &ReferralService{
		store:         store,
		referrerAward: NewPoints(referrerAward),
		welcomeBonus:  NewPoints(welcomeBonus),
		now:           time.Now,
	}
}

// Process records a referral of referredID through the given code and credits
// both accounts. All three writes commit together or not at all.
func (rs *ReferralService) Process(ctx context.Context, code string, referredID CustomerID) (*Referral, error) {
	if code == "" {
		return nil, &ValidationError{Field: "code", Message: "must not be empty"}
	}
	if referredID == "" {
		return nil, &ValidationError{Field: "referred_customer_id", Message: "must not be empty"}
	}

	var referral Referral
	err := rs.store.WithTx(ctx, func(s Store) error {
		rc, err := s.CodeByValue(ctx, code)
		if err != nil {
			return err
		}
		if rc.CustomerID == referredID {
			return ErrSelfReferral
		}
		if _, err := s.GetCustomer(ctx, referredID); err != nil {
			return err
		}

		now := rs.now().UTC()
		referral = Referral{
			ID:                 uuid.NewString(),
			Code:               rc.Code,
			ReferrerID:         rc.CustomerID,
			ReferredCustomerID: referredID,
			ReferrerAward:      rs.referrerAward,
			WelcomeBonus:       rs.welcomeBonus,
			CreatedAt:          now,
		}

		// The unique (code, referred) constraint turns a replay into
		// ErrDuplicateReferral before any credit is written.
		if err := s.InsertReferral(ctx, referral); err != nil {
			return err
		}

		award := Entry{
			ID:          EntryID(uuid.NewString()),
			CustomerID:  rc.CustomerID,
			Delta:       rs.referrerAward,
			Kind:        EntryReferrerAward,
			ReferenceID: referral.ID,
			Reason:      "referral of customer " + string(referredID),
			CreatedAt:   now,
		}
		if err := s.Credit(ctx, award); err != nil {
			return err
		}

		bonus := Entry{
			ID:          EntryID(uuid.NewString()),
			CustomerID:  referredID,
			Delta:       rs.welcomeBonus,
			Kind:        EntryWelcomeBonus,
			ReferenceID: referral.ID,
			Reason:      "welcome bonus for joining via " + rc.Code,
			CreatedAt:   now,
		}
		return s.Credit(ctx, bonus)
	})
	if err != nil {
		return nil, err
	}
	return &referral, nil
}
