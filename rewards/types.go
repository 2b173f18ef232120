/*
Package rewards provides the referral and rewards core for the repair business.

PURPOSE:
  This package contains the domain types and services for the points economy:
  referral codes, referral awards, per-customer point balances, the reward
  catalog, and the redemption workflow with technician assignment.

KEY CONCEPTS IN THIS FILE (types.go):
  - Points: An integer quantity of points (decimal-backed, never fractional)
  - Entry: An immutable ledger record of a balance change
  - PointsAccount: Materialized balance row, derivable by replaying entries
  - Redemption: A request to exchange points for a reward option, tracked
    through a status lifecycle

DESIGN PRINCIPLES:
  1. Immutability: Ledger entries are never modified; corrections are new
     entries (e.g. a refund referencing the redemption it undoes)
  2. Precision: decimal.Decimal underneath, so arithmetic is exact
  3. Type Safety: Strong ID types prevent mixing customer/technician IDs
  4. Auditability: Every entry carries a kind, a reference, and a timestamp

USAGE:
  cost := rewards.NewPoints(500)
  entry := rewards.Entry{
      CustomerID: "cust-123",
      Delta:      cost.Neg(),
      Kind:       rewards.EntryRedemption,
  }

SEE ALSO:
  - ledger.go: Entry persistence and balance replay
  - redemption.go: Redemption state machine
  - codes.go: Referral code registry
*/
package rewards

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// POINTS - Integer point quantity
// =============================================================================

// Points is an integer amount of reward points. The zero value is zero points.
type Points struct {
	Value decimal.Decimal
}

func NewPoints(n int64) Points {
	return Points{Value: decimal.NewFromInt(n)}
}

func ZeroPoints() Points { return Points{Value: decimal.Zero} }

// MustParseDecimal parses s, falling back to zero on malformed input.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (p Points) Add(q Points) Points    { return Points{Value: p.Value.Add(q.Value)} }
func (p Points) Sub(q Points) Points    { return Points{Value: p.Value.Sub(q.Value)} }
func (p Points) Neg() Points            { return Points{Value: p.Value.Neg()} }
func (p Points) IsZero() bool           { return p.Value.IsZero() }
func (p Points) IsNegative() bool       { return p.Value.IsNegative() }
func (p Points) IsPositive() bool       { return p.Value.IsPositive() }
func (p Points) LessThan(q Points) bool { return p.Value.LessThan(q.Value) }
func (p Points) Equal(q Points) bool    { return p.Value.Equal(q.Value) }
func (p Points) Int64() int64           { return p.Value.IntPart() }
func (p Points) String() string         { return p.Value.String() }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CustomerID string
type TechnicianID string
type RedemptionID string
type EntryID string

// =============================================================================
// CUSTOMER / TECHNICIAN
// =============================================================================

// Customer is the owning identity for codes, referrals, and point balances.
// Names are normalized to lowercase on save; email is unique when present.
type Customer struct {
	ID        CustomerID
	Name      string
	Email     string
	Phone     string
	CreatedAt time.Time
}

// Technician fulfills redemptions. The roster itself is owned by staffing;
// this record is a reference, not the source of truth.
type Technician struct {
	ID        TechnicianID
	Name      string
	IsManager bool
	CreatedAt time.Time
}

// =============================================================================
// REFERRAL CODE & REFERRAL
// =============================================================================

// ReferralCode is an immutable token owned by exactly one customer.
// Alphabet is uppercase letters + digits, fixed length.
type ReferralCode struct {
	Code       string
	CustomerID CustomerID
	CreatedAt  time.Time
}

// Referral links a code to a newly referred customer. The (code, referred)
// pair is unique and a customer cannot refer itself.
type Referral struct {
	ID                 string
	Code               string
	ReferrerID         CustomerID
	ReferredCustomerID CustomerID
	ReferrerAward      Points
	WelcomeBonus       Points
	CreatedAt          time.Time
}

// =============================================================================
// POINTS ACCOUNT & LEDGER ENTRY
// =============================================================================

// PointsAccount is the materialized balance row for a customer. It is created
// lazily on first credit. Balance never goes negative; the check-and-debit in
// Redeem holds the account row for the duration of the transaction.
type PointsAccount struct {
	CustomerID CustomerID
	Balance    Points
	UpdatedAt  time.Time
}

// EntryKind classifies a ledger entry.
type EntryKind string

const (
	EntryReferrerAward EntryKind = "referrer_award" // Code owner credited for a referral
	EntryWelcomeBonus  EntryKind = "welcome_bonus"  // Referred customer's signup credit
	EntryRedemption    EntryKind = "redemption"     // Points spent on a reward option
	EntryRefund        EntryKind = "refund"         // Redemption rejected, points restored
	EntryAdjustment    EntryKind = "adjustment"     // Manual staff correction
)

// Entry is an immutable ledger record. Balance is always derivable by
// replaying a customer's entries in order.
type Entry struct {
	ID          EntryID
	CustomerID  CustomerID
	Delta       Points
	Kind        EntryKind
	ReferenceID string // referral ID or redemption ID this entry belongs to
	Reason      string
	CreatedAt   time.Time
}

// =============================================================================
// REWARD CATALOG
// =============================================================================

// DiscountKind describes how a reward type maps to a real-world discount.
type DiscountKind string

const (
	DiscountPercentage DiscountKind = "percentage"
	DiscountFixed      DiscountKind = "fixed"
	DiscountFree       DiscountKind = "free"
	DiscountNone       DiscountKind = "none"
)

// RewardCategory groups catalog entries for display.
type RewardCategory string

const (
	RewardRepairDiscount RewardCategory = "repair_discount"
	RewardFreeService    RewardCategory = "free_service"
	RewardMerchandise    RewardCategory = "merchandise"
	RewardGiftCard       RewardCategory = "gift_card"
)

// RewardType is static catalog data describing the discount effect.
// DiscountValue semantics depend on DiscountKind: percent for percentage,
// currency amount for fixed, unused for free/none.
type RewardType struct {
	ID            string
	Category      RewardCategory
	DiscountKind  DiscountKind
	DiscountValue decimal.Decimal
}

// RewardOption is a catalog entry purchasable with points. Options are
// soft-deactivated, never hard-deleted.
type RewardOption struct {
	ID             string
	Name           string
	Description    string
	PointsRequired Points
	Type           RewardType
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// =============================================================================
// REDEMPTION
// =============================================================================

type RedemptionStatus string

const (
	RedemptionPending   RedemptionStatus = "pending"
	RedemptionAssigned  RedemptionStatus = "assigned"
	RedemptionFulfilled RedemptionStatus = "fulfilled"
	RedemptionRejected  RedemptionStatus = "rejected"
)

// IsTerminal reports whether no further transitions are allowed.
func (s RedemptionStatus) IsTerminal() bool {
	return s == RedemptionFulfilled || s == RedemptionRejected
}

// Redemption tracks a reward request from creation through fulfillment.
//
// PointsSpent snapshots the option's cost at redemption time, so later
// catalog edits never change what a historical redemption displays.
type Redemption struct {
	ID           RedemptionID
	CustomerID   CustomerID
	OptionID     string
	OptionName   string
	PointsSpent  Points
	Status       RedemptionStatus
	TechnicianID *TechnicianID
	ProcessedBy  *TechnicianID
	Notes        string
	CreatedAt    time.Time
	ProcessedAt  *time.Time
	FulfilledAt  *time.Time
}

// =============================================================================
// UPSERT RESULT - Tagged get-or-create outcome
// =============================================================================

// UpsertOutcome tags whether a get-or-create returned a fresh or existing row.
type UpsertOutcome int

const (
	OutcomeExisting UpsertOutcome = iota
	OutcomeCreated
)

func (o UpsertOutcome) String() string {
	if o == OutcomeCreated {
		return "created"
	}
	return "existing"
}
