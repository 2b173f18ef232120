/*
store.go - Persistence interfaces for the rewards core

PURPOSE:
  Defines the contract between the domain services and the database.
  Implementations exist for SQLite (store/sqlite), PostgreSQL
  (store/postgres), and memory (rewards/store) for tests.

LEDGER CONTRACT:
  The points ledger is append-only: entries are inserted, never updated or
  deleted. Corrections are new entries (refunds, adjustments). The
  PointsAccount row carries a materialized balance so the check-and-debit in
  Redeem can lock a single row; the balance must always equal the replay of
  the customer's entries.

UNIQUE CONSTRAINTS:
  Implementations enforce, at the storage layer:
  - referral_codes.code unique              -> ErrCodeTaken on conflict
  - referrals (code, referred_customer_id)  -> ErrDuplicateReferral
  - customers.email unique when non-empty

ATOMICITY:
  WithTx runs a function against a transactional view of the store. All
  writes inside either commit together or roll back together. The three-way
  referral write and the balance check-and-debit both run inside WithTx.

SEE ALSO:
  - rewards/store/memory.go: In-memory implementation
  - store/sqlite/sqlite.go:  SQLite implementation
  - store/postgres/postgres.go: PostgreSQL implementation
*/
package rewards

import "context"

// =============================================================================
// STORE GROUPS
// =============================================================================

// CustomerStore persists customers. Save normalizes the name to lowercase.
type CustomerStore interface {
	SaveCustomer(ctx context.Context, c Customer) error
	GetCustomer(ctx context.Context, id CustomerID) (*Customer, error)
	ListCustomers(ctx context.Context) ([]Customer, error)
}

// CodeStore persists referral codes. Codes are immutable once inserted.
type CodeStore interface {
	// InsertCode fails with ErrCodeTaken if the code value is already issued.
	InsertCode(ctx context.Context, code ReferralCode) error

	// CodeByValue is an exact, case-sensitive lookup.
	// Returns ErrCodeNotFound on a miss.
	CodeByValue(ctx context.Context, code string) (*ReferralCode, error)

	// CodeByCustomer returns the customer's code, or ErrCodeNotFound.
	CodeByCustomer(ctx context.Context, id CustomerID) (*ReferralCode, error)
}

// ReferralStore persists referral events.
type ReferralStore interface {
	// InsertReferral fails with ErrDuplicateReferral if the
	// (code, referred customer) pair is already recorded.
	InsertReferral(ctx context.Context, r Referral) error

	ListReferralsByCode(ctx context.Context, code string) ([]Referral, error)
}

// AccountStore persists the points ledger and materialized balances.
type AccountStore interface {
	// Account returns the customer's account, or nil if never credited.
	Account(ctx context.Context, id CustomerID) (*PointsAccount, error)

	// Credit appends a positive entry and raises the balance, creating the
	// account lazily on first credit.
	Credit(ctx context.Context, entry Entry) error

	// Debit appends a negative entry and lowers the balance. Fails with
	// ErrInsufficientPoints if the balance would go negative; the check and
	// the write are a single atomic step against the account row.
	Debit(ctx context.Context, entry Entry) error

	// Entries returns the customer's ledger, oldest first.
	Entries(ctx context.Context, id CustomerID) ([]Entry, error)
}

// CatalogStore persists reward options.
type CatalogStore interface {
	SaveOption(ctx context.Context, o RewardOption) error
	GetOption(ctx context.Context, id string) (*RewardOption, error)

	// ListOptions returns active options when activeOnly is set,
	// otherwise the full catalog.
	ListOptions(ctx context.Context, activeOnly bool) ([]RewardOption, error)
}

// RedemptionStore persists redemptions.
type RedemptionStore interface {
	InsertRedemption(ctx context.Context, r Redemption) error
	GetRedemption(ctx context.Context, id RedemptionID) (*Redemption, error)
	UpdateRedemption(ctx context.Context, r Redemption) error
	ListRedemptionsByStatus(ctx context.Context, status RedemptionStatus) ([]Redemption, error)
	ListRedemptionsByCustomer(ctx context.Context, id CustomerID) ([]Redemption, error)
}

// TechnicianStore persists the technician roster.
type TechnicianStore interface {
	SaveTechnician(ctx context.Context, t Technician) error
	GetTechnician(ctx context.Context, id TechnicianID) (*Technician, error)

	// ListTechnicians returns the roster ordered by ID ascending. The
	// assigner depends on this order for deterministic tie-breaking.
	ListTechnicians(ctx context.Context) ([]Technician, error)
}

// =============================================================================
// STORE - Full persistence surface
// =============================================================================

// Store is the full persistence surface the domain services need.
type Store interface {
	CustomerStore
	CodeStore
	ReferralStore
	AccountStore
	CatalogStore
	RedemptionStore
	TechnicianStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn against a transactional view of the store.
	// If fn returns an error the transaction is rolled back; otherwise
	// it is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// EXTERNAL COLLABORATORS
// =============================================================================

// JobCounter is the repair-tracking subsystem's workload query. Active jobs
// are jobs whose status is not terminal (completed or denied).
type JobCounter interface {
	ActiveJobs(ctx context.Context, id TechnicianID) (int, error)
}

// RepairService applies a fulfilled reward's discount to a repair job.
// Calls are best-effort: a failure is logged, never propagated.
type RepairService interface {
	ApplyDiscount(ctx context.Context, customerID CustomerID, redemptionID RedemptionID, t RewardType) error
}
