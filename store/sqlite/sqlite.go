/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements rewards.TxStore and rewards.JobCounter on SQLite. In production
  the same patterns apply to PostgreSQL (see store/postgres) - only minor SQL
  dialect differences.

LEDGER ENFORCEMENT:
  - points_entries is append-only: no UPDATE or DELETE statements exist
  - points_accounts.balance carries a CHECK(balance >= 0); the Debit guard
    re-checks in SQL so a racing write cannot overdraw
  - referral_codes.code, referral_codes.customer_id, and
    (referrals.code, referrals.referred_customer_id) are unique; violations
    map to the domain's ErrCodeTaken, ErrCustomerHasCode, and
    ErrDuplicateReferral

KEY TABLES:
  customers        Customer rows (name lowercased by the domain layer)
  referral_codes   One immutable code per customer
  referrals        Immutable referral events
  points_accounts  Materialized balances (locked row for check-and-debit)
  points_entries   Append-only ledger
  reward_options   Catalog (soft-deactivated, never deleted)
  redemptions      Workflow state
  technicians      Roster (ID-ascending enumeration)
  repair_jobs      Mirror of repair-tracking workload for ActiveJobs

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/rewards.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - rewards/store.go: Interface definitions
  - rewards/store/memory.go: In-memory implementation for testing
  - store/postgres/postgres.go: PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/glasslink/rewards-engine/rewards"
)

// Store implements rewards.TxStore and rewards.JobCounter using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ rewards.TxStore    = (*Store)(nil)
	_ rewards.JobCounter = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		created_at TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_customers_email
		ON customers(email) WHERE email IS NOT NULL AND email != '';

	CREATE TABLE IF NOT EXISTS referral_codes (
		code TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS referrals (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		referrer_id TEXT NOT NULL,
		referred_customer_id TEXT NOT NULL,
		referrer_award INTEGER NOT NULL,
		welcome_bonus INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE(code, referred_customer_id)
	);
	CREATE INDEX IF NOT EXISTS idx_referrals_code ON referrals(code);

	CREATE TABLE IF NOT EXISTS points_accounts (
		customer_id TEXT PRIMARY KEY,
		balance INTEGER NOT NULL CHECK(balance >= 0),
		updated_at TEXT NOT NULL
	);

	-- Append-only ledger
	CREATE TABLE IF NOT EXISTS points_entries (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		delta INTEGER NOT NULL,
		kind TEXT NOT NULL,
		reference_id TEXT,
		reason TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_entries_customer
		ON points_entries(customer_id, created_at);

	CREATE TABLE IF NOT EXISTS reward_options (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		points_required INTEGER NOT NULL CHECK(points_required > 0),
		type_id TEXT,
		category TEXT,
		discount_kind TEXT,
		discount_value TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS redemptions (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		option_id TEXT NOT NULL,
		option_name TEXT NOT NULL,
		points_spent INTEGER NOT NULL,
		status TEXT NOT NULL,
		technician_id TEXT,
		processed_by TEXT,
		notes TEXT,
		created_at TEXT NOT NULL,
		processed_at TEXT,
		fulfilled_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_redemptions_status ON redemptions(status);
	CREATE INDEX IF NOT EXISTS idx_redemptions_customer ON redemptions(customer_id);

	CREATE TABLE IF NOT EXISTS technicians (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		is_manager INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- Workload mirror of the repair-tracking subsystem
	CREATE TABLE IF NOT EXISTS repair_jobs (
		id TEXT PRIMARY KEY,
		technician_id TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_repair_jobs_technician
		ON repair_jobs(technician_id, status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx abstracts *sql.DB and *sql.Tx so the same statements serve both.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (s *Store) SaveCustomer(ctx context.Context, c rewards.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveCustomer(ctx, s.db, c)
}

func saveCustomer(ctx context.Context, q dbtx, c rewards.Customer) error {
	query := `
		INSERT INTO customers (id, name, email, phone, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			phone = excluded.phone
	`
	_, err := q.ExecContext(ctx, query,
		string(c.ID), c.Name, c.Email, c.Phone, c.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

func (s *Store) GetCustomer(ctx context.Context, id rewards.CustomerID) (*rewards.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getCustomer(ctx, s.db, id)
}

func getCustomer(ctx context.Context, q dbtx, id rewards.CustomerID) (*rewards.Customer, error) {
	var c rewards.Customer
	var createdAt string
	err := q.QueryRowContext(ctx,
		"SELECT id, name, email, phone, created_at FROM customers WHERE id = ?",
		string(id),
	).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &createdAt)
	if err == sql.ErrNoRows {
		return nil, rewards.ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &c, nil
}

func (s *Store) ListCustomers(ctx context.Context) ([]rewards.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, phone, created_at FROM customers ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []rewards.Customer
	for rows.Next() {
		var c rewards.Customer
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// =============================================================================
// REFERRAL CODES
// =============================================================================

func (s *Store) InsertCode(ctx context.Context, code rewards.ReferralCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertCode(ctx, s.db, code)
}

func insertCode(ctx context.Context, q dbtx, code rewards.ReferralCode) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO referral_codes (code, customer_id, created_at) VALUES (?, ?, ?)",
		code.Code, string(code.CustomerID), code.CreatedAt.UTC().Format(time.RFC3339))
	// code is the primary key; customer_id is the table's only UNIQUE
	// column. The two conflicts resolve differently in the registry.
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		switch serr.ExtendedCode {
		case sqlite3.ErrConstraintPrimaryKey:
			return rewards.ErrCodeTaken
		case sqlite3.ErrConstraintUnique:
			return rewards.ErrCustomerHasCode
		}
	}
	return err
}

func (s *Store) CodeByValue(ctx context.Context, value string) (*rewards.ReferralCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return codeByValue(ctx, s.db, value)
}

func codeByValue(ctx context.Context, q dbtx, value string) (*rewards.ReferralCode, error) {
	return scanCode(q.QueryRowContext(ctx,
		"SELECT code, customer_id, created_at FROM referral_codes WHERE code = ?", value))
}

func (s *Store) CodeByCustomer(ctx context.Context, id rewards.CustomerID) (*rewards.ReferralCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scanCode(s.db.QueryRowContext(ctx,
		"SELECT code, customer_id, created_at FROM referral_codes WHERE customer_id = ?", string(id)))
}

func scanCode(row *sql.Row) (*rewards.ReferralCode, error) {
	var c rewards.ReferralCode
	var createdAt string
	err := row.Scan(&c.Code, &c.CustomerID, &createdAt)
	if err == sql.ErrNoRows {
		return nil, rewards.ErrCodeNotFound
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &c, nil
}

// =============================================================================
// REFERRALS
// =============================================================================

func (s *Store) InsertReferral(ctx context.Context, r rewards.Referral) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertReferral(ctx, s.db, r)
}

func insertReferral(ctx context.Context, q dbtx, r rewards.Referral) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO referrals
		(id, code, referrer_id, referred_customer_id, referrer_award, welcome_bonus, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Code, string(r.ReferrerID), string(r.ReferredCustomerID),
		r.ReferrerAward.Int64(), r.WelcomeBonus.Int64(),
		r.CreatedAt.UTC().Format(time.RFC3339))
	if isUniqueViolation(err) {
		return rewards.ErrDuplicateReferral
	}
	return err
}

func (s *Store) ListReferralsByCode(ctx context.Context, code string) ([]rewards.Referral, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, code, referrer_id, referred_customer_id, referrer_award, welcome_bonus, created_at
		FROM referrals WHERE code = ? ORDER BY created_at`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var referrals []rewards.Referral
	for rows.Next() {
		var r rewards.Referral
		var award, bonus int64
		var createdAt string
		if err := rows.Scan(&r.ID, &r.Code, &r.ReferrerID, &r.ReferredCustomerID,
			&award, &bonus, &createdAt); err != nil {
			return nil, err
		}
		r.ReferrerAward = rewards.NewPoints(award)
		r.WelcomeBonus = rewards.NewPoints(bonus)
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		referrals = append(referrals, r)
	}
	return referrals, rows.Err()
}

// =============================================================================
// ACCOUNTS & LEDGER
// =============================================================================

func (s *Store) Account(ctx context.Context, id rewards.CustomerID) (*rewards.PointsAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return account(ctx, s.db, id)
}

func account(ctx context.Context, q dbtx, id rewards.CustomerID) (*rewards.PointsAccount, error) {
	var balance int64
	var updatedAt string
	err := q.QueryRowContext(ctx,
		"SELECT balance, updated_at FROM points_accounts WHERE customer_id = ?",
		string(id),
	).Scan(&balance, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	acct := rewards.PointsAccount{CustomerID: id, Balance: rewards.NewPoints(balance)}
	acct.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &acct, nil
}

func (s *Store) Credit(ctx context.Context, entry rewards.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return credit(ctx, s.db, entry)
}

func credit(ctx context.Context, q dbtx, entry rewards.Entry) error {
	at := entry.CreatedAt.UTC().Format(time.RFC3339)
	_, err := q.ExecContext(ctx, `
		INSERT INTO points_accounts (customer_id, balance, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(customer_id) DO UPDATE SET
			balance = balance + excluded.balance,
			updated_at = excluded.updated_at`,
		string(entry.CustomerID), entry.Delta.Int64(), at)
	if err != nil {
		return err
	}
	return insertEntry(ctx, q, entry)
}

func debit(ctx context.Context, q dbtx, entry rewards.Entry) error {
	// Guarded update: the balance check and the subtraction are one
	// statement, so a racing debit cannot slip past a stale read.
	amount := entry.Delta.Neg().Int64()
	at := entry.CreatedAt.UTC().Format(time.RFC3339)
	res, err := q.ExecContext(ctx, `
		UPDATE points_accounts
		SET balance = balance - ?, updated_at = ?
		WHERE customer_id = ? AND balance >= ?`,
		amount, at, string(entry.CustomerID), amount)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		acct, err := account(ctx, q, entry.CustomerID)
		if err != nil {
			return err
		}
		available := rewards.ZeroPoints()
		if acct != nil {
			available = acct.Balance
		}
		return &rewards.InsufficientPointsError{
			CustomerID: entry.CustomerID,
			Required:   rewards.NewPoints(amount),
			Available:  available,
		}
	}
	return insertEntry(ctx, q, entry)
}

func (s *Store) Debit(ctx context.Context, entry rewards.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return debit(ctx, s.db, entry)
}

func insertEntry(ctx context.Context, q dbtx, entry rewards.Entry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO points_entries (id, customer_id, delta, kind, reference_id, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(entry.ID), string(entry.CustomerID), entry.Delta.Int64(),
		string(entry.Kind), entry.ReferenceID, entry.Reason,
		entry.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

func (s *Store) Entries(ctx context.Context, id rewards.CustomerID) ([]rewards.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, delta, kind, reference_id, reason, created_at
		FROM points_entries WHERE customer_id = ? ORDER BY created_at, id`,
		string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []rewards.Entry
	for rows.Next() {
		var e rewards.Entry
		var delta int64
		var refID, reason sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &e.CustomerID, &delta, &e.Kind, &refID, &reason, &createdAt); err != nil {
			return nil, err
		}
		e.Delta = rewards.NewPoints(delta)
		e.ReferenceID = refID.String
		e.Reason = reason.String
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// CATALOG
// =============================================================================

func (s *Store) SaveOption(ctx context.Context, o rewards.RewardOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveOption(ctx, s.db, o)
}

func saveOption(ctx context.Context, q dbtx, o rewards.RewardOption) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO reward_options
		(id, name, description, points_required, type_id, category, discount_kind, discount_value, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			points_required = excluded.points_required,
			type_id = excluded.type_id,
			category = excluded.category,
			discount_kind = excluded.discount_kind,
			discount_value = excluded.discount_value,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		o.ID, o.Name, o.Description, o.PointsRequired.Int64(),
		o.Type.ID, string(o.Type.Category), string(o.Type.DiscountKind), o.Type.DiscountValue.String(),
		boolToInt(o.Active),
		o.CreatedAt.UTC().Format(time.RFC3339), o.UpdatedAt.UTC().Format(time.RFC3339))
	return err
}

func (s *Store) GetOption(ctx context.Context, id string) (*rewards.RewardOption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getOption(ctx, s.db, id)
}

func getOption(ctx context.Context, q dbtx, id string) (*rewards.RewardOption, error) {
	row := q.QueryRowContext(ctx, optionColumns+" FROM reward_options WHERE id = ?", id)
	o, err := scanOptionRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, rewards.ErrOptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

const optionColumns = `SELECT id, name, description, points_required, type_id, category, discount_kind, discount_value, active, created_at, updated_at`

func scanOptionRow(scan func(...any) error) (*rewards.RewardOption, error) {
	var o rewards.RewardOption
	var points int64
	var active int
	var discountValue, createdAt, updatedAt string
	err := scan(&o.ID, &o.Name, &o.Description, &points,
		&o.Type.ID, &o.Type.Category, &o.Type.DiscountKind, &discountValue,
		&active, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	o.PointsRequired = rewards.NewPoints(points)
	o.Type.DiscountValue = rewards.MustParseDecimal(discountValue)
	o.Active = active != 0
	o.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	o.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &o, nil
}

func (s *Store) ListOptions(ctx context.Context, activeOnly bool) ([]rewards.RewardOption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := optionColumns + " FROM reward_options"
	if activeOnly {
		query += " WHERE active = 1"
	}
	query += " ORDER BY name"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var options []rewards.RewardOption
	for rows.Next() {
		o, err := scanOptionRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		options = append(options, *o)
	}
	return options, rows.Err()
}

// =============================================================================
// REDEMPTIONS
// =============================================================================

func (s *Store) InsertRedemption(ctx context.Context, r rewards.Redemption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertRedemption(ctx, s.db, r)
}

func insertRedemption(ctx context.Context, q dbtx, r rewards.Redemption) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO redemptions
		(id, customer_id, option_id, option_name, points_spent, status, technician_id, processed_by, notes, created_at, processed_at, fulfilled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		redemptionArgs(r)...)
	return err
}

func updateRedemption(ctx context.Context, q dbtx, r rewards.Redemption) error {
	res, err := q.ExecContext(ctx, `
		UPDATE redemptions SET
			status = ?, technician_id = ?, processed_by = ?, notes = ?,
			processed_at = ?, fulfilled_at = ?
		WHERE id = ?`,
		string(r.Status), techID(r.TechnicianID), techID(r.ProcessedBy), r.Notes,
		nullTime(r.ProcessedAt), nullTime(r.FulfilledAt), string(r.ID))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return rewards.ErrRedemptionNotFound
	}
	return nil
}

func (s *Store) UpdateRedemption(ctx context.Context, r rewards.Redemption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateRedemption(ctx, s.db, r)
}

func redemptionArgs(r rewards.Redemption) []any {
	return []any{
		string(r.ID), string(r.CustomerID), r.OptionID, r.OptionName,
		r.PointsSpent.Int64(), string(r.Status),
		techID(r.TechnicianID), techID(r.ProcessedBy), r.Notes,
		r.CreatedAt.UTC().Format(time.RFC3339),
		nullTime(r.ProcessedAt), nullTime(r.FulfilledAt),
	}
}

func (s *Store) GetRedemption(ctx context.Context, id rewards.RedemptionID) (*rewards.Redemption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRedemption(ctx, s.db, id)
}

const redemptionColumns = `SELECT id, customer_id, option_id, option_name, points_spent, status, technician_id, processed_by, notes, created_at, processed_at, fulfilled_at`

func getRedemption(ctx context.Context, q dbtx, id rewards.RedemptionID) (*rewards.Redemption, error) {
	row := q.QueryRowContext(ctx, redemptionColumns+" FROM redemptions WHERE id = ?", string(id))
	r, err := scanRedemptionRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, rewards.ErrRedemptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func scanRedemptionRow(scan func(...any) error) (*rewards.Redemption, error) {
	var r rewards.Redemption
	var points int64
	var technicianID, processedBy, notes sql.NullString
	var createdAt string
	var processedAt, fulfilledAt sql.NullString
	err := scan(&r.ID, &r.CustomerID, &r.OptionID, &r.OptionName, &points, &r.Status,
		&technicianID, &processedBy, &notes, &createdAt, &processedAt, &fulfilledAt)
	if err != nil {
		return nil, err
	}
	r.PointsSpent = rewards.NewPoints(points)
	if technicianID.Valid && technicianID.String != "" {
		id := rewards.TechnicianID(technicianID.String)
		r.TechnicianID = &id
	}
	if processedBy.Valid && processedBy.String != "" {
		id := rewards.TechnicianID(processedBy.String)
		r.ProcessedBy = &id
	}
	r.Notes = notes.String
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	r.ProcessedAt = parseNullTime(processedAt)
	r.FulfilledAt = parseNullTime(fulfilledAt)
	return &r, nil
}

func (s *Store) ListRedemptionsByStatus(ctx context.Context, status rewards.RedemptionStatus) ([]rewards.Redemption, error) {
	return s.listRedemptions(ctx,
		redemptionColumns+" FROM redemptions WHERE status = ? ORDER BY created_at", string(status))
}

func (s *Store) ListRedemptionsByCustomer(ctx context.Context, id rewards.CustomerID) ([]rewards.Redemption, error) {
	return s.listRedemptions(ctx,
		redemptionColumns+" FROM redemptions WHERE customer_id = ? ORDER BY created_at", string(id))
}

func (s *Store) listRedemptions(ctx context.Context, query string, args ...any) ([]rewards.Redemption, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var redemptions []rewards.Redemption
	for rows.Next() {
		r, err := scanRedemptionRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		redemptions = append(redemptions, *r)
	}
	return redemptions, rows.Err()
}

// =============================================================================
// TECHNICIANS
// =============================================================================

func (s *Store) SaveTechnician(ctx context.Context, t rewards.Technician) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveTechnician(ctx, s.db, t)
}

func saveTechnician(ctx context.Context, q dbtx, t rewards.Technician) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO technicians (id, name, is_manager, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			is_manager = excluded.is_manager`,
		string(t.ID), t.Name, boolToInt(t.IsManager),
		t.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

func (s *Store) GetTechnician(ctx context.Context, id rewards.TechnicianID) (*rewards.Technician, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getTechnician(ctx, s.db, id)
}

func getTechnician(ctx context.Context, q dbtx, id rewards.TechnicianID) (*rewards.Technician, error) {
	var t rewards.Technician
	var isManager int
	var createdAt string
	err := q.QueryRowContext(ctx,
		"SELECT id, name, is_manager, created_at FROM technicians WHERE id = ?",
		string(id),
	).Scan(&t.ID, &t.Name, &isManager, &createdAt)
	if err == sql.ErrNoRows {
		return nil, rewards.ErrTechnicianNotFound
	}
	if err != nil {
		return nil, err
	}
	t.IsManager = isManager != 0
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &t, nil
}

func (s *Store) ListTechnicians(ctx context.Context) ([]rewards.Technician, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// ID ascending: the assigner's tie-break depends on this order.
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, is_manager, created_at FROM technicians ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var technicians []rewards.Technician
	for rows.Next() {
		var t rewards.Technician
		var isManager int
		var createdAt string
		if err := rows.Scan(&t.ID, &t.Name, &isManager, &createdAt); err != nil {
			return nil, err
		}
		t.IsManager = isManager != 0
		t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		technicians = append(technicians, t)
	}
	return technicians, rows.Err()
}

// =============================================================================
// REPAIR JOBS (rewards.JobCounter)
// =============================================================================

// RepairJob mirrors a repair-tracking job for workload counting.
type RepairJob struct {
	ID           string
	TechnicianID rewards.TechnicianID
	Status       string // e.g. PENDING, IN_PROGRESS, COMPLETED, DENIED
	CreatedAt    time.Time
}

// SaveRepairJob upserts a workload mirror row.
func (s *Store) SaveRepairJob(ctx context.Context, j RepairJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO repair_jobs (id, technician_id, status, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			technician_id = excluded.technician_id,
			status = excluded.status`,
		j.ID, string(j.TechnicianID), j.Status,
		j.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

// ActiveJobs counts jobs that are not terminal in the repair domain.
func (s *Store) ActiveJobs(ctx context.Context, id rewards.TechnicianID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM repair_jobs
		WHERE technician_id = ? AND status NOT IN ('COMPLETED', 'DENIED')`,
		string(id),
	).Scan(&count)
	return count, err
}

// =============================================================================
// TRANSACTIONAL STORE (rewards.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store rewards.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	txStore := &txStore{tx: sqlTx, parent: s}
	if err := fn(txStore); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) SaveCustomer(ctx context.Context, c rewards.Customer) error {
	return saveCustomer(ctx, ts.tx, c)
}
func (ts *txStore) GetCustomer(ctx context.Context, id rewards.CustomerID) (*rewards.Customer, error) {
	return getCustomer(ctx, ts.tx, id)
}
func (ts *txStore) ListCustomers(ctx context.Context) ([]rewards.Customer, error) {
	return nil, errListInTx
}
func (ts *txStore) InsertCode(ctx context.Context, code rewards.ReferralCode) error {
	return insertCode(ctx, ts.tx, code)
}
func (ts *txStore) CodeByValue(ctx context.Context, value string) (*rewards.ReferralCode, error) {
	return codeByValue(ctx, ts.tx, value)
}
func (ts *txStore) CodeByCustomer(ctx context.Context, id rewards.CustomerID) (*rewards.ReferralCode, error) {
	return scanCode(ts.tx.QueryRowContext(ctx,
		"SELECT code, customer_id, created_at FROM referral_codes WHERE customer_id = ?", string(id)))
}
func (ts *txStore) InsertReferral(ctx context.Context, r rewards.Referral) error {
	return insertReferral(ctx, ts.tx, r)
}
func (ts *txStore) ListReferralsByCode(ctx context.Context, code string) ([]rewards.Referral, error) {
	return nil, errListInTx
}
func (ts *txStore) Account(ctx context.Context, id rewards.CustomerID) (*rewards.PointsAccount, error) {
	return account(ctx, ts.tx, id)
}
func (ts *txStore) Credit(ctx context.Context, entry rewards.Entry) error {
	return credit(ctx, ts.tx, entry)
}
func (ts *txStore) Debit(ctx context.Context, entry rewards.Entry) error {
	return debit(ctx, ts.tx, entry)
}
func (ts *txStore) Entries(ctx context.Context, id rewards.CustomerID) ([]rewards.Entry, error) {
	return nil, errListInTx
}
func (ts *txStore) SaveOption(ctx context.Context, o rewards.RewardOption) error {
	return saveOption(ctx, ts.tx, o)
}
func (ts *txStore) GetOption(ctx context.Context, id string) (*rewards.RewardOption, error) {
	return getOption(ctx, ts.tx, id)
}
func (ts *txStore) ListOptions(ctx context.Context, activeOnly bool) ([]rewards.RewardOption, error) {
	return nil, errListInTx
}
func (ts *txStore) InsertRedemption(ctx context.Context, r rewards.Redemption) error {
	return insertRedemption(ctx, ts.tx, r)
}
func (ts *txStore) GetRedemption(ctx context.Context, id rewards.RedemptionID) (*rewards.Redemption, error) {
	return getRedemption(ctx, ts.tx, id)
}
func (ts *txStore) UpdateRedemption(ctx context.Context, r rewards.Redemption) error {
	return updateRedemption(ctx, ts.tx, r)
}
func (ts *txStore) ListRedemptionsByStatus(ctx context.Context, status rewards.RedemptionStatus) ([]rewards.Redemption, error) {
	return nil, errListInTx
}
func (ts *txStore) ListRedemptionsByCustomer(ctx context.Context, id rewards.CustomerID) ([]rewards.Redemption, error) {
	return nil, errListInTx
}
func (ts *txStore) SaveTechnician(ctx context.Context, t rewards.Technician) error {
	return saveTechnician(ctx, ts.tx, t)
}
func (ts *txStore) GetTechnician(ctx context.Context, id rewards.TechnicianID) (*rewards.Technician, error) {
	return getTechnician(ctx, ts.tx, id)
}
func (ts *txStore) ListTechnicians(ctx context.Context) ([]rewards.Technician, error) {
	return nil, errListInTx
}

// Bulk listing has no place inside a write transaction; the workflow only
// performs point reads and writes there.
var errListInTx = errors.New("operation not supported inside a transaction")

// =============================================================================
// HELPERS
// =============================================================================

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func techID(id *rewards.TechnicianID) any {
	if id == nil {
		return nil
	}
	return string(*id)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}
