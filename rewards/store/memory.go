// Package store provides the in-memory Store implementation used by tests
// and local development.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/glasslink/rewards-engine/rewards"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory is map-backed. Public methods take m.mu and delegate to unlocked
// *Locked helpers; txView calls the helpers directly because WithTx already
// holds the lock for the duration of the transaction.
type Memory struct {
	mu          sync.RWMutex
	customers   map[rewards.CustomerID]rewards.Customer
	codes       map[string]rewards.ReferralCode // by code value
	codeOwners  map[rewards.CustomerID]string   // customer -> code value
	referrals   map[string]rewards.Referral     // by referral ID
	refPairs    map[refPair]bool                // (code, referred) uniqueness
	accounts    map[rewards.CustomerID]rewards.PointsAccount
	entries     map[rewards.CustomerID][]rewards.Entry
	options     map[string]rewards.RewardOption
	redemptions map[rewards.RedemptionID]rewards.Redemption
	technicians map[rewards.TechnicianID]rewards.Technician
	activeJobs  map[rewards.TechnicianID]int
}

type refPair struct {
	Code     string
	Referred rewards.CustomerID
}

func NewMemory() *Memory {
	return &Memory{
		customers:   make(map[rewards.CustomerID]rewards.Customer),
		codes:       make(map[string]rewards.ReferralCode),
		codeOwners:  make(map[rewards.CustomerID]string),
		referrals:   make(map[string]rewards.Referral),
		refPairs:    make(map[refPair]bool),
		accounts:    make(map[rewards.CustomerID]rewards.PointsAccount),
		entries:     make(map[rewards.CustomerID][]rewards.Entry),
		options:     make(map[string]rewards.RewardOption),
		redemptions: make(map[rewards.RedemptionID]rewards.Redemption),
		technicians: make(map[rewards.TechnicianID]rewards.Technician),
		activeJobs:  make(map[rewards.TechnicianID]int),
	}
}

// Compile-time interface checks.
var (
	_ rewards.TxStore    = (*Memory)(nil)
	_ rewards.JobCounter = (*Memory)(nil)
)

// =============================================================================
// CUSTOMERS
// =============================================================================

func (m *Memory) SaveCustomer(_ context.Context, c rewards.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCustomerLocked(c)
}

func (m *Memory) saveCustomerLocked(c rewards.Customer) error {
	c.Name = strings.ToLower(c.Name)
	m.customers[c.ID] = c
	return nil
}

func (m *Memory) GetCustomer(_ context.Context, id rewards.CustomerID) (*rewards.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getCustomerLocked(id)
}

func (m *Memory) getCustomerLocked(id rewards.CustomerID) (*rewards.Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return nil, rewards.ErrCustomerNotFound
	}
	return &c, nil
}

func (m *Memory) ListCustomers(_ context.Context) ([]rewards.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listCustomersLocked()
}

func (m *Memory) listCustomersLocked() ([]rewards.Customer, error) {
	out := make([]rewards.Customer, 0, len(m.customers))
	for _, c := range m.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// REFERRAL CODES
// =============================================================================

func (m *Memory) InsertCode(_ context.Context, code rewards.ReferralCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertCodeLocked(code)
}

func (m *Memory) insertCodeLocked(code rewards.ReferralCode) error {
	if _, exists := m.codes[code.Code]; exists {
		return rewards.ErrCodeTaken
	}
	if _, exists := m.codeOwners[code.CustomerID]; exists {
		return rewards.ErrCustomerHasCode
	}
	m.codes[code.Code] = code
	m.codeOwners[code.CustomerID] = code.Code
	return nil
}

func (m *Memory) CodeByValue(_ context.Context, value string) (*rewards.ReferralCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.codeByValueLocked(value)
}

func (m *Memory) codeByValueLocked(value string) (*rewards.ReferralCode, error) {
	c, ok := m.codes[value] // exact match, case-sensitive
	if !ok {
		return nil, rewards.ErrCodeNotFound
	}
	return &c, nil
}

func (m *Memory) CodeByCustomer(_ context.Context, id rewards.CustomerID) (*rewards.ReferralCode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.codeByCustomerLocked(id)
}

func (m *Memory) codeByCustomerLocked(id rewards.CustomerID) (*rewards.ReferralCode, error) {
	value, ok := m.codeOwners[id]
	if !ok {
		return nil, rewards.ErrCodeNotFound
	}
	c := m.codes[value]
	return &c, nil
}

// =============================================================================
// REFERRALS
// =============================================================================

func (m *Memory) InsertReferral(_ context.Context, r rewards.Referral) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertReferralLocked(r)
}

func (m *Memory) insertReferralLocked(r rewards.Referral) error {
	pair := refPair{Code: r.Code, Referred: r.ReferredCustomerID}
	if m.refPairs[pair] {
		return rewards.ErrDuplicateReferral
	}
	m.refPairs[pair] = true
	m.referrals[r.ID] = r
	return nil
}

func (m *Memory) ListReferralsByCode(_ context.Context, code string) ([]rewards.Referral, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listReferralsByCodeLocked(code)
}

func (m *Memory) listReferralsByCodeLocked(code string) ([]rewards.Referral, error) {
	var out []rewards.Referral
	for _, r := range m.referrals {
		if r.Code == code {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// =============================================================================
// ACCOUNTS & LEDGER
// =============================================================================

func (m *Memory) Account(_ context.Context, id rewards.CustomerID) (*rewards.PointsAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accountLocked(id)
}

func (m *Memory) accountLocked(id rewards.CustomerID) (*rewards.PointsAccount, error) {
	a, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *Memory) Credit(_ context.Context, entry rewards.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creditLocked(entry)
}

func (m *Memory) creditLocked(entry rewards.Entry) error {
	acct, ok := m.accounts[entry.CustomerID]
	if !ok {
		acct = rewards.PointsAccount{CustomerID: entry.CustomerID, Balance: rewards.ZeroPoints()}
	}
	acct.Balance = acct.Balance.Add(entry.Delta)
	acct.UpdatedAt = entry.CreatedAt
	m.accounts[entry.CustomerID] = acct
	m.entries[entry.CustomerID] = append(m.entries[entry.CustomerID], entry)
	return nil
}

func (m *Memory) Debit(_ context.Context, entry rewards.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.debitLocked(entry)
}

func (m *Memory) debitLocked(entry rewards.Entry) error {
	acct, ok := m.accounts[entry.CustomerID]
	if !ok {
		acct = rewards.PointsAccount{CustomerID: entry.CustomerID, Balance: rewards.ZeroPoints()}
	}
	next := acct.Balance.Add(entry.Delta)
	if next.IsNegative() {
		return &rewards.InsufficientPointsError{
			CustomerID: entry.CustomerID,
			Required:   entry.Delta.Neg(),
			Available:  acct.Balance,
		}
	}
	acct.Balance = next
	acct.UpdatedAt = entry.CreatedAt
	m.accounts[entry.CustomerID] = acct
	m.entries[entry.CustomerID] = append(m.entries[entry.CustomerID], entry)
	return nil
}

func (m *Memory) Entries(_ context.Context, id rewards.CustomerID) ([]rewards.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entriesLocked(id)
}

func (m *Memory) entriesLocked(id rewards.CustomerID) ([]rewards.Entry, error) {
	out := make([]rewards.Entry, len(m.entries[id]))
	copy(out, m.entries[id])
	return out, nil
}

// =============================================================================
// CATALOG
// =============================================================================

func (m *Memory) SaveOption(_ context.Context, o rewards.RewardOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveOptionLocked(o)
}

func (m *Memory) saveOptionLocked(o rewards.RewardOption) error {
	m.options[o.ID] = o
	return nil
}

func (m *Memory) GetOption(_ context.Context, id string) (*rewards.RewardOption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getOptionLocked(id)
}

func (m *Memory) getOptionLocked(id string) (*rewards.RewardOption, error) {
	o, ok := m.options[id]
	if !ok {
		return nil, rewards.ErrOptionNotFound
	}
	return &o, nil
}

func (m *Memory) ListOptions(_ context.Context, activeOnly bool) ([]rewards.RewardOption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listOptionsLocked(activeOnly)
}

func (m *Memory) listOptionsLocked(activeOnly bool) ([]rewards.RewardOption, error) {
	var out []rewards.RewardOption
	for _, o := range m.options {
		if activeOnly && !o.Active {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// =============================================================================
// REDEMPTIONS
// =============================================================================

func (m *Memory) InsertRedemption(_ context.Context, r rewards.Redemption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertRedemptionLocked(r)
}

func (m *Memory) insertRedemptionLocked(r rewards.Redemption) error {
	m.redemptions[r.ID] = r
	return nil
}

func (m *Memory) GetRedemption(_ context.Context, id rewards.RedemptionID) (*rewards.Redemption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getRedemptionLocked(id)
}

func (m *Memory) getRedemptionLocked(id rewards.RedemptionID) (*rewards.Redemption, error) {
	r, ok := m.redemptions[id]
	if !ok {
		return nil, rewards.ErrRedemptionNotFound
	}
	return &r, nil
}

func (m *Memory) UpdateRedemption(_ context.Context, r rewards.Redemption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateRedemptionLocked(r)
}

func (m *Memory) updateRedemptionLocked(r rewards.Redemption) error {
	if _, ok := m.redemptions[r.ID]; !ok {
		return rewards.ErrRedemptionNotFound
	}
	m.redemptions[r.ID] = r
	return nil
}

func (m *Memory) ListRedemptionsByStatus(_ context.Context, status rewards.RedemptionStatus) ([]rewards.Redemption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listRedemptionsByStatusLocked(status)
}

func (m *Memory) listRedemptionsByStatusLocked(status rewards.RedemptionStatus) ([]rewards.Redemption, error) {
	var out []rewards.Redemption
	for _, r := range m.redemptions {
		if r.Status == status {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) ListRedemptionsByCustomer(_ context.Context, id rewards.CustomerID) ([]rewards.Redemption, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listRedemptionsByCustomerLocked(id)
}

func (m *Memory) listRedemptionsByCustomerLocked(id rewards.CustomerID) ([]rewards.Redemption, error) {
	var out []rewards.Redemption
	for _, r := range m.redemptions {
		if r.CustomerID == id {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// =============================================================================
// TECHNICIANS
// =============================================================================

func (m *Memory) SaveTechnician(_ context.Context, t rewards.Technician) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveTechnicianLocked(t)
}

func (m *Memory) saveTechnicianLocked(t rewards.Technician) error {
	m.technicians[t.ID] = t
	return nil
}

func (m *Memory) GetTechnician(_ context.Context, id rewards.TechnicianID) (*rewards.Technician, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getTechnicianLocked(id)
}

func (m *Memory) getTechnicianLocked(id rewards.TechnicianID) (*rewards.Technician, error) {
	t, ok := m.technicians[id]
	if !ok {
		return nil, rewards.ErrTechnicianNotFound
	}
	return &t, nil
}

func (m *Memory) ListTechnicians(_ context.Context) ([]rewards.Technician, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listTechniciansLocked()
}

func (m *Memory) listTechniciansLocked() ([]rewards.Technician, error) {
	out := make([]rewards.Technician, 0, len(m.technicians))
	for _, t := range m.technicians {
		out = append(out, t)
	}
	// ID ascending keeps assignment tie-breaks deterministic.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// JOB COUNTER - Stand-in for the repair-tracking subsystem
// =============================================================================

// SetActiveJobs sets the simulated active-job count for a technician.
func (m *Memory) SetActiveJobs(id rewards.TechnicianID, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeJobs[id] = count
}

func (m *Memory) ActiveJobs(_ context.Context, id rewards.TechnicianID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeJobs[id], nil
}

// =============================================================================
// TRANSACTIONS - Snapshot + rollback on error
// =============================================================================

// WithTx executes fn against the store. For the memory implementation the
// transaction is simulated with a full snapshot restored on error. The lock
// is held for the whole transaction: no other goroutine can observe or
// commit writes between the snapshot and the restore, so a rollback can
// never erase a concurrent commit.
func (m *Memory) WithTx(_ context.Context, fn func(rewards.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshotLocked()
	if err := fn(&txView{parent: m}); err != nil {
		m.restoreLocked(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	customers   map[rewards.CustomerID]rewards.Customer
	codes       map[string]rewards.ReferralCode
	codeOwners  map[rewards.CustomerID]string
	referrals   map[string]rewards.Referral
	refPairs    map[refPair]bool
	accounts    map[rewards.CustomerID]rewards.PointsAccount
	entries     map[rewards.CustomerID][]rewards.Entry
	options     map[string]rewards.RewardOption
	redemptions map[rewards.RedemptionID]rewards.Redemption
	technicians map[rewards.TechnicianID]rewards.Technician
}

func (m *Memory) snapshotLocked() memorySnapshot {
	s := memorySnapshot{
		customers:   make(map[rewards.CustomerID]rewards.Customer, len(m.customers)),
		codes:       make(map[string]rewards.ReferralCode, len(m.codes)),
		codeOwners:  make(map[rewards.CustomerID]string, len(m.codeOwners)),
		referrals:   make(map[string]rewards.Referral, len(m.referrals)),
		refPairs:    make(map[refPair]bool, len(m.refPairs)),
		accounts:    make(map[rewards.CustomerID]rewards.PointsAccount, len(m.accounts)),
		entries:     make(map[rewards.CustomerID][]rewards.Entry, len(m.entries)),
		options:     make(map[string]rewards.RewardOption, len(m.options)),
		redemptions: make(map[rewards.RedemptionID]rewards.Redemption, len(m.redemptions)),
		technicians: make(map[rewards.TechnicianID]rewards.Technician, len(m.technicians)),
	}
	for k, v := range m.customers {
		s.customers[k] = v
	}
	for k, v := range m.codes {
		s.codes[k] = v
	}
	for k, v := range m.codeOwners {
		s.codeOwners[k] = v
	}
	for k, v := range m.referrals {
		s.referrals[k] = v
	}
	for k, v := range m.refPairs {
		s.refPairs[k] = v
	}
	for k, v := range m.accounts {
		s.accounts[k] = v
	}
	for k, v := range m.entries {
		s.entries[k] = append([]rewards.Entry{}, v...)
	}
	for k, v := range m.options {
		s.options[k] = v
	}
	for k, v := range m.redemptions {
		s.redemptions[k] = v
	}
	for k, v := range m.technicians {
		s.technicians[k] = v
	}
	return s
}

func (m *Memory) restoreLocked(s memorySnapshot) {
	m.customers = s.customers
	m.codes = s.codes
	m.codeOwners = s.codeOwners
	m.referrals = s.referrals
	m.refPairs = s.refPairs
	m.accounts = s.accounts
	m.entries = s.entries
	m.options = s.options
	m.redemptions = s.redemptions
	m.technicians = s.technicians
}

// txView delegates to the parent's unlocked helpers. WithTx holds m.mu for
// the duration of fn, so the view must never go through the locking public
// methods.
type txView struct {
	parent *Memory
}

func (tv *txView) SaveCustomer(_ context.Context, c rewards.Customer) error {
	return tv.parent.saveCustomerLocked(c)
}
func (tv *txView) GetCustomer(_ context.Context, id rewards.CustomerID) (*rewards.Customer, error) {
	return tv.parent.getCustomerLocked(id)
}
func (tv *txView) ListCustomers(_ context.Context) ([]rewards.Customer, error) {
	return tv.parent.listCustomersLocked()
}
func (tv *txView) InsertCode(_ context.Context, code rewards.ReferralCode) error {
	return tv.parent.insertCodeLocked(code)
}
func (tv *txView) CodeByValue(_ context.Context, value string) (*rewards.ReferralCode, error) {
	return tv.parent.codeByValueLocked(value)
}
func (tv *txView) CodeByCustomer(_ context.Context, id rewards.CustomerID) (*rewards.ReferralCode, error) {
	return tv.parent.codeByCustomerLocked(id)
}
func (tv *txView) InsertReferral(_ context.Context, r rewards.Referral) error {
	return tv.parent.insertReferralLocked(r)
}
func (tv *txView) ListReferralsByCode(_ context.Context, code string) ([]rewards.Referral, error) {
	return tv.parent.listReferralsByCodeLocked(code)
}
func (tv *txView) Account(_ context.Context, id rewards.CustomerID) (*rewards.PointsAccount, error) {
	return tv.parent.accountLocked(id)
}
func (tv *txView) Credit(_ context.Context, entry rewards.Entry) error {
	return tv.parent.creditLocked(entry)
}
func (tv *txView) Debit(_ context.Context, entry rewards.Entry) error {
	return tv.parent.debitLocked(entry)
}
func (tv *txView) Entries(_ context.Context, id rewards.CustomerID) ([]rewards.Entry, error) {
	return tv.parent.entriesLocked(id)
}
func (tv *txView) SaveOption(_ context.Context, o rewards.RewardOption) error {
	return tv.parent.saveOptionLocked(o)
}
func (tv *txView) GetOption(_ context.Context, id string) (*rewards.RewardOption, error) {
	return tv.parent.getOptionLocked(id)
}
func (tv *txView) ListOptions(_ context.Context, activeOnly bool) ([]rewards.RewardOption, error) {
	return tv.parent.listOptionsLocked(activeOnly)
}
func (tv *txView) InsertRedemption(_ context.Context, r rewards.Redemption) error {
	return tv.parent.insertRedemptionLocked(r)
}
func (tv *txView) GetRedemption(_ context.Context, id rewards.RedemptionID) (*rewards.Redemption, error) {
	return tv.parent.getRedemptionLocked(id)
}
func (tv *txView) UpdateRedemption(_ context.Context, r rewards.Redemption) error {
	return tv.parent.updateRedemptionLocked(r)
}
func (tv *txView) ListRedemptionsByStatus(_ context.Context, status rewards.RedemptionStatus) ([]rewards.Redemption, error) {
	return tv.parent.listRedemptionsByStatusLocked(status)
}
func (tv *txView) ListRedemptionsByCustomer(_ context.Context, id rewards.CustomerID) ([]rewards.Redemption, error) {
	return tv.parent.listRedemptionsByCustomerLocked(id)
}
func (tv *txView) SaveTechnician(_ context.Context, t rewards.Technician) error {
	return tv.parent.saveTechnicianLocked(t)
}
func (tv *txView) GetTechnician(_ context.Context, id rewards.TechnicianID) (*rewards.Technician, error) {
	return tv.parent.getTechnicianLocked(id)
}
func (tv *txView) ListTechnicians(_ context.Context) ([]rewards.Technician, error) {
	return tv.parent.listTechniciansLocked()
}
