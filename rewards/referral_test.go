package rewards_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glasslink/rewards-engine/rewards"
	"github.com/glasslink/rewards-engine/rewards/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newReferralFixture(t *testing.T) (*rewards.ReferralService, *rewards.CodeRegistry, *store.Memory) {
	t.Helper()
	m := store.NewMemory()
	return rewards.NewReferralService(m, 0, 0), rewards.NewCodeRegistry(m, 0, 0), m
}

func issueCode(t *testing.T, registry *rewards.CodeRegistry, customerID string) string {
	t.Helper()
	code, _, err := registry.GetOrCreate(context.Background(), rewards.CustomerID(customerID))
	require.NoError(t, err)
	return code.Code
}

// =============================================================================
// AWARD TESTS
// =============================================================================

func TestReferral_CreditsBothSides(t *testing.T) {
	// GIVEN: A referrer with a code and a freshly registered customer
	// WHEN: The referral is processed
	// THEN: Referrer gets the award, referred gets the welcome bonus

	svc, registry, m := newReferralFixture(t)
	seedCustomer(t, m, "referrer", "ana")
	seedCustomer(t, m, "referred", "bo")
	code := issueCode(t, registry, "referrer")

	referral, err := svc.Process(context.Background(), code, "referred")
	require.NoError(t, err)
	assert.Equal(t, code, referral.Code)
	assert.Equal(t, rewards.CustomerID("referrer"), referral.ReferrerID)

	assert.Equal(t, int64(rewards.DefaultReferrerAward), balanceOf(t, m, "referrer"))
	assert.Equal(t, int64(rewards.DefaultWelcomeBonus), balanceOf(t, m, "referred"))
}

func TestReferral_EntriesReferenceTheReferral(t *testing.T) {
	svc, registry, m := newReferralFixture(t)
	seedCustomer(t, m, "referrer", "ana")
	seedCustomer(t, m, "referred", "bo")
	code := issueCode(t, registry, "referrer")

	referral, err := svc.Process(context.Background(), code, "referred")
	require.NoError(t, err)

	entries, err := m.Entries(context.Background(), "referrer")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, rewards.EntryReferrerAward, entries[0].Kind)
	assert.Equal(t, referral.ID, entries[0].ReferenceID)

	entries, err = m.Entries(context.Background(), "referred")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, rewards.EntryWelcomeBonus, entries[0].Kind)
}

func TestReferral_MultipleReferralsAccumulate(t *testing.T) {
	svc, registry, m := newReferralFixture(t)
	seedCustomer(t, m, "referrer", "ana")
	seedCustomer(t, m, "friend-1", "bo")
	seedCustomer(t, m, "friend-2", "cy")
	code := issueCode(t, registry, "referrer")

	_, err := svc.Process(context.Background(), code, "friend-1")
	require.NoError(t, err)
	_, err = svc.Process(context.Background(), code, "friend-2")
	require.NoError(t, err)

	assert.Equal(t, int64(2*rewards.DefaultReferrerAward), balanceOf(t, m, "referrer"))
}

// =============================================================================
// REJECTION TESTS
// =============================================================================

func TestReferral_SelfReferralRejected(t *testing.T) {
	svc, registry, m := newReferralFixture(t)
	seedCustomer(t, m, "referrer", "ana")
	code := issueCode(t, registry, "referrer")

	_, err := svc.Process(context.Background(), code, "referrer")
	assert.ErrorIs(t, err, rewards.ErrSelfReferral)
	assert.Zero(t, balanceOf(t, m, "referrer"))
}

func TestReferral_DuplicateIsRejectedWithoutCredits(t *testing.T) {
	// GIVEN: A referral already recorded for (code, referred)
	// WHEN: The same pair is processed again
	// THEN: ErrDuplicateReferral and balances are unchanged

	svc, registry, m := newReferralFixture(t)
	seedCustomer(t, m, "referrer", "ana")
	seedCustomer(t, m, "referred", "bo")
	code := issueCode(t, registry, "referrer")

	_, err := svc.Process(context.Background(), code, "referred")
	require.NoError(t, err)

	_, err = svc.Process(context.Background(), code, "referred")
	assert.ErrorIs(t, err, rewards.ErrDuplicateReferral)

	assert.Equal(t, int64(rewards.DefaultReferrerAward), balanceOf(t, m, "referrer"))
	assert.Equal(t, int64(rewards.DefaultWelcomeBonus), balanceOf(t, m, "referred"))
}

func TestReferral_UnknownCode(t *testing.T) {
	svc, _, m := newReferralFixture(t)
	seedCustomer(t, m, "referred", "bo")

	_, err := svc.Process(context.Background(), "NOSUCH", "referred")
	assert.ErrorIs(t, err, rewards.ErrCodeNotFound)
}

func TestReferral_UnknownReferredCustomerRollsBack(t *testing.T) {
	// The referred customer must exist before anything is written; nothing
	// about the referrer changes on failure.
	svc, registry, m := newReferralFixture(t)
	seedCustomer(t, m, "referrer", "ana")
	code := issueCode(t, registry, "referrer")

	_, err := svc.Process(context.Background(), code, "ghost")
	assert.ErrorIs(t, err, rewards.ErrCustomerNotFound)
	assert.Zero(t, balanceOf(t, m, "referrer"))
}

func TestReferral_ValidatesInput(t *testing.T) {
	svc, _, _ := newReferralFixture(t)

	_, err := svc.Process(context.Background(), "", "referred")
	assert.True(t, rewards.IsValidation(err))

	_, err = svc.Process(context.Background(), "SOMECODE", "")
	assert.True(t, rewards.IsValidation(err))
}

// =============================================================================
// ATOMICITY TESTS
// =============================================================================

// failingCreditStore wraps the memory store and fails the Nth credit.
type failingCreditStore struct {
	*store.Memory
	failAt  int
	credits int
}

func (f *failingCreditStore) WithTx(ctx context.Context, fn func(rewards.Store) error) error {
	return f.Memory.WithTx(ctx, func(s rewards.Store) error {
		return fn(&failingCreditView{Store: s, parent: f})
	})
}

type failingCreditView struct {
	rewards.Store
	parent *failingCreditStore
}

func (v *failingCreditView) Credit(ctx context.Context, entry rewards.Entry) error {
	v.parent.credits++
	if v.parent.credits == v.parent.failAt {
		return errors.New("simulated storage failure")
	}
	return v.Store.Credit(ctx, entry)
}

func TestReferral_SecondCreditFailureRollsBackFirst(t *testing.T) {
	// GIVEN: Storage that fails on the welcome-bonus credit
	// WHEN: A referral is processed
	// THEN: The referrer's award and the referral row are rolled back too

	m := store.NewMemory()
	seedCustomer(t, m, "referrer", "ana")
	seedCustomer(t, m, "referred", "bo")
	registry := rewards.NewCodeRegistry(m, 0, 0)
	code := issueCode(t, registry, "referrer")

	wrapped := &failingCreditStore{Memory: m, failAt: 2}
	svc := rewards.NewReferralService(wrapped, 0, 0)

	_, err := svc.Process(context.Background(), code, "referred")
	require.Error(t, err)

	assert.Zero(t, balanceOf(t, m, "referrer"))
	assert.Zero(t, balanceOf(t, m, "referred"))

	// The pair is free again: a retry succeeds end to end.
	clean := rewards.NewReferralService(m, 0, 0)
	_, err = clean.Process(context.Background(), code, "referred")
	require.NoError(t, err)
	assert.Equal(t, int64(rewards.DefaultReferrerAward), balanceOf(t, m, "referrer"))
}
