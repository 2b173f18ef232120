package rewards_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/glasslink/rewards-engine/rewards"
	"github.com/glasslink/rewards-engine/rewards/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestStore(t *testing.T) *store.Memory {
	t.Helper()
	return store.NewMemory()
}

func seedCustomer(t *testing.T, m *store.Memory, id, name string) rewards.Customer {
	t.Helper()
	c := rewards.Customer{
		ID:        rewards.CustomerID(id),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.SaveCustomer(context.Background(), c); err != nil {
		t.Fatalf("seeding customer %s: %v", id, err)
	}
	return c
}

func seedTechnician(t *testing.T, m *store.Memory, id, name string) rewards.Technician {
	t.Helper()
	tech := rewards.Technician{
		ID:        rewards.TechnicianID(id),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.SaveTechnician(context.Background(), tech); err != nil {
		t.Fatalf("seeding technician %s: %v", id, err)
	}
	return tech
}

func seedOption(t *testing.T, m *store.Memory, id, name string, points int64) rewards.RewardOption {
	t.Helper()
	o := rewards.RewardOption{
		ID:             id,
		Name:           name,
		PointsRequired: rewards.NewPoints(points),
		Active:         true,
		CreatedAt:      time.Now().UTC(),
	}
	if err := m.SaveOption(context.Background(), o); err != nil {
		t.Fatalf("seeding option %s: %v", id, err)
	}
	return o
}

func creditCustomer(t *testing.T, m *store.Memory, id string, amount int64) {
	t.Helper()
	err := m.Credit(context.Background(), rewards.Entry{
		ID:         rewards.EntryID("seed-" + id),
		CustomerID: rewards.CustomerID(id),
		Delta:      rewards.NewPoints(amount),
		Kind:       rewards.EntryAdjustment,
		Reason:     "test seed",
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("crediting customer %s: %v", id, err)
	}
}

func balanceOf(t *testing.T, m *store.Memory, id string) int64 {
	t.Helper()
	acct, err := m.Account(context.Background(), rewards.CustomerID(id))
	if err != nil {
		t.Fatalf("reading account %s: %v", id, err)
	}
	if acct == nil {
		return 0
	}
	return acct.Balance.Int64()
}

// =============================================================================
// CODE ISSUANCE TESTS
// =============================================================================

func TestCodeRegistry_GetOrCreate_Stable(t *testing.T) {
	// GIVEN: A customer with no code yet
	// WHEN: Requesting a code twice
	// THEN: First call creates, second returns the identical code

	m := newTestStore(t)
	seedCustomer(t, m, "cust-1", "ana")
	registry := rewards.NewCodeRegistry(m, 0, 0)

	first, outcome, err := registry.GetOrCreate(context.Background(), "cust-1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if outcome != rewards.OutcomeCreated {
		t.Errorf("expected OutcomeCreated on first call, got %v", outcome)
	}
	if len(first.Code) != rewards.DefaultCodeLength {
		t.Errorf("expected code of length %d, got %q", rewards.DefaultCodeLength, first.Code)
	}
	for _, ch := range first.Code {
		if !strings.ContainsRune(rewards.CodeAlphabet, ch) {
			t.Errorf("code %q contains %q outside the alphabet", first.Code, ch)
		}
	}

	second, outcome, err := registry.GetOrCreate(context.Background(), "cust-1")
	if err != nil {
		t.Fatalf("GetOrCreate (second): %v", err)
	}
	if outcome != rewards.OutcomeExisting {
		t.Errorf("expected OutcomeExisting on second call, got %v", outcome)
	}
	if second.Code != first.Code {
		t.Errorf("code changed between calls: %q then %q", first.Code, second.Code)
	}
}

func TestCodeRegistry_DistinctCustomersGetDistinctCodes(t *testing.T) {
	m := newTestStore(t)
	seedCustomer(t, m, "cust-1", "ana")
	seedCustomer(t, m, "cust-2", "bo")
	registry := rewards.NewCodeRegistry(m, 0, 0)

	a, _, err := registry.GetOrCreate(context.Background(), "cust-1")
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := registry.GetOrCreate(context.Background(), "cust-2")
	if err != nil {
		t.Fatal(err)
	}
	if a.Code == b.Code {
		t.Errorf("two customers received the same code %q", a.Code)
	}
}

// alwaysTakenStore forces every insert into the collision path.
type alwaysTakenStore struct {
	rewards.CodeStore
	attempts int
}

func (s *alwaysTakenStore) CodeByCustomer(ctx context.Context, id rewards.CustomerID) (*rewards.ReferralCode, error) {
	return nil, rewards.ErrCodeNotFound
}

func (s *alwaysTakenStore) InsertCode(ctx context.Context, code rewards.ReferralCode) error {
	s.attempts++
	return rewards.ErrCodeTaken
}

func TestCodeRegistry_ExhaustsRetriesOnCollisions(t *testing.T) {
	// GIVEN: A store where every generated code collides
	// WHEN: Requesting a code with a retry cap of 5
	// THEN: ErrExhaustedRetries after exactly 5 attempts

	stub := &alwaysTakenStore{}
	registry := rewards.NewCodeRegistry(stub, 6, 5)

	_, _, err := registry.GetOrCreate(context.Background(), "cust-1")
	if !errors.Is(err, rewards.ErrExhaustedRetries) {
		t.Fatalf("expected ErrExhaustedRetries, got %v", err)
	}
	if stub.attempts != 5 {
		t.Errorf("expected 5 insert attempts, got %d", stub.attempts)
	}
}

// raceWinnerStore simulates losing an issuance race: the customer acquires
// a code between the initial lookup miss and the insert.
type raceWinnerStore struct {
	rewards.CodeStore
	winner   rewards.ReferralCode
	attempts int
}

func (s *raceWinnerStore) CodeByCustomer(ctx context.Context, id rewards.CustomerID) (*rewards.ReferralCode, error) {
	if s.attempts == 0 {
		return nil, rewards.ErrCodeNotFound
	}
	c := s.winner
	return &c, nil
}

func (s *raceWinnerStore) InsertCode(ctx context.Context, code rewards.ReferralCode) error {
	s.attempts++
	return rewards.ErrCustomerHasCode
}

func TestCodeRegistry_LostIssuanceRaceReturnsWinnersCode(t *testing.T) {
	// GIVEN: Another call issued this customer's code first
	// WHEN: The insert hits the one-code-per-customer constraint
	// THEN: The winner's code comes back, without burning generation retries

	stub := &raceWinnerStore{
		winner: rewards.ReferralCode{Code: "AB12CD", CustomerID: "cust-1"},
	}
	registry := rewards.NewCodeRegistry(stub, 6, 5)

	code, outcome, err := registry.GetOrCreate(context.Background(), "cust-1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if outcome != rewards.OutcomeExisting {
		t.Errorf("expected OutcomeExisting, got %v", outcome)
	}
	if code.Code != "AB12CD" {
		t.Errorf("expected the winner's code AB12CD, got %q", code.Code)
	}
	if stub.attempts != 1 {
		t.Errorf("expected a single insert attempt, got %d", stub.attempts)
	}
}

// =============================================================================
// CODE VALIDATION TESTS
// =============================================================================

func TestCodeRegistry_Validate_CaseSensitive(t *testing.T) {
	m := newTestStore(t)
	seedCustomer(t, m, "cust-1", "ana")
	registry := rewards.NewCodeRegistry(m, 0, 0)

	code, _, err := registry.GetOrCreate(context.Background(), "cust-1")
	if err != nil {
		t.Fatal(err)
	}

	got, err := registry.Validate(context.Background(), code.Code)
	if err != nil {
		t.Fatalf("Validate(exact): %v", err)
	}
	if got.CustomerID != "cust-1" {
		t.Errorf("expected owner cust-1, got %s", got.CustomerID)
	}

	// Lookup is exact: the lowercased form is a different string.
	lowered := strings.ToLower(code.Code)
	if lowered != code.Code {
		_, err = registry.Validate(context.Background(), lowered)
		if !errors.Is(err, rewards.ErrCodeNotFound) {
			t.Errorf("expected ErrCodeNotFound for %q, got %v", lowered, err)
		}
	}
}

func TestCodeRegistry_Validate_Empty(t *testing.T) {
	registry := rewards.NewCodeRegistry(newTestStore(t), 0, 0)

	_, err := registry.Validate(context.Background(), "")
	if !rewards.IsValidation(err) {
		t.Errorf("expected validation error for empty code, got %v", err)
	}
}
