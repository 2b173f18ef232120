package rewards_test

import (
	"context"
	"testing"

	"github.com/glasslink/rewards-engine/rewards"
)

func TestCustomers_RegisterNormalizesName(t *testing.T) {
	m := newTestStore(t)
	customers := rewards.NewCustomers(m)

	cust, err := customers.Register(context.Background(), rewards.Customer{
		Name:  "  Jordan AVERY ",
		Email: " jordan@example.com ",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if cust.Name != "jordan avery" {
		t.Errorf("expected lowercase trimmed name, got %q", cust.Name)
	}
	if cust.Email != "jordan@example.com" {
		t.Errorf("expected trimmed email, got %q", cust.Email)
	}
	if cust.ID == "" {
		t.Error("expected an assigned ID")
	}

	stored, err := customers.Get(context.Background(), cust.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Name != cust.Name {
		t.Errorf("stored name %q differs from returned %q", stored.Name, cust.Name)
	}
}

func TestCustomers_RegisterRequiresName(t *testing.T) {
	customers := rewards.NewCustomers(newTestStore(t))

	_, err := customers.Register(context.Background(), rewards.Customer{Name: "   "})
	if !rewards.IsValidation(err) {
		t.Errorf("expected validation error for blank name, got %v", err)
	}
}

func TestCatalog_DeactivateHidesFromActiveList(t *testing.T) {
	// GIVEN: Two active options
	// WHEN: One is deactivated
	// THEN: Customers see one; the full listing and direct get still work

	m := newTestStore(t)
	catalog := rewards.NewCatalog(m)
	seedOption(t, m, "opt-1", "Free Rock Chip Repair", 500)
	seedOption(t, m, "opt-2", "$25 Off Any Service", 400)

	if _, err := catalog.Deactivate(context.Background(), "opt-2"); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	active, err := catalog.ActiveOptions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].ID != "opt-1" {
		t.Errorf("expected only opt-1 active, got %v", active)
	}

	all, err := catalog.AllOptions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 options in full catalog, got %d", len(all))
	}

	retired, err := catalog.Get(context.Background(), "opt-2")
	if err != nil {
		t.Fatalf("Get retired option: %v", err)
	}
	if retired.Active {
		t.Error("expected opt-2 to be inactive")
	}
}

func TestCatalog_SaveValidates(t *testing.T) {
	catalog := rewards.NewCatalog(newTestStore(t))

	_, err := catalog.Save(context.Background(), rewards.RewardOption{
		PointsRequired: rewards.NewPoints(100),
	})
	if !rewards.IsValidation(err) {
		t.Errorf("expected validation error for missing name, got %v", err)
	}

	_, err = catalog.Save(context.Background(), rewards.RewardOption{
		Name:           "Free Rock Chip Repair",
		PointsRequired: rewards.NewPoints(0),
	})
	if !rewards.IsValidation(err) {
		t.Errorf("expected validation error for zero cost, got %v", err)
	}
}
