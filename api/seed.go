/*
seed.go - Demo data loader for testing and demonstrations

PURPOSE:

	Populates the store with realistic data for demos: a technician roster,
	a reward catalog of repair discounts, and a few customers with referral
	history so balances and the redemption queue have something to show.

USAGE:

	rewards-server -seed

NOTE:

	Seeding is additive and idempotent for roster and catalog entries
	(stable IDs, upsert semantics). Customers get fresh IDs each run.
	Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler whose services the seed drives
  - cmd/server/main.go: -seed flag
*/
package api

import (
	"context"
	"fmt"

	"github.com/glasslink/rewards-engine/rewards"
)

// SeedDemo loads the demo dataset through the same services the API uses,
// so seeded state obeys every domain rule.
func SeedDemo(ctx context.Context, h *Handler) error {
	// Technician roster. Stable IDs so reseeding updates in place.
	technicians := []rewards.Technician{
		{ID: "tech-01", Name: "Marco Reyes"},
		{ID: "tech-02", Name: "Dana Whitfield"},
		{ID: "tech-03", Name: "Sam Okafor", IsManager: true},
	}
	for _, t := range technicians {
		if err := h.Store.SaveTechnician(ctx, t); err != nil {
			return fmt.Errorf("seeding technician %s: %w", t.ID, err)
		}
	}

	// Reward catalog: windshield repair discounts.
	options := []rewards.RewardOption{
		{
			ID:             "opt-chip-free",
			Name:           "Free Rock Chip Repair",
			Description:    "One rock chip repair at no charge",
			PointsRequired: rewards.NewPoints(500),
			Type: rewards.RewardType{
				Category:      rewards.RewardFreeService,
				DiscountKind:  rewards.DiscountFree,
				DiscountValue: rewards.MustParseDecimal("100"),
			},
			Active: true,
		},
		{
			ID:             "opt-replace-10",
			Name:           "10% Off Windshield Replacement",
			Description:    "Ten percent off a full windshield replacement",
			PointsRequired: rewards.NewPoints(750),
			Type: rewards.RewardType{
				Category:      rewards.RewardRepairDiscount,
				DiscountKind:  rewards.DiscountPercentage,
				DiscountValue: rewards.MustParseDecimal("10"),
			},
			Active: true,
		},
		{
			ID:             "opt-service-25",
			Name:           "$25 Off Any Service",
			Description:    "Flat discount on any service visit",
			PointsRequired: rewards.NewPoints(400),
			Type: rewards.RewardType{
				Category:      rewards.RewardRepairDiscount,
				DiscountKind:  rewards.DiscountFixed,
				DiscountValue: rewards.MustParseDecimal("25"),
			},
			Active: true,
		},
	}
	for _, o := range options {
		if _, err := h.Catalog.Save(ctx, o); err != nil {
			return fmt.Errorf("seeding option %s: %w", o.ID, err)
		}
	}

	// A referrer with a code and two referred signups. Awards flow through
	// the referral service, so the referrer ends up with points to spend.
	referrer, err := h.Customers.Register(ctx, rewards.Customer{
		Name:  "jordan avery",
		Email: "jordan@example.com",
	})
	if err != nil {
		return fmt.Errorf("seeding referrer: %w", err)
	}
	code, _, err := h.Codes.GetOrCreate(ctx, referrer.ID)
	if err != nil {
		return fmt.Errorf("seeding referral code: %w", err)
	}

	for i, name := range []string{"priya nair", "luis mendoza"} {
		referred, err := h.Customers.Register(ctx, rewards.Customer{
			Name:  name,
			Email: fmt.Sprintf("referred%d@example.com", i+1),
		})
		if err != nil {
			return fmt.Errorf("seeding referred customer: %w", err)
		}
		if _, err := h.Referrals.Process(ctx, code.Code, referred.ID); err != nil {
			return fmt.Errorf("seeding referral: %w", err)
		}
	}

	// One live redemption so the pending queue is populated.
	if _, err := h.Workflow.Redeem(ctx, referrer.ID, "opt-chip-free"); err != nil {
		return fmt.Errorf("seeding redemption: %w", err)
	}

	return nil
}
