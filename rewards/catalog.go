/*
catalog.go - Reward catalog management

Staff create and edit reward options; customers only ever see the active
subset. Options are soft-deactivated so historical redemptions keep a valid
reference, and each redemption snapshots the cost it paid anyway.
*/
package rewards

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Catalog manages the set of redeemable reward options.
type Catalog struct {
	store CatalogStore
	now   func() time.Time
}

func NewCatalog(store CatalogStore) *Catalog {
	return &Catalog{store: store, now: time.Now}
}

// ActiveOptions returns what customers can currently redeem.
func (c *Catalog) ActiveOptions(ctx context.Context) ([]RewardOption, error) {
	return c.store.ListOptions(ctx, true)
}

// AllOptions returns the full catalog, inactive options included.
func (c *Catalog) AllOptions(ctx context.Context) ([]RewardOption, error) {
	return c.store.ListOptions(ctx, false)
}

// Get returns an option by ID regardless of active flag.
func (c *Catalog) Get(ctx context.Context, id string) (*RewardOption, error) {
	return c.store.GetOption(ctx, id)
}

// Save validates and upserts an option. A missing ID gets one assigned.
func (c *Catalog) Save(ctx context.Context, o RewardOption) (*RewardOption, error) {
	if o.Name == "" {
		return nil, &ValidationError{Field: "name", Message: "must not be empty"}
	}
	if !o.PointsRequired.IsPositive() {
		return nil, &ValidationError{Field: "points_required", Message: "must be positive"}
	}
	now := c.now().UTC()
	if o.ID == "" {
		o.ID = uuid.NewString()
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	if err := c.store.SaveOption(ctx, o); err != nil {
		return nil, err
	}
	return &o, nil
}

// Deactivate soft-deletes an option: it stops being offered but stays
// resolvable for existing redemptions.
func (c *Catalog) Deactivate(ctx context.Context, id string) (*RewardOption, error) {
	o, err := c.store.GetOption(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Active = false
	o.UpdatedAt = c.now().UTC()
	if err := c.store.SaveOption(ctx, *o); err != nil {
		return nil, err
	}
	return o, nil
}
