// customers.go - Customer registry.
//
// Thin service over CustomerStore that owns the normalization invariant:
// names are stored lowercase, emails trimmed. Identity and sessions live in
// the external identity provider; this registry only keeps the rows the
// points economy references.
package rewards

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Customers manages customer records.
type Customers struct {
	store CustomerStore
	now   func() time.Time
}

func NewCustomers(store CustomerStore) *Customers {
	return &Customers{store: store, now: time.Now}
}

// Register creates a customer. A missing ID gets one assigned.
func (c *Customers) Register(ctx context.Context, cust Customer) (*Customer, error) {
	cust.Name = strings.ToLower(strings.TrimSpace(cust.Name))
	cust.Email = strings.TrimSpace(cust.Email)
	if cust.Name == "" {
		return nil, &ValidationError{Field: "name", Message: "must not be empty"}
	}
	if cust.ID == "" {
		cust.ID = CustomerID(uuid.NewString())
	}
	if cust.CreatedAt.IsZero() {
		cust.CreatedAt = c.now().UTC()
	}
	if err := c.store.SaveCustomer(ctx, cust); err != nil {
		return nil, err
	}
	return &cust, nil
}

func (c *Customers) Get(ctx context.Context, id CustomerID) (*Customer, error) {
	return c.store.GetCustomer(ctx, id)
}

func (c *Customers) List(ctx context.Context) ([]Customer, error) {
	return c.store.ListCustomers(ctx)
}
