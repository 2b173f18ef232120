/*
codes.go - Referral code registry

PURPOSE:
  Issues and validates referral codes. Each customer gets exactly one code,
  generated on first request from the fixed alphabet {A-Z, 0-9} and immutable
  afterwards.

COLLISION HANDLING:
  Generation draws random codes and inserts under the storage-level unique
  constraints. A code-value conflict (ErrCodeTaken) triggers another draw,
  up to MaxAttempts, after which ErrExhaustedRetries surfaces. A
  customer-conflict (ErrCustomerHasCode, two racing GetOrCreate calls)
  resolves by re-reading the winner's code. At the default
  length of 6 the code space holds 36^6 values, so the cap exists to bound
  the loop, not because saturation is expected.

SEE ALSO:
  - referral.go: Consumes validated codes
  - store.go: CodeStore contract
*/
package rewards

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// CodeAlphabet is the fixed generation alphabet: uppercase letters + digits.
const CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	DefaultCodeLength  = 6
	DefaultMaxAttempts = 20
)

// =============================================================================
// CODE REGISTRY
// =============================================================================

// CodeRegistry issues and validates referral codes. Construct with NewCodeRegistry.
type CodeRegistry struct {
	store       CodeStore
	codeLength  int
	maxAttempts int
	now         func() time.Time
}

func NewCodeRegistry(store CodeStore, codeLength, maxAttempts int) *CodeRegistry {
	if codeLength <= 0 {
		codeLength = DefaultCodeLength
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &CodeRegistry{
		store:       store,
		codeLength:  codeLength,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// GetOrCreate returns the customer's referral code, generating one on first
// request. The outcome tags whether the code was freshly issued.
func (cr *CodeRegistry) GetOrCreate(ctx context.Context, customerID CustomerID) (*ReferralCode, UpsertOutcome, error) {
	existing, err := cr.store.CodeByCustomer(ctx, customerID)
	if err == nil {
		return existing, OutcomeExisting, nil
	}
	if !errors.Is(err, ErrCodeNotFound) {
		return nil, OutcomeExisting, err
	}

	for attempt := 0; attempt < cr.maxAttempts; attempt++ {
		value, err := randomCode(cr.codeLength)
		if err != nil {
			return nil, OutcomeExisting, fmt.Errorf("generating code: %w", err)
		}

		code := ReferralCode{
			Code:       value,
			CustomerID: customerID,
			CreatedAt:  cr.now().UTC(),
		}

		err = cr.store.InsertCode(ctx, code)
		if err == nil {
			return &code, OutcomeCreated, nil
		}
		if errors.Is(err, ErrCodeTaken) {
			continue
		}
		if errors.Is(err, ErrCustomerHasCode) {
			// Lost a race against another GetOrCreate for the same
			// customer; the winner's code is the customer's code.
			won, rerr := cr.store.CodeByCustomer(ctx, customerID)
			if rerr != nil {
				return nil, OutcomeExisting, rerr
			}
			return won, OutcomeExisting, nil
		}
		return nil, OutcomeExisting, err
	}

	return nil, OutcomeExisting, fmt.Errorf("code generation gave up after %d attempts: %w",
		cr.maxAttempts, ErrExhaustedRetries)
}

// Validate performs an exact, case-sensitive lookup.
// Returns ErrCodeNotFound on a miss.
func (cr *CodeRegistry) Validate(ctx context.Context, code string) (*ReferralCode, error) {
	if code == "" {
		return nil, &ValidationError{Field: "code", Message: "must not be empty"}
	}
	return cr.store.CodeByValue(ctx, code)
}

// randomCode draws a code of length n from CodeAlphabet using crypto/rand.
func randomCode(n int) (string, error) {
	max := big.NewInt(int64(len(CodeAlphabet)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = CodeAlphabet[idx.Int64()]
	}
	return string(buf), nil
}
