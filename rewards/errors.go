/*
errors.go - Centralized error types for the rewards core

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers (the API layer in particular) classify errors with the
  predicates at the bottom instead of matching strings.

ERROR CATEGORIES:
  1. Not-found errors     - Unknown code/option/redemption/customer
  2. Business rules       - Self referral, duplicate referral,
                            insufficient points, invalid transition
  3. Resource exhaustion  - Code generation retry cap reached
  4. Validation errors    - Malformed input before any store access
  5. Dependency failures  - Notification / repair subsystem calls; these
                            are logged and suppressed, never propagated
                            out of a core transaction

USAGE:
  if errors.Is(err, rewards.ErrInsufficientPoints) {
      var ipe *rewards.InsufficientPointsError
      errors.As(err, &ipe)
      // ipe.Required, ipe.Available
  }

SEE ALSO:
  - redemption.go: Produces transition and balance errors
  - referral.go: Produces referral rule errors
*/
package rewards

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrCustomerNotFound is returned when a referenced customer doesn't exist.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrCodeNotFound is returned on an exact-match lookup miss. Codes are
	// case-sensitive; "ab12cd" does not match "AB12CD".
	ErrCodeNotFound = errors.New("referral code not found")

	// ErrOptionNotFound is returned for an unknown or inactive reward option.
	ErrOptionNotFound = errors.New("reward option not found")

	// ErrRedemptionNotFound is returned when a redemption ID doesn't resolve.
	ErrRedemptionNotFound = errors.New("redemption not found")

	// ErrTechnicianNotFound is returned when a technician ID doesn't resolve.
	ErrTechnicianNotFound = errors.New("technician not found")

	// ErrSelfReferral is returned when a code's owner is the referred customer.
	ErrSelfReferral = errors.New("customers cannot refer themselves")

	// ErrDuplicateReferral is returned when the (code, referred customer)
	// pair is already recorded. Expected on retries; no further credits.
	ErrDuplicateReferral = errors.New("referral already recorded")

	// ErrInsufficientPoints is returned when a redemption would overdraw
	// the account.
	ErrInsufficientPoints = errors.New("insufficient points")

	// ErrInvalidTransition is returned for a status change the redemption
	// state machine does not allow.
	ErrInvalidTransition = errors.New("invalid redemption transition")

	// ErrExhaustedRetries is returned when code generation cannot find a
	// collision-free value within the configured attempt cap.
	ErrExhaustedRetries = errors.New("referral code space exhausted")

	// ErrCodeTaken is the storage-level signal that a generated code
	// collided with an existing one. The registry retries on it.
	ErrCodeTaken = errors.New("referral code already issued")

	// ErrCustomerHasCode is the storage-level signal that the customer
	// already owns a code. Raised when two GetOrCreate calls race: the
	// loser re-reads the winner's code instead of retrying generation.
	ErrCustomerHasCode = errors.New("customer already has a referral code")

	// ErrValidation is returned for malformed input before any store access.
	ErrValidation = errors.New("invalid input")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientPointsError reports required vs. available points.
type InsufficientPointsError struct {
	CustomerID CustomerID
	Required   Points
	Available  Points
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: %s required, %s available",
		e.Required, e.Available)
}

func (e *InsufficientPointsError) Unwrap() error {
	return ErrInsufficientPoints
}

// InvalidTransitionError reports the attempted status change.
type InvalidTransitionError struct {
	RedemptionID RedemptionID
	From         RedemptionStatus
	To           RedemptionStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("redemption %s: cannot move from %s to %s",
		e.RedemptionID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrCodeNotFound) ||
		errors.Is(err, ErrOptionNotFound) ||
		errors.Is(err, ErrRedemptionNotFound) ||
		errors.Is(err, ErrTechnicianNotFound)
}

// IsBusinessRule returns true for rule violations the caller can act on.
func IsBusinessRule(err error) bool {
	return errors.Is(err, ErrSelfReferral) ||
		errors.Is(err, ErrDuplicateReferral) ||
		errors.Is(err, ErrInsufficientPoints) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsValidation returns true for malformed client input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
