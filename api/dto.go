/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in handlers and domain services, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - rewards/types.go: Domain types these project
*/
package api

import (
	"time"

	"github.com/glasslink/rewards-engine/rewards"
)

// =============================================================================
// CUSTOMERS
// =============================================================================

// CustomerDTO represents a customer in API responses.
type CustomerDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateCustomerRequest is the request to register a customer.
type CreateCustomerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// BalanceDTO is a customer's current points balance.
type BalanceDTO struct {
	CustomerID string `json:"customer_id"`
	Balance    int64  `json:"balance"`
}

// EntryDTO is one ledger entry in a customer's history.
type EntryDTO struct {
	ID          string `json:"id"`
	Delta       int64  `json:"delta"`
	Kind        string `json:"kind"`
	ReferenceID string `json:"reference_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// AdjustRequest is a manual staff points correction.
type AdjustRequest struct {
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
}

// =============================================================================
// REFERRALS
// =============================================================================

// CodeDTO is a customer's referral code. Created reports whether this call
// minted the code or found an existing one.
type CodeDTO struct {
	Code       string `json:"code"`
	CustomerID string `json:"customer_id"`
	Created    bool   `json:"created"`
	CreatedAt  string `json:"created_at"`
}

// CreateReferralRequest records that a new customer signed up with a code.
type CreateReferralRequest struct {
	Code               string `json:"code"`
	ReferredCustomerID string `json:"referred_customer_id"`
}

// ReferralDTO represents a recorded referral.
type ReferralDTO struct {
	ID                 string `json:"id"`
	Code               string `json:"code"`
	ReferrerID         string `json:"referrer_id"`
	ReferredCustomerID string `json:"referred_customer_id"`
	ReferrerAward      int64  `json:"referrer_award"`
	WelcomeBonus       int64  `json:"welcome_bonus"`
	CreatedAt          string `json:"created_at"`
}

// =============================================================================
// REWARD CATALOG
// =============================================================================

// RewardOptionDTO represents a catalog entry.
type RewardOptionDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	PointsRequired int64  `json:"points_required"`
	Category       string `json:"category,omitempty"`
	DiscountKind   string `json:"discount_kind,omitempty"`
	DiscountValue  string `json:"discount_value,omitempty"`
	Active         bool   `json:"active"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// SaveRewardOptionRequest creates or updates a catalog entry. Active is
// optional: omitted means active on create, unchanged on update.
type SaveRewardOptionRequest struct {
	ID             string `json:"id,omitempty"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	PointsRequired int64  `json:"points_required"`
	Category       string `json:"category"`
	DiscountKind   string `json:"discount_kind"`
	DiscountValue  string `json:"discount_value"`
	Active         *bool  `json:"active,omitempty"`
}

// =============================================================================
// REDEMPTIONS
// =============================================================================

// RedemptionDTO represents a redemption and its workflow state.
type RedemptionDTO struct {
	ID           string  `json:"id"`
	CustomerID   string  `json:"customer_id"`
	OptionID     string  `json:"option_id"`
	OptionName   string  `json:"option_name"`
	PointsSpent  int64   `json:"points_spent"`
	Status       string  `json:"status"`
	TechnicianID *string `json:"technician_id,omitempty"`
	ProcessedBy  *string `json:"processed_by,omitempty"`
	Notes        string  `json:"notes,omitempty"`
	CreatedAt    string  `json:"created_at"`
	ProcessedAt  *string `json:"processed_at,omitempty"`
	FulfilledAt  *string `json:"fulfilled_at,omitempty"`
}

// RedeemRequest spends points on a reward option.
type RedeemRequest struct {
	CustomerID string `json:"customer_id"`
	OptionID   string `json:"option_id"`
}

// FulfillRequest marks a redemption done by a technician.
type FulfillRequest struct {
	TechnicianID string `json:"technician_id"`
	Notes        string `json:"notes"`
}

// RejectRequest declines a redemption.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// =============================================================================
// TECHNICIANS
// =============================================================================

// TechnicianDTO represents a technician in API responses.
type TechnicianDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsManager bool   `json:"is_manager"`
}

// SaveTechnicianRequest adds or updates a roster entry.
type SaveTechnicianRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsManager bool   `json:"is_manager"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toCustomerDTO(c rewards.Customer) CustomerDTO {
	return CustomerDTO{
		ID:        string(c.ID),
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}
}

func toEntryDTO(e rewards.Entry) EntryDTO {
	return EntryDTO{
		ID:          string(e.ID),
		Delta:       e.Delta.Int64(),
		Kind:        string(e.Kind),
		ReferenceID: e.ReferenceID,
		Reason:      e.Reason,
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
	}
}

func toReferralDTO(r rewards.Referral) ReferralDTO {
	return ReferralDTO{
		ID:                 r.ID,
		Code:               r.Code,
		ReferrerID:         string(r.ReferrerID),
		ReferredCustomerID: string(r.ReferredCustomerID),
		ReferrerAward:      r.ReferrerAward.Int64(),
		WelcomeBonus:       r.WelcomeBonus.Int64(),
		CreatedAt:          r.CreatedAt.Format(time.RFC3339),
	}
}

func toOptionDTO(o rewards.RewardOption) RewardOptionDTO {
	return RewardOptionDTO{
		ID:             o.ID,
		Name:           o.Name,
		Description:    o.Description,
		PointsRequired: o.PointsRequired.Int64(),
		Category:       string(o.Type.Category),
		DiscountKind:   string(o.Type.DiscountKind),
		DiscountValue:  o.Type.DiscountValue.String(),
		Active:         o.Active,
		CreatedAt:      o.CreatedAt.Format(time.RFC3339),
	}
}

func toRedemptionDTO(r rewards.Redemption) RedemptionDTO {
	dto := RedemptionDTO{
		ID:          string(r.ID),
		CustomerID:  string(r.CustomerID),
		OptionID:    r.OptionID,
		OptionName:  r.OptionName,
		PointsSpent: r.PointsSpent.Int64(),
		Status:      string(r.Status),
		Notes:       r.Notes,
		CreatedAt:   r.CreatedAt.Format(time.RFC3339),
	}
	if r.TechnicianID != nil {
		dto.TechnicianID = strPtr(string(*r.TechnicianID))
	}
	if r.ProcessedBy != nil {
		dto.ProcessedBy = strPtr(string(*r.ProcessedBy))
	}
	if r.ProcessedAt != nil {
		dto.ProcessedAt = strPtr(r.ProcessedAt.Format(time.RFC3339))
	}
	if r.FulfilledAt != nil {
		dto.FulfilledAt = strPtr(r.FulfilledAt.Format(time.RFC3339))
	}
	return dto
}

func toTechnicianDTO(t rewards.Technician) TechnicianDTO {
	return TechnicianDTO{
		ID:        string(t.ID),
		Name:      t.Name,
		IsManager: t.IsManager,
	}
}

func strPtr(s string) *string {
	return &s
}
