/*
handlers.go - HTTP API handlers for the referral and rewards engine

PURPOSE:
  Exposes the rewards engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Customers:
    GET    /api/customers                    List all customers
    POST   /api/customers                    Register customer
    GET    /api/customers/{id}               Get customer details
    GET    /api/customers/{id}/balance       Current points balance
    GET    /api/customers/{id}/ledger        Ledger history
    GET    /api/customers/{id}/code          Get-or-create referral code
    GET    /api/customers/{id}/redemptions   Customer's redemptions
    POST   /api/customers/{id}/adjustments   Manual points adjustment

  Referrals:
    POST   /api/referrals                    Record a referral signup
    GET    /api/codes/{code}                 Validate a referral code
    GET    /api/codes/{code}/referrals       Referrals made with a code

  Rewards:
    GET    /api/rewards                      Active catalog (?all=true for everything)
    POST   /api/rewards                      Create/update option
    DELETE /api/rewards/{id}                 Deactivate option

  Redemptions:
    POST   /api/redemptions                  Redeem points
    GET    /api/redemptions/pending          Pending queue
    GET    /api/redemptions/{id}             Get one redemption
    POST   /api/redemptions/{id}/fulfill     Mark fulfilled
    POST   /api/redemptions/{id}/reject      Reject (refunds by policy)

  Technicians:
    GET    /api/technicians                  Roster
    POST   /api/technicians                  Add/update roster entry

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Business rule conflicts (insufficient points, duplicates,
         invalid workflow transitions)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/glasslink/rewards-engine/rewards"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     rewards.Store
	Customers *rewards.Customers
	Codes     *rewards.CodeRegistry
	Referrals *rewards.ReferralService
	Ledger    *rewards.Ledger
	Catalog   *rewards.Catalog
	Workflow  *rewards.Workflow
}

// NewHandler wires the handler from an already-constructed service set.
func NewHandler(store rewards.Store, customers *rewards.Customers, codes *rewards.CodeRegistry,
	referrals *rewards.ReferralService, ledger *rewards.Ledger, catalog *rewards.Catalog,
	workflow *rewards.Workflow) *Handler {
	return &Handler{
		Store:     store,
		Customers: customers,
		Codes:     codes,
		Referrals: referrals,
		Ledger:    ledger,
		Catalog:   catalog,
		Workflow:  workflow,
	}
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// ListCustomers returns all customers.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.Customers.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list customers", err)
		return
	}

	dtos := make([]CustomerDTO, len(customers))
	for i, c := range customers {
		dtos[i] = toCustomerDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCustomer returns a single customer.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id := rewards.CustomerID(chi.URLParam(r, "id"))

	cust, err := h.Customers.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get customer", err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(*cust))
}

// CreateCustomer registers a new customer.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	cust, err := h.Customers.Register(r.Context(), rewards.Customer{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to create customer", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(*cust))
}

// =============================================================================
// BALANCE & LEDGER HANDLERS
// =============================================================================

// GetBalance returns the customer's current points balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := rewards.CustomerID(chi.URLParam(r, "id"))

	if _, err := h.Customers.Get(r.Context(), id); err != nil {
		h.writeDomainError(w, "Failed to get customer", err)
		return
	}

	balance, err := h.Ledger.Balance(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{
		CustomerID: string(id),
		Balance:    balance.Int64(),
	})
}

// GetLedger returns the customer's full entry history, oldest first.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	id := rewards.CustomerID(chi.URLParam(r, "id"))

	entries, err := h.Ledger.History(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get ledger", err)
		return
	}

	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAdjustment applies a manual staff points correction.
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	id := rewards.CustomerID(chi.URLParam(r, "id"))

	var req AdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Delta == 0 {
		writeError(w, http.StatusBadRequest, "Adjustment delta must not be zero", nil)
		return
	}

	if _, err := h.Customers.Get(r.Context(), id); err != nil {
		h.writeDomainError(w, "Failed to get customer", err)
		return
	}

	entry, err := h.Ledger.Adjust(r.Context(), id, rewards.NewPoints(req.Delta), req.Reason)
	if err != nil {
		h.writeDomainError(w, "Failed to apply adjustment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

// =============================================================================
// REFERRAL CODE HANDLERS
// =============================================================================

// GetOrCreateCode returns the customer's referral code, minting one on first call.
func (h *Handler) GetOrCreateCode(w http.ResponseWriter, r *http.Request) {
	id := rewards.CustomerID(chi.URLParam(r, "id"))

	if _, err := h.Customers.Get(r.Context(), id); err != nil {
		h.writeDomainError(w, "Failed to get customer", err)
		return
	}

	code, outcome, err := h.Codes.GetOrCreate(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get referral code", err)
		return
	}

	status := http.StatusOK
	if outcome == rewards.OutcomeCreated {
		status = http.StatusCreated
	}
	writeJSON(w, status, CodeDTO{
		Code:       code.Code,
		CustomerID: string(code.CustomerID),
		Created:    outcome == rewards.OutcomeCreated,
		CreatedAt:  code.CreatedAt.Format(time.RFC3339),
	})
}

// ValidateCode checks a code and returns its owner. Lookup is case-sensitive.
func (h *Handler) ValidateCode(w http.ResponseWriter, r *http.Request) {
	value := chi.URLParam(r, "code")

	code, err := h.Codes.Validate(r.Context(), value)
	if err != nil {
		h.writeDomainError(w, "Failed to validate code", err)
		return
	}
	writeJSON(w, http.StatusOK, CodeDTO{
		Code:       code.Code,
		CustomerID: string(code.CustomerID),
		CreatedAt:  code.CreatedAt.Format(time.RFC3339),
	})
}

// ListCodeReferrals returns the referrals recorded against a code.
func (h *Handler) ListCodeReferrals(w http.ResponseWriter, r *http.Request) {
	value := chi.URLParam(r, "code")

	if _, err := h.Codes.Validate(r.Context(), value); err != nil {
		h.writeDomainError(w, "Failed to validate code", err)
		return
	}

	referrals, err := h.Store.ListReferralsByCode(r.Context(), value)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list referrals", err)
		return
	}

	dtos := make([]ReferralDTO, len(referrals))
	for i, ref := range referrals {
		dtos[i] = toReferralDTO(ref)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateReferral records a referral signup and credits both parties.
func (h *Handler) CreateReferral(w http.ResponseWriter, r *http.Request) {
	var req CreateReferralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Code) == "" || strings.TrimSpace(req.ReferredCustomerID) == "" {
		writeError(w, http.StatusBadRequest, "code and referred_customer_id are required", nil)
		return
	}

	referral, err := h.Referrals.Process(r.Context(), req.Code, rewards.CustomerID(req.ReferredCustomerID))
	if err != nil {
		h.writeDomainError(w, "Failed to process referral", err)
		return
	}
	writeJSON(w, http.StatusCreated, toReferralDTO(*referral))
}

// =============================================================================
// REWARD CATALOG HANDLERS
// =============================================================================

// ListRewards returns the catalog. Active options only unless ?all=true.
func (h *Handler) ListRewards(w http.ResponseWriter, r *http.Request) {
	var options []rewards.RewardOption
	var err error
	if r.URL.Query().Get("all") == "true" {
		options, err = h.Catalog.AllOptions(r.Context())
	} else {
		options, err = h.Catalog.ActiveOptions(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rewards", err)
		return
	}

	dtos := make([]RewardOptionDTO, len(options))
	for i, o := range options {
		dtos[i] = toOptionDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveReward creates or updates a catalog option.
func (h *Handler) SaveReward(w http.ResponseWriter, r *http.Request) {
	var req SaveRewardOptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	discountValue := decimal.Zero
	if req.DiscountValue != "" {
		var err error
		discountValue, err = decimal.NewFromString(req.DiscountValue)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid discount_value", err)
			return
		}
	}

	// Omitting active keeps a deactivated option deactivated on update;
	// new options default to active.
	active := true
	if req.Active != nil {
		active = *req.Active
	} else if req.ID != "" {
		if existing, err := h.Catalog.Get(r.Context(), req.ID); err == nil {
			active = existing.Active
		}
	}

	option, err := h.Catalog.Save(r.Context(), rewards.RewardOption{
		ID:             req.ID,
		Name:           req.Name,
		Description:    req.Description,
		PointsRequired: rewards.NewPoints(req.PointsRequired),
		Type: rewards.RewardType{
			Category:      rewards.RewardCategory(req.Category),
			DiscountKind:  rewards.DiscountKind(req.DiscountKind),
			DiscountValue: discountValue,
		},
		Active: active,
	})
	if err != nil {
		h.writeDomainError(w, "Failed to save reward", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOptionDTO(*option))
}

// DeactivateReward retires a catalog option. Existing redemptions keep their
// recorded points cost.
func (h *Handler) DeactivateReward(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	option, err := h.Catalog.Deactivate(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to deactivate reward", err)
		return
	}
	writeJSON(w, http.StatusOK, toOptionDTO(*option))
}

// =============================================================================
// REDEMPTION HANDLERS
// =============================================================================

// CreateRedemption spends points on a reward option.
func (h *Handler) CreateRedemption(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	redemption, err := h.Workflow.Redeem(r.Context(),
		rewards.CustomerID(req.CustomerID), req.OptionID)
	if err != nil {
		h.writeDomainError(w, "Failed to redeem", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRedemptionDTO(*redemption))
}

// GetRedemption returns one redemption.
func (h *Handler) GetRedemption(w http.ResponseWriter, r *http.Request) {
	id := rewards.RedemptionID(chi.URLParam(r, "id"))

	redemption, err := h.Store.GetRedemption(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to get redemption", err)
		return
	}
	writeJSON(w, http.StatusOK, toRedemptionDTO(*redemption))
}

// ListPendingRedemptions returns the staff work queue.
func (h *Handler) ListPendingRedemptions(w http.ResponseWriter, r *http.Request) {
	pending, err := h.Store.ListRedemptionsByStatus(r.Context(), rewards.RedemptionPending)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list redemptions", err)
		return
	}
	assigned, err := h.Store.ListRedemptionsByStatus(r.Context(), rewards.RedemptionAssigned)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list redemptions", err)
		return
	}

	dtos := make([]RedemptionDTO, 0, len(pending)+len(assigned))
	for _, red := range pending {
		dtos = append(dtos, toRedemptionDTO(red))
	}
	for _, red := range assigned {
		dtos = append(dtos, toRedemptionDTO(red))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListCustomerRedemptions returns a customer's redemption history.
func (h *Handler) ListCustomerRedemptions(w http.ResponseWriter, r *http.Request) {
	id := rewards.CustomerID(chi.URLParam(r, "id"))

	redemptions, err := h.Store.ListRedemptionsByCustomer(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list redemptions", err)
		return
	}

	dtos := make([]RedemptionDTO, len(redemptions))
	for i, red := range redemptions {
		dtos[i] = toRedemptionDTO(red)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// FulfillRedemption marks a redemption fulfilled by a technician.
func (h *Handler) FulfillRedemption(w http.ResponseWriter, r *http.Request) {
	id := rewards.RedemptionID(chi.URLParam(r, "id"))

	var req FulfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.TechnicianID == "" {
		writeError(w, http.StatusBadRequest, "technician_id is required", nil)
		return
	}

	redemption, err := h.Workflow.Fulfill(r.Context(), id,
		rewards.TechnicianID(req.TechnicianID), req.Notes)
	if err != nil {
		h.writeDomainError(w, "Failed to fulfill redemption", err)
		return
	}
	writeJSON(w, http.StatusOK, toRedemptionDTO(*redemption))
}

// RejectRedemption declines a redemption; points are refunded by policy.
func (h *Handler) RejectRedemption(w http.ResponseWriter, r *http.Request) {
	id := rewards.RedemptionID(chi.URLParam(r, "id"))

	var req RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	redemption, err := h.Workflow.Reject(r.Context(), id, req.Reason)
	if err != nil {
		h.writeDomainError(w, "Failed to reject redemption", err)
		return
	}
	writeJSON(w, http.StatusOK, toRedemptionDTO(*redemption))
}

// =============================================================================
// TECHNICIAN HANDLERS
// =============================================================================

// ListTechnicians returns the roster.
func (h *Handler) ListTechnicians(w http.ResponseWriter, r *http.Request) {
	technicians, err := h.Store.ListTechnicians(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list technicians", err)
		return
	}

	dtos := make([]TechnicianDTO, len(technicians))
	for i, t := range technicians {
		dtos[i] = toTechnicianDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveTechnician adds or updates a roster entry.
func (h *Handler) SaveTechnician(w http.ResponseWriter, r *http.Request) {
	var req SaveTechnicianRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	if err := h.Store.SaveTechnician(r.Context(), rewards.Technician{
		ID:        rewards.TechnicianID(req.ID),
		Name:      req.Name,
		IsManager: req.IsManager,
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save technician", err)
		return
	}
	writeJSON(w, http.StatusCreated, TechnicianDTO{
		ID:        req.ID,
		Name:      req.Name,
		IsManager: req.IsManager,
	})
}

// =============================================================================
// HELPERS
// =============================================================================


func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors onto HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case rewards.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case rewards.IsValidation(err):
		writeError(w, http.StatusBadRequest, message, err)
	case rewards.IsBusinessRule(err):
		writeError(w, http.StatusConflict, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
