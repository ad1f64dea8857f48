/**
 * @description
 * This file contains the HTTP handlers for the credit-service's core API
 * endpoints: post settlement, free-post eligibility, balance, and ledger.
 * Handlers are responsible for parsing incoming requests, calling the
 * appropriate methods on the application service, and writing the HTTP
 * response. They act as the bridge between the web layer and the business
 * logic layer.
 *
 * Error status mapping is centralized in writeServiceError so every handler
 * reports the same condition the same way:
 *   insufficient credits      -> 402
 *   not the authorized party  -> 403
 *   request already processed -> 409
 *   unknown entity            -> 404
 *   invalid payload           -> 400
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/slotpost/credit-service/internal/app"
	"github.com/slotpost/credit-service/internal/domain"
	"github.com/slotpost/credit-service/internal/store"
)

// CreditHandlers holds the application service that handlers will use.
type CreditHandlers struct {
	service *app.Service
}

// NewCreditHandlers creates the handler set for the router.
func NewCreditHandlers(service *app.Service) *CreditHandlers {
	return &CreditHandlers{service: service}
}

func (h *CreditHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func (h *CreditHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps service and store errors onto HTTP statuses.
func (h *CreditHandlers) writeServiceError(w http.ResponseWriter, endpoint string, err error) {
	switch {
	case errors.Is(err, store.ErrInsufficientCredits):
		h.writeError(w, http.StatusPaymentRequired, "Insufficient credits")
	case errors.Is(err, app.ErrUnauthorized):
		h.writeError(w, http.StatusForbidden, "Not authorized for this operation")
	case errors.Is(err, store.ErrRequestAlreadyProcessed):
		h.writeError(w, http.StatusConflict, "Request has already been processed")
	case errors.Is(err, store.ErrAccountNotFound):
		h.writeError(w, http.StatusNotFound, "Account not found")
	case errors.Is(err, store.ErrGroupNotFound):
		h.writeError(w, http.StatusNotFound, "Group not found")
	case errors.Is(err, store.ErrRequestNotFound):
		h.writeError(w, http.StatusNotFound, "Request not found")
	case errors.Is(err, app.ErrGroupNotSellable):
		h.writeError(w, http.StatusUnprocessableEntity, "Group is not accepting paid posts")
	case errors.Is(err, app.ErrFreePostNotAvailable):
		h.writeError(w, http.StatusUnprocessableEntity, "Free post is not available yet")
	case errors.Is(err, app.ErrInvalidAmount):
		h.writeError(w, http.StatusBadRequest, "Amount must be a positive integer")
	case errors.Is(err, store.ErrZeroLedgerAmount):
		h.writeError(w, http.StatusBadRequest, "Amount must be non-zero")
	default:
		log.Printf("level=error component=api endpoint=%s outcome=failed err=%v", endpoint, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// requireAccountID pulls the authenticated account id set by the session
// middleware. A miss means the route was wired outside the auth group.
func (h *CreditHandlers) requireAccountID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	accountID, ok := GetAccountID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get account ID from context")
		return uuid.Nil, false
	}
	return accountID, true
}

func parseOptionalInt(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, errors.New("must be a non-negative integer")
	}
	return value, nil
}

func (h *CreditHandlers) parsePagination(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	limit, err := parseOptionalInt(r.URL.Query().Get("limit"), 50)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid limit")
		return 0, 0, false
	}
	offset, err = parseOptionalInt(r.URL.Query().Get("offset"), 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid offset")
		return 0, 0, false
	}
	return limit, offset, true
}

func (h *CreditHandlers) parseURLParamUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// SettlePostHandler schedules a paid (or free) post in a group.
func (h *CreditHandlers) SettlePostHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.requireAccountID(w, r)
	if !ok {
		return
	}

	var req domain.SettlePaidPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.GroupID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "group_id is required")
		return
	}
	if req.Content == "" {
		h.writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	post, err := h.service.SettlePost(r.Context(), accountID, req)
	if err != nil {
		h.writeServiceError(w, "settle_post", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, post)
}

// FreePostEligibilityHandler reports whether the caller can schedule a free
// post in the group right now.
func (h *CreditHandlers) FreePostEligibilityHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.requireAccountID(w, r)
	if !ok {
		return
	}
	groupID, ok := h.parseURLParamUUID(w, r, "groupID")
	if !ok {
		return
	}

	eligibility, err := h.service.EvaluateFreePostEligibility(r.Context(), groupID, accountID)
	if err != nil {
		h.writeServiceError(w, "free_post_eligibility", err)
		return
	}
	h.writeJSON(w, http.StatusOK, eligibility)
}

// GetBalanceHandler returns the caller's current credit balance.
func (h *CreditHandlers) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.requireAccountID(w, r)
	if !ok {
		return
	}

	account, err := h.service.GetBalance(r.Context(), accountID)
	if err != nil {
		h.writeServiceError(w, "get_balance", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"account_id": account.ID,
		"credits":    account.Credits,
	})
}

// ListLedgerHandler returns a page of the caller's ledger, newest first.
func (h *CreditHandlers) ListLedgerHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.requireAccountID(w, r)
	if !ok {
		return
	}
	limit, offset, ok := h.parsePagination(w, r)
	if !ok {
		return
	}

	entries, err := h.service.ListLedger(r.Context(), accountID, limit, offset)
	if err != nil {
		h.writeServiceError(w, "list_ledger", err)
		return
	}
	h.writeJSON(w, http.StatusOK, entries)
}
