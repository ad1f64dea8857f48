/**
 * @description
 * HTTP handlers for the credit-request and sticky-post-request workflows.
 * Listing endpoints accept a `role=owner` query parameter so an account can
 * see either the requests it opened or the ones addressed to it.
 */

package api

import (
	"encoding/json"
	"net/http"

	"github.com/slotpost/credit-service/internal/domain"
)

// CreateCreditRequestHandler opens a new credit request.
func (h *CreditHandlers) CreateCreditRequestHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.requireAccountID(w, r)
	if !ok {
		return
	}

	var payload domain.CreateCreditRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req, err := h.service.CreateCreditRequest(r.Context(), accountID, payload)
	if err != nil {
		h.writeServiceError(w, "create_credit_request", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, req)
}

// GetCreditRequestHandler returns one credit request to either party.
func (h *CreditHandlers) GetCreditRequestHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.requireAccountID(w, r)
	if !ok {
		return
	}
	requestID, ok := h.parseURLParamUUID(w, r, "requestID")
	if !ok {
		return
	}

	req, err := h.service.GetCreditRequest(r.Context(), accountID, requestID)
	if err != nil {
		h.writeServiceError(w, "get_credit_request", err)
		return
	}
	h.writeJSON(w, http.StatusOK, req)
}

// ListCreditRequestsHandler lists the caller's credit requests.
func (h *CreditHandlers) ListCreditRequestsHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.requireAccountID(w, r)
	if !ok {
		return
	}
	limit, offset, ok := h.parsePagination(w, r)
	if !ok {
		return
	}
	asOwner := r.URL.Query().Get("role") == "owner"

	requests, err := h.service.ListCreditRequests(r.Context(), accountID, asOwner, limit, offset)
	if err != nil {
		h.writeServiceError(w, "list_credit_requests", err)
		return
	}
	h.writeJSON(w, http.StatusOK, requests)
}

// ListIncomingCreditRequestsHandler lists requests addressed to the caller
// as an owner, regardless of the role query parameter.
func (h *CreditHandlers) ListIncomingCreditRequestsHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.requireAccountID(w, r)
	if !ok {
		return
	}
	limit, offset, ok := h.parsePagination(w, r)
	if !ok {
		return
	}

	requests, err := h.service.ListCreditRequests(r.Context(), accountID, true, limit, offset)
	if err != nil {
		h.writeServiceError(w, "list_incoming_credit_requests", err)
		return
	}
	h.writeJSON(w, http.StatusOK, requests)
}

func (h *CreditHandlers) decodeProcessCreditPayload(w http.ResponseWriter, r *http.Request) (domain.ProcessCreditRequestPayload, bool) {
	var payload domain.ProcessCreditRequestPayload
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid request body")
			return payload, false
		}
	}
	return payload, true
}

// ApproveCreditRequestHandler grants the requested (or overridden) amount.
func (h *CreditHandlers) ApproveCreditRequestHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.requireAccountID(w, r)
	if !ok {
		return
	}
	requestID, ok := h.parseURLParamUUID(w, r, "requestID")
	if !ok {
		return
	}
	payload, ok := h.decodeProcessCreditPayload(w, r)
	if !ok {
		return
	}

	req, err := h.service.ApproveCreditRequest(r.Context(), accountID, requestID, payload)
	if err != nil {
		h.writeServiceError(w, "approve_credit_request", err)
		return
	}
	h.writeJSON(w, http.StatusOK, req)
}

// RejectCreditRequestHandler declines a pending credit request.
func (h *CreditHandlers) RejectCreditRequestHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.requireAccountID(w, r)
	if !ok {
		return
	}
	requestID, ok := h.parseURLParamUUID(w, r, "requestID")
	if !ok {
		return
	}
	payload, ok := h.decodeProcessCreditPayload(w, r)
	if !ok {
		return
	}

	req, err := h.service.RejectCreditRequest(r.Context(), accountID, requestID, payload)
	if err != nil {
		h.writeServiceError(w, "reject_credit_request", err)
		return
	}
	h.writeJSON(w, http.StatusOK, req)
}

// CreateStickyRequestHandler opens a prepaid sticky-post request.
func (h *CreditHandlers) CreateStickyRequestHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.requireAccountID(w, r)
	if !ok {
		return
	}

	var payload domain.CreateStickyRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req, err := h.service.CreateStickyRequest(r.Context(), accountID, payload)
	if err != nil {
		h.writeServiceError(w, "create_sticky_request", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, req)
}

// GetStickyRequestHandler returns one sticky request to either party.
func (h *CreditHandlers) GetStickyRequestHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.requireAccountID(w, r)
	if !ok {
		return
	}
	requestID, ok := h.parseURLParamUUID(w, r, "requestID")
	if !ok {
		return
	}

	req, err := h.service.GetStickyRequest(r.Context(), accountID, requestID)
	if err != nil {
		h.writeServiceError(w, "get_sticky_request", err)
		return
	}
	h.writeJSON(w, http.StatusOK, req)
}

// ListStickyRequestsHandler lists the caller's sticky requests.
func (h *CreditHandlers) ListStickyRequestsHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.requireAccountID(w, r)
	if !ok {
		return
	}
	limit, offset, ok := h.parsePagination(w, r)
	if !ok {
		return
	}
	asOwner := r.URL.Query().Get("role") == "owner"

	requests, err := h.service.ListStickyRequests(r.Context(), accountID, asOwner, limit, offset)
	if err != nil {
		h.writeServiceError(w, "list_sticky_requests", err)
		return
	}
	h.writeJSON(w, http.StatusOK, requests)
}

// ListIncomingStickyRequestsHandler lists sticky requests targeting the
// caller's groups.
func (h *CreditHandlers) ListIncomingStickyRequestsHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.requireAccountID(w, r)
	if !ok {
		return
	}
	limit, offset, ok := h.parsePagination(w, r)
	if !ok {
		return
	}

	requests, err := h.service.ListStickyRequests(r.Context(), accountID, true, limit, offset)
	if err != nil {
		h.writeServiceError(w, "list_incoming_sticky_requests", err)
		return
	}
	h.writeJSON(w, http.StatusOK, requests)
}

// ApproveStickyRequestHandler accepts a pending sticky request.
func (h *CreditHandlers) ApproveStickyRequestHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.requireAccountID(w, r)
	if !ok {
		return
	}
	requestID, ok := h.parseURLParamUUID(w, r, "requestID")
	if !ok {
		return
	}

	req, err := h.service.ApproveStickyRequest(r.Context(), accountID, requestID)
	if err != nil {
		h.writeServiceError(w, "approve_sticky_request", err)
		return
	}
	h.writeJSON(w, http.StatusOK, req)
}

// RejectStickyRequestHandler declines a pending sticky request and refunds it.
func (h *CreditHandlers) RejectStickyRequestHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.requireAccountID(w, r)
	if !ok {
		return
	}
	requestID, ok := h.parseURLParamUUID(w, r, "requestID")
	if !ok {
		return
	}

	var payload domain.ProcessStickyRequestPayload
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	req, err := h.service.RejectStickyRequest(r.Context(), accountID, requestID, payload)
	if err != nil {
		h.writeServiceError(w, "reject_sticky_request", err)
		return
	}
	h.writeJSON(w, http.StatusOK, req)
}

// FulfillStickyRequestHandler marks an approved sticky request fulfilled.
func (h *CreditHandlers) FulfillStickyRequestHandler(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.requireAccountID(w, r)
	if !ok {
		return
	}
	requestID, ok := h.parseURLParamUUID(w, r, "requestID")
	if !ok {
		return
	}

	req, err := h.service.FulfillStickyRequest(r.Context(), accountID, requestID)
	if err != nil {
		h.writeServiceError(w, "fulfill_sticky_request", err)
		return
	}
	h.writeJSON(w, http.StatusOK, req)
}
