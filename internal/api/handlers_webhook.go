/**
 * @description
 * Handlers for the machine-to-machine surface: the payment provider webhook
 * and support balance adjustments. Both routes are guarded by the internal
 * API key middleware. The webhook handler adds per-provider rate limiting
 * and delegates idempotent crediting to the service. Duplicate deliveries
 * get a 200 so the provider stops retrying.
 */

package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/slotpost/credit-service/internal/domain"
)

// WebhookRateLimit configures the per-provider delivery budget.
type WebhookRateLimit struct {
	PerMinute int
}

// PaymentWebhookHandler records one completed purchase per external event id.
func (h *CreditHandlers) PaymentWebhookHandler(limits WebhookRateLimit) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload domain.PaymentCompletedPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if payload.EventID == "" {
			h.writeError(w, http.StatusBadRequest, "event_id is required")
			return
		}
		if payload.AccountID == uuid.Nil {
			h.writeError(w, http.StatusBadRequest, "account_id is required")
			return
		}

		provider := payload.Provider
		if provider == "" {
			provider = "unknown"
		}
		allowed, retryAfter := h.service.CheckWebhookRateLimit(r.Context(), provider, limits.PerMinute, time.Minute)
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			h.writeError(w, http.StatusTooManyRequests, "Too many webhook deliveries")
			return
		}

		result, err := h.service.ProcessPaymentWebhook(r.Context(), payload)
		if err != nil {
			h.writeServiceError(w, "payment_webhook", err)
			return
		}
		status := http.StatusCreated
		if result.Duplicate {
			status = http.StatusOK
		}
		h.writeJSON(w, status, result)
	}
}

type adjustBalancePayload struct {
	AccountID uuid.UUID `json:"account_id"`
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason"`
}

// AdjustBalanceHandler applies a signed manual correction to one account.
// Support tooling only; the amount may be negative but never zero, and a
// debit past zero is rejected.
func (h *CreditHandlers) AdjustBalanceHandler(w http.ResponseWriter, r *http.Request) {
	var payload adjustBalancePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if payload.AccountID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	entry, err := h.service.AdjustBalance(r.Context(), payload.AccountID, payload.Amount, payload.Reason)
	if err != nil {
		h.writeServiceError(w, "adjust_balance", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, entry)
}
