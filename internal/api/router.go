/**
 * @description
 * This file sets up the HTTP router for the credit-service. It defines the
 * API endpoints, associates them with their corresponding handlers, and
 * applies any necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterConfig carries the routing-level settings the router needs.
type RouterConfig struct {
	Session          SessionAuthOptions
	InternalAPIKey   string
	WebhookPerMinute int
}

// CreditRoutes creates and returns the router for the credit service.
func CreditRoutes(h *CreditHandlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Machine-to-machine endpoints guarded by the shared secret.
	r.Group(func(r chi.Router) {
		r.Use(InternalAPIKeyMiddleware(cfg.InternalAPIKey))
		r.Post("/webhooks/payment", h.PaymentWebhookHandler(WebhookRateLimit{PerMinute: cfg.WebhookPerMinute}))
		r.Post("/adjustments", h.AdjustBalanceHandler)
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(SessionAuthMiddleware(cfg.Session))

		r.Post("/posts", h.SettlePostHandler)
		r.Get("/groups/{groupID}/free-post-eligibility", h.FreePostEligibilityHandler)

		r.Get("/balance", h.GetBalanceHandler)
		r.Get("/ledger", h.ListLedgerHandler)

		// Credit request workflow
		r.Post("/credit-requests", h.CreateCreditRequestHandler)
		r.Get("/credit-requests", h.ListCreditRequestsHandler)
		r.Get("/credit-requests/incoming", h.ListIncomingCreditRequestsHandler)
		r.Get("/credit-requests/{requestID}", h.GetCreditRequestHandler)
		r.Post("/credit-requests/{requestID}/approve", h.ApproveCreditRequestHandler)
		r.Post("/credit-requests/{requestID}/reject", h.RejectCreditRequestHandler)

		// Sticky post request workflow
		r.Post("/sticky-requests", h.CreateStickyRequestHandler)
		r.Get("/sticky-requests", h.ListStickyRequestsHandler)
		r.Get("/sticky-requests/incoming", h.ListIncomingStickyRequestsHandler)
		r.Get("/sticky-requests/{requestID}", h.GetStickyRequestHandler)
		r.Post("/sticky-requests/{requestID}/approve", h.ApproveStickyRequestHandler)
		r.Post("/sticky-requests/{requestID}/reject", h.RejectStickyRequestHandler)
		r.Post("/sticky-requests/{requestID}/fulfill", h.FulfillStickyRequestHandler)
	})

	return r
}
