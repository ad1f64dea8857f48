/**
 * @description
 * Payment webhook processing. The payment provider retries deliveries until
 * it sees a 2xx, so the same completed checkout arrives more than once in
 * normal operation. Idempotency is layered:
 *
 *  1. A Redis marker per event id short-circuits obvious replays cheaply. It
 *     is read before touching the database but written only after the event
 *     has been durably recorded, so a delivery that failed mid-transaction
 *     is retried in full rather than swallowed.
 *  2. The unique insert into webhook_events inside the crediting transaction
 *     is the authoritative guarantee: one event id credits at most once,
 *     regardless of what Redis says or whether Redis is up at all.
 *
 * A duplicate is not an error. The handler reports it as success with a
 * duplicate marker so the provider stops retrying.
 */

package app

import (
	"context"
	"log"
	"time"

	"github.com/slotpost/credit-service/internal/domain"
	"github.com/slotpost/credit-service/pkg/rabbitmq"
)

// WebhookResult is the outcome of one webhook delivery.
type WebhookResult struct {
	Entry     *domain.LedgerEntry `json:"entry,omitempty"`
	Duplicate bool                `json:"duplicate"`
}

// ProcessPaymentWebhook credits a completed purchase exactly once per
// external event id.
func (s *Service) ProcessPaymentWebhook(ctx context.Context, payload domain.PaymentCompletedPayload) (*WebhookResult, error) {
	if err := requirePositiveAmount(payload.Credits); err != nil {
		return nil, err
	}

	if seen, err := s.webhookGuard.EventSeen(ctx, payload.EventID); err != nil {
		// Redis being down must not drop a payment; the database dedupe below
		// still holds.
		log.Printf("level=warn component=service msg=\"webhook dedupe fast path unavailable\" event_id=%s err=%v", payload.EventID, err)
	} else if seen {
		log.Printf("level=info component=service msg=\"duplicate webhook short-circuited\" event_id=%s", payload.EventID)
		return &WebhookResult{Duplicate: true}, nil
	}

	entry, duplicate, err := s.repo.RecordPurchaseWebhook(ctx, domain.WebhookEvent{
		EventID:   payload.EventID,
		Provider:  payload.Provider,
		AccountID: payload.AccountID,
		Credits:   payload.Credits,
	})
	if err != nil {
		return nil, err
	}

	// The marker is set only after the event row is durably in the database.
	// Setting it earlier would let a failed delivery's retry be swallowed by
	// the fast path before the purchase was ever credited.
	if err := s.webhookGuard.MarkEventSeen(ctx, payload.EventID); err != nil {
		log.Printf("level=warn component=service msg=\"webhook dedupe marker not set\" event_id=%s err=%v", payload.EventID, err)
	}

	if duplicate {
		log.Printf("level=info component=service msg=\"duplicate webhook ignored\" event_id=%s", payload.EventID)
		return &WebhookResult{Duplicate: true}, nil
	}

	log.Printf("level=info component=service msg=\"purchase credited\" event_id=%s account_id=%s credits=%d", payload.EventID, payload.AccountID, payload.Credits)
	s.publishCreditsMoved(ctx, rabbitmq.RoutingKeyCreditsPurchased, payload.AccountID, payload.Credits, "credit purchase completed")
	return &WebhookResult{Entry: entry}, nil
}

// CheckWebhookRateLimit applies the per-provider delivery rate limit. It is
// called by the webhook handler before the body is parsed. Fails open: a
// Redis error never blocks a real payment.
func (s *Service) CheckWebhookRateLimit(ctx context.Context, provider string, limit int, window time.Duration) (allowed bool, retryAfterSeconds int) {
	count, retryAfter, err := s.webhookGuard.ConsumeRateLimit(ctx, provider, limit, window)
	if err != nil {
		log.Printf("level=warn component=service msg=\"webhook rate limit check failed\" provider=%s err=%v", provider, err)
		return true, 0
	}
	if limit > 0 && count > limit {
		return false, retryAfter
	}
	return true, 0
}
