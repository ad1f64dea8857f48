package domain

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEvent is the idempotency record for one external payment event.
// The unique event id is what makes webhook retries safe: a second delivery
// of the same event inserts nothing and credits nothing.
type WebhookEvent struct {
	EventID     string    `json:"event_id"`
	Provider    string    `json:"provider"`
	AccountID   uuid.UUID `json:"account_id"`
	Credits     int64     `json:"credits"`
	ProcessedAt time.Time `json:"processed_at"`
}

// PaymentCompletedPayload is the DTO posted by the payment gateway
// integration when a checkout completes.
type PaymentCompletedPayload struct {
	EventID   string    `json:"event_id"`
	Provider  string    `json:"provider"`
	AccountID uuid.UUID `json:"account_id"`
	Credits   int64     `json:"credits"`
}
