/**
 * @description
 * This file contains the core business logic for the credit-service. The
 * `Service` struct orchestrates every credit movement, coordinating between
 * the database repository, Redis, and the message broker. Handlers call into
 * it with already-authenticated account ids; the service decides who may do
 * what and delegates the atomic writes to composite repository methods.
 *
 * Key features:
 * - Balance and ledger queries.
 * - Paid-post settlement with the commission split.
 * - Free-post quiet-period evaluation.
 * - Publishes events to RabbitMQ for asynchronous processing by other services.
 *
 * @dependencies
 * - context, errors, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq: For event publication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/slotpost/credit-service/internal/domain"
	"github.com/slotpost/credit-service/internal/store"
	"github.com/slotpost/credit-service/pkg/rabbitmq"
)

var (
	// ErrUnauthorized means the caller is not the account allowed to perform
	// the operation (e.g. a non-owner processing someone else's request).
	ErrUnauthorized = errors.New("account not authorized for this operation")
	// ErrGroupNotSellable means the target group is unverified or inactive.
	ErrGroupNotSellable = errors.New("group is not accepting paid posts")
	// ErrInvalidAmount means the payload amount is zero, negative, or missing.
	ErrInvalidAmount = errors.New("amount must be a positive integer")
	// ErrFreePostNotAvailable means the quiet period has not elapsed.
	ErrFreePostNotAvailable = errors.New("free post is not available yet")
)

// webhookDeduper is the guard surface the webhook flow needs: a read-only
// duplicate check, a marker write, and the delivery rate limiter. Satisfied
// by RedisWebhookGuard, including its nil no-op form.
type webhookDeduper interface {
	EventSeen(ctx context.Context, eventID string) (bool, error)
	MarkEventSeen(ctx context.Context, eventID string) error
	ConsumeRateLimit(ctx context.Context, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the core business logic for credit movement.
type Service struct {
	repo           store.Repository
	eventProducer  rabbitmq.Publisher
	commissionRate float64
	webhookGuard   webhookDeduper
}

// NewService creates a new credit service instance. commissionRate is the
// platform default revenue share, applied when a group carries no override.
func NewService(repo store.Repository, producer rabbitmq.Publisher, commissionRate float64, guard *RedisWebhookGuard) *Service {
	return &Service{
		repo:           repo,
		eventProducer:  producer,
		commissionRate: commissionRate,
		webhookGuard:   guard,
	}
}

// GetBalance returns the account's current credit balance projection.
func (s *Service) GetBalance(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	return s.repo.FindAccountByID(ctx, accountID)
}

// ListLedger returns a page of the account's ledger, newest first.
func (s *Service) ListLedger(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, error) {
	if _, err := s.repo.FindAccountByID(ctx, accountID); err != nil {
		return nil, err
	}
	return s.repo.ListLedgerEntries(ctx, accountID, limit, offset)
}

// publishCreditsMoved fires a grant/refund/purchase event. Event delivery is
// best effort: a broker outage never fails the already-committed movement.
func (s *Service) publishCreditsMoved(ctx context.Context, routingKey string, accountID uuid.UUID, amount int64, reason string) {
	event := rabbitmq.CreditsMovedEvent{
		AccountID: accountID,
		Amount:    amount,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
	if err := s.eventProducer.PublishCreditsMoved(ctx, routingKey, event); err != nil {
		log.Printf("level=warn component=service msg=\"credits moved event publish failed\" routing_key=%s account_id=%s err=%v", routingKey, accountID, err)
	}
}

func (s *Service) publishPostSettled(ctx context.Context, post *domain.Post) {
	event := rabbitmq.PostSettledEvent{
		PostID:       post.ID,
		GroupID:      post.GroupID,
		AdvertiserID: post.AuthorID,
		CreditsPaid:  post.CreditsPaid,
		IsFreePost:   post.IsFreePost,
		ScheduledAt:  post.ScheduledAt,
		Timestamp:    time.Now().UTC(),
	}
	if err := s.eventProducer.PublishPostSettled(ctx, event); err != nil {
		log.Printf("level=warn component=service msg=\"post settled event publish failed\" post_id=%s err=%v", post.ID, err)
	}
}

func requirePositiveAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}
	return nil
}
