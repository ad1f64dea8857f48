package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/slotpost/credit-service/internal/domain"
	"github.com/slotpost/credit-service/internal/store"
)

type webhookRepoStub struct {
	store.Repository

	recorded  []domain.WebhookEvent
	duplicate bool
	err       error
}

func (s *webhookRepoStub) RecordPurchaseWebhook(ctx context.Context, event domain.WebhookEvent) (*domain.LedgerEntry, bool, error) {
	s.recorded = append(s.recorded, event)
	if s.err != nil {
		return nil, false, s.err
	}
	if s.duplicate {
		return nil, true, nil
	}
	return &domain.LedgerEntry{
		ID:        uuid.New(),
		AccountID: event.AccountID,
		Amount:    event.Credits,
		Kind:      domain.LedgerKindPurchase,
	}, false, nil
}

// guardStub mimics the Redis marker with an in-memory set.
type guardStub struct {
	seen   map[string]bool
	marked []string
}

func newGuardStub() *guardStub {
	return &guardStub{seen: map[string]bool{}}
}

func (g *guardStub) EventSeen(ctx context.Context, eventID string) (bool, error) {
	return g.seen[eventID], nil
}

func (g *guardStub) MarkEventSeen(ctx context.Context, eventID string) error {
	g.seen[eventID] = true
	g.marked = append(g.marked, eventID)
	return nil
}

func (g *guardStub) ConsumeRateLimit(ctx context.Context, subject string, limit int, window time.Duration) (int, int, error) {
	return 0, 0, nil
}

func TestProcessPaymentWebhookCreditsOnce(t *testing.T) {
	repo := &webhookRepoStub{}
	producer := &publisherStub{}
	svc := NewService(repo, producer, 0.2, nil)

	accountID := uuid.New()
	result, err := svc.ProcessPaymentWebhook(context.Background(), domain.PaymentCompletedPayload{
		EventID:   "evt_123",
		Provider:  "stripe",
		AccountID: accountID,
		Credits:   50,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Duplicate {
		t.Fatal("first delivery must not be a duplicate")
	}
	if result.Entry == nil || result.Entry.Amount != 50 {
		t.Fatalf("expected a PURCHASE entry for 50 credits, got %+v", result.Entry)
	}
	if len(repo.recorded) != 1 || repo.recorded[0].EventID != "evt_123" {
		t.Fatalf("expected one recorded event, got %+v", repo.recorded)
	}
	if len(producer.moved) != 1 || producer.moved[0].Amount != 50 {
		t.Fatalf("expected one purchase event, got %+v", producer.moved)
	}
}

func TestProcessPaymentWebhookDuplicate(t *testing.T) {
	repo := &webhookRepoStub{duplicate: true}
	producer := &publisherStub{}
	svc := NewService(repo, producer, 0.2, nil)

	result, err := svc.ProcessPaymentWebhook(context.Background(), domain.PaymentCompletedPayload{
		EventID:   "evt_replay",
		Provider:  "stripe",
		AccountID: uuid.New(),
		Credits:   50,
	})
	if err != nil {
		t.Fatalf("duplicate delivery must not error: %v", err)
	}
	if !result.Duplicate {
		t.Fatal("expected duplicate marker")
	}
	if result.Entry != nil {
		t.Fatal("duplicate delivery must not produce an entry")
	}
	if len(producer.moved) != 0 {
		t.Fatal("duplicate delivery must not publish an event")
	}
}

func TestProcessPaymentWebhookValidation(t *testing.T) {
	repo := &webhookRepoStub{}
	svc := NewService(repo, &publisherStub{}, 0.2, nil)

	for _, credits := range []int64{0, -10} {
		_, err := svc.ProcessPaymentWebhook(context.Background(), domain.PaymentCompletedPayload{
			EventID:   "evt_bad",
			AccountID: uuid.New(),
			Credits:   credits,
		})
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("credits=%d: expected ErrInvalidAmount, got %v", credits, err)
		}
	}
	if len(repo.recorded) != 0 {
		t.Fatal("invalid payloads must not reach the store")
	}
}

func TestProcessPaymentWebhookUnknownAccount(t *testing.T) {
	repo := &webhookRepoStub{err: store.ErrAccountNotFound}
	svc := NewService(repo, &publisherStub{}, 0.2, nil)

	_, err := svc.ProcessPaymentWebhook(context.Background(), domain.PaymentCompletedPayload{
		EventID:   "evt_orphan",
		AccountID: uuid.New(),
		Credits:   10,
	})
	if !errors.Is(err, store.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestProcessPaymentWebhookMarkerSetAfterRecord(t *testing.T) {
	repo := &webhookRepoStub{}
	guard := newGuardStub()
	svc := NewService(repo, &publisherStub{}, 0.2, nil)
	svc.webhookGuard = guard

	if _, err := svc.ProcessPaymentWebhook(context.Background(), domain.PaymentCompletedPayload{
		EventID:   "evt_once",
		Provider:  "stripe",
		AccountID: uuid.New(),
		Credits:   25,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(guard.marked) != 1 || guard.marked[0] != "evt_once" {
		t.Fatalf("expected the marker set once after recording, got %v", guard.marked)
	}
}

func TestProcessPaymentWebhookFailedDeliveryIsRetriable(t *testing.T) {
	repo := &webhookRepoStub{err: errors.New("connection reset")}
	guard := newGuardStub()
	producer := &publisherStub{}
	svc := NewService(repo, producer, 0.2, nil)
	svc.webhookGuard = guard

	accountID := uuid.New()
	payload := domain.PaymentCompletedPayload{
		EventID:   "evt_retry",
		Provider:  "stripe",
		AccountID: accountID,
		Credits:   50,
	}

	if _, err := svc.ProcessPaymentWebhook(context.Background(), payload); err == nil {
		t.Fatal("expected the first delivery to fail")
	}
	if len(guard.marked) != 0 {
		t.Fatal("a failed delivery must not set the duplicate marker")
	}

	// Provider retries after the 5xx. The retry must reach the store and
	// credit the purchase, not be short-circuited as a duplicate.
	repo.err = nil
	result, err := svc.ProcessPaymentWebhook(context.Background(), payload)
	if err != nil {
		t.Fatalf("unexpected error on retry: %v", err)
	}
	if result.Duplicate {
		t.Fatal("retry of a failed delivery must not be treated as a duplicate")
	}
	if result.Entry == nil || result.Entry.Amount != 50 {
		t.Fatalf("expected the retry to credit 50, got %+v", result.Entry)
	}
	if len(repo.recorded) != 2 {
		t.Fatalf("expected the retry to reach the store, got %d calls", len(repo.recorded))
	}
	if len(producer.moved) != 1 {
		t.Fatalf("expected exactly one purchase event, got %d", len(producer.moved))
	}
}

func TestProcessPaymentWebhookMarkerShortCircuitsReplay(t *testing.T) {
	repo := &webhookRepoStub{}
	guard := newGuardStub()
	svc := NewService(repo, &publisherStub{}, 0.2, nil)
	svc.webhookGuard = guard

	payload := domain.PaymentCompletedPayload{
		EventID:   "evt_replayed",
		Provider:  "stripe",
		AccountID: uuid.New(),
		Credits:   50,
	}
	if _, err := svc.ProcessPaymentWebhook(context.Background(), payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := svc.ProcessPaymentWebhook(context.Background(), payload)
	if err != nil {
		t.Fatalf("unexpected error on replay: %v", err)
	}
	if !result.Duplicate {
		t.Fatal("expected the replay to be reported as a duplicate")
	}
	if len(repo.recorded) != 1 {
		t.Fatalf("replay must not reach the store, got %d calls", len(repo.recorded))
	}
}

func TestWebhookRateLimitWithoutRedisFailsOpen(t *testing.T) {
	svc := NewService(&webhookRepoStub{}, &publisherStub{}, 0.2, nil)
	allowed, retryAfter := svc.CheckWebhookRateLimit(context.Background(), "stripe", 10, 0)
	if !allowed || retryAfter != 0 {
		t.Fatalf("expected fail-open without redis, got allowed=%t retry=%d", allowed, retryAfter)
	}
}
