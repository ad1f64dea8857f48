package app

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/slotpost/credit-service/internal/domain"
	"github.com/slotpost/credit-service/internal/store"
	"github.com/slotpost/credit-service/pkg/rabbitmq"
)

type adjustmentRepoStub struct {
	store.Repository

	appliedAccount uuid.UUID
	appliedAmount  int64
	appliedKind    domain.LedgerKind
	appliedCtx     domain.LedgerChangeContext
	calls          int
}

func (s *adjustmentRepoStub) ApplyLedgerChange(ctx context.Context, accountID uuid.UUID, amount int64, kind domain.LedgerKind, chg domain.LedgerChangeContext) (*domain.LedgerEntry, error) {
	s.calls++
	if amount == 0 {
		return nil, store.ErrZeroLedgerAmount
	}
	s.appliedAccount = accountID
	s.appliedAmount = amount
	s.appliedKind = kind
	s.appliedCtx = chg
	return &domain.LedgerEntry{
		ID:          uuid.New(),
		AccountID:   accountID,
		Amount:      amount,
		Kind:        kind,
		Description: chg.Description,
	}, nil
}

func TestAdjustBalanceWritesGrantEntry(t *testing.T) {
	repo := &adjustmentRepoStub{}
	producer := &publisherStub{}
	svc := NewService(repo, producer, 0.2, nil)

	accountID := uuid.New()
	entry, err := svc.AdjustBalance(context.Background(), accountID, -15, "chargeback correction")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Amount != -15 {
		t.Fatalf("expected entry amount=-15, got %d", entry.Amount)
	}
	if repo.appliedKind != domain.LedgerKindGrant {
		t.Fatalf("expected a GRANT entry, got %s", repo.appliedKind)
	}
	if repo.appliedAccount != accountID {
		t.Fatalf("expected account %s, got %s", accountID, repo.appliedAccount)
	}
	if repo.appliedCtx.Description != "chargeback correction" {
		t.Fatalf("unexpected description: %q", repo.appliedCtx.Description)
	}
	if len(producer.moved) != 1 || producer.moved[0].Amount != -15 {
		t.Fatalf("expected one movement event for -15, got %+v", producer.moved)
	}
	if producer.keys[0] != rabbitmq.RoutingKeyCreditsGranted {
		t.Fatalf("unexpected routing key %s", producer.keys[0])
	}
}

func TestAdjustBalanceDefaultsReason(t *testing.T) {
	repo := &adjustmentRepoStub{}
	svc := NewService(repo, &publisherStub{}, 0.2, nil)

	if _, err := svc.AdjustBalance(context.Background(), uuid.New(), 5, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.appliedCtx.Description == "" {
		t.Fatal("expected a default description for an empty reason")
	}
}

func TestAdjustBalanceRejectsZeroAmount(t *testing.T) {
	repo := &adjustmentRepoStub{}
	producer := &publisherStub{}
	svc := NewService(repo, producer, 0.2, nil)

	_, err := svc.AdjustBalance(context.Background(), uuid.New(), 0, "noop")
	if !errors.Is(err, store.ErrZeroLedgerAmount) {
		t.Fatalf("expected ErrZeroLedgerAmount, got %v", err)
	}
	if len(producer.moved) != 0 {
		t.Fatal("no event may be published for a rejected adjustment")
	}
}
