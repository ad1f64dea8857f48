package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/slotpost/credit-service/internal/domain"
)

func seedStickyRequest(db *fakeLedgerDB, creditsPaid int64) domain.StickyPostRequest {
	req := domain.StickyPostRequest{
		ID:           uuid.New(),
		RequesterID:  uuid.New(),
		GroupID:      uuid.New(),
		GroupOwnerID: uuid.New(),
		PeriodDays:   5,
		CreditsPaid:  creditsPaid,
		Status:       domain.StickyRequestPending,
		CreatedAt:    time.Now().UTC(),
	}
	db.sticky[req.ID] = req
	db.credits[req.RequesterID] = 0
	return req
}

func TestRejectStickyRequestRefundsExactlyOnce(t *testing.T) {
	db := newFakeLedgerDB()
	req := seedStickyRequest(db, 10)
	repo := NewPostgresRepository(db)

	updated, err := repo.RejectStickyRequest(context.Background(), req.ID, req.GroupOwnerID, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != domain.StickyRequestRejected {
		t.Fatalf("expected REJECTED, got %s", updated.Status)
	}
	if updated.ProcessedAt == nil {
		t.Fatal("expected processed_at to be set")
	}

	entries := db.entriesFor(req.RequesterID)
	if len(entries) != 1 {
		t.Fatalf("expected exactly one refund entry, got %d", len(entries))
	}
	if entries[0].kind != domain.LedgerKindEarned {
		t.Fatalf("expected an EARNED refund, got %s", entries[0].kind)
	}
	if entries[0].amount != req.CreditsPaid {
		t.Fatalf("expected refund of %d, got %d", req.CreditsPaid, entries[0].amount)
	}
	if db.credits[req.RequesterID] != req.CreditsPaid {
		t.Fatalf("expected balance %d after refund, got %d", req.CreditsPaid, db.credits[req.RequesterID])
	}

	// A second rejection of the now-terminal request must fail and write
	// nothing further.
	_, err = repo.RejectStickyRequest(context.Background(), req.ID, req.GroupOwnerID, nil)
	if !errors.Is(err, ErrRequestAlreadyProcessed) {
		t.Fatalf("expected ErrRequestAlreadyProcessed, got %v", err)
	}
	if len(db.entriesFor(req.RequesterID)) != 1 {
		t.Fatalf("repeat rejection must not write entries, got %d", len(db.entriesFor(req.RequesterID)))
	}
	if db.credits[req.RequesterID] != req.CreditsPaid {
		t.Fatalf("repeat rejection must not move credits, balance is %d", db.credits[req.RequesterID])
	}
}

func TestApproveStickyRequestIsTerminalAndMovesNothing(t *testing.T) {
	db := newFakeLedgerDB()
	req := seedStickyRequest(db, 10)
	repo := NewPostgresRepository(db)

	updated, err := repo.ApproveStickyRequest(context.Background(), req.ID, req.GroupOwnerID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != domain.StickyRequestApproved {
		t.Fatalf("expected APPROVED, got %s", updated.Status)
	}
	if len(db.entries) != 0 {
		t.Fatalf("approval must not write ledger entries, got %d", len(db.entries))
	}

	if _, err := repo.ApproveStickyRequest(context.Background(), req.ID, req.GroupOwnerID); !errors.Is(err, ErrRequestAlreadyProcessed) {
		t.Fatalf("expected ErrRequestAlreadyProcessed, got %v", err)
	}

	// APPROVED is not refundable; only FULFILLED remains reachable.
	if _, err := repo.RejectStickyRequest(context.Background(), req.ID, req.GroupOwnerID, nil); !errors.Is(err, ErrRequestAlreadyProcessed) {
		t.Fatalf("expected ErrRequestAlreadyProcessed for reject after approve, got %v", err)
	}
	if len(db.entries) != 0 {
		t.Fatalf("no ledger entries may exist, got %d", len(db.entries))
	}

	fulfilled, err := repo.FulfillStickyRequest(context.Background(), req.ID, req.GroupOwnerID)
	if err != nil {
		t.Fatalf("unexpected error fulfilling: %v", err)
	}
	if fulfilled.Status != domain.StickyRequestFulfilled {
		t.Fatalf("expected FULFILLED, got %s", fulfilled.Status)
	}
	if fulfilled.FulfilledAt == nil {
		t.Fatal("expected fulfilled_at to be set")
	}
	if len(db.entries) != 0 {
		t.Fatalf("fulfilment must not write ledger entries, got %d", len(db.entries))
	}
}

func TestRejectStickyRequestUnknownRequest(t *testing.T) {
	repo := NewPostgresRepository(newFakeLedgerDB())
	_, err := repo.RejectStickyRequest(context.Background(), uuid.New(), uuid.New(), nil)
	if !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
}
