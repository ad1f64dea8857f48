/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access the credit-service performs. The business layer depends only on
 * this interface, which keeps the ledger orchestration testable with
 * per-test stubs and decouples it from PostgreSQL.
 *
 * Composite methods (SettlePaidPost, ApproveCreditRequest, the sticky-post
 * transitions, RecordPurchaseWebhook) are each one atomic unit of work: the
 * implementation must apply every write inside a single transaction or none
 * at all, with balance checks performed on locked rows inside that same
 * transaction.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For identifier handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/slotpost/credit-service/internal/domain"
)

// SettlePaidPostParams carries the pre-computed amounts for one paid-post
// settlement. The split is computed by the caller; the store only enforces
// atomicity and balance sufficiency.
type SettlePaidPostParams struct {
	GroupID       uuid.UUID
	AdvertiserID  uuid.UUID
	OwnerID       uuid.UUID
	Price         int64
	OwnerEarnings int64
	Commission    int64
	Content       string
	ScheduledAt   time.Time
}

// CreateFreePostParams carries the inputs for a zero-cost post row.
type CreateFreePostParams struct {
	GroupID     uuid.UUID
	AuthorID    uuid.UUID
	Content     string
	ScheduledAt time.Time
}

// ApproveCreditRequestParams identifies the request being approved and the
// amount to grant. Amount must be resolved by the caller (override or the
// originally requested amount).
type ApproveCreditRequestParams struct {
	RequestID  uuid.UUID
	ApproverID uuid.UUID
	Amount     int64
	Notes      *string
}

// CreateStickyRequestParams carries the inputs for opening a sticky-post
// request. TotalCost is debited from the requester inside the same
// transaction that creates the request row.
type CreateStickyRequestParams struct {
	RequesterID  uuid.UUID
	GroupID      uuid.UUID
	GroupOwnerID uuid.UUID
	PostID       *uuid.UUID
	PeriodDays   int
	TotalCost    int64
}

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Account and ledger methods
	FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	ApplyLedgerChange(ctx context.Context, accountID uuid.UUID, amount int64, kind domain.LedgerKind, chg domain.LedgerChangeContext) (*domain.LedgerEntry, error)
	ListLedgerEntries(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, error)
	AuditConservation(ctx context.Context) ([]domain.ConservationDrift, error)

	// Group and post methods
	FindGroupByID(ctx context.Context, groupID uuid.UUID) (*domain.Group, error)
	FindLastScheduledPostTime(ctx context.Context, groupID, authorID uuid.UUID) (*time.Time, error)
	FindLastFreePostTime(ctx context.Context, groupID, authorID uuid.UUID) (*time.Time, error)
	SettlePaidPost(ctx context.Context, params SettlePaidPostParams) (*domain.Post, error)
	CreateFreePost(ctx context.Context, params CreateFreePostParams) (*domain.Post, error)

	// Credit request methods
	CreateCreditRequest(ctx context.Context, req *domain.CreditRequest) (*domain.CreditRequest, error)
	GetCreditRequestByID(ctx context.Context, requestID uuid.UUID) (*domain.CreditRequest, error)
	ListCreditRequestsByRequester(ctx context.Context, requesterID uuid.UUID, limit, offset int) ([]domain.CreditRequest, error)
	ListCreditRequestsByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.CreditRequest, error)
	ApproveCreditRequest(ctx context.Context, params ApproveCreditRequestParams) (*domain.CreditRequest, error)
	RejectCreditRequest(ctx context.Context, requestID, approverID uuid.UUID, notes *string) (*domain.CreditRequest, error)

	// Sticky post request methods
	CreateStickyRequest(ctx context.Context, params CreateStickyRequestParams) (*domain.StickyPostRequest, error)
	GetStickyRequestByID(ctx context.Context, requestID uuid.UUID) (*domain.StickyPostRequest, error)
	ListStickyRequestsByRequester(ctx context.Context, requesterID uuid.UUID, limit, offset int) ([]domain.StickyPostRequest, error)
	ListStickyRequestsByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.StickyPostRequest, error)
	ApproveStickyRequest(ctx context.Context, requestID, approverID uuid.UUID) (*domain.StickyPostRequest, error)
	RejectStickyRequest(ctx context.Context, requestID, approverID uuid.UUID, notes *string) (*domain.StickyPostRequest, error)
	FulfillStickyRequest(ctx context.Context, requestID, approverID uuid.UUID) (*domain.StickyPostRequest, error)

	// Payment webhook methods
	RecordPurchaseWebhook(ctx context.Context, event domain.WebhookEvent) (entry *domain.LedgerEntry, duplicate bool, err error)
}
