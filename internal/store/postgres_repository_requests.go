/**
 * @description
 * PostgreSQL implementation of the credit-request and sticky-post-request
 * workflows. Processing methods (approve/reject/fulfill) lock the request
 * row with `SELECT ... FOR UPDATE` before checking its status, so two
 * concurrent processors serialize and the loser observes the already-updated
 * status and fails with ErrRequestAlreadyProcessed instead of double-paying.
 *
 * Money movement rules implemented here:
 * - Credit request: GRANT entry on approval only; rejection writes no ledger.
 * - Sticky request: SPENT entry at creation, EARNED refund on rejection;
 *   approval and fulfilment are pure status changes.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: Transactions and row locking.
 * - internal/domain: Request models and status enums.
 */

package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/slotpost/credit-service/internal/domain"
)

const creditRequestColumns = `id, requester_id, owner_id, amount, reason, status, processed_by, processed_at, notes, created_at`

func scanCreditRequest(row pgx.Row) (*domain.CreditRequest, error) {
	var req domain.CreditRequest
	err := row.Scan(
		&req.ID, &req.RequesterID, &req.OwnerID, &req.Amount, &req.Reason,
		&req.Status, &req.ProcessedBy, &req.ProcessedAt, &req.Notes, &req.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

// CreateCreditRequest inserts a new PENDING credit request. No credits move
// until the owner approves it.
func (r *PostgresRepository) CreateCreditRequest(ctx context.Context, req *domain.CreditRequest) (*domain.CreditRequest, error) {
	query := `
		INSERT INTO credit_requests (id, requester_id, owner_id, amount, reason, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + creditRequestColumns
	return scanCreditRequest(r.db.QueryRow(ctx, query,
		uuid.New(), req.RequesterID, req.OwnerID, req.Amount, req.Reason, domain.CreditRequestPending,
	))
}

// GetCreditRequestByID retrieves one credit request.
func (r *PostgresRepository) GetCreditRequestByID(ctx context.Context, requestID uuid.UUID) (*domain.CreditRequest, error) {
	query := `SELECT ` + creditRequestColumns + ` FROM credit_requests WHERE id = $1`
	return scanCreditRequest(r.db.QueryRow(ctx, query, requestID))
}

func (r *PostgresRepository) listCreditRequests(ctx context.Context, column string, id uuid.UUID, limit, offset int) ([]domain.CreditRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT %s FROM credit_requests
		WHERE %s = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, creditRequestColumns, column)
	rows, err := r.db.Query(ctx, query, id, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]domain.CreditRequest, 0, limit)
	for rows.Next() {
		req, err := scanCreditRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// ListCreditRequestsByRequester returns requests the account has opened, newest first.
func (r *PostgresRepository) ListCreditRequestsByRequester(ctx context.Context, requesterID uuid.UUID, limit, offset int) ([]domain.CreditRequest, error) {
	return r.listCreditRequests(ctx, "requester_id", requesterID, limit, offset)
}

// ListCreditRequestsByOwner returns requests addressed to the owner, newest first.
func (r *PostgresRepository) ListCreditRequestsByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.CreditRequest, error) {
	return r.listCreditRequests(ctx, "owner_id", ownerID, limit, offset)
}

// lockCreditRequest locks one credit request row for the rest of the
// transaction and returns its current state.
func lockCreditRequest(ctx context.Context, tx pgx.Tx, requestID uuid.UUID) (*domain.CreditRequest, error) {
	query := `SELECT ` + creditRequestColumns + ` FROM credit_requests WHERE id = $1 FOR UPDATE`
	return scanCreditRequest(tx.QueryRow(ctx, query, requestID))
}

// ApproveCreditRequest grants the resolved amount to the requester and marks
// the request APPROVED, all in one transaction. The grant, the request
// update, and the managed-relationship upsert land together or not at all.
func (r *PostgresRepository) ApproveCreditRequest(ctx context.Context, params ApproveCreditRequestParams) (*domain.CreditRequest, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	req, err := lockCreditRequest(ctx, tx, params.RequestID)
	if err != nil {
		return nil, err
	}
	if !req.Status.CanTransitionTo(domain.CreditRequestApproved) {
		return nil, ErrRequestAlreadyProcessed
	}

	if _, err := lockAccountCredits(ctx, tx, req.RequesterID); err != nil {
		return nil, err
	}
	grantCtx := domain.LedgerChangeContext{
		Description: fmt.Sprintf("Credit grant approved by owner %s", params.ApproverID),
	}
	if _, err := insertLedgerEntry(ctx, tx, req.RequesterID, params.Amount, domain.LedgerKindGrant, grantCtx); err != nil {
		return nil, err
	}

	updateQuery := `
		UPDATE credit_requests
		SET status = $1, amount = $2, processed_by = $3, processed_at = NOW(), notes = $4
		WHERE id = $5
		RETURNING ` + creditRequestColumns
	updated, err := scanCreditRequest(tx.QueryRow(ctx, updateQuery,
		domain.CreditRequestApproved, params.Amount, params.ApproverID, params.Notes, params.RequestID,
	))
	if err != nil {
		return nil, err
	}

	relQuery := `
		INSERT INTO managed_relationships (owner_id, requester_id, total_credits_granted)
		VALUES ($1, $2, $3)
		ON CONFLICT (owner_id, requester_id)
		DO UPDATE SET total_credits_granted = managed_relationships.total_credits_granted + $3, updated_at = NOW()
	`
	if _, err := tx.Exec(ctx, relQuery, req.OwnerID, req.RequesterID, params.Amount); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

// RejectCreditRequest marks the request REJECTED. No ledger entry is
// written: nothing was ever moved for a pending credit request.
func (r *PostgresRepository) RejectCreditRequest(ctx context.Context, requestID, approverID uuid.UUID, notes *string) (*domain.CreditRequest, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	req, err := lockCreditRequest(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.Status.CanTransitionTo(domain.CreditRequestRejected) {
		return nil, ErrRequestAlreadyProcessed
	}

	updateQuery := `
		UPDATE credit_requests
		SET status = $1, processed_by = $2, processed_at = NOW(), notes = $3
		WHERE id = $4
		RETURNING ` + creditRequestColumns
	updated, err := scanCreditRequest(tx.QueryRow(ctx, updateQuery,
		domain.CreditRequestRejected, approverID, notes, requestID,
	))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

const stickyRequestColumns = `id, requester_id, group_id, group_owner_id, post_id, period_days, credits_paid, status, processed_at, fulfilled_at, notes, created_at`

func scanStickyRequest(row pgx.Row) (*domain.StickyPostRequest, error) {
	var req domain.StickyPostRequest
	err := row.Scan(
		&req.ID, &req.RequesterID, &req.GroupID, &req.GroupOwnerID, &req.PostID,
		&req.PeriodDays, &req.CreditsPaid, &req.Status, &req.ProcessedAt,
		&req.FulfilledAt, &req.Notes, &req.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return &req, nil
}

// CreateStickyRequest opens a PENDING sticky-post request and debits the
// full cost up front. The balance check, the SPENT entry, and the request
// row are one transaction: an insufficient balance leaves no request behind.
func (r *PostgresRepository) CreateStickyRequest(ctx context.Context, params CreateStickyRequestParams) (*domain.StickyPostRequest, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	credits, err := lockAccountCredits(ctx, tx, params.RequesterID)
	if err != nil {
		return nil, err
	}
	if credits < params.TotalCost {
		return nil, ErrInsufficientCredits
	}

	requestID := uuid.New()
	insertQuery := `
		INSERT INTO sticky_post_requests (id, requester_id, group_id, group_owner_id, post_id, period_days, credits_paid, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + stickyRequestColumns
	req, err := scanStickyRequest(tx.QueryRow(ctx, insertQuery,
		requestID, params.RequesterID, params.GroupID, params.GroupOwnerID,
		params.PostID, params.PeriodDays, params.TotalCost, domain.StickyRequestPending,
	))
	if err != nil {
		return nil, err
	}

	debitCtx := domain.LedgerChangeContext{
		RelatedGroupID: &params.GroupID,
		Description:    fmt.Sprintf("Sticky post reservation for %d day(s) in group %s", params.PeriodDays, params.GroupID),
	}
	if _, err := insertLedgerEntry(ctx, tx, params.RequesterID, -params.TotalCost, domain.LedgerKindSpent, debitCtx); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return req, nil
}

// GetStickyRequestByID retrieves one sticky-post request.
func (r *PostgresRepository) GetStickyRequestByID(ctx context.Context, requestID uuid.UUID) (*domain.StickyPostRequest, error) {
	query := `SELECT ` + stickyRequestColumns + ` FROM sticky_post_requests WHERE id = $1`
	return scanStickyRequest(r.db.QueryRow(ctx, query, requestID))
}

func (r *PostgresRepository) listStickyRequests(ctx context.Context, column string, id uuid.UUID, limit, offset int) ([]domain.StickyPostRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT %s FROM sticky_post_requests
		WHERE %s = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, stickyRequestColumns, column)
	rows, err := r.db.Query(ctx, query, id, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]domain.StickyPostRequest, 0, limit)
	for rows.Next() {
		req, err := scanStickyRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// ListStickyRequestsByRequester returns requests the account has opened, newest first.
func (r *PostgresRepository) ListStickyRequestsByRequester(ctx context.Context, requesterID uuid.UUID, limit, offset int) ([]domain.StickyPostRequest, error) {
	return r.listStickyRequests(ctx, "requester_id", requesterID, limit, offset)
}

// ListStickyRequestsByOwner returns requests targeting the owner's groups, newest first.
func (r *PostgresRepository) ListStickyRequestsByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]domain.StickyPostRequest, error) {
	return r.listStickyRequests(ctx, "group_owner_id", ownerID, limit, offset)
}

func lockStickyRequest(ctx context.Context, tx pgx.Tx, requestID uuid.UUID) (*domain.StickyPostRequest, error) {
	query := `SELECT ` + stickyRequestColumns + ` FROM sticky_post_requests WHERE id = $1 FOR UPDATE`
	return scanStickyRequest(tx.QueryRow(ctx, query, requestID))
}

func (r *PostgresRepository) transitionStickyRequest(ctx context.Context, requestID uuid.UUID, next domain.StickyRequestStatus, mutate func(pgx.Tx, *domain.StickyPostRequest) error) (*domain.StickyPostRequest, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	req, err := lockStickyRequest(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	if !req.Status.CanTransitionTo(next) {
		return nil, ErrRequestAlreadyProcessed
	}

	if mutate != nil {
		if err := mutate(tx, req); err != nil {
			return nil, err
		}
	}

	timestampColumn := "processed_at"
	if next == domain.StickyRequestFulfilled {
		timestampColumn = "fulfilled_at"
	}
	updateQuery := fmt.Sprintf(`
		UPDATE sticky_post_requests
		SET status = $1, %s = NOW(), notes = COALESCE($2, notes)
		WHERE id = $3
		RETURNING %s
	`, timestampColumn, stickyRequestColumns)
	updated, err := scanStickyRequest(tx.QueryRow(ctx, updateQuery, next, req.Notes, requestID))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

// ApproveStickyRequest marks a pending request APPROVED. The credits were
// already debited at creation, so no ledger entry is written here.
func (r *PostgresRepository) ApproveStickyRequest(ctx context.Context, requestID, approverID uuid.UUID) (*domain.StickyPostRequest, error) {
	return r.transitionStickyRequest(ctx, requestID, domain.StickyRequestApproved, nil)
}

// RejectStickyRequest marks a pending request REJECTED and refunds exactly
// the credits debited at creation, in the same transaction.
func (r *PostgresRepository) RejectStickyRequest(ctx context.Context, requestID, approverID uuid.UUID, notes *string) (*domain.StickyPostRequest, error) {
	return r.transitionStickyRequest(ctx, requestID, domain.StickyRequestRejected, func(tx pgx.Tx, req *domain.StickyPostRequest) error {
		req.Notes = notes
		if _, err := lockAccountCredits(ctx, tx, req.RequesterID); err != nil {
			return err
		}
		refundCtx := domain.LedgerChangeContext{
			RelatedGroupID: &req.GroupID,
			Description:    fmt.Sprintf("Refund for rejected sticky post request %s", req.ID),
		}
		_, err := insertLedgerEntry(ctx, tx, req.RequesterID, req.CreditsPaid, domain.LedgerKindEarned, refundCtx)
		return err
	})
}

// FulfillStickyRequest marks an approved request FULFILLED once the post has
// actually been pinned. Pure status change.
func (r *PostgresRepository) FulfillStickyRequest(ctx context.Context, requestID, approverID uuid.UUID) (*domain.StickyPostRequest, error) {
	return r.transitionStickyRequest(ctx, requestID, domain.StickyRequestFulfilled, nil)
}
