/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface for accounts, the ledger, groups, posts, and the payment
 * webhook. It contains the transactional core of the service: every
 * balance-affecting operation locks the account rows it touches with
 * `SELECT ... FOR UPDATE`, checks sufficiency on the locked row, and writes
 * the ledger entry and the balance projection in the same transaction.
 *
 * Lock ordering: the paying account is always locked before the receiving
 * account, on every code path, so two settlements touching the same pair of
 * accounts cannot deadlock.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/slotpost/credit-service/internal/domain"
)

var (
	ErrAccountNotFound         = errors.New("account not found")
	ErrGroupNotFound           = errors.New("group not found")
	ErrInsufficientCredits     = errors.New("insufficient credits")
	ErrRequestNotFound         = errors.New("request not found")
	ErrRequestAlreadyProcessed = errors.New("request already processed")
	ErrZeroLedgerAmount        = errors.New("ledger amount must be non-zero")
)

// DB is the connection surface the repository needs. *pgxpool.Pool satisfies
// it; tests substitute an in-memory fake to drive the transaction paths.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

var _ DB = (*pgxpool.Pool)(nil)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindAccountByID retrieves one account with its current balance projection.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	var account domain.Account
	query := `SELECT id, credits, role, created_at, updated_at FROM accounts WHERE id = $1`
	err := r.db.QueryRow(ctx, query, accountID).Scan(
		&account.ID, &account.Credits, &account.Role, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// lockAccountCredits locks one account row and returns its current balance.
// Callers hold the lock until the surrounding transaction ends.
func lockAccountCredits(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (int64, error) {
	var credits int64
	err := tx.QueryRow(ctx, "SELECT credits FROM accounts WHERE id = $1 FOR UPDATE", accountID).Scan(&credits)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}
	return credits, nil
}

// insertLedgerEntry appends one ledger row and, for balance-moving kinds,
// applies the signed amount to the account's balance projection. The caller
// must already hold the account row lock when sufficiency matters.
func insertLedgerEntry(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64, kind domain.LedgerKind, chg domain.LedgerChangeContext) (*domain.LedgerEntry, error) {
	entry := domain.LedgerEntry{
		ID:             uuid.New(),
		AccountID:      accountID,
		Amount:         amount,
		Kind:           kind,
		RelatedPostID:  chg.RelatedPostID,
		RelatedGroupID: chg.RelatedGroupID,
		Description:    chg.Description,
	}

	insertQuery := `
		INSERT INTO ledger_entries (id, account_id, amount, kind, related_post_id, related_group_id, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err := tx.QueryRow(ctx, insertQuery,
		entry.ID, entry.AccountID, entry.Amount, entry.Kind,
		entry.RelatedPostID, entry.RelatedGroupID, entry.Description,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return nil, err
	}

	if kind.MovesBalance() {
		tag, err := tx.Exec(ctx,
			"UPDATE accounts SET credits = credits + $1, updated_at = NOW() WHERE id = $2",
			amount, accountID,
		)
		if err != nil {
			return nil, err
		}
		if tag.RowsAffected() == 0 {
			return nil, ErrAccountNotFound
		}
	}

	return &entry, nil
}

// ApplyLedgerChange records a single balance-affecting event as one atomic
// unit: account lock, sufficiency check for debits, ledger entry, and the
// balance projection. It backs single-account movements such as the payment
// webhook credit and support adjustments; multi-account settlements use
// composite methods that hold several locks in one transaction.
func (r *PostgresRepository) ApplyLedgerChange(ctx context.Context, accountID uuid.UUID, amount int64, kind domain.LedgerKind, chg domain.LedgerChangeContext) (*domain.LedgerEntry, error) {
	if amount == 0 {
		return nil, ErrZeroLedgerAmount
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	credits, err := lockAccountCredits(ctx, tx, accountID)
	if err != nil {
		return nil, err
	}
	if kind.MovesBalance() && credits+amount < 0 {
		return nil, ErrInsufficientCredits
	}
	entry, err := insertLedgerEntry(ctx, tx, accountID, amount, kind, chg)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return entry, nil
}

// ListLedgerEntries returns an account's audit trail, newest first.
func (r *PostgresRepository) ListLedgerEntries(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, account_id, amount, kind, related_post_id, related_group_id, description, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.LedgerEntry, 0, limit)
	for rows.Next() {
		var entry domain.LedgerEntry
		if err := rows.Scan(
			&entry.ID, &entry.AccountID, &entry.Amount, &entry.Kind,
			&entry.RelatedPostID, &entry.RelatedGroupID, &entry.Description, &entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// AuditConservation returns every account whose balance projection disagrees
// with the sum of its balance-moving ledger entries. COMMISSION entries are
// audit-only and excluded from the sum.
func (r *PostgresRepository) AuditConservation(ctx context.Context) ([]domain.ConservationDrift, error) {
	query := `
		SELECT a.id, a.credits, COALESCE(SUM(e.amount) FILTER (WHERE e.kind <> 'COMMISSION'), 0) AS ledger_sum
		FROM accounts a
		LEFT JOIN ledger_entries e ON e.account_id = a.id
		GROUP BY a.id, a.credits
		HAVING a.credits <> COALESCE(SUM(e.amount) FILTER (WHERE e.kind <> 'COMMISSION'), 0)
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drifts []domain.ConservationDrift
	for rows.Next() {
		var drift domain.ConservationDrift
		if err := rows.Scan(&drift.AccountID, &drift.Credits, &drift.LedgerSum); err != nil {
			return nil, err
		}
		drifts = append(drifts, drift)
	}
	return drifts, rows.Err()
}

// FindGroupByID retrieves one group.
func (r *PostgresRepository) FindGroupByID(ctx context.Context, groupID uuid.UUID) (*domain.Group, error) {
	var group domain.Group
	query := `
		SELECT id, owner_id, title, price_per_post, free_post_interval_days,
		       sticky_post_price, sticky_post_period_days, revenue_share_percent,
		       total_revenue, total_posts_scheduled, is_verified, is_active,
		       created_at, updated_at
		FROM groups
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, groupID).Scan(
		&group.ID, &group.OwnerID, &group.Title, &group.PricePerPost, &group.FreePostIntervalDays,
		&group.StickyPostPrice, &group.StickyPostPeriodDays, &group.RevenueSharePercent,
		&group.TotalRevenue, &group.TotalPostsScheduled, &group.IsVerified, &group.IsActive,
		&group.CreatedAt, &group.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}
	return &group, nil
}

// FindLastScheduledPostTime returns the author's most recent SCHEDULED/SENT
// post time in the group, or nil when they have never posted there.
func (r *PostgresRepository) FindLastScheduledPostTime(ctx context.Context, groupID, authorID uuid.UUID) (*time.Time, error) {
	var last *time.Time
	query := `
		SELECT MAX(scheduled_at)
		FROM posts
		WHERE group_id = $1 AND author_id = $2 AND status IN ('SCHEDULED', 'SENT')
	`
	if err := r.db.QueryRow(ctx, query, groupID, authorID).Scan(&last); err != nil {
		return nil, err
	}
	return last, nil
}

// FindLastFreePostTime returns the author's most recent free-flagged post
// time in the group, or nil when none exists.
func (r *PostgresRepository) FindLastFreePostTime(ctx context.Context, groupID, authorID uuid.UUID) (*time.Time, error) {
	var last *time.Time
	query := `
		SELECT MAX(scheduled_at)
		FROM posts
		WHERE group_id = $1 AND author_id = $2 AND is_free_post = TRUE AND status IN ('SCHEDULED', 'SENT')
	`
	if err := r.db.QueryRow(ctx, query, groupID, authorID).Scan(&last); err != nil {
		return nil, err
	}
	return last, nil
}

// SettlePaidPost executes the full paid-post settlement as one transaction:
// advertiser debit, owner earnings credit, commission annotation, group
// counters, and the post row. Either all six writes land or none do.
func (r *PostgresRepository) SettlePaidPost(ctx context.Context, params SettlePaidPostParams) (*domain.Post, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Payer first. When the owner settles in their own group the single lock
	// already covers both roles.
	advertiserCredits, err := lockAccountCredits(ctx, tx, params.AdvertiserID)
	if err != nil {
		return nil, err
	}
	if advertiserCredits < params.Price {
		return nil, ErrInsufficientCredits
	}
	if params.OwnerID != params.AdvertiserID {
		if _, err := lockAccountCredits(ctx, tx, params.OwnerID); err != nil {
			return nil, err
		}
	}

	post := domain.Post{
		ID:          uuid.New(),
		GroupID:     params.GroupID,
		AuthorID:    params.AdvertiserID,
		Content:     params.Content,
		CreditsPaid: params.Price,
		IsFreePost:  false,
		ScheduledAt: params.ScheduledAt,
		Status:      domain.PostStatusScheduled,
	}
	postQuery := `
		INSERT INTO posts (id, group_id, author_id, content, credits_paid, is_free_post, scheduled_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	if err := tx.QueryRow(ctx, postQuery,
		post.ID, post.GroupID, post.AuthorID, post.Content,
		post.CreditsPaid, post.IsFreePost, post.ScheduledAt, post.Status,
	).Scan(&post.CreatedAt); err != nil {
		return nil, err
	}

	debitCtx := domain.LedgerChangeContext{
		RelatedPostID:  &post.ID,
		RelatedGroupID: &params.GroupID,
		Description:    fmt.Sprintf("Paid post in group %s", params.GroupID),
	}
	if _, err := insertLedgerEntry(ctx, tx, params.AdvertiserID, -params.Price, domain.LedgerKindSpent, debitCtx); err != nil {
		return nil, err
	}

	earningsCtx := domain.LedgerChangeContext{
		RelatedPostID:  &post.ID,
		RelatedGroupID: &params.GroupID,
		Description:    fmt.Sprintf("Earnings from paid post in group %s", params.GroupID),
	}
	if _, err := insertLedgerEntry(ctx, tx, params.OwnerID, params.OwnerEarnings, domain.LedgerKindEarned, earningsCtx); err != nil {
		return nil, err
	}

	if params.Commission > 0 {
		commissionCtx := domain.LedgerChangeContext{
			RelatedPostID:  &post.ID,
			RelatedGroupID: &params.GroupID,
			Description:    fmt.Sprintf("Platform commission on paid post in group %s", params.GroupID),
		}
		if _, err := insertLedgerEntry(ctx, tx, params.OwnerID, params.Commission, domain.LedgerKindCommission, commissionCtx); err != nil {
			return nil, err
		}
	}

	groupQuery := `
		UPDATE groups
		SET total_revenue = total_revenue + $1,
		    total_posts_scheduled = total_posts_scheduled + 1,
		    updated_at = NOW()
		WHERE id = $2
	`
	tag, err := tx.Exec(ctx, groupQuery, params.OwnerEarnings, params.GroupID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrGroupNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &post, nil
}

// CreateFreePost inserts a zero-cost post row and bumps the group's
// scheduled-post counter. No ledger entries are written for free posts.
func (r *PostgresRepository) CreateFreePost(ctx context.Context, params CreateFreePostParams) (*domain.Post, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	post := domain.Post{
		ID:          uuid.New(),
		GroupID:     params.GroupID,
		AuthorID:    params.AuthorID,
		Content:     params.Content,
		CreditsPaid: 0,
		IsFreePost:  true,
		ScheduledAt: params.ScheduledAt,
		Status:      domain.PostStatusScheduled,
	}
	postQuery := `
		INSERT INTO posts (id, group_id, author_id, content, credits_paid, is_free_post, scheduled_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	if err := tx.QueryRow(ctx, postQuery,
		post.ID, post.GroupID, post.AuthorID, post.Content,
		post.CreditsPaid, post.IsFreePost, post.ScheduledAt, post.Status,
	).Scan(&post.CreatedAt); err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx,
		"UPDATE groups SET total_posts_scheduled = total_posts_scheduled + 1, updated_at = NOW() WHERE id = $1",
		params.GroupID,
	)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrGroupNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &post, nil
}

// RecordPurchaseWebhook credits purchased credits exactly once per external
// event id. The unique insert into webhook_events is the authoritative
// dedupe: a replayed event inserts nothing and the credit is skipped.
func (r *PostgresRepository) RecordPurchaseWebhook(ctx context.Context, event domain.WebhookEvent) (*domain.LedgerEntry, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	insertQuery := `
		INSERT INTO webhook_events (event_id, provider, account_id, credits)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO NOTHING
	`
	tag, err := tx.Exec(ctx, insertQuery, event.EventID, event.Provider, event.AccountID, event.Credits)
	if err != nil {
		return nil, false, err
	}
	if tag.RowsAffected() == 0 {
		return nil, true, nil
	}

	if _, err := lockAccountCredits(ctx, tx, event.AccountID); err != nil {
		return nil, false, err
	}
	entry, err := insertLedgerEntry(ctx, tx, event.AccountID, event.Credits, domain.LedgerKindPurchase, domain.LedgerChangeContext{
		Description: fmt.Sprintf("Credit purchase via %s (event %s)", event.Provider, event.EventID),
	})
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return entry, false, nil
}
