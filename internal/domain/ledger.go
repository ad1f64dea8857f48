/**
 * @description
 * This file defines the core ledger domain models for the credit-service.
 * The ledger is append-only: every balance-affecting event produces exactly
 * one immutable entry, and the `accounts.credits` projection is written in
 * the same database transaction as the entry it reflects.
 *
 * @notes
 * - Credit amounts are stored as `int64`. Credits are whole units by product
 *   decision, so there is no fractional representation to worry about.
 * - COMMISSION entries are audit-only annotations: they record the platform's
 *   retained share of a paid post but do not move the owner's balance. Any
 *   code that recomputes a balance from entries must skip them, which is what
 *   LedgerKind.MovesBalance is for.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// LedgerKind is the business reason a ledger entry exists.
type LedgerKind string

const (
	// LedgerKindPurchase records credits bought through the payment provider.
	LedgerKindPurchase LedgerKind = "PURCHASE"
	// LedgerKindSpent records a debit for a paid or sticky post.
	LedgerKindSpent LedgerKind = "SPENT"
	// LedgerKindEarned records a credit to a group owner (or a refund to a requester).
	LedgerKindEarned LedgerKind = "EARNED"
	// LedgerKindGrant records an owner-approved credit grant to a requester.
	LedgerKindGrant LedgerKind = "GRANT"
	// LedgerKindCommission records the platform's share of a paid post. Audit-only.
	LedgerKindCommission LedgerKind = "COMMISSION"
)

// Valid reports whether k is one of the defined ledger kinds.
func (k LedgerKind) Valid() bool {
	switch k {
	case LedgerKindPurchase, LedgerKindSpent, LedgerKindEarned, LedgerKindGrant, LedgerKindCommission:
		return true
	}
	return false
}

// MovesBalance reports whether entries of this kind contribute to the balance
// projection. COMMISSION entries are recorded for reporting only.
func (k LedgerKind) MovesBalance() bool {
	return k != LedgerKindCommission
}

// Account holds the balance projection for one platform account. Accounts are
// created and destroyed by the identity service; the credit-service only ever
// mutates the `credits` column, and only through the atomic ledger path.
type Account struct {
	ID        uuid.UUID `json:"id"`
	Credits   int64     `json:"credits"`
	Role      string    `json:"role"` // e.g. 'member', 'group_owner', 'admin'
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LedgerEntry is one immutable row of an account's audit trail. Positive
// amounts are credits, negative amounts are debits.
type LedgerEntry struct {
	ID             uuid.UUID  `json:"id"`
	AccountID      uuid.UUID  `json:"account_id"`
	Amount         int64      `json:"amount"`
	Kind           LedgerKind `json:"kind"`
	RelatedPostID  *uuid.UUID `json:"related_post_id,omitempty"`
	RelatedGroupID *uuid.UUID `json:"related_group_id,omitempty"`
	Description    string     `json:"description"`
	CreatedAt      time.Time  `json:"created_at"`
}

// LedgerChangeContext carries the optional references recorded on a new entry.
type LedgerChangeContext struct {
	RelatedPostID  *uuid.UUID
	RelatedGroupID *uuid.UUID
	Description    string
}

// ConservationDrift reports an account whose projected balance disagrees with
// the sum of its balance-moving ledger entries. Produced by the nightly audit.
type ConservationDrift struct {
	AccountID uuid.UUID `json:"account_id"`
	Credits   int64     `json:"credits"`
	LedgerSum int64     `json:"ledger_sum"`
}
