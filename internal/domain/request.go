/**
 * @description
 * Request workflow models: CreditRequest (a requester asking a group owner
 * for credits) and StickyPostRequest (a requester paying up front for a
 * pinned post). Both carry an explicit status enum with a central transition
 * table, so an illegal transition is rejected before any handler or store
 * code runs.
 *
 * The two workflows move money at different points:
 * - CreditRequest moves credits only on approval; rejection is a pure status
 *   change.
 * - StickyPostRequest debits the requester at creation, so rejection must
 *   refund exactly what was paid.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// CreditRequestStatus is the lifecycle state of a CreditRequest.
type CreditRequestStatus string

const (
	CreditRequestPending  CreditRequestStatus = "PENDING"
	CreditRequestApproved CreditRequestStatus = "APPROVED"
	CreditRequestRejected CreditRequestStatus = "REJECTED"
)

var creditRequestTransitions = map[CreditRequestStatus][]CreditRequestStatus{
	CreditRequestPending: {CreditRequestApproved, CreditRequestRejected},
}

// CanTransitionTo reports whether the transition s -> next is legal.
func (s CreditRequestStatus) CanTransitionTo(next CreditRequestStatus) bool {
	for _, allowed := range creditRequestTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible from s.
func (s CreditRequestStatus) Terminal() bool {
	return len(creditRequestTransitions[s]) == 0
}

// StickyRequestStatus is the lifecycle state of a StickyPostRequest.
// FULFILLED is reachable only from APPROVED; rejection is only valid from
// PENDING, because an approved request's credits are considered spent.
type StickyRequestStatus string

const (
	StickyRequestPending   StickyRequestStatus = "PENDING"
	StickyRequestApproved  StickyRequestStatus = "APPROVED"
	StickyRequestRejected  StickyRequestStatus = "REJECTED"
	StickyRequestFulfilled StickyRequestStatus = "FULFILLED"
)

var stickyRequestTransitions = map[StickyRequestStatus][]StickyRequestStatus{
	StickyRequestPending:  {StickyRequestApproved, StickyRequestRejected},
	StickyRequestApproved: {StickyRequestFulfilled},
}

// CanTransitionTo reports whether the transition s -> next is legal.
func (s StickyRequestStatus) CanTransitionTo(next StickyRequestStatus) bool {
	for _, allowed := range stickyRequestTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible from s.
func (s StickyRequestStatus) Terminal() bool {
	return len(stickyRequestTransitions[s]) == 0
}

// CreditRequest asks a group owner to grant credits to the requester.
type CreditRequest struct {
	ID          uuid.UUID           `json:"id"`
	RequesterID uuid.UUID           `json:"requester_id"`
	OwnerID     uuid.UUID           `json:"owner_id"`
	Amount      int64               `json:"amount"`
	Reason      *string             `json:"reason,omitempty"`
	Status      CreditRequestStatus `json:"status"`
	ProcessedBy *uuid.UUID          `json:"processed_by,omitempty"`
	ProcessedAt *time.Time          `json:"processed_at,omitempty"`
	Notes       *string             `json:"notes,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// StickyPostRequest asks a group owner to pin a post for a number of days.
// CreditsPaid is the amount already debited from the requester at creation.
type StickyPostRequest struct {
	ID           uuid.UUID           `json:"id"`
	RequesterID  uuid.UUID           `json:"requester_id"`
	GroupID      uuid.UUID           `json:"group_id"`
	GroupOwnerID uuid.UUID           `json:"group_owner_id"`
	PostID       *uuid.UUID          `json:"post_id,omitempty"`
	PeriodDays   int                 `json:"period_days"`
	CreditsPaid  int64               `json:"credits_paid"`
	Status       StickyRequestStatus `json:"status"`
	ProcessedAt  *time.Time          `json:"processed_at,omitempty"`
	FulfilledAt  *time.Time          `json:"fulfilled_at,omitempty"`
	Notes        *string             `json:"notes,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}

// ManagedRelationship is a denormalized owner/requester record tracking the
// cumulative credits an owner has granted. Upserted on every approval.
type ManagedRelationship struct {
	OwnerID             uuid.UUID `json:"owner_id"`
	RequesterID         uuid.UUID `json:"requester_id"`
	TotalCreditsGranted int64     `json:"total_credits_granted"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// CreateCreditRequestPayload is the DTO for opening a credit request.
type CreateCreditRequestPayload struct {
	OwnerID uuid.UUID `json:"owner_id"`
	Amount  int64     `json:"amount"`
	Reason  string    `json:"reason"`
}

// ProcessCreditRequestPayload is the DTO for approving or rejecting a credit
// request. Amount, when set on approval, overrides the requested amount.
type ProcessCreditRequestPayload struct {
	Amount *int64 `json:"amount,omitempty"`
	Notes  string `json:"notes"`
}

// CreateStickyRequestPayload is the DTO for opening a sticky-post request.
type CreateStickyRequestPayload struct {
	GroupID    uuid.UUID  `json:"group_id"`
	PostID     *uuid.UUID `json:"post_id,omitempty"`
	PeriodDays int        `json:"period_days"`
}

// ProcessStickyRequestPayload is the DTO for sticky-request transitions.
type ProcessStickyRequestPayload struct {
	Notes string `json:"notes"`
}
