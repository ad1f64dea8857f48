/**
 * @description
 * Sticky-post request workflow logic. Unlike credit requests, sticky
 * requests are prepaid: the requester is debited the full cost (price per
 * day times the requested period) when the request is created. Approval and
 * fulfilment are pure status changes; rejection refunds exactly what was
 * paid. Authorization is decided here; status transitions and the refund are
 * applied by the repository on locked rows.
 */

package app

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/slotpost/credit-service/internal/domain"
	"github.com/slotpost/credit-service/internal/store"
	"github.com/slotpost/credit-service/pkg/rabbitmq"
)

// CreateStickyRequest opens a prepaid sticky-post request. PeriodDays
// defaults to the group's configured period when the payload omits it.
func (s *Service) CreateStickyRequest(ctx context.Context, requesterID uuid.UUID, payload domain.CreateStickyRequestPayload) (*domain.StickyPostRequest, error) {
	group, err := s.repo.FindGroupByID(ctx, payload.GroupID)
	if err != nil {
		return nil, err
	}
	if !group.Sellable() {
		return nil, ErrGroupNotSellable
	}

	periodDays := payload.PeriodDays
	if periodDays <= 0 {
		periodDays = group.StickyPostPeriodDays
	}
	if periodDays <= 0 {
		return nil, fmt.Errorf("group %s has no sticky post period: %w", group.ID, ErrInvalidAmount)
	}
	if err := requirePositiveAmount(group.StickyPostPrice); err != nil {
		return nil, fmt.Errorf("group %s has no sticky post price: %w", group.ID, err)
	}
	totalCost := group.StickyPostPrice * int64(periodDays)

	req, err := s.repo.CreateStickyRequest(ctx, store.CreateStickyRequestParams{
		RequesterID:  requesterID,
		GroupID:      group.ID,
		GroupOwnerID: group.OwnerID,
		PostID:       payload.PostID,
		PeriodDays:   periodDays,
		TotalCost:    totalCost,
	})
	if err != nil {
		return nil, err
	}
	log.Printf("level=info component=service msg=\"sticky request created\" request_id=%s requester_id=%s group_id=%s cost=%d", req.ID, requesterID, group.ID, totalCost)
	return req, nil
}

// GetStickyRequest returns one request, visible only to its two parties.
func (s *Service) GetStickyRequest(ctx context.Context, callerID, requestID uuid.UUID) (*domain.StickyPostRequest, error) {
	req, err := s.repo.GetStickyRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.RequesterID != callerID && req.GroupOwnerID != callerID {
		return nil, ErrUnauthorized
	}
	return req, nil
}

// ListStickyRequests returns the caller's requests, by role.
func (s *Service) ListStickyRequests(ctx context.Context, callerID uuid.UUID, asOwner bool, limit, offset int) ([]domain.StickyPostRequest, error) {
	if asOwner {
		return s.repo.ListStickyRequestsByOwner(ctx, callerID, limit, offset)
	}
	return s.repo.ListStickyRequestsByRequester(ctx, callerID, limit, offset)
}

// loadOwnedStickyRequest fetches a request and verifies the caller owns the
// target group.
func (s *Service) loadOwnedStickyRequest(ctx context.Context, approverID, requestID uuid.UUID) (*domain.StickyPostRequest, error) {
	req, err := s.repo.GetStickyRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.GroupOwnerID != approverID {
		return nil, ErrUnauthorized
	}
	return req, nil
}

// ApproveStickyRequest accepts a pending request. The credits stay spent.
func (s *Service) ApproveStickyRequest(ctx context.Context, approverID, requestID uuid.UUID) (*domain.StickyPostRequest, error) {
	if _, err := s.loadOwnedStickyRequest(ctx, approverID, requestID); err != nil {
		return nil, err
	}
	approved, err := s.repo.ApproveStickyRequest(ctx, requestID, approverID)
	if err != nil {
		return nil, err
	}
	log.Printf("level=info component=service msg=\"sticky request approved\" request_id=%s", requestID)
	return approved, nil
}

// RejectStickyRequest declines a pending request and refunds the prepaid
// credits in the same store transaction as the status change.
func (s *Service) RejectStickyRequest(ctx context.Context, approverID, requestID uuid.UUID, payload domain.ProcessStickyRequestPayload) (*domain.StickyPostRequest, error) {
	if _, err := s.loadOwnedStickyRequest(ctx, approverID, requestID); err != nil {
		return nil, err
	}

	var notes *string
	if payload.Notes != "" {
		notes = &payload.Notes
	}
	rejected, err := s.repo.RejectStickyRequest(ctx, requestID, approverID, notes)
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=service msg=\"sticky request rejected\" request_id=%s refunded=%d", requestID, rejected.CreditsPaid)
	s.publishCreditsMoved(ctx, rabbitmq.RoutingKeyCreditsRefunded, rejected.RequesterID, rejected.CreditsPaid, "sticky post request rejected")
	return rejected, nil
}

// FulfillStickyRequest marks an approved request FULFILLED once the owner
// has pinned the post.
func (s *Service) FulfillStickyRequest(ctx context.Context, approverID, requestID uuid.UUID) (*domain.StickyPostRequest, error) {
	if _, err := s.loadOwnedStickyRequest(ctx, approverID, requestID); err != nil {
		return nil, err
	}
	fulfilled, err := s.repo.FulfillStickyRequest(ctx, requestID, approverID)
	if err != nil {
		return nil, err
	}
	log.Printf("level=info component=service msg=\"sticky request fulfilled\" request_id=%s", requestID)
	return fulfilled, nil
}
