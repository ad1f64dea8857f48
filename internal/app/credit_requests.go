/**
 * @description
 * Credit-request workflow logic. A requester asks a group owner for credits;
 * the owner approves (optionally with a different amount) or rejects.
 * Authorization is decided here, before any store write: only the addressed
 * owner may process a request. Status races are resolved by the repository
 * on a locked row, so the second of two concurrent approvals fails with
 * store.ErrRequestAlreadyProcessed.
 */

package app

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/slotpost/credit-service/internal/domain"
	"github.com/slotpost/credit-service/internal/store"
	"github.com/slotpost/credit-service/pkg/rabbitmq"
)

// CreateCreditRequest opens a PENDING request addressed to an owner. Nothing
// moves until the owner approves.
func (s *Service) CreateCreditRequest(ctx context.Context, requesterID uuid.UUID, payload domain.CreateCreditRequestPayload) (*domain.CreditRequest, error) {
	if err := requirePositiveAmount(payload.Amount); err != nil {
		return nil, err
	}
	if payload.OwnerID == requesterID {
		return nil, ErrUnauthorized
	}
	if _, err := s.repo.FindAccountByID(ctx, payload.OwnerID); err != nil {
		return nil, err
	}

	req := &domain.CreditRequest{
		RequesterID: requesterID,
		OwnerID:     payload.OwnerID,
		Amount:      payload.Amount,
	}
	if payload.Reason != "" {
		req.Reason = &payload.Reason
	}
	created, err := s.repo.CreateCreditRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	log.Printf("level=info component=service msg=\"credit request created\" request_id=%s requester_id=%s owner_id=%s amount=%d", created.ID, requesterID, payload.OwnerID, payload.Amount)
	return created, nil
}

// GetCreditRequest returns one request, visible only to its two parties.
func (s *Service) GetCreditRequest(ctx context.Context, callerID, requestID uuid.UUID) (*domain.CreditRequest, error) {
	req, err := s.repo.GetCreditRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.RequesterID != callerID && req.OwnerID != callerID {
		return nil, ErrUnauthorized
	}
	return req, nil
}

// ListCreditRequests returns the caller's requests: those they opened and
// those addressed to them, depending on role.
func (s *Service) ListCreditRequests(ctx context.Context, callerID uuid.UUID, asOwner bool, limit, offset int) ([]domain.CreditRequest, error) {
	if asOwner {
		return s.repo.ListCreditRequestsByOwner(ctx, callerID, limit, offset)
	}
	return s.repo.ListCreditRequestsByRequester(ctx, callerID, limit, offset)
}

// ApproveCreditRequest grants credits to the requester. Only the addressed
// owner may approve; the payload amount, when present, overrides the
// requested amount.
func (s *Service) ApproveCreditRequest(ctx context.Context, approverID, requestID uuid.UUID, payload domain.ProcessCreditRequestPayload) (*domain.CreditRequest, error) {
	req, err := s.repo.GetCreditRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.OwnerID != approverID {
		return nil, ErrUnauthorized
	}

	amount := req.Amount
	if payload.Amount != nil {
		amount = *payload.Amount
	}
	if err := requirePositiveAmount(amount); err != nil {
		return nil, err
	}

	params := store.ApproveCreditRequestParams{
		RequestID:  requestID,
		ApproverID: approverID,
		Amount:     amount,
	}
	if payload.Notes != "" {
		params.Notes = &payload.Notes
	}
	approved, err := s.repo.ApproveCreditRequest(ctx, params)
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=service msg=\"credit request approved\" request_id=%s requester_id=%s amount=%d", requestID, approved.RequesterID, amount)
	s.publishCreditsMoved(ctx, rabbitmq.RoutingKeyCreditsGranted, approved.RequesterID, amount, "credit request approved")
	return approved, nil
}

// RejectCreditRequest declines a pending request. No ledger entry is written.
func (s *Service) RejectCreditRequest(ctx context.Context, approverID, requestID uuid.UUID, payload domain.ProcessCreditRequestPayload) (*domain.CreditRequest, error) {
	req, err := s.repo.GetCreditRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.OwnerID != approverID {
		return nil, ErrUnauthorized
	}

	var notes *string
	if payload.Notes != "" {
		notes = &payload.Notes
	}
	rejected, err := s.repo.RejectCreditRequest(ctx, requestID, approverID, notes)
	if err != nil {
		return nil, err
	}
	log.Printf("level=info component=service msg=\"credit request rejected\" request_id=%s requester_id=%s", requestID, rejected.RequesterID)
	return rejected, nil
}
