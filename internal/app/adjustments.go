/**
 * @description
 * Manual balance adjustments for support tooling. Internal callers (behind
 * the service API key, never end users) credit or debit a single account
 * with a GRANT ledger entry, so every correction stays on the audit trail
 * and the nightly conservation check keeps passing.
 */

package app

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/slotpost/credit-service/internal/domain"
	"github.com/slotpost/credit-service/pkg/rabbitmq"
)

// AdjustBalance applies a signed manual correction to one account. The store
// rejects a zero amount and a debit that would take the balance negative.
func (s *Service) AdjustBalance(ctx context.Context, accountID uuid.UUID, amount int64, reason string) (*domain.LedgerEntry, error) {
	if reason == "" {
		reason = "Manual balance adjustment"
	}

	entry, err := s.repo.ApplyLedgerChange(ctx, accountID, amount, domain.LedgerKindGrant, domain.LedgerChangeContext{
		Description: reason,
	})
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=service msg=\"balance adjusted\" account_id=%s amount=%d", accountID, amount)
	s.publishCreditsMoved(ctx, rabbitmq.RoutingKeyCreditsGranted, accountID, amount, reason)
	return entry, nil
}
