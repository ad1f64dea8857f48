/**
 * @description
 * Background jobs for the credit-service, driven by cron. The only job today
 * is the nightly conservation audit: it recomputes every account's balance
 * from balance-moving ledger entries and logs any account whose projection
 * has drifted. Drift means a write path bypassed the atomic ledger change
 * and is a bug to chase, so the audit only reports, never repairs.
 *
 * @dependencies
 * - github.com/robfig/cron/v3: Job scheduling.
 * - internal/store: Repository access for the audit query.
 */

package jobs

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/slotpost/credit-service/internal/store"
)

// Scheduler manages the service's background jobs.
type Scheduler struct {
	cron *cron.Cron
	repo store.Repository
}

// NewScheduler creates the job scheduler. Jobs run on UTC so the audit line
// in the logs carries the same date everywhere the service is deployed.
func NewScheduler(repo store.Repository) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLocation(time.UTC)),
		repo: repo,
	}
}

// Start registers and starts all background jobs.
func (s *Scheduler) Start(ctx context.Context) {
	// Nightly conservation audit at 03:10 UTC, off the busy hours.
	s.cron.AddFunc("10 3 * * *", func() {
		auditCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		s.RunConservationAudit(auditCtx)
	})

	s.cron.Start()
	log.Printf("level=info component=jobs msg=\"scheduler started\"")
}

// RunConservationAudit executes one audit pass and logs every drifted
// account. Exported so it can be triggered manually and tested directly.
func (s *Scheduler) RunConservationAudit(ctx context.Context) {
	drifts, err := s.repo.AuditConservation(ctx)
	if err != nil {
		log.Printf("level=error component=jobs job=conservation_audit msg=\"audit failed\" err=%v", err)
		return
	}
	if len(drifts) == 0 {
		log.Printf("level=info component=jobs job=conservation_audit msg=\"no drift detected\"")
		return
	}
	for _, drift := range drifts {
		log.Printf("level=error component=jobs job=conservation_audit msg=\"balance drift\" account_id=%s credits=%d ledger_sum=%d delta=%d",
			drift.AccountID, drift.Credits, drift.LedgerSum, drift.Credits-drift.LedgerSum)
	}
}

// Stop halts the scheduler and waits for any running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Printf("level=info component=jobs msg=\"scheduler stopped\"")
}
