/**
 * @description
 * Paid-post settlement orchestration. The service validates the group and
 * resolves the commission split, then hands the pre-computed amounts to the
 * repository, which applies all writes in one transaction. Balance
 * sufficiency is checked inside that transaction on a locked row, so a
 * concurrent settlement against the same advertiser cannot overspend.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/slotpost/credit-service/internal/domain"
	"github.com/slotpost/credit-service/internal/store"
)

// SettlePost schedules a post in a group, settling payment atomically. When
// req.UseFreePost is set, eligibility is evaluated and, if granted, no
// credits move at all.
func (s *Service) SettlePost(ctx context.Context, advertiserID uuid.UUID, req domain.SettlePaidPostRequest) (*domain.Post, error) {
	log.Printf("level=info component=service msg=\"settling post\" advertiser_id=%s group_id=%s free=%v", advertiserID, req.GroupID, req.UseFreePost)

	group, err := s.repo.FindGroupByID(ctx, req.GroupID)
	if err != nil {
		return nil, err
	}
	if !group.Sellable() {
		return nil, ErrGroupNotSellable
	}

	scheduledAt := req.ScheduledAt
	if scheduledAt.IsZero() {
		scheduledAt = time.Now().UTC()
	}

	if req.UseFreePost {
		return s.settleFreePost(ctx, group, advertiserID, req.Content, scheduledAt)
	}

	if err := requirePositiveAmount(group.PricePerPost); err != nil {
		return nil, fmt.Errorf("group %s has no paid-post price: %w", group.ID, err)
	}
	split := SplitPrice(group.PricePerPost, s.groupRate(group.RevenueSharePercent))

	post, err := s.repo.SettlePaidPost(ctx, store.SettlePaidPostParams{
		GroupID:       group.ID,
		AdvertiserID:  advertiserID,
		OwnerID:       group.OwnerID,
		Price:         split.Gross,
		OwnerEarnings: split.OwnerEarnings,
		Commission:    split.Commission,
		Content:       req.Content,
		ScheduledAt:   scheduledAt,
	})
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=service msg=\"paid post settled\" post_id=%s gross=%d owner_earnings=%d commission=%d", post.ID, split.Gross, split.OwnerEarnings, split.Commission)
	s.publishPostSettled(ctx, post)
	return post, nil
}

// settleFreePost re-checks eligibility immediately before creating the post.
// The evaluation and the insert are not one transaction; the worst race is
// two free posts where one should have been paid, which the owner can see in
// the group's post list. Credits are never affected.
func (s *Service) settleFreePost(ctx context.Context, group *domain.Group, advertiserID uuid.UUID, content string, scheduledAt time.Time) (*domain.Post, error) {
	eligibility, err := s.evaluateFreePost(ctx, group, advertiserID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !eligibility.CanUseFree {
		return nil, ErrFreePostNotAvailable
	}

	post, err := s.repo.CreateFreePost(ctx, store.CreateFreePostParams{
		GroupID:     group.ID,
		AuthorID:    advertiserID,
		Content:     content,
		ScheduledAt: scheduledAt,
	})
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=service msg=\"free post scheduled\" post_id=%s group_id=%s", post.ID, group.ID)
	s.publishPostSettled(ctx, post)
	return post, nil
}
