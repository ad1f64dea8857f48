/**
 * @description
 * Free-post quiet-period evaluation. A group owner can offer members one
 * free post every N days; this file decides whether a given requester is
 * currently eligible in a given group. The rules are ordered and the first
 * matching rule wins:
 *
 *  1. The requester owns the group: always eligible.
 *  2. The group is entirely free (price 0) with no interval: always eligible.
 *  3. The group is free with an interval: eligible once the interval has
 *     elapsed since the requester's most recent post of any kind.
 *  4. The group is paid: with no interval free posting is never available;
 *     otherwise eligible iff the requester has never used a free post or the
 *     interval has elapsed since their last one. Paid-post history does not
 *     restart the clock.
 */

package app

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/slotpost/credit-service/internal/domain"
)

// EvaluateFreePostEligibility applies the quiet-period rules for one
// requester in one group.
func (s *Service) EvaluateFreePostEligibility(ctx context.Context, groupID, requesterID uuid.UUID) (*domain.FreePostEligibility, error) {
	group, err := s.repo.FindGroupByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return s.evaluateFreePost(ctx, group, requesterID, time.Now().UTC())
}

func (s *Service) evaluateFreePost(ctx context.Context, group *domain.Group, requesterID uuid.UUID, now time.Time) (*domain.FreePostEligibility, error) {
	if requesterID == group.OwnerID {
		return &domain.FreePostEligibility{CanUseFree: true}, nil
	}

	if group.PricePerPost > 0 {
		if group.FreePostIntervalDays <= 0 {
			return &domain.FreePostEligibility{CanUseFree: false}, nil
		}
		lastFree, err := s.repo.FindLastFreePostTime(ctx, group.ID, requesterID)
		if err != nil {
			return nil, err
		}
		if lastFree == nil {
			return &domain.FreePostEligibility{CanUseFree: true}, nil
		}
		return quietPeriodResult(group.FreePostIntervalDays, *lastFree, lastFree, now), nil
	}

	if group.FreePostIntervalDays <= 0 {
		return &domain.FreePostEligibility{CanUseFree: true}, nil
	}

	lastPost, err := s.repo.FindLastScheduledPostTime(ctx, group.ID, requesterID)
	if err != nil {
		return nil, err
	}
	if lastPost == nil {
		return &domain.FreePostEligibility{CanUseFree: true}, nil
	}
	lastFree, err := s.repo.FindLastFreePostTime(ctx, group.ID, requesterID)
	if err != nil {
		return nil, err
	}
	return quietPeriodResult(group.FreePostIntervalDays, *lastPost, lastFree, now), nil
}

func quietPeriodResult(intervalDays int, reference time.Time, lastFree *time.Time, now time.Time) *domain.FreePostEligibility {
	interval := time.Duration(intervalDays) * 24 * time.Hour
	elapsed := now.Sub(reference)
	if elapsed >= interval {
		return &domain.FreePostEligibility{CanUseFree: true, LastFreePostAt: lastFree}
	}

	remaining := int(math.Ceil((interval - elapsed).Hours() / 24))
	if remaining < 1 {
		remaining = 1
	}
	return &domain.FreePostEligibility{
		CanUseFree:     false,
		DaysRemaining:  &remaining,
		LastFreePostAt: lastFree,
	}
}
