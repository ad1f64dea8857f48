/**
 * @description
 * Group and post domain models. A Group is a Telegram group whose owner sells
 * posting slots; Posts are the scheduled slots themselves. Group rows carry
 * two denormalized counters (`total_revenue`, `total_posts_scheduled`) that
 * are updated inside the same transaction as the settlement that changes them.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// PostStatus tracks a scheduled post through delivery. Delivery itself is
// handled by a separate subsystem; the credit-service only writes SCHEDULED.
type PostStatus string

const (
	PostStatusScheduled PostStatus = "SCHEDULED"
	PostStatusSent      PostStatus = "SENT"
	PostStatusFailed    PostStatus = "FAILED"
)

// Group represents a monetized Telegram group.
type Group struct {
	ID                   uuid.UUID `json:"id"`
	OwnerID              uuid.UUID `json:"owner_id"`
	Title                string    `json:"title"`
	PricePerPost         int64     `json:"price_per_post"`
	FreePostIntervalDays int       `json:"free_post_interval_days"`
	StickyPostPrice      int64     `json:"sticky_post_price"` // per day
	StickyPostPeriodDays int       `json:"sticky_post_period_days"`
	// RevenueSharePercent is the platform's cut of each paid post. Nil means
	// the configured platform default applies.
	RevenueSharePercent *float64  `json:"revenue_share_percent,omitempty"`
	TotalRevenue        int64     `json:"total_revenue"`
	TotalPostsScheduled int64     `json:"total_posts_scheduled"`
	IsVerified          bool      `json:"is_verified"`
	IsActive            bool      `json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Sellable reports whether paid posts can currently be settled against the group.
func (g *Group) Sellable() bool {
	return g.IsVerified && g.IsActive
}

// Post is one scheduled posting slot in a group.
type Post struct {
	ID          uuid.UUID  `json:"id"`
	GroupID     uuid.UUID  `json:"group_id"`
	AuthorID    uuid.UUID  `json:"author_id"`
	Content     string     `json:"content"`
	CreditsPaid int64      `json:"credits_paid"`
	IsFreePost  bool       `json:"is_free_post"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	Status      PostStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}

// FreePostEligibility is the result of the quiet-period evaluation for one
// requester in one group. DaysRemaining is set only when ineligible because
// an interval has not yet elapsed.
type FreePostEligibility struct {
	CanUseFree     bool       `json:"can_use_free"`
	DaysRemaining  *int       `json:"days_remaining,omitempty"`
	LastFreePostAt *time.Time `json:"last_free_post_at,omitempty"`
}

// SettlePaidPostRequest is the DTO for the paid-post settlement endpoint.
type SettlePaidPostRequest struct {
	GroupID     uuid.UUID `json:"group_id"`
	Content     string    `json:"content"`
	ScheduledAt time.Time `json:"scheduled_at"`
	UseFreePost bool      `json:"use_free_post"`
}
