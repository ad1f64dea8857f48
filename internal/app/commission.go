package app

import "math"

// CommissionSplit is the division of one gross post price between the group
// owner and the platform. OwnerEarnings + Commission always equals Gross.
type CommissionSplit struct {
	Gross         int64
	OwnerEarnings int64
	Commission    int64
}

// SplitPrice divides a gross price by the group's revenue share rate. The
// owner's share is floored so the remainder (including all rounding dust)
// goes to the platform, never creating or destroying a credit.
func SplitPrice(gross int64, rate float64) CommissionSplit {
	if gross <= 0 {
		return CommissionSplit{Gross: gross}
	}
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	ownerEarnings := int64(math.Floor(float64(gross) * (1 - rate)))
	return CommissionSplit{
		Gross:         gross,
		OwnerEarnings: ownerEarnings,
		Commission:    gross - ownerEarnings,
	}
}

// groupRate resolves the effective revenue share for a group: its own
// override when present, otherwise the platform default.
func (s *Service) groupRate(override *float64) float64 {
	if override != nil {
		return *override
	}
	return s.commissionRate
}
