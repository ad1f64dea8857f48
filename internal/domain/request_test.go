package domain

import "testing"

func TestCreditRequestStatusTransitions(t *testing.T) {
	tests := []struct {
		name string
		from CreditRequestStatus
		to   CreditRequestStatus
		want bool
	}{
		{name: "pending to approved", from: CreditRequestPending, to: CreditRequestApproved, want: true},
		{name: "pending to rejected", from: CreditRequestPending, to: CreditRequestRejected, want: true},
		{name: "approved is terminal", from: CreditRequestApproved, to: CreditRequestRejected, want: false},
		{name: "rejected is terminal", from: CreditRequestRejected, to: CreditRequestApproved, want: false},
		{name: "no self transition", from: CreditRequestPending, to: CreditRequestPending, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Fatalf("%s -> %s: expected %t, got %t", tt.from, tt.to, tt.want, got)
			}
		})
	}

	if CreditRequestPending.Terminal() {
		t.Fatal("PENDING must not be terminal")
	}
	if !CreditRequestApproved.Terminal() || !CreditRequestRejected.Terminal() {
		t.Fatal("APPROVED and REJECTED must be terminal")
	}
}

func TestStickyRequestStatusTransitions(t *testing.T) {
	tests := []struct {
		name string
		from StickyRequestStatus
		to   StickyRequestStatus
		want bool
	}{
		{name: "pending to approved", from: StickyRequestPending, to: StickyRequestApproved, want: true},
		{name: "pending to rejected", from: StickyRequestPending, to: StickyRequestRejected, want: true},
		{name: "pending cannot skip to fulfilled", from: StickyRequestPending, to: StickyRequestFulfilled, want: false},
		{name: "approved to fulfilled", from: StickyRequestApproved, to: StickyRequestFulfilled, want: true},
		{name: "approved cannot be rejected", from: StickyRequestApproved, to: StickyRequestRejected, want: false},
		{name: "rejected is terminal", from: StickyRequestRejected, to: StickyRequestApproved, want: false},
		{name: "fulfilled is terminal", from: StickyRequestFulfilled, to: StickyRequestApproved, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Fatalf("%s -> %s: expected %t, got %t", tt.from, tt.to, tt.want, got)
			}
		})
	}

	if StickyRequestPending.Terminal() || StickyRequestApproved.Terminal() {
		t.Fatal("PENDING and APPROVED must not be terminal")
	}
	if !StickyRequestRejected.Terminal() || !StickyRequestFulfilled.Terminal() {
		t.Fatal("REJECTED and FULFILLED must be terminal")
	}
}

func TestLedgerKindMovesBalance(t *testing.T) {
	moving := []LedgerKind{LedgerKindPurchase, LedgerKindSpent, LedgerKindEarned, LedgerKindGrant}
	for _, kind := range moving {
		if !kind.MovesBalance() {
			t.Fatalf("%s must move the balance", kind)
		}
	}
	if LedgerKindCommission.MovesBalance() {
		t.Fatal("COMMISSION entries are audit-only and must not move the balance")
	}
}

func TestLedgerKindValid(t *testing.T) {
	for _, kind := range []LedgerKind{LedgerKindPurchase, LedgerKindSpent, LedgerKindEarned, LedgerKindGrant, LedgerKindCommission} {
		if !kind.Valid() {
			t.Fatalf("%s must be valid", kind)
		}
	}
	if LedgerKind("BONUS").Valid() {
		t.Fatal("undefined kind must be invalid")
	}
}

func TestGroupSellable(t *testing.T) {
	tests := []struct {
		name     string
		verified bool
		active   bool
		want     bool
	}{
		{name: "verified and active", verified: true, active: true, want: true},
		{name: "unverified", verified: false, active: true, want: false},
		{name: "inactive", verified: true, active: false, want: false},
		{name: "neither", verified: false, active: false, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &Group{IsVerified: tt.verified, IsActive: tt.active}
			if got := g.Sellable(); got != tt.want {
				t.Fatalf("expected %t, got %t", tt.want, got)
			}
		})
	}
}
