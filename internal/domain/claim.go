package domain

import (
	"time"
)

// EventKind enumerates claim lifecycle event types. Spend kinds carry an
// anchor type suffix that selects the honoring adapter.
type EventKind string

const (
	KindEarn   EventKind = "earn"
	KindBonus  EventKind = "bonus"
	KindAdjust EventKind = "adjust"

	KindSpendGrocery  EventKind = "spend.grocery"
	KindSpendGiftCard EventKind = "spend.giftcard"
	KindSpendCashOut  EventKind = "spend.cashout"
)

// Valid reports whether the kind is one this pipeline clears.
func (k EventKind) Valid() bool {
	switch k {
	case KindEarn, KindBonus, KindAdjust, KindSpendGrocery, KindSpendGiftCard, KindSpendCashOut:
		return true
	default:
		return false
	}
}

// AnchorType returns the fulfillment category for spend kinds, or "" when the
// kind needs no external honoring.
func (k EventKind) AnchorType() string {
	switch k {
	case KindSpendGrocery, KindSpendGiftCard:
		return "giftcard"
	case KindSpendCashOut:
		return "payout"
	default:
		return ""
	}
}

// RequiresHonoring reports whether clearing this kind creates an external
// fulfillment obligation.
func (k EventKind) RequiresHonoring() bool {
	return k.AnchorType() != ""
}

// CreditEvent is an unverified claim that an obligation should be created.
// Immutable once created; a correction is a new claim with a new ID.
type CreditEvent struct {
	ID        string
	Kind      EventKind
	Subject   string
	Amount    Amount
	CreatedAt time.Time
	Metadata  map[string]string
}
