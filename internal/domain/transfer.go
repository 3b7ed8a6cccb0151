package domain

import "time"

// ClearedTransfer is the ledger-side record of an irreversibly committed
// obligation. For a given TransferID at most one transfer is ever posted;
// resubmission is a no-op that reports the original outcome.
type ClearedTransfer struct {
	TransferID TransferID
	Debit      AccountID
	Credit     AccountID
	Amount     Amount
	Ledger     uint32
	Code       string
	PostedAt   time.Time
	ClaimID    string
}
