package domain

import "time"

// HonoringStatus is the terminal or in-flight state of external fulfillment.
type HonoringStatus string

const (
	// Honored means the provider confirmed fulfillment.
	Honored HonoringStatus = "HONORED"
	// HonoringPending means the provider accepted the request but has not
	// settled it yet; a webhook or status poll resolves it later.
	HonoringPending HonoringStatus = "PENDING"
	// FailedExternal means the provider failed in a way that is final for
	// this attempt cycle (outage, configuration, auth).
	FailedExternal HonoringStatus = "FAILED_EXTERNAL"
	// HonoringRejected means the provider declined the request outright
	// (compliance, invalid recipient, business rule).
	HonoringRejected HonoringStatus = "REJECTED"
	// ManualReview means the final provider state is ambiguous after
	// exhausting retries; a human must reconcile. Never silently dropped.
	ManualReview HonoringStatus = "MANUAL_REVIEW"
)

// Terminal reports whether the status can still change without operator
// intervention.
func (s HonoringStatus) Terminal() bool {
	return s == Honored || s == FailedExternal || s == HonoringRejected || s == ManualReview
}

// HonoringResult is the outcome of attempting external fulfillment for one
// cleared transfer. It never mutates the transfer; a failed honoring leaves
// the ledger exactly as clearing left it.
type HonoringResult struct {
	TransferID  TransferID
	ClaimID     string
	Adapter     string
	Status      HonoringStatus
	ExternalRef string
	ProofHash   string
	Detail      string
	Attempts    int
	SettledAt   time.Time
}
