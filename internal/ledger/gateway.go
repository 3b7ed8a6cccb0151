// Package ledger defines the contract over the authoritative clearing
// service. It is the sole writer of truth: balances are always derived reads,
// transfers are forward-only, and a posted transfer is never edited or rolled
// back.
package ledger

import (
	"context"
	"errors"

	"valcore/internal/domain"
)

// AccountFlags mirror the ledger protocol's account behavior bits.
type AccountFlags struct {
	// DebitsMustNotExceedCredits makes the ledger reject transfers that
	// would overdraw the account.
	DebitsMustNotExceedCredits bool
}

// Account is the gateway-side view of a ledger account.
type Account struct {
	ID     domain.AccountID
	Ledger uint32
	Code   string
	Flags  AccountFlags
}

// Transfer is a pending submission. The ID is the deterministic idempotency
// id derived from the claim; it is never random.
type Transfer struct {
	ID     domain.TransferID
	Debit  domain.AccountID
	Credit domain.AccountID
	Amount domain.Amount
	Ledger uint32
	Code   string
}

// Balance is a live read of an account's postings.
type Balance struct {
	Credits uint64
	Debits  uint64
}

// Net returns credits minus debits. This system never caches it as mutable
// state.
func (b Balance) Net() int64 {
	return int64(b.Credits) - int64(b.Debits)
}

// OutcomeStatus is the tri-state result of a transfer submission.
type OutcomeStatus int

const (
	// Accepted means the ledger posted the transfer.
	Accepted OutcomeStatus = iota
	// Exists means a transfer with this idempotency id was already posted.
	// Callers must treat this identically to Accepted.
	Exists
	// Rejected means the ledger refused the transfer for a substantive
	// reason. Never retried at this layer.
	Rejected
)

func (s OutcomeStatus) String() string {
	switch s {
	case Accepted:
		return "accepted"
	case Exists:
		return "exists"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Outcome carries the submission status plus the rejection reason when the
// status is Rejected.
type Outcome struct {
	Status OutcomeStatus
	Reason RejectReason
}

// Cleared reports whether the submission converged to a posted transfer,
// counting idempotent replays as success.
func (o Outcome) Cleared() bool {
	return o.Status == Accepted || o.Status == Exists
}

// ErrTransferNotFound is returned by LookupTransfer for unknown ids.
var ErrTransferNotFound = errors.New("ledger: transfer not found")

// ErrAccountNotFound is returned by LookupBalance for unknown accounts.
var ErrAccountNotFound = errors.New("ledger: account not found")

// Gateway is the thin, idempotency-aware client contract over the clearing
// service.
type Gateway interface {
	// CreateAccounts registers accounts, ignoring ones that already exist.
	CreateAccounts(ctx context.Context, accounts []Account) error

	// CreateTransfer submits a transfer. For a given transfer ID at most one
	// transfer is ever posted; resubmission reports the original outcome
	// with status Exists.
	CreateTransfer(ctx context.Context, transfer Transfer) (Outcome, error)

	// LookupTransfer fetches a posted transfer by idempotency id. Used to
	// resolve submission timeouts before concluding failure.
	LookupTransfer(ctx context.Context, id domain.TransferID) (Transfer, error)

	// LookupBalance computes the account's live balance at the ledger.
	LookupBalance(ctx context.Context, account domain.AccountID) (Balance, error)
}
