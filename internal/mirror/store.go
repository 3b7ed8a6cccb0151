// Package mirror is the append-only, best-effort observation store. It
// mirrors lifecycle events as double-entry narrative lines for audit and
// display. Never authoritative: nothing here is fed back into clearing
// decisions, and losing every entry changes no ledger-reported balance.
package mirror

import (
	"context"

	"valcore/internal/domain"
	"valcore/pkg/errs"
)

// ErrNotFound keeps store-level misses consistent across implementations.
var ErrNotFound = errs.New(errs.CodeNotFound, "narrative entry not found")

// Store persists narrative entries. Implementations are append-only: there is
// no update and no delete in the contract.
type Store interface {
	Append(ctx context.Context, entry domain.NarrativeEntry) error
	FindByID(ctx context.Context, id string) (domain.NarrativeEntry, error)
	ListByClaim(ctx context.Context, claimID string) ([]domain.NarrativeEntry, error)
	ListByAccount(ctx context.Context, account domain.AccountID) ([]domain.NarrativeEntry, error)
	ListByStatus(ctx context.Context, status domain.NarrativeStatus) ([]domain.NarrativeEntry, error)
}
