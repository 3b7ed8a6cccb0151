package mirror

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"valcore/internal/domain"
	"valcore/pkg/errs"
)

// Service validates and appends narrative entries and answers queries. The
// running per-account balances it keeps are display-only; the ledger is the
// only authority.
type Service struct {
	store Store

	mu       sync.RWMutex
	balances map[domain.AccountID]int64
}

func NewService(store Store) *Service {
	return &Service{
		store:    store,
		balances: make(map[domain.AccountID]int64),
	}
}

// Record appends an entry and returns its id. Entries must balance
// debits=credits; unbalanced entries are refused before touching the store.
func (s *Service) Record(ctx context.Context, entry domain.NarrativeEntry) (string, error) {
	if err := entry.Balanced(); err != nil {
		return "", errs.Wrap(errs.CodeBadRequest, "narrative entry must balance", err)
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}
	if err := s.store.Append(ctx, entry); err != nil {
		return "", errs.Wrap(errs.CodeMirrorWrite, "append narrative entry", err)
	}

	s.mu.Lock()
	for _, line := range entry.Lines {
		switch line.Direction {
		case domain.Credit:
			s.balances[line.Account] += int64(line.Amount)
		case domain.Debit:
			s.balances[line.Account] -= int64(line.Amount)
		}
	}
	s.mu.Unlock()

	return entry.ID, nil
}

// EntriesByClaim returns all entries mirroring one claim's lifecycle.
func (s *Service) EntriesByClaim(ctx context.Context, claimID string) ([]domain.NarrativeEntry, error) {
	return s.store.ListByClaim(ctx, claimID)
}

// EntriesByAccount returns all entries touching one account.
func (s *Service) EntriesByAccount(ctx context.Context, account domain.AccountID) ([]domain.NarrativeEntry, error) {
	return s.store.ListByAccount(ctx, account)
}

// EntriesByStatus returns all entries with the given status.
func (s *Service) EntriesByStatus(ctx context.Context, status domain.NarrativeStatus) ([]domain.NarrativeEntry, error) {
	return s.store.ListByStatus(ctx, status)
}

// DisplayBalance returns the advisory running balance for an account. It may
// lag or disagree with the ledger and must never be used for clearing
// decisions.
func (s *Service) DisplayBalance(account domain.AccountID) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[account]
}
