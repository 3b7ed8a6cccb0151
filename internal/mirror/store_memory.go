package mirror

import (
	"context"
	"sync"

	"valcore/internal/domain"
)

// InMemoryStore keeps narrative entries in process. It is the default store
// in dev mode and the test double everywhere else.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []domain.NarrativeEntry
	byID    map[string]int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byID: make(map[string]int)}
}

func (s *InMemoryStore) Append(_ context.Context, entry domain.NarrativeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[entry.ID] = len(s.entries)
	s.entries = append(s.entries, entry)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (domain.NarrativeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i, ok := s.byID[id]; ok {
		return s.entries[i], nil
	}
	return domain.NarrativeEntry{}, ErrNotFound
}

func (s *InMemoryStore) ListByClaim(_ context.Context, claimID string) ([]domain.NarrativeEntry, error) {
	return s.filter(func(e domain.NarrativeEntry) bool { return e.ClaimID == claimID }), nil
}

func (s *InMemoryStore) ListByAccount(_ context.Context, account domain.AccountID) ([]domain.NarrativeEntry, error) {
	return s.filter(func(e domain.NarrativeEntry) bool {
		for _, line := range e.Lines {
			if line.Account == account {
				return true
			}
		}
		return false
	}), nil
}

func (s *InMemoryStore) ListByStatus(_ context.Context, status domain.NarrativeStatus) ([]domain.NarrativeEntry, error) {
	return s.filter(func(e domain.NarrativeEntry) bool { return e.Status == status }), nil
}

func (s *InMemoryStore) filter(keep func(domain.NarrativeEntry) bool) []domain.NarrativeEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.NarrativeEntry
	for _, entry := range s.entries {
		if keep(entry) {
			out = append(out, entry)
		}
	}
	return out
}

// Wipe discards every entry. Exists only so tests can prove narrative
// non-authority; production code has no caller.
func (s *InMemoryStore) Wipe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.byID = make(map[string]int)
}
