package honoring

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"valcore/internal/domain"
	"valcore/internal/platform/redis"
	"valcore/pkg/errs"
)

// ErrResultNotFound is returned when no honoring result exists for a lookup.
var ErrResultNotFound = errs.New(errs.CodeNotFound, "honoring result not found")

// ResultStore persists honoring outcomes keyed by transfer id. External
// references are derived one-way from transfer ids, so the store also keeps a
// reverse index for webhook resolution.
type ResultStore interface {
	Save(ctx context.Context, result domain.HonoringResult) error
	Find(ctx context.Context, transferID domain.TransferID) (domain.HonoringResult, error)
	FindByExternalRef(ctx context.Context, externalRef string) (domain.HonoringResult, error)
}

// InMemoryResultStore provides a thread-safe in-memory ResultStore.
type InMemoryResultStore struct {
	mu       sync.RWMutex
	byID     map[domain.TransferID]domain.HonoringResult
	byExtRef map[string]domain.TransferID
}

// NewInMemoryResultStore creates an empty in-memory result store.
func NewInMemoryResultStore() *InMemoryResultStore {
	return &InMemoryResultStore{
		byID:     make(map[domain.TransferID]domain.HonoringResult),
		byExtRef: make(map[string]domain.TransferID),
	}
}

func (s *InMemoryResultStore) Save(_ context.Context, result domain.HonoringResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[result.TransferID] = result
	if result.ExternalRef != "" {
		s.byExtRef[result.ExternalRef] = result.TransferID
	}
	return nil
}

func (s *InMemoryResultStore) Find(_ context.Context, transferID domain.TransferID) (domain.HonoringResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.byID[transferID]
	if !ok {
		return domain.HonoringResult{}, ErrResultNotFound
	}
	return res, nil
}

func (s *InMemoryResultStore) FindByExternalRef(_ context.Context, externalRef string) (domain.HonoringResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byExtRef[externalRef]
	if !ok {
		return domain.HonoringResult{}, ErrResultNotFound
	}
	return s.byID[id], nil
}

// RedisResultStore persists honoring results in Redis as JSON, with a
// reverse index from external ref to transfer id. Results survive process
// restarts, which matters because MANUAL_REVIEW entries are a work queue for
// operators.
type RedisResultStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisResultStore creates a Redis-backed result store. A zero ttl keeps
// results indefinitely.
func NewRedisResultStore(client *redis.Client, ttl time.Duration) *RedisResultStore {
	return &RedisResultStore{client: client, ttl: ttl}
}

type storedResult struct {
	TransferID  string    `json:"transfer_id"`
	ClaimID     string    `json:"claim_id,omitempty"`
	Adapter     string    `json:"adapter"`
	Status      string    `json:"status"`
	ExternalRef string    `json:"external_ref"`
	ProofHash   string    `json:"proof_hash,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	Attempts    int       `json:"attempts"`
	SettledAt   time.Time `json:"settled_at,omitempty"`
}

func resultKey(id domain.TransferID) string { return "honoring:result:" + id.String() }

func extRefKey(externalRef string) string { return "honoring:extref:" + externalRef }

func (s *RedisResultStore) Save(ctx context.Context, result domain.HonoringResult) error {
	payload, err := json.Marshal(storedResult{
		TransferID:  result.TransferID.String(),
		ClaimID:     result.ClaimID,
		Adapter:     result.Adapter,
		Status:      string(result.Status),
		ExternalRef: result.ExternalRef,
		ProofHash:   result.ProofHash,
		Detail:      result.Detail,
		Attempts:    result.Attempts,
		SettledAt:   result.SettledAt,
	})
	if err != nil {
		return fmt.Errorf("marshal honoring result: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, resultKey(result.TransferID), payload, s.ttl)
	if result.ExternalRef != "" {
		pipe.Set(ctx, extRefKey(result.ExternalRef), result.TransferID.String(), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save honoring result: %w", err)
	}
	return nil
}

func (s *RedisResultStore) Find(ctx context.Context, transferID domain.TransferID) (domain.HonoringResult, error) {
	raw, err := s.client.Get(ctx, resultKey(transferID)).Bytes()
	if err == goredis.Nil {
		return domain.HonoringResult{}, ErrResultNotFound
	}
	if err != nil {
		return domain.HonoringResult{}, fmt.Errorf("load honoring result: %w", err)
	}
	return decodeResult(raw)
}

func (s *RedisResultStore) FindByExternalRef(ctx context.Context, externalRef string) (domain.HonoringResult, error) {
	idHex, err := s.client.Get(ctx, extRefKey(externalRef)).Result()
	if err == goredis.Nil {
		return domain.HonoringResult{}, ErrResultNotFound
	}
	if err != nil {
		return domain.HonoringResult{}, fmt.Errorf("resolve external ref: %w", err)
	}
	id, err := domain.ParseID128(idHex)
	if err != nil {
		return domain.HonoringResult{}, fmt.Errorf("corrupt external ref index: %w", err)
	}
	return s.Find(ctx, domain.TransferID(id))
}

func decodeResult(raw []byte) (domain.HonoringResult, error) {
	var sr storedResult
	if err := json.Unmarshal(raw, &sr); err != nil {
		return domain.HonoringResult{}, fmt.Errorf("unmarshal honoring result: %w", err)
	}
	id, err := domain.ParseID128(sr.TransferID)
	if err != nil {
		return domain.HonoringResult{}, fmt.Errorf("corrupt stored transfer id: %w", err)
	}
	return domain.HonoringResult{
		TransferID:  domain.TransferID(id),
		ClaimID:     sr.ClaimID,
		Adapter:     sr.Adapter,
		Status:      domain.HonoringStatus(sr.Status),
		ExternalRef: sr.ExternalRef,
		ProofHash:   sr.ProofHash,
		Detail:      sr.Detail,
		Attempts:    sr.Attempts,
		SettledAt:   sr.SettledAt,
	}, nil
}
