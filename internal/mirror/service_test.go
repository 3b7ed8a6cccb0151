package mirror

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valcore/internal/domain"
	"valcore/pkg/errs"
)

func clearingEntry(claimID string, amount domain.Amount) domain.NarrativeEntry {
	return domain.NarrativeEntry{
		ClaimID:     claimID,
		Description: "cleared spend",
		Source:      "clearing",
		Status:      domain.NarrativeRecorded,
		Lines: []domain.NarrativeLine{
			{Account: domain.DeriveAccountID("treasury"), Direction: domain.Debit, Amount: amount},
			{Account: domain.DeriveAccountID("user1"), Direction: domain.Credit, Amount: amount},
		},
	}
}

func TestRecordAssignsIDAndTimestamp(t *testing.T) {
	svc := NewService(NewInMemoryStore())

	id, err := svc.Record(context.Background(), clearingEntry("c1", 50_000000))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	entries, err := svc.EntriesByClaim(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.False(t, entries[0].RecordedAt.IsZero())
}

func TestRecordRejectsUnbalancedEntry(t *testing.T) {
	svc := NewService(NewInMemoryStore())

	entry := clearingEntry("c1", 50_000000)
	entry.Lines[1].Amount = 49_000000

	_, err := svc.Record(context.Background(), entry)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeBadRequest))
}

func TestQueriesByAccountAndStatus(t *testing.T) {
	svc := NewService(NewInMemoryStore())
	ctx := context.Background()

	_, err := svc.Record(ctx, clearingEntry("c1", 10_000000))
	require.NoError(t, err)

	failed := clearingEntry("c2", 5_000000)
	failed.Status = domain.NarrativeFailed
	_, err = svc.Record(ctx, failed)
	require.NoError(t, err)

	byAccount, err := svc.EntriesByAccount(ctx, domain.DeriveAccountID("user1"))
	require.NoError(t, err)
	assert.Len(t, byAccount, 2)

	byStatus, err := svc.EntriesByStatus(ctx, domain.NarrativeFailed)
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "c2", byStatus[0].ClaimID)
}

func TestDisplayBalanceIsAdvisoryOnly(t *testing.T) {
	svc := NewService(NewInMemoryStore())

	_, err := svc.Record(context.Background(), clearingEntry("c1", 50_000000))
	require.NoError(t, err)

	user := domain.DeriveAccountID("user1")
	treasury := domain.DeriveAccountID("treasury")
	assert.Equal(t, int64(50_000000), svc.DisplayBalance(user))
	assert.Equal(t, int64(-50_000000), svc.DisplayBalance(treasury))
	assert.Equal(t, int64(0), svc.DisplayBalance(domain.DeriveAccountID("nobody")))
}

func TestRecorderWritesAsync(t *testing.T) {
	svc := NewService(NewInMemoryStore())
	recorder := NewRecorder(svc, slog.Default(), nil, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go recorder.Run(ctx)

	recorder.Enqueue(clearingEntry("c1", 50_000000))

	require.Eventually(t, func() bool {
		entries, err := svc.EntriesByClaim(context.Background(), "c1")
		return err == nil && len(entries) == 1
	}, time.Second, 10*time.Millisecond)
}

type failingStore struct{ Store }

func (failingStore) Append(context.Context, domain.NarrativeEntry) error {
	return errors.New("disk on fire")
}

func TestRecorderSwallowsWriteFailures(t *testing.T) {
	svc := NewService(failingStore{})
	recorder := NewRecorder(svc, slog.Default(), nil, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		recorder.Run(ctx)
		close(done)
	}()

	// A failing store must not crash or block the worker.
	recorder.Enqueue(clearingEntry("c1", 1_000000))
	recorder.Enqueue(clearingEntry("c2", 2_000000))

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("recorder did not stop")
	}
}
