package spend

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"valcore/internal/attest"
	"valcore/internal/domain"
	"valcore/internal/events"
	"valcore/internal/honoring"
	"valcore/internal/ledger"
	"valcore/internal/ledger/mocks"
	"valcore/internal/mirror"
	"valcore/pkg/errs"
)

type captureNarrator struct {
	mu      sync.Mutex
	entries []domain.NarrativeEntry
}

func (n *captureNarrator) Enqueue(entry domain.NarrativeEntry) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries = append(n.entries, entry)
}

func (n *captureNarrator) list() []domain.NarrativeEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.NarrativeEntry(nil), n.entries...)
}

type captureHonorer struct {
	dispatched []honoring.HonorRequest
	err        error
}

func (h *captureHonorer) Dispatch(_ context.Context, _ domain.EventKind, req honoring.HonorRequest) error {
	if h.err != nil {
		return h.err
	}
	h.dispatched = append(h.dispatched, req)
	return nil
}

type captureSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *captureSink) Publish(_ context.Context, event events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *captureSink) list() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.Event(nil), s.events...)
}

type fixture struct {
	engine   *Engine
	attestor *attest.Engine
	gateway  *ledger.Memory
	narrator *captureNarrator
	honorer  *captureHonorer
	sink     *captureSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	attestor, err := attest.NewEngine("test-attestor", "")
	require.NoError(t, err)

	f := &fixture{
		attestor: attestor,
		gateway:  ledger.NewMemory(),
		narrator: &captureNarrator{},
		honorer:  &captureHonorer{},
		sink:     &captureSink{},
	}
	f.engine = NewEngine(
		Config{Ledger: 1, Code: "USD", TreasuryAccount: "treasury"},
		attestor, f.gateway, f.narrator, f.honorer, f.sink,
		slog.Default(), nil,
	)
	return f
}

func claim(id string, kind domain.EventKind, subject string, amount domain.Amount) domain.CreditEvent {
	return domain.CreditEvent{
		ID:        id,
		Kind:      kind,
		Subject:   subject,
		Amount:    amount,
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestFinalizeEarnCreditsSubject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := claim("c1", domain.KindEarn, "user1", 50_000000)
	att, err := f.attestor.Attest(c)
	require.NoError(t, err)

	res, err := f.engine.Finalize(ctx, c, att)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, domain.StateCleared, res.State)
	assert.Equal(t, domain.DeriveTransferID("c1"), res.TransferID)

	balance, err := f.engine.Balance(ctx, domain.DeriveAccountID("user1"))
	require.NoError(t, err)
	assert.Equal(t, int64(50_000000), balance.Net())

	entries := f.narrator.list()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.NarrativeRecorded, entries[0].Status)
	require.NoError(t, entries[0].Balanced())

	published := f.sink.list()
	require.Len(t, published, 1)
	assert.Equal(t, events.ClaimCleared, published[0].Type)
	assert.Empty(t, f.honorer.dispatched, "earn claims need no honoring")
}

func TestFinalizeReplayConvergesOnSameTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := claim("c1", domain.KindEarn, "user1", 50_000000)
	att, err := f.attestor.Attest(c)
	require.NoError(t, err)

	first, err := f.engine.Finalize(ctx, c, att)
	require.NoError(t, err)
	second, err := f.engine.Finalize(ctx, c, att)
	require.NoError(t, err)

	assert.True(t, second.Success, "an idempotent replay reports success")
	assert.Equal(t, first.TransferID, second.TransferID)

	balance, err := f.engine.Balance(ctx, domain.DeriveAccountID("user1"))
	require.NoError(t, err)
	assert.Equal(t, int64(50_000000), balance.Net(), "the replay posted nothing new")
}

func TestFinalizeTamperedClaimNeverReachesLedger(t *testing.T) {
	f := newFixture(t)

	c := claim("c1", domain.KindEarn, "user1", 50_000000)
	att, err := f.attestor.Attest(c)
	require.NoError(t, err)

	c.Amount = 500_000000
	res, err := f.engine.Finalize(context.Background(), c, att)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeInvalidAttestation))
	assert.False(t, res.Success)
	assert.Equal(t, domain.StateRejected, res.State)

	assert.Equal(t, 0, f.gateway.CreateTransferCalls, "a failed verification must not touch the ledger")

	published := f.sink.list()
	require.Len(t, published, 1)
	assert.Equal(t, events.ClaimRejected, published[0].Type)
}

func TestFinalizeSpendDispatchesHonoring(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	earn := claim("c-earn", domain.KindEarn, "user1", 100_000000)
	att, err := f.attestor.Attest(earn)
	require.NoError(t, err)
	_, err = f.engine.Finalize(ctx, earn, att)
	require.NoError(t, err)

	sp := claim("c-spend", domain.KindSpendGiftCard, "user1", 30_000000)
	att, err = f.attestor.Attest(sp)
	require.NoError(t, err)

	res, err := f.engine.Finalize(ctx, sp, att)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, domain.StateHonoringPending, res.State)

	require.Len(t, f.honorer.dispatched, 1)
	req := f.honorer.dispatched[0]
	assert.Equal(t, res.TransferID, req.TransferID)
	assert.Equal(t, domain.DeriveExternalRef(res.TransferID), req.ExternalRef)
	assert.Equal(t, "giftcard", req.AnchorType)

	balance, err := f.engine.Balance(ctx, domain.DeriveAccountID("user1"))
	require.NoError(t, err)
	assert.Equal(t, int64(70_000000), balance.Net())
}

func TestFinalizeOverdraftRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	earn := claim("c-earn", domain.KindEarn, "user1", 10_000000)
	att, err := f.attestor.Attest(earn)
	require.NoError(t, err)
	_, err = f.engine.Finalize(ctx, earn, att)
	require.NoError(t, err)

	sp := claim("c-spend", domain.KindSpendCashOut, "user1", 30_000000)
	att, err = f.attestor.Attest(sp)
	require.NoError(t, err)

	res, err := f.engine.Finalize(ctx, sp, att)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeClearingFailed))
	assert.False(t, res.Success)
	assert.Equal(t, domain.StateRejected, res.State)
	assert.Empty(t, f.honorer.dispatched, "a rejected clearing never reaches honoring")

	balance, err := f.engine.Balance(ctx, domain.DeriveAccountID("user1"))
	require.NoError(t, err)
	assert.Equal(t, int64(10_000000), balance.Net(), "the rejected spend left the balance alone")

	entries := f.narrator.list()
	require.Len(t, entries, 2)
	assert.Equal(t, domain.NarrativeFailed, entries[1].Status)
}

func TestFinalizeHonoringDispatchFailureKeepsClearing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	earn := claim("c-earn", domain.KindEarn, "user1", 100_000000)
	att, err := f.attestor.Attest(earn)
	require.NoError(t, err)
	_, err = f.engine.Finalize(ctx, earn, att)
	require.NoError(t, err)

	f.honorer.err = errors.New("no adapter registered for anchor type payout")

	sp := claim("c-spend", domain.KindSpendCashOut, "user1", 40_000000)
	att, err = f.attestor.Attest(sp)
	require.NoError(t, err)

	res, err := f.engine.Finalize(ctx, sp, att)
	require.NoError(t, err, "a honoring dispatch failure is not a clearing failure")
	assert.True(t, res.Success)
	assert.Equal(t, domain.StateCleared, res.State)

	balance, err := f.engine.Balance(ctx, domain.DeriveAccountID("user1"))
	require.NoError(t, err)
	assert.Equal(t, int64(60_000000), balance.Net(), "the cleared transfer stands regardless of honoring")
}

func TestFinalizeTransportErrorWrapsClearingFailed(t *testing.T) {
	ctrl := gomock.NewController(t)
	attestor, err := attest.NewEngine("test-attestor", "")
	require.NoError(t, err)

	gateway := mocks.NewMockGateway(ctrl)
	gateway.EXPECT().CreateAccounts(gomock.Any(), gomock.Any()).Return(nil)
	gateway.EXPECT().CreateTransfer(gomock.Any(), gomock.Any()).
		Return(ledger.Outcome{}, errors.New("transfer state unresolved after timeout"))

	engine := NewEngine(
		Config{Ledger: 1, Code: "USD"},
		attestor, gateway, &captureNarrator{}, &captureHonorer{}, &captureSink{},
		slog.Default(), nil,
	)

	c := claim("c1", domain.KindEarn, "user1", 50_000000)
	att, err := attestor.Attest(c)
	require.NoError(t, err)

	res, err := engine.Finalize(context.Background(), c, att)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeClearingFailed))
	assert.False(t, res.Success)
	assert.Equal(t, domain.StateAttestedOK, res.State, "verification passed, clearing did not converge")
}

func TestMirrorLossNeverMovesLedgerBalances(t *testing.T) {
	attestor, err := attest.NewEngine("test-attestor", "")
	require.NoError(t, err)

	store := mirror.NewInMemoryStore()
	svc := mirror.NewService(store)
	recorder := mirror.NewRecorder(svc, slog.Default(), nil, 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go recorder.Run(ctx)

	gateway := ledger.NewMemory()
	engine := NewEngine(
		Config{Ledger: 1, Code: "USD", TreasuryAccount: "treasury"},
		attestor, gateway, recorder, &captureHonorer{}, &captureSink{},
		slog.Default(), nil,
	)

	c := claim("c1", domain.KindEarn, "user1", 50_000000)
	att, err := attestor.Attest(c)
	require.NoError(t, err)
	_, err = engine.Finalize(ctx, c, att)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		entries, err := svc.EntriesByClaim(ctx, "c1")
		return err == nil && len(entries) == 1
	}, time.Second, 10*time.Millisecond)

	store.Wipe()

	balance, err := engine.Balance(ctx, domain.DeriveAccountID("user1"))
	require.NoError(t, err)
	assert.Equal(t, int64(50_000000), balance.Net(), "ledger truth survives total mirror loss")

	entries, err := svc.EntriesByClaim(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestIntakeValidatesAndAttests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _, err := f.engine.Intake(ctx, domain.CreditEvent{Kind: "refund", Subject: "user1", Amount: 1})
	assert.True(t, errs.Is(err, errs.CodeBadRequest))

	_, _, err = f.engine.Intake(ctx, domain.CreditEvent{Kind: domain.KindEarn, Amount: 1})
	assert.True(t, errs.Is(err, errs.CodeBadRequest))

	_, _, err = f.engine.Intake(ctx, domain.CreditEvent{Kind: domain.KindEarn, Subject: "user1"})
	assert.True(t, errs.Is(err, errs.CodeBadRequest))

	c, att, err := f.engine.Intake(ctx, domain.CreditEvent{Kind: domain.KindEarn, Subject: "user1", Amount: 5_000000})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.False(t, c.CreatedAt.IsZero())
	assert.Equal(t, c.ID, att.ClaimID)
	require.NoError(t, f.attestor.Verify(c, att))
}
