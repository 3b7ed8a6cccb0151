package honoring

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valcore/internal/domain"
)

type fakeAdapter struct {
	name  string
	calls int
	honor func(ctx context.Context, req HonorRequest) (domain.HonoringResult, error)
	hook  func(ctx context.Context, payload []byte) (WebhookEvent, error)
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) HonorClaim(ctx context.Context, req HonorRequest) (domain.HonoringResult, error) {
	a.calls++
	return a.honor(ctx, req)
}

func (a *fakeAdapter) CheckStatus(context.Context, string) (domain.HonoringStatus, error) {
	return domain.HonoringPending, nil
}

func (a *fakeAdapter) HandleWebhook(ctx context.Context, payload []byte) (WebhookEvent, error) {
	if a.hook == nil {
		return WebhookEvent{}, nil
	}
	return a.hook(ctx, payload)
}

func (a *fakeAdapter) ValidateConfig() error { return nil }

// testDriver records backoff delays instead of sleeping.
func testDriver(cfg DriverConfig, delays *[]time.Duration) *Driver {
	d := NewDriver(cfg, slog.Default(), nil)
	d.sleep = func(_ context.Context, delay time.Duration) error {
		*delays = append(*delays, delay)
		return nil
	}
	return d
}

func honorReq(claimID string) HonorRequest {
	transferID := domain.DeriveTransferID(claimID)
	return HonorRequest{
		TransferID:  transferID,
		ClaimID:     claimID,
		Subject:     "user1",
		Amount:      50_000000,
		ExternalRef: domain.DeriveExternalRef(transferID),
		AnchorType:  "giftcard",
	}
}

func TestDriverFirstAttemptSuccess(t *testing.T) {
	adapter := &fakeAdapter{name: "giftcard", honor: func(context.Context, HonorRequest) (domain.HonoringResult, error) {
		return domain.HonoringResult{Status: domain.Honored, ProofHash: "ph-1"}, nil
	}}
	var delays []time.Duration
	d := testDriver(DriverConfig{}, &delays)

	req := honorReq("c1")
	res := d.Run(context.Background(), adapter, req)

	assert.Equal(t, domain.Honored, res.Status)
	assert.Equal(t, req.TransferID, res.TransferID)
	assert.Equal(t, "giftcard", res.Adapter)
	assert.Equal(t, req.ExternalRef, res.ExternalRef)
	assert.Equal(t, 1, res.Attempts)
	assert.False(t, res.SettledAt.IsZero())
	assert.Empty(t, delays)
}

func TestDriverExhaustedBudgetSettlesManualReview(t *testing.T) {
	adapter := &fakeAdapter{name: "payout", honor: func(context.Context, HonorRequest) (domain.HonoringResult, error) {
		return domain.HonoringResult{}, NewAdapterError(ErrorTimeout, "payout", "provider timed out", nil)
	}}
	var delays []time.Duration
	d := testDriver(DriverConfig{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second}, &delays)

	res := d.Run(context.Background(), adapter, honorReq("c1"))

	assert.Equal(t, domain.ManualReview, res.Status)
	assert.Equal(t, 3, adapter.calls, "a stuck provider gets exactly the configured attempts")
	assert.Equal(t, 3, res.Attempts)
	assert.Contains(t, res.Detail, "retry budget exhausted")
	assert.False(t, res.SettledAt.IsZero())

	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestDriverBackoffNonDecreasingAndCapped(t *testing.T) {
	adapter := &fakeAdapter{name: "payout", honor: func(context.Context, HonorRequest) (domain.HonoringResult, error) {
		return domain.HonoringResult{}, NewAdapterError(ErrorProviderOutage, "payout", "upstream 503", nil)
	}}
	var delays []time.Duration
	d := testDriver(DriverConfig{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 4 * time.Second}, &delays)

	res := d.Run(context.Background(), adapter, honorReq("c2"))

	assert.Equal(t, domain.ManualReview, res.Status)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second}, delays)
	for i := 1; i < len(delays); i++ {
		assert.GreaterOrEqual(t, delays[i], delays[i-1])
	}
}

func TestDriverComplianceRejectsImmediately(t *testing.T) {
	adapter := &fakeAdapter{name: "payout", honor: func(context.Context, HonorRequest) (domain.HonoringResult, error) {
		return domain.HonoringResult{}, NewAdapterError(ErrorCompliance, "payout", "sanctions screen", nil)
	}}
	var delays []time.Duration
	d := testDriver(DriverConfig{MaxAttempts: 3}, &delays)

	res := d.Run(context.Background(), adapter, honorReq("c3"))

	assert.Equal(t, domain.HonoringRejected, res.Status)
	assert.Equal(t, 1, adapter.calls, "non-retryable failures must not burn retry budget")
	assert.Contains(t, res.Detail, "sanctions screen")
	assert.Empty(t, delays)
}

func TestDriverAuthFailureIsFailedExternal(t *testing.T) {
	adapter := &fakeAdapter{name: "giftcard", honor: func(context.Context, HonorRequest) (domain.HonoringResult, error) {
		return domain.HonoringResult{}, NewAdapterError(ErrorAuthentication, "giftcard", "api key revoked", nil)
	}}
	var delays []time.Duration
	d := testDriver(DriverConfig{MaxAttempts: 3}, &delays)

	res := d.Run(context.Background(), adapter, honorReq("c4"))

	assert.Equal(t, domain.FailedExternal, res.Status)
	assert.Equal(t, 1, adapter.calls)
}

func TestDriverUnclassifiedErrorIsTerminal(t *testing.T) {
	adapter := &fakeAdapter{name: "giftcard", honor: func(context.Context, HonorRequest) (domain.HonoringResult, error) {
		return domain.HonoringResult{}, assert.AnError
	}}
	var delays []time.Duration
	d := testDriver(DriverConfig{MaxAttempts: 3}, &delays)

	res := d.Run(context.Background(), adapter, honorReq("c5"))

	assert.Equal(t, domain.FailedExternal, res.Status)
	assert.Equal(t, 1, adapter.calls)
}

func TestDriverAttemptDeadlineRetries(t *testing.T) {
	adapter := &fakeAdapter{name: "payout", honor: func(ctx context.Context, _ HonorRequest) (domain.HonoringResult, error) {
		<-ctx.Done()
		return domain.HonoringResult{}, ctx.Err()
	}}
	var delays []time.Duration
	d := testDriver(DriverConfig{MaxAttempts: 2, AttemptTimeout: 10 * time.Millisecond}, &delays)

	res := d.Run(context.Background(), adapter, honorReq("c6"))

	assert.Equal(t, domain.ManualReview, res.Status)
	assert.Equal(t, 2, adapter.calls, "a blown attempt deadline is a retryable timeout")
	assert.Len(t, delays, 1)
}

func TestDriverCancelledDuringBackoffLeavesPending(t *testing.T) {
	adapter := &fakeAdapter{name: "payout", honor: func(context.Context, HonorRequest) (domain.HonoringResult, error) {
		return domain.HonoringResult{}, NewAdapterError(ErrorNetwork, "payout", "connection reset", nil)
	}}
	d := NewDriver(DriverConfig{MaxAttempts: 3}, slog.Default(), nil)
	d.sleep = func(context.Context, time.Duration) error { return context.Canceled }

	res := d.Run(context.Background(), adapter, honorReq("c7"))

	assert.Equal(t, domain.HonoringPending, res.Status)
	assert.Equal(t, 1, adapter.calls)
	assert.True(t, res.SettledAt.IsZero(), "an interrupted run has not settled")
}
