package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterFailureThreshold(t *testing.T) {
	b := New("giftcard", WithFailureThreshold(3))

	open, change := b.RecordFailure()
	assert.False(t, open)
	assert.False(t, change.Opened)

	open, change = b.RecordFailure()
	assert.False(t, open)
	assert.False(t, change.Opened)

	open, change = b.RecordFailure()
	assert.True(t, open)
	assert.True(t, change.Opened)
	assert.True(t, b.IsOpen())
}

func TestBreakerClosesAfterSuccessThreshold(t *testing.T) {
	b := New("payout", WithFailureThreshold(1), WithSuccessThreshold(2))

	open, _ := b.RecordFailure()
	require.True(t, open)

	closed, change := b.RecordSuccess()
	assert.False(t, closed)
	assert.False(t, change.Closed)

	closed, change = b.RecordSuccess()
	assert.True(t, closed)
	assert.True(t, change.Closed)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerSuccessResetsFailureStreak(t *testing.T) {
	b := New("giftcard", WithFailureThreshold(2))

	b.RecordFailure()
	b.RecordSuccess()
	open, _ := b.RecordFailure()
	assert.False(t, open, "streak should have reset on success")

	open, _ = b.RecordFailure()
	assert.True(t, open)
}

func TestBreakerFailureWhileOpenStaysOpen(t *testing.T) {
	b := New("payout", WithFailureThreshold(1), WithSuccessThreshold(2))

	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.RecordSuccess()
	b.RecordFailure()
	assert.True(t, b.IsOpen(), "failure while open should reset the success streak")

	b.RecordSuccess()
	closed, _ := b.RecordSuccess()
	assert.True(t, closed)
}

func TestBreakerHalfOpensAfterTimeout(t *testing.T) {
	now := time.Now()
	b := New("giftcard", WithFailureThreshold(1), WithOpenTimeout(30*time.Second))
	b.now = func() time.Time { return now }

	b.RecordFailure()
	require.True(t, b.IsOpen())
	assert.False(t, b.Allow(), "calls are blocked while the timeout runs")

	now = now.Add(29 * time.Second)
	assert.False(t, b.Allow())

	now = now.Add(time.Second)
	assert.True(t, b.Allow(), "elapsed timeout lets a probe through")
	assert.Equal(t, StateHalfOpen, b.State())
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	now := time.Now()
	b := New("payout", WithFailureThreshold(1), WithOpenTimeout(30*time.Second))
	b.now = func() time.Time { return now }

	b.RecordFailure()
	now = now.Add(30 * time.Second)
	require.True(t, b.Allow())

	open, change := b.RecordFailure()
	assert.True(t, open)
	assert.True(t, change.Opened)
	assert.False(t, b.Allow(), "a failed probe restarts the open timeout")

	now = now.Add(30 * time.Second)
	assert.True(t, b.Allow())
}

func TestBreakerProbeSuccessesClose(t *testing.T) {
	now := time.Now()
	b := New("giftcard", WithFailureThreshold(1), WithSuccessThreshold(2), WithOpenTimeout(30*time.Second))
	b.now = func() time.Time { return now }

	b.RecordFailure()
	now = now.Add(30 * time.Second)
	require.True(t, b.Allow())

	closed, _ := b.RecordSuccess()
	assert.False(t, closed)
	assert.True(t, b.Allow(), "half-open keeps admitting probes")

	closed, change := b.RecordSuccess()
	assert.True(t, closed)
	assert.True(t, change.Closed)
	assert.Equal(t, StateClosed, b.State())
}
