package attest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valcore/internal/domain"
	"valcore/pkg/errs"
)

func testClaim() domain.CreditEvent {
	return domain.CreditEvent{
		ID:        "c1",
		Kind:      domain.KindSpendGiftCard,
		Subject:   "user1",
		Amount:    50_000000,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine("test-signer", "")
	require.NoError(t, err)
	return engine
}

func TestAttestVerifyRoundTrip(t *testing.T) {
	engine := newTestEngine(t)
	claim := testClaim()

	att, err := engine.Attest(claim)
	require.NoError(t, err)

	assert.Equal(t, "c1", att.ClaimID)
	assert.Equal(t, "test-signer", att.Signer)
	assert.NotEmpty(t, att.Hash)
	assert.NotEmpty(t, att.Proof.Path)
	require.NoError(t, engine.Verify(claim, att))
}

func TestVerifyRejectsTamperedAmount(t *testing.T) {
	engine := newTestEngine(t)
	claim := testClaim()

	att, err := engine.Attest(claim)
	require.NoError(t, err)

	claim.Amount = 500_000000
	err = engine.Verify(claim, att)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeInvalidAttestation))
}

func TestVerifyRejectsTamperedSubject(t *testing.T) {
	engine := newTestEngine(t)
	claim := testClaim()

	att, err := engine.Attest(claim)
	require.NoError(t, err)

	claim.Subject = "mallory"
	assert.True(t, errs.Is(engine.Verify(claim, att), errs.CodeInvalidAttestation))
}

func TestVerifyRejectsTamperedKind(t *testing.T) {
	engine := newTestEngine(t)
	claim := testClaim()

	att, err := engine.Attest(claim)
	require.NoError(t, err)

	claim.Kind = domain.KindSpendCashOut
	assert.True(t, errs.Is(engine.Verify(claim, att), errs.CodeInvalidAttestation))
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	signerA := newTestEngine(t)
	signerB := newTestEngine(t)
	claim := testClaim()

	att, err := signerA.Attest(claim)
	require.NoError(t, err)

	// Same fields, wrong key: signature must not verify against B.
	err = signerB.Verify(claim, att)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeInvalidAttestation))
}

func TestVerifyRejectsBrokenProofPath(t *testing.T) {
	engine := newTestEngine(t)
	claim := testClaim()

	att, err := engine.Attest(claim)
	require.NoError(t, err)

	att.Proof.Path[0][1] ^= 0xff
	err = engine.Verify(claim, att)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.CodeInvalidAttestation))
}

func TestVerifyRejectsClaimIDMismatch(t *testing.T) {
	engine := newTestEngine(t)
	claim := testClaim()

	att, err := engine.Attest(claim)
	require.NoError(t, err)

	other := claim
	other.ID = "c2"
	assert.True(t, errs.Is(engine.Verify(other, att), errs.CodeInvalidAttestation))
}

func TestSeededEngineIsDeterministicVerifier(t *testing.T) {
	seed := "8f2a5c1d9e3b7f4a6c8d0e2f4a6b8c0d1e3f5a7b9c1d3e5f7a9b1c3d5e7f9a0b"
	first, err := NewEngine("signer", seed)
	require.NoError(t, err)
	second, err := NewEngine("signer", seed)
	require.NoError(t, err)

	claim := testClaim()
	att, err := first.Attest(claim)
	require.NoError(t, err)

	// A re-created engine with the same seed verifies prior attestations.
	require.NoError(t, second.Verify(claim, att))
}
