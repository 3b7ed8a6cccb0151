package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valcore/internal/domain"
	"valcore/internal/ledger"
	"valcore/internal/platform/middleware"
	"valcore/pkg/errs"
)

type staticValidator struct {
	claims *middleware.JWTClaims
	err    error
}

func (v staticValidator) ValidateToken(string) (*middleware.JWTClaims, error) {
	return v.claims, v.err
}

func operatorValidator() staticValidator {
	return staticValidator{claims: &middleware.JWTClaims{OperatorID: "op-1", Role: "operator"}}
}

type stubClearing struct {
	intakeErr   error
	finalizeErr error
	result      domain.SpendResult
	balance     ledger.Balance
	balanceErr  error
	lastClaim   domain.CreditEvent
}

func (s *stubClearing) Intake(_ context.Context, claim domain.CreditEvent) (domain.CreditEvent, domain.Attestation, error) {
	if s.intakeErr != nil {
		return claim, domain.Attestation{}, s.intakeErr
	}
	if claim.ID == "" {
		claim.ID = "c-generated"
	}
	s.lastClaim = claim
	return claim, domain.Attestation{ClaimID: claim.ID, Signer: "test-attestor", Hash: []byte{1}, Signature: []byte{2}}, nil
}

func (s *stubClearing) Finalize(context.Context, domain.CreditEvent, domain.Attestation) (domain.SpendResult, error) {
	return s.result, s.finalizeErr
}

func (s *stubClearing) Balance(context.Context, domain.AccountID) (ledger.Balance, error) {
	return s.balance, s.balanceErr
}

type stubNarrative struct {
	entries []domain.NarrativeEntry
	err     error
}

func (s *stubNarrative) EntriesByClaim(context.Context, string) ([]domain.NarrativeEntry, error) {
	return s.entries, s.err
}

func (s *stubNarrative) EntriesByAccount(context.Context, domain.AccountID) ([]domain.NarrativeEntry, error) {
	return s.entries, s.err
}

func claimsRouter(clearing *stubClearing, narrative *stubNarrative, validator middleware.JWTValidator) http.Handler {
	r := chi.NewRouter()
	NewClaimsHandler(clearing, narrative, slog.Default(), nil, validator).Register(r)
	return r
}

func TestSubmitClaimRequiresAuth(t *testing.T) {
	router := claimsRouter(&stubClearing{}, &stubNarrative{}, staticValidator{err: errors.New("no token")})

	req := httptest.NewRequest(http.MethodPost, "/claims", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubmitClaimHappyPath(t *testing.T) {
	transferID := domain.DeriveTransferID("c-generated")
	clearing := &stubClearing{result: domain.SpendResult{
		Success:    true,
		TransferID: transferID,
		State:      domain.StateCleared,
	}}
	router := claimsRouter(clearing, &stubNarrative{}, operatorValidator())

	body := `{"kind":"earn","subject":"user1","amount":"50.000000"}`
	req := httptest.NewRequest(http.MethodPost, "/claims", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp submitClaimResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "c-generated", resp.ClaimID)
	assert.Equal(t, transferID.String(), resp.TransferID)
	assert.Equal(t, "CLEARED", resp.State)
	assert.Equal(t, "test-attestor", resp.Attestation.Signer)

	assert.Equal(t, domain.Amount(50_000000), clearing.lastClaim.Amount)
	assert.Equal(t, "true", clearing.lastClaim.Metadata["device_mobile"])
	assert.NotEmpty(t, clearing.lastClaim.Metadata["device_os"])
}

func TestSubmitClaimRejectsBadAmount(t *testing.T) {
	router := claimsRouter(&stubClearing{}, &stubNarrative{}, operatorValidator())

	for _, amount := range []string{"", "-5", "1.0000001", "abc"} {
		body, _ := json.Marshal(submitClaimRequest{Kind: "earn", Subject: "user1", Amount: amount})
		req := httptest.NewRequest(http.MethodPost, "/claims", bytes.NewBuffer(body))
		req.Header.Set("Authorization", "Bearer tok")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "amount %q", amount)
	}
}

func TestSubmitClaimClearingRejection(t *testing.T) {
	clearing := &stubClearing{
		result:      domain.SpendResult{State: domain.StateRejected},
		finalizeErr: errs.New(errs.CodeClearingFailed, "ledger rejected transfer: insufficient_funds"),
	}
	router := claimsRouter(clearing, &stubNarrative{}, operatorValidator())

	body := `{"kind":"spend.cashout","subject":"user1","amount":"500.000000"}`
	req := httptest.NewRequest(http.MethodPost, "/claims", bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp map[string]map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "clearing_failed", resp["error"]["code"])
}

func TestClaimNarrative(t *testing.T) {
	narrative := &stubNarrative{entries: []domain.NarrativeEntry{{
		ID:      "n1",
		ClaimID: "c1",
		Status:  domain.NarrativeRecorded,
		Lines: []domain.NarrativeLine{
			{Account: domain.DeriveAccountID("treasury"), Direction: domain.Debit, Amount: 50_000000},
			{Account: domain.DeriveAccountID("user1"), Direction: domain.Credit, Amount: 50_000000},
		},
	}}}
	router := claimsRouter(&stubClearing{}, narrative, operatorValidator())

	req := httptest.NewRequest(http.MethodGet, "/claims/c1/narrative", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Entries []narrativeEntryBody `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 1)
	require.Len(t, resp.Entries[0].Lines, 2)
	assert.Equal(t, "50.000000", resp.Entries[0].Lines[0].Amount)
}

func TestBalanceEndpoint(t *testing.T) {
	clearing := &stubClearing{balance: ledger.Balance{Credits: 70_000000, Debits: 20_000000}}
	router := claimsRouter(clearing, &stubNarrative{}, operatorValidator())

	req := httptest.NewRequest(http.MethodGet, "/accounts/user1/balance", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp balanceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "user1", resp.Subject)
	assert.Equal(t, domain.DeriveAccountID("user1").String(), resp.AccountID)
	assert.Equal(t, "70.000000", resp.Credits)
	assert.Equal(t, "20.000000", resp.Debits)
	assert.Equal(t, "50.000000", resp.Net)
}

func TestBalanceUnknownAccount(t *testing.T) {
	clearing := &stubClearing{balanceErr: ledger.ErrAccountNotFound}
	router := claimsRouter(clearing, &stubNarrative{}, operatorValidator())

	req := httptest.NewRequest(http.MethodGet, "/accounts/nobody/balance", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
