package httptransport

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mssola/useragent"

	"valcore/internal/domain"
	"valcore/internal/ledger"
	"valcore/internal/platform/metrics"
	"valcore/internal/platform/middleware"
	"valcore/internal/transport/http/shared"
	"valcore/pkg/errs"
	"valcore/pkg/micro"
)

// ClearingService drives claims through attestation and clearing.
type ClearingService interface {
	Intake(ctx context.Context, claim domain.CreditEvent) (domain.CreditEvent, domain.Attestation, error)
	Finalize(ctx context.Context, claim domain.CreditEvent, att domain.Attestation) (domain.SpendResult, error)
	Balance(ctx context.Context, account domain.AccountID) (ledger.Balance, error)
}

// NarrativeService reads the append-only mirror.
type NarrativeService interface {
	EntriesByClaim(ctx context.Context, claimID string) ([]domain.NarrativeEntry, error)
	EntriesByAccount(ctx context.Context, account domain.AccountID) ([]domain.NarrativeEntry, error)
}

// ClaimsHandler serves claim intake, narrative reads, and balance reads.
type ClaimsHandler struct {
	logger       *slog.Logger
	clearing     ClearingService
	narrative    NarrativeService
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// NewClaimsHandler creates the claims handler.
func NewClaimsHandler(clearing ClearingService, narrative NarrativeService, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *ClaimsHandler {
	return &ClaimsHandler{
		logger:       logger,
		clearing:     clearing,
		narrative:    narrative,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register attaches the operator routes with the standard middleware chain.
func (h *ClaimsHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Recovery(h.logger))
		r.Use(middleware.RequestID)
		r.Use(middleware.Logger(h.logger))
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.Latency(h.metrics))
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		r.Post("/claims", h.handleSubmitClaim)
		r.Get("/claims/{claimID}/narrative", h.handleClaimNarrative)
		r.Get("/accounts/{subject}/balance", h.handleBalance)
		r.Get("/accounts/{subject}/narrative", h.handleAccountNarrative)
	})
}

type submitClaimRequest struct {
	ID       string            `json:"id,omitempty"`
	Kind     string            `json:"kind"`
	Subject  string            `json:"subject"`
	Amount   string            `json:"amount"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type attestationBody struct {
	Signer    string    `json:"signer"`
	Hash      string    `json:"hash"`
	Signature string    `json:"signature"`
	SignedAt  time.Time `json:"signed_at"`
}

type submitClaimResponse struct {
	ClaimID     string          `json:"claim_id"`
	TransferID  string          `json:"transfer_id"`
	State       string          `json:"state"`
	Attestation attestationBody `json:"attestation"`
}

func (h *ClaimsHandler) handleSubmitClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req submitClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, errs.New(errs.CodeBadRequest, "invalid request body"))
		return
	}
	amount, err := micro.ParseDecimal(req.Amount)
	if err != nil {
		shared.WriteError(w, errs.Newf(errs.CodeBadRequest, "invalid amount: %v", err))
		return
	}

	claim := domain.CreditEvent{
		ID:       req.ID,
		Kind:     domain.EventKind(req.Kind),
		Subject:  req.Subject,
		Amount:   amount,
		Metadata: deviceMetadata(req.Metadata, r),
	}

	claim, att, err := h.clearing.Intake(ctx, claim)
	if err != nil {
		h.logger.WarnContext(ctx, "claim intake rejected",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}
	h.metrics.IncrementClaimsIntaken()

	result, err := h.clearing.Finalize(ctx, claim, att)
	if err != nil {
		h.logger.WarnContext(ctx, "claim finalization failed",
			"request_id", middleware.GetRequestID(ctx),
			"claim_id", claim.ID,
			"state", string(result.State),
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, submitClaimResponse{
		ClaimID:    claim.ID,
		TransferID: result.TransferID.String(),
		State:      string(result.State),
		Attestation: attestationBody{
			Signer:    att.Signer,
			Hash:      hex.EncodeToString(att.Hash),
			Signature: hex.EncodeToString(att.Signature),
			SignedAt:  att.SignedAt,
		},
	})
}

type narrativeLineBody struct {
	Account   string `json:"account"`
	Direction string `json:"direction"`
	Amount    string `json:"amount"`
}

type narrativeEntryBody struct {
	ID          string              `json:"id"`
	ClaimID     string              `json:"claim_id,omitempty"`
	Description string              `json:"description"`
	Source      string              `json:"source"`
	Status      string              `json:"status"`
	Lines       []narrativeLineBody `json:"lines,omitempty"`
	Metadata    map[string]string   `json:"metadata,omitempty"`
	RecordedAt  time.Time           `json:"recorded_at"`
}

func (h *ClaimsHandler) handleClaimNarrative(w http.ResponseWriter, r *http.Request) {
	claimID := chi.URLParam(r, "claimID")
	entries, err := h.narrative.EntriesByClaim(r.Context(), claimID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"entries": narrativeBodies(entries)})
}

func (h *ClaimsHandler) handleAccountNarrative(w http.ResponseWriter, r *http.Request) {
	account := domain.DeriveAccountID(chi.URLParam(r, "subject"))
	entries, err := h.narrative.EntriesByAccount(r.Context(), account)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"entries": narrativeBodies(entries)})
}

type balanceResponse struct {
	Subject   string `json:"subject"`
	AccountID string `json:"account_id"`
	Credits   string `json:"credits"`
	Debits    string `json:"debits"`
	Net       string `json:"net"`
}

func (h *ClaimsHandler) handleBalance(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")
	account := domain.DeriveAccountID(subject)

	balance, err := h.clearing.Balance(r.Context(), account)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			err = errs.Wrap(errs.CodeNotFound, "account has no postings", err)
		}
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, balanceResponse{
		Subject:   subject,
		AccountID: account.String(),
		Credits:   micro.Amount(balance.Credits).Decimal(),
		Debits:    micro.Amount(balance.Debits).Decimal(),
		Net:       netDecimal(balance.Net()),
	})
}

func narrativeBodies(entries []domain.NarrativeEntry) []narrativeEntryBody {
	out := make([]narrativeEntryBody, 0, len(entries))
	for _, e := range entries {
		body := narrativeEntryBody{
			ID:          e.ID,
			ClaimID:     e.ClaimID,
			Description: e.Description,
			Source:      e.Source,
			Status:      string(e.Status),
			Metadata:    e.Metadata,
			RecordedAt:  e.RecordedAt,
		}
		for _, line := range e.Lines {
			body.Lines = append(body.Lines, narrativeLineBody{
				Account:   line.Account.String(),
				Direction: string(line.Direction),
				Amount:    line.Amount.Decimal(),
			})
		}
		out = append(out, body)
	}
	return out
}

func netDecimal(net int64) string {
	if net < 0 {
		return "-" + micro.Amount(-net).Decimal()
	}
	return micro.Amount(net).Decimal()
}

// deviceMetadata enriches claim metadata with the submitting device, which
// downstream risk reviews want alongside the narrative.
func deviceMetadata(meta map[string]string, r *http.Request) map[string]string {
	raw := r.UserAgent()
	if raw == "" {
		return meta
	}
	if meta == nil {
		meta = make(map[string]string)
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	if name != "" {
		meta["device_browser"] = name + " " + version
	}
	if os := ua.OS(); os != "" {
		meta["device_os"] = os
	}
	if ua.Mobile() {
		meta["device_mobile"] = "true"
	}
	if ua.Bot() {
		meta["device_bot"] = "true"
	}
	return meta
}
