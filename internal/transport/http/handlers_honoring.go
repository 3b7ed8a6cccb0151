package httptransport

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"valcore/internal/domain"
	"valcore/internal/honoring"
	"valcore/internal/platform/config"
	"valcore/internal/platform/metrics"
	"valcore/internal/platform/middleware"
	"valcore/internal/transport/http/shared"
	"valcore/pkg/errs"
)

// WebhookProcessor folds provider callbacks into honoring results.
type WebhookProcessor interface {
	ProcessWebhook(ctx context.Context, adapterName string, payload []byte) error
}

// ResultReader looks up honoring outcomes.
type ResultReader interface {
	Find(ctx context.Context, transferID domain.TransferID) (domain.HonoringResult, error)
}

// HonoringHandler serves honoring status reads and provider webhooks.
type HonoringHandler struct {
	logger       *slog.Logger
	processor    WebhookProcessor
	results      ResultReader
	cfg          config.Webhook
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// NewHonoringHandler creates the honoring handler.
func NewHonoringHandler(processor WebhookProcessor, results ResultReader, cfg config.Webhook, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *HonoringHandler {
	return &HonoringHandler{
		logger:       logger,
		processor:    processor,
		results:      results,
		cfg:          cfg,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register attaches the honoring routes. Webhooks authenticate by signature,
// not by operator token, because providers call them.
func (h *HonoringHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Recovery(h.logger))
		r.Use(middleware.RequestID)
		r.Use(middleware.Logger(h.logger))
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(middleware.Latency(h.metrics))
		r.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		r.Get("/honoring/{transferID}", h.handleResult)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Recovery(h.logger))
		r.Use(middleware.RequestID)
		r.Use(middleware.Logger(h.logger))
		r.Use(middleware.Timeout(30 * time.Second))
		r.Post("/webhook/{adapter}", h.handleWebhook)
	})
}

type honoringResultBody struct {
	TransferID  string     `json:"transfer_id"`
	Adapter     string     `json:"adapter"`
	Status      string     `json:"status"`
	ExternalRef string     `json:"external_ref"`
	ProofHash   string     `json:"proof_hash,omitempty"`
	Detail      string     `json:"detail,omitempty"`
	Attempts    int        `json:"attempts"`
	SettledAt   *time.Time `json:"settled_at,omitempty"`
}

func (h *HonoringHandler) handleResult(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseID128(chi.URLParam(r, "transferID"))
	if err != nil {
		shared.WriteError(w, errs.New(errs.CodeBadRequest, "transfer id must be 32 hex characters"))
		return
	}

	result, err := h.results.Find(r.Context(), domain.TransferID(id))
	if err != nil {
		if errors.Is(err, honoring.ErrResultNotFound) {
			shared.WriteError(w, err)
			return
		}
		shared.WriteError(w, errs.Wrap(errs.CodeInternal, "load honoring result", err))
		return
	}

	body := honoringResultBody{
		TransferID:  result.TransferID.String(),
		Adapter:     result.Adapter,
		Status:      string(result.Status),
		ExternalRef: result.ExternalRef,
		ProofHash:   result.ProofHash,
		Detail:      result.Detail,
		Attempts:    result.Attempts,
	}
	if !result.SettledAt.IsZero() {
		settled := result.SettledAt
		body.SettledAt = &settled
	}
	shared.WriteJSON(w, http.StatusOK, body)
}

func (h *HonoringHandler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	adapter := chi.URLParam(r, "adapter")

	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		shared.WriteError(w, errs.New(errs.CodeBadRequest, "unreadable webhook body"))
		return
	}

	if h.cfg.VerifySignatures {
		if !h.verifySignature(payload, r.Header.Get("X-Webhook-Signature")) {
			h.logger.WarnContext(ctx, "webhook signature rejected",
				"adapter", adapter,
				"request_id", middleware.GetRequestID(ctx),
			)
			shared.WriteError(w, errs.New(errs.CodeUnauthorized, "invalid webhook signature"))
			return
		}
	}

	if err := h.processor.ProcessWebhook(ctx, adapter, payload); err != nil {
		h.logger.WarnContext(ctx, "webhook processing failed",
			"adapter", adapter,
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		// Providers retry on non-2xx. A malformed or unknown-ref callback will
		// never succeed, so acknowledge it and rely on the logs.
		shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// verifySignature checks the hex HMAC-SHA256 of the body in constant time.
func (h *HonoringHandler) verifySignature(payload []byte, signature string) bool {
	if signature == "" || h.cfg.Secret == "" {
		return false
	}
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.cfg.Secret))
	mac.Write(payload)
	return hmac.Equal(provided, mac.Sum(nil))
}
