// Package giftcard implements the honoring adapter for the gift card
// provider used by grocery and gift card spends.
package giftcard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"valcore/internal/domain"
	"valcore/internal/honoring"
	"valcore/internal/platform/config"
)

const (
	// AdapterName is the registry key; it matches the giftcard anchor type.
	AdapterName = "giftcard"

	sandboxBaseURL    = "https://sandbox.api.cardissuer.example"
	productionBaseURL = "https://api.cardissuer.example"
)

// Adapter issues gift cards over the provider's JSON API. All requests carry
// the deterministic external reference as idempotency key, so a retried
// issue can at worst collide with itself.
type Adapter struct {
	cfg     config.Provider
	baseURL string
	http    *http.Client
}

// New creates a gift card adapter from provider credentials.
func New(cfg config.Provider) *Adapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		if cfg.Sandbox {
			baseURL = sandboxBaseURL
		} else {
			baseURL = productionBaseURL
		}
	}
	return &Adapter{
		cfg:     cfg,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *Adapter) Name() string { return AdapterName }

// ValidateConfig requires an API key outside sandbox mode.
func (a *Adapter) ValidateConfig() error {
	if a.cfg.APIKey == "" && !a.cfg.Sandbox {
		return errors.New("gift card provider requires GIFTCARD_API_KEY outside sandbox")
	}
	return nil
}

type issueRequest struct {
	Reference    string            `json:"reference"`
	AmountMicros uint64            `json:"amount_micros"`
	Currency     string            `json:"currency"`
	Recipient    map[string]string `json:"recipient,omitempty"`
	Memo         string            `json:"memo,omitempty"`
}

type issueResponse struct {
	CardID    string `json:"card_id"`
	Status    string `json:"status"`
	ProofHash string `json:"proof_hash"`
	Error     struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// HonorClaim issues one gift card for a cleared spend.
func (a *Adapter) HonorClaim(ctx context.Context, req honoring.HonorRequest) (domain.HonoringResult, error) {
	body := issueRequest{
		Reference:    req.ExternalRef,
		AmountMicros: uint64(req.Amount),
		Currency:     "USD",
		Recipient:    req.Recipient,
		Memo:         "claim " + req.ClaimID,
	}

	var resp issueResponse
	if err := a.call(ctx, http.MethodPost, "/v1/cards", body, &resp); err != nil {
		return domain.HonoringResult{}, err
	}

	return domain.HonoringResult{
		Status:      mapStatus(resp.Status),
		ExternalRef: req.ExternalRef,
		ProofHash:   resp.ProofHash,
		Detail:      resp.CardID,
	}, nil
}

// CheckStatus polls a previously submitted issue request.
func (a *Adapter) CheckStatus(ctx context.Context, externalRef string) (domain.HonoringStatus, error) {
	var resp issueResponse
	if err := a.call(ctx, http.MethodGet, "/v1/cards/"+externalRef, nil, &resp); err != nil {
		return "", err
	}
	return mapStatus(resp.Status), nil
}

type webhookPayload struct {
	Reference string `json:"reference"`
	CardID    string `json:"card_id"`
	Status    string `json:"status"`
	ProofHash string `json:"proof_hash"`
	Reason    string `json:"reason"`
}

// HandleWebhook translates the provider's callback into neutral terms.
func (a *Adapter) HandleWebhook(_ context.Context, payload []byte) (honoring.WebhookEvent, error) {
	var p webhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return honoring.WebhookEvent{}, fmt.Errorf("gift card webhook payload: %w", err)
	}
	if p.Reference == "" {
		return honoring.WebhookEvent{}, errors.New("gift card webhook missing reference")
	}
	return honoring.WebhookEvent{
		ExternalRef: p.Reference,
		Status:      mapStatus(p.Status),
		ProviderTx:  p.CardID,
		ProofHash:   p.ProofHash,
		Detail:      p.Reason,
	}, nil
}

// mapStatus folds the provider's vocabulary onto honoring statuses. Unknown
// statuses stay pending so a later webhook or poll can settle them.
func mapStatus(s string) domain.HonoringStatus {
	switch s {
	case "issued", "delivered":
		return domain.Honored
	case "declined":
		return domain.HonoringRejected
	case "failed":
		return domain.FailedExternal
	default:
		return domain.HonoringPending
	}
}

func (a *Adapter) call(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return honoring.NewAdapterError(honoring.ErrorInternal, AdapterName, "encode request", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return honoring.NewAdapterError(honoring.ErrorInternal, AdapterName, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	if method == http.MethodPost {
		req.Header.Set("Idempotency-Key", idempotencyKey(body))
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return honoring.NewAdapterError(honoring.ErrorNetwork, AdapterName, "read response", err)
	}

	if resp.StatusCode >= 400 {
		var failure issueResponse
		_ = json.Unmarshal(raw, &failure)
		return classifyHTTP(resp.StatusCode, failure.Error.Code, failure.Error.Message)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return honoring.NewAdapterError(honoring.ErrorInternal, AdapterName, "decode response", err)
	}
	return nil
}

func idempotencyKey(body any) string {
	if ir, ok := body.(issueRequest); ok {
		return ir.Reference
	}
	return ""
}

func classifyTransport(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return honoring.NewAdapterError(honoring.ErrorTimeout, AdapterName, "provider timed out", err)
	}
	return honoring.NewAdapterError(honoring.ErrorNetwork, AdapterName, "provider unreachable", err)
}

// classifyHTTP maps provider response codes onto the failure taxonomy.
func classifyHTTP(status int, code, message string) error {
	if message == "" {
		message = fmt.Sprintf("provider returned %d", status)
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return honoring.NewAdapterError(honoring.ErrorAuthentication, AdapterName, message, nil)
	case status == http.StatusConflict:
		return honoring.NewAdapterError(honoring.ErrorDuplicate, AdapterName, message, nil)
	case status == http.StatusTooManyRequests:
		return honoring.NewAdapterError(honoring.ErrorRateLimited, AdapterName, message, nil)
	case status == http.StatusUnprocessableEntity:
		if code == "compliance_block" {
			return honoring.NewAdapterError(honoring.ErrorCompliance, AdapterName, message, nil)
		}
		return honoring.NewAdapterError(honoring.ErrorDeclined, AdapterName, message, nil)
	case status == http.StatusBadRequest || status == http.StatusNotFound:
		return honoring.NewAdapterError(honoring.ErrorInvalidRecipient, AdapterName, message, nil)
	case status >= 500:
		return honoring.NewAdapterError(honoring.ErrorProviderOutage, AdapterName, message, nil)
	default:
		return honoring.NewAdapterError(honoring.ErrorInternal, AdapterName, message, nil)
	}
}
