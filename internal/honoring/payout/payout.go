// Package payout implements the honoring adapter for the cash-out payout
// rail.
package payout

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
	// AdapterName is the registry key; it matches the payout anchor type.
	AdapterName = "payout"

	sandboxBaseURL    = "https://sandbox.payouts.example"
	productionBaseURL = "https://payouts.example"
)

// Adapter initiates payouts over the rail's JSON API. The deterministic
// external reference doubles as the rail's idempotency token.
type Adapter struct {
	cfg     config.Provider
	baseURL string
	http    *http.Client
}

// New creates a payout adapter from provider credentials.
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
		return errors.New("payout provider requires PAYOUT_API_KEY outside sandbox")
	}
	return nil
}

type payoutRequest struct {
	IdempotencyToken string            `json:"idempotency_token"`
	Amount           string            `json:"amount"`
	Currency         string            `json:"currency"`
	Destination      map[string]string `json:"destination,omitempty"`
}

type payoutResponse struct {
	PayoutID  string `json:"payout_id"`
	State     string `json:"state"`
	Receipt   string `json:"receipt"`
	ErrorCode string `json:"error_code"`
	ErrorText string `json:"error_text"`
}

// HonorClaim initiates one payout for a cleared cash-out. The rail wants
// decimal amounts, not micro units.
func (a *Adapter) HonorClaim(ctx context.Context, req honoring.HonorRequest) (domain.HonoringResult, error) {
	body := payoutRequest{
		IdempotencyToken: req.ExternalRef,
		Amount:           req.Amount.Decimal(),
		Currency:         "USD",
		Destination:      req.Recipient,
	}

	var resp payoutResponse
	if err := a.call(ctx, http.MethodPost, "/v2/payouts", body, &resp); err != nil {
		return domain.HonoringResult{}, err
	}

	return domain.HonoringResult{
		Status:      mapState(resp.State),
		ExternalRef: req.ExternalRef,
		ProofHash:   resp.Receipt,
		Detail:      resp.PayoutID,
	}, nil
}

// CheckStatus polls the rail for a prior payout.
func (a *Adapter) CheckStatus(ctx context.Context, externalRef string) (domain.HonoringStatus, error) {
	var resp payoutResponse
	if err := a.call(ctx, http.MethodGet, "/v2/payouts/"+externalRef, nil, &resp); err != nil {
		return "", err
	}
	return mapState(resp.State), nil
}

type webhookPayload struct {
	IdempotencyToken string `json:"idempotency_token"`
	PayoutID         string `json:"payout_id"`
	State            string `json:"state"`
	Receipt          string `json:"receipt"`
	FailureReason    string `json:"failure_reason"`
}

// HandleWebhook translates a rail callback into neutral terms.
func (a *Adapter) HandleWebhook(_ context.Context, payload []byte) (honoring.WebhookEvent, error) {
	var p webhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return honoring.WebhookEvent{}, fmt.Errorf("payout webhook payload: %w", err)
	}
	if p.IdempotencyToken == "" {
		return honoring.WebhookEvent{}, errors.New("payout webhook missing idempotency token")
	}
	return honoring.WebhookEvent{
		ExternalRef: p.IdempotencyToken,
		Status:      mapState(p.State),
		ProviderTx:  p.PayoutID,
		ProofHash:   p.Receipt,
		Detail:      p.FailureReason,
	}, nil
}

// mapState folds the rail's vocabulary onto honoring statuses. Unknown
// states stay pending so a later webhook or poll can settle them.
func mapState(s string) domain.HonoringStatus {
	switch s {
	case "paid", "settled":
		return domain.Honored
	case "rejected":
		return domain.HonoringRejected
	case "errored":
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
	req.Header.Set("X-Api-Key", a.cfg.APIKey)

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
		var failure payoutResponse
		_ = json.Unmarshal(raw, &failure)
		return classifyHTTP(resp.StatusCode, failure.ErrorCode, failure.ErrorText)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return honoring.NewAdapterError(honoring.ErrorInternal, AdapterName, "decode response", err)
	}
	return nil
}

func classifyTransport(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return honoring.NewAdapterError(honoring.ErrorTimeout, AdapterName, "rail timed out", err)
	}
	return honoring.NewAdapterError(honoring.ErrorNetwork, AdapterName, "rail unreachable", err)
}

// classifyHTTP maps rail response codes onto the failure taxonomy. The rail
// signals compliance blocks and bad destinations through error codes on 422.
func classifyHTTP(status int, code, message string) error {
	if message == "" {
		message = fmt.Sprintf("rail returned %d", status)
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return honoring.NewAdapterError(honoring.ErrorAuthentication, AdapterName, message, nil)
	case status == http.StatusConflict:
		return honoring.NewAdapterError(honoring.ErrorDuplicate, AdapterName, message, nil)
	case status == http.StatusTooManyRequests:
		return honoring.NewAdapterError(honoring.ErrorRateLimited, AdapterName, message, nil)
	case status == http.StatusUnprocessableEntity:
		switch code {
		case "compliance_hold", "sanctions_match":
			return honoring.NewAdapterError(honoring.ErrorCompliance, AdapterName, message, nil)
		case "invalid_destination":
			return honoring.NewAdapterError(honoring.ErrorInvalidRecipient, AdapterName, message, nil)
		default:
			return honoring.NewAdapterError(honoring.ErrorDeclined, AdapterName, message, nil)
		}
	case status == http.StatusBadRequest || status == http.StatusNotFound:
		return honoring.NewAdapterError(honoring.ErrorInvalidRecipient, AdapterName, message, nil)
	case status >= 500:
		return honoring.NewAdapterError(honoring.ErrorProviderOutage, AdapterName, message, nil)
	default:
		return honoring.NewAdapterError(honoring.ErrorInternal, AdapterName, message, nil)
	}
}
