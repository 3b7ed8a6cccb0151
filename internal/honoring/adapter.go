// Package honoring coordinates best-effort external fulfillment of cleared
// obligations. Provider unreliability is isolated here: nothing in this
// package can write to the ledger, and no honoring outcome ever unwinds a
// cleared transfer.
package honoring

import (
	"context"
	"fmt"

	"valcore/internal/domain"
)

// HonorRequest is everything a provider needs to fulfill one cleared
// obligation. ExternalRef is derived from the transfer id, so repeating the
// call is safe at the provider.
type HonorRequest struct {
	TransferID  domain.TransferID
	ClaimID     string
	Subject     string
	Amount      domain.Amount
	ExternalRef string
	AnchorType  string
	Recipient   map[string]string
}

// WebhookEvent is a provider callback translated into neutral terms by the
// adapter that owns the wire format.
type WebhookEvent struct {
	ExternalRef string
	Status      domain.HonoringStatus
	ProviderTx  string
	ProofHash   string
	Detail      string
}

// Adapter is the uniform contract every external fulfillment provider
// implements. Implementations are independent and selected by configuration,
// never by inheritance.
type Adapter interface {
	// Name identifies the adapter; it doubles as the anchor type it serves.
	Name() string

	// HonorClaim attempts fulfillment once. Failures must be returned as
	// *AdapterError so the retry driver can classify them.
	HonorClaim(ctx context.Context, req HonorRequest) (domain.HonoringResult, error)

	// CheckStatus polls the provider for the state of a prior request.
	CheckStatus(ctx context.Context, externalRef string) (domain.HonoringStatus, error)

	// HandleWebhook parses a provider callback. Strictly observational.
	HandleWebhook(ctx context.Context, payload []byte) (WebhookEvent, error)

	// ValidateConfig reports whether the adapter has usable credentials.
	ValidateConfig() error
}

// Registry maintains all configured adapters keyed by name.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter after validating its configuration.
func (r *Registry) Register(a Adapter) error {
	name := a.Name()
	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("adapter %s already registered", name)
	}
	if err := a.ValidateConfig(); err != nil {
		return fmt.Errorf("adapter %s config: %w", name, err)
	}
	r.adapters[name] = a
	return nil
}

// Get retrieves an adapter by name.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[name]
	return a, ok
}

// ForKind resolves the adapter serving a claim kind's anchor type.
func (r *Registry) ForKind(kind domain.EventKind) (Adapter, error) {
	anchor := kind.AnchorType()
	if anchor == "" {
		return nil, fmt.Errorf("kind %s requires no honoring", kind)
	}
	a, ok := r.adapters[anchor]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for anchor type %s", anchor)
	}
	return a, nil
}

// All returns every registered adapter.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	return out
}
