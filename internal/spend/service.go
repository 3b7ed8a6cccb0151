// Package spend orchestrates claim finalization: attestation check, the
// single ledger write, and the hand-offs to mirror, events, and honoring.
// The ordering invariant lives here: nothing downstream starts until the
// ledger has spoken, and nothing downstream can unsay it.
package spend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"valcore/internal/domain"
	"valcore/internal/events"
	"valcore/internal/honoring"
	"valcore/internal/ledger"
	"valcore/pkg/errs"
)

// Attestor signs and verifies claim attestations.
type Attestor interface {
	Attest(claim domain.CreditEvent) (domain.Attestation, error)
	Verify(claim domain.CreditEvent, att domain.Attestation) error
}

// Narrator receives narrative entries for the mirror.
type Narrator interface {
	Enqueue(entry domain.NarrativeEntry)
}

// Honorer starts external fulfillment for a cleared transfer.
type Honorer interface {
	Dispatch(ctx context.Context, kind domain.EventKind, req honoring.HonorRequest) error
}

// EventSink publishes lifecycle events. A nil *events.Publisher satisfies it.
type EventSink interface {
	Publish(ctx context.Context, event events.Event)
}

// Config carries the ledger coordinates claims clear against.
type Config struct {
	Ledger          uint32
	Code            string
	TreasuryAccount string
}

// Engine finalizes claims. Stateless apart from its collaborators; safe for
// concurrent use.
type Engine struct {
	cfg      Config
	treasury domain.AccountID
	attestor Attestor
	gateway  ledger.Gateway
	narrator Narrator
	honorer  Honorer
	sink     EventSink
	logger   *slog.Logger
	metrics  *Metrics
	tracer   trace.Tracer
}

// NewEngine wires the clearing orchestrator.
func NewEngine(cfg Config, attestor Attestor, gateway ledger.Gateway, narrator Narrator, honorer Honorer, sink EventSink, logger *slog.Logger, metrics *Metrics) *Engine {
	if cfg.TreasuryAccount == "" {
		cfg.TreasuryAccount = "treasury"
	}
	return &Engine{
		cfg:      cfg,
		treasury: domain.DeriveAccountID(cfg.TreasuryAccount),
		attestor: attestor,
		gateway:  gateway,
		narrator: narrator,
		honorer:  honorer,
		sink:     sink,
		logger:   logger,
		metrics:  metrics,
		tracer:   otel.Tracer("valcore/spend"),
	}
}

// Intake validates a raw claim, freezes its identity, and attests it. The
// returned claim is the exact value the attestation binds; callers must pass
// both to Finalize unmodified.
func (e *Engine) Intake(ctx context.Context, claim domain.CreditEvent) (domain.CreditEvent, domain.Attestation, error) {
	if !claim.Kind.Valid() {
		return claim, domain.Attestation{}, errs.Newf(errs.CodeBadRequest, "unknown claim kind %q", claim.Kind)
	}
	if claim.Subject == "" {
		return claim, domain.Attestation{}, errs.New(errs.CodeBadRequest, "claim subject is required")
	}
	if claim.Amount == 0 {
		return claim, domain.Attestation{}, errs.New(errs.CodeBadRequest, "claim amount must be positive")
	}
	if claim.ID == "" {
		claim.ID = uuid.NewString()
	}
	if claim.CreatedAt.IsZero() {
		claim.CreatedAt = time.Now().UTC()
	}

	att, err := e.attestor.Attest(claim)
	if err != nil {
		return claim, domain.Attestation{}, err
	}
	return claim, att, nil
}

// Finalize drives one attested claim through clearing. Replaying the same
// claim converges on the same transfer and reports success again; a verify
// failure returns before any ledger interaction.
func (e *Engine) Finalize(ctx context.Context, claim domain.CreditEvent, att domain.Attestation) (domain.SpendResult, error) {
	ctx, span := e.tracer.Start(ctx, "spend.finalize",
		trace.WithAttributes(
			attribute.String("claim_id", claim.ID),
			attribute.String("kind", string(claim.Kind)),
		))
	defer span.End()
	start := time.Now()
	defer func() { e.metrics.ObserveClearing(time.Since(start)) }()

	result := domain.SpendResult{State: domain.StateIntaken, Attestation: att}

	if err := e.attestor.Verify(claim, att); err != nil {
		result.State = domain.StateRejected
		e.metrics.IncrementRejected("attestation")
		e.sink.Publish(ctx, events.Event{
			Type:    events.ClaimRejected,
			ClaimID: claim.ID,
			Subject: claim.Subject,
			Kind:    string(claim.Kind),
			Detail:  "attestation verification failed",
		})
		e.logger.WarnContext(ctx, "attestation rejected",
			"claim_id", claim.ID,
			"error", err,
		)
		return result, err
	}
	result.State = domain.StateAttestedOK

	transferID := domain.DeriveTransferID(claim.ID)
	result.TransferID = transferID
	subject := domain.DeriveAccountID(claim.Subject)
	debit, credit := e.direction(claim.Kind, subject)

	if err := e.gateway.CreateAccounts(ctx, []ledger.Account{
		{ID: e.treasury, Ledger: e.cfg.Ledger, Code: e.cfg.Code},
		{ID: subject, Ledger: e.cfg.Ledger, Code: e.cfg.Code, Flags: ledger.AccountFlags{DebitsMustNotExceedCredits: true}},
	}); err != nil {
		return result, errs.Wrap(errs.CodeClearingFailed, "ensure ledger accounts", err)
	}

	outcome, err := e.gateway.CreateTransfer(ctx, ledger.Transfer{
		ID:     transferID,
		Debit:  debit,
		Credit: credit,
		Amount: claim.Amount,
		Ledger: e.cfg.Ledger,
		Code:   e.cfg.Code,
	})
	if err != nil {
		return result, errs.Wrap(errs.CodeClearingFailed, "submit transfer", err)
	}

	if !outcome.Cleared() {
		result.State = domain.StateRejected
		e.metrics.IncrementRejected("clearing")
		e.narrator.Enqueue(e.rejectionEntry(claim, transferID, outcome.Reason))
		e.sink.Publish(ctx, events.Event{
			Type:       events.ClaimRejected,
			ClaimID:    claim.ID,
			TransferID: transferID.String(),
			Subject:    claim.Subject,
			Kind:       string(claim.Kind),
			Amount:     uint64(claim.Amount),
			Detail:     string(outcome.Reason),
		})
		return result, errs.Newf(errs.CodeClearingFailed, "ledger rejected transfer: %s", outcome.Reason)
	}

	result.Success = true
	result.State = domain.StateCleared
	e.metrics.IncrementCleared(string(claim.Kind))
	e.narrator.Enqueue(e.clearingEntry(claim, transferID, debit, credit))
	e.sink.Publish(ctx, events.Event{
		Type:       events.ClaimCleared,
		ClaimID:    claim.ID,
		TransferID: transferID.String(),
		Subject:    claim.Subject,
		Kind:       string(claim.Kind),
		Amount:     uint64(claim.Amount),
		Status:     outcome.Status.String(),
	})
	e.logger.InfoContext(ctx, "claim cleared",
		"claim_id", claim.ID,
		"transfer_id", transferID.String(),
		"kind", string(claim.Kind),
		"outcome", outcome.Status.String(),
	)

	if claim.Kind.RequiresHonoring() {
		req := honoring.HonorRequest{
			TransferID:  transferID,
			ClaimID:     claim.ID,
			Subject:     claim.Subject,
			Amount:      claim.Amount,
			ExternalRef: domain.DeriveExternalRef(transferID),
			AnchorType:  claim.Kind.AnchorType(),
			Recipient:   claim.Metadata,
		}
		if err := e.honorer.Dispatch(ctx, claim.Kind, req); err != nil {
			// The transfer stays cleared. Honoring can be re-driven by
			// operators; it is never a reason to unwind the ledger.
			e.logger.ErrorContext(ctx, "honoring dispatch failed",
				"claim_id", claim.ID,
				"transfer_id", transferID.String(),
				"error", err,
			)
			return result, nil
		}
		result.State = domain.StateHonoringPending
	}

	return result, nil
}

// Balance reads the subject's live ledger balance. Always a derived read;
// there is no cached balance anywhere in this system.
func (e *Engine) Balance(ctx context.Context, account domain.AccountID) (ledger.Balance, error) {
	return e.gateway.LookupBalance(ctx, account)
}

// direction maps a claim kind onto the debit and credit sides. Earn-side
// kinds move value from treasury to the subject; spend kinds move it back
// before honoring fulfills it externally.
func (e *Engine) direction(kind domain.EventKind, subject domain.AccountID) (debit, credit domain.AccountID) {
	if kind.RequiresHonoring() {
		return subject, e.treasury
	}
	return e.treasury, subject
}

func (e *Engine) clearingEntry(claim domain.CreditEvent, transferID domain.TransferID, debit, credit domain.AccountID) domain.NarrativeEntry {
	return domain.NarrativeEntry{
		ClaimID:     claim.ID,
		Description: fmt.Sprintf("cleared %s for %s", claim.Kind, claim.Subject),
		Source:      "clearing",
		Status:      domain.NarrativeRecorded,
		Lines: []domain.NarrativeLine{
			{Account: debit, Direction: domain.Debit, Amount: claim.Amount},
			{Account: credit, Direction: domain.Credit, Amount: claim.Amount},
		},
		Metadata: map[string]string{
			"transfer_id": transferID.String(),
			"kind":        string(claim.Kind),
		},
	}
}

func (e *Engine) rejectionEntry(claim domain.CreditEvent, transferID domain.TransferID, reason ledger.RejectReason) domain.NarrativeEntry {
	return domain.NarrativeEntry{
		ClaimID:     claim.ID,
		Description: fmt.Sprintf("clearing rejected %s for %s", claim.Kind, claim.Subject),
		Source:      "clearing",
		Status:      domain.NarrativeFailed,
		Metadata: map[string]string{
			"transfer_id": transferID.String(),
			"kind":        string(claim.Kind),
			"reason":      string(reason),
		},
	}
}
