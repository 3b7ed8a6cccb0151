package honoring

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"valcore/internal/domain"
)

// DriverConfig bounds the generic retry policy.
type DriverConfig struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
}

func (c DriverConfig) withDefaults() DriverConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 30 * time.Second
	}
	return c
}

// Driver runs the retry/backoff/classification policy shared by every
// adapter. Only retryable errors consume retry budget; exhausting the budget
// settles at MANUAL_REVIEW because the final provider state is unknown, and
// an unknown state is a reconciliation task, not a hard failure.
type Driver struct {
	cfg     DriverConfig
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer

	// sleep is swapped in tests to observe delays without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDriver builds a driver with the given policy.
func NewDriver(cfg DriverConfig, logger *slog.Logger, metrics *Metrics) *Driver {
	return &Driver{
		cfg:     cfg.withDefaults(),
		logger:  logger,
		metrics: metrics,
		tracer:  otel.Tracer("valcore/honoring"),
		sleep:   sleepCtx,
	}
}

// Run drives one obligation through the adapter until a terminal result.
// The ledger is never touched here regardless of outcome.
func (d *Driver) Run(ctx context.Context, adapter Adapter, req HonorRequest) domain.HonoringResult {
	ctx, span := d.tracer.Start(ctx, "honoring.run",
		trace.WithAttributes(
			attribute.String("adapter", adapter.Name()),
			attribute.String("transfer_id", req.TransferID.String()),
		))
	defer span.End()

	result := domain.HonoringResult{
		TransferID:  req.TransferID,
		ClaimID:     req.ClaimID,
		Adapter:     adapter.Name(),
		ExternalRef: req.ExternalRef,
	}

	delay := d.cfg.BaseDelay
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		result.Attempts = attempt

		attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.AttemptTimeout)
		start := time.Now()
		res, err := adapter.HonorClaim(attemptCtx, req)
		cancel()
		d.metrics.ObserveAttempt(adapter.Name(), time.Since(start))

		if err == nil {
			res.TransferID = req.TransferID
			res.ClaimID = req.ClaimID
			res.Adapter = adapter.Name()
			res.Attempts = attempt
			if res.ExternalRef == "" {
				res.ExternalRef = req.ExternalRef
			}
			if res.SettledAt.IsZero() && res.Status.Terminal() {
				res.SettledAt = time.Now().UTC()
			}
			d.metrics.IncrementResult(adapter.Name(), string(res.Status))
			return res
		}

		// A blown per-attempt deadline is always a retryable timeout even
		// when the adapter did not classify it.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = NewAdapterError(ErrorTimeout, adapter.Name(), "attempt deadline exceeded", err)
		}

		category := GetCategory(err)
		d.metrics.IncrementFailure(adapter.Name(), string(category))
		d.logger.WarnContext(ctx, "honoring attempt failed",
			"adapter", adapter.Name(),
			"transfer_id", req.TransferID.String(),
			"attempt", attempt,
			"category", string(category),
			"error", err,
		)

		if !IsRetryable(err) {
			result.Status = terminalStatusFor(category)
			result.Detail = err.Error()
			result.SettledAt = time.Now().UTC()
			d.metrics.IncrementResult(adapter.Name(), string(result.Status))
			return result
		}

		if attempt == d.cfg.MaxAttempts {
			break
		}
		if err := d.sleep(ctx, delay); err != nil {
			// Shutdown mid-cycle: leave the obligation unresolved. Ledger
			// and mirror state are untouched; a restart re-drives it.
			result.Status = domain.HonoringPending
			result.Detail = "honoring interrupted before completion"
			return result
		}
		if delay *= 2; delay > d.cfg.MaxDelay {
			delay = d.cfg.MaxDelay
		}
	}

	result.Status = domain.ManualReview
	result.Detail = "retry budget exhausted, final provider state unknown"
	result.SettledAt = time.Now().UTC()
	d.metrics.IncrementResult(adapter.Name(), string(result.Status))
	return result
}

// terminalStatusFor maps non-retryable categories onto terminal statuses:
// provider-side refusals are REJECTED, environment and credential problems
// are FAILED_EXTERNAL.
func terminalStatusFor(category ErrorCategory) domain.HonoringStatus {
	switch category {
	case ErrorCompliance, ErrorDeclined, ErrorInvalidRecipient, ErrorDuplicate:
		return domain.HonoringRejected
	default:
		return domain.FailedExternal
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
