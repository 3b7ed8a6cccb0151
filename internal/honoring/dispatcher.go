package honoring

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"valcore/internal/domain"
	"valcore/internal/events"
	"valcore/internal/honoring/circuit"
)

// Narrator receives observational narrative entries. Satisfied by the mirror
// recorder; honoring only ever appends, it cannot read the mirror back.
type Narrator interface {
	Enqueue(entry domain.NarrativeEntry)
}

// EventSink publishes lifecycle events. A nil *events.Publisher satisfies it
// and publishes nothing.
type EventSink interface {
	Publish(ctx context.Context, event events.Event)
}

// Dispatcher fans cleared obligations out to provider adapters. It bounds
// concurrency, serializes work per transfer, and short-circuits adapters
// whose breaker is open. Whatever happens downstream, the cleared transfer
// stays cleared.
type Dispatcher struct {
	registry *Registry
	driver   *Driver
	results  ResultStore
	narrator Narrator
	sink     EventSink
	logger   *slog.Logger
	metrics  *Metrics

	sem *semaphore.Weighted
	wg  sync.WaitGroup

	// lifecycle outlives any single request; only Shutdown cancels it.
	lifecycle context.Context
	stop      context.CancelFunc

	mu       sync.Mutex
	inFlight map[domain.TransferID]struct{}
	breakers map[string]*circuit.Breaker
}

// NewDispatcher creates a dispatcher with the given concurrency bound.
func NewDispatcher(registry *Registry, driver *Driver, results ResultStore, narrator Narrator, sink EventSink, logger *slog.Logger, metrics *Metrics, concurrency int) *Dispatcher {
	if concurrency <= 0 {
		concurrency = 8
	}
	lifecycle, stop := context.WithCancel(context.Background())
	return &Dispatcher{
		registry:  registry,
		driver:    driver,
		results:   results,
		narrator:  narrator,
		sink:      sink,
		logger:    logger,
		metrics:   metrics,
		sem:       semaphore.NewWeighted(int64(concurrency)),
		lifecycle: lifecycle,
		stop:      stop,
		inFlight:  make(map[domain.TransferID]struct{}),
		breakers:  make(map[string]*circuit.Breaker),
	}
}

// Dispatch starts honoring for one cleared transfer in the background. A
// transfer already in flight is left alone; the deterministic external ref
// makes the eventual provider call idempotent anyway, but there is no point
// racing ourselves.
func (d *Dispatcher) Dispatch(ctx context.Context, kind domain.EventKind, req HonorRequest) error {
	adapter, err := d.registry.ForKind(kind)
	if err != nil {
		return err
	}

	d.mu.Lock()
	if _, busy := d.inFlight[req.TransferID]; busy {
		d.mu.Unlock()
		return nil
	}
	d.inFlight[req.TransferID] = struct{}{}
	breaker := d.breakerLocked(adapter.Name())
	d.mu.Unlock()

	if !breaker.Allow() {
		d.clearInFlight(req.TransferID)
		d.metrics.IncrementBreakerOpen(adapter.Name())
		result := domain.HonoringResult{
			TransferID:  req.TransferID,
			ClaimID:     req.ClaimID,
			Adapter:     adapter.Name(),
			Status:      domain.ManualReview,
			ExternalRef: req.ExternalRef,
			Detail:      "adapter circuit open, dispatch skipped",
			SettledAt:   time.Now().UTC(),
		}
		d.finish(ctx, req, result)
		return nil
	}

	pending := domain.HonoringResult{
		TransferID:  req.TransferID,
		ClaimID:     req.ClaimID,
		Adapter:     adapter.Name(),
		Status:      domain.HonoringPending,
		ExternalRef: req.ExternalRef,
	}
	if err := d.results.Save(ctx, pending); err != nil {
		d.clearInFlight(req.TransferID)
		return fmt.Errorf("save pending honoring result: %w", err)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.clearInFlight(req.TransferID)

		// Detach from the caller's context: an HTTP request context dies the
		// moment the response is written, while retries legitimately outlive
		// it. Only dispatcher shutdown cancels a run.
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()
		unlink := context.AfterFunc(d.lifecycle, cancel)
		defer unlink()

		if err := d.sem.Acquire(runCtx, 1); err != nil {
			d.logger.WarnContext(ctx, "honoring dispatch cancelled before start",
				"transfer_id", req.TransferID.String(),
				"adapter", adapter.Name(),
			)
			return
		}
		defer d.sem.Release(1)

		result := d.driver.Run(runCtx, adapter, req)
		d.recordBreaker(breaker, result.Status)
		d.finish(context.WithoutCancel(runCtx), req, result)
	}()
	return nil
}

// ProcessWebhook folds a provider callback into the stored result. Webhooks
// are observational: they may settle a pending result or confirm a terminal
// one, but they never reopen a settled rejection into success silently
// without trace, and they never touch the ledger.
func (d *Dispatcher) ProcessWebhook(ctx context.Context, adapterName string, payload []byte) error {
	adapter, ok := d.registry.Get(adapterName)
	if !ok {
		return fmt.Errorf("no adapter registered as %s", adapterName)
	}

	event, err := adapter.HandleWebhook(ctx, payload)
	if err != nil {
		return fmt.Errorf("parse %s webhook: %w", adapterName, err)
	}

	stored, err := d.results.FindByExternalRef(ctx, event.ExternalRef)
	if err != nil {
		return fmt.Errorf("webhook for unknown ref %s: %w", event.ExternalRef, err)
	}

	if stored.Status.Terminal() && stored.Status != domain.ManualReview {
		d.logger.InfoContext(ctx, "webhook for settled honoring ignored",
			"adapter", adapterName,
			"external_ref", event.ExternalRef,
			"stored_status", string(stored.Status),
			"webhook_status", string(event.Status),
		)
		return nil
	}

	stored.Status = event.Status
	stored.ProofHash = event.ProofHash
	if event.Detail != "" {
		stored.Detail = event.Detail
	}
	if event.Status.Terminal() {
		stored.SettledAt = time.Now().UTC()
	}
	if err := d.results.Save(ctx, stored); err != nil {
		return fmt.Errorf("save webhook result: %w", err)
	}
	d.metrics.IncrementResult(adapterName, string(stored.Status))
	if stored.Status.Terminal() {
		d.publishSettled(ctx, stored)
	}

	d.narrator.Enqueue(domain.NarrativeEntry{
		ClaimID:     stored.ClaimID,
		Description: fmt.Sprintf("honoring %s via %s webhook", stored.Status, adapterName),
		Source:      "honoring.webhook." + adapterName,
		Status:      domain.NarrativeObserved,
		Metadata: map[string]string{
			"transfer_id":  stored.TransferID.String(),
			"external_ref": stored.ExternalRef,
			"provider_tx":  event.ProviderTx,
			"status":       string(stored.Status),
		},
	})
	return nil
}

// Wait blocks until all in-flight honoring goroutines return.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Shutdown cancels in-flight runs and waits for them to drain. Interrupted
// runs settle at PENDING and are re-driven on the next start.
func (d *Dispatcher) Shutdown() {
	d.stop()
	d.wg.Wait()
}

// finish persists the result and mirrors it. Persistence failures are logged,
// not propagated: the dispatch path is already detached from the caller.
func (d *Dispatcher) finish(ctx context.Context, req HonorRequest, result domain.HonoringResult) {
	if err := d.results.Save(ctx, result); err != nil {
		d.logger.ErrorContext(ctx, "honoring result save failed",
			"transfer_id", result.TransferID.String(),
			"status", string(result.Status),
			"error", err,
		)
	}

	status := domain.NarrativeObserved
	if result.Status == domain.FailedExternal || result.Status == domain.ManualReview {
		status = domain.NarrativeFailed
	}
	d.narrator.Enqueue(domain.NarrativeEntry{
		ClaimID:     req.ClaimID,
		Description: fmt.Sprintf("honoring %s via %s", result.Status, result.Adapter),
		Source:      "honoring." + result.Adapter,
		Status:      status,
		Metadata: map[string]string{
			"transfer_id":  result.TransferID.String(),
			"external_ref": result.ExternalRef,
			"attempts":     fmt.Sprintf("%d", result.Attempts),
			"status":       string(result.Status),
			"detail":       result.Detail,
		},
	})

	if result.Status.Terminal() {
		d.publishSettled(ctx, result)
	}
}

// publishSettled emits the lifecycle event for a terminally settled honoring
// outcome. Observers get one honoring_settled per terminal transition.
func (d *Dispatcher) publishSettled(ctx context.Context, result domain.HonoringResult) {
	if d.sink == nil {
		return
	}
	d.sink.Publish(ctx, events.Event{
		Type:       events.HonoringSettled,
		ClaimID:    result.ClaimID,
		TransferID: result.TransferID.String(),
		Status:     string(result.Status),
		Detail:     result.Detail,
	})
}

// recordBreaker feeds the breaker from the settled status. A provider that
// answered, even with a rejection, is healthy; only infrastructure-shaped
// outcomes count as breaker failures.
func (d *Dispatcher) recordBreaker(b *circuit.Breaker, status domain.HonoringStatus) {
	switch status {
	case domain.FailedExternal, domain.ManualReview:
		if _, change := b.RecordFailure(); change.Opened {
			d.logger.Warn("honoring breaker opened", "adapter", b.Name())
		}
	default:
		if _, change := b.RecordSuccess(); change.Closed {
			d.logger.Info("honoring breaker closed", "adapter", b.Name())
		}
	}
}

func (d *Dispatcher) breakerLocked(name string) *circuit.Breaker {
	b, ok := d.breakers[name]
	if !ok {
		b = circuit.New(name,
			circuit.WithFailureThreshold(5),
			circuit.WithSuccessThreshold(2),
		)
		d.breakers[name] = b
	}
	return b
}

func (d *Dispatcher) clearInFlight(id domain.TransferID) {
	d.mu.Lock()
	delete(d.inFlight, id)
	d.mu.Unlock()
}
