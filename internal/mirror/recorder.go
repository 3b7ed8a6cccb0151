package mirror

import (
	"context"
	"log/slog"

	"valcore/internal/domain"
)

// Recorder decouples narrative writes from the clearing critical path. Writes
// are fire-and-forget: Enqueue never blocks, and a failed or dropped write is
// logged and counted, never surfaced to the caller.
type Recorder struct {
	service *Service
	logger  *slog.Logger
	metrics *Metrics
	inbox   chan domain.NarrativeEntry
}

// NewRecorder creates a recorder with a bounded queue.
func NewRecorder(service *Service, logger *slog.Logger, metrics *Metrics, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Recorder{
		service: service,
		logger:  logger,
		metrics: metrics,
		inbox:   make(chan domain.NarrativeEntry, queueSize),
	}
}

// Enqueue hands an entry to the background worker. When the queue is full
// the entry is dropped with a warning: the mirror is best-effort and must
// never hold up clearing.
func (r *Recorder) Enqueue(entry domain.NarrativeEntry) {
	select {
	case r.inbox <- entry:
	default:
		r.metrics.IncrementDropped()
		r.logger.Warn("narrative queue full, entry dropped",
			"claim_id", entry.ClaimID,
			"status", string(entry.Status),
		)
	}
}

// Run consumes entries until the context is cancelled. Append failures are
// logged and counted; they never propagate.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case entry := <-r.inbox:
			if _, err := r.service.Record(ctx, entry); err != nil {
				r.metrics.IncrementWriteFailure()
				r.logger.Warn("narrative write failed",
					"claim_id", entry.ClaimID,
					"error", err,
				)
				continue
			}
			r.metrics.IncrementRecorded(string(entry.Status))
		}
	}
}
