// Package events publishes lifecycle records to Kafka. Publishing is
// fire-and-forget: the clearing path never waits on the broker, and a lost
// event costs an observer a notification, never a ledger write.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"valcore/internal/platform/config"
)

// Type enumerates lifecycle event types.
type Type string

const (
	ClaimCleared    Type = "claim_cleared"
	ClaimRejected   Type = "claim_rejected"
	HonoringSettled Type = "honoring_settled"
)

// Event is one lifecycle record. Keyed by claim ID so per-claim ordering
// survives partitioning.
type Event struct {
	Type       Type      `json:"type"`
	ClaimID    string    `json:"claim_id"`
	TransferID string    `json:"transfer_id,omitempty"`
	Subject    string    `json:"subject,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	Amount     uint64    `json:"amount_micros,omitempty"`
	Status     string    `json:"status,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher writes lifecycle events to a Kafka topic. A nil Publisher is
// valid and publishes nothing, so callers never branch on configuration.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewPublisher connects to the configured brokers. Returns nil when no
// brokers are configured.
func NewPublisher(cfg config.Kafka, logger *slog.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RecordRetries(3),
	)
	if err != nil {
		return nil, err
	}

	return &Publisher{client: client, topic: cfg.Topic, logger: logger}, nil
}

// EnsureTopic creates the lifecycle topic when it does not exist yet.
func (p *Publisher) EnsureTopic(ctx context.Context) error {
	if p == nil {
		return nil
	}
	adm := kadm.NewClient(p.client)
	resps, err := adm.CreateTopics(ctx, 3, 1, nil, p.topic)
	if err != nil {
		return err
	}
	for _, resp := range resps {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return resp.Err
		}
	}
	return nil
}

// Publish emits one event asynchronously. Delivery failures are logged and
// dropped.
func (p *Publisher) Publish(ctx context.Context, event Event) {
	if p == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	value, err := json.Marshal(event)
	if err != nil {
		p.logger.WarnContext(ctx, "lifecycle event encode failed",
			"type", string(event.Type),
			"claim_id", event.ClaimID,
			"error", err,
		)
		return
	}

	record := &kgo.Record{Key: []byte(event.ClaimID), Value: value}
	// Delivery must not be tied to the caller's request lifetime; the client
	// buffers and retries on its own.
	p.client.Produce(context.WithoutCancel(ctx), record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Warn("lifecycle event delivery failed",
				"type", string(event.Type),
				"claim_id", event.ClaimID,
				"error", err,
			)
		}
	})
}

// Close flushes buffered records and releases the client.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		p.logger.Warn("lifecycle event flush incomplete", "error", err)
	}
	p.client.Close()
}
