package ingestion

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"WrapLedger/internal/core"
	"WrapLedger/internal/observability"

	"github.com/nats-io/nats.go/jetstream"
)

// OutboundPublisher publishes applied events to NATS for downstream
// consumers. It drains the publish channel, which the core feeds with
// non-blocking sends: a slow publisher drops events rather than
// stalling the ledger, and consumers that need a gapless feed read the
// event log instead.
// Subjects follow the pattern: wrap.ledger.events.{event_type}
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan core.CoreOutput
	metrics   *observability.Metrics
}

// PublishedEvent is the outbound JSON wire format.
type PublishedEvent struct {
	Sequence  int64           `json:"sequence"`
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Account   string          `json:"account"`
	Height    uint64          `json:"height"`
	Payload   json.RawMessage `json:"payload"`
	StateHash string          `json:"state_hash"`
	PrevHash  string          `json:"prev_hash"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewOutboundPublisher(js jetstream.JetStream, inputChan <-chan core.CoreOutput, metrics *observability.Metrics) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
		metrics:   metrics,
	}
}

// Run starts the outbound publisher loop.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-op.inputChan:
			if !ok {
				return nil
			}

			if err := op.publish(ctx, out); err != nil {
				log.Printf("WARN: outbound publish failed seq=%d: %v", out.Envelope.Sequence, err)
				if op.metrics != nil {
					op.metrics.NATSPublishErrors.Inc()
				}
				// Non-fatal: downstream consumers can read the event log directly
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, out core.CoreOutput) error {
	env := out.Envelope
	eventType := env.Type.String()

	data, err := json.Marshal(PublishedEvent{
		Sequence:  env.Sequence,
		EventID:   env.EventID.String(),
		EventType: eventType,
		Account:   env.Account.Hex(),
		Height:    env.Height,
		Payload:   env.Payload,
		StateHash: hex.EncodeToString(env.StateHash[:]),
		PrevHash:  hex.EncodeToString(env.PrevHash[:]),
		Timestamp: env.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("wrap.ledger.events.%s", eventType)
	if _, err := op.js.Publish(ctx, subject, data); err != nil {
		return err
	}
	if op.metrics != nil {
		op.metrics.NATSPublished.WithLabelValues(eventType).Inc()
	}
	return nil
}

// EnsureOutboundStream creates the outbound events stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "WRAP_LEDGER_EVENTS",
		Subjects:  []string{"wrap.ledger.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	log.Println("INFO: ensured outbound stream WRAP_LEDGER_EVENTS")
	return nil
}
