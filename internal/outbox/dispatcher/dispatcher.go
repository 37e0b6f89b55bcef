// Package dispatcher drains the outbox to the downstream broker. Delivery is
// at-least-once: a row is marked delivered only after the broker accepted it,
// so consumers must tolerate duplicates.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"fiat/internal/outbox"
	"fiat/internal/platform/metrics"
	"fiat/pkg/platform/circuit"
)

// Message is the wire envelope published for one intent row.
type Message struct {
	ID         string          `json:"id"`
	MutationID string          `json:"mutationId"`
	Kind       string          `json:"kind"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Publisher pushes one message to the broker. Key is the partition key;
// rows for the same entity share a key so consumers see them in order.
type Publisher interface {
	Publish(ctx context.Context, key []byte, value []byte) error
}

// Dispatcher polls the outbox and publishes undelivered rows. A circuit
// breaker guards the broker: while it is open each pass probes with a single
// row instead of hammering a dead broker with full batches.
type Dispatcher struct {
	store     outbox.Store
	publisher Publisher
	interval  time.Duration
	batchSize int
	breaker   *circuit.Breaker
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures the dispatcher.
type Option func(*Dispatcher)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithMetrics enables metrics collection.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func New(store outbox.Store, publisher Publisher, interval time.Duration, batchSize int, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:     store,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		breaker:   circuit.New("outbox-broker", circuit.WithFailureThreshold(3)),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run polls until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := d.DispatchOnce(ctx); err != nil {
				d.logger.ErrorContext(ctx, "outbox dispatch pass failed",
					slog.String("error", err.Error()))
			}
		}
	}
}

// DispatchOnce publishes one batch of undelivered rows. Rows that fail to
// publish stay undelivered and are retried on the next pass; rows published
// before a failure are still marked so they are not re-sent needlessly.
func (d *Dispatcher) DispatchOnce(ctx context.Context) error {
	limit := d.batchSize
	if d.breaker.IsOpen() {
		limit = 1
	}
	rows, err := d.store.ListUndelivered(ctx, limit)
	if err != nil {
		return fmt.Errorf("list undelivered: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	var delivered []outbox.Row
	var publishErr error
	for _, row := range rows {
		value, err := json.Marshal(Message{
			ID:         row.ID.String(),
			MutationID: row.MutationID.String(),
			Kind:       string(row.Kind),
			EntityType: row.EntityType.String(),
			EntityID:   row.EntityID.String(),
			Payload:    row.Payload,
			CreatedAt:  row.CreatedAt,
		})
		if err != nil {
			publishErr = fmt.Errorf("encode outbox message %s: %w", row.ID, err)
			break
		}
		if err := d.publisher.Publish(ctx, []byte(row.EntityID.String()), value); err != nil {
			if _, change := d.breaker.RecordFailure(); change.Opened {
				d.logger.WarnContext(ctx, "outbox broker circuit opened",
					slog.String("breaker", d.breaker.Name()))
			}
			publishErr = fmt.Errorf("publish outbox message %s: %w", row.ID, err)
			break
		}
		if _, change := d.breaker.RecordSuccess(); change.Closed {
			d.logger.InfoContext(ctx, "outbox broker circuit closed",
				slog.String("breaker", d.breaker.Name()))
		}
		delivered = append(delivered, row)
	}

	if len(delivered) > 0 {
		if err := d.store.MarkDelivered(ctx, delivered); err != nil {
			// The rows went out but could not be marked; the next pass will
			// re-send them. At-least-once holds.
			return fmt.Errorf("mark delivered: %w", err)
		}
		if d.metrics != nil {
			d.metrics.OutboxDispatched.Add(float64(len(delivered)))
		}
		d.logger.InfoContext(ctx, "outbox rows dispatched",
			slog.Int("count", len(delivered)))
	}
	return publishErr
}
