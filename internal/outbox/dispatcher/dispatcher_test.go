package dispatcher_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiat/internal/outbox"
	"fiat/internal/outbox/dispatcher"
	"fiat/internal/outbox/store/memory"
	domain "fiat/pkg/domain"
)

type capturingPublisher struct {
	keys   []string
	values [][]byte
	failAt int // fail when len(values) reaches this count, 0 disables
}

func (p *capturingPublisher) Publish(_ context.Context, key []byte, value []byte) error {
	if p.failAt > 0 && len(p.values) >= p.failAt {
		return errors.New("broker unavailable")
	}
	p.keys = append(p.keys, string(key))
	p.values = append(p.values, value)
	return nil
}

type flakyPublisher struct {
	inner  *capturingPublisher
	broken bool
}

func (p *flakyPublisher) Publish(ctx context.Context, key []byte, value []byte) error {
	if p.broken {
		return errors.New("broker unavailable")
	}
	return p.inner.Publish(ctx, key, value)
}

func enqueueIntents(t *testing.T, store *memory.InMemoryStore, intents ...outbox.Intent) []outbox.Row {
	t.Helper()
	mutationID := domain.NewMutationID()
	rows := make([]outbox.Row, 0, len(intents))
	for _, intent := range intents {
		row, err := outbox.Encode(mutationID, intent, time.Now())
		require.NoError(t, err)
		rows = append(rows, row)
	}
	require.NoError(t, store.Enqueue(context.Background(), rows))
	return rows
}

func TestDispatchOnce(t *testing.T) {
	ctx := context.Background()
	entityID := domain.NewEntityID()

	t.Run("publishes and marks a full batch", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		publisher := &capturingPublisher{}
		d := dispatcher.New(store, publisher, time.Second, 10)

		enqueueIntents(t, store,
			outbox.SearchIntent{EntityType: "contacts", EntityID: entityID, Op: "index"},
			outbox.WebhookIntent{EntityType: "contacts", EntityID: entityID, Event: "entity.created"},
		)

		require.NoError(t, d.DispatchOnce(ctx))

		require.Len(t, publisher.values, 2)
		assert.Equal(t, entityID.String(), publisher.keys[0], "rows are keyed by entity id")

		var msg dispatcher.Message
		require.NoError(t, json.Unmarshal(publisher.values[0], &msg))
		assert.Equal(t, "search", msg.Kind)
		assert.Equal(t, "contacts", msg.EntityType)

		pending, err := store.ListUndelivered(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("broker failure leaves the remainder undelivered", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		publisher := &capturingPublisher{failAt: 1}
		d := dispatcher.New(store, publisher, time.Second, 10)

		enqueueIntents(t, store,
			outbox.SearchIntent{EntityType: "contacts", EntityID: entityID, Op: "index"},
			outbox.WebhookIntent{EntityType: "contacts", EntityID: entityID, Event: "entity.created"},
		)

		err := d.DispatchOnce(ctx)
		require.Error(t, err)

		// The first row went out and is marked; the second stays pending.
		pending, listErr := store.ListUndelivered(ctx, 10)
		require.NoError(t, listErr)
		require.Len(t, pending, 1)
		assert.Equal(t, outbox.KindWebhook, pending[0].Kind)
	})

	t.Run("empty outbox is a no-op", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		publisher := &capturingPublisher{}
		d := dispatcher.New(store, publisher, time.Second, 10)

		require.NoError(t, d.DispatchOnce(ctx))
		assert.Empty(t, publisher.values)
	})

	t.Run("a dead broker trips the breaker down to single-row probes", func(t *testing.T) {
		store := memory.NewInMemoryStore()
		publisher := &flakyPublisher{inner: &capturingPublisher{}, broken: true}
		d := dispatcher.New(store, publisher, time.Second, 10)

		enqueueIntents(t, store,
			outbox.SearchIntent{EntityType: "contacts", EntityID: entityID, Op: "index"},
			outbox.WebhookIntent{EntityType: "contacts", EntityID: entityID, Event: "entity.created"},
			outbox.SearchIntent{EntityType: "contacts", EntityID: entityID, Op: "index"},
		)

		// Three failed passes open the circuit.
		for i := 0; i < 3; i++ {
			require.Error(t, d.DispatchOnce(ctx))
		}

		// With the broker back, the open circuit probes one row per pass
		// until enough successes close it and full batches resume.
		publisher.broken = false
		require.NoError(t, d.DispatchOnce(ctx))
		assert.Len(t, publisher.inner.values, 1)

		require.NoError(t, d.DispatchOnce(ctx))
		require.NoError(t, d.DispatchOnce(ctx))
		assert.Len(t, publisher.inner.values, 3)

		pending, err := store.ListUndelivered(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})
}
