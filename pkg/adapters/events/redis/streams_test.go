package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aescanero/nodecomp/pkg/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBus(t *testing.T) (*StreamsEventBus, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	bus, err := NewStreamsEventBus(client, "nodecomp", "test-consumer", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = bus.Close() })
	return bus, client
}

func TestNewStreamsEventBusRequiresNames(t *testing.T) {
	_, err := NewStreamsEventBus(nil, "", "c", zap.NewNop())
	assert.Error(t, err)
	_, err = NewStreamsEventBus(nil, "g", "", zap.NewNop())
	assert.Error(t, err)
}

func TestPublishAppendsToTopicStream(t *testing.T) {
	bus, client := newTestBus(t)
	ctx := context.Background()

	event := domain.Event{ID: "e1", Type: domain.EventTypeInstanceCreated, ResourceID: "i1"}
	require.NoError(t, bus.Publish(ctx, domain.TopicChainEvents, event))

	entries, err := client.XRange(ctx, "nodecomp:events:chain.events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "instance.created", entries[0].Values["type"])
	assert.Contains(t, entries[0].Values["data"], `"resource_id":"i1"`)
}

func TestSubscribeDeliversAndAcknowledges(t *testing.T) {
	bus, client := newTestBus(t)
	ctx := context.Background()

	var mu sync.Mutex
	var got []domain.Event
	require.NoError(t, bus.Subscribe(ctx, domain.TopicChainEvents, func(ctx context.Context, event domain.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, event)
		return nil
	}))

	require.NoError(t, bus.Publish(ctx, domain.TopicChainEvents, domain.Event{ID: "e1", Type: domain.EventTypeNodeUpdated, ResourceID: "n1"}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	assert.Equal(t, domain.EventTypeNodeUpdated, got[0].Type)
	mu.Unlock()

	assert.Eventually(t, func() bool {
		pending, err := client.XPending(ctx, "nodecomp:events:chain.events", "nodecomp").Result()
		return err == nil && pending.Count == 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestSubscribeTwiceReusesGroup(t *testing.T) {
	bus, _ := newTestBus(t)
	ctx := context.Background()

	noop := func(ctx context.Context, event domain.Event) error { return nil }
	require.NoError(t, bus.Subscribe(ctx, domain.TopicChainEvents, noop))
	require.NoError(t, bus.Subscribe(ctx, domain.TopicChainEvents, noop))
	require.NoError(t, bus.Unsubscribe(ctx, domain.TopicChainEvents))
}
