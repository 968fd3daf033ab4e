package memory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trickstertwo/xroute"
)

func env(id string) *xroute.Envelope {
	return &xroute.Envelope{ID: id, Name: "test", Payload: []byte(id)}
}

// TestPublishSubscribe verifies envelopes reach a subscriber and are acked.
func TestPublishSubscribe(t *testing.T) {
	tr := NewTransport(Defaults())
	defer tr.Close(context.Background())

	got := make(chan *xroute.Envelope, 4)
	sub, err := tr.Subscribe(context.Background(), "in", "g", func(d xroute.Delivery) {
		got <- d.Envelope()
		_ = d.Ack(context.Background())
	})
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, tr.Publish(context.Background(), "in", env("a"), nil, env("b")))

	for _, want := range []string{"a", "b"} {
		select {
		case e := <-got:
			assert.Equal(t, want, e.ID)
		case <-time.After(time.Second):
			t.Fatalf("envelope %s not delivered", want)
		}
	}
	require.Eventually(t, func() bool { return tr.Stats().Acked == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(2), tr.Stats().Published)
}

// TestFanOutPerGroup verifies each group receives every envelope once while
// workers in a group compete.
func TestFanOutPerGroup(t *testing.T) {
	tr := NewTransport(Config{Concurrency: 3})
	defer tr.Close(context.Background())

	var a, b atomic.Int64
	subA, err := tr.Subscribe(context.Background(), "in", "a", func(d xroute.Delivery) { a.Add(1); _ = d.Ack(context.Background()) })
	require.NoError(t, err)
	defer subA.Close()
	subB, err := tr.Subscribe(context.Background(), "in", "b", func(d xroute.Delivery) { b.Add(1); _ = d.Ack(context.Background()) })
	require.NoError(t, err)
	defer subB.Close()

	for i := 0; i < 20; i++ {
		require.NoError(t, tr.Publish(context.Background(), "in", env("x")))
	}
	require.Eventually(t, func() bool { return a.Load() == 20 && b.Load() == 20 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(20), a.Load())
	assert.Equal(t, int64(20), b.Load())
}

// TestPublish_NoSubscribers verifies envelopes to an unknown topic are dropped.
func TestPublish_NoSubscribers(t *testing.T) {
	tr := NewTransport(Defaults())
	defer tr.Close(context.Background())

	require.NoError(t, tr.Publish(context.Background(), "nowhere", env("a"), env("b")))
	assert.Equal(t, uint64(2), tr.Stats().Dropped)
	assert.Zero(t, tr.Stats().Published)
}

// TestPublish_AssignsIDs verifies empty IDs are filled when configured.
func TestPublish_AssignsIDs(t *testing.T) {
	tr := NewTransport(Defaults())
	defer tr.Close(context.Background())

	got := make(chan string, 1)
	sub, err := tr.Subscribe(context.Background(), "in", "g", func(d xroute.Delivery) { got <- d.Envelope().ID })
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, tr.Publish(context.Background(), "in", &xroute.Envelope{Payload: []byte("x")}))
	select {
	case id := <-got:
		assert.NotEmpty(t, id)
	case <-time.After(time.Second):
		t.Fatal("envelope not delivered")
	}
}

// TestNack_Redelivers verifies a nacked envelope comes back to its group.
func TestNack_Redelivers(t *testing.T) {
	tr := NewTransport(Config{RedeliveryDelay: 5 * time.Millisecond})
	defer tr.Close(context.Background())

	var attempts atomic.Int64
	done := make(chan struct{})
	sub, err := tr.Subscribe(context.Background(), "in", "g", func(d xroute.Delivery) {
		if attempts.Add(1) == 1 {
			_ = d.Nack(context.Background(), errors.New("retry"))
			return
		}
		_ = d.Ack(context.Background())
		close(done)
	})
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, tr.Publish(context.Background(), "in", env("a")))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("envelope not redelivered")
	}
	s := tr.Stats()
	assert.Equal(t, uint64(1), s.Nacked)
	assert.Equal(t, uint64(1), s.Redelivered)
	assert.Equal(t, uint64(1), s.Acked)
}

// TestClose verifies a closed transport rejects publishes and subscriptions.
func TestClose(t *testing.T) {
	tr := NewTransport(Defaults())
	require.NoError(t, tr.Close(context.Background()))
	require.NoError(t, tr.Close(context.Background()))

	assert.ErrorIs(t, tr.Publish(context.Background(), "in", env("a")), ErrClosed)
	_, err := tr.Subscribe(context.Background(), "in", "g", func(xroute.Delivery) {})
	assert.ErrorIs(t, err, ErrClosed)
}

// TestConfigFromMap verifies map overlays and defaults for invalid values.
func TestConfigFromMap(t *testing.T) {
	c := ConfigFromMap(map[string]any{
		"buffer_size":      float64(16),
		"concurrency":      -1,
		"redelivery_delay": "10ms",
		"assign_ids":       false,
	})
	assert.Equal(t, 16, c.BufferSize)
	assert.Equal(t, 1, c.Concurrency)
	assert.Equal(t, 10*time.Millisecond, c.RedeliveryDelay)
	assert.False(t, c.AssignIDs)

	assert.Equal(t, Defaults(), ConfigFromMap(nil))
	assert.Equal(t, Defaults(), ConfigFromMap(Defaults().toMap()))
}

// TestTransportRegistered verifies the factory is available by name.
func TestTransportRegistered(t *testing.T) {
	tr, err := xroute.NewTransport(TransportName, map[string]any{"concurrency": 2})
	require.NoError(t, err)
	assert.IsType(t, &Transport{}, tr)
	require.NoError(t, tr.Close(context.Background()))
}
