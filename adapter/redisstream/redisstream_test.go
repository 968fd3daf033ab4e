package redisstream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trickstertwo/xroute"
	"github.com/trickstertwo/xroute/message"
)

// testTransport starts an in-process Redis and a transport connected to it.
func testTransport(t *testing.T, mutate func(*Config)) (*Transport, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := Defaults()
	cfg.Addr = mr.Addr()
	cfg.Consumer = "test-consumer"
	cfg.Concurrency = 2
	cfg.Block = 50 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}

	tr, err := NewTransport(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close(context.Background()) })

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return tr, client
}

func envelope(i int) *xroute.Envelope {
	return &xroute.Envelope{
		ID:         fmt.Sprintf("env-%d", i),
		Name:       "TestEnvelope",
		Payload:    []byte(fmt.Sprintf(`{"index":%d}`, i)),
		Metadata:   map[string]string{"index": fmt.Sprint(i)},
		ProducedAt: time.Unix(0, int64(1_700_000_000_000_000_000+i)),
	}
}

// TestPublish_SingleEnvelope verifies one XADD per envelope with its fields.
func TestPublish_SingleEnvelope(t *testing.T) {
	tr, client := testTransport(t, nil)
	ctx := context.Background()

	require.NoError(t, tr.Publish(ctx, "orders", envelope(1)))

	n, err := client.XLen(ctx, "orders").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	entries, err := client.XRange(ctx, "orders", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	got := decodeEnvelope(entries[0].ID, entries[0].Values)
	want := envelope(1)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Payload, got.Payload)
	assert.Equal(t, want.Metadata, got.Metadata)
	assert.True(t, want.ProducedAt.Equal(got.ProducedAt))
	assert.Equal(t, uint64(1), tr.Stats().Published)
}

// TestPublish_Batch verifies a batch is pipelined and nil entries skipped.
func TestPublish_Batch(t *testing.T) {
	tr, client := testTransport(t, nil)
	ctx := context.Background()

	envs := make([]*xroute.Envelope, 0, 51)
	for i := 0; i < 50; i++ {
		envs = append(envs, envelope(i))
	}
	envs = append(envs, nil)
	require.NoError(t, tr.Publish(ctx, "batch", envs...))

	n, err := client.XLen(ctx, "batch").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(50), n)
}

// TestPublish_MaxLenApprox verifies the stream is trimmed when configured.
func TestPublish_MaxLenApprox(t *testing.T) {
	tr, client := testTransport(t, func(c *Config) { c.MaxLenApprox = 10 })
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		require.NoError(t, tr.Publish(ctx, "bounded", envelope(i)))
	}
	n, err := client.XLen(ctx, "bounded").Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, n, int64(30))
	assert.GreaterOrEqual(t, n, int64(10))
}

// TestSubscribe_ConsumesAllEnvelopes verifies every envelope published after
// subscribing is delivered once and acked.
func TestSubscribe_ConsumesAllEnvelopes(t *testing.T) {
	tr, client := testTransport(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const total = 40
	var consumed atomic.Int64
	seen := sync.Map{}
	sub, err := tr.Subscribe(ctx, "consume", "workers", func(d xroute.Delivery) {
		seen.Store(d.Envelope().ID, true)
		consumed.Add(1)
		assert.NoError(t, d.Ack(ctx))
	})
	require.NoError(t, err)
	defer sub.Close()

	for i := 0; i < total; i++ {
		require.NoError(t, tr.Publish(ctx, "consume", envelope(i)))
	}

	require.Eventually(t, func() bool { return consumed.Load() == total }, 5*time.Second, 10*time.Millisecond)
	for i := 0; i < total; i++ {
		_, ok := seen.Load(fmt.Sprintf("env-%d", i))
		assert.True(t, ok, "envelope %d not delivered", i)
	}

	pending, err := client.XPending(ctx, "consume", "workers").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)
	assert.Equal(t, uint64(total), tr.Stats().Acked)
}

// TestSubscribe_EmptyGroupUsesConfig verifies the configured group is the
// fallback.
func TestSubscribe_EmptyGroupUsesConfig(t *testing.T) {
	tr, client := testTransport(t, func(c *Config) { c.Group = "fallback" })
	ctx := context.Background()

	sub, err := tr.Subscribe(ctx, "fb", "", func(d xroute.Delivery) { _ = d.Ack(ctx) })
	require.NoError(t, err)
	defer sub.Close()

	_, err = client.XPending(ctx, "fb", "fallback").Result()
	assert.NoError(t, err)
	_, err = client.XPending(ctx, "fb", "other").Result()
	assert.Error(t, err)
}

// TestNack_WritesToDeadLetter verifies nacked entries move to the dead-letter
// stream and are acked on the source.
func TestNack_WritesToDeadLetter(t *testing.T) {
	tr, client := testTransport(t, func(c *Config) { c.DeadLetter = "dlq" })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var nacked atomic.Int64
	sub, err := tr.Subscribe(ctx, "failing", "g", func(d xroute.Delivery) {
		assert.NoError(t, d.Nack(ctx, errors.New("boom")))
		nacked.Add(1)
	})
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, tr.Publish(ctx, "failing", envelope(7)))
	require.Eventually(t, func() bool { return nacked.Load() == 1 }, 3*time.Second, 10*time.Millisecond)

	entries, err := client.XRange(ctx, "dlq", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "failing", entries[0].Values[fieldOrigTopic])
	assert.Equal(t, "boom", entries[0].Values[fieldError])
	assert.Equal(t, "env-7", decodeEnvelope(entries[0].ID, entries[0].Values).ID)

	pending, err := client.XPending(ctx, "failing", "g").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending.Count)
}

// TestNack_WithoutDeadLetterLeavesPending verifies the entry stays pending
// for claim recovery.
func TestNack_WithoutDeadLetterLeavesPending(t *testing.T) {
	tr, client := testTransport(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var nacked atomic.Int64
	sub, err := tr.Subscribe(ctx, "retry", "g", func(d xroute.Delivery) {
		assert.NoError(t, d.Nack(ctx, errors.New("later")))
		nacked.Add(1)
	})
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, tr.Publish(ctx, "retry", envelope(1)))
	require.Eventually(t, func() bool { return nacked.Load() == 1 }, 3*time.Second, 10*time.Millisecond)

	pending, err := client.XPending(ctx, "retry", "g").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending.Count)
	assert.Equal(t, uint64(1), tr.Stats().Nacked)
}

// TestConfigFromMap verifies overlays on the defaults, including YAML-shaped
// values.
func TestConfigFromMap(t *testing.T) {
	tests := []struct {
		name  string
		in    map[string]any
		check func(t *testing.T, c Config)
	}{
		{
			name: "empty keeps defaults",
			in:   map[string]any{},
			check: func(t *testing.T, c Config) {
				d := Defaults()
				assert.Equal(t, d.Addr, c.Addr)
				assert.Equal(t, d.Concurrency, c.Concurrency)
				assert.Equal(t, d.Block, c.Block)
				assert.True(t, c.AutoCreate)
			},
		},
		{
			name: "typed values",
			in: map[string]any{
				"addr":        "redis:6379",
				"concurrency": 16,
				"block":       2 * time.Second,
				"dead_letter": "dlq",
				"auto_create": false,
			},
			check: func(t *testing.T, c Config) {
				assert.Equal(t, "redis:6379", c.Addr)
				assert.Equal(t, 16, c.Concurrency)
				assert.Equal(t, 2*time.Second, c.Block)
				assert.Equal(t, "dlq", c.DeadLetter)
				assert.False(t, c.AutoCreate)
			},
		},
		{
			name: "yaml shaped values",
			in: map[string]any{
				"batch_size":     float64(64),
				"block":          "250ms",
				"claim_min_idle": "30s",
				"max_len_approx": 1000,
			},
			check: func(t *testing.T, c Config) {
				assert.Equal(t, 64, c.BatchSize)
				assert.Equal(t, 250*time.Millisecond, c.Block)
				assert.Equal(t, 30*time.Second, c.ClaimMinIdle)
				assert.Equal(t, int64(1000), c.MaxLenApprox)
			},
		},
		{
			name: "invalid values ignored",
			in:   map[string]any{"concurrency": -3, "block": "soon", "addr": ""},
			check: func(t *testing.T, c Config) {
				d := Defaults()
				assert.Equal(t, d.Concurrency, c.Concurrency)
				assert.Equal(t, d.Block, c.Block)
				assert.Equal(t, d.Addr, c.Addr)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ConfigFromMap(tt.in)
			require.NoError(t, c.Validate())
			tt.check(t, c)
		})
	}
}

// TestConfigValidate verifies required fields.
func TestConfigValidate(t *testing.T) {
	c := Defaults()
	c.Consumer = ""
	assert.Error(t, c.Validate())

	c = Defaults()
	c.ClaimMinIdle = time.Second
	c.ClaimInterval = 0
	assert.Error(t, c.Validate())

	_, err := NewTransport(Config{})
	assert.Error(t, err)
}

// TestRouter_ForwardsOverRedis runs a route end to end on Redis Streams.
func TestRouter_ForwardsOverRedis(t *testing.T) {
	tr, _ := testTransport(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r, closeFn, err := xroute.New(func(rb *xroute.RouterBuilder) {
		rb.WithTransportInstance(tr).
			WithObserverPool(0, 0).
			WithRoute(xroute.Route{
				Name:        "orders",
				Source:      "orders.in",
				Destination: "orders.out",
				Operations: []xroute.OperationConfig{
					xroute.XMLSelectorConfig{XPath: "/order[@priority='high']"},
				},
			})
	})
	require.NoError(t, err)
	defer closeFn()

	var got sync.Map
	var count atomic.Int64
	sub, err := tr.Subscribe(ctx, "orders.out", "sink", func(d xroute.Delivery) {
		m, err := r.Codec().Decode(d.Envelope().Payload)
		if assert.NoError(t, err) {
			body, _ := m.Text()
			got.Store(body, true)
		}
		count.Add(1)
		_ = d.Ack(ctx)
	})
	require.NoError(t, err)
	defer sub.Close()

	high := `<order priority="high"><id>1</id></order>`
	low := `<order priority="low"><id>2</id></order>`
	require.NoError(t, r.Publish(ctx, "orders.in", message.NewText(low), message.NewText(high)))

	require.Eventually(t, func() bool {
		s := r.Stats()
		return s.Delivered == 1 && s.Dropped == 1
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return count.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	_, ok := got.Load(high)
	assert.True(t, ok)
}
