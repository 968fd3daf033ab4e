package redisstream

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trickstertwo/xroute"
)

// Transport implements xroute.Transport on Redis Streams consumer groups.
type Transport struct {
	cfg    Config
	client *redis.Client

	closed atomic.Bool
	stats  transportStats
}

type transportStats struct {
	published     atomic.Uint64
	consumed      atomic.Uint64
	acked         atomic.Uint64
	nacked        atomic.Uint64
	claimed       atomic.Uint64
	publishErrors atomic.Uint64
	consumeErrors atomic.Uint64
}

// Stats reports transport counters.
type Stats struct {
	Published     uint64
	Consumed      uint64
	Acked         uint64
	Nacked        uint64
	Claimed       uint64
	PublishErrors uint64
	ConsumeErrors uint64
}

var _ xroute.Transport = (*Transport)(nil)

// NewTransport validates cfg, connects and pings Redis.
func NewTransport(cfg Config) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 5,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: cfg.TLSServerName,
		}
	}

	client := redis.NewClient(opts)
	if err := ping(client); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Transport{cfg: cfg, client: client}, nil
}

// Publish appends envs to the topic stream in one pipeline.
func (t *Transport) Publish(ctx context.Context, topic string, envs ...*xroute.Envelope) error {
	if t.closed.Load() {
		return redis.ErrClosed
	}
	if len(envs) == 0 {
		return nil
	}

	pipe := t.client.Pipeline()
	n := 0
	for _, e := range envs {
		if e == nil {
			continue
		}
		args := &redis.XAddArgs{
			Stream: topic,
			ID:     "*",
			Values: encodeEnvelope(e),
		}
		if t.cfg.MaxLenApprox > 0 {
			args.MaxLen = t.cfg.MaxLenApprox
			args.Approx = true
		}
		pipe.XAdd(ctx, args)
		n++
	}
	if n == 0 {
		return nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		t.stats.publishErrors.Add(uint64(n))
		return err
	}
	t.stats.published.Add(uint64(n))
	return nil
}

type subscription struct {
	once  sync.Once
	close func()
}

func (s *subscription) Close() error {
	s.once.Do(s.close)
	return nil
}

// Subscribe reads topic as a member of group. An empty group uses
// Config.Group.
func (t *Transport) Subscribe(ctx context.Context, topic, group string, handler func(xroute.Delivery)) (xroute.Subscription, error) {
	if t.closed.Load() {
		return nil, redis.ErrClosed
	}
	if topic == "" || handler == nil {
		return nil, fmt.Errorf("redisstream: topic and handler are required")
	}
	if group == "" {
		group = t.cfg.Group
	}
	if t.cfg.AutoCreate {
		err := t.client.XGroupCreateMkStream(ctx, topic, group, "$").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			return nil, fmt.Errorf("redisstream: create group %s on %s: %w", group, topic, err)
		}
	}

	innerCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup

	workCh := make(chan *delivery, t.cfg.Concurrency*2)
	var workers sync.WaitGroup
	for i := 0; i < t.cfg.Concurrency; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for d := range workCh {
				handler(d)
			}
		}()
	}

	var producers sync.WaitGroup
	producers.Add(1)
	go func() {
		defer producers.Done()
		t.pollLoop(innerCtx, topic, group, workCh)
	}()
	if t.cfg.ClaimMinIdle > 0 {
		producers.Add(1)
		go func() {
			defer producers.Done()
			t.claimLoop(innerCtx, topic, group, workCh)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		producers.Wait()
		close(workCh)
		workers.Wait()
	}()

	return &subscription{close: func() {
		cancel()
		wg.Wait()
	}}, nil
}

func (t *Transport) pollLoop(ctx context.Context, topic, group string, workCh chan<- *delivery) {
	args := &redis.XReadGroupArgs{
		Group:    group,
		Consumer: t.cfg.Consumer,
		Streams:  []string{topic, ">"},
		Count:    int64(t.cfg.BatchSize),
		Block:    t.cfg.Block,
	}

	const minBackoff, maxBackoff = 100 * time.Millisecond, 5 * time.Second
	backoff := minBackoff
	for ctx.Err() == nil {
		res, err := t.client.XReadGroup(ctx, args).Result()
		switch {
		case err == nil:
			backoff = minBackoff
		case ctx.Err() != nil:
			return
		case errors.Is(err, redis.Nil):
			continue
		default:
			t.stats.consumeErrors.Add(1)
			select {
			case <-time.After(backoff):
				backoff = min(backoff*2, maxBackoff)
			case <-ctx.Done():
				return
			}
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				if !t.dispatch(ctx, topic, group, msg, workCh) {
					return
				}
			}
		}
	}
}

// claimLoop takes over entries left pending by consumers that stopped
// acknowledging and hands them to this subscription's workers.
func (t *Transport) claimLoop(ctx context.Context, topic, group string, workCh chan<- *delivery) {
	ticker := time.NewTicker(t.cfg.ClaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pending, err := t.client.XPendingExt(ctx, &redis.XPendingExtArgs{
			Stream: topic,
			Group:  group,
			Start:  "-",
			End:    "+",
			Count:  int64(t.cfg.ClaimBatch),
			Idle:   t.cfg.ClaimMinIdle,
		}).Result()
		if err != nil || len(pending) == 0 {
			continue
		}
		ids := make([]string, 0, len(pending))
		for _, p := range pending {
			if p.Consumer != t.cfg.Consumer {
				ids = append(ids, p.ID)
			}
		}
		if len(ids) == 0 {
			continue
		}

		msgs, err := t.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   topic,
			Group:    group,
			Consumer: t.cfg.Consumer,
			MinIdle:  t.cfg.ClaimMinIdle,
			Messages: ids,
		}).Result()
		if err != nil {
			continue
		}
		t.stats.claimed.Add(uint64(len(msgs)))
		for _, msg := range msgs {
			if !t.dispatch(ctx, topic, group, msg, workCh) {
				return
			}
		}
	}
}

func (t *Transport) dispatch(ctx context.Context, topic, group string, msg redis.XMessage, workCh chan<- *delivery) bool {
	d := &delivery{
		t:     t,
		topic: topic,
		group: group,
		id:    msg.ID,
		env:   decodeEnvelope(msg.ID, msg.Values),
	}
	t.stats.consumed.Add(1)
	select {
	case workCh <- d:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close closes the Redis client. Subscriptions should be closed first.
func (t *Transport) Close(_ context.Context) error {
	if t.closed.Swap(true) {
		return nil
	}
	return t.client.Close()
}

func (t *Transport) Stats() Stats {
	return Stats{
		Published:     t.stats.published.Load(),
		Consumed:      t.stats.consumed.Load(),
		Acked:         t.stats.acked.Load(),
		Nacked:        t.stats.nacked.Load(),
		Claimed:       t.stats.claimed.Load(),
		PublishErrors: t.stats.publishErrors.Load(),
		ConsumeErrors: t.stats.consumeErrors.Load(),
	}
}

func ping(c *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := c.Ping(ctx).Result()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("redis ping timeout: %w", err)
		}
		return err
	}
	if !strings.EqualFold(res, "PONG") {
		return fmt.Errorf("unexpected redis ping result: %s", res)
	}
	return nil
}
