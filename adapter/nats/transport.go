package nats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go"
	"github.com/trickstertwo/xroute"
)

// ErrClosed is returned by operations on a closed transport.
var ErrClosed = errors.New("nats: transport closed")

// Transport implements xroute.Transport on core NATS queue groups.
type Transport struct {
	cfg  Config
	conn *nats.Conn

	closed    atomic.Bool
	closeOnce sync.Once
	stats     transportStats
}

type transportStats struct {
	published     atomic.Uint64
	consumed      atomic.Uint64
	acked         atomic.Uint64
	nacked        atomic.Uint64
	deadLettered  atomic.Uint64
	publishErrors atomic.Uint64
}

// Stats reports transport counters.
type Stats struct {
	Published     uint64
	Consumed      uint64
	Acked         uint64
	Nacked        uint64
	DeadLettered  uint64
	PublishErrors uint64
}

var _ xroute.Transport = (*Transport)(nil)

// NewTransport validates cfg and connects.
func NewTransport(cfg Config) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	conn, err := nats.Connect(cfg.URL, cfg.options()...)
	if err != nil {
		return nil, fmt.Errorf("nats: connect %s: %w", cfg.URL, err)
	}
	return &Transport{cfg: cfg, conn: conn}, nil
}

// Publish sends envs to the topic subject and flushes once.
func (t *Transport) Publish(_ context.Context, topic string, envs ...*xroute.Envelope) error {
	if t.closed.Load() {
		return ErrClosed
	}
	if topic == "" {
		return xroute.ErrInvalidTopic
	}
	sent := 0
	for _, env := range envs {
		if env == nil {
			continue
		}
		if err := t.conn.PublishMsg(encodeEnvelope(topic, env)); err != nil {
			t.stats.publishErrors.Add(1)
			return fmt.Errorf("nats: publish %s: %w", topic, err)
		}
		sent++
	}
	if sent == 0 {
		return nil
	}
	if err := t.conn.FlushTimeout(t.cfg.FlushTimeout); err != nil {
		t.stats.publishErrors.Add(1)
		return fmt.Errorf("nats: flush %s: %w", topic, err)
	}
	t.stats.published.Add(uint64(sent))
	return nil
}

type subscription struct {
	once  sync.Once
	close func() error
	err   error
}

func (s *subscription) Close() error {
	s.once.Do(func() { s.err = s.close() })
	return s.err
}

// Subscribe joins the queue group for topic. An empty group subscribes every
// instance to every envelope.
func (t *Transport) Subscribe(ctx context.Context, topic, group string, handler func(xroute.Delivery)) (xroute.Subscription, error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}
	if topic == "" {
		return nil, xroute.ErrInvalidTopic
	}

	ch := make(chan *nats.Msg, t.cfg.BufferSize)
	var (
		sub *nats.Subscription
		err error
	)
	if group != "" {
		sub, err = t.conn.ChanQueueSubscribe(topic, group, ch)
	} else {
		sub, err = t.conn.ChanSubscribe(topic, ch)
	}
	if err != nil {
		return nil, fmt.Errorf("nats: subscribe %s: %w", topic, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	for i := 0; i < t.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg := <-ch:
					t.stats.consumed.Add(1)
					handler(&delivery{t: t, topic: topic, msg: msg, env: decodeEnvelope(msg)})
				}
			}
		}()
	}

	return &subscription{close: func() error {
		err := sub.Unsubscribe()
		cancel()
		wg.Wait()
		if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
			return nil
		}
		return err
	}}, nil
}

// Close drains the connection so in-flight messages are handled.
func (t *Transport) Close(_ context.Context) error {
	var err error
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		if err = t.conn.Drain(); errors.Is(err, nats.ErrConnectionClosed) {
			err = nil
		}
	})
	return err
}

// Stats returns a snapshot of the transport counters.
func (t *Transport) Stats() Stats {
	return Stats{
		Published:     t.stats.published.Load(),
		Consumed:      t.stats.consumed.Load(),
		Acked:         t.stats.acked.Load(),
		Nacked:        t.stats.nacked.Load(),
		DeadLettered:  t.stats.deadLettered.Load(),
		PublishErrors: t.stats.publishErrors.Load(),
	}
}
