package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/trickstertwo/xroute"
)

const TransportName = "memory"

// ErrClosed is returned once the transport is closed.
var ErrClosed = errors.New("xroute/memory: transport closed")

func init() {
	if err := xroute.RegisterTransport(TransportName, func(cfg map[string]any) (xroute.Transport, error) {
		return NewTransport(ConfigFromMap(cfg)), nil
	}); err != nil {
		panic(fmt.Errorf("xroute/memory: failed to register transport: %w", err))
	}
}

// Transport implements xroute.Transport on in-process channels. Each consumer
// group on a topic receives every envelope once; workers within a group
// compete. Publishing to a topic nobody subscribed to drops the envelope.
type Transport struct {
	cfg Config

	mu     sync.RWMutex
	topics map[string]*topic

	closed atomic.Bool
	stats  transportStats
}

type transportStats struct {
	published   atomic.Uint64
	consumed    atomic.Uint64
	acked       atomic.Uint64
	nacked      atomic.Uint64
	redelivered atomic.Uint64
	dropped     atomic.Uint64
}

var _ xroute.Transport = (*Transport)(nil)

// NewTransport creates an in-memory transport.
func NewTransport(cfg Config) *Transport {
	cfg = cfg.withDefaults()
	return &Transport{
		cfg:    cfg,
		topics: make(map[string]*topic),
	}
}

// Publish fans envs out to every consumer group of topic. It blocks while a
// group queue is full, until ctx is done.
func (t *Transport) Publish(ctx context.Context, topicName string, envs ...*xroute.Envelope) error {
	if t.closed.Load() {
		return ErrClosed
	}
	if len(envs) == 0 {
		return nil
	}

	t.mu.RLock()
	top, ok := t.topics[topicName]
	t.mu.RUnlock()
	if !ok {
		t.stats.dropped.Add(uint64(len(envs)))
		return nil
	}

	for _, e := range envs {
		if e == nil {
			continue
		}
		if t.cfg.AssignIDs && e.ID == "" {
			e.ID = uuid.NewString()
		}

		top.mu.RLock()
		for _, g := range top.groups {
			task := &deliveryTask{tr: t, group: g, env: e}
			select {
			case g.queue <- task:
			case <-ctx.Done():
				top.mu.RUnlock()
				return ctx.Err()
			}
		}
		top.mu.RUnlock()
		t.stats.published.Add(1)
	}
	return nil
}

// Subscribe starts Concurrency workers for topic within group.
func (t *Transport) Subscribe(ctx context.Context, topicName, group string, handler func(xroute.Delivery)) (xroute.Subscription, error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}
	if topicName == "" || group == "" || handler == nil {
		return nil, fmt.Errorf("xroute/memory: topic, group and handler are required")
	}

	g := t.ensureTopic(topicName).ensureGroup(group, t.cfg.BufferSize)

	innerCtx, cancel := context.WithCancel(ctx)
	wg := &sync.WaitGroup{}
	for i := 0; i < t.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t.worker(innerCtx, g, handler)
		}()
	}

	var once sync.Once
	return subscriptionFunc(func() error {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
		return nil
	}), nil
}

func (t *Transport) worker(ctx context.Context, g *group, handler func(xroute.Delivery)) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-g.queue:
			if task == nil {
				continue
			}
			t.stats.consumed.Add(1)
			handler(&delivery{task: task})
		}
	}
}

// Close stops accepting publishes and forgets every topic. Running
// subscriptions keep draining what was already queued until closed.
func (t *Transport) Close(_ context.Context) error {
	if t.closed.Swap(true) {
		return nil
	}
	t.mu.Lock()
	t.topics = make(map[string]*topic)
	t.mu.Unlock()
	return nil
}

// Stats reports transport counters.
type Stats struct {
	Published   uint64
	Consumed    uint64
	Acked       uint64
	Nacked      uint64
	Redelivered uint64
	Dropped     uint64
}

func (t *Transport) Stats() Stats {
	return Stats{
		Published:   t.stats.published.Load(),
		Consumed:    t.stats.consumed.Load(),
		Acked:       t.stats.acked.Load(),
		Nacked:      t.stats.nacked.Load(),
		Redelivered: t.stats.redelivered.Load(),
		Dropped:     t.stats.dropped.Load(),
	}
}

type subscriptionFunc func() error

func (f subscriptionFunc) Close() error { return f() }

type topic struct {
	mu     sync.RWMutex
	groups map[string]*group
}

type group struct {
	name  string
	queue chan *deliveryTask
}

type deliveryTask struct {
	tr    *Transport
	group *group
	env   *xroute.Envelope
}

type delivery struct {
	task *deliveryTask
	once sync.Once
}

func (d *delivery) Envelope() *xroute.Envelope { return d.task.env }

func (d *delivery) Ack(_ context.Context) error {
	d.once.Do(func() { d.task.tr.stats.acked.Add(1) })
	return nil
}

// Nack requeues the envelope on its group after RedeliveryDelay.
func (d *delivery) Nack(ctx context.Context, _ error) error {
	d.once.Do(func() {
		tr := d.task.tr
		tr.stats.nacked.Add(1)
		tr.stats.redelivered.Add(1)
		requeue := func() {
			select {
			case d.task.group.queue <- d.task:
			case <-ctx.Done():
			}
		}
		if tr.cfg.RedeliveryDelay <= 0 {
			requeue()
			return
		}
		go func() {
			timer := time.NewTimer(tr.cfg.RedeliveryDelay)
			defer timer.Stop()
			select {
			case <-timer.C:
				requeue()
			case <-ctx.Done():
			}
		}()
	})
	return nil
}

func (t *Transport) ensureTopic(name string) *topic {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tp, ok := t.topics[name]; ok {
		return tp
	}
	tp := &topic{groups: make(map[string]*group)}
	t.topics[name] = tp
	return tp
}

func (tp *topic) ensureGroup(name string, bufferSize int) *group {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	if g, ok := tp.groups[name]; ok {
		return g
	}
	g := &group{name: name, queue: make(chan *deliveryTask, bufferSize)}
	tp.groups[name] = g
	return g
}
