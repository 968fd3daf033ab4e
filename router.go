package xroute

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
	"github.com/trickstertwo/xroute/message"
)

// Route connects a source topic to a destination topic through a pipeline.
type Route struct {
	Name        string
	Source      string
	Destination string
	// Group is the consumer group on Source; empty uses Name.
	Group      string
	Operations []OperationConfig
}

func (r Route) validate() error {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidRoute)
	case r.Source == "":
		return fmt.Errorf("%w: route %q: source", ErrInvalidTopic, r.Name)
	case r.Destination == "":
		return fmt.Errorf("%w: route %q: destination", ErrInvalidTopic, r.Name)
	case r.Source == r.Destination:
		return fmt.Errorf("%w: route %q: source and destination are the same topic", ErrInvalidRoute, r.Name)
	}
	return nil
}

func (r Route) group() string {
	if r.Group != "" {
		return r.Group
	}
	return r.Name
}

// Router consumes messages from a Transport, runs them through each route's
// Pipeline and publishes delivered messages to the route's destination.
type Router struct {
	transport    Transport
	codec        Codec
	clock        xclock.Clock
	logger       *xlog.Logger
	middlewares  []StageMiddleware
	ackTimeout   time.Duration
	observerPool *ObserverPool
	events       *dispatcher
	metrics      *Metrics
	factory      message.Factory
	baseCtx      context.Context
	stats        routerStats
	closed       atomic.Bool
	closeOnce    sync.Once

	mu     sync.RWMutex
	routes map[string]*activeRoute
}

// routerStats uses lock-free atomics.
type routerStats struct {
	received     atomic.Uint64
	delivered    atomic.Uint64
	dropped      atomic.Uint64
	published    atomic.Uint64
	errorCount   atomic.Uint64
	processingNs atomic.Int64
}

type activeRoute struct {
	def      Route
	pipeline *Pipeline
	sub      Subscription

	received  atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	errors    atomic.Uint64
}

// Codec returns the codec used for outgoing envelopes.
func (r *Router) Codec() Codec { return r.codec }

// AddRoute builds the route's pipeline and subscribes to its source. A bad
// operation configuration is reported as a *ConfigError and nothing is
// subscribed.
func (r *Router) AddRoute(ctx context.Context, rt Route) error {
	if r.closed.Load() {
		return ErrRouterClosed
	}
	if err := rt.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.routes[rt.Name]; ok {
		return fmt.Errorf("%w: %s", ErrRouteExists, rt.Name)
	}

	p, err := NewPipeline(rt.Name, rt.Operations,
		WithLogger(r.logger),
		WithClock(r.clock),
		WithStageMiddleware(r.middlewares...),
		WithMetrics(r.metrics),
		WithMessageFactory(r.factory),
		withDispatcher(r.events),
	)
	if err != nil {
		return err
	}

	ar := &activeRoute{def: rt, pipeline: p}
	sub, err := r.transport.Subscribe(ctx, rt.Source, rt.group(), func(d Delivery) {
		r.handle(ar, d)
	})
	if err != nil {
		return err
	}
	ar.sub = sub
	r.routes[rt.Name] = ar

	r.logger.Info().
		Str("route", rt.Name).
		Str("source", rt.Source).
		Str("destination", rt.Destination).
		Msg("xroute: route added")
	return nil
}

// RemoveRoute closes the route's subscription.
func (r *Router) RemoveRoute(name string) error {
	r.mu.Lock()
	ar, ok := r.routes[name]
	if ok {
		delete(r.routes, name)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRoute, name)
	}
	if err := ar.sub.Close(); err != nil {
		return err
	}
	r.logger.Info().Str("route", name).Msg("xroute: route removed")
	return nil
}

// Routes describes the active routes, sorted by name.
func (r *Router) Routes() []RouteStats {
	r.mu.RLock()
	out := make([]RouteStats, 0, len(r.routes))
	for _, ar := range r.routes {
		out = append(out, ar.snapshot())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (ar *activeRoute) snapshot() RouteStats {
	return RouteStats{
		Name:        ar.def.Name,
		Source:      ar.def.Source,
		Destination: ar.def.Destination,
		Group:       ar.def.group(),
		Operations:  ar.pipeline.Operations(),
		Received:    ar.received.Load(),
		Delivered:   ar.delivered.Load(),
		Dropped:     ar.dropped.Load(),
		Errors:      ar.errors.Load(),
	}
}

// Pipeline returns the pipeline serving a route.
func (r *Router) Pipeline(route string) (*Pipeline, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ar, ok := r.routes[route]
	if !ok {
		return nil, false
	}
	return ar.pipeline, true
}

// ModifyOperation installs cfg on a running route. Messages already in the
// pipeline finish with the previous handler.
func (r *Router) ModifyOperation(route string, cfg OperationConfig) error {
	p, ok := r.Pipeline(route)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRoute, route)
	}
	return p.ModifyHandler(cfg)
}

// RemoveOperation drops an operation from a running route.
func (r *Router) RemoveOperation(route string, t OperationType) (bool, error) {
	p, ok := r.Pipeline(route)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownRoute, route)
	}
	return p.RemoveHandlerType(t), nil
}

// handle runs one delivery through a route. The delivery is always acked:
// the router never retries.
func (r *Router) handle(ar *activeRoute, d Delivery) {
	name := ar.def.Name
	hctx := r.baseCtx
	defer func() {
		if rec := recover(); rec != nil {
			r.stats.errorCount.Add(1)
			ar.errors.Add(1)
			r.logger.Error().
				Str("route", name).
				Str("panic", fmt.Sprint(rec)).
				Msg("xroute: delivery panic (recovered)")
			r.ack(hctx, name, d)
		}
	}()

	env := d.Envelope()
	r.stats.received.Add(1)
	ar.received.Add(1)
	r.metrics.observeTransport(name, "received")
	r.events.notify(Event{Type: EventReceived, Route: name, Topic: ar.def.Source, MessageID: env.ID})

	start := r.clock.Now()
	defer func() { r.recordProcessingTime(r.clock.Since(start).Nanoseconds()) }()

	msg, err := r.decode(env)
	if err != nil {
		r.fail(ar, "decode_error", err, "xroute: envelope decode failed, message dropped")
		r.ack(hctx, name, d)
		return
	}
	if err := message.InTime.Set(msg, start.UnixMilli()); err != nil {
		r.logger.Warn().Str("route", name).Err(err).Msg("xroute: stamp in time failed")
	}

	out, ok := ar.pipeline.HandleMessage(hctx, msg)
	if !ok {
		r.stats.dropped.Add(1)
		ar.dropped.Add(1)
		r.ack(hctx, name, d)
		return
	}

	now := r.clock.Now()
	if err := message.OutTime.Set(out, now.UnixMilli()); err != nil {
		r.logger.Warn().Str("route", name).Err(err).Msg("xroute: stamp out time failed")
	}
	if err := message.TotalTime.Set(out, now.Sub(start).Milliseconds()); err != nil {
		r.logger.Warn().Str("route", name).Err(err).Msg("xroute: stamp total time failed")
	}

	if err := r.forward(hctx, ar, out, now); err != nil {
		r.fail(ar, "publish_error", err, "xroute: forward failed, message dropped")
	} else {
		r.stats.delivered.Add(1)
		ar.delivered.Add(1)
	}
	r.ack(hctx, name, d)
}

func (r *Router) decode(env *Envelope) (message.Message, error) {
	if env == nil {
		return nil, fmt.Errorf("%w: nil envelope", ErrCodec)
	}
	c := r.codec
	if n := env.codecName(); n != "" && n != c.Name() {
		var err error
		if c, err = NewCodec(n); err != nil {
			return nil, err
		}
	}
	return c.Decode(env.Payload)
}

func (r *Router) forward(ctx context.Context, ar *activeRoute, m message.Message, now time.Time) error {
	data, err := r.codec.Encode(m)
	if err != nil {
		return err
	}
	env := &Envelope{
		ID:         uuid.NewString(),
		Name:       EnvelopeName,
		Payload:    data,
		Metadata:   map[string]string{MetaCodec: r.codec.Name(), MetaRoute: ar.def.Name},
		ProducedAt: now,
	}
	start := r.clock.Now()
	err = r.transport.Publish(ctx, ar.def.Destination, env)
	r.events.notify(Event{
		Type:      EventPublishDone,
		Route:     ar.def.Name,
		Topic:     ar.def.Destination,
		MessageID: env.ID,
		Duration:  r.clock.Since(start),
		Err:       err,
	})
	if err == nil {
		r.stats.published.Add(1)
		r.metrics.observeTransport(ar.def.Name, "published")
	}
	return err
}

func (r *Router) fail(ar *activeRoute, event string, err error, msg string) {
	r.stats.errorCount.Add(1)
	ar.errors.Add(1)
	r.metrics.observeTransport(ar.def.Name, event)
	r.events.notify(Event{Type: EventError, Route: ar.def.Name, Err: err})
	r.logger.Error().
		Str("route", ar.def.Name).
		Err(err).
		Msg(msg)
}

// ack acknowledges d, bounded by the configured ack timeout.
func (r *Router) ack(ctx context.Context, route string, d Delivery) {
	actx := ctx
	cancel := func() {}
	if r.ackTimeout > 0 {
		actx, cancel = context.WithTimeout(ctx, r.ackTimeout)
	}
	defer cancel()

	if err := d.Ack(actx); err != nil {
		r.stats.errorCount.Add(1)
		r.metrics.observeTransport(route, "ack_error")
		r.events.notify(Event{Type: EventError, Route: route, Err: err})
		r.logger.Warn().Str("route", route).Err(err).Msg("xroute: ack failed")
	}
}

// Stats returns current router counters.
func (r *Router) Stats() Stats {
	r.mu.RLock()
	n := len(r.routes)
	r.mu.RUnlock()
	s := Stats{
		Routes:              n,
		Received:            r.stats.received.Load(),
		Delivered:           r.stats.delivered.Load(),
		Dropped:             r.stats.dropped.Load(),
		Published:           r.stats.published.Load(),
		Errors:              r.stats.errorCount.Load(),
		AvgProcessingTimeMs: float64(r.stats.processingNs.Load()) / 1e6,
	}
	if r.observerPool != nil {
		s.EventsDropped = r.observerPool.Stats().Dropped
	}
	return s
}

// Health reports unhealthy once closed and degraded when more than 5% of
// received messages hit a router error.
func (r *Router) Health(ctx context.Context) HealthStatus {
	if r.closed.Load() {
		return HealthStatus{
			Status:    "unhealthy",
			Timestamp: r.clock.Now(),
			Message:   "router is closed",
		}
	}

	s := r.Stats()
	status := "healthy"
	if s.Errors > 0 && s.Received > 0 {
		if float64(s.Errors)/float64(s.Received) > 0.05 {
			status = "degraded"
		}
	}
	return HealthStatus{
		Status:    status,
		Stats:     s,
		Timestamp: r.clock.Now(),
	}
}

// Close unsubscribes every route, drains the observer pool and closes the
// transport. It is idempotent.
func (r *Router) Close(ctx context.Context) error {
	var closeErr error

	r.closeOnce.Do(func() {
		r.closed.Store(true)

		r.mu.Lock()
		routes := r.routes
		r.routes = map[string]*activeRoute{}
		r.mu.Unlock()
		for name, ar := range routes {
			if err := ar.sub.Close(); err != nil {
				r.logger.Warn().Str("route", name).Err(err).Msg("xroute: subscription close failed")
				closeErr = err
			}
		}

		if r.observerPool != nil {
			if err := r.observerPool.Close(5 * time.Second); err != nil {
				r.logger.Warn().Err(err).Msg("xroute: observer pool shutdown timeout")
				closeErr = err
			}
		}

		if err := r.transport.Close(ctx); err != nil {
			r.logger.Error().Err(err).Msg("xroute: transport close failed")
			closeErr = err
		}
	})

	return closeErr
}

// AddObserver registers an observer for router and pipeline events.
func (r *Router) AddObserver(obs Observer) { r.events.add(obs) }

// RemoveObserver removes an observer added earlier.
func (r *Router) RemoveObserver(obs Observer) { r.events.remove(obs) }

// recordProcessingTime keeps an exponential moving average.
func (r *Router) recordProcessingTime(ns int64) {
	const alpha = 0.2
	cur := r.stats.processingNs.Load()
	if cur == 0 {
		r.stats.processingNs.Store(ns)
		return
	}
	r.stats.processingNs.Store(int64(float64(ns)*alpha + float64(cur)*(1-alpha)))
}
