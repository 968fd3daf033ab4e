package xroute

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
	"github.com/trickstertwo/xroute/message"
)

// PipelineOption configures a Pipeline.
type PipelineOption func(*pipelineOptions)

type pipelineOptions struct {
	logger      *xlog.Logger
	clock       xclock.Clock
	middlewares []StageMiddleware
	observers   []Observer
	pool        *ObserverPool
	metrics     *Metrics
	factory     message.Factory
	events      *dispatcher
}

func WithLogger(l *xlog.Logger) PipelineOption {
	return func(o *pipelineOptions) { o.logger = l }
}

func WithClock(c xclock.Clock) PipelineOption {
	return func(o *pipelineOptions) { o.clock = c }
}

// WithStageMiddleware wraps every stage. The first middleware is outermost.
func WithStageMiddleware(mw ...StageMiddleware) PipelineOption {
	return func(o *pipelineOptions) { o.middlewares = append(o.middlewares, mw...) }
}

func WithObserver(obs ...Observer) PipelineOption {
	return func(o *pipelineOptions) { o.observers = append(o.observers, obs...) }
}

// WithObserverPool dispatches observer events asynchronously through pool.
// Without a pool observers are called inline.
func WithObserverPool(pool *ObserverPool) PipelineOption {
	return func(o *pipelineOptions) { o.pool = pool }
}

func WithMetrics(m *Metrics) PipelineOption {
	return func(o *pipelineOptions) { o.metrics = m }
}

// WithMessageFactory sets how MessageCreation builds its snapshot.
func WithMessageFactory(f message.Factory) PipelineOption {
	return func(o *pipelineOptions) { o.factory = f }
}

// withDispatcher shares the router's observer list with its pipelines.
func withDispatcher(d *dispatcher) PipelineOption {
	return func(o *pipelineOptions) { o.events = d }
}

type stage struct {
	op  OperationType
	run StageFunc
}

// handlerTable is an immutable snapshot of a pipeline's handlers.
type handlerTable struct {
	byType map[OperationType]Handler
	stages []stage
}

// Pipeline runs a route's operations on each message in the fixed execution
// order. It is safe for concurrent use; handler edits are published as a new
// snapshot and never affect messages already in flight.
type Pipeline struct {
	route       string
	logger      *xlog.Logger
	clock       xclock.Clock
	middlewares []StageMiddleware
	metrics     *Metrics
	factory     message.Factory
	events      *dispatcher

	mu    sync.Mutex // serializes edits
	table atomic.Pointer[handlerTable]
}

// NewPipeline builds one handler per configuration. It fails with a
// *ConfigError on an unknown, invalid or duplicated operation.
func NewPipeline(route string, configs []OperationConfig, opts ...PipelineOption) (*Pipeline, error) {
	var o pipelineOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.logger == nil {
		o.logger = xlog.Default()
	}
	if o.clock == nil {
		o.clock = xclock.Default()
	}
	if o.factory == nil {
		o.factory = message.MemoryFactory(message.WithClock(o.clock))
	}
	if o.events == nil {
		o.events = &dispatcher{pool: o.pool}
	}
	for _, obs := range o.observers {
		o.events.add(obs)
	}

	p := &Pipeline{
		route:       route,
		logger:      o.logger,
		clock:       o.clock,
		middlewares: o.middlewares,
		metrics:     o.metrics,
		factory:     o.factory,
		events:      o.events,
	}

	byType := make(map[OperationType]Handler, len(configs))
	for _, cfg := range configs {
		h, err := newHandler(cfg, p.deps())
		if err != nil {
			return nil, err
		}
		typ := h.OperationType()
		if _, dup := byType[typ]; dup {
			return nil, &ConfigError{Route: route, Operation: typ.String(), Err: ErrDuplicateOperation}
		}
		byType[typ] = h
	}
	p.table.Store(p.buildTable(byType))
	return p, nil
}

func (p *Pipeline) deps() handlerDeps {
	return handlerDeps{route: p.route, factory: p.factory}
}

// Route returns the name of the route the pipeline serves.
func (p *Pipeline) Route() string { return p.route }

func (p *Pipeline) buildTable(byType map[OperationType]Handler) *handlerTable {
	mws := make([]StageMiddleware, 0, len(p.middlewares)+1)
	mws = append(mws, RecoveryStageMiddleware())
	mws = append(mws, p.middlewares...)

	t := &handlerTable{byType: byType}
	for _, op := range executionOrder {
		h, ok := byType[op]
		if !ok {
			continue
		}
		t.stages = append(t.stages, stage{op: op, run: ChainStages(handlerStage(h), mws...)})
	}
	return t
}

func handlerStage(h Handler) StageFunc {
	return func(ctx context.Context, _ OperationType, x *Exchange) Outcome {
		return h.Handle(ctx, x)
	}
}

// HandleMessage runs msg through the pipeline. It returns the working message,
// which may be a snapshot copy, and whether it should be forwarded. Filtered
// and failed messages are logged here and never surface as errors.
func (p *Pipeline) HandleMessage(ctx context.Context, msg message.Message) (message.Message, bool) {
	t := p.table.Load()
	if len(t.stages) == 0 {
		return msg, true
	}

	ctx = injectLogger(ctx, p.logger)
	ctx = injectClock(ctx, p.clock)
	ctx = injectRoute(ctx, p.route)
	x := &Exchange{route: p.route, msg: msg, logger: p.logger, clock: p.clock}

	observed := p.events.active()
	var id string
	if observed {
		id = messageID(msg)
	}

	for _, s := range t.stages {
		if observed {
			p.events.notify(Event{Type: EventStageStart, Route: p.route, Operation: s.op, MessageID: id})
		}
		start := p.clock.Now()
		out := s.run(ctx, s.op, x)
		d := p.clock.Since(start)
		p.metrics.observeStage(p.route, s.op, out.Kind, d)
		if observed {
			p.events.notify(Event{Type: EventStageDone, Route: p.route, Operation: s.op, MessageID: id, Duration: d})
		}

		switch out.Kind {
		case Continue:
			continue
		case Filtered:
			p.logger.Debug().
				Str("route", p.route).
				Str("operation", s.op.String()).
				Str("reason", out.Reason).
				Msg("xroute: message filtered")
			p.metrics.observeMessage(p.route, "filtered")
			p.events.notify(Event{Type: EventFiltered, Route: p.route, Operation: s.op, MessageID: id, Reason: out.Reason})
			return x.Message(), false
		default:
			err := out.Err
			if out.Kind != Failed || err == nil {
				err = fmt.Errorf("xroute: unexpected outcome %s", out.Kind)
			}
			p.logger.Error().
				Str("route", p.route).
				Str("operation", s.op.String()).
				Err(err).
				Msg("xroute: operation failed, message dropped")
			p.metrics.observeMessage(p.route, "failed")
			p.events.notify(Event{Type: EventFailed, Route: p.route, Operation: s.op, MessageID: id, Err: err})
			return x.Message(), false
		}
	}

	p.metrics.observeMessage(p.route, "delivered")
	p.events.notify(Event{Type: EventDelivered, Route: p.route, MessageID: id})
	return x.Message(), true
}

// ModifyHandler builds a handler for cfg and installs it, replacing any
// handler of the same operation type.
func (p *Pipeline) ModifyHandler(cfg OperationConfig) error {
	h, err := newHandler(cfg, p.deps())
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	cur := p.table.Load()
	next := make(map[OperationType]Handler, len(cur.byType)+1)
	for k, v := range cur.byType {
		next[k] = v
	}
	next[h.OperationType()] = h
	p.table.Store(p.buildTable(next))
	return nil
}

// RemoveHandler removes the handler for cfg's operation type. It reports
// whether one was installed.
func (p *Pipeline) RemoveHandler(cfg OperationConfig) bool {
	if cfg == nil {
		return false
	}
	return p.RemoveHandlerType(cfg.OperationType())
}

// RemoveHandlerType removes the handler for t. It reports whether one was
// installed.
func (p *Pipeline) RemoveHandlerType(t OperationType) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	cur := p.table.Load()
	if _, ok := cur.byType[t]; !ok {
		return false
	}
	next := make(map[OperationType]Handler, len(cur.byType))
	for k, v := range cur.byType {
		if k != t {
			next[k] = v
		}
	}
	p.table.Store(p.buildTable(next))
	return true
}

// Operations returns the installed operation types in execution order.
func (p *Pipeline) Operations() []OperationType {
	t := p.table.Load()
	out := make([]OperationType, len(t.stages))
	for i, s := range t.stages {
		out[i] = s.op
	}
	return out
}

func messageID(m message.Message) string {
	v, err := m.Header(message.HeaderMessageID)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}
