package xroute

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
	"github.com/trickstertwo/xroute/message"
)

// RouterBuilder constructs Router instances.
type RouterBuilder struct {
	transportName string
	transportCfg  map[string]any
	transportInst Transport

	codecName string
	codecInst Codec

	middlewares []StageMiddleware
	observers   []Observer
	logger      *xlog.Logger
	clock       xclock.Clock
	ackTimeout  time.Duration
	registerer  prometheus.Registerer
	factory     message.Factory

	poolWorkers int
	poolBuffer  int

	routes []Route
}

// NewRouterBuilder returns a builder with the json codec, a 5s ack timeout and
// a 4 worker observer pool.
func NewRouterBuilder() *RouterBuilder {
	return &RouterBuilder{
		codecName:   "json",
		ackTimeout:  5 * time.Second,
		poolWorkers: 4,
		poolBuffer:  1000,
	}
}

func (rb *RouterBuilder) WithTransport(name string, cfg map[string]any) *RouterBuilder {
	rb.transportName = name
	rb.transportCfg = cfg
	return rb
}

// WithTransportInstance accepts a ready Transport, e.g. from an adapter's Use.
func (rb *RouterBuilder) WithTransportInstance(t Transport) *RouterBuilder {
	rb.transportInst = t
	return rb
}

func (rb *RouterBuilder) WithCodec(name string) *RouterBuilder {
	rb.codecName = name
	return rb
}

func (rb *RouterBuilder) WithCodecInstance(c Codec) *RouterBuilder {
	rb.codecInst = c
	return rb
}

// WithStageMiddleware wraps every stage of every route.
func (rb *RouterBuilder) WithStageMiddleware(mw ...StageMiddleware) *RouterBuilder {
	rb.middlewares = append(rb.middlewares, mw...)
	return rb
}

func (rb *RouterBuilder) WithObserver(obs ...Observer) *RouterBuilder {
	for _, o := range obs {
		if o != nil {
			rb.observers = append(rb.observers, o)
		}
	}
	return rb
}

// WithObserverPool sizes the async observer pool. Zero workers dispatches
// observer events inline.
func (rb *RouterBuilder) WithObserverPool(workers, bufferSize int) *RouterBuilder {
	rb.poolWorkers = workers
	rb.poolBuffer = bufferSize
	return rb
}

func (rb *RouterBuilder) WithLogger(l *xlog.Logger) *RouterBuilder {
	rb.logger = l
	return rb
}

func (rb *RouterBuilder) WithClock(c xclock.Clock) *RouterBuilder {
	rb.clock = c
	return rb
}

func (rb *RouterBuilder) WithAckTimeout(d time.Duration) *RouterBuilder {
	if d > 0 {
		rb.ackTimeout = d
	}
	return rb
}

// WithMetrics registers Prometheus collectors on reg.
func (rb *RouterBuilder) WithMetrics(reg prometheus.Registerer) *RouterBuilder {
	rb.registerer = reg
	return rb
}

// WithMessageFactory sets the factory used by MessageCreation operations.
func (rb *RouterBuilder) WithMessageFactory(f message.Factory) *RouterBuilder {
	rb.factory = f
	return rb
}

// WithRoute queues routes to add during Build.
func (rb *RouterBuilder) WithRoute(r ...Route) *RouterBuilder {
	rb.routes = append(rb.routes, r...)
	return rb
}

func (rb *RouterBuilder) Build() (*Router, error) {
	var tr Transport
	var err error
	switch {
	case rb.transportInst != nil:
		tr = rb.transportInst
	case rb.transportName != "":
		if tr, err = NewTransport(rb.transportName, rb.transportCfg); err != nil {
			return nil, err
		}
	default:
		return nil, ErrNoTransportConfigured
	}

	var cd Codec
	if rb.codecInst != nil {
		cd = rb.codecInst
	} else if cd, err = NewCodec(rb.codecName); err != nil {
		return nil, err
	}

	clk := rb.clock
	if clk == nil {
		clk = xclock.Default()
	}
	lg := rb.logger
	if lg == nil {
		lg = xlog.Default()
	}
	factory := rb.factory
	if factory == nil {
		factory = message.MemoryFactory(message.WithClock(clk))
	}
	metrics, err := NewMetrics(rb.registerer)
	if err != nil {
		return nil, err
	}

	baseCtx := injectLogger(context.Background(), lg)
	baseCtx = injectClock(baseCtx, clk)

	r := &Router{
		transport:   tr,
		codec:       cd,
		clock:       clk,
		logger:      lg,
		middlewares: rb.middlewares,
		ackTimeout:  rb.ackTimeout,
		metrics:     metrics,
		factory:     factory,
		baseCtx:     baseCtx,
		routes:      map[string]*activeRoute{},
	}
	if rb.poolWorkers > 0 {
		r.observerPool = NewObserverPool(baseCtx, rb.poolWorkers, rb.poolBuffer)
	}
	r.events = &dispatcher{pool: r.observerPool}

	hasLoggingObserver := false
	for _, o := range rb.observers {
		if _, ok := o.(LoggingObserver); ok {
			hasLoggingObserver = true
			break
		}
	}
	if !hasLoggingObserver {
		r.AddObserver(LoggingObserver{Logger: lg})
	}
	for _, o := range rb.observers {
		r.AddObserver(o)
	}

	for _, rt := range rb.routes {
		if err := r.AddRoute(baseCtx, rt); err != nil {
			_ = r.Close(context.Background())
			return nil, err
		}
	}
	return r, nil
}

// New constructs a Router via the builder and returns a close func for
// convenience.
func New(init func(rb *RouterBuilder)) (*Router, func() error, error) {
	rb := NewRouterBuilder()
	if init != nil {
		init(rb)
	}
	r, err := rb.Build()
	if err != nil {
		return nil, nil, err
	}
	return r, func() error { return r.Close(context.Background()) }, nil
}
