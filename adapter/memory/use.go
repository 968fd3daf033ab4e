package memory

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
	"github.com/trickstertwo/xroute"
)

// Use builds a Router on the in-memory transport and installs it as the
// process-wide default.
//
//	r := memory.Use(memory.Config{Concurrency: 8},
//	    memory.WithLogger(logger),
//	    memory.WithRoute(route),
//	)
func Use(cfg Config, opts ...Option) *xroute.Router {
	rb := xroute.NewRouterBuilder().
		WithTransport(TransportName, cfg.toMap())
	for _, o := range opts {
		if o != nil {
			o(rb)
		}
	}
	r, err := rb.Build()
	if err != nil {
		panic(fmt.Errorf("memory.Use: %w", err))
	}
	xroute.SetDefault(r)
	return r
}

// Option configures the router built by Use.
type Option func(*xroute.RouterBuilder)

func WithLogger(l *xlog.Logger) Option {
	return func(b *xroute.RouterBuilder) { b.WithLogger(l) }
}

func WithClock(c xclock.Clock) Option {
	return func(b *xroute.RouterBuilder) { b.WithClock(c) }
}

// WithCodec selects a codec by name (default: "json").
func WithCodec(name string) Option {
	return func(b *xroute.RouterBuilder) { b.WithCodec(name) }
}

func WithStageMiddleware(mw ...xroute.StageMiddleware) Option {
	return func(b *xroute.RouterBuilder) { b.WithStageMiddleware(mw...) }
}

func WithAckTimeout(d time.Duration) Option {
	return func(b *xroute.RouterBuilder) { b.WithAckTimeout(d) }
}

func WithObserver(obs ...xroute.Observer) Option {
	return func(b *xroute.RouterBuilder) { b.WithObserver(obs...) }
}

func WithObserverPool(workers, bufferSize int) Option {
	return func(b *xroute.RouterBuilder) { b.WithObserverPool(workers, bufferSize) }
}

func WithMetrics(reg prometheus.Registerer) Option {
	return func(b *xroute.RouterBuilder) { b.WithMetrics(reg) }
}

func WithRoute(r ...xroute.Route) Option {
	return func(b *xroute.RouterBuilder) { b.WithRoute(r...) }
}
