package nats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
	"github.com/trickstertwo/xroute"
)

// Option configures the router built by Use.
type Option func(*xroute.RouterBuilder)

func WithLogger(l *xlog.Logger) Option {
	return func(b *xroute.RouterBuilder) { b.WithLogger(l) }
}

func WithClock(c xclock.Clock) Option {
	return func(b *xroute.RouterBuilder) { b.WithClock(c) }
}

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

func WithMetrics(reg prometheus.Registerer) Option {
	return func(b *xroute.RouterBuilder) { b.WithMetrics(reg) }
}

func WithRoute(r ...xroute.Route) Option {
	return func(b *xroute.RouterBuilder) { b.WithRoute(r...) }
}
