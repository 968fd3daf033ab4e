package xroute

import (
	"context"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

type ctxKey string

const (
	loggerCtxKey ctxKey = "xroute:logger"
	clockCtxKey  ctxKey = "xroute:clock"
	routeCtxKey  ctxKey = "xroute:route"
)

func injectLogger(ctx context.Context, l *xlog.Logger) context.Context {
	if l == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerCtxKey, l)
}

// LoggerFromContext returns the logger of the pipeline running the current
// stage.
func LoggerFromContext(ctx context.Context) (*xlog.Logger, bool) {
	if v := ctx.Value(loggerCtxKey); v != nil {
		if l, ok := v.(*xlog.Logger); ok && l != nil {
			return l, true
		}
	}
	return nil, false
}

func injectClock(ctx context.Context, c xclock.Clock) context.Context {
	if c == nil {
		return ctx
	}
	return context.WithValue(ctx, clockCtxKey, c)
}

func ClockFromContext(ctx context.Context) (xclock.Clock, bool) {
	if v := ctx.Value(clockCtxKey); v != nil {
		if c, ok := v.(xclock.Clock); ok && c != nil {
			return c, true
		}
	}
	return nil, false
}

func injectRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, routeCtxKey, route)
}

// RouteFromContext returns the name of the route a message is travelling.
func RouteFromContext(ctx context.Context) (string, bool) {
	r, ok := ctx.Value(routeCtxKey).(string)
	return r, ok
}
