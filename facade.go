package xroute

import (
	"context"
	"sync"

	"github.com/trickstertwo/xroute/message"
)

var (
	defaultRouter   *Router
	defaultRouterMu sync.Mutex
)

// Default returns the process-wide Router installed by SetDefault, usually
// through an adapter's Use. It fails with ErrNoTransportConfigured when none
// was installed.
func Default() (*Router, error) {
	defaultRouterMu.Lock()
	defer defaultRouterMu.Unlock()
	if defaultRouter == nil {
		return nil, ErrNoTransportConfigured
	}
	return defaultRouter, nil
}

// SetDefault replaces the process-wide default Router.
func SetDefault(r *Router) {
	if r == nil {
		panic("xroute: SetDefault called with nil Router")
	}
	defaultRouterMu.Lock()
	defaultRouter = r
	defaultRouterMu.Unlock()
}

// AddRoute adds a route to the default router.
func AddRoute(ctx context.Context, r Route) error {
	rt, err := Default()
	if err != nil {
		return err
	}
	return rt.AddRoute(ctx, r)
}

// Publish sends messages through the default router.
func Publish(ctx context.Context, topic string, msgs ...message.Message) error {
	rt, err := Default()
	if err != nil {
		return err
	}
	return rt.Publish(ctx, topic, msgs...)
}
