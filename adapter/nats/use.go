package nats

import (
	"fmt"

	"github.com/trickstertwo/xroute"
)

const TransportName = "nats"

func init() {
	if err := xroute.RegisterTransport(TransportName, func(cfg map[string]any) (xroute.Transport, error) {
		t, err := NewTransport(ConfigFromMap(cfg))
		if err != nil {
			return nil, err
		}
		return t, nil
	}); err != nil {
		panic(fmt.Errorf("xroute: failed to register transport %q: %w", TransportName, err))
	}
}

// Use builds a Router on NATS and installs it as the process-wide default.
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
		panic(fmt.Errorf("nats.Use: %w", err))
	}
	xroute.SetDefault(r)
	return r
}
