package xroute

import (
	"context"

	"github.com/trickstertwo/xroute/message"
)

// HealthChecker provides health status for production monitoring.
type HealthChecker interface {
	Health(ctx context.Context) HealthStatus
}

// API is the complete router surface.
type API interface {
	AddRoute(ctx context.Context, r Route) error
	RemoveRoute(name string) error
	Routes() []RouteStats
	ModifyOperation(route string, cfg OperationConfig) error
	RemoveOperation(route string, t OperationType) (bool, error)
	Publish(ctx context.Context, topic string, msgs ...message.Message) error
	Stats() Stats
	Health(ctx context.Context) HealthStatus
	AddObserver(obs Observer)
	RemoveObserver(obs Observer)
	Close(ctx context.Context) error
}

var (
	_ API           = (*Router)(nil)
	_ HealthChecker = (*Router)(nil)
)
