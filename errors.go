package xroute

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is wrapped by configuration errors for malformed
	// operations.
	ErrInvalidConfig = errors.New("xroute: invalid configuration")
	// ErrUnknownOperation is wrapped by configuration errors for operation
	// configurations no handler is registered for.
	ErrUnknownOperation = errors.New("xroute: unknown operation")
	// ErrDuplicateOperation reports two configurations of one operation type
	// on a route.
	ErrDuplicateOperation = errors.New("xroute: duplicate operation")

	ErrRouterClosed                = errors.New("xroute: router closed")
	ErrInvalidTopic                = errors.New("xroute: invalid topic")
	ErrInvalidRoute                = errors.New("xroute: invalid route")
	ErrRouteExists                 = errors.New("xroute: route already exists")
	ErrUnknownRoute                = errors.New("xroute: unknown route")
	ErrNoTransportConfigured       = errors.New("xroute: no transport configured")
	ErrObserverPoolShutdownTimeout = errors.New("xroute: observer pool shutdown timeout")
	ErrStagePanic                  = errors.New("xroute: stage panic")
)

// ConfigError reports a route that cannot be activated. It wraps
// ErrInvalidConfig, ErrUnknownOperation or ErrDuplicateOperation.
type ConfigError struct {
	Route     string
	Operation string
	Err       error
}

func (e *ConfigError) Error() string {
	if e.Operation == "" {
		return fmt.Sprintf("xroute: route %q: %v", e.Route, e.Err)
	}
	return fmt.Sprintf("xroute: route %q: %s: %v", e.Route, e.Operation, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IsConfigError reports whether err is a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// ErrUnknownTransport is returned by NewTransport for unregistered names.
type ErrUnknownTransport struct{ name string }

func (e ErrUnknownTransport) Error() string { return fmt.Sprintf("unknown transport: %s", e.name) }
