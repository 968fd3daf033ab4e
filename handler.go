package xroute

import (
	"context"
	"fmt"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
	"github.com/trickstertwo/xroute/message"
)

// Exchange carries one message through a pipeline. Operations read and
// mutate the working message; a snapshot operation may swap it.
type Exchange struct {
	route  string
	msg    message.Message
	logger *xlog.Logger
	clock  xclock.Clock
}

func (x *Exchange) Route() string             { return x.route }
func (x *Exchange) Message() message.Message  { return x.msg }
func (x *Exchange) Logger() *xlog.Logger      { return x.logger }
func (x *Exchange) Clock() xclock.Clock       { return x.clock }
func (x *Exchange) Replace(m message.Message) { x.msg = m }

// Handler runs one operation on a message. Handlers are built once per route
// activation and shared by every message on the route, so they must be safe
// for concurrent use.
type Handler interface {
	OperationType() OperationType
	Handle(ctx context.Context, x *Exchange) Outcome
}

// handlerDeps are the collaborators a handler may need.
type handlerDeps struct {
	route   string
	factory message.Factory
}

type handlerFactory func(cfg OperationConfig, deps handlerDeps) (Handler, error)

// handlerFactories maps every operation type to its handler constructor.
// A new operation type needs one entry here; TestHandlerFactories_Exhaustive
// fails otherwise.
var handlerFactories = map[OperationType]handlerFactory{
	MessageCreation:     newMessageCreationHandler,
	SenderSelector:      newSenderSelectorHandler,
	BodySelector:        newXMLSelectorHandler,
	ContextSelector:     newXMLSelectorHandler,
	BodyTransform:       newTransformHandler,
	ContextTransform:    newTransformHandler,
	CarryForwardContext: newCarryForwardHandler,
}

// newHandler validates cfg and builds its handler. Errors are *ConfigError.
func newHandler(cfg OperationConfig, deps handlerDeps) (Handler, error) {
	if cfg == nil {
		return nil, &ConfigError{Route: deps.route, Err: fmt.Errorf("%w: nil configuration", ErrUnknownOperation)}
	}
	typ := cfg.OperationType()
	factory, ok := handlerFactories[typ]
	if !ok {
		return nil, &ConfigError{Route: deps.route, Operation: typ.String(), Err: fmt.Errorf("%w: %T", ErrUnknownOperation, cfg)}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Route: deps.route, Operation: typ.String(), Err: err}
	}
	h, err := factory(cfg, deps)
	if err != nil {
		return nil, &ConfigError{Route: deps.route, Operation: typ.String(), Err: err}
	}
	return h, nil
}

func wrongConfig(cfg OperationConfig) error {
	return fmt.Errorf("%w: %T for %s", ErrUnknownOperation, cfg, cfg.OperationType())
}
