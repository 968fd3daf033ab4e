package xroute

import (
	"context"
	"errors"
	"fmt"

	"github.com/trickstertwo/xroute/carryforward"
	"github.com/trickstertwo/xroute/message"
	"github.com/trickstertwo/xroute/selector"
	"github.com/trickstertwo/xroute/transform"
)

// messageCreationHandler swaps the working message for a writable snapshot.
type messageCreationHandler struct {
	factory message.Factory
}

func newMessageCreationHandler(cfg OperationConfig, deps handlerDeps) (Handler, error) {
	switch cfg.(type) {
	case MessageCreationConfig, *MessageCreationConfig:
	default:
		return nil, wrongConfig(cfg)
	}
	return &messageCreationHandler{factory: deps.factory}, nil
}

func (h *messageCreationHandler) OperationType() OperationType { return MessageCreation }

func (h *messageCreationHandler) Handle(_ context.Context, x *Exchange) Outcome {
	cp, skipped, err := message.Clone(x.Message(), h.factory)
	if err != nil {
		return Fail(err)
	}
	for _, e := range skipped {
		x.Logger().Warn().
			Str("route", x.Route()).
			Err(e).
			Msg("xroute: snapshot skipped field")
	}
	x.Replace(cp)
	return Proceed()
}

// selectorHandler drops messages its selector rejects. A selector that cannot
// decide also drops the message.
type selectorHandler struct {
	typ          OperationType
	sel          selector.Selector
	needsContext bool
}

func newSenderSelectorHandler(cfg OperationConfig, _ handlerDeps) (Handler, error) {
	var c SenderSelectorConfig
	switch v := cfg.(type) {
	case SenderSelectorConfig:
		c = v
	case *SenderSelectorConfig:
		c = *v
	default:
		return nil, wrongConfig(cfg)
	}
	s, err := selector.NewSender(c.SourcePatterns, c.AppIDPattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &selectorHandler{typ: SenderSelector, sel: s, needsContext: true}, nil
}

func newXMLSelectorHandler(cfg OperationConfig, _ handlerDeps) (Handler, error) {
	var c XMLSelectorConfig
	switch v := cfg.(type) {
	case XMLSelectorConfig:
		c = v
	case *XMLSelectorConfig:
		c = *v
	default:
		return nil, wrongConfig(cfg)
	}
	target := selector.TargetBody
	if c.Target == TargetContext {
		target = selector.TargetContext
	}
	s, err := selector.NewXPath(c.XPath, c.Namespaces, target)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &selectorHandler{typ: c.OperationType(), sel: s, needsContext: target == selector.TargetContext}, nil
}

func (h *selectorHandler) OperationType() OperationType { return h.typ }

func (h *selectorHandler) Handle(_ context.Context, x *Exchange) Outcome {
	in, err := selectorInput(x.Message(), h.needsContext)
	if err != nil {
		x.Logger().Warn().
			Str("route", x.Route()).
			Str("operation", h.typ.String()).
			Err(err).
			Msg("xroute: selector input unreadable, message not forwarded")
		return Filter("selector input unreadable")
	}
	ok, err := h.sel.IsSelected(in)
	if err != nil {
		x.Logger().Warn().
			Str("route", x.Route()).
			Str("operation", h.typ.String()).
			Err(err).
			Msg("xroute: selector evaluation failed, message not forwarded")
		return Filter("selector evaluation failed")
	}
	if !ok {
		return Filter("not selected by " + h.typ.String())
	}
	return Proceed()
}

// selectorInput reads the body and, when withContext is set, the carried
// context. A body selector never fails on an unreadable context.
func selectorInput(m message.Message, withContext bool) (selector.Input, error) {
	var in selector.Input
	switch m.Kind() {
	case message.KindText:
		s, err := m.Text()
		if err != nil {
			return in, err
		}
		in.Body = s
	case message.KindBytes:
		b, err := m.Bytes()
		if err != nil {
			return in, err
		}
		in.Body = string(b)
	}
	if !withContext {
		return in, nil
	}
	c, found, err := carryforward.FromMessage(m)
	if err != nil {
		return in, err
	}
	if found {
		in.Context = c
		in.AppContext, _ = c.AppContext()
	}
	return in, nil
}

// transformHandler applies a transform. Failures leave the message as it was
// and never stop the pipeline.
type transformHandler struct {
	typ OperationType
	tr  *transform.Transformer
}

func newTransformHandler(cfg OperationConfig, _ handlerDeps) (Handler, error) {
	var c TransformConfig
	switch v := cfg.(type) {
	case TransformConfig:
		c = v
	case *TransformConfig:
		c = *v
	default:
		return nil, wrongConfig(cfg)
	}
	target := transform.TargetBody
	if c.Target == TargetContext {
		target = transform.TargetContext
	}
	tr, err := transform.New(transform.Config{
		Target:            target,
		BodyProgram:       c.BodyProgram,
		PropertyProgram:   c.PropertyProgram,
		Engine:            c.Engine,
		DefaultAppContext: c.DefaultAppContext,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &transformHandler{typ: c.OperationType(), tr: tr}, nil
}

func (h *transformHandler) OperationType() OperationType { return h.typ }

func (h *transformHandler) Handle(ctx context.Context, x *Exchange) Outcome {
	if !h.tr.Configured() {
		return Proceed()
	}
	res, err := h.tr.Apply(ctx, x.Message())
	for _, e := range res.InputErrors {
		x.Logger().Warn().
			Str("route", x.Route()).
			Str("operation", h.typ.String()).
			Err(e).
			Msg("xroute: transform input unreadable")
	}
	switch {
	case err == nil:
	case errors.Is(err, transform.ErrUnsupportedOperation):
		x.Logger().Warn().
			Str("route", x.Route()).
			Str("operation", h.typ.String()).
			Err(err).
			Msg("xroute: transform emitted an unsupported command, message passed unmodified")
	default:
		x.Logger().Warn().
			Str("route", x.Route()).
			Str("operation", h.typ.String()).
			Err(err).
			Msg("xroute: transform failed, message passed unmodified")
	}
	return Proceed()
}

// carryForwardHandler records the hop, applies the port's application
// context action and stamps routing properties. It never stops the pipeline.
type carryForwardHandler struct {
	cfg      CarryForwardConfig
	hop      carryforward.SourceContext
	storeKey string
}

func newCarryForwardHandler(cfg OperationConfig, _ handlerDeps) (Handler, error) {
	var c CarryForwardConfig
	switch v := cfg.(type) {
	case CarryForwardConfig:
		c = v
	case *CarryForwardConfig:
		c = *v
	default:
		return nil, wrongConfig(cfg)
	}
	node := c.NodeName
	if node == "" {
		node = carryforward.DefaultNodeName
	}
	return &carryForwardHandler{
		cfg: c,
		hop: carryforward.SourceContext{
			AppInstanceName:     c.Application.GUID,
			AppInstanceVersion:  c.Application.Version,
			ServiceInstanceName: c.ServiceInstanceName,
			NodeName:            node,
		},
		storeKey: c.Application.GUID + "_" + c.Application.Version,
	}, nil
}

func (h *carryForwardHandler) OperationType() OperationType { return CarryForwardContext }

// StoreKey is the property an application context is held under by Store
// and read back from by Restore.
func (h *carryForwardHandler) StoreKey() string { return h.storeKey }

func (h *carryForwardHandler) Handle(_ context.Context, x *Exchange) Outcome {
	m := x.Message()
	warn := func(err error, msg string) {
		x.Logger().Warn().
			Str("route", x.Route()).
			Str("operation", CarryForwardContext.String()).
			Err(err).
			Msg(msg)
	}

	c, found, err := carryforward.FromMessage(m)
	if err != nil {
		warn(err, "xroute: carried context unreadable, starting a new one")
		found = false
	}
	if !found {
		c = carryforward.New()
	}

	h.applyAction(m, c, warn)

	if err := message.DeploymentLabel.Set(m, h.cfg.Application.DeploymentLabel); err != nil {
		warn(err, "xroute: stamp deployment label failed")
	}
	portKey := message.InputPortName
	if h.cfg.Port.Direction == Output {
		portKey = message.OutputPortName
	}
	if err := portKey.Set(m, h.cfg.Port.Name); err != nil {
		warn(err, "xroute: stamp port name failed")
	}
	if h.cfg.Port.Name == ExceptionPort {
		if err := message.ComponentInstanceGUID.Set(m, h.cfg.ComponentInstanceGUID); err != nil {
			warn(err, "xroute: stamp component instance guid failed")
		}
		if err := message.ApplicationGUID.Set(m, h.cfg.Application.GUID); err != nil {
			warn(err, "xroute: stamp application guid failed")
		}
		if err := message.ApplicationSchemaVersion.Set(m, h.cfg.Application.SchemaVersion); err != nil {
			warn(err, "xroute: stamp application schema version failed")
		}
	}

	c.AddHop(h.hop)
	if err := carryforward.Attach(m, c); err != nil {
		warn(err, "xroute: attach carried context failed")
	}
	return Proceed()
}

func (h *carryForwardHandler) applyAction(m message.Message, c *carryforward.Context, warn func(error, string)) {
	switch h.cfg.Port.AppContextAction {
	case ActionStore:
		app, ok := c.AppContext()
		if !ok || app == "" {
			return
		}
		if err := message.SetString(m, h.storeKey, app); err != nil {
			warn(err, "xroute: store application context failed")
			return
		}
		c.ClearAppContext()
	case ActionRestore:
		v, ok, err := m.Property(h.storeKey)
		if err != nil {
			warn(err, "xroute: read stored application context failed")
			return
		}
		if !ok {
			return
		}
		if err := m.RemoveProperty(h.storeKey); err != nil {
			warn(err, "xroute: clear stored application context failed")
		}
		c.SetAppContext(message.FormatValue(v))
	case ActionSetDefault:
		c.SetAppContext(h.cfg.Application.DefaultAppContext)
	}
}
