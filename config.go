package xroute

import (
	"fmt"
	"strings"
)

// OperationConfig configures one operation of a route. Each variant maps to
// exactly one OperationType.
type OperationConfig interface {
	OperationType() OperationType
	Validate() error
}

// ExceptionPort is the reserved port carrying failed messages. Traversing it
// stamps extra identity properties for diagnostics.
const ExceptionPort = "ON_EXCEPTION"

// Target selects the document a selector or transform works on.
type Target uint8

const (
	TargetBody Target = iota
	TargetContext
)

func (t Target) String() string {
	switch t {
	case TargetBody:
		return "body"
	case TargetContext:
		return "context"
	default:
		return fmt.Sprintf("target(%d)", uint8(t))
	}
}

func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "body":
		return TargetBody, nil
	case "context":
		return TargetContext, nil
	}
	return 0, fmt.Errorf("%w: target %q", ErrInvalidConfig, s)
}

// Direction tells whether a port receives or emits messages.
type Direction uint8

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	switch d {
	case Input:
		return "input"
	case Output:
		return "output"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "input", "in":
		return Input, nil
	case "output", "out":
		return Output, nil
	}
	return 0, fmt.Errorf("%w: direction %q", ErrInvalidConfig, s)
}

// AppContextAction is what a port does with the application context.
type AppContextAction uint8

const (
	ActionNone AppContextAction = iota
	// ActionStore moves the application context into a message property
	// namespaced by application GUID and version.
	ActionStore
	// ActionRestore moves a previously stored application context back.
	ActionRestore
	// ActionSetDefault replaces the application context with the
	// application's configured default.
	ActionSetDefault
)

func (a AppContextAction) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionStore:
		return "store"
	case ActionRestore:
		return "restore"
	case ActionSetDefault:
		return "set_default"
	default:
		return fmt.Sprintf("action(%d)", uint8(a))
	}
}

func ParseAppContextAction(s string) (AppContextAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ActionNone, nil
	case "store":
		return ActionStore, nil
	case "restore":
		return ActionRestore, nil
	case "set_default", "setdefault", "default":
		return ActionSetDefault, nil
	}
	return 0, fmt.Errorf("%w: app context action %q", ErrInvalidConfig, s)
}

// Application identifies the deployed application a route belongs to.
type Application struct {
	GUID              string
	Version           string
	SchemaVersion     string
	DefaultAppContext string
	DeploymentLabel   string
}

// Port is the service instance port a route is attached to.
type Port struct {
	Name             string
	Direction        Direction
	AppContextAction AppContextAction
}

// MessageCreationConfig snapshots the message into a new, writable copy.
type MessageCreationConfig struct{}

func (MessageCreationConfig) OperationType() OperationType { return MessageCreation }
func (MessageCreationConfig) Validate() error              { return nil }

// CarryForwardConfig records the hop and stamps routing properties.
type CarryForwardConfig struct {
	Application           Application
	ServiceInstanceName   string
	ComponentInstanceGUID string
	// NodeName defaults to carryforward.DefaultNodeName.
	NodeName string
	Port     Port
}

func (CarryForwardConfig) OperationType() OperationType { return CarryForwardContext }

func (c CarryForwardConfig) Validate() error {
	switch {
	case c.Application.GUID == "":
		return fmt.Errorf("%w: application guid is required", ErrInvalidConfig)
	case c.Application.Version == "":
		return fmt.Errorf("%w: application version is required", ErrInvalidConfig)
	case c.ServiceInstanceName == "":
		return fmt.Errorf("%w: service instance name is required", ErrInvalidConfig)
	case c.Port.Name == "":
		return fmt.Errorf("%w: port name is required", ErrInvalidConfig)
	case c.Port.Direction > Output:
		return fmt.Errorf("%w: %s", ErrInvalidConfig, c.Port.Direction)
	case c.Port.AppContextAction > ActionSetDefault:
		return fmt.Errorf("%w: %s", ErrInvalidConfig, c.Port.AppContextAction)
	}
	return nil
}

// TransformConfig runs a property program and/or a body program. Target
// selects BodyTransform or ContextTransform.
type TransformConfig struct {
	Target          Target
	BodyProgram     string
	PropertyProgram string
	// Engine names a registered transform engine; empty selects the default.
	Engine string
	// DefaultAppContext overrides the application default as root input.
	DefaultAppContext string
}

func (c TransformConfig) OperationType() OperationType {
	if c.Target == TargetContext {
		return ContextTransform
	}
	return BodyTransform
}

func (c TransformConfig) Validate() error {
	if c.Target > TargetContext {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, c.Target)
	}
	return nil
}

// XMLSelectorConfig filters on a boolean XPath query. Target selects
// BodySelector or ContextSelector.
type XMLSelectorConfig struct {
	XPath string
	// Namespaces maps prefixes used in XPath to namespace URIs.
	Namespaces map[string]string
	Target     Target
}

func (c XMLSelectorConfig) OperationType() OperationType {
	if c.Target == TargetContext {
		return ContextSelector
	}
	return BodySelector
}

func (c XMLSelectorConfig) Validate() error {
	if strings.TrimSpace(c.XPath) == "" {
		return fmt.Errorf("%w: xpath is required", ErrInvalidConfig)
	}
	if c.Target > TargetContext {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, c.Target)
	}
	return nil
}

// SenderSelectorConfig filters on the service instances a message passed
// through. See selector.Sender for the pattern grammar.
type SenderSelectorConfig struct {
	SourcePatterns string
	AppIDPattern   string
}

func (SenderSelectorConfig) OperationType() OperationType { return SenderSelector }
func (SenderSelectorConfig) Validate() error              { return nil }
