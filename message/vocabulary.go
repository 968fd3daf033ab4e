package message

import (
	"strconv"
	"strings"
)

// Property keys shared by every service instance on a route. The key strings
// and the defaults below are part of the wire contract.
var (
	InTime           = LongKey{Name: "IN_TIME", Default: -1}
	OutTime          = LongKey{Name: "OUT_TIME", Default: -1}
	TotalTime        = LongKey{Name: "TOTAL_TIME", Default: -1}
	Source           = StringKey{Name: "SOURCE"}
	Sink             = StringKey{Name: "SINK"}
	PortName         = StringKey{Name: "PORT_NAME"}
	DocumentID       = StringKey{Name: "DOCUMENT_ID"}
	Comment          = StringKey{Name: "COMMENT"}
	UserDefinedDocID = StringKey{Name: "USER_DEFINED_DOC_ID"}
	WorkflowInstID   = StringKey{Name: "WORK_FLOW_INST_ID"}
	CompInstName     = StringKey{Name: "COMP_INST_NAME"}

	EventProcessName        = StringKey{Name: "EVENT_PROCESS_NAME"}
	EventProcessVersion     = StringKey{Name: "EVENT_PROCESS_VERSION"}
	EventProcessEnvironment = StringKey{Name: "EVENT_PROCESS_ENVIRONMENT"}

	AttachmentTable = ObjectKey{Name: "ATTACHMENT_TABLE"}
	DataTable       = ObjectKey{Name: "DATA_TABLE"}

	CarryForwardContext = StringKey{Name: "CARRY_FORWARD_CONTEXT"}

	WorkflowStatus      = IntKey{Name: "WORKFLOW_STATUS", Default: -1}
	EventID             = IntKey{Name: "EVENT_ID", Default: 2000}
	EventModule         = StringKey{Name: "EVENT_MODULE"}
	EventStatus         = StringKey{Name: "EVENT_STATUS"}
	EventCategory       = StringKey{Name: "EVENT_CATEGORY"}
	EventType           = StringKey{Name: "EVENT_TYPE"}
	EventScope          = StringKey{Name: "EVENT_SCOPE"}
	EventGenerationDate = LongKey{Name: "EVENT_GENERATION_DATE", Default: -1}
	StateID             = StringKey{Name: "STATE_ID"}

	SourceDestinationName = StringKey{Name: "SOURCE_DESTINATION_NAME"}
	IsAlert               = BoolKey{Name: "IS_ALERT"}
	ExecutingIncr         = IntKey{Name: "EXECUTING_INCR"}

	DeploymentLabel          = StringKey{Name: "DEPLOYMENT_LABEL"}
	InputPortName            = StringKey{Name: "INPUT_PORT_NAME"}
	OutputPortName           = StringKey{Name: "OUTPUT_PORT_NAME"}
	ComponentInstanceGUID    = StringKey{Name: "COMPONENT_INSTANCE_GUID"}
	ApplicationGUID          = StringKey{Name: "APPLICATION_GUID"}
	ApplicationSchemaVersion = StringKey{Name: "APPLICATION_SCHEMA_VERSION"}
)

// StringKey is a String property with a default.
type StringKey struct {
	Name    string
	Default string
}

// Get returns the stored value, or the default when the property is absent.
// Non-string values are rendered with FormatValue.
func (k StringKey) Get(m Message) (string, error) {
	v, ok, err := m.Property(k.Name)
	if err != nil {
		return k.Default, err
	}
	if !ok {
		return k.Default, nil
	}
	if s, isStr := v.(string); isStr {
		return s, nil
	}
	return FormatValue(v), nil
}

func (k StringKey) Set(m Message, v string) error { return SetString(m, k.Name, v) }

// LongKey is a Long property with a default.
type LongKey struct {
	Name    string
	Default int64
}

// Get returns the stored value widened to int64, or the default when the
// property is absent or not numeric.
func (k LongKey) Get(m Message) (int64, error) {
	v, ok, err := m.Property(k.Name)
	if err != nil {
		return k.Default, err
	}
	if !ok {
		return k.Default, nil
	}
	if n, isInt := asInt64(v); isInt {
		return n, nil
	}
	return k.Default, nil
}

func (k LongKey) Set(m Message, v int64) error { return SetLong(m, k.Name, v) }

// IntKey is an Integer property with a default.
type IntKey struct {
	Name    string
	Default int32
}

func (k IntKey) Get(m Message) (int32, error) {
	v, ok, err := m.Property(k.Name)
	if err != nil {
		return k.Default, err
	}
	if !ok {
		return k.Default, nil
	}
	n, isInt := asInt64(v)
	if !isInt || n != int64(int32(n)) {
		return k.Default, nil
	}
	return int32(n), nil
}

func (k IntKey) Set(m Message, v int32) error { return SetInt(m, k.Name, v) }

// BoolKey is a Boolean property with a default.
type BoolKey struct {
	Name    string
	Default bool
}

func (k BoolKey) Get(m Message) (bool, error) {
	v, ok, err := m.Property(k.Name)
	if err != nil {
		return k.Default, err
	}
	if !ok {
		return k.Default, nil
	}
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		if b, perr := strconv.ParseBool(strings.TrimSpace(x)); perr == nil {
			return b, nil
		}
	}
	return k.Default, nil
}

func (k BoolKey) Set(m Message, v bool) error { return SetBool(m, k.Name, v) }

// ObjectKey is an opaque Object property. Its default is nil.
type ObjectKey struct {
	Name string
}

func (k ObjectKey) Get(m Message) (any, error) {
	v, _, err := m.Property(k.Name)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (k ObjectKey) Set(m Message, v any) error { return SetObjectProperty(m, k.Name, v) }

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case int:
		return int64(x), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		return n, err == nil
	}
	return 0, false
}
