package message

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// PropertyType is the declared type of a property value.
type PropertyType uint8

const (
	TypeString PropertyType = iota
	TypeBoolean
	TypeByte
	TypeShort
	TypeInteger
	TypeLong
	TypeFloat
	TypeDouble
	TypeObject
)

var propertyTypeNames = [...]string{
	TypeString:  "String",
	TypeBoolean: "Boolean",
	TypeByte:    "Byte",
	TypeShort:   "Short",
	TypeInteger: "Integer",
	TypeLong:    "Long",
	TypeFloat:   "Float",
	TypeDouble:  "Double",
	TypeObject:  "Object",
}

func (t PropertyType) String() string {
	if int(t) < len(propertyTypeNames) {
		return propertyTypeNames[t]
	}
	return fmt.Sprintf("PropertyType(%d)", uint8(t))
}

// ParsePropertyType matches a type name case-insensitively.
func ParsePropertyType(name string) (PropertyType, bool) {
	name = strings.TrimSpace(name)
	for i, n := range propertyTypeNames {
		if strings.EqualFold(n, name) {
			return PropertyType(i), true
		}
	}
	return TypeString, false
}

// TypeOf classifies a property value by its runtime type.
func TypeOf(v any) PropertyType {
	switch v.(type) {
	case string:
		return TypeString
	case bool:
		return TypeBoolean
	case int8:
		return TypeByte
	case int16:
		return TypeShort
	case int32:
		return TypeInteger
	case int64:
		return TypeLong
	case float32:
		return TypeFloat
	case float64:
		return TypeDouble
	default:
		return TypeObject
	}
}

// ParseValue converts the textual form s into a value of type t.
// Objects cannot be parsed from text.
func ParseValue(t PropertyType, s string) (any, error) {
	switch t {
	case TypeString:
		return s, nil
	case TypeBoolean:
		return strconv.ParseBool(strings.TrimSpace(s))
	case TypeByte:
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 8)
		return int8(n), err
	case TypeShort:
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 16)
		return int16(n), err
	case TypeInteger:
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
		return int32(n), err
	case TypeLong:
		return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	case TypeFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
		return float32(f), err
	case TypeDouble:
		return strconv.ParseFloat(strings.TrimSpace(s), 64)
	}
	return nil, fmt.Errorf("%w: cannot parse %s from text", ErrInvalidProperty, t)
}

// FormatValue renders a primitive property value as text. Byte slices are
// base64 encoded; other objects use their default formatting.
func FormatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case []byte:
		return base64.StdEncoding.EncodeToString(x)
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

func SetBool(m Message, name string, v bool) error          { return m.SetProperty(name, v) }
func SetByte(m Message, name string, v int8) error          { return m.SetProperty(name, v) }
func SetShort(m Message, name string, v int16) error        { return m.SetProperty(name, v) }
func SetInt(m Message, name string, v int32) error          { return m.SetProperty(name, v) }
func SetLong(m Message, name string, v int64) error         { return m.SetProperty(name, v) }
func SetFloat(m Message, name string, v float32) error      { return m.SetProperty(name, v) }
func SetDouble(m Message, name string, v float64) error     { return m.SetProperty(name, v) }
func SetString(m Message, name string, v string) error      { return m.SetProperty(name, v) }
func SetObjectProperty(m Message, name string, v any) error { return m.SetProperty(name, deepCopy(v)) }

// CopyProperty writes v to dst through the setter matching its runtime type.
func CopyProperty(dst Message, name string, v any) error {
	switch x := v.(type) {
	case bool:
		return SetBool(dst, name, x)
	case int8:
		return SetByte(dst, name, x)
	case int16:
		return SetShort(dst, name, x)
	case int32:
		return SetInt(dst, name, x)
	case int64:
		return SetLong(dst, name, x)
	case float32:
		return SetFloat(dst, name, x)
	case float64:
		return SetDouble(dst, name, x)
	case string:
		return SetString(dst, name, x)
	default:
		return SetObjectProperty(dst, name, x)
	}
}

// deepCopy copies the container types a message body or object property can
// hold. Other values are shared.
func deepCopy(v any) any {
	switch x := v.(type) {
	case []byte:
		if x == nil {
			return x
		}
		out := make([]byte, len(x))
		copy(out, x)
		return out
	case []any:
		if x == nil {
			return x
		}
		out := make([]any, len(x))
		for i := range x {
			out[i] = deepCopy(x[i])
		}
		return out
	case map[string]any:
		if x == nil {
			return x
		}
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = deepCopy(e)
		}
		return out
	case map[string]string:
		if x == nil {
			return x
		}
		out := make(map[string]string, len(x))
		for k, e := range x {
			out[k] = e
		}
		return out
	case map[string][]byte:
		if x == nil {
			return x
		}
		out := make(map[string][]byte, len(x))
		for k, e := range x {
			out[k] = deepCopy(e).([]byte)
		}
		return out
	default:
		return v
	}
}
