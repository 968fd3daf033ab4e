package message

import (
	"fmt"
	"strings"
)

// Kind is the wire type of a message body.
type Kind uint8

const (
	KindText Kind = iota
	KindBytes
	KindObject
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBytes:
		return "bytes"
	case KindObject:
		return "object"
	case KindStream:
		return "stream"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind maps a kind name back to a Kind. The empty string is text.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return KindText, nil
	case "bytes":
		return KindBytes, nil
	case "object":
		return KindObject, nil
	case "stream":
		return KindStream, nil
	}
	return KindText, fmt.Errorf("message: unknown kind %q", s)
}

// HeaderField names one transport header.
type HeaderField uint8

const (
	HeaderCorrelationID HeaderField = iota // string
	HeaderDestination                      // string
	HeaderRedelivered                      // bool
	HeaderDeliveryMode                     // DeliveryMode
	HeaderExpiration                       // time.Time
	HeaderMessageID                        // string
	HeaderPriority                         // int, 0-9
	HeaderReplyTo                          // string
	HeaderTimestamp                        // time.Time
	HeaderType                             // string
)

var headerFields = []HeaderField{
	HeaderCorrelationID,
	HeaderDestination,
	HeaderRedelivered,
	HeaderDeliveryMode,
	HeaderExpiration,
	HeaderMessageID,
	HeaderPriority,
	HeaderReplyTo,
	HeaderTimestamp,
	HeaderType,
}

// HeaderFields returns every transport header in a stable order.
func HeaderFields() []HeaderField {
	out := make([]HeaderField, len(headerFields))
	copy(out, headerFields)
	return out
}

func (f HeaderField) String() string {
	switch f {
	case HeaderCorrelationID:
		return "correlationId"
	case HeaderDestination:
		return "destination"
	case HeaderRedelivered:
		return "redelivered"
	case HeaderDeliveryMode:
		return "deliveryMode"
	case HeaderExpiration:
		return "expiration"
	case HeaderMessageID:
		return "messageId"
	case HeaderPriority:
		return "priority"
	case HeaderReplyTo:
		return "replyTo"
	case HeaderTimestamp:
		return "timestamp"
	case HeaderType:
		return "type"
	default:
		return fmt.Sprintf("header(%d)", uint8(f))
	}
}

// ParseHeaderField is the inverse of HeaderField.String.
func ParseHeaderField(s string) (HeaderField, bool) {
	for _, f := range headerFields {
		if f.String() == s {
			return f, true
		}
	}
	return 0, false
}

// DeliveryMode mirrors the broker delivery mode header.
type DeliveryMode uint8

const (
	NonPersistent DeliveryMode = 1
	Persistent    DeliveryMode = 2
)

// DefaultPriority is the priority of a freshly created message.
const DefaultPriority = 4

// Message is the transport's message: a body of one Kind, named attachments,
// a typed property bag and a fixed set of transport headers.
//
// Every accessor can fail; implementations report failures as *AccessError.
// Property values are restricted to bool, int8, int16, int32, int64,
// float32, float64 and string, anything else is stored as an opaque object.
type Message interface {
	Kind() Kind

	Text() (string, error)
	SetText(text string) error
	Bytes() ([]byte, error)
	SetBytes(b []byte) error
	Object() (any, error)
	SetObject(v any) error
	Stream() ([]any, error)
	SetStream(items []any) error

	AttachmentNames() ([]string, error)
	Attachment(name string) ([]byte, error)
	SetAttachment(name string, data []byte) error

	// PropertyNames returns the property keys sorted.
	PropertyNames() ([]string, error)
	// Property reports the value stored under name and whether it is present.
	Property(name string) (any, bool, error)
	SetProperty(name string, value any) error
	RemoveProperty(name string) error

	Header(field HeaderField) (any, error)
	SetHeader(field HeaderField, value any) error
}

// Factory creates an empty writable message of the given kind.
type Factory func(kind Kind) (Message, error)
