package xroute

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/trickstertwo/xroute/message"
)

// ErrCodec is wrapped by codec failures.
var ErrCodec = errors.New("xroute: codec")

// Codec is the Strategy for putting a message on the wire as an envelope
// payload and reading it back.
type Codec interface {
	Name() string
	Encode(m message.Message) ([]byte, error)
	Decode(data []byte) (message.Message, error)
}

// JSONCodec is the default codec. Properties keep their declared types; object
// properties and object or stream bodies travel as JSON and decode as generic
// JSON values.
type JSONCodec struct {
	// Factory builds decoded messages. Nil uses message.MemoryFactory.
	Factory message.Factory
}

const jsonCodecName = "json"

func (JSONCodec) Name() string { return jsonCodecName }

type wireMessage struct {
	Kind        string               `json:"kind"`
	Text        *string              `json:"text,omitempty"`
	Bytes       []byte               `json:"bytes,omitempty"`
	Object      json.RawMessage      `json:"object,omitempty"`
	Stream      []json.RawMessage    `json:"stream,omitempty"`
	Attachments map[string][]byte    `json:"attachments,omitempty"`
	Properties  map[string]wireValue `json:"properties,omitempty"`
	Headers     wireHeaders          `json:"headers"`
}

type wireValue struct {
	Type  string          `json:"type"`
	Value string          `json:"value,omitempty"`
	JSON  json.RawMessage `json:"json,omitempty"`
}

type wireHeaders struct {
	CorrelationID string     `json:"correlationId,omitempty"`
	Destination   string     `json:"destination,omitempty"`
	Redelivered   bool       `json:"redelivered,omitempty"`
	DeliveryMode  uint8      `json:"deliveryMode,omitempty"`
	Expiration    *time.Time `json:"expiration,omitempty"`
	MessageID     string     `json:"messageId,omitempty"`
	Priority      int        `json:"priority"`
	ReplyTo       string     `json:"replyTo,omitempty"`
	Timestamp     *time.Time `json:"timestamp,omitempty"`
	Type          string     `json:"type,omitempty"`
}

func (c JSONCodec) Encode(m message.Message) ([]byte, error) {
	w := wireMessage{Kind: m.Kind().String()}

	switch m.Kind() {
	case message.KindText:
		s, err := m.Text()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCodec, err)
		}
		w.Text = &s
	case message.KindBytes:
		b, err := m.Bytes()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCodec, err)
		}
		w.Bytes = b
	case message.KindObject:
		v, err := m.Object()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCodec, err)
		}
		if w.Object, err = json.Marshal(v); err != nil {
			return nil, fmt.Errorf("%w: object body: %v", ErrCodec, err)
		}
	case message.KindStream:
		items, err := m.Stream()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCodec, err)
		}
		w.Stream = make([]json.RawMessage, len(items))
		for i, it := range items {
			if w.Stream[i], err = json.Marshal(it); err != nil {
				return nil, fmt.Errorf("%w: stream item %d: %v", ErrCodec, i, err)
			}
		}
	}

	names, err := m.AttachmentNames()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	if len(names) > 0 {
		w.Attachments = make(map[string][]byte, len(names))
		for _, n := range names {
			b, err := m.Attachment(n)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCodec, err)
			}
			w.Attachments[n] = b
		}
	}

	names, err = m.PropertyNames()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	if len(names) > 0 {
		w.Properties = make(map[string]wireValue, len(names))
		for _, n := range names {
			v, ok, err := m.Property(n)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCodec, err)
			}
			if !ok {
				continue
			}
			wv, err := encodeValue(v)
			if err != nil {
				return nil, fmt.Errorf("%w: property %s: %v", ErrCodec, n, err)
			}
			w.Properties[n] = wv
		}
	}

	if w.Headers, err = encodeHeaders(m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	return json.Marshal(w)
}

func encodeValue(v any) (wireValue, error) {
	t := message.TypeOf(v)
	if t != message.TypeObject {
		return wireValue{Type: t.String(), Value: message.FormatValue(v)}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return wireValue{}, err
	}
	return wireValue{Type: t.String(), JSON: raw}, nil
}

func encodeHeaders(m message.Message) (wireHeaders, error) {
	var h wireHeaders
	for _, f := range message.HeaderFields() {
		v, err := m.Header(f)
		if err != nil {
			return h, err
		}
		switch f {
		case message.HeaderCorrelationID:
			h.CorrelationID, _ = v.(string)
		case message.HeaderDestination:
			h.Destination, _ = v.(string)
		case message.HeaderRedelivered:
			h.Redelivered, _ = v.(bool)
		case message.HeaderDeliveryMode:
			dm, _ := v.(message.DeliveryMode)
			h.DeliveryMode = uint8(dm)
		case message.HeaderExpiration:
			h.Expiration = timePtr(v)
		case message.HeaderMessageID:
			h.MessageID, _ = v.(string)
		case message.HeaderPriority:
			h.Priority, _ = v.(int)
		case message.HeaderReplyTo:
			h.ReplyTo, _ = v.(string)
		case message.HeaderTimestamp:
			h.Timestamp = timePtr(v)
		case message.HeaderType:
			h.Type, _ = v.(string)
		}
	}
	return h, nil
}

func timePtr(v any) *time.Time {
	t, ok := v.(time.Time)
	if !ok || t.IsZero() {
		return nil
	}
	return &t
}

func (c JSONCodec) Decode(data []byte) (message.Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	kind, err := message.ParseKind(w.Kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	create := c.Factory
	if create == nil {
		create = message.MemoryFactory()
	}
	m, err := create(kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}

	if err := decodeBody(m, kind, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	for n, b := range w.Attachments {
		if err := m.SetAttachment(n, b); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCodec, err)
		}
	}
	for n, wv := range w.Properties {
		v, err := decodeValue(wv)
		if err != nil {
			return nil, fmt.Errorf("%w: property %s: %v", ErrCodec, n, err)
		}
		if v == nil {
			// a nil object property travels as JSON null
			continue
		}
		if err := m.SetProperty(n, v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCodec, err)
		}
	}
	if err := decodeHeaders(m, w.Headers); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	return m, nil
}

func decodeBody(m message.Message, kind message.Kind, w *wireMessage) error {
	switch kind {
	case message.KindText:
		if w.Text != nil {
			return m.SetText(*w.Text)
		}
	case message.KindBytes:
		if w.Bytes != nil {
			return m.SetBytes(w.Bytes)
		}
	case message.KindObject:
		if len(w.Object) > 0 {
			var v any
			if err := json.Unmarshal(w.Object, &v); err != nil {
				return err
			}
			return m.SetObject(v)
		}
	case message.KindStream:
		if w.Stream != nil {
			items := make([]any, len(w.Stream))
			for i, raw := range w.Stream {
				if err := json.Unmarshal(raw, &items[i]); err != nil {
					return err
				}
			}
			return m.SetStream(items)
		}
	}
	return nil
}

func decodeValue(wv wireValue) (any, error) {
	t, ok := message.ParsePropertyType(wv.Type)
	if !ok {
		return nil, fmt.Errorf("unknown property type %q", wv.Type)
	}
	if t != message.TypeObject {
		return message.ParseValue(t, wv.Value)
	}
	var v any
	if len(wv.JSON) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(wv.JSON, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeHeaders(m message.Message, h wireHeaders) error {
	set := func(f message.HeaderField, v any) error { return m.SetHeader(f, v) }
	var errs []error
	errs = append(errs,
		set(message.HeaderCorrelationID, h.CorrelationID),
		set(message.HeaderDestination, h.Destination),
		set(message.HeaderRedelivered, h.Redelivered),
		set(message.HeaderMessageID, h.MessageID),
		set(message.HeaderPriority, h.Priority),
		set(message.HeaderReplyTo, h.ReplyTo),
		set(message.HeaderType, h.Type),
	)
	if h.DeliveryMode != 0 {
		errs = append(errs, set(message.HeaderDeliveryMode, message.DeliveryMode(h.DeliveryMode)))
	}
	if h.Expiration != nil {
		errs = append(errs, set(message.HeaderExpiration, *h.Expiration))
	}
	if h.Timestamp != nil {
		errs = append(errs, set(message.HeaderTimestamp, *h.Timestamp))
	}
	return errors.Join(errs...)
}
