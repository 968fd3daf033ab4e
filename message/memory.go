package message

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/trickstertwo/xclock"
)

var _ Message = (*Memory)(nil)

// Memory is an in-process Message. It is safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	kind     Kind
	readOnly bool

	text   string
	bytes  []byte
	object any
	stream []any

	attachments map[string][]byte
	props       map[string]any
	hdr         headers
}

type headers struct {
	correlationID string
	destination   string
	redelivered   bool
	deliveryMode  DeliveryMode
	expiration    time.Time
	messageID     string
	priority      int
	replyTo       string
	timestamp     time.Time
	typ           string
}

// Option configures a new Memory message.
type Option func(*memoryOptions)

type memoryOptions struct {
	clock xclock.Clock
	id    string
}

// WithClock sets the clock used to stamp the timestamp header.
func WithClock(c xclock.Clock) Option {
	return func(o *memoryOptions) { o.clock = c }
}

// WithID sets the message id instead of generating a UUID.
func WithID(id string) Option {
	return func(o *memoryOptions) { o.id = id }
}

// New returns an empty writable message of the given kind with a fresh
// message id, the current timestamp and persistent delivery.
func New(kind Kind, opts ...Option) *Memory {
	o := memoryOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.clock == nil {
		o.clock = xclock.Default()
	}
	if o.id == "" {
		o.id = uuid.NewString()
	}
	switch kind {
	case KindText, KindBytes, KindObject, KindStream:
	default:
		kind = KindText
	}
	return &Memory{
		kind:        kind,
		attachments: make(map[string][]byte),
		props:       make(map[string]any),
		hdr: headers{
			messageID:    o.id,
			timestamp:    o.clock.Now(),
			deliveryMode: Persistent,
			priority:     DefaultPriority,
		},
	}
}

// NewText returns a text message holding text.
func NewText(text string, opts ...Option) *Memory {
	m := New(KindText, opts...)
	m.text = text
	return m
}

// NewBytes returns a bytes message holding a copy of b.
func NewBytes(b []byte, opts ...Option) *Memory {
	m := New(KindBytes, opts...)
	m.bytes = deepCopy(b).([]byte)
	return m
}

// MemoryFactory is a Factory producing *Memory messages.
func MemoryFactory(opts ...Option) Factory {
	return func(kind Kind) (Message, error) {
		return New(kind, opts...), nil
	}
}

// SetReadOnly toggles write protection. Writes to a read-only message fail
// with ErrReadOnly, like a message handed out by a broker.
func (m *Memory) SetReadOnly(ro bool) {
	m.mu.Lock()
	m.readOnly = ro
	m.mu.Unlock()
}

func (m *Memory) Kind() Kind {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.kind
}

func (m *Memory) Text() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.kind != KindText {
		return "", accessErr("get text", "", ErrWrongKind)
	}
	return m.text, nil
}

func (m *Memory) SetText(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writable("set text", "", KindText); err != nil {
		return err
	}
	m.text = text
	return nil
}

func (m *Memory) Bytes() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.kind != KindBytes {
		return nil, accessErr("get bytes", "", ErrWrongKind)
	}
	return deepCopy(m.bytes).([]byte), nil
}

func (m *Memory) SetBytes(b []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writable("set bytes", "", KindBytes); err != nil {
		return err
	}
	m.bytes = deepCopy(b).([]byte)
	return nil
}

func (m *Memory) Object() (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.kind != KindObject {
		return nil, accessErr("get object", "", ErrWrongKind)
	}
	return m.object, nil
}

func (m *Memory) SetObject(v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writable("set object", "", KindObject); err != nil {
		return err
	}
	m.object = v
	return nil
}

func (m *Memory) Stream() ([]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.kind != KindStream {
		return nil, accessErr("get stream", "", ErrWrongKind)
	}
	return deepCopy(m.stream).([]any), nil
}

func (m *Memory) SetStream(items []any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writable("set stream", "", KindStream); err != nil {
		return err
	}
	m.stream = deepCopy(items).([]any)
	return nil
}

func (m *Memory) AttachmentNames() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.attachments), nil
}

func (m *Memory) Attachment(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.attachments[name]
	if !ok {
		return nil, accessErr("get attachment", name, ErrAttachmentNotFound)
	}
	return deepCopy(b).([]byte), nil
}

func (m *Memory) SetAttachment(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readOnly {
		return accessErr("set attachment", name, ErrReadOnly)
	}
	m.attachments[name] = deepCopy(data).([]byte)
	return nil
}

func (m *Memory) PropertyNames() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedKeys(m.props), nil
}

func (m *Memory) Property(name string) (any, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.props[name]
	return v, ok, nil
}

func (m *Memory) SetProperty(name string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readOnly {
		return accessErr("set property", name, ErrReadOnly)
	}
	if name == "" || value == nil {
		return accessErr("set property", name, ErrInvalidProperty)
	}
	m.props[name] = value
	return nil
}

func (m *Memory) RemoveProperty(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readOnly {
		return accessErr("remove property", name, ErrReadOnly)
	}
	delete(m.props, name)
	return nil
}

func (m *Memory) Header(field HeaderField) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h := &m.hdr
	switch field {
	case HeaderCorrelationID:
		return h.correlationID, nil
	case HeaderDestination:
		return h.destination, nil
	case HeaderRedelivered:
		return h.redelivered, nil
	case HeaderDeliveryMode:
		return h.deliveryMode, nil
	case HeaderExpiration:
		return h.expiration, nil
	case HeaderMessageID:
		return h.messageID, nil
	case HeaderPriority:
		return h.priority, nil
	case HeaderReplyTo:
		return h.replyTo, nil
	case HeaderTimestamp:
		return h.timestamp, nil
	case HeaderType:
		return h.typ, nil
	}
	return nil, accessErr("get header", field.String(), ErrUnknownHeader)
}

func (m *Memory) SetHeader(field HeaderField, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readOnly {
		return accessErr("set header", field.String(), ErrReadOnly)
	}
	h := &m.hdr
	bad := accessErr("set header", field.String(), ErrInvalidHeader)

	switch field {
	case HeaderCorrelationID, HeaderDestination, HeaderMessageID, HeaderReplyTo, HeaderType:
		s, ok := value.(string)
		if !ok {
			return bad
		}
		switch field {
		case HeaderCorrelationID:
			h.correlationID = s
		case HeaderDestination:
			h.destination = s
		case HeaderMessageID:
			h.messageID = s
		case HeaderReplyTo:
			h.replyTo = s
		case HeaderType:
			h.typ = s
		}
	case HeaderRedelivered:
		b, ok := value.(bool)
		if !ok {
			return bad
		}
		h.redelivered = b
	case HeaderDeliveryMode:
		dm, ok := value.(DeliveryMode)
		if !ok || (dm != Persistent && dm != NonPersistent) {
			return bad
		}
		h.deliveryMode = dm
	case HeaderExpiration, HeaderTimestamp:
		t, ok := value.(time.Time)
		if !ok {
			return bad
		}
		if field == HeaderExpiration {
			h.expiration = t
		} else {
			h.timestamp = t
		}
	case HeaderPriority:
		p, ok := value.(int)
		if !ok || p < 0 || p > 9 {
			return bad
		}
		h.priority = p
	default:
		return accessErr("set header", field.String(), ErrUnknownHeader)
	}
	return nil
}

// writable must be called with mu held.
func (m *Memory) writable(op, key string, kind Kind) error {
	if m.readOnly {
		return accessErr(op, key, ErrReadOnly)
	}
	if m.kind != kind {
		return accessErr(op, key, ErrWrongKind)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
