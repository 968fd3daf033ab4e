package xroute

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// TransportFactory constructs transports from a config blob.
type TransportFactory func(cfg map[string]any) (Transport, error)

// CodecFactory constructs codecs.
type CodecFactory func() Codec

// factories maps names to constructors of one kind.
type factories[F any] struct {
	mu sync.RWMutex
	m  map[string]F
}

func (f *factories[F]) set(name string, factory F) {
	f.mu.Lock()
	if f.m == nil {
		f.m = make(map[string]F)
	}
	f.m[name] = factory
	f.mu.Unlock()
}

func (f *factories[F]) get(name string) (F, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	factory, ok := f.m[name]
	return factory, ok
}

func (f *factories[F]) names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Sorted(maps.Keys(f.m))
}

var (
	transports factories[TransportFactory]
	codecs     = factories[CodecFactory]{m: map[string]CodecFactory{
		jsonCodecName: func() Codec { return JSONCodec{} },
	}}
)

// RegisterTransport registers a broker adapter under name, replacing any
// earlier registration.
func RegisterTransport(name string, factory TransportFactory) error {
	if name == "" || factory == nil {
		return errors.New("xroute: transport name and factory are required")
	}
	transports.set(name, factory)
	return nil
}

// NewTransport constructs a registered transport with cfg.
func NewTransport(name string, cfg map[string]any) (Transport, error) {
	f, ok := transports.get(name)
	if !ok {
		return nil, ErrUnknownTransport{name: name}
	}
	return f(cfg)
}

// Transports lists registered transport names in sorted order.
func Transports() []string { return transports.names() }

// RegisterCodec registers a codec factory under name.
func RegisterCodec(name string, factory CodecFactory) error {
	if name == "" || factory == nil {
		return errors.New("xroute: codec name and factory are required")
	}
	codecs.set(name, factory)
	return nil
}

// NewCodec constructs a registered codec.
func NewCodec(name string) (Codec, error) {
	f, ok := codecs.get(name)
	if !ok {
		return nil, fmt.Errorf("xroute: codec %q not registered", name)
	}
	return f(), nil
}

// Codecs lists registered codec names in sorted order.
func Codecs() []string { return codecs.names() }
