package transform

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// DefaultEngine is used when a transform names no engine.
const DefaultEngine = TemplateEngineName

// Engine is the Strategy compiling transform programs.
type Engine interface {
	Name() string
	Compile(src string) (Program, error)
}

// Program is a compiled transform. It is shared by all messages on a route.
type Program interface {
	// Executable returns a fresh executable. Executables are not safe for
	// concurrent use; obtain one per invocation.
	Executable() Executable
}

// Executable runs a program once against bound inputs.
type Executable interface {
	Execute(ctx context.Context, in *Inputs) (string, error)
}

// EngineFactory constructs engines via Factory pattern.
type EngineFactory func() Engine

var (
	engineRegistryMu sync.RWMutex
	engineRegistry   = map[string]EngineFactory{
		TemplateEngineName: func() Engine { return TemplateEngine{} },
		XPathEngineName:    func() Engine { return XPathEngine{} },
	}
)

// RegisterEngine registers an engine factory by name.
func RegisterEngine(name string, factory EngineFactory) error {
	if name == "" {
		return errors.New("engine name must not be empty")
	}
	if factory == nil {
		return errors.New("engine factory must not be nil")
	}
	engineRegistryMu.Lock()
	engineRegistry[name] = factory
	engineRegistryMu.Unlock()
	return nil
}

// NewEngine constructs an engine by name. The empty name selects
// DefaultEngine.
func NewEngine(name string) (Engine, error) {
	if name == "" {
		name = DefaultEngine
	}
	engineRegistryMu.RLock()
	f, ok := engineRegistry[name]
	engineRegistryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
	return f(), nil
}

// Engines lists the registered engine names.
func Engines() []string {
	engineRegistryMu.RLock()
	defer engineRegistryMu.RUnlock()
	names := make([]string, 0, len(engineRegistry))
	for n := range engineRegistry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
