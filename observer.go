package xroute

import (
	"sync"

	"github.com/trickstertwo/xlog"
)

// Observer receives pipeline and router events. Implementations should be
// non-blocking.
type Observer interface {
	OnEvent(e Event)
}

// ObserverFunc is an Adapter that lets a plain function satisfy Observer.
type ObserverFunc func(e Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// LoggingObserver renders events through xlog. Stage events log at debug,
// failures at warn.
type LoggingObserver struct {
	Logger *xlog.Logger
}

func (o LoggingObserver) OnEvent(e Event) {
	if o.Logger == nil {
		return
	}
	op := ""
	if e.Operation.Valid() {
		op = e.Operation.String()
	}
	switch e.Type {
	case EventFailed, EventError:
		o.Logger.Warn().
			Str("type", string(e.Type)).
			Str("route", e.Route).
			Str("operation", op).
			Str("topic", e.Topic).
			Str("message_id", e.MessageID).
			Err(e.Err).
			Msg("xroute event")
	case EventPublishDone:
		if e.Err != nil {
			o.Logger.Warn().
				Str("type", string(e.Type)).
				Str("route", e.Route).
				Str("topic", e.Topic).
				Dur("duration", e.Duration).
				Err(e.Err).
				Msg("xroute event")
			return
		}
		fallthrough
	default:
		o.Logger.Debug().
			Str("type", string(e.Type)).
			Str("route", e.Route).
			Str("operation", op).
			Str("topic", e.Topic).
			Str("message_id", e.MessageID).
			Str("reason", e.Reason).
			Dur("duration", e.Duration).
			Msg("xroute event")
	}
}

// dispatcher fans events out to registered observers, through the pool when
// one is attached and inline otherwise.
type dispatcher struct {
	pool *ObserverPool

	mu        sync.RWMutex
	observers []Observer
}

func (d *dispatcher) add(obs Observer) {
	if obs == nil {
		return
	}
	d.mu.Lock()
	d.observers = append(d.observers, obs)
	d.mu.Unlock()
}

// remove drops the first observer equal to obs. Observers must be comparable
// to be removable.
func (d *dispatcher) remove(obs Observer) {
	if obs == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, o := range d.observers {
		if o == obs {
			d.observers = append(d.observers[:i:i], d.observers[i+1:]...)
			return
		}
	}
}

func (d *dispatcher) active() bool {
	if d == nil {
		return false
	}
	d.mu.RLock()
	n := len(d.observers)
	d.mu.RUnlock()
	return n > 0
}

func (d *dispatcher) notify(e Event) {
	if d == nil {
		return
	}
	d.mu.RLock()
	if len(d.observers) == 0 {
		d.mu.RUnlock()
		return
	}
	observers := make([]Observer, len(d.observers))
	copy(observers, d.observers)
	d.mu.RUnlock()

	if d.pool != nil {
		d.pool.Notify(e, observers)
		return
	}
	e.observers = observers
	dispatchEvent(&e)
}

// dispatchEvent calls every observer attached to e. An observer panic is
// swallowed so it cannot take down a worker or a message path.
func dispatchEvent(e *Event) {
	for _, obs := range e.observers {
		if obs == nil {
			continue
		}
		func() {
			defer func() { _ = recover() }()
			obs.OnEvent(*e)
		}()
	}
}
