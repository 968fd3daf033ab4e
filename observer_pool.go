package xroute

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// ObserverPool dispatches events to observers on a fixed set of goroutines so
// slow observers never hold up a message path. When the queue is full the
// event is dropped and counted.
type ObserverPool struct {
	queue   chan *Event
	workers int

	// mu orders Notify against closing the queue.
	mu     sync.RWMutex
	closed bool

	wg        sync.WaitGroup
	stop      context.CancelFunc
	dropped   atomic.Uint64
	processed atomic.Uint64
}

// NewObserverPool starts workers goroutines reading from a queue of
// bufferSize events. Non-positive values fall back to 4 and 1000. The pool
// stops accepting events when ctx ends and drains what is queued.
func NewObserverPool(ctx context.Context, workers, bufferSize int) *ObserverPool {
	if workers < 1 {
		workers = 4
	}
	if bufferSize < 1 {
		bufferSize = 1000
	}

	op := &ObserverPool{
		queue:   make(chan *Event, bufferSize),
		workers: workers,
	}
	op.wg.Add(workers)
	for range workers {
		go func() {
			defer op.wg.Done()
			for e := range op.queue {
				dispatchEvent(e)
				op.processed.Add(1)
			}
		}()
	}

	watchCtx, stop := context.WithCancel(ctx)
	op.stop = stop
	go func() {
		<-watchCtx.Done()
		op.shutdown()
	}()
	return op
}

// Notify queues e for observers. It never blocks.
func (op *ObserverPool) Notify(e Event, observers []Observer) {
	if len(observers) == 0 {
		return
	}
	e.observers = observers

	op.mu.RLock()
	defer op.mu.RUnlock()
	if op.closed {
		op.dropped.Add(1)
		return
	}
	select {
	case op.queue <- &e:
	default:
		op.dropped.Add(1)
	}
}

// shutdown closes the queue once; workers exit after draining it.
func (op *ObserverPool) shutdown() {
	op.mu.Lock()
	defer op.mu.Unlock()
	if !op.closed {
		op.closed = true
		close(op.queue)
	}
}

// Close stops accepting events and waits at most timeout for the queue to
// drain. It is idempotent.
func (op *ObserverPool) Close(timeout time.Duration) error {
	op.shutdown()
	op.stop()

	done := make(chan struct{})
	go func() {
		op.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrObserverPoolShutdownTimeout
	}
}

// Stats returns current pool statistics.
func (op *ObserverPool) Stats() PoolStats {
	return PoolStats{
		Dropped:      op.dropped.Load(),
		Processed:    op.processed.Load(),
		ActiveEvents: len(op.queue),
		Workers:      op.workers,
		BufferSize:   cap(op.queue),
	}
}
