package usage

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

const defaultBuffer = 256

// Async hands records to a single background writer. Record never blocks:
// when the buffer is full the record is dropped and counted.
type Async struct {
	next    Recorder
	ch      chan Record
	dropped atomic.Int64
	logger  *slog.Logger

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
}

// NewAsync starts the writer goroutine. A buffer <= 0 uses 256.
func NewAsync(next Recorder, buffer int) *Async {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	a := &Async{
		next:   next,
		ch:     make(chan Record, buffer),
		logger: slog.Default(),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

// Record queues rec. It returns nil even when the record is dropped; drops
// are visible through Dropped and the log.
func (a *Async) Record(_ context.Context, rec Record) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.dropped.Add(1)
		return nil
	}

	select {
	case a.ch <- stamp(rec):
	default:
		n := a.dropped.Add(1)
		a.logger.Warn("usage buffer full, record dropped", "client", rec.Client, "dropped_total", n)
	}
	return nil
}

// Dropped returns how many records were discarded.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Close stops accepting records and waits until queued ones are written or
// ctx is done.
func (a *Async) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.ch)
		a.mu.Unlock()
	})

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Async) run() {
	defer close(a.done)
	for rec := range a.ch {
		if err := a.next.Record(context.Background(), rec); err != nil {
			a.logger.Error("recording usage", "client", rec.Client, "kind", rec.Kind, "error", err)
		}
	}
}
