package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// AsyncWriter queues journal events and appends them from a single worker so
// a call never waits on the database. When the queue is full the event is
// dropped and logged.
type AsyncWriter struct {
	svc     *Service
	log     *slog.Logger
	queue   chan Event
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewAsyncWriter(svc *Service, size int, log *slog.Logger) *AsyncWriter {
	if size <= 0 {
		size = 256
	}
	if log == nil {
		log = slog.Default()
	}
	return &AsyncWriter{
		svc:     svc,
		log:     log,
		queue:   make(chan Event, size),
		timeout: 5 * time.Second,
		done:    make(chan struct{}),
	}
}

// Record enqueues e without blocking.
func (w *AsyncWriter) Record(ctx context.Context, e Event) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.log.Warn("journal closed, dropping event", "call_id", e.CallID, "type", e.Type)
		return
	}
	select {
	case w.queue <- e:
	default:
		w.log.Warn("journal queue full, dropping event", "call_id", e.CallID, "type", e.Type)
	}
}

// Run drains the queue until Close is called, then flushes what is left.
// It returns when the queue is empty.
func (w *AsyncWriter) Run(ctx context.Context) error {
	defer close(w.done)
	for e := range w.queue {
		w.write(ctx, e)
	}
	return nil
}

func (w *AsyncWriter) write(ctx context.Context, e Event) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()
	if err := w.svc.Append(wctx, e); err != nil {
		w.log.Error("journal append failed", "call_id", e.CallID, "type", e.Type, "err", err)
	}
}

// Close stops accepting events and waits for Run to flush, bounded by ctx.
func (w *AsyncWriter) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
