package statestore

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DataNeuron/enterpirse-workflow-agent/pkg/logx"
)

// DefaultAsyncBuffer is the queue depth of an AsyncWriter.
const DefaultAsyncBuffer = 64

const asyncWriteTimeout = 5 * time.Second

type asyncItem struct {
	flushed chan struct{} // set for flush markers only
	snap    Snapshot
}

// AsyncWriter appends snapshots on a background worker. Submissions never
// block: when the queue is full the snapshot is dropped and counted. Write
// failures are logged and counted, never returned.
type AsyncWriter struct {
	store   Appender
	logger  *logx.Logger
	queue   chan asyncItem
	done    chan struct{}
	dropped atomic.Int64
	failed  atomic.Int64
	written atomic.Int64
	mu      sync.RWMutex
	closed  bool
}

// NewAsyncWriter starts the worker. buffer <= 0 uses DefaultAsyncBuffer.
func NewAsyncWriter(store Appender, buffer int, logger *logx.Logger) *AsyncWriter {
	if buffer <= 0 {
		buffer = DefaultAsyncBuffer
	}
	if logger == nil {
		logger = logx.NewLogger("state-async")
	}
	w := &AsyncWriter{
		store:  store,
		logger: logger,
		queue:  make(chan asyncItem, buffer),
		done:   make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *AsyncWriter) run() {
	defer close(w.done)
	for item := range w.queue {
		if item.flushed != nil {
			close(item.flushed)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), asyncWriteTimeout)
		err := w.store.Append(ctx, item.snap)
		cancel()
		if err != nil {
			w.failed.Add(1)
			w.logger.Warn("Checkpoint for %s (%s) not persisted: %v", item.snap.WorkflowID, item.snap.Status, err)
			continue
		}
		w.written.Add(1)
	}
	w.logger.Debug("Checkpoint writer finished draining queue")
}

// Submit enqueues snap and reports whether it was accepted.
func (w *AsyncWriter) Submit(snap Snapshot) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return false
	}
	select {
	case w.queue <- asyncItem{snap: snap}:
		return true
	default:
		w.dropped.Add(1)
		w.logger.Warn("Checkpoint queue full, dropping %s (%s)", snap.WorkflowID, snap.Status)
		return false
	}
}

// Flush waits until everything submitted before the call has been processed.
func (w *AsyncWriter) Flush(ctx context.Context) error {
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return nil
	}
	marker := asyncItem{flushed: make(chan struct{})}
	select {
	case w.queue <- marker:
		w.mu.RUnlock()
	case <-ctx.Done():
		w.mu.RUnlock()
		return fmt.Errorf("flush checkpoints: %w", ctx.Err())
	}

	select {
	case <-marker.flushed:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush checkpoints: %w", ctx.Err())
	}
}

// Close stops accepting snapshots and waits for the queue to drain.
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
		return fmt.Errorf("close checkpoint writer: %w", ctx.Err())
	}
}

// Stats reports written, failed and dropped counts.
func (w *AsyncWriter) Stats() (written, failed, dropped int64) {
	return w.written.Load(), w.failed.Load(), w.dropped.Load()
}
