package syncer

import (
	"context"
	"log/slog"
	"sync"
)

// DefaultQueueSize bounds the number of pending background tasks.
const DefaultQueueSize = 256

// TaskFunc is a unit of background work. Its error is logged and dropped.
type TaskFunc func(ctx context.Context) error

type task struct {
	name string
	fn   TaskFunc
}

// Dispatcher runs background tasks one at a time on a single worker goroutine.
// Tasks are never retried; a failed remote write is lost until the next
// mutation of the same tier.
type Dispatcher struct {
	logger *slog.Logger
	queue  chan task
	done   chan struct{}

	mu      sync.RWMutex
	closed  bool
	pending sync.WaitGroup
}

// NewDispatcher starts the worker. Call Close to drain the queue and stop it.
func NewDispatcher(logger *slog.Logger, queueSize int) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	d := &Dispatcher{
		logger: logger,
		queue:  make(chan task, queueSize),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

// Submit enqueues fn without blocking. It reports false when the task was
// dropped because the queue is full or the dispatcher is closed.
func (d *Dispatcher) Submit(name string, fn TaskFunc) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn("dispatcher: closed, dropping task", slog.String("task", name))
		return false
	}
	d.pending.Add(1)
	select {
	case d.queue <- task{name: name, fn: fn}:
		return true
	default:
		d.pending.Done()
		d.logger.Warn("dispatcher: queue full, dropping task", slog.String("task", name))
		return false
	}
}

// Wait blocks until every task submitted so far has finished.
func (d *Dispatcher) Wait() {
	d.pending.Wait()
}

// Close stops accepting tasks, runs the ones already queued and stops the worker.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for t := range d.queue {
		d.exec(t)
	}
}

func (d *Dispatcher) exec(t task) {
	defer d.pending.Done()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatcher: task panicked", slog.String("task", t.name), slog.Any("panic", r))
		}
	}()
	if err := t.fn(context.Background()); err != nil {
		d.logger.Warn("dispatcher: task failed", slog.String("task", t.name), slog.String("error", err.Error()))
		return
	}
	d.logger.Debug("dispatcher: task done", slog.String("task", t.name))
}
