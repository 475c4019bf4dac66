package plugin

import (
	"context"
	"log/slog"
	"sync"
)

// dispatchQueue is the number of events buffered before Send blocks.
const dispatchQueue = 256

// Dispatcher delivers events to subscribed plugins on a single worker
// goroutine, so plugins see events in the order they were sent.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	logger   *slog.Logger

	queue  chan Request
	done   chan struct{}
	mu     sync.Mutex
	closed bool
}

// NewDispatcher starts the worker. Close must be called to stop it.
func NewDispatcher(manager *Manager, executor *Executor, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		manager:  manager,
		executor: executor,
		logger:   logger,
		queue:    make(chan Request, dispatchQueue),
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

// Send queues req for delivery. Events sent after Close are dropped.
func (d *Dispatcher) Send(req Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.queue <- req
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for req := range d.queue {
		for _, p := range d.manager.Subscribers(req.Event) {
			resp, err := d.executor.Execute(context.Background(), p, req)
			if err != nil {
				d.logger.Warn("plugin failed", "plugin", p.Manifest.Name, "event", req.Event, "key", req.Key, "err", err)
				continue
			}
			if !resp.Success {
				d.logger.Warn("plugin reported failure", "plugin", p.Manifest.Name, "event", req.Event, "error", resp.Error)
				continue
			}
			d.logger.Debug("plugin handled event", "plugin", p.Manifest.Name, "event", req.Event, "key", req.Key, "frame", req.Frame)
		}
	}
}

// Close drains the queue and waits for the worker to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}
