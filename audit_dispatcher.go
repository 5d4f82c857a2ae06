package authcore

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// auditDispatcher decouples the authentication flows from sink latency.
// Events are queued on a buffered channel and emitted by one background
// worker; with DropIfFull set a full queue sheds events instead of
// stalling a login, and the shedding is reported through the engine
// logger.
type auditDispatcher struct {
	sink     AuditSink
	logger   *zap.Logger
	events   chan AuditEvent
	quit     chan struct{}
	drained  chan struct{}
	dropFull bool

	dropped atomic.Uint64
	dropLog sync.Once

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink, logger *zap.Logger) *auditDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	buffer := cfg.BufferSize
	if buffer < 1 {
		buffer = 1
	}

	d := &auditDispatcher{
		sink:     sink,
		logger:   logger,
		events:   make(chan AuditEvent, buffer),
		quit:     make(chan struct{}),
		drained:  make(chan struct{}),
		dropFull: cfg.DropIfFull,
	}

	go d.drain()

	return d
}

// drain is the single consumer. It exits only once the event channel is
// closed, so everything queued before Close is still delivered.
func (d *auditDispatcher) drain() {
	defer close(d.drained)

	for event := range d.events {
		d.sink.Emit(context.Background(), event)
	}
}

// Emit queues one event. With DropIfFull it never blocks the caller;
// otherwise it waits until the worker frees a slot, the context is
// cancelled, or the dispatcher shuts down.
func (d *auditDispatcher) Emit(ctx context.Context, event AuditEvent) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	if d.dropFull {
		select {
		case d.events <- event:
		default:
			d.dropped.Add(1)
			d.dropLog.Do(func() {
				d.logger.Warn("audit queue full, shedding events",
					zap.Int("buffer", cap(d.events)))
			})
		}
		return
	}

	select {
	case d.events <- event:
	case <-ctx.Done():
	case <-d.quit:
	}
}

// Close stops intake, waits for the queued events to reach the sink,
// and reports the shed total if any were lost.
func (d *auditDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		close(d.quit)

		// Every Emit holds a read lock across its send, so after the
		// write lock below no sender can race the channel close.
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()

		close(d.events)
		<-d.drained

		if n := d.dropped.Load(); n > 0 {
			d.logger.Warn("audit events were dropped before shutdown",
				zap.Uint64("dropped", n))
		}
	})
}

// Dropped reports how many events were shed on a full queue.
func (d *auditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
