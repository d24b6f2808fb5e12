package events

import (
	"context"
	"sync"
	"time"

	"stockcore/pkg/logger"
)

// DispatcherConfig sizes the queue and the worker pool.
type DispatcherConfig struct {
	BufferSize      int
	Workers         int
	DeliveryTimeout time.Duration
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{BufferSize: 1024, Workers: 4, DeliveryTimeout: 10 * time.Second}
}

// Dispatcher is the asynchronous Publisher. Events go to a bounded queue;
// workers hand each one to every sink under DeliveryTimeout. When the queue
// is full the event is dropped with a warning.
type Dispatcher struct {
	cfg   DispatcherConfig
	sinks []Sink
	log   *logger.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher and starts its workers.
func NewDispatcher(cfg DispatcherConfig, log *logger.Logger, sinks ...Sink) *Dispatcher {
	def := DefaultDispatcherConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = def.DeliveryTimeout
	}
	if log == nil {
		log = logger.Default()
	}

	d := &Dispatcher{
		cfg:   cfg,
		sinks: sinks,
		log:   log.WithComponent("events"),
		queue: make(chan Event, cfg.BufferSize),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Publish enqueues e. It never blocks.
func (d *Dispatcher) Publish(ctx context.Context, e Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		logger.Warn(ctx, "event dropped after shutdown", "event_id", e.ID, "type", e.Type)
		return
	}
	select {
	case d.queue <- e:
	default:
		logger.Warn(ctx, "event queue full, event dropped", "event_id", e.ID, "type", e.Type)
	}
}

// Close stops accepting events and waits for queued ones to drain or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for e := range d.queue {
		for _, s := range d.sinks {
			d.deliver(s, e)
		}
	}
}

func (d *Dispatcher) deliver(s Sink, e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.DeliveryTimeout)
	defer cancel()

	if err := s.Deliver(ctx, e); err != nil {
		d.log.Warnw("event delivery failed",
			"sink", s.Name(),
			"event_id", e.ID,
			"type", e.Type,
			"error", err,
		)
	}
}

// LogSink writes every event to the structured log.
type LogSink struct {
	Log *logger.Logger
}

func (LogSink) Name() string { return "log" }

func (s LogSink) Deliver(_ context.Context, e Event) error {
	l := s.Log
	if l == nil {
		l = logger.Default()
	}
	l.Infow("event",
		"event_id", e.ID,
		"type", e.Type,
		"aggregate_type", e.AggregateType,
		"aggregate_id", e.AggregateID,
		"payload", string(e.Payload),
	)
	return nil
}
