package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ErrQueueFull is returned by an async dispatcher that had to drop an event.
var ErrQueueFull = errors.New("event queue full")

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

type registry struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
}

func (r *registry) Subscribe(eventType EventType, handler EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[eventType] = append(r.listeners[eventType], handler)
}

// deliver invokes every handler for the event and joins their errors.
func (r *registry) deliver(ctx context.Context, event Event) error {
	r.mu.RLock()
	handlers := append([]EventHandler{}, r.listeners[event.Type]...)
	r.mu.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type inMemoryDispatcher struct {
	registry
}

// NewInMemoryDispatcher creates a dispatcher that runs handlers on the publishing goroutine.
func NewInMemoryDispatcher() Dispatcher {
	return &inMemoryDispatcher{registry{listeners: make(map[EventType][]EventHandler)}}
}

func (d *inMemoryDispatcher) Publish(ctx context.Context, event Event) error {
	return d.deliver(ctx, event)
}

type envelope struct {
	ctx   context.Context
	event Event
}

// AsyncDispatcher queues events and delivers them on a single background goroutine, so a
// slow subscriber never holds up the request that published.
type AsyncDispatcher struct {
	registry
	queue   chan envelope
	logger  *zap.Logger
	dropped atomic.Int64
	done    chan struct{}
	once    sync.Once
}

// NewAsyncDispatcher starts the delivery loop. Close drains the queue.
func NewAsyncDispatcher(buffer int, logger *zap.Logger) *AsyncDispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &AsyncDispatcher{
		registry: registry{listeners: make(map[EventType][]EventHandler)},
		queue:    make(chan envelope, buffer),
		logger:   logger,
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

// Publish enqueues the event without blocking. Handler errors are logged, not returned.
func (d *AsyncDispatcher) Publish(ctx context.Context, event Event) (err error) {
	defer func() {
		// send on a closed queue after shutdown
		if recover() != nil {
			err = ErrQueueFull
		}
	}()
	select {
	case d.queue <- envelope{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	default:
		d.dropped.Add(1)
		return ErrQueueFull
	}
}

// Dropped is the number of events discarded because the queue was full.
func (d *AsyncDispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Close stops accepting events and waits until queued ones are delivered.
func (d *AsyncDispatcher) Close() {
	d.once.Do(func() { close(d.queue) })
	<-d.done
}

func (d *AsyncDispatcher) run() {
	defer close(d.done)
	for env := range d.queue {
		if err := d.deliver(env.ctx, env.event); err != nil {
			d.logger.Warn("event handler failed",
				zap.String("type", string(env.event.Type)),
				zap.String("event_id", env.event.ID),
				zap.Error(err))
		}
	}
}
