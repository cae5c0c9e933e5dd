package notify

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/coordhub/internal/app/system/metrics"
	"go.uber.org/zap"
)

// Dispatcher is a Publisher that hands events to a Notifier on a
// background goroutine. When the queue is full the event is dropped and
// counted; Publish never blocks.
type Dispatcher struct {
	notifier Notifier
	log      *zap.Logger
	timeout  time.Duration

	queue  chan Event
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

// NewDispatcher creates a dispatcher with room for size queued events.
// Each delivery is bounded by timeout.
func NewDispatcher(n Notifier, logger *zap.Logger, size int, timeout time.Duration) *Dispatcher {
	if size <= 0 {
		size = 256
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		notifier: n,
		log:      logger,
		timeout:  timeout,
		queue:    make(chan Event, size),
		stopCh:   make(chan struct{}),
	}
}

// Start begins delivering queued events.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.run()
	d.log.Info("notification dispatcher started", zap.Int("queue_size", cap(d.queue)))
}

// Stop refuses new events, delivers what is already queued and waits for
// the worker to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.stopCh)
	d.mu.Unlock()

	d.wg.Wait()
	d.log.Info("notification dispatcher stopped")
}

// Publish enqueues ev.
func (d *Dispatcher) Publish(ev Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.drop(ev, "dispatcher stopped")
		return
	}
	select {
	case d.queue <- ev:
	default:
		d.drop(ev, "queue full")
	}
}

func (d *Dispatcher) drop(ev Event, why string) {
	metrics.NotificationsDropped.Inc()
	d.log.Warn("notification dropped",
		zap.String("event_id", ev.ID),
		zap.String("type", ev.Type),
		zap.String("reason", why))
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.stopCh:
			for {
				select {
				case ev := <-d.queue:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.notifier.Notify(ctx, ev); err != nil {
		metrics.NotificationsFailed.Inc()
		d.log.Error("notification delivery failed",
			zap.String("event_id", ev.ID),
			zap.String("type", ev.Type),
			zap.Error(err))
	}
}
