package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"library-backend/internal/domain/notification"
	"library-backend/internal/infrastructure/metrics"

	"github.com/sirupsen/logrus"
)

const (
	DefaultQueueSize   = 256
	DefaultSendTimeout = 5 * time.Second
)

var (
	ErrQueueFull = errors.New("notification queue full")
	ErrClosed    = errors.New("notification dispatcher closed")
)

// Dispatcher decouples callers from delivery: Notify only enqueues, one worker drains
// the queue into next. Callers never block on a slow sink.
type Dispatcher struct {
	next    notification.Notifier
	log     *logrus.Logger
	timeout time.Duration

	mu      sync.RWMutex
	closed  bool
	queue   chan notification.Event
	once    sync.Once
	dropped atomic.Uint64
	wg      sync.WaitGroup
}

func NewDispatcher(next notification.Notifier, log *logrus.Logger, buffer int, timeout time.Duration) *Dispatcher {
	if buffer <= 0 {
		buffer = DefaultQueueSize
	}
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return &Dispatcher{
		next:    next,
		log:     log,
		timeout: timeout,
		queue:   make(chan notification.Event, buffer),
	}
}

func (d *Dispatcher) Start() {
	d.once.Do(func() {
		d.wg.Add(1)
		go d.run()
	})
}

// Notify enqueues e without blocking. The caller's context is not carried into delivery.
func (d *Dispatcher) Notify(_ context.Context, e notification.Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	select {
	case d.queue <- e:
		return nil
	default:
		d.dropped.Add(1)
		metrics.RecordNotification(string(e.Kind), "dropped")
		return ErrQueueFull
	}
}

func (d *Dispatcher) Dropped() uint64 { return d.dropped.Load() }

// Close stops accepting events and waits for the queue to drain, or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	// a never-started dispatcher still owes delivery of what it queued
	d.Start()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notifier close: %w", ctx.Err())
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for e := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err := d.next.Notify(ctx, e)
		cancel()

		if err != nil {
			metrics.RecordNotification(string(e.Kind), "failed")
			d.log.WithFields(logrus.Fields{
				"event_id": e.EventID,
				"kind":     e.Kind,
				"loan_id":  e.LoanID,
			}).WithError(err).Warn("notification delivery failed")
			continue
		}
		metrics.RecordNotification(string(e.Kind), "sent")
	}
}
