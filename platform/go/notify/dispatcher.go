package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/brickline/brickline-saas/platform/go/metrics"
)

// ErrQueueFull is returned by Enqueue when the dispatch queue has no room.
var ErrQueueFull = errors.New("notification queue is full")

// Dispatcher decouples request handling from notification delivery. Messages
// are enqueued into a bounded buffer and delivered by a background worker; a
// failed delivery is retried once and then dropped with a log line.
type Dispatcher struct {
	sender  Sender
	queue   chan Message
	logger  *zap.Logger
	metrics *metrics.Metrics

	sendTimeout time.Duration
	retryDelay  time.Duration
}

// DispatcherConfig tunes the queue and delivery behaviour.
type DispatcherConfig struct {
	QueueSize   int
	SendTimeout time.Duration
	RetryDelay  time.Duration
}

// NewDispatcher constructs a Dispatcher; Run must be started for messages to
// be delivered. Metrics may be nil in tests.
func NewDispatcher(sender Sender, logger *zap.Logger, m *metrics.Metrics, cfg DispatcherConfig) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	return &Dispatcher{
		sender:      sender,
		queue:       make(chan Message, cfg.QueueSize),
		logger:      logger,
		metrics:     m,
		sendTimeout: cfg.SendTimeout,
		retryDelay:  cfg.RetryDelay,
	}
}

// Enqueue places a message on the dispatch queue without blocking.
func (d *Dispatcher) Enqueue(msg Message) error {
	select {
	case d.queue <- msg:
		return nil
	default:
		d.logger.Warn("notification queue full, dropping message",
			zap.String("channel", string(msg.Channel)),
			zap.String("template", msg.Template))
		d.count(msg.Channel, "dropped")
		return ErrQueueFull
	}
}

// Run delivers queued messages until ctx is cancelled, then drains whatever
// is already buffered before returning.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return
		case msg := <-d.queue:
			d.deliver(ctx, msg)
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case msg := <-d.queue:
			d.deliver(context.Background(), msg)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	if err := d.send(ctx, msg); err == nil {
		d.count(msg.Channel, "sent")
		return
	}

	d.count(msg.Channel, "retried")
	select {
	case <-ctx.Done():
	case <-time.After(d.retryDelay):
	}

	if err := d.send(ctx, msg); err != nil {
		d.logger.Error("notification delivery failed after retry",
			zap.String("channel", string(msg.Channel)),
			zap.String("template", msg.Template),
			zap.Error(err))
		d.count(msg.Channel, "dropped")
		return
	}
	d.count(msg.Channel, "sent")
}

func (d *Dispatcher) send(ctx context.Context, msg Message) error {
	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	return d.sender.Send(sendCtx, msg)
}

func (d *Dispatcher) count(channel Channel, status string) {
	if d.metrics == nil {
		return
	}
	d.metrics.NotificationsTotal.WithLabelValues(string(channel), status).Inc()
}
