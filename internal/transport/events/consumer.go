package events

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"

	"github.com/kailas-cloud/feedex/internal/domain"
	logpkg "github.com/kailas-cloud/feedex/internal/logger"
)

// MetadataEventName lets producers put the event name in message metadata
// and send the bare payload as the body.
const MetadataEventName = "event_name"

// Router delivers decoded events.
type Router interface {
	Route(ctx context.Context, name string, payload []byte) (bool, error)
	RouteEnvelope(ctx context.Context, data []byte) (bool, error)
}

// ErrNotRunning is reported by HealthCheck while the consumer is not subscribed.
var ErrNotRunning = errors.New("event consumer not running")

// Consumer reads one topic and routes every message. Malformed messages are
// acked and dropped; engine failures are nacked for redelivery.
type Consumer struct {
	sub     message.Subscriber
	topic   string
	router  Router
	logger  *zap.Logger
	running atomic.Bool
	handled atomic.Int64
	dropped atomic.Int64
}

// NewConsumer creates a Consumer.
func NewConsumer(sub message.Subscriber, topic string, router Router, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		sub:    sub,
		topic:  topic,
		router: router,
		logger: logger.With(zap.String("topic", topic)),
	}
}

// Serve subscribes and processes messages until ctx is done. It implements
// suture.Service.
func (c *Consumer) Serve(ctx context.Context) error {
	messages, err := c.sub.Subscribe(ctx, c.topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", c.topic, err)
	}
	c.running.Store(true)
	defer c.running.Store(false)
	c.logger.Info("event consumer started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("event consumer stopping")
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("subscription to %s closed", c.topic)
			}
			c.process(ctx, msg)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg *message.Message) {
	start := time.Now()
	ctx, log := logpkg.With(ctx, c.logger, zap.String("message_uuid", msg.UUID))

	var err error
	if name := msg.Metadata.Get(MetadataEventName); name != "" {
		_, err = c.router.Route(ctx, name, msg.Payload)
	} else {
		_, err = c.router.RouteEnvelope(ctx, msg.Payload)
	}

	switch {
	case err == nil:
		c.handled.Add(1)
		msg.Ack()
	case errors.Is(err, domain.ErrInvalidInput):
		// redelivery cannot fix a malformed message
		c.dropped.Add(1)
		log.Warn("dropping malformed event", zap.Error(err))
		msg.Ack()
	default:
		log.Error("event processing failed, requesting redelivery",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		msg.Nack()
	}
}

// HealthCheck reports whether the consumer is subscribed.
func (c *Consumer) HealthCheck(_ context.Context) error {
	if !c.running.Load() {
		return ErrNotRunning
	}
	return nil
}

// Stats returns handled and dropped message counts.
func (c *Consumer) Stats() (handled, dropped int64) {
	return c.handled.Load(), c.dropped.Load()
}

// Close closes the underlying subscriber.
func (c *Consumer) Close() error {
	return c.sub.Close()
}

func (c *Consumer) String() string {
	return "event-consumer"
}
