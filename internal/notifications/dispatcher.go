package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultPublishTimeout = 5 * time.Second

// Dispatcher fans committed events out to publishers in the background.
// Delivery failures are logged and never reach the caller. A nil
// *Dispatcher drops every event.
type Dispatcher struct {
	publishers []Publisher
	logger     *zap.Logger
	timeout    time.Duration
	wg         sync.WaitGroup
}

// NewDispatcher creates a dispatcher. A non-positive timeout uses the default.
func NewDispatcher(logger *zap.Logger, timeout time.Duration, publishers ...Publisher) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &Dispatcher{
		publishers: publishers,
		logger:     logger,
		timeout:    timeout,
	}
}

// Dispatch publishes event to every publisher without blocking.
func (d *Dispatcher) Dispatch(event Event) {
	if d == nil || len(d.publishers) == 0 {
		return
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	for _, p := range d.publishers {
		d.wg.Add(1)
		go func(p Publisher) {
			defer d.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()
			if err := p.Publish(ctx, event); err != nil {
				d.logger.Warn("Failed to publish event",
					zap.String("event_id", event.ID.String()),
					zap.String("event_type", string(event.Type)),
					zap.String("entity_id", event.EntityID.String()),
					zap.Error(err))
			}
		}(p)
	}
}

// Wait blocks until in-flight publishes finish. Used on shutdown.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

// LogPublisher writes events to the service log.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a log publisher.
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the event.
func (p *LogPublisher) Publish(_ context.Context, event Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID.String()),
		zap.String("event_type", string(event.Type)),
		zap.String("entity_id", event.EntityID.String()),
		zap.String("actor", event.ActorName),
		zap.Any("payload", event.Payload),
	}
	if event.ProjectID != nil {
		fields = append(fields, zap.String("project_id", event.ProjectID.String()))
	}
	p.logger.Info("Event", fields...)
	return nil
}
