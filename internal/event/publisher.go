package event

import (
	"context"

	"go.uber.org/zap"

	"notifyhub/internal/apperrors"
	"notifyhub/pkg/mq"
)

// Publisher is the lifecycle event capability consumed by the processor.
type Publisher interface {
	PublishEvent(ctx context.Context, evt NotificationEvent) error
}

// NoopPublisher drops events. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishEvent(context.Context, NotificationEvent) error {
	return nil
}

// AMQPPublisher routes events to the notifications topic exchange, one
// routing key per event type.
type AMQPPublisher struct {
	publisher *mq.Publisher
	logger    *zap.Logger
}

func NewAMQPPublisher(publisher *mq.Publisher, logger *zap.Logger) *AMQPPublisher {
	return &AMQPPublisher{
		publisher: publisher,
		logger:    logger,
	}
}

func (p *AMQPPublisher) PublishEvent(ctx context.Context, evt NotificationEvent) error {
	if err := p.publisher.Publish(ctx, string(evt.Type), evt); err != nil {
		p.logger.Error("Failed to publish notification event",
			zap.String("type", string(evt.Type)),
			zap.String("notification_id", evt.NotificationID),
			zap.Error(err),
		)
		return apperrors.External("failed to publish event", err)
	}
	return nil
}
