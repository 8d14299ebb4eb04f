package service

import (
	"context"

	"go.uber.org/zap"

	"notifyhub/internal/apperrors"
	"notifyhub/internal/event"
	"notifyhub/internal/model"
	"notifyhub/internal/repository"
	"notifyhub/pkg/circuitbreaker"
	"notifyhub/pkg/metrics"
)

// Agent is the AI backend capability used for analysis and drafting.
type Agent interface {
	Analyze(ctx context.Context, n *model.Notification) (bool, error)
	Respond(ctx context.Context, n *model.Notification) (string, error)
}

// ActionExecutor forwards an action to the integration that originated
// the notification. Implemented by the integration coordinator.
type ActionExecutor interface {
	ExecuteAction(ctx context.Context, n *model.Notification) error
}

// Service implements NotificationService on top of the cached repository,
// the AI agent backend, and the integration layer. Agent calls run under
// a circuit breaker so a degraded backend fails fast instead of holding
// job slots on timeouts.
type Service struct {
	repo    repository.Repository[*model.Notification]
	events  event.Publisher
	agent   Agent
	actions ActionExecutor
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewService(
	repo repository.Repository[*model.Notification],
	events event.Publisher,
	agent Agent,
	actions ActionExecutor,
	logger *zap.Logger,
) *Service {
	return &Service{
		repo:    repo,
		events:  events,
		agent:   agent,
		actions: actions,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig()),
		logger:  logger,
	}
}

// CreateNotification persists a new notification and announces it.
// The write lands before the event is observable.
func (s *Service) CreateNotification(ctx context.Context, n *model.Notification) error {
	if n == nil || n.ID == "" {
		return apperrors.Validation("notification must have an id")
	}
	if n.Title == "" {
		return apperrors.Validation("notification must have a title")
	}
	if n.Status != model.StatusNew {
		return apperrors.Validation("new notifications must be in status %q, got %q", model.StatusNew, n.Status)
	}

	if err := s.repo.Save(ctx, n); err != nil {
		return err
	}
	metrics.IncrementNotificationsCreated(string(n.Metadata.Source))

	if err := s.events.PublishEvent(ctx, event.New(event.TypeNotificationCreated, n)); err != nil {
		s.logger.Warn("Notification persisted but created event failed",
			zap.String("notification_id", n.ID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) AnalyzeNotificationContent(ctx context.Context, n *model.Notification) (bool, error) {
	var actionRequired bool
	err := s.breaker.Execute(func() error {
		var err error
		actionRequired, err = s.agent.Analyze(ctx, n)
		return err
	})
	if err != nil {
		return false, apperrors.External("analysis failed", err)
	}
	return actionRequired, nil
}

func (s *Service) GenerateResponse(ctx context.Context, n *model.Notification) (string, error) {
	var response string
	err := s.breaker.Execute(func() error {
		var err error
		response, err = s.agent.Respond(ctx, n)
		return err
	})
	if err != nil {
		return "", apperrors.External("response generation failed", err)
	}
	return response, nil
}

func (s *Service) ExecuteAction(ctx context.Context, n *model.Notification) error {
	if s.actions == nil {
		return apperrors.Validation("no action executor configured for source %q", n.Metadata.Source)
	}
	return s.actions.ExecuteAction(ctx, n)
}
