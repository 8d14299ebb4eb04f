package integration

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"notifyhub/internal/apperrors"
	"notifyhub/internal/model"
	"notifyhub/internal/processor"
	"notifyhub/internal/repository"
	"notifyhub/internal/service"
	"notifyhub/pkg/metrics"
)

// JobSubmitter is the slice of the engine the coordinator needs.
type JobSubmitter interface {
	SubmitJob(ctx context.Context, job *model.Job) (string, error)
}

// EventDeduper suppresses provider events that were already ingested.
type EventDeduper interface {
	AcquireOnce(ctx context.Context, source, externalID string) bool
}

// Coordinator owns one integration instance per configured provider,
// runs the periodic sync loop, and bridges responses back to providers.
// A failing provider is logged and skipped; its siblings are unaffected.
type Coordinator struct {
	mu       sync.RWMutex
	services map[ServiceType]Service

	factory     Factory
	repo        repository.Repository[*model.Notification]
	submitter   JobSubmitter
	deduper     EventDeduper
	svc         service.NotificationService
	logger      *zap.Logger
	callTimeout time.Duration
	maxRetries  int
}

func NewCoordinator(
	factory Factory,
	repo repository.Repository[*model.Notification],
	submitter JobSubmitter,
	deduper EventDeduper,
	maxRetries int,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		services:    make(map[ServiceType]Service),
		factory:     factory,
		repo:        repo,
		submitter:   submitter,
		deduper:     deduper,
		logger:      logger,
		callTimeout: 10 * time.Second,
		maxRetries:  maxRetries,
	}
}

// SetNotificationService wires the creation/response capability. Set
// after construction because the service itself needs the coordinator
// as its action executor.
func (c *Coordinator) SetNotificationService(svc service.NotificationService) {
	c.svc = svc
}

// InitializeService builds the integration for cfg.ServiceType, runs its
// Initialize, and registers it, replacing any prior instance.
func (c *Coordinator) InitializeService(ctx context.Context, cfg Config) error {
	integ, err := c.factory(cfg.ServiceType)
	if err != nil {
		return apperrors.Validation("unsupported service type %q: %v", cfg.ServiceType, err)
	}

	initCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	if err := integ.Initialize(initCtx, cfg); err != nil {
		return apperrors.External("failed to initialize integration", err)
	}

	c.mu.Lock()
	c.services[cfg.ServiceType] = integ
	c.mu.Unlock()

	c.logger.Info("Integration initialized", zap.String("service_type", string(cfg.ServiceType)))
	return nil
}

// GetServiceForSource resolves the integration handling a notification
// source.
func (c *Coordinator) GetServiceForSource(source model.NotificationSource) (Service, error) {
	t, ok := serviceTypeForSource(source)
	if !ok {
		return nil, apperrors.Validation("no service type mapped for source %q", source)
	}

	c.mu.RLock()
	integ, ok := c.services[t]
	c.mu.RUnlock()
	if !ok {
		return nil, apperrors.NotFound("no %s integration registered", t)
	}
	return integ, nil
}

// Run drives the sync loop until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.logger.Info("Integration sync loop started", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Integration sync loop stopped")
			return
		case <-ticker.C:
			c.SyncAll(ctx)
		}
	}
}

// SyncAll syncs every registered integration once. Per-integration
// failures are isolated.
func (c *Coordinator) SyncAll(ctx context.Context) {
	c.mu.RLock()
	services := make([]Service, 0, len(c.services))
	for _, s := range c.services {
		services = append(services, s)
	}
	c.mu.RUnlock()

	for _, integ := range services {
		start := time.Now()
		if err := c.syncOne(ctx, integ); err != nil {
			metrics.RecordSyncDuration(string(integ.ServiceType()), "error", time.Since(start))
			c.logger.Error("Integration sync failed",
				zap.String("service_type", string(integ.ServiceType())),
				zap.Error(err),
			)
			continue
		}
		metrics.RecordSyncDuration(string(integ.ServiceType()), "ok", time.Since(start))
	}
}

func (c *Coordinator) syncOne(ctx context.Context, integ Service) error {
	syncCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	notifications, err := integ.SyncNotifications(syncCtx)
	if err != nil {
		return apperrors.External("sync failed", err)
	}

	for _, n := range notifications {
		if c.deduper != nil && n.Metadata.ExternalID != "" {
			if !c.deduper.AcquireOnce(ctx, string(n.Metadata.Source), n.Metadata.ExternalID) {
				continue
			}
		}

		if err := c.svc.CreateNotification(ctx, n); err != nil {
			c.logger.Error("Failed to create notification from provider event",
				zap.String("service_type", string(integ.ServiceType())),
				zap.String("external_id", n.Metadata.ExternalID),
				zap.Error(err),
			)
			continue
		}

		if err := c.submitProcessJob(ctx, n); err != nil {
			c.logger.Error("Failed to submit process job",
				zap.String("notification_id", n.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (c *Coordinator) submitProcessJob(ctx context.Context, n *model.Notification) error {
	payload, err := processor.NewPayload(n.ID, processor.ActionProcess)
	if err != nil {
		return apperrors.Internal("failed to build process payload", err)
	}

	job := model.NewJob(model.JobTypeProcessNotification, payload, priorityFor(n), c.maxRetries)
	_, err = c.submitter.SubmitJob(ctx, job)
	return err
}

func priorityFor(n *model.Notification) model.JobPriority {
	switch n.Priority {
	case model.PriorityCritical:
		return model.JobPriorityCritical
	case model.PriorityHigh:
		return model.JobPriorityHigh
	case model.PriorityLow:
		return model.JobPriorityLow
	default:
		return model.JobPriorityNormal
	}
}

// ProcessNotification generates a response, forwards it to the
// originating provider, and marks the notification ActionTaken.
func (c *Coordinator) ProcessNotification(ctx context.Context, n *model.Notification) error {
	integ, err := c.GetServiceForSource(n.Metadata.Source)
	if err != nil {
		return err
	}

	response, err := c.svc.GenerateResponse(ctx, n)
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	if err := integ.SendResponse(sendCtx, n, response); err != nil {
		return apperrors.External("failed to send response", err)
	}

	n.MarkActionTaken()
	return c.repo.Save(ctx, n)
}

// ExecuteAction implements service.ActionExecutor by delegating to the
// originating integration.
func (c *Coordinator) ExecuteAction(ctx context.Context, n *model.Notification) error {
	integ, err := c.GetServiceForSource(n.Metadata.Source)
	if err != nil {
		return err
	}

	actCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	if err := integ.ExecuteAction(actCtx, n); err != nil {
		return apperrors.External("failed to execute provider action", err)
	}
	return nil
}

// TestConnections reports per-provider health. An unreachable provider
// shows up as false; the call itself never fails.
func (c *Coordinator) TestConnections(ctx context.Context) map[ServiceType]bool {
	c.mu.RLock()
	services := make(map[ServiceType]Service, len(c.services))
	for t, s := range c.services {
		services[t] = s
	}
	c.mu.RUnlock()

	results := make(map[ServiceType]bool, len(services))
	for t, integ := range services {
		testCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		err := integ.TestConnection(testCtx)
		cancel()

		results[t] = err == nil
		if err != nil {
			c.logger.Warn("Integration health check failed",
				zap.String("service_type", string(t)),
				zap.Error(err),
			)
		}
	}
	return results
}
