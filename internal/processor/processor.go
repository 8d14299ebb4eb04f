package processor

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"notifyhub/internal/apperrors"
	"notifyhub/internal/event"
	"notifyhub/internal/model"
	"notifyhub/internal/repository"
	"notifyhub/internal/service"
)

// ActionType selects which lifecycle step a process job performs.
type ActionType string

const (
	ActionProcess          ActionType = "process"
	ActionGenerateResponse ActionType = "generate_response"
	ActionExecuteAction    ActionType = "execute_action"
)

// Payload is the private contract between job submitters and this
// processor.
type Payload struct {
	NotificationID string     `json:"notification_id"`
	ActionType     ActionType `json:"action_type"`
}

// NewPayload marshals a process payload for submission.
func NewPayload(notificationID string, action ActionType) (json.RawMessage, error) {
	return json.Marshal(Payload{
		NotificationID: notificationID,
		ActionType:     action,
	})
}

// Processor advances one notification per invocation. The semantic work
// (analysis, drafting, provider actions) is delegated to the injected
// NotificationService; this handler owns only the state machine:
//
//	New            --process-->           ActionRequired | Read
//	ActionRequired --generate_response--> ActionRequired (response stored)
//	ActionRequired --execute_action-->    ActionTaken
//
// A transition and the lifecycle event announcing it are recorded in a
// single repository write; the publish follows. An event is never
// observable before the state it describes is durable, and if the broker
// rejects it the recorded event is delivered on the next attempt instead
// of redoing the transition. Every persisted transition is announced at
// least once; when nothing fails, exactly once.
type Processor struct {
	repo   repository.Repository[*model.Notification]
	svc    service.NotificationService
	events event.Publisher
	logger *zap.Logger
}

func NewProcessor(
	repo repository.Repository[*model.Notification],
	svc service.NotificationService,
	events event.Publisher,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		repo:   repo,
		svc:    svc,
		events: events,
		logger: logger,
	}
}

func (p *Processor) JobType() string {
	return model.JobTypeProcessNotification
}

func (p *Processor) Handle(ctx context.Context, job *model.Job) error {
	var payload Payload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return apperrors.Validation("malformed process payload: %v", err)
	}
	if payload.NotificationID == "" {
		return apperrors.Validation("process payload missing notification_id")
	}

	n, err := p.repo.FindByID(ctx, payload.NotificationID)
	if err != nil {
		return err
	}

	if n.Metadata.PendingEvent != "" {
		// a prior attempt persisted a transition whose event never went
		// out; deliver it before doing anything new
		pending := event.Type(n.Metadata.PendingEvent)
		if err := p.flushPending(ctx, n); err != nil {
			return err
		}
		if produces(payload.ActionType, pending) {
			// this invocation's transition is already durable
			return nil
		}
	}

	switch payload.ActionType {
	case ActionProcess:
		return p.process(ctx, n)
	case ActionGenerateResponse:
		return p.generateResponse(ctx, n)
	case ActionExecuteAction:
		return p.executeAction(ctx, n)
	default:
		return apperrors.Validation("unknown action type %q", payload.ActionType)
	}
}

func (p *Processor) process(ctx context.Context, n *model.Notification) error {
	if n.Status != model.StatusNew {
		p.logger.Warn("Process requested for non-new notification, skipping",
			zap.String("notification_id", n.ID),
			zap.String("status", string(n.Status)),
		)
		return nil
	}

	actionRequired, err := p.svc.AnalyzeNotificationContent(ctx, n)
	if err != nil {
		return err
	}

	evtType := event.TypeNotificationRead
	if actionRequired {
		n.MarkActionRequired()
		evtType = event.TypeNotificationActionRequired
	} else {
		n.MarkRead()
	}

	return p.persistThenPublish(ctx, n, evtType)
}

func (p *Processor) generateResponse(ctx context.Context, n *model.Notification) error {
	if n.Status != model.StatusActionRequired {
		return apperrors.Validation("cannot generate response for notification %s in status %s", n.ID, n.Status)
	}

	response, err := p.svc.GenerateResponse(ctx, n)
	if err != nil {
		return err
	}

	// status stays ActionRequired; only the drafted response is stored
	n.SetCustomData("response", response)

	return p.persistThenPublish(ctx, n, event.TypeNotificationResponseReady)
}

func (p *Processor) executeAction(ctx context.Context, n *model.Notification) error {
	if n.Status != model.StatusActionRequired {
		return apperrors.Validation("cannot execute action for notification %s in status %s", n.ID, n.Status)
	}

	if err := p.svc.ExecuteAction(ctx, n); err != nil {
		return err
	}

	n.MarkActionTaken()

	return p.persistThenPublish(ctx, n, event.TypeNotificationActionTaken)
}

func (p *Processor) persistThenPublish(ctx context.Context, n *model.Notification, t event.Type) error {
	// the transition and the event announcing it go down in one write; a
	// failed publish then costs a redelivery, never a lost event
	n.Metadata.PendingEvent = string(t)
	if err := p.repo.Save(ctx, n); err != nil {
		return err
	}
	return p.flushPending(ctx, n)
}

// flushPending publishes the event recorded on the notification and, once
// the broker has it, clears the record. If clearing fails the event may be
// delivered again on a later attempt.
func (p *Processor) flushPending(ctx context.Context, n *model.Notification) error {
	t := event.Type(n.Metadata.PendingEvent)
	if err := p.events.PublishEvent(ctx, event.New(t, n)); err != nil {
		return err
	}

	n.Metadata.PendingEvent = ""
	if err := p.repo.Save(ctx, n); err != nil {
		return err
	}

	p.logger.Info("Notification advanced",
		zap.String("notification_id", n.ID),
		zap.String("status", string(n.Status)),
		zap.String("event", string(t)),
	)
	return nil
}

// produces reports whether an action is the one that records events of
// type t, i.e. whether a flushed pending event completes that action.
func produces(a ActionType, t event.Type) bool {
	switch a {
	case ActionProcess:
		return t == event.TypeNotificationRead || t == event.TypeNotificationActionRequired
	case ActionGenerateResponse:
		return t == event.TypeNotificationResponseReady
	case ActionExecuteAction:
		return t == event.TypeNotificationActionTaken
	default:
		return false
	}
}
