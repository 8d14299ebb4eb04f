package service

import (
	"context"

	"notifyhub/internal/model"
)

// NotificationService is the semantic-work capability consumed by the
// processor and coordinator: creation, content analysis, response
// generation, and action execution.
type NotificationService interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	AnalyzeNotificationContent(ctx context.Context, n *model.Notification) (bool, error)
	GenerateResponse(ctx context.Context, n *model.Notification) (string, error)
	ExecuteAction(ctx context.Context, n *model.Notification) error
}
