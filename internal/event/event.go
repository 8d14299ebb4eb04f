package event

import (
	"time"

	"notifyhub/internal/model"
)

type Type string

const (
	TypeNotificationCreated        Type = "notification.created"
	TypeNotificationRead           Type = "notification.read"
	TypeNotificationActionRequired Type = "notification.action_required"
	TypeNotificationActionTaken    Type = "notification.action_taken"
	TypeNotificationResponseReady  Type = "notification.response_ready"
	TypeNotificationArchived       Type = "notification.archived"
	TypeNotificationDeleted        Type = "notification.deleted"
)

// NotificationEvent describes one lifecycle transition. Events are
// published only after the state they describe is durable.
type NotificationEvent struct {
	Type           Type                     `json:"type"`
	NotificationID string                   `json:"notification_id"`
	Source         model.NotificationSource `json:"source"`
	Status         model.NotificationStatus `json:"status"`
	OccurredAt     time.Time                `json:"occurred_at"`
}

func New(t Type, n *model.Notification) NotificationEvent {
	return NotificationEvent{
		Type:           t,
		NotificationID: n.ID,
		Source:         n.Metadata.Source,
		Status:         n.Status,
		OccurredAt:     time.Now().UTC(),
	}
}
