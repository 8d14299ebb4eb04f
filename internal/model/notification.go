package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationPriority string

const (
	PriorityLow      NotificationPriority = "low"
	PriorityMedium   NotificationPriority = "medium"
	PriorityHigh     NotificationPriority = "high"
	PriorityCritical NotificationPriority = "critical"
)

type NotificationStatus string

const (
	StatusNew            NotificationStatus = "new"
	StatusRead           NotificationStatus = "read"
	StatusActionRequired NotificationStatus = "action_required"
	StatusActionTaken    NotificationStatus = "action_taken"
	StatusArchived       NotificationStatus = "archived"
	StatusDeleted        NotificationStatus = "deleted"
)

// NotificationSource identifies the provider that produced the event.
type NotificationSource string

const (
	SourceEmail     NotificationSource = "email"
	SourceGithub    NotificationSource = "github"
	SourceGitlab    NotificationSource = "gitlab"
	SourceJira      NotificationSource = "jira"
	SourceMicrosoft NotificationSource = "microsoft"
	SourceGoogle    NotificationSource = "google"
	SourceLinkedin  NotificationSource = "linkedin"
)

// CustomSource builds a source outside the closed provider set.
func CustomSource(name string) NotificationSource {
	return NotificationSource("custom:" + name)
}

type NotificationMetadata struct {
	Source     NotificationSource `json:"source"`
	ExternalID string             `json:"external_id,omitempty"`
	URL        string             `json:"url,omitempty"`
	Tags       []string           `json:"tags,omitempty"`
	CustomData map[string]string  `json:"custom_data,omitempty"`

	// PendingEvent records, in the same write as a status transition, the
	// lifecycle event type announcing it. It is cleared once the event has
	// been handed to the broker; a non-empty value after a crash or publish
	// failure means the event still owes delivery.
	PendingEvent string `json:"pending_event,omitempty"`
}

// Notification is the canonical record of an external event needing
// attention. Status moves only through the named mutators below; each
// mutation bumps UpdatedAt.
type Notification struct {
	ID            string               `json:"id"`
	Title         string               `json:"title"`
	Content       string               `json:"content"`
	Priority      NotificationPriority `json:"priority"`
	Status        NotificationStatus   `json:"status"`
	Metadata      NotificationMetadata `json:"metadata"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
	ReadAt        *time.Time           `json:"read_at,omitempty"`
	ActionTakenAt *time.Time           `json:"action_taken_at,omitempty"`
}

// NewNotification creates a notification in status New.
func NewNotification(title, content string, priority NotificationPriority, meta NotificationMetadata) *Notification {
	now := time.Now().UTC()
	return &Notification{
		ID:        uuid.NewString(),
		Title:     title,
		Content:   content,
		Priority:  priority,
		Status:    StatusNew,
		Metadata:  meta,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (n *Notification) touch() {
	now := time.Now().UTC()
	if !now.After(n.UpdatedAt) {
		// keep UpdatedAt strictly monotonic even on coarse clocks
		now = n.UpdatedAt.Add(time.Nanosecond)
	}
	n.UpdatedAt = now
}

func (n *Notification) MarkRead() {
	n.touch()
	n.Status = StatusRead
	t := n.UpdatedAt
	n.ReadAt = &t
}

func (n *Notification) MarkActionRequired() {
	n.touch()
	n.Status = StatusActionRequired
}

func (n *Notification) MarkActionTaken() {
	n.touch()
	n.Status = StatusActionTaken
	t := n.UpdatedAt
	n.ActionTakenAt = &t
}

func (n *Notification) Archive() {
	n.touch()
	n.Status = StatusArchived
}

// MarkDeleted is the soft delete: the row stays in the store with status
// Deleted. Physical repository deletes are reserved for retention cleanup.
func (n *Notification) MarkDeleted() {
	n.touch()
	n.Status = StatusDeleted
}

// SetCustomData stores a key under metadata custom data, allocating the
// map on first use.
func (n *Notification) SetCustomData(key, value string) {
	if n.Metadata.CustomData == nil {
		n.Metadata.CustomData = make(map[string]string)
	}
	n.Metadata.CustomData[key] = value
	n.touch()
}

// EntityID implements the cache/repository identity contract.
func (n *Notification) EntityID() string {
	return n.ID
}
