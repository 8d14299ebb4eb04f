package integration

import (
	"context"

	"notifyhub/internal/model"
)

// ServiceType identifies a provider integration.
type ServiceType string

const (
	ServiceTypeGithub    ServiceType = "github"
	ServiceTypeGitlab    ServiceType = "gitlab"
	ServiceTypeJira      ServiceType = "jira"
	ServiceTypeGoogle    ServiceType = "google"
	ServiceTypeMicrosoft ServiceType = "microsoft"
	ServiceTypeLinkedin  ServiceType = "linkedin"
)

// Config carries everything needed to stand up one provider integration.
// Settings are provider-specific and opaque to the coordinator.
type Config struct {
	ServiceType ServiceType       `yaml:"service_type" json:"service_type"`
	Settings    map[string]string `yaml:"settings" json:"settings"`
}

// Service is the adapter capability bridging one external provider
// to and from notifications. Concrete HTTP clients live outside this
// module; the coordinator stays ignorant of their types.
type Service interface {
	ServiceType() ServiceType
	Initialize(ctx context.Context, cfg Config) error
	TestConnection(ctx context.Context) error
	// SyncNotifications pulls fresh provider events, already normalized
	// into notifications in status New.
	SyncNotifications(ctx context.Context) ([]*model.Notification, error)
	SendResponse(ctx context.Context, n *model.Notification, response string) error
	ExecuteAction(ctx context.Context, n *model.Notification) error
}

// Factory builds the integration instance for a service type.
type Factory func(t ServiceType) (Service, error)

// serviceTypeForSource is the fixed source->provider mapping. Email
// deliberately maps to the Google integration; that is a designated
// default, not a universal truth.
func serviceTypeForSource(source model.NotificationSource) (ServiceType, bool) {
	switch source {
	case model.SourceEmail:
		return ServiceTypeGoogle, true
	case model.SourceGithub:
		return ServiceTypeGithub, true
	case model.SourceGitlab:
		return ServiceTypeGitlab, true
	case model.SourceJira:
		return ServiceTypeJira, true
	case model.SourceGoogle:
		return ServiceTypeGoogle, true
	case model.SourceMicrosoft:
		return ServiceTypeMicrosoft, true
	case model.SourceLinkedin:
		return ServiceTypeLinkedin, true
	default:
		return "", false
	}
}
