package integration

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"notifyhub/internal/apperrors"
	"notifyhub/internal/model"
	"notifyhub/internal/processor"
)

type fakeIntegration struct {
	serviceType   ServiceType
	initErr       error
	connErr       error
	syncErr       error
	pending       []*model.Notification
	syncCalls     int
	sentResponses []string
	actionCalls   int
}

func (f *fakeIntegration) ServiceType() ServiceType { return f.serviceType }

func (f *fakeIntegration) Initialize(context.Context, Config) error { return f.initErr }

func (f *fakeIntegration) TestConnection(context.Context) error { return f.connErr }

func (f *fakeIntegration) SyncNotifications(context.Context) ([]*model.Notification, error) {
	f.syncCalls++
	if f.syncErr != nil {
		return nil, f.syncErr
	}
	out := f.pending
	f.pending = nil
	return out, nil
}

func (f *fakeIntegration) SendResponse(_ context.Context, _ *model.Notification, response string) error {
	f.sentResponses = append(f.sentResponses, response)
	return nil
}

func (f *fakeIntegration) ExecuteAction(context.Context, *model.Notification) error {
	f.actionCalls++
	return nil
}

type memoryRepo struct {
	entities map[string]*model.Notification
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{entities: make(map[string]*model.Notification)}
}

func (r *memoryRepo) Save(_ context.Context, n *model.Notification) error {
	r.entities[n.ID] = n
	return nil
}

func (r *memoryRepo) FindByID(_ context.Context, id string) (*model.Notification, error) {
	n, ok := r.entities[id]
	if !ok {
		return nil, apperrors.NotFound("notification %s not found", id)
	}
	return n, nil
}

func (r *memoryRepo) FindAll(_ context.Context) ([]*model.Notification, error) {
	out := make([]*model.Notification, 0, len(r.entities))
	for _, n := range r.entities {
		out = append(out, n)
	}
	return out, nil
}

func (r *memoryRepo) Delete(_ context.Context, id string) error {
	delete(r.entities, id)
	return nil
}

type fakeSubmitter struct {
	jobs []*model.Job
}

func (s *fakeSubmitter) SubmitJob(_ context.Context, job *model.Job) (string, error) {
	s.jobs = append(s.jobs, job)
	return job.ID, nil
}

type fakeCreationService struct {
	created   []*model.Notification
	createErr error
	response  string
}

func (s *fakeCreationService) CreateNotification(_ context.Context, n *model.Notification) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, n)
	return nil
}

func (s *fakeCreationService) AnalyzeNotificationContent(context.Context, *model.Notification) (bool, error) {
	return false, nil
}

func (s *fakeCreationService) GenerateResponse(context.Context, *model.Notification) (string, error) {
	return s.response, nil
}

func (s *fakeCreationService) ExecuteAction(context.Context, *model.Notification) error {
	return nil
}

type allowAllDeduper struct {
	seen map[string]bool
}

func (d *allowAllDeduper) AcquireOnce(_ context.Context, source, externalID string) bool {
	key := source + ":" + externalID
	if d.seen == nil {
		d.seen = make(map[string]bool)
	}
	if d.seen[key] {
		return false
	}
	d.seen[key] = true
	return true
}

func providerNotification(source model.NotificationSource, externalID string) *model.Notification {
	return model.NewNotification("issue assigned", "new issue on your board", model.PriorityMedium, model.NotificationMetadata{
		Source:     source,
		ExternalID: externalID,
	})
}

type coordFixture struct {
	coord     *Coordinator
	repo      *memoryRepo
	submitter *fakeSubmitter
	svc       *fakeCreationService
	factory   map[ServiceType]*fakeIntegration
}

func newCoordFixture() *coordFixture {
	f := &coordFixture{
		repo:      newMemoryRepo(),
		submitter: &fakeSubmitter{},
		svc:       &fakeCreationService{},
		factory:   make(map[ServiceType]*fakeIntegration),
	}
	factory := Factory(func(t ServiceType) (Service, error) {
		integ, ok := f.factory[t]
		if !ok {
			return nil, errors.New("unsupported")
		}
		return integ, nil
	})
	f.coord = NewCoordinator(factory, f.repo, f.submitter, &allowAllDeduper{}, 3, zap.NewNop())
	f.coord.SetNotificationService(f.svc)
	return f
}

func (f *coordFixture) register(t *testing.T, integ *fakeIntegration) {
	t.Helper()
	f.factory[integ.serviceType] = integ
	require.NoError(t, f.coord.InitializeService(context.Background(), Config{ServiceType: integ.serviceType}))
}

func TestCoordinator_InitializeService(t *testing.T) {
	f := newCoordFixture()

	err := f.coord.InitializeService(context.Background(), Config{ServiceType: ServiceTypeGithub})
	require.True(t, apperrors.IsKind(err, apperrors.KindValidation), "unknown provider is a validation error")

	gh := &fakeIntegration{serviceType: ServiceTypeGithub}
	f.register(t, gh)

	// re-initializing replaces the prior instance
	gh2 := &fakeIntegration{serviceType: ServiceTypeGithub}
	f.factory[ServiceTypeGithub] = gh2
	require.NoError(t, f.coord.InitializeService(context.Background(), Config{ServiceType: ServiceTypeGithub}))

	integ, err := f.coord.GetServiceForSource(model.SourceGithub)
	require.NoError(t, err)
	assert.Same(t, Service(gh2), integ)
}

func TestCoordinator_InitializeFailure(t *testing.T) {
	f := newCoordFixture()
	f.factory[ServiceTypeJira] = &fakeIntegration{serviceType: ServiceTypeJira, initErr: errors.New("bad token")}

	err := f.coord.InitializeService(context.Background(), Config{ServiceType: ServiceTypeJira})
	require.True(t, apperrors.IsKind(err, apperrors.KindExternalService))

	_, err = f.coord.GetServiceForSource(model.SourceJira)
	require.True(t, apperrors.IsKind(err, apperrors.KindNotFound), "failed init must not register")
}

func TestCoordinator_EmailMapsToGoogle(t *testing.T) {
	f := newCoordFixture()
	google := &fakeIntegration{serviceType: ServiceTypeGoogle}
	f.register(t, google)

	integ, err := f.coord.GetServiceForSource(model.SourceEmail)
	require.NoError(t, err)
	assert.Same(t, Service(google), integ)
}

func TestCoordinator_UnmappedSource(t *testing.T) {
	f := newCoordFixture()

	_, err := f.coord.GetServiceForSource(model.CustomSource("pager"))
	require.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestCoordinator_SyncCreatesAndSubmits(t *testing.T) {
	f := newCoordFixture()
	gh := &fakeIntegration{
		serviceType: ServiceTypeGithub,
		pending: []*model.Notification{
			providerNotification(model.SourceGithub, "gh-1"),
			providerNotification(model.SourceGithub, "gh-2"),
		},
	}
	f.register(t, gh)

	f.coord.SyncAll(context.Background())

	require.Len(t, f.svc.created, 2)
	require.Len(t, f.submitter.jobs, 2)
	for _, job := range f.submitter.jobs {
		assert.Equal(t, model.JobTypeProcessNotification, job.Metadata.JobType)
		assert.Equal(t, 3, job.Metadata.MaxRetries)
	}
}

func TestCoordinator_SyncDedupesRepeatedEvents(t *testing.T) {
	f := newCoordFixture()
	gh := &fakeIntegration{
		serviceType: ServiceTypeGithub,
		pending: []*model.Notification{
			providerNotification(model.SourceGithub, "gh-1"),
		},
	}
	f.register(t, gh)

	f.coord.SyncAll(context.Background())

	// the provider hands back the same event on the next sync
	gh.pending = []*model.Notification{providerNotification(model.SourceGithub, "gh-1")}
	f.coord.SyncAll(context.Background())

	assert.Len(t, f.svc.created, 1, "duplicate provider events are dropped")
	assert.Len(t, f.submitter.jobs, 1)
}

func TestCoordinator_SyncPartialFailureIsolation(t *testing.T) {
	f := newCoordFixture()
	broken := &fakeIntegration{serviceType: ServiceTypeGitlab, syncErr: errors.New("rate limited")}
	healthy := &fakeIntegration{
		serviceType: ServiceTypeGithub,
		pending:     []*model.Notification{providerNotification(model.SourceGithub, "gh-1")},
	}
	f.register(t, broken)
	f.register(t, healthy)

	f.coord.SyncAll(context.Background())

	assert.Equal(t, 1, broken.syncCalls)
	assert.Equal(t, 1, healthy.syncCalls)
	assert.Len(t, f.svc.created, 1, "a failing provider must not starve its siblings")
}

func TestCoordinator_ProcessNotification(t *testing.T) {
	f := newCoordFixture()
	f.svc.response = "approved, shipping it"
	jira := &fakeIntegration{serviceType: ServiceTypeJira}
	f.register(t, jira)

	n := providerNotification(model.SourceJira, "JIRA-3")
	n.MarkActionRequired()

	require.NoError(t, f.coord.ProcessNotification(context.Background(), n))

	assert.Equal(t, []string{"approved, shipping it"}, jira.sentResponses)
	assert.Equal(t, model.StatusActionTaken, n.Status)

	stored, err := f.repo.FindByID(context.Background(), n.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusActionTaken, stored.Status)
}

func TestCoordinator_ExecuteActionDelegates(t *testing.T) {
	f := newCoordFixture()
	gh := &fakeIntegration{serviceType: ServiceTypeGithub}
	f.register(t, gh)

	n := providerNotification(model.SourceGithub, "gh-5")
	require.NoError(t, f.coord.ExecuteAction(context.Background(), n))
	assert.Equal(t, 1, gh.actionCalls)

	// no integration registered for this source
	err := f.coord.ExecuteAction(context.Background(), providerNotification(model.SourceLinkedin, "li-1"))
	require.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestCoordinator_TestConnections(t *testing.T) {
	f := newCoordFixture()
	f.register(t, &fakeIntegration{serviceType: ServiceTypeGithub})
	f.register(t, &fakeIntegration{serviceType: ServiceTypeGitlab, connErr: errors.New("401")})

	results := f.coord.TestConnections(context.Background())

	assert.Equal(t, map[ServiceType]bool{
		ServiceTypeGithub: true,
		ServiceTypeGitlab: false,
	}, results)
}

func TestCoordinator_SubmittedPayloadTargetsNotification(t *testing.T) {
	f := newCoordFixture()
	gh := &fakeIntegration{
		serviceType: ServiceTypeGithub,
		pending:     []*model.Notification{providerNotification(model.SourceGithub, "gh-9")},
	}
	f.register(t, gh)

	f.coord.SyncAll(context.Background())

	require.Len(t, f.submitter.jobs, 1)
	require.Len(t, f.svc.created, 1)

	var payload processor.Payload
	require.NoError(t, json.Unmarshal(f.submitter.jobs[0].Payload, &payload))
	assert.Equal(t, f.svc.created[0].ID, payload.NotificationID)
	assert.Equal(t, processor.ActionProcess, payload.ActionType)
}
