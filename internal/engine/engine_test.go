package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"notifyhub/internal/apperrors"
	"notifyhub/internal/model"
)

// testHandler drives scripted outcomes per attempt.
type testHandler struct {
	jobType  string
	attempts atomic.Int32
	fn       func(attempt int32) error
	gate     chan struct{} // when set, Handle blocks until closed
}

func (h *testHandler) JobType() string { return h.jobType }

func (h *testHandler) Handle(_ context.Context, _ *model.Job) error {
	n := h.attempts.Add(1)
	if h.gate != nil {
		<-h.gate
	}
	if h.fn != nil {
		return h.fn(n)
	}
	return nil
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := NewEngine(nil, zap.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = e.Shutdown(ctx)
	})
	return e
}

func waitForSweep(t *testing.T, e *Engine, id string) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, ok := e.GetJobStatus(id)
		return !ok
	}, 2*time.Second, 5*time.Millisecond)
}

func TestEngine_RegisterHandlerConflict(t *testing.T) {
	e := newTestEngine(t)

	first := &testHandler{jobType: "demo"}
	second := &testHandler{jobType: "demo"}

	require.NoError(t, e.RegisterHandler(first))

	err := e.RegisterHandler(second)
	require.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	// first handler stays active
	job := model.NewJob("demo", nil, model.JobPriorityNormal, 1)
	_, err = e.SubmitJob(context.Background(), job)
	require.NoError(t, err)
	waitForSweep(t, e, job.ID)

	assert.Equal(t, int32(1), first.attempts.Load())
	assert.Equal(t, int32(0), second.attempts.Load())
}

func TestEngine_SubmitUnregisteredType(t *testing.T) {
	e := newTestEngine(t)

	job := model.NewJob("nobody-home", nil, model.JobPriorityNormal, 1)
	_, err := e.SubmitJob(context.Background(), job)
	require.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestEngine_SubmitDuplicate(t *testing.T) {
	e := newTestEngine(t)

	h := &testHandler{jobType: "demo", gate: make(chan struct{})}
	require.NoError(t, e.RegisterHandler(h))

	job := model.NewJob("demo", nil, model.JobPriorityNormal, 1)
	_, err := e.SubmitJob(context.Background(), job)
	require.NoError(t, err)

	_, err = e.SubmitJob(context.Background(), job)
	require.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	close(h.gate)
}

func TestEngine_SuccessfulJobIsSwept(t *testing.T) {
	e := newTestEngine(t)

	h := &testHandler{jobType: "demo"}
	require.NoError(t, e.RegisterHandler(h))

	job := model.NewJob("demo", nil, model.JobPriorityNormal, 3)
	id, err := e.SubmitJob(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, job.ID, id)

	waitForSweep(t, e, id)

	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Equal(t, 0, job.Metadata.RetryCount)
	assert.Equal(t, 0, e.ActiveJobCount())
}

func TestEngine_RetriesThenFails(t *testing.T) {
	e := newTestEngine(t)

	h := &testHandler{
		jobType: "demo",
		fn: func(int32) error {
			return apperrors.External("provider down", nil)
		},
	}
	require.NoError(t, e.RegisterHandler(h))

	job := model.NewJob("demo", nil, model.JobPriorityNormal, 2)
	_, err := e.SubmitJob(context.Background(), job)
	require.NoError(t, err)

	waitForSweep(t, e, job.ID)

	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Equal(t, 2, job.Metadata.RetryCount)
	assert.Contains(t, job.Metadata.LastError, "provider down")
	assert.Equal(t, int32(2), h.attempts.Load())
}

func TestEngine_RetriesThenSucceeds(t *testing.T) {
	e := newTestEngine(t)

	h := &testHandler{
		jobType: "demo",
		fn: func(attempt int32) error {
			if attempt < 3 {
				return apperrors.External("flaky", nil)
			}
			return nil
		},
	}
	require.NoError(t, e.RegisterHandler(h))

	job := model.NewJob("demo", nil, model.JobPriorityNormal, 5)
	_, err := e.SubmitJob(context.Background(), job)
	require.NoError(t, err)

	waitForSweep(t, e, job.ID)

	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Equal(t, 2, job.Metadata.RetryCount)
	assert.Equal(t, int32(3), h.attempts.Load())
}

func TestEngine_PanicIsAFailedAttempt(t *testing.T) {
	e := newTestEngine(t)

	h := &testHandler{
		jobType: "demo",
		fn: func(int32) error {
			panic("handler bug")
		},
	}
	require.NoError(t, e.RegisterHandler(h))

	job := model.NewJob("demo", nil, model.JobPriorityNormal, 1)
	_, err := e.SubmitJob(context.Background(), job)
	require.NoError(t, err)

	waitForSweep(t, e, job.ID)

	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Contains(t, job.Metadata.LastError, "handler bug")
}

func TestEngine_CancelRunningJob(t *testing.T) {
	e := newTestEngine(t)

	h := &testHandler{jobType: "demo", gate: make(chan struct{})}
	require.NoError(t, e.RegisterHandler(h))

	job := model.NewJob("demo", nil, model.JobPriorityNormal, 3)
	_, err := e.SubmitJob(context.Background(), job)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		status, ok := e.GetJobStatus(job.ID)
		return ok && status == model.JobStatusRunning
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, e.CancelJob(job.ID))

	status, ok := e.GetJobStatus(job.ID)
	require.True(t, ok, "cancelled jobs are not swept")
	assert.Equal(t, model.JobStatusCancelled, status)

	// the in-flight handler runs to completion; its result is discarded
	close(h.gate)
	time.Sleep(20 * time.Millisecond)

	status, ok = e.GetJobStatus(job.ID)
	require.True(t, ok)
	assert.Equal(t, model.JobStatusCancelled, status)
}

func TestEngine_CancelCancelledJobFails(t *testing.T) {
	e := newTestEngine(t)

	h := &testHandler{jobType: "demo", gate: make(chan struct{})}
	require.NoError(t, e.RegisterHandler(h))

	job := model.NewJob("demo", nil, model.JobPriorityNormal, 3)
	_, err := e.SubmitJob(context.Background(), job)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		status, ok := e.GetJobStatus(job.ID)
		return ok && status == model.JobStatusRunning
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, e.CancelJob(job.ID))

	err = e.CancelJob(job.ID)
	require.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	close(h.gate)
}

func TestEngine_CancelUnknownJob(t *testing.T) {
	e := newTestEngine(t)

	err := e.CancelJob("missing")
	require.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestEngine_TerminalJobInvisibleToCancel(t *testing.T) {
	e := newTestEngine(t)

	h := &testHandler{jobType: "demo"}
	require.NoError(t, e.RegisterHandler(h))

	job := model.NewJob("demo", nil, model.JobPriorityNormal, 3)
	_, err := e.SubmitJob(context.Background(), job)
	require.NoError(t, err)
	waitForSweep(t, e, job.ID)

	// completed jobs were swept; cancelling them can only fail
	err = e.CancelJob(job.ID)
	require.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestEngine_HandlerFailureIsolation(t *testing.T) {
	e := newTestEngine(t)

	bad := &testHandler{
		jobType: "bad",
		fn: func(int32) error {
			return apperrors.Internal("always broken", nil)
		},
	}
	good := &testHandler{jobType: "good"}
	require.NoError(t, e.RegisterHandler(bad))
	require.NoError(t, e.RegisterHandler(good))

	badJob := model.NewJob("bad", nil, model.JobPriorityNormal, 1)
	goodJob := model.NewJob("good", nil, model.JobPriorityNormal, 1)

	_, err := e.SubmitJob(context.Background(), badJob)
	require.NoError(t, err)
	_, err = e.SubmitJob(context.Background(), goodJob)
	require.NoError(t, err)

	waitForSweep(t, e, badJob.ID)
	waitForSweep(t, e, goodJob.ID)

	assert.Equal(t, model.JobStatusFailed, badJob.Status)
	assert.Equal(t, model.JobStatusCompleted, goodJob.Status)
}
