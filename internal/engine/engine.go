package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"notifyhub/internal/apperrors"
	"notifyhub/internal/model"
	"notifyhub/internal/repository"
	"notifyhub/pkg/metrics"
)

// Engine runs submitted jobs to a terminal state. It guarantees at most
// one concurrent execution attempt per job: a failed-but-retryable job is
// reverted to Pending and immediately re-driven by the same goroutine, so
// no external re-entry is needed. Handler errors are isolated per job and
// never abort the engine.
//
// The handler registry and the active-job table are the only shared
// mutable structures; their locks cover lookup/insert/remove only and are
// never held across handler or repository I/O.
type Engine struct {
	handlersMu sync.RWMutex
	handlers   map[string]Handler

	jobsMu sync.RWMutex
	jobs   map[string]*model.Job

	// store receives job snapshots for audit; losing a write never
	// affects execution, the active table stays authoritative.
	store  repository.Repository[*model.Job]
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewEngine(store repository.Repository[*model.Job], logger *zap.Logger) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		handlers: make(map[string]Handler),
		jobs:     make(map[string]*model.Job),
		store:    store,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// RegisterHandler registers the handler for its job type. Handlers are
// not replaceable; a second registration is a conflict.
func (e *Engine) RegisterHandler(h Handler) error {
	if h == nil || h.JobType() == "" {
		return apperrors.Validation("handler must declare a job type")
	}

	e.handlersMu.Lock()
	defer e.handlersMu.Unlock()

	if _, exists := e.handlers[h.JobType()]; exists {
		return apperrors.Conflict("handler for job type %q already registered", h.JobType())
	}
	e.handlers[h.JobType()] = h

	e.logger.Info("Handler registered", zap.String("job_type", h.JobType()))
	return nil
}

// SubmitJob accepts a pending job, tracks it in the active table, and
// schedules asynchronous execution. No ordering is guaranteed across
// different job types.
func (e *Engine) SubmitJob(ctx context.Context, job *model.Job) (string, error) {
	if job == nil {
		return "", apperrors.Validation("job must not be nil")
	}

	e.handlersMu.RLock()
	handler, ok := e.handlers[job.Metadata.JobType]
	e.handlersMu.RUnlock()
	if !ok {
		return "", apperrors.Validation("no handler registered for job type %q", job.Metadata.JobType)
	}

	// status is read under jobsMu: a resubmitted job may be mutated by
	// its executor at any moment
	e.jobsMu.Lock()
	if _, exists := e.jobs[job.ID]; exists {
		e.jobsMu.Unlock()
		return "", apperrors.Validation("job %s already submitted", job.ID)
	}
	if job.Status != model.JobStatusPending {
		e.jobsMu.Unlock()
		return "", apperrors.Validation("job %s is %s, only pending jobs can be submitted", job.ID, job.Status)
	}
	e.jobs[job.ID] = job
	e.jobsMu.Unlock()

	metrics.ActiveJobs.Inc()
	e.persist(job)

	e.logger.Info("Job submitted",
		zap.String("job_id", job.ID),
		zap.String("job_type", job.Metadata.JobType),
		zap.String("priority", string(job.Priority)),
	)

	e.wg.Add(1)
	go e.execute(job, handler)

	return job.ID, nil
}

// GetJobStatus returns the status of an active job. Completed and Failed
// jobs are swept from the active table and report not found; Cancelled,
// Pending, and Running stay visible.
func (e *Engine) GetJobStatus(id string) (model.JobStatus, bool) {
	e.jobsMu.RLock()
	defer e.jobsMu.RUnlock()

	job, ok := e.jobs[id]
	if !ok {
		return "", false
	}
	return job.Status, true
}

// CancelJob flips a Pending or Running job to Cancelled. Cancellation is
// cooperative: an in-flight handler is not interrupted, but its result is
// discarded once it returns.
func (e *Engine) CancelJob(id string) error {
	e.jobsMu.Lock()
	job, ok := e.jobs[id]
	if !ok {
		e.jobsMu.Unlock()
		return apperrors.NotFound("job %s not found", id)
	}
	if !job.Cancel() {
		status := job.Status
		e.jobsMu.Unlock()
		return apperrors.Validation("job %s is %s and cannot be cancelled", id, status)
	}
	e.jobsMu.Unlock()

	metrics.RecordJobExecution(job.Metadata.JobType, "cancelled")
	e.persist(job)

	e.logger.Info("Job cancelled", zap.String("job_id", id))
	return nil
}

// ActiveJobCount reports how many jobs the engine is tracking.
func (e *Engine) ActiveJobCount() int {
	e.jobsMu.RLock()
	defer e.jobsMu.RUnlock()
	return len(e.jobs)
}

// Shutdown stops accepting retries and waits for in-flight handlers,
// bounded by ctx. In-flight jobs are lost on shutdown by design.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("engine shutdown timed out: %w", ctx.Err())
	}
}

// execute drives one job to a terminal state. It loops: each iteration is
// one attempt, and a retryable failure reverts the job to Pending before
// the next pass. Locks are taken only around state flips.
func (e *Engine) execute(job *model.Job, h Handler) {
	defer e.wg.Done()

	for {
		e.jobsMu.Lock()
		if job.Status != model.JobStatusPending {
			// cancelled before this attempt started
			e.jobsMu.Unlock()
			return
		}
		job.Start()
		e.jobsMu.Unlock()
		e.persist(job)

		start := time.Now()
		err := e.invoke(h, job)
		metrics.RecordJobDuration(job.Metadata.JobType, time.Since(start))

		e.jobsMu.Lock()
		if job.Status == model.JobStatusCancelled {
			// cancelled mid-flight; the attempt's outcome is discarded
			e.jobsMu.Unlock()
			return
		}

		if err == nil {
			job.Complete()
			delete(e.jobs, job.ID)
			e.jobsMu.Unlock()

			metrics.ActiveJobs.Dec()
			metrics.RecordJobExecution(job.Metadata.JobType, "completed")
			e.persist(job)
			e.logger.Info("Job completed",
				zap.String("job_id", job.ID),
				zap.String("job_type", job.Metadata.JobType),
			)
			return
		}

		job.RecordFailure(err.Error())
		if job.Status == model.JobStatusFailed {
			delete(e.jobs, job.ID)
			e.jobsMu.Unlock()

			metrics.ActiveJobs.Dec()
			metrics.RecordJobExecution(job.Metadata.JobType, "failed")
			e.persist(job)
			e.logger.Error("Job failed permanently",
				zap.String("job_id", job.ID),
				zap.String("job_type", job.Metadata.JobType),
				zap.Int("retry_count", job.Metadata.RetryCount),
				zap.String("last_error", job.Metadata.LastError),
			)
			return
		}
		e.jobsMu.Unlock()

		metrics.RecordJobExecution(job.Metadata.JobType, "retried")
		e.persist(job)
		e.logger.Warn("Job attempt failed, retrying",
			zap.String("job_id", job.ID),
			zap.String("job_type", job.Metadata.JobType),
			zap.Int("retry_count", job.Metadata.RetryCount),
			zap.Error(err),
		)

		select {
		case <-e.ctx.Done():
			return
		default:
		}
	}
}

// invoke runs the handler with panic isolation: a panicking handler is
// recorded as a failed attempt, not a crashed engine.
func (e *Engine) invoke(h Handler, job *model.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Handler panic recovered",
				zap.String("job_id", job.ID),
				zap.String("job_type", job.Metadata.JobType),
				zap.Any("panic", r),
			)
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(e.ctx, job)
}

func (e *Engine) persist(job *model.Job) {
	if e.store == nil {
		return
	}

	e.jobsMu.RLock()
	snapshot := *job
	e.jobsMu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.store.Save(ctx, &snapshot); err != nil {
		e.logger.Warn("Failed to persist job snapshot",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
	}
}
