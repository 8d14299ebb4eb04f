package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// JobPriority is advisory only; the engine does not reorder by it.
type JobPriority string

const (
	JobPriorityLow      JobPriority = "low"
	JobPriorityNormal   JobPriority = "normal"
	JobPriorityHigh     JobPriority = "high"
	JobPriorityCritical JobPriority = "critical"
)

const (
	JobTypeProcessNotification = "notification.process"
	JobTypeSyncIntegrations    = "integration.sync"
	JobTypeCleanup             = "maintenance.cleanup"
)

// CustomJobType builds a job type outside the closed set.
func CustomJobType(name string) string {
	return "custom:" + name
}

type JobMetadata struct {
	JobType    string `json:"job_type"`
	RetryCount int    `json:"retry_count"`
	MaxRetries int    `json:"max_retries"`
	LastError  string `json:"last_error,omitempty"`
}

// Job is an asynchronous unit of work. The payload is an opaque contract
// between submitter and handler; the engine never inspects it.
type Job struct {
	ID          string          `json:"id"`
	Payload     json.RawMessage `json:"payload"`
	Priority    JobPriority     `json:"priority"`
	Status      JobStatus       `json:"status"`
	Metadata    JobMetadata     `json:"metadata"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// NewJob creates a pending job of the given type. maxRetries bounds the
// number of failed attempts before the job goes Failed.
func NewJob(jobType string, payload json.RawMessage, priority JobPriority, maxRetries int) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:       uuid.NewString(),
		Payload:  payload,
		Priority: priority,
		Status:   JobStatusPending,
		Metadata: JobMetadata{
			JobType:    jobType,
			MaxRetries: maxRetries,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (j *Job) touch() {
	now := time.Now().UTC()
	if !now.After(j.UpdatedAt) {
		now = j.UpdatedAt.Add(time.Nanosecond)
	}
	j.UpdatedAt = now
}

// Start moves Pending -> Running.
func (j *Job) Start() {
	j.touch()
	j.Status = JobStatusRunning
	t := j.UpdatedAt
	j.StartedAt = &t
}

// Complete moves Running -> Completed.
func (j *Job) Complete() {
	j.touch()
	j.Status = JobStatusCompleted
	t := j.UpdatedAt
	j.CompletedAt = &t
}

// RecordFailure bumps the retry count, stores the handler error message,
// and either reverts to Pending (attempts remain) or lands on Failed.
// Failed is reachable only once RetryCount == MaxRetries.
func (j *Job) RecordFailure(errMsg string) {
	j.touch()
	j.Metadata.LastError = errMsg
	if j.Metadata.RetryCount < j.Metadata.MaxRetries {
		j.Metadata.RetryCount++
	}
	if j.Metadata.RetryCount >= j.Metadata.MaxRetries {
		j.Status = JobStatusFailed
		t := j.UpdatedAt
		j.CompletedAt = &t
		return
	}
	j.Status = JobStatusPending
}

// Cancel moves Pending/Running -> Cancelled. Cancellation is cooperative:
// an in-flight handler is not interrupted.
func (j *Job) Cancel() bool {
	if j.Status != JobStatusPending && j.Status != JobStatusRunning {
		return false
	}
	j.touch()
	j.Status = JobStatusCancelled
	return true
}

// EntityID implements the cache/repository identity contract.
func (j *Job) EntityID() string {
	return j.ID
}
