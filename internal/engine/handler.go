package engine

import (
	"context"

	"notifyhub/internal/model"
)

// Handler performs the actual work for one job type. Handle is invoked by
// the engine with at most one concurrent attempt per job; a returned error
// counts as a failed attempt and feeds the retry bookkeeping.
type Handler interface {
	JobType() string
	Handle(ctx context.Context, job *model.Job) error
}
