package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"notifyhub/internal/apperrors"
	"notifyhub/internal/model"
)

// JobRepository persists jobs in PostgreSQL so completed and failed work
// stays auditable after the engine sweeps it from the active set.
type JobRepository struct {
	db *pgxpool.Pool
}

func NewJobRepository(db *pgxpool.Pool) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Save(ctx context.Context, j *model.Job) error {
	meta, err := json.Marshal(j.Metadata)
	if err != nil {
		return apperrors.Internal("failed to marshal job metadata", err)
	}

	query := `
		INSERT INTO jobs (id, payload, priority, status, metadata, created_at, updated_at, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			payload = EXCLUDED.payload,
			priority = EXCLUDED.priority,
			status = EXCLUDED.status,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at
	`
	_, err = r.db.Exec(ctx, query,
		j.ID, j.Payload, j.Priority, j.Status, meta,
		j.CreatedAt, j.UpdatedAt, j.StartedAt, j.CompletedAt,
	)
	if err != nil {
		return apperrors.Internal("failed to save job", err)
	}
	return nil
}

func (r *JobRepository) FindByID(ctx context.Context, id string) (*model.Job, error) {
	query := `
		SELECT id, payload, priority, status, metadata, created_at, updated_at, started_at, completed_at
		FROM jobs
		WHERE id = $1
	`
	row := r.db.QueryRow(ctx, query, id)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("job %s not found", id)
		}
		return nil, apperrors.Internal("failed to query job", err)
	}
	return j, nil
}

func (r *JobRepository) FindAll(ctx context.Context) ([]*model.Job, error) {
	query := `
		SELECT id, payload, priority, status, metadata, created_at, updated_at, started_at, completed_at
		FROM jobs
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, apperrors.Internal("failed to query jobs", err)
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, apperrors.Internal("failed to scan job", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("failed to iterate jobs", err)
	}
	return out, nil
}

func (r *JobRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return apperrors.Internal("failed to delete job", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("job %s not found", id)
	}
	return nil
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	var meta []byte
	err := row.Scan(
		&j.ID, &j.Payload, &j.Priority, &j.Status, &meta,
		&j.CreatedAt, &j.UpdatedAt, &j.StartedAt, &j.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &j.Metadata); err != nil {
			return nil, err
		}
	}
	return &j, nil
}
