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

// NotificationRepository persists notifications in PostgreSQL. Metadata is
// stored as a JSONB column; everything else maps to plain columns.
type NotificationRepository struct {
	db *pgxpool.Pool
}

func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Save(ctx context.Context, n *model.Notification) error {
	meta, err := json.Marshal(n.Metadata)
	if err != nil {
		return apperrors.Internal("failed to marshal notification metadata", err)
	}

	query := `
		INSERT INTO notifications (id, title, content, priority, status, metadata, created_at, updated_at, read_at, action_taken_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			priority = EXCLUDED.priority,
			status = EXCLUDED.status,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at,
			read_at = EXCLUDED.read_at,
			action_taken_at = EXCLUDED.action_taken_at
	`
	_, err = r.db.Exec(ctx, query,
		n.ID, n.Title, n.Content, n.Priority, n.Status, meta,
		n.CreatedAt, n.UpdatedAt, n.ReadAt, n.ActionTakenAt,
	)
	if err != nil {
		return apperrors.Internal("failed to save notification", err)
	}
	return nil
}

func (r *NotificationRepository) FindByID(ctx context.Context, id string) (*model.Notification, error) {
	query := `
		SELECT id, title, content, priority, status, metadata, created_at, updated_at, read_at, action_taken_at
		FROM notifications
		WHERE id = $1
	`
	row := r.db.QueryRow(ctx, query, id)
	n, err := scanNotification(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("notification %s not found", id)
		}
		return nil, apperrors.Internal("failed to query notification", err)
	}
	return n, nil
}

func (r *NotificationRepository) FindAll(ctx context.Context) ([]*model.Notification, error) {
	query := `
		SELECT id, title, content, priority, status, metadata, created_at, updated_at, read_at, action_taken_at
		FROM notifications
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, apperrors.Internal("failed to query notifications", err)
	}
	defer rows.Close()

	var out []*model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, apperrors.Internal("failed to scan notification", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Internal("failed to iterate notifications", err)
	}
	return out, nil
}

func (r *NotificationRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM notifications WHERE id = $1`, id)
	if err != nil {
		return apperrors.Internal("failed to delete notification", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("notification %s not found", id)
	}
	return nil
}

func scanNotification(row pgx.Row) (*model.Notification, error) {
	var n model.Notification
	var meta []byte
	err := row.Scan(
		&n.ID, &n.Title, &n.Content, &n.Priority, &n.Status, &meta,
		&n.CreatedAt, &n.UpdatedAt, &n.ReadAt, &n.ActionTakenAt,
	)
	if err != nil {
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &n.Metadata); err != nil {
			return nil, err
		}
	}
	return &n, nil
}
