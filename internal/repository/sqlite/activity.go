package sqlite

import (
	"context"
	"fmt"

	"github.com/garnizeh/servicehub/pkg/models"
)

func (r *SQLiteRepo) CreateActivity(ctx context.Context, a *models.Activity) (int64, error) {
	if a == nil {
		return 0, fmt.Errorf("activity is nil")
	}
	if a.Created == 0 {
		a.Created = now()
	}

	res, err := r.conn.Exec(ctx, `INSERT INTO request_activities (request_id, actor_email, actor_role, action, detail, created) VALUES (?, ?, ?, ?, ?, ?)`,
		a.RequestID, a.ActorEmail, a.ActorRole, a.Action, a.Detail, a.Created)
	if err != nil {
		return 0, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	a.ID = id
	return id, nil
}

// ListByRequest returns the audit trail newest first.
func (r *SQLiteRepo) ListByRequest(ctx context.Context, requestID int64, limit, offset int) ([]models.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.conn.QueryRows(ctx, `SELECT id, request_id, actor_email, actor_role, action, detail, created FROM request_activities WHERE request_id = ? ORDER BY id DESC LIMIT ? OFFSET ?`, requestID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Activity{}
	for rows.Next() {
		var a models.Activity
		if err := rows.Scan(&a.ID, &a.RequestID, &a.ActorEmail, &a.ActorRole, &a.Action, &a.Detail, &a.Created); err != nil {
			return nil, err
		}

		out = append(out, a)
	}

	return out, rows.Err()
}

// RecordActivity stores a directly, for callers that do not go through the job queue.
func (r *SQLiteRepo) RecordActivity(ctx context.Context, a models.Activity) error {
	_, err := r.CreateActivity(ctx, &a)
	return err
}
