package postgres

import (
	"context"
	"fmt"

	"github.com/garnizeh/servicehub/pkg/models"
)

func (s *Store) CreateActivity(ctx context.Context, a *models.Activity) (int64, error) {
	if a == nil {
		return 0, fmt.Errorf("activity is nil")
	}
	if a.Created == 0 {
		a.Created = now()
	}
	err := s.pool.QueryRow(ctx, `INSERT INTO request_activities (request_id, actor_email, actor_role, action, detail, created) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		a.RequestID, a.ActorEmail, string(a.ActorRole), a.Action, a.Detail, a.Created).Scan(&a.ID)
	if err != nil {
		return 0, fmt.Errorf("insert activity: %w", err)
	}
	return a.ID, nil
}

func (s *Store) ListByRequest(ctx context.Context, requestID int64, limit, offset int) ([]models.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.pool.Query(ctx, `SELECT id, request_id, actor_email, actor_role, action, detail, created FROM request_activities WHERE request_id = $1 ORDER BY id DESC LIMIT $2 OFFSET $3`, requestID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	out := []models.Activity{}
	for rows.Next() {
		var (
			a    models.Activity
			role string
		)
		if err := rows.Scan(&a.ID, &a.RequestID, &a.ActorEmail, &role, &a.Action, &a.Detail, &a.Created); err != nil {
			return nil, err
		}
		a.ActorRole = models.Role(role)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) RecordActivity(ctx context.Context, a models.Activity) error {
	_, err := s.CreateActivity(ctx, &a)
	return err
}
