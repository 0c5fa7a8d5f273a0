package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/garnizeh/servicehub/pkg/models"
)

func (s *Store) ListNotifications(ctx context.Context, recipient string) ([]models.Notification, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, kind, title, body, request_id, recipient_email, read, created FROM notifications WHERE recipient_email = $1 ORDER BY created, id`, recipient)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := []models.Notification{}
	for rows.Next() {
		var (
			n    models.Notification
			kind string
		)
		if err := rows.Scan(&n.ID, &kind, &n.Title, &n.Body, &n.RequestID, &n.RecipientEmail, &n.Read, &n.Created); err != nil {
			return nil, err
		}
		n.Kind = models.NotificationKind(kind)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) ReplaceNotifications(ctx context.Context, recipient string, feed []models.Notification) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM notifications WHERE recipient_email = $1`, recipient); err != nil {
			return fmt.Errorf("clear notifications: %w", err)
		}
		rows := make([][]any, 0, len(feed))
		for _, n := range feed {
			if n.RecipientEmail != recipient {
				s.logger.Warn("skipping notification for another recipient", "id", n.ID, "recipient", n.RecipientEmail)
				continue
			}
			rows = append(rows, []any{n.ID, n.RecipientEmail, string(n.Kind), n.Title, n.Body, n.RequestID, n.Read, n.Created})
		}
		if len(rows) == 0 {
			return nil
		}
		_, err := tx.CopyFrom(ctx, pgx.Identifier{"notifications"},
			[]string{"id", "recipient_email", "kind", "title", "body", "request_id", "read", "created"},
			pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("insert notifications: %w", err)
		}
		return nil
	})
}
