package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garnizeh/servicehub/pkg/models"
)

func (r *SQLiteRepo) ListNotifications(ctx context.Context, recipient string) ([]models.Notification, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, kind, title, body, request_id, recipient_email, read, created FROM notifications WHERE recipient_email = ? ORDER BY created, id`, recipient)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := []models.Notification{}
	for rows.Next() {
		var (
			n    models.Notification
			read int
		)
		if err := rows.Scan(&n.ID, &n.Kind, &n.Title, &n.Body, &n.RequestID, &n.RecipientEmail, &read, &n.Created); err != nil {
			return nil, err
		}
		n.Read = read != 0
		out = append(out, n)
	}
	return out, rows.Err()
}

// ReplaceNotifications swaps the recipient's feed in one transaction.
// Entries addressed to someone else are skipped.
func (r *SQLiteRepo) ReplaceNotifications(ctx context.Context, recipient string, feed []models.Notification) error {
	return r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM notifications WHERE recipient_email = ?`, recipient); err != nil {
			return fmt.Errorf("clear notifications: %w", err)
		}
		for _, n := range feed {
			if n.RecipientEmail != recipient {
				r.logger.Warn("skipping notification for another recipient", "id", n.ID, "recipient", n.RecipientEmail)
				continue
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO notifications (id, recipient_email, kind, title, body, request_id, read, created) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				n.ID, n.RecipientEmail, n.Kind, n.Title, n.Body, n.RequestID, boolToInt(n.Read), n.Created)
			if err != nil {
				return fmt.Errorf("insert notification %s: %w", n.ID, err)
			}
		}
		return nil
	})
}
