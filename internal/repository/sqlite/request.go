package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garnizeh/servicehub/pkg/models"
	"github.com/garnizeh/servicehub/pkg/repository"
)

const requestColumns = `id, title, description, location, budget, payment_method, urgency, requester_email, requester_name, requester_phone, status, finished_by, rated, created, updated`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepo) CreateRequest(ctx context.Context, req *models.Request) error {
	if req == nil {
		return fmt.Errorf("request is nil")
	}
	finished, err := encodeList(req.FinishedBy)
	if err != nil {
		return err
	}

	return r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO requests (`+requestColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			req.ID, req.Title, req.Description, req.Location, req.Budget, req.PaymentMethod, req.Urgency,
			req.RequesterEmail, req.RequesterName, req.RequesterPhone, req.Status, finished, boolToInt(req.Rated),
			req.Created, req.Updated)
		if err != nil {
			if isUniqueViolation(err) {
				return repository.ErrAlreadyExists
			}
			return fmt.Errorf("insert request: %w", err)
		}
		return insertOffers(ctx, tx, req.ID, req.Offers)
	})
}

func (r *SQLiteRepo) GetRequest(ctx context.Context, id int64) (*models.Request, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = ?`, id)
	req, err := scanRequest(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	offers, err := r.listOffers(ctx, `WHERE request_id = ?`, id)
	if err != nil {
		return nil, err
	}
	req.Offers = append(req.Offers, offers[id]...)
	return req, nil
}

// ListRequests returns every request newest first, offers included.
func (r *SQLiteRepo) ListRequests(ctx context.Context) ([]models.Request, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+requestColumns+` FROM requests ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	out := []models.Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, *req)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// the single connection is free again; offers come in one pass
	offers, err := r.listOffers(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Offers = append(out[i].Offers, offers[out[i].ID]...)
	}
	return out, nil
}

func (r *SQLiteRepo) SaveRequest(ctx context.Context, req *models.Request) error {
	if req == nil {
		return fmt.Errorf("request is nil")
	}
	return r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		return saveRequest(ctx, tx, req)
	})
}

func (r *SQLiteRepo) SaveRatedRequest(ctx context.Context, req *models.Request, provider *models.User) error {
	if req == nil || provider == nil {
		return fmt.Errorf("request and provider are required")
	}
	return r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		if err := saveRequest(ctx, tx, req); err != nil {
			return err
		}
		return updateUser(ctx, tx, provider)
	})
}

func (r *SQLiteRepo) DeleteRequest(ctx context.Context, id int64) error {
	return r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM offers WHERE request_id = ?`, id); err != nil {
			return fmt.Errorf("delete offers: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM requests WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete request: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepo) MaxRequestID(ctx context.Context) (int64, error) {
	var max sql.NullInt64
	if err := r.conn.QueryRow(ctx, `SELECT MAX(id) FROM requests`).Scan(&max); err != nil {
		return 0, fmt.Errorf("max request id: %w", err)
	}
	return max.Int64, nil
}

func saveRequest(ctx context.Context, tx *sql.Tx, req *models.Request) error {
	finished, err := encodeList(req.FinishedBy)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE requests SET title = ?, description = ?, location = ?, budget = ?, payment_method = ?, urgency = ?, requester_name = ?, requester_phone = ?, status = ?, finished_by = ?, rated = ?, updated = ? WHERE id = ?`,
		req.Title, req.Description, req.Location, req.Budget, req.PaymentMethod, req.Urgency,
		req.RequesterName, req.RequesterPhone, req.Status, finished, boolToInt(req.Rated), req.Updated, req.ID)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update request %d: no such request", req.ID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM offers WHERE request_id = ?`, req.ID); err != nil {
		return fmt.Errorf("clear offers: %w", err)
	}
	return insertOffers(ctx, tx, req.ID, req.Offers)
}

func insertOffers(ctx context.Context, tx *sql.Tx, requestID int64, offers []models.Offer) error {
	for i, o := range offers {
		_, err := tx.ExecContext(ctx, `INSERT INTO offers (request_id, position, id, provider_email, provider_name, price, message, status, created) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			requestID, i, o.ID, o.ProviderEmail, o.ProviderName, o.Price, o.Message, o.Status, o.Created)
		if err != nil {
			return fmt.Errorf("insert offer %d: %w", i, err)
		}
	}
	return nil
}

// listOffers groups offers by request in submission order.
func (r *SQLiteRepo) listOffers(ctx context.Context, where string, args ...any) (map[int64][]models.Offer, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT request_id, id, provider_email, provider_name, price, message, status, created FROM offers `+where+` ORDER BY request_id, position`, args...)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]models.Offer)
	for rows.Next() {
		var (
			requestID int64
			o         models.Offer
		)
		if err := rows.Scan(&requestID, &o.ID, &o.ProviderEmail, &o.ProviderName, &o.Price, &o.Message, &o.Status, &o.Created); err != nil {
			return nil, err
		}
		out[requestID] = append(out[requestID], o)
	}
	return out, rows.Err()
}

func scanRequest(row rowScanner) (*models.Request, error) {
	var (
		req      models.Request
		finished string
		rated    int
	)
	err := row.Scan(&req.ID, &req.Title, &req.Description, &req.Location, &req.Budget, &req.PaymentMethod, &req.Urgency,
		&req.RequesterEmail, &req.RequesterName, &req.RequesterPhone, &req.Status, &finished, &rated, &req.Created, &req.Updated)
	if err != nil {
		return nil, err
	}
	if req.FinishedBy, err = decodeList[string](finished); err != nil {
		return nil, err
	}
	req.Rated = rated != 0
	req.Offers = []models.Offer{}
	return &req, nil
}
