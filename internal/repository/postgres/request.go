package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/garnizeh/servicehub/pkg/models"
	"github.com/garnizeh/servicehub/pkg/repository"
)

const requestColumns = `id, title, description, location, budget, payment_method, urgency, requester_email, requester_name, requester_phone, status, finished_by, rated, created, updated`

func (s *Store) CreateRequest(ctx context.Context, r *models.Request) error {
	if r == nil {
		return fmt.Errorf("request is nil")
	}
	finished, err := encodeList(r.FinishedBy)
	if err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO requests (`+requestColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			r.ID, r.Title, r.Description, r.Location, r.Budget, r.PaymentMethod, string(r.Urgency),
			r.RequesterEmail, r.RequesterName, r.RequesterPhone, string(r.Status), finished, r.Rated, r.Created, r.Updated)
		if err != nil {
			if isUniqueViolation(err) {
				return repository.ErrAlreadyExists
			}
			return fmt.Errorf("insert request: %w", err)
		}
		return insertOffers(ctx, tx, r.ID, r.Offers)
	})
}

func (s *Store) GetRequest(ctx context.Context, id int64) (*models.Request, error) {
	r, err := scanRequest(s.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	offers, err := s.listOffers(ctx, `WHERE request_id = $1`, id)
	if err != nil {
		return nil, err
	}
	r.Offers = append(r.Offers, offers[id]...)
	return r, nil
}

func (s *Store) ListRequests(ctx context.Context) ([]models.Request, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+requestColumns+` FROM requests ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	out := []models.Request{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, *r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	offers, err := s.listOffers(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Offers = append(out[i].Offers, offers[out[i].ID]...)
	}
	return out, nil
}

func (s *Store) SaveRequest(ctx context.Context, r *models.Request) error {
	if r == nil {
		return fmt.Errorf("request is nil")
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return saveRequest(ctx, tx, r)
	})
}

func (s *Store) SaveRatedRequest(ctx context.Context, r *models.Request, provider *models.User) error {
	if r == nil || provider == nil {
		return fmt.Errorf("request and provider are required")
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := saveRequest(ctx, tx, r); err != nil {
			return err
		}
		return updateUser(ctx, tx, provider)
	})
}

func (s *Store) DeleteRequest(ctx context.Context, id int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM requests WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	return nil
}

func (s *Store) MaxRequestID(ctx context.Context) (int64, error) {
	var max int64
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM requests`).Scan(&max); err != nil {
		return 0, fmt.Errorf("max request id: %w", err)
	}
	return max, nil
}

func saveRequest(ctx context.Context, tx pgx.Tx, r *models.Request) error {
	finished, err := encodeList(r.FinishedBy)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `UPDATE requests SET title = $1, description = $2, location = $3, budget = $4, payment_method = $5, urgency = $6, requester_name = $7, requester_phone = $8, status = $9, finished_by = $10, rated = $11, updated = $12 WHERE id = $13`,
		r.Title, r.Description, r.Location, r.Budget, r.PaymentMethod, string(r.Urgency),
		r.RequesterName, r.RequesterPhone, string(r.Status), finished, r.Rated, r.Updated, r.ID)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update request %d: no such request", r.ID)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM offers WHERE request_id = $1`, r.ID); err != nil {
		return fmt.Errorf("clear offers: %w", err)
	}
	return insertOffers(ctx, tx, r.ID, r.Offers)
}

func insertOffers(ctx context.Context, tx pgx.Tx, requestID int64, offers []models.Offer) error {
	if len(offers) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, o := range offers {
		batch.Queue(`INSERT INTO offers (request_id, position, id, provider_email, provider_name, price, message, status, created) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			requestID, i, o.ID, o.ProviderEmail, o.ProviderName, o.Price, o.Message, string(o.Status), o.Created)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert offers: %w", err)
	}
	return nil
}

func (s *Store) listOffers(ctx context.Context, where string, args ...any) (map[int64][]models.Offer, error) {
	rows, err := s.pool.Query(ctx, `SELECT request_id, id, provider_email, provider_name, price, message, status, created FROM offers `+where+` ORDER BY request_id, position`, args...)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]models.Offer)
	for rows.Next() {
		var (
			requestID int64
			status    string
			o         models.Offer
		)
		if err := rows.Scan(&requestID, &o.ID, &o.ProviderEmail, &o.ProviderName, &o.Price, &o.Message, &status, &o.Created); err != nil {
			return nil, err
		}
		o.Status = models.OfferStatus(status)
		out[requestID] = append(out[requestID], o)
	}
	return out, rows.Err()
}

func scanRequest(row pgx.Row) (*models.Request, error) {
	var (
		r                        models.Request
		urgency, status, finished string
	)
	err := row.Scan(&r.ID, &r.Title, &r.Description, &r.Location, &r.Budget, &r.PaymentMethod, &urgency,
		&r.RequesterEmail, &r.RequesterName, &r.RequesterPhone, &status, &finished, &r.Rated, &r.Created, &r.Updated)
	if err != nil {
		return nil, err
	}
	r.Urgency = models.Urgency(urgency)
	r.Status = models.RequestStatus(status)
	if r.FinishedBy, err = decodeList[string](finished); err != nil {
		return nil, err
	}
	r.Offers = []models.Offer{}
	return &r, nil
}
