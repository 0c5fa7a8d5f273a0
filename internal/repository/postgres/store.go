// Package postgres is the PostgreSQL backend of the repository interfaces.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/garnizeh/servicehub/pkg/models"
	"github.com/garnizeh/servicehub/pkg/repository"
)

// Ensure Store satisfies the repository interfaces at compile time.
var _ repository.Store = (*Store)(nil)

// Store provides Postgres-backed persistence.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore connects to databaseURL and runs migrations.
func NewStore(ctx context.Context, databaseURL string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool, logger: logger}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			role TEXT NOT NULL,
			email TEXT NOT NULL,
			name TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			address_street TEXT NOT NULL DEFAULT '',
			address_number TEXT NOT NULL DEFAULT '',
			address_complement TEXT NOT NULL DEFAULT '',
			address_neighborhood TEXT NOT NULL DEFAULT '',
			address_city TEXT NOT NULL DEFAULT '',
			address_state TEXT NOT NULL DEFAULT '',
			contact_pref TEXT NOT NULL DEFAULT 'whatsapp',
			skills TEXT NOT NULL DEFAULT '',
			area TEXT NOT NULL DEFAULT '',
			level INTEGER NOT NULL DEFAULT 1,
			xp INTEGER NOT NULL DEFAULT 0,
			ratings TEXT NOT NULL DEFAULT '[]',
			achievements TEXT NOT NULL DEFAULT '[]',
			created BIGINT NOT NULL,
			updated BIGINT NOT NULL,
			PRIMARY KEY (role, email)
		);`,
		`CREATE TABLE IF NOT EXISTS requests (
			id BIGINT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			budget DOUBLE PRECISION NOT NULL DEFAULT 0,
			payment_method TEXT NOT NULL DEFAULT '',
			urgency TEXT NOT NULL DEFAULT 'normal',
			requester_email TEXT NOT NULL,
			requester_name TEXT NOT NULL DEFAULT '',
			requester_phone TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			finished_by TEXT NOT NULL DEFAULT '[]',
			rated BOOLEAN NOT NULL DEFAULT FALSE,
			created BIGINT NOT NULL,
			updated BIGINT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS offers (
			request_id BIGINT NOT NULL REFERENCES requests(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			id TEXT NOT NULL,
			provider_email TEXT NOT NULL,
			provider_name TEXT NOT NULL DEFAULT '',
			price DOUBLE PRECISION NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			created BIGINT NOT NULL,
			PRIMARY KEY (request_id, position)
		);`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			recipient_email TEXT NOT NULL,
			kind TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL DEFAULT '',
			request_id BIGINT NOT NULL,
			read BOOLEAN NOT NULL DEFAULT FALSE,
			created BIGINT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS notifications_recipient_idx ON notifications (recipient_email, created);`,
		`CREATE TABLE IF NOT EXISTS request_activities (
			id BIGSERIAL PRIMARY KEY,
			request_id BIGINT NOT NULL,
			actor_email TEXT NOT NULL,
			actor_role TEXT NOT NULL,
			action TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			created BIGINT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS request_activities_request_idx ON request_activities (request_id, id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

func now() int64 {
	return time.Now().UTC().UnixMilli()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func encodeList[T any](v []T) (string, error) {
	if v == nil {
		v = []T{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(b), nil
}

func decodeList[T any](s string) ([]T, error) {
	out := []T{}
	if s == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return out, nil
}

const userColumns = `role, email, name, phone, password_hash, address_street, address_number, address_complement, address_neighborhood, address_city, address_state, contact_pref, skills, area, level, xp, ratings, achievements, created, updated`

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	if u == nil {
		return fmt.Errorf("user is nil")
	}
	ratings, err := encodeList(u.Ratings)
	if err != nil {
		return err
	}
	achievements, err := encodeList(u.Achievements)
	if err != nil {
		return err
	}
	ts := now()
	if u.Created == 0 {
		u.Created = ts
	}
	u.Updated = ts

	_, err = s.pool.Exec(ctx, `INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		string(u.Role), u.Email, u.Name, u.Phone, u.PasswordHash,
		u.Address.Street, u.Address.Number, u.Address.Complement, u.Address.Neighborhood, u.Address.City, u.Address.State,
		u.ContactPref, u.Skills, u.Area, u.Level, u.XP, ratings, achievements, u.Created, u.Updated)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, role models.Role, email string) (*models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE role = $1 AND email = $2`, string(role), email)
	var (
		u                     models.User
		r                     string
		ratings, achievements string
	)
	err := row.Scan(&r, &u.Email, &u.Name, &u.Phone, &u.PasswordHash,
		&u.Address.Street, &u.Address.Number, &u.Address.Complement, &u.Address.Neighborhood, &u.Address.City, &u.Address.State,
		&u.ContactPref, &u.Skills, &u.Area, &u.Level, &u.XP, &ratings, &achievements, &u.Created, &u.Updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Role = models.Role(r)
	if u.Ratings, err = decodeList[int](ratings); err != nil {
		return nil, err
	}
	if u.Achievements, err = decodeList[string](achievements); err != nil {
		return nil, err
	}
	return &u, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	if u == nil {
		return fmt.Errorf("user is nil")
	}
	return updateUser(ctx, s.pool, u)
}

func updateUser(ctx context.Context, ex execer, u *models.User) error {
	ratings, err := encodeList(u.Ratings)
	if err != nil {
		return err
	}
	achievements, err := encodeList(u.Achievements)
	if err != nil {
		return err
	}
	u.Updated = now()

	tag, err := ex.Exec(ctx, `UPDATE users SET name = $1, phone = $2, password_hash = $3, address_street = $4, address_number = $5, address_complement = $6, address_neighborhood = $7, address_city = $8, address_state = $9, contact_pref = $10, skills = $11, area = $12, level = $13, xp = $14, ratings = $15, achievements = $16, updated = $17 WHERE role = $18 AND email = $19`,
		u.Name, u.Phone, u.PasswordHash,
		u.Address.Street, u.Address.Number, u.Address.Complement, u.Address.Neighborhood, u.Address.City, u.Address.State,
		u.ContactPref, u.Skills, u.Area, u.Level, u.XP, ratings, achievements, u.Updated,
		string(u.Role), u.Email)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update user %s: no such user", u.Key())
	}
	return nil
}
