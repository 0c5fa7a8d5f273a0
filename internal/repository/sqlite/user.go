package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garnizeh/servicehub/pkg/models"
	"github.com/garnizeh/servicehub/pkg/repository"
)

const userColumns = `role, email, name, phone, password_hash, address_street, address_number, address_complement, address_neighborhood, address_city, address_state, contact_pref, skills, area, level, xp, ratings, achievements, created, updated`

func (r *SQLiteRepo) CreateUser(ctx context.Context, u *models.User) error {
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

	_, err = r.conn.Exec(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Role, u.Email, u.Name, u.Phone, u.PasswordHash,
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

func (r *SQLiteRepo) GetUser(ctx context.Context, role models.Role, email string) (*models.User, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE role = ? AND email = ?`, role, email)
	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// UpdateUser rewrites the profile and progression of an existing user. Role,
// email and creation time are immutable.
func (r *SQLiteRepo) UpdateUser(ctx context.Context, u *models.User) error {
	if u == nil {
		return fmt.Errorf("user is nil")
	}
	return updateUser(ctx, r.conn.GetConn(), u)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
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

	res, err := ex.ExecContext(ctx, `UPDATE users SET name = ?, phone = ?, password_hash = ?, address_street = ?, address_number = ?, address_complement = ?, address_neighborhood = ?, address_city = ?, address_state = ?, contact_pref = ?, skills = ?, area = ?, level = ?, xp = ?, ratings = ?, achievements = ?, updated = ? WHERE role = ? AND email = ?`,
		u.Name, u.Phone, u.PasswordHash,
		u.Address.Street, u.Address.Number, u.Address.Complement, u.Address.Neighborhood, u.Address.City, u.Address.State,
		u.ContactPref, u.Skills, u.Area, u.Level, u.XP, ratings, achievements, u.Updated,
		u.Role, u.Email)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update user %s: no such user", u.Key())
	}
	return nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		u                     models.User
		ratings, achievements string
	)
	err := row.Scan(&u.Role, &u.Email, &u.Name, &u.Phone, &u.PasswordHash,
		&u.Address.Street, &u.Address.Number, &u.Address.Complement, &u.Address.Neighborhood, &u.Address.City, &u.Address.State,
		&u.ContactPref, &u.Skills, &u.Area, &u.Level, &u.XP, &ratings, &achievements, &u.Created, &u.Updated)
	if err != nil {
		return nil, err
	}
	if u.Ratings, err = decodeList[int](ratings); err != nil {
		return nil, err
	}
	if u.Achievements, err = decodeList[string](achievements); err != nil {
		return nil, err
	}
	return &u, nil
}
