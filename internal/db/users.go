package db

import (
	"context"
	"fmt"

	"teamdesk/internal/model"
)

const userColumns = `id, name, email, password_hash, role, manager_id, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var user model.User
	var role string
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &role, &user.ManagerID, &user.CreatedAt)
	if err != nil {
		return model.User{}, translate(err)
	}
	user.Role = model.Role(role)
	if !user.Role.Valid() {
		return model.User{}, fmt.Errorf("%w: role %q for user %d", ErrInvalid, role, user.ID)
	}
	return user, nil
}

func (s *Store) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	if !user.Role.Valid() {
		return model.User{}, ErrInvalid
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, role, manager_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		user.Name, user.Email, user.PasswordHash, string(user.Role), user.ManagerID)
	return scanUser(row)
}

func (s *Store) GetUser(ctx context.Context, id int64) (model.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (s *Store) ListTeam(ctx context.Context, managerID int64) ([]model.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE manager_id = $1
		ORDER BY name, id
	`, managerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
