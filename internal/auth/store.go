package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apotekgemini/backend-apotek/internal/common"
)

// PgStore persists users in Postgres.
type PgStore struct {
	Pool *pgxpool.Pool
}

// CreateUser inserts a new user row, mapping duplicate usernames to a conflict error.
func (s *PgStore) CreateUser(ctx context.Context, username, passwordHash, role string) (User, error) {
	const q = `INSERT INTO users (username, password_hash, role)
VALUES ($1, $2, $3)
RETURNING id, username, role, created_at`
	var u User
	err := s.Pool.QueryRow(ctx, q, username, passwordHash, role).
		Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, common.NewAppError("USERNAME_TAKEN", "username is already registered", http.StatusConflict, err)
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUserByUsername fetches a user and its password hash for credential checks.
func (s *PgStore) GetUserByUsername(ctx context.Context, username string) (User, string, error) {
	const q = `SELECT id, username, role, created_at, password_hash
FROM users WHERE username = $1`
	var (
		u    User
		hash string
	)
	err := s.Pool.QueryRow(ctx, q, username).
		Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, "", common.NewAppError("NOT_FOUND", "user not found", http.StatusNotFound, err)
		}
		return User{}, "", fmt.Errorf("get user by username: %w", err)
	}
	return u, hash, nil
}

// GetUserByID fetches a user by primary key.
func (s *PgStore) GetUserByID(ctx context.Context, id int64) (User, error) {
	const q = `SELECT id, username, role, created_at FROM users WHERE id = $1`
	var u User
	err := s.Pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, common.NewAppError("NOT_FOUND", "user not found", http.StatusNotFound, err)
		}
		return User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}
