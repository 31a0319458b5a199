package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coldline/backend/internal/models"
	"github.com/coldline/backend/pkg/utils"
)

// Repository handles admin user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByUsername returns an admin user by username, or nil when absent.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*models.AdminUser, error) {
	const q = `SELECT id, username, password_hash, COALESCE(email,''), last_login, created_at
		FROM admin_users WHERE username = $1`
	var u models.AdminUser
	err := r.pool.QueryRow(ctx, q, username).Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.Email, &u.LastLogin, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// UpdateLastLogin stamps the admin's last successful login.
func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE admin_users SET last_login = NOW() WHERE id = $1`, id)
	return err
}

// EnsureDefaultAdmin seeds the given admin account if no row with that
// username exists yet. Used on startup so a fresh deployment is reachable.
func (r *Repository) EnsureDefaultAdmin(ctx context.Context, username, password, email string) error {
	existing, err := r.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	const q = `INSERT INTO admin_users (username, password_hash, email)
		VALUES ($1, $2, NULLIF($3, '')) ON CONFLICT (username) DO NOTHING`
	_, err = r.pool.Exec(ctx, q, username, hash, email)
	return err
}
