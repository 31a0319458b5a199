// Package calls reads and annotates the call_history table. The recording
// pipeline uses it to attribute recordings to the owning account and to
// surface the stored recording URL on the call row.
package calls

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coldline/backend/internal/models"
)

// Repository handles call history persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a calls repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetBySID returns a call by provider call SID, or nil when absent.
func (r *Repository) GetBySID(ctx context.Context, callSID string) (*models.Call, error) {
	const q = `SELECT id, call_sid, user_id, COALESCE(phone_number,''), COALESCE(status,''),
		COALESCE(recording_url,''), recording_available, created_at
		FROM call_history WHERE call_sid = $1`
	var c models.Call
	err := r.pool.QueryRow(ctx, q, callSID).Scan(&c.ID, &c.CallSID, &c.UserID, &c.PhoneNumber,
		&c.Status, &c.RecordingURL, &c.RecordingAvailable, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// SetRecordingURL marks a call's recording as available at the given URL.
func (r *Repository) SetRecordingURL(ctx context.Context, id uuid.UUID, url string) error {
	const q = `UPDATE call_history SET recording_url = $1, recording_available = TRUE WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, url, id)
	return err
}
