package recordings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coldline/backend/internal/models"
)

// recordingColumns is the shared SELECT list for recording scans.
const recordingColumns = `id, recording_sid, call_sid, owner_id, source_url,
	COALESCE(storage_path,''), COALESCE(file_size,0), duration_seconds, channels, COALESCE(source,''),
	download_status, transcription_status,
	COALESCE(transcription_text,''), COALESCE(transcription_language,''), COALESCE(transcription_method,''),
	COALESCE(transcription_error,''), COALESCE(transcription_duration,0),
	created_at, updated_at, transcribed_at`

// Repository persists recording lifecycle state, keyed by the provider's
// recording SID. All updates are independent partial writes; the last
// writer wins and no transaction spans multiple lifecycle fields.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a recordings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRecording(row pgx.Row) (*models.Recording, error) {
	var rec models.Recording
	err := row.Scan(&rec.ID, &rec.RecordingSID, &rec.CallSID, &rec.OwnerID, &rec.SourceURL,
		&rec.StoragePath, &rec.FileSize, &rec.DurationSeconds, &rec.Channels, &rec.Source,
		&rec.DownloadStatus, &rec.TranscriptionStatus,
		&rec.TranscriptionText, &rec.TranscriptionLanguage, &rec.TranscriptionMethod,
		&rec.TranscriptionError, &rec.TranscriptionDuration,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.TranscribedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Create inserts a recording observed via the provider status callback
// (download pending). Replaying the same callback updates the source URL
// instead of failing.
func (r *Repository) Create(ctx context.Context, rec *models.Recording) error {
	const q = `INSERT INTO recordings
		(recording_sid, call_sid, owner_id, source_url, duration_seconds, channels, source, download_status, transcription_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (recording_sid) DO UPDATE SET source_url = EXCLUDED.source_url, updated_at = NOW()
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q,
		rec.RecordingSID, rec.CallSID, rec.OwnerID, rec.SourceURL,
		rec.DurationSeconds, rec.Channels, rec.Source,
		models.DownloadStatusPending, models.TranscriptionStatusPending).
		Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
}

// GetBySID returns a recording by provider SID, or nil when absent.
func (r *Repository) GetBySID(ctx context.Context, sid string) (*models.Recording, error) {
	rec, err := scanRecording(r.pool.QueryRow(ctx,
		`SELECT `+recordingColumns+` FROM recordings WHERE recording_sid = $1`, sid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// List returns recordings newest first.
func (r *Repository) List(ctx context.Context, limit int) ([]models.Recording, error) {
	return r.queryMany(ctx,
		`SELECT `+recordingColumns+` FROM recordings ORDER BY created_at DESC LIMIT $1`, limit)
}

// MarkDownloaded records a confirmed storage write: storage path, size,
// download completed.
func (r *Repository) MarkDownloaded(ctx context.Context, sid, storagePath string, fileSize int64) error {
	const q = `UPDATE recordings SET storage_path = $1, file_size = $2, download_status = $3, updated_at = NOW()
		WHERE recording_sid = $4`
	_, err := r.pool.Exec(ctx, q, storagePath, fileSize, models.DownloadStatusCompleted, sid)
	return err
}

// SetTranscriptionStatus writes an advisory lifecycle status (e.g.
// processing) without touching other transcription fields.
func (r *Repository) SetTranscriptionStatus(ctx context.Context, sid, status string) error {
	const q = `UPDATE recordings SET transcription_status = $1, updated_at = NOW() WHERE recording_sid = $2`
	_, err := r.pool.Exec(ctx, q, status, sid)
	return err
}

// SaveTranscription writes the terminal outcome of one transcription
// attempt in a single statement, so concurrent attempts can overwrite each
// other wholesale but never interleave fields.
func (r *Repository) SaveTranscription(ctx context.Context, sid string, upd models.TranscriptionUpdate) error {
	const q = `UPDATE recordings SET
		transcription_status = $1,
		transcription_text = NULLIF($2, ''),
		transcription_language = NULLIF($3, ''),
		transcription_method = NULLIF($4, ''),
		transcription_error = NULLIF($5, ''),
		transcription_duration = $6,
		transcription_segments = $7,
		transcription_words = $8,
		transcribed_at = NOW(),
		updated_at = NOW()
		WHERE recording_sid = $9`
	_, err := r.pool.Exec(ctx, q,
		upd.Status, upd.Text, upd.Language, upd.Method, upd.Error,
		upd.DurationSeconds, upd.Segments, upd.Words, sid)
	return err
}

// Delete removes a recording row.
func (r *Repository) Delete(ctx context.Context, sid string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM recordings WHERE recording_sid = $1`, sid)
	return err
}

// ListNeedingTranscription returns downloaded recordings that still lack
// text, newest first. The predicate deliberately matches rows left in a
// stale state by a crash between download and transcription writes.
func (r *Repository) ListNeedingTranscription(ctx context.Context, limit int) ([]models.Recording, error) {
	return r.queryMany(ctx,
		`SELECT `+recordingColumns+` FROM recordings
		WHERE transcription_text IS NULL AND download_status = $1 AND storage_path IS NOT NULL
		ORDER BY created_at DESC LIMIT $2`, models.DownloadStatusCompleted, limit)
}

// ListDownloaded returns all recordings with stored audio, newest first
// (force-mode batch candidates).
func (r *Repository) ListDownloaded(ctx context.Context, limit int) ([]models.Recording, error) {
	return r.queryMany(ctx,
		`SELECT `+recordingColumns+` FROM recordings
		WHERE download_status = $1 AND storage_path IS NOT NULL
		ORDER BY created_at DESC LIMIT $2`, models.DownloadStatusCompleted, limit)
}

func (r *Repository) queryMany(ctx context.Context, q string, args ...any) ([]models.Recording, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *rec)
	}
	return list, rows.Err()
}
