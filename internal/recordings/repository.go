package recordings

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classlive/backend/internal/models"
)

const recordingColumns = `id, session_id, artifact_ref, s3_url, s3_key, duration_seconds, file_size, status, error_reason, view_count, created_at, updated_at`

// Repository handles recording persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a recordings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRecording(row pgx.Row) (*models.Recording, error) {
	var rec models.Recording
	err := row.Scan(&rec.ID, &rec.SessionID, &rec.ArtifactRef, &rec.S3URL, &rec.S3Key,
		&rec.DurationSeconds, &rec.FileSize, &rec.Status, &rec.ErrorReason, &rec.ViewCount,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// Create inserts a new recording in processing state.
func (r *Repository) Create(ctx context.Context, sessionID uuid.UUID, artifactRef string, durationSeconds int) (*models.Recording, error) {
	const q = `INSERT INTO session_recordings (session_id, artifact_ref, duration_seconds, status)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + recordingColumns
	return scanRecording(r.pool.QueryRow(ctx, q, sessionID, artifactRef, durationSeconds, models.RecordingStatusProcessing))
}

// GetByID returns a recording by ID, nil if not found.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error) {
	const q = `SELECT ` + recordingColumns + ` FROM session_recordings WHERE id = $1`
	return scanRecording(r.pool.QueryRow(ctx, q, id))
}

// ListBySession returns all recordings for a session, newest first.
func (r *Repository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Recording, error) {
	const q = `SELECT ` + recordingColumns + ` FROM session_recordings
		WHERE session_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Recording
	for rows.Next() {
		var rec models.Recording
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.ArtifactRef, &rec.S3URL, &rec.S3Key,
			&rec.DurationSeconds, &rec.FileSize, &rec.Status, &rec.ErrorReason, &rec.ViewCount,
			&rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

// MarkReady records the S3 location and flips status to ready. Only a
// processing recording transitions; a repeated finalize is a no-op.
func (r *Repository) MarkReady(ctx context.Context, id uuid.UUID, s3URL, s3Key string, fileSize int64) (bool, error) {
	const q = `UPDATE session_recordings
		SET s3_url = $1, s3_key = $2, file_size = $3, status = $4, error_reason = '', updated_at = NOW()
		WHERE id = $5 AND status = $6`
	tag, err := r.pool.Exec(ctx, q, s3URL, s3Key, fileSize, models.RecordingStatusReady, id, models.RecordingStatusProcessing)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkError flips a processing recording to error with a reason.
func (r *Repository) MarkError(ctx context.Context, id uuid.UUID, reason string) error {
	const q = `UPDATE session_recordings
		SET status = $1, error_reason = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4`
	_, err := r.pool.Exec(ctx, q, models.RecordingStatusError, reason, id, models.RecordingStatusProcessing)
	return err
}

// LogAccess records one replay view and bumps the view counter.
func (r *Repository) LogAccess(ctx context.Context, recordingID, viewerID uuid.UUID) error {
	const q = `WITH logged AS (
			INSERT INTO recording_access (recording_id, viewer_id) VALUES ($1, $2)
		)
		UPDATE session_recordings SET view_count = view_count + 1, updated_at = NOW()
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, recordingID, viewerID)
	return err
}
