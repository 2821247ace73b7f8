package floor

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classlive/backend/internal/models"
)

// Repository handles hand-raise persistence. The partial unique index on
// pending rows backs the one-pending-raise-per-user invariant.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a floor-control repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// DeletePending lowers a pending hand by removing the row. Returns whether a
// pending row existed.
func (r *Repository) DeletePending(ctx context.Context, sessionID, userID uuid.UUID) (bool, error) {
	const q = `DELETE FROM hand_raises WHERE session_id = $1 AND user_id = $2 AND resolved_at IS NULL`
	tag, err := r.pool.Exec(ctx, q, sessionID, userID)
	return tag.RowsAffected() > 0, err
}

// InsertRaise adds a pending raise. Returns false when one already exists
// (concurrent toggle lost the race).
func (r *Repository) InsertRaise(ctx context.Context, sessionID, userID uuid.UUID) (bool, error) {
	const q = `INSERT INTO hand_raises (session_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (session_id, user_id) WHERE resolved_at IS NULL DO NOTHING`
	tag, err := r.pool.Exec(ctx, q, sessionID, userID)
	return tag.RowsAffected() > 0, err
}

// Resolve acknowledges a pending raise with the given outcome. Returns false
// when the user has no pending raise.
func (r *Repository) Resolve(ctx context.Context, sessionID, userID uuid.UUID, outcome string, byUserID uuid.UUID) (bool, error) {
	const q = `UPDATE hand_raises SET resolved_at = NOW(), outcome = $1, resolved_by = $2
		WHERE session_id = $3 AND user_id = $4 AND resolved_at IS NULL`
	tag, err := r.pool.Exec(ctx, q, outcome, byUserID, sessionID, userID)
	return tag.RowsAffected() > 0, err
}

// List returns hand raises in display order: pending first sorted by raise
// time ascending, then acknowledged most-recent-acknowledgement first.
func (r *Repository) List(ctx context.Context, sessionID uuid.UUID) ([]models.HandRaise, error) {
	const q = `SELECT id, session_id, user_id, raised_at, resolved_at, outcome, resolved_by
		FROM hand_raises WHERE session_id = $1
		ORDER BY (resolved_at IS NULL) DESC,
			CASE WHEN resolved_at IS NULL THEN raised_at END ASC,
			resolved_at DESC`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.HandRaise
	for rows.Next() {
		var h models.HandRaise
		if err := rows.Scan(&h.ID, &h.SessionID, &h.UserID, &h.RaisedAt, &h.ResolvedAt, &h.Outcome, &h.ResolvedBy); err != nil {
			return nil, err
		}
		list = append(list, h)
	}
	return list, rows.Err()
}
