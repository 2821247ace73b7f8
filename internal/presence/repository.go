package presence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classlive/backend/internal/models"
)

// Repository handles roster persistence. All mutations are single conditional
// statements so concurrent joins and leaves never clobber each other; the
// partial unique index on open entries backs the one-open-entry invariant.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a presence repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RefreshOpen refreshes last_active_at on the open roster entry, reporting
// whether one exists. Used both for heartbeats and join-as-refresh.
func (r *Repository) RefreshOpen(ctx context.Context, sessionID, userID uuid.UUID) (bool, error) {
	const q = `UPDATE session_participants SET last_active_at = NOW()
		WHERE session_id = $1 AND user_id = $2 AND left_at IS NULL`
	tag, err := r.pool.Exec(ctx, q, sessionID, userID)
	return tag.RowsAffected() > 0, err
}

// Insert adds a new open roster entry, guarded by the capacity limit. Returns
// false when the roster is full or the user already has an open entry (the
// unique-index conflict path).
func (r *Repository) Insert(ctx context.Context, sessionID uuid.UUID, user models.Identity, role string, capacity int) (bool, error) {
	const q = `INSERT INTO session_participants (session_id, user_id, display_name, role)
		SELECT $1, $2, $3, $4
		WHERE (SELECT COUNT(*) FROM session_participants WHERE session_id = $1 AND left_at IS NULL) < $5
		ON CONFLICT (session_id, user_id) WHERE left_at IS NULL DO NOTHING`
	tag, err := r.pool.Exec(ctx, q, sessionID, user.UserID, user.DisplayName, role, capacity)
	return tag.RowsAffected() > 0, err
}

// Close closes the open roster entry and folds its watch time into the session
// total in the same statement. Returns the number of entries closed (0 or 1)
// and the role of the closed entry.
func (r *Repository) Close(ctx context.Context, sessionID, userID uuid.UUID) (int, string, error) {
	const q = `WITH closed AS (
			UPDATE session_participants SET left_at = NOW()
			WHERE session_id = $1 AND user_id = $2 AND left_at IS NULL
			RETURNING role, EXTRACT(EPOCH FROM (NOW() - joined_at))::BIGINT AS watched
		)
		UPDATE live_sessions
		SET total_watch_seconds = total_watch_seconds + COALESCE((SELECT SUM(watched) FROM closed), 0),
			updated_at = NOW()
		WHERE id = $1
		RETURNING (SELECT COUNT(*) FROM closed), COALESCE((SELECT MAX(role) FROM closed), '')`
	var n int
	var role string
	err := r.pool.QueryRow(ctx, q, sessionID, userID).Scan(&n, &role)
	return n, role, err
}

// CountOpen returns the number of open roster entries for a session.
func (r *Repository) CountOpen(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM session_participants WHERE session_id = $1 AND left_at IS NULL`,
		sessionID).Scan(&n)
	return n, err
}

// CountOpenBroadcasters returns the number of open broadcaster-role entries.
func (r *Repository) CountOpenBroadcasters(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM session_participants WHERE session_id = $1 AND left_at IS NULL AND role = 'broadcaster'`,
		sessionID).Scan(&n)
	return n, err
}

// IncrementTotalViews bumps the cumulative view counter on the session.
func (r *Repository) IncrementTotalViews(ctx context.Context, sessionID uuid.UUID) error {
	const q = `UPDATE live_sessions SET total_views = total_views + 1, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, sessionID)
	return err
}

// ListOpen returns the current roster of a session.
func (r *Repository) ListOpen(ctx context.Context, sessionID uuid.UUID) ([]models.Participant, error) {
	const q = `SELECT id, session_id, user_id, display_name, role, joined_at, left_at, last_active_at, interaction_count
		FROM session_participants WHERE session_id = $1 AND left_at IS NULL ORDER BY joined_at`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.SessionID, &p.UserID, &p.DisplayName, &p.Role,
			&p.JoinedAt, &p.LeftAt, &p.LastActiveAt, &p.InteractionCount); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// ReapStale closes every open entry in a live session whose last_active_at is
// older than the grace window, folding watch time into each session's total.
// Returns the number of entries closed across all sessions.
func (r *Repository) ReapStale(ctx context.Context, grace time.Duration) (int, error) {
	const q = `WITH closed AS (
			UPDATE session_participants p SET left_at = NOW()
			FROM live_sessions s
			WHERE p.session_id = s.id AND s.status = 'live'
				AND p.left_at IS NULL
				AND p.last_active_at < NOW() - make_interval(secs => $1)
			RETURNING p.session_id, EXTRACT(EPOCH FROM (NOW() - p.joined_at))::BIGINT AS watched
		), folded AS (
			UPDATE live_sessions ls
			SET total_watch_seconds = ls.total_watch_seconds + agg.total, updated_at = NOW()
			FROM (SELECT session_id, SUM(watched) AS total FROM closed GROUP BY session_id) agg
			WHERE ls.id = agg.session_id
		)
		SELECT COUNT(*) FROM closed`
	var n int
	err := r.pool.QueryRow(ctx, q, grace.Seconds()).Scan(&n)
	return n, err
}
