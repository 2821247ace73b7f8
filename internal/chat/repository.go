package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classlive/backend/internal/models"
)

// Repository handles chat log persistence. The log is append-only; moderation
// flips flags in place and never removes rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a chat repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert appends a message to the log.
func (r *Repository) Insert(ctx context.Context, m *models.Message) error {
	const q = `INSERT INTO session_messages (id, session_id, user_id, display_name, role, body, kind)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		RETURNING id, reactions, created_at`
	return r.pool.QueryRow(ctx, q, m.SessionID, m.UserID, m.DisplayName, m.Role, m.Body, m.Kind).
		Scan(&m.ID, &m.Reactions, &m.CreatedAt)
}

// LastMessageAt returns the timestamp of the author's most recent message in
// the session, or nil when the author has none. Used by slow mode.
func (r *Repository) LastMessageAt(ctx context.Context, sessionID, userID uuid.UUID) (*time.Time, error) {
	const q = `SELECT created_at FROM session_messages
		WHERE session_id = $1 AND user_id = $2 ORDER BY created_at DESC LIMIT 1`
	var t time.Time
	err := r.pool.QueryRow(ctx, q, sessionID, userID).Scan(&t)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// GetByID returns a message by ID, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	const q = `SELECT id, session_id, user_id, display_name, role, body, kind,
			is_pinned, is_highlighted, is_deleted, reactions, created_at
		FROM session_messages WHERE id = $1`
	var m models.Message
	err := r.pool.QueryRow(ctx, q, id).Scan(&m.ID, &m.SessionID, &m.UserID, &m.DisplayName, &m.Role,
		&m.Body, &m.Kind, &m.IsPinned, &m.IsHighlighted, &m.IsDeleted, &m.Reactions, &m.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// SetPinned sets the pinned flag.
func (r *Repository) SetPinned(ctx context.Context, id uuid.UUID, pinned bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE session_messages SET is_pinned = $1 WHERE id = $2`, pinned, id)
	return err
}

// SetHighlighted sets the highlighted flag.
func (r *Repository) SetHighlighted(ctx context.Context, id uuid.UUID, highlighted bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE session_messages SET is_highlighted = $1 WHERE id = $2`, highlighted, id)
	return err
}

// SoftDelete marks the message deleted, preserving the audit trail.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE session_messages SET is_deleted = TRUE WHERE id = $1`, id)
	return err
}

// List returns the most recent messages in insertion order.
func (r *Repository) List(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	const q = `SELECT id, session_id, user_id, display_name, role, body, kind,
			is_pinned, is_highlighted, is_deleted, reactions, created_at
		FROM (
			SELECT * FROM session_messages WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2
		) recent ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, q, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.UserID, &m.DisplayName, &m.Role,
			&m.Body, &m.Kind, &m.IsPinned, &m.IsHighlighted, &m.IsDeleted, &m.Reactions, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// ToggleReaction adds or removes the user's reaction for an emoji, in one
// statement so concurrent reactions never clobber each other.
func (r *Repository) ToggleReaction(ctx context.Context, id uuid.UUID, emoji string, userID uuid.UUID) error {
	const q = `UPDATE session_messages SET reactions = CASE
			WHEN jsonb_exists(COALESCE(reactions->$2, '[]'::jsonb), $3)
				THEN jsonb_set(reactions, ARRAY[$2], (reactions->$2) - $3)
			ELSE jsonb_set(reactions, ARRAY[$2], COALESCE(reactions->$2, '[]'::jsonb) || to_jsonb($3::text))
		END
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, emoji, userID.String())
	return err
}
