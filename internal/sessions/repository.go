package sessions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classlive/backend/internal/models"
)

const sessionColumns = `id, owner_id, course_id, title, description, status, scheduled_for, started_at, ended_at, is_public,
	chat_enabled, slow_mode_enabled, slow_mode_interval_seconds, profanity_filter_enabled, allow_links,
	allow_participant_audio, allow_screen_share, max_participants, allow_recording, allow_replays,
	total_views, peak_viewers, total_watch_seconds, interaction_count, final_viewer_count, final_chat_count,
	created_at, updated_at`

// Repository handles live session persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a session repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var s models.Session
	err := row.Scan(&s.ID, &s.OwnerID, &s.CourseID, &s.Title, &s.Description, &s.Status,
		&s.ScheduledFor, &s.StartedAt, &s.EndedAt, &s.IsPublic,
		&s.Settings.ChatEnabled, &s.Settings.SlowModeEnabled, &s.Settings.SlowModeIntervalSec,
		&s.Settings.ProfanityFilterEnabled, &s.Settings.AllowLinks,
		&s.Settings.AllowParticipantAudio, &s.Settings.AllowScreenShare,
		&s.Settings.MaxParticipants, &s.Settings.AllowRecording, &s.Settings.AllowReplays,
		&s.Stats.TotalViews, &s.Stats.PeakViewers, &s.Stats.TotalWatchSeconds,
		&s.Stats.InteractionCount, &s.Stats.FinalViewerCount, &s.Stats.FinalChatCount,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Create inserts a new session in status created with default settings.
func (r *Repository) Create(ctx context.Context, s *models.Session) error {
	const q = `INSERT INTO live_sessions (id, owner_id, course_id, title, description, is_public,
			chat_enabled, slow_mode_enabled, slow_mode_interval_seconds, profanity_filter_enabled, allow_links,
			allow_participant_audio, allow_screen_share, max_participants, allow_recording, allow_replays)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, status, created_at, updated_at`
	st := s.Settings
	return r.pool.QueryRow(ctx, q, s.OwnerID, s.CourseID, s.Title, s.Description, s.IsPublic,
		st.ChatEnabled, st.SlowModeEnabled, st.SlowModeIntervalSec, st.ProfanityFilterEnabled, st.AllowLinks,
		st.AllowParticipantAudio, st.AllowScreenShare, st.MaxParticipants, st.AllowRecording, st.AllowReplays).
		Scan(&s.ID, &s.Status, &s.CreatedAt, &s.UpdatedAt)
}

// GetByID returns a session by ID, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	return scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM live_sessions WHERE id = $1`, id))
}

// List returns sessions, optionally filtered by owner or course.
func (r *Repository) List(ctx context.Context, ownerID, courseID *uuid.UUID) ([]models.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM live_sessions`
	var args []interface{}
	if ownerID != nil {
		q += ` WHERE owner_id = $1`
		args = append(args, *ownerID)
	}
	if courseID != nil {
		if len(args) == 0 {
			q += ` WHERE course_id = $1`
		} else {
			q += ` AND course_id = $2`
		}
		args = append(args, *courseID)
	}
	rows, err := r.pool.Query(ctx, q+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// Schedule moves a created session to scheduled with the given time.
// Returns false when the session is not in created status.
func (r *Repository) Schedule(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	const q = `UPDATE live_sessions SET status = 'scheduled', scheduled_for = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'created'`
	tag, err := r.pool.Exec(ctx, q, at, id)
	return tag.RowsAffected() > 0, err
}

// MarkLive transitions a created/scheduled session to live and re-zeroes the
// run-scoped counters. The status guard makes the transition atomic under
// concurrent starts; returns false when the guard rejects.
func (r *Repository) MarkLive(ctx context.Context, id uuid.UUID) (bool, error) {
	const q = `UPDATE live_sessions SET status = 'live', started_at = NOW(),
			peak_viewers = 0, total_watch_seconds = 0, final_viewer_count = 0, final_chat_count = 0,
			updated_at = NOW()
		WHERE id = $1 AND status IN ('created', 'scheduled')`
	tag, err := r.pool.Exec(ctx, q, id)
	return tag.RowsAffected() > 0, err
}

// MarkEnded transitions a live session to ended, snapshotting the final viewer
// and chat counts in the same statement so the snapshot matches the instant of
// the transition. The viewer snapshot is the run's cumulative view total, not
// the open-roster size: participants who already left still count toward it.
// Returns false when the session is not live.
func (r *Repository) MarkEnded(ctx context.Context, id uuid.UUID) (bool, error) {
	const q = `UPDATE live_sessions SET status = 'ended', ended_at = NOW(),
			final_viewer_count = total_views,
			final_chat_count = (SELECT COUNT(*) FROM session_messages WHERE session_id = $1),
			updated_at = NOW()
		WHERE id = $1 AND status = 'live'`
	tag, err := r.pool.Exec(ctx, q, id)
	return tag.RowsAffected() > 0, err
}

// CloseStaleRoster closes any roster entries left open by a previous run
// without folding watch time (the prior run's stats were already finalized).
func (r *Repository) CloseStaleRoster(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE session_participants SET left_at = NOW() WHERE session_id = $1 AND left_at IS NULL`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}

// CascadeLeave closes every open roster entry and folds each participant's
// watch time into the session total. Returns the number of entries closed.
func (r *Repository) CascadeLeave(ctx context.Context, id uuid.UUID) (int, error) {
	const q = `WITH closed AS (
			UPDATE session_participants SET left_at = NOW()
			WHERE session_id = $1 AND left_at IS NULL
			RETURNING EXTRACT(EPOCH FROM (NOW() - joined_at))::BIGINT AS watched
		)
		UPDATE live_sessions
		SET total_watch_seconds = total_watch_seconds + COALESCE((SELECT SUM(watched) FROM closed), 0),
			updated_at = NOW()
		WHERE id = $1
		RETURNING (SELECT COUNT(*) FROM closed)`
	var n int
	err := r.pool.QueryRow(ctx, q, id).Scan(&n)
	return n, err
}

// UpdatePeakViewers raises peak_viewers when the given count exceeds it.
func (r *Repository) UpdatePeakViewers(ctx context.Context, id uuid.UUID, count int) error {
	const q = `UPDATE live_sessions SET peak_viewers = $1, updated_at = NOW() WHERE id = $2 AND $1 > peak_viewers`
	_, err := r.pool.Exec(ctx, q, count, id)
	return err
}

// IncrementInteractions adds to the session interaction counter.
func (r *Repository) IncrementInteractions(ctx context.Context, id uuid.UUID, delta int) error {
	const q = `UPDATE live_sessions SET interaction_count = interaction_count + $1, updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, delta, id)
	return err
}

// AddModerator grants moderator capability. The owner is a distinct tier and
// is never inserted into the moderator set.
func (r *Repository) AddModerator(ctx context.Context, sessionID, userID uuid.UUID) error {
	const q = `INSERT INTO session_moderators (session_id, user_id)
		SELECT $1, $2 WHERE NOT EXISTS (SELECT 1 FROM live_sessions WHERE id = $1 AND owner_id = $2)
		ON CONFLICT (session_id, user_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, q, sessionID, userID)
	return err
}

// RemoveModerator revokes moderator capability.
func (r *Repository) RemoveModerator(ctx context.Context, sessionID, userID uuid.UUID) error {
	const q = `DELETE FROM session_moderators WHERE session_id = $1 AND user_id = $2`
	_, err := r.pool.Exec(ctx, q, sessionID, userID)
	return err
}

// ListModerators returns the moderator user ids for a session.
func (r *Repository) ListModerators(ctx context.Context, sessionID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM session_moderators WHERE session_id = $1 ORDER BY added_at`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateChatSettings patches the chat-related settings columns; nil fields are
// left untouched via COALESCE.
func (r *Repository) UpdateChatSettings(ctx context.Context, id uuid.UUID, chatEnabled, slowMode, profanity, allowLinks *bool, slowModeInterval, maxParticipants *int) error {
	const q = `UPDATE live_sessions SET
			chat_enabled = COALESCE($1, chat_enabled),
			slow_mode_enabled = COALESCE($2, slow_mode_enabled),
			profanity_filter_enabled = COALESCE($3, profanity_filter_enabled),
			allow_links = COALESCE($4, allow_links),
			slow_mode_interval_seconds = COALESCE($5, slow_mode_interval_seconds),
			max_participants = COALESCE($6, max_participants),
			updated_at = NOW()
		WHERE id = $7`
	_, err := r.pool.Exec(ctx, q, chatEnabled, slowMode, profanity, allowLinks, slowModeInterval, maxParticipants, id)
	return err
}

// ResetChatSettings restores the documented settings defaults.
func (r *Repository) ResetChatSettings(ctx context.Context, id uuid.UUID) error {
	d := models.DefaultSettings()
	const q = `UPDATE live_sessions SET
			chat_enabled = $1, slow_mode_enabled = $2, slow_mode_interval_seconds = $3,
			profanity_filter_enabled = $4, allow_links = $5, updated_at = NOW()
		WHERE id = $6`
	_, err := r.pool.Exec(ctx, q, d.ChatEnabled, d.SlowModeEnabled, d.SlowModeIntervalSec,
		d.ProfanityFilterEnabled, d.AllowLinks, id)
	return err
}
