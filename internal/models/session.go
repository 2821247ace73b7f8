package models

import (
	"time"

	"github.com/google/uuid"
)

// Session lifecycle statuses.
const (
	StatusCreated   = "created"
	StatusScheduled = "scheduled"
	StatusLive      = "live"
	StatusEnded     = "ended"
)

// SessionSettings are the per-session chat and media policy knobs.
type SessionSettings struct {
	ChatEnabled            bool `json:"chat_enabled"`
	SlowModeEnabled        bool `json:"slow_mode_enabled"`
	SlowModeIntervalSec    int  `json:"slow_mode_interval_seconds"`
	ProfanityFilterEnabled bool `json:"profanity_filter_enabled"`
	AllowLinks             bool `json:"allow_links"`
	AllowParticipantAudio  bool `json:"allow_participant_audio"`
	AllowScreenShare       bool `json:"allow_screen_share"`
	MaxParticipants        int  `json:"max_participants"`
	AllowRecording         bool `json:"allow_recording"`
	AllowReplays           bool `json:"allow_replays"`
}

// DefaultSettings returns the documented settings defaults, applied on session
// creation and on explicit chat-settings reset.
func DefaultSettings() SessionSettings {
	return SessionSettings{
		ChatEnabled:            true,
		SlowModeEnabled:        false,
		SlowModeIntervalSec:    5,
		ProfanityFilterEnabled: true,
		AllowLinks:             false,
		AllowParticipantAudio:  false,
		AllowScreenShare:       false,
		MaxParticipants:        100,
		AllowRecording:         true,
		AllowReplays:           true,
	}
}

// SessionStats are the aggregate counters for one session. They are derived
// from the roster and chat log and reset when a new run starts.
type SessionStats struct {
	TotalViews        int64 `json:"total_views"`
	PeakViewers       int   `json:"peak_viewers"`
	TotalWatchSeconds int64 `json:"total_watch_seconds"`
	InteractionCount  int64 `json:"interaction_count"`
	FinalViewerCount  int   `json:"final_viewer_count"`
	FinalChatCount    int   `json:"final_chat_count"`
}

// Session is one live-broadcast instance: the aggregate root for roster, chat,
// raised hands and recordings.
type Session struct {
	ID           uuid.UUID       `json:"id"`
	OwnerID      uuid.UUID       `json:"owner_id"`
	CourseID     *uuid.UUID      `json:"course_id,omitempty"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Status       string          `json:"status"`
	ScheduledFor *time.Time      `json:"scheduled_for,omitempty"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	EndedAt      *time.Time      `json:"ended_at,omitempty"`
	IsPublic     bool            `json:"is_public"`
	Settings     SessionSettings `json:"settings"`
	Stats        SessionStats    `json:"stats"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// IsLive reports whether the session is currently broadcasting.
func (s *Session) IsLive() bool { return s.Status == StatusLive }

// Duration returns the elapsed broadcast time, zero unless the session has
// started. For ended sessions this is the final run duration.
func (s *Session) Duration() time.Duration {
	if s.StartedAt == nil {
		return 0
	}
	if s.EndedAt != nil {
		return s.EndedAt.Sub(*s.StartedAt)
	}
	return time.Since(*s.StartedAt)
}
