package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message kinds.
const (
	KindChat         = "chat"
	KindQuestion     = "question"
	KindAnnouncement = "announcement"
)

// Message is one chat log entry. The log is append-only; moderation soft-deletes
// by flag so the audit trail survives.
type Message struct {
	ID            uuid.UUID       `json:"id"`
	SessionID     uuid.UUID       `json:"session_id"`
	UserID        uuid.UUID       `json:"user_id"`
	DisplayName   string          `json:"display_name"`
	Role          string          `json:"role"`
	Body          string          `json:"body"`
	Kind          string          `json:"kind"`
	IsPinned      bool            `json:"is_pinned"`
	IsHighlighted bool            `json:"is_highlighted"`
	IsDeleted     bool            `json:"is_deleted"`
	Reactions     json.RawMessage `json:"reactions"` // emoji -> []user_id
	CreatedAt     time.Time       `json:"created_at"`
}
