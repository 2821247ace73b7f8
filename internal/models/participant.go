package models

import (
	"time"

	"github.com/google/uuid"
)

// Participant roles.
const (
	RoleBroadcaster = "broadcaster"
	RoleViewer      = "viewer"
)

// Participant is one roster entry. A user may have several historical entries
// per session (re-joins) but at most one with a nil LeftAt.
type Participant struct {
	ID               uuid.UUID  `json:"id"`
	SessionID        uuid.UUID  `json:"session_id"`
	UserID           uuid.UUID  `json:"user_id"`
	DisplayName      string     `json:"display_name"`
	Role             string     `json:"role"`
	JoinedAt         time.Time  `json:"joined_at"`
	LeftAt           *time.Time `json:"left_at,omitempty"`
	LastActiveAt     time.Time  `json:"last_active_at"`
	InteractionCount int        `json:"interaction_count"`
}

// Identity is the externally-authenticated caller: user id, display name and
// platform role, extracted from the JWT issued by the auth service.
type Identity struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
}
