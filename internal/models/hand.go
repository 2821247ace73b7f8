package models

import (
	"time"

	"github.com/google/uuid"
)

// Hand-raise outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeDenied   = "denied"
)

// HandRaise is one floor-control request. Pending while ResolvedAt is nil;
// raising again while pending lowers the hand (the row is removed).
type HandRaise struct {
	ID         uuid.UUID  `json:"id"`
	SessionID  uuid.UUID  `json:"session_id"`
	UserID     uuid.UUID  `json:"user_id"`
	RaisedAt   time.Time  `json:"raised_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	Outcome    *string    `json:"outcome,omitempty"`
	ResolvedBy *uuid.UUID `json:"resolved_by,omitempty"`
}
