package floor

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classlive/backend/internal/models"
	"github.com/classlive/backend/internal/permissions"
	"github.com/classlive/backend/pkg/apperr"
)

// Store is the hand-raise persistence surface. *Repository implements it.
type Store interface {
	DeletePending(ctx context.Context, sessionID, userID uuid.UUID) (bool, error)
	InsertRaise(ctx context.Context, sessionID, userID uuid.UUID) (bool, error)
	Resolve(ctx context.Context, sessionID, userID uuid.UUID, outcome string, byUserID uuid.UUID) (bool, error)
	List(ctx context.Context, sessionID uuid.UUID) ([]models.HandRaise, error)
}

// SessionGetter loads a session or fails NotFound.
type SessionGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// ModeratorLister returns the moderator set for capability resolution.
type ModeratorLister interface {
	ListModerators(ctx context.Context, sessionID uuid.UUID) ([]uuid.UUID, error)
}

// Interactions bumps the session interaction counter.
type Interactions interface {
	IncrementInteractions(ctx context.Context, id uuid.UUID, delta int) error
}

// Service arbitrates floor-control requests: an ordered set of pending raises
// with moderator/owner resolution.
type Service struct {
	store        Store
	sessions     SessionGetter
	moderators   ModeratorLister
	interactions Interactions
	logger       *zap.Logger
}

// NewService creates a floor-control service.
func NewService(store Store, sessions SessionGetter, moderators ModeratorLister, interactions Interactions, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, sessions: sessions, moderators: moderators, interactions: interactions, logger: logger}
}

// Raise toggles the caller's hand: raises when lowered, lowers when raised.
// Returns whether the hand is raised afterwards.
func (s *Service) Raise(ctx context.Context, sessionID, userID uuid.UUID) (bool, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if !sess.IsLive() {
		return false, apperr.InvalidState("session is not live")
	}

	lowered, err := s.store.DeletePending(ctx, sessionID, userID)
	if err != nil {
		return false, fmt.Errorf("lower hand: %w", err)
	}
	if lowered {
		return false, nil
	}
	inserted, err := s.store.InsertRaise(ctx, sessionID, userID)
	if err != nil {
		return false, fmt.Errorf("raise hand: %w", err)
	}
	if inserted {
		if err := s.interactions.IncrementInteractions(ctx, sessionID, 1); err != nil {
			s.logger.Warn("increment interactions", zap.Error(err))
		}
	}
	// A lost race against a concurrent raise still leaves the hand raised.
	return true, nil
}

// Resolve acknowledges a pending raise with accepted or denied. Requires the
// moderate capability; resolving a user not currently raised fails NotFound.
func (s *Service) Resolve(ctx context.Context, sessionID, userID uuid.UUID, outcome string, byUserID uuid.UUID) error {
	if outcome != models.OutcomeAccepted && outcome != models.OutcomeDenied {
		return apperr.InvalidRequest("outcome must be accepted or denied")
	}
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	mods, err := s.moderators.ListModerators(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list moderators: %w", err)
	}
	caps := permissions.Resolve(sess, mods, byUserID)
	if !caps.CanManageParticipants {
		return apperr.Forbidden("moderator or owner capability required")
	}
	ok, err := s.store.Resolve(ctx, sessionID, userID, outcome, byUserID)
	if err != nil {
		return fmt.Errorf("resolve hand: %w", err)
	}
	if !ok {
		return apperr.NotFound("user has no raised hand")
	}
	return nil
}

// List returns hand raises in display order (pending first).
func (s *Service) List(ctx context.Context, sessionID uuid.UUID) ([]models.HandRaise, error) {
	if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.store.List(ctx, sessionID)
}
