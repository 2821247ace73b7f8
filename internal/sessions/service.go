package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classlive/backend/internal/models"
	"github.com/classlive/backend/pkg/apperr"
)

// Store is the session persistence surface the lifecycle manager needs.
// *Repository implements it; tests substitute a fake.
type Store interface {
	Create(ctx context.Context, s *models.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	Schedule(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkLive(ctx context.Context, id uuid.UUID) (bool, error)
	MarkEnded(ctx context.Context, id uuid.UUID) (bool, error)
	CloseStaleRoster(ctx context.Context, id uuid.UUID) error
	CascadeLeave(ctx context.Context, id uuid.UUID) (int, error)
}

// Service owns the session state machine: created -> scheduled -> live -> ended,
// with the direct created -> live path. Transitions never move backward and a
// session is never reopened.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates a lifecycle service.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// CreateParams are the inputs for a new session.
type CreateParams struct {
	Title       string
	Description string
	CourseID    *uuid.UUID
	IsPublic    bool
}

// Create inserts a new session owned by the caller with default settings.
func (s *Service) Create(ctx context.Context, owner models.Identity, p CreateParams) (*models.Session, error) {
	sess := &models.Session{
		OwnerID:     owner.UserID,
		CourseID:    p.CourseID,
		Title:       p.Title,
		Description: p.Description,
		IsPublic:    p.IsPublic,
		Settings:    models.DefaultSettings(),
	}
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// Get returns a session or NotFound.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	sess, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess == nil {
		return nil, apperr.NotFound("session not found")
	}
	return sess, nil
}

// Schedule moves a created session to scheduled. Owner-only.
func (s *Service) Schedule(ctx context.Context, id, byUserID uuid.UUID, at time.Time) error {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if sess.OwnerID != byUserID {
		return apperr.Forbidden("only the owner can schedule a session")
	}
	ok, err := s.store.Schedule(ctx, id, at)
	if err != nil {
		return fmt.Errorf("schedule session: %w", err)
	}
	if !ok {
		return apperr.InvalidState("session can only be scheduled from created status")
	}
	return nil
}

// Start transitions the session to live. Owner-only; fails InvalidState when
// already live or ended. Clears any roster entries left over from a prior run.
func (s *Service) Start(ctx context.Context, id, byUserID uuid.UUID) (*models.Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.OwnerID != byUserID {
		return nil, apperr.Forbidden("only the owner can start a session")
	}
	ok, err := s.store.MarkLive(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("mark live: %w", err)
	}
	if !ok {
		return nil, apperr.InvalidState("session is already " + sess.Status)
	}
	if err := s.store.CloseStaleRoster(ctx, id); err != nil {
		// Stale entries only inflate counts until the reaper sweeps them.
		s.logger.Warn("close stale roster", zap.String("session_id", id.String()), zap.Error(err))
	}
	s.logger.Info("session started", zap.String("session_id", id.String()))
	return s.Get(ctx, id)
}

// End transitions the session to ended, snapshots final statistics and closes
// every still-open roster entry. A second End fails InvalidState rather than
// double-applying side effects.
func (s *Service) End(ctx context.Context, id, byUserID uuid.UUID) (*models.Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.OwnerID != byUserID {
		return nil, apperr.Forbidden("only the owner can end a session")
	}
	if !sess.IsLive() {
		return nil, apperr.InvalidState("session is not live")
	}
	ok, err := s.store.MarkEnded(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("mark ended: %w", err)
	}
	if !ok {
		return nil, apperr.InvalidState("session is not live")
	}
	closed, err := s.store.CascadeLeave(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("cascade leave: %w", err)
	}
	s.logger.Info("session ended",
		zap.String("session_id", id.String()),
		zap.Int("participants_closed", closed))
	return s.Get(ctx, id)
}

// IsActive reports whether a session accepts participant activity.
func (s *Service) IsActive(sess *models.Session) bool {
	return sess != nil && sess.IsLive()
}
