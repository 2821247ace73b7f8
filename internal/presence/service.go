package presence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classlive/backend/internal/models"
	"github.com/classlive/backend/pkg/apperr"
)

// Roster is the roster persistence surface the tracker needs. *Repository
// implements it; tests substitute a fake.
type Roster interface {
	RefreshOpen(ctx context.Context, sessionID, userID uuid.UUID) (bool, error)
	Insert(ctx context.Context, sessionID uuid.UUID, user models.Identity, role string, capacity int) (bool, error)
	Close(ctx context.Context, sessionID, userID uuid.UUID) (int, string, error)
	CountOpen(ctx context.Context, sessionID uuid.UUID) (int, error)
	CountOpenBroadcasters(ctx context.Context, sessionID uuid.UUID) (int, error)
	IncrementTotalViews(ctx context.Context, sessionID uuid.UUID) error
}

// SessionGetter loads a session or fails NotFound.
type SessionGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// Lifecycle ends a session when its last broadcaster leaves.
type Lifecycle interface {
	End(ctx context.Context, id, byUserID uuid.UUID) (*models.Session, error)
}

// PeakUpdater raises the session's peak concurrent viewer count.
type PeakUpdater interface {
	UpdatePeakViewers(ctx context.Context, id uuid.UUID, count int) error
}

// EnrollmentChecker is the external collaborator consulted for non-public
// sessions. The platform's enrollment service implements it; AllowAll is the
// default for deployments without one.
type EnrollmentChecker interface {
	IsEnrolled(ctx context.Context, courseID, userID uuid.UUID) (bool, error)
}

// AllowAll is an EnrollmentChecker that admits everyone.
type AllowAll struct{}

// IsEnrolled always returns true.
func (AllowAll) IsEnrolled(context.Context, uuid.UUID, uuid.UUID) (bool, error) { return true, nil }

// Service tracks join/heartbeat/leave and keeps the live viewer statistics.
type Service struct {
	roster     Roster
	sessions   SessionGetter
	lifecycle  Lifecycle
	peak       PeakUpdater
	enrollment EnrollmentChecker
	logger     *zap.Logger
}

// NewService creates a presence tracker.
func NewService(roster Roster, sessions SessionGetter, lifecycle Lifecycle, peak PeakUpdater, enrollment EnrollmentChecker, logger *zap.Logger) *Service {
	if enrollment == nil {
		enrollment = AllowAll{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{roster: roster, sessions: sessions, lifecycle: lifecycle, peak: peak, enrollment: enrollment, logger: logger}
}

// Join adds the caller to the roster. Fails InvalidState when the session is
// not live or at capacity, Forbidden when a private session's enrollment check
// rejects. Re-joining while an entry is open refreshes it.
func (s *Service) Join(ctx context.Context, sessionID uuid.UUID, user models.Identity) (*models.Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.IsLive() {
		return nil, apperr.InvalidState("session is not live")
	}
	role := models.RoleViewer
	if user.UserID == sess.OwnerID {
		role = models.RoleBroadcaster
	}
	if !sess.IsPublic && role != models.RoleBroadcaster {
		if sess.CourseID == nil {
			return nil, apperr.Forbidden("session requires enrollment")
		}
		enrolled, err := s.enrollment.IsEnrolled(ctx, *sess.CourseID, user.UserID)
		if err != nil {
			return nil, fmt.Errorf("enrollment check: %w", err)
		}
		if !enrolled {
			return nil, apperr.Forbidden("not enrolled in this course")
		}
	}

	refreshed, err := s.roster.RefreshOpen(ctx, sessionID, user.UserID)
	if err != nil {
		return nil, fmt.Errorf("refresh roster entry: %w", err)
	}
	if refreshed {
		return sess, nil
	}

	inserted, err := s.roster.Insert(ctx, sessionID, user, role, sess.Settings.MaxParticipants)
	if err != nil {
		return nil, fmt.Errorf("insert roster entry: %w", err)
	}
	if !inserted {
		// Either we lost a race against our own concurrent join (an open entry
		// now exists) or the roster is full.
		refreshed, err = s.roster.RefreshOpen(ctx, sessionID, user.UserID)
		if err != nil {
			return nil, fmt.Errorf("refresh roster entry: %w", err)
		}
		if refreshed {
			return sess, nil
		}
		return nil, apperr.InvalidState("session is at capacity")
	}

	if err := s.roster.IncrementTotalViews(ctx, sessionID); err != nil {
		s.logger.Warn("increment total views", zap.Error(err))
	}
	if count, err := s.roster.CountOpen(ctx, sessionID); err == nil {
		_ = s.peak.UpdatePeakViewers(ctx, sessionID, count)
	}
	return sess, nil
}

// Heartbeat refreshes the caller's last-active timestamp. NotFound tells the
// caller to re-join; heartbeats are the only liveness signal.
func (s *Service) Heartbeat(ctx context.Context, sessionID, userID uuid.UUID) error {
	ok, err := s.roster.RefreshOpen(ctx, sessionID, userID)
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	if !ok {
		return apperr.NotFound("participant not found")
	}
	return nil
}

// Leave closes the caller's roster entry and folds the watch time into the
// session total. When the last broadcaster leaves, the session is ended.
func (s *Service) Leave(ctx context.Context, sessionID, userID uuid.UUID) error {
	closed, role, err := s.roster.Close(ctx, sessionID, userID)
	if err != nil {
		return fmt.Errorf("leave: %w", err)
	}
	if closed == 0 {
		return apperr.NotFound("participant not found")
	}
	if role == models.RoleBroadcaster {
		remaining, err := s.roster.CountOpenBroadcasters(ctx, sessionID)
		if err != nil {
			s.logger.Warn("count broadcasters", zap.Error(err))
			return nil
		}
		if remaining == 0 {
			sess, err := s.sessions.Get(ctx, sessionID)
			if err != nil {
				return nil
			}
			if _, err := s.lifecycle.End(ctx, sessionID, sess.OwnerID); err != nil {
				// InvalidState here means someone already ended it.
				if !apperr.IsKind(err, apperr.KindInvalidState) {
					s.logger.Warn("end on broadcaster leave", zap.Error(err))
				}
			}
		}
	}
	return nil
}

// ViewerCount returns the number of open roster entries.
func (s *Service) ViewerCount(ctx context.Context, sessionID uuid.UUID) (int, error) {
	return s.roster.CountOpen(ctx, sessionID)
}
