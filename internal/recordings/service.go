package recordings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classlive/backend/internal/models"
	"github.com/classlive/backend/pkg/apperr"
	"github.com/classlive/backend/pkg/queue"
)

// Store is the persistence surface the recording service needs.
type Store interface {
	Create(ctx context.Context, sessionID uuid.UUID, artifactRef string, durationSeconds int) (*models.Recording, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Recording, error)
	LogAccess(ctx context.Context, recordingID, viewerID uuid.UUID) error
}

// SessionGetter looks up the owning session.
type SessionGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// Enqueuer hands finished artifacts to the finalizer worker.
type Enqueuer interface {
	EnqueueRecordingFinalize(ctx context.Context, payload queue.RecordingFinalizePayload) error
}

// Presigner issues short-lived replay URLs for stored artifacts.
type Presigner interface {
	PresignDownload(ctx context.Context, key string) (string, error)
	PresignExpire() time.Duration
}

// EnrollmentChecker gates replay access to non-public sessions.
type EnrollmentChecker interface {
	IsEnrolled(ctx context.Context, courseID, userID uuid.UUID) (bool, error)
}

// AllowAll admits every replay viewer.
type AllowAll struct{}

// IsEnrolled always returns true.
func (AllowAll) IsEnrolled(context.Context, uuid.UUID, uuid.UUID) (bool, error) { return true, nil }

// Grant is a resolved replay access: a presigned URL plus its lifetime.
type Grant struct {
	URL       string `json:"url"`
	ExpiresIn int    `json:"expires_in"`
}

// Service attaches capture artifacts to ended sessions and resolves replay
// access.
type Service struct {
	store      Store
	sessions   SessionGetter
	jobs       Enqueuer
	presigner  Presigner
	enrollment EnrollmentChecker
	logger     *zap.Logger
}

// NewService creates a recordings service. presigner may be nil when S3 is
// not configured; replay access then fails with NotReady until it is.
func NewService(store Store, sessions SessionGetter, jobs Enqueuer, presigner Presigner, enrollment EnrollmentChecker, logger *zap.Logger) *Service {
	if enrollment == nil {
		enrollment = AllowAll{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, sessions: sessions, jobs: jobs, presigner: presigner, enrollment: enrollment, logger: logger}
}

// Attach registers a captured artifact against an ended session and queues it
// for finalization. Owner only.
func (s *Service) Attach(ctx context.Context, sessionID uuid.UUID, userID uuid.UUID, artifactRef string, durationSeconds int) (*models.Recording, error) {
	if artifactRef == "" {
		return nil, apperr.InvalidRequest("artifact_ref is required")
	}
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess == nil {
		return nil, apperr.NotFound("session not found")
	}
	if sess.OwnerID != userID {
		return nil, apperr.Forbidden("only the session owner can attach recordings")
	}
	if sess.Status != models.StatusEnded {
		return nil, apperr.InvalidState("recordings attach to ended sessions only")
	}
	if !sess.Settings.AllowRecording {
		return nil, apperr.Forbidden("recording is disabled for this session")
	}
	rec, err := s.store.Create(ctx, sessionID, artifactRef, durationSeconds)
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}
	if err := s.jobs.EnqueueRecordingFinalize(ctx, queue.RecordingFinalizePayload{
		RecordingID: rec.ID,
		SessionID:   sessionID,
		ArtifactRef: artifactRef,
	}); err != nil {
		s.logger.Error("enqueue recording finalize failed", zap.Error(err), zap.String("recording_id", rec.ID.String()))
		return nil, fmt.Errorf("enqueue finalize: %w", err)
	}
	return rec, nil
}

// List returns the recordings attached to a session.
func (s *Service) List(ctx context.Context, sessionID uuid.UUID) ([]models.Recording, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess == nil {
		return nil, apperr.NotFound("session not found")
	}
	return s.store.ListBySession(ctx, sessionID)
}

// Access resolves a replay request into a presigned URL and logs the view.
// The session owner always has access; everybody else needs replays enabled
// and, for non-public sessions, enrollment in the attached course.
func (s *Service) Access(ctx context.Context, recordingID uuid.UUID, userID uuid.UUID) (*Grant, error) {
	rec, err := s.store.GetByID(ctx, recordingID)
	if err != nil {
		return nil, fmt.Errorf("get recording: %w", err)
	}
	if rec == nil {
		return nil, apperr.NotFound("recording not found")
	}
	sess, err := s.sessions.GetByID(ctx, rec.SessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if sess == nil {
		return nil, apperr.NotFound("session not found")
	}
	if sess.OwnerID != userID {
		if !sess.Settings.AllowReplays {
			return nil, apperr.Forbidden("replays are disabled for this session")
		}
		if !sess.IsPublic {
			if sess.CourseID == nil {
				return nil, apperr.Forbidden("session requires enrollment")
			}
			enrolled, err := s.enrollment.IsEnrolled(ctx, *sess.CourseID, userID)
			if err != nil {
				return nil, fmt.Errorf("enrollment check: %w", err)
			}
			if !enrolled {
				return nil, apperr.Forbidden("not enrolled in this course")
			}
		}
	}
	switch rec.Status {
	case models.RecordingStatusReady:
	case models.RecordingStatusProcessing:
		return nil, apperr.NotReady("recording is still processing")
	default:
		return nil, apperr.InvalidState("recording failed processing")
	}
	if s.presigner == nil {
		return nil, apperr.NotReady("replay storage not configured")
	}
	url, err := s.presigner.PresignDownload(ctx, rec.S3Key)
	if err != nil {
		return nil, fmt.Errorf("presign replay: %w", err)
	}
	if err := s.store.LogAccess(ctx, recordingID, userID); err != nil {
		s.logger.Warn("log recording access failed", zap.Error(err), zap.String("recording_id", recordingID.String()))
	}
	return &Grant{URL: url, ExpiresIn: int(s.presigner.PresignExpire().Seconds())}, nil
}
