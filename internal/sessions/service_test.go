package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/classlive/backend/internal/models"
	"github.com/classlive/backend/pkg/apperr"
)

// fakeStore drives the lifecycle state machine in memory with the same
// conditional-transition semantics as the SQL repository.
type fakeStore struct {
	sessions    map[uuid.UUID]*models.Session
	rosterOpen  int
	staleClosed bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[uuid.UUID]*models.Session)}
}

func (f *fakeStore) Create(_ context.Context, s *models.Session) error {
	s.ID = uuid.New()
	s.Status = models.StatusCreated
	s.CreatedAt = time.Now()
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) Schedule(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s, ok := f.sessions[id]
	if !ok || s.Status != models.StatusCreated {
		return false, nil
	}
	s.Status = models.StatusScheduled
	s.ScheduledFor = &at
	return true, nil
}

func (f *fakeStore) MarkLive(_ context.Context, id uuid.UUID) (bool, error) {
	s, ok := f.sessions[id]
	if !ok || (s.Status != models.StatusCreated && s.Status != models.StatusScheduled) {
		return false, nil
	}
	now := time.Now()
	s.Status = models.StatusLive
	s.StartedAt = &now
	return true, nil
}

func (f *fakeStore) MarkEnded(_ context.Context, id uuid.UUID) (bool, error) {
	s, ok := f.sessions[id]
	if !ok || s.Status != models.StatusLive {
		return false, nil
	}
	now := time.Now()
	s.Status = models.StatusEnded
	s.EndedAt = &now
	return true, nil
}

func (f *fakeStore) CloseStaleRoster(context.Context, uuid.UUID) error {
	f.staleClosed = true
	return nil
}

func (f *fakeStore) CascadeLeave(context.Context, uuid.UUID) (int, error) {
	n := f.rosterOpen
	f.rosterOpen = 0
	return n, nil
}

func mustCreate(t *testing.T, svc *Service, owner uuid.UUID) *models.Session {
	t.Helper()
	sess, err := svc.Create(context.Background(), models.Identity{UserID: owner}, CreateParams{Title: "algebra review"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return sess
}

func TestCreateDefaults(t *testing.T) {
	svc := NewService(newFakeStore(), nil)
	owner := uuid.New()
	sess := mustCreate(t, svc, owner)

	if sess.Status != models.StatusCreated {
		t.Errorf("status = %q, want created", sess.Status)
	}
	if sess.OwnerID != owner {
		t.Errorf("owner = %v, want %v", sess.OwnerID, owner)
	}
	if sess.Settings != models.DefaultSettings() {
		t.Errorf("settings = %+v, want defaults", sess.Settings)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	ctx := context.Background()
	owner := uuid.New()
	stranger := uuid.New()

	t.Run("created to live directly", func(t *testing.T) {
		store := newFakeStore()
		svc := NewService(store, nil)
		sess := mustCreate(t, svc, owner)

		got, err := svc.Start(ctx, sess.ID, owner)
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if got.Status != models.StatusLive || got.StartedAt == nil {
			t.Errorf("after Start: status = %q, started_at = %v", got.Status, got.StartedAt)
		}
		if !store.staleClosed {
			t.Error("stale roster not closed on start")
		}
	})

	t.Run("scheduled then live", func(t *testing.T) {
		svc := NewService(newFakeStore(), nil)
		sess := mustCreate(t, svc, owner)

		if err := svc.Schedule(ctx, sess.ID, owner, time.Now().Add(time.Hour)); err != nil {
			t.Fatalf("Schedule() error = %v", err)
		}
		if _, err := svc.Start(ctx, sess.ID, owner); err != nil {
			t.Fatalf("Start() after schedule error = %v", err)
		}
	})

	t.Run("schedule requires created status", func(t *testing.T) {
		svc := NewService(newFakeStore(), nil)
		sess := mustCreate(t, svc, owner)
		if _, err := svc.Start(ctx, sess.ID, owner); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		err := svc.Schedule(ctx, sess.ID, owner, time.Now().Add(time.Hour))
		if !apperr.IsKind(err, apperr.KindInvalidState) {
			t.Errorf("Schedule(live) error = %v, want InvalidState", err)
		}
	})

	t.Run("double start fails", func(t *testing.T) {
		svc := NewService(newFakeStore(), nil)
		sess := mustCreate(t, svc, owner)
		if _, err := svc.Start(ctx, sess.ID, owner); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if _, err := svc.Start(ctx, sess.ID, owner); !apperr.IsKind(err, apperr.KindInvalidState) {
			t.Errorf("second Start() error = %v, want InvalidState", err)
		}
	})

	t.Run("end closes roster and is not repeatable", func(t *testing.T) {
		store := newFakeStore()
		svc := NewService(store, nil)
		sess := mustCreate(t, svc, owner)
		if _, err := svc.Start(ctx, sess.ID, owner); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		store.rosterOpen = 7

		got, err := svc.End(ctx, sess.ID, owner)
		if err != nil {
			t.Fatalf("End() error = %v", err)
		}
		if got.Status != models.StatusEnded || got.EndedAt == nil {
			t.Errorf("after End: status = %q, ended_at = %v", got.Status, got.EndedAt)
		}
		if store.rosterOpen != 0 {
			t.Errorf("open roster entries after End = %d, want 0", store.rosterOpen)
		}
		if _, err := svc.End(ctx, sess.ID, owner); !apperr.IsKind(err, apperr.KindInvalidState) {
			t.Errorf("second End() error = %v, want InvalidState", err)
		}
	})

	t.Run("ended session never restarts", func(t *testing.T) {
		svc := NewService(newFakeStore(), nil)
		sess := mustCreate(t, svc, owner)
		if _, err := svc.Start(ctx, sess.ID, owner); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if _, err := svc.End(ctx, sess.ID, owner); err != nil {
			t.Fatalf("End() error = %v", err)
		}
		if _, err := svc.Start(ctx, sess.ID, owner); !apperr.IsKind(err, apperr.KindInvalidState) {
			t.Errorf("Start(ended) error = %v, want InvalidState", err)
		}
	})

	t.Run("owner only", func(t *testing.T) {
		svc := NewService(newFakeStore(), nil)
		sess := mustCreate(t, svc, owner)
		if _, err := svc.Start(ctx, sess.ID, stranger); !apperr.IsKind(err, apperr.KindForbidden) {
			t.Errorf("stranger Start() error = %v, want Forbidden", err)
		}
		if err := svc.Schedule(ctx, sess.ID, stranger, time.Now()); !apperr.IsKind(err, apperr.KindForbidden) {
			t.Errorf("stranger Schedule() error = %v, want Forbidden", err)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		svc := NewService(newFakeStore(), nil)
		if _, err := svc.Get(ctx, uuid.New()); !apperr.IsKind(err, apperr.KindNotFound) {
			t.Errorf("Get(absent) error = %v, want NotFound", err)
		}
	})
}
