package presence

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/classlive/backend/internal/models"
	"github.com/classlive/backend/pkg/apperr"
)

type rosterEntry struct {
	userID uuid.UUID
	role   string
	open   bool
}

type fakeRoster struct {
	entries    []rosterEntry
	totalViews int
}

func (f *fakeRoster) openIndex(userID uuid.UUID) int {
	for i, e := range f.entries {
		if e.userID == userID && e.open {
			return i
		}
	}
	return -1
}

func (f *fakeRoster) RefreshOpen(_ context.Context, _, userID uuid.UUID) (bool, error) {
	return f.openIndex(userID) >= 0, nil
}

func (f *fakeRoster) Insert(_ context.Context, _ uuid.UUID, user models.Identity, role string, capacity int) (bool, error) {
	open := 0
	for _, e := range f.entries {
		if e.open {
			open++
		}
	}
	if open >= capacity {
		return false, nil
	}
	f.entries = append(f.entries, rosterEntry{userID: user.UserID, role: role, open: true})
	return true, nil
}

func (f *fakeRoster) Close(_ context.Context, _, userID uuid.UUID) (int, string, error) {
	i := f.openIndex(userID)
	if i < 0 {
		return 0, "", nil
	}
	f.entries[i].open = false
	return 1, f.entries[i].role, nil
}

func (f *fakeRoster) CountOpen(context.Context, uuid.UUID) (int, error) {
	n := 0
	for _, e := range f.entries {
		if e.open {
			n++
		}
	}
	return n, nil
}

func (f *fakeRoster) CountOpenBroadcasters(context.Context, uuid.UUID) (int, error) {
	n := 0
	for _, e := range f.entries {
		if e.open && e.role == models.RoleBroadcaster {
			n++
		}
	}
	return n, nil
}

func (f *fakeRoster) IncrementTotalViews(context.Context, uuid.UUID) error {
	f.totalViews++
	return nil
}

type fakeSessions struct{ session *models.Session }

func (f *fakeSessions) Get(_ context.Context, id uuid.UUID) (*models.Session, error) {
	if f.session == nil || f.session.ID != id {
		return nil, apperr.NotFound("session not found")
	}
	return f.session, nil
}

type fakeLifecycle struct {
	ended   bool
	endedBy uuid.UUID
	err     error
}

func (f *fakeLifecycle) End(_ context.Context, _, byUserID uuid.UUID) (*models.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.ended = true
	f.endedBy = byUserID
	return nil, nil
}

type fakePeak struct{ peak int }

func (f *fakePeak) UpdatePeakViewers(_ context.Context, _ uuid.UUID, count int) error {
	if count > f.peak {
		f.peak = count
	}
	return nil
}

type denyAll struct{}

func (denyAll) IsEnrolled(context.Context, uuid.UUID, uuid.UUID) (bool, error) { return false, nil }

func liveSession(owner uuid.UUID) *models.Session {
	return &models.Session{
		ID: uuid.New(), OwnerID: owner, Status: models.StatusLive,
		IsPublic: true, Settings: models.DefaultSettings(),
	}
}

func newTestService(sess *models.Session, enrollment EnrollmentChecker) (*Service, *fakeRoster, *fakeLifecycle, *fakePeak) {
	roster := &fakeRoster{}
	lifecycle := &fakeLifecycle{}
	peak := &fakePeak{}
	svc := NewService(roster, &fakeSessions{session: sess}, lifecycle, peak, enrollment, nil)
	return svc, roster, lifecycle, peak
}

func ident(id uuid.UUID) models.Identity {
	return models.Identity{UserID: id, DisplayName: "u-" + id.String()[:8]}
}

func TestJoin(t *testing.T) {
	ctx := context.Background()
	owner := uuid.New()

	t.Run("not live", func(t *testing.T) {
		sess := liveSession(owner)
		sess.Status = models.StatusCreated
		svc, _, _, _ := newTestService(sess, nil)
		_, err := svc.Join(ctx, sess.ID, ident(uuid.New()))
		if !apperr.IsKind(err, apperr.KindInvalidState) {
			t.Errorf("Join(created) error = %v, want InvalidState", err)
		}
	})

	t.Run("owner joins as broadcaster", func(t *testing.T) {
		sess := liveSession(owner)
		svc, roster, _, _ := newTestService(sess, nil)
		if _, err := svc.Join(ctx, sess.ID, ident(owner)); err != nil {
			t.Fatalf("Join() error = %v", err)
		}
		if n, _ := roster.CountOpenBroadcasters(ctx, sess.ID); n != 1 {
			t.Errorf("broadcasters = %d, want 1", n)
		}
	})

	t.Run("rejoin refreshes instead of duplicating", func(t *testing.T) {
		sess := liveSession(owner)
		svc, roster, _, peak := newTestService(sess, nil)
		user := ident(uuid.New())
		for i := 0; i < 3; i++ {
			if _, err := svc.Join(ctx, sess.ID, user); err != nil {
				t.Fatalf("Join() #%d error = %v", i, err)
			}
		}
		if len(roster.entries) != 1 {
			t.Errorf("roster entries = %d, want 1", len(roster.entries))
		}
		if roster.totalViews != 1 {
			t.Errorf("total views = %d, want 1 (rejoin does not recount)", roster.totalViews)
		}
		if peak.peak != 1 {
			t.Errorf("peak = %d, want 1", peak.peak)
		}
	})

	t.Run("capacity full", func(t *testing.T) {
		sess := liveSession(owner)
		sess.Settings.MaxParticipants = 2
		svc, _, _, _ := newTestService(sess, nil)
		for i := 0; i < 2; i++ {
			if _, err := svc.Join(ctx, sess.ID, ident(uuid.New())); err != nil {
				t.Fatalf("Join() error = %v", err)
			}
		}
		_, err := svc.Join(ctx, sess.ID, ident(uuid.New()))
		if !apperr.IsKind(err, apperr.KindInvalidState) {
			t.Errorf("Join(full) error = %v, want InvalidState", err)
		}
	})

	t.Run("private session requires enrollment", func(t *testing.T) {
		courseID := uuid.New()
		sess := liveSession(owner)
		sess.IsPublic = false
		sess.CourseID = &courseID
		svc, _, _, _ := newTestService(sess, denyAll{})

		_, err := svc.Join(ctx, sess.ID, ident(uuid.New()))
		if !apperr.IsKind(err, apperr.KindForbidden) {
			t.Errorf("unenrolled Join() error = %v, want Forbidden", err)
		}
		// The owner is exempt.
		if _, err := svc.Join(ctx, sess.ID, ident(owner)); err != nil {
			t.Errorf("owner Join() error = %v, want nil", err)
		}
	})

	t.Run("private session without course rejects", func(t *testing.T) {
		sess := liveSession(owner)
		sess.IsPublic = false
		svc, _, _, _ := newTestService(sess, nil)
		_, err := svc.Join(ctx, sess.ID, ident(uuid.New()))
		if !apperr.IsKind(err, apperr.KindForbidden) {
			t.Errorf("Join() error = %v, want Forbidden", err)
		}
	})

	t.Run("peak tracks concurrent joins", func(t *testing.T) {
		sess := liveSession(owner)
		svc, _, _, peak := newTestService(sess, nil)
		users := []models.Identity{ident(uuid.New()), ident(uuid.New()), ident(uuid.New())}
		for _, u := range users {
			if _, err := svc.Join(ctx, sess.ID, u); err != nil {
				t.Fatalf("Join() error = %v", err)
			}
		}
		if err := svc.Leave(ctx, sess.ID, users[0].UserID); err != nil {
			t.Fatalf("Leave() error = %v", err)
		}
		if _, err := svc.Join(ctx, sess.ID, ident(uuid.New())); err != nil {
			t.Fatalf("Join() error = %v", err)
		}
		if peak.peak != 3 {
			t.Errorf("peak = %d, want 3", peak.peak)
		}
	})
}

func TestHeartbeat(t *testing.T) {
	ctx := context.Background()
	owner := uuid.New()
	sess := liveSession(owner)
	svc, _, _, _ := newTestService(sess, nil)

	user := ident(uuid.New())
	if err := svc.Heartbeat(ctx, sess.ID, user.UserID); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("Heartbeat before Join error = %v, want NotFound", err)
	}
	if _, err := svc.Join(ctx, sess.ID, user); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if err := svc.Heartbeat(ctx, sess.ID, user.UserID); err != nil {
		t.Errorf("Heartbeat() error = %v", err)
	}
}

func TestLeave(t *testing.T) {
	ctx := context.Background()
	owner := uuid.New()

	t.Run("unknown participant", func(t *testing.T) {
		sess := liveSession(owner)
		svc, _, _, _ := newTestService(sess, nil)
		if err := svc.Leave(ctx, sess.ID, uuid.New()); !apperr.IsKind(err, apperr.KindNotFound) {
			t.Errorf("Leave() error = %v, want NotFound", err)
		}
	})

	t.Run("viewer leave does not end session", func(t *testing.T) {
		sess := liveSession(owner)
		svc, _, lifecycle, _ := newTestService(sess, nil)
		user := ident(uuid.New())
		if _, err := svc.Join(ctx, sess.ID, user); err != nil {
			t.Fatalf("Join() error = %v", err)
		}
		if err := svc.Leave(ctx, sess.ID, user.UserID); err != nil {
			t.Fatalf("Leave() error = %v", err)
		}
		if lifecycle.ended {
			t.Error("viewer leave ended the session")
		}
	})

	t.Run("last broadcaster leave ends session", func(t *testing.T) {
		sess := liveSession(owner)
		svc, _, lifecycle, _ := newTestService(sess, nil)
		if _, err := svc.Join(ctx, sess.ID, ident(owner)); err != nil {
			t.Fatalf("Join() error = %v", err)
		}
		if _, err := svc.Join(ctx, sess.ID, ident(uuid.New())); err != nil {
			t.Fatalf("viewer Join() error = %v", err)
		}
		if err := svc.Leave(ctx, sess.ID, owner); err != nil {
			t.Fatalf("Leave() error = %v", err)
		}
		if !lifecycle.ended || lifecycle.endedBy != owner {
			t.Errorf("ended = %v by %v, want ended by owner", lifecycle.ended, lifecycle.endedBy)
		}
	})

	t.Run("already-ended race is tolerated", func(t *testing.T) {
		sess := liveSession(owner)
		svc, roster, lifecycle, _ := newTestService(sess, nil)
		lifecycle.err = apperr.InvalidState("session is not live")
		if _, err := svc.Join(ctx, sess.ID, ident(owner)); err != nil {
			t.Fatalf("Join() error = %v", err)
		}
		if err := svc.Leave(ctx, sess.ID, owner); err != nil {
			t.Fatalf("Leave() error = %v", err)
		}
		if n, _ := roster.CountOpen(ctx, sess.ID); n != 0 {
			t.Errorf("open entries = %d, want 0", n)
		}
	})
}
