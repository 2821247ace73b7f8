package chat

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/classlive/backend/internal/models"
	"github.com/classlive/backend/pkg/apperr"
)

type fakeStore struct {
	messages map[uuid.UUID]*models.Message
	lastAt   map[uuid.UUID]time.Time
	inserted []*models.Message
	deleted  []uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		messages: make(map[uuid.UUID]*models.Message),
		lastAt:   make(map[uuid.UUID]time.Time),
	}
}

func (f *fakeStore) Insert(_ context.Context, m *models.Message) error {
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	f.messages[m.ID] = m
	f.inserted = append(f.inserted, m)
	f.lastAt[m.UserID] = m.CreatedAt
	return nil
}

func (f *fakeStore) LastMessageAt(_ context.Context, _, userID uuid.UUID) (*time.Time, error) {
	if at, ok := f.lastAt[userID]; ok {
		return &at, nil
	}
	return nil, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*models.Message, error) {
	return f.messages[id], nil
}

func (f *fakeStore) SetPinned(_ context.Context, id uuid.UUID, pinned bool) error {
	f.messages[id].IsPinned = pinned
	return nil
}

func (f *fakeStore) SetHighlighted(_ context.Context, id uuid.UUID, highlighted bool) error {
	f.messages[id].IsHighlighted = highlighted
	return nil
}

func (f *fakeStore) SoftDelete(_ context.Context, id uuid.UUID) error {
	f.messages[id].IsDeleted = true
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeStore) List(_ context.Context, sessionID uuid.UUID, _ int) ([]models.Message, error) {
	var out []models.Message
	for _, m := range f.inserted {
		if m.SessionID == sessionID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeStore) ToggleReaction(context.Context, uuid.UUID, string, uuid.UUID) error {
	return nil
}

type fakeSessions struct {
	session *models.Session
}

func (f *fakeSessions) Get(_ context.Context, id uuid.UUID) (*models.Session, error) {
	if f.session == nil || f.session.ID != id {
		return nil, apperr.NotFound("session not found")
	}
	return f.session, nil
}

type fakeMods struct {
	mods []uuid.UUID
}

func (f *fakeMods) ListModerators(context.Context, uuid.UUID) ([]uuid.UUID, error) {
	return f.mods, nil
}

type fakeSettings struct {
	patched  bool
	reset    bool
	interval *int
}

func (f *fakeSettings) UpdateChatSettings(_ context.Context, _ uuid.UUID, _, _, _, _ *bool, slowModeInterval, _ *int) error {
	f.patched = true
	f.interval = slowModeInterval
	return nil
}

func (f *fakeSettings) ResetChatSettings(context.Context, uuid.UUID) error {
	f.reset = true
	return nil
}

type fakeInteractions struct {
	count int
}

func (f *fakeInteractions) IncrementInteractions(_ context.Context, _ uuid.UUID, delta int) error {
	f.count += delta
	return nil
}

func liveSession(owner uuid.UUID) *models.Session {
	return &models.Session{
		ID:       uuid.New(),
		OwnerID:  owner,
		Status:   models.StatusLive,
		IsPublic: true,
		Settings: models.DefaultSettings(),
	}
}

func newTestService(sess *models.Session, mods []uuid.UUID) (*Service, *fakeStore, *fakeInteractions) {
	store := newFakeStore()
	inter := &fakeInteractions{}
	svc := NewService(store, &fakeSessions{session: sess}, &fakeMods{mods: mods}, &fakeSettings{}, inter, NewFilter(), nil)
	return svc, store, inter
}

func TestPostGates(t *testing.T) {
	owner := uuid.New()
	viewer := models.Identity{UserID: uuid.New(), DisplayName: "viewer"}

	tests := []struct {
		name     string
		mutate   func(*models.Session)
		body     string
		kind     string
		wantKind apperr.Kind
	}{
		{"plain post succeeds", nil, "hello", models.KindChat, apperr.KindUnknown},
		{"not live", func(s *models.Session) { s.Status = models.StatusEnded }, "hello", models.KindChat, apperr.KindInvalidState},
		{"unknown kind", nil, "hello", "poll", apperr.KindInvalidRequest},
		{"empty body", nil, "   ", models.KindChat, apperr.KindInvalidRequest},
		{"chat disabled", func(s *models.Session) { s.Settings.ChatEnabled = false }, "hello", models.KindChat, apperr.KindForbidden},
		{"question allowed when chat disabled", func(s *models.Session) { s.Settings.ChatEnabled = false }, "why?", models.KindQuestion, apperr.KindUnknown},
		{"profanity rejected", nil, "this is shit", models.KindChat, apperr.KindRejected},
		{"link rejected", nil, "see https://spam.example", models.KindChat, apperr.KindRejected},
		{"link allowed when enabled", func(s *models.Session) { s.Settings.AllowLinks = true }, "see https://ok.example", models.KindChat, apperr.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := liveSession(owner)
			if tt.mutate != nil {
				tt.mutate(sess)
			}
			svc, _, _ := newTestService(sess, nil)
			_, err := svc.Post(context.Background(), sess.ID, viewer, tt.body, tt.kind)
			if tt.wantKind == apperr.KindUnknown {
				if err != nil {
					t.Fatalf("Post() error = %v, want nil", err)
				}
				return
			}
			if !apperr.IsKind(err, tt.wantKind) {
				t.Errorf("Post() error = %v, want kind %v", err, tt.wantKind)
			}
		})
	}
}

func TestPostSlowMode(t *testing.T) {
	owner := uuid.New()
	sess := liveSession(owner)
	sess.Settings.SlowModeEnabled = true
	sess.Settings.SlowModeIntervalSec = 30
	svc, _, _ := newTestService(sess, nil)

	viewer := models.Identity{UserID: uuid.New(), DisplayName: "viewer"}
	if _, err := svc.Post(context.Background(), sess.ID, viewer, "first", models.KindChat); err != nil {
		t.Fatalf("first Post() error = %v", err)
	}
	_, err := svc.Post(context.Background(), sess.ID, viewer, "second", models.KindChat)
	if !apperr.IsKind(err, apperr.KindRateLimited) {
		t.Errorf("second Post() error = %v, want RateLimited", err)
	}

	// Owner is exempt from slow mode.
	ownerIdent := models.Identity{UserID: owner, DisplayName: "owner"}
	for i := 0; i < 3; i++ {
		if _, err := svc.Post(context.Background(), sess.ID, ownerIdent, "burst", models.KindChat); err != nil {
			t.Fatalf("owner Post() error = %v", err)
		}
	}
}

func TestPostModeratorExemptFromFilters(t *testing.T) {
	owner := uuid.New()
	mod := uuid.New()
	sess := liveSession(owner)
	svc, _, _ := newTestService(sess, []uuid.UUID{mod})

	modIdent := models.Identity{UserID: mod, DisplayName: "mod"}
	if _, err := svc.Post(context.Background(), sess.ID, modIdent, "moderator link https://ok.example", models.KindChat); err != nil {
		t.Errorf("moderator Post() error = %v, want nil", err)
	}
}

func TestPostAssignsRoleAndCountsInteraction(t *testing.T) {
	owner := uuid.New()
	sess := liveSession(owner)
	svc, store, inter := newTestService(sess, nil)

	ownerIdent := models.Identity{UserID: owner, DisplayName: "owner"}
	m, err := svc.Post(context.Background(), sess.ID, ownerIdent, "welcome", models.KindAnnouncement)
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if m.Role != models.RoleBroadcaster {
		t.Errorf("owner message role = %q, want broadcaster", m.Role)
	}
	if len(store.inserted) != 1 || inter.count != 1 {
		t.Errorf("inserted = %d, interactions = %d, want 1 and 1", len(store.inserted), inter.count)
	}
}

func TestModerate(t *testing.T) {
	owner := uuid.New()
	viewerID := uuid.New()
	sess := liveSession(owner)
	svc, store, _ := newTestService(sess, nil)

	m, err := svc.Post(context.Background(), sess.ID, models.Identity{UserID: viewerID, DisplayName: "v"}, "hi", models.KindChat)
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}

	// Plain viewer may not moderate.
	if _, err := svc.Moderate(context.Background(), sess.ID, m.ID, ActionDelete, viewerID); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Errorf("viewer Moderate() error = %v, want Forbidden", err)
	}

	got, err := svc.Moderate(context.Background(), sess.ID, m.ID, ActionPin, owner)
	if err != nil {
		t.Fatalf("Moderate(pin) error = %v", err)
	}
	if !got.IsPinned {
		t.Error("message not pinned")
	}

	got, err = svc.Moderate(context.Background(), sess.ID, m.ID, ActionDelete, owner)
	if err != nil {
		t.Fatalf("Moderate(delete) error = %v", err)
	}
	if !got.IsDeleted {
		t.Error("message not soft-deleted")
	}
	if len(store.deleted) != 1 {
		t.Errorf("soft deletes = %d, want 1", len(store.deleted))
	}

	if _, err := svc.Moderate(context.Background(), sess.ID, m.ID, "vaporize", owner); !apperr.IsKind(err, apperr.KindInvalidRequest) {
		t.Errorf("Moderate(unknown) error = %v, want InvalidRequest", err)
	}
	if _, err := svc.Moderate(context.Background(), sess.ID, uuid.New(), ActionPin, owner); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Errorf("Moderate(absent) error = %v, want NotFound", err)
	}
}

func TestPatchSettingsOwnerOnlyAndClamped(t *testing.T) {
	owner := uuid.New()
	mod := uuid.New()
	sess := liveSession(owner)
	store := newFakeStore()
	settings := &fakeSettings{}
	svc := NewService(store, &fakeSessions{session: sess}, &fakeMods{mods: []uuid.UUID{mod}}, settings, &fakeInteractions{}, nil, nil)

	interval := 9999
	patch := SettingsPatch{SlowModeIntervalSec: &interval}

	// Moderators hold every capability except settings.
	if err := svc.PatchSettings(context.Background(), sess.ID, mod, patch); !apperr.IsKind(err, apperr.KindForbidden) {
		t.Errorf("moderator PatchSettings() error = %v, want Forbidden", err)
	}

	if err := svc.PatchSettings(context.Background(), sess.ID, owner, patch); err != nil {
		t.Fatalf("owner PatchSettings() error = %v", err)
	}
	if !settings.patched {
		t.Error("settings not patched")
	}
	if settings.interval == nil || *settings.interval != MaxSlowModeIntervalSec {
		t.Errorf("stored interval = %v, want clamped to %d", settings.interval, MaxSlowModeIntervalSec)
	}

	if err := svc.ResetSettings(context.Background(), sess.ID, owner); err != nil || !settings.reset {
		t.Errorf("ResetSettings() error = %v, reset = %v", err, settings.reset)
	}
}
