package sessions_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/classlive/backend/internal/floor"
	"github.com/classlive/backend/internal/models"
	"github.com/classlive/backend/internal/presence"
	"github.com/classlive/backend/internal/sessions"
)

type rosterEntry struct {
	userID   uuid.UUID
	role     string
	joinedAt time.Time
	leftAt   *time.Time
}

// world is one shared in-memory store wired under the real lifecycle,
// presence and floor services. It mirrors the conditional semantics of the
// SQL repositories: guarded status transitions, one open roster entry per
// user, watch time folded on close, and final counts snapshotted from the
// cumulative run totals at the end transition.
type world struct {
	session   *models.Session
	roster    []*rosterEntry
	hands     []*models.HandRaise
	chatCount int
}

func (w *world) openEntry(userID uuid.UUID) *rosterEntry {
	for _, e := range w.roster {
		if e.userID == userID && e.leftAt == nil {
			return e
		}
	}
	return nil
}

func (w *world) countOpen(role string) int {
	n := 0
	for _, e := range w.roster {
		if e.leftAt == nil && (role == "" || e.role == role) {
			n++
		}
	}
	return n
}

func (w *world) backdateJoin(userID uuid.UUID, by time.Duration) {
	if e := w.openEntry(userID); e != nil {
		e.joinedAt = e.joinedAt.Add(-by)
	}
}

func (w *world) closeEntry(e *rosterEntry) {
	now := time.Now()
	e.leftAt = &now
	w.session.Stats.TotalWatchSeconds += int64(now.Sub(e.joinedAt).Seconds())
}

// sessions.Store

func (w *world) Create(_ context.Context, s *models.Session) error {
	s.ID = uuid.New()
	s.Status = models.StatusCreated
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	cp := *s
	w.session = &cp
	return nil
}

func (w *world) GetByID(_ context.Context, id uuid.UUID) (*models.Session, error) {
	if w.session == nil || w.session.ID != id {
		return nil, nil
	}
	cp := *w.session
	return &cp, nil
}

func (w *world) Schedule(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	if w.session == nil || w.session.ID != id || w.session.Status != models.StatusCreated {
		return false, nil
	}
	w.session.Status = models.StatusScheduled
	w.session.ScheduledFor = &at
	return true, nil
}

func (w *world) MarkLive(_ context.Context, id uuid.UUID) (bool, error) {
	if w.session == nil || w.session.ID != id {
		return false, nil
	}
	if w.session.Status != models.StatusCreated && w.session.Status != models.StatusScheduled {
		return false, nil
	}
	now := time.Now()
	w.session.Status = models.StatusLive
	w.session.StartedAt = &now
	w.session.Stats.PeakViewers = 0
	w.session.Stats.TotalWatchSeconds = 0
	w.session.Stats.FinalViewerCount = 0
	w.session.Stats.FinalChatCount = 0
	return true, nil
}

func (w *world) MarkEnded(_ context.Context, id uuid.UUID) (bool, error) {
	if w.session == nil || w.session.ID != id || w.session.Status != models.StatusLive {
		return false, nil
	}
	now := time.Now()
	w.session.Status = models.StatusEnded
	w.session.EndedAt = &now
	w.session.Stats.FinalViewerCount = int(w.session.Stats.TotalViews)
	w.session.Stats.FinalChatCount = w.chatCount
	return true, nil
}

func (w *world) CloseStaleRoster(_ context.Context, id uuid.UUID) error {
	for _, e := range w.roster {
		if e.leftAt == nil {
			now := time.Now()
			e.leftAt = &now
		}
	}
	return nil
}

func (w *world) CascadeLeave(_ context.Context, id uuid.UUID) (int, error) {
	n := 0
	for _, e := range w.roster {
		if e.leftAt == nil {
			w.closeEntry(e)
			n++
		}
	}
	return n, nil
}

// presence.Roster

func (w *world) RefreshOpen(_ context.Context, sessionID, userID uuid.UUID) (bool, error) {
	return w.openEntry(userID) != nil, nil
}

func (w *world) Insert(_ context.Context, sessionID uuid.UUID, user models.Identity, role string, capacity int) (bool, error) {
	if w.countOpen("") >= capacity || w.openEntry(user.UserID) != nil {
		return false, nil
	}
	w.roster = append(w.roster, &rosterEntry{userID: user.UserID, role: role, joinedAt: time.Now()})
	return true, nil
}

func (w *world) Close(_ context.Context, sessionID, userID uuid.UUID) (int, string, error) {
	e := w.openEntry(userID)
	if e == nil {
		return 0, "", nil
	}
	w.closeEntry(e)
	return 1, e.role, nil
}

func (w *world) CountOpen(_ context.Context, sessionID uuid.UUID) (int, error) {
	return w.countOpen(""), nil
}

func (w *world) CountOpenBroadcasters(_ context.Context, sessionID uuid.UUID) (int, error) {
	return w.countOpen(models.RoleBroadcaster), nil
}

func (w *world) IncrementTotalViews(_ context.Context, sessionID uuid.UUID) error {
	w.session.Stats.TotalViews++
	return nil
}

func (w *world) UpdatePeakViewers(_ context.Context, id uuid.UUID, count int) error {
	if count > w.session.Stats.PeakViewers {
		w.session.Stats.PeakViewers = count
	}
	return nil
}

// floor.Store

func (w *world) DeletePending(_ context.Context, sessionID, userID uuid.UUID) (bool, error) {
	kept := w.hands[:0]
	removed := false
	for _, h := range w.hands {
		if h.UserID == userID && h.ResolvedAt == nil {
			removed = true
			continue
		}
		kept = append(kept, h)
	}
	w.hands = kept
	return removed, nil
}

func (w *world) InsertRaise(_ context.Context, sessionID, userID uuid.UUID) (bool, error) {
	for _, h := range w.hands {
		if h.UserID == userID && h.ResolvedAt == nil {
			return false, nil
		}
	}
	w.hands = append(w.hands, &models.HandRaise{
		ID: uuid.New(), SessionID: sessionID, UserID: userID, RaisedAt: time.Now(),
	})
	return true, nil
}

func (w *world) Resolve(_ context.Context, sessionID, userID uuid.UUID, outcome string, byUserID uuid.UUID) (bool, error) {
	for _, h := range w.hands {
		if h.UserID == userID && h.ResolvedAt == nil {
			now := time.Now()
			h.ResolvedAt = &now
			h.Outcome = &outcome
			h.ResolvedBy = &byUserID
			return true, nil
		}
	}
	return false, nil
}

func (w *world) List(_ context.Context, sessionID uuid.UUID) ([]models.HandRaise, error) {
	out := make([]models.HandRaise, 0, len(w.hands))
	for _, h := range w.hands {
		out = append(out, *h)
	}
	return out, nil
}

func (w *world) ListModerators(_ context.Context, sessionID uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

func (w *world) IncrementInteractions(_ context.Context, id uuid.UUID, delta int) error {
	w.session.Stats.InteractionCount += int64(delta)
	return nil
}

// TestLiveRunScenario drives one full run across the real services: start,
// join, raise, resolve, leave, end. The final viewer count must reflect the
// run's cumulative views even though the roster is already empty at end.
func TestLiveRunScenario(t *testing.T) {
	ctx := context.Background()
	w := &world{}
	sessionService := sessions.NewService(w, nil)
	presenceService := presence.NewService(w, sessionService, sessionService, w, nil, nil)
	floorService := floor.NewService(w, sessionService, w, w, nil)

	owner := models.Identity{UserID: uuid.New(), DisplayName: "teacher", Role: "teacher"}
	viewer := models.Identity{UserID: uuid.New(), DisplayName: "student", Role: "student"}

	sess, err := sessionService.Create(ctx, owner, sessions.CreateParams{Title: "algebra review", IsPublic: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := sessionService.Start(ctx, sess.ID, owner.UserID); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := presenceService.Join(ctx, sess.ID, viewer); err != nil {
		t.Fatalf("join: %v", err)
	}
	if n, _ := presenceService.ViewerCount(ctx, sess.ID); n != 1 {
		t.Fatalf("open roster after join = %d, want 1", n)
	}
	if got := w.session.Stats.TotalViews; got != 1 {
		t.Fatalf("total views after join = %d, want 1", got)
	}

	raised, err := floorService.Raise(ctx, sess.ID, viewer.UserID)
	if err != nil || !raised {
		t.Fatalf("raise = (%v, %v), want (true, nil)", raised, err)
	}
	if err := floorService.Resolve(ctx, sess.ID, viewer.UserID, models.OutcomeAccepted, owner.UserID); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	w.backdateJoin(viewer.UserID, 90*time.Second)
	if err := presenceService.Leave(ctx, sess.ID, viewer.UserID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if n, _ := presenceService.ViewerCount(ctx, sess.ID); n != 0 {
		t.Fatalf("open roster after leave = %d, want 0", n)
	}
	if got := w.session.Stats.TotalWatchSeconds; got < 90 {
		t.Fatalf("total watch seconds after leave = %d, want >= 90", got)
	}

	ended, err := sessionService.End(ctx, sess.ID, owner.UserID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if ended.Status != models.StatusEnded {
		t.Fatalf("status after end = %q, want %q", ended.Status, models.StatusEnded)
	}
	if ended.EndedAt == nil {
		t.Fatal("ended session has no ended_at")
	}
	if ended.Stats.FinalViewerCount != 1 {
		t.Fatalf("final viewer count = %d, want 1 (viewer left before end)", ended.Stats.FinalViewerCount)
	}
	if ended.Stats.InteractionCount != 1 {
		t.Fatalf("interaction count = %d, want 1", ended.Stats.InteractionCount)
	}
}

// TestEndSnapshotsCumulativeCounts pins the snapshot rule: the final counts
// taken at the end transition are the run's cumulative totals, not the size
// of the open roster at that instant.
func TestEndSnapshotsCumulativeCounts(t *testing.T) {
	ctx := context.Background()
	w := &world{}
	sessionService := sessions.NewService(w, nil)
	presenceService := presence.NewService(w, sessionService, sessionService, w, nil, nil)

	owner := models.Identity{UserID: uuid.New(), DisplayName: "teacher", Role: "teacher"}
	a := models.Identity{UserID: uuid.New(), DisplayName: "ana", Role: "student"}
	b := models.Identity{UserID: uuid.New(), DisplayName: "ben", Role: "student"}

	sess, err := sessionService.Create(ctx, owner, sessions.CreateParams{Title: "office hours", IsPublic: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := sessionService.Start(ctx, sess.ID, owner.UserID); err != nil {
		t.Fatalf("start: %v", err)
	}
	for _, u := range []models.Identity{a, b} {
		if _, err := presenceService.Join(ctx, sess.ID, u); err != nil {
			t.Fatalf("join %s: %v", u.DisplayName, err)
		}
	}
	for _, u := range []models.Identity{a, b} {
		if err := presenceService.Leave(ctx, sess.ID, u.UserID); err != nil {
			t.Fatalf("leave %s: %v", u.DisplayName, err)
		}
	}
	w.chatCount = 3

	ended, err := sessionService.End(ctx, sess.ID, owner.UserID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if n, _ := presenceService.ViewerCount(ctx, sess.ID); n != 0 {
		t.Fatalf("open roster at end = %d, want 0", n)
	}
	if ended.Stats.FinalViewerCount != 2 {
		t.Fatalf("final viewer count = %d, want 2", ended.Stats.FinalViewerCount)
	}
	if ended.Stats.FinalChatCount != 3 {
		t.Fatalf("final chat count = %d, want 3", ended.Stats.FinalChatCount)
	}
	if ended.Stats.PeakViewers != 2 {
		t.Fatalf("peak viewers = %d, want 2", ended.Stats.PeakViewers)
	}
}
