package permissions

import (
	"testing"

	"github.com/google/uuid"

	"github.com/classlive/backend/internal/models"
)

func TestResolve(t *testing.T) {
	owner := uuid.New()
	mod := uuid.New()
	viewer := uuid.New()

	base := func() *models.Session {
		return &models.Session{
			ID:       uuid.New(),
			OwnerID:  owner,
			Status:   models.StatusLive,
			Settings: models.DefaultSettings(),
		}
	}

	tests := []struct {
		name    string
		session func() *models.Session
		userID  uuid.UUID
		want    Capabilities
	}{
		{
			name:    "owner gets everything",
			session: base,
			userID:  owner,
			want: Capabilities{
				IsOwner: true, CanModifySettings: true, CanManageParticipants: true,
				CanModerateChat: true, CanScreenShare: true, CanSpeak: true,
			},
		},
		{
			name:    "moderator gets everything except settings",
			session: base,
			userID:  mod,
			want: Capabilities{
				IsModerator: true, CanManageParticipants: true,
				CanModerateChat: true, CanScreenShare: true, CanSpeak: true,
			},
		},
		{
			name:    "viewer gets nothing by default",
			session: base,
			userID:  viewer,
			want:    Capabilities{},
		},
		{
			name: "viewer speaks when settings allow",
			session: func() *models.Session {
				s := base()
				s.Settings.AllowParticipantAudio = true
				return s
			},
			userID: viewer,
			want:   Capabilities{CanSpeak: true},
		},
		{
			name: "viewer screen-shares when settings allow",
			session: func() *models.Session {
				s := base()
				s.Settings.AllowScreenShare = true
				return s
			},
			userID: viewer,
			want:   Capabilities{CanScreenShare: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.session(), []uuid.UUID{mod}, tt.userID)
			if got != tt.want {
				t.Errorf("Resolve() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestResolveNilSession(t *testing.T) {
	got := Resolve(nil, nil, uuid.New())
	if got != (Capabilities{}) {
		t.Errorf("Resolve(nil) = %+v, want zero capabilities", got)
	}
}
