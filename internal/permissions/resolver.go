// Package permissions computes the effective capability set for a user within
// a session. Every mutating component consults this synchronously; nothing
// caches a decision across calls.
package permissions

import (
	"github.com/google/uuid"

	"github.com/classlive/backend/internal/models"
)

// Capabilities is the resolved set of permitted actions for one user in one
// session.
type Capabilities struct {
	IsOwner               bool `json:"is_owner"`
	IsModerator           bool `json:"is_moderator"`
	CanModifySettings     bool `json:"can_modify_settings"`
	CanManageParticipants bool `json:"can_manage_participants"`
	CanModerateChat       bool `json:"can_moderate_chat"`
	CanScreenShare        bool `json:"can_screen_share"`
	CanSpeak              bool `json:"can_speak"`
}

// Resolve computes capabilities from session state and the moderator set.
// Owner and moderators hold every capability except CanModifySettings, which
// is owner-only. Plain participants get speak/screen-share only when the
// session settings allow them.
func Resolve(session *models.Session, moderators []uuid.UUID, userID uuid.UUID) Capabilities {
	caps := Capabilities{}
	if session == nil {
		return caps
	}
	caps.IsOwner = session.OwnerID == userID
	for _, m := range moderators {
		if m == userID {
			caps.IsModerator = true
			break
		}
	}
	if caps.IsOwner || caps.IsModerator {
		caps.CanModifySettings = caps.IsOwner
		caps.CanManageParticipants = true
		caps.CanModerateChat = true
		caps.CanScreenShare = true
		caps.CanSpeak = true
		return caps
	}
	caps.CanScreenShare = session.Settings.AllowScreenShare
	caps.CanSpeak = session.Settings.AllowParticipantAudio
	return caps
}
