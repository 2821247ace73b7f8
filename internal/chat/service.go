package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classlive/backend/internal/models"
	"github.com/classlive/backend/internal/permissions"
	"github.com/classlive/backend/pkg/apperr"
)

// Moderation actions.
const (
	ActionPin         = "pin"
	ActionUnpin       = "unpin"
	ActionHighlight   = "highlight"
	ActionUnhighlight = "unhighlight"
	ActionDelete      = "delete"
)

// Slow-mode interval bounds applied when patching settings.
const (
	MinSlowModeIntervalSec = 1
	MaxSlowModeIntervalSec = 300
)

// Store is the chat log persistence surface. *Repository implements it.
type Store interface {
	Insert(ctx context.Context, m *models.Message) error
	LastMessageAt(ctx context.Context, sessionID, userID uuid.UUID) (*time.Time, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error)
	SetPinned(ctx context.Context, id uuid.UUID, pinned bool) error
	SetHighlighted(ctx context.Context, id uuid.UUID, highlighted bool) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.Message, error)
	ToggleReaction(ctx context.Context, id uuid.UUID, emoji string, userID uuid.UUID) error
}

// SessionGetter loads a session or fails NotFound.
type SessionGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// ModeratorLister returns the moderator set for capability resolution.
type ModeratorLister interface {
	ListModerators(ctx context.Context, sessionID uuid.UUID) ([]uuid.UUID, error)
}

// SettingsStore patches and resets the chat settings columns.
type SettingsStore interface {
	UpdateChatSettings(ctx context.Context, id uuid.UUID, chatEnabled, slowMode, profanity, allowLinks *bool, slowModeInterval, maxParticipants *int) error
	ResetChatSettings(ctx context.Context, id uuid.UUID) error
}

// Interactions bumps the session interaction counter.
type Interactions interface {
	IncrementInteractions(ctx context.Context, id uuid.UUID, delta int) error
}

// SettingsPatch carries the optional fields of a chat-settings update.
type SettingsPatch struct {
	ChatEnabled            *bool `json:"chat_enabled"`
	SlowModeEnabled        *bool `json:"slow_mode_enabled"`
	SlowModeIntervalSec    *int  `json:"slow_mode_interval_seconds"`
	ProfanityFilterEnabled *bool `json:"profanity_filter_enabled"`
	AllowLinks             *bool `json:"allow_links"`
	MaxParticipants        *int  `json:"max_participants"`
}

// Service appends to the moderated chat log and enforces the session's
// throttling and content policies.
type Service struct {
	store        Store
	sessions     SessionGetter
	moderators   ModeratorLister
	settings     SettingsStore
	interactions Interactions
	filter       *Filter
	logger       *zap.Logger
}

// NewService creates a chat service.
func NewService(store Store, sessions SessionGetter, moderators ModeratorLister, settings SettingsStore, interactions Interactions, filter *Filter, logger *zap.Logger) *Service {
	if filter == nil {
		filter = NewFilter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, sessions: sessions, moderators: moderators, settings: settings, interactions: interactions, filter: filter, logger: logger}
}

// Post appends a message to the log. Fails Forbidden when chat is disabled,
// RateLimited under slow mode, and Rejected when the content policy refuses
// the body.
func (s *Service) Post(ctx context.Context, sessionID uuid.UUID, author models.Identity, body, kind string) (*models.Message, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.IsLive() {
		return nil, apperr.InvalidState("session is not live")
	}
	switch kind {
	case models.KindChat, models.KindQuestion, models.KindAnnouncement:
	default:
		return nil, apperr.InvalidRequest("unknown message kind: " + kind)
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperr.InvalidRequest("empty message body")
	}

	if kind == models.KindChat && !sess.Settings.ChatEnabled {
		return nil, apperr.Forbidden("chat is disabled for this session")
	}

	// Owner and moderators are exempt from slow mode and content filters.
	mods, err := s.moderators.ListModerators(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list moderators: %w", err)
	}
	caps := permissions.Resolve(sess, mods, author.UserID)
	if !caps.CanModerateChat {
		if sess.Settings.SlowModeEnabled {
			last, err := s.store.LastMessageAt(ctx, sessionID, author.UserID)
			if err != nil {
				return nil, fmt.Errorf("slow mode check: %w", err)
			}
			interval := time.Duration(sess.Settings.SlowModeIntervalSec) * time.Second
			if last != nil && time.Since(*last) < interval {
				return nil, apperr.RateLimited("slow mode: wait before posting again")
			}
		}
		if sess.Settings.ProfanityFilterEnabled && s.filter.ContainsProfanity(body) {
			return nil, apperr.Rejected("message rejected by profanity filter")
		}
		if !sess.Settings.AllowLinks && s.filter.ContainsLink(body) {
			return nil, apperr.Rejected("links are not allowed in this session")
		}
	}

	role := models.RoleViewer
	if author.UserID == sess.OwnerID {
		role = models.RoleBroadcaster
	}
	m := &models.Message{
		SessionID:   sessionID,
		UserID:      author.UserID,
		DisplayName: author.DisplayName,
		Role:        role,
		Body:        body,
		Kind:        kind,
	}
	if err := s.store.Insert(ctx, m); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	if err := s.interactions.IncrementInteractions(ctx, sessionID, 1); err != nil {
		s.logger.Warn("increment interactions", zap.Error(err))
	}
	return m, nil
}

// Moderate applies a moderation action to a message. Requires the moderate
// capability. Delete is a soft delete; the entry stays for the audit trail.
func (s *Service) Moderate(ctx context.Context, sessionID, messageID uuid.UUID, action string, byUserID uuid.UUID) (*models.Message, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	mods, err := s.moderators.ListModerators(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list moderators: %w", err)
	}
	caps := permissions.Resolve(sess, mods, byUserID)
	if !caps.CanModerateChat {
		return nil, apperr.Forbidden("moderator or owner capability required")
	}
	m, err := s.store.GetByID(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	if m == nil || m.SessionID != sessionID {
		return nil, apperr.NotFound("message not found")
	}

	switch action {
	case ActionPin:
		err = s.store.SetPinned(ctx, messageID, true)
		m.IsPinned = true
	case ActionUnpin:
		err = s.store.SetPinned(ctx, messageID, false)
		m.IsPinned = false
	case ActionHighlight:
		err = s.store.SetHighlighted(ctx, messageID, true)
		m.IsHighlighted = true
	case ActionUnhighlight:
		err = s.store.SetHighlighted(ctx, messageID, false)
		m.IsHighlighted = false
	case ActionDelete:
		err = s.store.SoftDelete(ctx, messageID)
		m.IsDeleted = true
	default:
		return nil, apperr.InvalidRequest("unknown moderation action: " + action)
	}
	if err != nil {
		return nil, fmt.Errorf("apply %s: %w", action, err)
	}
	return m, nil
}

// React toggles the caller's reaction on a message and counts it as an
// interaction.
func (s *Service) React(ctx context.Context, sessionID, messageID uuid.UUID, emoji string, byUserID uuid.UUID) error {
	if emoji == "" {
		return apperr.InvalidRequest("empty emoji")
	}
	m, err := s.store.GetByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("get message: %w", err)
	}
	if m == nil || m.SessionID != sessionID {
		return apperr.NotFound("message not found")
	}
	if err := s.store.ToggleReaction(ctx, messageID, emoji, byUserID); err != nil {
		return fmt.Errorf("toggle reaction: %w", err)
	}
	if err := s.interactions.IncrementInteractions(ctx, sessionID, 1); err != nil {
		s.logger.Warn("increment interactions", zap.Error(err))
	}
	return nil
}

// List returns recent messages in insertion order.
func (s *Service) List(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.Message, error) {
	if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.store.List(ctx, sessionID, limit)
}

// PatchSettings updates chat settings. Owner-only; numeric fields are clamped
// to sane bounds.
func (s *Service) PatchSettings(ctx context.Context, sessionID uuid.UUID, byUserID uuid.UUID, patch SettingsPatch) error {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	mods, err := s.moderators.ListModerators(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list moderators: %w", err)
	}
	caps := permissions.Resolve(sess, mods, byUserID)
	if !caps.CanModifySettings {
		return apperr.Forbidden("only the owner can modify settings")
	}
	if patch.SlowModeIntervalSec != nil {
		v := clamp(*patch.SlowModeIntervalSec, MinSlowModeIntervalSec, MaxSlowModeIntervalSec)
		patch.SlowModeIntervalSec = &v
	}
	if patch.MaxParticipants != nil && *patch.MaxParticipants < 1 {
		v := 1
		patch.MaxParticipants = &v
	}
	return s.settings.UpdateChatSettings(ctx, sessionID,
		patch.ChatEnabled, patch.SlowModeEnabled, patch.ProfanityFilterEnabled, patch.AllowLinks,
		patch.SlowModeIntervalSec, patch.MaxParticipants)
}

// ResetSettings restores the documented chat settings defaults. Owner-only.
func (s *Service) ResetSettings(ctx context.Context, sessionID, byUserID uuid.UUID) error {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	mods, err := s.moderators.ListModerators(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list moderators: %w", err)
	}
	caps := permissions.Resolve(sess, mods, byUserID)
	if !caps.CanModifySettings {
		return apperr.Forbidden("only the owner can modify settings")
	}
	return s.settings.ResetChatSettings(ctx, sessionID)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
