package chat

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/classlive/backend/internal/middleware"
	"github.com/classlive/backend/internal/models"
	"github.com/classlive/backend/internal/realtime"
	"github.com/classlive/backend/pkg/response"
)

// PostRequest is the body for POST /sessions/:id/chat.
type PostRequest struct {
	Body string `json:"body" binding:"required"`
	Kind string `json:"kind"`
}

// ModerateRequest is the body for POST /sessions/:id/chat/:messageID/moderate.
type ModerateRequest struct {
	Action string `json:"action" binding:"required"`
}

// ReactRequest is the body for POST /sessions/:id/chat/:messageID/react.
type ReactRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

// Handler handles chat HTTP endpoints.
type Handler struct {
	service *Service
	hub     *realtime.Hub
}

// NewHandler creates a chat handler.
func NewHandler(service *Service, hub *realtime.Hub) *Handler {
	return &Handler{service: service, hub: hub}
}

func parseIDs(c *gin.Context) (sessionID, messageID uuid.UUID, ok bool) {
	var err error
	sessionID, err = uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	messageID, err = uuid.Parse(c.Param("messageID"))
	if err != nil {
		response.BadRequest(c, "invalid message id")
		return
	}
	ok = true
	return
}

// Post handles POST /sessions/:id/chat.
func (h *Handler) Post(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	var req PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Kind == "" {
		req.Kind = models.KindChat
	}
	ident := middleware.Identity(c)
	m, err := h.service.Post(c.Request.Context(), sessionID, ident, req.Body, req.Kind)
	if err != nil {
		response.Error(c, err)
		return
	}
	// Publish only: the Redis subscriber broadcasts once for every instance,
	// avoiding duplicate delivery to local clients.
	h.hub.PublishToSessionOnly(sessionID, "chat_message", m)
	response.Created(c, m)
}

// List handles GET /sessions/:id/chat.
func (h *Handler) List(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
	list, err := h.service.List(c.Request.Context(), sessionID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"messages": list})
}

// Moderate handles POST /sessions/:id/chat/:messageID/moderate.
func (h *Handler) Moderate(c *gin.Context) {
	sessionID, messageID, ok := parseIDs(c)
	if !ok {
		return
	}
	var req ModerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ident := middleware.Identity(c)
	m, err := h.service.Moderate(c.Request.Context(), sessionID, messageID, req.Action, ident.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.hub.PublishToSessionOnly(sessionID, "chat_moderated", gin.H{
		"message_id": messageID, "action": req.Action,
		"is_pinned": m.IsPinned, "is_highlighted": m.IsHighlighted, "is_deleted": m.IsDeleted,
	})
	response.OK(c, m)
}

// React handles POST /sessions/:id/chat/:messageID/react.
func (h *Handler) React(c *gin.Context) {
	sessionID, messageID, ok := parseIDs(c)
	if !ok {
		return
	}
	var req ReactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ident := middleware.Identity(c)
	if err := h.service.React(c.Request.Context(), sessionID, messageID, req.Emoji, ident.UserID); err != nil {
		response.Error(c, err)
		return
	}
	h.hub.PublishToSessionOnly(sessionID, "chat_reaction", gin.H{
		"message_id": messageID, "emoji": req.Emoji, "user_id": ident.UserID,
	})
	response.OK(c, gin.H{"message_id": messageID, "emoji": req.Emoji})
}

// PatchSettings handles PATCH /sessions/:id/chat-settings.
func (h *Handler) PatchSettings(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	var patch SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ident := middleware.Identity(c)
	if err := h.service.PatchSettings(c.Request.Context(), sessionID, ident.UserID, patch); err != nil {
		response.Error(c, err)
		return
	}
	h.hub.BroadcastToSessionAndPublish(sessionID, "chat_settings_changed", gin.H{"session_id": sessionID})
	response.OK(c, gin.H{"session_id": sessionID})
}

// ResetSettings handles DELETE /sessions/:id/chat-settings.
func (h *Handler) ResetSettings(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	ident := middleware.Identity(c)
	if err := h.service.ResetSettings(c.Request.Context(), sessionID, ident.UserID); err != nil {
		response.Error(c, err)
		return
	}
	h.hub.BroadcastToSessionAndPublish(sessionID, "chat_settings_changed", gin.H{"session_id": sessionID})
	response.NoContent(c)
}
