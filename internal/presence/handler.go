package presence

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/classlive/backend/internal/middleware"
	"github.com/classlive/backend/internal/realtime"
	"github.com/classlive/backend/pkg/response"
)

// Handler handles presence HTTP endpoints.
type Handler struct {
	service *Service
	repo    *Repository
	hub     *realtime.Hub
}

// NewHandler creates a presence handler.
func NewHandler(service *Service, repo *Repository, hub *realtime.Hub) *Handler {
	return &Handler{service: service, repo: repo, hub: hub}
}

func parseSessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}

// Join handles POST /sessions/:id/join.
func (h *Handler) Join(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}
	ident := middleware.Identity(c)
	if _, err := h.service.Join(c.Request.Context(), id, ident); err != nil {
		response.Error(c, err)
		return
	}
	count, _ := h.service.ViewerCount(c.Request.Context(), id)
	h.hub.BroadcastToSessionAndPublish(id, "participant_joined", gin.H{
		"user_id": ident.UserID, "display_name": ident.DisplayName, "viewer_count": count,
	})
	response.OK(c, gin.H{"accepted": true, "viewer_count": count})
}

// Heartbeat handles POST /sessions/:id/heartbeat.
func (h *Handler) Heartbeat(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}
	ident := middleware.Identity(c)
	if err := h.service.Heartbeat(c.Request.Context(), id, ident.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"ok": true})
}

// Leave handles POST /sessions/:id/leave.
func (h *Handler) Leave(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}
	ident := middleware.Identity(c)
	if err := h.service.Leave(c.Request.Context(), id, ident.UserID); err != nil {
		response.Error(c, err)
		return
	}
	count, _ := h.service.ViewerCount(c.Request.Context(), id)
	h.hub.BroadcastToSessionAndPublish(id, "participant_left", gin.H{
		"user_id": ident.UserID, "viewer_count": count,
	})
	response.OK(c, gin.H{"ok": true, "viewer_count": count})
}

// Roster handles GET /sessions/:id/participants.
func (h *Handler) Roster(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}
	list, err := h.repo.ListOpen(c.Request.Context(), id)
	if err != nil {
		response.Internal(c, "failed to list participants")
		return
	}
	response.OK(c, gin.H{"participants": list, "viewer_count": len(list)})
}
