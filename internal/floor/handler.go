package floor

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/classlive/backend/internal/middleware"
	"github.com/classlive/backend/internal/realtime"
	"github.com/classlive/backend/pkg/response"
)

// ResolveRequest is the body for POST /sessions/:id/hand/resolve.
type ResolveRequest struct {
	UserID  uuid.UUID `json:"user_id" binding:"required"`
	Outcome string    `json:"outcome" binding:"required"`
}

// Handler handles floor-control HTTP endpoints.
type Handler struct {
	service *Service
	hub     *realtime.Hub
}

// NewHandler creates a floor-control handler.
func NewHandler(service *Service, hub *realtime.Hub) *Handler {
	return &Handler{service: service, hub: hub}
}

func parseSessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}

// Raise handles POST /sessions/:id/hand (toggle).
func (h *Handler) Raise(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}
	ident := middleware.Identity(c)
	raised, err := h.service.Raise(c.Request.Context(), id, ident.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	event := "hand_lowered"
	if raised {
		event = "hand_raised"
	}
	h.hub.BroadcastToSessionAndPublish(id, event, gin.H{
		"user_id": ident.UserID, "display_name": ident.DisplayName,
	})
	response.OK(c, gin.H{"raised": raised})
}

// Resolve handles POST /sessions/:id/hand/resolve.
func (h *Handler) Resolve(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ident := middleware.Identity(c)
	if err := h.service.Resolve(c.Request.Context(), id, req.UserID, req.Outcome, ident.UserID); err != nil {
		response.Error(c, err)
		return
	}
	h.hub.BroadcastToSessionAndPublish(id, "hand_resolved", gin.H{
		"user_id": req.UserID, "outcome": req.Outcome, "resolved_by": ident.UserID,
	})
	response.OK(c, gin.H{"user_id": req.UserID, "outcome": req.Outcome})
}

// List handles GET /sessions/:id/hands.
func (h *Handler) List(c *gin.Context) {
	id, ok := parseSessionID(c)
	if !ok {
		return
	}
	list, err := h.service.List(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"hands": list})
}
