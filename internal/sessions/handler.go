package sessions

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/classlive/backend/internal/middleware"
	"github.com/classlive/backend/internal/realtime"
	"github.com/classlive/backend/pkg/response"
)

// CreateRequest is the body for POST /sessions.
type CreateRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	CourseID    *uuid.UUID `json:"course_id"`
	IsPublic    *bool      `json:"is_public"`
}

// ScheduleRequest is the body for POST /sessions/:id/schedule.
type ScheduleRequest struct {
	ScheduledFor time.Time `json:"scheduled_for" binding:"required"`
}

// ModeratorRequest is the body for POST /sessions/:id/moderators.
type ModeratorRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

// Handler handles session lifecycle HTTP endpoints.
type Handler struct {
	service *Service
	repo    *Repository
	hub     *realtime.Hub
}

// NewHandler creates a sessions handler.
func NewHandler(service *Service, repo *Repository, hub *realtime.Hub) *Handler {
	return &Handler{service: service, repo: repo, hub: hub}
}

func sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}

// Create handles POST /sessions.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ident := middleware.Identity(c)
	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}
	sess, err := h.service.Create(c.Request.Context(), ident, CreateParams{
		Title:       req.Title,
		Description: req.Description,
		CourseID:    req.CourseID,
		IsPublic:    isPublic,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sess)
}

// List handles GET /sessions (optionally ?mine=true or ?course_id=...).
func (h *Handler) List(c *gin.Context) {
	var ownerID, courseID *uuid.UUID
	if c.Query("mine") == "true" {
		id := middleware.Identity(c).UserID
		ownerID = &id
	}
	if v := c.Query("course_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid course_id")
			return
		}
		courseID = &id
	}
	list, err := h.repo.List(c.Request.Context(), ownerID, courseID)
	if err != nil {
		response.Internal(c, "failed to list sessions")
		return
	}
	response.OK(c, gin.H{"sessions": list})
}

// GetByID handles GET /sessions/:id with derived viewer count and duration.
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	sess, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{
		"session":          sess,
		"duration_seconds": int64(sess.Duration().Seconds()),
		"viewer_count":     h.hub.AudienceCount(id),
	})
}

// Schedule handles POST /sessions/:id/schedule.
func (h *Handler) Schedule(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ident := middleware.Identity(c)
	if err := h.service.Schedule(c.Request.Context(), id, ident.UserID, req.ScheduledFor); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"id": id, "status": "scheduled", "scheduled_for": req.ScheduledFor})
}

// Start handles POST /sessions/:id/start.
func (h *Handler) Start(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	ident := middleware.Identity(c)
	sess, err := h.service.Start(c.Request.Context(), id, ident.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.hub.BroadcastToSessionAndPublish(id, "session_started", gin.H{
		"session_id": id, "started_at": sess.StartedAt,
	})
	response.OK(c, sess)
}

// End handles POST /sessions/:id/end.
func (h *Handler) End(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	ident := middleware.Identity(c)
	sess, err := h.service.End(c.Request.Context(), id, ident.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.hub.BroadcastToSessionAndPublish(id, "session_ended", gin.H{
		"session_id": id, "ended_at": sess.EndedAt,
		"duration_seconds": int64(sess.Duration().Seconds()),
	})
	response.OK(c, sess)
}

// AddModerator handles POST /sessions/:id/moderators (owner-only).
func (h *Handler) AddModerator(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req ModeratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	sess, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	ident := middleware.Identity(c)
	if sess.OwnerID != ident.UserID {
		response.Forbidden(c, "only the owner can manage moderators")
		return
	}
	if req.UserID == sess.OwnerID {
		response.BadRequest(c, "owner cannot be added as moderator")
		return
	}
	if err := h.repo.AddModerator(c.Request.Context(), id, req.UserID); err != nil {
		response.Internal(c, "failed to add moderator")
		return
	}
	response.OK(c, gin.H{"session_id": id, "user_id": req.UserID})
}

// RemoveModerator handles DELETE /sessions/:id/moderators/:userID (owner-only).
func (h *Handler) RemoveModerator(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	userID, err := uuid.Parse(c.Param("userID"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	sess, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	ident := middleware.Identity(c)
	if sess.OwnerID != ident.UserID {
		response.Forbidden(c, "only the owner can manage moderators")
		return
	}
	if err := h.repo.RemoveModerator(c.Request.Context(), id, userID); err != nil {
		response.Internal(c, "failed to remove moderator")
		return
	}
	response.NoContent(c)
}
