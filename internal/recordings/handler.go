package recordings

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/classlive/backend/internal/middleware"
	"github.com/classlive/backend/pkg/response"
)

// AttachRequest is the body for POST /sessions/:id/recordings.
type AttachRequest struct {
	ArtifactRef     string `json:"artifact_ref" binding:"required"`
	DurationSeconds int    `json:"duration_seconds"`
}

// Handler handles recording HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler creates a recordings handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Attach handles POST /sessions/:id/recordings.
func (h *Handler) Attach(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	var req AttachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ident := middleware.Identity(c)
	rec, err := h.service.Attach(c.Request.Context(), sessionID, ident.UserID, req.ArtifactRef, req.DurationSeconds)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rec)
}

// ListBySession handles GET /sessions/:id/recordings.
func (h *Handler) ListBySession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	list, err := h.service.List(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"recordings": list})
}

// Access handles GET /recordings/:id/access.
func (h *Handler) Access(c *gin.Context) {
	recordingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}
	ident := middleware.Identity(c)
	grant, err := h.service.Access(c.Request.Context(), recordingID, ident.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, grant)
}
