package permissions

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/classlive/backend/internal/middleware"
	"github.com/classlive/backend/internal/models"
	"github.com/classlive/backend/pkg/response"
)

// SessionSource supplies the session and moderator set the resolver needs.
type SessionSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
	ListModerators(ctx context.Context, sessionID uuid.UUID) ([]uuid.UUID, error)
}

// Handler serves the caller's resolved capability set.
type Handler struct {
	sessions SessionSource
}

// NewHandler creates a permissions handler.
func NewHandler(sessions SessionSource) *Handler {
	return &Handler{sessions: sessions}
}

// Get handles GET /sessions/:id/permissions.
func (h *Handler) Get(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	sess, err := h.sessions.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		response.Internal(c, "failed to load session")
		return
	}
	if sess == nil {
		response.NotFound(c, "session not found")
		return
	}
	mods, err := h.sessions.ListModerators(c.Request.Context(), sessionID)
	if err != nil {
		response.Internal(c, "failed to load moderators")
		return
	}
	ident := middleware.Identity(c)
	response.OK(c, Resolve(sess, mods, ident.UserID))
}
