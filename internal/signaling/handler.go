package signaling

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	webrtc "github.com/pion/webrtc/v3"

	"github.com/classlive/backend/internal/middleware"
	"github.com/classlive/backend/pkg/response"
)

// Handler handles signaling HTTP endpoints.
type Handler struct {
	service    *Service
	iceServers []webrtc.ICEServer
}

// NewHandler creates a signaling handler.
func NewHandler(service *Service, iceServers []webrtc.ICEServer) *Handler {
	return &Handler{service: service, iceServers: iceServers}
}

// Signal handles POST /sessions/:id/signal.
func (h *Handler) Signal(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	var msg Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ident := middleware.Identity(c)
	res, err := h.service.Signal(c.Request.Context(), id, ident, msg)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// ICEServers handles GET /sessions/:id/ice-servers.
func (h *Handler) ICEServers(c *gin.Context) {
	response.OK(c, gin.H{"ice_servers": h.iceServers})
}
