package attendees

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/movienight/backend/pkg/response"
)

// Handler handles attendee list HTTP endpoints.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates an attendees handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// List handles GET /api/attendees.
func (h *Handler) List(c *gin.Context) {
	summary, err := h.service.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list attendees failed", zap.Error(err))
		response.Internal(c, "Failed to fetch attendees")
		return
	}
	response.OK(c, summary)
}

// Delete handles DELETE /api/attendees/:serial.
func (h *Handler) Delete(c *gin.Context) {
	err := h.service.Delete(c.Request.Context(), c.Param("serial"))
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "Registration not found")
		return
	}
	if err != nil {
		h.logger.Error("delete registration failed", zap.String("serial", c.Param("serial")), zap.Error(err))
		response.Internal(c, "Failed to delete registration")
		return
	}
	response.OK(c, gin.H{"success": true, "message": "Registration deleted successfully"})
}
