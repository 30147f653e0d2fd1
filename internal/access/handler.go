package access

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/movienight/backend/pkg/response"
)

// Handler serves the passphrase exchange.
type Handler struct {
	gate   *Gate
	logger *zap.Logger
}

// NewHandler creates an access handler.
func NewHandler(gate *Gate, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{gate: gate, logger: logger}
}

// LoginRequest is the body for POST /api/access.
type LoginRequest struct {
	Passphrase string `json:"passphrase"`
}

// LoginResponse carries the operator token.
type LoginResponse struct {
	Success   bool       `json:"success"`
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Status handles GET /api/access so the UI knows whether to show the gate.
func (h *Handler) Status(c *gin.Context) {
	response.OK(c, gin.H{"required": h.gate.Enabled()})
}

// Login handles POST /api/access.
func (h *Handler) Login(c *gin.Context) {
	if !h.gate.Enabled() {
		response.OK(c, LoginResponse{Success: true})
		return
	}
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Passphrase == "" {
		response.BadRequest(c, "Passphrase required")
		return
	}
	if !h.gate.Check(req.Passphrase) {
		h.logger.Warn("operator login rejected", zap.String("client_ip", c.ClientIP()))
		response.Unauthorized(c, "Incorrect passphrase")
		return
	}
	token, expires, err := h.gate.Tokens().Generate()
	if err != nil {
		h.logger.Error("sign operator token failed", zap.Error(err))
		response.Internal(c, "Login failed")
		return
	}
	response.OK(c, LoginResponse{Success: true, Token: token, ExpiresAt: &expires})
}
