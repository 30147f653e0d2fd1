package checkin

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/movienight/backend/pkg/response"
)

// Handler handles the check-in HTTP endpoint.
type Handler struct {
	service *Service
}

// NewHandler creates a check-in handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Request is the body for POST /api/checkin. Scanners send either the
// serial or the raw QR payload.
type Request struct {
	Serial string `json:"serial"`
	QRData string `json:"qrData"`
}

// Response is returned for every business outcome, always with status 200.
type Response struct {
	Valid       bool       `json:"valid"`
	Message     string     `json:"message"`
	Names       string     `json:"names,omitempty"`
	Serial      string     `json:"serial,omitempty"`
	HasVIP      *bool      `json:"hasVip,omitempty"`
	AlreadyUsed bool       `json:"alreadyUsed,omitempty"`
	CheckedInAt *time.Time `json:"checkedInAt,omitempty"`
}

// CheckIn handles POST /api/checkin.
func (h *Handler) CheckIn(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Serial number required")
		return
	}
	sn := strings.TrimSpace(req.Serial)
	payload := strings.TrimSpace(req.QRData)
	if strings.HasPrefix(sn, "{") {
		// scanner forwarded the whole QR payload in the serial field
		payload, sn = sn, ""
	}

	var (
		res Result
		err error
	)
	switch {
	case sn != "":
		res, err = h.service.CheckIn(c.Request.Context(), sn)
	case payload != "":
		res, err = h.service.CheckInPayload(c.Request.Context(), payload)
	case req.Serial != "":
		// something was typed, even if blank: answer like any unknown ticket
		res, err = h.service.CheckIn(c.Request.Context(), req.Serial)
	default:
		response.BadRequest(c, "Serial number required")
		return
	}
	if err != nil {
		response.Internal(c, "Check-in failed")
		return
	}
	response.OK(c, toResponse(res))
}

func toResponse(res Result) Response {
	out := Response{Valid: res.Valid(), Message: res.Message}
	switch res.Outcome {
	case OutcomeGranted:
		vip := res.HasVIP
		out.Names = strings.Join(res.Names, ", ")
		out.Serial = res.Serial
		out.HasVIP = &vip
		out.CheckedInAt = res.CheckedInAt
	case OutcomeAlreadyRedeemed:
		out.Names = strings.Join(res.Names, ", ")
		out.Serial = res.Serial
		out.AlreadyUsed = true
		out.CheckedInAt = res.CheckedInAt
	}
	return out
}
