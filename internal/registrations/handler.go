package registrations

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/movienight/backend/internal/ticket"
	"github.com/movienight/backend/pkg/response"
)

// Handler handles the registration HTTP endpoint.
type Handler struct {
	service *Service
}

// NewHandler creates a registrations handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRequest is the body for POST /api/register.
type RegisterRequest struct {
	Email     string          `json:"email"`
	Attendees []AttendeeInput `json:"attendees"`
}

// RegisterResponse is returned on a successful registration.
type RegisterResponse struct {
	Success   bool            `json:"success"`
	Serial    string          `json:"serial"`
	QRData    string          `json:"qrData"`
	QRImage   string          `json:"qrImage,omitempty"`
	TicketURL string          `json:"ticketUrl,omitempty"`
	Attendees []AttendeeInput `json:"attendees"`
	EmailSent bool            `json:"emailSent"`
}

// Register handles POST /api/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, MsgEmailAndAttendeesRequired)
		return
	}

	t, err := h.service.Register(c.Request.Context(), req.Email, req.Attendees)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			response.BadRequest(c, verr.Message)
			return
		}
		response.Internal(c, "Registration failed. Please try again.")
		return
	}

	out := RegisterResponse{
		Success:   true,
		Serial:    t.Registration.Serial,
		QRData:    t.Payload,
		TicketURL: t.TicketURL,
		Attendees: make([]AttendeeInput, 0, len(t.Registration.Attendees)),
		EmailSent: t.EmailSent,
	}
	if len(t.QRImage) > 0 {
		out.QRImage = ticket.DataURL(t.QRImage)
	}
	for _, a := range t.Registration.Attendees {
		out.Attendees = append(out.Attendees, AttendeeInput{FirstName: a.FirstName, LastName: a.LastName, VIP: a.VIP})
	}
	response.OK(c, out)
}
