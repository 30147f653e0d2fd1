package registrations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/movienight/backend/internal/metrics"
	"github.com/movienight/backend/internal/models"
	"github.com/movienight/backend/internal/notify"
	"github.com/movienight/backend/internal/ticket"
)

const (
	// maxSerialAttempts bounds regeneration after a serial collision.
	maxSerialAttempts = 5
	// defaultNotifyTimeout caps the best-effort email step.
	defaultNotifyTimeout = 15 * time.Second
)

// User-facing validation messages.
const (
	MsgEmailAndAttendeesRequired = "Email and at least one attendee required"
	MsgAttendeeNamesRequired     = "All attendees must have first and last names"
	MsgInvalidEmail              = "A valid email address is required"
)

// ValidationError reports bad input the caller can correct.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// AttendeeInput is one attendee as submitted on the registration form.
type AttendeeInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	VIP       bool   `json:"vip"`
}

// SerialSource produces candidate serials.
type SerialSource interface {
	Generate() string
}

// TicketArchive stores rendered ticket images and returns a download link.
type TicketArchive interface {
	PutTicket(ctx context.Context, serial string, png []byte) (string, error)
}

// Ticket is the result of a successful registration.
type Ticket struct {
	Registration *models.Registration
	Payload      string
	QRImage      []byte
	TicketURL    string
	EmailSent    bool
}

// Deps wires a Service. Archive and Metrics are optional.
type Deps struct {
	Store         Store
	Serials       SerialSource
	Notifier      notify.Notifier
	Archive       TicketArchive
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
	NotifyTimeout time.Duration
}

// Service registers attendees and issues tickets.
type Service struct {
	store         Store
	serials       SerialSource
	notifier      notify.Notifier
	archive       TicketArchive
	metrics       *metrics.Metrics
	logger        *zap.Logger
	notifyTimeout time.Duration
}

// NewService creates a registration service.
func NewService(d Deps) *Service {
	s := &Service{
		store:         d.Store,
		serials:       d.Serials,
		notifier:      d.Notifier,
		archive:       d.Archive,
		metrics:       d.Metrics,
		logger:        d.Logger,
		notifyTimeout: d.NotifyTimeout,
	}
	if s.notifier == nil {
		s.notifier = notify.Disabled{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.notifyTimeout <= 0 {
		s.notifyTimeout = defaultNotifyTimeout
	}
	return s
}

// Register validates the input, persists the registration with its
// attendees, and issues the ticket. Email delivery never fails the call.
func (s *Service) Register(ctx context.Context, email string, inputs []AttendeeInput) (*Ticket, error) {
	email, attendees, err := validate(email, inputs)
	if err != nil {
		return nil, err
	}

	reg, err := s.create(ctx, email, attendees)
	if err != nil {
		return nil, err
	}
	s.metrics.RegistrationCreated()
	s.logger.Info("registration created",
		zap.String("serial", reg.Serial),
		zap.Int("attendees", len(reg.Attendees)))

	payload, err := ticket.Encode(reg.Serial, reg.Attendees)
	if err != nil {
		return nil, fmt.Errorf("encode ticket: %w", err)
	}
	t := &Ticket{Registration: reg, Payload: payload}

	png, err := ticket.RenderPNG(payload)
	if err != nil {
		s.logger.Error("render qr failed", zap.String("serial", reg.Serial), zap.Error(err))
	} else {
		t.QRImage = png
	}

	if s.archive != nil && len(t.QRImage) > 0 {
		url, err := s.archive.PutTicket(ctx, reg.Serial, t.QRImage)
		if err != nil {
			s.logger.Warn("archive ticket failed", zap.String("serial", reg.Serial), zap.Error(err))
		} else {
			t.TicketURL = url
		}
	}

	t.EmailSent = s.sendTicket(ctx, reg, t)
	return t, nil
}

func (s *Service) create(ctx context.Context, email string, attendees []models.Attendee) (*models.Registration, error) {
	var err error
	for attempt := 1; attempt <= maxSerialAttempts; attempt++ {
		serial := s.serials.Generate()
		var reg *models.Registration
		reg, err = s.store.CreateRegistration(ctx, serial, email, attendees)
		if err == nil {
			return reg, nil
		}
		if !errors.Is(err, ErrDuplicateSerial) {
			s.logger.Error("create registration failed", zap.Error(err))
			return nil, fmt.Errorf("create registration: %w", err)
		}
		s.logger.Warn("serial collision, regenerating", zap.String("serial", serial), zap.Int("attempt", attempt))
	}
	return nil, fmt.Errorf("allocate serial after %d attempts: %w", maxSerialAttempts, err)
}

// sendTicket runs detached from the request's cancellation so a client
// disconnect after commit still lets the email go out.
func (s *Service) sendTicket(ctx context.Context, reg *models.Registration, t *Ticket) bool {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	err := s.notifier.SendTicket(ctx, notify.TicketEmail{
		To:        reg.Email,
		Serial:    reg.Serial,
		Names:     reg.Names(),
		QRData:    t.Payload,
		QRPNG:     t.QRImage,
		TicketURL: t.TicketURL,
	})
	switch {
	case err == nil:
		s.metrics.Notification("sent")
		return true
	case errors.Is(err, notify.ErrDisabled):
		s.metrics.Notification("disabled")
		s.logger.Debug("email delivery disabled", zap.String("serial", reg.Serial))
	default:
		s.metrics.Notification("failed")
		s.logger.Error("send ticket email failed", zap.String("serial", reg.Serial), zap.Error(err))
	}
	return false
}

func validate(email string, inputs []AttendeeInput) (string, []models.Attendee, error) {
	email = strings.TrimSpace(email)
	if email == "" || len(inputs) == 0 {
		return "", nil, &ValidationError{Message: MsgEmailAndAttendeesRequired}
	}
	if at := strings.Index(email, "@"); at <= 0 || at == len(email)-1 {
		return "", nil, &ValidationError{Message: MsgInvalidEmail}
	}
	attendees := make([]models.Attendee, 0, len(inputs))
	for _, in := range inputs {
		first := strings.TrimSpace(in.FirstName)
		last := strings.TrimSpace(in.LastName)
		if first == "" || last == "" {
			return "", nil, &ValidationError{Message: MsgAttendeeNamesRequired}
		}
		attendees = append(attendees, models.Attendee{FirstName: first, LastName: last, VIP: in.VIP})
	}
	return email, attendees, nil
}
