// Package checkin redeems tickets at the door. A ticket moves from pending to
// redeemed exactly once; the store's conditional update decides races.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/movienight/backend/internal/metrics"
	"github.com/movienight/backend/internal/models"
	"github.com/movienight/backend/internal/realtime"
	"github.com/movienight/backend/internal/registrations"
	"github.com/movienight/backend/internal/serial"
	"github.com/movienight/backend/internal/ticket"
)

// Outcome is the result of one check-in attempt.
type Outcome string

const (
	OutcomeUnknown         Outcome = "UNKNOWN"
	OutcomeAlreadyRedeemed Outcome = "ALREADY_REDEEMED"
	OutcomeGranted         Outcome = "GRANTED"
	OutcomeInvalidPayload  Outcome = "INVALID_PAYLOAD"
)

// User-facing messages.
const (
	MsgNotFound       = "Invalid QR code — not found in database"
	MsgInvalidFormat  = "Invalid QR code format"
	MsgAlreadyUsedFmt = "Already checked in at %s"
	MsgWelcomeFmt     = "Welcome to %s!"

	// TimestampLayout formats the original check-in time for staff.
	TimestampLayout = "Jan 2, 2006 3:04:05 PM MST"
)

// Result describes a check-in attempt.
type Result struct {
	Outcome     Outcome
	Message     string
	Serial      string
	Names       []string
	HasVIP      bool
	CheckedInAt *time.Time
}

// Valid reports whether entry was granted.
func (r Result) Valid() bool { return r.Outcome == OutcomeGranted }

// Event is published to the door dashboard on every granted entry.
type Event struct {
	Serial      string    `json:"serial"`
	Names       []string  `json:"names"`
	HasVIP      bool      `json:"hasVip"`
	CheckedInAt time.Time `json:"checkedInAt"`
}

// Publisher receives check-in events.
type Publisher interface {
	Publish(event string, payload interface{})
}

// Deps wires a Service. Publisher, Metrics and Location are optional.
type Deps struct {
	Store     registrations.Store
	EventName string
	Publisher Publisher
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	Location  *time.Location
	Now       func() time.Time
}

// Service performs check-ins.
type Service struct {
	store     registrations.Store
	eventName string
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	loc       *time.Location
	now       func() time.Time
}

// NewService creates a check-in service.
func NewService(d Deps) *Service {
	s := &Service{
		store:     d.Store,
		eventName: d.EventName,
		publisher: d.Publisher,
		metrics:   d.Metrics,
		logger:    d.Logger,
		loc:       d.Location,
		now:       d.Now,
	}
	if s.eventName == "" {
		s.eventName = "Movie Night"
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CheckIn redeems the ticket with the given serial. Business outcomes are
// reported in Result; only store failures return an error.
func (s *Service) CheckIn(ctx context.Context, raw string) (Result, error) {
	sn := serial.Normalize(raw)
	if !serial.Valid(sn) {
		return s.record(unknown()), nil
	}

	reg, err := s.store.FindBySerial(ctx, sn)
	if errors.Is(err, registrations.ErrNotFound) {
		return s.record(unknown()), nil
	}
	if err != nil {
		s.logger.Error("find registration failed", zap.String("serial", sn), zap.Error(err))
		return Result{}, fmt.Errorf("find registration: %w", err)
	}
	if reg.CheckedIn {
		return s.record(s.alreadyRedeemed(reg)), nil
	}

	at, err := s.store.MarkCheckedIn(ctx, sn, s.now())
	switch {
	case errors.Is(err, registrations.ErrAlreadyCheckedIn):
		// lost the race; show whoever won
		reg, err = s.store.FindBySerial(ctx, sn)
		if errors.Is(err, registrations.ErrNotFound) {
			return s.record(unknown()), nil
		}
		if err != nil {
			return Result{}, fmt.Errorf("reload registration: %w", err)
		}
		return s.record(s.alreadyRedeemed(reg)), nil
	case errors.Is(err, registrations.ErrNotFound):
		return s.record(unknown()), nil
	case err != nil:
		s.logger.Error("mark checked in failed", zap.String("serial", sn), zap.Error(err))
		return Result{}, fmt.Errorf("mark checked in: %w", err)
	}

	res := Result{
		Outcome:     OutcomeGranted,
		Message:     fmt.Sprintf(MsgWelcomeFmt, s.eventName),
		Serial:      reg.Serial,
		Names:       reg.Names(),
		HasVIP:      reg.HasVIP(),
		CheckedInAt: &at,
	}
	s.logger.Info("checked in",
		zap.String("serial", res.Serial),
		zap.Int("attendees", len(res.Names)),
		zap.Bool("vip", res.HasVIP))
	if s.publisher != nil {
		s.publisher.Publish(realtime.EventCheckIn, Event{
			Serial:      res.Serial,
			Names:       res.Names,
			HasVIP:      res.HasVIP,
			CheckedInAt: at,
		})
	}
	return s.record(res), nil
}

// CheckInPayload decodes a scanned QR payload and redeems its serial.
func (s *Service) CheckInPayload(ctx context.Context, raw string) (Result, error) {
	p, err := ticket.Decode(raw)
	if err != nil {
		s.logger.Debug("malformed ticket payload", zap.Error(err))
		return s.record(Result{Outcome: OutcomeInvalidPayload, Message: MsgInvalidFormat}), nil
	}
	return s.CheckIn(ctx, p.Serial)
}

func unknown() Result {
	return Result{Outcome: OutcomeUnknown, Message: MsgNotFound}
}

func (s *Service) alreadyRedeemed(reg *models.Registration) Result {
	res := Result{
		Outcome:     OutcomeAlreadyRedeemed,
		Serial:      reg.Serial,
		Names:       reg.Names(),
		HasVIP:      reg.HasVIP(),
		CheckedInAt: reg.CheckedInAt,
	}
	stamp := "an earlier time"
	if reg.CheckedInAt != nil {
		stamp = reg.CheckedInAt.In(s.loc).Format(TimestampLayout)
	}
	res.Message = fmt.Sprintf(MsgAlreadyUsedFmt, stamp)
	return res
}

func (s *Service) record(res Result) Result {
	s.metrics.CheckIn(outcomeLabel(res.Outcome))
	return res
}

func outcomeLabel(o Outcome) string {
	switch o {
	case OutcomeGranted:
		return "granted"
	case OutcomeAlreadyRedeemed:
		return "already_redeemed"
	case OutcomeInvalidPayload:
		return "invalid_payload"
	default:
		return "unknown"
	}
}
