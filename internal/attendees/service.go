// Package attendees serves the operator's attendee list and removals.
package attendees

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/movienight/backend/internal/realtime"
	"github.com/movienight/backend/internal/registrations"
	"github.com/movienight/backend/internal/serial"
)

// ErrNotFound is returned when deleting an unknown serial.
var ErrNotFound = registrations.ErrNotFound

// Entry is one registration in the attendee list.
type Entry struct {
	Serial      string     `json:"serial"`
	Email       string     `json:"email"`
	CheckedIn   bool       `json:"checked_in"`
	CheckedInAt *time.Time `json:"checked_in_at"`
	CreatedAt   time.Time  `json:"created_at"`
	Names       string     `json:"names"`
	VIP         bool       `json:"vip"`
}

// Summary is the attendee list with totals.
type Summary struct {
	Attendees []Entry `json:"attendees"`
	Total     int     `json:"total"`
	CheckedIn int     `json:"checkedIn"`
}

// TicketRemover deletes archived ticket images.
type TicketRemover interface {
	DeleteTicket(ctx context.Context, serial string) error
}

// Publisher receives removal events for the door dashboard.
type Publisher interface {
	Publish(event string, payload interface{})
}

// Service lists and deletes registrations.
type Service struct {
	store     registrations.Store
	tickets   TicketRemover
	publisher Publisher
	logger    *zap.Logger
}

// NewService creates an attendees service. tickets and publisher may be nil.
func NewService(store registrations.Store, tickets TicketRemover, publisher Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, tickets: tickets, publisher: publisher, logger: logger}
}

// List returns every registration newest first with totals.
func (s *Service) List(ctx context.Context) (Summary, error) {
	regs, err := s.store.ListAll(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list registrations: %w", err)
	}
	out := Summary{Attendees: make([]Entry, 0, len(regs)), Total: len(regs)}
	for i := range regs {
		r := &regs[i]
		out.Attendees = append(out.Attendees, Entry{
			Serial:      r.Serial,
			Email:       r.Email,
			CheckedIn:   r.CheckedIn,
			CheckedInAt: r.CheckedInAt,
			CreatedAt:   r.CreatedAt,
			Names:       r.JoinedNames(),
			VIP:         r.HasVIP(),
		})
		if r.CheckedIn {
			out.CheckedIn++
		}
	}
	return out, nil
}

// Delete removes a registration and its attendees. Archived ticket cleanup
// is best-effort.
func (s *Service) Delete(ctx context.Context, raw string) error {
	sn := serial.Normalize(raw)
	if err := s.store.DeleteBySerial(ctx, sn); err != nil {
		if errors.Is(err, registrations.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete registration: %w", err)
	}
	s.logger.Info("registration deleted", zap.String("serial", sn))

	if s.tickets != nil {
		if err := s.tickets.DeleteTicket(ctx, sn); err != nil {
			s.logger.Warn("delete archived ticket failed", zap.String("serial", sn), zap.Error(err))
		}
	}
	if s.publisher != nil {
		s.publisher.Publish(realtime.EventRegistrationDeleted, map[string]string{"serial": sn})
	}
	return nil
}
