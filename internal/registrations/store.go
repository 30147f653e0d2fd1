package registrations

import (
	"context"
	"errors"
	"time"

	"github.com/movienight/backend/internal/models"
)

var (
	// ErrNotFound is returned when no registration has the requested serial.
	ErrNotFound = errors.New("registration not found")
	// ErrDuplicateSerial is returned when a serial is already taken.
	ErrDuplicateSerial = errors.New("serial already exists")
	// ErrAlreadyCheckedIn is returned when a check-in loses to an earlier one.
	ErrAlreadyCheckedIn = errors.New("registration already checked in")
)

// Store persists registrations and their attendees. It is the single
// source of truth for check-in state, so implementations must make
// MarkCheckedIn one atomic conditional write.
type Store interface {
	// CreateRegistration inserts a registration and all of its attendees in
	// one transaction. Returns ErrDuplicateSerial if serial is taken.
	CreateRegistration(ctx context.Context, serial, email string, attendees []models.Attendee) (*models.Registration, error)

	// InsertAttendee adds one attendee to an existing registration.
	InsertAttendee(ctx context.Context, registrationID int64, a models.Attendee) error

	// FindBySerial returns the registration with its attendees in insertion order.
	FindBySerial(ctx context.Context, serial string) (*models.Registration, error)

	// MarkCheckedIn flips checked_in from false to true and returns the stored
	// check-in time. Returns ErrAlreadyCheckedIn when the row was already
	// checked in, ErrNotFound when no row matches.
	MarkCheckedIn(ctx context.Context, serial string, at time.Time) (time.Time, error)

	// ListAll returns every registration, newest first.
	ListAll(ctx context.Context) ([]models.Registration, error)

	// DeleteBySerial removes a registration and its attendees together.
	DeleteBySerial(ctx context.Context, serial string) error

	// Count returns the number of registrations.
	Count(ctx context.Context) (int, error)

	Close() error
}

// joinedRow is one row of a registrations LEFT JOIN attendees query.
type joinedRow struct {
	reg      models.Registration
	attendee *models.Attendee
}

// groupRows folds joined rows into registrations, preserving the order in
// which registrations first appear.
func groupRows(rows []joinedRow) []models.Registration {
	out := make([]models.Registration, 0, len(rows))
	index := make(map[int64]int, len(rows))
	for _, r := range rows {
		i, ok := index[r.reg.ID]
		if !ok {
			reg := r.reg
			reg.Attendees = nil
			out = append(out, reg)
			i = len(out) - 1
			index[r.reg.ID] = i
		}
		if r.attendee != nil {
			out[i].Attendees = append(out[i].Attendees, *r.attendee)
		}
	}
	return out
}
