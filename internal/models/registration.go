package models

import (
	"strings"
	"time"
)

// Registration is one ticket: a contact email plus the attendees it admits.
type Registration struct {
	ID          int64      `json:"id"`
	Serial      string     `json:"serial"`
	Email       string     `json:"email"`
	CheckedIn   bool       `json:"checked_in"`
	CheckedInAt *time.Time `json:"checked_in_at"`
	CreatedAt   time.Time  `json:"created_at"`
	Attendees   []Attendee `json:"attendees,omitempty"`
}

// Attendee is a person admitted by a registration.
type Attendee struct {
	ID             int64  `json:"-"`
	RegistrationID int64  `json:"-"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	VIP            bool   `json:"vip"`
}

// FullName returns "First Last".
func (a Attendee) FullName() string {
	return a.FirstName + " " + a.LastName
}

// Names returns the display names of all attendees in order.
func (r *Registration) Names() []string {
	names := make([]string, 0, len(r.Attendees))
	for _, a := range r.Attendees {
		names = append(names, a.FullName())
	}
	return names
}

// JoinedNames returns the attendee names joined with ", ".
func (r *Registration) JoinedNames() string {
	return strings.Join(r.Names(), ", ")
}

// HasVIP reports whether any attendee on the registration is VIP.
func (r *Registration) HasVIP() bool {
	for _, a := range r.Attendees {
		if a.VIP {
			return true
		}
	}
	return false
}
