// Package ticket builds and parses the data embedded in a ticket's QR code
// and renders that data as a PNG image.
package ticket

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/movienight/backend/internal/models"
)

// ErrMalformedPayload is returned when scanned data is not a ticket payload.
var ErrMalformedPayload = errors.New("malformed ticket payload")

// Payload is the structure serialized into the QR code. Names and VIPs are
// parallel slices, one entry per attendee.
type Payload struct {
	Serial string   `json:"serial"`
	Names  []string `json:"names"`
	VIPs   []bool   `json:"vips"`
}

// HasVIP reports whether any attendee on the payload is VIP.
func (p Payload) HasVIP() bool {
	for _, v := range p.VIPs {
		if v {
			return true
		}
	}
	return false
}

// NewPayload derives a payload from a serial and its attendees.
func NewPayload(serial string, attendees []models.Attendee) Payload {
	p := Payload{
		Serial: serial,
		Names:  make([]string, 0, len(attendees)),
		VIPs:   make([]bool, 0, len(attendees)),
	}
	for _, a := range attendees {
		p.Names = append(p.Names, a.FullName())
		p.VIPs = append(p.VIPs, a.VIP)
	}
	return p
}

// Encode serializes the payload for a serial and its attendees.
func Encode(serial string, attendees []models.Attendee) (string, error) {
	b, err := json.Marshal(NewPayload(serial, attendees))
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(b), nil
}

// Decode parses scanned QR data. Payloads issued before VIP flags existed
// carry no vips field; every attendee on them decodes as non-VIP.
func Decode(raw string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if strings.TrimSpace(p.Serial) == "" {
		return Payload{}, fmt.Errorf("%w: missing serial", ErrMalformedPayload)
	}
	if p.VIPs == nil {
		p.VIPs = make([]bool, len(p.Names))
	}
	if len(p.VIPs) != len(p.Names) {
		return Payload{}, fmt.Errorf("%w: %d names but %d vip flags", ErrMalformedPayload, len(p.Names), len(p.VIPs))
	}
	if p.Names == nil {
		p.Names = []string{}
	}
	return p, nil
}
