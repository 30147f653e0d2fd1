// Package notify delivers ticket emails to registrants.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
)

// ErrDisabled is returned by notifiers that have no delivery channel configured.
var ErrDisabled = errors.New("email delivery disabled")

// TicketEmail is everything needed to send one ticket.
type TicketEmail struct {
	To        string
	Serial    string
	Names     []string
	QRData    string
	QRPNG     []byte
	TicketURL string
}

// Notifier sends a ticket email. Implementations must honor ctx cancellation.
type Notifier interface {
	SendTicket(ctx context.Context, msg TicketEmail) error
}

// Disabled is used when no email provider is configured.
type Disabled struct{}

// SendTicket always fails with ErrDisabled.
func (Disabled) SendTicket(context.Context, TicketEmail) error { return ErrDisabled }

// Subject returns the email subject line for a ticket.
func Subject(eventName, serial string) string {
	return fmt.Sprintf("Your %s Ticket - %s", eventName, serial)
}

var ticketTmpl = template.Must(template.New("ticket").Parse(`<!DOCTYPE html>
<html>
<body style="margin:0;padding:0;background:#0a0a0a;font-family:Helvetica,Arial,sans-serif;color:#f5f5f5;">
  <div style="max-width:560px;margin:0 auto;padding:32px 24px;">
    <h1 style="margin:0 0 8px;font-size:28px;color:#e50914;">{{.EventName}}</h1>
    <p style="margin:0 0 24px;font-size:16px;">You're registered. Show the attached QR code at the door.</p>
    <div style="background:#1a1a1a;border-radius:8px;padding:20px;">
      <p style="margin:0 0 8px;font-size:12px;letter-spacing:2px;color:#999;">SERIAL</p>
      <p style="margin:0 0 16px;font-family:monospace;font-size:20px;">{{.Serial}}</p>
      <p style="margin:0 0 8px;font-size:12px;letter-spacing:2px;color:#999;">ADMITS</p>
      <ul style="margin:0;padding-left:20px;">
        {{range .Names}}<li style="margin:4px 0;">{{.}}</li>
        {{end}}
      </ul>
    </div>
    {{if .TicketURL}}<p style="margin:24px 0 0;"><a href="{{.TicketURL}}" style="color:#e50914;">Download your ticket</a></p>{{end}}
    <p style="margin:24px 0 0;font-size:12px;color:#777;">This code can be scanned once. Don't share it.</p>
  </div>
</body>
</html>
`))

type ticketView struct {
	EventName string
	Serial    string
	Names     []string
	TicketURL string
}

// RenderHTML renders the ticket email body.
func RenderHTML(eventName string, msg TicketEmail) (string, error) {
	var buf bytes.Buffer
	err := ticketTmpl.Execute(&buf, ticketView{
		EventName: eventName,
		Serial:    msg.Serial,
		Names:     msg.Names,
		TicketURL: msg.TicketURL,
	})
	if err != nil {
		return "", fmt.Errorf("render ticket email: %w", err)
	}
	return buf.String(), nil
}

// RenderText renders the plain-text alternative.
func RenderText(eventName string, msg TicketEmail) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nSerial: %s\n\nAdmits:\n", eventName, msg.Serial)
	for _, n := range msg.Names {
		fmt.Fprintf(&b, "  - %s\n", n)
	}
	if msg.TicketURL != "" {
		fmt.Fprintf(&b, "\nTicket: %s\n", msg.TicketURL)
	}
	b.WriteString("\nShow the attached QR code at the door. It can be scanned once.\n")
	return b.String()
}
