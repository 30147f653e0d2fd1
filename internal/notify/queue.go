package notify

import (
	"context"

	"github.com/movienight/backend/pkg/queue"
)

type ticketEnqueuer interface {
	EnqueueTicketEmail(ctx context.Context, payload queue.TicketEmailPayload) error
}

// Queued hands ticket emails to the background worker through Redis.
// The worker regenerates the QR image from QRData.
type Queued struct {
	q ticketEnqueuer
}

// NewQueued creates a notifier backed by the job queue.
func NewQueued(q ticketEnqueuer) *Queued {
	return &Queued{q: q}
}

// SendTicket enqueues the email. Success means accepted for delivery.
func (n *Queued) SendTicket(ctx context.Context, msg TicketEmail) error {
	return n.q.EnqueueTicketEmail(ctx, queue.TicketEmailPayload{
		Serial:         msg.Serial,
		RecipientEmail: msg.To,
		QRData:         msg.QRData,
		TicketURL:      msg.TicketURL,
	})
}
