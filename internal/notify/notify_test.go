package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/resend/resend-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movienight/backend/pkg/queue"
)

type fakeSender struct {
	got *resend.SendEmailRequest
	err error
}

func (f *fakeSender) SendWithContext(_ context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	f.got = params
	if f.err != nil {
		return nil, f.err
	}
	return &resend.SendEmailResponse{Id: "email_123"}, nil
}

type fakeQueue struct {
	got []queue.TicketEmailPayload
}

func (f *fakeQueue) EnqueueTicketEmail(_ context.Context, p queue.TicketEmailPayload) error {
	f.got = append(f.got, p)
	return nil
}

func sampleEmail() TicketEmail {
	return TicketEmail{
		To:     "jane@example.com",
		Serial: "MN-2025-0A1B2C3D",
		Names:  []string{"Jane Doe", "<b>Bob</b> Roe"},
		QRData: `{"serial":"MN-2025-0A1B2C3D","names":["Jane Doe","<b>Bob</b> Roe"],"vips":[false,false]}`,
		QRPNG:  []byte{0x89, 'P', 'N', 'G'},
	}
}

func TestDisabled(t *testing.T) {
	err := Disabled{}.SendTicket(context.Background(), sampleEmail())
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestRenderHTMLEscapesNames(t *testing.T) {
	html, err := RenderHTML("Movie Night", sampleEmail())
	require.NoError(t, err)
	assert.Contains(t, html, "MN-2025-0A1B2C3D")
	assert.Contains(t, html, "Jane Doe")
	assert.Contains(t, html, "&lt;b&gt;Bob&lt;/b&gt; Roe")
	assert.NotContains(t, html, "Download your ticket")

	msg := sampleEmail()
	msg.TicketURL = "https://tickets.example.com/t.png"
	html, err = RenderHTML("Movie Night", msg)
	require.NoError(t, err)
	assert.Contains(t, html, "Download your ticket")
}

func TestRenderText(t *testing.T) {
	text := RenderText("Movie Night", sampleEmail())
	assert.True(t, strings.HasPrefix(text, "Movie Night\n"))
	assert.Contains(t, text, "  - Jane Doe\n")
}

func TestResendSendTicket(t *testing.T) {
	sender := &fakeSender{}
	n := newResend(sender, ResendConfig{
		FromAddress: "tickets@example.com",
		SenderName:  "Movie Night",
		ReplyTo:     "host@example.com",
		EventName:   "Movie Night",
	}, nil)

	require.NoError(t, n.SendTicket(context.Background(), sampleEmail()))
	require.NotNil(t, sender.got)
	assert.Equal(t, "Movie Night <tickets@example.com>", sender.got.From)
	assert.Equal(t, []string{"jane@example.com"}, sender.got.To)
	assert.Equal(t, "Your Movie Night Ticket - MN-2025-0A1B2C3D", sender.got.Subject)
	assert.Equal(t, "host@example.com", sender.got.ReplyTo)
	require.Len(t, sender.got.Attachments, 1)
	assert.Equal(t, "qrcode.png", sender.got.Attachments[0].Filename)
}

func TestResendSendTicketError(t *testing.T) {
	sender := &fakeSender{err: errors.New("rate limited")}
	n := newResend(sender, ResendConfig{FromAddress: "tickets@example.com", EventName: "Movie Night"}, nil)

	err := n.SendTicket(context.Background(), sampleEmail())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Equal(t, "tickets@example.com", sender.got.From)
}

func TestQueuedSendTicket(t *testing.T) {
	q := &fakeQueue{}
	msg := sampleEmail()
	msg.TicketURL = "https://tickets.example.com/t.png"

	require.NoError(t, NewQueued(q).SendTicket(context.Background(), msg))
	require.Len(t, q.got, 1)
	assert.Equal(t, queue.TicketEmailPayload{
		Serial:         msg.Serial,
		RecipientEmail: msg.To,
		QRData:         msg.QRData,
		TicketURL:      msg.TicketURL,
	}, q.got[0])
}
