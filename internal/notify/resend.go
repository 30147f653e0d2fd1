package notify

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// ResendConfig holds sender identity for Resend.
type ResendConfig struct {
	APIKey      string
	FromAddress string
	SenderName  string
	ReplyTo     string
	EventName   string
}

type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// Resend sends ticket emails through the Resend API with the QR code attached.
type Resend struct {
	emails emailSender
	cfg    ResendConfig
	logger *zap.Logger
}

// NewResend creates a Resend notifier.
func NewResend(cfg ResendConfig, logger *zap.Logger) *Resend {
	return newResend(resend.NewClient(cfg.APIKey).Emails, cfg, logger)
}

func newResend(emails emailSender, cfg ResendConfig, logger *zap.Logger) *Resend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resend{emails: emails, cfg: cfg, logger: logger}
}

func (r *Resend) from() string {
	if r.cfg.SenderName == "" {
		return r.cfg.FromAddress
	}
	return fmt.Sprintf("%s <%s>", r.cfg.SenderName, r.cfg.FromAddress)
}

// SendTicket sends one ticket email.
func (r *Resend) SendTicket(ctx context.Context, msg TicketEmail) error {
	html, err := RenderHTML(r.cfg.EventName, msg)
	if err != nil {
		return err
	}
	req := &resend.SendEmailRequest{
		From:    r.from(),
		To:      []string{msg.To},
		Subject: Subject(r.cfg.EventName, msg.Serial),
		Html:    html,
		Text:    RenderText(r.cfg.EventName, msg),
		ReplyTo: r.cfg.ReplyTo,
	}
	if len(msg.QRPNG) > 0 {
		req.Attachments = []*resend.Attachment{{
			Content:     msg.QRPNG,
			Filename:    "qrcode.png",
			ContentType: "image/png",
		}}
	}
	sent, err := r.emails.SendWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("resend send: %w", err)
	}
	r.logger.Info("ticket email sent", zap.String("serial", msg.Serial), zap.String("email_id", sent.Id))
	return nil
}
