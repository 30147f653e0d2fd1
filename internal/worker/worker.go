package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/movienight/backend/internal/notify"
	"github.com/movienight/backend/internal/ticket"
	"github.com/movienight/backend/pkg/queue"
)

// ErrPermanent marks job failures that no retry can fix.
var ErrPermanent = errors.New("permanent job failure")

// JobQueue is the subset of the Redis queue the processor needs.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
	DeadLetter(ctx context.Context, job *queue.Job) error
}

// EmailProcessor delivers queued ticket emails.
type EmailProcessor struct {
	sender  notify.Notifier
	queue   JobQueue
	logger  *zap.Logger
	backoff time.Duration
}

// NewEmailProcessor creates a ticket email processor. sender does the actual delivery.
func NewEmailProcessor(sender notify.Notifier, q JobQueue, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{sender: sender, queue: q, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one ticket email job. The QR image is rendered from the
// payload so the job stays small.
func (p *EmailProcessor) Process(ctx context.Context, job *queue.Job) error {
	payload, err := queue.DecodeTicketEmail(job)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPermanent, err)
	}
	decoded, err := ticket.Decode(payload.QRData)
	if err != nil {
		return fmt.Errorf("%w: decode ticket payload: %w", ErrPermanent, err)
	}
	png, err := ticket.RenderPNG(payload.QRData)
	if err != nil {
		return fmt.Errorf("%w: render qr: %w", ErrPermanent, err)
	}
	err = p.sender.SendTicket(ctx, notify.TicketEmail{
		To:        payload.RecipientEmail,
		Serial:    payload.Serial,
		Names:     decoded.Names,
		QRData:    payload.QRData,
		QRPNG:     png,
		TicketURL: payload.TicketURL,
	})
	if err != nil {
		return fmt.Errorf("send ticket: %w", err)
	}
	p.logger.Info("ticket email delivered", zap.String("job_id", job.ID), zap.String("serial", payload.Serial))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error. Permanent
// failures skip the retries and go straight to the DLQ.
func (p *EmailProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("email worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if errors.Is(err, ErrPermanent) {
				if dlErr := p.queue.DeadLetter(ctx, job); dlErr != nil {
					p.logger.Error("dead-letter failed", zap.Error(dlErr))
				}
				continue
			}
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *EmailProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
