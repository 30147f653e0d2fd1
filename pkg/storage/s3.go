package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

const (
	// FolderTickets is the S3 prefix for ticket images.
	FolderTickets = "tickets"
	// TicketContentType is the MIME type of stored ticket images.
	TicketContentType = "image/png"
)

// S3Config holds S3 client configuration.
type S3Config struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	TicketsBucket        string
	PresignExpireMinutes int
}

// S3 archives ticket images and hands out pre-signed download links.
type S3 struct {
	client *s3.Client
	cfg    S3Config
	logger *zap.Logger
}

// NewS3 creates an S3 client using credentials from config or .env (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY).
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TicketsBucket == "" {
		return nil, fmt.Errorf("tickets bucket not configured")
	}
	accessKey := cfg.AccessKeyID
	secretKey := cfg.SecretAccessKey
	if accessKey == "" || secretKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey, secretKey, "",
		)))
		logger.Info("S3 client using credentials from .env/config", zap.String("region", cfg.Region), zap.String("tickets_bucket", cfg.TicketsBucket))
	} else {
		logger.Warn("S3 client using default credential chain (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY not set)")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3{
		client: s3.NewFromConfig(awsCfg),
		cfg:    cfg,
		logger: logger,
	}, nil
}

// TicketKey returns the S3 object key for a ticket: tickets/{serial}.png.
func TicketKey(serial string) string {
	return path.Join(FolderTickets, path.Base(serial)+".png")
}

// PresignExpire returns the configured presign duration.
func (s *S3) PresignExpire() time.Duration {
	if s.cfg.PresignExpireMinutes <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
}

// PutTicket uploads the ticket image and returns a pre-signed GET URL for it.
func (s *S3) PutTicket(ctx context.Context, serial string, png []byte) (string, error) {
	key := TicketKey(serial)
	size := int64(len(png))
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.TicketsBucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(png),
		ContentType:   aws.String(TicketContentType),
		ContentLength: &size,
	})
	if err != nil {
		return "", fmt.Errorf("put ticket: %w", err)
	}
	url, err := s.PresignedTicketURL(ctx, serial)
	if err != nil {
		return "", err
	}
	s.logger.Debug("ticket archived", zap.String("serial", serial), zap.String("s3_key", key))
	return url, nil
}

// PresignedTicketURL returns a pre-signed GET URL for a stored ticket.
func (s *S3) PresignedTicketURL(ctx context.Context, serial string) (string, error) {
	presignClient := s3.NewPresignClient(s.client)
	req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.TicketsBucket),
		Key:    aws.String(TicketKey(serial)),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.PresignExpire()
	})
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}

// DeleteTicket removes a ticket image. Deleting a missing key is not an error in S3.
func (s *S3) DeleteTicket(ctx context.Context, serial string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.TicketsBucket),
		Key:    aws.String(TicketKey(serial)),
	})
	if err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}
	return nil
}
