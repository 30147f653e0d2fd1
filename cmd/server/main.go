// Package main runs the Movie Night HTTP server: registration, door check-in,
// attendee list and the live check-in feed, with graceful shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/movienight/backend/config"
	"github.com/movienight/backend/internal/access"
	"github.com/movienight/backend/internal/attendees"
	"github.com/movienight/backend/internal/checkin"
	"github.com/movienight/backend/internal/metrics"
	"github.com/movienight/backend/internal/notify"
	"github.com/movienight/backend/internal/realtime"
	"github.com/movienight/backend/internal/registrations"
	"github.com/movienight/backend/internal/serial"
	"github.com/movienight/backend/pkg/database"
	"github.com/movienight/backend/pkg/queue"
	"github.com/movienight/backend/pkg/redis"
	"github.com/movienight/backend/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer store.Close()

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
	}

	var hub *realtime.Hub
	if rdb != nil {
		redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
		hub = realtime.NewHub(logger, redisPubSub, redisPubSub)
	} else {
		hub = realtime.NewHub(logger, nil, nil)
	}

	var notifier notify.Notifier = notify.Disabled{}
	switch {
	case cfg.Email.Delivery == config.DeliveryQueue:
		notifier = notify.NewQueued(queue.NewQueue(rdb.Client, logger))
		logger.Info("ticket emails queued for the worker")
	case cfg.Email.EmailEnabled():
		notifier = notify.NewResend(resendConfig(cfg), logger)
		logger.Info("ticket emails sent directly via Resend")
	default:
		logger.Warn("ticket emails disabled: RESEND_API_KEY not set")
	}

	var (
		archive registrations.TicketArchive
		remover attendees.TicketRemover
	)
	if cfg.AWS.ArchiveEnabled() {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			TicketsBucket:        cfg.AWS.TicketsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("ticket archive disabled", zap.Error(err))
		} else {
			archive, remover = s3Client, s3Client
		}
	}

	gate, err := access.NewGate(access.Config{
		Passphrase:  cfg.Access.Passphrase,
		TokenSecret: cfg.Access.TokenSecret,
		TokenHours:  cfg.Access.TokenHours,
	}, logger)
	if err != nil {
		logger.Fatal("access", zap.Error(err))
	}

	m := metrics.New()
	router := newRouter(&app{
		logger:      logger,
		corsOrigins: cfg.Server.CORSAllowedOrigins,
		staticDir:   cfg.Server.StaticDir,
		registrations: registrations.NewService(registrations.Deps{
			Store:    store,
			Serials:  serial.New(cfg.Event.SerialPrefix),
			Notifier: notifier,
			Archive:  archive,
			Metrics:  m,
			Logger:   logger,
		}),
		checkin: checkin.NewService(checkin.Deps{
			Store:     store,
			EventName: cfg.Event.Name,
			Publisher: hub,
			Metrics:   m,
			Logger:    logger,
		}),
		attendees: attendees.NewService(store, remover, hub, logger),
		gate:      gate,
		hub:       hub,
		metrics:   m,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("event", cfg.Event.Name))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// openStore connects the configured database and applies migrations.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (registrations.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.URL, logger)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return registrations.NewPostgresStore(pool), nil
	default:
		db, err := database.NewSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		if err := database.MigrateSQLite(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return registrations.NewSQLiteStore(db), nil
	}
}

func resendConfig(cfg *config.Config) notify.ResendConfig {
	return notify.ResendConfig{
		APIKey:      cfg.Email.APIKey,
		FromAddress: cfg.Email.FromAddress,
		SenderName:  cfg.Email.SenderName,
		ReplyTo:     cfg.Email.ReplyTo,
		EventName:   cfg.Event.Name,
	}
}

func newLogger(level string) *zap.Logger {
	config := zap.NewProductionConfig()
	if level == "debug" {
		config = zap.NewDevelopmentConfig()
	}
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
