package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Email delivery modes.
const (
	DeliveryDirect = "direct"
	DeliveryQueue  = "queue"
)

// Config holds application configuration loaded from environment.
type Config struct {
	LogLevel string
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Email    EmailConfig
	Access   AccessConfig
	AWS      AWSConfig
	Event    EventConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	StaticDir          string // built front end; empty disables static serving
}

// DatabaseConfig selects and locates the registration store.
type DatabaseConfig struct {
	Driver     string // sqlite or postgres
	URL        string // postgres://...
	SQLitePath string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// EmailConfig for Resend.
type EmailConfig struct {
	APIKey      string
	FromAddress string
	SenderName  string
	ReplyTo     string
	Delivery    string // direct or queue
}

// AccessConfig holds the optional operator passphrase.
type AccessConfig struct {
	Passphrase  string
	TokenSecret string
	TokenHours  int
}

// AWSConfig holds AWS credentials and the ticket archive bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	TicketsBucket        string
	PresignExpireMinutes int
}

// EventConfig names the event on tickets and at the door.
type EventConfig struct {
	Name         string
	SerialPrefix string
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port:               getEnv("PORT", "3001"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			StaticDir:          getEnv("STATIC_DIR", ""),
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getEnv("DATABASE_DRIVER", DriverSQLite)),
			URL:        getEnv("DATABASE_URL", ""),
			SQLitePath: getEnv("SQLITE_PATH", "movienight.db"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Email: EmailConfig{
			APIKey:      getEnv("RESEND_API_KEY", ""),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "onboarding@resend.dev"),
			SenderName:  getEnv("SENDER_NAME", "Movie Night"),
			ReplyTo:     getEnv("EMAIL_REPLY_TO", ""),
			Delivery:    strings.ToLower(getEnv("EMAIL_DELIVERY", DeliveryDirect)),
		},
		Access: AccessConfig{
			Passphrase:  getEnv("ACCESS_PASSPHRASE", ""),
			TokenSecret: getEnv("ACCESS_TOKEN_SECRET", ""),
			TokenHours:  getEnvInt("ACCESS_TOKEN_HOURS", 12),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			TicketsBucket:        getEnv("AWS_S3_TICKETS_BUCKET", ""),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 7*24*60),
		},
		Event: EventConfig{
			Name:         getEnv("EVENT_NAME", "Movie Night"),
			SerialPrefix: strings.ToUpper(getEnv("SERIAL_PREFIX", "MN")),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that cannot work together.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver)
	}
	switch c.Email.Delivery {
	case DeliveryDirect:
	case DeliveryQueue:
		if !c.Redis.Enabled {
			return fmt.Errorf("EMAIL_DELIVERY=queue requires REDIS_ENABLED=true")
		}
	default:
		return fmt.Errorf("unsupported EMAIL_DELIVERY %q", c.Email.Delivery)
	}
	for _, r := range c.Event.SerialPrefix {
		if r < 'A' || r > 'Z' {
			return fmt.Errorf("SERIAL_PREFIX must be letters only, got %q", c.Event.SerialPrefix)
		}
	}
	return nil
}

// EmailEnabled reports whether a Resend API key is configured.
func (c EmailConfig) EmailEnabled() bool {
	return c.APIKey != ""
}

// ArchiveEnabled reports whether ticket images should be stored in S3.
func (c AWSConfig) ArchiveEnabled() bool {
	return c.TicketsBucket != ""
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
