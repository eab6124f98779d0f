// internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

// Config holds everything the server, worker and seeder need to start.
type Config struct {
	Address      string `env:"ADDRESS" envDefault:":8080"`
	WorkerInline bool   `env:"WORKER_INLINE" envDefault:"true"` // run scheduler + subscriber inside the server

	// Postgres. When DB_HOST is empty the process runs on in-memory stores.
	DBUser     string `env:"DB_USER" envDefault:"postgres"`
	DBPassword string `env:"DB_PASSWORD"`
	DBHost     string `env:"DB_HOST"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBName     string `env:"DB_NAME" envDefault:"omnipost"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	AMQPURL string `env:"AMQP_URL"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"no-reply@omnipost.local"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"Omnipost"`

	// Relay endpoints for non-email channels. Unset channels fall back to the log publisher.
	SMSWebhookURL      string `env:"SMS_WEBHOOK_URL"`
	WhatsAppWebhookURL string `env:"WHATSAPP_WEBHOOK_URL"`
	SocialWebhookURL   string `env:"SOCIAL_WEBHOOK_URL"`
	WebhookToken       string `env:"WEBHOOK_TOKEN"`

	MediaDir     string `env:"MEDIA_DIR" envDefault:"./uploads"`
	MediaBaseURL string `env:"MEDIA_BASE_URL" envDefault:"http://localhost:8080/media/files"`

	PublishTimeout time.Duration `env:"PUBLISH_TIMEOUT" envDefault:"30s"`
	FanOutLimit    int           `env:"FAN_OUT_LIMIT" envDefault:"16"`
	PollInterval   time.Duration `env:"SCHEDULER_POLL_INTERVAL" envDefault:"1s"`
	StuckAfter     time.Duration `env:"STUCK_SEND_AFTER" envDefault:"10m"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	LogOutput string `env:"LOG_OUTPUT" envDefault:"stdout"`
	LogPath   string `env:"LOG_PATH" envDefault:"./logs"`

	TracingEnabled bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTLPEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	SampleRate     float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
	ServiceName    string  `env:"SERVICE_NAME" envDefault:"omnipost"`
}

// Load reads the optional .env files, then the environment. The returned bool
// reports whether a .env file was found.
func Load(files ...string) (*Config, bool, error) {
	found := godotenv.Load(files...) == nil

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, found, fmt.Errorf("parse config: %w", err)
	}
	if cfg.FanOutLimit <= 0 {
		return nil, found, fmt.Errorf("FAN_OUT_LIMIT must be positive, got %d", cfg.FanOutLimit)
	}
	if cfg.PublishTimeout <= 0 {
		return nil, found, fmt.Errorf("PUBLISH_TIMEOUT must be positive, got %s", cfg.PublishTimeout)
	}
	return &cfg, found, nil
}

func (c *Config) UsePostgres() bool {
	return c.DBHost != ""
}

func (c *Config) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.DBSSLMode,
	}
	return u.String()
}
