// Package config provides configuration loading and validation for the Nvisy server.
// Configuration is sourced from environment variables via viper, with explicit defaults and fail-fast validation at startup.
package config

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete server configuration.
type Config struct {
	HTTP     HTTPConfig
	Postgres PostgresConfig
	Nats     NatsConfig
	Minio    MinioConfig
	Auth     AuthConfig
	LLM      LLMConfig
	Webhook  WebhookConfig
	Debug    bool
}

// HTTPConfig configures the public HTTP API surface.
type HTTPConfig struct {
	Port            int
	AllowedOrigins  []string
	BodyLimit       string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	OpenAPIPath     string
	CORSMaxAge      time.Duration
	AllowCredentials bool
}

// PostgresConfig configures the relational connection pool.
type PostgresConfig struct {
	URL            string
	MaxOpenConns   int
	MinIdleConns   int
	ConnectTimeout time.Duration
	AcquireTimeout time.Duration
	MaxLifetime    time.Duration
}

// NatsConfig configures the broker client.
type NatsConfig struct {
	URL            string
	Token          string
	ConnectTimeout time.Duration
}

// MinioConfig configures the object storage client.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// AuthConfig configures session keys and the workspace master key.
type AuthConfig struct {
	PrivatePEMPath string
	PublicPEMPath  string
	MasterKey      []byte
	TokenTTL       time.Duration
}

// LLMConfig configures the completion provider.
type LLMConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	RatePerSecond float64
	Timeout       time.Duration
}

// WebhookConfig configures outbound webhook delivery.
type WebhookConfig struct {
	MaxDeliver      int
	DeliveryTimeout time.Duration
}

// Load reads configuration from the environment and applies defaults.
// It does not validate; call Validate before using the result.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("HTTP_BODY_LIMIT", "25M")
	v.SetDefault("HTTP_READ_TIMEOUT", "30s")
	v.SetDefault("HTTP_WRITE_TIMEOUT", "30s")
	v.SetDefault("HTTP_SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("HTTP_OPENAPI_PATH", "/api/v1/openapi.json")
	v.SetDefault("HTTP_CORS_MAX_AGE", "1h")
	v.SetDefault("HTTP_ALLOW_CREDENTIALS", true)

	v.SetDefault("DB_MAX_OPEN_CONNS", 16)
	v.SetDefault("DB_MIN_IDLE_CONNS", 2)
	v.SetDefault("DB_CONNECT_TIMEOUT", "30s")
	v.SetDefault("DB_ACQUIRE_TIMEOUT", "30s")
	v.SetDefault("DB_CONN_MAX_LIFETIME", "1h")

	v.SetDefault("NATS_CONNECT_TIMEOUT", "30s")

	v.SetDefault("AUTH_TOKEN_TTL", "24h")

	v.SetDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1")
	v.SetDefault("LLM_MODEL", "openai/gpt-4o-mini")
	v.SetDefault("LLM_RATE_PER_SECOND", 5.0)
	v.SetDefault("LLM_TIMEOUT", "30s")

	v.SetDefault("WEBHOOK_MAX_DELIVER", 5)
	v.SetDefault("WEBHOOK_DELIVERY_TIMEOUT", "30s")

	cfg := &Config{
		HTTP: HTTPConfig{
			Port:             v.GetInt("HTTP_PORT"),
			AllowedOrigins:   splitOrigins(v.GetString("HTTP_ALLOWED_ORIGINS")),
			BodyLimit:        v.GetString("HTTP_BODY_LIMIT"),
			ReadTimeout:      v.GetDuration("HTTP_READ_TIMEOUT"),
			WriteTimeout:     v.GetDuration("HTTP_WRITE_TIMEOUT"),
			ShutdownTimeout:  v.GetDuration("HTTP_SHUTDOWN_TIMEOUT"),
			OpenAPIPath:      v.GetString("HTTP_OPENAPI_PATH"),
			CORSMaxAge:       v.GetDuration("HTTP_CORS_MAX_AGE"),
			AllowCredentials: v.GetBool("HTTP_ALLOW_CREDENTIALS"),
		},
		Postgres: PostgresConfig{
			URL:            v.GetString("POSTGRES_URL"),
			MaxOpenConns:   v.GetInt("DB_MAX_OPEN_CONNS"),
			MinIdleConns:   v.GetInt("DB_MIN_IDLE_CONNS"),
			ConnectTimeout: v.GetDuration("DB_CONNECT_TIMEOUT"),
			AcquireTimeout: v.GetDuration("DB_ACQUIRE_TIMEOUT"),
			MaxLifetime:    v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Nats: NatsConfig{
			URL:            v.GetString("NATS_URL"),
			Token:          v.GetString("NATS_TOKEN"),
			ConnectTimeout: v.GetDuration("NATS_CONNECT_TIMEOUT"),
		},
		Minio: MinioConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
		},
		Auth: AuthConfig{
			PrivatePEMPath: v.GetString("AUTH_PRIVATE_PEM_FILEPATH"),
			PublicPEMPath:  v.GetString("AUTH_PUBLIC_PEM_FILEPATH"),
			TokenTTL:       v.GetDuration("AUTH_TOKEN_TTL"),
		},
		LLM: LLMConfig{
			APIKey:        v.GetString("OPENROUTER_API_KEY"),
			BaseURL:       v.GetString("OPENROUTER_BASE_URL"),
			Model:         v.GetString("LLM_MODEL"),
			RatePerSecond: v.GetFloat64("LLM_RATE_PER_SECOND"),
			Timeout:       v.GetDuration("LLM_TIMEOUT"),
		},
		Webhook: WebhookConfig{
			MaxDeliver:      v.GetInt("WEBHOOK_MAX_DELIVER"),
			DeliveryTimeout: v.GetDuration("WEBHOOK_DELIVERY_TIMEOUT"),
		},
		Debug: v.GetBool("DEBUG"),
	}

	if raw := v.GetString("MASTER_KEY"); raw != "" {
		key, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("MASTER_KEY is not valid base64: %w", err)
		}
		cfg.Auth.MasterKey = key
	}

	return cfg, nil
}

// Validate checks that all required settings are present and well-formed.
func (c *Config) Validate() error {
	if c.Postgres.URL == "" {
		return fmt.Errorf("POSTGRES_URL is required")
	}
	if c.Nats.URL == "" {
		return fmt.Errorf("NATS_URL is required")
	}
	if c.Auth.PrivatePEMPath == "" || c.Auth.PublicPEMPath == "" {
		return fmt.Errorf("AUTH_PRIVATE_PEM_FILEPATH and AUTH_PUBLIC_PEM_FILEPATH are required")
	}
	if len(c.Auth.MasterKey) != 32 {
		return fmt.Errorf("MASTER_KEY must decode to exactly 32 bytes, got %d", len(c.Auth.MasterKey))
	}
	if c.Postgres.MaxOpenConns < c.Postgres.MinIdleConns {
		return fmt.Errorf("DB_MAX_OPEN_CONNS (%d) must be >= DB_MIN_IDLE_CONNS (%d)",
			c.Postgres.MaxOpenConns, c.Postgres.MinIdleConns)
	}
	if c.Postgres.MaxOpenConns < 2 || c.Postgres.MaxOpenConns > 16 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be between 2 and 16, got %d", c.Postgres.MaxOpenConns)
	}
	if c.LLM.RatePerSecond <= 0 {
		return fmt.Errorf("LLM_RATE_PER_SECOND must be positive")
	}
	return nil
}

// splitOrigins parses a comma-separated origin list. An empty value yields
// nil, which the HTTP layer treats as "localhost development defaults".
func splitOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
