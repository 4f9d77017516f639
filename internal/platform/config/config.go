// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures everything the server needs at startup. Fields without an
// envDefault are optional; empty backing-store URLs select the in-memory
// implementations so the service runs standalone in development.
type Config struct {
	Addr     string `env:"WELLGATE_ADDR" envDefault:":8080"`
	LogLevel string `env:"WELLGATE_LOG_LEVEL" envDefault:"info"`

	// JWTSigningKey signs session tokens issued by the local auth client.
	JWTSigningKey string        `env:"WELLGATE_JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	SessionTTL    time.Duration `env:"WELLGATE_SESSION_TTL" envDefault:"24h"`

	// PasswordResetURL is the base redirect target embedded in password
	// reset links handed to the mailer.
	PasswordResetURL string `env:"WELLGATE_PASSWORD_RESET_URL" envDefault:"http://localhost:3000/reset-password"`

	PostgresURL string `env:"WELLGATE_POSTGRES_URL"`

	Redis RedisConfig `envPrefix:"WELLGATE_REDIS_"`

	// KafkaBrokers enables the Kafka audit publisher when non-empty;
	// otherwise audit events go to the structured log.
	KafkaBrokers []string `env:"WELLGATE_KAFKA_BROKERS" envSeparator:","`
	AuditTopic   string   `env:"WELLGATE_AUDIT_TOPIC" envDefault:"wellgate.audit"`

	ShutdownTimeout time.Duration `env:"WELLGATE_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// RedisConfig tunes the optional Redis connection used for impersonation
// persistence. An empty URL disables Redis.
type RedisConfig struct {
	URL          string        `env:"URL"`
	PoolSize     int           `env:"POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
}

// FromEnv parses the environment into a Config so main stays lean.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
