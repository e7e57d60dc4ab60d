// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full process configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Audit     AuditConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr string
}

// DatabaseConfig selects the contact store. An empty URL means in-memory.
type DatabaseConfig struct {
	URL           string
	MaxOpenConns  int
	TxMaxAttempts int
	TxTimeout     time.Duration
}

type RedisConfig struct {
	URL         string
	PoolSize    int
	DialTimeout time.Duration
}

// KafkaConfig enables the contact event sink when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type AuditConfig struct {
	Buffer int
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Disabled bool
}

type LogConfig struct {
	Level  string
	Format string
}

// UsePostgres reports whether a database URL is configured.
func (c DatabaseConfig) UsePostgres() bool {
	return c.URL != ""
}

// Load reads .env (when present) into the environment without overriding
// variables that are already set, then builds the config.
func Load(dotenvPaths ...string) (*Config, error) {
	if len(dotenvPaths) == 0 {
		dotenvPaths = []string{".env"}
	}
	for _, path := range dotenvPaths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, applying defaults for unset keys.
func FromEnv(getenv func(string) string) (*Config, error) {
	p := parser{getenv: getenv}
	cfg := &Config{
		Server: ServerConfig{
			Addr: p.str("CONTACTLINK_ADDR", ":8080"),
		},
		Database: DatabaseConfig{
			URL:           p.str("DATABASE_URL", ""),
			MaxOpenConns:  p.int("DB_MAX_OPEN_CONNS", 10),
			TxMaxAttempts: p.int("TX_MAX_ATTEMPTS", 5),
			TxTimeout:     p.duration("TX_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			URL:         p.str("REDIS_URL", ""),
			PoolSize:    p.int("REDIS_POOL_SIZE", 10),
			DialTimeout: p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: p.list("KAFKA_BROKERS"),
			Topic:   p.str("KAFKA_TOPIC", "contact-events"),
		},
		Audit: AuditConfig{
			Buffer: p.int("AUDIT_BUFFER", 256),
		},
		RateLimit: RateLimitConfig{
			Requests: p.int("RATE_LIMIT_REQUESTS", 120),
			Window:   p.duration("RATE_LIMIT_WINDOW", time.Minute),
			Disabled: p.bool("RATE_LIMIT_DISABLED", false),
		},
		Log: LogConfig{
			Level:  strings.ToLower(p.str("LOG_LEVEL", "info")),
			Format: strings.ToLower(p.str("LOG_FORMAT", "json")),
		},
	}
	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Database.MaxOpenConns <= 0 {
		errs = append(errs, errors.New("DB_MAX_OPEN_CONNS must be positive"))
	}
	if c.Database.TxMaxAttempts <= 0 {
		errs = append(errs, errors.New("TX_MAX_ATTEMPTS must be positive"))
	}
	if c.RateLimit.Requests <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS must be positive"))
	}
	if c.Audit.Buffer < 0 {
		errs = append(errs, errors.New("AUDIT_BUFFER must not be negative"))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// parser collects every malformed value instead of stopping at the first.
type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) int(key string, def int) int {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (p *parser) bool(key string, def bool) bool {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (p *parser) list(key string) []string {
	var out []string
	for _, part := range strings.Split(p.getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
