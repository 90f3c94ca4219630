package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	devJWTSigningKey = "dev-secret-key-change-in-production"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	Environment     string
	// TrustProxy honours X-Forwarded-For when resolving client IPs.
	TrustProxy bool
}

// Database configures the PostgreSQL connection. An empty URL selects the
// in-memory stores.
type Database struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	TxTimeout    time.Duration
	// AppRole is assumed with SET LOCAL ROLE in every transaction when set.
	AppRole string
}

// RedisConfig configures the optional report cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ReportCache controls cached report lifetimes.
type ReportCache struct {
	TTL time.Duration
}

// Kafka configures the ledger event feed. No brokers disables publishing.
type Kafka struct {
	Brokers      []string
	Topic        string
	PollInterval time.Duration
	BatchSize    int
}

// Auth configures verification of identity-provider tokens.
type Auth struct {
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
}

// RateLimit bounds anonymous donation creation per client IP.
type RateLimit struct {
	Disabled           bool
	DonationsPerWindow int
	Window             time.Duration
}

// Logging selects the slog handler.
type Logging struct {
	Level  string
	Format string
}

type Config struct {
	Server      Server
	Database    Database
	Redis       RedisConfig
	ReportCache ReportCache
	Kafka       Kafka
	Auth        Auth
	RateLimit   RateLimit
	Logging     Logging
}

// Load reads configuration from the environment. A .env file in the working
// directory is honoured for local development; variables already set win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: Server{
			Addr:            getEnv("SERVER_ADDR", ":8080"),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 45*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", time.Minute),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			Environment:     getEnv("ENVIRONMENT", EnvDevelopment),
			TrustProxy:      getEnvBool("TRUST_PROXY", false),
		},
		Database: Database{
			URL:          getEnv("DATABASE_URL", ""),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
			TxTimeout:    getEnvDuration("DB_TX_TIMEOUT", 5*time.Second),
			AppRole:      getEnv("DB_APP_ROLE", ""),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", ""),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 2*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 500*time.Millisecond),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 500*time.Millisecond),
		},
		ReportCache: ReportCache{
			TTL: getEnvDuration("REPORT_CACHE_TTL", 5*time.Minute),
		},
		Kafka: Kafka{
			Brokers:      getEnvList("KAFKA_BROKERS"),
			Topic:        getEnv("LEDGER_EVENTS_TOPIC", "fasela.ledger.events"),
			PollInterval: getEnvDuration("OUTBOX_POLL_INTERVAL", time.Second),
			BatchSize:    getEnvInt("OUTBOX_BATCH_SIZE", 100),
		},
		Auth: Auth{
			JWTSigningKey: getEnv("JWT_SIGNING_KEY", ""),
			JWTIssuer:     getEnv("JWT_ISSUER", ""),
			JWTAudience:   getEnv("JWT_AUDIENCE", ""),
		},
		RateLimit: RateLimit{
			Disabled:           getEnvBool("RATELIMIT_DISABLED", false),
			DonationsPerWindow: getEnvInt("RATELIMIT_DONATIONS_PER_WINDOW", 10),
			Window:             getEnvDuration("RATELIMIT_WINDOW", time.Minute),
		},
		Logging: Logging{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

// IsDevelopment reports whether development defaults may be applied.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == EnvDevelopment
}

// SigningKey returns the configured JWT key, or the development key when running
// in development without one.
func (c *Config) SigningKey() string {
	if c.Auth.JWTSigningKey == "" && c.IsDevelopment() {
		return devJWTSigningKey
	}
	return c.Auth.JWTSigningKey
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Addr == "" {
		errs = append(errs, "server address cannot be empty")
	}
	if c.Server.Environment != EnvDevelopment && c.Server.Environment != EnvProduction {
		errs = append(errs, fmt.Sprintf("invalid environment '%s': must be one of [%s %s]", c.Server.Environment, EnvDevelopment, EnvProduction))
	}
	if c.Auth.JWTSigningKey == "" && !c.IsDevelopment() {
		errs = append(errs, "JWT_SIGNING_KEY is required outside development")
	}

	if c.Database.URL != "" {
		if u, err := url.Parse(c.Database.URL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid database URL: %v", err))
		} else if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			errs = append(errs, fmt.Sprintf("invalid database URL scheme '%s': must be 'postgres' or 'postgresql'", u.Scheme))
		}
		if c.Database.MaxOpenConns < 1 {
			errs = append(errs, fmt.Sprintf("invalid max open connections %d: must be at least 1", c.Database.MaxOpenConns))
		}
	}
	if c.Database.TxTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("invalid transaction timeout %v: must be positive", c.Database.TxTimeout))
	}

	if c.Redis.URL != "" && c.ReportCache.TTL <= 0 {
		errs = append(errs, fmt.Sprintf("invalid report cache TTL %v: must be positive", c.ReportCache.TTL))
	}

	if len(c.Kafka.Brokers) > 0 {
		if c.Kafka.Topic == "" {
			errs = append(errs, "ledger events topic cannot be empty when Kafka brokers are provided")
		}
		if c.Kafka.PollInterval <= 0 {
			errs = append(errs, fmt.Sprintf("invalid outbox poll interval %v: must be positive", c.Kafka.PollInterval))
		}
		if c.Kafka.BatchSize < 1 || c.Kafka.BatchSize > 1000 {
			errs = append(errs, fmt.Sprintf("invalid outbox batch size %d: must be between 1 and 1000", c.Kafka.BatchSize))
		}
	}

	if !c.RateLimit.Disabled && (c.RateLimit.DonationsPerWindow < 1 || c.RateLimit.Window <= 0) {
		errs = append(errs, fmt.Sprintf("invalid rate limit %d per %v: both must be positive", c.RateLimit.DonationsPerWindow, c.RateLimit.Window))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for part := range strings.SplitSeq(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
