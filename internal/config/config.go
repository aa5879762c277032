package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime setting for the service. Values come from the
// environment, with a .env file loaded first for local development.
type Config struct {
	Environment string

	Server     ServerConfig
	Logging    LoggingConfig
	Redis      RedisConfig
	Scylla     ScyllaConfig
	Kafka      KafkaConfig
	Clickhouse ClickhouseConfig
	Turnstile  TurnstileConfig
	Hashing    HashingConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	PublicURL  PublicURLConfig
}

type ServerConfig struct {
	Port         int
	TLSPort      int
	EnableTLS    bool
	AutoCert     bool
	Domain       string
	CertFile     string
	KeyFile      string
	AutoCertDir  string
	Email        string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
	// TxRetries bounds optimistic transaction retries before the request fails.
	TxRetries int
}

type ScyllaConfig struct {
	Hosts    []string
	Keyspace string
	Timeout  time.Duration
}

type KafkaConfig struct {
	Enabled    bool
	Brokers    []string
	AbuseTopic string
}

type ClickhouseConfig struct {
	Enabled  bool
	Addr     string
	Database string
	Username string
	Password string
}

type TurnstileConfig struct {
	SecretKey string
	Endpoint  string
	Timeout   time.Duration
}

type HashingConfig struct {
	Salt string
}

type AuthConfig struct {
	JWTSecret string
}

type RateLimitConfig struct {
	TargetWindow time.Duration
	TargetLimit  int
	GlobalWindow time.Duration
	GlobalLimit  int
}

type PublicURLConfig struct {
	BaseURL    string
	SiteURL    string
	AllowLocal bool
}

// LoadConfig reads configuration from the environment.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnvInt("SERVER_PORT", 8080),
			TLSPort:      getEnvInt("SERVER_TLS_PORT", 8443),
			EnableTLS:    getEnvBool("SERVER_ENABLE_TLS", false),
			AutoCert:     getEnvBool("SERVER_AUTO_CERT", false),
			Domain:       getEnv("SERVER_DOMAIN", ""),
			CertFile:     getEnv("SERVER_CERT_FILE", ""),
			KeyFile:      getEnv("SERVER_KEY_FILE", ""),
			AutoCertDir:  getEnv("SERVER_AUTOCERT_DIR", "/var/lib/send2me/autocert"),
			Email:        getEnv("SERVER_ACME_EMAIL", ""),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Redis: RedisConfig{
			URL:       getEnv("REDIS_URL", "redis://localhost:6379/0"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvInt("REDIS_DB", 0),
			PoolSize:  getEnvInt("REDIS_POOL_SIZE", 50),
			TxRetries: getEnvInt("REDIS_TX_RETRIES", 8),
		},
		Scylla: ScyllaConfig{
			Hosts:    getEnvList("SCYLLA_HOSTS", []string{"localhost:9042"}),
			Keyspace: getEnv("SCYLLA_KEYSPACE", "send2me"),
			Timeout:  getEnvDuration("SCYLLA_TIMEOUT", 5*time.Second),
		},
		Kafka: KafkaConfig{
			Enabled:    getEnvBool("KAFKA_ENABLED", false),
			Brokers:    getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			AbuseTopic: getEnv("KAFKA_ABUSE_TOPIC", "abuse-events"),
		},
		Clickhouse: ClickhouseConfig{
			Enabled:  getEnvBool("CLICKHOUSE_ENABLED", false),
			Addr:     getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
			Database: getEnv("CLICKHOUSE_DATABASE", "send2me"),
			Username: getEnv("CLICKHOUSE_USERNAME", "default"),
			Password: getEnv("CLICKHOUSE_PASSWORD", ""),
		},
		Turnstile: TurnstileConfig{
			SecretKey: getEnv("TURNSTILE_SECRET_KEY", ""),
			Endpoint:  getEnv("TURNSTILE_ENDPOINT", "https://challenges.cloudflare.com/turnstile/v0/siteverify"),
			Timeout:   getEnvDuration("TURNSTILE_TIMEOUT", 5*time.Second),
		},
		Hashing: HashingConfig{
			Salt: getEnv("HASH_SALT", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
		RateLimit: RateLimitConfig{
			TargetWindow: getEnvDuration("RATE_LIMIT_TARGET_WINDOW", 10*time.Second),
			TargetLimit:  getEnvInt("RATE_LIMIT_TARGET_LIMIT", 3),
			GlobalWindow: getEnvDuration("RATE_LIMIT_GLOBAL_WINDOW", 60*time.Second),
			GlobalLimit:  getEnvInt("RATE_LIMIT_GLOBAL_LIMIT", 30),
		},
		PublicURL: PublicURLConfig{
			BaseURL:    getEnv("PUBLIC_BASE_URL", ""),
			SiteURL:    getEnv("SITE_URL", ""),
			AllowLocal: getEnvBool("PUBLIC_URL_ALLOW_LOCAL", false),
		},
	}
}

// Validate reports missing secrets. These are fatal: the service must never
// run with an unsalted metadata hasher or an unverifiable bot challenge.
func (c *Config) Validate() error {
	var missing []string
	if c.Turnstile.SecretKey == "" {
		missing = append(missing, "TURNSTILE_SECRET_KEY")
	}
	if c.Hashing.Salt == "" {
		missing = append(missing, "HASH_SALT")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "AUTH_JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
