package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config is loaded once at startup and passed to constructors; nothing reads
// the environment after Load returns.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Approval  ApprovalConfig
	Unsplash  UnsplashConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Observ    ObservabilityConfig
	Bootstrap BootstrapConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Driver          string // postgres or sqlite
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	Path            string // sqlite file, ":memory:" for tests
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	JWTSecret       []byte
	TokenTTL        time.Duration
	SessionCacheTTL time.Duration // how long a session user is trusted before the row is read again
	CookieSecure    bool
}

type ApprovalConfig struct {
	Threshold decimal.Decimal
}

type UnsplashConfig struct {
	AccessKey string
	AppName   string
	BaseURL   string
	Timeout   time.Duration
	CacheTTL  time.Duration
	CacheSize int
}

type RedisConfig struct {
	Addr           string // empty disables the double-submit guard
	Password       string
	DB             int
	IdempotencyTTL time.Duration
}

type KafkaConfig struct {
	Brokers []string // empty disables the Kafka publisher
	Topic   string
}

type ObservabilityConfig struct {
	JaegerEndpoint string // empty disables tracing export
}

type BootstrapConfig struct {
	AdminName     string
	AdminUsername string
	AdminPassword string
}

const devJWTSecret = "batcave_dev_only_secret"

// Load reads .env files (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	threshold, err := decimal.NewFromString(getEnv("APPROVAL_THRESHOLD", "10000"))
	if err != nil {
		return nil, fmt.Errorf("invalid APPROVAL_THRESHOLD: %w", err)
	}
	if threshold.IsNegative() {
		return nil, errors.New("APPROVAL_THRESHOLD must not be negative")
	}

	secret := cleanSecret(os.Getenv("JWT_SECRET"))
	if secret == "" {
		if env == "production" {
			return nil, errors.New("JWT_SECRET is required in production")
		}
		secret = devJWTSecret
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			AllowedOrigins: splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173,http://127.0.0.1:5173")),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "postgres"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Name:            getEnv("DB_NAME", "wayne"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			Path:            getEnv("DB_PATH", "wayne.db"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Auth: AuthConfig{
			JWTSecret:       []byte(secret),
			TokenTTL:        getDuration("SESSION_TTL", 12*time.Hour),
			SessionCacheTTL: getDuration("SESSION_CACHE_TTL", 30*time.Second),
			CookieSecure:    env == "production",
		},
		Approval: ApprovalConfig{Threshold: threshold},
		Unsplash: UnsplashConfig{
			AccessKey: cleanSecret(os.Getenv("UNSPLASH_ACCESS_KEY")),
			AppName:   getEnv("UNSPLASH_APP_NAME", "industrias_wayne_security_tools"),
			BaseURL:   getEnv("UNSPLASH_BASE_URL", "https://api.unsplash.com"),
			Timeout:   getDuration("UNSPLASH_TIMEOUT", 5*time.Second),
			CacheTTL:  getDuration("UNSPLASH_CACHE_TTL", 600*time.Second),
			CacheSize: getInt("UNSPLASH_CACHE_MAX", 200),
		},
		Redis: RedisConfig{
			Addr:           os.Getenv("REDIS_ADDR"),
			Password:       os.Getenv("REDIS_PASSWORD"),
			DB:             getInt("REDIS_DB", 0),
			IdempotencyTTL: getDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers: splitCSV(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_TOPIC_EVENTS", "resource-request-events"),
		},
		Observ: ObservabilityConfig{
			JaegerEndpoint: os.Getenv("JAEGER_ENDPOINT"),
		},
		Bootstrap: BootstrapConfig{
			AdminName:     getEnv("ADMIN_NAME", "Bruce Wayne"),
			AdminUsername: getEnv("ADMIN_USERNAME", "bruce"),
			AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		},
	}

	return cfg, nil
}

// DSN builds the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// cleanSecret strips a BOM and surrounding quotes, which .env files edited on
// Windows tend to carry.
func cleanSecret(value string) string {
	key := strings.TrimSpace(value)
	key = strings.ReplaceAll(key, "\ufeff", "")
	if len(key) >= 2 {
		if (key[0] == '"' && key[len(key)-1] == '"') || (key[0] == '\'' && key[len(key)-1] == '\'') {
			key = strings.TrimSpace(key[1 : len(key)-1])
		}
	}
	return key
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultVal
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
