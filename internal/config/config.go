package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mobix/storefront/pkg/database"
)

// Config holds the storefront service configuration
type Config struct {
	ServiceName   string
	Environment   string
	LogLevel      string
	HTTPPort      string
	RedisAddr     string
	RedisPassword string
	KafkaBrokers  []string
	ProductAPIURL string
	Database      database.Config

	// CartTTL is the rolling expiration window for the whole cart.
	CartTTL time.Duration
	// DebounceWindow is the quiet period before search input settles.
	DebounceWindow time.Duration
	// PageSize is the catalog page size.
	PageSize int
}

// Load reads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		ServiceName:   getEnv("OTEL_SERVICE_NAME", "storefront"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		HTTPPort:      getEnv("HTTP_PORT", "8080"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:  splitList(getEnv("KAFKA_BROKERS", "")),
		ProductAPIURL: getEnv("PRODUCT_API_URL", "https://itx-frontend-test.onrender.com/api"),
		Database: database.Config{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "storefrontdb"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		CartTTL:        getDuration("CART_TTL", time.Hour),
		DebounceWindow: getDuration("SEARCH_DEBOUNCE", 300*time.Millisecond),
		PageSize:       getInt("CATALOG_PAGE_SIZE", 12),
	}
}

// IsDevelopment reports whether the service runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
