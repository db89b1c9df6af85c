package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Fraud     FraudConfig
	RateLimit RateLimitConfig
	Admin     AdminConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	Environment  string
	ServiceName  string
	ReadTimeout  int
	WriteTimeout int
	CORSOrigins  string // Comma-separated list of allowed origins
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// FraudConfig holds the decision thresholds and the timeout applied to every
// external call made by the gate. Thresholds are the lower bounds of the
// critical, high and medium score bands.
type FraudConfig struct {
	CriticalThreshold  int
	HighThreshold      int
	MediumThreshold    int
	CallTimeoutSeconds int
}

// RateLimitConfig holds both signup rate-limit windows: the application-level
// window counted against the attempts table, and the stricter-in-time edge
// window served from Redis.
type RateLimitConfig struct {
	AppWindowSeconds  int
	AppMaxAttempts    int
	EdgeWindowSeconds int
	EdgeMaxAttempts   int
	EdgePathPrefixes  []string
	RedisPrefix       string
}

// AdminConfig holds the operator allow-list, resolved once at startup and
// passed by reference into every component that needs it.
type AdminConfig struct {
	Emails []string
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ServiceName:  serviceName,
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 10),
			CORSOrigins:  getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "linelogic"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Fraud: FraudConfig{
			CriticalThreshold:  getEnvAsInt("FRAUD_CRITICAL_THRESHOLD", 1000),
			HighThreshold:      getEnvAsInt("FRAUD_HIGH_THRESHOLD", 500),
			MediumThreshold:    getEnvAsInt("FRAUD_MEDIUM_THRESHOLD", 200),
			CallTimeoutSeconds: getEnvAsInt("FRAUD_CALL_TIMEOUT", 3),
		},
		RateLimit: RateLimitConfig{
			AppWindowSeconds:  getEnvAsInt("RATELIMIT_APP_WINDOW", 86400),
			AppMaxAttempts:    getEnvAsInt("RATELIMIT_APP_MAX", 5),
			EdgeWindowSeconds: getEnvAsInt("RATELIMIT_EDGE_WINDOW", 3600),
			EdgeMaxAttempts:   getEnvAsInt("RATELIMIT_EDGE_MAX", 10),
			EdgePathPrefixes:  getEnvAsSlice("RATELIMIT_EDGE_PATHS", []string{"/api/v1/signup"}),
			RedisPrefix:       getEnv("RATELIMIT_REDIS_PREFIX", "fg"),
		},
		Admin: AdminConfig{
			Emails: getEnvAsSlice("ADMIN_EMAILS", nil),
		},
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// AppWindow returns the application-level window as a duration, falling back
// to 24 hours when unset or invalid.
func (c *RateLimitConfig) AppWindow() time.Duration {
	if c.AppWindowSeconds <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.AppWindowSeconds) * time.Second
}

// EdgeWindow returns the edge window as a duration, falling back to one hour
// when unset or invalid.
func (c *RateLimitConfig) EdgeWindow() time.Duration {
	if c.EdgeWindowSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(c.EdgeWindowSeconds) * time.Second
}

// CallTimeout returns the per-call timeout for external calls made by the gate.
func (c *FraudConfig) CallTimeout() time.Duration {
	if c.CallTimeoutSeconds <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.CallTimeoutSeconds) * time.Second
}

// IsAdmin reports whether the given email is on the operator allow-list.
// Comparison is case-insensitive.
func (c *AdminConfig) IsAdmin(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	for _, admin := range c.Emails {
		if strings.ToLower(strings.TrimSpace(admin)) == email {
			return true
		}
	}
	return false
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}
