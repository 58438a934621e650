// Package config provides environment configuration for the API server.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort        string
	ServerReadTimeout time.Duration

	// Auth settings
	JWTSecret string
	BearerKey string

	// Database settings
	DBDriver       string
	DBDSN          string
	DBMaxOpenConns int

	// Redis settings
	RedisURL     string
	UserCacheTTL time.Duration

	// NATS settings
	NATSEnabled  bool
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// CORS
	AllowedOrigins []string

	// Gateway
	WSAuthTimeout  time.Duration
	WSEventTimeout time.Duration
	WSReadLimit    int64
	WSPongWait     time.Duration
	WSPingPeriod   time.Duration
	WSWriteWait    time.Duration
	WSSendBuffer   int

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		// Server
		ServerPort:        getEnv("PORT", "8080"),
		ServerReadTimeout: getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),

		// Auth
		JWTSecret: getEnv("JWT_SECRET", "development-secret-change-in-production"),
		BearerKey: getEnv("BEARER_KEY", "Bearer"),

		// Database
		DBDriver:       getEnv("DB_DRIVER", "sqlite"),
		DBDSN:          getEnv("DB_DSN", "chat.db"),
		DBMaxOpenConns: getIntEnv("DB_MAX_OPEN_CONNS", 10),

		// Redis
		RedisURL:     getEnv("REDIS_URL", ""),
		UserCacheTTL: getDurationEnv("USER_CACHE_TTL", 5*time.Minute),

		// NATS
		NATSEnabled:  getBoolEnv("NATS_ENABLED", false),
		NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// CORS
		AllowedOrigins: getListEnv("CORS_ALLOWED_ORIGINS", []string{"https://*", "http://*"}),

		// Gateway
		WSAuthTimeout:  getDurationEnv("WS_AUTH_TIMEOUT", 5*time.Second),
		WSEventTimeout: getDurationEnv("WS_EVENT_TIMEOUT", 10*time.Second),
		WSReadLimit:    int64(getIntEnv("WS_READ_LIMIT", 64*1024)),
		WSPongWait:     getDurationEnv("WS_PONG_WAIT", 60*time.Second),
		WSPingPeriod:   getDurationEnv("WS_PING_PERIOD", 25*time.Second),
		WSWriteWait:    getDurationEnv("WS_WRITE_WAIT", 10*time.Second),
		WSSendBuffer:   getIntEnv("WS_SEND_BUFFER", 64),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
