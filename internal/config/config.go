package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything the processes read from the environment.
// Constructed once at startup and passed down explicitly.
type Config struct {
	Port        string
	RedisAddr   string
	DatabaseURL string
	APIKey      string

	HeloDomain        string
	SMTPTimeout       time.Duration
	SMTPMaxConcurrent int

	RequestsPerHour int
	MaxBulkEmails   int

	// Bulk requests larger than this are processed asynchronously through
	// the job store when Redis and Postgres are configured.
	AsyncThreshold int
}

// Load reads the environment, preferring a local .env file when present.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:              getEnv("PORT", "8080"),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		DatabaseURL:       getEnv("DB_URL", ""),
		APIKey:            getEnv("API_SECRET_KEY", ""),
		HeloDomain:        getEnv("SMTP_HELO_DOMAIN", "verify.local"),
		SMTPTimeout:       time.Duration(getEnvAsInt("SMTP_TIMEOUT_SECONDS", 10)) * time.Second,
		SMTPMaxConcurrent: getEnvAsInt("SMTP_MAX_CONCURRENT", 15),
		RequestsPerHour:   getEnvAsInt("RATE_LIMIT_PER_HOUR", 100),
		MaxBulkEmails:     getEnvAsInt("MAX_BULK_EMAILS", 100),
		AsyncThreshold:    getEnvAsInt("ASYNC_THRESHOLD", 50),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
