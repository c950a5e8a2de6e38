package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	AuditLogDBURL string

	RedisAddr     string
	RedisPassword string
	SessionTTL    time.Duration

	UseMemoryQueue  bool
	WorkerCount     int
	InboundQueueURL string

	AWSRegion           string
	AWSEndpointOverride string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string

	GatewayBaseURL string
	GatewayAPIKey  string

	DefaultClinicID        string
	DefaultServiceID       string
	DefaultBookingType     string
	DefaultDurationMinutes int

	ClinicOpenTime       string
	ClinicCloseTime      string
	SlotGranularityMins  int
	NearestSearchMinutes int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		AuditLogDBURL: getEnv("AUDIT_LOG_DB_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", 24*time.Hour),

		UseMemoryQueue:  getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:     getEnvAsInt("WORKER_COUNT", 2),
		InboundQueueURL: getEnv("INBOUND_QUEUE_URL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),

		GatewayBaseURL: getEnv("GATEWAY_BASE_URL", ""),
		GatewayAPIKey:  getEnv("GATEWAY_API_KEY", ""),

		DefaultClinicID:        getEnv("DEFAULT_CLINIC_ID", "main"),
		DefaultServiceID:       getEnv("DEFAULT_SERVICE_ID", "checkup"),
		DefaultBookingType:     getEnv("DEFAULT_BOOKING_TYPE", "checkup"),
		DefaultDurationMinutes: getEnvAsInt("DEFAULT_DURATION_MINUTES", 30),

		ClinicOpenTime:       getEnv("CLINIC_OPEN_TIME", "09:00"),
		ClinicCloseTime:      getEnv("CLINIC_CLOSE_TIME", "17:00"),
		SlotGranularityMins:  getEnvAsInt("SLOT_GRANULARITY_MINS", 30),
		NearestSearchMinutes: getEnvAsInt("NEAREST_SEARCH_MINUTES", 180),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
