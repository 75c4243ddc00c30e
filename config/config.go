package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string
	AppMode string
	LogMode string

	// INPUT_SOURCE selects where capture payloads come from: "stdin" or "redis".
	InputSource string

	RedisHost           string
	RedisPort           string
	RedisPassword       string
	RedisDB             int
	RedisCapturePattern string
	RedisPublishChannel string

	JWTSecret   string
	TokenTTLMin int

	// STREAM_RATE_LIMIT caps stream connections per client IP per minute;
	// 0 disables the limit. Only enforced when Redis is in use.
	StreamRateLimit int

	DispatchPolicy     string
	SkipMalformed      bool
	SkipCallbackErrors bool

	ConsoleFormat         string
	ConsoleTypes          []string
	ConsoleMoveIntervalMS int
	ConsoleStatsSec       int

	// ARCHIVE_S3_BUCKET enables the recording archive; empty disables it.
	ArchiveBucket     string
	ArchiveRegion     string
	ArchiveEndpoint   string
	ArchiveAccessKey  string
	ArchiveSecretKey  string
	ArchivePrefix     string
	ArchiveFlushSec   int
	ArchiveMaxRecords int

	// EVENT_LOG_DRIVER is "postgres" or "sqlite"; empty disables the log.
	EventLogDriver string
	EventLogDSN    string
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:               getEnv("APP_PORT", "8080"),
		AppMode:               getEnv("APP_MODE", "debug"),
		LogMode:               getEnv("LOG_MODE", "development"),
		InputSource:           getEnv("INPUT_SOURCE", "stdin"),
		RedisHost:             getEnv("REDIS_HOST", "localhost"),
		RedisPort:             getEnv("REDIS_PORT", "6379"),
		RedisPassword:         getEnv("REDIS_PASSWORD", ""),
		RedisDB:               getEnvAsInt("REDIS_DB", 0),
		RedisCapturePattern:   getEnv("REDIS_CAPTURE_PATTERN", "input:capture:*"),
		RedisPublishChannel:   getEnv("REDIS_PUBLISH_CHANNEL", ""),
		JWTSecret:             getEnv("JWT_SECRET", ""),
		TokenTTLMin:           getEnvAsInt("TOKEN_TTL_MIN", 60),
		StreamRateLimit:       getEnvAsInt("STREAM_RATE_LIMIT", 30),
		DispatchPolicy:        getEnv("DISPATCH_POLICY", "abort"),
		SkipMalformed:         getEnvAsBool("SKIP_MALFORMED", true),
		SkipCallbackErrors:    getEnvAsBool("SKIP_CALLBACK_ERRORS", true),
		ConsoleFormat:         getEnv("CONSOLE_FORMAT", "text"),
		ConsoleTypes:          getEnvAsList("CONSOLE_TYPES"),
		ConsoleMoveIntervalMS: getEnvAsInt("CONSOLE_MOVE_INTERVAL_MS", 100),
		ConsoleStatsSec:       getEnvAsInt("CONSOLE_STATS_SEC", 0),
		ArchiveBucket:         getEnv("ARCHIVE_S3_BUCKET", ""),
		ArchiveRegion:         getEnv("ARCHIVE_S3_REGION", "us-east-1"),
		ArchiveEndpoint:       getEnv("ARCHIVE_S3_ENDPOINT", ""),
		ArchiveAccessKey:      getEnv("ARCHIVE_S3_ACCESS_KEY", ""),
		ArchiveSecretKey:      getEnv("ARCHIVE_S3_SECRET_KEY", ""),
		ArchivePrefix:         getEnv("ARCHIVE_PREFIX", "recordings"),
		ArchiveFlushSec:       getEnvAsInt("ARCHIVE_FLUSH_SEC", 30),
		ArchiveMaxRecords:     getEnvAsInt("ARCHIVE_MAX_RECORDS", 1000),
		EventLogDriver:        getEnv("EVENT_LOG_DRIVER", ""),
		EventLogDSN:           getEnv("EVENT_LOG_DSN", "inputfeed.db"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
