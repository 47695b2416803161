package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

const (
	BackendRedis    = "redis"
	BackendDynamoDB = "dynamodb"
	BackendMemory   = "memory"
)

// Error is a missing or invalid setting. The process must not start with one.
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	return "config: " + strings.Join(e.Problems, "; ")
}

type Config struct {
	Port          string
	StoreBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DynamoDBTable string
	AWSRegion     string
	S3Bucket      string
	S3Region      string

	BackupInterval      time.Duration
	StatsUpdateInterval time.Duration
	HistoryLimit        int
	PendingLimit        int
	EventQueueSize      int

	BridgeURL   string
	BridgeToken string
	RosterPath  string
	Timezone    string
	Location    *time.Location

	LogLevel  string
	LogFormat string
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		StoreBackend:        strings.ToLower(getEnv("STORE_BACKEND", BackendRedis)),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		DynamoDBTable:       getEnv("DYNAMODB_TABLE", ""),
		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		S3Bucket:            getEnv("S3_BUCKET", ""),
		S3Region:            getEnv("S3_REGION", getEnv("AWS_REGION", "us-east-1")),
		BackupInterval:      getEnvSeconds("BACKUP_INTERVAL", 21600),
		StatsUpdateInterval: getEnvSeconds("STATS_UPDATE_INTERVAL", 300),
		HistoryLimit:        getEnvInt("HISTORY_LIMIT", 100),
		PendingLimit:        getEnvInt("PENDING_LIMIT", 1000),
		EventQueueSize:      getEnvInt("EVENT_QUEUE_SIZE", 256),
		BridgeURL:           getEnv("BRIDGE_URL", ""),
		BridgeToken:         getEnv("BRIDGE_TOKEN", ""),
		RosterPath:          getEnv("ROSTER_PATH", "managers/config.json"),
		Timezone:            getEnv("TIMEZONE", "UTC"),
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:           strings.ToLower(getEnv("LOG_FORMAT", "json")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var problems []string

	if c.BridgeURL == "" {
		problems = append(problems, "BRIDGE_URL environment variable is required")
	}

	switch c.StoreBackend {
	case BackendRedis, BackendMemory:
	case BackendDynamoDB:
		if c.DynamoDBTable == "" {
			problems = append(problems, "DYNAMODB_TABLE environment variable is required for the dynamodb backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		problems = append(problems, fmt.Sprintf("unknown TIMEZONE %q", c.Timezone))
	}
	c.Location = loc

	if c.StatsUpdateInterval <= 0 {
		problems = append(problems, "STATS_UPDATE_INTERVAL must be positive")
	}
	if c.BackupInterval < 0 {
		problems = append(problems, "BACKUP_INTERVAL must not be negative")
	}

	if len(problems) > 0 {
		return &Error{Problems: problems}
	}
	return nil
}

// BackupsEnabled reports whether periodic S3 snapshots should run.
func (c *Config) BackupsEnabled() bool {
	return c.S3Bucket != "" && c.BackupInterval > 0
}

// IsConfigError reports whether err is a configuration problem.
func IsConfigError(err error) bool {
	var cfgErr *Error
	return errors.As(err, &cfgErr)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds)) * time.Second
}
