package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendPostgres = "postgres"
	BackendREST     = "rest"
)

type Config struct {
	// Server
	ServerPort   string
	ServerHost   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Source row store
	SourceBackend     string
	SourcePostgresDSN string
	SourceURL         string
	SourceKey         string

	// Warehouse
	WarehouseBackend     string
	WarehousePostgresDSN string
	WarehouseURL         string
	WarehouseKey         string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers      []string
	KafkaGroupID      string
	TriggerTopic      string
	RunEventsTopic    string
	KafkaWriteTimeout time.Duration

	// ETL
	LayoutFile        string
	ScheduleInterval  time.Duration
	LockTTL           time.Duration
	HTTPClientTimeout time.Duration
	HTTPRetryAttempts int
}

func Load() *Config {
	return &Config{
		ServerPort:   getEnv("SERVER_PORT", "8090"),
		ServerHost:   getEnv("SERVER_HOST", "0.0.0.0"),
		ReadTimeout:  getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getDuration("WRITE_TIMEOUT", 30*time.Second),

		SourceBackend:     strings.ToLower(getEnv("SOURCE_BACKEND", BackendPostgres)),
		SourcePostgresDSN: getEnv("SOURCE_POSTGRES_DSN", "host=localhost user=hospital password=hospital dbname=hospital port=5432 sslmode=disable"),
		SourceURL:         getEnv("SOURCE_DB_URL", ""),
		SourceKey:         getEnv("SOURCE_DB_KEY", ""),

		WarehouseBackend:     strings.ToLower(getEnv("WAREHOUSE_BACKEND", BackendPostgres)),
		WarehousePostgresDSN: getEnv("WAREHOUSE_POSTGRES_DSN", "host=localhost user=warehouse password=warehouse dbname=warehouse port=5432 sslmode=disable"),
		WarehouseURL:         getEnv("WAREHOUSE_DB_URL", ""),
		WarehouseKey:         getEnv("WAREHOUSE_DB_KEY", ""),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:      getStringSliceEnv("KAFKA_BROKERS", nil),
		KafkaGroupID:      getEnv("KAFKA_GROUP_ID", "warehouse-etl"),
		TriggerTopic:      getEnv("ETL_TRIGGER_TOPIC", "etl-triggers"),
		RunEventsTopic:    getEnv("ETL_EVENTS_TOPIC", "etl-runs"),
		KafkaWriteTimeout: getDuration("KAFKA_WRITE_TIMEOUT", 5*time.Second),

		LayoutFile:        getEnv("ETL_LAYOUT_FILE", ""),
		ScheduleInterval:  getDuration("ETL_SCHEDULE_INTERVAL", 0),
		LockTTL:           getDuration("ETL_LOCK_TTL", 30*time.Minute),
		HTTPClientTimeout: getDuration("HTTP_CLIENT_TIMEOUT", 30*time.Second),
		HTTPRetryAttempts: getIntEnv("HTTP_RETRY_ATTEMPTS", 3),
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
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
