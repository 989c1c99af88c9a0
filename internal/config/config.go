package config

import (
	"os"
	"strconv"
)

type Config struct {
	// HTTP
	HTTPPort string

	// Postgres
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBMaxConns int32

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers   string
	TelemetryTopic string
	AlertTopic     string
	ConsumerGroup  string

	// Pipeline channels
	DBChannelSize    int
	StateChannelSize int
	AlertChannelSize int

	// Batch writer tuning
	DBBatchSize       int
	DBFlushIntervalMS int

	// Worker counts
	DBWriterWorkers    int
	StateWriterWorkers int
	AlertWorkers       int

	// Daily rollup
	RollupHour       int
	RollupMinute     int
	RollupBufferDays int

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8002"),
		DBHost:             getEnv("DB_HOST", "localhost"),
		DBPort:             getEnv("DB_PORT", "5432"),
		DBUser:             getEnv("DB_USER", "fleet_user"),
		DBPassword:         getEnv("DB_PASSWORD", "fleet_password"),
		DBName:             getEnv("DB_NAME", "fleetwatch"),
		DBMaxConns:         int32(getEnvInt("DB_MAX_CONNS", 15)),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		KafkaBrokers:       getEnv("KAFKA_BROKERS", "localhost:9092"),
		TelemetryTopic:     getEnv("TELEMETRY_TOPIC", "vehicle-telemetry"),
		AlertTopic:         getEnv("ALERT_TOPIC", "vehicle-alerts"),
		ConsumerGroup:      getEnv("CONSUMER_GROUP", "fleetwatch"),
		DBChannelSize:      getEnvInt("DB_CHANNEL_SIZE", 10000),
		StateChannelSize:   getEnvInt("STATE_CHANNEL_SIZE", 50000),
		AlertChannelSize:   getEnvInt("ALERT_CHANNEL_SIZE", 10000),
		DBBatchSize:        getEnvInt("DB_BATCH_SIZE", 500),
		DBFlushIntervalMS:  getEnvInt("DB_FLUSH_INTERVAL_MS", 100),
		DBWriterWorkers:    getEnvInt("DB_WRITER_WORKERS", 4),
		StateWriterWorkers: getEnvInt("STATE_WRITER_WORKERS", 2),
		AlertWorkers:       getEnvInt("ALERT_WORKERS", 2),
		RollupHour:         getEnvInt("ROLLUP_HOUR", 7),
		RollupMinute:       getEnvInt("ROLLUP_MINUTE", 0),
		RollupBufferDays:   getEnvInt("ROLLUP_BUFFER_DAYS", 2),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "json"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
