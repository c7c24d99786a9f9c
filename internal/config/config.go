package config

import (
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Insights InsightsConfig
	Log      LogConfig
	CORS     CORSConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	CacheTTL time.Duration
}

type KafkaConfig struct {
	Brokers  []string
	Topics   TopicConfig
	MockMode bool
	Enabled  bool
}

type TopicConfig struct {
	TableLoaded  string
	ViewExported string
}

type InsightsConfig struct {
	SessionTTL     time.Duration
	MaxUploadBytes int64
	Timezone       string
	MaxAdvisories  int
}

type LogConfig struct {
	Level       string
	Dir         string
	FileEnabled bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", ":8080"),
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			CacheTTL: time.Duration(getEnvInt("CACHE_TTL_MINUTES", 60)) * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:  getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			Enabled:  getEnvBool("KAFKA_ENABLED", false),
			MockMode: getEnvBool("KAFKA_MOCK_MODE", false),
			Topics: TopicConfig{
				TableLoaded:  getEnv("KAFKA_TOPIC_TABLE_LOADED", "insights.table.loaded"),
				ViewExported: getEnv("KAFKA_TOPIC_VIEW_EXPORTED", "insights.view.exported"),
			},
		},
		Insights: InsightsConfig{
			SessionTTL:     time.Duration(getEnvInt("SESSION_TTL_MINUTES", 120)) * time.Minute,
			MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_MB", 20)) << 20,
			Timezone:       getEnv("TIMEZONE", "UTC"),
			MaxAdvisories:  getEnvInt("MAX_ADVISORIES", 500),
		},
		Log: LogConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Dir:         getEnv("LOG_DIR", "logs"),
			FileEnabled: getEnvBool("LOG_FILE_ENABLED", true),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
	}
}

// Location resolves the configured timezone, falling back to UTC.
func (c InsightsConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
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
