package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Courier   CourierConfig
	Server    ServerConfig
	Dispatch  DispatchConfig
	Backend   BackendConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	JWT       JWTConfig
	Telemetry TelemetryConfig
	Cache     CacheConfig
}

type CourierConfig struct {
	ID    string
	Token string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DispatchConfig struct {
	ChannelURL    string
	AcceptTimeout time.Duration
}

type BackendConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	Enabled bool
}

type JWTConfig struct {
	SecretKey string
}

type TelemetryConfig struct {
	DefaultInterval   time.Duration
	ProximityMeters   float64
	HistoryMaxEntries int64
	GeoSampleInterval time.Duration
}

type CacheConfig struct {
	TTL time.Duration
}

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		Courier: CourierConfig{
			ID:    getEnv("COURIER_ID", ""),
			Token: getEnv("COURIER_TOKEN", ""),
		},
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8090"),
			ReadTimeout:  time.Second * 10,
			WriteTimeout: time.Second * 10,
		},
		Dispatch: DispatchConfig{
			ChannelURL:    getEnv("DISPATCH_WS_URL", "ws://localhost:8080/ws"),
			AcceptTimeout: getDuration("ACCEPT_TIMEOUT", 10*time.Second),
		},
		Backend: BackendConfig{
			BaseURL:        getEnv("BACKEND_BASE_URL", "http://localhost:8080/api/v1"),
			RequestTimeout: getDuration("BACKEND_TIMEOUT", 15*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			Topic:   getEnv("KAFKA_TOPIC", "courier_events"),
			Enabled: getEnv("KAFKA_ENABLED", "false") == "true",
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET_KEY", "my-secret-key"),
		},
		Telemetry: TelemetryConfig{
			DefaultInterval:   getDuration("TELEMETRY_INTERVAL", 3*time.Second),
			ProximityMeters:   getFloat("PROXIMITY_METERS", 200),
			HistoryMaxEntries: int64(getInt("HISTORY_MAX_ENTRIES", 1000)),
			GeoSampleInterval: getDuration("GEO_SAMPLE_INTERVAL", 2*time.Second),
		},
		Cache: CacheConfig{
			TTL: getDuration("CACHE_TTL", 5*time.Minute),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

func getFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
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
