package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	KafkaBrokers []string
	KafkaTopic   string

	JWTSecret string

	GatewayURL        string
	GatewayStoreID    string
	GatewayStorePass  string
	GatewayTimeout    time.Duration
	FrontendURL       string
	JaegerEndpoint    string
}

// Load reads configuration from the environment. A .env file is optional
// and silently ignored when absent.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port: getEnv("PORT", "8080"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "bookingdb"),

		KafkaBrokers: []string{getEnv("KAFKA_BROKER", "localhost:9092")},
		KafkaTopic:   getEnv("KAFKA_TOPIC", "booking_events"),

		JWTSecret: getEnv("JWT_SECRET", "your-secret-key-change-in-production"),

		GatewayURL:       getEnv("GATEWAY_URL", "https://sandbox.sslcommerz.com/gwprocess/v4/api.php"),
		GatewayStoreID:   getEnv("GATEWAY_STORE_ID", "teststore"),
		GatewayStorePass: getEnv("GATEWAY_STORE_PASS", "teststore@ssl"),
		GatewayTimeout:   getEnvDuration("GATEWAY_TIMEOUT", 5*time.Second),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:3000"),
		JaegerEndpoint:   getEnv("JAEGER_ENDPOINT", "http://localhost:14268/api/traces"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
