package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort           string
	Env                string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64

	RedisAddr     string
	RedisPassword string
	CartTTL       time.Duration
	CartIdleTTL   time.Duration

	MongoURI    string
	MongoDBName string

	KafkaBrokers []string
	InstanceID   string

	WhatsAppNumber string

	SQLitePath  string
	JWTSecret   string
	JWTTTL      time.Duration
	AdminEmails []string

	CloudinaryURL string
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	host, _ := os.Hostname()

	cfg := &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		Env:                getEnv("APP_ENV", "development"),
		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:    getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBodySize: getInt64("MAX_REQUEST_BODY_SIZE", 10<<20),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		CartTTL:            getDuration("CART_TTL", 30*24*time.Hour),
		CartIdleTTL:        getDuration("CART_IDLE_TTL", 30*time.Minute),
		MongoURI:           getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:        getEnv("MONGO_DB_NAME", "storefront"),
		KafkaBrokers:       getList("KAFKA_BROKERS", "localhost:9092"),
		InstanceID:         getEnv("INSTANCE_ID", getOr(host, "storefront")),
		WhatsAppNumber:     getEnv("WHATSAPP_NUMBER", "51999999999"),
		SQLitePath:         getEnv("SQLITE_PATH", "storefront.db"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		JWTTTL:             getDuration("JWT_TTL", 24*time.Hour),
		AdminEmails:        getList("ADMIN_EMAILS", ""),
		CloudinaryURL:      getEnv("CLOUDINARY_URL", ""),
	}

	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, errors.New("JWT_SECRET must be set in production")
		}
		cfg.JWTSecret = "dev-secret"
	}
	if !isDigits(cfg.WhatsAppNumber) {
		return nil, fmt.Errorf("WHATSAPP_NUMBER must contain digits only, got %q", cfg.WhatsAppNumber)
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return defaultValue
}

func getInt64(key string, defaultValue int64) int64 {
	if n, err := strconv.ParseInt(os.Getenv(key), 10, 64); err == nil && n > 0 {
		return n
	}
	return defaultValue
}

func getList(key, defaultValue string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, defaultValue), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
