package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	RedisAddr   string

	JWTSecret            string
	AdminBootstrapSecret string

	LogLevel  string
	LogFormat string

	ClickMaxAttempts   int
	CommissionMode     string
	CommissionMaxRetry int
	ClickRateLimit     float64

	CommissionSweepInterval time.Duration
	CommissionSweepAge      time.Duration
}

const (
	CommissionAsync  = "async"
	CommissionInline = "inline"
)

// devJWTSecret signs tokens in development when JWT_SECRET is unset.
const devJWTSecret = "coinclicker-development-secret"

// Load reads .env (when present) and the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		Env:                  getEnv("ENV", "production"),
		DatabaseURL:          databaseURL(),
		RedisAddr:            redisAddr(),
		JWTSecret:            getEnv("JWT_SECRET", ""),
		AdminBootstrapSecret: getEnv("ADMIN_BOOTSTRAP_SECRET", ""),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "json"),
		ClickMaxAttempts:     getInt("CLICK_MAX_ATTEMPTS", 5),
		CommissionMode:       getEnv("COMMISSION_MODE", CommissionAsync),
		CommissionMaxRetry:   getInt("COMMISSION_MAX_RETRY", 10),
		ClickRateLimit:       getFloat("CLICK_RATE_LIMIT", 20),

		CommissionSweepInterval: getDuration("COMMISSION_SWEEP_INTERVAL", 30*time.Second),
		CommissionSweepAge:      getDuration("COMMISSION_SWEEP_AGE", time.Minute),
	}
	if cfg.JWTSecret == "" && cfg.Env == "development" {
		log.Println("JWT_SECRET not set, using the development secret")
		cfg.JWTSecret = devJWTSecret
	}
	return cfg
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" && c.Env != "development" {
		errs = append(errs, errors.New("JWT_SECRET is required outside development"))
	}
	if c.ClickMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("CLICK_MAX_ATTEMPTS must be at least 1, got %d", c.ClickMaxAttempts))
	}
	if c.CommissionMode != CommissionAsync && c.CommissionMode != CommissionInline {
		errs = append(errs, fmt.Errorf("COMMISSION_MODE must be %q or %q, got %q", CommissionAsync, CommissionInline, c.CommissionMode))
	}
	if c.CommissionSweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("COMMISSION_SWEEP_INTERVAL must be positive, got %v", c.CommissionSweepInterval))
	}
	if c.ClickRateLimit <= 0 {
		errs = append(errs, fmt.Errorf("CLICK_RATE_LIMIT must be positive, got %v", c.ClickRateLimit))
	}
	return errors.Join(errs...)
}

// databaseURL prefers DATABASE_URL and falls back to the DB_* variables.
// An empty result selects the in-memory store.
func databaseURL() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	if os.Getenv("DB_HOST") == "" {
		return ""
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_HOST"),
		getEnv("DB_PORT", "5432"),
		os.Getenv("DB_NAME"),
	)
}

func redisAddr() string {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}
	if host := os.Getenv("REDIS_HOST"); host != "" {
		return host + ":" + getEnv("REDIS_PORT", "6379")
	}
	// docker-compose service name unless running on the host
	if os.Getenv("RUN_LOCAL") == "true" {
		return "127.0.0.1:6379"
	}
	return "redis:6379"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}
