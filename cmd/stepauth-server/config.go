package main

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type config struct {
	Addr            string
	DatabaseURL     string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	JWTSecret       string
	CookieSecure    bool
	TrustProxy      bool
	LogFormat       string
	DevOutbox       bool
	SeedAdminEmail  string
	SeedAdminPass   string
	ShutdownTimeout time.Duration
}

// loadConfig reads the environment, first merging a .env file when one
// exists. Variables already set in the environment win over the file.
func loadConfig() (config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return config{}, err
		}
	}

	cfg := config{
		Addr:            envOr("STEPAUTH_ADDR", ":8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         envInt("REDIS_DB", 0),
		JWTSecret:       os.Getenv("STEPAUTH_JWT_SECRET"),
		CookieSecure:    envBool("STEPAUTH_COOKIE_SECURE", true),
		TrustProxy:      envBool("STEPAUTH_TRUST_PROXY", false),
		LogFormat:       envOr("STEPAUTH_LOG_FORMAT", "json"),
		DevOutbox:       envBool("STEPAUTH_DEV_OUTBOX", false),
		SeedAdminEmail:  os.Getenv("STEPAUTH_SEED_ADMIN_EMAIL"),
		SeedAdminPass:   os.Getenv("STEPAUTH_SEED_ADMIN_PASSWORD"),
		ShutdownTimeout: envDuration("STEPAUTH_SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if len(cfg.JWTSecret) < 32 {
		return config{}, errors.New("STEPAUTH_JWT_SECRET must be at least 32 bytes")
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
