// Package config loads process configuration from the environment and
// builds the shared logger.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the settings of the server and the import tool.
type Config struct {
	DBDriver            string
	DBDSN               string
	Port                int
	JWTSecret           string
	LogLevel            string
	ExpiryWindowDays    int
	ExpirySweepInterval time.Duration
	CORSOrigins         []string
	EnableScenarios     bool
}

// Load reads .env (when present) and then the environment. Variables already
// set in the environment win over .env entries.
func Load() (Config, error) {
	_ = godotenv.Load()
	return fromEnv()
}

func fromEnv() (Config, error) {
	port, err := strconv.Atoi(get("PORT", "8080"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid PORT: %w", err)
	}
	window, err := strconv.Atoi(get("EXPIRY_WINDOW_DAYS", "30"))
	if err != nil || window <= 0 {
		return Config{}, fmt.Errorf("invalid EXPIRY_WINDOW_DAYS %q", os.Getenv("EXPIRY_WINDOW_DAYS"))
	}
	sweep, err := time.ParseDuration(get("EXPIRY_SWEEP_INTERVAL", "1h"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid EXPIRY_SWEEP_INTERVAL: %w", err)
	}

	c := Config{
		DBDriver:            strings.ToLower(get("DB_DRIVER", "sqlite")),
		DBDSN:               get("DB_DSN", "brokerage.db"),
		Port:                port,
		JWTSecret:           os.Getenv("JWT_SECRET"),
		LogLevel:            get("LOG_LEVEL", "info"),
		ExpiryWindowDays:    window,
		ExpirySweepInterval: sweep,
		CORSOrigins:         splitList(get("CORS_ORIGINS", "http://localhost:5173,http://localhost:8080")),
		EnableScenarios:     get("ENABLE_SCENARIOS", "") == "true",
	}
	return c, nil
}

// Validate checks settings that have no usable default.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("missing env JWT_SECRET")
	}
	switch c.DBDriver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	return nil
}

// get returns the value of the environment variable k or def if not set.
func get(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
