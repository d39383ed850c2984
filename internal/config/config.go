// Package config loads simulation run configuration from environment
// variables (via a .env file, per the teacher's layering), grounded on
// aristath-sentinel's internal/config.Load.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/cyclus-sim/cyclus/internal/cycluserr"
)

// Config holds the parameters needed to stand up one simulation run.
type Config struct {
	Seed          int64  // RNG seed; determinism hinges on this (spec.md §5)
	DumpCount     int    // Recorder batch size before auto-flush
	Steps         int    // number of time steps to run
	LogLevel      string // zerolog level name: debug, info, warn, error
	SQLitePath    string // output database path; "" disables the sqlite backend
	CsvDir        string // output csv directory; "" disables the csv backend
	WebSocketPush bool   // enable the live websocket recorder backend
	HTTPPort      int    // internal/server listen port
}

// Load reads configuration from environment variables, loading a .env
// file first if one is present (godotenv.Load returns an error when no
// .env exists, which is not itself a failure).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Seed:          int64(getEnvAsInt("CYCLUS_SEED", 1)),
		DumpCount:     getEnvAsInt("CYCLUS_DUMP_COUNT", 10000),
		Steps:         getEnvAsInt("CYCLUS_STEPS", 120),
		LogLevel:      getEnv("CYCLUS_LOG_LEVEL", "info"),
		SQLitePath:    getEnv("CYCLUS_SQLITE_PATH", ""),
		CsvDir:        getEnv("CYCLUS_CSV_DIR", ""),
		WebSocketPush: getEnvAsBool("CYCLUS_WEBSOCKET_PUSH", false),
		HTTPPort:      getEnvAsInt("CYCLUS_HTTP_PORT", 8080),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants the rest of the kernel assumes hold.
func (c *Config) Validate() error {
	if c.Steps <= 0 {
		return cycluserr.Newf(cycluserr.KindValueError, "CYCLUS_STEPS must be positive, got %d", c.Steps)
	}
	if c.DumpCount <= 0 {
		return cycluserr.Newf(cycluserr.KindValueError, "CYCLUS_DUMP_COUNT must be positive, got %d", c.DumpCount)
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return cycluserr.Newf(cycluserr.KindValueError, "CYCLUS_HTTP_PORT %d is not a valid port", c.HTTPPort)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
