package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables read by FromEnv.
const (
	EnvStoreDSN     = "COLLECTIFOR_STORE_DSN"
	EnvStoreBackend = "COLLECTIFOR_STORE_BACKEND"
	EnvLogLevel     = "COLLECTIFOR_LOG_LEVEL"
	EnvWorkers      = "COLLECTIFOR_WORKERS"
)

// LoadEnv loads variables from the given .env files (default ".env") into
// the process environment. Missing files are ignored; variables already set
// take precedence. A file that exists but cannot be read or parsed is an
// error.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		err := godotenv.Load(f)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return fmt.Errorf("load env file %s: %w", f, err)
	}
	return nil
}

// FromEnv returns the configuration layer defined by the environment.
func FromEnv() FileConfig {
	var cfg FileConfig
	if v := getEnv(EnvLogLevel, ""); v != "" {
		cfg.LogLevel = &v
	}
	if n := getEnvAsInt(EnvWorkers, 0); n > 0 {
		cfg.Workers = &n
	}
	backend := getEnv(EnvStoreBackend, "")
	dsn := getEnv(EnvStoreDSN, "")
	if backend != "" || dsn != "" {
		cfg.Store = &StoreConfig{}
		if backend != "" {
			cfg.Store.Backend = &backend
		}
		if dsn != "" {
			cfg.Store.DSN = &dsn
		}
	}
	return cfg
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
