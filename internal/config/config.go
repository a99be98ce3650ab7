// Package config handles application configuration from the environment
// and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Catalog drivers.
const (
	DriverJSON     = "json"
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
)

// DefaultEnvFile is read when Load is called without files.
const DefaultEnvFile = ".env"

type Config struct {
	CatalogDriver  string // json, pgx or postgres
	CatalogDSN     string // JSON file path or database URL
	TessdataPrefix string
	OCRLanguage    string
	OutputImage    string // annotated screenshot path, none when empty
	Debug          bool
	WatchDebounce  time.Duration
}

// Load reads the environment after loading the given .env files (DefaultEnvFile
// when none are given). Variables already set in the environment win over the
// files. A missing file is not an error.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{DefaultEnvFile}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to load %s: %w", f, err)
			}
			log.Printf("Config: %s not found, using environment", f)
		}
	}

	cfg := &Config{
		CatalogDriver:  strings.ToLower(getEnv("DRAFT_CATALOG_DRIVER", DriverJSON)),
		CatalogDSN:     getEnv("DRAFT_CATALOG_DSN", "cards.json"),
		TessdataPrefix: getEnv("DRAFT_TESSDATA_PREFIX", ""),
		OCRLanguage:    getEnv("DRAFT_OCR_LANG", "eng"),
		OutputImage:    getEnv("DRAFT_OUTPUT_IMAGE", ""),
		Debug:          getEnvBool("DRAFT_DEBUG", false),
		WatchDebounce:  getEnvDuration("DRAFT_WATCH_DEBOUNCE", 500*time.Millisecond),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the catalog driver.
func (c *Config) Validate() error {
	switch c.CatalogDriver {
	case DriverJSON, DriverPgx, DriverPostgres:
	default:
		return fmt.Errorf("unknown catalog driver %q (want %s, %s or %s)",
			c.CatalogDriver, DriverJSON, DriverPgx, DriverPostgres)
	}
	if c.CatalogDSN == "" {
		return fmt.Errorf("catalog DSN is empty")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def
		}
		return b
	}
	return def
}

// getEnvDuration accepts Go durations ("750ms") or plain milliseconds.
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}
