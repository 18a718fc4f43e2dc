// Package config loads service configuration from the environment and an
// optional .env file.
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

// Config holds runtime settings shared by the server and the CLI.
type Config struct {
	PostgresDSN   string
	ClickHouseDSN string
	UseMemory     bool
	FixturesDir   string

	Concurrency    int
	FetchTimeout   time.Duration
	PersistTimeout time.Duration
	Interval       time.Duration
	MaxStaleDays   int

	PriceRateLimit float64 // requests per second, 0 = unlimited
	PriceCacheTTL  time.Duration

	HTTPAddr  string
	LogLevel  string
	LogFormat string
}

// Load reads .env files (missing files are ignored) and then the process
// environment. Variables already set in the environment win over .env.
func Load(files ...string) (*Config, error) {
	cfg, err := Read(files...)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without Validate, for callers that apply command-line
// overrides before validating.
func Read(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return parseEnv()
}

// FromEnv builds and validates a Config from the process environment.
func FromEnv() (*Config, error) {
	cfg, err := parseEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseEnv() (*Config, error) {
	var errs []error
	cfg := &Config{
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		ClickHouseDSN: os.Getenv("CLICKHOUSE_DSN"),
		FixturesDir:   os.Getenv("FIXTURES_DIR"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":9090"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
	}

	cfg.UseMemory = getBool("USE_MEMORY", false, &errs)
	cfg.Concurrency = getInt("EVAL_CONCURRENCY", 8, &errs)
	cfg.FetchTimeout = getDuration("EVAL_FETCH_TIMEOUT", 10*time.Second, &errs)
	cfg.PersistTimeout = getDuration("EVAL_PERSIST_TIMEOUT", 10*time.Second, &errs)
	cfg.Interval = getDuration("EVAL_INTERVAL", 24*time.Hour, &errs)
	cfg.MaxStaleDays = getInt("MAX_STALE_DAYS", 5, &errs)
	cfg.PriceRateLimit = getFloat("PRICE_RATE_LIMIT", 0, &errs)
	cfg.PriceCacheTTL = getDuration("PRICE_CACHE_TTL", 10*time.Minute, &errs)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and store selection.
func (c *Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("EVAL_CONCURRENCY must be at least 1, got %d", c.Concurrency)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("EVAL_INTERVAL must be positive, got %s", c.Interval)
	}
	if c.PriceRateLimit < 0 {
		return fmt.Errorf("PRICE_RATE_LIMIT must not be negative, got %v", c.PriceRateLimit)
	}
	if !c.UseMemory && (c.PostgresDSN == "" || c.ClickHouseDSN == "") {
		return errors.New("POSTGRES_DSN and CLICKHOUSE_DSN are required unless USE_MEMORY is set")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int, errs *[]error) int {
	s := getEnv(key, "")
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid integer %q", key, s))
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64, errs *[]error) float64 {
	s := getEnv(key, "")
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid number %q", key, s))
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	s := getEnv(key, "")
	if s == "" {
		return fallback
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, s))
		return fallback
	}
	return v
}

func getBool(key string, fallback bool, errs *[]error) bool {
	s := strings.TrimSpace(getEnv(key, ""))
	if s == "" {
		return fallback
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid boolean %q", key, s))
		return fallback
	}
	return v
}
