// Package config assembles runtime settings from an optional .env file and
// VITALQ_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/abhisek/vitalq/internal/llm"
)

// Config holds process settings. Zero strings mean "use the built-in
// default" for DBPath and CatalogPath.
type Config struct {
	DBPath      string
	HTTPAddr    string
	CatalogPath string
	LogLevel    string

	HintEnabled bool
	HintTimeout time.Duration
	HintRecent  int

	RedisAddr   string
	RedisPrefix string
	LockTTL     time.Duration

	LLM llm.Config
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Config {
	return Config{
		HTTPAddr:    ":8080",
		LogLevel:    "info",
		HintTimeout: 3 * time.Second,
		HintRecent:  8,
		RedisPrefix: "vitalq:",
		LockTTL:     30 * time.Second,
		LLM:         llm.DefaultConfig(),
	}
}

// Load reads envFiles (".env" when none are given; missing files are
// ignored) into the process environment and builds a Config from it.
// Variables already set in the environment win over file values.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from the environment alone.
func FromEnv() (Config, error) {
	cfg := Defaults()
	var errs []error

	cfg.DBPath = getEnv("VITALQ_DB", cfg.DBPath)
	cfg.HTTPAddr = getEnv("VITALQ_HTTP_ADDR", cfg.HTTPAddr)
	cfg.CatalogPath = getEnv("VITALQ_CATALOG", cfg.CatalogPath)
	cfg.LogLevel = getEnv("VITALQ_LOG_LEVEL", cfg.LogLevel)
	cfg.RedisAddr = getEnv("VITALQ_REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPrefix = getEnv("VITALQ_REDIS_PREFIX", cfg.RedisPrefix)

	cfg.HintTimeout = getDuration("VITALQ_HINT_TIMEOUT", cfg.HintTimeout, &errs)
	cfg.LockTTL = getDuration("VITALQ_LOCK_TTL", cfg.LockTTL, &errs)
	cfg.HintRecent = getInt("VITALQ_HINT_RECENT", cfg.HintRecent, &errs)

	cfg.LLM = llm.ConfigFromEnv()
	if !cfg.LLM.HasKey() {
		if discovered, ok := llm.DiscoverConfig(); ok {
			cfg.LLM = discovered
		}
	}
	cfg.HintEnabled = getBool("VITALQ_HINT_ENABLED", cfg.LLM.HasKey(), &errs)

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}

func getInt(key string, def int, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 0 {
		*errs = append(*errs, fmt.Errorf("%s: invalid count %q", key, v))
		return def
	}
	return i
}

func getBool(key string, def bool, errs *[]error) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return def
	}
	return b
}
