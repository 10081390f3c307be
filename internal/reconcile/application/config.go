package application

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines engine configuration.
type Config struct {
	CoreBaseURL    string        `yaml:"core_base_url"`
	CoreToken      string        `yaml:"core_token"`
	CachePath      string        `yaml:"cache_path"`
	AutosaveEvery  time.Duration `yaml:"autosave_every"`
	MirrorDebounce time.Duration `yaml:"mirror_debounce"`
	FallbackRate   float64       `yaml:"fallback_rate"`
	RatePair       string        `yaml:"rate_pair"`
}

// LoadConfig loads config from yaml or env.
func LoadConfig() (Config, error) {
	cfg := Config{
		CoreBaseURL:    getenvDefault("CASHDESK_CORE_URL", "http://localhost:9090"),
		CoreToken:      os.Getenv("CASHDESK_CORE_TOKEN"),
		CachePath:      getenvDefault("CASHDESK_CACHE_PATH", filepath.FromSlash("var/cache/drafts.db")),
		AutosaveEvery:  getenvDurationDefault("CASHDESK_AUTOSAVE_EVERY", 15*time.Minute),
		MirrorDebounce: getenvDurationDefault("CASHDESK_MIRROR_DEBOUNCE", 500*time.Millisecond),
		FallbackRate:   getenvFloatDefault("CASHDESK_FALLBACK_RATE", 42),
		RatePair:       getenvDefault("CASHDESK_RATE_PAIR", "USDTRY"),
	}

	if path := os.Getenv("CASHDESK_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.CoreBaseURL == "" {
		return cfg, errors.New("reconcile: core base url required")
	}
	if cfg.AutosaveEvery <= 0 {
		cfg.AutosaveEvery = 15 * time.Minute
	}
	if cfg.MirrorDebounce <= 0 {
		cfg.MirrorDebounce = 500 * time.Millisecond
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDurationDefault(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
