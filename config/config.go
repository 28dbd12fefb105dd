package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	AppName            = "cinebooker-cli"
	DefaultAPIBaseURL  = "https://movie-ticket-booking-system-b2uj.onrender.com"
	DefaultHTTPTimeout = 12 * time.Second
)

type Config struct {
	APIBaseURL  string
	HTTPTimeout time.Duration
	ConfigDir   string
	CacheDir    string
	Debug       bool
	LogFile     string
	MovieID     string
}

// Load reads configuration from the environment, after merging an optional
// .env file from the working directory. Invalid values fall back to defaults
// and are reported as warnings.
func Load() (Config, []string, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (Config, []string, error) {
	var warnings []string

	cfg := Config{
		APIBaseURL:  DefaultAPIBaseURL,
		HTTPTimeout: DefaultHTTPTimeout,
		Debug:       truthy(os.Getenv("CINEBOOKER_DEBUG")),
		LogFile:     strings.TrimSpace(os.Getenv("CINEBOOKER_LOG_FILE")),
		MovieID:     strings.TrimSpace(os.Getenv("CINEBOOKER_MOVIE")),
	}

	base := firstNonEmpty(os.Getenv("CINEBOOKER_API_BASE_URL"), os.Getenv("NEXT_PUBLIC_API_BASE_URL"))
	if base != "" {
		if normalized, err := normalizeBaseURL(base); err != nil {
			warnings = append(warnings, fmt.Sprintf("ignoring api base url %q: %s", base, err.Error()))
		} else {
			cfg.APIBaseURL = normalized
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CINEBOOKER_HTTP_TIMEOUT")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			warnings = append(warnings, fmt.Sprintf("ignoring http timeout %q", raw))
		} else {
			cfg.HTTPTimeout = d
		}
	}

	configDir := strings.TrimSpace(os.Getenv("CINEBOOKER_CONFIG_DIR"))
	if configDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return Config{}, warnings, fmt.Errorf("resolve config dir: %w", err)
		}
		configDir = filepath.Join(dir, AppName)
	}
	cfg.ConfigDir = configDir

	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = filepath.Join(configDir, "cache")
	} else {
		cacheDir = filepath.Join(cacheDir, AppName)
	}
	cfg.CacheDir = cacheDir

	if cfg.Debug && cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(cfg.CacheDir, "debug.log")
	}

	return cfg, warnings, nil
}

// Host returns the host part of the API base url, used in connectivity messages.
func (c Config) Host() string {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Hostname() == "" {
		return c.APIBaseURL
	}
	return u.Hostname()
}

func normalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errors.New("scheme must be http or https")
	}
	if u.Host == "" {
		return "", errors.New("missing host")
	}
	return trimmed, nil
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
