// Package config loads the client settings from the environment, with an
// optional .env file underneath.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mmynk/splitroom/internal/calculator"
	"github.com/mmynk/splitroom/pkg/logging"
)

type Config struct {
	// REST API base URL
	APIURL string

	// Realtime endpoint (ws:// or wss://)
	WSURL string

	// Durable session database
	DBPath string

	// HTTP
	HTTPTimeout       time.Duration
	InviteConcurrency int

	// Balances
	SplitPolicy string

	// Observability
	MetricsAddr string
	LogLevel    string
}

// Load reads the configuration. Environment variables take precedence over
// the given .env files (default ".env"); missing files are ignored.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}

	dotenv := map[string]string{}
	for _, f := range files {
		values, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		for k, v := range values {
			if _, ok := dotenv[k]; !ok {
				dotenv[k] = v
			}
		}
	}

	env := func(key, defaultValue string) string {
		if value := os.Getenv(key); value != "" {
			return value
		}
		if value := dotenv[key]; value != "" {
			return value
		}
		return defaultValue
	}

	apiURL := env("SPLITROOM_API_URL", "http://localhost:5000")
	cfg := &Config{
		APIURL:            apiURL,
		WSURL:             env("SPLITROOM_WS_URL", websocketURL(apiURL)),
		DBPath:            env("SPLITROOM_DB_PATH", defaultDBPath()),
		HTTPTimeout:       parseDuration(env("SPLITROOM_HTTP_TIMEOUT", ""), 15*time.Second),
		InviteConcurrency: parseInt(env("SPLITROOM_INVITE_CONCURRENCY", ""), 4),
		SplitPolicy:       env("SPLITROOM_SPLIT_POLICY", calculator.RoundEach.String()),
		MetricsAddr:       env("SPLITROOM_METRICS_ADDR", ""),
		LogLevel:          env("LOG_LEVEL", "info"),
	}
	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	if u, err := url.Parse(c.APIURL); err != nil || u.Host == "" {
		errs = append(errs, fmt.Sprintf("invalid API URL '%s'", c.APIURL))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, fmt.Sprintf("invalid API URL scheme '%s': must be 'http' or 'https'", u.Scheme))
	}

	if u, err := url.Parse(c.WSURL); err != nil || u.Host == "" {
		errs = append(errs, fmt.Sprintf("invalid realtime URL '%s'", c.WSURL))
	} else if u.Scheme != "ws" && u.Scheme != "wss" {
		errs = append(errs, fmt.Sprintf("invalid realtime URL scheme '%s': must be 'ws' or 'wss'", u.Scheme))
	}

	if c.DBPath == "" {
		errs = append(errs, "session database path cannot be empty")
	}

	if c.HTTPTimeout < time.Second {
		errs = append(errs, fmt.Sprintf("invalid HTTP timeout %v: must be at least 1 second", c.HTTPTimeout))
	} else if c.HTTPTimeout > 5*time.Minute {
		errs = append(errs, fmt.Sprintf("invalid HTTP timeout %v: must be at most 5 minutes", c.HTTPTimeout))
	}

	if c.InviteConcurrency < 1 || c.InviteConcurrency > 32 {
		errs = append(errs, fmt.Sprintf("invalid invite concurrency %d: must be between 1 and 32", c.InviteConcurrency))
	}

	if _, ok := calculator.ParsePolicy(c.SplitPolicy); !ok {
		errs = append(errs, fmt.Sprintf("invalid split policy '%s': must be 'round-each' or 'largest-remainder'", c.SplitPolicy))
	}

	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			errs = append(errs, fmt.Sprintf("invalid metrics address '%s': %v", c.MetricsAddr, err))
		}
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// Policy returns the configured split policy.
func (c *Config) Policy() calculator.Policy {
	p, _ := calculator.ParsePolicy(c.SplitPolicy)
	return p
}

// Level returns the configured log level, defaulting to info.
func (c *Config) Level() slog.Level {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// websocketURL derives the realtime endpoint from the API URL.
func websocketURL(apiURL string) string {
	u, err := url.Parse(apiURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String()
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "splitroom.db")
	}
	return filepath.Join(dir, "splitroom", "session.db")
}

func parseInt(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return -1
	}
	return i
}

func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}
