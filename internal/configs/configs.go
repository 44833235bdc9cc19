/*
Package configs is responsible for loading and parsing the client's configuration settings.

Values come from three layers, later layers winning: built-in defaults, an optional YAML
file, and operating system environment variables (a local .env file is loaded into the
environment first).
*/
package configs

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// AppConfig contains all configuration parameters required by the client.
type AppConfig struct {
	// General Settings
	Environment string

	// Backend Settings
	BackendURL     string
	WSURL          string
	RequestTimeout time.Duration
	RequestRate    float64
	RequestBurst   int
	HistoryLimit   int

	// Session Settings
	DataDir       string
	CredentialKey string

	// Realtime Settings
	ReconnectDelay       time.Duration
	ReconnectMaxAttempts int
	ReconnectJitter      time.Duration
	WSReadLimit          int64

	// Typing Settings
	TypingIdleTimeout     time.Duration
	TypingRefreshInterval time.Duration
	TypingExpiry          time.Duration

	// Presentation Bridge Settings
	BridgeAddr           string
	BridgeAllowedOrigins []string
}

// fileConfig mirrors the YAML file layout. Every value is a string so durations and
// sizes can use their human forms ("3s", "64KB").
type fileConfig struct {
	Environment           string   `yaml:"environment"`
	BackendURL            string   `yaml:"backend_url"`
	WSURL                 string   `yaml:"ws_url"`
	RequestTimeout        string   `yaml:"request_timeout"`
	RequestRate           string   `yaml:"request_rate"`
	RequestBurst          string   `yaml:"request_burst"`
	HistoryLimit          string   `yaml:"history_limit"`
	DataDir               string   `yaml:"data_dir"`
	CredentialKey         string   `yaml:"credential_key"`
	ReconnectDelay        string   `yaml:"reconnect_delay"`
	ReconnectMaxAttempts  string   `yaml:"reconnect_max_attempts"`
	ReconnectJitter       string   `yaml:"reconnect_jitter"`
	WSReadLimit           string   `yaml:"ws_read_limit"`
	TypingIdleTimeout     string   `yaml:"typing_idle_timeout"`
	TypingRefreshInterval string   `yaml:"typing_refresh_interval"`
	TypingExpiry          string   `yaml:"typing_expiry"`
	BridgeAddr            string   `yaml:"bridge_addr"`
	BridgeAllowedOrigins  []string `yaml:"bridge_allowed_origins"`
}

// IsDevelopment reports whether the client runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// LoadConfig reads and parses the client configuration.
// path names an optional YAML file; when empty, CONFIG_FILE is consulted.
func LoadConfig(path string) (*AppConfig, error) {
	_ = godotenv.Load(".env")

	file := fileConfig{}
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg := &AppConfig{}
	var err error

	// --- General Settings ---
	cfg.Environment = resolve("ENVIRONMENT", file.Environment, "development")

	// --- Backend Settings ---
	cfg.BackendURL = strings.TrimRight(resolve("BACKEND_URL", file.BackendURL, "http://localhost:8001"), "/")
	backend, err := url.Parse(cfg.BackendURL)
	if err != nil || (backend.Scheme != "http" && backend.Scheme != "https") || backend.Host == "" {
		return nil, fmt.Errorf("invalid BACKEND_URL %q: must be an absolute http(s) URL", cfg.BackendURL)
	}

	cfg.WSURL = strings.TrimRight(resolve("WS_URL", file.WSURL, ""), "/")
	if cfg.WSURL == "" {
		// http -> ws, https -> wss
		cfg.WSURL = "ws" + strings.TrimPrefix(cfg.BackendURL, "http")
	}

	if cfg.RequestTimeout, err = durationValue("REQUEST_TIMEOUT", file.RequestTimeout, 10*time.Second); err != nil {
		return nil, err
	}

	rateStr := resolve("REQUEST_RATE", file.RequestRate, "0")
	cfg.RequestRate, err = strconv.ParseFloat(rateStr, 64)
	if err != nil || cfg.RequestRate < 0 {
		return nil, fmt.Errorf("invalid REQUEST_RATE %q: must be a non-negative number", rateStr)
	}

	if cfg.RequestBurst, err = intValue("REQUEST_BURST", file.RequestBurst, 5); err != nil {
		return nil, err
	}

	if cfg.HistoryLimit, err = intValue("HISTORY_LIMIT", file.HistoryLimit, 50); err != nil {
		return nil, err
	}
	if cfg.HistoryLimit < 1 {
		return nil, fmt.Errorf("HISTORY_LIMIT must be at least 1, got %d", cfg.HistoryLimit)
	}

	// --- Session Settings ---
	cfg.DataDir = resolve("DATA_DIR", file.DataDir, "")
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("DATA_DIR is not set and the home directory is unknown: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".xalvion")
	}

	cfg.CredentialKey = resolve("CREDENTIAL_KEY", file.CredentialKey, "xalvion_token")

	// --- Realtime Settings ---
	if cfg.ReconnectDelay, err = durationValue("RECONNECT_DELAY", file.ReconnectDelay, 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.ReconnectDelay <= 0 {
		return nil, fmt.Errorf("RECONNECT_DELAY must be positive, got %s", cfg.ReconnectDelay)
	}

	if cfg.ReconnectMaxAttempts, err = intValue("RECONNECT_MAX_ATTEMPTS", file.ReconnectMaxAttempts, 0); err != nil {
		return nil, err
	}

	if cfg.ReconnectJitter, err = durationValue("RECONNECT_JITTER", file.ReconnectJitter, 0); err != nil {
		return nil, err
	}

	limitStr := resolve("WS_READ_LIMIT", file.WSReadLimit, "64KB")
	readLimit, err := humanize.ParseBytes(limitStr)
	if err != nil {
		return nil, fmt.Errorf("invalid WS_READ_LIMIT %q: %w", limitStr, err)
	}
	cfg.WSReadLimit = int64(readLimit)

	// --- Typing Settings ---
	if cfg.TypingIdleTimeout, err = durationValue("TYPING_IDLE_TIMEOUT", file.TypingIdleTimeout, 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.TypingRefreshInterval, err = durationValue("TYPING_REFRESH_INTERVAL", file.TypingRefreshInterval, 4*time.Second); err != nil {
		return nil, err
	}
	if cfg.TypingExpiry, err = durationValue("TYPING_EXPIRY", file.TypingExpiry, 8*time.Second); err != nil {
		return nil, err
	}
	if cfg.TypingRefreshInterval > 0 && cfg.TypingRefreshInterval >= cfg.TypingExpiry {
		return nil, fmt.Errorf("TYPING_REFRESH_INTERVAL (%s) must be shorter than TYPING_EXPIRY (%s)", cfg.TypingRefreshInterval, cfg.TypingExpiry)
	}

	// --- Presentation Bridge Settings ---
	cfg.BridgeAddr = resolve("BRIDGE_ADDR", file.BridgeAddr, "")

	if originsStr := os.Getenv("BRIDGE_ALLOWED_ORIGINS"); originsStr != "" {
		cfg.BridgeAllowedOrigins = splitList(originsStr)
	} else {
		cfg.BridgeAllowedOrigins = splitList(strings.Join(file.BridgeAllowedOrigins, ","))
	}

	return cfg, nil
}

// resolve returns the environment value for key, else the file value, else def.
func resolve(key, fileValue, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	if v := strings.TrimSpace(fileValue); v != "" {
		return v
	}
	return def
}

func durationValue(key, fileValue string, def time.Duration) (time.Duration, error) {
	raw := resolve(key, fileValue, "")
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", key, d)
	}
	return d, nil
}

func intValue(key, fileValue string, def int) (int, error) {
	raw := resolve(key, fileValue, "")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %d", key, n)
	}
	return n, nil
}

func splitList(s string) []string {
	out := []string{}
	for _, item := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
