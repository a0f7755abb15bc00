package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Session modes
const (
	SessionModeBrowser = "browser"
	SessionModeHTTP    = "http"
)

// Emitter kinds
const (
	EmitterConsole = "console"
	EmitterRedis   = "redis"
)

// Config represents the application configuration
type Config struct {
	// Storage
	DataDir      string
	RecordFile   string
	ErrorLogFile string

	// Extraction rule override; empty means the embedded default
	RulesFile string

	// Session configuration
	SessionMode       string
	BrowserHeadless   bool
	BrowserExecutable string
	BrowserProxy      string
	BrowserLocale     string
	ViewportWidth     int
	ViewportHeight    int
	RenderTimeout     time.Duration

	// Chat emitter configuration
	Emitter              string
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int

	// Rate limit gate; empty MemcacheAddr keeps the gate in memory
	MemcacheAddr   string
	RateLimitBlock time.Duration

	// Watch mode
	WatchInterval time.Duration
	MetricsAddr   string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	dataDir := getEnv("DATA_DIR", filepath.Join("plugins_data", "couponwatcher", "data"))

	return &Config{
		DataDir:              dataDir,
		RecordFile:           getEnv("RECORD_FILE", filepath.Join(dataDir, "latest_url.json")),
		ErrorLogFile:         getEnv("ERROR_LOG_FILE", filepath.Join(dataDir, "error.log")),
		RulesFile:            getEnv("RULES_FILE", ""),
		SessionMode:          getEnv("SESSION_MODE", SessionModeBrowser),
		BrowserHeadless:      getEnvBool("BROWSER_HEADLESS", true),
		BrowserExecutable:    getEnv("BROWSER_EXECUTABLE_PATH", ""),
		BrowserProxy:         getEnv("BROWSER_PROXY", ""),
		BrowserLocale:        getEnv("BROWSER_LOCALE", "zh-CN"),
		ViewportWidth:        getEnvInt("BROWSER_VIEWPORT_WIDTH", 1920),
		ViewportHeight:       getEnvInt("BROWSER_VIEWPORT_HEIGHT", 1080),
		RenderTimeout:        time.Duration(getEnvInt("RENDER_TIMEOUT_SECONDS", 15)) * time.Second,
		Emitter:              getEnv("EMITTER", EmitterConsole),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "couponwatcher:messages"),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAX_LENGTH", 1000),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		RateLimitBlock:       time.Duration(getEnvInt("RATE_LIMIT_BLOCK_SECONDS", 300)) * time.Second,
		WatchInterval:        time.Duration(getEnvInt("WATCH_INTERVAL_SECONDS", 3600)) * time.Second,
		MetricsAddr:          getEnv("METRICS_ADDR", ""),
		Environment:          getEnv("COUPONWATCHER_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the application cannot run with
func (c *Config) Validate() error {
	if c.RecordFile == "" {
		return fmt.Errorf("record file path is empty")
	}
	switch c.SessionMode {
	case SessionModeBrowser, SessionModeHTTP:
	default:
		return fmt.Errorf("unknown session mode %q", c.SessionMode)
	}
	switch c.Emitter {
	case EmitterConsole:
	case EmitterRedis:
		if c.RedisAddr == "" || c.RedisStream == "" {
			return fmt.Errorf("redis emitter requires REDIS_ADDR and REDIS_STREAM")
		}
	default:
		return fmt.Errorf("unknown emitter %q", c.Emitter)
	}
	if c.ViewportWidth <= 0 || c.ViewportHeight <= 0 {
		return fmt.Errorf("invalid viewport %dx%d", c.ViewportWidth, c.ViewportHeight)
	}
	if c.RenderTimeout <= 0 {
		return fmt.Errorf("render timeout must be positive")
	}
	if c.WatchInterval <= 0 {
		return fmt.Errorf("watch interval must be positive")
	}
	return nil
}

// IsProduction reports whether the application runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}
