package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/srs-generator/pkg/log"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
// Values are resolved in order: defaults, optional YAML file (CONFIG_FILE), environment.
//
// Environment Variables:
// LLM Configuration:
// - LLM_API_KEY: API key for the LLM provider (fallback: OPENAI_API_KEY)
// - LLM_API_URL: API endpoint URL (default: https://api.openai.com/v1)
// - LLM_MODEL: Model name to use (default: gpt-4o-mini)
// - LLM_MAX_TOKENS: Maximum tokens for responses (default: 16384)
// - LLM_TEMPERATURE: Temperature for responses (default: 0.8)
// - LLM_TIMEOUT: Request timeout in seconds (default: 300)
// - LLM_SITE_URL / LLM_APP_NAME: optional attribution headers
//
// HTTP / Storage:
// - HTTP_ADDR: listen address (default: :8000, PORT is honoured when HTTP_ADDR is unset)
// - STORAGE_DIR: root directory of per-owner documents (default: ./storage)
//
// Database:
// - DB_DRIVER: sqlite | postgres | none (default: sqlite)
// - DB_PATH: SQLite database file (default: ./data/srs.db)
// - DATABASE_URL: PostgreSQL DSN
//
// Janitor:
// - JANITOR_CRON: sweep schedule, standard 5-field cron (default: */10 * * * *)
// - JANITOR_STALE_AFTER: minutes before a processing job is considered abandoned (default: 60);
//   must exceed LLM_TIMEOUT by at least StaleMargin
//
// Logging:
// - LOG_LEVEL: debug | info | warn | error (default: info)
// - LOG_FILE: append log entries to this file instead of stdout
type Config struct {
	LLM      LLMConfig      `json:"llm" yaml:"llm"`
	HTTP     HTTPConfig     `json:"http" yaml:"http"`
	Storage  StorageConfig  `json:"storage" yaml:"storage"`
	Database DatabaseConfig `json:"database" yaml:"database"`
	Janitor  JanitorConfig  `json:"janitor" yaml:"janitor"`
	LogLevel string         `json:"log_level" yaml:"log_level"`
	LogFile  string         `json:"log_file" yaml:"log_file"`
}

// LLMConfig holds the configuration for the generation service client.
type LLMConfig struct {
	APIKey      string  `json:"-" yaml:"api_key"`
	APIURL      string  `json:"api_url" yaml:"api_url"`
	Model       string  `json:"model" yaml:"model"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	Timeout     int     `json:"timeout" yaml:"timeout"`
	SiteURL     string  `json:"site_url" yaml:"site_url"`
	AppName     string  `json:"app_name" yaml:"app_name"`
}

// Configured reports whether credentials for the generation service are present.
func (c LLMConfig) Configured() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

func (c LLMConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

type HTTPConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

type StorageConfig struct {
	Dir string `json:"dir" yaml:"dir"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

type DatabaseConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	Path   string `json:"path" yaml:"path"`
	URL    string `json:"-" yaml:"url"`
}

type JanitorConfig struct {
	CronExpr     string `json:"cron_expr" yaml:"cron_expr"`
	StaleMinutes int    `json:"stale_minutes" yaml:"stale_minutes"`
}

// StaleMargin is the minimum gap between the generation timeout and the stale
// window, leaving room for rendering after the model call returns.
const StaleMargin = 5 * time.Minute

// StaleAfter is the age after which a processing job is considered abandoned.
func (c JanitorConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleMinutes) * time.Minute
}

// Option is a function type for configuring Config
type Option func(*Config)

// WithFile overlays the YAML file at path before environment variables are applied.
func WithFile(path string) Option {
	return func(c *Config) {
		if strings.TrimSpace(path) == "" {
			return
		}
		if err := loadYAML(path, c); err != nil {
			log.Warn("Ignoring config file %s: %v", path, err)
		}
	}
}

func defaults() *Config {
	return &Config{
		LLM: LLMConfig{
			APIURL:      "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			MaxTokens:   16384,
			Temperature: 0.8,
			Timeout:     300,
		},
		HTTP: HTTPConfig{
			Addr: ":8000",
		},
		Storage: StorageConfig{
			Dir: "./storage",
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   "./data/srs.db",
		},
		Janitor: JanitorConfig{
			CronExpr:     "*/10 * * * *",
			StaleMinutes: 60,
		},
		LogLevel: "info",
	}
}

// NewFromEnv creates a new Config instance with values from environment variables and options.
// CONFIG_FILE, when set, is applied before any explicit options.
func NewFromEnv(opts ...Option) (*Config, error) {
	config := defaults()

	opts = append([]Option{WithFile(os.Getenv("CONFIG_FILE"))}, opts...)
	for _, opt := range opts {
		opt(config)
	}
	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	if !config.LLM.Configured() {
		log.Warn("LLM_API_KEY is not set; generation requests will be rejected")
	}
	log.Info("Config: llm=%s@%s storage=%s db=%s", config.LLM.Model, config.LLM.APIURL, config.Storage.Dir, config.Database.Driver)

	return config, nil
}

func applyEnv(c *Config) {
	c.LLM.APIKey = getEnvString("LLM_API_KEY", getEnvString("OPENAI_API_KEY", c.LLM.APIKey))
	c.LLM.APIURL = getEnvString("LLM_API_URL", c.LLM.APIURL)
	c.LLM.Model = getEnvString("LLM_MODEL", c.LLM.Model)
	c.LLM.MaxTokens = getEnvInt("LLM_MAX_TOKENS", c.LLM.MaxTokens)
	c.LLM.Temperature = getEnvFloat("LLM_TEMPERATURE", c.LLM.Temperature)
	c.LLM.Timeout = getEnvInt("LLM_TIMEOUT", c.LLM.Timeout)
	c.LLM.SiteURL = getEnvString("LLM_SITE_URL", c.LLM.SiteURL)
	c.LLM.AppName = getEnvString("LLM_APP_NAME", c.LLM.AppName)

	if port := os.Getenv("PORT"); port != "" {
		c.HTTP.Addr = ":" + port
	}
	c.HTTP.Addr = getEnvString("HTTP_ADDR", c.HTTP.Addr)

	c.Storage.Dir = getEnvString("STORAGE_DIR", c.Storage.Dir)

	c.Database.Driver = strings.ToLower(getEnvString("DB_DRIVER", c.Database.Driver))
	c.Database.Path = getEnvString("DB_PATH", c.Database.Path)
	c.Database.URL = getEnvString("DATABASE_URL", c.Database.URL)

	if expr, ok := os.LookupEnv("JANITOR_CRON"); ok {
		c.Janitor.CronExpr = expr
	}
	c.Janitor.StaleMinutes = getEnvInt("JANITOR_STALE_AFTER", c.Janitor.StaleMinutes)

	c.LogLevel = getEnvString("LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnvString("LOG_FILE", c.LogFile)
}

// Validate checks the structural configuration. Missing LLM credentials are not
// an error here: they are reported per request.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Storage.Dir) == "" {
		return fmt.Errorf("STORAGE_DIR is required")
	}
	switch c.Database.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Database.Path) == "" {
			return fmt.Errorf("DB_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Database.URL) == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	case DriverNone:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.LLM.MaxTokens < 1 {
		return fmt.Errorf("LLM_MAX_TOKENS must be greater than 0")
	}
	if c.LLM.Timeout < 1 {
		return fmt.Errorf("LLM_TIMEOUT must be greater than 0")
	}
	if c.Janitor.CronExpr != "" {
		if _, err := cron.ParseStandard(c.Janitor.CronExpr); err != nil {
			return fmt.Errorf("invalid JANITOR_CRON: %w", err)
		}
		if c.Janitor.StaleMinutes < 1 {
			return fmt.Errorf("JANITOR_STALE_AFTER must be greater than 0")
		}
		if limit := c.LLM.TimeoutDuration() + StaleMargin; c.Janitor.StaleAfter() <= limit {
			return fmt.Errorf("JANITOR_STALE_AFTER (%s) must exceed LLM_TIMEOUT plus %s (%s)", c.Janitor.StaleAfter(), StaleMargin, limit)
		}
	}
	return nil
}

func loadYAML(path string, c *Config) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(content, c)
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float value from environment variables with default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
