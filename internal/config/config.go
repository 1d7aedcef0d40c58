package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// MinCallInterval is the smallest allowed delay between two insight provider calls.
const MinCallInterval = 500 * time.Millisecond

// Config represents the complete application configuration
type Config struct {
	Polymarket PolymarketConfig `mapstructure:"polymarket"`
	Research   ResearchConfig   `mapstructure:"research"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`

	warnings []string
}

// PolymarketConfig holds Polymarket Gamma API configuration
type PolymarketConfig struct {
	GammaAPIURL    string        `mapstructure:"gamma_api_url"`
	MarketBaseURL  string        `mapstructure:"market_base_url"`
	FetchLimit     int           `mapstructure:"fetch_limit"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// ResearchConfig holds the settings consumed by the research run
type ResearchConfig struct {
	MinVolume        float64       `mapstructure:"min_volume"`
	MaxMarketsPerRun int           `mapstructure:"max_markets_per_run"`
	Interval         time.Duration `mapstructure:"interval"`
	CallInterval     time.Duration `mapstructure:"call_interval"`
	Providers        []string      `mapstructure:"providers"`
}

// ProvidersConfig holds per-provider LLM settings
type ProvidersConfig struct {
	Groq   GroqConfig   `mapstructure:"groq"`
	Claude ClaudeConfig `mapstructure:"claude"`
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// GroqConfig holds Groq (OpenAI-compatible) chat completion settings
type GroqConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ClaudeConfig holds Anthropic Claude settings
type ClaudeConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// GeminiConfig holds Google Gemini settings
type GeminiConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// AlertsConfig holds alert delivery configuration
type AlertsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DataDir      string      `mapstructure:"data_dir"`
	CacheBackend string      `mapstructure:"cache_backend"`
	Redis        RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds the Redis research cache connection
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// MetricsConfig holds the metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// legacyEnv maps configuration keys to the plain environment variable names
// used by existing deployments.
var legacyEnv = map[string]string{
	"providers.groq.api_key":       "GROQ_API_KEY",
	"providers.claude.api_key":     "ANTHROPIC_API_KEY",
	"providers.gemini.api_key":     "GEMINI_API_KEY",
	"telegram.bot_token":           "TELEGRAM_BOT_TOKEN",
	"telegram.chat_id":             "TELEGRAM_CHAT_ID",
	"research.min_volume":          "MIN_VOLUME",
	"research.max_markets_per_run": "MAX_MARKETS_PER_RUN",
	"alerts.enabled":               "ENABLE_ALERTS",
	"logging.level":                "LOG_LEVEL",
	"logging.file":                 "LOG_FILE",
}

// Load reads configuration from an optional file, a .env file and environment variables
func Load(path string) (*Config, error) {
	// A missing .env is normal outside development
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix("POLY_RESEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "POLY_RESEARCH_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	// RESEARCH_INTERVAL is given in seconds
	if raw := os.Getenv("RESEARCH_INTERVAL"); raw != "" && os.Getenv("POLY_RESEARCH_RESEARCH_INTERVAL") == "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("RESEARCH_INTERVAL must be a positive number of seconds, got %q", raw)
		}
		v.Set("research.interval", time.Duration(secs)*time.Second)
	}

	// Read config file when present
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Polymarket defaults
	v.SetDefault("polymarket.gamma_api_url", "https://gamma-api.polymarket.com")
	v.SetDefault("polymarket.market_base_url", "https://polymarket.com/market")
	v.SetDefault("polymarket.fetch_limit", 200)
	v.SetDefault("polymarket.timeout", "30s")
	v.SetDefault("polymarket.max_retries", 3)
	v.SetDefault("polymarket.retry_delay_base", "1s")

	// Research defaults
	v.SetDefault("research.min_volume", 500000.0)
	v.SetDefault("research.max_markets_per_run", 10)
	v.SetDefault("research.interval", "1h")
	v.SetDefault("research.call_interval", "500ms")
	v.SetDefault("research.providers", []string{"groq"})

	// Provider defaults
	v.SetDefault("providers.groq.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("providers.groq.model", "llama-3.3-70b-versatile")
	v.SetDefault("providers.groq.max_tokens", 500)
	v.SetDefault("providers.groq.temperature", 0.5)
	v.SetDefault("providers.groq.timeout", "60s")
	v.SetDefault("providers.claude.model", "claude-sonnet-4-20250514")
	v.SetDefault("providers.claude.max_tokens", 500)
	v.SetDefault("providers.claude.temperature", 0.5)
	v.SetDefault("providers.claude.timeout", "60s")
	v.SetDefault("providers.gemini.model", "gemini-2.0-flash")
	v.SetDefault("providers.gemini.temperature", 0.5)
	v.SetDefault("providers.gemini.timeout", "60s")

	// Telegram defaults
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Alert defaults
	v.SetDefault("alerts.enabled", true)

	// Storage defaults
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.cache_backend", "file")
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.prefix", "polyresearch")

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Polymarket config
	if c.Polymarket.GammaAPIURL == "" {
		return fmt.Errorf("polymarket.gamma_api_url is required")
	}
	if c.Polymarket.FetchLimit < 1 {
		return fmt.Errorf("polymarket.fetch_limit must be at least 1")
	}
	if c.Polymarket.Timeout <= 0 {
		return fmt.Errorf("polymarket.timeout must be positive")
	}

	// Validate Research config
	if c.Research.MinVolume < 0 {
		return fmt.Errorf("research.min_volume must not be negative")
	}
	if c.Research.MaxMarketsPerRun < 0 {
		return fmt.Errorf("research.max_markets_per_run must not be negative")
	}
	if c.Research.Interval < 1*time.Minute {
		return fmt.Errorf("research.interval must be at least 1 minute")
	}
	if c.Research.CallInterval < MinCallInterval {
		return fmt.Errorf("research.call_interval must be at least %v", MinCallInterval)
	}
	validProviders := map[string]bool{"groq": true, "claude": true, "gemini": true}
	for _, p := range c.Research.Providers {
		if !validProviders[p] {
			return fmt.Errorf("research.providers contains unknown provider %q (valid: groq, claude, gemini)", p)
		}
	}

	// Missing Telegram credentials disable alerts instead of failing startup
	if c.Alerts.Enabled && (c.Telegram.BotToken == "" || c.Telegram.ChatID == "") {
		c.Alerts.Enabled = false
		c.warnings = append(c.warnings, "telegram.bot_token and telegram.chat_id are not both set, alerts disabled")
	}

	// Validate Storage config
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}
	switch c.Storage.CacheBackend {
	case "file":
	case "redis":
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("storage.redis.addr is required when cache_backend is redis")
		}
	default:
		return fmt.Errorf("storage.cache_backend must be one of: file, redis")
	}

	// Validate Metrics config
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// Warnings returns the non-fatal problems found by Validate.
func (c *Config) Warnings() []string {
	return c.warnings
}
