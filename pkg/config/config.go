package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Captcha  CaptchaConfig
	Browser  BrowserConfig
	Scraper  ScraperConfig
	API      APIConfig
	Logging  LoggingConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port        int
	Environment string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host              string
	Port              int
	Password          string
	DB                int
	PoolSize          int
	MinIdleConns      int
	DefaultTTLMinutes int
}

// CaptchaConfig holds OCR service configuration
type CaptchaConfig struct {
	Endpoint string
	UserID   string
	APIKey   string
	Timeout  time.Duration
}

// BrowserConfig holds headless browser configuration
type BrowserConfig struct {
	BinPath     string // path to the Chrome/Brave executable; empty = auto-detect
	ElementWait time.Duration
	DetailsWait time.Duration
}

// ScraperConfig holds extraction engine configuration
type ScraperConfig struct {
	MaxCaptchaAttempts int
	MaxTimeoutAttempts int
	MaxRefusedAttempts int
	FlushEvery         int
	CooldownWait       time.Duration
	RefusedWait        time.Duration
	UserAgent          string
	EnableRobotsCheck  bool
}

// APIConfig holds API-specific configuration
type APIConfig struct {
	RateLimitRequests      int
	RateLimitWindowSeconds int
	APIKeyHeader           string
	APIKey                 string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Attempt to read config file (don't error if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        v.GetInt("API_PORT"),
			Environment: v.GetString("ENV"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("POSTGRES_HOST"),
			Port:     v.GetInt("POSTGRES_PORT"),
			User:     v.GetString("POSTGRES_USER"),
			Password: v.GetString("POSTGRES_PASSWORD"),
			Database: v.GetString("POSTGRES_DB"),
			SSLMode:  v.GetString("POSTGRES_SSL_MODE"),
		},
		Redis: RedisConfig{
			Host:              v.GetString("REDIS_HOST"),
			Port:              v.GetInt("REDIS_PORT"),
			Password:          v.GetString("REDIS_PASSWORD"),
			DB:                v.GetInt("REDIS_DB"),
			PoolSize:          v.GetInt("REDIS_POOL_SIZE"),
			MinIdleConns:      v.GetInt("REDIS_MIN_IDLE_CONNS"),
			DefaultTTLMinutes: v.GetInt("CACHE_DEFAULT_TTL_MINUTES"),
		},
		Captcha: CaptchaConfig{
			Endpoint: v.GetString("CAPTCHA_ENDPOINT"),
			UserID:   v.GetString("CAPTCHA_USER_ID"),
			APIKey:   v.GetString("CAPTCHA_API_KEY"),
			Timeout:  time.Duration(v.GetInt("CAPTCHA_TIMEOUT_SECONDS")) * time.Second,
		},
		Browser: BrowserConfig{
			BinPath:     v.GetString("BROWSER_BIN_PATH"),
			ElementWait: time.Duration(v.GetInt("BROWSER_ELEMENT_WAIT_SECONDS")) * time.Second,
			DetailsWait: time.Duration(v.GetInt("BROWSER_DETAILS_WAIT_SECONDS")) * time.Second,
		},
		Scraper: ScraperConfig{
			MaxCaptchaAttempts: v.GetInt("SCRAPER_MAX_CAPTCHA_ATTEMPTS"),
			MaxTimeoutAttempts: v.GetInt("SCRAPER_MAX_TIMEOUT_ATTEMPTS"),
			MaxRefusedAttempts: v.GetInt("SCRAPER_MAX_REFUSED_ATTEMPTS"),
			FlushEvery:         v.GetInt("SCRAPER_FLUSH_EVERY"),
			CooldownWait:       time.Duration(v.GetInt("SCRAPER_COOLDOWN_WAIT_SECONDS")) * time.Second,
			RefusedWait:        time.Duration(v.GetInt("SCRAPER_REFUSED_WAIT_SECONDS")) * time.Second,
			UserAgent:          v.GetString("SCRAPER_USER_AGENT"),
			EnableRobotsCheck:  v.GetBool("SCRAPER_ENABLE_ROBOTS_CHECK"),
		},
		API: APIConfig{
			RateLimitRequests:      v.GetInt("API_RATE_LIMIT_REQUESTS"),
			RateLimitWindowSeconds: v.GetInt("API_RATE_LIMIT_WINDOW_SECONDS"),
			APIKeyHeader:           v.GetString("API_KEY_HEADER"),
			APIKey:                 v.GetString("API_KEY"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("API_PORT", 8000)
	v.SetDefault("ENV", "development")

	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_DB", "eduinsights")
	v.SetDefault("POSTGRES_SSL_MODE", "disable")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 20)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 5)
	v.SetDefault("CACHE_DEFAULT_TTL_MINUTES", 5)

	v.SetDefault("CAPTCHA_ENDPOINT", "https://api.apitruecaptcha.org/one/gettext")
	v.SetDefault("CAPTCHA_TIMEOUT_SECONDS", 5)

	v.SetDefault("BROWSER_ELEMENT_WAIT_SECONDS", 10)
	v.SetDefault("BROWSER_DETAILS_WAIT_SECONDS", 4)

	v.SetDefault("SCRAPER_MAX_CAPTCHA_ATTEMPTS", 3)
	v.SetDefault("SCRAPER_MAX_TIMEOUT_ATTEMPTS", 3)
	v.SetDefault("SCRAPER_MAX_REFUSED_ATTEMPTS", 3)
	v.SetDefault("SCRAPER_FLUSH_EVERY", 5)
	v.SetDefault("SCRAPER_COOLDOWN_WAIT_SECONDS", 10)
	v.SetDefault("SCRAPER_REFUSED_WAIT_SECONDS", 5)
	v.SetDefault("SCRAPER_USER_AGENT", "EduInsights/1.0")
	v.SetDefault("SCRAPER_ENABLE_ROBOTS_CHECK", false)

	v.SetDefault("API_RATE_LIMIT_REQUESTS", 100)
	v.SetDefault("API_RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("API_KEY_HEADER", "X-API-Key")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func (c *Config) validate() error {
	if c.Captcha.UserID == "" || c.Captcha.APIKey == "" {
		return fmt.Errorf("captcha credentials are required (CAPTCHA_USER_ID, CAPTCHA_API_KEY)")
	}
	if c.Scraper.FlushEvery <= 0 {
		return fmt.Errorf("SCRAPER_FLUSH_EVERY must be positive")
	}
	return nil
}

// GetDSN returns the PostgreSQL connection string
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

// GetRedisAddr returns the Redis address
func (r *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
