package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Crawl    CrawlConfig
	Browser  BrowserConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type CrawlConfig struct {
	BaseURL        string
	ProgramLimit   int
	OutputDir      string
	SettleWait     time.Duration
	TransitionWait time.Duration
	RateLimitMin   time.Duration
	RateLimitMax   time.Duration
	PollInterval   time.Duration
	Username       string
	Password       string
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Crawl: CrawlConfig{
			BaseURL:        getEnvOrDefault("CRAWL_BASE_URL", "https://www.applyboard.com"),
			ProgramLimit:   getIntOrDefault("CRAWL_PROGRAM_LIMIT", 100),
			OutputDir:      getEnvOrDefault("CRAWL_OUTPUT_DIR", "results"),
			SettleWait:     getDurationOrDefault("CRAWL_SETTLE_WAIT", 300*time.Millisecond),
			TransitionWait: getDurationOrDefault("CRAWL_TRANSITION_WAIT", 400*time.Millisecond),
			RateLimitMin:   getDurationOrDefault("CRAWL_RATE_LIMIT_MIN", time.Second),
			RateLimitMax:   getDurationOrDefault("CRAWL_RATE_LIMIT_MAX", 3*time.Second),
			PollInterval:   getDurationOrDefault("CRAWL_POLL_INTERVAL", 5*time.Second),
			Username:       getEnvOrDefault("SCRAPER_USERNAME", ""),
			Password:       getEnvOrDefault("SCRAPER_PASSWORD", ""),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "America/Toronto"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "en-US"),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "program_scraper"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:program_catalog"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Crawl.ProgramLimit < 1 {
		return fmt.Errorf("CRAWL_PROGRAM_LIMIT must be at least 1")
	}

	if c.Crawl.BaseURL == "" {
		return fmt.Errorf("CRAWL_BASE_URL must not be empty")
	}

	if c.Crawl.PollInterval < time.Second {
		return fmt.Errorf("CRAWL_POLL_INTERVAL must be at least 1s")
	}

	if c.Crawl.RateLimitMin > c.Crawl.RateLimitMax {
		return fmt.Errorf("CRAWL_RATE_LIMIT_MIN cannot be greater than CRAWL_RATE_LIMIT_MAX")
	}

	return nil
}

// ConnString builds a pgx connection string from the database settings.
func (c *DatabaseConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
