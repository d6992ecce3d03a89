package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Translation TranslationConfig
	Game        GameConfig
	SMTP        SMTPConfig
	Admin       AdminConfig
	Resume      ResumeConfig
}

type ServerConfig struct {
	Port             string
	Environment      string
	CORSOrigins      string // comma-separated
	ShutdownTimeout  time.Duration
	LocalizerIdleTTL time.Duration
	TrackVisitors    bool
}

type DatabaseConfig struct {
	Path string
}

// RedisConfig is optional; an empty Addr keeps preferences in sqlite.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type TranslationConfig struct {
	Endpoint         string
	SourceLanguage   string
	Concurrency      int
	RequestTimeout   time.Duration
	BreakerFailures  int
	BreakerOpenDelay time.Duration
}

type GameConfig struct {
	Duration   int // seconds
	TargetSize int // pixels
	SessionTTL time.Duration
}

type SMTPConfig struct {
	Host string
	Port string
	User string
	Pass string
	To   string
}

type AdminConfig struct {
	Username string
	Password string
}

type ResumeConfig struct {
	Path     string
	FileName string
	Delay    time.Duration
}

// loadConfig reads configuration from the environment. A .env file, if
// present, has already been applied by godotenv/autoload.
func loadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:             getEnv("PORT", "8080"),
			Environment:      getEnv("ENVIRONMENT", "development"),
			CORSOrigins:      getEnv("CORS_ORIGINS", "http://localhost:5173"),
			ShutdownTimeout:  getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			LocalizerIdleTTL: getEnvAsDuration("LOCALIZER_IDLE_TTL", 30*time.Minute),
			TrackVisitors:    getEnvAsBool("TRACK_VISITORS", true),
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "portfolio.db"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			TTL:      getEnvAsDuration("REDIS_TTL", 0),
		},
		Translation: TranslationConfig{
			Endpoint:         getEnv("TRANSLATE_ENDPOINT", "https://translate.googleapis.com"),
			SourceLanguage:   getEnv("TRANSLATE_SOURCE_LANG", "en"),
			Concurrency:      getEnvAsInt("TRANSLATE_CONCURRENCY", 8),
			RequestTimeout:   getEnvAsDuration("TRANSLATE_REQUEST_TIMEOUT", 5*time.Second),
			BreakerFailures:  getEnvAsInt("TRANSLATE_BREAKER_FAILURES", 10),
			BreakerOpenDelay: getEnvAsDuration("TRANSLATE_BREAKER_TIMEOUT", 30*time.Second),
		},
		Game: GameConfig{
			Duration:   getEnvAsInt("GAME_DURATION", 30),
			TargetSize: getEnvAsInt("GAME_TARGET_SIZE", 50),
			SessionTTL: getEnvAsDuration("GAME_SESSION_TTL", 15*time.Minute),
		},
		SMTP: SMTPConfig{
			Host: getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port: getEnv("SMTP_PORT", "587"),
			User: getEnv("SMTP_USER", ""),
			Pass: getEnv("SMTP_PASS", ""),
			To:   getEnv("TO_EMAIL", ""),
		},
		Admin: AdminConfig{
			Username: getEnv("ADMIN_USERNAME", "admin"),
			Password: getEnv("ADMIN_PASSWORD", "admin123"),
		},
		Resume: ResumeConfig{
			Path:     getEnv("RESUME_PATH", "./static/cv.pdf"),
			FileName: getEnv("RESUME_FILENAME", "Resume.pdf"),
			Delay:    getEnvAsDuration("RESUME_DELAY", 1500*time.Millisecond),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("config: PORT must be numeric, got %q", c.Server.Port)
	}
	if c.Translation.Concurrency < 1 {
		return fmt.Errorf("config: TRANSLATE_CONCURRENCY must be at least 1, got %d", c.Translation.Concurrency)
	}
	if strings.TrimSpace(c.Translation.Endpoint) == "" {
		return fmt.Errorf("config: TRANSLATE_ENDPOINT is required")
	}
	if _, err := normalizeLanguage(c.Translation.SourceLanguage); err != nil {
		return fmt.Errorf("config: TRANSLATE_SOURCE_LANG: %w", err)
	}
	if c.Game.Duration < 1 {
		return fmt.Errorf("config: GAME_DURATION must be positive, got %d", c.Game.Duration)
	}
	if c.Game.TargetSize < 1 {
		return fmt.Errorf("config: GAME_TARGET_SIZE must be positive, got %d", c.Game.TargetSize)
	}
	return nil
}

func (c *Config) isProduction() bool {
	return c.Server.Environment == "production"
}

func (c *Config) corsOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.Server.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("1500ms") or plain seconds ("30").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
