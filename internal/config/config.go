// Package config handles application configuration loading from environment
// variables. It provides a centralized Config struct used across the application.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration values loaded from the environment.
type Config struct {
	// Server settings
	Host string
	Port string
	Env  string // "development", "production", "testing"

	// PostgreSQL connection
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Valkey (Redis-compatible cache)
	ValkeyHost     string
	ValkeyPort     string
	ValkeyPassword string

	// R2 / S3-compatible object storage
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3PublicURL string

	// Image providers
	DefaultProvider    string
	ProvidersFile      string // optional YAML catalog overriding the built-in one
	IdeogramKey        string
	IdeogramBaseURL    string
	FalKey             string
	FalBaseURL         string
	HuggingFaceToken   string
	HuggingFaceBaseURL string
	ProviderRPS        float64

	// Circuit breaker
	FailureThreshold int
	ProviderCooldown time.Duration

	// Prompt moderation (OpenAI moderation endpoint)
	OpenAIKey     string
	OpenAIBaseURL string

	// WebP conversion
	WebPEnabled bool
	WebPQuality int

	// Watermark applied to free-plan generations. Empty disables it.
	WatermarkText string

	// Credits
	GenerationCost int
	SignupCredits  int

	// Generation endpoints: requests per user per window, and how many
	// carousel slides render at once.
	RateLimit        int
	RateWindow       time.Duration
	CarouselParallel int
}

// Load reads configuration from environment variables, applying defaults
// for development where appropriate. A .env file in the working directory
// is loaded first if present; real environment variables take precedence.
// Returns an error if critical values are missing in production mode.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Host: envOrDefault("APP_HOST", "0.0.0.0"),
		Port: envOrDefault("APP_PORT", "8080"),
		Env:  envOrDefault("APP_ENV", "development"),

		DBHost:     envOrDefault("POSTGRES_HOST", "localhost"),
		DBPort:     envOrDefault("POSTGRES_PORT", "5432"),
		DBUser:     envOrDefault("POSTGRES_USER", "eventcraft"),
		DBPassword: envOrDefault("POSTGRES_PASSWORD", "changeme"),
		DBName:     envOrDefault("POSTGRES_DB", "eventcraft"),

		ValkeyHost:     envOrDefault("VALKEY_HOST", "localhost"),
		ValkeyPort:     envOrDefault("VALKEY_PORT", "6379"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),

		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3Region:    envOrDefault("S3_REGION", "auto"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
		S3Bucket:    envOrDefault("S3_BUCKET", "eventcraft-images"),
		S3PublicURL: os.Getenv("S3_PUBLIC_URL"),

		DefaultProvider:    envOrDefault("DEFAULT_PROVIDER", "ideogram"),
		ProvidersFile:      os.Getenv("PROVIDERS_FILE"),
		IdeogramKey:        os.Getenv("IDEOGRAM_API_KEY"),
		IdeogramBaseURL:    envOrDefault("IDEOGRAM_BASE_URL", "https://api.ideogram.ai"),
		FalKey:             os.Getenv("FAL_API_KEY"),
		FalBaseURL:         envOrDefault("FAL_BASE_URL", "https://fal.run"),
		HuggingFaceToken:   os.Getenv("HUGGINGFACE_TOKEN"),
		HuggingFaceBaseURL: envOrDefault("HUGGINGFACE_BASE_URL", "https://router.huggingface.co/hf-inference/models"),

		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: envOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),

		WatermarkText: os.Getenv("WATERMARK_TEXT"),
	}

	var err error
	if cfg.ProviderRPS, err = envFloat("PROVIDER_RPS", 2); err != nil {
		return nil, err
	}
	if cfg.FailureThreshold, err = envInt("PROVIDER_FAILURE_THRESHOLD", 3); err != nil {
		return nil, err
	}
	if cfg.ProviderCooldown, err = envDuration("PROVIDER_COOLDOWN", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.WebPEnabled, err = envBool("WEBP_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.WebPQuality, err = envInt("WEBP_QUALITY", 82); err != nil {
		return nil, err
	}
	if cfg.GenerationCost, err = envInt("GENERATION_COST", 1); err != nil {
		return nil, err
	}
	if cfg.SignupCredits, err = envInt("SIGNUP_CREDITS", 10); err != nil {
		return nil, err
	}
	if cfg.RateLimit, err = envInt("GENERATION_RATE_LIMIT", 10); err != nil {
		return nil, err
	}
	if cfg.RateWindow, err = envDuration("GENERATION_RATE_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	if cfg.CarouselParallel, err = envInt("CAROUSEL_PARALLEL", 3); err != nil {
		return nil, err
	}

	if cfg.WebPQuality < 1 || cfg.WebPQuality > 100 {
		return nil, fmt.Errorf("WEBP_QUALITY must be between 1 and 100, got %d", cfg.WebPQuality)
	}
	if cfg.GenerationCost < 0 {
		return nil, fmt.Errorf("GENERATION_COST must not be negative")
	}
	if cfg.RateLimit < 1 || cfg.RateWindow <= 0 {
		return nil, fmt.Errorf("GENERATION_RATE_LIMIT and GENERATION_RATE_WINDOW must be positive")
	}
	if cfg.FailureThreshold < 1 {
		return nil, fmt.Errorf("PROVIDER_FAILURE_THRESHOLD must be at least 1")
	}

	if cfg.Env == "production" {
		if cfg.DBPassword == "changeme" {
			return nil, fmt.Errorf("POSTGRES_PASSWORD must be set in production")
		}
	}

	return cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// StorageConfigured reports whether enough S3 settings exist to upload images.
func (c *Config) StorageConfigured() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

// envOrDefault reads an environment variable, returning a fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", key, v)
	}
	return f, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, v)
	}
	return b, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}
