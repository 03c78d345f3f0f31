// Package config loads runtime settings from the environment, after merging
// an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/insightdelivered/statement-analyzer/internal/extractor"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Log        LogConfig
	OCR        extractor.OCRConfig
	Extraction ExtractionConfig
	Categories CategoryConfig
	Gemini     GeminiConfig
	Metrics    MetricsConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	MaxUploadMB int
}

// Addr is the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LogConfig struct {
	Level  string
	Format string // "console" or "json"
}

type ExtractionConfig struct {
	StageTimeout time.Duration // bound on each text-layer engine; 0 means none
}

type CategoryConfig struct {
	RulesFile string // optional YAML rule table replacing the defaults
	Currency  string // ISO 4217 code used when printing amounts
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

// Enabled reports whether the remote advisor can be used.
func (g GeminiConfig) Enabled() bool {
	return g.APIKey != ""
}

type MetricsConfig struct {
	Enabled bool
}

// Load reads configuration from environment variables. A .env file in the
// working directory is merged first; variables already set win.
func Load() *Config {
	_ = godotenv.Load()

	ocr := extractor.DefaultOCRConfig()
	return &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "localhost"),
			Port:        getEnvAsInt("SERVER_PORT", 8080),
			MaxUploadMB: getEnvAsInt("MAX_UPLOAD_MB", 20),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		OCR: extractor.OCRConfig{
			Timeout:  getEnvAsDuration("OCR_TIMEOUT", ocr.Timeout),
			MaxPages: getEnvAsInt("OCR_MAX_PAGES", ocr.MaxPages),
			DPI:      getEnvAsInt("OCR_DPI", ocr.DPI),
			Language: getEnv("OCR_LANGUAGE", ocr.Language),
		},
		Extraction: ExtractionConfig{
			StageTimeout: getEnvAsDuration("TEXT_STAGE_TIMEOUT", extractor.DefaultStageTimeout),
		},
		Categories: CategoryConfig{
			RulesFile: getEnv("CATEGORY_RULES_FILE", ""),
			Currency:  strings.ToUpper(getEnv("CURRENCY", "INR")),
		},
		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", c.Server.Port))
	}
	if c.Server.MaxUploadMB < 1 {
		errs = append(errs, fmt.Sprintf("invalid max upload size %dMB: must be positive", c.Server.MaxUploadMB))
	}

	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("invalid log format '%s': must be console or json", c.Log.Format))
	}

	if c.OCR.Timeout < 0 {
		errs = append(errs, "OCR timeout cannot be negative")
	}
	if c.Extraction.StageTimeout < 0 {
		errs = append(errs, "text stage timeout cannot be negative")
	}
	if c.OCR.MaxPages < 0 {
		errs = append(errs, fmt.Sprintf("invalid OCR page cap %d: must be zero (no cap) or positive", c.OCR.MaxPages))
	}
	if c.OCR.DPI < 72 || c.OCR.DPI > 1200 {
		errs = append(errs, fmt.Sprintf("invalid OCR DPI %d: must be between 72 and 1200", c.OCR.DPI))
	}
	if c.OCR.Language == "" {
		errs = append(errs, "OCR language cannot be empty")
	}

	if c.Categories.RulesFile != "" {
		if _, err := os.Stat(c.Categories.RulesFile); err != nil {
			errs = append(errs, fmt.Sprintf("category rules file '%s': %v", c.Categories.RulesFile, err))
		}
	}
	if len(c.Categories.Currency) != 3 {
		errs = append(errs, fmt.Sprintf("invalid currency '%s': must be a 3-letter ISO code", c.Categories.Currency))
	}

	if c.Gemini.Enabled() && c.Gemini.Model == "" {
		errs = append(errs, "GEMINI_MODEL is required when GEMINI_API_KEY is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
