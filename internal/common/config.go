package common

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/receipts-extractor/constants"
)

// PlaceholderAPIKey is the value shipped in example configs; it counts as "not configured".
const PlaceholderAPIKey = "your-openai-api-key-here"

// Config holds all application configuration
type Config struct {
	LLM    LLMConfig    `yaml:"llm"`
	Server ServerConfig `yaml:"server"`
	Upload UploadConfig `yaml:"upload"`
	Image  ImageConfig  `yaml:"image"`
	Log    LogConfig    `yaml:"log"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	APIKey             string        `yaml:"api_key"`
	BaseURL            string        `yaml:"base_url"`
	Model              string        `yaml:"model"`
	MaxTokens          int           `yaml:"max_tokens"`
	Timeout            time.Duration `yaml:"timeout"`
	RetryAttempts      int           `yaml:"retry_attempts"`
	RetryDelay         time.Duration `yaml:"retry_delay"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	FinalAttempt       bool          `yaml:"final_attempt"`
	PromptFile         string        `yaml:"prompt_file"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"` // empty disables the gRPC health endpoint
}

// UploadConfig holds web upload limits
type UploadConfig struct {
	MaxBytes int64 `yaml:"max_bytes"`
}

// ImageConfig holds image decoding configuration
type ImageConfig struct {
	HeicConverter string `yaml:"heic_converter"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// APIKeyConfigured reports whether a real key was supplied.
func (c LLMConfig) APIKeyConfigured() bool {
	k := strings.TrimSpace(c.APIKey)
	return k != "" && k != PlaceholderAPIKey
}

// RequireAPIKey returns a CONFIG_ERROR wrapping ErrNotConfigured when no real key was supplied.
func (c LLMConfig) RequireAPIKey() error {
	if c.APIKeyConfigured() {
		return nil
	}
	return NewAppError("CONFIG_ERROR", "OpenAI API key not configured; set OPENAI_API_KEY in the environment, a .env file or CONFIG_FILE", ErrNotConfigured)
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			BaseURL:       "https://api.openai.com/v1",
			Model:         "gpt-4o",
			MaxTokens:     2048,
			Timeout:       60 * time.Second,
			RetryAttempts: 3,
			RetryDelay:    2 * time.Second,
			FinalAttempt:  true,
		},
		Server: ServerConfig{
			HTTPAddr: "127.0.0.1:8080",
		},
		Upload: UploadConfig{
			MaxBytes: constants.DefaultMaxUploadBytes,
		},
		Image: ImageConfig{
			HeicConverter: "magick",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig builds the configuration once at startup: defaults, then an optional YAML
// file named by CONFIG_FILE, then environment variables (a local .env file is loaded first).
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("config.dotenv_error", "error", err)
	}

	cfg := DefaultConfig()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewAppError("CONFIG_ERROR", "read config file "+path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return NewAppError("CONFIG_ERROR", "parse config file "+path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.LLM.APIKey = getEnv("OPENAI_API_KEY", c.LLM.APIKey)
	c.LLM.BaseURL = getEnv("OPENAI_BASE_URL", c.LLM.BaseURL)
	c.LLM.Model = getEnv("OPENAI_MODEL", c.LLM.Model)
	c.LLM.MaxTokens = getEnvAsInt("OPENAI_MAX_TOKENS", c.LLM.MaxTokens)
	c.LLM.Timeout = getEnvAsDuration("OPENAI_TIMEOUT", c.LLM.Timeout)
	c.LLM.RetryAttempts = getEnvAsInt("OPENAI_RETRY_ATTEMPTS", c.LLM.RetryAttempts)
	c.LLM.RetryDelay = getEnvAsDuration("OPENAI_RETRY_DELAY", c.LLM.RetryDelay)
	c.LLM.InsecureSkipVerify = getEnvAsBool("OPENAI_INSECURE_SKIP_VERIFY", c.LLM.InsecureSkipVerify)
	c.LLM.FinalAttempt = getEnvAsBool("OPENAI_FINAL_ATTEMPT", c.LLM.FinalAttempt)
	c.LLM.PromptFile = getEnv("SYSTEM_PROMPT_FILE", c.LLM.PromptFile)

	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)

	c.Upload.MaxBytes = getEnvAsInt64("UPLOAD_MAX_BYTES", c.Upload.MaxBytes)
	c.Image.HeicConverter = getEnv("HEIC_CONVERTER", c.Image.HeicConverter)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s") or bare seconds ("60").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		if secs, err := strconv.ParseFloat(value, 64); err == nil {
			return time.Duration(secs * float64(time.Second))
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.LLM.Model == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_MODEL is required", ErrInvalidInput)
	}
	if c.LLM.MaxTokens <= 0 {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("OPENAI_MAX_TOKENS must be positive, got %d", c.LLM.MaxTokens), ErrInvalidInput)
	}
	if c.LLM.Timeout <= 0 {
		return NewAppError("CONFIG_ERROR", "OPENAI_TIMEOUT must be positive", ErrInvalidInput)
	}
	if c.LLM.RetryAttempts <= 0 {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("OPENAI_RETRY_ATTEMPTS must be positive, got %d", c.LLM.RetryAttempts), ErrInvalidInput)
	}
	if c.LLM.RetryDelay < 0 {
		return NewAppError("CONFIG_ERROR", "OPENAI_RETRY_DELAY must not be negative", ErrInvalidInput)
	}
	if c.Upload.MaxBytes <= 0 {
		return NewAppError("CONFIG_ERROR", "UPLOAD_MAX_BYTES must be positive", ErrInvalidInput)
	}
	return nil
}
