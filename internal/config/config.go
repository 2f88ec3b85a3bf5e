// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override, RAGSERVER_* prefix)
//  2. Config file (./config.yaml or ~/.ragserver/config.yaml)
//  3. Default values
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates the OpenAI API key is not set.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates a model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidTopK indicates the retrieval result count is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidChunkSize indicates the chunk size is out of range.
	ErrInvalidChunkSize = errors.New("invalid chunk size")

	// ErrInvalidChunkOverlap indicates the chunk overlap is out of range.
	ErrInvalidChunkOverlap = errors.New("invalid chunk overlap")

	// ErrMissingVectorstoreDir indicates the vectorstore directory is empty.
	ErrMissingVectorstoreDir = errors.New("missing vectorstore directory")
)

// Defaults mirror the values the frontend and build tooling were tuned
// against.
const (
	DefaultChatModel     = "gpt-4o-mini"
	DefaultEmbedderModel = "text-embedding-3-small"
	DefaultTemperature   = 0.1
	DefaultTopK          = 3
	DefaultChunkSize     = 1200
	DefaultChunkOverlap  = 150
)

// MaxTopK is the absolute maximum number of retrieval results per query.
const MaxTopK = 50

// providerOpenAI is the Genkit plugin prefix for model lookups.
const providerOpenAI = "openai"

// Config stores application configuration.
//
// The OpenAI API key is deliberately not a field here: the Genkit OpenAI
// plugin reads OPENAI_API_KEY from the environment itself, and keeping it
// out of the struct means no masking is needed when the config is logged.
// Validate() still checks its presence at startup.
type Config struct {
	// Server
	Addr        string   `mapstructure:"addr" json:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`

	// Models
	ChatModel     string  `mapstructure:"chat_model" json:"chat_model"`
	EmbedderModel string  `mapstructure:"embedder_model" json:"embedder_model"`
	Temperature   float32 `mapstructure:"temperature" json:"temperature"`

	// Retrieval
	TopK int `mapstructure:"top_k" json:"top_k"`

	// Vectorstore build
	VectorstoreDir string `mapstructure:"vectorstore_dir" json:"vectorstore_dir"`
	ChunkSize      int    `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap   int    `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	// Logging
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`

	// Observability. Empty disables trace export.
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".ragserver"))
	}

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults plus env cover everything
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("addr", ":8000")
	viper.SetDefault("cors_origins", []string{
		"http://localhost:5173",
		"http://localhost:8080",
	})

	viper.SetDefault("chat_model", DefaultChatModel)
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("temperature", DefaultTemperature)
	viper.SetDefault("top_k", DefaultTopK)

	viper.SetDefault("vectorstore_dir", "./vectorstore")
	viper.SetDefault("chunk_size", DefaultChunkSize)
	viper.SetDefault("chunk_overlap", DefaultChunkOverlap)

	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_json", false)

	viper.SetDefault("otlp_endpoint", "")
}

// bindEnvVariables binds environment variable overrides explicitly.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a bug in our code, not a runtime error.
	mustBind := func(key string, envVars ...string) {
		if err := viper.BindEnv(append([]string{key}, envVars...)...); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q: %v", key, err))
		}
	}

	mustBind("addr", "RAGSERVER_ADDR")
	mustBind("cors_origins", "RAGSERVER_CORS_ORIGINS")
	mustBind("chat_model", "RAGSERVER_CHAT_MODEL")
	mustBind("embedder_model", "RAGSERVER_EMBED_MODEL")
	mustBind("temperature", "RAGSERVER_TEMPERATURE")
	mustBind("top_k", "RAGSERVER_TOP_K")
	// VECTORSTORE_DIR is the name the deploy scripts already export;
	// RAGSERVER_VECTORSTORE_DIR wins when both are set.
	mustBind("vectorstore_dir", "RAGSERVER_VECTORSTORE_DIR", "VECTORSTORE_DIR")
	mustBind("chunk_size", "RAGSERVER_CHUNK_SIZE")
	mustBind("chunk_overlap", "RAGSERVER_CHUNK_OVERLAP")
	mustBind("log_level", "RAGSERVER_LOG_LEVEL")
	mustBind("log_json", "RAGSERVER_LOG_JSON")
	mustBind("otlp_endpoint", "RAGSERVER_OTLP_ENDPOINT")

	// NOTE: OPENAI_API_KEY is read directly by the Genkit OpenAI plugin, not
	// via Viper. Validate() checks its presence.
}

// Validate checks the configuration for values that would fail later in
// confusing ways. Returns a sentinel error (wrapped) on the first problem.
func (c *Config) Validate() error {
	if os.Getenv("OPENAI_API_KEY") == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY is not set", ErrMissingAPIKey)
	}
	if c.ChatModel == "" {
		return fmt.Errorf("%w: chat_model is empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model is empty", ErrInvalidModelName)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %v not in [0, 2]", ErrInvalidTemperature, c.Temperature)
	}
	if c.TopK < 1 || c.TopK > MaxTopK {
		return fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidTopK, c.TopK, MaxTopK)
	}
	if c.VectorstoreDir == "" {
		return ErrMissingVectorstoreDir
	}
	if c.ChunkSize < 1 {
		return fmt.Errorf("%w: %d must be positive", ErrInvalidChunkSize, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: %d not in [0, chunk_size)", ErrInvalidChunkOverlap, c.ChunkOverlap)
	}
	return nil
}

// FullChatModel returns the provider-qualified chat model name for Genkit,
// e.g. "openai/gpt-4o-mini". A name that already contains "/" is returned
// as-is.
func (c *Config) FullChatModel() string {
	if strings.Contains(c.ChatModel, "/") {
		return c.ChatModel
	}
	return providerOpenAI + "/" + c.ChatModel
}
