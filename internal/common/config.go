package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
	OCR         OCRConfig       `toml:"ocr"`
	RateLimit   RateLimitConfig `toml:"rate_limit"`
	Cache       CacheConfig     `toml:"cache"`
	Retrieval   RetrievalConfig `toml:"retrieval"`
	Budget      BudgetConfig    `toml:"budget"`
	Ingestion   IngestionConfig `toml:"ingestion"`
	Quota       QuotaConfig     `toml:"quota"`
	Reconcile   ReconcileConfig `toml:"reconcile"`
	Fallback    FallbackConfig  `toml:"fallback"`
	WebSocket   WebSocketConfig `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port" validate:"gte=0,lte=65535"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"omitempty,oneof=trace debug info warn error"` // "debug", "info", "warn", "error"
	Output []string `toml:"output"`                                                        // "stdout", "file"
}

// GeminiConfig contains Google Gemini API configuration for embeddings, generation and token counting
type GeminiConfig struct {
	APIKey         string  `toml:"api_key"`         // Google Gemini API key
	Model          string  `toml:"model"`           // Generation model (default: "gemini-2.0-flash")
	EmbedModel     string  `toml:"embed_model"`     // Embedding model (default: "gemini-embedding-001")
	EmbedDimension int     `toml:"embed_dimension" validate:"gt=0"` // Output dimensionality (default: 768)
	EmbedBatchSize int     `toml:"embed_batch_size" validate:"gt=0,lte=100"`
	Timeout        string  `toml:"timeout"`     // Operation timeout as duration string (default: "60s")
	RateLimit      string  `toml:"rate_limit"`  // Minimum spacing between API calls (default: "500ms")
	Temperature    float32 `toml:"temperature"` // Generation temperature (default: 0.2)
	MaxTokens      int     `toml:"max_tokens"`  // Maximum output tokens (default: 1024)
}

// ClaudeConfig contains Anthropic Claude API configuration for generation
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key
	Model       string  `toml:"model"`       // Model (default: "claude-haiku-4-5")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 1024)
	Timeout     string  `toml:"timeout"`     // Operation timeout (default: "60s")
	RateLimit   string  `toml:"rate_limit"`  // Minimum spacing between API calls (default: "1s")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.2)
}

// LLMProvider represents the generation provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig selects the generation provider. Embeddings always use Gemini.
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider" validate:"oneof=gemini claude"`
}

// OCRConfig configures the asynchronous OCR/parsing service
type OCRConfig struct {
	Enabled      bool     `toml:"enabled"`
	BaseURL      string   `toml:"base_url" validate:"omitempty,url"`
	APIKey       string   `toml:"api_key"`
	PollInterval string   `toml:"poll_interval"` // default "3s"
	Timeout      string   `toml:"timeout"`       // default "5m"
	RateLimit    string   `toml:"rate_limit"`    // Minimum spacing between API calls (default: "1s")
	Languages    []string `toml:"languages"`     // Default language hints, e.g. ["en", "kn"]
}

// RateLimitConfig governs generation throughput
type RateLimitConfig struct {
	MinInterval string `toml:"min_interval"` // Minimum time between generated answers (default: "4s")
	DailyCap    int    `toml:"daily_cap" validate:"gt=0"`
	Timezone    string `toml:"timezone"` // Calendar-day boundary (default: "Asia/Kolkata")
}

// CacheConfig configures the semantic response cache
type CacheConfig struct {
	Enabled             bool    `toml:"enabled"`
	SimilarityThreshold float64 `toml:"similarity_threshold" validate:"gt=0,lte=1"`
	WriteTimeout        string  `toml:"write_timeout"` // Timeout for fire-and-forget writes (default: "10s")
}

// RetrievalConfig configures hybrid retrieval and the confidence gate
type RetrievalConfig struct {
	TopK             int     `toml:"top_k" validate:"gt=0,lte=50"`
	MinSimilarity    float64 `toml:"min_similarity" validate:"gte=0,lte=1"`
	HighThreshold    float64 `toml:"high_threshold" validate:"gte=0,lte=1"`
	MediumThreshold  float64 `toml:"medium_threshold" validate:"gte=0,lte=1"`
	RRFK             float64 `toml:"rrf_k" validate:"gt=0"`
	SchemeSearchTopK int     `toml:"scheme_search_top_k" validate:"gt=0"`
}

// BudgetConfig bounds the prompt size sent to the generation service
type BudgetConfig struct {
	MaxTokens        int     `toml:"max_tokens" validate:"gt=0"`         // Prompt token budget (default: 30000)
	MaxContextTokens int     `toml:"max_context_tokens" validate:"gt=0"` // Source excerpts allowance (default: 24000)
	CharsPerToken    float64 `toml:"chars_per_token" validate:"gt=0"`
}

// IngestionConfig configures extraction, chunking and embedding
type IngestionConfig struct {
	MinNativeChars  int     `toml:"min_native_chars" validate:"gt=0"` // Tier-1 acceptance threshold (default: 100)
	TargetTokens    int     `toml:"target_tokens" validate:"gt=0"`    // default 450
	MinTokens       int     `toml:"min_tokens" validate:"gte=0"`      // default 50
	EmbedBatchSize  int     `toml:"embed_batch_size" validate:"gt=0"` // default 20
	TargetLanguage  string  `toml:"target_language" validate:"oneof=kn hi ta te"`
	DefaultLanguage string  `toml:"default_language"`
	OCRConfidence   float64 `toml:"ocr_confidence" validate:"gt=0,lte=1"`
	MaxUploadBytes  int64   `toml:"max_upload_bytes" validate:"gt=0"`
}

// QuotaConfig holds monthly caps per external service. Zero means unlimited.
type QuotaConfig struct {
	EmbeddingCalls   float64 `toml:"embedding_calls" validate:"gte=0"`
	OCRCredits       float64 `toml:"ocr_credits" validate:"gte=0"`
	GenerationTokens float64 `toml:"generation_tokens" validate:"gte=0"`
	WarningRatio     float64 `toml:"warning_ratio" validate:"gt=0,lte=1"`
}

// ReconcileConfig schedules the orphaned-document sweep
type ReconcileConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron schedule (default: "@hourly")
	Grace    string `toml:"grace"`    // Age before a pending document counts as orphaned (default: "15m")
}

// FallbackConfig holds the authoritative external resource shown on failures
type FallbackConfig struct {
	URL  string `toml:"url" validate:"required,url"`
	Name string `toml:"name"`
}

// WebSocketConfig contains configuration for ingestion event streaming
type WebSocketConfig struct {
	Enabled        bool   `toml:"enabled"`
	ThrottleWindow string `toml:"throttle_window"` // Minimum spacing of "embedded" events (default: "250ms")
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Gemini: GeminiConfig{
			Model:          "gemini-2.0-flash",
			EmbedModel:     "gemini-embedding-001",
			EmbedDimension: 768,
			EmbedBatchSize: 100, // API limit per EmbedContent call
			Timeout:        "60s",
			RateLimit:      "500ms",
			Temperature:    0.2, // Low temperature keeps answers close to sources
			MaxTokens:      1024,
		},
		Claude: ClaudeConfig{
			Model:       "claude-haiku-4-5",
			MaxTokens:   1024,
			Timeout:     "60s",
			RateLimit:   "1s",
			Temperature: 0.2,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
		},
		OCR: OCRConfig{
			Enabled:      false, // Requires an OCR service API key
			BaseURL:      "https://api.cloud.llamaindex.ai",
			PollInterval: "3s",
			Timeout:      "5m",
			RateLimit:    "1s",
			Languages:    []string{"en", "kn"},
		},
		RateLimit: RateLimitConfig{
			MinInterval: "4s", // 15 RPM free tier
			DailyCap:    1400,
			Timezone:    "Asia/Kolkata",
		},
		Cache: CacheConfig{
			Enabled:             true,
			SimilarityThreshold: 0.94,
			WriteTimeout:        "10s",
		},
		Retrieval: RetrievalConfig{
			TopK:             5,
			MinSimilarity:    0.65,
			HighThreshold:    0.80,
			MediumThreshold:  0.65,
			RRFK:             60,
			SchemeSearchTopK: 15,
		},
		Budget: BudgetConfig{
			MaxTokens:        30000,
			MaxContextTokens: 24000,
			CharsPerToken:    3.5,
		},
		Ingestion: IngestionConfig{
			MinNativeChars:  100,
			TargetTokens:    450,
			MinTokens:       50,
			EmbedBatchSize:  20,
			TargetLanguage:  "kn",
			DefaultLanguage: "en",
			OCRConfidence:   0.85,
			MaxUploadBytes:  50 * 1024 * 1024, // 50MB
		},
		Quota: QuotaConfig{
			EmbeddingCalls:   1500,
			OCRCredits:       7000,
			GenerationTokens: 0,
			WarningRatio:     0.8,
		},
		Reconcile: ReconcileConfig{
			Enabled:  true,
			Schedule: "@hourly",
			Grace:    "15m",
		},
		Fallback: FallbackConfig{
			URL:  "https://sevasindhu.karnataka.gov.in",
			Name: "Seva Sindhu",
		},
		WebSocket: WebSocketConfig{
			Enabled:        true,
			ThrottleWindow: "250ms",
		},
	}
}

// LoadFromFiles loads configuration with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// Unmarshal into config (merges with existing values, later values override)
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("YOJANA_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("YOJANA_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("YOJANA_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if path := os.Getenv("YOJANA_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}

	// Logging configuration
	if level := os.Getenv("YOJANA_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("YOJANA_LOG_OUTPUT"); output != "" {
		config.Logging.Output = strings.Split(output, ",")
		for i := range config.Logging.Output {
			config.Logging.Output[i] = strings.TrimSpace(config.Logging.Output[i])
		}
	}

	// Provider configuration
	if provider := os.Getenv("YOJANA_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}
	if model := os.Getenv("YOJANA_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if model := os.Getenv("YOJANA_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}

	// OCR configuration
	if enabled := os.Getenv("YOJANA_OCR_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			config.OCR.Enabled = b
		}
	}
	if baseURL := os.Getenv("YOJANA_OCR_BASE_URL"); baseURL != "" {
		config.OCR.BaseURL = baseURL
	}

	// Throughput configuration
	if dailyCap := os.Getenv("YOJANA_RATE_LIMIT_DAILY_CAP"); dailyCap != "" {
		if v, err := strconv.Atoi(dailyCap); err == nil {
			config.RateLimit.DailyCap = v
		}
	}
	if interval := os.Getenv("YOJANA_RATE_LIMIT_MIN_INTERVAL"); interval != "" {
		config.RateLimit.MinInterval = interval
	}

	if fallbackURL := os.Getenv("YOJANA_FALLBACK_URL"); fallbackURL != "" {
		config.Fallback.URL = fallbackURL
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ResolveAPIKey resolves an API key by name with environment variable priority
// Resolution order: YOJANA_* environment variable → provider standard variable → config fallback → error
func ResolveAPIKey(name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key":    {"YOJANA_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
		"anthropic_api_key": {"YOJANA_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
		"ocr_api_key":       {"YOJANA_OCR_API_KEY", "LLAMA_CLOUD_API_KEY"},
	}

	for _, envVarName := range keyToEnvMapping[name] {
		if envValue := os.Getenv(envVarName); envValue != "" {
			return envValue, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment or config", name)
}

// Validate checks struct constraints, durations and the reconcile schedule
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	durations := map[string]string{
		"gemini.timeout":            c.Gemini.Timeout,
		"gemini.rate_limit":         c.Gemini.RateLimit,
		"claude.timeout":            c.Claude.Timeout,
		"claude.rate_limit":         c.Claude.RateLimit,
		"ocr.poll_interval":         c.OCR.PollInterval,
		"ocr.timeout":               c.OCR.Timeout,
		"ocr.rate_limit":            c.OCR.RateLimit,
		"rate_limit.min_interval":   c.RateLimit.MinInterval,
		"cache.write_timeout":       c.Cache.WriteTimeout,
		"reconcile.grace":           c.Reconcile.Grace,
		"websocket.throttle_window": c.WebSocket.ThrottleWindow,
	}
	for name, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s '%s': %w", name, value, err)
		}
	}

	if c.RateLimit.Timezone != "" {
		if _, err := time.LoadLocation(c.RateLimit.Timezone); err != nil {
			return fmt.Errorf("invalid rate_limit.timezone '%s': %w", c.RateLimit.Timezone, err)
		}
	}

	if c.Reconcile.Enabled {
		if err := ValidateSchedule(c.Reconcile.Schedule); err != nil {
			return fmt.Errorf("invalid reconcile.schedule: %w", err)
		}
	}

	if c.Retrieval.HighThreshold < c.Retrieval.MediumThreshold {
		return fmt.Errorf("retrieval.high_threshold (%.2f) must be >= retrieval.medium_threshold (%.2f)",
			c.Retrieval.HighThreshold, c.Retrieval.MediumThreshold)
	}

	return nil
}

// ValidateSchedule validates a cron schedule expression (standard 5-field or @descriptor)
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// ParseDurationOr parses a duration string, returning fallback when empty or invalid
func ParseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
