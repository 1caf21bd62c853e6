package common

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"

	"github.com/ternarybob/longform/internal/interfaces"
)

// Config represents the application configuration
type Config struct {
	Environment string            `toml:"environment"` // "development" or "production"
	Server      ServerConfig      `toml:"server"`
	Storage     StorageConfig     `toml:"storage"`
	Logging     LoggingConfig     `toml:"logging"`
	Gemini      GeminiConfig      `toml:"gemini"`
	Claude      ClaudeConfig      `toml:"claude"`
	LLM         LLMConfig         `toml:"llm"`
	Generation  GenerationConfig  `toml:"generation"`
	Credits     CreditsConfig     `toml:"credits"`
	Research    ResearchConfig    `toml:"research"`
	Limits      LimitsConfig      `toml:"limits"`
	WebSocket   WebSocketConfig   `toml:"websocket"`
	Messaging   MessagingConfig   `toml:"messaging"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`       // Default model when a tier maps to "gemini"
	Timeout     string  `toml:"timeout"`     // Per-call timeout (default: "90s")
	RateLimit   string  `toml:"rate_limit"`  // Minimum interval between calls (default: "4s")
	Temperature float32 `toml:"temperature"` // Default temperature (default: 0.7)
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`  // Default max output tokens (default: 8192)
	Timeout     string  `toml:"timeout"`     // Per-call timeout (default: "90s")
	RateLimit   string  `toml:"rate_limit"`  // Minimum interval between calls (default: "1s")
	Temperature float32 `toml:"temperature"` // Default temperature (default: 0.7)
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains provider-agnostic settings for generation calls
type LLMConfig struct {
	DefaultProvider LLMProvider       `toml:"default_provider"`
	TierModels      map[string]string `toml:"tier_models"`     // model tier -> model identifier
	MaxRetries      int               `toml:"max_retries"`     // Transport retries per call
	InitialBackoff  string            `toml:"initial_backoff"` // e.g. "2s"
	MaxBackoff      string            `toml:"max_backoff"`     // e.g. "30s"
}

// GenerationConfig holds every threshold and multiplier the pipeline applies.
// They are policy: change them here, not inline.
type GenerationConfig struct {
	DefaultDurationSeconds   int     `toml:"default_duration_seconds"`   // used when a brief has no duration (600)
	WordsPerMinute           int     `toml:"words_per_minute"`           // narration pace (150)
	ChunkingThresholdMinutes int     `toml:"chunking_threshold_minutes"` // chunk when minutes exceed this (15)
	MinutesPerChunk          int     `toml:"minutes_per_chunk"`          // (15)
	OutlineThresholdMinutes  int     `toml:"outline_threshold_minutes"`  // outline when minutes reach this (30)
	ChunkBuffer              float64 `toml:"chunk_buffer"`               // 1.10
	SingleShotCeiling        float64 `toml:"single_shot_ceiling"`        // 1.20
	ExpansionTier1           float64 `toml:"expansion_tier1"`            // 1.20
	ExpansionTier2           float64 `toml:"expansion_tier2"`            // 1.50
	RegenerateBelow          float64 `toml:"regenerate_below"`           // 0.85
	AcceptExpanded           float64 `toml:"accept_expanded"`            // 0.70
	AcceptUnexpanded         float64 `toml:"accept_unexpanded"`          // 0.75
	MaxRetries               int     `toml:"max_retries"`                // generation attempts per chunk (3)
	GateMinRatio             float64 `toml:"gate_min_ratio"`             // 0.80
	GateDedupRatio           float64 `toml:"gate_dedup_ratio"`           // 0.75
	DedupShrinkFactor        float64 `toml:"dedup_shrink_factor"`        // 1.10
	MinTags                  int     `toml:"min_tags"`                   // 10
	QualityMinVerified       int     `toml:"quality_min_verified"`       // 2
	QualityMinStarred        int     `toml:"quality_min_starred"`        // 2
	QualityMinSynthesized    int     `toml:"quality_min_synthesized"`    // 1
	Timeout                  string  `toml:"timeout"`                    // whole-request ceiling ("5m")
	Temperature              float32 `toml:"temperature"`                // generation temperature (0.7)
	TokensPerWord            float64 `toml:"tokens_per_word"`            // output token budget factor (1.6)
	MaxOutputTokens          int     `toml:"max_output_tokens"`          // hard cap per call (16000)
}

// CreditsConfig contains the credit pricing policy
type CreditsConfig struct {
	BaseRate         float64            `toml:"base_rate"`         // credits per minute (0.33)
	TierMultipliers  map[string]float64 `toml:"tier_multipliers"`  // fast/balanced/premium
	ChunkOverhead    float64            `toml:"chunk_overhead"`    // 1.20
	StartingBalance  int                `toml:"starting_balance"`  // credits granted to a new account
	DebitDescription string             `toml:"debit_description"` // ledger entry description
}

// ResearchConfig controls research adequacy checks and fetching
type ResearchConfig struct {
	Required            bool   `toml:"required"`              // reject briefs with insufficient research
	SubstantiveMinChars int    `toml:"substantive_min_chars"` // > 500 characters counts as substantive
	SnippetMaxChars     int    `toml:"snippet_max_chars"`     // < 100 characters is a bare snippet
	MinSubstantive      int    `toml:"min_substantive"`       // minimum substantive sources (1)
	MinTotalChars       int    `toml:"min_total_chars"`       // minimum substantive characters (500)
	MinTotalWords       int    `toml:"min_total_words"`       // minimum substantive words (80)
	FetchTimeout        string `toml:"fetch_timeout"`         // per-source fetch timeout ("20s")
	MaxFetchBytes       int    `toml:"max_fetch_bytes"`       // response body cap
	MaxContextChars     int    `toml:"max_context_chars"`     // research context budget per prompt
	UserAgent           string `toml:"user_agent"`
}

// LimitsConfig controls per-user request throttling
type LimitsConfig struct {
	RequestsPerHour int `toml:"requests_per_hour"` // 0 disables throttling
	Burst           int `toml:"burst"`
}

// WebSocketConfig contains configuration for progress streaming
type WebSocketConfig struct {
	AllowedEvents []string `toml:"allowed_events"` // empty allows all
	Throttle      string   `toml:"throttle"`       // minimum interval between progress broadcasts
}

// MessagingConfig configures NATS fan-out of terminal generation events
type MessagingConfig struct {
	NatsURL       string `toml:"nats_url"`       // empty disables publishing
	SubjectPrefix string `toml:"subject_prefix"` // e.g. "longform.scripts"
}

// MaintenanceConfig configures periodic cleanup
type MaintenanceConfig struct {
	Enabled      bool   `toml:"enabled"`
	Schedule     string `toml:"schedule"`      // 5-field cron expression
	RunRetention string `toml:"run_retention"` // e.g. "720h"
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-flash",
			Timeout:     "90s",
			RateLimit:   "4s", // 15 RPM free tier
			Temperature: 0.7,
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-5",
			MaxTokens:   8192,
			Timeout:     "90s",
			RateLimit:   "1s",
			Temperature: 0.7,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderClaude,
			TierModels: map[string]string{
				"fast":     "gemini-2.5-flash",
				"balanced": "claude-sonnet-4-5",
				"premium":  "claude-opus-4-1",
			},
			MaxRetries:     3,
			InitialBackoff: "2s",
			MaxBackoff:     "30s",
		},
		Generation: GenerationConfig{
			DefaultDurationSeconds:   600,
			WordsPerMinute:           150,
			ChunkingThresholdMinutes: 15,
			MinutesPerChunk:          15,
			OutlineThresholdMinutes:  30,
			ChunkBuffer:              1.10,
			SingleShotCeiling:        1.20,
			ExpansionTier1:           1.20,
			ExpansionTier2:           1.50,
			RegenerateBelow:          0.85,
			AcceptExpanded:           0.70,
			AcceptUnexpanded:         0.75,
			MaxRetries:               3,
			GateMinRatio:             0.80,
			GateDedupRatio:           0.75,
			DedupShrinkFactor:        1.10,
			MinTags:                  10,
			QualityMinVerified:       2,
			QualityMinStarred:        2,
			QualityMinSynthesized:    1,
			Timeout:                  "5m",
			Temperature:              0.7,
			TokensPerWord:            1.6,
			MaxOutputTokens:          16000,
		},
		Credits: CreditsConfig{
			BaseRate: 0.33,
			TierMultipliers: map[string]float64{
				"fast":     1.0,
				"balanced": 1.5,
				"premium":  3.5,
			},
			ChunkOverhead:    1.20,
			StartingBalance:  0,
			DebitDescription: "script generation",
		},
		Research: ResearchConfig{
			Required:            true,
			SubstantiveMinChars: 500,
			SnippetMaxChars:     100,
			MinSubstantive:      1,
			MinTotalChars:       500,
			MinTotalWords:       80,
			FetchTimeout:        "20s",
			MaxFetchBytes:       5 * 1024 * 1024,
			MaxContextChars:     24000,
			UserAgent:           "Mozilla/5.0 (compatible; longform-research/1.0)",
		},
		Limits: LimitsConfig{
			RequestsPerHour: 30,
			Burst:           5,
		},
		WebSocket: WebSocketConfig{
			AllowedEvents: []string{},
			Throttle:      "250ms",
		},
		Messaging: MessagingConfig{
			SubjectPrefix: "longform.scripts",
		},
		Maintenance: MaintenanceConfig{
			Enabled:      true,
			Schedule:     "15 3 * * *", // daily at 03:15
			RunRetention: "720h",
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
// kvStorage can be nil (replacement of API keys from storage is then skipped)
func LoadFromFile(kvStorage interfaces.KeyValueStorage, path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles(kvStorage)
	}
	return LoadFromFiles(kvStorage, path)
}

// LoadFromFiles loads configuration from multiple files. Later files override earlier files,
// environment variables override all files.
func LoadFromFiles(kvStorage interfaces.KeyValueStorage, paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	// API keys stored in KV take effect only where the file left them empty
	if kvStorage != nil {
		ctx := context.Background()
		if config.Gemini.APIKey == "" {
			if v, err := kvStorage.Get(ctx, "gemini_api_key"); err == nil {
				config.Gemini.APIKey = v
			}
		}
		if config.Claude.APIKey == "" {
			if v, err := kvStorage.Get(ctx, "anthropic_api_key"); err == nil {
				config.Claude.APIKey = v
			}
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
	if env := os.Getenv("LONGFORM_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("LONGFORM_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("LONGFORM_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("LONGFORM_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("LONGFORM_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("LONGFORM_LOG_OUTPUT"); output != "" {
		if outputs := splitList(output); len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Gemini configuration
	if apiKey := os.Getenv("LONGFORM_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("LONGFORM_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}

	// Claude configuration
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("LONGFORM_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey // LONGFORM_ prefix takes priority
	}
	if model := os.Getenv("LONGFORM_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}

	// LLM configuration
	if provider := os.Getenv("LONGFORM_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}
	if retries := os.Getenv("LONGFORM_LLM_MAX_RETRIES"); retries != "" {
		if r, err := strconv.Atoi(retries); err == nil {
			config.LLM.MaxRetries = r
		}
	}

	// Generation configuration
	if wpm := os.Getenv("LONGFORM_WORDS_PER_MINUTE"); wpm != "" {
		if w, err := strconv.Atoi(wpm); err == nil {
			config.Generation.WordsPerMinute = w
		}
	}
	if retries := os.Getenv("LONGFORM_GENERATION_MAX_RETRIES"); retries != "" {
		if r, err := strconv.Atoi(retries); err == nil {
			config.Generation.MaxRetries = r
		}
	}
	if timeout := os.Getenv("LONGFORM_GENERATION_TIMEOUT"); timeout != "" {
		config.Generation.Timeout = timeout
	}

	// Credits configuration
	if balance := os.Getenv("LONGFORM_STARTING_BALANCE"); balance != "" {
		if b, err := strconv.Atoi(balance); err == nil {
			config.Credits.StartingBalance = b
		}
	}

	// Messaging configuration
	if natsURL := os.Getenv("LONGFORM_NATS_URL"); natsURL != "" {
		config.Messaging.NatsURL = natsURL
	}

	// Maintenance configuration
	if enabled := os.Getenv("LONGFORM_MAINTENANCE_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Maintenance.Enabled = e
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks the values that would otherwise fail deep inside the pipeline
func (c *Config) Validate() error {
	g := c.Generation
	if g.WordsPerMinute <= 0 {
		return fmt.Errorf("generation.words_per_minute must be greater than 0, got %d", g.WordsPerMinute)
	}
	if g.MinutesPerChunk <= 0 {
		return fmt.Errorf("generation.minutes_per_chunk must be greater than 0, got %d", g.MinutesPerChunk)
	}
	if g.MaxRetries < 1 {
		return fmt.Errorf("generation.max_retries must be at least 1, got %d", g.MaxRetries)
	}
	if g.AcceptExpanded > g.RegenerateBelow || g.AcceptUnexpanded > g.RegenerateBelow {
		return fmt.Errorf("acceptance thresholds (%.2f/%.2f) must not exceed regenerate_below (%.2f)",
			g.AcceptExpanded, g.AcceptUnexpanded, g.RegenerateBelow)
	}
	if _, err := time.ParseDuration(g.Timeout); err != nil {
		return fmt.Errorf("invalid generation.timeout %q: %w", g.Timeout, err)
	}
	if c.Credits.BaseRate <= 0 {
		return fmt.Errorf("credits.base_rate must be greater than 0")
	}
	for _, tier := range []string{"fast", "balanced", "premium"} {
		if _, ok := c.Credits.TierMultipliers[tier]; !ok {
			return fmt.Errorf("credits.tier_multipliers missing tier %q", tier)
		}
	}
	if c.Maintenance.Enabled {
		if err := ValidateSchedule(c.Maintenance.Schedule); err != nil {
			return fmt.Errorf("invalid maintenance.schedule: %w", err)
		}
	}
	return nil
}

// ResolveAPIKey resolves an API key by name with environment variable priority
// Resolution order: environment variables → KV store → config fallback → error
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key":    {"LONGFORM_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"anthropic_api_key": {"LONGFORM_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if kvStorage != nil {
		apiKey, err := kvStorage.Get(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment, KV store, or config", name)
}

// ValidateSchedule validates a standard 5-field cron expression
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
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
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
