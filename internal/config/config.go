// Package config loads runtime configuration from an optional YAML or JSON
// file, then the environment, and validates the result.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jonathan/luckin/internal/harvest"
)

// Environment variable names.
const (
	EnvDatabaseURL           = "DATABASE_URL"
	EnvGeminiAPIKey          = "GEMINI_API_KEY"
	EnvGeminiModel           = "GEMINI_MODEL"
	EnvRedisURL              = "REDIS_URL"
	EnvLogLevel              = "LOG_LEVEL"
	EnvLogFormat             = "LOG_FORMAT"
	EnvSourcesFile           = "HARVEST_SOURCES_FILE"
	EnvSchedule              = "HARVEST_SCHEDULE"
	EnvBackend               = "HARVEST_BACKEND"
	EnvChromePath            = "HARVEST_CHROME_PATH"
	EnvParallel              = "HARVEST_PARALLEL"
	EnvInitialCandidateLimit = "RANK_INITIAL_CANDIDATE_LIMIT"
	EnvAIProcessingLimit     = "RANK_AI_PROCESSING_LIMIT"
	EnvThreshold             = "RANK_RELEVANCE_THRESHOLD"
	EnvOracleDelay           = "RANK_ORACLE_DELAY"
	EnvOracleTimeout         = "RANK_ORACLE_TIMEOUT"
	EnvOraclePerMinute       = "RANK_ORACLE_PER_MINUTE"
	EnvOracleBurst           = "RANK_ORACLE_BURST"
	EnvMaxOutputTokens       = "RANK_MAX_OUTPUT_TOKENS"
	EnvScoreCacheTTL         = "SCORE_CACHE_TTL"
)

// Browser backends.
const (
	BackendChrome = "chrome"
	BackendHTTP   = "http"
)

// HarvestConfig configures harvest runs.
type HarvestConfig struct {
	SourcesFile string `json:"sources_file,omitempty" yaml:"sources_file,omitempty"`
	Schedule    string `json:"schedule,omitempty" yaml:"schedule,omitempty" validate:"required"`
	Backend     string `json:"backend,omitempty" yaml:"backend,omitempty" validate:"oneof=chrome http"`
	ChromePath  string `json:"chrome_path,omitempty" yaml:"chrome_path,omitempty"`
	Parallel    int    `json:"parallel,omitempty" yaml:"parallel,omitempty" validate:"min=1"`
}

// RankConfig configures the relevance ranker.
type RankConfig struct {
	InitialCandidateLimit int              `json:"initial_candidate_limit,omitempty" yaml:"initial_candidate_limit,omitempty" validate:"min=1"`
	AIProcessingLimit     int              `json:"ai_processing_limit,omitempty" yaml:"ai_processing_limit,omitempty" validate:"min=1,ltefield=InitialCandidateLimit"`
	Threshold             float64          `json:"threshold,omitempty" yaml:"threshold,omitempty" validate:"min=0,max=1"`
	OracleDelay           harvest.Duration `json:"oracle_delay,omitempty" yaml:"oracle_delay,omitempty" validate:"min=0"`
	OracleTimeout         harvest.Duration `json:"oracle_timeout,omitempty" yaml:"oracle_timeout,omitempty" validate:"gt=0"`
	// OraclePerMinute switches oracle pacing from OracleDelay to a token
	// bucket shared by every ranking in the process.
	OraclePerMinute       int              `json:"oracle_per_minute,omitempty" yaml:"oracle_per_minute,omitempty" validate:"min=0"`
	OracleBurst           int              `json:"oracle_burst,omitempty" yaml:"oracle_burst,omitempty" validate:"min=0"`
	MaxOutputTokens       int              `json:"max_output_tokens,omitempty" yaml:"max_output_tokens,omitempty" validate:"min=1"`
	CacheTTL              harvest.Duration `json:"cache_ttl,omitempty" yaml:"cache_ttl,omitempty" validate:"min=0"`
}

// Config is the full runtime configuration.
type Config struct {
	DatabaseURL  string        `json:"database_url,omitempty" yaml:"database_url,omitempty"`
	GeminiAPIKey string        `json:"-" yaml:"-"`
	GeminiModel  string        `json:"gemini_model,omitempty" yaml:"gemini_model,omitempty"`
	RedisURL     string        `json:"redis_url,omitempty" yaml:"redis_url,omitempty" validate:"omitempty,url"`
	LogLevel     string        `json:"log_level,omitempty" yaml:"log_level,omitempty" validate:"oneof=trace debug info warn error fatal panic disabled"`
	LogFormat    string        `json:"log_format,omitempty" yaml:"log_format,omitempty" validate:"oneof=json pretty"`
	Harvest      HarvestConfig `json:"harvest" yaml:"harvest"`
	Rank         RankConfig    `json:"rank" yaml:"rank"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "pretty",
		Harvest: HarvestConfig{
			Schedule: "@every 6h",
			Backend:  BackendChrome,
			Parallel: 1,
		},
		Rank: RankConfig{
			InitialCandidateLimit: 50,
			AIProcessingLimit:     10,
			Threshold:             0.3,
			OracleDelay:           harvest.Duration(500 * time.Millisecond),
			OracleTimeout:         harvest.Duration(20 * time.Second),
			MaxOutputTokens:       256,
			CacheTTL:              harvest.Duration(24 * time.Hour),
		},
	}
}

// Load builds the configuration: defaults, then the file at path (if any),
// then environment variables. The result is validated.
func Load(path string) (*Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		file, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = file.MergeWithDefaults(cfg)
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile reads a YAML (.yaml/.yml) or JSON config file without applying
// defaults.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}
	return &cfg, nil
}

// MergeWithDefaults returns a copy with zero fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	mergeString(&result.DatabaseURL, defaults.DatabaseURL)
	mergeString(&result.GeminiAPIKey, defaults.GeminiAPIKey)
	mergeString(&result.GeminiModel, defaults.GeminiModel)
	mergeString(&result.RedisURL, defaults.RedisURL)
	mergeString(&result.LogLevel, defaults.LogLevel)
	mergeString(&result.LogFormat, defaults.LogFormat)

	mergeString(&result.Harvest.SourcesFile, defaults.Harvest.SourcesFile)
	mergeString(&result.Harvest.Schedule, defaults.Harvest.Schedule)
	mergeString(&result.Harvest.Backend, defaults.Harvest.Backend)
	mergeString(&result.Harvest.ChromePath, defaults.Harvest.ChromePath)
	if result.Harvest.Parallel == 0 {
		result.Harvest.Parallel = defaults.Harvest.Parallel
	}

	if result.Rank.InitialCandidateLimit == 0 {
		result.Rank.InitialCandidateLimit = defaults.Rank.InitialCandidateLimit
	}
	if result.Rank.AIProcessingLimit == 0 {
		result.Rank.AIProcessingLimit = defaults.Rank.AIProcessingLimit
	}
	// A zero threshold cannot be told apart from unset in a file; set
	// RANK_RELEVANCE_THRESHOLD=0 to disable filtering.
	if result.Rank.Threshold == 0 {
		result.Rank.Threshold = defaults.Rank.Threshold
	}
	if result.Rank.OracleDelay == 0 {
		result.Rank.OracleDelay = defaults.Rank.OracleDelay
	}
	if result.Rank.OracleTimeout == 0 {
		result.Rank.OracleTimeout = defaults.Rank.OracleTimeout
	}
	if result.Rank.MaxOutputTokens == 0 {
		result.Rank.MaxOutputTokens = defaults.Rank.MaxOutputTokens
	}
	if result.Rank.CacheTTL == 0 {
		result.Rank.CacheTTL = defaults.Rank.CacheTTL
	}
	return result
}

func mergeString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

// applyEnv overlays set environment variables onto c.
func (c *Config) applyEnv(getenv func(string) string) error {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	setString(&c.DatabaseURL, EnvDatabaseURL)
	setString(&c.GeminiAPIKey, EnvGeminiAPIKey)
	setString(&c.GeminiModel, EnvGeminiModel)
	setString(&c.RedisURL, EnvRedisURL)
	setString(&c.LogLevel, EnvLogLevel)
	setString(&c.LogFormat, EnvLogFormat)
	setString(&c.Harvest.SourcesFile, EnvSourcesFile)
	setString(&c.Harvest.Schedule, EnvSchedule)
	setString(&c.Harvest.Backend, EnvBackend)
	setString(&c.Harvest.ChromePath, EnvChromePath)

	c.LogLevel = strings.ToLower(c.LogLevel)
	c.LogFormat = strings.ToLower(c.LogFormat)
	c.Harvest.Backend = strings.ToLower(c.Harvest.Backend)

	ints := []struct {
		key string
		dst *int
	}{
		{EnvParallel, &c.Harvest.Parallel},
		{EnvInitialCandidateLimit, &c.Rank.InitialCandidateLimit},
		{EnvAIProcessingLimit, &c.Rank.AIProcessingLimit},
		{EnvOraclePerMinute, &c.Rank.OraclePerMinute},
		{EnvOracleBurst, &c.Rank.OracleBurst},
		{EnvMaxOutputTokens, &c.Rank.MaxOutputTokens},
	}
	for _, e := range ints {
		if v := strings.TrimSpace(getenv(e.key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s must be an integer, got %q", e.key, v)
			}
			*e.dst = n
		}
	}

	if v := strings.TrimSpace(getenv(EnvThreshold)); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s must be a number, got %q", EnvThreshold, v)
		}
		c.Rank.Threshold = f
	}

	durations := []struct {
		key string
		dst *harvest.Duration
	}{
		{EnvOracleDelay, &c.Rank.OracleDelay},
		{EnvOracleTimeout, &c.Rank.OracleTimeout},
		{EnvScoreCacheTTL, &c.Rank.CacheTTL},
	}
	for _, e := range durations {
		if v := strings.TrimSpace(getenv(e.key)); v != "" {
			if err := e.dst.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("%s: %w", e.key, err)
			}
		}
	}
	return nil
}

var configValidator = validator.New()

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}

// RequireDatabase reports a missing database URL.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("config error: %s is required", EnvDatabaseURL)
	}
	return nil
}

// RequireGemini reports a missing Gemini API key.
func (c *Config) RequireGemini() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("config error: %s is required", EnvGeminiAPIKey)
	}
	return nil
}

// Sources returns the sources to harvest: the configured sources file when
// set, otherwise the built-in presets. Names filter the result; an unknown
// name is an error. With no names, every source is returned.
func (c *Config) Sources(names ...string) ([]harvest.Source, error) {
	var all []harvest.Source
	if c.Harvest.SourcesFile != "" {
		loaded, err := harvest.LoadSources(c.Harvest.SourcesFile)
		if err != nil {
			return nil, err
		}
		all = loaded
	} else {
		presets := harvest.Presets()
		for _, name := range harvest.PresetNames() {
			all = append(all, presets[name])
		}
	}

	if len(names) == 0 {
		return all, nil
	}

	byName := make(map[string]harvest.Source, len(all))
	for _, src := range all {
		byName[src.Name] = src
	}
	selected := make([]harvest.Source, 0, len(names))
	for _, name := range names {
		src, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown source %q", name)
		}
		selected = append(selected, src)
	}
	return selected, nil
}
