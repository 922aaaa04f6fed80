// Package config provides configuration management for the reasoning
// engine's transport entrypoint.
//
// Configuration can be loaded from multiple sources (in order of precedence):
// 1. Environment variables (highest priority)
// 2. Configuration file (JSON)
// 3. Default values (lowest priority)
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"reasonforge/internal/storage"
)

// Config represents the complete server configuration: an ambient section
// (server identity, storage backend, performance, logging) and a domain
// section mirroring spec §6's recognised options table.
type Config struct {
	Server      ServerConfig      `json:"server"`
	Storage     storage.Config    `json:"storage"`
	Engine      EngineConfig      `json:"engine"`
	EffortRouting EffortRoutingConfig `json:"effort_routing"`
	Budget      BudgetConfig      `json:"budget"`
	Memory      MemoryConfig      `json:"memory"`
	Performance PerformanceConfig `json:"performance"`
	Logging     LoggingConfig     `json:"logging"`
}

// ServerConfig contains server-level configuration.
type ServerConfig struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

// EngineConfig covers spec §6's `model`/`thinking.*`/`maxTokens`/`streaming`
// options.
type EngineConfig struct {
	Model          string `json:"model"`
	ThinkingType   string `json:"thinking_type"`   // "adaptive" or "budgeted"
	ThinkingEffort string `json:"thinking_effort"` // low | medium | high | max
	MaxTokens      int    `json:"max_tokens"`
	Streaming      bool   `json:"streaming"`
}

// EffortRoutingConfig covers spec §6's `effortRouting.*` options.
type EffortRoutingConfig struct {
	Enabled        bool   `json:"enabled"`
	SimpleEffort   string `json:"simple_effort"`
	StandardEffort string `json:"standard_effort"`
	ComplexEffort  string `json:"complex_effort"`
}

// BudgetConfig covers spec §6's `tokenBudget.*` options.
type BudgetConfig struct {
	Enabled                bool    `json:"enabled"`
	MaxSessionOutputTokens int     `json:"max_session_output_tokens"`
	WarnAtPercent          float64 `json:"warn_at_percent"`
	MaxCompactions         int     `json:"max_compactions"`
}

// MemoryConfig covers spec §6's `memory.*` options.
type MemoryConfig struct {
	MaxMainContextTokens int     `json:"max_main_context_tokens"`
	RecallWindowSize     int     `json:"recall_window_size"`
	EvictionThreshold    float64 `json:"eviction_threshold"`

	// SearchThreshold is spec §4.3's "reserved for semantic mode" minimum
	// similarity score: a semantic EmbeddingIndex match below this is
	// dropped by orchestrator.SemanticMemoryManager. Inert unless
	// VOYAGE_API_KEY enables semantic memory (see cmd/server/initializer.go).
	SearchThreshold float64 `json:"search_threshold"`

	// EmbeddingIndexPath is the on-disk path for the chromem-go archival
	// index. Empty keeps the index in-memory only (lost on restart), which
	// is the default — semantic memory is an optional enhancement over the
	// always-durable keyword-scored search, not a second source of truth.
	EmbeddingIndexPath string `json:"embedding_index_path"`
}

// PerformanceConfig contains performance tuning options.
type PerformanceConfig struct {
	// MaxConcurrentSessions is loaded and validated; nothing reads it, and
	// concurrent orchestrator.Process calls are not bounded by it.
	MaxConcurrentSessions int `json:"max_concurrent_sessions"`

	// SessionCacheSize is loaded and validated; the SessionRegistry does not
	// read it and keeps its fixed LRU capacity of 100 (registryCapacity).
	SessionCacheSize int `json:"session_cache_size"`

	// HeartbeatIntervalSeconds is loaded and capped at spec §6's 15s upper
	// bound by Validate; internal/streaming does not read it (Stream.Run
	// takes its heartbeat interval as an argument).
	HeartbeatIntervalSeconds int `json:"heartbeat_interval_seconds"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level            string `json:"level"`
	Format           string `json:"format"`
	EnableTimestamps bool   `json:"enable_timestamps"`
}

// Default returns the default configuration, matching spec §4.5's and
// §6's documented defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Name:        "reasonforge",
			Version:     "1.0.0",
			Environment: "development",
		},
		Storage: storage.DefaultConfig(),
		Engine: EngineConfig{
			Model:          "claude-opus-4",
			ThinkingType:   "adaptive",
			ThinkingEffort: "medium",
			MaxTokens:      4096,
			Streaming:      true,
		},
		EffortRouting: EffortRoutingConfig{
			Enabled:        true,
			SimpleEffort:   "low",
			StandardEffort: "medium",
			ComplexEffort:  "max",
		},
		Budget: BudgetConfig{
			Enabled:                true,
			MaxSessionOutputTokens: 200000,
			WarnAtPercent:          0.8,
			MaxCompactions:         10,
		},
		Memory: MemoryConfig{
			MaxMainContextTokens: 8000,
			RecallWindowSize:     50,
			EvictionThreshold:    0.6,
			SearchThreshold:      0.0,
			EmbeddingIndexPath:   "",
		},
		Performance: PerformanceConfig{
			MaxConcurrentSessions:    100,
			SessionCacheSize:         100,
			HeartbeatIntervalSeconds: 15,
		},
		Logging: LoggingConfig{
			Level:            "info",
			Format:           "text",
			EnableTimestamps: true,
		},
	}
}

// Load loads configuration from environment variables and applies defaults.
func Load() (*Config, error) {
	cfg := Default()

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a JSON file, with environment
// variables overriding file values.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromEnv loads configuration from environment variables. Variables
// follow the pattern RF_<SECTION>_<KEY>, e.g. RF_SERVER_NAME,
// RF_BUDGET_MAX_COMPACTIONS. Storage's own STORAGE_TYPE/SQLITE_* variables
// (internal/storage/config.go) are consulted separately via
// storage.ConfigFromEnv, since that package already owns its env contract.
func (c *Config) loadFromEnv() error {
	if v := os.Getenv("RF_SERVER_NAME"); v != "" {
		c.Server.Name = v
	}
	if v := os.Getenv("RF_SERVER_VERSION"); v != "" {
		c.Server.Version = v
	}
	if v := os.Getenv("RF_SERVER_ENVIRONMENT"); v != "" {
		c.Server.Environment = v
	}

	if v := os.Getenv("STORAGE_TYPE"); v != "" || os.Getenv("SQLITE_PATH") != "" {
		c.Storage = storage.ConfigFromEnv()
	}

	if v := os.Getenv("RF_ENGINE_MODEL"); v != "" {
		c.Engine.Model = v
	}
	if v := os.Getenv("RF_ENGINE_THINKING_TYPE"); v != "" {
		c.Engine.ThinkingType = strings.ToLower(v)
	}
	if v := os.Getenv("RF_ENGINE_THINKING_EFFORT"); v != "" {
		c.Engine.ThinkingEffort = strings.ToLower(v)
	}
	if v := os.Getenv("RF_ENGINE_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Engine.MaxTokens = n
		}
	}
	if v := os.Getenv("RF_ENGINE_STREAMING"); v != "" {
		c.Engine.Streaming = parseBool(v)
	}

	if v := os.Getenv("RF_EFFORT_ROUTING_ENABLED"); v != "" {
		c.EffortRouting.Enabled = parseBool(v)
	}
	if v := os.Getenv("RF_EFFORT_ROUTING_SIMPLE"); v != "" {
		c.EffortRouting.SimpleEffort = strings.ToLower(v)
	}
	if v := os.Getenv("RF_EFFORT_ROUTING_STANDARD"); v != "" {
		c.EffortRouting.StandardEffort = strings.ToLower(v)
	}
	if v := os.Getenv("RF_EFFORT_ROUTING_COMPLEX"); v != "" {
		c.EffortRouting.ComplexEffort = strings.ToLower(v)
	}

	if v := os.Getenv("RF_BUDGET_ENABLED"); v != "" {
		c.Budget.Enabled = parseBool(v)
	}
	if v := os.Getenv("RF_BUDGET_MAX_SESSION_OUTPUT_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Budget.MaxSessionOutputTokens = n
		}
	}
	if v := os.Getenv("RF_BUDGET_WARN_AT_PERCENT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Budget.WarnAtPercent = f
		}
	}
	if v := os.Getenv("RF_BUDGET_MAX_COMPACTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Budget.MaxCompactions = n
		}
	}

	if v := os.Getenv("RF_MEMORY_MAX_MAIN_CONTEXT_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Memory.MaxMainContextTokens = n
		}
	}
	if v := os.Getenv("RF_MEMORY_RECALL_WINDOW_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Memory.RecallWindowSize = n
		}
	}
	if v := os.Getenv("RF_MEMORY_EVICTION_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Memory.EvictionThreshold = f
		}
	}
	if v := os.Getenv("RF_MEMORY_SEARCH_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Memory.SearchThreshold = f
		}
	}
	if v := os.Getenv("RF_MEMORY_EMBEDDING_INDEX_PATH"); v != "" {
		c.Memory.EmbeddingIndexPath = v
	}

	if v := os.Getenv("RF_PERFORMANCE_MAX_CONCURRENT_SESSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Performance.MaxConcurrentSessions = n
		}
	}
	if v := os.Getenv("RF_PERFORMANCE_SESSION_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Performance.SessionCacheSize = n
		}
	}
	if v := os.Getenv("RF_PERFORMANCE_HEARTBEAT_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Performance.HeartbeatIntervalSeconds = n
		}
	}

	if v := os.Getenv("RF_LOGGING_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("RF_LOGGING_FORMAT"); v != "" {
		c.Logging.Format = strings.ToLower(v)
	}
	if v := os.Getenv("RF_LOGGING_ENABLE_TIMESTAMPS"); v != "" {
		c.Logging.EnableTimestamps = parseBool(v)
	}

	return nil
}

var validEfforts = map[string]bool{"low": true, "medium": true, "high": true, "max": true}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return fmt.Errorf("server.name cannot be empty")
	}
	if c.Server.Environment != "development" && c.Server.Environment != "staging" && c.Server.Environment != "production" {
		return fmt.Errorf("server.environment must be one of: development, staging, production")
	}

	if c.Storage.Type != storage.StorageTypeMemory && c.Storage.Type != storage.StorageTypeSQLite {
		return fmt.Errorf("storage.type must be one of: memory, sqlite")
	}

	if c.Engine.ThinkingType != "adaptive" && c.Engine.ThinkingType != "budgeted" {
		return fmt.Errorf("engine.thinking_type must be 'adaptive' or 'budgeted'")
	}
	if !validEfforts[c.Engine.ThinkingEffort] {
		return fmt.Errorf("engine.thinking_effort must be one of: low, medium, high, max")
	}
	if c.Engine.MaxTokens < 1 {
		return fmt.Errorf("engine.max_tokens must be >= 1")
	}

	if c.EffortRouting.Enabled {
		for _, e := range []string{c.EffortRouting.SimpleEffort, c.EffortRouting.StandardEffort, c.EffortRouting.ComplexEffort} {
			if !validEfforts[e] {
				return fmt.Errorf("effort_routing effort levels must be one of: low, medium, high, max")
			}
		}
	}

	if c.Budget.WarnAtPercent < 0 || c.Budget.WarnAtPercent > 1 {
		return fmt.Errorf("budget.warn_at_percent must be in [0,1]")
	}
	if c.Budget.MaxSessionOutputTokens < 0 {
		return fmt.Errorf("budget.max_session_output_tokens cannot be negative")
	}
	if c.Budget.MaxCompactions < 0 {
		return fmt.Errorf("budget.max_compactions cannot be negative")
	}

	if c.Memory.MaxMainContextTokens < 1 {
		return fmt.Errorf("memory.max_main_context_tokens must be >= 1")
	}
	if c.Memory.RecallWindowSize < 1 {
		return fmt.Errorf("memory.recall_window_size must be >= 1")
	}
	if c.Memory.EvictionThreshold < 0 || c.Memory.EvictionThreshold > 1 {
		return fmt.Errorf("memory.eviction_threshold must be in [0,1]")
	}

	if c.Performance.MaxConcurrentSessions < 1 {
		return fmt.Errorf("performance.max_concurrent_sessions must be >= 1")
	}
	if c.Performance.SessionCacheSize < 1 {
		return fmt.Errorf("performance.session_cache_size must be >= 1")
	}
	if c.Performance.HeartbeatIntervalSeconds < 1 || c.Performance.HeartbeatIntervalSeconds > 15 {
		return fmt.Errorf("performance.heartbeat_interval_seconds must be in [1,15], per the streaming protocol's cadence bound")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json'")
	}

	return nil
}

// parseBool parses a boolean from string (handles various formats).
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on" || s == "enabled"
}

// ToJSON serializes the configuration to JSON.
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// SaveToFile saves the configuration to a JSON file.
func (c *Config) SaveToFile(path string) error {
	data, err := c.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
