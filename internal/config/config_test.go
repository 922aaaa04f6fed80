package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Name != "reasonforge" {
		t.Errorf("Expected server name 'reasonforge', got '%s'", cfg.Server.Name)
	}
	if cfg.Server.Environment != "development" {
		t.Errorf("Expected environment 'development', got '%s'", cfg.Server.Environment)
	}

	if cfg.Storage.Type != "memory" {
		t.Errorf("Expected storage type 'memory', got '%s'", cfg.Storage.Type)
	}

	if cfg.Engine.ThinkingType != "adaptive" {
		t.Errorf("Expected thinking type 'adaptive', got '%s'", cfg.Engine.ThinkingType)
	}
	if !cfg.EffortRouting.Enabled {
		t.Error("Expected effort routing to be enabled by default")
	}
	if !cfg.Budget.Enabled {
		t.Error("Expected token budget to be enabled by default")
	}

	if cfg.Performance.SessionCacheSize != 100 {
		t.Errorf("Expected SessionCacheSize 100, got %d", cfg.Performance.SessionCacheSize)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Expected log level 'info', got '%s'", cfg.Logging.Level)
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load() returned nil config")
	}
	if cfg.Server.Name != "reasonforge" {
		t.Errorf("Expected default server name, got '%s'", cfg.Server.Name)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)

	_ = os.Setenv("RF_SERVER_NAME", "test-server")
	_ = os.Setenv("RF_SERVER_ENVIRONMENT", "production")
	_ = os.Setenv("RF_ENGINE_THINKING_EFFORT", "high")
	_ = os.Setenv("RF_EFFORT_ROUTING_ENABLED", "false")
	_ = os.Setenv("RF_BUDGET_MAX_COMPACTIONS", "5")
	_ = os.Setenv("RF_LOGGING_LEVEL", "debug")
	defer clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Name != "test-server" {
		t.Errorf("Expected server name 'test-server', got '%s'", cfg.Server.Name)
	}
	if cfg.Server.Environment != "production" {
		t.Errorf("Expected environment 'production', got '%s'", cfg.Server.Environment)
	}
	if cfg.Engine.ThinkingEffort != "high" {
		t.Errorf("Expected thinking effort 'high', got '%s'", cfg.Engine.ThinkingEffort)
	}
	if cfg.EffortRouting.Enabled {
		t.Error("Expected effort routing to be disabled")
	}
	if cfg.Budget.MaxCompactions != 5 {
		t.Errorf("Expected MaxCompactions 5, got %d", cfg.Budget.MaxCompactions)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected log level 'debug', got '%s'", cfg.Logging.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	configJSON := `{
		"server": {
			"name": "file-server",
			"version": "2.0.0",
			"environment": "staging"
		},
		"storage": {
			"type": "memory"
		},
		"engine": {
			"thinking_type": "budgeted",
			"thinking_effort": "low",
			"max_tokens": 2048,
			"streaming": false
		},
		"budget": {
			"enabled": true,
			"max_session_output_tokens": 1000,
			"warn_at_percent": 0.5,
			"max_compactions": 2
		},
		"logging": {
			"level": "warn",
			"format": "json",
			"enable_timestamps": false
		}
	}`

	if err := os.WriteFile(configPath, []byte(configJSON), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	clearEnv(t)

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() failed: %v", err)
	}

	if cfg.Server.Name != "file-server" {
		t.Errorf("Expected server name 'file-server', got '%s'", cfg.Server.Name)
	}
	if cfg.Server.Version != "2.0.0" {
		t.Errorf("Expected version '2.0.0', got '%s'", cfg.Server.Version)
	}
	if cfg.Server.Environment != "staging" {
		t.Errorf("Expected environment 'staging', got '%s'", cfg.Server.Environment)
	}
	if cfg.Engine.ThinkingType != "budgeted" {
		t.Errorf("Expected thinking type 'budgeted', got '%s'", cfg.Engine.ThinkingType)
	}
	if cfg.Engine.MaxTokens != 2048 {
		t.Errorf("Expected max_tokens 2048, got %d", cfg.Engine.MaxTokens)
	}
	if cfg.Budget.MaxSessionOutputTokens != 1000 {
		t.Errorf("Expected max_session_output_tokens 1000, got %d", cfg.Budget.MaxSessionOutputTokens)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Expected log level 'warn', got '%s'", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected log format 'json', got '%s'", cfg.Logging.Format)
	}
}

func TestLoadFromFileWithEnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	configJSON := `{
		"server": {
			"name": "file-server",
			"environment": "staging"
		},
		"effort_routing": {
			"enabled": false
		}
	}`

	if err := os.WriteFile(configPath, []byte(configJSON), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	clearEnv(t)
	_ = os.Setenv("RF_SERVER_NAME", "env-server")
	_ = os.Setenv("RF_EFFORT_ROUTING_ENABLED", "true")
	defer clearEnv(t)

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() failed: %v", err)
	}

	if cfg.Server.Name != "env-server" {
		t.Errorf("Expected server name 'env-server' (env override), got '%s'", cfg.Server.Name)
	}
	if !cfg.EffortRouting.Enabled {
		t.Error("Expected effort routing to be enabled (env override)")
	}
	if cfg.Server.Environment != "staging" {
		t.Errorf("Expected environment 'staging' (from file), got '%s'", cfg.Server.Environment)
	}
}

func TestValidate(t *testing.T) {
	valid := Default()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid default config", func(*Config) {}, ""},
		{"empty server name", func(c *Config) { c.Server.Name = "" }, "server.name cannot be empty"},
		{"invalid environment", func(c *Config) { c.Server.Environment = "invalid" }, "server.environment must be one of"},
		{"invalid thinking type", func(c *Config) { c.Engine.ThinkingType = "psychic" }, "engine.thinking_type must be"},
		{"invalid thinking effort", func(c *Config) { c.Engine.ThinkingEffort = "extreme" }, "engine.thinking_effort must be one of"},
		{"zero max tokens", func(c *Config) { c.Engine.MaxTokens = 0 }, "engine.max_tokens must be >= 1"},
		{"warn percent out of range", func(c *Config) { c.Budget.WarnAtPercent = 1.5 }, "budget.warn_at_percent must be in"},
		{"negative max compactions", func(c *Config) { c.Budget.MaxCompactions = -1 }, "budget.max_compactions cannot be negative"},
		{"zero recall window", func(c *Config) { c.Memory.RecallWindowSize = 0 }, "memory.recall_window_size must be >= 1"},
		{"heartbeat out of range", func(c *Config) { c.Performance.HeartbeatIntervalSeconds = 30 }, "heartbeat_interval_seconds must be in"},
		{"invalid log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level must be one of"},
		{"invalid log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format must be 'text' or 'json'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, should contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"true", true}, {"TRUE", true}, {"True", true}, {"1", true},
		{"yes", true}, {"YES", true}, {"on", true}, {"enabled", true},
		{"false", false}, {"0", false}, {"no", false}, {"off", false},
		{"disabled", false}, {"", false}, {"invalid", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if result := parseBool(tt.input); result != tt.expected {
				t.Errorf("parseBool(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestToJSON(t *testing.T) {
	cfg := Default()
	data, err := cfg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() failed: %v", err)
	}
	if len(data) == 0 {
		t.Error("ToJSON() returned empty data")
	}
	jsonStr := string(data)
	if !contains(jsonStr, "server") {
		t.Error("JSON should contain 'server' field")
	}
	if !contains(jsonStr, "budget") {
		t.Error("JSON should contain 'budget' field")
	}
}

func TestSaveToFile(t *testing.T) {
	cfg := Default()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "saved-config.json")

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() failed: %v", err)
	}

	loadedCfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() after save failed: %v", err)
	}
	if loadedCfg.Server.Name != cfg.Server.Name {
		t.Errorf("Loaded config doesn't match saved config: %s != %s", loadedCfg.Server.Name, cfg.Server.Name)
	}
}

// Helper functions

func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"RF_SERVER_NAME", "RF_SERVER_VERSION", "RF_SERVER_ENVIRONMENT",
		"STORAGE_TYPE", "SQLITE_PATH",
		"RF_ENGINE_MODEL", "RF_ENGINE_THINKING_TYPE", "RF_ENGINE_THINKING_EFFORT",
		"RF_ENGINE_MAX_TOKENS", "RF_ENGINE_STREAMING",
		"RF_EFFORT_ROUTING_ENABLED", "RF_EFFORT_ROUTING_SIMPLE", "RF_EFFORT_ROUTING_STANDARD", "RF_EFFORT_ROUTING_COMPLEX",
		"RF_BUDGET_ENABLED", "RF_BUDGET_MAX_SESSION_OUTPUT_TOKENS", "RF_BUDGET_WARN_AT_PERCENT", "RF_BUDGET_MAX_COMPACTIONS",
		"RF_MEMORY_MAX_MAIN_CONTEXT_TOKENS", "RF_MEMORY_RECALL_WINDOW_SIZE", "RF_MEMORY_EVICTION_THRESHOLD", "RF_MEMORY_SEARCH_THRESHOLD",
		"RF_MEMORY_EMBEDDING_INDEX_PATH",
		"RF_PERFORMANCE_MAX_CONCURRENT_SESSIONS", "RF_PERFORMANCE_SESSION_CACHE_SIZE", "RF_PERFORMANCE_HEARTBEAT_INTERVAL_SECONDS",
		"RF_LOGGING_LEVEL", "RF_LOGGING_FORMAT", "RF_LOGGING_ENABLE_TIMESTAMPS",
	}

	for _, v := range envVars {
		os.Unsetenv(v)
	}
}

func contains(s, substr string) bool {
	if len(s) == 0 || len(substr) == 0 {
		return false
	}
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
