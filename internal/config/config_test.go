package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ARBITER_ACCOUNT", "ArbiterBot")
	t.Setenv("ARBITER_TOKEN", "secret")
	t.Setenv("ARBITER_PRIMARY_COMMAND", "lc0")
	t.Setenv("ARBITER_SECONDARY_COMMAND", "stockfish")
}

func TestLoadDefaultConfig(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load default config: %v", err)
	}

	if cfg.Arbiter.Strategy != StrategyValidate {
		t.Errorf("Expected default strategy %q, got %q", StrategyValidate, cfg.Arbiter.Strategy)
	}
	if cfg.Arbiter.VetoCP != 150 {
		t.Errorf("Expected default vetoCP 150, got %d", cfg.Arbiter.VetoCP)
	}
	if cfg.Arbiter.LatencyBufferMs != 2000 {
		t.Errorf("Expected default latency buffer 2000, got %d", cfg.Arbiter.LatencyBufferMs)
	}
	if cfg.Challenge.MinLimit != 60 || cfg.Challenge.MaxLimit != 300 {
		t.Errorf("Unexpected default limit range %d..%d", cfg.Challenge.MinLimit, cfg.Challenge.MaxLimit)
	}
	if cfg.Challenge.MinIncrement != 1 || cfg.Challenge.MaxIncrement != 10 {
		t.Errorf("Unexpected default increment range %d..%d", cfg.Challenge.MinIncrement, cfg.Challenge.MaxIncrement)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Expected default log level 'info', got %s", cfg.Logging.Level)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	testConfig := Default()
	testConfig.Account = "ArbiterBot"
	testConfig.Token = "lip_token"
	testConfig.Arbiter.Strategy = StrategyDual
	testConfig.Arbiter.VetoCP = 75
	testConfig.Primary.Command = "lc0"
	testConfig.Secondary.Command = "stockfish"
	testConfig.Secondary.Options = map[string]string{"Hash": "256", "MultiPV": "3"}

	data, err := json.MarshalIndent(testConfig, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal test config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config from file: %v", err)
	}

	if cfg.Arbiter.Strategy != StrategyDual {
		t.Errorf("Expected strategy dual, got %s", cfg.Arbiter.Strategy)
	}
	if cfg.Arbiter.VetoCP != 75 {
		t.Errorf("Expected vetoCP 75, got %d", cfg.Arbiter.VetoCP)
	}
	if cfg.Secondary.Options["Hash"] != "256" {
		t.Errorf("Expected Hash option 256, got %q", cfg.Secondary.Options["Hash"])
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ARBITER_VETO_CP", "300")
	t.Setenv("ARBITER_STRATEGY", "DUAL")
	t.Setenv("ARBITER_LOG_LEVEL", "debug")
	t.Setenv("ARBITER_RATE_LIMIT_ENABLED", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Arbiter.VetoCP != 300 {
		t.Errorf("Expected vetoCP 300 from env, got %d", cfg.Arbiter.VetoCP)
	}
	if cfg.Arbiter.Strategy != StrategyDual {
		t.Errorf("Expected strategy dual from env, got %s", cfg.Arbiter.Strategy)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected log level debug from env, got %s", cfg.Logging.Level)
	}
	if cfg.RateLimit.Enabled {
		t.Error("Expected rate limiting disabled from env")
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "missing account",
			mutate:  func(c *Config) { c.Account = "" },
			wantErr: "account is required",
		},
		{
			name:    "missing token",
			mutate:  func(c *Config) { c.Token = "" },
			wantErr: "token is required",
		},
		{
			name:    "unknown strategy",
			mutate:  func(c *Config) { c.Arbiter.Strategy = "coinflip" },
			wantErr: "unknown arbiter strategy",
		},
		{
			name:    "same engine names",
			mutate:  func(c *Config) { c.Secondary.Name = "lz" },
			wantErr: "engine names must differ",
		},
		{
			name:    "inverted limit range",
			mutate:  func(c *Config) { c.Challenge.MinLimit = 600 },
			wantErr: "exceeds maxLimit",
		},
		{
			name:    "negative veto",
			mutate:  func(c *Config) { c.Arbiter.VetoCP = -1 },
			wantErr: "vetoCP",
		},
		{
			name:    "missing absolute engine binary",
			mutate:  func(c *Config) { c.Primary.Command = "/nonexistent/lc0" },
			wantErr: "not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Account = "ArbiterBot"
			cfg.Token = "secret"
			cfg.Primary.Command = "lc0"
			cfg.Secondary.Command = "stockfish"
			tt.mutate(cfg)

			err := cfg.validate()
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidationClampsRanges(t *testing.T) {
	cfg := Default()
	cfg.Account = "ArbiterBot"
	cfg.Token = "secret"
	cfg.Primary.Command = "lc0"
	cfg.Secondary.Command = "stockfish"
	cfg.Arbiter.MinClockMs = 0
	cfg.Arbiter.PollIntervalMs = 0
	cfg.Arbiter.LatencyBufferMs = -5

	if err := cfg.validate(); err != nil {
		t.Fatalf("Unexpected validation error: %v", err)
	}
	if cfg.Arbiter.MinClockMs != 1 {
		t.Errorf("Expected minClockMs clamped to 1, got %d", cfg.Arbiter.MinClockMs)
	}
	if cfg.Arbiter.PollIntervalMs != 1 {
		t.Errorf("Expected pollIntervalMs clamped to 1, got %d", cfg.Arbiter.PollIntervalMs)
	}
	if cfg.Arbiter.LatencyBufferMs != 0 {
		t.Errorf("Expected latencyBufferMs clamped to 0, got %d", cfg.Arbiter.LatencyBufferMs)
	}
}

func TestGetConfigPathFromEnv(t *testing.T) {
	t.Setenv("ARBITER_CONFIG", "/etc/arbiter/config.json")
	if got := GetConfigPath(); got != "/etc/arbiter/config.json" {
		t.Errorf("Expected env config path, got %q", got)
	}
}
