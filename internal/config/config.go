package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Arbitration strategies.
const (
	StrategyValidate = "validate"
	StrategyDual     = "dual"
)

type Config struct {
	// Account is the bot's username on the game service.
	Account string `json:"account"`
	Token   string `json:"token"`
	BaseURL string `json:"baseURL"`

	Arbiter   ArbiterConfig   `json:"arbiter"`
	Primary   EngineConfig    `json:"primary"`
	Secondary EngineConfig    `json:"secondary"`
	Book      BookConfig      `json:"book"`
	Challenge ChallengeConfig `json:"challenge"`

	Server    ServerConfig    `json:"server"`
	Logging   LoggingConfig   `json:"logging"`
	MCP       MCPConfig       `json:"mcp"`
	RateLimit RateLimitConfig `json:"rateLimit"`
}

type ArbiterConfig struct {
	Strategy           string `json:"strategy"`
	VetoCP             int    `json:"vetoCP"`
	LatencyBufferMs    int    `json:"latencyBufferMs"`
	MinClockMs         int    `json:"minClockMs"`
	ValidateMoveTimeMs int    `json:"validateMoveTimeMs"`
	PollIntervalMs     int    `json:"pollIntervalMs"`
}

type EngineConfig struct {
	Name    string            `json:"name"`
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Options map[string]string `json:"options"`
	// StderrLog receives the engine's stderr. Empty discards it.
	StderrLog string `json:"stderrLog"`
}

type BookConfig struct {
	Path string `json:"path"`
}

type ChallengeConfig struct {
	Variant      string `json:"variant"`
	MinLimit     int    `json:"minLimit"`
	MaxLimit     int    `json:"maxLimit"`
	MinIncrement int    `json:"minIncrement"`
	MaxIncrement int    `json:"maxIncrement"`
}

type ServerConfig struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	HealthAddr string `json:"healthAddr"`
}

type LoggingConfig struct {
	Level  string     `json:"level"`
	Format string     `json:"format"`
	Prefix string     `json:"prefix"`
	File   FileConfig `json:"file"`
}

type FileConfig struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSize    int    `json:"maxSize"` // megabytes
	MaxBackups int    `json:"maxBackups"`
	MaxAge     int    `json:"maxAge"` // days
}

type MCPConfig struct {
	Enabled bool `json:"enabled"`
}

type RateLimitConfig struct {
	Enabled        bool           `json:"enabled"`
	RequestsPerMin int            `json:"requestsPerMin"`
	BurstSize      int            `json:"burstSize"`
	PerToolLimits  map[string]int `json:"perToolLimits"`
}

// Default returns the configuration used before any file or environment is applied.
func Default() *Config {
	return &Config{
		BaseURL: "https://lichess.org",
		Arbiter: ArbiterConfig{
			Strategy:           StrategyValidate,
			VetoCP:             150,
			LatencyBufferMs:    2000,
			MinClockMs:         1,
			ValidateMoveTimeMs: 500,
			PollIntervalMs:     10,
		},
		Primary: EngineConfig{
			Name:    "LZ",
			Options: make(map[string]string),
		},
		Secondary: EngineConfig{
			Name:    "SF",
			Options: make(map[string]string),
		},
		Challenge: ChallengeConfig{
			Variant:      "standard",
			MinLimit:     60,
			MaxLimit:     300,
			MinIncrement: 1,
			MaxIncrement: 10,
		},
		Server: ServerConfig{
			Name:       "chess-arbiter",
			Version:    "0.1.0",
			HealthAddr: ":8080",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Prefix: "[chess-arbiter] ",
			File: FileConfig{
				MaxSize:    100,
				MaxBackups: 3,
				MaxAge:     28,
			},
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 60,
			BurstSize:      10,
			PerToolLimits:  make(map[string]int),
		},
	}
}

func Load(configPath string) (*Config, error) {
	// A missing .env is normal; only a malformed one is worth reporting.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ARBITER_ACCOUNT"); v != "" {
		c.Account = v
	}
	if v := os.Getenv("ARBITER_TOKEN"); v != "" {
		c.Token = v
	}
	if v := os.Getenv("ARBITER_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("ARBITER_STRATEGY"); v != "" {
		c.Arbiter.Strategy = strings.ToLower(v)
	}
	if v := os.Getenv("ARBITER_VETO_CP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Arbiter.VetoCP = n
		}
	}
	if v := os.Getenv("ARBITER_PRIMARY_COMMAND"); v != "" {
		c.Primary.Command = v
	}
	if v := os.Getenv("ARBITER_SECONDARY_COMMAND"); v != "" {
		c.Secondary.Command = v
	}
	if v := os.Getenv("ARBITER_BOOK_PATH"); v != "" {
		c.Book.Path = v
	}

	if v := os.Getenv("ARBITER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("ARBITER_LOG_FORMAT"); v != "" {
		c.Logging.Format = strings.ToLower(v)
	}
	if v := os.Getenv("ARBITER_HEALTH_ADDR"); v != "" {
		c.Server.HealthAddr = v
	}

	if v := os.Getenv("ARBITER_MCP_ENABLED"); v != "" {
		c.MCP.Enabled = strings.ToLower(v) == "true"
	}
	if v := os.Getenv("ARBITER_RATE_LIMIT_ENABLED"); v != "" {
		c.RateLimit.Enabled = strings.ToLower(v) == "true"
	}
}

func (c *Config) validate() error {
	if c.Account == "" {
		return fmt.Errorf("account is required")
	}
	if c.Token == "" {
		return fmt.Errorf("token is required")
	}
	if c.Primary.Command == "" {
		return fmt.Errorf("primary engine command is required")
	}
	if c.Secondary.Command == "" {
		return fmt.Errorf("secondary engine command is required")
	}
	if c.Primary.Name == "" || c.Secondary.Name == "" {
		return fmt.Errorf("engine names must not be empty")
	}
	if strings.EqualFold(c.Primary.Name, c.Secondary.Name) {
		return fmt.Errorf("engine names must differ, both are %q", c.Primary.Name)
	}

	for _, eng := range []EngineConfig{c.Primary, c.Secondary} {
		if filepath.IsAbs(eng.Command) {
			if _, err := os.Stat(eng.Command); err != nil {
				return fmt.Errorf("engine %s not found at %s", eng.Name, eng.Command)
			}
		}
	}

	switch c.Arbiter.Strategy {
	case StrategyValidate, StrategyDual:
	default:
		return fmt.Errorf("unknown arbiter strategy %q", c.Arbiter.Strategy)
	}
	if c.Arbiter.VetoCP < 0 {
		return fmt.Errorf("vetoCP must not be negative")
	}

	// Clamp numeric ranges
	if c.Arbiter.MinClockMs < 1 {
		c.Arbiter.MinClockMs = 1
	}
	if c.Arbiter.LatencyBufferMs < 0 {
		c.Arbiter.LatencyBufferMs = 0
	}
	if c.Arbiter.ValidateMoveTimeMs < 1 {
		c.Arbiter.ValidateMoveTimeMs = 1
	}
	if c.Arbiter.PollIntervalMs < 1 {
		c.Arbiter.PollIntervalMs = 1
	}

	if c.Challenge.MinLimit > c.Challenge.MaxLimit {
		return fmt.Errorf("challenge minLimit %d exceeds maxLimit %d", c.Challenge.MinLimit, c.Challenge.MaxLimit)
	}
	if c.Challenge.MinIncrement > c.Challenge.MaxIncrement {
		return fmt.Errorf("challenge minIncrement %d exceeds maxIncrement %d", c.Challenge.MinIncrement, c.Challenge.MaxIncrement)
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerMin < 1 {
			c.RateLimit.RequestsPerMin = 1
		}
		if c.RateLimit.BurstSize < 1 {
			c.RateLimit.BurstSize = 1
		}
	}

	return nil
}

func GetConfigPath() string {
	// Check environment variable first
	if path := os.Getenv("ARBITER_CONFIG"); path != "" {
		return path
	}

	// Check current directory
	if _, err := os.Stat("config.json"); err == nil {
		return "config.json"
	}

	// Check home directory
	if home, err := os.UserHomeDir(); err == nil {
		configPath := filepath.Join(home, ".chess-arbiter", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}

	return ""
}
