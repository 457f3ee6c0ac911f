package bot

import (
	"fmt"
	"strings"

	"github.com/dmmcquay/chess-arbiter/internal/config"
	"github.com/dmmcquay/chess-arbiter/internal/game"
)

// Settings renders the "!settings" chat reply from the configuration.
func Settings(cfg *config.Config) string {
	var parts []string
	if hash, ok := cfg.Secondary.Options["Hash"]; ok {
		parts = append(parts, fmt.Sprintf("%s hash: %s MB", cfg.Secondary.Name, hash))
	}
	parts = append(parts,
		fmt.Sprintf("veto CP threshold: %d", cfg.Arbiter.VetoCP),
		fmt.Sprintf("strategy: %s", cfg.Arbiter.Strategy),
	)
	return strings.Join(parts, "; ")
}

// SessionOptions derives per-game options from the configuration.
func SessionOptions(cfg *config.Config) game.Options {
	return game.Options{
		Account:         cfg.Account,
		LatencyBufferMs: cfg.Arbiter.LatencyBufferMs,
		MinClockMs:      cfg.Arbiter.MinClockMs,
		VetoerName:      cfg.Secondary.Name,
		Settings:        Settings(cfg),
		ChatCooldown:    game.ChatCooldown,
	}
}
