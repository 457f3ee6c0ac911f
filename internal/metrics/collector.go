package metrics

import (
	"sync"
	"time"
)

// Move sources.
const (
	SourceBook    = "book"
	SourceArbiter = "arbiter"
)

// Turn describes one move we submitted.
type Turn struct {
	Source   string
	Agreed   bool
	Vetoed   bool
	Duration time.Duration
}

// GameStats summarises the turns of one game.
type GameStats struct {
	Moves       int           `json:"moves"`
	BookMoves   int           `json:"book_moves"`
	Agreements  int           `json:"agreements"`
	Vetoes      int           `json:"vetoes"`
	AvgThinking time.Duration `json:"avg_thinking"`

	thinking time.Duration
	searched int
}

// Collector keeps in-process game statistics for chat replies and operator tools.
type Collector struct {
	mu     sync.RWMutex
	games  map[string]*GameStats
	totals GameStats
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		games: make(map[string]*GameStats),
	}
}

// RecordTurn adds one submitted move to the game's statistics.
func (c *Collector) RecordTurn(gameID string, turn Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g, ok := c.games[gameID]
	if !ok {
		g = &GameStats{}
		c.games[gameID] = g
	}
	g.add(turn)
	c.totals.add(turn)
}

func (g *GameStats) add(turn Turn) {
	g.Moves++
	if turn.Source == SourceBook {
		g.BookMoves++
		return
	}
	if turn.Agreed {
		g.Agreements++
	}
	if turn.Vetoed {
		g.Vetoes++
	}
	g.searched++
	g.thinking += turn.Duration
	g.AvgThinking = g.thinking / time.Duration(g.searched)
}

// Game returns a copy of one game's statistics.
func (c *Collector) Game(gameID string) GameStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if g, ok := c.games[gameID]; ok {
		return *g
	}
	return GameStats{}
}

// Forget drops a finished game's statistics; totals are kept.
func (c *Collector) Forget(gameID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.games, gameID)
}

// GetStats returns totals and the per-game breakdown.
func (c *Collector) GetStats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	games := make(map[string]interface{}, len(c.games))
	for id, g := range c.games {
		games[id] = statsMap(*g)
	}

	return map[string]interface{}{
		"totals": statsMap(c.totals),
		"games":  games,
	}
}

func statsMap(g GameStats) map[string]interface{} {
	vetoRate := float64(0)
	if searched := g.Moves - g.BookMoves; searched > 0 {
		vetoRate = float64(g.Vetoes) / float64(searched)
	}
	return map[string]interface{}{
		"moves":           g.Moves,
		"book_moves":      g.BookMoves,
		"agreements":      g.Agreements,
		"vetoes":          g.Vetoes,
		"veto_rate":       vetoRate,
		"avg_thinking_ms": g.AvgThinking.Milliseconds(),
	}
}

// Reset clears all statistics.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.games = make(map[string]*GameStats)
	c.totals = GameStats{}
}
