// Package book plays opening moves from a list of known lines.
package book

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/notnil/chess"

	"github.com/dmmcquay/chess-arbiter/internal/logging"
)

// Book is a set of opening lines in UCI notation.
type Book struct {
	lines [][]string

	mu  sync.Mutex
	rng *rand.Rand
}

// Load reads a JSON array of space-delimited move sequences. An empty path
// yields an empty book.
func Load(path string, logger logging.ContextLogger) (*Book, error) {
	if path == "" {
		return New(nil, logger), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read book: %w", err)
	}

	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("failed to parse book: %w", err)
	}

	b := New(lines, logger)
	logger.Info("Opening book loaded", "path", path, "lines", b.Len(), "rejected", len(lines)-b.Len())
	return b, nil
}

// New builds a book from raw lines, dropping any that are not legal from the
// standard starting position.
func New(lines []string, logger logging.ContextLogger) *Book {
	b := &Book{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- opening variety, not security
	}
	for _, line := range lines {
		tokens := strings.Fields(line)
		if len(tokens) == 0 {
			continue
		}
		if err := validate(tokens); err != nil {
			logger.Warn("Dropping book line", "line", line, "error", err)
			continue
		}
		b.lines = append(b.lines, tokens)
	}
	return b
}

func validate(tokens []string) error {
	game := chess.NewGame()
	for i, tok := range tokens {
		m, err := chess.UCINotation{}.Decode(game.Position(), tok)
		if err != nil {
			return fmt.Errorf("ply %d %q: %w", i+1, tok, err)
		}
		if err := game.Move(m); err != nil {
			return fmt.Errorf("ply %d %q: %w", i+1, tok, err)
		}
	}
	return nil
}

// Len returns the number of usable lines.
func (b *Book) Len() int {
	return len(b.lines)
}

// Lookup returns the next move of a random line extending moves.
func (b *Book) Lookup(moves string) (string, bool) {
	played := strings.Fields(moves)

	var next []string
	for _, line := range b.lines {
		if len(line) <= len(played) || !hasPrefix(line, played) {
			continue
		}
		next = append(next, line[len(played)])
	}
	if len(next) == 0 {
		return "", false
	}

	b.mu.Lock()
	i := b.rng.Intn(len(next))
	b.mu.Unlock()
	return next[i], true
}

func hasPrefix(line, prefix []string) bool {
	for i, tok := range prefix {
		if line[i] != tok {
			return false
		}
	}
	return true
}
