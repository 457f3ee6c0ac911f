// Package board replays games for human-readable logging. It never judges
// the legality of engine moves; failures fall back to the raw UCI text.
package board

import (
	"fmt"
	"strings"

	"github.com/notnil/chess"
)

// Replay builds a game from an initial position and a UCI move list.
func Replay(initialFEN, moves string) (*chess.Game, error) {
	game, err := newGame(initialFEN)
	if err != nil {
		return nil, err
	}
	for i, tok := range strings.Fields(moves) {
		if err := play(game, tok); err != nil {
			return nil, fmt.Errorf("move %d: %w", i+1, err)
		}
	}
	return game, nil
}

func newGame(initialFEN string) (*chess.Game, error) {
	initialFEN = strings.TrimSpace(initialFEN)
	if initialFEN == "" || initialFEN == "startpos" {
		return chess.NewGame(), nil
	}
	opt, err := chess.FEN(initialFEN)
	if err != nil {
		return nil, fmt.Errorf("invalid initial position: %w", err)
	}
	return chess.NewGame(opt), nil
}

func play(game *chess.Game, uciMove string) error {
	m, err := chess.UCINotation{}.Decode(game.Position(), uciMove)
	if err != nil {
		return fmt.Errorf("cannot decode %q: %w", uciMove, err)
	}
	if err := game.Move(m); err != nil {
		return fmt.Errorf("cannot play %q: %w", uciMove, err)
	}
	return nil
}

// MoveSAN renders next, played after moves, in SAN.
func MoveSAN(initialFEN, moves, next string) string {
	game, err := Replay(initialFEN, moves)
	if err != nil {
		return next
	}
	pos := game.Position()
	m, err := chess.UCINotation{}.Decode(pos, next)
	if err != nil {
		return next
	}
	for _, valid := range game.ValidMoves() {
		if valid.S1() == m.S1() && valid.S2() == m.S2() && valid.Promo() == m.Promo() {
			return chess.AlgebraicNotation{}.Encode(pos, valid)
		}
	}
	return next
}

// LastMoveSAN renders the final move of moves in SAN.
func LastMoveSAN(initialFEN, moves string) string {
	tokens := strings.Fields(moves)
	if len(tokens) == 0 {
		return ""
	}
	return MoveSAN(initialFEN, strings.Join(tokens[:len(tokens)-1], " "), tokens[len(tokens)-1])
}
