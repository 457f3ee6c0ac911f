package arbiter

import (
	"fmt"
	"strings"
)

// StartPos is the initial position marker used by the game service.
const StartPos = "startpos"

// Clock holds remaining time and increments in milliseconds.
type Clock struct {
	WTime int
	BTime int
	WInc  int
	BInc  int
}

// IsStartPos reports whether fen denotes the standard initial position.
func IsStartPos(fen string) bool {
	fen = strings.TrimSpace(fen)
	return fen == "" || fen == StartPos
}

// PositionCommand builds the UCI position command for a game.
func PositionCommand(initialFEN, moves string) string {
	var b strings.Builder
	if IsStartPos(initialFEN) {
		b.WriteString("position startpos")
	} else {
		b.WriteString("position fen ")
		b.WriteString(strings.TrimSpace(initialFEN))
	}

	if fields := strings.Fields(moves); len(fields) > 0 {
		b.WriteString(" moves ")
		b.WriteString(strings.Join(fields, " "))
	}
	return b.String()
}

// ClockCommand builds a clock-driven go command.
func ClockCommand(c Clock) string {
	return fmt.Sprintf("go wtime %d btime %d winc %d binc %d", c.WTime, c.BTime, c.WInc, c.BInc)
}

// MoveTimeCommand builds a fixed-time go command, optionally restricted to
// the given moves.
func MoveTimeCommand(ms int, searchMoves ...string) string {
	cmd := fmt.Sprintf("go movetime %d", ms)
	if len(searchMoves) > 0 {
		cmd += " searchmoves " + strings.Join(searchMoves, " ")
	}
	return cmd
}
