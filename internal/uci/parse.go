package uci

import (
	"strconv"
	"strings"
)

// EventKind tags an Event.
type EventKind int

const (
	// EventScore is a scored principal variation from an info line.
	EventScore EventKind = iota + 1
	// EventBestMove ends a search.
	EventBestMove
)

func (k EventKind) String() string {
	switch k {
	case EventScore:
		return "score"
	case EventBestMove:
		return "bestmove"
	default:
		return "unknown"
	}
}

// Event is one parsed line of engine output.
type Event struct {
	Kind EventKind
	// Rank is the multipv index, 0 for a single-PV search.
	Rank int
	// Move is the first PV move for scores, or the best move.
	Move   string
	Ponder string
	Score  Score
	Depth  int
	Raw    string
}

// ParseLine turns an engine output line into an Event. Lines that carry no
// analysis (handshake replies, bound-only scores, info strings, currmove
// updates) return false.
func ParseLine(line string) (Event, bool) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return Event{}, false
	}
	// Free-form engine chatter may contain any word.
	if len(tokens) > 1 && tokens[0] == "info" && tokens[1] == "string" {
		return Event{}, false
	}

	if i := indexOf(tokens, "bestmove"); i >= 0 {
		if i+1 >= len(tokens) {
			return Event{}, false
		}
		ev := Event{Kind: EventBestMove, Move: tokens[i+1], Raw: line}
		if j := indexOf(tokens[i+2:], "ponder"); j >= 0 && i+2+j+1 < len(tokens) {
			ev.Ponder = tokens[i+2+j+1]
		}
		return ev, true
	}

	s := indexOf(tokens, "score")
	if s < 0 || s+2 >= len(tokens) {
		return Event{}, false
	}
	if indexOf(tokens, "lowerbound") >= 0 || indexOf(tokens, "upperbound") >= 0 {
		return Event{}, false
	}

	n, err := strconv.Atoi(tokens[s+2])
	if err != nil {
		return Event{}, false
	}

	ev := Event{Kind: EventScore, Raw: line}
	switch tokens[s+1] {
	case "cp":
		ev.Score = Score{Centipawns: n}
	case "mate":
		ev.Score = Score{Mate: n, IsMate: true}
	default:
		return Event{}, false
	}

	ev.Rank = intAfter(tokens, "multipv")
	ev.Depth = intAfter(tokens, "depth")
	if i := indexOf(tokens, "pv"); i >= 0 && i+1 < len(tokens) {
		ev.Move = tokens[i+1]
	}

	return ev, true
}

func indexOf(tokens []string, want string) int {
	for i, tok := range tokens {
		if tok == want {
			return i
		}
	}
	return -1
}

// intAfter returns the integer following key, or 0.
func intAfter(tokens []string, key string) int {
	i := indexOf(tokens, key)
	if i < 0 || i+1 >= len(tokens) {
		return 0
	}
	n, err := strconv.Atoi(tokens[i+1])
	if err != nil {
		return 0
	}
	return n
}
