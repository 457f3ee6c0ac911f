package uci

import "fmt"

// MateScore is the normalized value of being able to mate immediately.
const MateScore = 100000

// mateStep separates consecutive mate distances after normalization.
const mateStep = 1000

// Score is an engine evaluation from the side to move's point of view.
type Score struct {
	Centipawns int
	Mate       int
	IsMate     bool
}

// Normalized maps the score onto a single centipawn-comparable scale where a
// closer mate beats a farther mate, which beats any finite evaluation.
// "mate 0" is reported by engines when the side to move is already mated.
func (s Score) Normalized() int {
	if !s.IsMate {
		return s.Centipawns
	}
	if s.Mate > 0 {
		return MateScore - s.Mate*mateStep
	}
	return -MateScore - s.Mate*mateStep
}

func (s Score) String() string {
	if s.IsMate {
		return fmt.Sprintf("mate %d", s.Mate)
	}
	return fmt.Sprintf("cp %d", s.Centipawns)
}
