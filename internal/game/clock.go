package game

import (
	"github.com/dmmcquay/chess-arbiter/internal/arbiter"
	"github.com/dmmcquay/chess-arbiter/internal/lichess"
)

// CompensateClock subtracts the network latency buffer from both sides'
// remaining time, never going below minClockMs.
func CompensateClock(st lichess.GameState, bufferMs, minClockMs int) arbiter.Clock {
	return arbiter.Clock{
		WTime: max(minClockMs, st.WTime-bufferMs),
		BTime: max(minClockMs, st.BTime-bufferMs),
		WInc:  st.WInc,
		BInc:  st.BInc,
	}
}
