package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCollectorRecordsTurns(t *testing.T) {
	c := NewCollector()

	c.RecordTurn("g1", Turn{Source: SourceBook})
	c.RecordTurn("g1", Turn{Source: SourceArbiter, Agreed: true, Duration: 2 * time.Second})
	c.RecordTurn("g1", Turn{Source: SourceArbiter, Vetoed: true, Duration: 4 * time.Second})
	c.RecordTurn("g2", Turn{Source: SourceArbiter, Duration: time.Second})

	g1 := c.Game("g1")
	assert.Equal(t, 3, g1.Moves)
	assert.Equal(t, 1, g1.BookMoves)
	assert.Equal(t, 1, g1.Agreements)
	assert.Equal(t, 1, g1.Vetoes)
	assert.Equal(t, 3*time.Second, g1.AvgThinking)

	stats := c.GetStats()
	totals := stats["totals"].(map[string]interface{})
	assert.Equal(t, 4, totals["moves"])
	assert.InDelta(t, 1.0/3.0, totals["veto_rate"], 1e-9)
	assert.Len(t, stats["games"], 2)
}

func TestCollectorForgetKeepsTotals(t *testing.T) {
	c := NewCollector()
	c.RecordTurn("g1", Turn{Source: SourceArbiter, Vetoed: true})

	c.Forget("g1")

	assert.Equal(t, GameStats{}, c.Game("g1"))
	totals := c.GetStats()["totals"].(map[string]interface{})
	assert.Equal(t, 1, totals["vetoes"])

	c.Reset()
	totals = c.GetStats()["totals"].(map[string]interface{})
	assert.Equal(t, 0, totals["moves"])
}
