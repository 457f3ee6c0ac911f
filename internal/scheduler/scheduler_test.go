package scheduler

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmmcquay/chess-arbiter/internal/config"
	"github.com/dmmcquay/chess-arbiter/internal/logging"
)

func newTestScheduler() *Scheduler {
	return New(config.Default().Challenge, logging.NewNopLogger())
}

func TestTryAdmitAndRelease(t *testing.T) {
	s := newTestScheduler()

	assert.True(t, s.TryAdmit("game1"))
	assert.False(t, s.TryAdmit("game2"))
	assert.False(t, s.TryAdmit("game1"), "re-admitting the holder must fail")

	active, ok := s.Active()
	assert.True(t, ok)
	assert.Equal(t, "game1", active)

	assert.False(t, s.Release("game2"), "stale session must not clear the slot")
	assert.True(t, s.Release("game1"))
	assert.False(t, s.Release("game1"), "release is idempotent")

	_, ok = s.Active()
	assert.False(t, ok)
	assert.True(t, s.TryAdmit("game2"))
}

func TestReleaseEmptyID(t *testing.T) {
	s := newTestScheduler()
	assert.False(t, s.Release(""))
}

func TestConcurrentTryAdmitExclusive(t *testing.T) {
	for round := 0; round < 100; round++ {
		s := newTestScheduler()

		var wg sync.WaitGroup
		results := make([]bool, 2)
		ids := []string{"alpha", "beta"}
		start := make(chan struct{})
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				results[i] = s.TryAdmit(ids[i])
			}(i)
		}
		close(start)
		wg.Wait()

		assert.NotEqual(t, results[0], results[1], "exactly one admission must succeed")

		winner := ids[0]
		if results[1] {
			winner = ids[1]
		}
		active, _ := s.Active()
		assert.Equal(t, winner, active)
	}
}

func TestStaleReleaseAfterNewAdmission(t *testing.T) {
	s := newTestScheduler()

	assert.True(t, s.TryAdmit("old"))
	assert.True(t, s.Release("old"))
	assert.True(t, s.TryAdmit("new"))

	// The old session finishing late must not evict the new one.
	assert.False(t, s.Release("old"))
	active, _ := s.Active()
	assert.Equal(t, "new", active)
}

func TestScreen(t *testing.T) {
	valid := Challenge{
		ID:          "c1",
		Variant:     "standard",
		TimeControl: TimeControl{Type: "clock", Limit: 180, Increment: 2},
	}

	tests := []struct {
		name       string
		mutate     func(c *Challenge)
		wantAccept bool
		wantReason string
	}{
		{name: "valid", mutate: func(c *Challenge) {}, wantAccept: true},
		{name: "lower bounds inclusive", mutate: func(c *Challenge) { c.TimeControl.Limit = 60; c.TimeControl.Increment = 1 }, wantAccept: true},
		{name: "upper bounds inclusive", mutate: func(c *Challenge) { c.TimeControl.Limit = 300; c.TimeControl.Increment = 10 }, wantAccept: true},
		{name: "chess960", mutate: func(c *Challenge) { c.Variant = "chess960" }, wantReason: ReasonVariant},
		{name: "correspondence", mutate: func(c *Challenge) { c.TimeControl = TimeControl{Type: "correspondence"} }, wantReason: ReasonTimeControl},
		{name: "unlimited", mutate: func(c *Challenge) { c.TimeControl = TimeControl{Type: "unlimited"} }, wantReason: ReasonTimeControl},
		{name: "limit too short", mutate: func(c *Challenge) { c.TimeControl.Limit = 30 }, wantReason: ReasonTooFast},
		{name: "limit too long", mutate: func(c *Challenge) { c.TimeControl.Limit = 600 }, wantReason: ReasonTooSlow},
		{name: "no increment", mutate: func(c *Challenge) { c.TimeControl.Increment = 0 }, wantReason: ReasonTooFast},
		{name: "increment too long", mutate: func(c *Challenge) { c.TimeControl.Increment = 15 }, wantReason: ReasonTooSlow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScheduler()
			c := valid
			tt.mutate(&c)

			d := s.Screen(c)
			assert.Equal(t, tt.wantAccept, d.Accept)
			assert.Equal(t, tt.wantReason, d.Reason)
		})
	}
}

func TestScreenDeclinesWhileBusy(t *testing.T) {
	s := newTestScheduler()
	s.TryAdmit("game1")

	d := s.Screen(Challenge{Variant: "standard", TimeControl: TimeControl{Type: "clock", Limit: 180, Increment: 2}})
	assert.False(t, d.Accept)
	assert.Equal(t, ReasonLater, d.Reason)
}
