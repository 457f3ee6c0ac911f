package arbiter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmmcquay/chess-arbiter/internal/config"
	"github.com/dmmcquay/chess-arbiter/internal/logging"
	"github.com/dmmcquay/chess-arbiter/internal/uci"
)

func testConfig(strategy string, veto int) config.ArbiterConfig {
	cfg := config.Default().Arbiter
	cfg.Strategy = strategy
	cfg.VetoCP = veto
	cfg.PollIntervalMs = 1
	return cfg
}

// onGo answers every go command with a fixed search result.
func onGo(lines ...string) uci.Responder {
	return func(cmd string) []string {
		if strings.HasPrefix(cmd, "go ") {
			return lines
		}
		return nil
	}
}

// validatingSecondary answers an unrestricted search with best/bestScore and a
// searchmoves search with candScore for the candidate.
func validatingSecondary(best string, bestScore int, candidate string, candScore *int) uci.Responder {
	return func(cmd string) []string {
		switch {
		case strings.Contains(cmd, "searchmoves"):
			if candScore == nil {
				return []string{"bestmove " + candidate}
			}
			return []string{
				fmt.Sprintf("info depth 12 score cp %d pv %s", *candScore, candidate),
				"bestmove " + candidate,
			}
		case strings.HasPrefix(cmd, "go "):
			return []string{
				fmt.Sprintf("info depth 12 multipv 1 score cp %d pv %s", bestScore, best),
				"bestmove " + best,
			}
		}
		return nil
	}
}

func intPtr(n int) *int { return &n }

func newTestArbiter(strategy string, veto int) (*Arbiter, *uci.MockEngine, *uci.MockEngine) {
	primary := uci.NewMockEngine("LZ")
	secondary := uci.NewMockEngine("SF")
	return New(primary, secondary, testConfig(strategy, veto), logging.NewNopLogger()), primary, secondary
}

func countPrefix(cmds []string, prefix string) int {
	n := 0
	for _, c := range cmds {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func TestValidateAgreement(t *testing.T) {
	a, primary, secondary := newTestArbiter(config.StrategyValidate, 150)
	primary.SetResponder(onGo("info depth 5 score cp -900 pv e2e4", "bestmove e2e4"))
	secondary.SetResponder(onGo("info depth 5 score cp 900 pv e2e4", "bestmove e2e4"))

	res, err := a.Decide(context.Background(), Request{Moves: "", Clock: Clock{WTime: 60000, BTime: 60000, WInc: 1000, BInc: 1000}})
	require.NoError(t, err)

	assert.True(t, res.Agreed)
	assert.False(t, res.Vetoed)
	assert.Equal(t, "e2e4", res.Chosen)
	assert.Equal(t, res.Primary, res.Chosen)
	assert.Equal(t, config.StrategyValidate, res.Strategy)

	assert.Equal(t, []string{"position startpos", "go wtime 60000 btime 60000 winc 1000 binc 1000"}, primary.Sent())
	assert.Equal(t, []string{"position startpos", "go movetime 500"}, secondary.Sent())
}

func TestValidateOverride(t *testing.T) {
	tests := []struct {
		name       string
		veto       int
		wantChosen string
		wantVetoed bool
	}{
		{name: "diff above threshold", veto: 150, wantChosen: "d2d4", wantVetoed: true},
		{name: "diff below threshold", veto: 200, wantChosen: "e2e4", wantVetoed: false},
		{name: "diff equal to threshold", veto: 180, wantChosen: "e2e4", wantVetoed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, primary, secondary := newTestArbiter(config.StrategyValidate, tt.veto)
			primary.SetResponder(onGo("info depth 20 score cp 30 pv e2e4", "bestmove e2e4"))
			secondary.SetResponder(validatingSecondary("d2d4", 80, "e2e4", intPtr(-100)))

			res, err := a.Decide(context.Background(), Request{Moves: "g1f3 g8f6"})
			require.NoError(t, err)

			assert.False(t, res.Agreed)
			assert.Equal(t, 180, res.Diff)
			assert.Equal(t, tt.wantChosen, res.Chosen)
			assert.Equal(t, tt.wantVetoed, res.Vetoed)
			require.NotNil(t, res.CandidateScore)
			assert.Equal(t, -100, res.CandidateScore.Normalized())

			sent := secondary.Sent()
			assert.Equal(t, "position startpos moves g1f3 g8f6", sent[0])
			assert.Contains(t, sent, "go movetime 500 searchmoves e2e4")
		})
	}
}

func TestValidateMissingCandidateScoreFallsBackToSecondary(t *testing.T) {
	a, primary, secondary := newTestArbiter(config.StrategyValidate, 150)
	primary.SetResponder(onGo("bestmove e2e4"))
	secondary.SetResponder(validatingSecondary("c2c4", 10, "e2e4", nil))

	res, err := a.Decide(context.Background(), Request{})
	require.NoError(t, err)

	assert.Nil(t, res.CandidateScore)
	assert.Equal(t, "c2c4", res.Chosen)
	assert.True(t, res.Vetoed)
}

func TestValidateUsesMultiPVCandidateScore(t *testing.T) {
	a, primary, secondary := newTestArbiter(config.StrategyValidate, 50)
	primary.SetResponder(onGo("bestmove e2e4"))
	secondary.SetResponder(func(cmd string) []string {
		switch {
		case strings.Contains(cmd, "searchmoves"):
			return []string{"bestmove e2e4"}
		case strings.HasPrefix(cmd, "go "):
			return []string{
				"info depth 10 multipv 1 score cp 60 pv d2d4",
				"info depth 10 multipv 2 score cp 40 pv e2e4",
				"bestmove d2d4",
			}
		}
		return nil
	})

	res, err := a.Decide(context.Background(), Request{})
	require.NoError(t, err)

	require.NotNil(t, res.CandidateScore)
	assert.Equal(t, 20, res.Diff)
	assert.Equal(t, "e2e4", res.Chosen)
}

func TestValidateEngineEOF(t *testing.T) {
	a, primary, secondary := newTestArbiter(config.StrategyValidate, 150)
	primary.SetResponder(onGo("bestmove e2e4"))
	secondary.Close()

	_, err := a.Decide(context.Background(), Request{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, uci.ErrEngineEOF))
}

func TestDualDecisions(t *testing.T) {
	tests := []struct {
		name       string
		primary    []string
		secondary  []string
		wantChosen string
		wantAgreed bool
		wantVetoed bool
	}{
		{
			name:       "agreement",
			primary:    []string{"info depth 9 score cp 10 pv e2e4", "bestmove e2e4"},
			secondary:  []string{"info depth 9 score cp 500 pv e2e4", "bestmove e2e4"},
			wantChosen: "e2e4",
			wantAgreed: true,
		},
		{
			name:       "secondary far better",
			primary:    []string{"info depth 9 score cp 10 pv e2e4", "bestmove e2e4"},
			secondary:  []string{"info depth 9 score cp 300 pv d2d4", "bestmove d2d4"},
			wantChosen: "d2d4",
			wantVetoed: true,
		},
		{
			name:       "within threshold keeps primary",
			primary:    []string{"info depth 9 score cp 10 pv e2e4", "bestmove e2e4"},
			secondary:  []string{"info depth 9 score cp 100 pv d2d4", "bestmove d2d4"},
			wantChosen: "e2e4",
		},
		{
			name:       "primary far better",
			primary:    []string{"info depth 9 score mate 3 pv e2e4", "bestmove e2e4"},
			secondary:  []string{"info depth 9 score cp 100 pv d2d4", "bestmove d2d4"},
			wantChosen: "e2e4",
		},
		{
			name:       "missing score keeps primary",
			primary:    []string{"bestmove e2e4"},
			secondary:  []string{"info depth 9 score cp 900 pv d2d4", "bestmove d2d4"},
			wantChosen: "e2e4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, primary, secondary := newTestArbiter(config.StrategyDual, 150)
			primary.SetResponder(onGo(tt.primary...))
			secondary.SetResponder(onGo(tt.secondary...))

			res, err := a.Decide(context.Background(), Request{Clock: Clock{WTime: 1000, BTime: 1000}})
			require.NoError(t, err)

			assert.Equal(t, tt.wantChosen, res.Chosen)
			assert.Equal(t, tt.wantAgreed, res.Agreed)
			assert.Equal(t, tt.wantVetoed, res.Vetoed)
			assert.Equal(t, config.StrategyDual, res.Strategy)
		})
	}
}

func TestDualDrainsBothEnginesConcurrently(t *testing.T) {
	a, primary, secondary := newTestArbiter(config.StrategyDual, 150)

	// The secondary finishes long before the primary; both searches must
	// overlap rather than run back to back.
	primary.SetLatency(150 * time.Millisecond)
	secondary.SetLatency(100 * time.Millisecond)
	primary.SetResponder(onGo("info depth 9 score cp 10 pv e2e4", "bestmove e2e4"))
	secondary.SetResponder(onGo("info depth 9 score cp 20 pv d2d4", "bestmove d2d4"))

	start := time.Now()
	res, err := a.Decide(context.Background(), Request{})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 240*time.Millisecond)
	assert.Equal(t, "e2e4", res.Chosen)
	assert.Equal(t, 1, countPrefix(primary.Sent(), "go wtime"))
	assert.Equal(t, 1, countPrefix(secondary.Sent(), "go wtime"))
}

func TestDualContextCancelled(t *testing.T) {
	a, primary, secondary := newTestArbiter(config.StrategyDual, 150)
	primary.SetResponder(onGo("bestmove e2e4"))
	// The secondary only answers once told to stop.
	secondary.SetResponder(func(cmd string) []string {
		if cmd == "stop" {
			return []string{"info depth 30 score cp 5 pv d2d4", "bestmove d2d4"}
		}
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := a.Decide(ctx, Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// Only the unfinished search is stopped, and its output is consumed.
	assert.Equal(t, 0, countPrefix(primary.Sent(), "stop"))
	assert.Equal(t, 1, countPrefix(secondary.Sent(), "stop"))
	for _, eng := range []*uci.MockEngine{primary, secondary} {
		_, ok, err := eng.Poll()
		assert.False(t, ok, eng.Name())
		assert.NoError(t, err)
	}
}

func TestSettleGivesUpOnSilentEngine(t *testing.T) {
	a, _, secondary := newTestArbiter(config.StrategyDual, 150)
	a.settleWait = 20 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := a.Decide(ctx, Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, countPrefix(secondary.Sent(), "stop"))
}

func TestEnginesReusableAfterCancelledSearch(t *testing.T) {
	for _, strategy := range []string{config.StrategyValidate, config.StrategyDual} {
		t.Run(strategy, func(t *testing.T) {
			a, primary, secondary := newTestArbiter(strategy, 150)
			primary.SetLatency(100 * time.Millisecond)
			secondary.SetLatency(100 * time.Millisecond)
			primary.SetResponder(onGo("info depth 9 score cp 10 pv a2a3", "bestmove a2a3"))
			secondary.SetResponder(onGo("info depth 9 score cp 10 pv a2a3", "bestmove a2a3"))

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			_, err := a.Decide(ctx, Request{})
			cancel()
			require.ErrorIs(t, err, context.DeadlineExceeded)

			// A stale bestmove must not answer the next search.
			primary.SetLatency(0)
			secondary.SetLatency(0)
			primary.SetResponder(onGo("info depth 9 score cp 10 pv e2e4", "bestmove e2e4"))
			secondary.SetResponder(onGo("info depth 9 score cp 10 pv e2e4", "bestmove e2e4"))

			res, err := a.Decide(context.Background(), Request{Moves: "e2e4 e7e5"})
			require.NoError(t, err)
			assert.Equal(t, "e2e4", res.Chosen)
			assert.Equal(t, "e2e4", res.Primary)
			assert.Equal(t, "e2e4", res.Secondary)
		})
	}
}

func TestDecideReportsPVAndPonder(t *testing.T) {
	a, primary, secondary := newTestArbiter(config.StrategyDual, 150)
	primary.SetResponder(onGo("info depth 9 score cp 10 pv e2e4 e7e5", "bestmove e2e4 ponder e7e5"))
	secondary.SetResponder(onGo("info depth 9 score cp 12 pv d2d4 d7d5", "bestmove d2d4 ponder d7d5"))

	res, err := a.Decide(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "e2e4", res.PrimaryPV)
	assert.Equal(t, "e7e5", res.PrimaryPonder)
	assert.Equal(t, "d2d4", res.SecondaryPV)
	assert.Equal(t, "d7d5", res.SecondaryPonder)
}

func TestDualEngineEOF(t *testing.T) {
	a, primary, secondary := newTestArbiter(config.StrategyDual, 150)
	primary.SetResponder(onGo("info depth 1 score cp 1 pv e2e4"))
	secondary.SetResponder(func(cmd string) []string {
		if strings.HasPrefix(cmd, "go ") {
			go secondary.Close()
		}
		return nil
	})

	_, err := a.Decide(context.Background(), Request{})
	assert.True(t, errors.Is(err, uci.ErrEngineEOF))
}

func TestChosenMoveAlwaysFromABestMove(t *testing.T) {
	moves := []string{"e2e4", "d2d4", "g1f3", "c2c4"}
	for _, strategy := range []string{config.StrategyValidate, config.StrategyDual} {
		for i, pm := range moves {
			for j, sm := range moves {
				a, primary, secondary := newTestArbiter(strategy, 50)
				primary.SetResponder(onGo(fmt.Sprintf("info depth 9 score cp %d pv %s", i*40, pm), "bestmove "+pm))
				secondary.SetResponder(validatingSecondary(sm, j*60, pm, intPtr(-j*30)))

				res, err := a.Decide(context.Background(), Request{})
				require.NoError(t, err)
				assert.Contains(t, []string{pm, sm}, res.Chosen, "%s: %s vs %s", strategy, pm, sm)
				assert.Equal(t, res.Chosen != pm, res.Vetoed)
			}
		}
	}
}

func TestUnknownStrategy(t *testing.T) {
	a, _, _ := newTestArbiter("coinflip", 150)
	_, err := a.Decide(context.Background(), Request{})
	assert.Error(t, err)
}
