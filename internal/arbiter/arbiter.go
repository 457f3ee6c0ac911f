package arbiter

import (
	"context"
	"fmt"
	"time"

	"github.com/dmmcquay/chess-arbiter/internal/config"
	"github.com/dmmcquay/chess-arbiter/internal/logging"
	"github.com/dmmcquay/chess-arbiter/internal/metrics"
	"github.com/dmmcquay/chess-arbiter/internal/uci"
)

// Request describes the position to move in.
type Request struct {
	InitialFEN string
	Moves      string
	Clock      Clock
}

// Result is the outcome of one arbitration. Chosen is always the verbatim
// bestmove token of one of the two engines.
type Result struct {
	Chosen    string
	Primary   string
	Secondary string
	Agreed    bool
	Vetoed    bool

	PrimaryScore   *uci.Score
	SecondaryScore *uci.Score
	// PrimaryPV and SecondaryPV are the first moves of each engine's
	// top-ranked line; the ponder fields echo the bestmove lines.
	PrimaryPV       string
	SecondaryPV     string
	PrimaryPonder   string
	SecondaryPonder string
	// CandidateScore is the secondary's evaluation of the primary's move.
	CandidateScore *uci.Score
	// Diff is the score gap that was compared against the veto threshold.
	Diff int

	Strategy string
	Elapsed  time.Duration
}

// Arbiter chooses between two engines' moves.
type Arbiter struct {
	primary   uci.EngineInterface
	secondary uci.EngineInterface

	strategy     string
	vetoCP       int
	validateMs   int
	pollInterval time.Duration
	settleWait   time.Duration

	logger  logging.ContextLogger
	metrics *metrics.PrometheusCollector
}

// settleTimeout bounds how long an abandoned search may take to report its
// bestmove after "stop".
const settleTimeout = 5 * time.Second

// New creates an arbiter. cfg is expected to be validated.
func New(primary, secondary uci.EngineInterface, cfg config.ArbiterConfig, logger logging.ContextLogger) *Arbiter {
	poll := time.Duration(cfg.PollIntervalMs) * time.Millisecond
	if poll <= 0 {
		poll = time.Millisecond
	}
	return &Arbiter{
		primary:      primary,
		secondary:    secondary,
		strategy:     cfg.Strategy,
		vetoCP:       cfg.VetoCP,
		validateMs:   cfg.ValidateMoveTimeMs,
		pollInterval: poll,
		settleWait:   settleTimeout,
		logger:       logger,
		metrics:      metrics.NewPrometheusCollector(),
	}
}

// Strategy returns the configured strategy name.
func (a *Arbiter) Strategy() string {
	return a.strategy
}

// VetoCP returns the veto threshold in centipawns.
func (a *Arbiter) VetoCP() int {
	return a.vetoCP
}

// Decide runs the configured strategy for one turn.
func (a *Arbiter) Decide(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	var (
		res *Result
		err error
	)
	switch a.strategy {
	case config.StrategyDual:
		res, err = a.dual(ctx, req)
	case config.StrategyValidate, "":
		res, err = a.validate(ctx, req)
	default:
		return nil, fmt.Errorf("unknown arbiter strategy %q", a.strategy)
	}
	if err != nil {
		return nil, err
	}

	res.Strategy = a.strategy
	if res.Strategy == "" {
		res.Strategy = config.StrategyValidate
	}
	res.Elapsed = time.Since(start)

	a.metrics.RecordDecision(res.Strategy, res.Agreed, res.Vetoed, res.Elapsed.Seconds())
	a.logger.WithContext(ctx).Info("Move decided",
		"strategy", res.Strategy,
		"chosen", res.Chosen,
		a.primary.Name(), res.Primary,
		a.secondary.Name(), res.Secondary,
		"agreed", res.Agreed,
		"vetoed", res.Vetoed,
		"diff", res.Diff,
		"primary_pv", res.PrimaryPV,
		"primary_ponder", res.PrimaryPonder,
		"secondary_pv", res.SecondaryPV,
		"secondary_ponder", res.SecondaryPonder,
		"elapsed_ms", res.Elapsed.Milliseconds(),
	)

	return res, nil
}

// search runs one blocking search and folds its events. A search abandoned
// because ctx ended is stopped and settled before search returns.
func (a *Arbiter) search(ctx context.Context, eng uci.EngineInterface, position, goCmd, candidate, kind string) (*uci.SearchTracker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	if err := eng.Send(position); err != nil {
		return nil, fmt.Errorf("%s: %w", eng.Name(), err)
	}
	if err := eng.Send(goCmd); err != nil {
		return nil, fmt.Errorf("%s: %w", eng.Name(), err)
	}

	tr := uci.NewSearchTracker(candidate)
	for !tr.Done() {
		ev, err := eng.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				a.settle(ctx, eng)
			}
			return nil, fmt.Errorf("%s search failed: %w", eng.Name(), err)
		}
		tr.Observe(ev)
	}

	a.metrics.RecordSearch(eng.Name(), kind, time.Since(start).Seconds())
	return tr, nil
}

func scoreOf(s uci.Score, ok bool) *uci.Score {
	if !ok {
		return nil
	}
	return &s
}

// settle sends "stop" and discards output up to the search's bestmove so the
// next consumer of eng starts from a clean inbox.
func (a *Arbiter) settle(ctx context.Context, eng uci.EngineInterface) {
	logger := a.logger.WithContext(ctx)
	if err := eng.Send("stop"); err != nil {
		logger.Warn("Failed to stop abandoned search", "engine", eng.Name(), "error", err)
		return
	}

	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.settleWait)
	defer cancel()

	discarded := 0
	for {
		ev, err := eng.Next(waitCtx)
		if err != nil {
			logger.Warn("Abandoned search did not settle", "engine", eng.Name(), "discarded", discarded, "error", err)
			return
		}
		discarded++
		if ev.Kind == uci.EventBestMove {
			logger.Debug("Abandoned search settled", "engine", eng.Name(), "discarded", discarded)
			return
		}
	}
}

// result fills the per-engine fields shared by both strategies.
func result(pt, st *uci.SearchTracker) *Result {
	primary, _ := pt.BestMove()
	secondary, _ := st.BestMove()
	return &Result{
		Primary:         primary,
		Secondary:       secondary,
		PrimaryScore:    scoreOf(pt.Score()),
		SecondaryScore:  scoreOf(st.Score()),
		PrimaryPV:       pt.PVMove(),
		SecondaryPV:     st.PVMove(),
		PrimaryPonder:   pt.Ponder(),
		SecondaryPonder: st.Ponder(),
	}
}
