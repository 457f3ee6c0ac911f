package arbiter

import (
	"context"
	"fmt"
	"time"

	"github.com/dmmcquay/chess-arbiter/internal/uci"
)

// dual runs both engines on the same clock search concurrently. Neither
// engine's inbox is waited on exclusively: both are drained without blocking
// on every pass, sleeping pollInterval between passes, until both searches
// end. A score more than vetoCP above the other engine's wins; otherwise the
// primary's move is played.
func (a *Arbiter) dual(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	position := PositionCommand(req.InitialFEN, req.Moves)
	goCmd := ClockCommand(req.Clock)
	start := time.Now()

	for _, eng := range []uci.EngineInterface{a.primary, a.secondary} {
		if err := eng.Send(position); err != nil {
			return nil, fmt.Errorf("%s: %w", eng.Name(), err)
		}
		if err := eng.Send(goCmd); err != nil {
			return nil, fmt.Errorf("%s: %w", eng.Name(), err)
		}
	}

	pt := uci.NewSearchTracker("")
	st := uci.NewSearchTracker("")
	for {
		if err := drain(a.primary, pt); err != nil {
			return nil, err
		}
		if err := drain(a.secondary, st); err != nil {
			return nil, err
		}
		if pt.Done() && st.Done() {
			break
		}

		select {
		case <-ctx.Done():
			for _, p := range []struct {
				eng uci.EngineInterface
				tr  *uci.SearchTracker
			}{{a.primary, pt}, {a.secondary, st}} {
				if !p.tr.Done() {
					a.settle(ctx, p.eng)
				}
			}
			return nil, ctx.Err()
		case <-time.After(a.pollInterval):
		}
	}

	elapsed := time.Since(start).Seconds()
	a.metrics.RecordSearch(a.primary.Name(), "dual", elapsed)
	a.metrics.RecordSearch(a.secondary.Name(), "dual", elapsed)

	res := result(pt, st)
	primary, secondary := res.Primary, res.Secondary
	res.Chosen = primary

	if primary == secondary {
		res.Agreed = true
		return res, nil
	}
	if res.PrimaryScore == nil || res.SecondaryScore == nil {
		return res, nil
	}

	res.Diff = res.SecondaryScore.Normalized() - res.PrimaryScore.Normalized()
	if res.Diff > a.vetoCP {
		res.Chosen = secondary
		res.Vetoed = true
	}
	return res, nil
}

// drain folds every queued event without blocking.
func drain(eng uci.EngineInterface, tr *uci.SearchTracker) error {
	for !tr.Done() {
		ev, ok, err := eng.Poll()
		if err != nil {
			return fmt.Errorf("%s search failed: %w", eng.Name(), err)
		}
		if !ok {
			return nil
		}
		tr.Observe(ev)
	}
	return nil
}
