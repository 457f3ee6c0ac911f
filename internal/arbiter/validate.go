package arbiter

import (
	"context"
)

// validate lets the primary propose a move from a clock search and asks the
// secondary to check it. The secondary searches once unrestricted and, on
// disagreement, once restricted to the candidate. A candidate the secondary
// rates more than vetoCP below its own best move is replaced.
func (a *Arbiter) validate(ctx context.Context, req Request) (*Result, error) {
	position := PositionCommand(req.InitialFEN, req.Moves)

	pt, err := a.search(ctx, a.primary, position, ClockCommand(req.Clock), "", "clock")
	if err != nil {
		return nil, err
	}
	candidate, _ := pt.BestMove()

	st, err := a.search(ctx, a.secondary, position, MoveTimeCommand(a.validateMs), candidate, "validate")
	if err != nil {
		return nil, err
	}
	res := result(pt, st)
	secondary := res.Secondary

	if secondary == candidate {
		res.Agreed = true
		res.Chosen = candidate
		return res, nil
	}

	ct, err := a.search(ctx, a.secondary, position, MoveTimeCommand(a.validateMs, candidate), candidate, "searchmoves")
	if err != nil {
		return nil, err
	}

	candScore, ok := ct.CandidateScore()
	if !ok {
		// A MultiPV unrestricted search may already have scored it.
		candScore, ok = st.CandidateScore()
	}
	res.CandidateScore = scoreOf(candScore, ok)

	if res.CandidateScore == nil || res.SecondaryScore == nil {
		a.logger.WithContext(ctx).Warn("Missing score for veto check",
			"candidate", candidate,
			"has_candidate_score", res.CandidateScore != nil,
			"has_secondary_score", res.SecondaryScore != nil,
		)
		res.Chosen = candidate
		if secondary != "" {
			res.Chosen = secondary
		}
		res.Vetoed = res.Chosen != candidate
		return res, nil
	}

	res.Diff = res.SecondaryScore.Normalized() - res.CandidateScore.Normalized()
	res.Chosen = candidate
	if res.Diff > a.vetoCP {
		res.Chosen = secondary
		res.Vetoed = true
	}
	return res, nil
}
