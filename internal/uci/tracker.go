package uci

// SearchTracker folds the events of a single search. The authoritative
// opinion is the latest rank 1 (or single-PV) line; a line whose PV starts
// with Candidate is kept separately regardless of its rank.
type SearchTracker struct {
	Candidate string

	score    Score
	hasScore bool
	pvMove   string

	candidate    Score
	hasCandidate bool

	bestMove string
	ponder   string
	done     bool
}

// NewSearchTracker creates a tracker, optionally watching a candidate move.
func NewSearchTracker(candidate string) *SearchTracker {
	return &SearchTracker{Candidate: candidate}
}

// Observe folds one event and reports whether the search has ended.
func (t *SearchTracker) Observe(ev Event) bool {
	if t.done {
		return true
	}

	switch ev.Kind {
	case EventScore:
		if ev.Rank <= 1 {
			t.score = ev.Score
			t.hasScore = true
			t.pvMove = ev.Move
		}
		if t.Candidate != "" && ev.Move == t.Candidate {
			t.candidate = ev.Score
			t.hasCandidate = true
		}
	case EventBestMove:
		t.bestMove = ev.Move
		t.ponder = ev.Ponder
		t.done = true
	}

	return t.done
}

// Done reports whether bestmove has been seen.
func (t *SearchTracker) Done() bool {
	return t.done
}

// BestMove returns the move from the bestmove line.
func (t *SearchTracker) BestMove() (string, bool) {
	return t.bestMove, t.done
}

// Ponder returns the ponder move, if the engine sent one.
func (t *SearchTracker) Ponder() string {
	return t.ponder
}

// Score returns the latest top-ranked evaluation.
func (t *SearchTracker) Score() (Score, bool) {
	return t.score, t.hasScore
}

// PVMove returns the first move of the latest top-ranked line.
func (t *SearchTracker) PVMove() string {
	return t.pvMove
}

// CandidateScore returns the evaluation of the watched candidate move.
func (t *SearchTracker) CandidateScore() (Score, bool) {
	return t.candidate, t.hasCandidate
}
