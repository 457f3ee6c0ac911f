// Package scheduler gates the bot to a single active game.
package scheduler

import (
	"fmt"
	"sync"

	"github.com/dmmcquay/chess-arbiter/internal/config"
	"github.com/dmmcquay/chess-arbiter/internal/logging"
	"github.com/dmmcquay/chess-arbiter/internal/metrics"
)

// Scheduler owns the active-game slot.
type Scheduler struct {
	policy  config.ChallengeConfig
	logger  logging.ContextLogger
	metrics *metrics.PrometheusCollector

	mu     sync.Mutex
	active string
}

// New creates a scheduler with an empty slot.
func New(policy config.ChallengeConfig, logger logging.ContextLogger) *Scheduler {
	return &Scheduler{
		policy:  policy,
		logger:  logger,
		metrics: metrics.NewPrometheusCollector(),
	}
}

// TryAdmit claims the slot for gameID. It fails if any game holds it,
// including gameID itself.
func (s *Scheduler) TryAdmit(gameID string) bool {
	s.mu.Lock()
	admitted := s.active == ""
	if admitted {
		s.active = gameID
	}
	holder := s.active
	s.mu.Unlock()

	s.metrics.RecordAdmission(admitted)
	if admitted {
		s.metrics.SetActiveGame(true)
		s.logger.Info("Game admitted", "game_id", gameID)
	} else {
		s.logger.Warn("Game admission denied", "game_id", gameID, "active", holder)
	}
	return admitted
}

// Release clears the slot if gameID still holds it.
func (s *Scheduler) Release(gameID string) bool {
	s.mu.Lock()
	released := gameID != "" && s.active == gameID
	if released {
		s.active = ""
	}
	s.mu.Unlock()

	if released {
		s.metrics.SetActiveGame(false)
		s.logger.Info("Game released", "game_id", gameID)
	}
	return released
}

// Active returns the game holding the slot, if any.
func (s *Scheduler) Active() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.active != ""
}

// Challenge is the part of an incoming challenge the policy looks at.
type Challenge struct {
	ID          string
	Challenger  string
	Variant     string
	Speed       string
	TimeControl TimeControl
}

// TimeControl of a challenge. Limit and Increment are in seconds.
type TimeControl struct {
	Type      string
	Limit     int
	Increment int
}

// Decline reasons understood by the game service.
const (
	ReasonGeneric     = "generic"
	ReasonLater       = "later"
	ReasonVariant     = "variant"
	ReasonTimeControl = "timeControl"
	ReasonTooFast     = "tooFast"
	ReasonTooSlow     = "tooSlow"
)

// Decision is the outcome of screening a challenge.
type Decision struct {
	Accept bool
	Reason string
	Detail string
}

// Screen applies the challenge policy. The slot is read under the same lock
// TryAdmit uses; accepting does not reserve it.
func (s *Scheduler) Screen(c Challenge) Decision {
	d := s.screen(c)
	reason := d.Reason
	if d.Accept {
		reason = "ok"
	}
	s.metrics.RecordChallenge(d.Accept, reason)
	s.logger.Info("Challenge screened",
		"challenge_id", c.ID,
		"challenger", c.Challenger,
		"accept", d.Accept,
		"reason", d.Reason,
		"detail", d.Detail,
	)
	return d
}

func (s *Scheduler) screen(c Challenge) Decision {
	if active, busy := s.Active(); busy {
		return Decision{Reason: ReasonLater, Detail: fmt.Sprintf("playing %s", active)}
	}

	p := s.policy
	if c.Variant != p.Variant {
		return Decision{Reason: ReasonVariant, Detail: fmt.Sprintf("variant %q", c.Variant)}
	}

	tc := c.TimeControl
	if tc.Type != "clock" {
		return Decision{Reason: ReasonTimeControl, Detail: fmt.Sprintf("time control %q", tc.Type)}
	}
	switch {
	case tc.Limit < p.MinLimit:
		return Decision{Reason: ReasonTooFast, Detail: fmt.Sprintf("limit %ds below %ds", tc.Limit, p.MinLimit)}
	case tc.Limit > p.MaxLimit:
		return Decision{Reason: ReasonTooSlow, Detail: fmt.Sprintf("limit %ds above %ds", tc.Limit, p.MaxLimit)}
	case tc.Increment < p.MinIncrement:
		return Decision{Reason: ReasonTooFast, Detail: fmt.Sprintf("increment %ds below %ds", tc.Increment, p.MinIncrement)}
	case tc.Increment > p.MaxIncrement:
		return Decision{Reason: ReasonTooSlow, Detail: fmt.Sprintf("increment %ds above %ds", tc.Increment, p.MaxIncrement)}
	}

	return Decision{Accept: true}
}
