// Package bot consumes the account event feed: it screens challenges,
// admits games and runs one game session at a time.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmmcquay/chess-arbiter/internal/game"
	"github.com/dmmcquay/chess-arbiter/internal/lichess"
	"github.com/dmmcquay/chess-arbiter/internal/logging"
	"github.com/dmmcquay/chess-arbiter/internal/metrics"
	"github.com/dmmcquay/chess-arbiter/internal/scheduler"
	"github.com/dmmcquay/chess-arbiter/internal/uci"
)

// ErrEventStreamClosed is returned by Run when the service ends the account
// event stream. The bot does not reconnect.
var ErrEventStreamClosed = errors.New("account event stream closed")

// ErrNoActiveGame is returned by operator actions when no game is running.
var ErrNoActiveGame = errors.New("no active game")

// Deps are the collaborators a Bot drives.
type Deps struct {
	Client    lichess.API
	Scheduler *scheduler.Scheduler
	Decider   game.Decider
	Book      game.Book
	Engines   []uci.EngineInterface
	Stats     *metrics.Collector
}

// Bot dispatches account events.
type Bot struct {
	deps   Deps
	opts   game.Options
	logger logging.ContextLogger

	streaming atomic.Bool

	wg      sync.WaitGroup
	mu      sync.Mutex
	session *game.Session
	// last is the most recently started session; it may still be unwinding
	// a search after it finished.
	last *game.Session
}

// New creates a bot. opts is applied to every game session.
func New(deps Deps, opts game.Options, logger logging.ContextLogger) *Bot {
	return &Bot{
		deps:   deps,
		opts:   opts,
		logger: logger.WithField("component", "bot"),
	}
}

// Run reads account events until the stream ends or ctx is cancelled. Game
// sessions started by Run use ctx and may outlive it returning; call Wait
// to join them.
func (b *Bot) Run(ctx context.Context) error {
	stream, err := b.deps.Client.StreamEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to open event stream: %w", err)
	}
	defer stream.Close()

	b.streaming.Store(true)
	defer b.streaming.Store(false)

	stop := context.AfterFunc(ctx, func() { _ = stream.Close() })
	defer stop()

	b.logger.Info("Listening for challenges", "account", b.opts.Account)

	for {
		var ev lichess.AccountEvent
		err := stream.Next(&ev)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return ErrEventStreamClosed
		case errors.Is(err, lichess.ErrMalformedEvent):
			b.logger.Warn("Skipping account event", "error", err)
			continue
		default:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("event stream failed: %w", err)
		}

		b.dispatch(ctx, ev)
	}
}

// Streaming reports whether Run holds an open account event stream.
func (b *Bot) Streaming() bool {
	return b.streaming.Load()
}

// Wait blocks until every game session started by Run has returned.
func (b *Bot) Wait() {
	b.wg.Wait()
}

func (b *Bot) dispatch(ctx context.Context, ev lichess.AccountEvent) {
	switch ev.Type {
	case lichess.EventChallenge:
		b.handleChallenge(ctx, ev.Challenge)
	case lichess.EventGameStart:
		b.handleGameStart(ctx, ev.Game)
	case lichess.EventGameFinish:
		if ev.Game != nil {
			b.logger.Info("Game finish reported", "game_id", ev.Game.Identifier())
		}
	case lichess.EventChallengeCanceled, lichess.EventChallengeDeclined:
		if ev.Challenge != nil {
			b.logger.Debug("Challenge withdrawn", "challenge_id", ev.Challenge.ID, "type", ev.Type)
		}
	default:
		b.logger.Debug("Ignoring account event", "type", ev.Type)
	}
}

func (b *Bot) handleChallenge(ctx context.Context, c *lichess.Challenge) {
	if c == nil {
		b.logger.Warn("Challenge event without challenge")
		return
	}

	d := b.deps.Scheduler.Screen(scheduler.Challenge{
		ID:         c.ID,
		Challenger: c.ChallengerName(),
		Variant:    c.Variant.Key,
		Speed:      c.Speed,
		TimeControl: scheduler.TimeControl{
			Type:      c.TimeControl.Type,
			Limit:     c.TimeControl.Limit,
			Increment: c.TimeControl.Increment,
		},
	})

	if d.Accept {
		if err := b.deps.Client.AcceptChallenge(ctx, c.ID); err != nil {
			b.logger.Warn("Accept failed", "challenge_id", c.ID, "error", err)
		}
		return
	}
	if err := b.deps.Client.DeclineChallenge(ctx, c.ID, d.Reason); err != nil {
		b.logger.Warn("Decline failed", "challenge_id", c.ID, "error", err)
	}
}

func (b *Bot) handleGameStart(ctx context.Context, ref *lichess.GameRef) {
	if ref == nil || ref.Identifier() == "" {
		b.logger.Warn("Game start without game id")
		return
	}
	id := ref.Identifier()

	if active, ok := b.deps.Scheduler.Active(); ok && active == id {
		b.logger.Debug("Duplicate game start", "game_id", id)
		return
	}
	if !b.deps.Scheduler.TryAdmit(id) {
		if err := b.deps.Client.Abort(ctx, id); err != nil {
			b.logger.Warn("Abort of unadmitted game failed", "game_id", id, "error", err)
		}
		return
	}

	b.mu.Lock()
	prev := b.last
	b.mu.Unlock()
	if prev != nil {
		if err := prev.WaitTurn(ctx); err != nil {
			b.logger.Warn("Gave up waiting for previous game's search", "game_id", id, "previous", prev.ID(), "error", err)
			b.deps.Scheduler.Release(id)
			return
		}
	}

	for _, eng := range b.deps.Engines {
		if err := eng.NewGame(); err != nil {
			b.logger.Error("Engine not ready for new game", "engine", eng.Name(), "game_id", id, "error", err)
			if err := b.deps.Client.Abort(ctx, id); err != nil {
				b.logger.Warn("Abort failed", "game_id", id, "error", err)
			}
			b.deps.Scheduler.Release(id)
			return
		}
	}

	s := game.NewSession(id, b.deps.Client, b.deps.Decider, b.deps.Book, b.deps.Scheduler, b.deps.Stats, b.opts, b.logger)
	b.mu.Lock()
	b.session = s
	b.last = s
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			b.logger.Error("Game session ended with error", "game_id", id, "error", err)
		}
		b.mu.Lock()
		if b.session == s {
			b.session = nil
		}
		b.mu.Unlock()
	}()
}

// Session returns the running game session, if any.
func (b *Bot) Session() (*game.Session, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session, b.session != nil
}

// Status describes the bot for operators.
type Status struct {
	Account string                 `json:"account"`
	Engines map[string]bool        `json:"engines"`
	// EngineUptime is reported for engines that track it.
	EngineUptime map[string]string `json:"engine_uptime,omitempty"`
	Game    *game.Status           `json:"game,omitempty"`
	Stats   map[string]interface{} `json:"stats,omitempty"`
}

// Status returns a snapshot of the bot, its engines and the active game.
func (b *Bot) Status() Status {
	st := Status{
		Account: b.opts.Account,
		Engines: make(map[string]bool, len(b.deps.Engines)),
	}
	for _, eng := range b.deps.Engines {
		st.Engines[eng.Name()] = eng.Alive()
		if u, ok := eng.(interface{ Uptime() time.Duration }); ok {
			if st.EngineUptime == nil {
				st.EngineUptime = make(map[string]string, len(b.deps.Engines))
			}
			st.EngineUptime[eng.Name()] = u.Uptime().Round(time.Second).String()
		}
	}
	if s, ok := b.Session(); ok {
		gs := s.Status()
		st.Game = &gs
	}
	if b.deps.Stats != nil {
		st.Stats = b.deps.Stats.GetStats()
	}
	return st
}

// Resign resigns the active game.
func (b *Bot) Resign(ctx context.Context) error {
	s, ok := b.Session()
	if !ok {
		return ErrNoActiveGame
	}
	return s.Resign(ctx)
}

// Abort aborts the active game.
func (b *Bot) Abort(ctx context.Context) error {
	s, ok := b.Session()
	if !ok {
		return ErrNoActiveGame
	}
	return s.Abort(ctx)
}

// Say posts text to the active game's spectator chat.
func (b *Bot) Say(ctx context.Context, text string) error {
	s, ok := b.Session()
	if !ok {
		return ErrNoActiveGame
	}
	return s.Say(ctx, text)
}
