// Package game drives one game from its event stream: it tracks whose turn
// it is, asks the arbiter for a move on ours and submits it.
package game

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dmmcquay/chess-arbiter/internal/arbiter"
	"github.com/dmmcquay/chess-arbiter/internal/board"
	"github.com/dmmcquay/chess-arbiter/internal/lichess"
	"github.com/dmmcquay/chess-arbiter/internal/logging"
	"github.com/dmmcquay/chess-arbiter/internal/metrics"
	"github.com/dmmcquay/chess-arbiter/internal/ratelimit"
)

// ErrColourUnknown is returned when a game state arrives before the bot's
// colour is known, i.e. the account plays neither side.
var ErrColourUnknown = errors.New("colour unknown")

// ChatCooldown is the minimum time between two answers to one chat command.
const ChatCooldown = 10 * time.Second

// Decider picks a move for a position.
type Decider interface {
	Decide(ctx context.Context, req arbiter.Request) (*arbiter.Result, error)
}

// Book suggests opening moves.
type Book interface {
	Lookup(moves string) (string, bool)
}

// Releaser gives back the active-game slot.
type Releaser interface {
	Release(gameID string) bool
}

// Options configures a Session.
type Options struct {
	Account         string
	LatencyBufferMs int
	MinClockMs      int
	// VetoerName names the engine credited with vetoes in chat.
	VetoerName string
	// Settings is the reply to "!settings".
	Settings     string
	ChatCooldown time.Duration
}

// Status is a snapshot of a session for operators.
type Status struct {
	ID        string            `json:"id"`
	State     string            `json:"state"`
	Colour    string            `json:"colour"`
	Opponent  string            `json:"opponent"`
	MoveCount int               `json:"move_count"`
	Moves     string            `json:"moves"`
	Started   time.Time         `json:"started"`
	Stats     metrics.GameStats `json:"stats"`
}

// Session plays one game.
type Session struct {
	id       string
	client   lichess.API
	decider  Decider
	book     Book
	releaser Releaser
	stats    *metrics.Collector
	opts     Options
	logger   logging.ContextLogger
	metrics  *metrics.PrometheusCollector

	chat      map[string]func() string
	cooldowns *ratelimit.Cooldowns

	mu         sync.Mutex
	state      State
	colour     Colour
	initialFEN string
	moves      string
	moveCount  int
	opponent   string
	started    time.Time

	// turnCancel and turnDone are set while a turn is in flight.
	turnCancel context.CancelFunc
	turnDone   chan struct{}
}

// NewSession creates a session for an admitted game. book may be nil.
func NewSession(id string, client lichess.API, decider Decider, book Book, releaser Releaser,
	stats *metrics.Collector, opts Options, logger logging.ContextLogger) *Session {
	if opts.MinClockMs < 1 {
		opts.MinClockMs = 1
	}
	if opts.VetoerName == "" {
		opts.VetoerName = "The secondary engine"
	}

	s := &Session{
		id:         id,
		client:     client,
		decider:    decider,
		book:       book,
		releaser:   releaser,
		stats:      stats,
		opts:       opts,
		logger:     logger.WithField("game_id", id),
		metrics:    metrics.NewPrometheusCollector(),
		cooldowns:  ratelimit.NewCooldowns(opts.ChatCooldown),
		state:      AwaitingFullDescription,
		initialFEN: arbiter.StartPos,
		started:    time.Now(),
	}
	s.chat = map[string]func() string{
		"!commands": s.sayCommands,
		"!vetoes":   s.sayVetoes,
		"!settings": s.saySettings,
	}
	return s
}

// ID returns the game id.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Finished {
		s.state = state
	}
}

// Status returns an operator snapshot.
func (s *Session) Status() Status {
	s.mu.Lock()
	st := Status{
		ID:        s.id,
		State:     s.state.String(),
		Colour:    s.colour.String(),
		Opponent:  s.opponent,
		MoveCount: s.moveCount,
		Moves:     s.moves,
		Started:   s.started,
	}
	s.mu.Unlock()

	if s.stats != nil {
		st.Stats = s.stats.Game(s.id)
	}
	return st
}

// Run consumes the game stream until it closes, the session finishes or
// ctx ends. The session is always Finished when Run returns.
func (s *Session) Run(ctx context.Context) error {
	ctx = logging.ContextWithGameID(ctx, s.id)
	defer s.finish(ctx, "stream_closed")

	stream, err := s.client.StreamGame(ctx, s.id)
	if err != nil {
		return fmt.Errorf("failed to open game stream: %w", err)
	}
	defer stream.Close()

	// Unblock the stream read on shutdown.
	stop := context.AfterFunc(ctx, func() { _ = stream.Close() })
	defer stop()

	for s.State() != Finished {
		var ev lichess.GameEvent
		err := stream.Next(&ev)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			s.logger.Info("Game stream closed")
			return nil
		case errors.Is(err, lichess.ErrMalformedEvent):
			s.logger.Warn("Skipping game event", "error", err)
			continue
		default:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("game stream failed: %w", err)
		}
		if s.State() == Finished {
			return nil
		}

		if err := s.handle(ctx, ev); err != nil {
			s.logger.Error("Game session failed", "error", err)
			_ = s.Abort(ctx)
			return err
		}
	}
	return nil
}

func (s *Session) handle(ctx context.Context, ev lichess.GameEvent) error {
	switch ev.Type {
	case lichess.EventGameFull:
		return s.handleFull(ctx, ev)
	case lichess.EventGameState:
		return s.handleState(ctx, ev.GameState)
	case lichess.EventChatLine:
		s.handleChat(ctx, ev)
	default:
		s.logger.Debug("Ignoring game event", "type", ev.Type)
	}
	return nil
}

func (s *Session) handleFull(ctx context.Context, ev lichess.GameEvent) error {
	s.mu.Lock()
	if ev.InitialFEN != "" {
		s.initialFEN = ev.InitialFEN
	}
	if strings.EqualFold(ev.White.Name, s.opts.Account) {
		s.colour = White
		s.opponent = playerName(ev.Black)
	}
	if strings.EqualFold(ev.Black.Name, s.opts.Account) {
		s.colour = Black
		s.opponent = playerName(ev.White)
	}
	colour := s.colour
	if s.state == AwaitingFullDescription {
		s.state = Idle
	}
	s.mu.Unlock()

	s.logger.Info("Game full description",
		"white", playerName(ev.White),
		"black", playerName(ev.Black),
		"colour", colour.String(),
		"initial_fen", ev.InitialFEN,
	)

	if ev.State == nil {
		return nil
	}
	return s.handleState(ctx, *ev.State)
}

func playerName(p lichess.Player) string {
	if p.Name != "" {
		return p.Name
	}
	if p.AILevel > 0 {
		return fmt.Sprintf("Stockfish level %d", p.AILevel)
	}
	return "?"
}

func (s *Session) handleState(ctx context.Context, st lichess.GameState) error {
	moves := strings.Fields(st.Moves)

	s.mu.Lock()
	colour := s.colour
	s.moves = strings.Join(moves, " ")
	s.moveCount = len(moves)
	initialFEN := s.initialFEN
	s.mu.Unlock()

	if colour == ColourUnset {
		return fmt.Errorf("game state with %d moves: %w", len(moves), ErrColourUnknown)
	}
	if st.Status != "" && st.Status != "started" && st.Status != "created" {
		s.logger.Info("Game over", "status", st.Status, "winner", st.Winner)
		return nil
	}
	if !colour.ToMove(len(moves)) {
		return nil
	}

	if len(moves) > 0 {
		s.logger.Info("Opponent played", "move", board.LastMoveSAN(initialFEN, st.Moves))
	}

	turnCtx, endTurn, ok := s.beginTurn(ctx)
	if !ok {
		return nil
	}
	defer endTurn()
	turnCtx = logging.ContextWithTurnID(turnCtx, logging.GenerateTurnID())
	start := time.Now()

	move, turn, err := s.choose(turnCtx, initialFEN, st)
	if s.State() == Finished {
		s.logger.WithContext(turnCtx).Info("Turn abandoned", "move", move, "error", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("move %d: %w", len(moves)+1, err)
	}
	turn.Duration = time.Since(start)

	if err := s.client.Move(turnCtx, s.id, move); err != nil {
		// Remote rejections are logged by the client and not retried.
		s.logger.WithContext(turnCtx).Warn("Move not accepted", "move", move, "error", err)
	}
	s.setState(MoveSubmitted)

	s.metrics.RecordMove(turn.Source)
	if s.stats != nil {
		s.stats.RecordTurn(s.id, turn)
	}
	s.logger.WithContext(turnCtx).Info("Played",
		"move", move,
		"san", board.MoveSAN(initialFEN, st.Moves, move),
		"source", turn.Source,
		"think_ms", turn.Duration.Milliseconds(),
	)

	s.setState(Idle)
	return nil
}

// beginTurn enters Thinking with a context that finish cancels. It reports
// false once the session has finished.
func (s *Session) beginTurn(ctx context.Context) (context.Context, func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Finished {
		return nil, nil, false
	}

	turnCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.state = Thinking
	s.turnCancel = cancel
	s.turnDone = done

	return turnCtx, func() {
		cancel()
		s.mu.Lock()
		s.turnCancel = nil
		s.turnDone = nil
		s.mu.Unlock()
		close(done)
	}, true
}

// WaitTurn blocks until no turn is in flight, so the engines are free for
// another game.
func (s *Session) WaitTurn(ctx context.Context) error {
	s.mu.Lock()
	done := s.turnDone
	s.mu.Unlock()
	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// choose consults the book, when the game began from the standard position,
// and otherwise the arbiter.
func (s *Session) choose(ctx context.Context, initialFEN string, st lichess.GameState) (string, metrics.Turn, error) {
	if s.book != nil && arbiter.IsStartPos(initialFEN) {
		if move, ok := s.book.Lookup(st.Moves); ok {
			return move, metrics.Turn{Source: metrics.SourceBook}, nil
		}
	}

	res, err := s.decider.Decide(ctx, arbiter.Request{
		InitialFEN: initialFEN,
		Moves:      st.Moves,
		Clock:      CompensateClock(st, s.opts.LatencyBufferMs, s.opts.MinClockMs),
	})
	if err != nil {
		return "", metrics.Turn{}, err
	}
	if res.Vetoed {
		s.logger.WithContext(ctx).Info("Primary move vetoed", "primary", res.Primary, "played", res.Chosen, "diff", res.Diff)
	}
	return res.Chosen, metrics.Turn{Source: metrics.SourceArbiter, Agreed: res.Agreed, Vetoed: res.Vetoed}, nil
}

// Resign resigns the game and finishes the session.
func (s *Session) Resign(ctx context.Context) error {
	s.logger.Info("Resigning game")
	err := s.client.Resign(ctx, s.id)
	s.finish(ctx, "resigned")
	return err
}

// Abort aborts the game and finishes the session.
func (s *Session) Abort(ctx context.Context) error {
	s.logger.Info("Aborting game")
	err := s.client.Abort(ctx, s.id)
	s.finish(ctx, "aborted")
	return err
}

// Say posts text to the spectator chat.
func (s *Session) Say(ctx context.Context, text string) error {
	return s.client.Chat(ctx, s.id, lichess.RoomSpectator, text)
}

// finish moves to Finished once and gives back the slot if still held.
func (s *Session) finish(ctx context.Context, reason string) {
	s.mu.Lock()
	if s.state == Finished {
		s.mu.Unlock()
		return
	}
	s.state = Finished
	cancelTurn := s.turnCancel
	s.mu.Unlock()

	// An in-flight search is stopped; WaitTurn reports when it has unwound.
	if cancelTurn != nil {
		cancelTurn()
	}

	var gs metrics.GameStats
	if s.stats != nil {
		gs = s.stats.Game(s.id)
		s.stats.Forget(s.id)
	}
	s.metrics.RecordGameFinished(reason)

	released := s.releaser.Release(s.id)
	s.logger.WithContext(ctx).Info("Game finished",
		"reason", reason,
		"moves", gs.Moves,
		"vetoes", gs.Vetoes,
		"released_slot", released,
	)
}
