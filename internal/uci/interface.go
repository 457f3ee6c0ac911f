package uci

import "context"

// EngineInterface is what the arbiter and game sessions need from an engine.
// This allows for mocking in tests.
type EngineInterface interface {
	// Name is the short identity used in logs and chat.
	Name() string

	// Send writes one command line to the engine.
	Send(command string) error

	// Next blocks until the engine produces an event.
	Next(ctx context.Context) (Event, error)

	// Poll returns the next event without blocking.
	Poll() (Event, bool, error)

	// NewGame resets engine state between games.
	NewGame() error

	// Alive reports whether the engine output is still open.
	Alive() bool
}

var (
	_ EngineInterface = (*Engine)(nil)
	_ EngineInterface = (*MockEngine)(nil)
)
