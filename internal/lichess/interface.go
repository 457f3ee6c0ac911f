package lichess

import "context"

// API is the subset of the game service the bot uses.
// This allows for mocking in tests.
type API interface {
	StreamEvents(ctx context.Context) (*Stream, error)
	StreamGame(ctx context.Context, gameID string) (*Stream, error)
	AcceptChallenge(ctx context.Context, challengeID string) error
	DeclineChallenge(ctx context.Context, challengeID, reason string) error
	Move(ctx context.Context, gameID, move string) error
	Resign(ctx context.Context, gameID string) error
	Abort(ctx context.Context, gameID string) error
	Chat(ctx context.Context, gameID, room, text string) error
}

var (
	_ API = (*Client)(nil)
	_ API = (*MockClient)(nil)
)
