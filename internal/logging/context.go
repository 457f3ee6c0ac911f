package logging

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	gameIDKey contextKey = "game_id"
	turnIDKey contextKey = "turn_id"
)

// ContextWithGameID tags the context with the game being played.
func ContextWithGameID(ctx context.Context, gameID string) context.Context {
	return context.WithValue(ctx, gameIDKey, gameID)
}

// GameIDFromContext retrieves the game ID from the context.
func GameIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(gameIDKey).(string)
	return id, ok
}

// ContextWithTurnID tags the context with one of our turns within a game.
func ContextWithTurnID(ctx context.Context, turnID string) context.Context {
	return context.WithValue(ctx, turnIDKey, turnID)
}

// TurnIDFromContext retrieves the turn ID from the context.
func TurnIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(turnIDKey).(string)
	return id, ok
}

// GenerateTurnID returns a new unique turn ID.
func GenerateTurnID() string {
	return "turn_" + uuid.NewString()
}

// GenerateRequestID returns a new unique ID for operator requests.
func GenerateRequestID() string {
	return "req_" + uuid.NewString()
}

// contextFields extracts the known IDs from ctx as log fields.
func contextFields(ctx context.Context) map[string]interface{} {
	fields := make(map[string]interface{}, 2)
	if id, ok := GameIDFromContext(ctx); ok {
		fields[string(gameIDKey)] = id
	}
	if id, ok := TurnIDFromContext(ctx); ok {
		fields[string(turnIDKey)] = id
	}
	return fields
}
