package logging

import (
	"context"
	"strings"
	"testing"
)

func TestGameAndTurnIDs(t *testing.T) {
	ctx := context.Background()
	if _, ok := GameIDFromContext(ctx); ok {
		t.Fatal("Expected no game ID in empty context")
	}

	ctx = ContextWithGameID(ctx, "q7ZvsdUF")
	ctx = ContextWithTurnID(ctx, "turn_x")

	if id, ok := GameIDFromContext(ctx); !ok || id != "q7ZvsdUF" {
		t.Errorf("Expected game ID q7ZvsdUF, got %q (ok=%v)", id, ok)
	}
	if id, ok := TurnIDFromContext(ctx); !ok || id != "turn_x" {
		t.Errorf("Expected turn ID turn_x, got %q (ok=%v)", id, ok)
	}

	fields := contextFields(ctx)
	if fields["game_id"] != "q7ZvsdUF" || fields["turn_id"] != "turn_x" {
		t.Errorf("Unexpected context fields: %v", fields)
	}
}

func TestGeneratedIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateTurnID()
		if !strings.HasPrefix(id, "turn_") {
			t.Fatalf("Expected turn_ prefix, got %s", id)
		}
		if seen[id] {
			t.Fatalf("Duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
	if !strings.HasPrefix(GenerateRequestID(), "req_") {
		t.Error("Expected req_ prefix")
	}
}
