package lichess

import (
	"context"
	"encoding/json"
	"io"
	"sync"
)

// Call is one request recorded by MockClient.
type Call struct {
	Action string
	ID     string
	Arg    string
	Text   string
}

type mockPipe struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func newMockPipe() *mockPipe {
	r, w := io.Pipe()
	return &mockPipe{r: r, w: w}
}

// MockClient is an in-memory implementation of API for testing. Streams are
// fed through pipes: each Send blocks until the consumer reads the line.
type MockClient struct {
	mu     sync.Mutex
	calls  []Call
	errs   map[string]error
	events *mockPipe
	games  map[string]*mockPipe
}

// NewMockClient creates a mock client.
func NewMockClient() *MockClient {
	return &MockClient{
		errs:   make(map[string]error),
		events: newMockPipe(),
		games:  make(map[string]*mockPipe),
	}
}

// SetError makes the given action fail with err.
func (m *MockClient) SetError(action string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[action] = err
}

// Calls returns all recorded calls.
func (m *MockClient) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallsFor returns the recorded calls of one action.
func (m *MockClient) CallsFor(action string) []Call {
	var out []Call
	for _, c := range m.Calls() {
		if c.Action == action {
			out = append(out, c)
		}
	}
	return out
}

func (m *MockClient) record(c Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
	return m.errs[c.Action]
}

func (m *MockClient) game(gameID string) *mockPipe {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.games[gameID]
	if !ok {
		p = newMockPipe()
		m.games[gameID] = p
	}
	return p
}

// SendEvent writes one account event as a JSON line.
func (m *MockClient) SendEvent(v interface{}) error {
	return writeJSONLine(m.events.w, v)
}

// SendEventLine writes a raw account stream line.
func (m *MockClient) SendEventLine(line string) error {
	_, err := io.WriteString(m.events.w, line+"\n")
	return err
}

// CloseEvents ends the account stream.
func (m *MockClient) CloseEvents() {
	_ = m.events.w.Close()
}

// SendGame writes one game event as a JSON line.
func (m *MockClient) SendGame(gameID string, v interface{}) error {
	return writeJSONLine(m.game(gameID).w, v)
}

// SendGameLine writes a raw game stream line.
func (m *MockClient) SendGameLine(gameID, line string) error {
	_, err := io.WriteString(m.game(gameID).w, line+"\n")
	return err
}

// CloseGame ends a game stream.
func (m *MockClient) CloseGame(gameID string) {
	_ = m.game(gameID).w.Close()
}

func writeJSONLine(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// StreamEvents implements API.
func (m *MockClient) StreamEvents(ctx context.Context) (*Stream, error) {
	if err := m.record(Call{Action: "stream_events"}); err != nil {
		return nil, err
	}
	return NewStream(m.events.r), nil
}

// StreamGame implements API.
func (m *MockClient) StreamGame(ctx context.Context, gameID string) (*Stream, error) {
	if err := m.record(Call{Action: "stream_game", ID: gameID}); err != nil {
		return nil, err
	}
	return NewStream(m.game(gameID).r), nil
}

// AcceptChallenge implements API.
func (m *MockClient) AcceptChallenge(ctx context.Context, challengeID string) error {
	return m.record(Call{Action: "accept", ID: challengeID})
}

// DeclineChallenge implements API.
func (m *MockClient) DeclineChallenge(ctx context.Context, challengeID, reason string) error {
	return m.record(Call{Action: "decline", ID: challengeID, Arg: reason})
}

// Move implements API.
func (m *MockClient) Move(ctx context.Context, gameID, move string) error {
	return m.record(Call{Action: "move", ID: gameID, Arg: move})
}

// Resign implements API.
func (m *MockClient) Resign(ctx context.Context, gameID string) error {
	return m.record(Call{Action: "resign", ID: gameID})
}

// Abort implements API.
func (m *MockClient) Abort(ctx context.Context, gameID string) error {
	return m.record(Call{Action: "abort", ID: gameID})
}

// Chat implements API.
func (m *MockClient) Chat(ctx context.Context, gameID, room, text string) error {
	return m.record(Call{Action: "chat", ID: gameID, Arg: room, Text: text})
}
