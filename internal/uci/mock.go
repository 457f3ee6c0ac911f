package uci

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Responder returns the output lines an engine would print for a command.
type Responder func(command string) []string

// MockEngine is a scripted implementation of EngineInterface for testing.
type MockEngine struct {
	name  string
	inbox *inbox

	mu        sync.Mutex
	sent      []string
	responder Responder
	latency   time.Duration
	sendErr   error
}

// NewMockEngine creates a mock engine with the given name.
func NewMockEngine(name string) *MockEngine {
	return &MockEngine{
		name:  name,
		inbox: newInbox(),
	}
}

// SetResponder sets the script used to answer commands.
func (m *MockEngine) SetResponder(r Responder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responder = r
}

// SetLatency delays delivery of responses, simulating a search in progress.
func (m *MockEngine) SetLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency = d
}

// SetSendError makes every Send fail with err.
func (m *MockEngine) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// Emit queues raw output lines as if the engine printed them.
func (m *MockEngine) Emit(lines ...string) {
	for _, line := range lines {
		if ev, ok := ParseLine(line); ok {
			m.inbox.push(ev)
		}
	}
}

// Close simulates the engine's stdout reaching EOF.
func (m *MockEngine) Close() {
	m.inbox.close(fmt.Errorf("%w: %s", ErrEngineEOF, m.name))
}

// Sent returns a copy of the commands received so far.
func (m *MockEngine) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	copy(out, m.sent)
	return out
}

// Name implements EngineInterface.
func (m *MockEngine) Name() string {
	return m.name
}

// Send implements EngineInterface.
func (m *MockEngine) Send(command string) error {
	if err := m.inbox.failure(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.sendErr != nil {
		err := m.sendErr
		m.mu.Unlock()
		return err
	}
	m.sent = append(m.sent, command)
	responder := m.responder
	latency := m.latency
	m.mu.Unlock()

	if responder == nil {
		return nil
	}
	lines := responder(command)
	if len(lines) == 0 {
		return nil
	}

	if latency > 0 {
		go func() {
			time.Sleep(latency)
			m.Emit(lines...)
		}()
		return nil
	}
	m.Emit(lines...)
	return nil
}

// Next implements EngineInterface.
func (m *MockEngine) Next(ctx context.Context) (Event, error) {
	return m.inbox.next(ctx)
}

// Poll implements EngineInterface.
func (m *MockEngine) Poll() (Event, bool, error) {
	return m.inbox.poll()
}

// NewGame implements EngineInterface.
func (m *MockEngine) NewGame() error {
	return m.Send("ucinewgame")
}

// Err returns the close error once Close has been called.
func (m *MockEngine) Err() error {
	return m.inbox.failure()
}

// Alive implements EngineInterface.
func (m *MockEngine) Alive() bool {
	return m.inbox.failure() == nil
}
