package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmmcquay/chess-arbiter/internal/config"
	"github.com/dmmcquay/chess-arbiter/internal/logging"
	"github.com/dmmcquay/chess-arbiter/internal/metrics"
)

// ErrEngineEOF is returned once an engine's stdout has closed. The engine is
// not restarted.
var ErrEngineEOF = errors.New("engine output closed")

const (
	stopTimeout = 5 * time.Second

	// Engine stderr sinks rotate small; they only exist for post-mortems.
	stderrMaxSizeMB  = 10
	stderrMaxBackups = 1
)

// Engine manages one UCI engine process.
type Engine struct {
	config  config.EngineConfig
	logger  logging.ContextLogger
	metrics *metrics.PrometheusCollector

	cmd   *exec.Cmd
	stdin io.WriteCloser
	sink  io.Closer

	// writeMu serializes writers so command lines never interleave.
	writeMu sync.Mutex

	inbox *inbox

	mu      sync.Mutex
	running bool
	started time.Time
}

// NewEngine creates an engine for the given configuration. Nothing is
// spawned until Start.
func NewEngine(cfg config.EngineConfig, logger logging.ContextLogger) *Engine {
	return &Engine{
		config:  cfg,
		logger:  logger.WithField("engine", cfg.Name),
		metrics: metrics.NewPrometheusCollector(),
		inbox:   newInbox(),
	}
}

// Name returns the engine's short name.
func (e *Engine) Name() string {
	return e.config.Name
}

// Start spawns the process, sends "uci" and applies the option map.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine %s already running", e.config.Name)
	}

	cmd := exec.CommandContext(ctx, e.config.Command, e.config.Args...) // #nosec G204 -- command is validated configuration

	stdin, err := cmd.StdinPipe()
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	var sink io.Writer = io.Discard
	if e.config.StderrLog != "" {
		fw, err := logging.NewFileWriter(e.config.StderrLog, stderrMaxSizeMB, stderrMaxBackups, 0)
		if err != nil {
			e.mu.Unlock()
			return fmt.Errorf("failed to open stderr log for %s: %w", e.config.Name, err)
		}
		sink = fw
		e.sink = fw
	}

	if err := cmd.Start(); err != nil {
		e.mu.Unlock()
		e.closeSink()
		return fmt.Errorf("failed to start engine %s: %w", e.config.Name, err)
	}

	e.cmd = cmd
	e.attach(stdin, stdout, stderr, sink)
	e.mu.Unlock()

	e.logger.Info("Engine started",
		"command", e.config.Command,
		"pid", cmd.Process.Pid,
	)

	if err := e.handshake(); err != nil {
		_ = e.Stop()
		return fmt.Errorf("failed to configure engine %s: %w", e.config.Name, err)
	}
	return nil
}

// attach wires the process streams. Callers hold e.mu.
func (e *Engine) attach(stdin io.WriteCloser, stdout, stderr io.Reader, sink io.Writer) {
	e.stdin = stdin
	e.running = true
	e.started = time.Now()
	e.metrics.RecordEngineStatus(e.config.Name, true)

	go e.readStdout(stdout)
	if stderr != nil {
		go e.readStderr(stderr, sink)
	}
}

// handshake sends "uci" followed by setoption lines in key order.
func (e *Engine) handshake() error {
	if err := e.Send("uci"); err != nil {
		return err
	}

	keys := make([]string, 0, len(e.config.Options))
	for k := range e.config.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := e.Send(fmt.Sprintf("setoption name %s value %s", k, e.config.Options[k])); err != nil {
			return err
		}
	}
	return nil
}

// Send writes a single command line.
func (e *Engine) Send(command string) error {
	command = strings.TrimSpace(command)
	if command == "" {
		return fmt.Errorf("empty command for engine %s", e.config.Name)
	}
	if !isCommandLine(command) {
		return fmt.Errorf("command for engine %s must be one line of printable ASCII: %q", e.config.Name, command)
	}
	if err := e.inbox.failure(); err != nil {
		return err
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if e.stdin == nil {
		return fmt.Errorf("engine %s not started", e.config.Name)
	}
	if _, err := io.WriteString(e.stdin, command+"\n"); err != nil {
		return fmt.Errorf("failed to write to engine %s: %w", e.config.Name, err)
	}

	e.logger.Debug("Engine command", "command", command)
	return nil
}

func isCommandLine(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

// Next blocks until an event arrives, the engine reaches EOF or ctx ends.
func (e *Engine) Next(ctx context.Context) (Event, error) {
	return e.inbox.next(ctx)
}

// Poll returns a queued event without blocking.
func (e *Engine) Poll() (Event, bool, error) {
	return e.inbox.poll()
}

// NewGame tells the engine a new game begins.
func (e *Engine) NewGame() error {
	return e.Send("ucinewgame")
}

// Alive reports whether the engine is running with its output open.
func (e *Engine) Alive() bool {
	e.mu.Lock()
	running := e.running
	e.mu.Unlock()
	return running && e.inbox.failure() == nil
}

// Err returns ErrEngineEOF (wrapped) once output has closed.
func (e *Engine) Err() error {
	return e.inbox.failure()
}

// Uptime returns how long the engine has been running.
func (e *Engine) Uptime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return 0
	}
	return time.Since(e.started)
}

// Stop sends "quit" and waits for the process, killing it on timeout.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	cmd := e.cmd
	e.mu.Unlock()

	_ = e.Send("quit")

	e.writeMu.Lock()
	if e.stdin != nil {
		_ = e.stdin.Close()
	}
	e.writeMu.Unlock()

	if cmd != nil && cmd.Process != nil {
		done := make(chan error, 1)
		go func() {
			done <- cmd.Wait()
		}()

		select {
		case err := <-done:
			if err != nil {
				e.logger.Warn("Engine exited with error", "error", err)
			}
		case <-time.After(stopTimeout):
			e.logger.Warn("Engine did not quit in time, killing")
			_ = cmd.Process.Kill()
			<-done
		}
	}

	e.closeSink()
	e.metrics.RecordEngineStatus(e.config.Name, false)
	e.logger.Info("Engine stopped")
	return nil
}

func (e *Engine) closeSink() {
	if e.sink != nil {
		_ = e.sink.Close()
		e.sink = nil
	}
}

// readStdout parses engine output into the inbox until EOF.
func (e *Engine) readStdout(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		ev, ok := ParseLine(line)
		if !ok {
			e.logger.Debug("Engine output", "line", line)
			e.metrics.RecordUnparsedLine(e.config.Name)
			continue
		}
		e.inbox.push(ev)
	}

	if err := scanner.Err(); err != nil {
		e.logger.Error("Failed to read engine output", "error", err)
	}

	e.mu.Lock()
	expected := !e.running
	e.mu.Unlock()
	if expected {
		e.logger.Info("Engine output closed")
	} else {
		e.logger.Error("Engine output reached EOF")
		e.metrics.RecordEngineEOF(e.config.Name)
	}

	e.inbox.close(fmt.Errorf("%w: %s", ErrEngineEOF, e.config.Name))
}

// readStderr drains stderr into the sink so the engine never blocks on it.
func (e *Engine) readStderr(r io.Reader, sink io.Writer) {
	if _, err := io.Copy(sink, r); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		e.logger.Debug("Engine stderr drain ended", "error", err)
	}
}
