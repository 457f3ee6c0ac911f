package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/dmmcquay/chess-arbiter/internal/logging"
	"github.com/dmmcquay/chess-arbiter/internal/uci"
)

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// checkTimeout bounds each individual check.
const checkTimeout = 5 * time.Second

// Check reports a component's health. A nil error means healthy.
type Check func(ctx context.Context) error

// Component is the outcome of one check.
type Component struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Message     string    `json:"message,omitempty"`
	LastChecked time.Time `json:"last_checked"`
}

// Response is the body of /health and /ready.
type Response struct {
	Status     Status      `json:"status"`
	Timestamp  time.Time   `json:"timestamp"`
	Components []Component `json:"components,omitempty"`
	Version    string      `json:"version,omitempty"`
	GitCommit  string      `json:"git_commit,omitempty"`
}

// Checker runs the registered readiness checks.
type Checker struct {
	logger    logging.ContextLogger
	version   string
	gitCommit string

	mu     sync.RWMutex
	checks map[string]Check
}

// NewChecker creates a checker with no checks.
func NewChecker(logger logging.ContextLogger, version, gitCommit string) *Checker {
	return &Checker{
		logger:    logger,
		checks:    make(map[string]Check),
		version:   version,
		gitCommit: gitCommit,
	}
}

// RegisterCheck adds or replaces the check for a component.
func (c *Checker) RegisterCheck(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// EngineCheck fails once the engine's output stream has ended. Engines that
// record why their output closed have the cause included.
func EngineCheck(e uci.EngineInterface) Check {
	return func(ctx context.Context) error {
		if e.Alive() {
			return nil
		}
		if f, ok := e.(interface{ Err() error }); ok && f.Err() != nil {
			return fmt.Errorf("engine %s is not running: %w", e.Name(), f.Err())
		}
		return fmt.Errorf("engine %s is not running", e.Name())
	}
}

// StreamCheck fails while the account event stream is not connected.
func StreamCheck(connected func() bool) Check {
	return func(ctx context.Context) error {
		if !connected() {
			return fmt.Errorf("event stream not connected")
		}
		return nil
	}
}

// CheckHealth runs every check in parallel. Components are sorted by name.
func (c *Checker) CheckHealth(ctx context.Context) Response {
	c.mu.RLock()
	checks := make(map[string]Check, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	response := Response{
		Status:     StatusHealthy,
		Timestamp:  time.Now().UTC(),
		Version:    c.version,
		GitCommit:  c.gitCommit,
		Components: make([]Component, 0, len(checks)),
	}

	results := make(chan Component, len(checks))
	var wg sync.WaitGroup
	for name, check := range checks {
		wg.Add(1)
		go func(name string, check Check) {
			defer wg.Done()

			component := Component{
				Name:        name,
				Status:      StatusHealthy,
				LastChecked: time.Now().UTC(),
			}

			checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()

			if err := check(checkCtx); err != nil {
				component.Status = StatusUnhealthy
				component.Message = err.Error()
				c.logger.WithField("component", name).Warn("Health check failed", "error", err)
			}
			results <- component
		}(name, check)
	}
	wg.Wait()
	close(results)

	for component := range results {
		response.Components = append(response.Components, component)
		if component.Status != StatusHealthy {
			response.Status = StatusUnhealthy
		}
	}
	sort.Slice(response.Components, func(i, j int) bool {
		return response.Components[i].Name < response.Components[j].Name
	})

	return response
}

// LivenessHandler answers healthy as long as the process serves requests.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.write(w, http.StatusOK, Response{
			Status:    StatusHealthy,
			Timestamp: time.Now().UTC(),
			Version:   c.version,
			GitCommit: c.gitCommit,
		})
	}
}

// ReadinessHandler answers 503 unless every check passes.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := c.CheckHealth(r.Context())

		statusCode := http.StatusOK
		if response.Status != StatusHealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.write(w, statusCode, response)
	}
}

func (c *Checker) write(w http.ResponseWriter, statusCode int, response Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		c.logger.Error("Failed to encode health response", "error", err)
	}
}
