// Package lichess is a small client for the bot endpoints of the game service.
package lichess

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmmcquay/chess-arbiter/internal/logging"
	"github.com/dmmcquay/chess-arbiter/internal/metrics"
)

const (
	// DefaultBaseURL is the public service.
	DefaultBaseURL = "https://lichess.org"

	actionTimeout = 15 * time.Second
	maxErrorBody  = 4096
)

// Client talks to the game service on behalf of one bot account. It holds
// no per-request state and is safe to share between goroutines.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  logging.ContextLogger
	metrics *metrics.PrometheusCollector
}

// NewClient creates a client. Streams are long-lived, so the underlying
// http.Client has no overall timeout; actions use their own deadline.
func NewClient(baseURL, token string, logger logging.ContextLogger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{},
		logger:  logger,
		metrics: metrics.NewPrometheusCollector(),
	}
}

// StreamEvents opens the account event stream.
func (c *Client) StreamEvents(ctx context.Context) (*Stream, error) {
	return c.stream(ctx, "stream_events", "/api/stream/event")
}

// StreamGame opens the event stream of one game.
func (c *Client) StreamGame(ctx context.Context, gameID string) (*Stream, error) {
	return c.stream(ctx, "stream_game", "/api/bot/game/stream/"+url.PathEscape(gameID))
}

// AcceptChallenge accepts a challenge.
func (c *Client) AcceptChallenge(ctx context.Context, challengeID string) error {
	return c.post(ctx, "accept", "/api/challenge/"+url.PathEscape(challengeID)+"/accept", nil)
}

// DeclineChallenge declines a challenge. An empty reason uses the service default.
func (c *Client) DeclineChallenge(ctx context.Context, challengeID, reason string) error {
	var form url.Values
	if reason != "" {
		form = url.Values{"reason": {reason}}
	}
	return c.post(ctx, "decline", "/api/challenge/"+url.PathEscape(challengeID)+"/decline", form)
}

// Move submits a move in UCI notation.
func (c *Client) Move(ctx context.Context, gameID, move string) error {
	return c.post(ctx, "move", "/api/bot/game/"+url.PathEscape(gameID)+"/move/"+url.PathEscape(move), nil)
}

// Resign resigns a game.
func (c *Client) Resign(ctx context.Context, gameID string) error {
	return c.post(ctx, "resign", "/api/bot/game/"+url.PathEscape(gameID)+"/resign", nil)
}

// Abort aborts a game.
func (c *Client) Abort(ctx context.Context, gameID string) error {
	return c.post(ctx, "abort", "/api/bot/game/"+url.PathEscape(gameID)+"/abort", nil)
}

// Chat posts a message to a game's chat room.
func (c *Client) Chat(ctx context.Context, gameID, room, text string) error {
	form := url.Values{"room": {room}, "text": {text}}
	return c.post(ctx, "chat", "/api/bot/game/"+url.PathEscape(gameID)+"/chat", form)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	return req, nil
}

func (c *Client) stream(ctx context.Context, action, path string) (*Stream, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordRemoteRequest(action, "error")
		return nil, fmt.Errorf("%s failed: %w", action, err)
	}
	c.metrics.RecordRemoteRequest(action, strconv.Itoa(resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, c.requestError(action, resp)
	}
	return NewStream(resp.Body), nil
}

func (c *Client) post(ctx context.Context, action, path string, form url.Values) error {
	ctx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordRemoteRequest(action, "error")
		c.logger.WithContext(ctx).Warn("Request failed", "action", action, "path", path, "error", err)
		return fmt.Errorf("%s failed: %w", action, err)
	}
	defer resp.Body.Close()

	c.metrics.RecordRemoteRequest(action, strconv.Itoa(resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		reqErr := c.requestError(action, resp)
		c.logger.WithContext(ctx).Warn("Request rejected",
			"action", action,
			"path", path,
			"status", reqErr.StatusCode,
			"body", reqErr.Body,
		)
		return reqErr
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) requestError(action string, resp *http.Response) *RequestError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &RequestError{
		Action:     action,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(data)),
	}
}
