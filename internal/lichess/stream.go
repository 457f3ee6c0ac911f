package lichess

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformedEvent marks a stream line that is not valid JSON. The stream
// itself remains usable.
var ErrMalformedEvent = errors.New("malformed event")

const maxLineSize = 1024 * 1024

// Stream decodes a newline-delimited JSON response body.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

// NewStream wraps body. The caller must Close the stream.
func NewStream(body io.ReadCloser) *Stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Stream{body: body, scanner: scanner}
}

// Next decodes the next non-empty line into v. It returns io.EOF when the
// remote side closes the stream.
func (s *Stream) Next(v interface{}) error {
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			// keep-alive
			continue
		}
		if err := json.Unmarshal([]byte(line), v); err != nil {
			return fmt.Errorf("%w: %v: %q", ErrMalformedEvent, err, truncate(line, 200))
		}
		return nil
	}
	if err := s.scanner.Err(); err != nil {
		return fmt.Errorf("stream read failed: %w", err)
	}
	return io.EOF
}

// Close closes the underlying body.
func (s *Stream) Close() error {
	return s.body.Close()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
