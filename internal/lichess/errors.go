package lichess

import "fmt"

// RequestError is returned for any non-200 response. Callers log it and
// carry on; requests are never retried.
type RequestError struct {
	Action     string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned %d", e.Action, e.StatusCode)
	}
	return fmt.Sprintf("%s returned %d: %s", e.Action, e.StatusCode, e.Body)
}
