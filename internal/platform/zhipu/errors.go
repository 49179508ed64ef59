package zhipu

import (
	"errors"
	"fmt"
)

// HTTPError is returned when the upstream answers with a non-2xx status.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "upstream http error"
	}
	if e.Body == "" {
		return fmt.Sprintf("upstream http error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("upstream http error: status=%d body=%s", e.StatusCode, e.Body)
}

// StreamError is an error envelope sent by the upstream inside the event stream. It reaches the
// parse-error hook only; it never ends a stream.
type StreamError struct {
	Payload string
}

func (e *StreamError) Error() string {
	return "upstream stream error: " + e.Payload
}

var (
	ErrInvalidAPIKey = errors.New("zhipu: api key must have the form <id>.<secret>")
	ErrReadTimeout   = errors.New("zhipu: upstream read timed out")
)
