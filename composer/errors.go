package composer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyBody is returned when the endpoint answers with a success status
// but a nil body. A zero-length body streams normally and yields an empty
// buffer.
var ErrEmptyBody = errors.New("composer: generate endpoint returned no body")

// ErrSuperseded is returned by a Compose call whose submission was replaced
// by a newer one before it finished.
var ErrSuperseded = errors.New("composer: superseded by a newer submission")

// RequestError reports a non-success status from the generate endpoint.
type RequestError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *RequestError) Error() string {
	status := e.Status
	if status == "" {
		status = fmt.Sprintf("%d", e.StatusCode)
	}
	if body := strings.TrimSpace(e.Body); body != "" {
		return fmt.Sprintf("composer: generate endpoint returned %s: %s", status, body)
	}
	return "composer: generate endpoint returned " + status
}
