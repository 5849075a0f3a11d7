package opencode

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound = errors.New("opencode: not found")
	ErrClosed   = errors.New("opencode: client closed")
)

// StatusError reports a non-2xx answer from the server.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("opencode %s: status %d body=%s", e.Op, e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

// TransportError means the request never produced a usable response
// (dial failure, timeout, closed client, unreadable body).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("opencode %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
