package upstream

import (
	"errors"
	"fmt"
)

// ErrPermanentUpstreamFailure is reported once the reconnect budget is spent.
var ErrPermanentUpstreamFailure = errors.New("upstream_permanent_failure")

var ErrNotConnected = errors.New("upstream_not_connected")

// ConnectError is a transient dial or handshake failure.
type ConnectError struct {
	URL     string
	Attempt int
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("upstream connect %s (attempt %d): %v", e.URL, e.Attempt, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// MessageParseError describes a dropped inbound frame.
type MessageParseError struct {
	Size int
	Err  error
}

func (e *MessageParseError) Error() string {
	return fmt.Sprintf("upstream frame (%d bytes): %v", e.Size, e.Err)
}

func (e *MessageParseError) Unwrap() error { return e.Err }
