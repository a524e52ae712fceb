// Package server defines the delivery errors and shared helpers used by client
// and handler logic.
package server

import (
	"errors"
	"strings"

	"github.com/Tyrowin/roomcast/internal/event"
)

// Per-member delivery failures reported by Client.Send.
var (
	ErrConnectionClosed = errors.New("server: connection closed")
	ErrSendBufferFull   = errors.New("server: send buffer full")
)

// Sink accepts events for the registry.
type Sink interface {
	Send(ev event.Event) error
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
