// Package testhelpers provides utilities shared by the roomcast tests: signing
// handshake queries, dialing rooms, and reading frames with deadlines.
package testhelpers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomcast/internal/auth"
	"github.com/Tyrowin/roomcast/internal/event"
)

// Secret is the shared key used across tests.
const Secret = "usocksecret"

// SignedQuery returns "nonce=<at>&token=<sig>" for secret.
func SignedQuery(secret string, at time.Time) string {
	nonce := strconv.FormatInt(at.Unix(), 10)
	q := url.Values{}
	q.Set("nonce", nonce)
	q.Set("token", auth.Sign(secret, nonce))
	return q.Encode()
}

// WebSocketURL converts an httptest server URL and a room path into a signed ws:// URL.
func WebSocketURL(serverURL, path, secret string) string {
	base := "ws" + strings.TrimPrefix(serverURL, "http")
	return base + path + "?" + SignedQuery(secret, time.Now())
}

// Dial opens a websocket to rawURL. The response body is always closed.
func Dial(rawURL string, header http.Header) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(rawURL, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// DialRoom opens a signed connection to path and fails the test on error.
func DialRoom(t *testing.T, serverURL, path string) *websocket.Conn {
	t.Helper()
	conn, _, err := Dial(WebSocketURL(serverURL, path, Secret), nil)
	if err != nil {
		t.Fatalf("Failed to dial %s: %v", path, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// ReadText reads one frame with a deadline.
func ReadText(conn *websocket.Conn, timeout time.Duration) (string, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	_, data, err := conn.ReadMessage()
	return string(data), err
}

// CloseWebSocket sends a normal close frame and closes the connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}

// NextEvent receives one event from bus or fails the test after timeout.
func NextEvent(t *testing.T, bus *event.Bus, timeout time.Duration) event.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ev, err := bus.Recv(ctx)
	if err != nil {
		t.Fatalf("No event within %s: %v", timeout, err)
	}
	return ev
}
