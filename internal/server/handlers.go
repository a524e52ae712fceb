// Package server exposes HTTP handlers: the authenticated websocket upgrade
// and the health check.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomcast/internal/auth"
	"github.com/Tyrowin/roomcast/internal/event"
	"github.com/Tyrowin/roomcast/internal/logger"
)

// Handler performs the authenticated websocket handshake for /<room-path> and
// runs each accepted connection until it closes.
type Handler struct {
	cfg       Config
	validator *auth.Validator
	events    *event.Producer
	log       *slog.Logger
	upgrader  websocket.Upgrader
	origins   originPolicy

	active atomic.Int64

	mu       sync.Mutex
	clients  map[*Client]struct{}
	closing  bool
	inflight sync.WaitGroup
}

// NewHandler creates a Handler. Each connection gets its own clone of events,
// released when the connection ends.
func NewHandler(cfg Config, validator *auth.Validator, events *event.Producer, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.sanitize()

	h := &Handler{
		cfg:       cfg,
		validator: validator,
		events:    events,
		log:       log.With(logger.Component("ws")),
		origins:   newOriginPolicy(cfg.AllowedOrigins),
		clients:   make(map[*Client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	for _, origin := range h.origins.invalid {
		h.log.Warn("ignoring invalid origin in configuration", slog.String("origin", origin))
	}
	return h
}

// ServeHTTP validates the handshake and, on success, upgrades and serves the
// connection. Rejections happen before the upgrade and create no state.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. Websocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	room, err := h.validator.ValidateURL(r.URL)
	if err != nil {
		status := authStatus(err)
		h.log.Warn("handshake rejected", logger.Path(r.URL.Path), logger.ClientIP(r.RemoteAddr), logger.StatusCode(status), logger.Error(err))
		http.Error(w, http.StatusText(status), status)
		return
	}

	if h.isClosing() {
		http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		return
	}

	if !h.acquire() {
		h.log.Warn("handshake rejected: connection limit reached", logger.ClientIP(r.RemoteAddr), slog.Int("max_connections", h.cfg.MaxConnections))
		http.Error(w, "Server at capacity", http.StatusServiceUnavailable)
		return
	}
	defer h.release()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", logger.ClientIP(r.RemoteAddr), logger.Error(err))
		return
	}

	events, owned := h.producer()
	if owned {
		defer events.Close()
	}

	client := newClient(conn, h.identity(r), room, r.RemoteAddr, events, h.cfg, h.log)
	if !h.track(client) {
		client.shutdown()
		return
	}
	defer h.untrack(client)

	client.run()
}

// authStatus maps validation failures to the HTTP status of the rejected handshake.
func authStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrExpired), errors.Is(err, auth.ErrBadSignature):
		return http.StatusUnauthorized
	default:
		return http.StatusBadRequest
	}
}

func (h *Handler) identity(r *http.Request) string {
	if h.cfg.Identity == IdentityGenerated {
		return uuid.NewString()
	}
	return r.Header.Get("Sec-WebSocket-Key")
}

// producer returns a per-connection clone of the bus producer. When cloning
// fails the shared producer is returned unowned; its sends fail and get logged.
func (h *Handler) producer() (*event.Producer, bool) {
	p, err := h.events.Clone()
	if err != nil {
		h.log.Error("event bus unreachable", logger.Error(err))
		return h.events, false
	}
	return p, true
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.origins.allows(r) {
		return true
	}
	h.log.Warn("blocked websocket connection from disallowed origin", slog.String("origin", r.Header.Get("Origin")))
	return false
}

func (h *Handler) acquire() bool {
	if h.cfg.MaxConnections == 0 {
		h.active.Add(1)
		return true
	}
	for {
		n := h.active.Load()
		if n >= int64(h.cfg.MaxConnections) {
			return false
		}
		if h.active.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (h *Handler) release() {
	h.active.Add(-1)
}

// ActiveConnections reports the number of connections currently admitted.
func (h *Handler) ActiveConnections() int {
	return int(h.active.Load())
}

func (h *Handler) isClosing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closing
}

func (h *Handler) track(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.clients[c] = struct{}{}
	h.inflight.Add(1)
	return true
}

func (h *Handler) untrack(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	h.inflight.Done()
}

// Shutdown closes every open connection and waits for their handlers to emit
// Unsubscribe and return, or until timeout.
func (h *Handler) Shutdown(timeout time.Duration) error {
	h.mu.Lock()
	h.closing = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	h.log.Info("closing client connections", slog.Int("count", len(clients)))
	for _, c := range clients {
		c.shutdown()
	}

	done := make(chan struct{})
	go func() {
		h.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("all client connections closed")
		return nil
	case <-time.After(timeout):
		h.log.Warn("connection shutdown timeout reached")
		return context.DeadlineExceeded
	}
}

// HealthHandler reports 200 when every check passes and 503 otherwise.
func HealthHandler(checks ...func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")

		for _, check := range checks {
			if err := check(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = fmt.Fprintf(w, "unhealthy: %v", err)
				return
			}
		}
		_, _ = fmt.Fprint(w, "roomcast server is running")
	}
}
