// Package server manages individual websocket clients, handling read/write
// pumps, inbound throttling, and lifecycle events for each connection.
package server

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomcast/internal/event"
	"github.com/Tyrowin/roomcast/internal/logger"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	sendBuffer   = 256
	closeTimeout = time.Second
)

// Client is one open websocket connection. It is the outbound event.Handle the
// registry holds for the connection, and it reports its own lifecycle on the bus.
type Client struct {
	conn        *websocket.Conn
	id          string
	room        string
	addr        string
	send        chan []byte
	done        chan struct{}
	closeOnce   sync.Once
	events      Sink
	log         *slog.Logger
	rateLimiter *rateLimiter
	rateLimit   RateLimitConfig
	maxSize     int64
}

func newClient(conn *websocket.Conn, id, room, addr string, events Sink, cfg Config, log *slog.Logger) *Client {
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	var limiter *rateLimiter
	if cfg.ThrottleEnabled() {
		limiter = newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval, time.Now())
	}

	return &Client{
		conn:        conn,
		id:          id,
		room:        room,
		addr:        addr,
		send:        make(chan []byte, sendBuffer),
		done:        make(chan struct{}),
		events:      events,
		log:         log.With(logger.Room(room), logger.ConnID(id), logger.ClientIP(addr)),
		rateLimiter: limiter,
		rateLimit:   cfg.RateLimit,
		maxSize:     cfg.MaxMessageSize,
	}
}

// ID returns the connection identity.
func (c *Client) ID() string { return c.id }

// Room returns the normalized room key.
func (c *Client) Room() string { return c.room }

// Send queues text for delivery. It never blocks: a full buffer or a closed
// connection is reported to the caller instead.
func (c *Client) Send(text string) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- []byte(text):
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		return ErrSendBufferFull
	}
}

// run drives the connection from Open to Closed. Subscribe is emitted before
// any inbound frame is read and Unsubscribe after the last one, all from this
// goroutine, so the registry sees them in that order.
func (c *Client) run() {
	c.emit(event.Subscribe{ID: c.id, Handle: c, Room: c.room})
	c.log.Info("connection opened")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()

	c.readPump()
	c.close()
	<-writerDone

	c.emit(event.Unsubscribe{ID: c.id, Room: c.room})
	c.log.Info("connection closed")
}

func (c *Client) emit(ev event.Event) {
	if err := c.events.Send(ev); err != nil {
		c.log.Error("event bus unreachable", slog.String("event", eventName(ev)), logger.Error(err))
	}
}

func eventName(ev event.Event) string {
	switch ev.(type) {
	case event.Subscribe:
		return "subscribe"
	case event.Unsubscribe:
		return "unsubscribe"
	case event.Multicast:
		return "multicast"
	case event.Logging:
		return "logging"
	default:
		return "unknown"
	}
}

// close tears the connection down once; it unblocks both pumps.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn == nil {
			return
		}
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn("error closing connection", logger.Error(err))
		}
	})
}

// shutdown sends a going-away close frame and tears the connection down.
func (c *Client) shutdown() {
	if c.conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeTimeout)); err != nil && !isExpectedCloseError(err) {
			c.log.Warn("error writing shutdown close frame", logger.Error(err))
		}
	}
	c.close()
}

// setupReadConnection configures read deadlines and pong handler for the connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn("error setting initial read deadline", logger.Error(err))
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

func (c *Client) readPump() {
	c.setupReadConnection()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if !c.checkRateLimit() {
			continue
		}

		c.emit(event.Multicast{Record: event.NewMessageRecord(c.room, c.id, string(payload), c.addr)})
	}
}

// logReadError logs why the read loop ended at a level matching how expected it was.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("message exceeded maximum size", slog.Int64("max_bytes", c.maxSize))
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		c.log.Debug("peer closed connection", logger.Error(err))
	case errors.Is(err, io.EOF), isExpectedCloseError(err), c.isClosed():
		c.log.Debug("connection closed", logger.Error(err))
	case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
		c.log.Warn("unexpected websocket close", logger.Error(err))
	default:
		c.log.Warn("websocket read error", logger.Error(err))
	}
}

// checkRateLimit reports whether the next inbound frame may be relayed.
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		c.log.Warn("rate limit exceeded; discarding message",
			slog.Int("burst", c.rateLimit.Burst),
			slog.Duration("interval", c.rateLimit.RefillInterval))
		return false
	}
	return true
}

func (c *Client) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message := <-c.send:
		return c.writeText(message)
	case <-ticker.C:
		return c.writePing()
	case <-c.done:
		return false
	}
}

// writeText writes one payload as one text frame.
func (c *Client) writeText(message []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn("error setting write deadline", logger.Error(err))
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("error writing message", logger.Error(err))
		}
		return false
	}
	return true
}

// writePing sends a ping message to keep the connection alive
func (c *Client) writePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn("error setting write deadline for ping", logger.Error(err))
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("error writing ping", logger.Error(err))
		}
		return false
	}
	return true
}
