// Package notifier delivers finalized message records to a downstream job queue.
//
// The registry never calls a Notifier directly: it sends Logging events on a
// dedicated bus, and a Forwarder drains that bus into the Notifier. Failures are
// logged and dropped; nothing here retries, batches, or buffers.
package notifier

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Tyrowin/roomcast/internal/event"
	"github.com/Tyrowin/roomcast/internal/logger"
)

// ErrPublishFailed wraps any downstream failure reported by Publish.
var ErrPublishFailed = errors.New("notifier: publish failed")

// Notifier accepts one record per broadcast message.
type Notifier interface {
	Publish(ctx context.Context, rec event.MessageRecord) error
}

// Log is a Notifier that only writes records to a logger. It is used when no
// job queue is configured.
type Log struct {
	log *slog.Logger
}

// NewLog creates a log-only notifier.
func NewLog(l *slog.Logger) *Log {
	if l == nil {
		l = slog.Default()
	}
	return &Log{log: l.With(logger.Component("notifier"))}
}

// Publish logs rec at info level.
func (n *Log) Publish(_ context.Context, rec event.MessageRecord) error {
	n.log.Info("message",
		logger.Room(rec.Room),
		logger.ConnID(rec.Sender),
		logger.ClientIP(rec.Address),
		slog.Int("bytes", len(rec.Payload)),
		slog.Time("created_at", rec.CreatedAt),
	)
	return nil
}
