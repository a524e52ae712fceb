package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Tyrowin/roomcast/internal/event"
	"github.com/Tyrowin/roomcast/internal/logger"
)

// Source is the consuming side of the logging bus.
type Source interface {
	Recv(ctx context.Context) (event.Event, error)
}

// Forwarder drains Logging events into a Notifier, one Publish per event.
type Forwarder struct {
	source   Source
	notifier Notifier
	timeout  time.Duration
	log      *slog.Logger
}

// NewForwarder creates a Forwarder. A zero timeout leaves Publish unbounded.
func NewForwarder(source Source, n Notifier, timeout time.Duration, l *slog.Logger) *Forwarder {
	if l == nil {
		l = slog.Default()
	}
	return &Forwarder{
		source:   source,
		notifier: n,
		timeout:  timeout,
		log:      l.With(logger.Component("forwarder")),
	}
}

// Run consumes until ctx is done or the bus disconnects. Both end the loop
// cleanly: losing the logging path never takes the process down.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		ev, err := f.source.Recv(ctx)
		if err != nil {
			if errors.Is(err, event.ErrDisconnected) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		logging, ok := ev.(event.Logging)
		if !ok {
			f.log.Warn("ignoring non-logging event", slog.String("type", fmt.Sprintf("%T", ev)))
			continue
		}
		f.publish(ctx, logging.Record)
	}
}

func (f *Forwarder) publish(ctx context.Context, rec event.MessageRecord) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	if err := f.notifier.Publish(ctx, rec); err != nil {
		f.log.Error("notifier publish failed", logger.Room(rec.Room), logger.ConnID(rec.Sender), logger.Error(err))
	}
}
