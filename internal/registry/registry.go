// Package registry owns room membership. A single Run loop consumes events from
// the bus, mutates the room table, fans multicast payloads out to members, and
// forwards a Logging copy of every message to the notifier path.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Tyrowin/roomcast/internal/event"
	"github.com/Tyrowin/roomcast/internal/logger"
)

var (
	// ErrBusDisconnected means every producer of the registry bus is gone.
	// The registry cannot keep its invariants without producers, so callers
	// should treat it as fatal.
	ErrBusDisconnected = errors.New("registry: event bus disconnected")
	// ErrRoomNotFound is logged when a multicast targets a room with no entry.
	ErrRoomNotFound = errors.New("registry: room not found")
)

// Source is the consuming side of the event bus.
type Source interface {
	Recv(ctx context.Context) (event.Event, error)
}

// Sink receives Logging events for the notifier.
type Sink interface {
	Send(ev event.Event) error
}

type room map[string]event.Handle

// Registry is the sole owner of room state. Only Run touches the room table.
type Registry struct {
	source     Source
	audit      Sink
	log        *slog.Logger
	evictEmpty bool
	rooms      map[string]room
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// WithAuditSink sets where Logging copies of multicast records are sent.
func WithAuditSink(s Sink) Option {
	return func(r *Registry) {
		r.audit = s
	}
}

// WithEvictEmptyRooms controls whether a room entry is dropped when its last
// member unsubscribes. Enabled by default.
func WithEvictEmptyRooms(evict bool) Option {
	return func(r *Registry) {
		r.evictEmpty = evict
	}
}

// New creates a Registry consuming from source.
func New(source Source, opts ...Option) *Registry {
	r := &Registry{
		source:     source,
		log:        slog.Default(),
		evictEmpty: true,
		rooms:      make(map[string]room),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With(logger.Component("registry"))
	return r
}

// Run consumes events until ctx is done (returns nil) or the bus disconnects
// (returns ErrBusDisconnected). It must be called from exactly one goroutine.
func (r *Registry) Run(ctx context.Context) error {
	r.log.Info("registry started")
	for {
		ev, err := r.source.Recv(ctx)
		if err != nil {
			if errors.Is(err, event.ErrDisconnected) {
				r.log.Error("event bus disconnected", logger.Error(err))
				return fmt.Errorf("%w: %v", ErrBusDisconnected, err)
			}
			if ctx.Err() != nil {
				r.log.Info("registry stopped", slog.Int("rooms", len(r.rooms)))
				return nil
			}
			return err
		}
		r.handle(ev)
	}
}

func (r *Registry) handle(ev event.Event) {
	switch ev := ev.(type) {
	case event.Subscribe:
		r.subscribe(ev)
	case event.Unsubscribe:
		r.unsubscribe(ev)
	case event.Multicast:
		r.multicast(ev.Record)
	case event.Logging:
		r.forward(ev.Record)
	default:
		r.log.Warn("ignoring unexpected event", slog.String("type", fmt.Sprintf("%T", ev)))
	}
}

func (r *Registry) subscribe(ev event.Subscribe) {
	members, ok := r.rooms[ev.Room]
	if !ok {
		members = make(room)
		r.rooms[ev.Room] = members
	}
	members[ev.ID] = ev.Handle

	r.log.Debug("subscribed", logger.Room(ev.Room), logger.ConnID(ev.ID), slog.Int("members", len(members)))
}

func (r *Registry) unsubscribe(ev event.Unsubscribe) {
	members, ok := r.rooms[ev.Room]
	if !ok {
		return
	}
	delete(members, ev.ID)

	if len(members) == 0 && r.evictEmpty {
		delete(r.rooms, ev.Room)
		r.log.Debug("room evicted", logger.Room(ev.Room))
		return
	}
	r.log.Debug("unsubscribed", logger.Room(ev.Room), logger.ConnID(ev.ID), slog.Int("members", len(members)))
}

func (r *Registry) multicast(rec event.MessageRecord) {
	r.forward(rec)

	members, ok := r.rooms[rec.Room]
	if !ok {
		r.log.Error("undefined room", logger.Room(rec.Room), logger.ConnID(rec.Sender), logger.Error(ErrRoomNotFound))
		return
	}

	delivered := 0
	for id, handle := range members {
		if id == rec.Sender {
			continue
		}
		if err := handle.Send(rec.Payload); err != nil {
			r.log.Error("delivery failed", logger.Room(rec.Room), logger.ConnID(id), logger.Error(err))
			continue
		}
		delivered++
	}

	r.log.Debug("multicast", logger.Room(rec.Room), logger.ConnID(rec.Sender), slog.Int("delivered", delivered))
}

// forward hands a Logging copy to the audit sink regardless of fan-out outcome.
func (r *Registry) forward(rec event.MessageRecord) {
	if r.audit == nil {
		return
	}
	if err := r.audit.Send(event.Logging{Record: rec}); err != nil {
		r.log.Error("audit forward failed", logger.Room(rec.Room), logger.Error(err))
	}
}
