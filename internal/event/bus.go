package event

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrBusClosed is returned by Send when the producer was closed or the
	// consumer has gone away.
	ErrBusClosed = errors.New("event: bus closed")
	// ErrDisconnected is returned by Recv once every producer is closed and
	// the queue is drained.
	ErrDisconnected = errors.New("event: all producers disconnected")
)

// Bus is an unbounded multi-producer single-consumer FIFO. Sends never block.
// Events from a single producer goroutine are received in send order.
type Bus struct {
	mu        sync.Mutex
	queue     []Event
	producers int
	closed    bool
	signal    chan struct{}
}

// Producer is a counted sending side of a Bus. The bus reports disconnection
// once every Producer obtained from it has been closed.
type Producer struct {
	bus  *Bus
	once sync.Once
	mu   sync.RWMutex
	done bool
}

// NewBus returns a bus together with its first producer.
func NewBus() (*Bus, *Producer) {
	b := &Bus{signal: make(chan struct{}, 1)}
	return b, b.attach()
}

func (b *Bus) attach() *Producer {
	b.mu.Lock()
	b.producers++
	b.mu.Unlock()
	return &Producer{bus: b}
}

func (b *Bus) detach() {
	b.mu.Lock()
	b.producers--
	b.mu.Unlock()
	b.wake()
}

func (b *Bus) wake() {
	select {
	case b.signal <- struct{}{}:
	default:
	}
}

func (b *Bus) push(ev Event) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}
	b.queue = append(b.queue, ev)
	b.mu.Unlock()
	b.wake()
	return nil
}

// Recv blocks until an event is available, every producer has been closed
// (ErrDisconnected), or ctx is done. Only one goroutine may call Recv.
func (b *Bus) Recv(ctx context.Context) (Event, error) {
	for {
		b.mu.Lock()
		if len(b.queue) > 0 {
			ev := b.queue[0]
			b.queue[0] = nil
			b.queue = b.queue[1:]
			b.mu.Unlock()
			return ev, nil
		}
		disconnected := b.producers == 0
		b.mu.Unlock()

		if disconnected {
			return nil, ErrDisconnected
		}

		select {
		case <-b.signal:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close drops the consuming side. Pending events are discarded and later
// sends fail with ErrBusClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.queue = nil
	b.mu.Unlock()
}

// Len reports the number of queued events.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Send enqueues ev. It never blocks.
func (p *Producer) Send(ev Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.done {
		return ErrBusClosed
	}
	return p.bus.push(ev)
}

// Clone returns a new producer on the same bus. It fails if p is already closed.
func (p *Producer) Clone() (*Producer, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.done {
		return nil, ErrBusClosed
	}
	return p.bus.attach(), nil
}

// Close releases the producer. It is safe to call more than once.
func (p *Producer) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.done = true
		p.mu.Unlock()
		p.bus.detach()
	})
}
