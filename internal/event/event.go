// Package event defines the messages exchanged between connection handlers and
// the room registry, and the bus that carries them.
package event

import "time"

// Handle pushes outbound text frames to one connection. Holders do not own the
// connection; Send fails once the connection is gone.
type Handle interface {
	Send(text string) error
}

// MessageRecord is one inbound payload as seen by the registry and the notifier.
type MessageRecord struct {
	Room      string    `json:"channel"`
	Sender    string    `json:"sender"`
	Payload   string    `json:"message"`
	Address   string    `json:"ip"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessageRecord stamps a record with the current UTC time.
func NewMessageRecord(room, sender, payload, addr string) MessageRecord {
	return MessageRecord{
		Room:      room,
		Sender:    sender,
		Payload:   payload,
		Address:   addr,
		CreatedAt: time.Now().UTC(),
	}
}

// Event is the closed set of bus messages: Subscribe, Unsubscribe, Multicast
// and Logging. The unexported marker keeps other packages from adding variants.
type Event interface {
	event()
}

// Subscribe joins connection ID to Room with the given outbound handle.
type Subscribe struct {
	ID     string
	Handle Handle
	Room   string
}

// Unsubscribe removes connection ID from Room.
type Unsubscribe struct {
	ID   string
	Room string
}

// Multicast asks for Record to be fanned out to its room.
type Multicast struct {
	Record MessageRecord
}

// Logging carries a copy of a multicast record to the notifier.
type Logging struct {
	Record MessageRecord
}

func (Subscribe) event()   {}
func (Unsubscribe) event() {}
func (Multicast) event()   {}
func (Logging) event()     {}
