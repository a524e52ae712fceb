// Package server implements the websocket edge of roomcast.
//
// The implementation is organized into specialized files for configuration,
// handshake handling, per-connection clients, routing, origin checks, inbound
// throttling, and HTTP server lifecycle. Connections never touch room state:
// they report Subscribe, Multicast and Unsubscribe events on the registry bus
// and receive outbound frames only through their own Client handle.
package server
