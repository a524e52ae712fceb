// Package auth validates websocket handshake requests.
//
// A client connects to /<room-path>?token=<hex>&nonce=<unix-seconds>. The nonce
// is a timestamp that must fall inside the configured freshness window, and the
// token must equal the lower-case hex HMAC-SHA1 of the nonce bytes keyed by the
// shared secret. A successful validation yields the normalized room key.
package auth
