package auth

import "errors"

// Handshake rejection causes. Every validation failure wraps exactly one of these.
var (
	ErrMalformedRequest = errors.New("auth: malformed request target")
	ErrMissingField     = errors.New("auth: missing token or nonce")
	ErrMalformedNonce   = errors.New("auth: nonce is not an integer")
	ErrExpired          = errors.New("auth: nonce expired")
	ErrBadSignature     = errors.New("auth: bad signature")
)
