package auth

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Validator checks handshake request targets against a Context.
// It holds no mutable state and is safe for concurrent use.
type Validator struct {
	ctx Context
	now func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock replaces the time source used for the freshness check.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// NewValidator creates a Validator for the given context.
func NewValidator(ctx Context, opts ...Option) *Validator {
	v := &Validator{ctx: ctx, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks the request target (path plus query, as in http.Request.RequestURI)
// and returns the normalized room key on success.
func (v *Validator) Validate(target string) (string, error) {
	u, err := url.ParseRequestURI(target)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	return v.ValidateURL(u)
}

// ValidateURL is Validate for an already parsed URL. The room key is built from
// the escaped path, so percent-encoded octets stay encoded.
func (v *Validator) ValidateURL(u *url.URL) (string, error) {
	room := NormalizeRoom(u.EscapedPath())

	query := u.Query()
	token, okToken := lastValue(query, v.ctx.tokenName())
	nonce, okNonce := lastValue(query, v.ctx.timeName())
	if !okToken || !okNonce {
		return "", fmt.Errorf("%w: expected %q and %q in query", ErrMissingField, v.ctx.tokenName(), v.ctx.timeName())
	}

	ts, err := strconv.ParseInt(nonce, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrMalformedNonce, nonce)
	}

	if !Fresh(ts, v.ctx.KeepAlive, v.now()) {
		return "", fmt.Errorf("%w: nonce %d outside %ds window", ErrExpired, ts, v.ctx.KeepAlive)
	}

	if !hmac.Equal([]byte(token), []byte(Sign(v.ctx.PrivateKey, nonce))) {
		return "", ErrBadSignature
	}

	return room, nil
}

// NormalizeRoom lower-cases a request path and strips one leading and one
// trailing separator, so "/Hello/World/" becomes "hello/world".
func NormalizeRoom(path string) string {
	room := strings.ToLower(path)
	room = strings.TrimPrefix(room, "/")
	room = strings.TrimSuffix(room, "/")
	return room
}

// Fresh reports whether a nonce issued at unix second ts is still inside a
// window of keepAlive seconds at now. A zero window always passes.
func Fresh(ts, keepAlive int64, now time.Time) bool {
	if keepAlive == 0 {
		return true
	}
	return now.Unix()-ts < keepAlive
}

// Sign returns the lower-case hex HMAC-SHA1 of nonce keyed by secret.
func Sign(secret, nonce string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(nonce))
	return hex.EncodeToString(mac.Sum(nil))
}

// lastValue mirrors repeated-key handling of the handshake: the last occurrence wins.
func lastValue(q url.Values, key string) (string, bool) {
	vals, ok := q[key]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[len(vals)-1], true
}
