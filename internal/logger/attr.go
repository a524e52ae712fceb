package logger

import "log/slog"

// Attribute helpers return an empty Attr for zero input, so callers can pass
// them unconditionally: log.Warn("send failed", logger.Error(err)).

// Error creates an attribute for a single error under the key "error".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component tags records with the emitting subsystem.
func Component(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("component", name)
}

// Room creates an attribute for a normalized room key.
func Room(room string) slog.Attr {
	return slog.String("room", room)
}

// ConnID creates an attribute for a connection identity.
func ConnID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("conn_id", id)
}

// ClientIP creates an attribute for a peer address.
func ClientIP(addr string) slog.Attr {
	if addr == "" {
		return slog.Attr{}
	}
	return slog.String("client_ip", addr)
}

// Path creates an attribute for a request path.
func Path(path string) slog.Attr {
	return slog.String("path", path)
}

// StatusCode creates an attribute for HTTP status codes.
func StatusCode(code int) slog.Attr {
	return slog.Int("status_code", code)
}
