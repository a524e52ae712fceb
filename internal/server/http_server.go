// Package server constructs and starts the HTTP service with helpers that
// apply production defaults and optional TLS.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Tyrowin/roomcast/internal/logger"
)

// CreateServer creates an HTTP server for addr. A non-nil tlsConfig makes
// StartServer serve TLS.
func CreateServer(addr string, handler http.Handler, tlsConfig *tls.Config) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// LoadTLSConfig reads a PEM certificate and key pair.
func LoadTLSConfig(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("server: load key pair: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// StartServer listens until the server is shut down. A graceful shutdown is
// not reported as an error.
func StartServer(server *http.Server, log *slog.Logger) error {
	var err error
	if server.TLSConfig != nil {
		log.Info("server listening", slog.String("addr", server.Addr), slog.Bool("tls", true))
		err = server.ListenAndServeTLS("", "")
	} else {
		log.Info("server listening", slog.String("addr", server.Addr), slog.Bool("tls", false))
		err = server.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ShutdownServer stops accepting new requests and waits for in-flight HTTP
// requests until timeout. Hijacked websocket connections are closed by
// Handler.Shutdown.
func ShutdownServer(server *http.Server, timeout time.Duration, log *slog.Logger) error {
	log.Info("shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
		return err
	}

	log.Info("HTTP server shutdown completed")
	return nil
}
