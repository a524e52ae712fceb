package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/roomcast/internal/auth"
	"github.com/Tyrowin/roomcast/internal/config"
	"github.com/Tyrowin/roomcast/internal/event"
	"github.com/Tyrowin/roomcast/internal/logger"
	"github.com/Tyrowin/roomcast/internal/notifier"
	"github.com/Tyrowin/roomcast/internal/registry"
	"github.com/Tyrowin/roomcast/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "roomcast: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, checks, closeNotifier, err := setupNotifier(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer closeNotifier()

	auditBus, auditProducer := event.NewBus()
	defer auditBus.Close()
	forwarder := notifier.NewForwarder(auditBus, n, cfg.Redis.PublishTimeout, log)

	bus, producer := event.NewBus()
	defer bus.Close()
	reg := registry.New(bus,
		registry.WithLogger(log),
		registry.WithAuditSink(auditProducer),
		registry.WithEvictEmptyRooms(cfg.Server.EvictEmptyRooms),
	)

	handler := server.NewHandler(cfg.Server, auth.NewValidator(cfg.Auth), producer, log)
	routes := server.SetupRoutes(handler, server.HealthHandler(checks...))

	var tlsConfig *tls.Config
	if cfg.Server.TLSEnabled() {
		if tlsConfig, err = server.LoadTLSConfig(cfg.Server.SSLCert, cfg.Server.SSLKey); err != nil {
			return err
		}
	}
	httpServer := server.CreateServer(cfg.Server.Addr(), routes, tlsConfig)

	// Registry and forwarder keep running until the edge has drained, so every
	// Unsubscribe emitted during shutdown is still consumed.
	coreCtx, stopCore := context.WithCancel(context.Background())
	defer stopCore()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.StartServer(httpServer, log)
	})

	g.Go(func() error {
		err := reg.Run(coreCtx)
		if errors.Is(err, registry.ErrBusDisconnected) {
			log.Error("registry lost its event source; terminating", logger.Error(err))
		}
		return err
	})

	g.Go(func() error {
		defer auditProducer.Close()
		return forwarder.Run(coreCtx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown requested")

		shutdownErr := server.ShutdownServer(httpServer, cfg.Shutdown, log)
		if err := handler.Shutdown(cfg.Shutdown); err != nil {
			log.Warn("connections did not drain in time", logger.Error(err))
		}
		stopCore()
		producer.Close()
		return shutdownErr
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("roomcast stopped")
	return nil
}

// setupNotifier selects the Sidekiq notifier when Redis is configured and the
// log-only notifier otherwise. It returns health checks and a cleanup func.
func setupNotifier(ctx context.Context, cfg notifier.Config, log *slog.Logger) (notifier.Notifier, []func(context.Context) error, func(), error) {
	if !cfg.Enabled() {
		log.Info("no job queue configured; notifications are logged only")
		return notifier.NewLog(log), nil, func() {}, nil
	}

	client, err := notifier.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	log.Info("job queue connected", slog.String("queue", notifier.DefaultQueue))

	n := notifier.NewSidekiq(client, notifier.WithNamespace(cfg.Namespace))
	checks := []func(context.Context) error{notifier.Healthcheck(client)}
	return n, checks, func() { _ = client.Close() }, nil
}
