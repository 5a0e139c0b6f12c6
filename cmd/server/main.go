package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/shehryarbajwa/bluetooth-emulator/internal/api"
	"github.com/shehryarbajwa/bluetooth-emulator/internal/bidi"
	"github.com/shehryarbajwa/bluetooth-emulator/internal/bluetooth"
	"github.com/shehryarbajwa/bluetooth-emulator/internal/config"
	"github.com/shehryarbajwa/bluetooth-emulator/internal/events"
	"github.com/shehryarbajwa/bluetooth-emulator/internal/logger"
	"github.com/shehryarbajwa/bluetooth-emulator/internal/protolog"
	"github.com/shehryarbajwa/bluetooth-emulator/internal/ratelimit"
	"github.com/shehryarbajwa/bluetooth-emulator/internal/tracer"
	"github.com/shehryarbajwa/bluetooth-emulator/internal/transport"
)

func main() {
	if err := run(); err != nil {
		slog.Error("bluetooth emulator exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	path := os.Getenv("BTEMU_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracer(sctx); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	bus := events.NewBus(cfg.Events.BufferSize, log)
	engine := bluetooth.NewEngine(
		bluetooth.WithEventSink(bus),
		bluetooth.WithLogger(log),
		bluetooth.WithSignalBuffer(cfg.Events.SignalBufferSize),
	)

	dispatcher := bidi.NewDispatcher(log)
	bidi.RegisterBluetooth(dispatcher, engine)
	log.Info("command handlers registered", "methods", dispatcher.Methods())

	var recorder protolog.Recorder = protolog.NoopRecorder{}
	if cfg.TrafficLog.Path != "" {
		fr, err := protolog.NewFileRecorder(cfg.TrafficLog.Path)
		if err != nil {
			return err
		}
		defer fr.Close()
		recorder = fr
		log.Info("recording protocol traffic", "path", cfg.TrafficLog.Path)
	}

	// REST and WebSocket clients have separate buckets.
	restLimiter := ratelimit.NewLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)
	wsLimiter := ratelimit.NewLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)

	session := transport.NewServer(dispatcher, bus, wsLimiter, recorder, log)
	router := api.NewHandler(engine, log).SetupRoutes(session, restLimiter, cfg.RateLimit.TrustClientHeader)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := engine.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := restLimiter.Cleanup(gctx, cfg.RateLimit.IdleTTL, cfg.RateLimit.IdleTTL); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("server starting", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped cleanly")
	return nil
}
