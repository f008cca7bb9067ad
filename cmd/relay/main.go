package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"

	"rendezvous/infrastructure/httpserver"
	"rendezvous/internal"
	"rendezvous/runtime"
	"rendezvous/runtime/workers"
	"rendezvous/services"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting. This keeps every defer honored on exit and
// decouples initialization from the entry point for testability.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.ValidateTLS(); err != nil {
		return exitConfig, err
	}

	logger := internal.GetLoggerFromString(config.LogLevel)

	// 2. Core state: registry, coordinator, service facade.
	// The registry is empty on startup and gone on exit; the relay keeps
	// nothing across restarts on purpose.
	registry := runtime.NewRegistry(logger)
	coordinator := runtime.NewCoordinator(logger, registry)
	signalingService := services.NewSignalingService(coordinator)

	// 3. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Supervision: background telemetry under restart-on-panic.
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(workers.NewTelemetryWorker(logger, config.MetricInterval, registry))

	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		sup.Run(ctx)
	}()

	// 5. HTTP server
	server := httpserver.NewServer(
		logger, signalingService,
		config.Addr(),
		config.KeepAliveInterval,
		config.StreamBufferSize,
		config.TLSCertFile, config.TLSKeyFile,
	)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 6. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		sup.Stop()
		<-supDone
		return exitRuntime, err
	}

	// 7. Final Cleanup (Graceful Shutdown)
	// Held event-streams are closed by Shutdown's listener teardown; each
	// serving loop runs its own session cleanup on the way out.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Forcing shutdown after timeout", "err", err)
		_ = server.Close()
	}
	sup.Stop()
	<-supDone
	logger.Info("Relay stopped cleanly")

	return exitOK, nil
}
