package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aircast/signaling-relay/internal/config"
	"github.com/aircast/signaling-relay/internal/httpserver"
	"github.com/aircast/signaling-relay/internal/metrics"
	"github.com/aircast/signaling-relay/internal/room"
	"github.com/aircast/signaling-relay/internal/signaling"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	logger.Info("starting aircast-signaling-relay",
		"listen_addr", cfg.ListenAddr,
		"mode", cfg.Mode,
		"room_persistence_timeout", cfg.RoomPersistenceTimeout,
		"room_cleanup_interval", cfg.RoomCleanupInterval,
		"room_max_age", cfg.RoomMaxAge,
		"max_signaling_message_bytes", cfg.MaxSignalingMessageBytes,
		"max_signaling_messages_per_second", cfg.MaxSignalingMessagesPerSecond,
	)

	m := metrics.New()
	registry := room.NewRegistry(logger)
	router := signaling.NewRouter(registry, logger, m)
	ws := signaling.NewHandler(router, logger, m, cfg)

	srv := httpserver.New(cfg, logger)
	srv.Mux().Handle("GET /ws", ws)
	srv.Mux().Handle("GET /metrics", metrics.PrometheusHandler(m))

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Error("failed to listen", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The reaper must be running before /readyz reports ready; Serve flips
	// the ready flag only after this goroutine is started.
	reaper := room.NewReaper(registry, logger, m, cfg.RoomCleanupInterval, cfg.RoomPersistenceTimeout, cfg.RoomMaxAge)
	go reaper.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server exited", "err", err)
			os.Exit(1)
		}
		return
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "err", err)
		_ = srv.Close()
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server exited after shutdown", "err", err)
		os.Exit(1)
	}
}
