// QaPollsBot - QA aptitude survey bot for Telegram
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/dfursa/qapolls-bot/internal/config"
	"github.com/dfursa/qapolls-bot/internal/dispatch"
	"github.com/dfursa/qapolls-bot/internal/flow"
	"github.com/dfursa/qapolls-bot/internal/probe"
	"github.com/dfursa/qapolls-bot/internal/store"
	"github.com/dfursa/qapolls-bot/internal/transport"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting bot", "port", cfg.Port, "mode", cfg.Mode)

	// The poll window must fit inside the HTTP client timeout.
	tg, err := transport.New(cfg.Token, &http.Client{Timeout: cfg.PollTimeout + 15*time.Second})
	if err != nil {
		slog.Error("Failed to initialize Telegram client", "error", err)
		os.Exit(1)
	}
	slog.Info("Telegram client ready")

	if err := tg.SetCommands(); err != nil {
		slog.Warn("Failed to publish command menu", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize services.
	sessions := store.New()
	engine := flow.New(flow.Questions, flow.Bands)
	dispatcher := dispatch.New(ctx, sessions, engine, tg, flow.FailureReply())

	// Setup router.
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	switch cfg.Mode {
	case config.ModePush:
		webhook := transport.NewWebhook(cfg.WebhookSecret, dispatcher)
		webhook.RegisterRoutes(r)
		if err := tg.SetWebhook(cfg.WebhookURL(), cfg.WebhookSecret); err != nil {
			slog.Error("Failed to register webhook", "error", err)
			os.Exit(1)
		}
		slog.Info("Webhook registered", "url", cfg.WebhookURL())
	case config.ModePull:
		// A stale webhook blocks getUpdates.
		if err := tg.DeleteWebhook(); err != nil {
			slog.Warn("Failed to remove stale webhook", "error", err)
		}
		poller := transport.NewPoller(tg, dispatcher, cfg.PollTimeout)
		go poller.Run(ctx)
		slog.Info("Update poller started", "poll_timeout", cfg.PollTimeout)
	}

	probe.Start(ctx, probe.Config{
		Target:   cfg.ProbeTarget(),
		Warmup:   cfg.ProbeWarmup,
		Interval: cfg.ProbeInterval,
		Timeout:  cfg.ProbeTimeout,
	})
	slog.Info("Liveness probe started", "target", cfg.ProbeTarget(), "interval", cfg.ProbeInterval)

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if cfg.Mode == config.ModePush {
		if err := tg.DeleteWebhook(); err != nil {
			slog.Warn("Failed to deregister webhook", "error", err)
		}
	}

	// Let workers drain their queues.
	dispatcher.Wait()

	slog.Info("Bot stopped successfully")
}
