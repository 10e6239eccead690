package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/sfuentes/agendabot/internal/assistant"
	"github.com/sfuentes/agendabot/internal/auth"
	"github.com/sfuentes/agendabot/internal/bot"
	"github.com/sfuentes/agendabot/internal/calendar"
	"github.com/sfuentes/agendabot/internal/config"
	"github.com/sfuentes/agendabot/internal/server"
)

func main() {
	config.LoadEnv(".env")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	encryptor, err := auth.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		logger.Error("failed to initialize credential encryption", "error", err)
		os.Exit(1)
	}

	store, err := auth.NewCredentialStoreFromEnv(encryptor)
	if err != nil {
		logger.Error("failed to initialize credential store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	var pending auth.PendingStore
	if cfg.RedisURL != "" {
		pending, err = auth.NewRedisPendingStore(cfg.RedisURL, cfg.PendingTTL)
		if err != nil {
			logger.Error("failed to initialize redis pending store", "error", err)
			os.Exit(1)
		}
	} else {
		pending = auth.NewMemoryPendingStore(cfg.PendingTTL)
	}
	defer pending.Close()

	oauthConfig := &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.RedirectURL(),
		Scopes:       cfg.Scopes,
	}
	broker := auth.NewBroker(oauthConfig, pending, logger)
	refresher := auth.NewRefresher(store, logger)

	engine := assistant.NewEngine(
		assistant.NewClient(cfg.MistralAPIKey),
		cfg.MistralModel, cfg.VisionModel, cfg.AudioModel,
		logger,
	)
	publisher := calendar.NewPublisher(cfg.Timezone, logger)

	b, err := bot.New(cfg.TelegramToken, engine, store, refresher, broker, publisher, cfg.WebhookMode(), logger)
	if err != nil {
		logger.Error("failed to start telegram bot", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.WebhookMode() {
		logger.Info("starting in polling mode; calendar authorization is unavailable without APP_URL")
		b.RunPolling(ctx)
		return
	}

	if err := b.RegisterWebhook(cfg.AppURL); err != nil {
		logger.Error("failed to register webhook", "error", err)
		os.Exit(1)
	}

	srv := server.New(cfg.Port, b.Token(), broker, store, b, b, logger)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("starting in webhook mode", "app_url", cfg.AppURL, "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
