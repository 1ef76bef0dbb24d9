package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"resolvex/backend/internal/api/handler"
	"resolvex/backend/internal/app"
	"resolvex/backend/internal/config"
	"resolvex/backend/internal/escalation"
	"resolvex/backend/internal/hub"
	"resolvex/backend/internal/localization"
	"resolvex/backend/internal/logger"
	"resolvex/backend/internal/telegram"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logger.New("prod")
		l.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.New(cfg.Env)
	log.Info().Str("env", cfg.Env).Str("storage", cfg.StorageDriver).Msg("starting resolvex backend")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// 1. Dependencies
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	// 2. Background workers. The notifier is attached before anything that
	// can announce a change is running.
	var (
		tg  *telegram.Notifier
		bot telegram.Updates
	)
	if cfg.TelegramBotToken != "" {
		if tg, bot, err = newTelegram(cfg, a, log); err != nil {
			// Notifications are optional; the API keeps working without them.
			log.Error().Err(err).Msg("telegram notifications disabled")
		} else {
			a.Complaints.Notifier = tg
		}
	}
	h := startWorkers(ctx, cfg, a, log)
	if tg != nil {
		go tg.Run(ctx)
		go tg.Listen(ctx, bot)
	}

	// 3. HTTP
	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	api := handler.NewHandler(a.Complaints, a.Users, h, log)
	api.MaxUploadBytes = a.Files.MaxBytes()

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        api.Router(cfg.CORSOrigins),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// startWorkers launches the realtime hub and, when enabled, the escalation
// sweeper. Everything they call into must be configured beforehand.
func startWorkers(ctx context.Context, cfg *config.Config, a *app.App, log zerolog.Logger) *hub.ManagerService {
	h := hub.NewManagerService(a.Storage, log)
	go func() {
		if err := h.Run(ctx); err != nil {
			log.Error().Err(err).Msg("hub stopped")
		}
	}()

	if cfg.EscalationEnabled {
		sweeper := escalation.NewSweeper(a.Complaints, a.Storage, cfg.EscalationInterval, log)
		go sweeper.Run(ctx)
	}
	return h
}

func newTelegram(cfg *config.Config, a *app.App, log zerolog.Logger) (*telegram.Notifier, telegram.Updates, error) {
	if cfg.TelegramChatID == 0 {
		return nil, nil, errors.New("TELEGRAM_CHAT_ID is not set")
	}
	loc, err := localization.Default()
	if err != nil {
		return nil, nil, err
	}
	n, bot, err := telegram.NewNotifier(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.Locale, loc, a.Storage, log)
	if err != nil {
		return nil, nil, err
	}
	return n, bot, nil
}
