// Package main запускает HTTP-сервер сервиса проката оборудования.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/rentalhub/internal/cache"
	"github.com/mmeshcher/rentalhub/internal/config"
	"github.com/mmeshcher/rentalhub/internal/handler"
	"github.com/mmeshcher/rentalhub/internal/mailer"
	"github.com/mmeshcher/rentalhub/internal/metrics"
	"github.com/mmeshcher/rentalhub/internal/middleware"
	"github.com/mmeshcher/rentalhub/internal/repository"
	"github.com/mmeshcher/rentalhub/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var feedCache service.Cache
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			sugar.Fatalw("redis initialization error", "error", err.Error())
		}
		defer rc.Close()
		feedCache = rc
	} else {
		sugar.Info("REDIS_URL is not set, worker feed cache disabled")
	}

	if cfg.MailAPIURL == "" {
		sugar.Warn("MAIL_API_URL is not set, invoice emails will only be logged")
	}
	mailClient := mailer.NewClient(cfg.MailAPIURL, cfg.MailAPIKey, cfg.MailFrom, logger)

	m := metrics.New()

	svc := service.NewService(repo, mailClient, feedCache, m, logger, service.Options{
		BaseURL:        cfg.AppBaseURL,
		CompanyMailbox: cfg.CompanyMailbox,
		Currency:       cfg.Currency,
	})
	defer svc.Close()

	secret := cfg.AuthSecret
	if secret == "" {
		secret = uuid.NewString()
		sugar.Warn("AUTH_SECRET is not set, issued tokens will not survive a restart")
	}
	authMiddleware := middleware.NewAuthMiddleware(secret, cfg.TokenTTL)

	h := handler.NewHandler(svc, logger, authMiddleware, m)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting rentalhub server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
