package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lexchat-backend/internal/api"
	"lexchat-backend/internal/handlers"
	"lexchat-backend/internal/llm"
	"lexchat-backend/internal/notify"
	"lexchat-backend/internal/services"
	"lexchat-backend/internal/store/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 10 * time.Second
	chatLogTimeout  = 5 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	log.Info().Str("version", Version).Msg("starting lexchat backend")

	if cfg.AutoMigrate {
		if err := postgres.Migrate(cfg.DatabaseURL, log); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
	}

	// Database Connection Pool
	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	dbpool, err := pgxpool.New(dbCtx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("create database pool: %w", err)
	}
	defer dbpool.Close()

	if err := dbpool.Ping(dbCtx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	log.Info().Msg("database connection pool established")

	// Store, collaborators, services
	pgStore := postgres.NewPostgresStore(dbpool, log)

	completer := llm.NewClient(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Referer: cfg.LLM.Referer,
		Title:   cfg.LLM.Title,
		Timeout: cfg.LLM.Timeout(),
	}, log)

	chatLog := notify.NewChatLogger(cfg.ChatLogURL, notify.DefaultQueueSize, chatLogTimeout, log)
	if !chatLog.Enabled() {
		log.Info().Msg("CHAT_LOG_URL not set, chat log notifications disabled")
	}

	chatOpts := cfg.Chat()
	if chatOpts.DailyMessageLimit == 0 {
		log.Info().Msg("daily message limit disabled")
	} else {
		log.Info().Int("limit", chatOpts.DailyMessageLimit).Msg("daily message limit enabled")
	}

	authService := services.NewAuthService(pgStore, cfg, log)
	chatService := services.NewChatService(pgStore, completer, chatLog, chatOpts, log)
	guestService := services.NewGuestChatService(completer, chatLog, log)
	adminService := services.NewAdminService(pgStore, log)
	if cfg.AdminAPIKey == "" {
		log.Warn().Msg("ADMIN_API_KEY not set, admin routes will reject every request")
	}

	// Router
	router := api.NewRouter(api.RouterDependencies{
		AuthHandler:      handlers.NewAuthHandler(authService, log),
		ChatHandler:      handlers.NewChatHandlers(chatService, log),
		GuestChatHandler: handlers.NewGuestChatHandler(guestService, log),
		AdminHandler:     handlers.NewAdminHandler(adminService, log),
		Config:           cfg,
		Logger:           log,
	})

	server := &http.Server{
		Addr:        ":" + cfg.HTTPPort,
		Handler:     router,
		ReadTimeout: 5 * time.Second,
		// Sends wait on the completion API, so writes get the full request budget.
		WriteTimeout: cfg.LLM.Timeout() + 45*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", cfg.HTTPPort, err)
		}
	case sig := <-stopChan:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown failed")
	}
	if err := chatLog.Close(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("chat log queue not drained")
	}

	log.Info().Msg("server shutdown complete")
	return nil
}
