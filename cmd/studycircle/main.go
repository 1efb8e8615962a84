package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rahulvtu/studycircle/internal/access"
	"github.com/rahulvtu/studycircle/internal/api"
	"github.com/rahulvtu/studycircle/internal/chatlog"
	"github.com/rahulvtu/studycircle/internal/config"
	"github.com/rahulvtu/studycircle/internal/fanout"
	"github.com/rahulvtu/studycircle/internal/identity"
	"github.com/rahulvtu/studycircle/internal/metrics"
	"github.com/rahulvtu/studycircle/internal/repository/postgres"
	"github.com/rahulvtu/studycircle/internal/session"
	"github.com/rahulvtu/studycircle/internal/telegram"
	"github.com/rahulvtu/studycircle/pkg/logger"
)

func main() {
	// A .env file is a local-dev convenience, not a requirement.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l := logger.New(cfg.LogLevel, cfg.LogFormat)
	l.Info("Starting studycircle...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := config.NewDatabase(ctx, cfg.DatabaseURL, l)
	if err != nil {
		l.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Migrations must land before the listener: they install the notify
	// triggers that feed it.
	if err := db.Migrate("migrations"); err != nil {
		l.Fatalf("Failed to run migrations: %v", err)
	}

	// Repositories
	profileRepo := postgres.NewProfileRepository(db.DB)
	groupRepo := postgres.NewGroupRepository(db.DB)
	membershipRepo := postgres.NewMembershipRepository(db.DB)
	requestRepo := postgres.NewRequestRepository(db.DB)
	messageRepo := postgres.NewMessageRepository(db.DB)

	// Core components
	m := metrics.New()
	engine := access.NewEngine(l, m, groupRepo, membershipRepo, requestRepo)
	chatLog := chatlog.NewLog(l, engine, m, messageRepo)

	listener, err := fanout.NewListener(l, cfg.DatabaseURL)
	if err != nil {
		l.Fatalf("Failed to start realtime listener: %v", err)
	}
	defer listener.Close()

	sessions := session.NewManager(l, engine, chatLog, listener, m)

	// Graceful shutdown on SIGINT/SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		l.Info("Received shutdown signal...")
		cancel()
	}()

	// Metrics endpoint on its own port
	metricsServer := &http.Server{
		Addr:    ":" + cfg.PrometheusPort,
		Handler: m.Handler(),
	}
	go func() {
		l.Infof("Metrics server listening on :%s", cfg.PrometheusPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Errorf("Metrics server error: %v", err)
		}
	}()

	// HTTP API
	apiServer := api.NewServer(engine, chatLog, sessions, profileRepo, membershipRepo, requestRepo, identity.HeaderProvider{}, l)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: apiServer.Handler(),
		// Tie request contexts to the process context so long-lived SSE
		// streams unwind on shutdown instead of pinning the server.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	go func() {
		l.Infof("HTTP server listening on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Errorf("HTTP server error: %v", err)
		}
	}()

	// Telegram bridge, only when configured
	if cfg.TelegramToken != "" {
		bridge, err := telegram.NewBridge(cfg.TelegramToken, sessions, cfg.TelegramGroupID, cfg.TelegramUserID, cfg.TelegramChatID, l)
		if err != nil {
			l.Fatalf("Failed to create Telegram bridge: %v", err)
		}
		go func() {
			if err := bridge.Start(ctx); err != nil {
				l.Errorf("Telegram bridge error: %v", err)
			}
		}()
	}

	l.Info("studycircle started successfully")

	<-ctx.Done()

	// Stop accepting requests first; open SSE streams close their sessions
	// as their request contexts end, then the listener goes away.
	l.Info("Shutting down HTTP server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		l.Errorf("HTTP server shutdown error: %v", err)
	}
	metricsServer.Close()

	l.Info("studycircle stopped")
}
