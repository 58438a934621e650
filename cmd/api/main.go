// Package main is the entry point for the chat server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/linkup-social/chat-platform/internal/auth"
	"github.com/linkup-social/chat-platform/internal/cache"
	"github.com/linkup-social/chat-platform/internal/config"
	"github.com/linkup-social/chat-platform/internal/gateway"
	"github.com/linkup-social/chat-platform/internal/handler"
	natsclient "github.com/linkup-social/chat-platform/internal/nats"
	"github.com/linkup-social/chat-platform/internal/presence"
	"github.com/linkup-social/chat-platform/internal/service"
	"github.com/linkup-social/chat-platform/internal/store"
	"github.com/linkup-social/chat-platform/pkg/logger"
	"github.com/linkup-social/chat-platform/pkg/tracing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "chat server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.FromEnv(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	log.Info("starting chat server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "chat-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Open the database
	db, err := store.Open(ctx, store.Config{
		Driver:       cfg.DBDriver,
		DSN:          cfg.DBDSN,
		MaxOpenConns: cfg.DBMaxOpenConns,
	})
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	checks := map[string]handler.Check{
		"database": func(ctx context.Context) error { return store.Ping(ctx, db) },
	}

	// User directory, optionally behind Redis
	directory := store.NewUserDirectory(db)
	var users service.UserDirectory = directory
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()

		userCache := cache.NewUserCache(directory, client, cfg.UserCacheTTL, log)
		if err := userCache.Ping(ctx); err != nil {
			log.Warn("redis unreachable, lookups fall through to the database", zap.Error(err))
		}
		users = userCache
		checks["redis"] = userCache.Ping
	}

	// Event log, optionally on NATS JetStream
	var publisher service.EventPublisher = service.NopPublisher{}
	var tail handler.MessageTail
	if cfg.NATSEnabled {
		natsClient, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsClient.Close()

		streamManager := natsclient.NewStreamManager(natsClient)
		if err := streamManager.EnsureStream(ctx); err != nil {
			return fmt.Errorf("failed to ensure stream: %w", err)
		}
		publisher = streamManager
		tail = streamManager
		checks["nats"] = func(context.Context) error {
			if !natsClient.IsConnected() {
				return errors.New("not connected")
			}
			return nil
		}
	}

	// Initialize services
	conversations := store.NewConversationStore(db)
	// Authentication reads the database directly so revoked accounts fail at once.
	authenticator := auth.NewAuthenticator(cfg.JWTSecret, cfg.BearerKey, directory)
	chatSvc := service.NewChatService(conversations, users, publisher, log)
	groupSvc := service.NewGroupService(conversations, users, publisher, log)

	// Gateway
	registry := presence.NewRegistry()
	gw := gateway.New(authenticator, chatSvc, registry, gateway.Config{
		AuthTimeout:  cfg.WSAuthTimeout,
		EventTimeout: cfg.WSEventTimeout,
		ReadLimit:    cfg.WSReadLimit,
		PongWait:     cfg.WSPongWait,
		PingPeriod:   cfg.WSPingPeriod,
		WriteWait:    cfg.WSWriteWait,
		SendBuffer:   cfg.WSSendBuffer,
	}, log)

	router := newRouter(&routes{
		cfg:     cfg,
		log:     log,
		auth:    authenticator,
		health:  handler.NewHealthHandler(checks),
		chats:   handler.NewChatHandler(chatSvc, log),
		groups:  handler.NewGroupHandler(groupSvc, log),
		streams: handler.NewStreamHandler(chatSvc, tail, log),
		gateway: gw,
	})

	// WriteTimeout stays zero: it would cut off SSE streams.
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: cfg.ServerReadTimeout,
		IdleTimeout:       120 * time.Second,
	}
	server.RegisterOnShutdown(gw.Shutdown)

	// Request contexts end on shutdown so open SSE streams return.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	server.BaseContext = func(net.Listener) context.Context { return baseCtx }
	server.RegisterOnShutdown(cancelBase)

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("shutting down server", zap.String("signal", sig.String()))
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
	return nil
}
