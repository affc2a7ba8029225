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

	"github.com/joho/godotenv"

	"kalori/internal/amqp"
	"kalori/internal/backend"
	"kalori/internal/cache"
	"kalori/internal/config"
	apphttp "kalori/internal/http"
	"kalori/internal/ledger"
	applog "kalori/internal/log"
	"kalori/internal/profile"
	"kalori/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(os.Getenv("LOG_LEVEL")),
		Component: applog.ComponentApp,
	})
	applog.SetDefault(logger)

	logger.Info("Starting kalori")

	// Load configuration
	cfg := config.Load()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the document store backend
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	factory := backend.NewFactory(logger.Logger)
	result, err := factory.CreateStore(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize document store", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer func() {
			if err := result.Cleanup(); err != nil {
				logger.Error("Store cleanup failed", "error", err)
			}
		}()
	}

	// Initialize AMQP client for cross-process cache invalidation (optional)
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, processOrigin())
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without invalidation broadcast", "error", err)
		} else {
			defer amqpClient.Close()
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "origin", amqpClient.Origin())
		}
	}

	opts := ledger.Options{
		MutationTimeout: cfg.MutationTimeout,
		CacheSize:       cfg.CacheSize,
		CacheTTL:        cfg.CacheTTL,
	}
	if amqpClient != nil {
		opts.Publisher = amqpClient
	}
	engine := ledger.New(result.Store, opts)
	profiles := profile.NewService(result.Store)

	// Periodic cleanup of expired snapshots
	cacheManager := cache.NewManager()
	cacheManager.Register(engine.Snapshots())
	cacheManager.StartCleanup(10 * time.Minute)
	defer cacheManager.Stop()

	// Consume change broadcasts from other processes in-process; the snapshot
	// cache being invalidated lives here.
	if amqpClient != nil {
		invalidation := worker.NewInvalidationWorker(amqpClient, engine)
		go func() {
			if err := invalidation.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Invalidation consumer stopped", "error", err)
			}
		}()
	}

	srv := apphttp.NewServer(":"+cfg.Port, engine, profiles)

	// Graceful shutdown handling
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting kalori server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}

// processOrigin builds a tag identifying this process in change broadcasts.
func processOrigin() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
