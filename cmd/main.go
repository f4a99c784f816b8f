package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/paybridge/paybridge/handler"
	"github.com/paybridge/paybridge/infra/config"
	"github.com/paybridge/paybridge/infra/events"
	"github.com/paybridge/paybridge/infra/logger"
	"github.com/paybridge/paybridge/infra/opensearch"
	"github.com/paybridge/paybridge/infra/queue"
	"github.com/paybridge/paybridge/infra/store"
	"github.com/paybridge/paybridge/provider"
	"github.com/paybridge/paybridge/router"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}
	cfg := config.GetAppConfig()

	// OpenSearch logging is optional; the service runs console-only without it
	var osLogger *opensearch.Logger
	if cfg.EnableLogging && cfg.OpenSearchURL != "" {
		osClient, err := opensearch.NewClient(opensearch.Config{
			URL:      cfg.OpenSearchURL,
			Username: cfg.OpenSearchUser,
			Password: cfg.OpenSearchPass,
		})
		if err != nil {
			log.Printf("Failed to initialize OpenSearch client: %v", err)
			log.Println("Continuing without OpenSearch logging...")
		} else {
			osLogger = opensearch.NewLogger(osClient)
			defer osLogger.Close()
		}
	}
	logger.InitGlobalLogger(osLogger, logger.ParseLogLevel(cfg.LoggingLevel))

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	txStore, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open transaction store: %v", err)
	}
	defer txStore.Close()

	var healthCache provider.HealthCache
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		healthCache = provider.NewRedisHealthCache(redisClient)
	} else {
		healthCache = provider.NewInMemoryHealthCache()
	}

	dispatcher := events.NewDispatcher()
	dispatcher.Subscribe(events.NewLogSubscriber())
	if osLogger != nil {
		dispatcher.Subscribe(events.NewAuditSubscriber(osLogger))
	}

	manager := provider.NewPaymentManager(provider.ManagerOptions{
		Store:     txStore,
		Health:    healthCache,
		HealthTTL: cfg.HealthTTL,
		Events:    dispatcher,
	})

	providerConfig := config.NewProviderConfig()
	providerConfig.LoadFromEnv()
	for _, providerName := range providerConfig.GetAvailableProviders() {
		providerCfg, err := providerConfig.GetConfig(providerName)
		if err != nil {
			log.Printf("Failed to get configuration for provider %s: %v", providerName, err)
			continue
		}
		if err := manager.AddProvider(providerName, providerCfg); err != nil {
			log.Printf("Failed to register provider %s: %v", providerName, err)
			continue
		}
		log.Printf("Registered provider: %s", providerName)
	}
	if name := providerConfig.GetDefaultProvider(); name != "" {
		if err := manager.SetDefaultProvider(name); err != nil {
			log.Printf("Failed to set default provider %s: %v", name, err)
		}
	}
	manager.SetFallbackProviders(providerConfig.GetFallbackProviders())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	webhookQueue := queue.NewWebhookQueue(
		func(ctx context.Context, job queue.Job) error {
			return manager.ProcessWebhook(ctx, job.Provider, job.Body)
		},
		queue.Options{
			Workers:    cfg.WebhookWorkers,
			MaxRetries: cfg.WebhookRetries,
			Backoff:    cfg.WebhookBackoff,
		},
	)
	webhookQueue.Start(ctx)

	// Periodic provider health probes keep the fallback chain gate fresh
	go func() {
		manager.RefreshHealth(ctx)
		ticker := time.NewTicker(cfg.HealthInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				manager.RefreshHealth(ctx)
			}
		}
	}()

	paymentHandler := handler.NewPaymentHandler(manager)
	webhookHandler := handler.NewWebhookHandler(manager, webhookQueue)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	router.Routes(r, paymentHandler, webhookHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("PayBridge listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if err := webhookQueue.Shutdown(shutdownCtx); err != nil {
		log.Printf("Webhook queue shutdown error: %v", err)
	}
	log.Println("Shutdown complete")
}
