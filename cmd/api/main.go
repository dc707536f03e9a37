// Package main is the entry point for the BuddyAI gateway server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/buddy-ai/buddyai/internal/config"
	"github.com/buddy-ai/buddyai/internal/events"
	"github.com/buddy-ai/buddyai/internal/handler"
	"github.com/buddy-ai/buddyai/internal/llm"
	"github.com/buddy-ai/buddyai/internal/memory"
	"github.com/buddy-ai/buddyai/internal/middleware"
	"github.com/buddy-ai/buddyai/internal/service"
	"github.com/buddy-ai/buddyai/pkg/logger"
	"github.com/buddy-ai/buddyai/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting BuddyAI gateway")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "buddyai-gateway", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Initialize LLM client
	llmClient, err := llm.NewClient(llm.Provider(cfg.LLMProvider), llm.Options{
		BaseURL:   cfg.OllamaURL,
		APIKey:    cfg.AnthropicAPIKey,
		ChatModel: cfg.ChatModel,
	})
	if err != nil {
		log.Error("failed to create LLM client", zap.Error(err))
		os.Exit(1)
	}

	// Initialize vector memory. The collection opens in the background; the
	// chat pipeline fails fast with a not-ready error until it completes.
	var mem service.Memory
	if cfg.MemoryEnabled {
		store := memory.NewStore(llmClient, cfg.EmbedModel, cfg.MemoryDir, cfg.MemoryCollection, log)
		go func() {
			if err := store.Init(); err != nil {
				log.Error("failed to initialize memory store", zap.Error(err))
			}
		}()
		mem = store
	}

	// Connect to NATS for exchange events, when configured
	var publisher *events.Publisher
	if cfg.NATSURL != "" {
		publisher, err = events.Connect(cfg.NATSURL, cfg.NATSToken, log)
		if err != nil {
			log.Warn("failed to connect to NATS, exchange events disabled", zap.Error(err))
		} else {
			defer publisher.Close()
		}
	}

	// Initialize service and handlers
	chatSvc := service.NewChatService(llmClient, mem, cfg.MemoryRetrievalEnabled, cfg.ChatModel, cfg.EmbedModel, publisher, log)
	chatHandler := handler.NewChatHandler(chatSvc, log)
	healthHandler := handler.NewHealthHandler(chatSvc)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Liveness endpoints
	r.Get("/", chatHandler.Root)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Get("/", chatHandler.APIRoot)
		r.Post("/chat", chatHandler.Chat)
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
