package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jwebster45206/taleparty/internal/config"
	"github.com/jwebster45206/taleparty/internal/handlers"
	"github.com/jwebster45206/taleparty/internal/logger"
	"github.com/jwebster45206/taleparty/internal/middleware"
	"github.com/jwebster45206/taleparty/internal/observability"
	"github.com/jwebster45206/taleparty/internal/services"
	"github.com/jwebster45206/taleparty/internal/services/events"
	"github.com/jwebster45206/taleparty/internal/services/presence"
	"github.com/jwebster45206/taleparty/internal/services/queue"
	"github.com/jwebster45206/taleparty/internal/session"
	"github.com/jwebster45206/taleparty/internal/storage"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Taleparty API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"store_backend", cfg.StoreBackend,
		"narrator_provider", cfg.NarratorProvider,
		"narrator_model", cfg.NarratorModel)

	tp, err := observability.InitTracing(context.Background(), observability.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Environment,
		Enabled:        cfg.TracesEnabled,
		Endpoint:       cfg.OTLPEndpoint,
		Insecure:       !cfg.IsProduction(),
	})
	if err != nil {
		log.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Redis carries the realtime features (events, presence, table talk) and,
	// for the redis backend, the sessions themselves.
	var redisSvc *services.RedisService
	if !strings.EqualFold(cfg.StoreBackend, "memory") {
		redisSvc, err = services.NewRedisService(cfg.RedisURL, log)
		if err != nil {
			log.Error("Invalid Redis configuration", "error", err)
			os.Exit(1)
		}
		waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Minute)
		err = redisSvc.WaitForConnection(waitCtx, 10, 2*time.Second)
		waitCancel()
		if err != nil {
			log.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		log.Info("Redis connection established successfully")
	}

	records, err := newRecordStore(cfg, redisSvc, log)
	if err != nil {
		log.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	sessions := storage.NewSessions(records, log)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = sessions.Ping(pingCtx)
	pingCancel()
	if err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully", "backend", cfg.StoreBackend)

	narratorCfg := services.NarratorConfig{
		Provider:        cfg.NarratorProvider,
		Model:           cfg.NarratorModel,
		GeminiAPIKey:    cfg.GeminiAPIKey,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		OpenAIBaseURL:   cfg.OpenAIBaseURL,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
	}
	narrator, err := services.NewNarrator(context.Background(), narratorCfg, log)
	if err != nil {
		log.Error("Failed to initialize narrator", "error", err, "provider", cfg.NarratorProvider)
		os.Exit(1)
	}

	// Titles may use a cheaper model on the same provider.
	var titler services.Narrator
	if cfg.TitleModel != "" && cfg.TitleModel != cfg.NarratorModel {
		narratorCfg.Model = cfg.TitleModel
		titler, err = services.NewNarrator(context.Background(), narratorCfg, log)
		if err != nil {
			log.Error("Failed to initialize title narrator", "error", err, "model", cfg.TitleModel)
			os.Exit(1)
		}
	}

	orch := session.New(sessions, narrator, titler, session.Options{
		HistoryLimit:    cfg.HistoryLimit,
		NarratorTimeout: cfg.NarratorTimeout,
	}, log)

	mux := http.NewServeMux()

	components := map[string]handlers.Pinger{"store": sessions}
	if redisSvc != nil {
		rdb := redisSvc.GetClient()
		broadcaster := events.NewBroadcaster(rdb, log)
		orch.WithPublisher(broadcaster).
			WithPresence(presence.NewTracker(rdb, presence.DefaultTTL, log)).
			WithOOCLog(queue.NewOOCQueue(rdb, log))
		handlers.NewEventsHandler(broadcaster, orch, log).Register(mux)
		components["redis"] = redisSvc
	} else {
		log.Warn("Realtime features disabled for the memory backend")
	}

	mux.Handle("GET /health", handlers.NewHealthHandler(cfg.ServiceName, narrator.Name(), components, log))
	handlers.NewSessionHandler(orch, log).Register(mux)

	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET is empty; trusting the " + middleware.UserIDHeader + " header")
	}
	auth := middleware.NewAuth(cfg.JWTSecret, log, "/health")

	// Auth wraps the logger so request logs carry the caller.
	handler := auth.Middleware(middleware.Logger(log)(mux))
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout removed to enable streaming - the event stream and
		// narration calls bound themselves
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	// The redis backend shares the Redis service's client.
	if !strings.EqualFold(cfg.StoreBackend, "redis") {
		if err := records.Close(); err != nil {
			log.Error("Error closing storage connection", "error", err)
		}
	}
	if redisSvc != nil {
		if err := redisSvc.Close(); err != nil {
			log.Error("Error closing Redis connection", "error", err)
		}
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", "error", err)
	}

	log.Info("Server exited")
}

func newRecordStore(cfg *config.Config, redisSvc *services.RedisService, log *slog.Logger) (storage.RecordStore, error) {
	switch strings.ToLower(cfg.StoreBackend) {
	case "redis":
		return storage.NewRedisStore(redisSvc.GetClient(), cfg.SessionTTL, log), nil
	case "supabase":
		return storage.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseKey, storage.SessionsTable, log)
	default:
		return storage.NewMemoryStore(), nil
	}
}
