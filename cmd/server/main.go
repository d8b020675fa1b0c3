// hirebench - coding-assessment backend with session replay
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/hirebench/hirebench/internal/api"
	"github.com/hirebench/hirebench/internal/config"
	"github.com/hirebench/hirebench/internal/genai"
	"github.com/hirebench/hirebench/internal/identity"
	"github.com/hirebench/hirebench/internal/judge"
	"github.com/hirebench/hirebench/internal/live"
	"github.com/hirebench/hirebench/internal/middleware"
	"github.com/hirebench/hirebench/internal/recorder"
	"github.com/hirebench/hirebench/internal/retention"
	"github.com/hirebench/hirebench/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	registry := recorder.NewRegistry()

	// Judge is optional: without it, submissions answer 503 but capture and
	// replay keep working.
	var judgeClient *judge.Client
	if cfg.Judge.URL != "" {
		judgeClient = judge.NewClient(cfg.Judge.URL, cfg.Judge.Token, cfg.Judge.Timeout, logger)
		slog.Info("Judge client initialized", "url", cfg.Judge.URL)
	} else {
		slog.Info("Code execution disabled (JUDGE_URL not set)")
	}

	// Question generation is likewise optional.
	var gen *genai.Service
	if cfg.GenAI.APIKey != "" {
		gen, err = genai.New(cfg.GenAI, logger)
		if err != nil {
			slog.Error("Failed to initialize genai service", "error", err)
			os.Exit(1)
		}
		slog.Info("GenAI service initialized", "model", cfg.GenAI.Model)
	} else {
		slog.Info("Question generation disabled (GENAI_API_KEY not set)")
	}

	// Initialize handlers.
	apiHandler := api.NewHandler(repo, judgeClient, gen, cfg)
	ingestHandler := live.NewIngestHandler(repo, registry, cfg)
	replayHandler := live.NewReplayHandler(repo, cfg)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	apiHandler.RegisterRoutes(r)

	// WebSocket endpoints.
	r.Get("/ws/events", ingestHandler.ServeHTTP)
	r.Get("/ws/replay", replayHandler.ServeHTTP)

	// Create server. WebSocket connections need long write windows, so no
	// WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	retention.StartSweeper(ctx, repo, registry, cfg)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	// Flush whatever the live recorders still hold before the store closes.
	registry.CloseAll()

	slog.Info("Server stopped successfully")
}
