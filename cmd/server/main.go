package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/crowngambit/api/internal/config"
	"github.com/crowngambit/api/internal/handler"
	"github.com/crowngambit/api/internal/logger"
	"github.com/crowngambit/api/internal/middleware"
	"github.com/crowngambit/api/internal/repository/postgres"
	redisrepo "github.com/crowngambit/api/internal/repository/redis"
	"github.com/crowngambit/api/internal/service"
)

func main() {
	logger.Init()
	cfg := config.Load()
	log.Info().Str("databaseURL", cfg.DatabaseURL).Msg("Config loaded")

	// Database
	db, err := postgres.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	defer db.Close()

	// Redis
	redisClient, err := redisrepo.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	defer redisClient.Close()

	// Enable Redis keyspace notifications for timer expiry events.
	if err := redisClient.Underlying().ConfigSet(context.Background(), "notify-keyspace-events", "Ex").Err(); err != nil {
		log.Warn().Err(err).Msg("Failed to set Redis keyspace notifications (timer expiry may not work)")
	}

	// Repos
	matchRepo := postgres.NewMatchRepo(db)
	turnRepo := postgres.NewTurnRepo(db)

	// WebSocket hub
	wsHub := handler.NewHub()

	// Services
	matchSvc := service.NewMatchService(matchRepo, turnRepo, redisClient, wsHub, cfg.GameSettings())

	// Timer listener (timeout defaults on expiry)
	timerListener := service.NewTimerListener(redisClient.Underlying(), matchSvc)

	// Handlers
	matchHandler := handler.NewMatchHandler(matchSvc)
	wsHandler := handler.NewWSHandler(wsHub, matchSvc)

	// Router
	mux := http.NewServeMux()

	// Health
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// API routes
	api := http.NewServeMux()
	api.HandleFunc("POST /matches", matchHandler.Create)
	api.HandleFunc("GET /matches", matchHandler.ListOpen)
	api.HandleFunc("GET /matches/{id}", matchHandler.Get)
	api.HandleFunc("GET /matches/{id}/state", matchHandler.State)
	api.HandleFunc("GET /matches/{id}/turns", matchHandler.Turns)
	api.HandleFunc("POST /matches/{id}/join", matchHandler.Join)
	api.HandleFunc("POST /matches/{id}/move", matchHandler.Move)
	api.HandleFunc("POST /matches/{id}/duel/commit", matchHandler.DuelCommit)
	api.HandleFunc("POST /matches/{id}/duel/reveal", matchHandler.DuelReveal)
	api.HandleFunc("POST /matches/{id}/retreat", matchHandler.Retreat)
	api.HandleFunc("POST /matches/{id}/resign", matchHandler.Resign)

	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", api))

	// WebSocket (viewer identity via query param, not middleware)
	mux.HandleFunc("GET /api/v1/ws", wsHandler.ServeWS)

	// Apply global middleware
	root := middleware.Chain(mux, middleware.Logger, middleware.CORS("*"), middleware.JSON)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Recover live engines (rehydrate from Redis or Postgres after restart)
	if err := matchSvc.RecoverActiveMatches(context.Background()); err != nil {
		log.Error().Err(err).Msg("Failed to recover active matches (non-fatal)")
	}

	// Start timer listener
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go timerListener.Start(ctx)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("Server stopped")
}
