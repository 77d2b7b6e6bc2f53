package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/petodopoderoso/cc-liveboard/internal/app"
	"github.com/petodopoderoso/cc-liveboard/internal/config"
	"github.com/petodopoderoso/cc-liveboard/internal/database"
	"github.com/petodopoderoso/cc-liveboard/internal/images"
	"github.com/petodopoderoso/cc-liveboard/internal/logging"
	"github.com/petodopoderoso/cc-liveboard/internal/redis"
	"github.com/petodopoderoso/cc-liveboard/internal/room"
	"github.com/petodopoderoso/cc-liveboard/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *database.DB {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := db.RunMigrations(ctx); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return db
}

func setupRedis(cfg *config.Config) *redis.Client {
	client, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		slog.Error("Failed to ping Redis", "error", err)
		os.Exit(1)
	}

	return client
}

func runGracefulShutdown(srv *server.Server, rooms *room.Directory) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		rooms.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	db := setupDB(cfg)
	defer db.Close()

	redisClient := setupRedis(cfg)
	defer func() { _ = redisClient.Close() }()

	questions := database.NewQuestionRepo(db)
	votes := database.NewVoteRepo(db)
	presence := redis.NewPresenceStore(redisClient, clock)

	imageStore, err := images.NewDiskStore(cfg.ImageDir)
	if err != nil {
		slog.Error("Failed to initialize image store", "error", err)
		os.Exit(1)
	}

	// The directory's session callbacks drive presence, and the service
	// broadcasts through the directory; both sides are wired up below.
	var svc *app.Service
	rooms := room.NewDirectory(
		room.Config{IdleTimeout: cfg.RoomIdleTimeout, MaxSessionsPerRoom: cfg.MaxSessionsPerRoom},
		func(roomID string) { svc.OnFirstSession(roomID) },
		func(roomID string) { svc.OnLastSession(roomID) },
		clock,
	)
	svc = app.NewService(questions, votes, rooms, presence, imageStore)

	srv := server.NewServer(cfg, svc, rooms, db, redisClient)
	done := runGracefulShutdown(srv, rooms)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("Application stopped")
}
