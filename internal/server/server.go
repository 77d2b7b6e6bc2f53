package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/petodopoderoso/cc-liveboard/internal/app"
	"github.com/petodopoderoso/cc-liveboard/internal/config"
	"github.com/petodopoderoso/cc-liveboard/internal/errors"
	"github.com/petodopoderoso/cc-liveboard/internal/room"
)

// healthChecker is the minimal interface the readiness probe needs from a
// backing store.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// redisPinger is the minimal interface the readiness probe needs from Redis.
type redisPinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	echo      *echo.Echo
	config    *config.Config
	app       *app.Service
	rooms     *room.Directory
	db        healthChecker
	redis     redisPinger
	startTime time.Time
}

func NewServer(cfg *config.Config, svc *app.Service, rooms *room.Directory, db healthChecker, redis redisPinger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(errors.Middleware())

	srv := &Server{
		echo:      e,
		config:    cfg,
		app:       svc,
		rooms:     rooms,
		db:        db,
		redis:     redis,
		startTime: time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
