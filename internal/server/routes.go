package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Room REST surface
	s.echo.GET("/api/rooms/:room", s.handleRoomInfo)
	s.echo.GET("/api/rooms/:room/questions", s.handleListQuestions)
	s.echo.POST("/api/rooms/:room/questions", s.handleCreateQuestion)
	s.echo.POST("/api/rooms/:room/questions/:id/vote", s.handleToggleVote)
	s.echo.PATCH("/api/rooms/:room/questions/:id/answer", s.handleAnswerQuestion)

	// Image attachments
	s.echo.POST("/api/images", s.handleUploadImage)
	s.echo.GET("/api/images/:key", s.handleGetImage)

	// Live room connection
	s.echo.GET("/ws/:room", s.handleWebSocket)
}
