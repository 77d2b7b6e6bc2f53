package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/petodopoderoso/cc-liveboard/internal/domain"
	apperrors "github.com/petodopoderoso/cc-liveboard/internal/errors"
)

func (s *Server) handleRoomInfo(c echo.Context) error {
	info, err := s.app.RoomInfo(c.Request().Context(), c.Param("room"))
	if err != nil {
		return apperrors.InternalError("failed to read room info", err)
	}
	return c.JSON(http.StatusOK, info)
}

// handleWebSocket joins the caller to a room. The registry update and the
// connected event both happen inside the room actor; after the upgrade the
// connection belongs to the room until it closes.
func (s *Server) handleWebSocket(c echo.Context) error {
	rm := s.rooms.Resolve(c.Param("room"))

	_, err := rm.Accept(c.Response(), c.Request())
	if errors.Is(err, domain.ErrNotAnUpgrade) {
		return apperrors.UpgradeRequiredError("websocket upgrade required")
	}
	if err != nil {
		// The upgrade already hijacked the connection; Accept closed it.
		// ErrRoomFull and transport failures land here.
		slog.Warn("Failed to accept session", "room", c.Param("room"), "error", err)
		return nil
	}

	return nil
}
