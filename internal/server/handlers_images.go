package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/petodopoderoso/cc-liveboard/internal/domain"
	apperrors "github.com/petodopoderoso/cc-liveboard/internal/errors"
	"github.com/petodopoderoso/cc-liveboard/internal/images"
)

type uploadImageResponse struct {
	Key string `json:"key"`
}

func (s *Server) handleUploadImage(c echo.Context) error {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return apperrors.ValidationError("multipart field 'image' is required")
	}
	if fileHeader.Size > images.MaxImageSize {
		return apperrors.ValidationError("image exceeds the 5 MB limit")
	}

	f, err := fileHeader.Open()
	if err != nil {
		return apperrors.InternalError("failed to read upload", err)
	}
	defer f.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	key, err := s.app.UploadImage(c.Request().Context(), contentType, fileHeader.Size, f)
	switch {
	case errors.Is(err, domain.ErrImageType):
		return apperrors.ValidationError("unsupported image type, expected png, jpeg, gif, or webp")
	case errors.Is(err, domain.ErrImageTooLarge):
		return apperrors.ValidationError("image exceeds the 5 MB limit")
	case err != nil:
		return apperrors.InternalError("failed to store image", err)
	}

	return c.JSON(http.StatusCreated, uploadImageResponse{Key: key})
}

func (s *Server) handleGetImage(c echo.Context) error {
	rc, contentType, err := s.app.OpenImage(c.Request().Context(), c.Param("key"))
	if errors.Is(err, domain.ErrImageNotFound) {
		return apperrors.NotFoundError("image not found")
	}
	if err != nil {
		return apperrors.InternalError("failed to open image", err)
	}
	defer rc.Close()

	// Keys are content-addressed by a random UUID, so the bytes never change.
	c.Response().Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	return c.Stream(http.StatusOK, contentType, rc)
}
