package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/petodopoderoso/cc-liveboard/internal/domain"
	apperrors "github.com/petodopoderoso/cc-liveboard/internal/errors"
)

type createQuestionRequest struct {
	Content  string  `json:"content"`
	Author   string  `json:"author"`
	ImageKey *string `json:"imageKey"`
}

type toggleVoteRequest struct {
	VoterID string `json:"voterId"`
}

type toggleVoteResponse struct {
	QuestionID uuid.UUID `json:"questionId"`
	Votes      int       `json:"votes"`
	Voted      bool      `json:"voted"`
}

func (s *Server) handleListQuestions(c echo.Context) error {
	questions, err := s.app.ListQuestions(c.Request().Context(), c.Param("room"))
	if err != nil {
		return apperrors.InternalError("failed to list questions", err)
	}
	return c.JSON(http.StatusOK, questions)
}

func (s *Server) handleCreateQuestion(c echo.Context) error {
	var req createQuestionRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	q, err := s.app.CreateQuestion(c.Request().Context(), c.Param("room"), req.Content, req.Author, req.ImageKey)
	if errors.Is(err, domain.ErrEmptyQuestion) {
		return apperrors.ValidationError("question content must not be empty")
	}
	if err != nil {
		return apperrors.InternalError("failed to create question", err)
	}

	return c.JSON(http.StatusCreated, q)
}

func (s *Server) handleToggleVote(c echo.Context) error {
	questionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperrors.ValidationError("invalid question id")
	}

	var req toggleVoteRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	votes, voted, err := s.app.ToggleVote(c.Request().Context(), c.Param("room"), questionID, req.VoterID)
	switch {
	case errors.Is(err, domain.ErrInvalidVoter):
		return apperrors.ValidationError("voterId must not be empty")
	case errors.Is(err, domain.ErrQuestionNotFound):
		return apperrors.NotFoundError("question not found")
	case err != nil:
		return apperrors.InternalError("failed to toggle vote", err)
	}

	return c.JSON(http.StatusOK, toggleVoteResponse{QuestionID: questionID, Votes: votes, Voted: voted})
}

func (s *Server) handleAnswerQuestion(c echo.Context) error {
	questionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperrors.ValidationError("invalid question id")
	}

	err = s.app.AnswerQuestion(c.Request().Context(), c.Param("room"), questionID)
	if errors.Is(err, domain.ErrQuestionNotFound) {
		return apperrors.NotFoundError("question not found")
	}
	if err != nil {
		return apperrors.InternalError("failed to answer question", err)
	}

	return c.NoContent(http.StatusNoContent)
}
