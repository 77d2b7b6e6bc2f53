package domain

import "errors"

var (
	ErrQuestionNotFound = errors.New("question not found")
	ErrEmptyQuestion    = errors.New("question content is empty")
	ErrInvalidVoter     = errors.New("invalid voter id")
	ErrNotAnUpgrade     = errors.New("expected websocket upgrade")
	ErrRoomFull         = errors.New("room is full")
	ErrImageNotFound    = errors.New("image not found")
	ErrImageTooLarge    = errors.New("image too large")
	ErrImageType        = errors.New("unsupported image type")
)
