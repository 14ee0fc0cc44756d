package domain

import "errors"

var (
	ErrEmptyLadder        = errors.New("quality ladder is empty")
	ErrLadderNotAscending = errors.New("quality ladder must be ordered by ascending bitrate")
	ErrSessionNotFound    = errors.New("session not found")
)
