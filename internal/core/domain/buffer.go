package domain

import "time"

// BufferState tracks playback seconds queued ahead of the play head.
// Invariant: 0 <= CurrentLevel <= MaxLevel, enforced by clamping on every
// mutation rather than by error signaling.
type BufferState struct {
	CurrentLevel time.Duration `json:"current_level"`
	TargetLevel  time.Duration `json:"target_level"`
	MaxLevel     time.Duration `json:"max_level"`
	MinLevel     time.Duration `json:"min_level"`
}
