package services

import (
	"time"

	"abrflow/internal/core/domain"
)

// pausePlaybackFloor is the emergency rebuffer floor. It is distinct from the
// configurable MinLevel: MinLevel drives the health predicate, this floor
// drives the "pause playback now" recommendation.
const pausePlaybackFloor = time.Second

// BufferTracker maintains playback buffer occupancy and converts buffer
// health into a multiplicative scaling factor on the bandwidth estimate.
type BufferTracker struct {
	state          domain.BufferState
	panicThreshold time.Duration
	seekThreshold  time.Duration
}

func NewBufferTracker(state domain.BufferState, panicThreshold, seekThreshold time.Duration) *BufferTracker {
	return &BufferTracker{
		state:          state,
		panicThreshold: panicThreshold,
		seekThreshold:  seekThreshold,
	}
}

// OnSegmentArrival credits a downloaded segment's play time, clamped to the
// maximum level.
func (b *BufferTracker) OnSegmentArrival(segmentDuration time.Duration) {
	b.state.CurrentLevel += segmentDuration
	if b.state.CurrentLevel > b.state.MaxLevel {
		b.state.CurrentLevel = b.state.MaxLevel
	}
}

// OnPlaybackConsumption debits consumed play time, never going below zero.
func (b *BufferTracker) OnPlaybackConsumption(consumed time.Duration) {
	if b.state.CurrentLevel >= consumed {
		b.state.CurrentLevel -= consumed
	} else {
		b.state.CurrentLevel = 0
	}
}

// Factor maps the current occupancy to a bandwidth scaling multiplier:
// below the panic threshold the selector must be severely conservative, below
// target it ramps linearly from 0.6 toward 0.9, above the seek threshold the
// surplus permits over-provisioning.
func (b *BufferTracker) Factor() float64 {
	current := b.state.CurrentLevel.Seconds()
	target := b.state.TargetLevel.Seconds()

	switch {
	case b.state.CurrentLevel < b.panicThreshold:
		return 0.3
	case b.state.CurrentLevel < b.state.TargetLevel:
		return 0.6 + 0.3*(current/target)
	case b.state.CurrentLevel > b.seekThreshold:
		return 1.5
	default:
		return 1.0
	}
}

// BelowPanic reports whether occupancy is under the panic threshold.
func (b *BufferTracker) BelowPanic() bool {
	return b.state.CurrentLevel < b.panicThreshold
}

// Healthy reports whether occupancy is at or above the configured minimum.
func (b *BufferTracker) Healthy() bool {
	return b.state.CurrentLevel >= b.state.MinLevel
}

// ShouldPause recommends pausing playback to rebuffer.
func (b *BufferTracker) ShouldPause() bool {
	return b.state.CurrentLevel < pausePlaybackFloor
}

// State returns a copy of the buffer occupancy snapshot.
func (b *BufferTracker) State() domain.BufferState {
	return b.state
}
