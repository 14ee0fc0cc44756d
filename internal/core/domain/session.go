package domain

import "time"

// QualityDecision is the outcome of one quality selection pass.
type QualityDecision struct {
	Index              int           `json:"index"`
	Level              QualityLevel  `json:"level"`
	EstimatedBandwidth float64       `json:"estimated_bandwidth"` // bytes/sec
	BufferLevel        time.Duration `json:"buffer_level"`
}

// SessionSnapshot is a side-effect-free view of a playback session.
type SessionSnapshot struct {
	SessionID          SessionID     `json:"session_id"`
	CurrentIndex       int           `json:"current_index"`
	CurrentLevel       QualityLevel  `json:"current_level"`
	Buffer             BufferState   `json:"buffer"`
	EstimatedBandwidth float64       `json:"estimated_bandwidth"` // bytes/sec
	BufferHealthy      bool          `json:"buffer_healthy"`
	PausePlayback      bool          `json:"pause_playback"`
	CreatedAt          time.Time     `json:"created_at"`
}

// DecisionEvent is broadcast to telemetry subscribers after each decision.
type DecisionEvent struct {
	SessionID          SessionID `json:"session_id"`
	Timestamp          time.Time `json:"timestamp"`
	Index              int       `json:"index"`
	Bitrate            int       `json:"bitrate"`
	EstimatedBandwidth float64   `json:"estimated_bandwidth"` // bytes/sec
	BufferSeconds      float64   `json:"buffer_seconds"`
}
