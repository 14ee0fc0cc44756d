package domain

type SessionID string

// QualityLevel describes one rung of the encoding ladder. The ladder is
// ordered by ascending bitrate and the slice index is the canonical quality
// identifier; levels are created once at startup and never mutated.
type QualityLevel struct {
	Bitrate int    `json:"bitrate" yaml:"bitrate"` // bits per second
	Width   int    `json:"width" yaml:"width"`
	Height  int    `json:"height" yaml:"height"`
	Codec   string `json:"codec" yaml:"codec"`
}

// RequiredBandwidth returns the sustained download rate in bytes per second
// needed to fetch this level in real time.
func (q QualityLevel) RequiredBandwidth() float64 {
	return float64(q.Bitrate) / 8
}
