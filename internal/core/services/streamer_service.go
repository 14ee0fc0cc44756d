package services

import (
	"time"

	"abrflow/internal/core/domain"

	"go.uber.org/zap"
)

// segmentHistoryCap bounds the diagnostic segment history (FIFO eviction).
const segmentHistoryCap = 50

// StreamerParams are the fixed tunables of one playback session. They are
// set at construction and immutable thereafter.
type StreamerParams struct {
	BandwidthWindow     time.Duration
	SafetyFactor        float64
	PanicThreshold      time.Duration
	SeekThreshold       time.Duration
	MinBandwidthSamples int

	TargetBufferLevel time.Duration
	MaxBufferLevel    time.Duration
	MinBufferLevel    time.Duration
}

// DefaultStreamerParams returns the reference tuning.
func DefaultStreamerParams() StreamerParams {
	return StreamerParams{
		BandwidthWindow:     10 * time.Second,
		SafetyFactor:        0.8,
		PanicThreshold:      3 * time.Second,
		SeekThreshold:       45 * time.Second,
		MinBandwidthSamples: 3,
		TargetBufferLevel:   30 * time.Second,
		MaxBufferLevel:      60 * time.Second,
		MinBufferLevel:      5 * time.Second,
	}
}

// StreamerService is the per-stream decision engine: it aggregates the
// quality ladder, the bandwidth estimator, the buffer tracker and the
// segment history, and selects the next quality level to request.
//
// The service is single-owner and not safe for concurrent use; hosts with
// multiple goroutines must serialize access (SessionService does).
type StreamerService struct {
	ladder         []domain.QualityLevel
	currentQuality int
	estimator      *BandwidthEstimator
	buffer         *BufferTracker
	segmentHistory []domain.SegmentRecord

	safetyFactor float64
	minSamples   int

	logger *zap.SugaredLogger
}

// NewStreamerService constructs an engine over a non-empty ladder ordered by
// ascending bitrate. The initial quality is the middle rung.
func NewStreamerService(ladder []domain.QualityLevel, params StreamerParams, logger *zap.SugaredLogger) (*StreamerService, error) {
	if len(ladder) == 0 {
		return nil, domain.ErrEmptyLadder
	}
	for i := 1; i < len(ladder); i++ {
		if ladder[i].Bitrate < ladder[i-1].Bitrate {
			return nil, domain.ErrLadderNotAscending
		}
	}

	levels := make([]domain.QualityLevel, len(ladder))
	copy(levels, ladder)

	buffer := NewBufferTracker(domain.BufferState{
		CurrentLevel: 0,
		TargetLevel:  params.TargetBufferLevel,
		MaxLevel:     params.MaxBufferLevel,
		MinLevel:     params.MinBufferLevel,
	}, params.PanicThreshold, params.SeekThreshold)

	return &StreamerService{
		ladder:         levels,
		currentQuality: len(levels) / 2,
		estimator:      NewBandwidthEstimator(params.BandwidthWindow),
		buffer:         buffer,
		safetyFactor:   params.SafetyFactor,
		minSamples:     params.MinBandwidthSamples,
		logger:         logger,
	}, nil
}

// RecordSegmentDownload reports a completed segment download: it feeds the
// bandwidth estimator, appends the segment record and credits the buffer.
func (s *StreamerService) RecordSegmentDownload(sizeBytes int, downloadDuration, segmentDuration time.Duration) {
	s.estimator.Record(sizeBytes, downloadDuration)

	s.segmentHistory = append(s.segmentHistory, domain.SegmentRecord{
		QualityIndex: s.currentQuality,
		SizeBytes:    sizeBytes,
		Duration:     segmentDuration,
		DownloadTime: downloadDuration,
	})
	if len(s.segmentHistory) > segmentHistoryCap {
		s.segmentHistory = s.segmentHistory[1:]
	}

	s.buffer.OnSegmentArrival(segmentDuration)

	s.logger.Debugw("segment download recorded",
		"quality_index", s.currentQuality,
		"size_bytes", sizeBytes,
		"download_time", downloadDuration,
		"segment_duration", segmentDuration,
		"buffer_level", s.buffer.State().CurrentLevel,
	)
}

// UpdateBufferConsumption reports playback progress from the host's clock.
func (s *StreamerService) UpdateBufferConsumption(consumed time.Duration) {
	s.buffer.OnPlaybackConsumption(consumed)
}

// NextQuality runs one selection pass and returns the ladder index to use
// for the next segment request. The returned index becomes the current
// quality.
func (s *StreamerService) NextQuality() int {
	estimated := s.estimateBandwidth()
	factor := s.buffer.Factor()
	effective := estimated * factor

	target := s.findSuitableQuality(effective)
	next := s.applyQualitySmoothing(target)

	if next != s.currentQuality {
		s.logger.Infow("quality switch",
			"from", s.currentQuality,
			"to", next,
			"target", target,
			"estimated_bandwidth", estimated,
			"buffer_factor", factor,
			"buffer_level", s.buffer.State().CurrentLevel,
		)
	}

	s.currentQuality = next
	return next
}

// estimateBandwidth returns the windowed estimate, or the conservative
// "sustain current quality" fallback while too few samples exist.
func (s *StreamerService) estimateBandwidth() float64 {
	if s.estimator.SampleCount() < s.minSamples {
		return s.ladder[s.currentQuality].RequiredBandwidth()
	}
	return s.estimator.Estimate()
}

// findSuitableQuality scans the ladder from highest to lowest bitrate and
// returns the first rung affordable within the safety-shaved bandwidth. The
// lowest rung is the floor, never an error.
func (s *StreamerService) findSuitableQuality(availableBandwidth float64) int {
	safeBandwidth := availableBandwidth * s.safetyFactor

	for i := len(s.ladder) - 1; i >= 0; i-- {
		if s.ladder[i].RequiredBandwidth() <= safeBandwidth {
			return i
		}
	}
	return 0
}

// applyQualitySmoothing limits the per-decision step to avoid visible
// flapping. Below the panic threshold a downgrade of any size is allowed,
// since starvation must be correctable immediately, but upgrades stay capped
// at one rung even then.
func (s *StreamerService) applyQualitySmoothing(targetQuality int) int {
	diff := targetQuality - s.currentQuality

	var step int
	if s.buffer.BelowPanic() {
		switch {
		case diff < 0:
			step = diff
		case diff > 1:
			step = 1
		default:
			step = diff
		}
	} else {
		switch {
		case diff > 1:
			step = 1
		case diff < -1:
			step = -1
		default:
			step = diff
		}
	}

	next := s.currentQuality + step
	if next < 0 {
		next = 0
	}
	if next > len(s.ladder)-1 {
		next = len(s.ladder) - 1
	}
	return next
}

// CurrentQuality returns the descriptor of the current quality level.
func (s *StreamerService) CurrentQuality() domain.QualityLevel {
	return s.ladder[s.currentQuality]
}

// CurrentQualityIndex returns the current ladder index.
func (s *StreamerService) CurrentQualityIndex() int {
	return s.currentQuality
}

// BufferState returns a snapshot of the buffer occupancy.
func (s *StreamerService) BufferState() domain.BufferState {
	return s.buffer.State()
}

// EstimatedBandwidth recomputes the bandwidth estimate on demand (bytes/sec).
func (s *StreamerService) EstimatedBandwidth() float64 {
	return s.estimateBandwidth()
}

// IsBufferHealthy reports whether occupancy is at or above the minimum level.
func (s *StreamerService) IsBufferHealthy() bool {
	return s.buffer.Healthy()
}

// ShouldPausePlayback recommends an immediate rebuffer pause.
func (s *StreamerService) ShouldPausePlayback() bool {
	return s.buffer.ShouldPause()
}

// SegmentHistory returns a copy of the retained segment records.
func (s *StreamerService) SegmentHistory() []domain.SegmentRecord {
	history := make([]domain.SegmentRecord, len(s.segmentHistory))
	copy(history, s.segmentHistory)
	return history
}

// Ladder returns a copy of the quality ladder.
func (s *StreamerService) Ladder() []domain.QualityLevel {
	ladder := make([]domain.QualityLevel, len(s.ladder))
	copy(ladder, s.ladder)
	return ladder
}
