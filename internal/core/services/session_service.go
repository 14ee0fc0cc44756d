package services

import (
	"context"
	"sync"
	"time"

	"abrflow/internal/core/domain"
	"abrflow/internal/core/ports"
	"abrflow/pkg/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// session wraps one engine with the mutex that serializes the host's calls.
// The engine itself is single-owner state; this is the external mutual
// exclusion required when it is embedded in a multi-goroutine host.
type session struct {
	mu        sync.Mutex
	streamer  *StreamerService
	createdAt time.Time
}

// SessionService manages one decision engine per active playback session.
type SessionService struct {
	sessions map[domain.SessionID]*session
	mu       sync.RWMutex

	defaultLadder []domain.QualityLevel
	params        StreamerParams
	collector     ports.MetricsCollector
	publisher     ports.DecisionPublisher
	logger        *zap.SugaredLogger
}

// NewSessionService creates a session manager. The publisher may be nil when
// no telemetry feed is attached.
func NewSessionService(
	defaultLadder []domain.QualityLevel,
	params StreamerParams,
	collector ports.MetricsCollector,
	publisher ports.DecisionPublisher,
	logger *zap.SugaredLogger,
) *SessionService {
	return &SessionService{
		sessions:      make(map[domain.SessionID]*session),
		defaultLadder: defaultLadder,
		params:        params,
		collector:     collector,
		publisher:     publisher,
		logger:        logger,
	}
}

// CreateSession starts a new playback session. An empty ladder selects the
// configured default ladder.
func (s *SessionService) CreateSession(ctx context.Context, ladder []domain.QualityLevel) (domain.SessionID, error) {
	if len(ladder) == 0 {
		ladder = s.defaultLadder
	}

	streamer, err := NewStreamerService(ladder, s.params, s.logger)
	if err != nil {
		return "", err
	}

	id := domain.SessionID(uuid.NewString())

	s.mu.Lock()
	s.sessions[id] = &session{
		streamer:  streamer,
		createdAt: time.Now(),
	}
	s.mu.Unlock()

	s.collector.RecordSessionCreated(id)
	s.logger.Infow("session created",
		"session_id", id,
		"ladder_size", len(ladder),
		"initial_quality", streamer.CurrentQualityIndex(),
	)
	return id, nil
}

// RemoveSession ends a playback session.
func (s *SessionService) RemoveSession(ctx context.Context, id domain.SessionID) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return domain.ErrSessionNotFound
	}

	s.collector.RecordSessionRemoved(id)
	s.logger.Infow("session removed", "session_id", id)
	return nil
}

// RecordSegmentDownload reports a completed segment download for a session.
func (s *SessionService) RecordSegmentDownload(ctx context.Context, id domain.SessionID, sizeBytes int, downloadDuration, segmentDuration time.Duration) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	sess.streamer.RecordSegmentDownload(sizeBytes, downloadDuration, segmentDuration)
	buffer := sess.streamer.BufferState()
	sess.mu.Unlock()

	s.collector.ObserveSegmentDownload(id, sizeBytes, downloadDuration)
	s.collector.SetBufferLevel(id, buffer.CurrentLevel.Seconds())
	return nil
}

// UpdateBufferConsumption reports playback progress for a session.
func (s *SessionService) UpdateBufferConsumption(ctx context.Context, id domain.SessionID, consumed time.Duration) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	sess.streamer.UpdateBufferConsumption(consumed)
	buffer := sess.streamer.BufferState()
	sess.mu.Unlock()

	s.collector.SetBufferLevel(id, buffer.CurrentLevel.Seconds())
	return nil
}

// NextQuality runs one selection pass for a session and publishes the
// decision to metrics and the telemetry feed.
func (s *SessionService) NextQuality(ctx context.Context, id domain.SessionID) (domain.QualityDecision, error) {
	ctx, span := tracing.TraceDecision(ctx, string(id))
	defer span.End()

	sess, err := s.get(id)
	if err != nil {
		tracing.RecordError(ctx, err)
		return domain.QualityDecision{}, err
	}

	sess.mu.Lock()
	previous := sess.streamer.CurrentQualityIndex()
	index := sess.streamer.NextQuality()
	level := sess.streamer.CurrentQuality()
	estimated := sess.streamer.EstimatedBandwidth()
	buffer := sess.streamer.BufferState()
	sess.mu.Unlock()

	s.recordDecision(id, previous, index, level, estimated, buffer)

	tracing.AddSpanAttributes(ctx,
		tracing.QualityIndexKey.Int(index),
		tracing.BitrateKey.Int(level.Bitrate),
		tracing.BandwidthKey.Float64(estimated),
		attribute.Float64("buffer_seconds", buffer.CurrentLevel.Seconds()),
	)

	return domain.QualityDecision{
		Index:              index,
		Level:              level,
		EstimatedBandwidth: estimated,
		BufferLevel:        buffer.CurrentLevel,
	}, nil
}

func (s *SessionService) recordDecision(id domain.SessionID, previous, index int, level domain.QualityLevel, estimated float64, buffer domain.BufferState) {
	s.collector.SetCurrentQuality(id, index, level.Bitrate)
	s.collector.SetEstimatedBandwidth(id, estimated)
	s.collector.SetBufferLevel(id, buffer.CurrentLevel.Seconds())

	switch {
	case index > previous:
		s.collector.RecordQualitySwitch(id, "up")
	case index < previous:
		s.collector.RecordQualitySwitch(id, "down")
		if previous-index > 1 {
			// Multi-rung drops only happen in panic mode.
			s.collector.RecordPanicDowngrade(id)
		}
	}

	if s.publisher != nil {
		s.publisher.Publish(domain.DecisionEvent{
			SessionID:          id,
			Timestamp:          time.Now(),
			Index:              index,
			Bitrate:            level.Bitrate,
			EstimatedBandwidth: estimated,
			BufferSeconds:      buffer.CurrentLevel.Seconds(),
		})
	}
}

// Snapshot returns a side-effect-free view of a session.
func (s *SessionService) Snapshot(ctx context.Context, id domain.SessionID) (domain.SessionSnapshot, error) {
	sess, err := s.get(id)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	return domain.SessionSnapshot{
		SessionID:          id,
		CurrentIndex:       sess.streamer.CurrentQualityIndex(),
		CurrentLevel:       sess.streamer.CurrentQuality(),
		Buffer:             sess.streamer.BufferState(),
		EstimatedBandwidth: sess.streamer.EstimatedBandwidth(),
		BufferHealthy:      sess.streamer.IsBufferHealthy(),
		PausePlayback:      sess.streamer.ShouldPausePlayback(),
		CreatedAt:          sess.createdAt,
	}, nil
}

// ListSessions returns the IDs of all active sessions.
func (s *SessionService) ListSessions(ctx context.Context) []domain.SessionID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]domain.SessionID, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

func (s *SessionService) get(id domain.SessionID) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}
