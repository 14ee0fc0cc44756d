package ports

import (
	"context"
	"time"

	"abrflow/internal/core/domain"
)

// SessionService owns the playback sessions and serializes access to each
// session's decision engine.
type SessionService interface {
	CreateSession(ctx context.Context, ladder []domain.QualityLevel) (domain.SessionID, error)
	RemoveSession(ctx context.Context, id domain.SessionID) error
	RecordSegmentDownload(ctx context.Context, id domain.SessionID, sizeBytes int, downloadDuration, segmentDuration time.Duration) error
	UpdateBufferConsumption(ctx context.Context, id domain.SessionID, consumed time.Duration) error
	NextQuality(ctx context.Context, id domain.SessionID) (domain.QualityDecision, error)
	Snapshot(ctx context.Context, id domain.SessionID) (domain.SessionSnapshot, error)
	ListSessions(ctx context.Context) []domain.SessionID
}

// MetricsCollector receives engine observations for export.
type MetricsCollector interface {
	RecordSessionCreated(id domain.SessionID)
	RecordSessionRemoved(id domain.SessionID)
	ObserveSegmentDownload(id domain.SessionID, sizeBytes int, downloadDuration time.Duration)
	SetBufferLevel(id domain.SessionID, seconds float64)
	SetEstimatedBandwidth(id domain.SessionID, bytesPerSec float64)
	SetCurrentQuality(id domain.SessionID, index, bitrate int)
	RecordQualitySwitch(id domain.SessionID, direction string)
	RecordPanicDowngrade(id domain.SessionID)
}

// DecisionPublisher fans quality decisions out to telemetry subscribers.
type DecisionPublisher interface {
	Publish(event domain.DecisionEvent)
}
