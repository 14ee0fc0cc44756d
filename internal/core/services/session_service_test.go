package services

import (
	"context"
	"testing"
	"time"

	"abrflow/internal/core/domain"
	"abrflow/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubCollector struct {
	created    int
	removed    int
	segments   int
	switches   map[string]int
	panicDrops int
}

func newStubCollector() *stubCollector {
	return &stubCollector{switches: make(map[string]int)}
}

func (c *stubCollector) RecordSessionCreated(domain.SessionID) { c.created++ }
func (c *stubCollector) RecordSessionRemoved(domain.SessionID) { c.removed++ }
func (c *stubCollector) ObserveSegmentDownload(domain.SessionID, int, time.Duration) {
	c.segments++
}
func (c *stubCollector) SetBufferLevel(domain.SessionID, float64)        {}
func (c *stubCollector) SetEstimatedBandwidth(domain.SessionID, float64) {}
func (c *stubCollector) SetCurrentQuality(domain.SessionID, int, int)    {}
func (c *stubCollector) RecordQualitySwitch(id domain.SessionID, direction string) {
	c.switches[direction]++
}
func (c *stubCollector) RecordPanicDowngrade(domain.SessionID) { c.panicDrops++ }

type capturePublisher struct {
	events []domain.DecisionEvent
}

func (p *capturePublisher) Publish(event domain.DecisionEvent) {
	p.events = append(p.events, event)
}

func newTestSessionService(t *testing.T, collector *stubCollector, publisher *capturePublisher) *SessionService {
	t.Helper()
	// Avoid wrapping a typed nil *capturePublisher in the interface, which
	// would defeat the service's nil-publisher check.
	var pub ports.DecisionPublisher
	if publisher != nil {
		pub = publisher
	}
	return NewSessionService(
		testLadder(),
		DefaultStreamerParams(),
		collector,
		pub,
		zaptest.NewLogger(t).Sugar(),
	)
}

func TestSessionService_CreateAndSnapshot(t *testing.T) {
	collector := newStubCollector()
	svc := newTestSessionService(t, collector, nil)
	ctx := context.Background()

	id, err := svc.CreateSession(ctx, nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, 1, collector.created)

	snap, err := svc.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, snap.SessionID)
	assert.Equal(t, 2, snap.CurrentIndex, "default ladder starts at the middle rung")
	assert.Equal(t, 2_500_000, snap.CurrentLevel.Bitrate)
	assert.Equal(t, time.Duration(0), snap.Buffer.CurrentLevel)
	assert.False(t, snap.BufferHealthy)
	assert.True(t, snap.PausePlayback)
	assert.False(t, snap.CreatedAt.IsZero())
}

func TestSessionService_CreateWithCustomLadder(t *testing.T) {
	svc := newTestSessionService(t, newStubCollector(), nil)
	ctx := context.Background()

	ladder := []domain.QualityLevel{
		{Bitrate: 300_000, Width: 426, Height: 240, Codec: "h264"},
		{Bitrate: 900_000, Width: 1280, Height: 720, Codec: "h264"},
	}

	id, err := svc.CreateSession(ctx, ladder)
	require.NoError(t, err)

	snap, err := svc.Snapshot(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.CurrentIndex)
	assert.Equal(t, 900_000, snap.CurrentLevel.Bitrate)
}

func TestSessionService_CreateRejectsBadLadder(t *testing.T) {
	svc := newTestSessionService(t, newStubCollector(), nil)

	descending := []domain.QualityLevel{
		{Bitrate: 2_000_000, Width: 1920, Height: 1080, Codec: "h264"},
		{Bitrate: 500_000, Width: 640, Height: 360, Codec: "h264"},
	}

	_, err := svc.CreateSession(context.Background(), descending)
	assert.ErrorIs(t, err, domain.ErrLadderNotAscending)
}

func TestSessionService_RemoveSession(t *testing.T) {
	collector := newStubCollector()
	svc := newTestSessionService(t, collector, nil)
	ctx := context.Background()

	id, err := svc.CreateSession(ctx, nil)
	require.NoError(t, err)

	require.NoError(t, svc.RemoveSession(ctx, id))
	assert.Equal(t, 1, collector.removed)
	assert.Empty(t, svc.ListSessions(ctx))

	assert.ErrorIs(t, svc.RemoveSession(ctx, id), domain.ErrSessionNotFound)
}

func TestSessionService_UnknownSession(t *testing.T) {
	svc := newTestSessionService(t, newStubCollector(), nil)
	ctx := context.Background()

	err := svc.RecordSegmentDownload(ctx, "missing", 1_000_000, time.Second, 4*time.Second)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	err = svc.UpdateBufferConsumption(ctx, "missing", time.Second)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = svc.NextQuality(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = svc.Snapshot(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessionService_NextQualityPublishesDecision(t *testing.T) {
	collector := newStubCollector()
	publisher := &capturePublisher{}
	svc := newTestSessionService(t, collector, publisher)
	ctx := context.Background()

	id, err := svc.CreateSession(ctx, nil)
	require.NoError(t, err)

	// Slow downloads force the engine one rung down on the next decision.
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.RecordSegmentDownload(ctx, id, 500_000, 3*time.Second, 4*time.Second))
	}
	require.NoError(t, svc.UpdateBufferConsumption(ctx, id, 2*time.Second))

	decision, err := svc.NextQuality(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, decision.Index)
	assert.Equal(t, decision.Level.Bitrate, 1_000_000)

	assert.Equal(t, 3, collector.segments)
	assert.Equal(t, 1, collector.switches["down"])
	assert.Zero(t, collector.panicDrops)

	require.Len(t, publisher.events, 1)
	event := publisher.events[0]
	assert.Equal(t, id, event.SessionID)
	assert.Equal(t, 1, event.Index)
	assert.Equal(t, 1_000_000, event.Bitrate)
	assert.InDelta(t, 10.0, event.BufferSeconds, 1e-9)
}

func TestSessionService_PanicDowngradeCounted(t *testing.T) {
	collector := newStubCollector()
	svc := newTestSessionService(t, collector, nil)
	ctx := context.Background()

	id, err := svc.CreateSession(ctx, nil)
	require.NoError(t, err)

	// Crawling downloads of short segments keep the buffer under the panic
	// threshold, so the engine sheds more than one rung at once.
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.RecordSegmentDownload(ctx, id, 100_000, 4*time.Second, 500*time.Millisecond))
	}

	decision, err := svc.NextQuality(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, decision.Index)
	assert.Equal(t, 1, collector.switches["down"])
	assert.Equal(t, 1, collector.panicDrops)
}

func TestSessionService_ListSessions(t *testing.T) {
	svc := newTestSessionService(t, newStubCollector(), nil)
	ctx := context.Background()

	first, err := svc.CreateSession(ctx, nil)
	require.NoError(t, err)
	second, err := svc.CreateSession(ctx, nil)
	require.NoError(t, err)

	ids := svc.ListSessions(ctx)
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, first)
	assert.Contains(t, ids, second)
}
