package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"abrflow/internal/core/domain"
	"abrflow/internal/core/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type noopCollector struct{}

func (noopCollector) RecordSessionCreated(domain.SessionID)                       {}
func (noopCollector) RecordSessionRemoved(domain.SessionID)                       {}
func (noopCollector) ObserveSegmentDownload(domain.SessionID, int, time.Duration) {}
func (noopCollector) SetBufferLevel(domain.SessionID, float64)                    {}
func (noopCollector) SetEstimatedBandwidth(domain.SessionID, float64)             {}
func (noopCollector) SetCurrentQuality(domain.SessionID, int, int)                {}
func (noopCollector) RecordQualitySwitch(domain.SessionID, string)                {}
func (noopCollector) RecordPanicDowngrade(domain.SessionID)                       {}

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ladder := []domain.QualityLevel{
		{Bitrate: 500_000, Width: 640, Height: 360, Codec: "h264"},
		{Bitrate: 1_000_000, Width: 1280, Height: 720, Codec: "h264"},
		{Bitrate: 2_500_000, Width: 1920, Height: 1080, Codec: "h264"},
		{Bitrate: 5_000_000, Width: 3840, Height: 2160, Codec: "h264"},
	}

	svc := services.NewSessionService(
		ladder,
		services.DefaultStreamerParams(),
		noopCollector{},
		nil,
		zaptest.NewLogger(t).Sugar(),
	)

	router := gin.New()
	NewSessionHandler(svc).SetupRoutes(router)
	return router
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createTestSession(t *testing.T, router *gin.Engine) string {
	t.Helper()

	w := doJSON(router, http.MethodPost, "/api/v1/sessions", gin.H{})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.SessionID)
	return resp.SessionID
}

func TestSessionHandler_CreateSession(t *testing.T) {
	router := setupTestRouter(t)

	id := createTestSession(t, router)

	w := doJSON(router, http.MethodGet, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Session domain.SessionSnapshot `json:"session"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, domain.SessionID(id), resp.Session.SessionID)
	assert.Equal(t, 2, resp.Session.CurrentIndex)
	assert.Equal(t, 2_500_000, resp.Session.CurrentLevel.Bitrate)
}

func TestSessionHandler_CreateSessionWithLadder(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/v1/sessions", gin.H{
		"ladder": []gin.H{
			{"bitrate": 300_000, "width": 426, "height": 240, "codec": "h264"},
			{"bitrate": 900_000, "width": 1280, "height": 720, "codec": "h264"},
		},
	})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestSessionHandler_CreateSessionRejectsDescendingLadder(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/v1/sessions", gin.H{
		"ladder": []gin.H{
			{"bitrate": 900_000, "width": 1280, "height": 720, "codec": "h264"},
			{"bitrate": 300_000, "width": 426, "height": 240, "codec": "h264"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionHandler_ListSessions(t *testing.T) {
	router := setupTestRouter(t)

	first := createTestSession(t, router)
	second := createTestSession(t, router)

	w := doJSON(router, http.MethodGet, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Sessions []string `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Sessions, 2)
	assert.Contains(t, resp.Sessions, first)
	assert.Contains(t, resp.Sessions, second)
}

func TestSessionHandler_RecordSegment(t *testing.T) {
	router := setupTestRouter(t)
	id := createTestSession(t, router)

	w := doJSON(router, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/segments", id), gin.H{
		"size_bytes":  1_000_000,
		"download_ms": 800,
		"duration_ms": 4000,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Session domain.SessionSnapshot `json:"session"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 4*time.Second, resp.Session.Buffer.CurrentLevel)
}

func TestSessionHandler_RecordSegmentValidation(t *testing.T) {
	router := setupTestRouter(t)
	id := createTestSession(t, router)

	tests := []struct {
		name string
		body gin.H
	}{
		{"missing size", gin.H{"download_ms": 800, "duration_ms": 4000}},
		{"zero duration", gin.H{"size_bytes": 1_000_000, "download_ms": 800}},
		{"negative size", gin.H{"size_bytes": -1, "download_ms": 800, "duration_ms": 4000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(router, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/segments", id), tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestSessionHandler_UpdatePlayback(t *testing.T) {
	router := setupTestRouter(t)
	id := createTestSession(t, router)

	w := doJSON(router, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/segments", id), gin.H{
		"size_bytes":  1_000_000,
		"download_ms": 800,
		"duration_ms": 6000,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/playback", id), gin.H{
		"consumed_ms": 2000,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Session domain.SessionSnapshot `json:"session"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 4*time.Second, resp.Session.Buffer.CurrentLevel)
}

func TestSessionHandler_NextQuality(t *testing.T) {
	router := setupTestRouter(t)
	id := createTestSession(t, router)

	// Slow downloads: the next decision steps down one rung.
	for i := 0; i < 3; i++ {
		w := doJSON(router, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/segments", id), gin.H{
			"size_bytes":  500_000,
			"download_ms": 3000,
			"duration_ms": 4000,
		})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := doJSON(router, http.MethodPost, fmt.Sprintf("/api/v1/sessions/%s/quality/next", id), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Decision domain.QualityDecision `json:"decision"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Decision.Index)
	assert.Equal(t, 1_000_000, resp.Decision.Level.Bitrate)
	assert.Greater(t, resp.Decision.EstimatedBandwidth, 0.0)
}

func TestSessionHandler_RemoveSession(t *testing.T) {
	router := setupTestRouter(t)
	id := createTestSession(t, router)

	w := doJSON(router, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodGet, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionHandler_UnknownSession(t *testing.T) {
	router := setupTestRouter(t)

	paths := []struct {
		method string
		path   string
		body   gin.H
	}{
		{http.MethodGet, "/api/v1/sessions/nope", nil},
		{http.MethodDelete, "/api/v1/sessions/nope", nil},
		{http.MethodPost, "/api/v1/sessions/nope/segments", gin.H{"size_bytes": 1, "download_ms": 1, "duration_ms": 1}},
		{http.MethodPost, "/api/v1/sessions/nope/playback", gin.H{"consumed_ms": 1}},
		{http.MethodPost, "/api/v1/sessions/nope/quality/next", nil},
	}

	for _, p := range paths {
		w := doJSON(router, p.method, p.path, p.body)
		assert.Equal(t, http.StatusNotFound, w.Code, "%s %s", p.method, p.path)
	}
}
