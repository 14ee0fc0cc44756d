package http

import (
	"errors"
	"net/http"
	"time"

	"abrflow/internal/core/domain"
	"abrflow/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// SessionHandler exposes the decision engine to a host downloader over HTTP.
// Durations on the wire are integer milliseconds.
type SessionHandler struct {
	sessionService ports.SessionService
}

func NewSessionHandler(sessionService ports.SessionService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
	}
}

func (h *SessionHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/sessions", h.CreateSession)
		api.GET("/sessions", h.ListSessions)
		api.GET("/sessions/:id", h.GetSession)
		api.DELETE("/sessions/:id", h.RemoveSession)

		api.POST("/sessions/:id/segments", h.RecordSegment)
		api.POST("/sessions/:id/playback", h.UpdatePlayback)
		api.POST("/sessions/:id/quality/next", h.NextQuality)
	}
}

func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req struct {
		Ladder []domain.QualityLevel `json:"ladder"`
	}

	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.sessionService.CreateSession(c.Request.Context(), req.Ladder)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyLadder) || errors.Is(err, domain.ErrLadderNotAscending) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id": id,
	})
}

func (h *SessionHandler) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sessions": h.sessionService.ListSessions(c.Request.Context()),
	})
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	id := domain.SessionID(c.Param("id"))

	snapshot, err := h.sessionService.Snapshot(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": snapshot,
	})
}

func (h *SessionHandler) RemoveSession(c *gin.Context) {
	id := domain.SessionID(c.Param("id"))

	if err := h.sessionService.RemoveSession(c.Request.Context(), id); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "removed",
	})
}

func (h *SessionHandler) RecordSegment(c *gin.Context) {
	id := domain.SessionID(c.Param("id"))

	var req struct {
		SizeBytes  int   `json:"size_bytes" binding:"required,min=1"`
		DownloadMs int64 `json:"download_ms" binding:"min=0"`
		DurationMs int64 `json:"duration_ms" binding:"required,min=1"`
	}

	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.sessionService.RecordSegmentDownload(c.Request.Context(), id,
		req.SizeBytes,
		time.Duration(req.DownloadMs)*time.Millisecond,
		time.Duration(req.DurationMs)*time.Millisecond,
	)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "recorded",
	})
}

func (h *SessionHandler) UpdatePlayback(c *gin.Context) {
	id := domain.SessionID(c.Param("id"))

	var req struct {
		ConsumedMs int64 `json:"consumed_ms" binding:"required,min=1"`
	}

	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.sessionService.UpdateBufferConsumption(c.Request.Context(), id,
		time.Duration(req.ConsumedMs)*time.Millisecond,
	)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "updated",
	})
}

func (h *SessionHandler) NextQuality(c *gin.Context) {
	id := domain.SessionID(c.Param("id"))

	decision, err := h.sessionService.NextQuality(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"decision": decision,
	})
}
