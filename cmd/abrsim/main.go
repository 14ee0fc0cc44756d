package main

import (
	"time"

	"abrflow/internal/core/services"
	"abrflow/pkg/config"
	"abrflow/pkg/logger"

	"go.uber.org/zap"
)

// abrsim drives one scripted playback session directly against the decision
// engine: a fast download, a run of slow downloads and periodic playback
// consumption, logging every decision the engine makes.
func main() {
	cfg := config.DefaultConfig()

	zapLogger := logger.New(cfg.Logging.Level, "console")
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	streamer, err := services.NewStreamerService(cfg.QualityLadder(), cfg.StreamerParams(), log)
	if err != nil {
		log.Fatalw("failed to build streamer", "error", err)
	}

	level := streamer.CurrentQuality()
	log.Infow("initial quality",
		"index", streamer.CurrentQualityIndex(),
		"resolution", level.Width*level.Height,
		"bitrate_kbps", level.Bitrate/1000,
	)

	// Fast download on a good network: 1MB segment in 800ms.
	streamer.RecordSegmentDownload(1_000_000, 800*time.Millisecond, 4*time.Second)
	logDecision(log, streamer, "after fast download")

	// Network degrades: 500KB segments crawling in at 3s each.
	for i := 0; i < 3; i++ {
		streamer.RecordSegmentDownload(500_000, 3*time.Second, 4*time.Second)
		streamer.UpdateBufferConsumption(2 * time.Second)
		logDecision(log, streamer, "after slow download")
	}

	// Playback keeps consuming while nothing arrives; the buffer drains
	// toward panic and the engine must shed quality fast.
	streamer.UpdateBufferConsumption(10 * time.Second)
	logDecision(log, streamer, "after buffer drain")

	buffer := streamer.BufferState()
	log.Infow("final buffer state",
		"current_level", buffer.CurrentLevel,
		"target_level", buffer.TargetLevel,
		"buffer_healthy", streamer.IsBufferHealthy(),
		"pause_playback", streamer.ShouldPausePlayback(),
	)
}

func logDecision(log *zap.SugaredLogger, streamer *services.StreamerService, stage string) {
	next := streamer.NextQuality()
	log.Infow(stage,
		"next_quality", next,
		"estimated_bandwidth_kbps", int(streamer.EstimatedBandwidth()*8/1000),
		"buffer_level", streamer.BufferState().CurrentLevel,
	)
}
