package monitoring

import (
	"time"

	"abrflow/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector exports engine observations. It implements
// ports.MetricsCollector.
type PrometheusCollector struct {
	sessionsActive prometheus.Gauge

	segmentDownloadDuration prometheus.Histogram
	segmentBytesTotal       prometheus.Counter

	bufferLevel        *prometheus.GaugeVec
	estimatedBandwidth *prometheus.GaugeVec
	currentQuality     *prometheus.GaugeVec
	currentBitrate     *prometheus.GaugeVec

	qualitySwitches *prometheus.CounterVec
	panicDowngrades *prometheus.CounterVec
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		sessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "abrflow_sessions_active",
			Help: "Number of active playback sessions",
		}),

		segmentDownloadDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "abrflow_segment_download_duration_seconds",
			Help:    "Reported wall time of segment downloads",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}),

		segmentBytesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "abrflow_segment_bytes_total",
			Help: "Total reported downloaded segment bytes",
		}),

		bufferLevel: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "abrflow_buffer_level_seconds",
			Help: "Current playback buffer occupancy in seconds",
		}, []string{"session_id"}),

		estimatedBandwidth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "abrflow_estimated_bandwidth_bytes_per_second",
			Help: "Conservative effective bandwidth estimate",
		}, []string{"session_id"}),

		currentQuality: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "abrflow_current_quality_index",
			Help: "Current quality ladder index",
		}, []string{"session_id"}),

		currentBitrate: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "abrflow_current_quality_bitrate_bps",
			Help: "Bitrate of the current quality level in bits per second",
		}, []string{"session_id"}),

		qualitySwitches: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "abrflow_quality_switches_total",
			Help: "Quality switches by direction",
		}, []string{"session_id", "direction"}),

		panicDowngrades: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "abrflow_panic_downgrades_total",
			Help: "Multi-rung downgrades taken under buffer panic",
		}, []string{"session_id"}),
	}
}

func (p *PrometheusCollector) RecordSessionCreated(id domain.SessionID) {
	p.sessionsActive.Inc()
}

func (p *PrometheusCollector) RecordSessionRemoved(id domain.SessionID) {
	p.sessionsActive.Dec()

	// Drop per-session series so ended sessions do not linger in scrape
	// output.
	p.bufferLevel.DeleteLabelValues(string(id))
	p.estimatedBandwidth.DeleteLabelValues(string(id))
	p.currentQuality.DeleteLabelValues(string(id))
	p.currentBitrate.DeleteLabelValues(string(id))
	p.qualitySwitches.DeleteLabelValues(string(id), "up")
	p.qualitySwitches.DeleteLabelValues(string(id), "down")
	p.panicDowngrades.DeleteLabelValues(string(id))
}

func (p *PrometheusCollector) ObserveSegmentDownload(id domain.SessionID, sizeBytes int, downloadDuration time.Duration) {
	p.segmentDownloadDuration.Observe(downloadDuration.Seconds())
	p.segmentBytesTotal.Add(float64(sizeBytes))
}

func (p *PrometheusCollector) SetBufferLevel(id domain.SessionID, seconds float64) {
	p.bufferLevel.WithLabelValues(string(id)).Set(seconds)
}

func (p *PrometheusCollector) SetEstimatedBandwidth(id domain.SessionID, bytesPerSec float64) {
	p.estimatedBandwidth.WithLabelValues(string(id)).Set(bytesPerSec)
}

func (p *PrometheusCollector) SetCurrentQuality(id domain.SessionID, index, bitrate int) {
	p.currentQuality.WithLabelValues(string(id)).Set(float64(index))
	p.currentBitrate.WithLabelValues(string(id)).Set(float64(bitrate))
}

func (p *PrometheusCollector) RecordQualitySwitch(id domain.SessionID, direction string) {
	p.qualitySwitches.WithLabelValues(string(id), direction).Inc()
}

func (p *PrometheusCollector) RecordPanicDowngrade(id domain.SessionID) {
	p.panicDowngrades.WithLabelValues(string(id)).Inc()
}
