package domain

import "time"

// BandwidthSample is one observed download throughput measurement.
type BandwidthSample struct {
	Timestamp   time.Time
	BytesPerSec float64
}

// SegmentRecord captures a completed segment download. Records are kept in a
// bounded FIFO history for diagnostics; current selection logic does not
// consume them.
type SegmentRecord struct {
	QualityIndex int           `json:"quality_index"`
	SizeBytes    int           `json:"size_bytes"`
	Duration     time.Duration `json:"duration"`
	DownloadTime time.Duration `json:"download_time"`
}
