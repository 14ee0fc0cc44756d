package services

import (
	"math"
	"sort"
	"time"

	"abrflow/internal/core/domain"
)

// maxBandwidthSample is the throughput recorded for instantaneous downloads,
// where the measured wall time is below one millisecond. Kept finite so the
// weighted average cannot overflow.
const maxBandwidthSample = float64(math.MaxUint32)

// lowPercentile is the pessimistic single-sample estimator rank.
const lowPercentile = 0.2

// BandwidthEstimator keeps a time-ordered window of throughput samples and
// derives a conservative estimate from three independent statistics. It owns
// the sample history exclusively and performs no I/O.
type BandwidthEstimator struct {
	samples []domain.BandwidthSample
	window  time.Duration

	now func() time.Time // mockable clock
}

func NewBandwidthEstimator(window time.Duration) *BandwidthEstimator {
	return &BandwidthEstimator{
		window: window,
		now:    time.Now,
	}
}

// Record appends a throughput sample for a completed download and evicts
// samples that have aged out of the window. The history is time-ordered, so
// eviction is a prefix trim.
func (e *BandwidthEstimator) Record(sizeBytes int, downloadDuration time.Duration) {
	now := e.now()

	sample := maxBandwidthSample
	if downloadDuration >= time.Millisecond {
		sample = float64(sizeBytes) / downloadDuration.Seconds()
	}

	e.samples = append(e.samples, domain.BandwidthSample{
		Timestamp:   now,
		BytesPerSec: sample,
	})
	e.evictStale(now)
}

func (e *BandwidthEstimator) evictStale(now time.Time) {
	for len(e.samples) > 0 && now.Sub(e.samples[0].Timestamp) > e.window {
		e.samples = e.samples[1:]
	}
}

// SampleCount returns the number of samples currently inside the window.
func (e *BandwidthEstimator) SampleCount() int {
	return len(e.samples)
}

// Estimate combines the harmonic mean, the exponentially time-weighted
// average and a low percentile by taking their minimum. Each statistic has a
// blind spot (the percentile is skewed by a single burst, the harmonic mean
// ignores recency); the minimum of the three is a robust lower bound.
// With an empty history every statistic is zero; callers gate on SampleCount.
func (e *BandwidthEstimator) Estimate() float64 {
	return math.Min(e.harmonicMean(), math.Min(e.weightedAverage(), e.percentile(lowPercentile)))
}

// harmonicMean weights low-throughput samples heavily, which matches how
// sustained low throughput is the binding constraint for streaming.
func (e *BandwidthEstimator) harmonicMean() float64 {
	if len(e.samples) == 0 {
		return 0
	}

	var sumReciprocals float64
	for _, s := range e.samples {
		sumReciprocals += 1.0 / math.Max(s.BytesPerSec, 1.0)
	}
	return float64(len(e.samples)) / sumReciprocals
}

// weightedAverage decays sample weight exponentially with age so that recent
// samples dominate: weight = exp(-age / window).
func (e *BandwidthEstimator) weightedAverage() float64 {
	now := e.now()

	var weightedSum, weightSum float64
	for _, s := range e.samples {
		age := now.Sub(s.Timestamp).Seconds()
		weight := math.Exp(-age / e.window.Seconds())

		weightedSum += s.BytesPerSec * weight
		weightSum += weight
	}

	if weightSum <= 0 {
		return 0
	}
	return weightedSum / weightSum
}

// percentile sorts the window ascending and picks the sample at rank
// floor(n*p), clamped to the last index. Empty history returns 0.
func (e *BandwidthEstimator) percentile(p float64) float64 {
	if len(e.samples) == 0 {
		return 0
	}

	sorted := make([]float64, len(e.samples))
	for i, s := range e.samples {
		sorted[i] = s.BytesPerSec
	}
	sort.Float64s(sorted)

	idx := int(float64(len(sorted)) * p)
	if idx > len(sorted)-1 {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
