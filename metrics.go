package authcore

import "sync/atomic"

// MetricID identifies one engine counter.
type MetricID uint16

const (
	// MetricChallengeIssued counts successfully issued challenges.
	MetricChallengeIssued MetricID = iota
	// MetricChallengeThrottled counts issuances rejected by the cooldown.
	MetricChallengeThrottled
	// MetricChallengeVerified counts successful verifications.
	MetricChallengeVerified
	// MetricChallengeInvalid counts wrong-code or missing-challenge
	// verification attempts.
	MetricChallengeInvalid
	// MetricChallengeExpired counts verifications of expired challenges.
	MetricChallengeExpired
	// MetricTokenIssued counts minted session tokens.
	MetricTokenIssued
	// MetricTokenRejected counts token validations that failed.
	MetricTokenRejected
	// MetricAccountCreated counts principals created through signup.
	MetricAccountCreated
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of in-process counters. Counters are padded to a
// cache line each so hot-path increments from different goroutines do not
// false-share.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot holds a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics builds a counter set. When cfg.Enabled is false every
// increment is a no-op and snapshots come back empty.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Enabled reports whether the metrics set records increments.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc increments one counter. Safe for concurrent use; a nil or disabled
// receiver is a no-op.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value returns the current value of one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot returns a point-in-time copy of all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}

	s := MetricsSnapshot{Counters: make(map[MetricID]uint64, int(metricIDCount))}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}
