package occa

import (
	"sync/atomic"
	"time"

	"github.com/occa-go/occa/internal/interfaces"
)

// LatencyBuckets defines the latency histogram buckets in nanoseconds.
// Buckets cover from 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks compile-cache and launch statistics for a Device.
type Metrics struct {
	CacheHits   atomic.Uint64
	CacheMisses atomic.Uint64

	Builds      atomic.Uint64
	BuildErrors atomic.Uint64

	Launches     atomic.Uint64
	LaunchErrors atomic.Uint64

	TotalBuildLatencyNs  atomic.Uint64
	TotalLaunchLatencyNs atomic.Uint64

	// Latency histogram buckets (cumulative counts): bucket[i] holds
	// the count of operations with latency <= LatencyBuckets[i].
	BuildLatencyBuckets  [numLatencyBuckets]atomic.Uint64
	LaunchLatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64 // metrics window start (UnixNano)
	StopTime  atomic.Int64 // metrics window end (UnixNano), 0 while open
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordCacheHit records a compile-cache hit.
func (m *Metrics) RecordCacheHit() {
	m.CacheHits.Add(1)
}

// RecordCacheMiss records a compile-cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.CacheMisses.Add(1)
}

// RecordBuild records a kernel build's duration and outcome.
func (m *Metrics) RecordBuild(d time.Duration, err error) {
	m.Builds.Add(1)
	if err != nil {
		m.BuildErrors.Add(1)
	}
	recordLatency(d, &m.TotalBuildLatencyNs, &m.BuildLatencyBuckets)
}

// RecordLaunch records a kernel launch's duration and outcome.
func (m *Metrics) RecordLaunch(d time.Duration, err error) {
	m.Launches.Add(1)
	if err != nil {
		m.LaunchErrors.Add(1)
	}
	recordLatency(d, &m.TotalLaunchLatencyNs, &m.LaunchLatencyBuckets)
}

func recordLatency(d time.Duration, total *atomic.Uint64, buckets *[numLatencyBuckets]atomic.Uint64) {
	ns := uint64(d.Nanoseconds())
	total.Add(ns)
	for i, bucket := range LatencyBuckets {
		if ns <= bucket {
			buckets[i].Add(1)
		}
	}
}

// Stop closes the metrics window.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time read of Metrics.
type MetricsSnapshot struct {
	CacheHits    uint64
	CacheMisses  uint64
	CacheHitRate float64 // percentage of lookups that hit

	Builds      uint64
	BuildErrors uint64

	Launches     uint64
	LaunchErrors uint64

	AvgBuildLatencyNs  uint64
	AvgLaunchLatencyNs uint64

	BuildLatencyHistogram  [numLatencyBuckets]uint64
	LaunchLatencyHistogram [numLatencyBuckets]uint64

	UptimeNs uint64
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		CacheHits:    m.CacheHits.Load(),
		CacheMisses:  m.CacheMisses.Load(),
		Builds:       m.Builds.Load(),
		BuildErrors:  m.BuildErrors.Load(),
		Launches:     m.Launches.Load(),
		LaunchErrors: m.LaunchErrors.Load(),
	}

	if lookups := snap.CacheHits + snap.CacheMisses; lookups > 0 {
		snap.CacheHitRate = float64(snap.CacheHits) / float64(lookups) * 100.0
	}
	if snap.Builds > 0 {
		snap.AvgBuildLatencyNs = m.TotalBuildLatencyNs.Load() / snap.Builds
	}
	if snap.Launches > 0 {
		snap.AvgLaunchLatencyNs = m.TotalLaunchLatencyNs.Load() / snap.Launches
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.BuildLatencyHistogram[i] = m.BuildLatencyBuckets[i].Load()
		snap.LaunchLatencyHistogram[i] = m.LaunchLatencyBuckets[i].Load()
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	return snap
}

// Reset zeroes all counters; useful in tests.
func (m *Metrics) Reset() {
	m.CacheHits.Store(0)
	m.CacheMisses.Store(0)
	m.Builds.Store(0)
	m.BuildErrors.Store(0)
	m.Launches.Store(0)
	m.LaunchErrors.Store(0)
	m.TotalBuildLatencyNs.Store(0)
	m.TotalLaunchLatencyNs.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.BuildLatencyBuckets[i].Store(0)
		m.LaunchLatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer is the metrics-collection trait a Device accepts; it is the
// public alias of interfaces.Observer so callers outside this module
// can implement one without importing the internal package.
type Observer = interfaces.Observer

// NoOpObserver discards all telemetry.
type NoOpObserver struct{}

func (NoOpObserver) ObserveCacheHit(string)                      {}
func (NoOpObserver) ObserveCacheMiss(string)                     {}
func (NoOpObserver) ObserveCompile(string, time.Duration, error) {}
func (NoOpObserver) ObserveLaunch(string, time.Duration, error)  {}

// MetricsObserver implements Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records into m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveCacheHit(string) {
	o.metrics.RecordCacheHit()
}

func (o *MetricsObserver) ObserveCacheMiss(string) {
	o.metrics.RecordCacheMiss()
}

func (o *MetricsObserver) ObserveCompile(_ string, d time.Duration, err error) {
	o.metrics.RecordBuild(d, err)
}

func (o *MetricsObserver) ObserveLaunch(_ string, d time.Duration, err error) {
	o.metrics.RecordLaunch(d, err)
}

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = NoOpObserver{}
