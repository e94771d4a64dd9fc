package occa

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsInitialState(t *testing.T) {
	m := NewMetrics()
	snap := m.Snapshot()
	assert.Zero(t, snap.CacheHits)
	assert.Zero(t, snap.Builds)
	assert.Zero(t, snap.Launches)
}

func TestMetricsCacheHitRate(t *testing.T) {
	m := NewMetrics()
	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheMiss()

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.CacheHits)
	assert.Equal(t, uint64(1), snap.CacheMisses)
	assert.InDelta(t, 66.67, snap.CacheHitRate, 0.1)
}

func TestMetricsBuildAndLaunchCounts(t *testing.T) {
	m := NewMetrics()
	m.RecordBuild(10*time.Millisecond, nil)
	m.RecordBuild(20*time.Millisecond, errors.New("compile failed"))
	m.RecordLaunch(1*time.Millisecond, nil)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.Builds)
	assert.Equal(t, uint64(1), snap.BuildErrors)
	assert.Equal(t, uint64(1), snap.Launches)
	assert.Equal(t, uint64(0), snap.LaunchErrors)
}

func TestMetricsAverageBuildLatency(t *testing.T) {
	m := NewMetrics()
	m.RecordBuild(10*time.Millisecond, nil)
	m.RecordBuild(20*time.Millisecond, nil)

	snap := m.Snapshot()
	assert.Equal(t, uint64(15*time.Millisecond), snap.AvgBuildLatencyNs)
}

func TestMetricsUptime(t *testing.T) {
	m := NewMetrics()
	time.Sleep(10 * time.Millisecond)

	snap := m.Snapshot()
	assert.GreaterOrEqual(t, snap.UptimeNs, uint64(10*time.Millisecond))

	m.Stop()
	time.Sleep(5 * time.Millisecond)

	snap2 := m.Snapshot()
	assert.LessOrEqual(t, snap2.UptimeNs, snap.UptimeNs+uint64(2*time.Millisecond))
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.RecordCacheHit()
	m.RecordBuild(time.Millisecond, nil)

	snap := m.Snapshot()
	assert.NotZero(t, snap.Builds)

	m.Reset()
	snap = m.Snapshot()
	assert.Zero(t, snap.CacheHits)
	assert.Zero(t, snap.Builds)
}

func TestNoOpObserverDoesNotPanic(t *testing.T) {
	var observer Observer = NoOpObserver{}
	observer.ObserveCacheHit("fp")
	observer.ObserveCacheMiss("fp")
	observer.ObserveCompile("addVectors", time.Millisecond, nil)
	observer.ObserveLaunch("addVectors", time.Millisecond, nil)
}

func TestMetricsObserverForwardsToMetrics(t *testing.T) {
	m := NewMetrics()
	observer := NewMetricsObserver(m)

	observer.ObserveCacheHit("fp")
	observer.ObserveCacheMiss("fp2")
	observer.ObserveCompile("addVectors", 5*time.Millisecond, nil)
	observer.ObserveLaunch("addVectors", time.Millisecond, errors.New("launch rejected"))

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, uint64(1), snap.CacheMisses)
	assert.Equal(t, uint64(1), snap.Builds)
	assert.Equal(t, uint64(1), snap.Launches)
	assert.Equal(t, uint64(1), snap.LaunchErrors)
}

func TestMetricsLatencyHistogramPopulated(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < 50; i++ {
		m.RecordBuild(500*time.Microsecond, nil)
	}
	for i := 0; i < 49; i++ {
		m.RecordBuild(5*time.Millisecond, nil)
	}
	m.RecordBuild(50*time.Millisecond, nil)

	snap := m.Snapshot()
	assert.Equal(t, uint64(100), snap.Builds)

	var total uint64
	for _, c := range snap.BuildLatencyHistogram {
		total += c
	}
	assert.NotZero(t, total)
}
