package oauthkit

import "sync"

// MetricsRecorder counts onboarding outcome events.
type MetricsRecorder interface {
	Increment(event string)
}

// CounterMetrics keeps per-event counts in memory. Each callback outcome
// increments exactly one counter, so the counts partition callback traffic.
type CounterMetrics struct {
	mutex  sync.Mutex
	counts map[string]int64
}

func NewCounterMetrics() *CounterMetrics {
	return &CounterMetrics{counts: make(map[string]int64)}
}

// Increment adds one to the named event counter.
func (recorder *CounterMetrics) Increment(event string) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.counts[event]++
}

// Count reports the current value of the named event counter.
func (recorder *CounterMetrics) Count(event string) int64 {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	return recorder.counts[event]
}
