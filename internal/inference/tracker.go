package inference

import (
	"sync/atomic"
	"time"
)

// Tracker maintains an engine's latency and usage counters. All fields
// are atomic so an engine shared across goroutines reports consistent
// numbers even though calls themselves are serialized.
type Tracker struct {
	lastNanos atomic.Int64
	total     atomic.Uint64
	memoryMB  atomic.Uint64
}

// Observe records one completed call.
func (t *Tracker) Observe(d time.Duration) {
	t.lastNanos.Store(d.Nanoseconds())
	t.total.Add(1)
}

// SetMemoryUsageMB updates the approximate memory footprint.
func (t *Tracker) SetMemoryUsageMB(mb uint64) {
	t.memoryMB.Store(mb)
}

func (t *Tracker) Stats() Stats {
	return Stats{
		LastInferenceTime: time.Duration(t.lastNanos.Load()),
		TotalInferences:   t.total.Load(),
		MemoryUsageMB:     t.memoryMB.Load(),
	}
}
