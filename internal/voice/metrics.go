package voice

import (
	"runtime"
	"time"
)

// ewmaAlpha weights new samples in the moving-average latencies. 0.2 keeps
// roughly the last five requests dominant.
const ewmaAlpha = 0.2

// SessionMetrics accumulates per-session counters. Updated synchronously on
// request completion under the pipeline mutex; read via SessionInfo
// snapshots.
type SessionMetrics struct {
	TotalRequests      uint64
	SuccessfulRequests uint64
	FailedRequests     uint64
	RecoveredRequests  uint64

	// Moving-average latencies per phase, exponentially weighted.
	AvgTranscribeLatency time.Duration
	AvgAgentLatency      time.Duration
	AvgSynthesizeLatency time.Duration
	AvgRequestLatency    time.Duration

	FramesProcessed uint64
	BytesProcessed  uint64
}

// observeLatency folds a new sample into an EWMA slot.
func observeLatency(avg *time.Duration, sample time.Duration) {
	if *avg == 0 {
		*avg = sample
		return
	}
	*avg = time.Duration(float64(*avg)*(1-ewmaAlpha) + float64(sample)*ewmaAlpha)
}

// PipelineMetrics is a snapshot of pipeline-wide counters.
type PipelineMetrics struct {
	ActiveSessions       int
	TotalSessions        uint64
	ConcurrencyLimitHits uint64

	TotalRequests     uint64
	FailedRequests    uint64
	RecoveredRequests uint64

	// ErrorRate is failed over total requests, 0 when no requests ran.
	ErrorRate float64

	// RecoveryRate is recovered over (recovered + failed), 0 when neither
	// occurred.
	RecoveryRate float64

	// RecoveryAttemptsUsed counts consumed lifetime recovery budget.
	RecoveryAttemptsUsed int

	// HeapBytes is the live heap size at snapshot time.
	HeapBytes uint64
}

// pipelineCounters is the mutable pipeline-wide state behind
// PipelineMetrics. Guarded by the pipeline mutex.
type pipelineCounters struct {
	totalSessions        uint64
	concurrencyLimitHits uint64
	totalRequests        uint64
	failedRequests       uint64
	recoveredRequests    uint64
}

// snapshot derives a PipelineMetrics from the counters. Caller holds the
// pipeline mutex.
func (c *pipelineCounters) snapshot(activeSessions, recoveryUsed int) PipelineMetrics {
	m := PipelineMetrics{
		ActiveSessions:       activeSessions,
		TotalSessions:        c.totalSessions,
		ConcurrencyLimitHits: c.concurrencyLimitHits,
		TotalRequests:        c.totalRequests,
		FailedRequests:       c.failedRequests,
		RecoveredRequests:    c.recoveredRequests,
		RecoveryAttemptsUsed: recoveryUsed,
	}
	if c.totalRequests > 0 {
		m.ErrorRate = float64(c.failedRequests) / float64(c.totalRequests)
	}
	if n := c.recoveredRequests + c.failedRequests; n > 0 {
		m.RecoveryRate = float64(c.recoveredRequests) / float64(n)
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.HeapBytes = ms.HeapAlloc
	return m
}
