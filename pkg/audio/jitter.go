package audio

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

const (
	// MinTargetLatency is the floor for the adaptive playout delay.
	MinTargetLatency = 20 * time.Millisecond

	// latencyStep is the amount AdjustLatency nudges the target by.
	latencyStep = 10 * time.Millisecond

	// jitterWindow is how many recent inter-arrival deltas feed the jitter
	// estimate.
	jitterWindow = 32

	// underrunThreshold is the occupancy below which Health reports underrun.
	underrunThreshold = 2

	// overrunRatio is the fill ratio above which Health reports overrun.
	overrunRatio = 0.9
)

// LatencyDirection selects which way AdjustLatency moves the target.
type LatencyDirection int

const (
	// LatencyUp increases the playout delay to absorb more jitter.
	LatencyUp LatencyDirection = iota

	// LatencyDown decreases the playout delay to reduce added latency.
	LatencyDown
)

// Health is a derived snapshot of jitter-buffer state. It is recomputed on
// demand and never persisted.
type Health struct {
	Frames         int
	Capacity       int
	PercentFull    float64
	Underrun       bool
	Overrun        bool
	Jitter         time.Duration
	TargetLatency  time.Duration
	Recommendation string
}

// jitterFrame wraps a Frame with its arrival and computed playout times.
// Ordering is by playout time, not arrival order.
type jitterFrame struct {
	frame     Frame
	arrivedAt time.Time
	playoutAt time.Time
	played    bool
}

// JitterConfig configures a [JitterBuffer]. Zero-value fields are replaced
// with defaults by [NewJitterBuffer].
type JitterConfig struct {
	// MaxFrames bounds the queue; enqueueing past it drops the
	// earliest-playout entries. Default: 50 (one second of 20 ms frames).
	MaxFrames int

	// TargetLatency is the initial playout delay added to each frame's
	// arrival time. Default: 60 ms. Floored at [MinTargetLatency].
	TargetLatency time.Duration

	// MaxLateness, when positive, drops frames whose playout time is more
	// than this far in the past at dequeue time. Zero keeps late frames
	// playable indefinitely.
	MaxLateness time.Duration
}

// JitterBuffer reorders frames arriving with variable network delay and
// schedules their playout behind an adaptive target latency. It is a
// pull-based, time-gated reorder queue, not a strict FIFO: a later-arriving
// frame can out-rank an earlier one once playout times are computed.
//
// JitterBuffer is safe for concurrent use.
type JitterBuffer struct {
	mu     sync.Mutex
	frames []jitterFrame // sorted by playoutAt ascending

	maxFrames   int
	target      time.Duration
	maxLateness time.Duration

	lastArrival time.Time
	deltas      []time.Duration // recent inter-arrival deltas, ring of jitterWindow
	deltaNext   int

	dropped uint64

	// now is the clock; overridden in tests.
	now func() time.Time
}

// NewJitterBuffer creates a jitter buffer with the given configuration.
func NewJitterBuffer(cfg JitterConfig) *JitterBuffer {
	if cfg.MaxFrames <= 0 {
		cfg.MaxFrames = 50
	}
	if cfg.TargetLatency <= 0 {
		cfg.TargetLatency = 60 * time.Millisecond
	}
	if cfg.TargetLatency < MinTargetLatency {
		cfg.TargetLatency = MinTargetLatency
	}
	return &JitterBuffer{
		frames:      make([]jitterFrame, 0, cfg.MaxFrames),
		maxFrames:   cfg.MaxFrames,
		target:      cfg.TargetLatency,
		maxLateness: cfg.MaxLateness,
		now:         time.Now,
	}
}

// Enqueue inserts f with playout time arrival + target latency, keeping the
// queue sorted by playout time. When the queue exceeds its capacity the
// earliest-playout entries are dropped and counted.
func (jb *JitterBuffer) Enqueue(f Frame) {
	jb.mu.Lock()
	defer jb.mu.Unlock()

	arrival := jb.now()
	jb.recordArrival(arrival)

	jf := jitterFrame{
		frame:     f,
		arrivedAt: arrival,
		playoutAt: arrival.Add(jb.target),
	}

	// Binary insert by playout time.
	i := sort.Search(len(jb.frames), func(i int) bool {
		return jb.frames[i].playoutAt.After(jf.playoutAt)
	})
	jb.frames = append(jb.frames, jitterFrame{})
	copy(jb.frames[i+1:], jb.frames[i:])
	jb.frames[i] = jf

	// Truncate from the front (earliest playout) when over capacity.
	if over := len(jb.frames) - jb.maxFrames; over > 0 {
		jb.frames = jb.frames[over:]
		jb.dropped += uint64(over)
	}
}

// Dequeue returns the earliest frame whose playout time has elapsed. The
// second return value is false when no frame is due. Frames whose playout
// time is already past remain eligible unless MaxLateness is configured,
// in which case stale frames are dropped and counted instead of returned.
func (jb *JitterBuffer) Dequeue() (Frame, bool) {
	jb.mu.Lock()
	defer jb.mu.Unlock()

	now := jb.now()
	for len(jb.frames) > 0 {
		head := jb.frames[0]
		if head.playoutAt.After(now) {
			return Frame{}, false
		}
		jb.frames = jb.frames[1:]
		if head.played {
			continue
		}
		if jb.maxLateness > 0 && now.Sub(head.playoutAt) > jb.maxLateness {
			jb.dropped++
			continue
		}
		head.played = true
		return head.frame, true
	}
	return Frame{}, false
}

// Health derives the buffer's current condition.
func (jb *JitterBuffer) Health() Health {
	jb.mu.Lock()
	defer jb.mu.Unlock()

	n := len(jb.frames)
	pct := float64(n) / float64(jb.maxFrames) * 100

	h := Health{
		Frames:        n,
		Capacity:      jb.maxFrames,
		PercentFull:   pct,
		Underrun:      n < underrunThreshold,
		Overrun:       float64(n) > float64(jb.maxFrames)*overrunRatio,
		Jitter:        jb.jitterLocked(),
		TargetLatency: jb.target,
	}

	switch {
	case h.Overrun:
		h.Recommendation = "overrun: consumer too slow, consider lowering target latency"
	case h.Underrun:
		h.Recommendation = "underrun: starved for frames, consider raising target latency"
	case h.Jitter > jb.target/2:
		h.Recommendation = fmt.Sprintf("jitter %v near target latency %v, consider raising target latency", h.Jitter, jb.target)
	default:
		h.Recommendation = "healthy"
	}
	return h
}

// AdjustLatency nudges the target latency by a fixed step in the given
// direction, floored at [MinTargetLatency]. Already-queued frames keep
// their computed playout times.
func (jb *JitterBuffer) AdjustLatency(dir LatencyDirection) time.Duration {
	jb.mu.Lock()
	defer jb.mu.Unlock()

	switch dir {
	case LatencyUp:
		jb.target += latencyStep
	case LatencyDown:
		jb.target -= latencyStep
	}
	if jb.target < MinTargetLatency {
		jb.target = MinTargetLatency
	}
	return jb.target
}

// TargetLatency returns the current playout delay.
func (jb *JitterBuffer) TargetLatency() time.Duration {
	jb.mu.Lock()
	defer jb.mu.Unlock()
	return jb.target
}

// Flush clears all queued frames and the arrival history behind the jitter
// measurement, so an empty buffer reports zero jitter. The target latency
// is kept.
func (jb *JitterBuffer) Flush() {
	jb.mu.Lock()
	defer jb.mu.Unlock()
	jb.frames = jb.frames[:0]
	jb.deltas = jb.deltas[:0]
	jb.deltaNext = 0
	jb.lastArrival = time.Time{}
}

// Dropped returns the number of frames discarded by capacity truncation or
// the staleness cutoff.
func (jb *JitterBuffer) Dropped() uint64 {
	jb.mu.Lock()
	defer jb.mu.Unlock()
	return jb.dropped
}

// ResetDropped zeroes the dropped-frame counter.
func (jb *JitterBuffer) ResetDropped() {
	jb.mu.Lock()
	defer jb.mu.Unlock()
	jb.dropped = 0
}

// Jitter returns the mean absolute delta between consecutive arrival times
// over the recent window. Fewer than two arrivals yield zero.
func (jb *JitterBuffer) Jitter() time.Duration {
	jb.mu.Lock()
	defer jb.mu.Unlock()
	return jb.jitterLocked()
}

func (jb *JitterBuffer) jitterLocked() time.Duration {
	if len(jb.deltas) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range jb.deltas {
		sum += d
	}
	return sum / time.Duration(len(jb.deltas))
}

// recordArrival feeds the inter-arrival delta window. Caller holds jb.mu.
func (jb *JitterBuffer) recordArrival(arrival time.Time) {
	if !jb.lastArrival.IsZero() {
		d := arrival.Sub(jb.lastArrival)
		if d < 0 {
			d = -d
		}
		if len(jb.deltas) < jitterWindow {
			jb.deltas = append(jb.deltas, d)
		} else {
			jb.deltas[jb.deltaNext] = d
			jb.deltaNext = (jb.deltaNext + 1) % jitterWindow
		}
	}
	jb.lastArrival = arrival
}
