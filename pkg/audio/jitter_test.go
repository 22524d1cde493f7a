package audio

import (
	"testing"
	"time"
)

// fakeClock drives a JitterBuffer deterministically in tests.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBuffer(cfg JitterConfig) (*JitterBuffer, *fakeClock) {
	jb := NewJitterBuffer(cfg)
	clk := newFakeClock()
	jb.now = clk.now
	return jb, clk
}

func TestJitterBuffer_DequeueRespectsPlayoutTime(t *testing.T) {
	jb, clk := newTestBuffer(JitterConfig{TargetLatency: 40 * time.Millisecond})

	jb.Enqueue(frameSeq(0))

	// Playout time has not elapsed.
	if _, ok := jb.Dequeue(); ok {
		t.Fatal("Dequeue returned a frame before its playout time")
	}

	clk.advance(40 * time.Millisecond)
	f, ok := jb.Dequeue()
	if !ok {
		t.Fatal("Dequeue returned nothing after playout time elapsed")
	}
	if f.Sequence != 0 {
		t.Errorf("Sequence = %d, want 0", f.Sequence)
	}
}

func TestJitterBuffer_OrderFollowsPlayoutNotArrival(t *testing.T) {
	// Spec scenario: target latency 40 ms; A enqueued, latency raised, then
	// B enqueued 5 ms later — B still computes an earlier playout when the
	// target drops back before its arrival. Model the simpler observable:
	// lowering the target between arrivals makes the later frame due first.
	jb, clk := newTestBuffer(JitterConfig{TargetLatency: 60 * time.Millisecond})

	jb.Enqueue(frameSeq(0)) // playout at t0+60ms

	// Drop target to the 20 ms floor, then enqueue B 5 ms later.
	jb.AdjustLatency(LatencyDown)
	jb.AdjustLatency(LatencyDown)
	jb.AdjustLatency(LatencyDown)
	jb.AdjustLatency(LatencyDown)
	clk.advance(5 * time.Millisecond)
	jb.Enqueue(frameSeq(1)) // playout at t0+25ms — earlier than A

	clk.advance(55 * time.Millisecond) // t0+60ms: both due
	first, ok := jb.Dequeue()
	if !ok {
		t.Fatal("expected a due frame")
	}
	if first.Sequence != 1 {
		t.Errorf("first dequeued Sequence = %d, want 1 (playout order, not arrival order)", first.Sequence)
	}
	second, ok := jb.Dequeue()
	if !ok || second.Sequence != 0 {
		t.Errorf("second dequeued = (%v, %v), want frame 0", second.Sequence, ok)
	}
}

func TestJitterBuffer_DequeueNeverReturnsFutureFrame(t *testing.T) {
	jb, clk := newTestBuffer(JitterConfig{TargetLatency: 40 * time.Millisecond})

	// Three frames spaced 7 ms apart: due at 40, 47, and 54 ms.
	for seq := uint16(0); seq < 3; seq++ {
		jb.Enqueue(frameSeq(seq))
		clk.advance(7 * time.Millisecond)
	}

	// Clock is at 21 ms — nothing is due.
	if _, ok := jb.Dequeue(); ok {
		t.Fatal("Dequeue returned a frame whose playout time is in the future")
	}

	clk.advance(25 * time.Millisecond) // 46 ms: only frame 0 due
	if f, ok := jb.Dequeue(); !ok || f.Sequence != 0 {
		t.Fatalf("Dequeue = (%v, %v), want frame 0", f.Sequence, ok)
	}
	if _, ok := jb.Dequeue(); ok {
		t.Fatal("frame 1 returned before its playout time (47 ms)")
	}

	clk.advance(10 * time.Millisecond) // 56 ms: frames 1 and 2 due
	for want := uint16(1); want <= 2; want++ {
		f, ok := jb.Dequeue()
		if !ok || f.Sequence != want {
			t.Fatalf("Dequeue = (%v, %v), want frame %d", f.Sequence, ok, want)
		}
	}
}

func TestJitterBuffer_CapacityTruncationDropsEarliest(t *testing.T) {
	jb, _ := newTestBuffer(JitterConfig{MaxFrames: 3, TargetLatency: 40 * time.Millisecond})

	for seq := uint16(0); seq < 5; seq++ {
		jb.Enqueue(frameSeq(seq))
	}

	if got := jb.Health().Frames; got != 3 {
		t.Errorf("Frames = %d, want 3", got)
	}
	if jb.Dropped() != 2 {
		t.Errorf("Dropped = %d, want 2", jb.Dropped())
	}
}

func TestJitterBuffer_LateFramesStayEligible(t *testing.T) {
	// Default configuration has no staleness cutoff: a frame whose playout
	// time is far in the past is still returned.
	jb, clk := newTestBuffer(JitterConfig{TargetLatency: 40 * time.Millisecond})

	jb.Enqueue(frameSeq(0))
	clk.advance(10 * time.Second)

	if _, ok := jb.Dequeue(); !ok {
		t.Fatal("severely late frame was not returned without a staleness cutoff")
	}
}

func TestJitterBuffer_MaxLatenessDropsStaleFrames(t *testing.T) {
	jb, clk := newTestBuffer(JitterConfig{
		TargetLatency: 40 * time.Millisecond,
		MaxLateness:   200 * time.Millisecond,
	})

	jb.Enqueue(frameSeq(0))
	clk.advance(10 * time.Second)

	if _, ok := jb.Dequeue(); ok {
		t.Fatal("stale frame returned despite MaxLateness cutoff")
	}
	if jb.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", jb.Dropped())
	}
}

func TestJitterBuffer_JitterZeroForFewArrivals(t *testing.T) {
	jb, _ := newTestBuffer(JitterConfig{})
	if jb.Jitter() != 0 {
		t.Errorf("Jitter with no arrivals = %v, want 0", jb.Jitter())
	}

	jb.Enqueue(frameSeq(0))
	if jb.Jitter() != 0 {
		t.Errorf("Jitter with one arrival = %v, want 0", jb.Jitter())
	}
}

func TestJitterBuffer_JitterIsMeanAbsoluteArrivalDelta(t *testing.T) {
	jb, clk := newTestBuffer(JitterConfig{})

	jb.Enqueue(frameSeq(0))
	clk.advance(20 * time.Millisecond)
	jb.Enqueue(frameSeq(1))
	clk.advance(40 * time.Millisecond)
	jb.Enqueue(frameSeq(2))

	if got, want := jb.Jitter(), 30*time.Millisecond; got != want {
		t.Errorf("Jitter = %v, want %v", got, want)
	}
}

func TestJitterBuffer_AdjustLatencyFloor(t *testing.T) {
	jb, _ := newTestBuffer(JitterConfig{TargetLatency: 25 * time.Millisecond})

	got := jb.AdjustLatency(LatencyDown)
	if got != MinTargetLatency {
		t.Errorf("target after down-adjust = %v, want floor %v", got, MinTargetLatency)
	}
	got = jb.AdjustLatency(LatencyDown)
	if got != MinTargetLatency {
		t.Errorf("target stays floored, got %v", got)
	}
	got = jb.AdjustLatency(LatencyUp)
	if got != MinTargetLatency+10*time.Millisecond {
		t.Errorf("target after up-adjust = %v, want %v", got, MinTargetLatency+10*time.Millisecond)
	}
}

func TestJitterBuffer_HealthFlags(t *testing.T) {
	jb, _ := newTestBuffer(JitterConfig{MaxFrames: 10})

	h := jb.Health()
	if !h.Underrun {
		t.Error("empty buffer should report underrun")
	}
	if h.Overrun {
		t.Error("empty buffer must not report overrun")
	}

	for seq := uint16(0); seq < 10; seq++ {
		jb.Enqueue(frameSeq(seq))
	}
	h = jb.Health()
	if !h.Overrun {
		t.Errorf("full buffer should report overrun (percent full %.0f)", h.PercentFull)
	}
	if h.Underrun {
		t.Error("full buffer must not report underrun")
	}
	if h.PercentFull != 100 {
		t.Errorf("PercentFull = %v, want 100", h.PercentFull)
	}
	if h.Recommendation == "" {
		t.Error("Recommendation must not be empty")
	}
}

func TestJitterBuffer_FlushKeepsTargetLatency(t *testing.T) {
	jb, _ := newTestBuffer(JitterConfig{TargetLatency: 80 * time.Millisecond})
	jb.Enqueue(frameSeq(0))

	jb.Flush()

	if got := jb.Health().Frames; got != 0 {
		t.Errorf("Frames after Flush = %d, want 0", got)
	}
	if got := jb.TargetLatency(); got != 80*time.Millisecond {
		t.Errorf("TargetLatency after Flush = %v, want 80ms", got)
	}
}

func TestJitterBuffer_FlushClearsJitterHistory(t *testing.T) {
	jb, clk := newTestBuffer(JitterConfig{TargetLatency: 40 * time.Millisecond})
	for i := range 4 {
		jb.Enqueue(frameSeq(uint16(i)))
		clk.advance(time.Duration(10+10*i) * time.Millisecond)
	}
	if jb.Jitter() == 0 {
		t.Fatal("uneven arrivals should measure nonzero jitter")
	}

	jb.Flush()

	// An empty buffer reports zero jitter; the next arrival starts a fresh
	// measurement window.
	if got := jb.Jitter(); got != 0 {
		t.Errorf("Jitter after Flush = %v, want 0", got)
	}
	jb.Enqueue(frameSeq(9))
	if got := jb.Jitter(); got != 0 {
		t.Errorf("Jitter after first post-Flush arrival = %v, want 0", got)
	}
}

func TestJitterBuffer_ResetDropped(t *testing.T) {
	jb, _ := newTestBuffer(JitterConfig{TargetLatency: 40 * time.Millisecond, MaxFrames: 1})
	jb.Enqueue(frameSeq(0))
	jb.Enqueue(frameSeq(1))
	if jb.Dropped() != 1 {
		t.Fatalf("Dropped = %d, want 1 after capacity truncation", jb.Dropped())
	}

	jb.ResetDropped()

	if got := jb.Dropped(); got != 0 {
		t.Errorf("Dropped after ResetDropped = %d, want 0", got)
	}
}
