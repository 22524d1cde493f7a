package audio

import (
	"log/slog"
	"sync"
	"time"
)

// State describes the lifecycle position of a [Handler].
type State int

const (
	// StateUninitialized is the state before Initialize and after Shutdown.
	StateUninitialized State = iota

	// StateInitialized means the handler is ready but neither capturing
	// nor playing.
	StateInitialized

	// StateCapturing means capture is active.
	StateCapturing

	// StatePlaying means playback is active.
	StatePlaying
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateCapturing:
		return "capturing"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// Stats holds the handler's monotonic counters. Counters never gate
// behaviour; they reset only via [Handler.ResetStats].
type Stats struct {
	FramesProcessed  uint64
	FramesEncoded    uint64
	FramesDecoded    uint64
	FramesConcealed  uint64
	FramesDropped    uint64
	BufferedFrames   int
	EstimatedLatency time.Duration
}

// ErrorCallback receives every [StreamError] the handler produces. A panic
// inside a callback is recovered and logged; it never reaches the emitting
// operation or other callbacks.
type ErrorCallback func(StreamError)

// HandlerConfig configures a [Handler].
type HandlerConfig struct {
	// Format is the process-wide stream format. Zero value falls back to
	// [DefaultConfig].
	Format Config

	// RingCapacity is the capture ring size in frames. Default: 100.
	RingCapacity int

	// Jitter configures the owned jitter buffer.
	Jitter JitterConfig
}

// Handler is the facade owning one voice stream's buffers and codec
// boundary: capture into a circular store, encode/decode with loss
// concealment, jitter-buffered playout scheduling, a playback queue for the
// transport to drain, statistics, and error callback fan-out.
//
// One Handler serves exactly one session; sessions never share buffers.
// Handler is safe for concurrent use.
type Handler struct {
	cfg   Config
	codec Codec

	mu          sync.Mutex
	ring        *Ring
	jb          *JitterBuffer
	playback    []Frame
	initialized bool
	capturing   bool
	playing     bool
	seq         uint16
	ts          uint32

	framesProcessed uint64
	framesEncoded   uint64
	framesDecoded   uint64
	framesConcealed uint64

	lastErr   *StreamError
	callbacks []ErrorCallback
}

// NewHandler creates a Handler around the given codec. The handler starts
// uninitialized; call [Handler.Initialize] before any audio operation.
func NewHandler(codec Codec, cfg HandlerConfig) *Handler {
	if cfg.Format.SampleRate == 0 {
		cfg.Format = DefaultConfig
	}
	if cfg.RingCapacity <= 0 {
		cfg.RingCapacity = 100
	}
	return &Handler{
		cfg:   cfg.Format,
		codec: codec,
		ring:  NewRing(cfg.RingCapacity),
		jb:    NewJitterBuffer(cfg.Jitter),
	}
}

// Initialize transitions the handler from uninitialized to initialized.
// A second call fails with [CodeAlreadyInitialized].
func (h *Handler) Initialize() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.initialized {
		return h.emitLocked(CodeAlreadyInitialized, "handler already initialized", false, nil)
	}
	h.initialized = true
	return nil
}

// Shutdown is safe from any state. It clears both buffers and all
// callbacks, stops capture and playback, and returns the handler to the
// uninitialized state.
func (h *Handler) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.ring.Reset()
	h.jb.Flush()
	h.playback = nil
	h.callbacks = nil
	h.initialized = false
	h.capturing = false
	h.playing = false
	h.lastErr = nil
}

// Reset clears buffers and counters but keeps the handler initialized and
// its callbacks registered.
func (h *Handler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.ring.Reset()
	h.jb.Flush()
	h.jb.ResetDropped()
	h.playback = nil
	h.seq = 0
	h.ts = 0
	h.framesProcessed = 0
	h.framesEncoded = 0
	h.framesDecoded = 0
	h.framesConcealed = 0
	h.lastErr = nil
}

// State returns the handler's current lifecycle state.
func (h *Handler) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case !h.initialized:
		return StateUninitialized
	case h.capturing:
		return StateCapturing
	case h.playing:
		return StatePlaying
	default:
		return StateInitialized
	}
}

// ── Capture ──────────────────────────────────────────────────────────────────

// CaptureFrame validates pcm against the exact frame size (frame samples ×
// channels — no partial frames, no resampling), stamps an increasing
// sequence number, advances the transport timestamp by the frame's
// per-channel sample count, and stores the frame into the circular buffer.
func (h *Handler) CaptureFrame(pcm []int16) (Frame, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.initialized {
		return Frame{}, h.emitLocked(CodeNotInitialized, "capture before initialize", false, nil)
	}
	if err := h.validateFrameLocked(len(pcm), "capture"); err != nil {
		return Frame{}, err
	}

	f := Frame{
		PCM:       pcm,
		Timestamp: h.ts,
		Sequence:  h.seq,
		Samples:   h.cfg.FrameSize(),
		Duration:  h.cfg.FrameDuration,
	}
	h.seq++
	h.ts += uint32(h.cfg.FrameSize())
	h.framesProcessed++
	h.capturing = true
	h.ring.Write(f)
	return f, nil
}

// ReadCaptured removes and returns the oldest captured frame, or false when
// the ring is empty.
func (h *Handler) ReadCaptured() (Frame, bool) {
	return h.ring.Read()
}

// StopCapture clears the capturing flag without touching buffered frames.
func (h *Handler) StopCapture() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.capturing = false
}

// ── Codec boundary ───────────────────────────────────────────────────────────

// EncodeFrame compresses one frame. The frame's PCM length is validated
// identically to capture.
func (h *Handler) EncodeFrame(f Frame) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.initialized {
		return nil, h.emitLocked(CodeNotInitialized, "encode before initialize", false, nil)
	}
	if err := h.validateFrameLocked(len(f.PCM), "encode"); err != nil {
		return nil, err
	}

	packet, err := h.codec.Encode(f.PCM)
	if err != nil {
		return nil, h.emitLocked(CodeEncodeFailed, "codec encode failed", true, err)
	}
	h.framesEncoded++
	return packet, nil
}

// DecodeFrame decompresses one wire packet. It never fails: malformed or
// empty input degrades to loss concealment, synthesising a full-size
// comfort-noise frame so playout continuity is preserved. The returned
// frame carries PCM and format metadata only; the transport assigns
// sequence, timestamp, and SSRC.
func (h *Handler) DecodeFrame(packet []byte) (Frame, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.initialized {
		return Frame{}, h.emitLocked(CodeNotInitialized, "decode before initialize", false, nil)
	}

	var pcm []int16
	if len(packet) == 0 {
		pcm = ConcealLoss(h.cfg)
		h.framesConcealed++
	} else {
		decoded, err := h.codec.Decode(packet)
		if err != nil {
			slog.Debug("audio: decode failed, concealing", "err", err)
			pcm = ConcealLoss(h.cfg)
			h.framesConcealed++
		} else {
			pcm = decoded
		}
	}

	h.framesDecoded++
	return Frame{
		PCM:      pcm,
		Samples:  h.cfg.FrameSize(),
		Duration: h.cfg.FrameDuration,
	}, nil
}

// EncodeFrames applies EncodeFrame across frames, preserving order. The
// first failure aborts and is returned.
func (h *Handler) EncodeFrames(frames []Frame) ([][]byte, error) {
	packets := make([][]byte, 0, len(frames))
	for _, f := range frames {
		p, err := h.EncodeFrame(f)
		if err != nil {
			return nil, err
		}
		packets = append(packets, p)
	}
	return packets, nil
}

// DecodeFrames applies DecodeFrame across packets, preserving order.
func (h *Handler) DecodeFrames(packets [][]byte) ([]Frame, error) {
	frames := make([]Frame, 0, len(packets))
	for _, p := range packets {
		f, err := h.DecodeFrame(p)
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, nil
}

// ── Jitter buffer and playback ───────────────────────────────────────────────

// EnqueueFrame hands a decoded frame to the owned jitter buffer.
func (h *Handler) EnqueueFrame(f Frame) error {
	h.mu.Lock()
	if !h.initialized {
		defer h.mu.Unlock()
		return h.emitLocked(CodeNotInitialized, "enqueue before initialize", false, nil)
	}
	h.mu.Unlock()

	h.jb.Enqueue(f)
	return nil
}

// DequeueFrame returns the next frame due for playout, or false when none
// is due yet.
func (h *Handler) DequeueFrame() (Frame, bool) {
	return h.jb.Dequeue()
}

// BufferHealth returns the jitter buffer's derived health snapshot.
func (h *Handler) BufferHealth() Health {
	return h.jb.Health()
}

// FlushBuffer clears the jitter buffer without changing its target latency.
func (h *Handler) FlushBuffer() {
	h.jb.Flush()
}

// AdjustLatency nudges the jitter buffer's target latency.
func (h *Handler) AdjustLatency(dir LatencyDirection) time.Duration {
	return h.jb.AdjustLatency(dir)
}

// PlayFrame appends f to the internal playback queue for downstream drain.
// It does not move data to the transport itself.
func (h *Handler) PlayFrame(f Frame) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.initialized {
		return h.emitLocked(CodeNotInitialized, "play before initialize", false, nil)
	}
	h.playback = append(h.playback, f)
	return nil
}

// StartPlayback sets the playing flag. It moves no data; the transport
// bridge drains the queue on its own cadence.
func (h *Handler) StartPlayback() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.initialized {
		return h.emitLocked(CodeNotInitialized, "start playback before initialize", false, nil)
	}
	h.playing = true
	return nil
}

// StopPlayback clears the playing flag, leaving queued frames in place.
func (h *Handler) StopPlayback() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.playing = false
}

// DrainPlayback removes and returns up to max queued playback frames while
// playback is active. With playback stopped it returns nil. max <= 0
// drains the whole queue.
func (h *Handler) DrainPlayback(max int) []Frame {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.playing || len(h.playback) == 0 {
		return nil
	}
	n := len(h.playback)
	if max > 0 && max < n {
		n = max
	}
	out := make([]Frame, n)
	copy(out, h.playback[:n])
	h.playback = h.playback[n:]
	return out
}

// PlaybackQueueLen returns the number of frames awaiting drain.
func (h *Handler) PlaybackQueueLen() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.playback)
}

// ── Errors and telemetry ─────────────────────────────────────────────────────

// OnError registers cb to receive every StreamError the handler produces.
// Callbacks are held in an explicit instance-owned list; a failing callback
// never affects the emitting operation or the other callbacks.
func (h *Handler) OnError(cb ErrorCallback) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callbacks = append(h.callbacks, cb)
}

// LastError returns the most recent StreamError, or nil.
func (h *Handler) LastError() *StreamError {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

// Stats returns a snapshot of the handler's counters. Estimated latency is
// the jitter buffer's target latency plus its measured jitter.
func (h *Handler) Stats() Stats {
	h.mu.Lock()
	processed := h.framesProcessed
	encoded := h.framesEncoded
	decoded := h.framesDecoded
	concealed := h.framesConcealed
	h.mu.Unlock()

	return Stats{
		FramesProcessed:  processed,
		FramesEncoded:    encoded,
		FramesDecoded:    decoded,
		FramesConcealed:  concealed,
		FramesDropped:    h.ring.Overflows() + h.jb.Dropped(),
		BufferedFrames:   h.jb.Health().Frames,
		EstimatedLatency: h.jb.TargetLatency() + h.jb.Jitter(),
	}
}

// ResetStats zeroes the handler's counters. Buffer contents are untouched.
func (h *Handler) ResetStats() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.framesProcessed = 0
	h.framesEncoded = 0
	h.framesDecoded = 0
	h.framesConcealed = 0
}

// validateFrameLocked checks that a sample count matches the exact frame
// size. Caller holds h.mu.
func (h *Handler) validateFrameLocked(samples int, op string) error {
	want := h.cfg.SamplesPerFrame()
	if samples != want {
		return h.emitLocked(CodeInvalidFrameSize,
			op+": sample count does not match frame size", false, nil)
	}
	return nil
}

// emitLocked builds a StreamError, records it as the last error, fans it
// out to callbacks (each isolated from panics), and returns it. Caller
// holds h.mu; callbacks run without the lock.
func (h *Handler) emitLocked(code int, msg string, recoverable bool, cause error) error {
	se := &StreamError{
		Code:        code,
		Message:     msg,
		Timestamp:   time.Now(),
		Recoverable: recoverable,
		cause:       cause,
	}
	if h.lastErr != nil && h.lastErr.Code == code {
		se.Retries = h.lastErr.Retries + 1
	}
	h.lastErr = se
	cbs := make([]ErrorCallback, len(h.callbacks))
	copy(cbs, h.callbacks)

	h.mu.Unlock()
	for _, cb := range cbs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("audio: error callback panicked", "panic", r, "code", code)
				}
			}()
			cb(*se)
		}()
	}
	h.mu.Lock()

	return se
}
