// Package audio provides the real-time audio path of voxloop: frame types,
// a non-blocking circular frame store, an adaptive jitter buffer, the codec
// seam with packet-loss concealment, and the [Handler] facade that ties them
// together for one voice stream.
//
// The package sits on the hot path between the network transport and the
// session pipeline. Buffer operations are synchronous and never block;
// dropped data is counted, not raised.
//
// This package lives under pkg/ because transport adapters (e.g.
// audio/discord) and external codec implementations are expected to build
// against its types.
package audio

import "time"

// Frame is a single decoded audio unit flowing through the pipeline.
// A Frame is immutable once created; callers must not mutate PCM after
// handing the frame to a buffer.
type Frame struct {
	// PCM holds interleaved signed 16-bit samples. Its length is always
	// Samples × channel count for a valid frame.
	PCM []int16

	// Timestamp is the transport timestamp in sample units. It advances by
	// Samples for each consecutive captured frame.
	Timestamp uint32

	// Sequence is the per-stream frame sequence number.
	Sequence uint16

	// SSRC identifies the synchronization source (speaker) this frame
	// belongs to.
	SSRC uint32

	// Samples is the number of samples per channel in this frame.
	Samples int

	// Duration is the nominal wall-clock length of the frame (e.g. 20 ms).
	Duration time.Duration
}

// Config fixes the process-wide stream format. Sample rate and channel
// count are invariants — the pipeline never resamples.
type Config struct {
	// SampleRate in Hz (48000 for Discord Opus).
	SampleRate int

	// Channels is the interleaved channel count (2 for Discord).
	Channels int

	// FrameDuration is the nominal frame length. Default 20 ms.
	FrameDuration time.Duration
}

// DefaultConfig matches the Discord Opus voice format used by the transport
// adapter: 48 kHz stereo, 20 ms frames.
var DefaultConfig = Config{
	SampleRate:    48000,
	Channels:      2,
	FrameDuration: 20 * time.Millisecond,
}

// FrameSize returns the number of samples per channel in one nominal frame.
func (c Config) FrameSize() int {
	return int(int64(c.SampleRate) * int64(c.FrameDuration) / int64(time.Second))
}

// SamplesPerFrame returns the total interleaved sample count of one nominal
// frame across all channels.
func (c Config) SamplesPerFrame() int {
	return c.FrameSize() * c.Channels
}
