package audio

// Codec is the seam where a concrete voice codec is plugged into the audio
// path. Implementations wrap a real encoder/decoder pair (see audio/opus)
// or a test double (see audio/mock).
//
// A Codec instance carries decoder state across consecutive frames, so each
// stream must own its own instance. Implementations need not be safe for
// concurrent use; the owning [Handler] serialises access.
type Codec interface {
	// Encode compresses one frame of interleaved PCM into a wire packet.
	// The input length must equal FrameSize() × Channels().
	Encode(pcm []int16) ([]byte, error)

	// Decode decompresses one wire packet into interleaved PCM. An error
	// indicates a malformed packet; callers on the playout path should
	// degrade to [ConcealLoss] rather than propagate.
	Decode(packet []byte) ([]int16, error)

	// SampleRate returns the codec's fixed sample rate in Hz.
	SampleRate() int

	// Channels returns the codec's fixed channel count.
	Channels() int

	// FrameSize returns the number of samples per channel in one frame.
	FrameSize() int
}

// CodecFactory constructs a fresh Codec for a new stream. Codecs hold
// per-stream decoder state, so sessions must not share instances.
type CodecFactory func() (Codec, error)
