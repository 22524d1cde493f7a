// Package opus adapts layeh.com/gopus to the audio.Codec interface.
//
// Opus decoders carry inter-frame state, so each voice stream needs its
// own Codec instance. Use [Factory] with audio.CodecFactory when the
// caller constructs codecs per stream.
package opus

import (
	"fmt"

	"layeh.com/gopus"

	"github.com/voxloop/voxloop/pkg/audio"
)

// Compile-time interface assertion.
var _ audio.Codec = (*Codec)(nil)

// maxPacketSize bounds the encoded output buffer. Opus packets for 20 ms
// of 48 kHz stereo rarely exceed a few hundred bytes.
const maxPacketSize = 4000

// Codec encodes and decodes Opus packets for one voice stream.
type Codec struct {
	cfg audio.Config
	enc *gopus.Encoder
	dec *gopus.Decoder
}

// New creates an Opus codec for the given format. A zero cfg falls back to
// audio.DefaultConfig (48 kHz stereo, 20 ms frames), which is what Discord
// voice carries.
func New(cfg audio.Config) (*Codec, error) {
	if cfg.SampleRate == 0 {
		cfg = audio.DefaultConfig
	}
	enc, err := gopus.NewEncoder(cfg.SampleRate, cfg.Channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("opus: create encoder: %w", err)
	}
	dec, err := gopus.NewDecoder(cfg.SampleRate, cfg.Channels)
	if err != nil {
		return nil, fmt.Errorf("opus: create decoder: %w", err)
	}
	return &Codec{cfg: cfg, enc: enc, dec: dec}, nil
}

// Factory returns an audio.CodecFactory producing independent codecs for
// the given format, one per stream.
func Factory(cfg audio.Config) audio.CodecFactory {
	return func() (audio.Codec, error) {
		return New(cfg)
	}
}

// Encode compresses one frame of interleaved PCM into an Opus packet.
func (c *Codec) Encode(pcm []int16) ([]byte, error) {
	packet, err := c.enc.Encode(pcm, c.cfg.FrameSize(), maxPacketSize)
	if err != nil {
		return nil, fmt.Errorf("opus: encode: %w", err)
	}
	return packet, nil
}

// Decode decompresses one Opus packet into interleaved PCM.
func (c *Codec) Decode(packet []byte) ([]int16, error) {
	pcm, err := c.dec.Decode(packet, c.cfg.FrameSize(), false)
	if err != nil {
		return nil, fmt.Errorf("opus: decode: %w", err)
	}
	return pcm, nil
}

// SampleRate implements audio.Codec.
func (c *Codec) SampleRate() int { return c.cfg.SampleRate }

// Channels implements audio.Codec.
func (c *Codec) Channels() int { return c.cfg.Channels }

// FrameSize implements audio.Codec.
func (c *Codec) FrameSize() int { return c.cfg.FrameSize() }
