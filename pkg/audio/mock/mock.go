// Package mock provides a test double for the audio.Codec interface.
//
// The codec round-trips PCM through a trivial byte packing so that decoded
// output equals encoded input, and can be configured to fail either
// direction to exercise concealment and error paths.
package mock

import (
	"errors"
	"sync"

	"github.com/voxloop/voxloop/pkg/audio"
)

// Compile-time interface assertion.
var _ audio.Codec = (*Codec)(nil)

// Codec is a mock implementation of audio.Codec.
type Codec struct {
	mu sync.Mutex

	// Format defaults to audio.DefaultConfig when zero.
	Format audio.Config

	// EncodeErr, if non-nil, is returned by every Encode call.
	EncodeErr error

	// DecodeErr, if non-nil, is returned by every Decode call.
	DecodeErr error

	// EncodeCalls counts Encode invocations.
	EncodeCalls int

	// DecodeCalls counts Decode invocations.
	DecodeCalls int
}

// ErrMalformed is a convenience error for configuring DecodeErr.
var ErrMalformed = errors.New("mock codec: malformed packet")

func (c *Codec) format() audio.Config {
	if c.Format.SampleRate == 0 {
		return audio.DefaultConfig
	}
	return c.Format
}

// Encode packs pcm into little-endian bytes.
func (c *Codec) Encode(pcm []int16) ([]byte, error) {
	c.mu.Lock()
	c.EncodeCalls++
	err := c.EncodeErr
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out, nil
}

// Decode unpacks little-endian bytes into pcm.
func (c *Codec) Decode(packet []byte) ([]int16, error) {
	c.mu.Lock()
	c.DecodeCalls++
	err := c.DecodeErr
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if len(packet)%2 != 0 {
		return nil, ErrMalformed
	}

	pcm := make([]int16, len(packet)/2)
	for i := range pcm {
		pcm[i] = int16(packet[i*2]) | int16(packet[i*2+1])<<8
	}
	return pcm, nil
}

// SampleRate implements audio.Codec.
func (c *Codec) SampleRate() int { return c.format().SampleRate }

// Channels implements audio.Codec.
func (c *Codec) Channels() int { return c.format().Channels }

// FrameSize implements audio.Codec.
func (c *Codec) FrameSize() int { return c.format().FrameSize() }
