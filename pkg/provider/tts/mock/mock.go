// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to script synthesis results or failures and to verify which
// text and voice the caller requested.
//
// Example:
//
//	p := &mock.Provider{
//	    Result: tts.Synthesis{PCM: make([]int16, 960), SampleRate: 48000},
//	}
//	syn, _ := p.Synthesize(ctx, "hello", voice)
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/voxloop/voxloop/pkg/provider/tts"
)

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)

// SynthesizeCall records a single invocation of Provider.Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Text is the text passed to Synthesize.
	Text string
	// Voice is the VoiceProfile passed to Synthesize.
	Voice tts.VoiceProfile
}

// Provider is a mock implementation of tts.Provider. It applies the same
// local text validation as real providers so pipeline tests exercise the
// empty and over-length paths without scripting.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Result is returned by every successful Synthesize call.
	Result tts.Synthesis

	// Err, if non-nil, is returned by every Synthesize call after
	// validation passes.
	Err error

	// --- Call records ---

	// SynthesizeCalls records every call to Synthesize in order.
	SynthesizeCalls []SynthesizeCall
}

// Synthesize records the call, validates text, and returns Result, Err.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.VoiceProfile) (tts.Synthesis, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Text: text, Voice: voice})

	if strings.TrimSpace(text) == "" {
		return tts.Synthesis{}, tts.ErrEmptyText
	}
	if len(text) > tts.MaxTextLength {
		return tts.Synthesis{}, tts.ErrTextTooLong
	}
	if p.Err != nil {
		return tts.Synthesis{}, p.Err
	}
	return p.Result, nil
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = nil
}
