// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider to script transcription results or failures and to inspect
// which audio the caller submitted.
//
// Example:
//
//	p := &mock.Provider{
//	    Transcripts: []stt.Transcript{{Text: "hello there"}},
//	}
//	tr, _ := p.Transcribe(ctx, pcm, "en")
package mock

import (
	"context"
	"sync"

	"github.com/voxloop/voxloop/pkg/provider/stt"
)

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// PCM is a copy of the audio samples passed to Transcribe.
	PCM []int16
	// Language is the language tag passed to Transcribe.
	Language string
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Transcripts is the sequence of results returned by successive
	// Transcribe calls. Once exhausted, the last element repeats. When
	// empty, a zero Transcript is returned.
	Transcripts []stt.Transcript

	// Err, if non-nil, is returned by every Transcribe call. Set it to
	// stt.ErrNoSpeech to script the silence path.
	Err error

	// --- Call records ---

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns the next scripted result.
func (p *Provider) Transcribe(ctx context.Context, pcm []int16, language string) (stt.Transcript, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pcmCopy := make([]int16, len(pcm))
	copy(pcmCopy, pcm)
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, PCM: pcmCopy, Language: language})

	if p.Err != nil {
		return stt.Transcript{}, p.Err
	}
	if len(p.Transcripts) == 0 {
		return stt.Transcript{}, nil
	}
	i := len(p.TranscribeCalls) - 1
	if i >= len(p.Transcripts) {
		i = len(p.Transcripts) - 1
	}
	return p.Transcripts[i], nil
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}
