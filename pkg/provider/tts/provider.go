// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., ElevenLabs or a
// local Piper instance) behind a single batch call: the full utterance text
// in, one Synthesis holding the complete PCM out. The voice pipeline plays
// a synthesised reply from its jitter-buffered playback path, so providers
// that stream internally should collect all chunks before returning.
//
// Implementations must be safe for concurrent use. Multiple synthesis
// requests may run in parallel, one per active session.
package tts

import (
	"context"
	"errors"
)

// MaxTextLength is the longest text any provider accepts for a single
// synthesis call. Providers validate before contacting their backend.
const MaxTextLength = 5000

// ErrEmptyText is returned by Synthesize for empty or all-whitespace text.
var ErrEmptyText = errors.New("tts: text must not be empty")

// ErrTextTooLong is returned by Synthesize when text exceeds MaxTextLength.
var ErrTextTooLong = errors.New("tts: text exceeds maximum length")

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize converts text into speech using the given voice profile.
	// Text is validated locally first: ErrEmptyText and ErrTextTooLong are
	// returned without contacting the backend and match with errors.Is.
	//
	// ctx cancellation aborts the request; partial audio is discarded.
	Synthesize(ctx context.Context, text string, voice VoiceProfile) (Synthesis, error)
}
