// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription service (e.g., a local Whisper
// server or a hosted API) behind a single batch call: one utterance of PCM
// audio in, one Transcript out. The voice pipeline captures a complete
// utterance before transcribing, so a streaming interface is not needed
// here; providers that stream internally should collect the result and
// return it whole.
//
// Implementations must be safe for concurrent use. Multiple utterances may
// be transcribed simultaneously, one per active session.
package stt

import (
	"context"
	"errors"
)

// ErrNoSpeech is returned by Transcribe when the audio contains no
// recognisable speech. Callers should treat it as a user-facing condition
// (prompt the user to repeat themselves) rather than a provider failure,
// and match it with errors.Is.
var ErrNoSpeech = errors.New("stt: no speech detected")

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe converts one utterance of 16-bit interleaved PCM into
	// text. language is a BCP-47 tag ("en", "de-DE"); empty lets the
	// provider auto-detect where supported.
	//
	// Returns ErrNoSpeech when the audio is silence or otherwise yields no
	// text, and a provider error for transport or service failures. ctx
	// cancellation aborts the request.
	Transcribe(ctx context.Context, pcm []int16, language string) (Transcript, error)
}
