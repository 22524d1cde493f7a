package tts

import "time"

// VoiceProfile describes a TTS voice configuration.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Stability controls expressiveness variance (0.0 to 1.0). Zero lets
	// the provider apply its default.
	Stability float64

	// Similarity controls how closely output tracks the reference voice
	// (0.0 to 1.0). Zero lets the provider apply its default.
	Similarity float64
}

// Synthesis is the result of one synthesis call.
type Synthesis struct {
	// PCM is the complete synthesised audio as 16-bit interleaved samples.
	PCM []int16

	// SampleRate is the audio sample rate in Hz.
	SampleRate int

	// Channels is the channel count of PCM.
	Channels int

	// Duration is the playback length of PCM.
	Duration time.Duration
}
