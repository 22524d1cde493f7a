package stt

import "time"

// Transcript represents one transcribed utterance.
type Transcript struct {
	// Text is the transcribed speech content, whitespace-trimmed.
	Text string

	// Language is the BCP-47 tag the provider recognised (or was told to
	// use). May be empty when the provider does not report it.
	Language string

	// Confidence is the overall confidence score (0.0 to 1.0). Zero when
	// the provider does not report confidence.
	Confidence float64

	// Duration is the length of the transcribed audio.
	Duration time.Duration

	// Timestamp marks when the transcription completed.
	Timestamp time.Time
}
