// Package voice implements the multi-session voice command pipeline: one
// conversational session per user, each owning its own audio handler, with
// admission control, per-phase error classification, fallback recovery, and
// synchronous metrics.
package voice

import (
	"fmt"
	"time"
)

// Error codes are partitioned into non-overlapping thousand-wide ranges so
// that the failing phase is derived from the code alone. The 1000 range
// belongs to audio.StreamError codes defined in pkg/audio.
const (
	// --- Transcription (2000-2999) ---

	// CodeTranscriptionFailed is a transport or service failure in the
	// speech-to-text collaborator.
	CodeTranscriptionFailed = 2001

	// CodeNoSpeech means the utterance contained no recognisable speech.
	// Deliberately distinct from CodeTranscriptionFailed: the user gets a
	// different prompt and the service is not at fault.
	CodeNoSpeech = 2002

	// CodeTranscriptionTimeout is a deadline expiry during transcription.
	CodeTranscriptionTimeout = 2003

	// --- Synthesis (3000-3999) ---

	// CodeSynthesisFailed is a transport or service failure in the
	// text-to-speech collaborator.
	CodeSynthesisFailed = 3001

	// CodeEmptyText means synthesis was asked for empty text. Rejected
	// locally before any call-out.
	CodeEmptyText = 3002

	// CodeTextTooLong means synthesis text exceeded the provider limit.
	// Rejected locally before any call-out.
	CodeTextTooLong = 3003

	// CodeSynthesisTimeout is a deadline expiry during synthesis.
	CodeSynthesisTimeout = 3004

	// --- Agent (4000-4999) ---

	// CodeAgentFailed is a transport or service failure in the response
	// generator.
	CodeAgentFailed = 4001

	// CodeAgentTimeout is a deadline expiry during response generation.
	CodeAgentTimeout = 4002

	// CodeAgentEmptyReply means the agent produced no usable text.
	CodeAgentEmptyReply = 4003

	// --- Pipeline (5000-5999) ---

	// CodeConcurrencyLimit rejects a session start at the configured
	// ceiling. Never auto-recovered.
	CodeConcurrencyLimit = 5001

	// CodeInvalidState rejects a request against a session that is not
	// active. Never auto-recovered.
	CodeInvalidState = 5002

	// CodeCancelled marks a request aborted by session end or sweep.
	CodeCancelled = 5003

	// CodeRecoveryExhausted reports that the pipeline's lifetime recovery
	// budget is spent. Never auto-recovered.
	CodeRecoveryExhausted = 5004

	// CodeSessionNotFound rejects an operation against an unknown user.
	CodeSessionNotFound = 5005
)

// Phase identifies the pipeline stage an error originated in.
type Phase string

const (
	PhaseAudio    Phase = "audio"
	PhaseSTT      Phase = "stt"
	PhaseTTS      Phase = "tts"
	PhaseAgent    Phase = "agent"
	PhasePipeline Phase = "pipeline"
	PhaseUnknown  Phase = "unknown"
)

// PhaseOf classifies an error code by numeric range alone.
func PhaseOf(code int) Phase {
	switch {
	case code >= 1000 && code < 2000:
		return PhaseAudio
	case code >= 2000 && code < 3000:
		return PhaseSTT
	case code >= 3000 && code < 4000:
		return PhaseTTS
	case code >= 4000 && code < 5000:
		return PhaseAgent
	case code >= 5000 && code < 6000:
		return PhasePipeline
	default:
		return PhaseUnknown
	}
}

// Error is the pipeline's structured error. The code's numeric range
// identifies the failing phase; message text is never used for
// classification.
type Error struct {
	// Code places the error in a phase range.
	Code int

	// Message is the technical description for logs.
	Message string

	// UserMessage is the speakable description for the end user.
	UserMessage string

	// Suggestions lists recovery hints for the operator or user.
	Suggestions []string

	// Recoverable marks failures that fallback recovery may absorb.
	Recoverable bool

	// RetryAfter is a provider-suggested wait before retrying, or zero.
	RetryAfter time.Duration

	// SessionID and UserID carry the session context the error occurred in.
	SessionID string
	UserID    string

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("voice: [%d/%s] %s: %v", e.Code, e.Phase(), e.Message, e.cause)
	}
	return fmt.Sprintf("voice: [%d/%s] %s", e.Code, e.Phase(), e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.cause }

// Phase returns the phase derived from the error code.
func (e *Error) Phase() Phase { return PhaseOf(e.Code) }

// newError builds an Error with the standard user message and suggestions
// for its code.
func newError(code int, msg string, cause error) *Error {
	e := &Error{
		Code:    code,
		Message: msg,
		cause:   cause,
	}
	e.UserMessage, e.Suggestions, e.Recoverable = codeDefaults(code)
	return e
}

// codeDefaults returns the user-facing message, suggestions, and
// recoverability for a code. Recoverable means "fallback recovery may
// absorb this", not "retrying is guaranteed to help".
func codeDefaults(code int) (userMsg string, suggestions []string, recoverable bool) {
	switch code {
	case CodeTranscriptionFailed, CodeTranscriptionTimeout:
		return "Sorry, I couldn't make out what you said.",
			[]string{"check the speech service is reachable", "retry the request"},
			true
	case CodeNoSpeech:
		return "I didn't hear anything. Could you say that again?",
			[]string{"speak closer to the microphone", "check the input device"},
			true
	case CodeSynthesisFailed, CodeSynthesisTimeout:
		return "Sorry, I lost my voice for a moment.",
			[]string{"check the synthesis service is reachable", "retry the request"},
			true
	case CodeEmptyText:
		return "There was nothing for me to say.",
			[]string{"check the agent produced a reply"},
			false
	case CodeTextTooLong:
		return "The reply was too long to speak.",
			[]string{"shorten the agent reply", "raise the synthesis length limit"},
			false
	case CodeAgentFailed, CodeAgentTimeout, CodeAgentEmptyReply:
		return "Sorry, I couldn't think of a reply.",
			[]string{"check the agent backend is reachable", "retry the request"},
			true
	case CodeConcurrencyLimit:
		return "I'm helping too many people right now. Please try again shortly.",
			[]string{"wait for a session slot", "raise the concurrency ceiling"},
			false
	case CodeInvalidState:
		return "I'm still working on your last request.",
			[]string{"wait for the current request to finish"},
			false
	case CodeCancelled:
		return "That request was cancelled.",
			nil,
			false
	case CodeRecoveryExhausted:
		return "Something keeps going wrong. Please try again later.",
			[]string{"check collaborator health", "restart the pipeline"},
			false
	case CodeSessionNotFound:
		return "We don't have a conversation going. Start one first.",
			[]string{"start a session before sending audio"},
			false
	default:
		return "Something went wrong.", nil, false
	}
}
