package voice

// Fallback utterances are spoken in place of real pipeline output when a
// recoverable failure is absorbed. Each failing phase gets its own line so
// the user hears what actually went wrong; no-speech gets a prompt to
// repeat rather than an apology.
const (
	fallbackNoSpeech = "I didn't catch that. Could you say it again?"
	fallbackSTT      = "Sorry, I'm having trouble hearing you right now. Please try again in a moment."
	fallbackAgent    = "Sorry, I can't come up with an answer right now. Please try again in a moment."
	fallbackTTS      = "Sorry, something went wrong with my voice. Please bear with me."
	fallbackGeneric  = "Sorry, something went wrong. Please try again."
)

// fallbackUtterance picks the spoken fallback for a classified error.
func fallbackUtterance(err *Error) string {
	if err.Code == CodeNoSpeech {
		return fallbackNoSpeech
	}
	switch err.Phase() {
	case PhaseSTT:
		return fallbackSTT
	case PhaseAgent:
		return fallbackAgent
	case PhaseTTS:
		return fallbackTTS
	default:
		return fallbackGeneric
	}
}
