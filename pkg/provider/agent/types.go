package agent

import "time"

// Identity shapes how the agent presents itself in replies.
type Identity struct {
	// Name is the assistant's spoken name.
	Name string

	// Persona is free-form behavioural instruction (tone, role, limits).
	// Backends typically map it to a system prompt.
	Persona string

	// Language is the BCP-47 tag replies should be written in. Empty lets
	// the backend mirror the user's language.
	Language string
}

// Reply is the result of one Respond call.
type Reply struct {
	// Text is the reply content, ready for speech synthesis.
	Text string

	// Confidence is the backend's self-reported certainty in [0, 1], or
	// zero when the backend does not report one.
	Confidence float64

	// Model identifies the backend model that produced the reply.
	Model string

	// TokensUsed is the total token count the backend reported, or zero
	// when unavailable.
	TokensUsed int

	// Timestamp marks when the reply was received.
	Timestamp time.Time
}
