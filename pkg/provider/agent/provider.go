// Package agent defines the Provider interface for conversational agent
// backends.
//
// An agent provider turns one transcribed user utterance into one reply
// text. The pipeline treats the agent as opaque: prompt construction,
// conversation memory, and tool use all live behind the Provider boundary.
//
// Implementations must be safe for concurrent use.
package agent

import (
	"context"
	"errors"
)

// ErrEmptyReply is returned by Respond when the backend produced no usable
// text. Match with errors.Is.
var ErrEmptyReply = errors.New("agent: backend returned an empty reply")

// Provider is the abstraction over any conversational agent backend.
type Provider interface {
	// Respond generates a reply to one user utterance. identity shapes
	// the agent's voice and behaviour; a zero Identity uses the backend's
	// defaults.
	//
	// Returns ErrEmptyReply when the backend yields no text, and a
	// provider error for transport or service failures. ctx cancellation
	// aborts the request.
	Respond(ctx context.Context, text string, identity Identity) (Reply, error)
}
