// Package mock provides a test double for the agent.Provider interface.
//
// Use Provider to script replies or failures and to inspect the utterances
// and identities the caller submitted.
//
// Example:
//
//	p := &mock.Provider{
//	    Replies: []agent.Reply{{Text: "It is three o'clock."}},
//	}
//	reply, _ := p.Respond(ctx, "what time is it", agent.Identity{})
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/voxloop/voxloop/pkg/provider/agent"
)

// Ensure Provider implements agent.Provider at compile time.
var _ agent.Provider = (*Provider)(nil)

// RespondCall records a single invocation of Provider.Respond.
type RespondCall struct {
	// Ctx is the context passed to Respond.
	Ctx context.Context
	// Text is the utterance passed to Respond.
	Text string
	// Identity is the identity passed to Respond.
	Identity agent.Identity
}

// Provider is a mock implementation of agent.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Replies is the sequence of results returned by successive Respond
	// calls. Once exhausted, the last element repeats. When empty,
	// agent.ErrEmptyReply is returned.
	Replies []agent.Reply

	// Err, if non-nil, is returned by every Respond call.
	Err error

	// Delay, if positive, is waited before responding. Respond honours
	// ctx cancellation during the wait.
	Delay time.Duration

	// --- Call records ---

	// RespondCalls records every call to Respond in order.
	RespondCalls []RespondCall
}

// Respond records the call and returns the next scripted reply.
func (p *Provider) Respond(ctx context.Context, text string, identity agent.Identity) (agent.Reply, error) {
	p.mu.Lock()
	p.RespondCalls = append(p.RespondCalls, RespondCall{Ctx: ctx, Text: text, Identity: identity})
	err := p.Err
	delay := p.Delay
	var reply agent.Reply
	if n := len(p.Replies); n > 0 {
		i := len(p.RespondCalls) - 1
		if i >= n {
			i = n - 1
		}
		reply = p.Replies[i]
	}
	hasReply := len(p.Replies) > 0
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return agent.Reply{}, ctx.Err()
		}
	}
	if err != nil {
		return agent.Reply{}, err
	}
	if !hasReply {
		return agent.Reply{}, agent.ErrEmptyReply
	}
	return reply, nil
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.RespondCalls = nil
}
