package voice

import (
	"sync"
	"time"
)

// Backoff bounds for retry delays suggested alongside recovered errors.
const (
	backoffBase = 500 * time.Millisecond
	backoffMax  = 8 * time.Second
)

// Recoverer gates fallback recovery behind a lifetime attempt budget. The
// budget is per pipeline instance, not per request: a flapping collaborator
// burns through it once, after which failures of that class propagate
// unrecovered until the process restarts.
type Recoverer struct {
	mu     sync.Mutex
	budget int
	used   int
}

// NewRecoverer creates a Recoverer allowing maxAttempts recoveries over the
// instance lifetime. maxAttempts <= 0 disables recovery entirely.
func NewRecoverer(maxAttempts int) *Recoverer {
	return &Recoverer{budget: maxAttempts}
}

// ShouldFallback reports whether err is the kind of failure a fallback
// utterance may absorb: a recoverable external-service failure in the
// transcription, agent, or synthesis phase. Pipeline-level conditions
// (admission rejection, invalid state, cancellation, exhaustion) and local
// validation failures are never fallback-eligible.
func (r *Recoverer) ShouldFallback(err *Error) bool {
	if err == nil || !err.Recoverable {
		return false
	}
	switch err.Phase() {
	case PhaseSTT, PhaseAgent, PhaseTTS:
		return true
	default:
		return false
	}
}

// TryAcquire consumes one recovery attempt from the budget. It returns
// false once the budget is exhausted; the caller must then let the error
// propagate.
func (r *Recoverer) TryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.used >= r.budget {
		return false
	}
	r.used++
	return true
}

// Used returns the number of recovery attempts consumed so far.
func (r *Recoverer) Used() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.used
}

// Remaining returns the recovery attempts left in the budget.
func (r *Recoverer) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := r.budget - r.used; n > 0 {
		return n
	}
	return 0
}

// Backoff returns the suggested wait before retry number attempt (0-based),
// doubling from backoffBase and capped at backoffMax.
func Backoff(attempt int) time.Duration {
	d := backoffBase
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= backoffMax {
			return backoffMax
		}
	}
	return d
}
