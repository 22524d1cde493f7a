package voice

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/voxloop/voxloop/pkg/audio"
)

// SessionStatus is the lifecycle state of a VoiceSession.
type SessionStatus int

const (
	// StatusActive means the session accepts new requests.
	StatusActive SessionStatus = iota

	// StatusProcessing means a request is in flight.
	StatusProcessing

	// StatusIdle means the session has seen no activity recently but has
	// not yet been swept.
	StatusIdle

	// StatusError means the last request ended in an unrecovered error.
	// The session still accepts new requests.
	StatusError

	// StatusEnded is terminal; the session is being removed.
	StatusEnded
)

// String returns the human-readable name of the status.
func (s SessionStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusProcessing:
		return "processing"
	case StatusIdle:
		return "idle"
	case StatusError:
		return "error"
	case StatusEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// RequestStatus is the phase state of one utterance-to-response cycle.
type RequestStatus int

const (
	RequestReceiving RequestStatus = iota
	RequestTranscribing
	RequestProcessing
	RequestSynthesizing
	RequestPlaying
	RequestCompleted
	RequestRecovered
	RequestError
)

// String returns the human-readable name of the status.
func (s RequestStatus) String() string {
	switch s {
	case RequestReceiving:
		return "receiving"
	case RequestTranscribing:
		return "transcribing"
	case RequestProcessing:
		return "processing"
	case RequestSynthesizing:
		return "synthesizing"
	case RequestPlaying:
		return "playing"
	case RequestCompleted:
		return "completed"
	case RequestRecovered:
		return "recovered"
	case RequestError:
		return "error"
	default:
		return "unknown"
	}
}

// Request is one utterance-to-response cycle within a session. It never
// outlives its session.
type Request struct {
	// ID is a unique request identifier.
	ID string

	// Status is the current (or terminal) phase.
	Status RequestStatus

	// Transcript is the recognised text, once transcription succeeds.
	Transcript string

	// Reply is the agent's text, once response generation succeeds.
	Reply string

	// Err is the terminal error for Status == RequestError.
	Err *Error

	// StartedAt and FinishedAt bound the request's lifetime.
	StartedAt  time.Time
	FinishedAt time.Time

	// cancel aborts the request's external calls. Cooperative: an
	// in-flight call still resolves, but its result is discarded.
	cancel context.CancelFunc

	// reqCtx scopes the request's external calls.
	reqCtx context.Context
}

// ctx returns the request-scoped context, or Background for requests built
// without one (tests).
func (r *Request) ctx() context.Context {
	if r.reqCtx != nil {
		return r.reqCtx
	}
	return context.Background()
}

// newRequestID mints a request identifier.
func newRequestID() string {
	return uuid.NewString()
}

// Session is one conversational context for one user in one channel. It is
// owned exclusively by the pipeline; callers read sessions through the
// pipeline's snapshot accessors.
type Session struct {
	// ID is a unique session identifier.
	ID string

	// UserID and ChannelID identify who and where.
	UserID    string
	ChannelID string

	// Status is the session lifecycle state.
	Status SessionStatus

	// CreatedAt and LastActivity bound the idle sweep.
	CreatedAt    time.Time
	LastActivity time.Time

	// Handler is the session's own audio path. Never shared.
	Handler *audio.Handler

	// InFlight is the current request, or nil.
	InFlight *Request

	// Metrics accumulates per-session counters.
	Metrics SessionMetrics
}

// newSession creates an active session with a freshly initialized handler.
func newSession(userID, channelID string, handler *audio.Handler, now time.Time) *Session {
	return &Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		ChannelID:    channelID,
		Status:       StatusActive,
		CreatedAt:    now,
		LastActivity: now,
		Handler:      handler,
	}
}

// SessionInfo is a read-only snapshot of a session for callers outside the
// pipeline.
type SessionInfo struct {
	ID           string
	UserID       string
	ChannelID    string
	Status       SessionStatus
	CreatedAt    time.Time
	LastActivity time.Time
	Metrics      SessionMetrics
}

// info snapshots the session. Caller holds the pipeline mutex.
func (s *Session) info() SessionInfo {
	return SessionInfo{
		ID:           s.ID,
		UserID:       s.UserID,
		ChannelID:    s.ChannelID,
		Status:       s.Status,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
		Metrics:      s.Metrics,
	}
}
