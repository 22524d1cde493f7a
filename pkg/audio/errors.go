package audio

import (
	"fmt"
	"time"
)

// Stream error codes occupy the 1000–1999 range of the pipeline error
// taxonomy; the range alone identifies the audio phase.
const (
	CodeNotInitialized     = 1001
	CodeAlreadyInitialized = 1002
	CodeInvalidFrameSize   = 1003
	CodeEncodeFailed       = 1004
	CodeDecodeFailed       = 1005
	CodePlaybackInactive   = 1006
)

// StreamError is the structured error produced by every [Handler] failure.
// It is stored as the handler's last error and broadcast to registered
// callbacks before being returned to the caller.
type StreamError struct {
	Code        int
	Message     string
	Timestamp   time.Time
	Recoverable bool
	Retries     int
	cause       error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("audio: [%d] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("audio: [%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *StreamError) Unwrap() error {
	return e.cause
}
