package voice

import (
	"errors"
	"testing"
	"time"
)

func TestPhaseOf_RangeLookup(t *testing.T) {
	cases := []struct {
		code int
		want Phase
	}{
		{1001, PhaseAudio},
		{1999, PhaseAudio},
		{CodeTranscriptionFailed, PhaseSTT},
		{CodeNoSpeech, PhaseSTT},
		{CodeSynthesisFailed, PhaseTTS},
		{CodeTextTooLong, PhaseTTS},
		{CodeAgentFailed, PhaseAgent},
		{CodeConcurrencyLimit, PhasePipeline},
		{CodeCancelled, PhasePipeline},
		{999, PhaseUnknown},
		{6000, PhaseUnknown},
	}
	for _, c := range cases {
		if got := PhaseOf(c.code); got != c.want {
			t.Errorf("PhaseOf(%d) = %s, want %s", c.code, got, c.want)
		}
	}
}

func TestError_UnwrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	e := newError(CodeTranscriptionFailed, "transcription failed", cause)

	if !errors.Is(e, cause) {
		t.Error("errors.Is should reach the cause through Unwrap")
	}
	var verr *Error
	if !errors.As(error(e), &verr) || verr.Code != CodeTranscriptionFailed {
		t.Error("errors.As should recover the *Error")
	}
}

func TestNewError_NoSpeechDistinctFromFailure(t *testing.T) {
	noSpeech := newError(CodeNoSpeech, "silence", nil)
	failed := newError(CodeTranscriptionFailed, "api down", nil)

	if noSpeech.Code == failed.Code {
		t.Fatal("no-speech and transcription-failure must carry distinct codes")
	}
	if noSpeech.UserMessage == failed.UserMessage {
		t.Error("no-speech should prompt the user differently from a service failure")
	}
	if !noSpeech.Recoverable || !failed.Recoverable {
		t.Error("both STT conditions should be fallback-eligible")
	}
}

func TestNewError_PipelineCodesNotRecoverable(t *testing.T) {
	for _, code := range []int{CodeConcurrencyLimit, CodeInvalidState, CodeRecoveryExhausted, CodeSessionNotFound} {
		if e := newError(code, "x", nil); e.Recoverable {
			t.Errorf("code %d should not be recoverable", code)
		}
	}
}

func TestRecoverer_BudgetIsLifetime(t *testing.T) {
	r := NewRecoverer(2)

	if !r.TryAcquire() || !r.TryAcquire() {
		t.Fatal("first two acquires should succeed")
	}
	if r.TryAcquire() {
		t.Error("third acquire should fail, budget is exhausted")
	}
	if r.Used() != 2 || r.Remaining() != 0 {
		t.Errorf("used/remaining = %d/%d, want 2/0", r.Used(), r.Remaining())
	}
}

func TestRecoverer_ShouldFallbackEligibility(t *testing.T) {
	r := NewRecoverer(1)

	if !r.ShouldFallback(newError(CodeTranscriptionFailed, "x", nil)) {
		t.Error("recoverable STT failure should be fallback-eligible")
	}
	if !r.ShouldFallback(newError(CodeAgentTimeout, "x", nil)) {
		t.Error("agent timeout should be fallback-eligible")
	}
	if r.ShouldFallback(newError(CodeConcurrencyLimit, "x", nil)) {
		t.Error("admission rejection must never be recovered")
	}
	if r.ShouldFallback(newError(CodeTextTooLong, "x", nil)) {
		t.Error("local validation failure must not be recovered")
	}
	if r.ShouldFallback(nil) {
		t.Error("nil error is not fallback-eligible")
	}
}

func TestBackoff_DoublesAndCaps(t *testing.T) {
	if Backoff(0) != 500*time.Millisecond {
		t.Errorf("Backoff(0) = %v, want 500ms", Backoff(0))
	}
	if Backoff(1) != time.Second {
		t.Errorf("Backoff(1) = %v, want 1s", Backoff(1))
	}
	if Backoff(20) != 8*time.Second {
		t.Errorf("Backoff(20) = %v, want capped 8s", Backoff(20))
	}
}

func TestFallbackUtterance_PerPhase(t *testing.T) {
	if got := fallbackUtterance(newError(CodeNoSpeech, "x", nil)); got != fallbackNoSpeech {
		t.Errorf("no-speech fallback = %q, want the repeat prompt", got)
	}
	if got := fallbackUtterance(newError(CodeTranscriptionFailed, "x", nil)); got != fallbackSTT {
		t.Errorf("stt fallback = %q", got)
	}
	if fallbackUtterance(newError(CodeNoSpeech, "x", nil)) == fallbackUtterance(newError(CodeTranscriptionFailed, "x", nil)) {
		t.Error("no-speech and service-failure fallbacks must differ")
	}
	if got := fallbackUtterance(newError(CodeAgentFailed, "x", nil)); got != fallbackAgent {
		t.Errorf("agent fallback = %q", got)
	}
	if got := fallbackUtterance(newError(CodeSynthesisFailed, "x", nil)); got != fallbackTTS {
		t.Errorf("tts fallback = %q", got)
	}
}
