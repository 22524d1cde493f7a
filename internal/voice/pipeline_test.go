package voice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/voxloop/voxloop/pkg/audio"
	audiomock "github.com/voxloop/voxloop/pkg/audio/mock"
	"github.com/voxloop/voxloop/pkg/provider/agent"
	agentmock "github.com/voxloop/voxloop/pkg/provider/agent/mock"
	"github.com/voxloop/voxloop/pkg/provider/stt"
	sttmock "github.com/voxloop/voxloop/pkg/provider/stt/mock"
	"github.com/voxloop/voxloop/pkg/provider/tts"
	ttsmock "github.com/voxloop/voxloop/pkg/provider/tts/mock"
)

// testFormat keeps frames tiny: 1 kHz mono at 20 ms = 20 samples per frame.
var testFormat = audio.Config{
	SampleRate:    1000,
	Channels:      1,
	FrameDuration: 20 * time.Millisecond,
}

type testDeps struct {
	stt   *sttmock.Provider
	tts   *ttsmock.Provider
	agent *agentmock.Provider
}

// newTestDeps returns mocks scripted for a full happy-path request.
func newTestDeps() *testDeps {
	return &testDeps{
		stt: &sttmock.Provider{
			Transcripts: []stt.Transcript{{Text: "what time is it", Confidence: 0.93}},
		},
		tts: &ttsmock.Provider{
			Result: tts.Synthesis{
				PCM:        make([]int16, 50),
				SampleRate: testFormat.SampleRate,
				Channels:   1,
				Duration:   50 * time.Millisecond,
			},
		},
		agent: &agentmock.Provider{
			Replies: []agent.Reply{{Text: "It is three o'clock."}},
		},
	}
}

func newTestPipeline(t *testing.T, cfg Config, d *testDeps, opts ...Option) *Pipeline {
	t.Helper()
	if cfg.AudioFormat.SampleRate == 0 {
		cfg.AudioFormat = testFormat
	}
	if cfg.CodecFactory == nil {
		cfg.CodecFactory = func() (audio.Codec, error) {
			return &audiomock.Codec{Format: testFormat}, nil
		}
	}
	p, err := New(cfg, d.stt, d.tts, d.agent, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

// utterance builds captured frames carrying non-silent PCM.
func utterance(frames int) []audio.Frame {
	out := make([]audio.Frame, frames)
	for i := range out {
		pcm := make([]int16, testFormat.SamplesPerFrame())
		for j := range pcm {
			pcm[j] = 1000
		}
		out[i] = audio.Frame{PCM: pcm, Sequence: uint16(i)}
	}
	return out
}

func asVoiceError(t *testing.T, err error) *Error {
	t.Helper()
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("error %v is not a *voice.Error", err)
	}
	return verr
}

// blockingAgent blocks Respond until released, so tests can hold a request
// in flight deterministically.
type blockingAgent struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingAgent() *blockingAgent {
	return &blockingAgent{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (b *blockingAgent) Respond(ctx context.Context, text string, _ agent.Identity) (agent.Reply, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
		return agent.Reply{Text: "late reply"}, nil
	case <-ctx.Done():
		return agent.Reply{}, ctx.Err()
	}
}

// --- admission control ---------------------------------------------------

func TestStartSession_ConcurrencyCeiling(t *testing.T) {
	d := newTestDeps()
	p := newTestPipeline(t, Config{MaxConcurrentSessions: 1}, d)
	ctx := context.Background()

	if _, err := p.StartSession(ctx, "u1", "c1"); err != nil {
		t.Fatalf("StartSession(u1): %v", err)
	}

	_, err := p.StartSession(ctx, "u2", "c1")
	if err == nil {
		t.Fatal("second session should be rejected at ceiling 1")
	}
	verr := asVoiceError(t, err)
	if verr.Code != CodeConcurrencyLimit {
		t.Errorf("code = %d, want CodeConcurrencyLimit", verr.Code)
	}
	if _, ok := p.Session("u2"); ok {
		t.Error("rejected start must not create a session as a side effect")
	}
	if hits := p.Metrics().ConcurrencyLimitHits; hits != 1 {
		t.Errorf("ConcurrencyLimitHits = %d, want 1", hits)
	}

	// Releasing the slot lets the rejected user in.
	if err := p.EndSession("u1"); err != nil {
		t.Fatalf("EndSession(u1): %v", err)
	}
	if _, err := p.StartSession(ctx, "u2", "c1"); err != nil {
		t.Errorf("StartSession(u2) after slot freed: %v", err)
	}
}

func TestStartSession_DuplicateUserRejected(t *testing.T) {
	d := newTestDeps()
	p := newTestPipeline(t, Config{}, d)
	ctx := context.Background()

	if _, err := p.StartSession(ctx, "u1", "c1"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	_, err := p.StartSession(ctx, "u1", "c1")
	if verr := asVoiceError(t, err); verr.Code != CodeInvalidState {
		t.Errorf("code = %d, want CodeInvalidState for duplicate user", verr.Code)
	}
}

func TestEndSession_Idempotent(t *testing.T) {
	d := newTestDeps()
	p := newTestPipeline(t, Config{}, d)

	if err := p.EndSession("unknown"); err != nil {
		t.Errorf("EndSession on unknown user = %v, want nil", err)
	}
	_, _ = p.StartSession(context.Background(), "u1", "c1")
	if err := p.EndSession("u1"); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if err := p.EndSession("u1"); err != nil {
		t.Errorf("second EndSession = %v, want nil", err)
	}
}

// --- request cycle -------------------------------------------------------

func TestProcessVoiceCommand_HappyPath(t *testing.T) {
	d := newTestDeps()
	p := newTestPipeline(t, Config{}, d)
	ctx := context.Background()

	_, _ = p.StartSession(ctx, "u1", "c1")
	res, err := p.ProcessVoiceCommand(ctx, "u1", utterance(5))
	if err != nil {
		t.Fatalf("ProcessVoiceCommand: %v", err)
	}
	if res.Transcript != "what time is it" {
		t.Errorf("Transcript = %q", res.Transcript)
	}
	if res.Reply != "It is three o'clock." {
		t.Errorf("Reply = %q", res.Reply)
	}
	if res.Recovered {
		t.Error("happy path must not be marked recovered")
	}

	info, _ := p.Session("u1")
	if info.Status != StatusActive {
		t.Errorf("session status = %s, want active after completion", info.Status)
	}
	if info.Metrics.TotalRequests != 1 || info.Metrics.SuccessfulRequests != 1 {
		t.Errorf("session metrics = %+v, want one successful request", info.Metrics)
	}
	if info.Metrics.FramesProcessed != 5 {
		t.Errorf("FramesProcessed = %d, want 5", info.Metrics.FramesProcessed)
	}

	// The reply was chunked onto the session handler's playback queue.
	if got := d.tts.SynthesizeCalls; len(got) != 1 || got[0].Text != "It is three o'clock." {
		t.Errorf("tts calls = %+v, want the agent reply", got)
	}
}

func TestProcessVoiceCommand_UnknownSession(t *testing.T) {
	d := newTestDeps()
	p := newTestPipeline(t, Config{}, d)

	_, err := p.ProcessVoiceCommand(context.Background(), "ghost", utterance(1))
	if verr := asVoiceError(t, err); verr.Code != CodeSessionNotFound {
		t.Errorf("code = %d, want CodeSessionNotFound", verr.Code)
	}
}

func TestProcessVoiceCommand_RejectsWhileProcessing(t *testing.T) {
	d := newTestDeps()
	blocking := newBlockingAgent()
	cfg := Config{AudioFormat: testFormat, CodecFactory: func() (audio.Codec, error) {
		return &audiomock.Codec{Format: testFormat}, nil
	}}
	p, err := New(cfg, d.stt, d.tts, blocking)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	_, _ = p.StartSession(ctx, "u1", "c1")

	done := make(chan error, 1)
	go func() {
		_, err := p.ProcessVoiceCommand(ctx, "u1", utterance(1))
		done <- err
	}()
	<-blocking.started

	// Session is processing; a concurrent request is an invalid-state
	// condition, distinct from admission rejection.
	_, err = p.ProcessVoiceCommand(ctx, "u1", utterance(1))
	if verr := asVoiceError(t, err); verr.Code != CodeInvalidState {
		t.Errorf("code = %d, want CodeInvalidState", verr.Code)
	}

	close(blocking.release)
	if err := <-done; err != nil {
		t.Errorf("first request should complete: %v", err)
	}
}

// --- failure and recovery ------------------------------------------------

func TestTranscriptionFailure_FallbackEnabled(t *testing.T) {
	d := newTestDeps()
	d.stt.Err = errors.New("stt api unreachable")
	p := newTestPipeline(t, Config{RecoveryEnabled: true}, d)
	ctx := context.Background()

	_, _ = p.StartSession(ctx, "u1", "c1")
	res, err := p.ProcessVoiceCommand(ctx, "u1", utterance(3))
	if err != nil {
		t.Fatalf("recovery enabled: call must resolve without error, got %v", err)
	}
	if !res.Recovered {
		t.Error("result should be marked recovered")
	}
	if res.Reply != fallbackSTT {
		t.Errorf("Reply = %q, want the stt fallback utterance", res.Reply)
	}

	info, _ := p.Session("u1")
	if info.Metrics.FailedRequests != 0 {
		t.Errorf("FailedRequests = %d, want 0 after recovery", info.Metrics.FailedRequests)
	}
	if info.Metrics.RecoveredRequests != 1 {
		t.Errorf("RecoveredRequests = %d, want 1", info.Metrics.RecoveredRequests)
	}
	// The fallback utterance went through synthesis.
	if calls := d.tts.SynthesizeCalls; len(calls) != 1 || calls[0].Text != fallbackSTT {
		t.Errorf("tts calls = %+v, want one fallback synthesis", calls)
	}
	// And never reached the agent.
	if len(d.agent.RespondCalls) != 0 {
		t.Error("agent must not be called when transcription failed")
	}
}

func TestTranscriptionFailure_FallbackDisabled(t *testing.T) {
	d := newTestDeps()
	d.stt.Err = errors.New("stt api unreachable")
	p := newTestPipeline(t, Config{RecoveryEnabled: false}, d)
	ctx := context.Background()

	_, _ = p.StartSession(ctx, "u1", "c1")
	_, err := p.ProcessVoiceCommand(ctx, "u1", utterance(3))
	if err == nil {
		t.Fatal("fallback disabled: the error must propagate")
	}
	verr := asVoiceError(t, err)
	if verr.Phase() != PhaseSTT {
		t.Errorf("phase = %s, want stt", verr.Phase())
	}
	if verr.SessionID == "" || verr.UserID != "u1" {
		t.Error("propagated error should carry session and user context")
	}

	info, _ := p.Session("u1")
	if info.Metrics.FailedRequests != 1 {
		t.Errorf("FailedRequests = %d, want 1", info.Metrics.FailedRequests)
	}
	if m := p.Metrics(); m.FailedRequests != 1 || m.ErrorRate != 1 {
		t.Errorf("pipeline metrics = %+v, want one failed request", m)
	}
}

func TestPropagatedFailure_SuggestsRetryBackoff(t *testing.T) {
	d := newTestDeps()
	d.stt.Err = errors.New("stt api unreachable")
	p := newTestPipeline(t, Config{RecoveryEnabled: false}, d)
	ctx := context.Background()

	_, _ = p.StartSession(ctx, "u1", "c1")

	// The suggested wait doubles with each prior failure of the session.
	_, err := p.ProcessVoiceCommand(ctx, "u1", utterance(1))
	if got := asVoiceError(t, err).RetryAfter; got != Backoff(0) {
		t.Errorf("first failure RetryAfter = %v, want %v", got, Backoff(0))
	}
	_, err = p.ProcessVoiceCommand(ctx, "u1", utterance(1))
	if got := asVoiceError(t, err).RetryAfter; got != Backoff(1) {
		t.Errorf("second failure RetryAfter = %v, want %v", got, Backoff(1))
	}
}

func TestNoSpeech_GetsDistinctFallback(t *testing.T) {
	d := newTestDeps()
	d.stt.Err = stt.ErrNoSpeech
	p := newTestPipeline(t, Config{RecoveryEnabled: true}, d)
	ctx := context.Background()

	_, _ = p.StartSession(ctx, "u1", "c1")
	res, err := p.ProcessVoiceCommand(ctx, "u1", utterance(1))
	if err != nil {
		t.Fatalf("ProcessVoiceCommand: %v", err)
	}
	if res.Reply != fallbackNoSpeech {
		t.Errorf("Reply = %q, want the no-speech prompt, not the service apology", res.Reply)
	}
}

func TestRecoveryBudget_IsPipelineLifetime(t *testing.T) {
	d := newTestDeps()
	d.stt.Err = errors.New("stt flapping")
	p := newTestPipeline(t, Config{RecoveryEnabled: true, MaxRecoveryAttempts: 1}, d)
	ctx := context.Background()

	_, _ = p.StartSession(ctx, "u1", "c1")

	// First failure is absorbed.
	if _, err := p.ProcessVoiceCommand(ctx, "u1", utterance(1)); err != nil {
		t.Fatalf("first failure should be recovered: %v", err)
	}
	// The budget is spent for the pipeline's lifetime: the second failure
	// of the same class propagates.
	_, err := p.ProcessVoiceCommand(ctx, "u1", utterance(1))
	if err == nil {
		t.Fatal("second failure should propagate after budget exhaustion")
	}
	if verr := asVoiceError(t, err); verr.Phase() != PhaseSTT {
		t.Errorf("phase = %s, want stt", verr.Phase())
	}
	if m := p.Metrics(); m.RecoveredRequests != 1 || m.FailedRequests != 1 {
		t.Errorf("pipeline metrics = %+v, want 1 recovered + 1 failed", m)
	}
}

func TestAgentFailure_MapsToAgentPhase(t *testing.T) {
	d := newTestDeps()
	d.agent.Replies = nil
	d.agent.Err = errors.New("llm backend down")
	p := newTestPipeline(t, Config{}, d)
	ctx := context.Background()

	_, _ = p.StartSession(ctx, "u1", "c1")
	_, err := p.ProcessVoiceCommand(ctx, "u1", utterance(1))
	if verr := asVoiceError(t, err); verr.Phase() != PhaseAgent {
		t.Errorf("phase = %s, want agent", verr.Phase())
	}
}

func TestSynthesisValidation_NotRecovered(t *testing.T) {
	d := newTestDeps()
	d.agent.Replies = []agent.Reply{{Text: "   "}} // blank reply trips tts validation
	p := newTestPipeline(t, Config{RecoveryEnabled: true}, d)
	ctx := context.Background()

	_, _ = p.StartSession(ctx, "u1", "c1")
	_, err := p.ProcessVoiceCommand(ctx, "u1", utterance(1))
	if err == nil {
		t.Fatal("local validation failure must propagate even with recovery on")
	}
	if verr := asVoiceError(t, err); verr.Code != CodeEmptyText {
		t.Errorf("code = %d, want CodeEmptyText", verr.Code)
	}
}

// --- cancellation and sweep ----------------------------------------------

func TestEndSession_CancelsInFlightRequest(t *testing.T) {
	d := newTestDeps()
	blocking := newBlockingAgent()
	cfg := Config{AudioFormat: testFormat, CodecFactory: func() (audio.Codec, error) {
		return &audiomock.Codec{Format: testFormat}, nil
	}}
	p, err := New(cfg, d.stt, d.tts, blocking)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	_, _ = p.StartSession(ctx, "u1", "c1")

	done := make(chan error, 1)
	go func() {
		_, err := p.ProcessVoiceCommand(ctx, "u1", utterance(1))
		done <- err
	}()
	<-blocking.started

	if err := p.EndSession("u1"); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	// The in-flight call resolves as a no-op: its terminal status is
	// error, never completed.
	reqErr := <-done
	if reqErr == nil {
		t.Fatal("cancelled request must not complete")
	}
	if verr := asVoiceError(t, reqErr); verr.Code != CodeCancelled {
		t.Errorf("code = %d, want CodeCancelled", verr.Code)
	}
	if _, ok := p.Session("u1"); ok {
		t.Error("session should be removed")
	}
}

func TestEndSessionRace_CompletedRequestKeepsCancelledOutcome(t *testing.T) {
	d := newTestDeps()
	p := newTestPipeline(t, Config{}, d)
	ctx := context.Background()
	_, _ = p.StartSession(ctx, "u1", "c1")

	sess, req, err := p.admitRequest(ctx, "u1")
	if err != nil {
		t.Fatalf("admitRequest: %v", err)
	}
	started := p.now()

	// Session end lands in the window between the last cancellation check
	// and the completion bookkeeping.
	if err := p.EndSession("u1"); err != nil {
		t.Fatalf("EndSession: %v", err)
	}

	res, finErr := p.finishCompleted(ctx, sess, req, started)
	if finErr == nil {
		t.Fatal("cancelled request must not complete")
	}
	if verr := asVoiceError(t, finErr); verr.Code != CodeCancelled {
		t.Errorf("code = %d, want CodeCancelled", verr.Code)
	}
	if res != (Result{}) {
		t.Errorf("result = %+v, want zero", res)
	}
	if req.Status != RequestError {
		t.Errorf("request status = %v, want RequestError", req.Status)
	}
	m := p.Metrics()
	if m.TotalRequests != 1 {
		t.Errorf("TotalRequests = %d, want 1 (no double count)", m.TotalRequests)
	}
	if m.FailedRequests != 1 {
		t.Errorf("FailedRequests = %d, want 1", m.FailedRequests)
	}
}

func TestRecover_SkipsCancelledRequest(t *testing.T) {
	d := newTestDeps()
	p := newTestPipeline(t, Config{RecoveryEnabled: true, MaxRecoveryAttempts: 3}, d)
	ctx := context.Background()
	_, _ = p.StartSession(ctx, "u1", "c1")

	sess, req, err := p.admitRequest(ctx, "u1")
	if err != nil {
		t.Fatalf("admitRequest: %v", err)
	}
	cancelErr := &Error{Code: CodeCancelled, Message: "session ended with request in flight"}
	p.mu.Lock()
	req.Status = RequestError
	req.Err = cancelErr
	p.mu.Unlock()

	verr := newError(CodeTranscriptionFailed, "transcription failed", nil)
	if _, ok := p.recover(ctx, sess, req, verr, p.now()); ok {
		t.Fatal("recover must not override a cancelled request")
	}
	if req.Status != RequestError || req.Err != cancelErr {
		t.Errorf("request = (%v, %v), want cancelled outcome untouched", req.Status, req.Err)
	}
	if m := p.Metrics(); m.RecoveredRequests != 0 {
		t.Errorf("RecoveredRequests = %d, want 0", m.RecoveredRequests)
	}
}

func TestSweep_EndsIdleSessions(t *testing.T) {
	d := newTestDeps()
	now := time.Now()
	p := newTestPipeline(t, Config{SessionTimeout: time.Minute}, d, WithClock(func() time.Time { return now }))

	_, _ = p.StartSession(context.Background(), "u1", "c1")

	// Half the timeout: marked idle, still present.
	now = now.Add(31 * time.Second)
	p.Sweep()
	info, ok := p.Session("u1")
	if !ok || info.Status != StatusIdle {
		t.Fatalf("session = (%+v, %v), want present and idle", info, ok)
	}

	// Past the timeout: ended and removed.
	now = now.Add(30 * time.Second)
	p.Sweep()
	if _, ok := p.Session("u1"); ok {
		t.Error("session should be swept after the idle timeout")
	}
}

func TestMetrics_RecoveryRate(t *testing.T) {
	d := newTestDeps()
	d.stt.Err = errors.New("stt down")
	p := newTestPipeline(t, Config{RecoveryEnabled: true, MaxRecoveryAttempts: 1}, d)
	ctx := context.Background()

	_, _ = p.StartSession(ctx, "u1", "c1")
	_, _ = p.ProcessVoiceCommand(ctx, "u1", utterance(1)) // recovered
	_, _ = p.ProcessVoiceCommand(ctx, "u1", utterance(1)) // failed

	m := p.Metrics()
	if m.TotalRequests != 2 {
		t.Errorf("TotalRequests = %d, want 2", m.TotalRequests)
	}
	if m.RecoveryRate != 0.5 {
		t.Errorf("RecoveryRate = %v, want 0.5", m.RecoveryRate)
	}
	if m.ErrorRate != 0.5 {
		t.Errorf("ErrorRate = %v, want 0.5", m.ErrorRate)
	}
	if m.HeapBytes == 0 {
		t.Error("HeapBytes should be populated")
	}
}
