package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/voxloop/voxloop/internal/observe"
	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/provider/agent"
	"github.com/voxloop/voxloop/pkg/provider/stt"
	"github.com/voxloop/voxloop/pkg/provider/tts"
)

// Config configures a Pipeline.
type Config struct {
	// MaxConcurrentSessions is the admission ceiling. Default: 10.
	MaxConcurrentSessions int

	// SessionTimeout ends sessions idle longer than this. Default: 5m.
	SessionTimeout time.Duration

	// SweepInterval is the idle-sweep period for Run. Default: 30s.
	SweepInterval time.Duration

	// RecoveryEnabled turns fallback recovery on.
	RecoveryEnabled bool

	// MaxRecoveryAttempts caps recoveries over the pipeline's lifetime,
	// not per request. Default: 10.
	MaxRecoveryAttempts int

	// Language is the transcription language hint (BCP-47).
	Language string

	// Voice is the synthesis voice for replies and fallbacks.
	Voice tts.VoiceProfile

	// Identity shapes the agent's replies.
	Identity agent.Identity

	// AudioFormat is the process-wide stream format. Zero value falls
	// back to audio.DefaultConfig.
	AudioFormat audio.Config

	// RingCapacity is the capture ring size per session, in frames.
	RingCapacity int

	// Jitter tunes each session's jitter buffer.
	Jitter audio.JitterConfig

	// CodecFactory builds one codec per session. Required.
	CodecFactory audio.CodecFactory
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	if c.MaxConcurrentSessions <= 0 {
		c.MaxConcurrentSessions = 10
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = 5 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 30 * time.Second
	}
	if c.MaxRecoveryAttempts <= 0 {
		c.MaxRecoveryAttempts = 10
	}
	if c.AudioFormat.SampleRate == 0 {
		c.AudioFormat = audio.DefaultConfig
	}
	return c
}

// Result is the outcome of one processed voice command.
type Result struct {
	// RequestID identifies the request for log correlation.
	RequestID string

	// Transcript is the recognised user utterance. Empty when recovery
	// absorbed a transcription failure.
	Transcript string

	// Reply is the text that was spoken back, either the agent's reply or
	// a fallback utterance.
	Reply string

	// Recovered is true when a fallback utterance replaced real output.
	Recovered bool

	// Duration is the end-to-end request latency.
	Duration time.Duration
}

// Option configures optional Pipeline collaborators.
type Option func(*Pipeline)

// WithMetrics attaches OTel instruments. Without it the pipeline only
// keeps its own counters.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Pipeline) {
		p.obs = m
	}
}

// WithClock replaces the time source. Tests use it to drive the idle
// sweep deterministically.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// Pipeline orchestrates per-user voice sessions end-to-end: admission
// control, the receive/transcribe/respond/synthesize/play request cycle,
// fallback recovery, the idle sweep, and metrics.
//
// All exported methods are safe for concurrent use. One mutex guards the
// session map so the admission check-then-register is a single atomic
// step; external-service calls run outside the lock.
type Pipeline struct {
	cfg       Config
	sttP      stt.Provider
	ttsP      tts.Provider
	agentP    agent.Provider
	recoverer *Recoverer
	obs       *observe.Metrics
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	counters pipelineCounters
}

// New creates a Pipeline with the given collaborators.
func New(cfg Config, sttP stt.Provider, ttsP tts.Provider, agentP agent.Provider, opts ...Option) (*Pipeline, error) {
	if sttP == nil || ttsP == nil || agentP == nil {
		return nil, errors.New("voice: stt, tts, and agent providers are all required")
	}
	cfg = cfg.withDefaults()
	if cfg.CodecFactory == nil {
		return nil, errors.New("voice: CodecFactory is required")
	}
	p := &Pipeline{
		cfg:       cfg,
		sttP:      sttP,
		ttsP:      ttsP,
		agentP:    agentP,
		recoverer: NewRecoverer(cfg.MaxRecoveryAttempts),
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartSession admits a new session for userID in channelID. At the
// concurrency ceiling it fails with CodeConcurrencyLimit and creates
// nothing; the check and the registration happen under one lock so the
// ceiling holds under concurrent starts.
func (p *Pipeline) StartSession(ctx context.Context, userID, channelID string) (SessionInfo, error) {
	if err := ctx.Err(); err != nil {
		return SessionInfo{}, fmt.Errorf("voice: start session: %w", err)
	}

	p.mu.Lock()
	if _, ok := p.sessions[userID]; ok {
		p.mu.Unlock()
		e := newError(CodeInvalidState, "session already exists for user "+userID, nil)
		e.UserID = userID
		return SessionInfo{}, e
	}
	if len(p.sessions) >= p.cfg.MaxConcurrentSessions {
		p.counters.concurrencyLimitHits++
		p.mu.Unlock()
		if p.obs != nil {
			p.obs.AdmissionRejects.Add(ctx, 1)
		}
		e := newError(CodeConcurrencyLimit,
			fmt.Sprintf("session ceiling %d reached", p.cfg.MaxConcurrentSessions), nil)
		e.UserID = userID
		return SessionInfo{}, e
	}
	// Hold the slot; handler construction happens outside the lock.
	p.sessions[userID] = nil
	p.mu.Unlock()

	codec, err := p.cfg.CodecFactory()
	if err != nil {
		p.releaseSlot(userID)
		return SessionInfo{}, fmt.Errorf("voice: create codec: %w", err)
	}
	handler := audio.NewHandler(codec, audio.HandlerConfig{
		Format:       p.cfg.AudioFormat,
		RingCapacity: p.cfg.RingCapacity,
		Jitter:       p.cfg.Jitter,
	})
	if err := handler.Initialize(); err != nil {
		p.releaseSlot(userID)
		return SessionInfo{}, fmt.Errorf("voice: initialize audio handler: %w", err)
	}

	sess := newSession(userID, channelID, handler, p.now())

	p.mu.Lock()
	p.sessions[userID] = sess
	p.counters.totalSessions++
	info := sess.info()
	p.mu.Unlock()

	if p.obs != nil {
		p.obs.ActiveSessions.Add(ctx, 1)
	}
	slog.Info("voice: session started",
		"session", sess.ID, "user", userID, "channel", channelID)
	return info, nil
}

// releaseSlot removes a placeholder registration after a failed start.
func (p *Pipeline) releaseSlot(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.sessions[userID]; ok && s == nil {
		delete(p.sessions, userID)
	}
}

// EndSession ends userID's session. It is idempotent: ending an unknown or
// already-ended session returns nil. An in-flight request is cancelled
// cooperatively and left in terminal status "error".
func (p *Pipeline) EndSession(userID string) error {
	p.mu.Lock()
	sess, ok := p.sessions[userID]
	if !ok || sess == nil {
		p.mu.Unlock()
		return nil
	}
	delete(p.sessions, userID)
	p.endLocked(sess)
	p.mu.Unlock()

	if p.obs != nil {
		p.obs.ActiveSessions.Add(context.Background(), -1)
	}
	slog.Info("voice: session ended", "session", sess.ID, "user", userID)
	return nil
}

// endLocked transitions sess to ended, cancelling any in-flight request.
// Caller holds p.mu and has removed sess from the map.
func (p *Pipeline) endLocked(sess *Session) {
	if req := sess.InFlight; req != nil && !terminal(req.Status) {
		req.Status = RequestError
		req.Err = &Error{
			Code:        CodeCancelled,
			Message:     "session ended with request in flight",
			UserMessage: "That request was cancelled.",
			SessionID:   sess.ID,
			UserID:      sess.UserID,
		}
		req.FinishedAt = p.now()
		if req.cancel != nil {
			req.cancel()
		}
		sess.Metrics.TotalRequests++
		sess.Metrics.FailedRequests++
		p.counters.totalRequests++
		p.counters.failedRequests++
	}
	sess.Status = StatusEnded
	sess.Handler.Shutdown()
}

// Session returns a snapshot of userID's session.
func (p *Pipeline) Session(userID string) (SessionInfo, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sess, ok := p.sessions[userID]
	if !ok || sess == nil {
		return SessionInfo{}, false
	}
	return sess.info(), true
}

// SessionHandler returns the audio handler owned by userID's session. The
// transport bridge uses it to decode inbound packets and drain playback.
// The handler stays valid until EndSession shuts it down.
func (p *Pipeline) SessionHandler(userID string) (*audio.Handler, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sess, ok := p.sessions[userID]
	if !ok || sess == nil {
		return nil, false
	}
	return sess.Handler, true
}

// Sessions returns snapshots of all live sessions.
func (p *Pipeline) Sessions() []SessionInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SessionInfo, 0, len(p.sessions))
	for _, sess := range p.sessions {
		if sess != nil {
			out = append(out, sess.info())
		}
	}
	return out
}

// Metrics returns a snapshot of pipeline-wide counters.
func (p *Pipeline) Metrics() PipelineMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	active := 0
	for _, s := range p.sessions {
		if s != nil {
			active++
		}
	}
	return p.counters.snapshot(active, p.recoverer.Used())
}

// terminal reports whether a request status is final.
func terminal(s RequestStatus) bool {
	return s == RequestCompleted || s == RequestRecovered || s == RequestError
}

// ProcessVoiceCommand runs one utterance through the full cycle:
// receiving → transcribing → processing → synthesizing → playing. On an
// unrecovered failure the returned error is an *Error whose code range
// identifies the failing phase.
func (p *Pipeline) ProcessVoiceCommand(ctx context.Context, userID string, frames []audio.Frame) (Result, error) {
	sess, req, err := p.admitRequest(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	started := p.now()

	// Receiving: flatten captured frames into one utterance buffer.
	var pcm []int16
	for _, f := range frames {
		pcm = append(pcm, f.PCM...)
	}
	p.mu.Lock()
	sess.Metrics.FramesProcessed += uint64(len(frames))
	sess.Metrics.BytesProcessed += uint64(len(pcm) * 2)
	p.mu.Unlock()

	// Transcribing.
	p.setPhase(sess, req, RequestTranscribing)
	t0 := p.now()
	transcript, sttErr := p.sttP.Transcribe(req.ctx(), pcm, p.cfg.Language)
	if cancelled := p.checkCancelled(req); cancelled != nil {
		return Result{}, cancelled
	}
	p.observePhase(p.obsSTT(), sess, phaseSTT, p.now().Sub(t0))
	if sttErr != nil {
		return p.finishFailed(ctx, sess, req, classifySTT(sttErr), started)
	}
	p.mu.Lock()
	req.Transcript = transcript.Text
	p.mu.Unlock()

	// Processing: agent response generation.
	p.setPhase(sess, req, RequestProcessing)
	t0 = p.now()
	reply, agentErr := p.agentP.Respond(req.ctx(), transcript.Text, p.cfg.Identity)
	if cancelled := p.checkCancelled(req); cancelled != nil {
		return Result{}, cancelled
	}
	p.observePhase(p.obsAgent(), sess, phaseAgent, p.now().Sub(t0))
	if agentErr != nil {
		return p.finishFailed(ctx, sess, req, classifyAgent(agentErr), started)
	}
	p.mu.Lock()
	req.Reply = reply.Text
	p.mu.Unlock()

	// Synthesizing.
	p.setPhase(sess, req, RequestSynthesizing)
	t0 = p.now()
	syn, ttsErr := p.ttsP.Synthesize(req.ctx(), reply.Text, p.cfg.Voice)
	if cancelled := p.checkCancelled(req); cancelled != nil {
		return Result{}, cancelled
	}
	p.observePhase(p.obsTTS(), sess, phaseTTS, p.now().Sub(t0))
	if ttsErr != nil {
		return p.finishFailed(ctx, sess, req, classifyTTS(ttsErr), started)
	}

	// Playing: chunk the synthesis into frames and queue them.
	p.setPhase(sess, req, RequestPlaying)
	if err := p.playSynthesis(sess, syn); err != nil {
		verr := newError(CodeSynthesisFailed, "queue synthesised audio", err)
		return p.finishFailed(ctx, sess, req, verr, started)
	}

	return p.finishCompleted(ctx, sess, req, started)
}

// admitRequest validates session state and installs the new in-flight
// request atomically.
func (p *Pipeline) admitRequest(ctx context.Context, userID string) (*Session, *Request, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	sess, ok := p.sessions[userID]
	if !ok || sess == nil {
		e := newError(CodeSessionNotFound, "no session for user "+userID, nil)
		e.UserID = userID
		return nil, nil, e
	}
	if sess.Status == StatusProcessing || sess.Status == StatusEnded {
		e := newError(CodeInvalidState,
			"session is "+sess.Status.String()+", not accepting requests", nil)
		e.SessionID = sess.ID
		e.UserID = userID
		return nil, nil, e
	}

	reqCtx, cancel := context.WithCancel(ctx)
	req := &Request{
		ID:        newRequestID(),
		Status:    RequestReceiving,
		StartedAt: p.now(),
		cancel:    cancel,
		reqCtx:    reqCtx,
	}
	sess.InFlight = req
	sess.Status = StatusProcessing
	sess.LastActivity = p.now()
	return sess, req, nil
}

// setPhase advances the request phase and refreshes session activity.
func (p *Pipeline) setPhase(sess *Session, req *Request, phase RequestStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !terminal(req.Status) {
		req.Status = phase
	}
	sess.LastActivity = p.now()
}

// checkCancelled returns the terminal cancellation error if the request
// was cancelled while an external call was in flight. The call's result is
// discarded; cancellation is cooperative.
func (p *Pipeline) checkCancelled(req *Request) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if req.Status == RequestError && req.Err != nil && req.Err.Code == CodeCancelled {
		return req.Err
	}
	return nil
}

// finishCompleted records a successful request. A request that went
// terminal while the last phase ran (the session was ended under it) keeps
// its error outcome; endLocked already accounted it.
func (p *Pipeline) finishCompleted(ctx context.Context, sess *Session, req *Request, started time.Time) (Result, error) {
	dur := p.now().Sub(started)

	p.mu.Lock()
	if terminal(req.Status) {
		err := req.Err
		p.mu.Unlock()
		return Result{}, err
	}
	req.Status = RequestCompleted
	req.FinishedAt = p.now()
	sess.Status = StatusActive
	sess.InFlight = nil
	sess.LastActivity = p.now()
	sess.Metrics.TotalRequests++
	sess.Metrics.SuccessfulRequests++
	observeLatency(&sess.Metrics.AvgRequestLatency, dur)
	p.counters.totalRequests++
	res := Result{
		RequestID:  req.ID,
		Transcript: req.Transcript,
		Reply:      req.Reply,
		Duration:   dur,
	}
	p.mu.Unlock()

	if p.obs != nil {
		p.obs.RequestDuration.Record(ctx, dur.Seconds())
		p.obs.Requests.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "completed")))
	}
	return res, nil
}

// finishFailed classifies a phase failure and either absorbs it with a
// fallback utterance or propagates it. Recovery is attempted only for
// fallback-eligible errors while budget remains.
func (p *Pipeline) finishFailed(ctx context.Context, sess *Session, req *Request, verr *Error, started time.Time) (Result, error) {
	p.mu.Lock()
	if terminal(req.Status) {
		// Session end already cancelled and accounted this request.
		err := req.Err
		p.mu.Unlock()
		return Result{}, err
	}
	verr.SessionID = sess.ID
	verr.UserID = sess.UserID
	p.mu.Unlock()

	if p.obs != nil {
		p.obs.ProviderErrors.Add(ctx, 1,
			metric.WithAttributes(attribute.String("phase", string(verr.Phase()))))
	}

	if p.cfg.RecoveryEnabled && p.recoverer.ShouldFallback(verr) {
		if p.recoverer.TryAcquire() {
			if res, ok := p.recover(ctx, sess, req, verr, started); ok {
				return res, nil
			}
		} else {
			slog.Warn("voice: recovery budget exhausted, propagating",
				"session", sess.ID, "code", verr.Code)
		}
	}

	dur := p.now().Sub(started)
	p.mu.Lock()
	if terminal(req.Status) {
		err := req.Err
		p.mu.Unlock()
		return Result{}, err
	}
	if verr.Recoverable && verr.RetryAfter == 0 {
		// Suggest a wait that doubles with each prior failure of this
		// session.
		verr.RetryAfter = Backoff(int(sess.Metrics.FailedRequests))
	}
	req.Status = RequestError
	req.Err = verr
	req.FinishedAt = p.now()
	sess.Status = StatusError
	sess.InFlight = nil
	sess.LastActivity = p.now()
	sess.Metrics.TotalRequests++
	sess.Metrics.FailedRequests++
	observeLatency(&sess.Metrics.AvgRequestLatency, dur)
	p.counters.totalRequests++
	p.counters.failedRequests++
	p.mu.Unlock()

	if p.obs != nil {
		p.obs.Requests.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "error")))
	}
	slog.Error("voice: request failed",
		"session", sess.ID, "request", req.ID, "code", verr.Code, "phase", verr.Phase(), "err", verr)
	return Result{}, verr
}

// recover synthesises and queues the fallback utterance for verr. Returns
// ok=false when the fallback itself cannot be produced, in which case the
// original error propagates.
func (p *Pipeline) recover(ctx context.Context, sess *Session, req *Request, verr *Error, started time.Time) (Result, bool) {
	utterance := fallbackUtterance(verr)

	syn, err := p.ttsP.Synthesize(req.ctx(), utterance, p.cfg.Voice)
	if err != nil {
		slog.Error("voice: fallback synthesis failed",
			"session", sess.ID, "code", verr.Code, "err", err)
		return Result{}, false
	}
	if err := p.playSynthesis(sess, syn); err != nil {
		slog.Error("voice: fallback playback failed", "session", sess.ID, "err", err)
		return Result{}, false
	}

	dur := p.now().Sub(started)
	p.mu.Lock()
	if terminal(req.Status) {
		// Session end won the race; finishFailed's tail propagates the
		// cancellation.
		p.mu.Unlock()
		return Result{}, false
	}
	req.Status = RequestRecovered
	req.Reply = utterance
	req.FinishedAt = p.now()
	sess.Status = StatusActive
	sess.InFlight = nil
	sess.LastActivity = p.now()
	sess.Metrics.TotalRequests++
	sess.Metrics.RecoveredRequests++
	observeLatency(&sess.Metrics.AvgRequestLatency, dur)
	p.counters.totalRequests++
	p.counters.recoveredRequests++
	res := Result{
		RequestID:  req.ID,
		Transcript: req.Transcript,
		Reply:      utterance,
		Recovered:  true,
		Duration:   dur,
	}
	p.mu.Unlock()

	if p.obs != nil {
		p.obs.Requests.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "recovered")))
	}
	slog.Info("voice: request recovered with fallback",
		"session", sess.ID, "request", req.ID, "code", verr.Code, "phase", verr.Phase())
	return res, true
}

// playSynthesis chunks a synthesis result into playback frames on the
// session's handler healthy frame boundary. Mono output is upmixed by
// sample duplication when the stream format is stereo; the final partial
// frame is zero-padded.
func (p *Pipeline) playSynthesis(sess *Session, syn tts.Synthesis) error {
	format := p.cfg.AudioFormat
	pcm := syn.PCM
	if syn.Channels == 1 && format.Channels == 2 {
		up := make([]int16, len(pcm)*2)
		for i, s := range pcm {
			up[i*2] = s
			up[i*2+1] = s
		}
		pcm = up
	}

	frameSamples := format.SamplesPerFrame()
	for off := 0; off < len(pcm); off += frameSamples {
		end := off + frameSamples
		chunk := make([]int16, frameSamples)
		if end > len(pcm) {
			copy(chunk, pcm[off:])
		} else {
			copy(chunk, pcm[off:end])
		}
		if err := sess.Handler.PlayFrame(audio.Frame{
			PCM:      chunk,
			Samples:  format.FrameSize(),
			Duration: format.FrameDuration,
		}); err != nil {
			return err
		}
	}
	return sess.Handler.StartPlayback()
}

// Run blocks, sweeping idle sessions every SweepInterval until ctx ends.
func (p *Pipeline) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Sweep()
		}
	}
}

// Sweep runs one idle pass: sessions idle longer than half the timeout are
// marked idle, and sessions idle past the full timeout are ended, their
// in-flight requests cancelled.
func (p *Pipeline) Sweep() {
	now := p.now()
	var ended []*Session

	p.mu.Lock()
	for userID, sess := range p.sessions {
		if sess == nil {
			continue
		}
		idle := now.Sub(sess.LastActivity)
		switch {
		case idle > p.cfg.SessionTimeout:
			delete(p.sessions, userID)
			p.endLocked(sess)
			ended = append(ended, sess)
		case idle > p.cfg.SessionTimeout/2 && sess.Status == StatusActive:
			sess.Status = StatusIdle
		}
	}
	p.mu.Unlock()

	for _, sess := range ended {
		if p.obs != nil {
			p.obs.ActiveSessions.Add(context.Background(), -1)
		}
		slog.Info("voice: session swept after idle timeout",
			"session", sess.ID, "user", sess.UserID)
	}
}

// --- phase classification ------------------------------------------------

// phase latency slots for observeLatency dispatch.
type phaseSlot int

const (
	phaseSTT phaseSlot = iota
	phaseAgent
	phaseTTS
)

// observePhase folds a phase latency into the session EWMA and the OTel
// histogram when attached.
func (p *Pipeline) observePhase(hist metric.Float64Histogram, sess *Session, slot phaseSlot, d time.Duration) {
	p.mu.Lock()
	switch slot {
	case phaseSTT:
		observeLatency(&sess.Metrics.AvgTranscribeLatency, d)
	case phaseAgent:
		observeLatency(&sess.Metrics.AvgAgentLatency, d)
	case phaseTTS:
		observeLatency(&sess.Metrics.AvgSynthesizeLatency, d)
	}
	p.mu.Unlock()

	if hist != nil {
		hist.Record(context.Background(), d.Seconds())
	}
}

func (p *Pipeline) obsSTT() metric.Float64Histogram {
	if p.obs == nil {
		return nil
	}
	return p.obs.STTDuration
}

func (p *Pipeline) obsAgent() metric.Float64Histogram {
	if p.obs == nil {
		return nil
	}
	return p.obs.AgentDuration
}

func (p *Pipeline) obsTTS() metric.Float64Histogram {
	if p.obs == nil {
		return nil
	}
	return p.obs.TTSDuration
}

// classifySTT maps a transcription failure to its error code. No-speech is
// deliberately distinct from service failure.
func classifySTT(err error) *Error {
	switch {
	case errors.Is(err, stt.ErrNoSpeech):
		return newError(CodeNoSpeech, "no speech detected in utterance", err)
	case errors.Is(err, context.DeadlineExceeded):
		return newError(CodeTranscriptionTimeout, "transcription timed out", err)
	default:
		return newError(CodeTranscriptionFailed, "transcription failed", err)
	}
}

// classifyAgent maps a response-generation failure to its error code.
func classifyAgent(err error) *Error {
	switch {
	case errors.Is(err, agent.ErrEmptyReply):
		return newError(CodeAgentEmptyReply, "agent returned an empty reply", err)
	case errors.Is(err, context.DeadlineExceeded):
		return newError(CodeAgentTimeout, "agent response timed out", err)
	default:
		return newError(CodeAgentFailed, "agent response failed", err)
	}
}

// classifyTTS maps a synthesis failure to its error code. Local validation
// rejections carry their own codes.
func classifyTTS(err error) *Error {
	switch {
	case errors.Is(err, tts.ErrEmptyText):
		return newError(CodeEmptyText, "synthesis text is empty", err)
	case errors.Is(err, tts.ErrTextTooLong):
		return newError(CodeTextTooLong, "synthesis text exceeds length limit", err)
	case errors.Is(err, context.DeadlineExceeded):
		return newError(CodeSynthesisTimeout, "synthesis timed out", err)
	default:
		return newError(CodeSynthesisFailed, "synthesis failed", err)
	}
}
