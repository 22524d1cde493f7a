// Package bot provides the Discord bot layer for voxloop. It owns the
// discordgo.Session lifecycle, joins the configured voice channel, and
// bridges speaker audio between the Discord transport and the voice
// pipeline: inbound Opus packets are decoded and jitter-buffered through
// each session's audio handler, segmented into utterances by silence gaps,
// and dispatched as voice commands; synthesised replies are drained from
// the playback queue, re-encoded, and sent back to the channel.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/voxloop/voxloop/internal/observe"
	"github.com/voxloop/voxloop/internal/voice"
	"github.com/voxloop/voxloop/pkg/audio"
	discordaudio "github.com/voxloop/voxloop/pkg/audio/discord"
)

const (
	// streamPollInterval is how often Run checks the connection for new
	// speaker streams.
	streamPollInterval = 250 * time.Millisecond

	// utteranceGap is the silence that ends one utterance.
	utteranceGap = 600 * time.Millisecond

	// maxUtteranceFrames caps one utterance at 30 seconds of 20 ms frames.
	// A speaker who never pauses still gets their audio dispatched.
	maxUtteranceFrames = 1500
)

// Config holds Discord bot configuration.
type Config struct {
	// Token is the Discord bot token.
	Token string

	// GuildID is the target guild.
	GuildID string

	// ChannelID is the voice channel to join.
	ChannelID string
}

// Bot owns the Discord gateway connection and bridges voice channel audio
// to the pipeline.
type Bot struct {
	cfg      Config
	session  *discordgo.Session
	platform *discordaudio.Platform
	pipeline *voice.Pipeline
	metrics  *observe.Metrics

	mu   sync.Mutex
	conn *discordaudio.Connection

	closeOnce sync.Once
}

// Option configures optional Bot collaborators.
type Option func(*Bot)

// WithMetrics attaches frame telemetry. The bridge records decoded and
// loss-concealed frame counts as speaker audio moves through it.
func WithMetrics(m *observe.Metrics) Option {
	return func(b *Bot) {
		b.metrics = m
	}
}

// New creates a Bot and connects to the Discord gateway. The voice channel
// is not joined until [Bot.Run].
func New(cfg Config, pipeline *voice.Pipeline, opts ...Option) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("bot: discord token is required")
	}
	if cfg.ChannelID == "" {
		return nil, errors.New("bot: voice channel ID is required")
	}
	if pipeline == nil {
		return nil, errors.New("bot: pipeline is required")
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("bot: create session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("bot: open session: %w", err)
	}

	b := &Bot{
		cfg:      cfg,
		session:  session,
		platform: discordaudio.New(session, cfg.GuildID),
		pipeline: pipeline,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Run joins the configured voice channel and bridges speaker audio into the
// pipeline until ctx is cancelled. Each speaker SSRC gets its own goroutine
// so one slow request never stalls another speaker's capture.
func (b *Bot) Run(ctx context.Context) error {
	conn, err := b.platform.Connect(ctx, b.cfg.ChannelID)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()
	defer conn.Disconnect()

	conn.OnParticipantChange(func(ev discordaudio.Event) {
		slog.Info("voice channel change",
			"type", ev.Type.String(),
			"user_id", ev.UserID,
			"username", ev.Username,
		)
	})

	slog.Info("voice channel joined", "channel_id", b.cfg.ChannelID)

	var wg sync.WaitGroup
	defer wg.Wait()

	seen := make(map[uint32]bool)
	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for ssrc, ch := range conn.InputStreams() {
				if seen[ssrc] {
					continue
				}
				seen[ssrc] = true
				wg.Add(1)
				userID := conn.UserForSSRC(ssrc)
				go func() {
					defer wg.Done()
					b.speakerLoop(ctx, userID, ssrc, ch, conn.OutputStream())
				}()
			}
		}
	}
}

// Ready reports whether the gateway session has identified. It serves as a
// readiness check for the health endpoint.
func (b *Bot) Ready(_ context.Context) error {
	if b.session == nil || b.session.State == nil || b.session.State.User == nil {
		return errors.New("bot: gateway session not identified")
	}
	return nil
}

// Close disconnects the voice channel and closes the gateway session. It is
// safe to call more than once.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		conn := b.conn
		b.mu.Unlock()

		if conn != nil {
			if err := conn.Disconnect(); err != nil {
				slog.Warn("bot: voice disconnect error", "err", err)
			}
		}
		if b.session != nil {
			if err := b.session.Close(); err != nil {
				closeErr = fmt.Errorf("bot: close session: %w", err)
			}
		}
		slog.Info("discord bot closed")
	})
	return closeErr
}

// speakerLoop consumes one speaker's packet stream for the lifetime of
// their session. Packets are decoded and pushed through the session's
// jitter buffer as they arrive; frames that come due are collected into the
// current utterance, and an utteranceGap of silence dispatches it as one
// voice command.
func (b *Bot) speakerLoop(ctx context.Context, userID string, ssrc uint32, in <-chan discordaudio.Packet, out chan<- discordaudio.Packet) {
	log := slog.With("user_id", userID, "ssrc", ssrc)

	if _, err := b.pipeline.StartSession(ctx, userID, b.cfg.ChannelID); err != nil {
		log.Warn("session rejected", "err", err)
		return
	}
	defer func() {
		if err := b.pipeline.EndSession(userID); err != nil {
			log.Debug("end session", "err", err)
		}
	}()

	handler, ok := b.pipeline.SessionHandler(userID)
	if !ok {
		return
	}
	log.Info("speaker session started")

	// The gap timer is armed only while an utterance is being collected.
	gap := time.NewTimer(utteranceGap)
	if !gap.Stop() {
		<-gap.C
	}
	defer gap.Stop()

	var utterance []audio.Frame
	collecting := false

	// Frame telemetry is recorded as deltas against the handler's own
	// counters, so concealed frames are attributed without re-inspecting
	// packets here.
	var lastStats audio.Stats
	recordFrames := func() {
		if b.metrics == nil {
			return
		}
		st := handler.Stats()
		b.metrics.FramesDecoded.Add(ctx, int64(st.FramesDecoded-lastStats.FramesDecoded))
		b.metrics.FramesConcealed.Add(ctx, int64(st.FramesConcealed-lastStats.FramesConcealed))
		lastStats = st
	}
	defer recordFrames()

	drain := func() {
		for {
			f, ok := handler.DequeueFrame()
			if !ok {
				return
			}
			utterance = append(utterance, f)
		}
	}
	dispatch := func() {
		drain()
		recordFrames()
		if len(utterance) > 0 {
			b.dispatchUtterance(ctx, userID, handler, utterance, out, log)
			utterance = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-gap.C:
			collecting = false
			dispatch()

		case pkt, ok := <-in:
			if !ok {
				if collecting {
					dispatch()
				}
				return
			}

			frame, err := handler.DecodeFrame(pkt.Opus)
			if err != nil {
				log.Warn("decode frame", "err", err)
				continue
			}
			frame.Sequence = pkt.Sequence
			frame.Timestamp = pkt.Timestamp
			frame.SSRC = pkt.SSRC

			if err := handler.EnqueueFrame(frame); err != nil {
				log.Warn("enqueue frame", "err", err)
				continue
			}
			// Pull whatever has cleared the jitter delay so the buffer stays
			// a playout window, not an utterance store.
			drain()

			if collecting {
				if !gap.Stop() {
					<-gap.C
				}
			}
			gap.Reset(utteranceGap)
			collecting = true

			if len(utterance) >= maxUtteranceFrames {
				if !gap.Stop() {
					<-gap.C
				}
				collecting = false
				dispatch()
			}
		}
	}
}

// dispatchUtterance runs one collected utterance through the pipeline and
// plays the reply back to the channel.
func (b *Bot) dispatchUtterance(ctx context.Context, userID string, handler *audio.Handler, frames []audio.Frame, out chan<- discordaudio.Packet, log *slog.Logger) {
	res, err := b.pipeline.ProcessVoiceCommand(ctx, userID, frames)
	if err != nil {
		log.Warn("voice command failed", "err", err)
		return
	}
	log.Info("voice command done",
		"request_id", res.RequestID,
		"transcript", res.Transcript,
		"recovered", res.Recovered,
		"duration", res.Duration,
	)

	b.playReply(handler, out, log)
}

// playReply drains the session's playback queue, re-encodes the frames, and
// sends them to the voice channel. The connection's send loop paces the
// actual wire transmission.
func (b *Bot) playReply(handler *audio.Handler, out chan<- discordaudio.Packet, log *slog.Logger) {
	frames := handler.DrainPlayback(0)
	if len(frames) == 0 {
		return
	}

	packets, err := handler.EncodeFrames(frames)
	if err != nil {
		log.Warn("encode reply", "err", err)
		return
	}

	for i, p := range packets {
		out <- discordaudio.Packet{
			Opus:      p,
			Sequence:  frames[i].Sequence,
			Timestamp: frames[i].Timestamp,
		}
	}
	handler.StopPlayback()
}
