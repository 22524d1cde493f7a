// Command voxloop is the main entry point for the voxloop voice assistant
// server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/voxloop/voxloop/internal/bot"
	"github.com/voxloop/voxloop/internal/config"
	"github.com/voxloop/voxloop/internal/health"
	"github.com/voxloop/voxloop/internal/observe"
	"github.com/voxloop/voxloop/internal/voice"
	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/audio/opus"
	"github.com/voxloop/voxloop/pkg/provider/agent"
	agentanyllm "github.com/voxloop/voxloop/pkg/provider/agent/anyllm"
	agentmock "github.com/voxloop/voxloop/pkg/provider/agent/mock"
	agentopenai "github.com/voxloop/voxloop/pkg/provider/agent/openai"
	"github.com/voxloop/voxloop/pkg/provider/stt"
	sttmock "github.com/voxloop/voxloop/pkg/provider/stt/mock"
	"github.com/voxloop/voxloop/pkg/provider/stt/whisper"
	"github.com/voxloop/voxloop/pkg/provider/tts"
	"github.com/voxloop/voxloop/pkg/provider/tts/elevenlabs"
	ttsmock "github.com/voxloop/voxloop/pkg/provider/tts/mock"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxloop: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxloop: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voxloop starting",
		"config", *configPath,
		"metrics_addr", cfg.Server.MetricsAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	shutdownObserve, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "voxloop",
	})
	if err != nil {
		slog.Error("failed to initialise metrics provider", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdownObserve(shutdownCtx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()
	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metric instruments", "err", err)
		return 1
	}

	// ── Providers ─────────────────────────────────────────────────────────────
	sttP, err := buildSTT(cfg.Providers.STT)
	if err != nil {
		slog.Error("failed to build stt provider", "err", err)
		return 1
	}
	ttsP, err := buildTTS(cfg.Providers.TTS)
	if err != nil {
		slog.Error("failed to build tts provider", "err", err)
		return 1
	}
	agentP, err := buildAgent(cfg.Providers.Agent)
	if err != nil {
		slog.Error("failed to build agent provider", "err", err)
		return 1
	}
	slog.Info("providers created",
		"stt", cfg.Providers.STT.Name,
		"tts", cfg.Providers.TTS.Name,
		"agent", cfg.Providers.Agent.Name,
	)

	// ── Pipeline ──────────────────────────────────────────────────────────────
	pipeline, err := voice.New(voice.Config{
		MaxConcurrentSessions: cfg.Pipeline.MaxConcurrentSessions,
		SessionTimeout:        cfg.Pipeline.SessionTimeout(),
		RecoveryEnabled:       cfg.Pipeline.RecoveryEnabled,
		MaxRecoveryAttempts:   cfg.Pipeline.MaxRecoveryAttempts,
		Language:              cfg.Pipeline.Language,
		Voice: tts.VoiceProfile{
			ID: cfg.Providers.TTS.Voice,
		},
		Identity: agent.Identity{
			Name:     cfg.Pipeline.AssistantName,
			Persona:  cfg.Pipeline.Persona,
			Language: cfg.Pipeline.Language,
		},
		AudioFormat:  audio.DefaultConfig,
		RingCapacity: cfg.Audio.RingCapacity,
		Jitter: audio.JitterConfig{
			TargetLatency: cfg.Audio.TargetLatency(),
			MaxLateness:   cfg.Audio.MaxLateness(),
		},
		CodecFactory: opus.Factory(audio.DefaultConfig),
	}, sttP, ttsP, agentP, voice.WithMetrics(metrics))
	if err != nil {
		slog.Error("failed to create pipeline", "err", err)
		return 1
	}

	// ── Discord bot ───────────────────────────────────────────────────────────
	voiceBot, err := bot.New(bot.Config{
		Token:     cfg.Discord.Token,
		GuildID:   cfg.Discord.GuildID,
		ChannelID: cfg.Discord.ChannelID,
	}, pipeline, bot.WithMetrics(metrics))
	if err != nil {
		slog.Error("failed to create discord bot", "err", err)
		return 1
	}
	defer func() {
		if err := voiceBot.Close(); err != nil {
			slog.Warn("discord bot close error", "err", err)
		}
	}()

	// ── Run ───────────────────────────────────────────────────────────────────
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return pipeline.Run(egCtx)
	})

	eg.Go(func() error {
		return voiceBot.Run(egCtx)
	})

	if cfg.Server.MetricsAddr != "" {
		eg.Go(func() error {
			return serveMetrics(egCtx, cfg.Server.MetricsAddr, voiceBot, pipeline, cfg.Pipeline.MaxConcurrentSessions)
		})
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// serveMetrics runs the HTTP listener carrying /metrics and the health
// endpoints until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, voiceBot *bot.Bot, pipeline *voice.Pipeline, maxSessions int) error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(
		health.Checker{Name: "discord", Check: voiceBot.Ready},
		health.Checker{Name: "pipeline", Check: func(_ context.Context) error {
			if m := pipeline.Metrics(); maxSessions > 0 && m.ActiveSessions >= maxSessions {
				return fmt.Errorf("session ceiling %d reached", maxSessions)
			}
			return nil
		}},
	).Register(mux)

	srv := &http.Server{Addr: addr, Handler: mux}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errc:
		return fmt.Errorf("metrics listener: %w", err)
	}
}

// ── Provider wiring ───────────────────────────────────────────────────────────

func buildSTT(entry config.ProviderEntry) (stt.Provider, error) {
	switch entry.Name {
	case "whisper":
		opts := []whisper.Option{
			// The whisper server receives utterances in the stream format.
			whisper.WithSampleRate(audio.DefaultConfig.SampleRate),
			whisper.WithChannels(audio.DefaultConfig.Channels),
		}
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		return whisper.New(entry.BaseURL, opts...)
	case "mock":
		return &sttmock.Provider{
			Transcripts: []stt.Transcript{{Text: "hello voxloop", Confidence: 1}},
		}, nil
	default:
		return nil, fmt.Errorf("unknown stt provider %q", entry.Name)
	}
}

func buildTTS(entry config.ProviderEntry) (tts.Provider, error) {
	switch entry.Name {
	case "elevenlabs":
		opts := []elevenlabs.Option{
			// Ask for PCM at the stream rate; the pipeline never resamples.
			elevenlabs.WithOutputFormat("pcm_48000", audio.DefaultConfig.SampleRate),
		}
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	case "mock":
		return &ttsmock.Provider{
			Result: tts.Synthesis{
				PCM:        make([]int16, audio.DefaultConfig.FrameSize()),
				SampleRate: audio.DefaultConfig.SampleRate,
				Channels:   1,
				Duration:   audio.DefaultConfig.FrameDuration,
			},
		}, nil
	default:
		return nil, fmt.Errorf("unknown tts provider %q", entry.Name)
	}
}

func buildAgent(entry config.ProviderEntry) (agent.Provider, error) {
	switch entry.Name {
	case "openai":
		var opts []agentopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, agentopenai.WithBaseURL(entry.BaseURL))
		}
		return agentopenai.New(entry.APIKey, entry.Model, opts...)
	case "anyllm":
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return agentanyllm.New(entry.Backend, entry.Model, opts...)
	case "mock":
		return &agentmock.Provider{
			Replies: []agent.Reply{{Text: "I heard you."}},
		}, nil
	default:
		return nil, fmt.Errorf("unknown agent provider %q", entry.Name)
	}
}

// ── Logging ───────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
