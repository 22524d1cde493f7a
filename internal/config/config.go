// Package config provides the configuration schema and loader for the
// Voxloop voice pipeline server.
package config

import "time"

// LogLevel controls log verbosity for the Voxloop server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Voxloop.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Discord   DiscordConfig   `yaml:"discord"`
	Providers ProvidersConfig `yaml:"providers"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Audio     AudioConfig     `yaml:"audio"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// MetricsAddr is the TCP address the /metrics endpoint listens on
	// (e.g., ":9090"). Empty disables the metrics server.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// DiscordConfig holds the voice transport settings.
type DiscordConfig struct {
	// Token is the Discord bot token. Required.
	Token string `yaml:"token"`

	// GuildID and ChannelID select the voice channel to join at startup.
	GuildID   string `yaml:"guild_id"`
	ChannelID string `yaml:"channel_id"`
}

// ProvidersConfig declares a provider implementation for each pipeline
// collaborator.
type ProvidersConfig struct {
	STT   ProviderEntry `yaml:"stt"`
	TTS   ProviderEntry `yaml:"tts"`
	Agent ProviderEntry `yaml:"agent"`
}

// ProviderEntry is the common configuration block shared by all provider
// types.
type ProviderEntry struct {
	// Name selects the provider implementation (e.g., "whisper",
	// "elevenlabs", "openai", "anyllm").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint. For the
	// whisper provider this is the whisper-server address and is required.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o",
	// "eleven_flash_v2_5").
	Model string `yaml:"model"`

	// Voice is the synthesis voice ID (TTS providers only).
	Voice string `yaml:"voice"`

	// Backend selects the underlying service for multi-backend providers
	// (anyllm: "anthropic", "ollama", ...).
	Backend string `yaml:"backend"`
}

// PipelineConfig tunes session orchestration.
type PipelineConfig struct {
	// MaxConcurrentSessions is the admission ceiling. Default: 10.
	MaxConcurrentSessions int `yaml:"max_concurrent_sessions"`

	// SessionTimeoutSeconds ends sessions idle longer than this.
	// Default: 300.
	SessionTimeoutSeconds int `yaml:"session_timeout_seconds"`

	// RecoveryEnabled turns fallback recovery on.
	RecoveryEnabled bool `yaml:"recovery_enabled"`

	// MaxRecoveryAttempts caps recoveries over the process lifetime.
	MaxRecoveryAttempts int `yaml:"max_recovery_attempts"`

	// Language is the transcription language hint (BCP-47).
	Language string `yaml:"language"`

	// AssistantName and Persona shape the agent identity.
	AssistantName string `yaml:"assistant_name"`
	Persona       string `yaml:"persona"`
}

// AudioConfig tunes the audio path. Durations are plain milliseconds so
// the YAML stays numeric.
type AudioConfig struct {
	// TargetLatencyMs is the initial jitter-buffer target. Default: 60.
	TargetLatencyMs int `yaml:"target_latency_ms"`

	// MaxLatenessMs drops frames whose playout time is staler than this
	// at dequeue. Zero keeps late frames playable.
	MaxLatenessMs int `yaml:"max_lateness_ms"`

	// RingCapacity is the capture ring size in frames. Default: 100.
	RingCapacity int `yaml:"ring_capacity"`
}

// SessionTimeout returns the pipeline idle timeout as a duration.
func (p PipelineConfig) SessionTimeout() time.Duration {
	return time.Duration(p.SessionTimeoutSeconds) * time.Second
}

// TargetLatency returns the jitter-buffer target as a duration.
func (a AudioConfig) TargetLatency() time.Duration {
	return time.Duration(a.TargetLatencyMs) * time.Millisecond
}

// MaxLateness returns the staleness cutoff as a duration.
func (a AudioConfig) MaxLateness() time.Duration {
	return time.Duration(a.MaxLatenessMs) * time.Millisecond
}
