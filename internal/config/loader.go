package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per collaborator kind.
var ValidProviderNames = map[string][]string{
	"stt":   {"whisper", "mock"},
	"tts":   {"elevenlabs", "mock"},
	"agent": {"openai", "anyllm", "mock"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Unknown YAML keys are rejected so typos fail loudly at startup.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Discord.Token == "" {
		errs = append(errs, errors.New("discord.token is required"))
	}

	for kind, entry := range map[string]ProviderEntry{
		"stt":   cfg.Providers.STT,
		"tts":   cfg.Providers.TTS,
		"agent": cfg.Providers.Agent,
	} {
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("providers.%s.name is required", kind))
			continue
		}
		if !slices.Contains(ValidProviderNames[kind], entry.Name) {
			errs = append(errs, fmt.Errorf("providers.%s.name %q is unknown; valid values: %v",
				kind, entry.Name, ValidProviderNames[kind]))
		}
	}
	if cfg.Providers.STT.Name == "whisper" && cfg.Providers.STT.BaseURL == "" {
		errs = append(errs, errors.New("providers.stt.base_url is required for the whisper provider"))
	}
	if cfg.Providers.TTS.Name == "elevenlabs" {
		if cfg.Providers.TTS.APIKey == "" {
			errs = append(errs, errors.New("providers.tts.api_key is required for the elevenlabs provider"))
		}
		if cfg.Providers.TTS.Voice == "" {
			errs = append(errs, errors.New("providers.tts.voice is required for the elevenlabs provider"))
		}
	}
	if cfg.Providers.Agent.Name == "anyllm" && cfg.Providers.Agent.Backend == "" {
		errs = append(errs, errors.New("providers.agent.backend is required for the anyllm provider"))
	}

	if cfg.Pipeline.MaxConcurrentSessions < 0 {
		errs = append(errs, errors.New("pipeline.max_concurrent_sessions must not be negative"))
	}
	if cfg.Pipeline.SessionTimeoutSeconds < 0 {
		errs = append(errs, errors.New("pipeline.session_timeout_seconds must not be negative"))
	}
	if cfg.Audio.TargetLatencyMs < 0 {
		errs = append(errs, errors.New("audio.target_latency_ms must not be negative"))
	}
	if cfg.Audio.MaxLatenessMs < 0 {
		errs = append(errs, errors.New("audio.max_lateness_ms must not be negative"))
	}

	return errors.Join(errs...)
}
