// Package config provides the configuration schema and loader for the AI
// engine server.
package config

import "time"

// LogLevel controls log verbosity for the server.
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

// Config is the root configuration structure for the AI engine.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Database DatabaseConfig `yaml:"database"`
	Hints    HintsConfig    `yaml:"hints"`
}

// ServerConfig holds network and logging settings for the engine server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// UpstreamConfig holds connection and session settings for the realtime
// speech provider. Values captured here become the defaults for every
// session; a session's settings are fixed once it starts.
type UpstreamConfig struct {
	// APIKey authenticates against the provider. Required.
	APIKey string `yaml:"api_key"`

	// Model is the realtime model identifier. When empty the client
	// default is used.
	Model string `yaml:"model"`

	// BaseURL overrides the provider websocket endpoint. Useful for
	// gateways and tests.
	BaseURL string `yaml:"base_url"`

	// Voice selects the synthesis voice for assistant audio.
	Voice string `yaml:"voice"`

	// Instructions is the system prompt applied to every session.
	Instructions string `yaml:"instructions"`

	// TranscriptionModel transcribes user speech (e.g., "whisper-1").
	TranscriptionModel string `yaml:"transcription_model"`

	// VADThreshold is the server-side voice activity detection threshold
	// in [0, 1]. Zero means the provider default.
	VADThreshold float64 `yaml:"vad_threshold"`

	// VADPrefixPadding is audio retained before detected speech.
	VADPrefixPadding time.Duration `yaml:"vad_prefix_padding"`

	// VADSilenceDuration is the silence span that ends a user turn.
	VADSilenceDuration time.Duration `yaml:"vad_silence_duration"`

	// DialTimeout bounds the upstream websocket dial. Zero means the
	// client default.
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// DatabaseConfig holds persistence settings.
type DatabaseConfig struct {
	// PostgresDSN is the connection string for session history storage.
	// When empty, reports are kept in memory only.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// HintsConfig controls the suggestion generator for live sessions.
type HintsConfig struct {
	// Enabled turns the hint endpoint on.
	Enabled bool `yaml:"enabled"`

	// Model is the chat model used to generate hints.
	Model string `yaml:"model"`

	// BaseURL overrides the chat completions endpoint.
	BaseURL string `yaml:"base_url"`
}
