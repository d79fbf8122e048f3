package realtime

import "time"

// Defaults for the session handshake, used when the corresponding
// SessionConfig field is zero.
const (
	DefaultVoice              = "alloy"
	DefaultTranscriptionModel = "whisper-1"
	DefaultVADThreshold       = 0.5
	DefaultVADPrefixPadding   = 300 * time.Millisecond
	DefaultVADSilenceDuration = 500 * time.Millisecond
)

// audioFormat is the fixed sample format for both directions.
const audioFormat = "pcm16"

// SessionConfig holds everything that goes into the one-shot session.update
// handshake. It is immutable for the lifetime of a session; changing the
// source configuration only affects sessions started afterwards.
type SessionConfig struct {
	// Instructions is the persona prompt for the tutor.
	Instructions string

	// Voice selects the synthesised voice (e.g. "alloy", "echo", "shimmer").
	Voice string

	// TranscriptionModel converts learner speech to text upstream.
	TranscriptionModel string

	// VADThreshold is the server-VAD speech detection sensitivity in (0, 1].
	VADThreshold float64

	// VADPrefixPadding is leading audio included before detected speech.
	VADPrefixPadding time.Duration

	// VADSilenceDuration is the trailing silence that ends a turn.
	VADSilenceDuration time.Duration
}

// SessionUpdateMessage is the handshake sent exactly once, immediately after
// the upstream connection opens and before any relay traffic.
type SessionUpdateMessage struct {
	Type    string        `json:"type"`
	Session SessionParams `json:"session"`
}

// SessionParams is the nested session object of the handshake.
type SessionParams struct {
	Modalities         []string            `json:"modalities"`
	Instructions       string              `json:"instructions,omitempty"`
	Voice              string              `json:"voice,omitempty"`
	InputAudioFormat   string              `json:"input_audio_format"`
	OutputAudioFormat  string              `json:"output_audio_format"`
	TurnDetection      TurnDetection       `json:"turn_detection"`
	InputTranscription TranscriptionParams `json:"input_audio_transcription"`
}

// TurnDetection configures upstream server-side VAD.
type TurnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms"`
	SilenceDurationMs int     `json:"silence_duration_ms"`
}

// TranscriptionParams selects the model transcribing learner speech.
type TranscriptionParams struct {
	Model string `json:"model"`
}

// SessionUpdate builds the handshake message from cfg, filling defaults for
// any zero field.
func SessionUpdate(cfg SessionConfig) SessionUpdateMessage {
	voice := cfg.Voice
	if voice == "" {
		voice = DefaultVoice
	}
	model := cfg.TranscriptionModel
	if model == "" {
		model = DefaultTranscriptionModel
	}
	threshold := cfg.VADThreshold
	if threshold == 0 {
		threshold = DefaultVADThreshold
	}
	prefix := cfg.VADPrefixPadding
	if prefix == 0 {
		prefix = DefaultVADPrefixPadding
	}
	silence := cfg.VADSilenceDuration
	if silence == 0 {
		silence = DefaultVADSilenceDuration
	}

	return SessionUpdateMessage{
		Type: "session.update",
		Session: SessionParams{
			Modalities:        []string{"audio", "text"},
			Instructions:      cfg.Instructions,
			Voice:             voice,
			InputAudioFormat:  audioFormat,
			OutputAudioFormat: audioFormat,
			TurnDetection: TurnDetection{
				Type:              "server_vad",
				Threshold:         threshold,
				PrefixPaddingMs:   int(prefix.Milliseconds()),
				SilenceDurationMs: int(silence.Milliseconds()),
			},
			InputTranscription: TranscriptionParams{Model: model},
		},
	}
}
