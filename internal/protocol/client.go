// Package protocol defines the JSON wire messages exchanged with the
// learner-facing WebSocket connection.
//
// Every message carries a "type" discriminator. Inbound messages are decoded
// into the closed [ClientEvent] union via [ParseClientEvent]; messages with a
// type the bridge does not handle decode into [ClientUnknown] rather than an
// error, so callers can log and move on. Outbound messages are constructed
// with the ServerEvent helpers and marshalled as-is.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ClientEventType discriminates inbound client messages.
type ClientEventType string

const (
	// ClientAudioAppend carries one base64-encoded PCM16 microphone chunk.
	ClientAudioAppend ClientEventType = "input_audio_buffer.append"

	// ClientAudioCommit marks the end of the learner's utterance (manual
	// turn-taking; with server VAD the upstream detects this itself).
	ClientAudioCommit ClientEventType = "input_audio_buffer.commit"

	// ClientResponseCreate explicitly requests a model response now.
	ClientResponseCreate ClientEventType = "response.create"

	// ClientUnknown is the explicit unrecognised variant. The original type
	// string is preserved in [ClientEvent.RawType] for logging.
	ClientUnknown ClientEventType = "unknown"
)

// ClientEvent is one decoded inbound client message.
type ClientEvent struct {
	Type ClientEventType

	// Audio is the base64-encoded PCM16 payload of an audio append. Empty for
	// every other event type.
	Audio string

	// RawType is the undecoded "type" value when Type is ClientUnknown.
	RawType string
}

// clientEnvelope is the superset shape used for decoding.
type clientEnvelope struct {
	Type  string `json:"type"`
	Audio string `json:"audio,omitempty"`
}

// ParseClientEvent decodes one inbound client frame. Malformed JSON or a
// missing type discriminator is an error; a well-formed message of an
// unhandled type is not — it decodes to ClientUnknown.
func ParseClientEvent(data []byte) (ClientEvent, error) {
	var env clientEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return ClientEvent{}, fmt.Errorf("protocol: decode client event: %w", err)
	}
	if env.Type == "" {
		return ClientEvent{}, fmt.Errorf("protocol: client event missing type")
	}

	switch ClientEventType(env.Type) {
	case ClientAudioAppend:
		return ClientEvent{Type: ClientAudioAppend, Audio: env.Audio}, nil
	case ClientAudioCommit:
		return ClientEvent{Type: ClientAudioCommit}, nil
	case ClientResponseCreate:
		return ClientEvent{Type: ClientResponseCreate}, nil
	default:
		return ClientEvent{Type: ClientUnknown, RawType: env.Type}, nil
	}
}

// ── Outbound (bridge → client) ────────────────────────────────────────────────

// Outbound server event type strings.
const (
	ServerAudioDelta     = "audio.delta"
	ServerAudioDone      = "audio.done"
	ServerTranscriptDone = "transcript.done"
	ServerSpeechStarted  = "speech.started"
	ServerUserTranscript = "user.transcript"
	ServerError          = "error"
)

// ServerEvent is one outbound message to the client. Only the fields relevant
// to the given Type are populated; the rest are omitted from the JSON.
type ServerEvent struct {
	Type       string `json:"type"`
	Delta      string `json:"delta,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Message    string `json:"message,omitempty"`
}

// AudioDelta wraps one streamed base64 audio chunk for immediate playback.
func AudioDelta(delta string) ServerEvent {
	return ServerEvent{Type: ServerAudioDelta, Delta: delta}
}

// AudioDone signals the end of the assistant's spoken response.
func AudioDone() ServerEvent {
	return ServerEvent{Type: ServerAudioDone}
}

// TranscriptDone carries the assistant's final utterance text for one turn.
func TranscriptDone(transcript string) ServerEvent {
	return ServerEvent{Type: ServerTranscriptDone, Transcript: transcript}
}

// SpeechStarted tells the client the learner started speaking; the client may
// use it to truncate assistant playback (barge-in). The bridge itself cuts
// nothing.
func SpeechStarted() ServerEvent {
	return ServerEvent{Type: ServerSpeechStarted}
}

// UserTranscript carries the transcription of the learner's last utterance.
func UserTranscript(transcript string) ServerEvent {
	return ServerEvent{Type: ServerUserTranscript, Transcript: transcript}
}

// ErrorEvent wraps a recoverable error in the structured form the client
// understands. Upstream error payloads are never forwarded verbatim.
func ErrorEvent(message string) ServerEvent {
	return ServerEvent{Type: ServerError, Message: message}
}

// Encode marshals e for the wire.
func (e ServerEvent) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode server event: %w", err)
	}
	return data, nil
}
