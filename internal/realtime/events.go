package realtime

import (
	"encoding/json"
	"fmt"
)

// EventType discriminates events received from the upstream service.
type EventType string

const (
	// EventSessionCreated confirms the upstream session is live. Logged only.
	EventSessionCreated EventType = "session.created"

	// EventAudioDelta is one streamed chunk of synthesised assistant audio.
	EventAudioDelta EventType = "response.audio.delta"

	// EventAudioDone marks the end of the assistant's audio for one turn.
	EventAudioDone EventType = "response.audio.done"

	// EventTranscriptDone carries the assistant's final utterance text.
	EventTranscriptDone EventType = "response.audio_transcript.done"

	// EventSpeechStarted fires when server VAD detects the learner speaking.
	EventSpeechStarted EventType = "input_audio_buffer.speech_started"

	// EventSpeechStopped fires when server VAD detects the learner went quiet.
	EventSpeechStopped EventType = "input_audio_buffer.speech_stopped"

	// EventUserTranscription carries the transcription of the learner's
	// utterance once the input transcription model finishes.
	EventUserTranscription EventType = "conversation.item.input_audio_transcription.completed"

	// EventError is a non-fatal upstream error report.
	EventError EventType = "error"

	// EventUnknown is the explicit unrecognised variant; the raw type string
	// is preserved in [Event.RawType].
	EventUnknown EventType = "unknown"
)

// ErrorDetail is the nested error object of an upstream error event:
// {"type":"error","error":{"type":"...","code":"...","message":"..."}}.
type ErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Event is one decoded upstream event. Only the fields relevant to the given
// Type are populated.
type Event struct {
	Type EventType

	// Delta is the base64 audio chunk of an EventAudioDelta.
	Delta string

	// Transcript is the text of an EventTranscriptDone or
	// EventUserTranscription.
	Transcript string

	// Error is the detail payload of an EventError.
	Error *ErrorDetail

	// RawType is the undecoded "type" value when Type is EventUnknown.
	RawType string
}

// eventEnvelope is the superset shape used for decoding upstream frames.
type eventEnvelope struct {
	Type       string       `json:"type"`
	Delta      string       `json:"delta,omitempty"`
	Transcript string       `json:"transcript,omitempty"`
	Error      *ErrorDetail `json:"error,omitempty"`
}

// ParseEvent decodes one upstream frame. Malformed JSON is an error; a
// well-formed event of an unhandled type decodes to EventUnknown.
func ParseEvent(data []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("realtime: decode event: %w", err)
	}

	switch t := EventType(env.Type); t {
	case EventSessionCreated, EventAudioDone, EventSpeechStarted, EventSpeechStopped:
		return Event{Type: t}, nil
	case EventAudioDelta:
		return Event{Type: t, Delta: env.Delta}, nil
	case EventTranscriptDone, EventUserTranscription:
		return Event{Type: t, Transcript: env.Transcript}, nil
	case EventError:
		return Event{Type: t, Error: env.Error}, nil
	default:
		return Event{Type: EventUnknown, RawType: env.Type}, nil
	}
}

// ── Outgoing messages (bridge → upstream) ─────────────────────────────────────

// AppendAudioMessage forwards one base64 PCM16 chunk into the upstream input
// audio buffer.
type AppendAudioMessage struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

// AppendAudio builds an input_audio_buffer.append message.
func AppendAudio(audio string) AppendAudioMessage {
	return AppendAudioMessage{Type: "input_audio_buffer.append", Audio: audio}
}

// CommitMessage signals end of utterance to the upstream.
type CommitMessage struct {
	Type string `json:"type"`
}

// CommitAudio builds an input_audio_buffer.commit message.
func CommitAudio() CommitMessage {
	return CommitMessage{Type: "input_audio_buffer.commit"}
}

// ResponseCreateMessage asks the upstream to produce a response now.
type ResponseCreateMessage struct {
	Type string `json:"type"`
}

// CreateResponse builds a response.create message.
func CreateResponse() ResponseCreateMessage {
	return ResponseCreateMessage{Type: "response.create"}
}

// ItemCreateMessage inserts a conversation item, used to replay prior history
// into a fresh upstream session.
type ItemCreateMessage struct {
	Type string           `json:"type"`
	Item ConversationItem `json:"item"`
}

// ConversationItem is one replayed message turn.
type ConversationItem struct {
	Type    string             `json:"type"`
	Role    string             `json:"role,omitempty"`
	Content []ConversationPart `json:"content,omitempty"`
}

// ConversationPart is one content part of a conversation item.
type ConversationPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// CreateTextItem builds a conversation.item.create message for a single text
// turn. Assistant turns use the "text" part type; user and system turns use
// "input_text", matching what the upstream accepts per role.
func CreateTextItem(role, text string) ItemCreateMessage {
	switch role {
	case "assistant", "system":
	default:
		role = "user"
	}
	partType := "input_text"
	if role == "assistant" {
		partType = "text"
	}
	return ItemCreateMessage{
		Type: "conversation.item.create",
		Item: ConversationItem{
			Type:    "message",
			Role:    role,
			Content: []ConversationPart{{Type: partType, Text: text}},
		},
	}
}
