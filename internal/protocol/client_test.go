package protocol

import (
	"encoding/json"
	"testing"
)

func TestParseClientEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
		want ClientEvent
	}{
		{
			name: "audio append",
			data: `{"type":"input_audio_buffer.append","audio":"UklGRg=="}`,
			want: ClientEvent{Type: ClientAudioAppend, Audio: "UklGRg=="},
		},
		{
			name: "audio commit",
			data: `{"type":"input_audio_buffer.commit"}`,
			want: ClientEvent{Type: ClientAudioCommit},
		},
		{
			name: "response create",
			data: `{"type":"response.create"}`,
			want: ClientEvent{Type: ClientResponseCreate},
		},
		{
			name: "unknown type preserved",
			data: `{"type":"session.hello"}`,
			want: ClientEvent{Type: ClientUnknown, RawType: "session.hello"},
		},
		{
			name: "unknown type ignores extra fields",
			data: `{"type":"custom.ping","payload":{"n":1}}`,
			want: ClientEvent{Type: ClientUnknown, RawType: "custom.ping"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseClientEvent([]byte(tc.data))
			if err != nil {
				t.Fatalf("ParseClientEvent: %v", err)
			}
			if got != tc.want {
				t.Errorf("event = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestParseClientEvent_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{"malformed json", `{"type":`},
		{"not an object", `[1,2,3]`},
		{"missing type", `{"audio":"abc"}`},
		{"empty type", `{"type":""}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseClientEvent([]byte(tc.data)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestServerEvent_Encode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ev   ServerEvent
		want map[string]string
	}{
		{
			name: "audio delta",
			ev:   AudioDelta("UklGRg=="),
			want: map[string]string{"type": "audio.delta", "delta": "UklGRg=="},
		},
		{
			name: "audio done",
			ev:   AudioDone(),
			want: map[string]string{"type": "audio.done"},
		},
		{
			name: "transcript done",
			ev:   TranscriptDone("Hello!"),
			want: map[string]string{"type": "transcript.done", "transcript": "Hello!"},
		},
		{
			name: "speech started",
			ev:   SpeechStarted(),
			want: map[string]string{"type": "speech.started"},
		},
		{
			name: "user transcript",
			ev:   UserTranscript("Hi there"),
			want: map[string]string{"type": "user.transcript", "transcript": "Hi there"},
		},
		{
			name: "error",
			ev:   ErrorEvent("upstream error"),
			want: map[string]string{"type": "error", "message": "upstream error"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			data, err := tc.ev.Encode()
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}

			var got map[string]string
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal encoded event: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Errorf("encoded fields = %v, want %v", got, tc.want)
			}
			for k, v := range tc.want {
				if got[k] != v {
					t.Errorf("field %q = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}
