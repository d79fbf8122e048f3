package bridge

import (
	"github.com/malangee/ai-engine/internal/protocol"
	"github.com/malangee/ai-engine/internal/realtime"
)

// translateClient maps one inbound client event to its upstream message. The
// second return is false for events the bridge ignores (the unrecognised
// variant); callers log and continue.
func translateClient(ev protocol.ClientEvent) (any, bool) {
	switch ev.Type {
	case protocol.ClientAudioAppend:
		return realtime.AppendAudio(ev.Audio), true
	case protocol.ClientAudioCommit:
		return realtime.CommitAudio(), true
	case protocol.ClientResponseCreate:
		return realtime.CreateResponse(), true
	default:
		return nil, false
	}
}

// upstreamAction is the outcome of translating one upstream event: zero or
// more client-bound events plus the transcript and timing side effects the
// relay loop must apply. The translation itself is pure; all mutable state
// lives on the Session.
type upstreamAction struct {
	// forward is sent to the client in order.
	forward []protocol.ServerEvent

	// appendRole, when non-empty, appends Message{appendRole, appendText} to
	// the transcript before forwarding.
	appendRole Role
	appendText string

	// speechStarted / speechStopped drive the user-speech duration counters.
	speechStarted bool
	speechStopped bool
}

// translateUpstream maps one upstream event to its client-side action.
// Unrecognised events and log-only events translate to the zero action.
func translateUpstream(ev realtime.Event) upstreamAction {
	switch ev.Type {
	case realtime.EventAudioDelta:
		// Streamed audio is forwarded immediately and unbuffered so the
		// client can start playback with minimal latency.
		return upstreamAction{forward: []protocol.ServerEvent{protocol.AudioDelta(ev.Delta)}}

	case realtime.EventAudioDone:
		return upstreamAction{forward: []protocol.ServerEvent{protocol.AudioDone()}}

	case realtime.EventTranscriptDone:
		return upstreamAction{
			forward:    []protocol.ServerEvent{protocol.TranscriptDone(ev.Transcript)},
			appendRole: RoleAssistant,
			appendText: ev.Transcript,
		}

	case realtime.EventSpeechStarted:
		return upstreamAction{
			forward:       []protocol.ServerEvent{protocol.SpeechStarted()},
			speechStarted: true,
		}

	case realtime.EventSpeechStopped:
		return upstreamAction{speechStopped: true}

	case realtime.EventUserTranscription:
		return upstreamAction{
			forward:    []protocol.ServerEvent{protocol.UserTranscript(ev.Transcript)},
			appendRole: RoleUser,
			appendText: ev.Transcript,
		}

	case realtime.EventError:
		// The upstream payload is never forwarded verbatim; the client gets a
		// structured error event and the session continues.
		return upstreamAction{forward: []protocol.ServerEvent{protocol.ErrorEvent("upstream error")}}

	default:
		// session.created, unrecognised: logged by the relay loop only.
		return upstreamAction{}
	}
}
