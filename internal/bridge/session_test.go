package bridge

import (
	"testing"
	"time"

	"github.com/malangee/ai-engine/internal/realtime"
)

func TestSession_StartsInitializing(t *testing.T) {
	t.Parallel()
	s := NewSession("sess-1", realtime.SessionConfig{}, Scenario{})
	if got := s.State(); got != StateInitializing {
		t.Errorf("state = %q, want %q", got, StateInitializing)
	}
}

func TestRecentContext_LimitAndOrder(t *testing.T) {
	t.Parallel()
	s := NewSession("sess-1", realtime.SessionConfig{}, Scenario{})
	s.appendMessage(RoleUser, "one", 0)
	s.appendMessage(RoleAssistant, "two", 0)
	s.appendMessage(RoleUser, "three", 0)

	got := s.RecentContext(2)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Content != "two" || got[1].Content != "three" {
		t.Errorf("messages = %q, %q; want two, three", got[0].Content, got[1].Content)
	}
}

func TestRecentContext_LimitAboveLength(t *testing.T) {
	t.Parallel()
	s := NewSession("sess-1", realtime.SessionConfig{}, Scenario{})
	s.appendMessage(RoleUser, "only", 0)

	got := s.RecentContext(10)
	if len(got) != 1 {
		t.Errorf("len = %d, want 1", len(got))
	}
}

func TestRecentContext_EmptyAndZeroLimit(t *testing.T) {
	t.Parallel()
	s := NewSession("sess-1", realtime.SessionConfig{}, Scenario{})

	if got := s.RecentContext(5); got != nil {
		t.Errorf("empty transcript RecentContext = %v, want nil", got)
	}

	s.appendMessage(RoleUser, "hello", 0)
	if got := s.RecentContext(0); got != nil {
		t.Errorf("RecentContext(0) = %v, want nil", got)
	}
	if got := s.RecentContext(-1); got != nil {
		t.Errorf("RecentContext(-1) = %v, want nil", got)
	}
}

func TestRecentContext_ReturnsCopy(t *testing.T) {
	t.Parallel()
	s := NewSession("sess-1", realtime.SessionConfig{}, Scenario{})
	s.appendMessage(RoleUser, "original", 0)

	first := s.RecentContext(1)
	first[0].Content = "mutated"

	second := s.RecentContext(1)
	if second[0].Content != "original" {
		t.Errorf("transcript was mutated through a RecentContext slice")
	}
}

func TestRecentContext_Idempotent(t *testing.T) {
	t.Parallel()
	s := NewSession("sess-1", realtime.SessionConfig{}, Scenario{})
	s.appendMessage(RoleUser, "a", 0)
	s.appendMessage(RoleAssistant, "b", 0)

	first := s.RecentContext(2)
	second := s.RecentContext(2)
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("message %d differs between reads", i)
		}
	}
}

func TestSeedHistory_NotInTranscript(t *testing.T) {
	t.Parallel()
	s := NewSession("sess-1", realtime.SessionConfig{}, Scenario{})
	s.SeedHistory([]Message{
		{Role: RoleUser, Content: "from last time"},
	})

	if got := s.TranscriptLen(); got != 0 {
		t.Errorf("transcript length = %d, want 0", got)
	}
	if got := len(s.seedHistory()); got != 1 {
		t.Errorf("seed length = %d, want 1", got)
	}
}

func TestSpeechDuration_StartStopConsume(t *testing.T) {
	t.Parallel()
	s := NewSession("sess-1", realtime.SessionConfig{}, Scenario{})
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	s.markSpeechStarted(base)
	s.markSpeechStopped(base.Add(2 * time.Second))

	d := s.consumeSpeechDuration(base.Add(3 * time.Second))
	if d != 2*time.Second {
		t.Errorf("utterance duration = %v, want 2s", d)
	}
	if got := s.UserSpeechDuration(); got != 2*time.Second {
		t.Errorf("total = %v, want 2s", got)
	}
}

func TestSpeechDuration_OpenIntervalClosedAtConsume(t *testing.T) {
	t.Parallel()
	s := NewSession("sess-1", realtime.SessionConfig{}, Scenario{})
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	// VAD start without a stop: the transcription completion closes it.
	s.markSpeechStarted(base)
	d := s.consumeSpeechDuration(base.Add(1500 * time.Millisecond))
	if d != 1500*time.Millisecond {
		t.Errorf("utterance duration = %v, want 1.5s", d)
	}
}

func TestSpeechDuration_AccumulatesAcrossTurns(t *testing.T) {
	t.Parallel()
	s := NewSession("sess-1", realtime.SessionConfig{}, Scenario{})
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	s.markSpeechStarted(base)
	s.markSpeechStopped(base.Add(time.Second))
	s.consumeSpeechDuration(base.Add(time.Second))

	s.markSpeechStarted(base.Add(5 * time.Second))
	s.markSpeechStopped(base.Add(8 * time.Second))
	s.consumeSpeechDuration(base.Add(8 * time.Second))

	if got := s.UserSpeechDuration(); got != 4*time.Second {
		t.Errorf("total = %v, want 4s", got)
	}
}

func TestSpeechDuration_StopWithoutStartIsNoop(t *testing.T) {
	t.Parallel()
	s := NewSession("sess-1", realtime.SessionConfig{}, Scenario{})
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	s.markSpeechStopped(base)
	if d := s.consumeSpeechDuration(base); d != 0 {
		t.Errorf("duration = %v, want 0", d)
	}
}

func TestMarkScenarioCompleted_FirstCallWins(t *testing.T) {
	t.Parallel()
	s := NewSession("sess-1", realtime.SessionConfig{}, Scenario{Title: "Ordering coffee"})
	first := time.Date(2026, 3, 14, 9, 5, 0, 0, time.UTC)
	second := first.Add(time.Minute)

	s.MarkScenarioCompleted(first)
	s.MarkScenarioCompleted(second)

	got := s.scenarioCompletedAt()
	if got == nil {
		t.Fatal("completedAt is nil")
	}
	if !got.Equal(first) {
		t.Errorf("completedAt = %v, want %v", got, first)
	}
}
