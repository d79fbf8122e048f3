package bridge

import (
	"sync"
	"time"

	"github.com/malangee/ai-engine/internal/realtime"
)

// Role identifies the speaker of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// State is the lifecycle state of a session.
type State string

const (
	StateInitializing State = "initializing"
	StateActive       State = "active"
	StateClosing      State = "closing"
	StateClosed       State = "closed"
	StateErrored      State = "errored"
)

// Message is one transcript entry. Messages are immutable once appended; the
// transcript is append-only and strictly chronological.
type Message struct {
	// Role is who spoke: RoleUser or RoleAssistant.
	Role Role

	// Content is the utterance text.
	Content string

	// Timestamp is when the entry was recorded.
	Timestamp time.Time

	// Duration is the spoken length of the utterance where known (user
	// messages, measured by upstream VAD). Zero when unknown.
	Duration time.Duration
}

// Scenario is optional conversation framing supplied at session start.
type Scenario struct {
	Title   string
	Place   string
	Partner string
	Goal    string
}

// Session holds one bridged conversation's state. It is owned by the
// [Handler] running it; the only cross-goroutine readers are
// [Session.RecentContext] callers, so every transcript access goes through
// the mutex and reads return copies.
type Session struct {
	// ID is the opaque session identifier, caller-supplied or generated.
	ID string

	// Config is the upstream handshake configuration. Immutable for the
	// session's lifetime.
	Config realtime.SessionConfig

	// Scenario is optional framing metadata, folded into the Report.
	Scenario Scenario

	// StartedAt is when the session was created.
	StartedAt time.Time

	mu         sync.Mutex
	state      State
	transcript []Message
	seed       []Message

	// userSpeech accumulates total learner speaking time across turns.
	userSpeech time.Duration

	// speechStartedAt / pendingSpeech track the current learner utterance:
	// VAD start stamps speechStartedAt, VAD stop folds the elapsed time into
	// pendingSpeech, and the completed transcription consumes it as the
	// message duration.
	speechStartedAt time.Time
	pendingSpeech   time.Duration

	completedAt *time.Time
}

// NewSession creates a Session in the initializing state.
func NewSession(id string, cfg realtime.SessionConfig, scenario Scenario) *Session {
	return &Session{
		ID:        id,
		Config:    cfg,
		Scenario:  scenario,
		StartedAt: time.Now().UTC(),
		state:     StateInitializing,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// SeedHistory installs prior-conversation messages loaded before start. They
// are replayed upstream for continuity and are not part of this session's
// transcript.
func (s *Session) SeedHistory(msgs []Message) {
	s.mu.Lock()
	s.seed = msgs
	s.mu.Unlock()
}

func (s *Session) seedHistory() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seed
}

// appendMessage appends one immutable transcript entry.
func (s *Session) appendMessage(role Role, content string, d time.Duration) {
	s.mu.Lock()
	s.transcript = append(s.transcript, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
		Duration:  d,
	})
	s.mu.Unlock()
}

// RecentContext returns a copy of the last limit transcript messages, oldest
// first. Safe to call concurrently with active relaying; a reader never
// observes a partially-appended message. limit <= 0 returns nil.
func (s *Session) RecentContext(limit int) []Message {
	if limit <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.transcript)
	if n == 0 {
		return nil
	}
	if limit > n {
		limit = n
	}
	out := make([]Message, limit)
	copy(out, s.transcript[n-limit:])
	return out
}

// TranscriptLen returns the current transcript length.
func (s *Session) TranscriptLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transcript)
}

// snapshotTranscript returns a copy of the full transcript for report
// building.
func (s *Session) snapshotTranscript() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// markSpeechStarted stamps the beginning of a learner utterance.
func (s *Session) markSpeechStarted(at time.Time) {
	s.mu.Lock()
	s.speechStartedAt = at
	s.mu.Unlock()
}

// markSpeechStopped folds the elapsed utterance time into the pending speech
// duration. No-op if no start was observed.
func (s *Session) markSpeechStopped(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.speechStartedAt.IsZero() {
		return
	}
	if d := at.Sub(s.speechStartedAt); d > 0 {
		s.pendingSpeech += d
	}
	s.speechStartedAt = time.Time{}
}

// consumeSpeechDuration returns the duration of the utterance whose
// transcription just completed and adds it to the session total. If VAD never
// reported a stop, the open interval is closed at now.
func (s *Session) consumeSpeechDuration(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.speechStartedAt.IsZero() {
		if d := now.Sub(s.speechStartedAt); d > 0 {
			s.pendingSpeech += d
		}
		s.speechStartedAt = time.Time{}
	}
	d := s.pendingSpeech
	s.pendingSpeech = 0
	s.userSpeech += d
	return d
}

// UserSpeechDuration returns total learner speaking time so far.
func (s *Session) UserSpeechDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userSpeech
}

// MarkScenarioCompleted records the moment the learner reached the scenario
// goal. First call wins; later calls are no-ops.
func (s *Session) MarkScenarioCompleted(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.completedAt == nil {
		t := at.UTC()
		s.completedAt = &t
	}
}

func (s *Session) scenarioCompletedAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completedAt
}
