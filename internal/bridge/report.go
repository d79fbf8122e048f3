package bridge

import (
	"fmt"
	"time"
)

// Report is the write-once end-of-session summary handed to the persistence
// collaborator. The handler drops its reference after handing it off.
type Report struct {
	// SessionID keys the report; the persistence collaborator upserts on it.
	SessionID string

	// OwnerID scopes the report to the user who ran the session.
	OwnerID string

	// Title is a human-readable session label.
	Title string

	StartedAt time.Time
	EndedAt   time.Time

	// TotalDuration is wall-clock session length.
	TotalDuration time.Duration

	// UserSpeechDuration is cumulative learner speaking time.
	UserSpeechDuration time.Duration

	// Messages is the full ordered transcript.
	Messages []Message

	// Scenario is the optional conversation framing, zero value when the
	// session had none.
	Scenario Scenario

	// ScenarioCompletedAt is set when the learner reached the scenario goal.
	ScenarioCompletedAt *time.Time
}

// BuildReport assembles a Report from accumulated session state. Pure: no
// network or storage access. endedAt must not precede s.StartedAt.
func BuildReport(s *Session, endedAt time.Time) *Report {
	title := s.Scenario.Title
	if title == "" {
		title = fmt.Sprintf("Conversation %s", s.StartedAt.Format("2006-01-02 15:04"))
	}
	return &Report{
		SessionID:           s.ID,
		Title:               title,
		StartedAt:           s.StartedAt,
		EndedAt:             endedAt.UTC(),
		TotalDuration:       endedAt.Sub(s.StartedAt),
		UserSpeechDuration:  s.UserSpeechDuration(),
		Messages:            s.snapshotTranscript(),
		Scenario:            s.Scenario,
		ScenarioCompletedAt: s.scenarioCompletedAt(),
	}
}
