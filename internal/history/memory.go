package history

import (
	"context"
	"sync"

	"github.com/malangee/ai-engine/internal/bridge"
)

// Compile-time interface checks.
var (
	_ bridge.Recorder       = (*MemoryStore)(nil)
	_ bridge.HistoryFetcher = (*MemoryStore)(nil)
)

// MemoryStore keeps reports in process memory. It backs DSN-less deployments
// and tests; contents are lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]*bridge.Report
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: make(map[string]*bridge.Report)}
}

// SaveReport implements [bridge.Recorder]. A later save for the same session
// appends its messages and adds its durations to the stored report, so a
// resumed session accumulates its full history instead of keeping only the
// last connection's slice.
func (s *MemoryStore) SaveReport(_ context.Context, r *bridge.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.reports[r.SessionID]
	if !ok {
		cp := *r
		cp.Messages = append([]bridge.Message(nil), r.Messages...)
		s.reports[r.SessionID] = &cp
		return nil
	}

	prev.OwnerID = r.OwnerID
	prev.Title = r.Title
	prev.EndedAt = r.EndedAt
	prev.TotalDuration += r.TotalDuration
	prev.UserSpeechDuration += r.UserSpeechDuration
	prev.Messages = append(prev.Messages, r.Messages...)
	prev.Scenario = r.Scenario
	if prev.ScenarioCompletedAt == nil {
		prev.ScenarioCompletedAt = r.ScenarioCompletedAt
	}
	return nil
}

// History implements [bridge.HistoryFetcher].
func (s *MemoryStore) History(_ context.Context, sessionID, ownerID string) ([]bridge.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[sessionID]
	if !ok || r.OwnerID != ownerID {
		return nil, nil
	}
	return append([]bridge.Message(nil), r.Messages...), nil
}

// Report returns the stored report for sessionID, or nil when absent.
func (s *MemoryStore) Report(sessionID string) *bridge.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reports[sessionID]
}

// Len returns the number of stored reports.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}
