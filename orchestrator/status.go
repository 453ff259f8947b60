package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"newsdesk/types"
)

// Status holds the view of active and recently finished runs with
// thread-safe access
type Status struct {
	mu sync.RWMutex

	active map[string]*types.RunSnapshot

	// ring buffers
	recent   []types.RunSnapshot
	failures []types.FailureRecord
	logs     []types.LogEntry
	max      int

	now func() time.Time
}

// NewStatus creates a status recorder keeping the last max entries of each history
func NewStatus(max int) *Status {
	if max <= 0 {
		max = 50
	}
	return &Status{
		active: make(map[string]*types.RunSnapshot),
		max:    max,
		now:    time.Now,
	}
}

// Begin registers a new active run
func (s *Status) Begin(snap types.RunSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.Attempts == nil {
		snap.Attempts = make(map[types.Stage]int)
	}
	s.active[snap.RunID] = &snap
	s.addLog(snap.RunID, snap.ClientID, fmt.Sprintf("run started for %s", snap.TaskName))
}

// SetState moves an active run to state, optionally within stage
func (s *Status) SetState(runID string, state types.State, stage types.Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.active[runID]
	if !ok {
		return
	}
	snap.State = state
	if stage != "" {
		snap.Stage = stage
	}
	s.addLog(runID, snap.ClientID, fmt.Sprintf("state %s", state))
}

// Attempt records that stage was attempted n times
func (s *Status) Attempt(runID string, stage types.Stage, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap, ok := s.active[runID]; ok {
		snap.Attempts[stage] = n
	}
}

// Apply adds a stage's counters to the run
func (s *Status) Apply(runID string, res types.StageResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.active[runID]
	if !ok {
		return
	}
	snap.Fetched += res.Fetched
	snap.Added += res.Added
	snap.Annotated += res.Annotated
	snap.Delivered += res.Delivered
}

// Finish moves a run to the recent history and returns its final snapshot
func (s *Status) Finish(runID string, state types.State, runErr error) types.RunSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.active[runID]
	if !ok {
		return types.RunSnapshot{RunID: runID, State: state}
	}
	delete(s.active, runID)

	at := s.now()
	snap.State = state
	snap.FinishedAt = &at
	msg := fmt.Sprintf("run finished: %s", state)
	if runErr != nil {
		snap.Error = runErr.Error()
		msg = fmt.Sprintf("run finished: %s: %v", state, runErr)
	}
	s.addLog(runID, snap.ClientID, msg)

	final := copySnapshot(*snap)
	s.recent = append(s.recent, final)
	if len(s.recent) > s.max {
		s.recent = s.recent[len(s.recent)-s.max:]
	}
	return copySnapshot(final)
}

// HandleFailure keeps the record in the failure history
func (s *Status) HandleFailure(ctx context.Context, rec types.FailureRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, rec)
	if len(s.failures) > s.max {
		s.failures = s.failures[len(s.failures)-s.max:]
	}
}

// AddLog adds a log entry
func (s *Status) AddLog(runID, clientID, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLog(runID, clientID, message)
}

// addLog must be called with the lock held
func (s *Status) addLog(runID, clientID, message string) {
	s.logs = append(s.logs, types.LogEntry{
		Timestamp: s.now(),
		RunID:     runID,
		ClientID:  clientID,
		Message:   message,
	})
	if len(s.logs) > s.max {
		s.logs = s.logs[len(s.logs)-s.max:]
	}
}

// Get returns the run's snapshot, active or recent
func (s *Status) Get(runID string) (types.RunSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if snap, ok := s.active[runID]; ok {
		return copySnapshot(*snap), true
	}
	for i := len(s.recent) - 1; i >= 0; i-- {
		if s.recent[i].RunID == runID {
			return copySnapshot(s.recent[i]), true
		}
	}
	return types.RunSnapshot{}, false
}

// Snapshot returns a copy of everything recorded
func (s *Status) Snapshot() types.StatusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp := types.StatusResponse{
		Active:   make([]types.RunSnapshot, 0, len(s.active)),
		Recent:   make([]types.RunSnapshot, 0, len(s.recent)),
		Failures: append([]types.FailureRecord{}, s.failures...),
		Logs:     append([]types.LogEntry{}, s.logs...),
	}
	for _, snap := range s.active {
		resp.Active = append(resp.Active, copySnapshot(*snap))
	}
	sort.Slice(resp.Active, func(i, j int) bool {
		return resp.Active[i].StartedAt.Before(resp.Active[j].StartedAt)
	})
	for _, snap := range s.recent {
		resp.Recent = append(resp.Recent, copySnapshot(snap))
	}
	return resp
}

func copySnapshot(s types.RunSnapshot) types.RunSnapshot {
	attempts := make(map[types.Stage]int, len(s.Attempts))
	for k, v := range s.Attempts {
		attempts[k] = v
	}
	s.Attempts = attempts
	if s.FinishedAt != nil {
		at := *s.FinishedAt
		s.FinishedAt = &at
	}
	return s
}
