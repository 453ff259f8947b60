package types

import "time"

// State represents a run's position in the pipeline state machine
type State string

const (
	StateInit       State = "init"
	StateFetching   State = "fetching"
	StateEnriching  State = "enriching"
	StateSkipped    State = "skipped"
	StateDelivering State = "delivering"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Terminal reports whether no further transitions are possible
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Stage is one retried unit of a run
type Stage string

const (
	StageFetch   Stage = "fetch"
	StageEnrich  Stage = "enrich"
	StageDeliver Stage = "deliver"
)

// Stages lists every stage in execution order
var Stages = []Stage{StageFetch, StageEnrich, StageDeliver}

// LogEntry represents a single log line with timestamp
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id,omitempty"`
	ClientID  string    `json:"client_id,omitempty"`
	Message   string    `json:"message"`
}

// RunSnapshot is the externally visible view of a pipeline run
type RunSnapshot struct {
	RunID      string        `json:"run_id"`
	ClientID   string        `json:"client_id"`
	TaskName   string        `json:"task_name"`
	State      State         `json:"state"`
	Stage      Stage         `json:"stage,omitempty"`
	Attempts   map[Stage]int `json:"attempts"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Fetched    int           `json:"fetched"`
	Added      int           `json:"added"`
	Annotated  int           `json:"annotated"`
	Delivered  int           `json:"delivered"`
	Error      string        `json:"error,omitempty"`
}

// FailureRecord is emitted once for every run that ends in StateFailed
type FailureRecord struct {
	TaskName string    `json:"task_name"`
	RunID    string    `json:"run_id"`
	ClientID string    `json:"client_id"`
	Stage    Stage     `json:"stage"`
	Attempts int       `json:"attempts"`
	Fatal    bool      `json:"fatal"`
	Summary  string    `json:"summary"`
	At       time.Time `json:"at"`
}

// StatusResponse is the JSON response for GET /api/status
type StatusResponse struct {
	Active   []RunSnapshot   `json:"active"`
	Recent   []RunSnapshot   `json:"recent"`
	Failures []FailureRecord `json:"failures"`
	Logs     []LogEntry      `json:"logs"`
}

// StageResult carries the counters a stage attempt reports back to its run
type StageResult struct {
	Fetched   int
	Added     int
	Annotated int
	Delivered int
}
