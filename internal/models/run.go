package models

import "time"

type RunStatus string

const (
	RunStatusReady     RunStatus = "READY"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusTimingOut RunStatus = "TIMING-OUT"
	RunStatusAborting  RunStatus = "ABORTING"
	RunStatusSucceeded RunStatus = "SUCCEEDED"
	RunStatusFailed    RunStatus = "FAILED"
	RunStatusTimedOut  RunStatus = "TIMED-OUT"
	RunStatusAborted   RunStatus = "ABORTED"
)

// IsTerminal reports whether the run will not change status any more.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusTimedOut, RunStatusAborted:
		return true
	}
	return false
}

// Run is an actor run as reported by the remote service.
type Run struct {
	ID               string     `json:"id"`
	ActID            string     `json:"actId"`
	Status           RunStatus  `json:"status"`
	DefaultDatasetID string     `json:"defaultDatasetId"`
	StartedAt        *time.Time `json:"startedAt,omitempty"`
	FinishedAt       *time.Time `json:"finishedAt,omitempty"`
}

// Build is the subset of an actor build needed to resolve input defaults.
type Build struct {
	ID              string          `json:"id"`
	BuildNumber     string          `json:"buildNumber"`
	ActorDefinition ActorDefinition `json:"actorDefinition"`
}

type ActorDefinition struct {
	Input InputSchema `json:"input"`
}

type InputSchema struct {
	Properties map[string]InputProperty `json:"properties"`
}

type InputProperty struct {
	Type    string `json:"type"`
	Prefill any    `json:"prefill,omitempty"`
	Default any    `json:"default,omitempty"`
}

// RunRecord is the persisted history of one row execution.
type RunRecord struct {
	ID           string     `json:"id" db:"id"`
	BatchID      string     `json:"batch_id" db:"batch_id"`
	RowIndex     int        `json:"row_index" db:"row_index"`
	TenantID     string     `json:"tenant_id" db:"tenant_id"`
	ActorID      string     `json:"actor_id" db:"actor_id"`
	RunID        *string    `json:"run_id" db:"run_id"`
	DatasetID    *string    `json:"dataset_id" db:"dataset_id"`
	Status       string     `json:"status" db:"status"`
	ItemCount    int64      `json:"item_count" db:"item_count"`
	ErrorMessage *string    `json:"error_message" db:"error_message"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	FinishedAt   *time.Time `json:"finished_at" db:"finished_at"`
}

// RunStatDay holds counts for a single day.
type RunStatDay struct {
	Day       time.Time `json:"day" db:"day"`
	Succeeded int       `json:"succeeded" db:"succeeded"`
	Failed    int       `json:"failed" db:"failed"`
	Running   int       `json:"running" db:"running"`
}

// RunStat is the aggregated history over a period, plus per-day details.
type RunStat struct {
	Total       int          `json:"total" db:"total"`
	Succeeded   int          `json:"succeeded" db:"succeeded"`
	Failed      int          `json:"failed" db:"failed"`
	Running     int          `json:"running" db:"running"`
	Items       int64        `json:"items" db:"items"`
	SuccessRate float64      `json:"success_rate" db:"success_rate"` // succeeded/total
	PerDay      []RunStatDay `json:"per_day" db:"per_day"`
}
