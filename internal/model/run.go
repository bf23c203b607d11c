package model

import "time"

// RunStatus represents the current state of a pipeline run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusFetching   RunStatus = "fetching"
	RunStatusAnalyzing  RunStatus = "analyzing"
	RunStatusGenerating RunStatus = "generating"
	RunStatusComplete   RunStatus = "complete"
	RunStatusDegraded   RunStatus = "degraded"
	RunStatusFailed     RunStatus = "failed"
)

// Run represents a single insight request.
type Run struct {
	ID        string     `json:"id"`
	Input     SalesInput `json:"input"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// PhaseStatus represents the outcome of a pipeline phase.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// PhaseResult holds the outcome of a pipeline phase.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RunResult is the final output of a pipeline run.
type RunResult struct {
	RunID   string        `json:"run_id,omitempty"`
	Report  InsightReport `json:"report"`
	Context SalesContext  `json:"context"`
	Phases  []PhaseResult `json:"phases"`
}

// RunPhase is the persisted record of one phase of a run.
type RunPhase struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Name      string       `json:"name"`
	Status    PhaseStatus  `json:"status"`
	Result    *PhaseResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}
