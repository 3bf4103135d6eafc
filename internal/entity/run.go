package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
)

// Run is one reconciliation run for data transfer between layers.
type Run struct {
	ID           uuid.UUID           `json:"id"`
	PackagePath  string              `json:"package_path"`
	CandidateDir string              `json:"candidate_dir"`
	OutputPath   string              `json:"output_path"`
	Status       constants.RunStatus `json:"status"`
	StartedAt    time.Time           `json:"started_at"`
	FinishedAt   *time.Time          `json:"finished_at,omitempty"`
	Summary      *RunSummary         `json:"summary,omitempty"`
	ErrorMessage *string             `json:"error_message,omitempty"`
}

// RunSummary counts a run's outcomes.
type RunSummary struct {
	ExistingUnits  int                              `json:"existing_units"`
	CandidateUnits int                              `json:"candidate_units"`
	Decisions      map[constants.DecisionKind]int   `json:"decisions"`
	Diagnostics    map[constants.DiagnosticCode]int `json:"diagnostics"`
	PagesWritten   int                              `json:"pages_written"`
}
