// Package ledger keeps a history of workflow runs and their per-subject results.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrRunNotFound is returned when no run matches the given id.
var ErrRunNotFound = errors.New("run not found")

// Subject result statuses.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Run is one invocation of a workflow.
type Run struct {
	ID         string     `json:"id"`
	Workflow   string     `json:"workflow"`
	Selection  string     `json:"selection,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Subjects   int        `json:"subjects"`
	Failures   int        `json:"failures"`
}

// SubjectResult is the outcome of one subject within a run.
type SubjectResult struct {
	Folder     string          `json:"folder"`
	SubjectID  string          `json:"subject_id,omitempty"`
	Status     string          `json:"status"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// ListParams holds filters for listing runs.
type ListParams struct {
	Workflow string
	Limit    int
}

// Ledger defines the run history interface.
type Ledger interface {
	// StartRun opens a run record and returns it.
	StartRun(ctx context.Context, workflow, selection string) (*Run, error)

	// Record appends one subject result to a run. detail is stored as JSON.
	Record(ctx context.Context, runID, folder, subjectID, status string, detail any) error

	// FinishRun stamps the finish time and the subject and failure counts.
	FinishRun(ctx context.Context, runID string) (*Run, error)

	// ListRuns lists runs newest first.
	ListRuns(ctx context.Context, p ListParams) ([]Run, error)

	// GetRun returns a run and its results. "latest" selects the newest run.
	GetRun(ctx context.Context, id string) (*Run, []SubjectResult, error)

	// Close closes the ledger.
	Close() error
}
