// Package workflow runs the batch workflows over the selected archive
// subjects, one subject at a time.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rcliao/vitesse-sync/internal/archive"
	"github.com/rcliao/vitesse-sync/internal/config"
	"github.com/rcliao/vitesse-sync/internal/ledger"
	"github.com/rcliao/vitesse-sync/internal/records"
	"github.com/rcliao/vitesse-sync/internal/runlog"
	"github.com/rcliao/vitesse-sync/internal/transfer"
)

// ErrEmptySelection aborts a run whose selection matches no subject.
var ErrEmptySelection = errors.New("selection matches no subject folders")

// Deps are the collaborators a workflow runs against.
type Deps struct {
	Config  config.Config
	Records records.System
	// Ledger is optional.
	Ledger ledger.Ledger
	// Client and Sequence are needed by Import only.
	Client   transfer.Client
	Sequence *transfer.Sequence
	// Console mirrors the run log; nil keeps it file-only.
	Console io.Writer
	Level   zapcore.Level
	Now     func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Summary is what a workflow reports back to its caller.
type Summary struct {
	Workflow       string          `json:"workflow"`
	RunID          string          `json:"run_id,omitempty"`
	LogPath        string          `json:"log_path"`
	FailureLogPath string          `json:"failure_log_path,omitempty"`
	ResultsPath    string          `json:"results_path,omitempty"`
	Subjects       []SubjectResult `json:"subjects"`
	Failures       int             `json:"failures"`
}

// SubjectResult is one subject's line in a Summary.
type SubjectResult struct {
	Folder    string `json:"folder"`
	SubjectID string `json:"subject_id,omitempty"`
	Failed    bool   `json:"failed"`
	Error     string `json:"error,omitempty"`
	Detail    any    `json:"detail,omitempty"`
}

// Select validates the configuration and resolves the subjects to process.
// Any error here is a configuration error and must abort the run.
func Select(cfg config.Config) ([]archive.Subject, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	subjects, err := archive.ListSubjects(cfg.StoragePath)
	if err != nil {
		return nil, err
	}
	idx, err := cfg.Selection.Resolve(len(subjects))
	if err != nil {
		return nil, err
	}
	picked := archive.Select(subjects, idx)
	if len(picked) == 0 {
		return nil, fmt.Errorf("%w: %s of %d", ErrEmptySelection, cfg.Selection, len(subjects))
	}
	return picked, nil
}

func bounds(subjects []archive.Subject) (string, string) {
	return subjects[0].Name, subjects[len(subjects)-1].Name
}

// run carries the logging and ledger state of one workflow invocation.
type run struct {
	log     *runlog.Log
	ledger  ledger.Ledger
	id      string
	summary *Summary
}

func (d Deps) start(ctx context.Context, workflow, logName string) (*run, error) {
	l, err := runlog.Open(d.Config.LogDirectory(), logName, d.Console, d.Level)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	r := &run{log: l, ledger: d.Ledger, summary: &Summary{Workflow: workflow, LogPath: l.Path}}
	if d.Ledger != nil {
		lr, err := d.Ledger.StartRun(ctx, workflow, d.Config.Selection.String())
		if err != nil {
			l.Warn("Run ledger unavailable", zap.Error(err))
			r.ledger = nil
		} else {
			r.id = lr.ID
			r.summary.RunID = lr.ID
		}
	}
	l.Info("Run started", zap.String("workflow", workflow), zap.String("selection", d.Config.Selection.String()))
	return r, nil
}

func (r *run) record(ctx context.Context, res SubjectResult) {
	r.summary.Subjects = append(r.summary.Subjects, res)
	status := ledger.StatusOK
	if res.Failed {
		status = ledger.StatusFailed
		r.summary.Failures++
	}
	if r.ledger == nil {
		return
	}
	detail := res.Detail
	if res.Error != "" {
		detail = map[string]any{"error": res.Error, "detail": res.Detail}
	}
	if err := r.ledger.Record(ctx, r.id, res.Folder, res.SubjectID, status, detail); err != nil {
		r.log.Warn("Could not record subject result", zap.String("folder", res.Folder), zap.Error(err))
	}
}

func (r *run) finish(ctx context.Context) *Summary {
	if r.ledger != nil {
		if _, err := r.ledger.FinishRun(ctx, r.id); err != nil {
			r.log.Warn("Could not finish run in ledger", zap.Error(err))
		}
	}
	r.log.Info("Run finished",
		zap.Int("subjects", len(r.summary.Subjects)),
		zap.Int("failures", r.summary.Failures))
	_ = r.log.Close()
	return r.summary
}
