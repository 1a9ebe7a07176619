package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rcliao/vitesse-sync/internal/archive"
	"github.com/rcliao/vitesse-sync/internal/model"
	"github.com/rcliao/vitesse-sync/internal/record"
	"github.com/rcliao/vitesse-sync/internal/records"
)

// DemographicsSource returns canonical subject demographics. An unknown
// subject is reported with an error wrapping records.ErrSubjectNotFound.
type DemographicsSource interface {
	Demographics(ctx context.Context, subjectID string) (model.Demographics, error)
}

// Options tune an Engine.
type Options struct {
	// StagingDir receives repaired copies as <staging>/<subject>/<fraction>.
	// Empty means the fraction's sibling resend folder.
	StagingDir string
	// RatePerSecond paces submissions; 0 disables pacing.
	RatePerSecond float64
}

// Engine drives a Client over record files.
type Engine struct {
	client  Client
	seq     *Sequence
	dir     DemographicsSource
	limiter *rate.Limiter
	opts    Options
	log     *zap.Logger
}

// New returns an Engine. The sequence is shared with every other user of
// the same connection.
func New(client Client, seq *Sequence, dir DemographicsSource, opts Options, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{client: client, seq: seq, dir: dir, opts: opts, log: log}
	if opts.RatePerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}
	return e
}

// Send submits the files in order. It returns one outcome per file and
// whether any file came back with an identity mismatch.
func (e *Engine) Send(ctx context.Context, paths []string, log *zap.Logger) ([]model.TransferOutcome, bool) {
	if log == nil {
		log = e.log
	}
	outcomes := make([]model.TransferOutcome, 0, len(paths))
	mismatch := false
	for _, p := range paths {
		o := e.sendOne(ctx, p, log)
		mismatch = mismatch || o.Mismatch
		outcomes = append(outcomes, o)
	}
	return outcomes, mismatch
}

func (e *Engine) sendOne(ctx context.Context, path string, log *zap.Logger) model.TransferOutcome {
	out := model.TransferOutcome{RecordPath: path}
	file := filepath.Base(path)

	inst, err := record.ReadInstance(path)
	if err != nil {
		out.Err = err.Error()
		log.Error("Could not read record", zap.String("file", file), zap.Error(err))
		return out
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			out.Err = err.Error()
			log.Error("Submission not paced", zap.String("file", file), zap.Error(err))
			return out
		}
	}

	msgID := e.seq.Next()
	code, err := e.client.Store(ctx, inst, msgID)
	if err != nil {
		out.Err = err.Error()
		log.Error("Store failed", zap.String("file", file), zap.Uint16("msg_id", msgID), zap.Error(err))
		return out
	}
	out.StatusCode = code

	status := Classify(code)
	log.Info("Store response",
		zap.String("file", file),
		zap.Uint16("msg_id", msgID),
		zap.Uint16("code", code),
		zap.Stringer("status", status))
	switch status {
	case Success:
		out.Succeeded = true
	case IdentityMismatch:
		out.Mismatch = true
		log.Warn("Identity mismatch", zap.String("file", file), zap.Uint16("code", code))
	default:
		log.Warn("Store rejected", zap.String("file", file), zap.Uint16("code", code))
	}
	return out
}

// RepairState records how the identity repair of a fraction ended.
type RepairState int

const (
	RepairNotNeeded RepairState = iota
	RepairResent
	RepairSubjectNotFound
	RepairMismatchPersisted
	RepairFailed
)

func (s RepairState) String() string {
	switch s {
	case RepairNotNeeded:
		return "not-needed"
	case RepairResent:
		return "resent"
	case RepairSubjectNotFound:
		return "subject-not-found"
	case RepairMismatchPersisted:
		return "mismatch-persisted"
	default:
		return "failed"
	}
}

// Job is one fraction's record set.
type Job struct {
	SubjectName string
	SubjectID   string
	Fraction    archive.Fraction
	Files       []archive.RecordFile
	// Log, when set, receives the fraction's transfer lines in place of the
	// engine logger.
	Log *zap.Logger
}

// FractionResult is the final state of a fraction after any repair.
type FractionResult struct {
	// Outcomes are in submission order; a resent file's outcome replaces the original.
	Outcomes     []model.TransferOutcome
	RepairNeeded bool
	Repair       RepairState
	ResendDir    string
}

// SendFraction submits the fraction's files role group by role group and,
// if any came back with an identity mismatch, repairs and resends the whole
// set exactly once.
func (e *Engine) SendFraction(ctx context.Context, job Job) FractionResult {
	log := job.Log
	if log == nil {
		log = e.log.With(zap.String("subject", job.SubjectName), zap.String("fraction", job.Fraction.Name))
	}

	outcomes, mismatched := e.sendGroups(ctx, job.Files, log)
	res := FractionResult{Outcomes: outcomes}
	if len(mismatched) == 0 {
		return res
	}

	res.RepairNeeded = true
	log.Warn("Identity mismatch detected; initiating resend", zap.Strings("groups", mismatched))

	res.ResendDir = e.resendDir(job)
	copies, err := copyFiles(job.Files, res.ResendDir)
	if err != nil {
		log.Error("Could not stage resend copies", zap.String("dir", res.ResendDir), zap.Error(err))
		res.Repair = RepairFailed
		return res
	}

	demo, err := e.dir.Demographics(ctx, job.SubjectID)
	if errors.Is(err, records.ErrSubjectNotFound) {
		log.Error("Subject not found in record system; skipping resend", zap.String("subject_id", job.SubjectID))
		res.Repair = RepairSubjectNotFound
		return res
	}
	if err != nil {
		log.Error("Could not fetch demographics; skipping resend", zap.String("subject_id", job.SubjectID), zap.Error(err))
		res.Repair = RepairFailed
		return res
	}

	// Copies that cannot be rewritten are not resent and end as failures.
	byName := make(map[string]model.TransferOutcome, len(copies))
	ready := make([]archive.RecordFile, 0, len(copies))
	for _, c := range copies {
		if err := record.RewriteDemographics(c.Path, demo); err != nil {
			log.Error("Could not rewrite demographics; file will not be resent", zap.String("file", c.Name), zap.Error(err))
			byName[c.Name] = model.TransferOutcome{RecordPath: c.Path, Err: fmt.Sprintf("rewrite demographics: %v", err)}
			continue
		}
		ready = append(ready, c)
	}
	log.Info("Rewrote demographics on resend copies",
		zap.String("name", demo.DICOMName()),
		zap.String("birth_date", demo.DICOMBirthDate()),
		zap.Int("files", len(ready)))

	var stillMismatched []string
	if len(ready) > 0 {
		var resent []model.TransferOutcome
		resent, stillMismatched = e.sendGroups(ctx, ready, log)
		for _, o := range resent {
			byName[filepath.Base(o.RecordPath)] = o
		}
	}
	for i, o := range res.Outcomes {
		if r, ok := byName[filepath.Base(o.RecordPath)]; ok {
			res.Outcomes[i] = r
		}
	}

	if len(stillMismatched) > 0 {
		log.Error("Resend still produced identity mismatches; no further attempts will be made",
			zap.Strings("groups", stillMismatched))
		res.Repair = RepairMismatchPersisted
		return res
	}
	if len(ready) < len(copies) {
		res.Repair = RepairFailed
		return res
	}
	res.Repair = RepairResent
	return res
}

// sendGroups sends the other, plan and dose groups in that order and returns
// the outcomes in submission order plus the roles that saw a mismatch.
func (e *Engine) sendGroups(ctx context.Context, files []archive.RecordFile, log *zap.Logger) ([]model.TransferOutcome, []string) {
	var outcomes []model.TransferOutcome
	var mismatched []string
	for _, g := range archive.Partition(files) {
		paths := make([]string, 0, len(g.Files))
		for _, f := range g.Files {
			paths = append(paths, f.Path)
		}
		outs, mm := e.Send(ctx, paths, log)
		outcomes = append(outcomes, outs...)
		if mm {
			mismatched = append(mismatched, g.Role.String())
		}
	}
	return outcomes, mismatched
}

func (e *Engine) resendDir(job Job) string {
	if e.opts.StagingDir != "" {
		return filepath.Join(e.opts.StagingDir, job.SubjectName, job.Fraction.Name)
	}
	return job.Fraction.ResendDir()
}

// copyFiles copies files into dir, overwriting earlier copies.
func copyFiles(files []archive.RecordFile, dir string) ([]archive.RecordFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	copies := make([]archive.RecordFile, 0, len(files))
	for _, f := range files {
		dst := filepath.Join(dir, f.Name)
		if err := copyFile(f.Path, dst); err != nil {
			return nil, fmt.Errorf("copy %s: %w", f.Name, err)
		}
		copies = append(copies, archive.RecordFile{Name: f.Name, Path: dst, Role: f.Role})
	}
	return copies, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
