package workflow

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rcliao/vitesse-sync/internal/archive"
	"github.com/rcliao/vitesse-sync/internal/consolidate"
	"github.com/rcliao/vitesse-sync/internal/model"
	"github.com/rcliao/vitesse-sync/internal/record"
	"github.com/rcliao/vitesse-sync/internal/records"
	"github.com/rcliao/vitesse-sync/internal/runlog"
	"github.com/rcliao/vitesse-sync/internal/transfer"
)

// ErrNoClient is returned when Import is run without a transfer client.
var ErrNoClient = errors.New("import needs a transfer client")

// FractionDetail is one fraction's transfer result.
type FractionDetail struct {
	Fraction  string `json:"fraction"`
	Sent      int    `json:"sent"`
	Failed    int    `json:"failed"`
	Repair    string `json:"repair,omitempty"`
	ResendDir string `json:"resend_dir,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ImportDetail is the per-subject detail of an import.
type ImportDetail struct {
	Fractions []FractionDetail `json:"fractions"`
	Sent      []string         `json:"sent_summary,omitempty"`
}

// Import submits every selected subject's fraction record sets, repairing
// identity mismatches once per fraction.
func Import(ctx context.Context, d Deps) (*Summary, error) {
	if d.Client == nil {
		return nil, ErrNoClient
	}
	subjects, err := Select(d.Config)
	if err != nil {
		return nil, err
	}
	seq := d.Sequence
	if seq == nil {
		seq = transfer.NewSequence()
	}
	ts := d.now()
	first, last := bounds(subjects)

	r, err := d.start(ctx, "import", runlog.ImportLogName(ts, first, last))
	if err != nil {
		return nil, err
	}
	log := r.log.Logger
	engine := transfer.New(d.Client, seq, records.Directory{System: d.Records}, transfer.Options{
		StagingDir:    d.Config.StagingDir,
		RatePerSecond: d.Config.Daemon.RatePerSecond,
	}, log)
	courses := consolidate.New(d.Records, log)

	for _, s := range subjects {
		r.record(ctx, importSubject(ctx, d, engine, courses, s, log))
	}
	return r.finish(ctx), nil
}

func importSubject(ctx context.Context, d Deps, engine *transfer.Engine, courses *consolidate.Consolidator, s archive.Subject, log *zap.Logger) SubjectResult {
	log = log.With(zap.String("folder", s.Name))
	log.Info("Processing subject folder")
	res := SubjectResult{Folder: s.Name}

	fractions, err := archive.ListFractions(s.Path)
	if err != nil {
		log.Error("Could not list fractions", zap.Error(err))
		res.Failed, res.Error = true, err.Error()
		return res
	}

	var detail ImportDetail
	var outcomes []model.TransferOutcome
	for _, fr := range fractions {
		fd := importFraction(ctx, d, engine, courses, s, fr, log, &res)
		detail.Fractions = append(detail.Fractions, fd.FractionDetail)
		outcomes = append(outcomes, fd.outcomes...)
		if fd.Failed > 0 || fd.Error != "" || fd.terminal {
			res.Failed = true
		}
	}

	detail.Sent = transfer.SentSummary(outcomes)
	for _, line := range detail.Sent {
		log.Info(line)
	}
	res.Detail = detail
	return res
}

type fractionRun struct {
	FractionDetail
	outcomes []model.TransferOutcome
	terminal bool
}

func importFraction(ctx context.Context, d Deps, engine *transfer.Engine, courses *consolidate.Consolidator,
	s archive.Subject, fr archive.Fraction, log *zap.Logger, res *SubjectResult) fractionRun {
	out := fractionRun{FractionDetail: FractionDetail{Fraction: fr.Name}}
	log = log.With(zap.String("fraction", fr.Name))

	if !archive.IsDir(fr.ImportDir()) {
		log.Info("Skipping fraction; import folder not found")
		return out
	}
	files, err := archive.ListRecordFiles(fr.ImportDir())
	if err != nil || len(files) == 0 {
		log.Warn("Skipping fraction; no record files", zap.Error(err))
		return out
	}

	subjectID, err := record.ReadSubjectID(files[0].Path)
	if err != nil {
		log.Error("Could not read subject id", zap.String("file", files[0].Name), zap.Error(err))
		out.Error = err.Error()
		return out
	}
	if res.SubjectID == "" {
		res.SubjectID = subjectID
	}

	created, err := courses.EnsureContainer(ctx, subjectID, d.Config.CourseName)
	switch {
	case errors.Is(err, records.ErrSubjectNotFound):
		log.Warn(fmt.Sprintf("Subject %s not found. Cannot create %s container.", subjectID, d.Config.CourseName))
	case err != nil:
		log.Error("Could not ensure container", zap.String("container", d.Config.CourseName), zap.Error(err))
	case created:
		log.Info("Created container", zap.String("container", d.Config.CourseName))
	default:
		log.Info("Container already exists", zap.String("container", d.Config.CourseName))
	}

	job := transfer.Job{SubjectName: s.Name, SubjectID: subjectID, Fraction: fr, Files: files}
	if d.Config.FractionLogs {
		flog, err := runlog.OpenFraction(fr.Path)
		if err != nil {
			log.Warn("Could not open fraction log", zap.Error(err))
		} else {
			defer flog.Close()
			job.Log = runlog.Tee(log, flog.Logger)
		}
	}
	if job.Log == nil {
		job.Log = log
	}

	fres := engine.SendFraction(ctx, job)
	out.outcomes = fres.Outcomes
	for _, o := range fres.Outcomes {
		if o.Succeeded {
			out.Sent++
		} else {
			out.Failed++
		}
	}
	if fres.RepairNeeded {
		out.Repair = fres.Repair.String()
		out.ResendDir = fres.ResendDir
		out.terminal = fres.Repair != transfer.RepairResent
	}
	return out
}
