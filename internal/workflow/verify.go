package workflow

import (
	"context"

	"go.uber.org/zap"

	"github.com/rcliao/vitesse-sync/internal/archive"
	"github.com/rcliao/vitesse-sync/internal/model"
	"github.com/rcliao/vitesse-sync/internal/reconcile"
	"github.com/rcliao/vitesse-sync/internal/record"
	"github.com/rcliao/vitesse-sync/internal/runlog"
)

// VerifyDetail is the per-subject detail of a verification.
type VerifyDetail struct {
	Report    *model.ReportSummary `json:"report,omitempty"`
	Plans     int                  `json:"plans"`
	Divergent []string             `json:"divergent_subject_ids,omitempty"`
}

// Verify checks every selected subject's archived plans against the
// canonical container and writes the run log and the failure log.
func Verify(ctx context.Context, d Deps) (*Summary, error) {
	subjects, err := Select(d.Config)
	if err != nil {
		return nil, err
	}
	ts := d.now()
	first, last := bounds(subjects)

	r, err := d.start(ctx, "verify", runlog.VerifyLogName(ts, first, last))
	if err != nil {
		return nil, err
	}
	failures, err := runlog.OpenFailureLog(d.Config.LogDirectory(), runlog.VerifyFailureLogName(ts))
	if err != nil {
		r.finish(ctx)
		return nil, err
	}
	defer failures.Close()
	r.summary.FailureLogPath = failures.Path

	engine := reconcile.New(d.Records, r.log.Logger)
	for _, s := range subjects {
		res := verifySubject(ctx, d, engine, s, r.log.Logger)
		if res.Failed {
			failures.Subject(res.Folder, res.SubjectID)
		}
		r.record(ctx, res)
	}
	return r.finish(ctx), nil
}

func verifySubject(ctx context.Context, d Deps, engine *reconcile.Engine, s archive.Subject, log *zap.Logger) SubjectResult {
	log = log.With(zap.String("folder", s.Name))
	log.Info("Processing subject folder")
	res := SubjectResult{Folder: s.Name}

	fractions, err := archive.ListFractions(s.Path)
	if err != nil {
		log.Error("Could not list fractions", zap.Error(err))
		res.Failed, res.Error = true, err.Error()
		return res
	}
	ids := record.CollectSubject(fractions, log)
	detail := VerifyDetail{Plans: ids.UIDs.Len(), Divergent: ids.Divergent}
	res.Detail = detail
	if ids.SubjectID == "" {
		log.Error("No subject id found in any fraction")
		res.Failed, res.Error = true, "subject id not found in archive"
		return res
	}
	res.SubjectID = ids.SubjectID

	report, err := engine.Verify(ctx, ids.SubjectID, d.Config.CourseName, ids.UIDs)
	if err != nil {
		res.Failed, res.Error = true, err.Error()
		return res
	}
	sum := report.Summary()
	detail.Report = &sum
	res.Detail = detail
	res.Failed = report.Failed() || len(ids.Divergent) > 0
	return res
}
