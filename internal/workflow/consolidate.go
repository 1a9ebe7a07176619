package workflow

import (
	"context"

	"go.uber.org/zap"

	"github.com/rcliao/vitesse-sync/internal/archive"
	"github.com/rcliao/vitesse-sync/internal/consolidate"
	"github.com/rcliao/vitesse-sync/internal/record"
	"github.com/rcliao/vitesse-sync/internal/runlog"
)

// ConsolidateDetail is the per-subject detail of a consolidation.
type ConsolidateDetail struct {
	Plans       int                        `json:"plans"`
	Collect     *consolidate.CollectResult `json:"collect,omitempty"`
	Consolidate *consolidate.Result        `json:"consolidate,omitempty"`
}

// Consolidate gathers each selected subject's archived plans into the
// canonical container: optionally copying them there, renaming exact
// matches and pruning the plans from other containers.
func Consolidate(ctx context.Context, d Deps) (*Summary, error) {
	subjects, err := Select(d.Config)
	if err != nil {
		return nil, err
	}
	ts := d.now()
	first, last := bounds(subjects)

	r, err := d.start(ctx, "consolidate", runlog.ConsolidateLogName(ts, first, last))
	if err != nil {
		return nil, err
	}
	c := consolidate.New(d.Records, r.log.Logger)
	for _, s := range subjects {
		r.record(ctx, consolidateSubject(ctx, d, c, s, r.log.Logger))
	}
	return r.finish(ctx), nil
}

func consolidateSubject(ctx context.Context, d Deps, c *consolidate.Consolidator, s archive.Subject, log *zap.Logger) SubjectResult {
	log = log.With(zap.String("folder", s.Name))
	log.Info("Processing subject folder")
	res := SubjectResult{Folder: s.Name}
	opts := d.Config.Consolidate

	fractions, err := archive.ListFractions(s.Path)
	if err != nil {
		log.Error("Could not list fractions", zap.Error(err))
		res.Failed, res.Error = true, err.Error()
		return res
	}
	ids := record.CollectSubject(fractions, log)
	detail := ConsolidateDetail{Plans: ids.UIDs.Len()}
	res.Detail = &detail
	if ids.SubjectID == "" {
		log.Error("No subject id found in any fraction")
		res.Failed, res.Error = true, "subject id not found in archive"
		return res
	}
	res.SubjectID = ids.SubjectID

	if opts.Collect {
		cr, err := c.Collect(ctx, ids.SubjectID, ids.UIDs, d.Config.CourseName, opts.RemoveOriginals)
		detail.Collect = &cr
		if err != nil {
			log.Error("Collect failed", zap.Error(err))
			res.Failed, res.Error = true, err.Error()
			return res
		}
	}
	if opts.Rename {
		cr, err := c.Consolidate(ctx, ids.SubjectID, ids.UIDs, consolidate.Options{
			CanonicalName: d.Config.CourseName,
			Prune:         opts.Prune,
		})
		detail.Consolidate = &cr
		if err != nil {
			log.Error("Consolidation failed", zap.Error(err))
			res.Failed, res.Error = true, err.Error()
		}
	}
	return res
}
