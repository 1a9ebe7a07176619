package consolidate

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rcliao/vitesse-sync/internal/model"
	"github.com/rcliao/vitesse-sync/internal/records"
)

// CollectResult summarises a Collect call.
type CollectResult struct {
	Created  bool                `json:"created"`
	Copied   []string            `json:"copied,omitempty"`
	Conflict []string            `json:"conflict,omitempty"`
	Pruned   map[string][]string `json:"pruned,omitempty"`
	Skipped  []Skip              `json:"skipped,omitempty"`
}

// Collect copies every target record held outside the container named name
// into it, creating the container if needed. A record whose UID is already
// there is not copied again. With removeOriginals, originals are then
// removed under the same approval gate Consolidate uses for pruning.
func (c *Consolidator) Collect(ctx context.Context, subjectID string, target model.UIDSet, name string, removeOriginals bool) (CollectResult, error) {
	var res CollectResult
	if target.Len() == 0 {
		return res, ErrEmptyTarget
	}
	log := c.log.With(zap.String("subject_id", subjectID), zap.String("container", name))

	err := records.WithSubject(ctx, c.sys, subjectID, func(s records.Session) error {
		dest, created, err := ensure(ctx, s, name)
		if err != nil {
			return err
		}
		res.Created = created
		if created {
			log.Info("Created container")
		}

		containers, err := s.Containers(ctx)
		if err != nil {
			return err
		}
		held := model.NewUIDSet()
		for _, ct := range containers {
			if ct.ID == dest.ID {
				held = ct.UIDs()
			}
		}

		for _, ct := range containers {
			if ct.ID == dest.ID {
				continue
			}
			var copies []model.Record
			for _, r := range ct.Records {
				if target.Has(r.UID) && !held.Has(r.UID) {
					copies = append(copies, r)
				}
			}
			if len(copies) == 0 {
				continue
			}
			if err := s.BeginModifications(ctx); err != nil {
				return err
			}
			for _, r := range copies {
				if _, err := s.CopyRecordInto(ctx, dest.ID, r); err != nil {
					if errors.Is(err, records.ErrRecordExists) {
						log.Warn("Plan id already used in container; not copied",
							zap.String("from", ct.Name), zap.String("plan", r.ID))
						res.Conflict = append(res.Conflict, r.UID)
						continue
					}
					return fmt.Errorf("copy %s from %q: %w", r.ID, ct.Name, err)
				}
				held.Add(r.UID)
				res.Copied = append(res.Copied, r.UID)
				log.Info("Copied plan", zap.String("from", ct.Name), zap.String("plan", r.ID))
			}
			if err := s.Commit(ctx); err != nil {
				return err
			}
		}

		if !removeOriginals {
			return nil
		}
		// only originals that now have a copy in dest are removed
		var pr Result
		err = c.prune(ctx, s, map[string]bool{dest.ID: true}, target.Intersect(held), &pr, log)
		res.Pruned, res.Skipped = pr.Pruned, pr.Skipped
		return err
	})
	return res, err
}
