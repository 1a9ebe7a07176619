// Package consolidate renames, collects and prunes a subject's containers
// so the archived plan set lives in one canonically named container.
package consolidate

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rcliao/vitesse-sync/internal/model"
	"github.com/rcliao/vitesse-sync/internal/records"
)

// ErrEmptyTarget is returned when asked to consolidate an empty record set.
var ErrEmptyTarget = errors.New("target record set is empty")

// Options control Consolidate.
type Options struct {
	CanonicalName string
	// Prune removes target records from containers outside the matched set.
	Prune bool
}

// Result summarises the mutations applied to one subject.
type Result struct {
	Matched []string            `json:"matched,omitempty"`
	Renamed []string            `json:"renamed,omitempty"`
	Pruned  map[string][]string `json:"pruned,omitempty"`
	Skipped []Skip              `json:"skipped,omitempty"`
}

// Skip records a container left untouched and why.
type Skip struct {
	Container string `json:"container"`
	Reason    string `json:"reason"`
}

// Consolidator applies container changes through a record system.
type Consolidator struct {
	sys records.System
	log *zap.Logger
}

// New returns a Consolidator. A nil logger discards output.
func New(sys records.System, log *zap.Logger) *Consolidator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consolidator{sys: sys, log: log}
}

// Consolidate renames every container whose records are exactly target to
// opts.CanonicalName and, with opts.Prune, removes the target records from
// every other container that holds them. Nothing is mutated when no
// container matches.
func (c *Consolidator) Consolidate(ctx context.Context, subjectID string, target model.UIDSet, opts Options) (Result, error) {
	var res Result
	if target.Len() == 0 {
		return res, ErrEmptyTarget
	}
	log := c.log.With(zap.String("subject_id", subjectID))

	err := records.WithSubject(ctx, c.sys, subjectID, func(s records.Session) error {
		containers, err := s.Containers(ctx)
		if err != nil {
			return err
		}

		matched := map[string]bool{}
		for _, ct := range containers {
			if ct.UIDs().Equal(target) {
				matched[ct.ID] = true
				res.Matched = append(res.Matched, ct.Name)
			}
		}
		if len(matched) == 0 {
			log.Info("No container matches the archived plan set; nothing to consolidate",
				zap.Strings("uids", target.Sorted()))
			return nil
		}

		for _, ct := range containers {
			if !matched[ct.ID] {
				continue
			}
			if ct.Name == opts.CanonicalName {
				log.Info("Container already has canonical name", zap.String("container", ct.Name))
				continue
			}
			if err := s.BeginModifications(ctx); err != nil {
				return err
			}
			if err := s.RenameContainer(ctx, ct.ID, opts.CanonicalName); err != nil {
				return fmt.Errorf("rename %q: %w", ct.Name, err)
			}
			if err := s.Commit(ctx); err != nil {
				return err
			}
			log.Info("Renamed container", zap.String("from", ct.Name), zap.String("to", opts.CanonicalName))
			res.Renamed = append(res.Renamed, ct.Name)
		}

		if !opts.Prune {
			return nil
		}
		return c.prune(ctx, s, matched, target, &res, log)
	})
	return res, err
}

// prune re-lists containers and removes target records from every container
// not in keep. A container holding any non-removable target record is
// skipped whole.
func (c *Consolidator) prune(ctx context.Context, s records.Session, keep map[string]bool, target model.UIDSet, res *Result, log *zap.Logger) error {
	containers, err := s.Containers(ctx)
	if err != nil {
		return err
	}
	for _, ct := range containers {
		if keep[ct.ID] {
			continue
		}
		var doomed []model.Record
		for _, r := range ct.Records {
			if target.Has(r.UID) {
				doomed = append(doomed, r)
			}
		}
		if len(doomed) == 0 {
			continue
		}

		if blocker, ok := firstUnremovable(doomed); ok {
			reason := fmt.Sprintf("record %s is %s", blocker.ID, blocker.Approval)
			log.Warn("Skipping container; a plan cannot be removed",
				zap.String("container", ct.Name),
				zap.String("plan", blocker.ID),
				zap.String("approval", string(blocker.Approval)))
			res.Skipped = append(res.Skipped, Skip{Container: ct.Name, Reason: reason})
			continue
		}

		if err := s.BeginModifications(ctx); err != nil {
			return err
		}
		var removed []string
		for _, r := range doomed {
			if err := s.RemoveRecord(ctx, ct.ID, r.UID); err != nil {
				return fmt.Errorf("remove %s from %q: %w", r.ID, ct.Name, err)
			}
			removed = append(removed, r.UID)
		}
		if err := s.Commit(ctx); err != nil {
			return err
		}
		log.Info("Removed plans from container", zap.String("container", ct.Name), zap.Strings("uids", removed))
		if res.Pruned == nil {
			res.Pruned = map[string][]string{}
		}
		res.Pruned[ct.Name] = append(res.Pruned[ct.Name], removed...)
	}
	return nil
}

func firstUnremovable(recs []model.Record) (model.Record, bool) {
	for _, r := range recs {
		if !r.Approval.Removable() {
			return r, true
		}
	}
	return model.Record{}, false
}

// EnsureContainer creates a container named name when the subject has none.
// It reports whether one was created.
func (c *Consolidator) EnsureContainer(ctx context.Context, subjectID, name string) (bool, error) {
	created := false
	err := records.WithSubject(ctx, c.sys, subjectID, func(s records.Session) error {
		_, ok, err := ensure(ctx, s, name)
		created = ok
		return err
	})
	if created {
		c.log.Info("Created container", zap.String("subject_id", subjectID), zap.String("container", name))
	}
	return created, err
}

func ensure(ctx context.Context, s records.Session, name string) (model.Container, bool, error) {
	containers, err := s.Containers(ctx)
	if err != nil {
		return model.Container{}, false, err
	}
	for _, ct := range containers {
		if ct.Name == name {
			return ct, false, nil
		}
	}
	if err := s.BeginModifications(ctx); err != nil {
		return model.Container{}, false, err
	}
	ct, err := s.AddContainer(ctx, name)
	if err != nil {
		return model.Container{}, false, err
	}
	if err := s.Commit(ctx); err != nil {
		return model.Container{}, false, err
	}
	return ct, true, nil
}
