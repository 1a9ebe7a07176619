// Package reconcile compares archive-derived plan UIDs against the
// containers a record system reports for a subject.
package reconcile

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/rcliao/vitesse-sync/internal/model"
	"github.com/rcliao/vitesse-sync/internal/records"
)

// Engine verifies subjects against a record system.
type Engine struct {
	sys records.System
	log *zap.Logger
}

// New returns an Engine. A nil logger discards output.
func New(sys records.System, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{sys: sys, log: log}
}

// Verify checks that the expected container holds exactly the archive UIDs
// and that no other container holds any of them. A subject unknown to the
// record system returns records.ErrSubjectNotFound.
func (e *Engine) Verify(ctx context.Context, subjectID, expectedName string, archiveUIDs model.UIDSet) (model.ReconciliationReport, error) {
	log := e.log.With(zap.String("subject_id", subjectID))
	log.Info("Verifying subject")

	var report model.ReconciliationReport
	err := records.WithSubject(ctx, e.sys, subjectID, func(s records.Session) error {
		containers, err := s.Containers(ctx)
		if err != nil {
			return err
		}
		log.Info("Listed containers", zap.Int("count", len(containers)))
		report = Compare(subjectID, expectedName, archiveUIDs, containers)
		return nil
	})
	if err != nil {
		log.Error("Verification failed", zap.Error(err))
		return model.ReconciliationReport{SubjectID: subjectID, ExpectedContainerName: expectedName}, err
	}

	logReport(log, report)
	return report, nil
}

// Compare is the pure reconciliation of archive UIDs against a container
// listing. The first container named expectedName is canonical; any later
// container with the same name is reported as cross-listing, unlike the
// earlier tooling which ignored every container bearing the expected name.
func Compare(subjectID, expectedName string, archiveUIDs model.UIDSet, containers []model.Container) model.ReconciliationReport {
	report := model.ReconciliationReport{
		SubjectID:             subjectID,
		ExpectedContainerName: expectedName,
		ContainerCount:        len(containers),
		MissingFromContainer:  model.NewUIDSet(),
		ExtraInContainer:      model.NewUIDSet(),
	}

	expected := -1
	for i, c := range containers {
		if c.Name == expectedName {
			expected = i
			break
		}
	}

	if expected >= 0 {
		report.FoundExpectedContainer = true
		held := containers[expected].UIDs()
		report.MissingFromContainer = archiveUIDs.Minus(held)
		report.ExtraInContainer = held.Minus(archiveUIDs)
		report.ExactMatch = report.MissingFromContainer.Len() == 0 && report.ExtraInContainer.Len() == 0
	}

	for _, uid := range archiveUIDs.Sorted() {
		names := map[string]struct{}{}
		for i, c := range containers {
			if i == expected {
				continue
			}
			if c.UIDs().Has(uid) {
				names[c.Name] = struct{}{}
			}
		}
		if len(names) == 0 {
			continue
		}
		if report.CrossListedIn == nil {
			report.CrossListedIn = map[string][]string{}
		}
		list := make([]string, 0, len(names))
		for n := range names {
			list = append(list, n)
		}
		sort.Strings(list)
		report.CrossListedIn[uid] = list
	}
	return report
}

func logReport(log *zap.Logger, r model.ReconciliationReport) {
	if !r.FoundExpectedContainer {
		log.Warn("Expected container does not exist", zap.String("container", r.ExpectedContainerName))
	} else if r.ExactMatch {
		log.Info("Container plan UIDs match the archive exactly", zap.String("container", r.ExpectedContainerName))
	} else {
		log.Warn("Container plan UIDs do not match the archive",
			zap.String("container", r.ExpectedContainerName),
			zap.Strings("missing_from_container", r.MissingFromContainer.Sorted()),
			zap.Strings("extra_in_container", r.ExtraInContainer.Sorted()))
	}
	for _, uid := range sortedKeys(r.CrossListedIn) {
		log.Warn("Plan UID also found in other containers",
			zap.String("record_uid", uid),
			zap.String("containers", strings.Join(r.CrossListedIn[uid], ", ")))
	}
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
