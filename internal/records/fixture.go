package records

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rcliao/vitesse-sync/internal/model"
)

// Fixture describes subjects, courses and plans to load into a record system.
type Fixture struct {
	Subjects []SubjectFixture `yaml:"subjects" json:"subjects"`
}

// SubjectFixture is one subject with its courses.
type SubjectFixture struct {
	ID        string          `yaml:"id" json:"id"`
	FirstName string          `yaml:"first_name" json:"first_name"`
	LastName  string          `yaml:"last_name" json:"last_name"`
	BirthDate string          `yaml:"birth_date,omitempty" json:"birth_date,omitempty"` // YYYY-MM-DD
	Courses   []CourseFixture `yaml:"courses" json:"courses"`
}

// CourseFixture is one course with its plans.
type CourseFixture struct {
	Name  string        `yaml:"name" json:"name"`
	Plans []PlanFixture `yaml:"plans" json:"plans"`
}

// PlanFixture is one plan record.
type PlanFixture struct {
	ID       string `yaml:"id" json:"id"`
	UID      string `yaml:"uid" json:"uid"`
	Approval string `yaml:"approval,omitempty" json:"approval,omitempty"`
}

// LoadFixture reads a YAML fixture file.
func LoadFixture(path string) (Fixture, error) {
	var f Fixture
	b, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(b, &f); err != nil {
		return f, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return f, nil
}

// Seed loads a fixture. Subjects are upserted; courses are appended.
// Returns the number of plans written.
func (s *SQLiteSystem) Seed(ctx context.Context, f Fixture) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	plans := 0
	for _, subj := range f.Subjects {
		if subj.ID == "" {
			return 0, fmt.Errorf("fixture subject without id")
		}
		var birth *string
		if subj.BirthDate != "" {
			if _, err := time.Parse(birthDateLayout, subj.BirthDate); err != nil {
				return 0, fmt.Errorf("subject %s: invalid birth_date %q (use YYYY-MM-DD)", subj.ID, subj.BirthDate)
			}
			birth = &subj.BirthDate
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO subjects (id, first_name, last_name, birth_date) VALUES (?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET first_name = excluded.first_name,
			   last_name = excluded.last_name, birth_date = excluded.birth_date`,
			subj.ID, subj.FirstName, subj.LastName, birth)
		if err != nil {
			return 0, fmt.Errorf("upsert subject: %w", err)
		}

		for _, c := range subj.Courses {
			courseID := s.newID()
			_, err := tx.ExecContext(ctx,
				`INSERT INTO courses (id, subject_id, name, created_at) VALUES (?, ?, ?, ?)`,
				courseID, subj.ID, c.Name, time.Now().UTC().Format(time.RFC3339))
			if err != nil {
				return 0, fmt.Errorf("insert course: %w", err)
			}
			for _, p := range c.Plans {
				approval := model.Approval(p.Approval)
				if approval == "" {
					approval = model.UnApproved
				}
				if !model.ValidApprovals[approval] {
					return 0, fmt.Errorf("plan %s: unknown approval %q", p.ID, p.Approval)
				}
				_, err := tx.ExecContext(ctx,
					`INSERT INTO plans (id, course_id, plan_id, uid, approval) VALUES (?, ?, ?, ?, ?)`,
					s.newID(), courseID, p.ID, p.UID, string(approval))
				if err != nil {
					return 0, fmt.Errorf("insert plan: %w", err)
				}
				plans++
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return plans, nil
}

// SubjectSnapshot is a read-only export of one subject.
type SubjectSnapshot struct {
	Subject    model.Demographics `json:"subject"`
	Containers []model.Container  `json:"containers"`
}

// Snapshot reads a subject's demographics and containers through a session.
func Snapshot(ctx context.Context, sys System, subjectID string) (SubjectSnapshot, error) {
	var snap SubjectSnapshot
	err := WithSubject(ctx, sys, subjectID, func(s Session) error {
		snap.Subject = s.Subject()
		cs, err := s.Containers(ctx)
		snap.Containers = cs
		return err
	})
	return snap, err
}
