package records

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/vitesse-sync/internal/model"
)

func newTestSystem(t *testing.T, f Fixture) *SQLiteSystem {
	t.Helper()
	s, err := NewSQLiteSystem(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	_, err = s.Seed(context.Background(), f)
	require.NoError(t, err)
	return s
}

var testFixture = Fixture{Subjects: []SubjectFixture{{
	ID: "P1", FirstName: "Jane", LastName: "Doe", BirthDate: "1970-05-17",
	Courses: []CourseFixture{
		{Name: "C1", Plans: []PlanFixture{{ID: "Plan1", UID: "U1"}, {ID: "Plan2", UID: "U2", Approval: "TreatmentApproved"}}},
		{Name: "Vitesse Backup"},
	},
}}}

func TestOpenSubject_NotFound(t *testing.T) {
	s := newTestSystem(t, testFixture)
	_, err := s.OpenSubject(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrSubjectNotFound)

	// a failed open does not hold the session slot
	sess, err := s.OpenSubject(context.Background(), "P1")
	require.NoError(t, err)
	require.NoError(t, sess.Close())
}

func TestOpenSubject_OneSessionAtATime(t *testing.T) {
	ctx := context.Background()
	s := newTestSystem(t, testFixture)

	sess, err := s.OpenSubject(ctx, "P1")
	require.NoError(t, err)

	_, err = s.OpenSubject(ctx, "P1")
	assert.ErrorIs(t, err, ErrSessionOpen)

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())

	sess2, err := s.OpenSubject(ctx, "P1")
	require.NoError(t, err)
	sess2.Close()
}

func TestSession_ContainersAndDemographics(t *testing.T) {
	ctx := context.Background()
	s := newTestSystem(t, testFixture)

	snap, err := Snapshot(ctx, s, "P1")
	require.NoError(t, err)
	assert.Equal(t, "Doe^Jane", snap.Subject.DICOMName())
	assert.Equal(t, time.Date(1970, 5, 17, 0, 0, 0, 0, time.UTC), snap.Subject.BirthDate)
	require.Len(t, snap.Containers, 2)
	assert.Equal(t, "C1", snap.Containers[0].Name)
	assert.Equal(t, []string{"U1", "U2"}, snap.Containers[0].UIDs().Sorted())
	assert.Equal(t, model.TreatmentApproved, snap.Containers[0].Records[1].Approval)
	assert.Empty(t, snap.Containers[1].Records)
}

func TestSession_MutationsRequireBegin(t *testing.T) {
	ctx := context.Background()
	s := newTestSystem(t, testFixture)

	err := WithSubject(ctx, s, "P1", func(sess Session) error {
		_, err := sess.AddContainer(ctx, "X")
		assert.ErrorIs(t, err, ErrNotModifying)
		assert.ErrorIs(t, sess.Commit(ctx), ErrNotModifying)
		return nil
	})
	require.NoError(t, err)
}

func TestSession_CommitPersistsAndCloseDiscards(t *testing.T) {
	ctx := context.Background()
	s := newTestSystem(t, testFixture)

	err := WithSubject(ctx, s, "P1", func(sess Session) error {
		cs, err := sess.Containers(ctx)
		require.NoError(t, err)
		require.NoError(t, sess.BeginModifications(ctx))
		require.NoError(t, sess.RenameContainer(ctx, cs[0].ID, "Renamed"))
		require.NoError(t, sess.Commit(ctx))

		require.NoError(t, sess.BeginModifications(ctx))
		_, err = sess.AddContainer(ctx, "Uncommitted")
		return err
	})
	require.NoError(t, err)

	snap, err := Snapshot(ctx, s, "P1")
	require.NoError(t, err)
	require.Len(t, snap.Containers, 2)
	assert.Equal(t, "Renamed", snap.Containers[0].Name)
}

func TestSession_RemoveRecordGatedByApproval(t *testing.T) {
	ctx := context.Background()
	s := newTestSystem(t, testFixture)

	err := WithSubject(ctx, s, "P1", func(sess Session) error {
		cs, _ := sess.Containers(ctx)
		require.NoError(t, sess.BeginModifications(ctx))
		assert.ErrorIs(t, sess.RemoveRecord(ctx, cs[0].ID, "U2"), ErrNotRemovable)
		assert.ErrorIs(t, sess.RemoveRecord(ctx, cs[0].ID, "U9"), ErrRecordNotFound)
		assert.ErrorIs(t, sess.RemoveRecord(ctx, "missing", "U1"), ErrContainerNotFound)
		require.NoError(t, sess.RemoveRecord(ctx, cs[0].ID, "U1"))
		return sess.Commit(ctx)
	})
	require.NoError(t, err)

	snap, _ := Snapshot(ctx, s, "P1")
	assert.Equal(t, []string{"U2"}, snap.Containers[0].UIDs().Sorted())
}

func TestSession_CopyRecordInto(t *testing.T) {
	ctx := context.Background()
	s := newTestSystem(t, testFixture)

	err := WithSubject(ctx, s, "P1", func(sess Session) error {
		cs, _ := sess.Containers(ctx)
		require.NoError(t, sess.BeginModifications(ctx))
		cp, err := sess.CopyRecordInto(ctx, cs[1].ID, cs[0].Records[1])
		require.NoError(t, err)
		assert.Equal(t, model.UnApproved, cp.Approval)
		assert.Equal(t, "U2", cp.UID)

		_, err = sess.CopyRecordInto(ctx, cs[1].ID, cs[0].Records[1])
		assert.ErrorIs(t, err, ErrRecordExists)
		return sess.Commit(ctx)
	})
	require.NoError(t, err)

	snap, _ := Snapshot(ctx, s, "P1")
	assert.Equal(t, []string{"U2"}, snap.Containers[1].UIDs().Sorted())
}

func TestWithSubject_ClosesOnErrorAndPanic(t *testing.T) {
	ctx := context.Background()
	s := newTestSystem(t, testFixture)

	boom := errors.New("boom")
	err := WithSubject(ctx, s, "P1", func(Session) error { return boom })
	assert.ErrorIs(t, err, boom)

	assert.Panics(t, func() {
		_ = WithSubject(ctx, s, "P1", func(Session) error { panic("x") })
	})

	d, err := Directory{System: s}.Demographics(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "Jane", d.FirstName)
}

func TestSeed_RejectsUnknownApproval(t *testing.T) {
	s, err := NewSQLiteSystem(filepath.Join(t.TempDir(), "r.db"))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Seed(context.Background(), Fixture{Subjects: []SubjectFixture{{
		ID: "P", Courses: []CourseFixture{{Name: "C", Plans: []PlanFixture{{ID: "x", UID: "u", Approval: "Bogus"}}}},
	}}})
	assert.Error(t, err)
}

func TestLoadFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	writeFile(t, path, `
subjects:
  - id: P1
    first_name: Jane
    last_name: Doe
    courses:
      - name: C1
        plans:
          - {id: Plan1, uid: U1, approval: Reviewed}
`)
	f, err := LoadFixture(path)
	require.NoError(t, err)
	require.Len(t, f.Subjects, 1)
	assert.Equal(t, "Reviewed", f.Subjects[0].Courses[0].Plans[0].Approval)
}

func TestOpenSubject_InvalidBirthDate(t *testing.T) {
	ctx := context.Background()
	s := newTestSystem(t, testFixture)
	_, err := s.db.ExecContext(ctx, `UPDATE subjects SET birth_date = '17/05/1970' WHERE id = 'P1'`)
	require.NoError(t, err)

	_, err = Directory{System: s}.Demographics(ctx, "P1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid birth_date")
	assert.NotErrorIs(t, err, ErrSubjectNotFound)

	// the failed open does not hold the session slot
	_, err = s.db.ExecContext(ctx, `UPDATE subjects SET birth_date = NULL WHERE id = 'P1'`)
	require.NoError(t, err)
	d, err := Directory{System: s}.Demographics(ctx, "P1")
	require.NoError(t, err)
	assert.True(t, d.BirthDate.IsZero())
}
