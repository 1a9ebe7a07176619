package record

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom/pkg/tag"
	"go.uber.org/zap"

	"github.com/rcliao/vitesse-sync/internal/archive"
	"github.com/rcliao/vitesse-sync/internal/model"
	"github.com/rcliao/vitesse-sync/internal/record/recordtest"
)

func fraction(root, name string) archive.Fraction {
	return archive.Fraction{Name: name, Path: filepath.Join(root, name)}
}

func TestExtractPlanIdentity(t *testing.T) {
	root := t.TempDir()
	f := fraction(root, "Fx1")
	recordtest.Write(t, f.PlanFile(), recordtest.Fields{SubjectID: "P100", RecordUID: "1.2.840.1", StudyUID: "1.2.840.9"})

	id, err := ExtractPlanIdentity(f)
	require.NoError(t, err)
	assert.Equal(t, model.RecordIdentity{SubjectID: "P100", RecordUID: "1.2.840.1", StudyUID: "1.2.840.9"}, id)
}

func TestExtractPlanIdentity_Failures(t *testing.T) {
	root := t.TempDir()

	_, err := ExtractPlanIdentity(fraction(root, "empty"))
	assert.ErrorIs(t, err, ErrFolderAbsent)

	noPlan := fraction(root, "noplan")
	require.NoError(t, os.MkdirAll(noPlan.ImportDir(), 0o755))
	_, err = ExtractPlanIdentity(noPlan)
	assert.ErrorIs(t, err, ErrPlanFileAbsent)

	garbage := fraction(root, "garbage")
	require.NoError(t, os.MkdirAll(garbage.ImportDir(), 0o755))
	require.NoError(t, os.WriteFile(garbage.PlanFile(), []byte("not dicom"), 0o644))
	_, err = ExtractPlanIdentity(garbage)
	var perr *ParseError
	assert.ErrorAs(t, err, &perr)

	noID := fraction(root, "noid")
	recordtest.Write(t, noID.PlanFile(), recordtest.Fields{RecordUID: "1.2.3"})
	_, err = ExtractPlanIdentity(noID)
	assert.ErrorIs(t, err, ErrIdentityFieldsMissing)
}

func TestCollectSubject_DedupesAndKeepsFirstSubject(t *testing.T) {
	root := t.TempDir()
	f1, f2, f3, f4 := fraction(root, "Fx1"), fraction(root, "Fx2"), fraction(root, "Fx3"), fraction(root, "Fx4")
	recordtest.Write(t, f1.PlanFile(), recordtest.Fields{SubjectID: "P1", RecordUID: "U1"})
	recordtest.Write(t, f2.PlanFile(), recordtest.Fields{SubjectID: "P1", RecordUID: "U1"})
	recordtest.Write(t, f3.PlanFile(), recordtest.Fields{SubjectID: "P2", RecordUID: "U2"})
	require.NoError(t, os.MkdirAll(f4.Path, 0o755))

	got := CollectSubject([]archive.Fraction{f1, f2, f3, f4}, zap.NewNop())
	assert.Equal(t, "P1", got.SubjectID)
	assert.Equal(t, []string{"U1", "U2"}, got.UIDs.Sorted())
	assert.Equal(t, []string{"P2"}, got.Divergent)
	assert.Len(t, got.Identities, 3)
}

func TestRewriteDemographics_OnlyTouchesDemographics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "PL001.dcm")
	recordtest.Write(t, path, recordtest.Fields{
		SubjectID: "P1", RecordUID: "U1", StudyUID: "S1",
		PatientName: "WRONG^NAME", BirthDate: "19000101",
	})

	err := RewriteDemographics(path, model.Demographics{
		FirstName: "Jane", LastName: "Doe",
		BirthDate: time.Date(1970, 5, 17, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, "Doe^Jane", recordtest.ReadString(t, path, tag.PatientName))
	assert.Equal(t, "19700517", recordtest.ReadString(t, path, tag.PatientBirthDate))
	assert.Equal(t, "P1", recordtest.ReadString(t, path, tag.PatientID))
	assert.Equal(t, "U1", recordtest.ReadString(t, path, tag.SOPInstanceUID))
	assert.Equal(t, "S1", recordtest.ReadString(t, path, tag.StudyInstanceUID))
}

func TestRewriteDemographics_InsertsMissingName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "DO001.dcm")
	recordtest.Write(t, path, recordtest.Fields{SubjectID: "P1", RecordUID: "U1", BirthDate: "19000101"})

	require.NoError(t, RewriteDemographics(path, model.Demographics{FirstName: "A", LastName: "B"}))

	assert.Equal(t, "B^A", recordtest.ReadString(t, path, tag.PatientName))
	// unknown canonical birth date leaves the stored one alone
	assert.Equal(t, "19000101", recordtest.ReadString(t, path, tag.PatientBirthDate))
}

func TestReadInstance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "DO001.dcm")
	recordtest.Write(t, path, recordtest.Fields{SubjectID: "P1", RecordUID: "1.2.3.9", SOPClassUID: recordtest.RTDoseStorage})

	inst, err := ReadInstance(path)
	require.NoError(t, err)
	assert.Equal(t, path, inst.Path)
	assert.Equal(t, recordtest.RTDoseStorage, inst.SOPClassUID)
	assert.Equal(t, "1.2.3.9", inst.SOPInstanceUID)
	assert.Equal(t, recordtest.ExplicitVRLittleEndian, inst.TransferSyntaxUID)
	require.True(t, len(inst.DataSet) > 4)
	assert.Equal(t, uint16(0x0008), binary.LittleEndian.Uint16(inst.DataSet[0:2]))

	subject, err := ReadSubjectID(path)
	require.NoError(t, err)
	assert.Equal(t, "P1", subject)
}

func TestReadInstance_NotPart10(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.dcm")
	require.NoError(t, os.WriteFile(path, []byte("short"), 0o644))

	_, err := ReadInstance(path)
	assert.ErrorIs(t, err, ErrNotPart10)
}
