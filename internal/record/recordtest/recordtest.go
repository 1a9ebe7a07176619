// Package recordtest writes small but valid DICOM part-10 files for tests.
package recordtest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

const (
	RTPlanStorage          = "1.2.840.10008.5.1.4.1.1.481.5"
	RTDoseStorage          = "1.2.840.10008.5.1.4.1.1.481.2"
	ExplicitVRLittleEndian = "1.2.840.10008.1.2.1"
)

// Fields are the elements written into a test record. Empty fields are omitted.
type Fields struct {
	SubjectID   string
	RecordUID   string
	StudyUID    string
	SOPClassUID string
	PatientName string
	BirthDate   string
}

// Write creates a record file at path, creating parent folders as needed.
func Write(t testing.TB, path string, f Fields) {
	t.Helper()
	if f.SOPClassUID == "" {
		f.SOPClassUID = RTPlanStorage
	}
	metaUID := f.RecordUID
	if metaUID == "" {
		metaUID = "1.2.3.4"
	}

	var elems []*dicom.Element
	add := func(tg tag.Tag, v string) {
		if v == "" {
			return
		}
		el, err := dicom.NewElement(tg, []string{v})
		if err != nil {
			t.Fatalf("new element %v: %v", tg, err)
		}
		elems = append(elems, el)
	}
	add(tag.MediaStorageSOPClassUID, f.SOPClassUID)
	add(tag.MediaStorageSOPInstanceUID, metaUID)
	add(tag.TransferSyntaxUID, ExplicitVRLittleEndian)
	add(tag.SOPClassUID, f.SOPClassUID)
	add(tag.SOPInstanceUID, f.RecordUID)
	add(tag.PatientName, f.PatientName)
	add(tag.PatientID, f.SubjectID)
	add(tag.PatientBirthDate, f.BirthDate)
	add(tag.StudyInstanceUID, f.StudyUID)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	out, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer out.Close()
	if err := dicom.Write(out, dicom.Dataset{Elements: elems}); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ReadString returns the first string value of an element, or "".
func ReadString(t testing.TB, path string, tg tag.Tag) string {
	t.Helper()
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
	el, err := ds.FindElementByTag(tg)
	if err != nil {
		return ""
	}
	vals := dicom.MustGetStrings(el.Value)
	if len(vals) == 0 {
		return ""
	}
	return strings.Trim(vals[0], " \x00")
}
