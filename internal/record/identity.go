// Package record reads and rewrites archived DICOM record files.
package record

import (
	"errors"
	"fmt"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
	"go.uber.org/zap"

	"github.com/rcliao/vitesse-sync/internal/archive"
	"github.com/rcliao/vitesse-sync/internal/model"
)

var (
	ErrFolderAbsent          = errors.New("import folder not found in fraction folder")
	ErrPlanFileAbsent        = errors.New("plan file not found in import folder")
	ErrIdentityFieldsMissing = errors.New("subject id or record uid not found in plan file")
)

// ParseError reports a record file that could not be decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ExtractPlanIdentity reads the designated plan file of a fraction.
func ExtractPlanIdentity(f archive.Fraction) (model.RecordIdentity, error) {
	if !archive.IsDir(f.ImportDir()) {
		return model.RecordIdentity{}, ErrFolderAbsent
	}
	path := f.PlanFile()
	if !archive.IsFile(path) {
		return model.RecordIdentity{}, ErrPlanFileAbsent
	}
	ds, err := parseHeader(path)
	if err != nil {
		return model.RecordIdentity{}, err
	}
	id := model.RecordIdentity{
		SubjectID: stringValue(&ds, tag.PatientID),
		RecordUID: stringValue(&ds, tag.SOPInstanceUID),
		StudyUID:  stringValue(&ds, tag.StudyInstanceUID),
	}
	if id.SubjectID == "" || id.RecordUID == "" {
		return model.RecordIdentity{}, ErrIdentityFieldsMissing
	}
	return id, nil
}

// ReadSubjectID returns the subject id embedded in any record file.
func ReadSubjectID(path string) (string, error) {
	ds, err := parseHeader(path)
	if err != nil {
		return "", err
	}
	id := stringValue(&ds, tag.PatientID)
	if id == "" {
		return "", ErrIdentityFieldsMissing
	}
	return id, nil
}

// SubjectIdentities aggregates the plan identities of one subject folder.
type SubjectIdentities struct {
	SubjectID  string
	UIDs       model.UIDSet
	Identities []model.RecordIdentity
	// Divergent holds subject ids that disagreed with SubjectID.
	Divergent []string
}

// CollectSubject extracts the plan identity of every fraction. Extraction
// failures are logged and skipped. The subject id comes from the first
// fraction that yields one.
func CollectSubject(fractions []archive.Fraction, log *zap.Logger) SubjectIdentities {
	out := SubjectIdentities{UIDs: model.NewUIDSet()}
	for _, f := range fractions {
		log.Info("Processing fraction folder", zap.String("fraction", f.Name))
		id, err := ExtractPlanIdentity(f)
		switch {
		case err == nil:
		case errors.Is(err, ErrFolderAbsent), errors.Is(err, ErrPlanFileAbsent):
			log.Info("Skipping fraction", zap.String("fraction", f.Name), zap.String("reason", err.Error()))
			continue
		default:
			log.Warn("Could not read plan identity", zap.String("fraction", f.Name), zap.Error(err))
			continue
		}

		log.Info("Found plan identity",
			zap.String("subject_id", id.SubjectID),
			zap.String("record_uid", id.RecordUID))
		switch {
		case out.SubjectID == "":
			out.SubjectID = id.SubjectID
		case out.SubjectID != id.SubjectID:
			log.Warn("Fractions disagree on subject id; keeping the first",
				zap.String("kept", out.SubjectID),
				zap.String("divergent", id.SubjectID),
				zap.String("fraction", f.Name))
			out.Divergent = append(out.Divergent, id.SubjectID)
		}
		out.UIDs.Add(id.RecordUID)
		out.Identities = append(out.Identities, id)
	}
	return out
}

func parseHeader(path string) (dicom.Dataset, error) {
	ds, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
	if err != nil {
		return dicom.Dataset{}, &ParseError{Path: path, Err: err}
	}
	return ds, nil
}

func stringValue(ds *dicom.Dataset, t tag.Tag) string {
	el, err := ds.FindElementByTag(t)
	if err != nil || el.Value == nil || el.Value.ValueType() != dicom.Strings {
		return ""
	}
	vals := dicom.MustGetStrings(el.Value)
	if len(vals) == 0 {
		return ""
	}
	return strings.Trim(vals[0], " \x00")
}
