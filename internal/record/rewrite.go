package record

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/rcliao/vitesse-sync/internal/model"
)

// RewriteDemographics replaces the patient name and, when known, the birth
// date of the record at path. All other elements are written back unchanged.
func RewriteDemographics(path string, d model.Demographics) error {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return &ParseError{Path: path, Err: err}
	}

	name, err := dicom.NewElement(tag.PatientName, []string{d.DICOMName()})
	if err != nil {
		return fmt.Errorf("patient name element: %w", err)
	}
	replaceOrInsert(&ds, name)

	if bd := d.DICOMBirthDate(); bd != "" {
		birth, err := dicom.NewElement(tag.PatientBirthDate, []string{bd})
		if err != nil {
			return fmt.Errorf("birth date element: %w", err)
		}
		replaceOrInsert(&ds, birth)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".rewrite-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := dicom.Write(tmp, ds, dicom.SkipVRVerification()); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// replaceOrInsert keeps the data set in ascending tag order.
func replaceOrInsert(ds *dicom.Dataset, el *dicom.Element) {
	for i, cur := range ds.Elements {
		if cur.Tag == el.Tag {
			ds.Elements[i] = el
			return
		}
		if cur.Tag.Group != metaGroup && tagLess(el.Tag, cur.Tag) {
			ds.Elements = append(ds.Elements, nil)
			copy(ds.Elements[i+1:], ds.Elements[i:])
			ds.Elements[i] = el
			return
		}
	}
	ds.Elements = append(ds.Elements, el)
}

func tagLess(a, b tag.Tag) bool {
	if a.Group != b.Group {
		return a.Group < b.Group
	}
	return a.Element < b.Element
}
