// Package archive enumerates the on-disk record archive:
// <root>/<subject>/<fraction>/Edited for Eclipse Import/<files>.
package archive

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// ImportFolderName is the per-fraction folder holding the exported record set.
	ImportFolderName = "Edited for Eclipse Import"
	// ResendFolderName is the sibling folder used for identity-repaired copies.
	ResendFolderName = "Edited for Eclipse Import - 272 Resend"
	// PlanFileName is the designated plan record of a fraction.
	PlanFileName = "PL001.dcm"
)

// ErrRootMissing is returned when the archive root is absent or not a directory.
var ErrRootMissing = errors.New("archive root does not exist")

// Subject is one subject folder under the archive root.
type Subject struct {
	Name string
	Path string
}

// Fraction is one treatment-fraction folder under a subject.
type Fraction struct {
	Name string
	Path string
}

// ImportDir returns the fraction's import folder path.
func (f Fraction) ImportDir() string {
	return filepath.Join(f.Path, ImportFolderName)
}

// ResendDir returns the fraction's default resend folder path.
func (f Fraction) ResendDir() string {
	return filepath.Join(f.Path, ResendFolderName)
}

// PlanFile returns the path of the designated plan record.
func (f Fraction) PlanFile() string {
	return filepath.Join(f.ImportDir(), PlanFileName)
}

// ListSubjects returns the subject folders under root, sorted by folder name.
func ListSubjects(root string) ([]Subject, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRootMissing, root)
	}
	names, err := subdirs(root)
	if err != nil {
		return nil, err
	}
	subjects := make([]Subject, 0, len(names))
	for _, n := range names {
		subjects = append(subjects, Subject{Name: n, Path: filepath.Join(root, n)})
	}
	return subjects, nil
}

// ListFractions returns the fraction folders of a subject, sorted by folder name.
func ListFractions(subjectPath string) ([]Fraction, error) {
	names, err := subdirs(subjectPath)
	if err != nil {
		return nil, err
	}
	fractions := make([]Fraction, 0, len(names))
	for _, n := range names {
		fractions = append(fractions, Fraction{Name: n, Path: filepath.Join(subjectPath, n)})
	}
	return fractions, nil
}

// Select resolves zero-based ordinals against the subject ordering.
// Out-of-range indices are dropped.
func Select(subjects []Subject, indices []int) []Subject {
	var out []Subject
	for _, i := range indices {
		if i >= 0 && i < len(subjects) {
			out = append(out, subjects[i])
		}
	}
	return out
}

func subdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// IsDir reports whether path exists and is a directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// IsFile reports whether path exists and is a regular file.
func IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// nameHasPrefix compares the two-letter role prefix exactly as written.
func nameHasPrefix(name, prefix string) bool {
	return strings.HasPrefix(name, prefix)
}
