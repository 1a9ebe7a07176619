// Package model defines the core record, container and report types.
package model

import (
	"strings"
	"time"
)

// RecordIdentity is the identity embedded in an archived plan record.
type RecordIdentity struct {
	SubjectID string `json:"subject_id"`
	RecordUID string `json:"record_uid"`
	StudyUID  string `json:"study_uid,omitempty"`
}

// Demographics are the canonical subject fields held by the record system.
type Demographics struct {
	SubjectID string    `json:"subject_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	BirthDate time.Time `json:"birth_date,omitempty"`
}

// DICOMName renders the person name as Last^First.
func (d Demographics) DICOMName() string {
	return strings.TrimSpace(d.LastName) + "^" + strings.TrimSpace(d.FirstName)
}

// DICOMBirthDate renders the birth date as YYYYMMDD, or "" when unknown.
func (d Demographics) DICOMBirthDate() string {
	if d.BirthDate.IsZero() {
		return ""
	}
	return d.BirthDate.Format("20060102")
}

// Approval is the clinical approval state of a plan record.
type Approval string

const (
	UnApproved        Approval = "UnApproved"
	Reviewed          Approval = "Reviewed"
	PlanningApproved  Approval = "PlanningApproved"
	TreatmentApproved Approval = "TreatmentApproved"
	Completed         Approval = "Completed"
	Retired           Approval = "Retired"
	Rejected          Approval = "Rejected"
)

// ValidApprovals are the allowed approval states.
var ValidApprovals = map[Approval]bool{
	UnApproved:        true,
	Reviewed:          true,
	PlanningApproved:  true,
	TreatmentApproved: true,
	Completed:         true,
	Retired:           true,
	Rejected:          true,
}

// Removable reports whether a record in this state may be taken out of a container.
func (a Approval) Removable() bool {
	return a == UnApproved
}

// Record is a plan record held by a container.
type Record struct {
	ID       string   `json:"id"`
	UID      string   `json:"uid"`
	Approval Approval `json:"approval"`
}

// Container is a named grouping of records ("course") within a subject.
type Container struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Records []Record `json:"records"`
}

// UIDs returns the set of record UIDs in the container.
func (c Container) UIDs() UIDSet {
	s := make(UIDSet, len(c.Records))
	for _, r := range c.Records {
		s.Add(r.UID)
	}
	return s
}

// Find returns the first record with the given UID.
func (c Container) Find(uid string) (Record, bool) {
	for _, r := range c.Records {
		if r.UID == uid {
			return r, true
		}
	}
	return Record{}, false
}
