package model

// ReconciliationReport is the result of verifying one subject.
type ReconciliationReport struct {
	SubjectID              string              `json:"subject_id"`
	ExpectedContainerName  string              `json:"expected_container_name"`
	FoundExpectedContainer bool                `json:"found_expected_container"`
	ExactMatch             bool                `json:"exact_match"`
	ContainerCount         int                 `json:"container_count"`
	MissingFromContainer   UIDSet              `json:"-"`
	ExtraInContainer       UIDSet              `json:"-"`
	CrossListedIn          map[string][]string `json:"cross_listed_in,omitempty"`
}

// Failed reports whether any check failed. A record listed in a container
// other than the expected one fails the report even on an exact match.
func (r ReconciliationReport) Failed() bool {
	return !r.FoundExpectedContainer || !r.ExactMatch || len(r.CrossListedIn) > 0
}

// ReportSummary is the JSON-friendly view of a report.
type ReportSummary struct {
	SubjectID              string              `json:"subject_id"`
	ExpectedContainerName  string              `json:"expected_container_name"`
	FoundExpectedContainer bool                `json:"found_expected_container"`
	ExactMatch             bool                `json:"exact_match"`
	Missing                []string            `json:"missing,omitempty"`
	Extra                  []string            `json:"extra,omitempty"`
	CrossListedIn          map[string][]string `json:"cross_listed_in,omitempty"`
}

// Summary converts the report for serialization.
func (r ReconciliationReport) Summary() ReportSummary {
	return ReportSummary{
		SubjectID:              r.SubjectID,
		ExpectedContainerName:  r.ExpectedContainerName,
		FoundExpectedContainer: r.FoundExpectedContainer,
		ExactMatch:             r.ExactMatch,
		Missing:                r.MissingFromContainer.Sorted(),
		Extra:                  r.ExtraInContainer.Sorted(),
		CrossListedIn:          r.CrossListedIn,
	}
}

// TransferOutcome is the result of submitting one record file.
type TransferOutcome struct {
	RecordPath string `json:"record_path"`
	StatusCode uint16 `json:"status_code"`
	Succeeded  bool   `json:"succeeded"`
	Mismatch   bool   `json:"mismatch,omitempty"`
	Err        string `json:"error,omitempty"`
}
