package runlog

import (
	"fmt"
	"time"
)

// TimestampLayout is embedded in every log file name.
const TimestampLayout = "20060102_150405"

// FractionLogName is the per-fraction transfer log kept next to the records.
const FractionLogName = "cstore_log.txt"

func stamp(ts time.Time) string { return ts.Format(TimestampLayout) }

func VerifyLogName(ts time.Time, first, last string) string {
	return fmt.Sprintf("course_plan_verification_log_%s_indices_%s_to_%s.txt", stamp(ts), first, last)
}

func VerifyFailureLogName(ts time.Time) string {
	return fmt.Sprintf("course_plan_verification_failure_log_%s.txt", stamp(ts))
}

func ImportLogName(ts time.Time, first, last string) string {
	return fmt.Sprintf("global_summary_and_failures_log - %s_to_%s - %s.txt", first, last, stamp(ts))
}

func ConsolidateLogName(ts time.Time, first, last string) string {
	return fmt.Sprintf("dicom_transfer_log_%s_indices_%s_to_%s.txt", stamp(ts), first, last)
}

func LookupLogName(ts time.Time) string {
	return fmt.Sprintf("aria_patient_names_%s.txt", stamp(ts))
}

func LookupResultsName(ts time.Time) string {
	return fmt.Sprintf("aria_patient_names_%s_results.csv", stamp(ts))
}
