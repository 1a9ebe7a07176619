package workflow

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/rcliao/vitesse-sync/internal/records"
	"github.com/rcliao/vitesse-sync/internal/runlog"
)

// DefaultLookupInput is the subject-id list read from the storage path
// when no input is given.
const DefaultLookupInput = "patients_misnamed_BCCIDs.csv"

var lookupHeader = []string{"BCCID", "LastName", "FirstName"}

// ReadSubjectIDs reads the first column of a CSV file, skipping the header
// row, stripping quotes and dropping blank entries.
func ReadSubjectIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var ids []string
	header := true
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if header {
			header = false
			continue
		}
		if len(rec) == 0 {
			continue
		}
		id := strings.TrimSpace(strings.ReplaceAll(rec[0], `"`, ""))
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Lookup fetches canonical names for every subject id in input and writes
// them to a results CSV next to the run log.
func Lookup(ctx context.Context, d Deps, input string) (*Summary, error) {
	dir := d.Config.LogDirectory()
	if dir == "" {
		return nil, errors.New("no log directory: set storage_path or log_dir")
	}
	if input == "" {
		input = filepath.Join(d.Config.StoragePath, DefaultLookupInput)
	}
	ids, err := ReadSubjectIDs(input)
	if err != nil {
		return nil, err
	}

	ts := d.now()
	r, err := d.start(ctx, "lookup", runlog.LookupLogName(ts))
	if err != nil {
		return nil, err
	}
	r.log.Info(fmt.Sprintf("Retrieving names for %d subject ids", len(ids)))

	resultsPath := filepath.Join(dir, runlog.LookupResultsName(ts))
	f, err := os.Create(resultsPath)
	if err != nil {
		r.finish(ctx)
		return nil, err
	}
	defer f.Close()
	r.summary.ResultsPath = resultsPath

	w := csv.NewWriter(f)
	w.Write(lookupHeader)

	directory := records.Directory{System: d.Records}
	for _, id := range ids {
		res := SubjectResult{Folder: id, SubjectID: id}
		demo, err := directory.Demographics(ctx, id)
		switch {
		case errors.Is(err, records.ErrSubjectNotFound):
			r.log.Warn(id+", NOT FOUND", zap.String("subject_id", id))
			w.Write([]string{id, "", ""})
			res.Failed, res.Error = true, "not found"
		case err != nil:
			r.log.Error(id+", ERROR", zap.String("subject_id", id), zap.Error(err))
			w.Write([]string{id, "ERROR", "ERROR"})
			res.Failed, res.Error = true, err.Error()
		default:
			r.log.Info(fmt.Sprintf("%s, %s, %s", id, demo.LastName, demo.FirstName))
			w.Write([]string{id, demo.LastName, demo.FirstName})
		}
		r.record(ctx, res)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		r.finish(ctx)
		return nil, fmt.Errorf("write results: %w", err)
	}
	return r.finish(ctx), nil
}
