package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const failureHeader = "Failure Log - Patients with one or more errors"

// FailureLog lists only the subjects that had at least one problem.
type FailureLog struct {
	log   *zap.Logger
	file  *os.File
	Path  string
	count int
}

// OpenFailureLog creates the failure log and writes its header.
func OpenFailureLog(dir, name string) (*FailureLog, error) {
	path := filepath.Join(dir, name)
	f, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	l := zap.New(zapcore.NewCore(messageEncoder(), zapcore.AddSync(f), zapcore.InfoLevel))
	l.Info(failureHeader)
	l.Info(strings.Repeat("=", len(failureHeader)))
	return &FailureLog{log: l, file: f, Path: path}, nil
}

// Subject records one failed subject. An empty subjectID means none could
// be read from the archive.
func (f *FailureLog) Subject(folder, subjectID string) {
	if subjectID == "" {
		subjectID = "Not Found"
	}
	f.log.Info(fmt.Sprintf("Patient Folder: %s, Patient ID: %s", folder, subjectID))
	f.count++
}

// Count is the number of subjects recorded.
func (f *FailureLog) Count() int { return f.count }

func (f *FailureLog) Close() error {
	_ = f.log.Sync()
	return f.file.Close()
}
