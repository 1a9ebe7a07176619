// Package records provides the remote record-system interface and a
// SQLite-backed implementation.
package records

import (
	"context"
	"errors"

	"github.com/rcliao/vitesse-sync/internal/model"
)

var (
	ErrSubjectNotFound   = errors.New("subject not found in record system")
	ErrSessionOpen       = errors.New("another subject session is already open")
	ErrSessionClosed     = errors.New("subject session is closed")
	ErrNotModifying      = errors.New("modifications not begun")
	ErrContainerNotFound = errors.New("container not found")
	ErrRecordNotFound    = errors.New("record not found in container")
	ErrRecordExists      = errors.New("container already holds a record with that id")
	ErrNotRemovable      = errors.New("record approval state does not allow removal")
)

// System is a record-management system holding subjects, their containers
// ("courses") and the plan records inside them.
type System interface {
	// OpenSubject opens the single active subject session.
	// Returns ErrSubjectNotFound or ErrSessionOpen.
	OpenSubject(ctx context.Context, subjectID string) (Session, error)

	// Close releases the system.
	Close() error
}

// Session is one open subject context. Mutations must be bracketed by
// BeginModifications and Commit; Close discards anything uncommitted.
type Session interface {
	// Subject returns the canonical demographics of the open subject.
	Subject() model.Demographics

	// Containers lists all containers with their records, in creation order.
	Containers(ctx context.Context) ([]model.Container, error)

	BeginModifications(ctx context.Context) error
	AddContainer(ctx context.Context, name string) (model.Container, error)
	RenameContainer(ctx context.Context, containerID, newName string) error
	CopyRecordInto(ctx context.Context, containerID string, rec model.Record) (model.Record, error)
	RemoveRecord(ctx context.Context, containerID, recordUID string) error
	Commit(ctx context.Context) error

	// Close ends the session. Safe to call more than once.
	Close() error
}

// WithSubject opens a subject session, runs fn, and always closes the
// session before returning, including when fn panics.
func WithSubject(ctx context.Context, sys System, subjectID string, fn func(Session) error) (err error) {
	sess, err := sys.OpenSubject(ctx, subjectID)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(sess)
}

// Directory looks up canonical demographics by subject id.
type Directory struct {
	System System
}

// Demographics opens the subject, reads its demographics and closes it.
func (d Directory) Demographics(ctx context.Context, subjectID string) (model.Demographics, error) {
	var out model.Demographics
	err := WithSubject(ctx, d.System, subjectID, func(s Session) error {
		out = s.Subject()
		return nil
	})
	return out, err
}
