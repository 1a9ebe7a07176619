package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/vitesse-sync/internal/model"
)

const birthDateLayout = "2006-01-02"

// SQLiteSystem implements System on a SQLite database.
type SQLiteSystem struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *rand.Rand
	open    bool
}

// NewSQLiteSystem opens or creates a record database at the given path.
func NewSQLiteSystem(dbPath string) (*SQLiteSystem, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &SQLiteSystem{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

func (s *SQLiteSystem) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteSystem) OpenSubject(ctx context.Context, subjectID string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return nil, ErrSessionOpen
	}

	d, err := loadSubject(ctx, s.db, subjectID)
	if err != nil {
		return nil, err
	}
	s.open = true
	return &sqliteSession{sys: s, subject: d}, nil
}

func (s *SQLiteSystem) release() {
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
}

func (s *SQLiteSystem) Close() error {
	return s.db.Close()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadSubject(ctx context.Context, q querier, subjectID string) (model.Demographics, error) {
	d := model.Demographics{SubjectID: subjectID}
	var birth sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT first_name, last_name, birth_date FROM subjects WHERE id = ?`, subjectID).
		Scan(&d.FirstName, &d.LastName, &birth)
	if errors.Is(err, sql.ErrNoRows) {
		return d, fmt.Errorf("%w: %s", ErrSubjectNotFound, subjectID)
	}
	if err != nil {
		return d, err
	}
	if birth.Valid && birth.String != "" {
		if d.BirthDate, err = time.Parse(birthDateLayout, birth.String); err != nil {
			return d, fmt.Errorf("subject %s: invalid birth_date %q: %w", subjectID, birth.String, err)
		}
	}
	return d, nil
}

type sqliteSession struct {
	sys     *SQLiteSystem
	subject model.Demographics
	tx      *sql.Tx
	closed  bool
}

func (s *sqliteSession) q() querier {
	if s.tx != nil {
		return s.tx
	}
	return s.sys.db
}

func (s *sqliteSession) Subject() model.Demographics { return s.subject }

func (s *sqliteSession) Containers(ctx context.Context) ([]model.Container, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	rows, err := s.q().QueryContext(ctx,
		`SELECT id, name FROM courses WHERE subject_id = ? ORDER BY rowid`, s.subject.SubjectID)
	if err != nil {
		return nil, err
	}
	var containers []model.Container
	index := map[string]int{}
	for rows.Next() {
		var c model.Container
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			rows.Close()
			return nil, err
		}
		index[c.ID] = len(containers)
		containers = append(containers, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	prows, err := s.q().QueryContext(ctx,
		`SELECT p.course_id, p.plan_id, p.uid, p.approval
		 FROM plans p JOIN courses c ON c.id = p.course_id
		 WHERE c.subject_id = ? ORDER BY p.rowid`, s.subject.SubjectID)
	if err != nil {
		return nil, err
	}
	defer prows.Close()
	for prows.Next() {
		var courseID, approval string
		var r model.Record
		if err := prows.Scan(&courseID, &r.ID, &r.UID, &approval); err != nil {
			return nil, err
		}
		r.Approval = model.Approval(approval)
		if i, ok := index[courseID]; ok {
			containers[i].Records = append(containers[i].Records, r)
		}
	}
	return containers, prows.Err()
}

func (s *sqliteSession) BeginModifications(ctx context.Context) error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.tx != nil {
		return nil
	}
	tx, err := s.sys.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin modifications: %w", err)
	}
	s.tx = tx
	return nil
}

func (s *sqliteSession) modifying() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.tx == nil {
		return ErrNotModifying
	}
	return nil
}

func (s *sqliteSession) ownsContainer(ctx context.Context, containerID string) error {
	var n int
	err := s.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM courses WHERE id = ? AND subject_id = ?`, containerID, s.subject.SubjectID).Scan(&n)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrContainerNotFound, containerID)
	}
	return nil
}

func (s *sqliteSession) AddContainer(ctx context.Context, name string) (model.Container, error) {
	if err := s.modifying(); err != nil {
		return model.Container{}, err
	}
	c := model.Container{ID: s.sys.newID(), Name: name}
	_, err := s.tx.ExecContext(ctx,
		`INSERT INTO courses (id, subject_id, name, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, s.subject.SubjectID, name, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return model.Container{}, fmt.Errorf("insert course: %w", err)
	}
	return c, nil
}

func (s *sqliteSession) RenameContainer(ctx context.Context, containerID, newName string) error {
	if err := s.modifying(); err != nil {
		return err
	}
	res, err := s.tx.ExecContext(ctx,
		`UPDATE courses SET name = ? WHERE id = ? AND subject_id = ?`, newName, containerID, s.subject.SubjectID)
	if err != nil {
		return fmt.Errorf("rename course: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrContainerNotFound, containerID)
	}
	return nil
}

// CopyRecordInto places a copy of rec in the container. The copy keeps the
// record id and UID and starts out unapproved.
func (s *sqliteSession) CopyRecordInto(ctx context.Context, containerID string, rec model.Record) (model.Record, error) {
	if err := s.modifying(); err != nil {
		return model.Record{}, err
	}
	if err := s.ownsContainer(ctx, containerID); err != nil {
		return model.Record{}, err
	}
	var n int
	if err := s.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM plans WHERE course_id = ? AND plan_id = ?`, containerID, rec.ID).Scan(&n); err != nil {
		return model.Record{}, err
	}
	if n > 0 {
		return model.Record{}, fmt.Errorf("%w: %s", ErrRecordExists, rec.ID)
	}
	cp := model.Record{ID: rec.ID, UID: rec.UID, Approval: model.UnApproved}
	_, err := s.tx.ExecContext(ctx,
		`INSERT INTO plans (id, course_id, plan_id, uid, approval) VALUES (?, ?, ?, ?, ?)`,
		s.sys.newID(), containerID, cp.ID, cp.UID, string(cp.Approval))
	if err != nil {
		return model.Record{}, fmt.Errorf("insert plan: %w", err)
	}
	return cp, nil
}

func (s *sqliteSession) RemoveRecord(ctx context.Context, containerID, recordUID string) error {
	if err := s.modifying(); err != nil {
		return err
	}
	if err := s.ownsContainer(ctx, containerID); err != nil {
		return err
	}
	rows, err := s.tx.QueryContext(ctx,
		`SELECT approval FROM plans WHERE course_id = ? AND uid = ?`, containerID, recordUID)
	if err != nil {
		return err
	}
	found := 0
	for rows.Next() {
		var approval string
		if err := rows.Scan(&approval); err != nil {
			rows.Close()
			return err
		}
		found++
		if !model.Approval(approval).Removable() {
			rows.Close()
			return fmt.Errorf("%w: %s is %s", ErrNotRemovable, recordUID, approval)
		}
	}
	rows.Close()
	if found == 0 {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, recordUID)
	}
	_, err = s.tx.ExecContext(ctx,
		`DELETE FROM plans WHERE course_id = ? AND uid = ?`, containerID, recordUID)
	return err
}

func (s *sqliteSession) Commit(ctx context.Context) error {
	if err := s.modifying(); err != nil {
		return err
	}
	err := s.tx.Commit()
	s.tx = nil
	return err
}

func (s *sqliteSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if s.tx != nil {
		err = s.tx.Rollback()
		s.tx = nil
	}
	s.sys.release()
	return err
}
