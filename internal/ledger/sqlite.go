package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// fixed width so stored times sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteLedger implements Ledger using SQLite.
type SQLiteLedger struct {
	db      *sql.DB
	mu      sync.Mutex
	entropy *rand.Rand
}

// NewSQLiteLedger opens or creates a ledger database at the given path.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
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

	return &SQLiteLedger{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

func (l *SQLiteLedger) newID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), l.entropy).String()
}

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

func (l *SQLiteLedger) StartRun(ctx context.Context, workflow, selection string) (*Run, error) {
	r := &Run{ID: l.newID(), Workflow: workflow, Selection: selection, StartedAt: time.Now().UTC()}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, workflow, selection, started_at) VALUES (?, ?, ?, ?)`,
		r.ID, r.Workflow, nullIfEmpty(r.Selection), r.StartedAt.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return r, nil
}

func (l *SQLiteLedger) Record(ctx context.Context, runID, folder, subjectID, status string, detail any) error {
	var detailJSON sql.NullString
	if detail != nil {
		b, err := json.Marshal(detail)
		if err != nil {
			return fmt.Errorf("marshal detail: %w", err)
		}
		detailJSON = sql.NullString{String: string(b), Valid: true}
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO subject_results (id, run_id, folder, subject_id, status, detail, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.newID(), runID, folder, nullIfEmpty(subjectID), status, detailJSON,
		time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func (l *SQLiteLedger) FinishRun(ctx context.Context, runID string) (*Run, error) {
	now := time.Now().UTC().Format(timeLayout)
	res, err := l.db.ExecContext(ctx, `
		UPDATE runs SET
			finished_at = ?,
			subjects = (SELECT COUNT(*) FROM subject_results WHERE run_id = runs.id),
			failures = (SELECT COUNT(*) FROM subject_results WHERE run_id = runs.id AND status = ?)
		WHERE id = ?`, now, StatusFailed, runID)
	if err != nil {
		return nil, fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	r, _, err := l.GetRun(ctx, runID)
	return r, err
}

const runColumns = `id, workflow, selection, started_at, finished_at, subjects, failures`

func (l *SQLiteLedger) ListRuns(ctx context.Context, p ListParams) ([]Run, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if p.Workflow != "" {
		where = append(where, "workflow = ?")
		args = append(args, p.Workflow)
	}
	query := `SELECT ` + runColumns + ` FROM runs WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY started_at DESC, id DESC`
	if p.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", p.Limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (l *SQLiteLedger) GetRun(ctx context.Context, id string) (*Run, []SubjectResult, error) {
	var row *sql.Row
	if id == "latest" {
		row = l.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id DESC LIMIT 1`)
	} else {
		row = l.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	}
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, nil, err
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT folder, subject_id, status, detail, recorded_at
		FROM subject_results WHERE run_id = ? ORDER BY rowid`, r.ID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var results []SubjectResult
	for rows.Next() {
		var sr SubjectResult
		var subjectID, detail sql.NullString
		var recorded string
		if err := rows.Scan(&sr.Folder, &subjectID, &sr.Status, &detail, &recorded); err != nil {
			return nil, nil, err
		}
		sr.SubjectID = subjectID.String
		if detail.Valid {
			sr.Detail = json.RawMessage(detail.String)
		}
		sr.RecordedAt, _ = time.Parse(timeLayout, recorded)
		results = append(results, sr)
	}
	return &r, results, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (Run, error) {
	var r Run
	var selection, finished sql.NullString
	var started string
	if err := s.Scan(&r.ID, &r.Workflow, &selection, &started, &finished, &r.Subjects, &r.Failures); err != nil {
		return r, err
	}
	r.Selection = selection.String
	r.StartedAt, _ = time.Parse(timeLayout, started)
	if finished.Valid {
		t, _ := time.Parse(timeLayout, finished.String)
		r.FinishedAt = &t
	}
	return r, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
