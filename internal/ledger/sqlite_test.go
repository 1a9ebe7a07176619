package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
)

func newTestLedger(t *testing.T) *SQLiteLedger {
	t.Helper()
	dir := t.TempDir()
	l, err := NewSQLiteLedger(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	run, err := l.StartRun(ctx, "verify", "range 1-3")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if run.ID == "" {
		t.Fatal("expected non-empty ID")
	}

	type detail struct {
		Missing []string `json:"missing"`
	}
	if err := l.Record(ctx, run.ID, "Subj01", "111", StatusOK, nil); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.Record(ctx, run.ID, "Subj02", "", StatusFailed, detail{Missing: []string{"U1"}}); err != nil {
		t.Fatalf("record: %v", err)
	}

	done, err := l.FinishRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if done.FinishedAt == nil {
		t.Error("expected finish time")
	}
	if done.Subjects != 2 || done.Failures != 1 {
		t.Errorf("expected 2 subjects / 1 failure, got %d / %d", done.Subjects, done.Failures)
	}

	got, results, err := l.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Selection != "range 1-3" {
		t.Errorf("selection %q", got.Selection)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Folder != "Subj01" || results[0].Detail != nil {
		t.Errorf("unexpected first result %+v", results[0])
	}
	var d detail
	if err := json.Unmarshal(results[1].Detail, &d); err != nil {
		t.Fatalf("detail: %v", err)
	}
	if len(d.Missing) != 1 || d.Missing[0] != "U1" {
		t.Errorf("detail round trip: %+v", d)
	}
	if results[1].SubjectID != "" {
		t.Errorf("expected empty subject id, got %q", results[1].SubjectID)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	a, _ := l.StartRun(ctx, "verify", "")
	b, _ := l.StartRun(ctx, "import", "")
	c, _ := l.StartRun(ctx, "verify", "")

	runs, err := l.ListRuns(ctx, ListParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 3 || runs[0].ID != c.ID || runs[2].ID != a.ID {
		t.Errorf("unexpected order: %+v", runs)
	}

	runs, _ = l.ListRuns(ctx, ListParams{Workflow: "verify", Limit: 1})
	if len(runs) != 1 || runs[0].ID != c.ID {
		t.Errorf("filter/limit: %+v", runs)
	}

	latest, _, err := l.GetRun(ctx, "latest")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != c.ID {
		t.Errorf("latest = %s, want %s", latest.ID, c.ID)
	}
	_ = b
}

func TestGetRunNotFound(t *testing.T) {
	l := newTestLedger(t)
	_, _, err := l.GetRun(context.Background(), "nope")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
	_, err = l.FinishRun(context.Background(), "nope")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "stats.db")
	l, err := NewSQLiteLedger(path)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	for i := 0; i < 2; i++ {
		r, _ := l.StartRun(ctx, "import", "")
		l.Record(ctx, r.ID, "S", "1", StatusFailed, nil)
		l.FinishRun(ctx, r.ID)
	}
	r, _ := l.StartRun(ctx, "verify", "")
	l.FinishRun(ctx, r.ID)

	st, err := l.Stats(ctx, path)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalRuns != 3 {
		t.Errorf("total runs %d", st.TotalRuns)
	}
	if len(st.Workflows) != 2 || st.Workflows[0].Workflow != "import" || st.Workflows[0].Failures != 2 {
		t.Errorf("workflow stats: %+v", st.Workflows)
	}
}
