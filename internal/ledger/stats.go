package ledger

import (
	"context"
	"os"
)

// Stats holds ledger statistics.
type Stats struct {
	DBPath      string          `json:"db_path"`
	DBSizeBytes int64           `json:"db_size_bytes"`
	TotalRuns   int             `json:"total_runs"`
	Workflows   []WorkflowStats `json:"workflows"`
}

// WorkflowStats holds per-workflow counts.
type WorkflowStats struct {
	Workflow string `json:"workflow"`
	Runs     int    `json:"runs"`
	Subjects int    `json:"subjects"`
	Failures int    `json:"failures"`
}

// Stats returns ledger statistics.
func (l *SQLiteLedger) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&st.TotalRuns)

	rows, err := l.db.QueryContext(ctx, `
		SELECT workflow, COUNT(*) AS cnt, SUM(subjects), SUM(failures)
		FROM runs GROUP BY workflow ORDER BY cnt DESC, workflow`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var ws WorkflowStats
		if err := rows.Scan(&ws.Workflow, &ws.Runs, &ws.Subjects, &ws.Failures); err != nil {
			return st, err
		}
		st.Workflows = append(st.Workflows, ws)
	}
	return st, rows.Err()
}
