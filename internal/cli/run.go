package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/rcliao/vitesse-sync/internal/config"
	"github.com/rcliao/vitesse-sync/internal/ledger"
	"github.com/rcliao/vitesse-sync/internal/workflow"
)

// workflowDeps opens the record system and, unless disabled, the ledger.
// The returned func closes them.
func workflowDeps(cmd *cobra.Command, cfg config.Config) (workflow.Deps, func(), error) {
	sys, err := openRecords()
	if err != nil {
		return workflow.Deps{}, nil, fmt.Errorf("open record system: %w", err)
	}
	deps := workflow.Deps{
		Config:  cfg,
		Records: sys,
		Console: os.Stdout,
		Level:   zapcore.InfoLevel,
	}
	if verbose {
		deps.Level = zapcore.DebugLevel
	}
	closers := []func() error{sys.Close}

	if noLedger, _ := cmd.Flags().GetBool("no-ledger"); !noLedger {
		var l *ledger.SQLiteLedger
		l, err = openLedger()
		if err != nil {
			sys.Close()
			return workflow.Deps{}, nil, fmt.Errorf("open ledger: %w", err)
		}
		deps.Ledger = l
		closers = append(closers, l.Close)
	}
	return deps, func() {
		for _, c := range closers {
			c()
		}
	}, nil
}

func printSummary(s *workflow.Summary) {
	if formatFlag == "text" {
		for _, r := range s.Subjects {
			status := "ok"
			if r.Failed {
				status = "FAILED"
			}
			line := fmt.Sprintf("%-8s %s", status, r.Folder)
			if r.SubjectID != "" {
				line += " (" + r.SubjectID + ")"
			}
			if r.Error != "" {
				line += ": " + r.Error
			}
			fmt.Println(line)
		}
		fmt.Printf("%d subjects, %d failed. Log: %s\n", len(s.Subjects), s.Failures, s.LogPath)
		return
	}
	printJSON(s)
}
