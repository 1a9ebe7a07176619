package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/vitesse-sync/internal/ledger"
)

func init() {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect the run ledger",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		Run:   runRunsList,
	}
	list.Flags().StringP("workflow", "w", "", "Filter by workflow")
	list.Flags().IntP("limit", "l", 20, "Max results")

	show := &cobra.Command{
		Use:   "show <run-id|latest>",
		Short: "Show a run and its per-subject results",
		Args:  cobra.ExactArgs(1),
		Run:   runRunsShow,
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show ledger statistics",
		Run:   runRunsStats,
	}

	cmd.AddCommand(list, show, stats)
	RootCmd.AddCommand(cmd)
}

func runRunsList(cmd *cobra.Command, args []string) {
	workflow, _ := cmd.Flags().GetString("workflow")
	limit, _ := cmd.Flags().GetInt("limit")

	l, err := openLedger()
	if err != nil {
		exitErr("open ledger", err)
	}
	defer l.Close()

	runs, err := l.ListRuns(cmd.Context(), ledger.ListParams{Workflow: workflow, Limit: limit})
	if err != nil {
		exitErr("list", err)
	}

	if formatFlag == "text" {
		for _, r := range runs {
			took := "running"
			if r.FinishedAt != nil {
				took = formatDuration(r.FinishedAt.Sub(r.StartedAt))
			}
			fmt.Printf("%s  %-12s %s  %d subjects, %d failed (%s)\n",
				r.ID, r.Workflow, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Subjects, r.Failures, took)
		}
		return
	}
	printJSON(runs)
}

func runRunsShow(cmd *cobra.Command, args []string) {
	l, err := openLedger()
	if err != nil {
		exitErr("open ledger", err)
	}
	defer l.Close()

	run, results, err := l.GetRun(cmd.Context(), args[0])
	if err != nil {
		exitErr("show", err)
	}
	printJSON(struct {
		*ledger.Run
		Results []ledger.SubjectResult `json:"results"`
	}{run, results})
}

func runRunsStats(cmd *cobra.Command, args []string) {
	l, err := openLedger()
	if err != nil {
		exitErr("open ledger", err)
	}
	defer l.Close()

	stats, err := l.Stats(cmd.Context(), getLedgerPath())
	if err != nil {
		exitErr("stats", err)
	}
	printJSON(stats)
}
