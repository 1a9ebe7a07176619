package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/vitesse-sync/internal/workflow"
)

func init() {
	cmd := &cobra.Command{
		Use:   "lookup [ids.csv]",
		Short: "Look up canonical names for a CSV list of subject ids",
		Long: "Reads subject ids from the first column of a CSV file (header skipped) and writes\n" +
			"BCCID,LastName,FirstName rows to a results file next to the run log.\n" +
			"Defaults to " + workflow.DefaultLookupInput + " in the archive root.",
		Args: cobra.MaximumNArgs(1),
		Run:  runLookup,
	}
	cmd.Flags().StringP("storage", "s", "", "Archive root (overrides storage_path)")
	cmd.Flags().String("log-dir", "", "Directory for logs and results (default: archive root)")
	cmd.Flags().Bool("no-ledger", false, "Do not record the run in the ledger")
	RootCmd.AddCommand(cmd)
}

func runLookup(cmd *cobra.Command, args []string) {
	cfg, err := runConfig(cmd)
	if err != nil {
		exitErr("config", err)
	}
	deps, closeDeps, err := workflowDeps(cmd, cfg)
	if err != nil {
		exitErr("open", err)
	}
	defer closeDeps()

	input := ""
	if len(args) == 1 {
		input = args[0]
	}
	sum, err := workflow.Lookup(cmd.Context(), deps, input)
	if err != nil {
		exitErr("lookup", err)
	}
	printSummary(sum)
}
