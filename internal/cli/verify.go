package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/vitesse-sync/internal/workflow"
)

func init() {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check archived plans against the canonical container of each subject",
		Run:   runVerify,
	}
	addRunFlags(cmd)
	RootCmd.AddCommand(cmd)
}

func runVerify(cmd *cobra.Command, args []string) {
	cfg, err := runConfig(cmd)
	if err != nil {
		exitErr("config", err)
	}
	deps, closeDeps, err := workflowDeps(cmd, cfg)
	if err != nil {
		exitErr("open", err)
	}
	defer closeDeps()

	sum, err := workflow.Verify(cmd.Context(), deps)
	if err != nil {
		exitErr("verify", err)
	}
	printSummary(sum)
}
