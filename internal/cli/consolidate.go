package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/vitesse-sync/internal/workflow"
)

func init() {
	cmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Rename, collect and prune containers so each subject's plans live in one container",
		Run:   runConsolidate,
	}
	addRunFlags(cmd)
	cmd.Flags().Bool("prune", false, "Remove the plans from other containers after renaming")
	cmd.Flags().Bool("collect", false, "Copy plans held elsewhere into the canonical container first")
	cmd.Flags().Bool("remove-originals", false, "With --collect, remove the copied originals")
	cmd.Flags().Bool("no-rename", false, "Skip renaming exact-match containers")
	RootCmd.AddCommand(cmd)
}

func runConsolidate(cmd *cobra.Command, args []string) {
	cfg, err := runConfig(cmd)
	if err != nil {
		exitErr("config", err)
	}
	f := cmd.Flags()
	if f.Changed("prune") {
		cfg.Consolidate.Prune, _ = f.GetBool("prune")
	}
	if f.Changed("collect") {
		cfg.Consolidate.Collect, _ = f.GetBool("collect")
	}
	if f.Changed("remove-originals") {
		cfg.Consolidate.RemoveOriginals, _ = f.GetBool("remove-originals")
	}
	if v, _ := f.GetBool("no-rename"); v {
		cfg.Consolidate.Rename = false
	}

	deps, closeDeps, err := workflowDeps(cmd, cfg)
	if err != nil {
		exitErr("open", err)
	}
	defer closeDeps()

	sum, err := workflow.Consolidate(cmd.Context(), deps)
	if err != nil {
		exitErr("consolidate", err)
	}
	printSummary(sum)
}
