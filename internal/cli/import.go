package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rcliao/vitesse-sync/internal/config"
	"github.com/rcliao/vitesse-sync/internal/dimse"
	"github.com/rcliao/vitesse-sync/internal/transfer"
	"github.com/rcliao/vitesse-sync/internal/workflow"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Send archived record sets to the receiver, repairing identity mismatches once",
		Run:   runImport,
	}
	addRunFlags(cmd)
	addDaemonFlags(cmd)
	cmd.Flags().String("staging", "", "Directory for repaired copies (default: next to the originals)")
	cmd.Flags().Bool("no-fraction-logs", false, "Do not write cstore_log.txt in fraction folders")
	RootCmd.AddCommand(cmd)
}

func newDimseClient(cfg config.Config) *dimse.Client {
	return dimse.NewClient(dimse.Config{
		CallingAE: cfg.Daemon.CallingAE,
		CalledAE:  cfg.Daemon.AETitle,
		Addr:      cfg.Daemon.Addr(),
		Timeout:   cfg.Daemon.Timeout,
		MaxPDU:    cfg.Daemon.MaxPDU,
	}, logger.Named("dimse"))
}

func runImport(cmd *cobra.Command, args []string) {
	cfg, err := runConfig(cmd)
	if err != nil {
		exitErr("config", err)
	}
	if v, _ := cmd.Flags().GetString("staging"); v != "" {
		cfg.StagingDir = v
	}
	if v, _ := cmd.Flags().GetBool("no-fraction-logs"); v {
		cfg.FractionLogs = false
	}

	deps, closeDeps, err := workflowDeps(cmd, cfg)
	if err != nil {
		exitErr("open", err)
	}
	defer closeDeps()
	deps.Client = newDimseClient(cfg)
	deps.Sequence = transfer.NewSequence()

	logger.Info("Sending to receiver",
		zap.String("called_ae", cfg.Daemon.AETitle),
		zap.String("addr", cfg.Daemon.Addr()),
		zap.String("calling_ae", cfg.Daemon.CallingAE))
	sum, err := workflow.Import(cmd.Context(), deps)
	if err != nil {
		exitErr("import", err)
	}
	printSummary(sum)
}
