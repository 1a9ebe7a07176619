package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/vitesse-sync/internal/transfer"
)

func init() {
	cmd := &cobra.Command{
		Use:   "echo",
		Short: "Check that the receiver accepts associations (C-ECHO)",
		Run:   runEcho,
	}
	addDaemonFlags(cmd)
	RootCmd.AddCommand(cmd)
}

func runEcho(cmd *cobra.Command, args []string) {
	cfg, err := runConfig(cmd)
	if err != nil {
		exitErr("config", err)
	}
	status, err := newDimseClient(cfg).Echo(cmd.Context(), transfer.NewSequence().Next())
	if err != nil {
		exitErr("echo", err)
	}
	if formatFlag == "text" {
		fmt.Printf("%s@%s: status 0x%04X (%s)\n", cfg.Daemon.AETitle, cfg.Daemon.Addr(), status, transfer.Classify(status))
		return
	}
	printJSON(map[string]any{
		"called_ae": cfg.Daemon.AETitle,
		"addr":      cfg.Daemon.Addr(),
		"status":    status,
		"result":    transfer.Classify(status).String(),
	})
}
