package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/vitesse-sync/internal/records"
)

func init() {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Manage the local record system database",
	}

	seed := &cobra.Command{
		Use:   "seed <fixture.yaml>",
		Short: "Load subjects, courses and plans from a YAML fixture",
		Args:  cobra.ExactArgs(1),
		Run:   runRecordsSeed,
	}
	show := &cobra.Command{
		Use:   "show <subject-id>",
		Short: "Show a subject's demographics and containers",
		Args:  cobra.ExactArgs(1),
		Run:   runRecordsShow,
	}

	cmd.AddCommand(seed, show)
	RootCmd.AddCommand(cmd)
}

func runRecordsSeed(cmd *cobra.Command, args []string) {
	f, err := records.LoadFixture(args[0])
	if err != nil {
		exitErr("load fixture", err)
	}
	s, err := openRecords()
	if err != nil {
		exitErr("open record system", err)
	}
	defer s.Close()

	n, err := s.Seed(cmd.Context(), f)
	if err != nil {
		exitErr("seed", err)
	}
	if formatFlag == "text" {
		fmt.Printf("seeded %d subjects, %d plans\n", len(f.Subjects), n)
		return
	}
	printJSON(map[string]int{"subjects": len(f.Subjects), "plans": n})
}

func runRecordsShow(cmd *cobra.Command, args []string) {
	s, err := openRecords()
	if err != nil {
		exitErr("open record system", err)
	}
	defer s.Close()

	snap, err := records.Snapshot(cmd.Context(), s, args[0])
	if err != nil {
		exitErr("show", err)
	}
	if formatFlag == "text" {
		fmt.Printf("%s %s, %s\n", snap.Subject.SubjectID, snap.Subject.LastName, snap.Subject.FirstName)
		for _, c := range snap.Containers {
			fmt.Printf("  %s\n", c.Name)
			for _, r := range c.Records {
				fmt.Printf("    %-16s %-20s %s\n", r.ID, r.Approval, r.UID)
			}
		}
		return
	}
	printJSON(snap)
}
