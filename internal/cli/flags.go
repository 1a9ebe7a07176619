package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/vitesse-sync/internal/config"
)

// addRunFlags registers the overrides shared by the batch workflows.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("storage", "s", "", "Archive root (overrides storage_path)")
	cmd.Flags().String("course", "", "Canonical container name (overrides course_name)")
	cmd.Flags().String("log-dir", "", "Directory for run logs (default: archive root)")
	cmd.Flags().StringP("range", "r", "", "Select subjects by 1-based range, e.g. 3-10")
	cmd.Flags().StringP("indices", "i", "", "Select subjects by 1-based comma list, e.g. 1,4,7")
	cmd.Flags().Bool("no-ledger", false, "Do not record the run in the ledger")
}

// addDaemonFlags registers the network overrides used by import and echo.
func addDaemonFlags(cmd *cobra.Command) {
	cmd.Flags().String("host", "", "Receiver host (overrides daemon.host)")
	cmd.Flags().Int("port", 0, "Receiver port (overrides daemon.port)")
	cmd.Flags().String("called-ae", "", "Receiver AE title (overrides daemon.ae_title)")
	cmd.Flags().String("calling-ae", "", "Local AE title (overrides daemon.calling_ae)")
	cmd.Flags().Duration("timeout", 0, "Network timeout (overrides daemon.timeout)")
	cmd.Flags().Float64("rate", 0, "Maximum submissions per second, 0 for unpaced")
}

// runConfig loads the configuration and applies command-line overrides.
func runConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cfg, err
	}
	f := cmd.Flags()
	if v, _ := f.GetString("storage"); v != "" {
		cfg.StoragePath = v
	}
	if v, _ := f.GetString("course"); v != "" {
		cfg.CourseName = v
	}
	if v, _ := f.GetString("log-dir"); v != "" {
		cfg.LogDir = v
	}
	if v, _ := f.GetString("range"); v != "" {
		start, end, err := parseRange(v)
		if err != nil {
			return cfg, err
		}
		cfg.Selection = config.Selection{Mode: config.ModeRange, Start: start, End: end}
	}
	if v, _ := f.GetString("indices"); v != "" {
		cfg.Selection = config.Selection{Mode: config.ModeIndices, Indices: v}
	}

	if f.Lookup("host") != nil {
		if v, _ := f.GetString("host"); v != "" {
			cfg.Daemon.Host = v
		}
		if v, _ := f.GetInt("port"); v != 0 {
			cfg.Daemon.Port = v
		}
		if v, _ := f.GetString("called-ae"); v != "" {
			cfg.Daemon.AETitle = v
		}
		if v, _ := f.GetString("calling-ae"); v != "" {
			cfg.Daemon.CallingAE = v
		}
		if v, _ := f.GetDuration("timeout"); v > 0 {
			cfg.Daemon.Timeout = v
		}
		if v, _ := f.GetFloat64("rate"); v > 0 {
			cfg.Daemon.RatePerSecond = v
		}
	}
	return cfg, nil
}

func parseRange(s string) (int, int, error) {
	lo, hi, ok := strings.Cut(s, "-")
	if !ok {
		hi = lo
	}
	start, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range %q", s)
	}
	end, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range %q", s)
	}
	return start, end, nil
}

func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
