// Package cli implements the vitesse-sync CLI commands.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rcliao/vitesse-sync/internal/config"
	"github.com/rcliao/vitesse-sync/internal/ledger"
	"github.com/rcliao/vitesse-sync/internal/records"
)

var (
	configPath  string
	recordsPath string
	ledgerPath  string
	formatFlag  string
	verbose     bool

	logger = zap.NewNop()
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "vitesse-sync",
	Short: "Reconcile archived treatment-plan records with the record system",
	Long: "Verifies, imports and consolidates archived plan records against a record-management system.\n" +
		"Subjects are processed one at a time; per-subject failures never stop the batch.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file, YAML or legacy XML (default: $VITESSE_CONFIG or ~/.vitesse-sync/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&recordsPath, "records-db", "", "Record system database (default: $VITESSE_RECORDS_DB or ~/.vitesse-sync/records.db)")
	RootCmd.PersistentFlags().StringVar(&ledgerPath, "ledger", "", "Run ledger database (default: $VITESSE_LEDGER or ~/.vitesse-sync/ledger.db)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
}

func homePath(name string) string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".vitesse-sync", name)
}

func resolvePath(flag, env, name string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	return homePath(name)
}

func getRecordsPath() string { return resolvePath(recordsPath, "VITESSE_RECORDS_DB", "records.db") }
func getLedgerPath() string  { return resolvePath(ledgerPath, "VITESSE_LEDGER", "ledger.db") }

// loadConfig reads the config file, if any, over the defaults. A missing
// default file is not an error; a missing explicit one is.
func loadConfig() (config.Config, error) {
	path := resolvePath(configPath, "VITESSE_CONFIG", "config.yaml")
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) && configPath == "" && os.Getenv("VITESSE_CONFIG") == "" {
		return config.Default(), nil
	}
	if err == nil {
		logger.Debug("Loaded configuration", zap.String("path", path))
	}
	return cfg, err
}

func openRecords() (*records.SQLiteSystem, error) {
	return records.NewSQLiteSystem(getRecordsPath())
}

func openLedger() (*ledger.SQLiteLedger, error) {
	return ledger.NewSQLiteLedger(getLedgerPath())
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
