// =============================================================================
// Faktury Export - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every subcommand
// shares the configuration and logger set up here.
//
// COBRA CLI STRUCTURE:
//   rootCmd (faktury)
//   ├── exportCmd   (faktury export <ledger>)
//   ├── previewCmd  (faktury preview <ledger>)
//   ├── submitCmd   (faktury submit <ledger>)
//   ├── checkCmd    (faktury check)
//   ├── serveCmd    (faktury serve)
//   └── versionCmd  (faktury version)
//
// SETUP ORDER:
//   1. .env is loaded by main before the command runs
//   2. The config file is read and environment overrides applied
//   3. The global logger is configured from the log section
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dpeterek-muni/faktury-export/internal/config"
	"github.com/dpeterek-muni/faktury-export/internal/logger"
	"github.com/spf13/cobra"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the configuration file.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// cfg is the loaded configuration, available to every subcommand.
var cfg *config.Config

// logCloser releases the log file, if one was opened.
var logCloser io.Closer

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "faktury",
	Short: "Faktury Export - turn a licence ledger into invoices",
	Long: `Faktury Export reads a licence ledger spreadsheet (XLSX or CSV), decides
which rows are still billable, groups them by client IČO and produces
draft invoices. Drafts can be exported as one XML document or created in
Fakturoid.

Example Usage:
  faktury preview ledger.xlsx              # Show the draft invoices
  faktury export ledger.xlsx --xsd         # Write the XML export and its schema
  faktury submit ledger.xlsx --dry-run     # Check what would be created
  faktury serve                            # Run the HTTP API`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if verbose {
			loaded.Log.Level = "debug"
		}

		closer, err := logger.Setup(logger.LogConfig{
			Level:      loaded.Log.Level,
			Format:     loaded.Log.Format,
			TimeFormat: loaded.Log.TimeFormat,
			Output:     loaded.Log.Output,
		})
		if err != nil {
			return err
		}

		cfg = loaded
		logCloser = closer
		return nil
	},

	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		config.DefaultPath,
		"Path to the configuration file",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// =============================================================================
// SHARED FLAG HELPERS
// =============================================================================

// parseIDs parses a comma separated list of record ids, e.g. "1,4,7".
func parseIDs(s string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid record id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
