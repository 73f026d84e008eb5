// =============================================================================
// Faktury Export - Export Command
// =============================================================================
//
// This file defines the 'export' command, which runs the whole offline
// pipeline on one ledger and writes the XML export document.
//
// COMMAND USAGE:
//   faktury export <ledger> [flags]
//
// FLAGS:
//   --out            Output directory (default from config)
//   --policy         Grouping policy: inclusive or strict
//   --selected       Only invoice these record ids
//   --edits          YAML file with line edits
//   --due-days       Days until payment is due
//   --xsd            Also write the matching schema next to the export
//   --archive        Copy the export into the archive directory
//   --dry-run        Build and validate the drafts, write nothing
//
// PIPELINE:
//   ledger → records → billable records → groups → drafts → edits →
//   validation → XML document → output directory (→ archive)
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/dpeterek-muni/faktury-export/internal/logger"
	"github.com/dpeterek-muni/faktury-export/internal/render"
	"github.com/dpeterek-muni/faktury-export/pkg/utils"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	exportDrafts  draftFlags
	exportOutDir  string
	exportXSD     bool
	exportArchive bool
	exportDryRun  bool
)

var exportCmd = &cobra.Command{
	Use:   "export <ledger>",
	Short: "Write the XML export document for a ledger",
	Long: `Read a ledger, build one draft invoice per client and write all of them
into a single XML export document named after the export date.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportDrafts.register(exportCmd, true)
	exportCmd.Flags().StringVar(&exportOutDir, "out", "", "Output directory (default from config)")
	exportCmd.Flags().BoolVar(&exportXSD, "xsd", false, "Also write the XML schema next to the export")
	exportCmd.Flags().BoolVar(&exportArchive, "archive", false, "Copy the export into the archive directory")
	exportCmd.Flags().BoolVar(&exportDryRun, "dry-run", false, "Build and validate the drafts without writing files")
}

// =============================================================================
// MAIN EXPORT FUNCTION
// =============================================================================

func runExport(cmd *cobra.Command, ledgerPath string) error {
	startTime := time.Now()
	log := logger.WithComponent("export")
	out := cmd.OutOrStdout()

	run, err := buildDrafts(ledgerPath, exportDrafts, log)
	if err != nil {
		return err
	}
	invoices := run.drafts.Invoices
	if len(invoices) == 0 {
		return errors.New("no invoices to export: no billable records matched")
	}

	fmt.Fprintf(out, "Ledger:    %s (%d rows, %d billable)\n", run.ledger.Source, run.ledger.Stats.Rows, run.ledger.Stats.Billable)
	fmt.Fprintf(out, "Invoices:  %d\n", len(invoices))
	if n := len(run.drafts.Dropped); n > 0 {
		fmt.Fprintf(out, "Dropped:   %d record(s) without IČO\n", n)
	}

	if exportDryRun {
		fmt.Fprintln(out, "Dry run, nothing written.")
		return nil
	}

	renderer := render.New()
	doc, err := renderer.ExportDocument(invoices, render.ExportOptions{
		DueInDays: exportDrafts.dueDays,
		Namespace: cfg.Output.Namespace,
	})
	if err != nil {
		return err
	}

	outDir := cfg.Output.Dir
	if exportOutDir != "" {
		outDir = exportOutDir
	}
	fm := utils.NewFileManager(outDir, cfg.Output.ArchiveDir)
	fm.UseDateSubdirs = true

	summary := utils.RunSummary{
		StartTime: startTime,
		Source:    run.ledger.Source,
		Sheet:     run.ledger.Sheet,
		Rows:      run.ledger.Stats.Rows,
		Billable:  run.ledger.Stats.Billable,
		Groups:    len(invoices),
		Dropped:   len(run.drafts.Dropped),
		Invoices:  len(invoices),
		Warnings:  run.ledger.Warnings,
	}

	summary.OutputFile, err = fm.WriteOutput(cfg.Output.FileNameFormat, doc.Body)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "  ✓ %s\n", summary.OutputFile)

	if exportXSD {
		summary.SchemaFile, err = utils.WriteSibling(summary.OutputFile, ".xsd", render.GenerateXSD(cfg.Output.Namespace))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  ✓ %s\n", summary.SchemaFile)
	}

	if exportArchive {
		summary.ArchivePath, err = fm.ArchiveFile(summary.OutputFile)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  ✓ archived to %s\n", summary.ArchivePath)
	}

	summary.EndTime = time.Now()
	summaryPath, err := fm.WriteSummaryLog(summary)
	if err != nil {
		// the export itself is already on disk
		log.Warn().Err(err).Msg("Failed to write run summary")
	} else {
		log.Debug().Str("path", summaryPath).Msg("Run summary written")
	}

	log.Info().
		Str("file", summary.OutputFile).
		Int("invoices", len(invoices)).
		Dur("elapsed", time.Since(startTime)).
		Msg("Export complete")
	return nil
}
