// =============================================================================
// Faktury Export - Preview Command
// =============================================================================
//
// This file defines the 'preview' command, which prints the draft invoices a
// ledger would produce without writing or sending anything.
//
// COMMAND USAGE:
//   faktury preview <ledger> [--format table|json]
//
// =============================================================================

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dpeterek-muni/faktury-export/internal/logger"
	"github.com/dpeterek-muni/faktury-export/internal/types"
	"github.com/spf13/cobra"
)

var (
	previewDrafts draftFlags
	previewFormat string
	previewLines  bool
)

var previewCmd = &cobra.Command{
	Use:   "preview <ledger>",
	Short: "Show the draft invoices for a ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run, err := buildDrafts(args[0], previewDrafts, logger.WithComponent("preview"))
		if err != nil {
			return err
		}

		switch previewFormat {
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(run.drafts.Invoices)
		case "table":
			return printDraftTable(cmd.OutOrStdout(), run.drafts.Invoices, previewLines)
		default:
			return fmt.Errorf("unknown format %q, want table or json", previewFormat)
		}
	},
}

func init() {
	rootCmd.AddCommand(previewCmd)

	previewDrafts.register(previewCmd, false)
	previewCmd.Flags().StringVar(&previewFormat, "format", "table", "Output format: table or json")
	previewCmd.Flags().BoolVar(&previewLines, "lines", false, "List the lines of every invoice")
}

// printDraftTable writes one row per invoice, optionally followed by its lines.
func printDraftTable(out io.Writer, invoices []*types.DraftInvoice, withLines bool) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "GROUP\tCLIENT\tCOUNTRY\tLINES\tWITHOUT VAT\tVAT\tTOTAL\tCURRENCY\tDUE")
	for _, inv := range invoices {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			inv.GroupKey,
			inv.ClientName,
			inv.Country,
			len(inv.Lines),
			inv.TotalWithoutVAT().StringFixed(2),
			inv.TotalVAT().StringFixed(2),
			inv.TotalWithVAT().StringFixed(2),
			inv.Currency,
			inv.DueOn(),
		)
		if !withLines {
			continue
		}
		for i, line := range inv.Lines {
			fmt.Fprintf(tw, "  %d\t%s\t\t\t%s\t%s%%\t\t\t\n",
				i, line.EffectiveName(), line.EffectivePrice().StringFixed(2), line.EffectiveVATRate().String())
		}
	}
	fmt.Fprintf(tw, "\n%d invoice(s)\n", len(invoices))
	return tw.Flush()
}
