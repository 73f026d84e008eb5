// =============================================================================
// Faktury Export - Submit Command
// =============================================================================
//
// This file defines the 'submit' command, which creates the draft invoices of
// a ledger in Fakturoid.
//
// COMMAND USAGE:
//   faktury submit <ledger> [flags]
//
// CREDENTIALS:
//   FAKTUROID_CLIENT_ID, FAKTUROID_CLIENT_SECRET and FAKTUROID_SLUG from the
//   environment (or .env), or the fakturoid section of the config file.
//
// Invoices are created one at a time. A failed invoice does not stop the
// run; the command exits non-zero when any invoice failed.
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/dpeterek-muni/faktury-export/internal/fakturoid"
	"github.com/dpeterek-muni/faktury-export/internal/logger"
	"github.com/dpeterek-muni/faktury-export/internal/render"
	"github.com/dpeterek-muni/faktury-export/internal/submit"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	submitDrafts draftFlags
	submitDryRun bool
)

var submitCmd = &cobra.Command{
	Use:   "submit <ledger>",
	Short: "Create the draft invoices of a ledger in Fakturoid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.WithComponent("submit")
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		run, err := buildDrafts(args[0], submitDrafts, log)
		if err != nil {
			return err
		}
		if len(run.drafts.Invoices) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing to submit.")
			return nil
		}

		submitter, err := newSubmitter(log)
		if err != nil {
			return err
		}

		if submitDryRun {
			report, err := submitter.CheckSubjects(ctx, run.drafts.Invoices)
			if err != nil {
				return err
			}
			printSubjectReport(cmd.OutOrStdout(), report)
			return nil
		}

		report := submitter.Submit(ctx, run.drafts.Invoices)
		printSubmitReport(cmd.OutOrStdout(), report)
		if report.NeedsCredentials {
			return fakturoid.ErrNeedsCredentials
		}
		if report.ErrorCount > 0 {
			return fmt.Errorf("%d of %d invoice(s) failed", report.ErrorCount, report.TotalInvoices)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitDrafts.register(submitCmd, true)
	submitCmd.Flags().BoolVar(&submitDryRun, "dry-run", false, "Only look up the subjects, create nothing")
}

// remoteFromConfig builds a Fakturoid client from the configured credentials.
func remoteFromConfig(log zerolog.Logger) (*fakturoid.Client, error) {
	creds, _, err := fakturoid.ResolveCredentials(fakturoid.ServerCredentials(cfg.Fakturoid), fakturoid.Credentials{})
	if err != nil {
		return nil, fmt.Errorf("%w: set FAKTUROID_CLIENT_ID, FAKTUROID_CLIENT_SECRET and FAKTUROID_SLUG", err)
	}
	return fakturoid.New(creds, fakturoid.OptionsFromConfig(cfg.Fakturoid, log)), nil
}

func newSubmitter(log zerolog.Logger) (*submit.Submitter, error) {
	remote, err := remoteFromConfig(log)
	if err != nil {
		return nil, err
	}
	return submit.New(remote, render.New(), cfg.Billing.SubmissionCountries, log), nil
}

func printSubmitReport(out io.Writer, report *submit.Report) {
	for _, r := range report.Results {
		switch {
		case r.Success:
			fmt.Fprintf(out, "  ✓ %s %s → invoice %s (%s %s)\n",
				r.GroupKey, r.ClientName, r.InvoiceNumber, r.TotalAmount.StringFixed(2), r.Currency)
		case r.Skipped:
			fmt.Fprintf(out, "  - %s %s: %s\n", r.GroupKey, r.ClientName, r.Error)
		default:
			fmt.Fprintf(out, "  ✗ %s %s: %s\n", r.GroupKey, r.ClientName, r.Error)
		}
	}
	fmt.Fprintf(out, "\nTotal: %d  Created: %d  Failed: %d\n", report.TotalInvoices, report.SuccessCount, report.ErrorCount)
}

func printSubjectReport(out io.Writer, report *submit.SubjectReport) {
	for _, m := range report.Found {
		fmt.Fprintf(out, "  ✓ %s %s → subject %d (%s)\n", m.TaxID, m.ClientName, m.SubjectID, m.SubjectName)
	}
	for _, m := range report.NotFound {
		fmt.Fprintf(out, "  ✗ %s %s: %s\n", m.GroupKey, m.ClientName, m.Error)
	}
	fmt.Fprintf(out, "\nFound: %d  Not found: %d\n", len(report.Found), len(report.NotFound))
}
