package cmd

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dpeterek-muni/faktury-export/internal/logger"
	"github.com/dpeterek-muni/faktury-export/internal/render"
	"github.com/dpeterek-muni/faktury-export/internal/submit"
	"github.com/spf13/cobra"
)

var (
	checkDrafts   draftFlags
	checkSubjects string
)

// checkCmd tests the Fakturoid connection and, given a ledger, looks up the
// subject of every invoice.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Test the Fakturoid connection",
	Example: `  faktury check
  faktury check --subjects ledger.xlsx`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.WithComponent("check")
		out := cmd.OutOrStdout()
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		remote, err := remoteFromConfig(log)
		if err != nil {
			return err
		}
		conn := submit.CheckConnection(ctx, remote, true)
		if !conn.Success {
			return errors.New(conn.Error)
		}
		fmt.Fprintf(out, "Connected to %s (%s)\n", conn.Account.Name, conn.Account.Subdomain)

		if checkSubjects == "" {
			return nil
		}
		run, err := buildDrafts(checkSubjects, checkDrafts, log)
		if err != nil {
			return err
		}
		report, err := submit.New(remote, render.New(), cfg.Billing.SubmissionCountries, log).CheckSubjects(ctx, run.drafts.Invoices)
		if err != nil {
			return err
		}
		printSubjectReport(out, report)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkDrafts.register(checkCmd, true)
	checkCmd.Flags().StringVar(&checkSubjects, "subjects", "", "Ledger whose invoice subjects to look up")
}
