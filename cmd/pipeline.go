package cmd

import (
	"errors"
	"fmt"

	"github.com/dpeterek-muni/faktury-export/internal/assembler"
	"github.com/dpeterek-muni/faktury-export/internal/converter"
	"github.com/dpeterek-muni/faktury-export/internal/validation"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// draftFlags are the record selection and assembly flags shared by the
// commands that build draft invoices.
type draftFlags struct {
	policy       string
	selected     string
	edits        string
	dueDays      int
	billableOnly bool
	noPeriod     bool
}

// register adds the flags to cmd. billableOnly is the default of
// --billable-only.
func (f *draftFlags) register(cmd *cobra.Command, billableOnly bool) {
	cmd.Flags().StringVar(&f.policy, "policy", "", "Grouping policy: inclusive or strict (default from config)")
	cmd.Flags().StringVar(&f.selected, "selected", "", "Comma separated record ids to invoice, e.g. 1,4,7")
	cmd.Flags().StringVar(&f.edits, "edits", "", "YAML file with line edits to apply to the drafts")
	cmd.Flags().IntVar(&f.dueDays, "due-days", 0, "Days until payment is due (default from config)")
	cmd.Flags().BoolVar(&f.billableOnly, "billable-only", billableOnly, "Only invoice rows that are billable")
	cmd.Flags().BoolVar(&f.noPeriod, "no-period", false, "Leave the licence period out of line names")
}

// draftRun is one ledger taken all the way to draft invoices.
type draftRun struct {
	ledger *converter.Result
	drafts *converter.Drafts
}

// buildDrafts loads the ledger at path and turns it into draft invoices
// according to flags. Edits are applied and the drafts validated.
func buildDrafts(path string, flags draftFlags, log zerolog.Logger) (*draftRun, error) {
	conv, err := converter.New(cfg, log)
	if err != nil {
		return nil, err
	}
	ledger, err := conv.LoadFile(path)
	if err != nil {
		return nil, err
	}

	checked, err := validation.ValidateRecords(ledger.Records)
	if err != nil {
		return nil, err
	}
	for _, w := range checked.Warnings() {
		log.Warn().Msg(w.Error())
	}
	if err := checked.Err(); err != nil {
		return nil, err
	}

	policyName := flags.policy
	if policyName == "" {
		policyName = cfg.Billing.GroupingPolicy
	}
	policy, err := converter.ParseGroupPolicy(policyName)
	if err != nil {
		return nil, err
	}

	opts := converter.DraftOptions{
		Policy:       policy,
		BillableOnly: flags.billableOnly,
	}
	if flags.selected != "" {
		ids, err := parseIDs(flags.selected)
		if err != nil {
			return nil, err
		}
		if missing := converter.SelectIDs(ledger.Records, ids); len(missing) > 0 {
			return nil, fmt.Errorf("no records with ids %v", missing)
		}
		opts.OnlySelected = true
	}
	if flags.dueDays > 0 {
		opts.Assembly.DueInDays = &flags.dueDays
	}
	if flags.noPeriod {
		withPeriod := false
		opts.Assembly.IncludePeriodInName = &withPeriod
	}

	drafts, err := converter.BuildDrafts(assembler.FromConfig(cfg.Billing), ledger.Records, opts)
	if err != nil {
		return nil, err
	}
	for _, rec := range drafts.Dropped {
		log.Warn().Int("record", rec.ID).Str("client", rec.ClientName).Msg("Dropped record without IČO")
	}

	if flags.edits != "" {
		edits, err := converter.LoadEdits(flags.edits)
		if err != nil {
			return nil, err
		}
		if err := converter.ApplyEdits(drafts.Invoices, edits); err != nil {
			return nil, err
		}
		log.Debug().Int("edits", len(edits)).Msg("Line edits applied")
	}

	if len(drafts.Invoices) > 0 {
		result, err := validation.ValidateDrafts(drafts.Invoices)
		if err != nil {
			return nil, err
		}
		if err := result.Err(); err != nil {
			return nil, errors.New(validation.FormatErrors(result.Errors))
		}
	}

	log.Info().
		Str("source", ledger.Source).
		Int("rows", ledger.Stats.Rows).
		Int("billable", ledger.Stats.Billable).
		Int("considered", drafts.Considered).
		Int("invoices", len(drafts.Invoices)).
		Msg("Drafts built")
	return &draftRun{ledger: ledger, drafts: drafts}, nil
}
