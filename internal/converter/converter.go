// =============================================================================
// Faktury Export - Converter Module
// =============================================================================
//
// This module contains the ingestion pipeline. It turns one ledger file (xlsx
// or CSV) into typed ledger records with the billability flag set.
//
// INGESTION PIPELINE:
//   1. Decode the workbook sheet (or CSV file) into ordered rows
//   2. Bind the header row against the field table
//   3. Normalize every row into a LedgerRecord
//   4. Classify billability
//
// Grouping, assembly and rendering happen later, per request, on the records
// this module produces.
//
// CONCURRENCY:
//   A Converter holds no per-run state and can be shared between requests.
//
// =============================================================================

package converter

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dpeterek-muni/faktury-export/internal/billing"
	"github.com/dpeterek-muni/faktury-export/internal/config"
	"github.com/dpeterek-muni/faktury-export/internal/csvparser"
	"github.com/dpeterek-muni/faktury-export/internal/fields"
	"github.com/dpeterek-muni/faktury-export/internal/normalize"
	"github.com/dpeterek-muni/faktury-export/internal/types"
	"github.com/dpeterek-muni/faktury-export/internal/xlsxparser"
	"github.com/rs/zerolog"
)

// ErrNoRows is returned when the ledger has a header but no data rows.
var ErrNoRows = errors.New("ledger has no data rows")

// ErrMissingColumn is returned when a required column cannot be resolved.
var ErrMissingColumn = errors.New("required column not found")

// ErrUnsupportedFormat is returned for files that are neither xlsx nor CSV.
var ErrUnsupportedFormat = errors.New("unsupported ledger format")

// requiredFields must each be bound to at least one header.
var requiredFields = []fields.Field{fields.BillableAmount}

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of ingesting a single ledger.
type Result struct {
	// Source is the file name the ledger was read from.
	Source string `json:"source"`

	// Sheet is the worksheet that was read. Empty for CSV input.
	Sheet string `json:"sheetName,omitempty"`

	// Records holds one record per non-empty data row, in row order.
	Records []*types.LedgerRecord `json:"records"`

	// Stats contains ingestion statistics.
	Stats IngestStats `json:"stats"`

	// Warnings are structural problems that did not stop ingestion.
	Warnings []string `json:"warnings,omitempty"`
}

// IngestStats contains statistics about the ingestion.
type IngestStats struct {
	// Rows is the number of non-empty data rows.
	Rows int `json:"totalRows"`

	// Billable is the number of records the classifier marked billable.
	Billable int `json:"billableRows"`

	// WithTaxID is the number of records carrying an IČO.
	WithTaxID int `json:"withTaxId"`

	// Notes is the number of per-cell fallbacks applied during normalization.
	Notes int `json:"normalizationNotes"`

	// Duration is the time taken to ingest the ledger.
	Duration time.Duration `json:"-"`
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Converter ingests ledgers using one field table and billing policy.
type Converter struct {
	input      config.InputConfig
	resolver   *fields.Resolver
	classifier billing.Classifier
	log        zerolog.Logger
}

// New creates a Converter from the application configuration.
func New(cfg *config.Config, log zerolog.Logger) (*Converter, error) {
	headerPolicy, err := cfg.HeaderPolicy()
	if err != nil {
		return nil, err
	}
	invoicedPolicy, err := cfg.InvoicedPolicy()
	if err != nil {
		return nil, err
	}

	return &Converter{
		input:      cfg.Input,
		resolver:   fields.NewResolver(cfg.FieldTable(), headerPolicy),
		classifier: billing.Classifier{Policy: invoicedPolicy},
		log:        log,
	}, nil
}

// =============================================================================
// MAIN PROCESSING FUNCTIONS
// =============================================================================

// LoadFile ingests the ledger at path. The format is chosen by extension.
func (c *Converter) LoadFile(path string) (*Result, error) {
	switch format(path) {
	case "xlsx":
		sheet, err := xlsxparser.Parse(path, c.sheetOptions())
		if err != nil {
			return nil, fmt.Errorf("failed to parse workbook: %w", err)
		}
		return c.fromSheet(filepath.Base(path), sheet)
	case "csv":
		data, err := csvparser.Parse(path, csvparser.Settings{Delimiter: c.input.CSVDelimiter})
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV: %w", err)
		}
		return c.Ingest(filepath.Base(path), "", data.Headers, data.Rows)
	default:
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedFormat)
	}
}

// LoadReader ingests an uploaded ledger. name is the original file name and
// decides the format.
func (c *Converter) LoadReader(r io.Reader, name string) (*Result, error) {
	switch format(name) {
	case "xlsx":
		sheet, err := xlsxparser.ParseReader(r, c.sheetOptions())
		if err != nil {
			return nil, fmt.Errorf("failed to parse workbook: %w", err)
		}
		return c.fromSheet(name, sheet)
	case "csv":
		data, err := csvparser.ParseReader(r, csvparser.Settings{Delimiter: c.input.CSVDelimiter})
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV: %w", err)
		}
		return c.Ingest(name, "", data.Headers, data.Rows)
	default:
		return nil, fmt.Errorf("%s: %w", name, ErrUnsupportedFormat)
	}
}

func (c *Converter) fromSheet(source string, sheet *xlsxparser.Sheet) (*Result, error) {
	result, err := c.Ingest(source, sheet.Name, sheet.Headers, sheet.Rows)
	if err != nil {
		return nil, err
	}
	if sheet.Fallback {
		msg := fmt.Sprintf("sheet %q not found, read %q instead", c.input.SheetName, sheet.Name)
		result.Warnings = append([]string{msg}, result.Warnings...)
		c.log.Warn().Str("wanted", c.input.SheetName).Str("sheet", sheet.Name).Msg("Ledger sheet not found, using first sheet")
	}
	return result, nil
}

// Ingest runs the pipeline over already decoded rows.
func (c *Converter) Ingest(source, sheet string, headers []string, rows []fields.Row) (*Result, error) {
	start := time.Now()
	result := &Result{Source: source, Sheet: sheet}

	// =========================================================================
	// STEP 1: BIND HEADERS
	// =========================================================================
	// Every required field must resolve to a header. Under the strict header
	// policy an ambiguous field fails the whole ledger.

	bound, err := c.resolver.Bind(headers)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	for _, f := range requiredFields {
		if len(bound[f]) == 0 {
			return nil, fmt.Errorf("%s: %s: %w", source, f, ErrMissingColumn)
		}
	}
	for _, f := range c.resolver.Fields() {
		if hs := bound[f]; len(hs) > 1 {
			msg := fmt.Sprintf("%s matches several columns (%s), using the first", f, strings.Join(hs, ", "))
			result.Warnings = append(result.Warnings, msg)
			c.log.Warn().Str("field", string(f)).Strs("headers", hs).Msg("Ambiguous header, first match wins")
		}
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", source, ErrNoRows)
	}

	// =========================================================================
	// STEP 2: NORMALIZE ROWS
	// =========================================================================
	// Unparsable cells fall back to safe defaults and are only logged.

	result.Records = make([]*types.LedgerRecord, 0, len(rows))
	for i, row := range rows {
		rec, notes := normalize.Record(c.resolver, row, i+1)
		for _, note := range notes {
			c.log.Debug().Int("row", rec.ID).Msg(note)
		}
		result.Stats.Notes += len(notes)
		if rec.HasTaxID() {
			result.Stats.WithTaxID++
		}
		result.Records = append(result.Records, rec)
	}

	// =========================================================================
	// STEP 3: CLASSIFY
	// =========================================================================

	result.Stats.Rows = len(result.Records)
	result.Stats.Billable = c.classifier.Mark(result.Records)
	result.Stats.Duration = time.Since(start)

	c.log.Info().
		Str("source", source).
		Int("rows", result.Stats.Rows).
		Int("billable", result.Stats.Billable).
		Int("notes", result.Stats.Notes).
		Dur("took", result.Stats.Duration).
		Msg("Ledger ingested")

	return result, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func (c *Converter) sheetOptions() xlsxparser.Options {
	return xlsxparser.Options{SheetName: c.input.SheetName, HeaderRow: c.input.HeaderRow}
}

// format maps a file name to "xlsx", "csv" or "".
func format(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".xltx":
		return "xlsx"
	case ".csv", ".txt":
		return "csv"
	default:
		return ""
	}
}
