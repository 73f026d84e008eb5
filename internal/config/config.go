// =============================================================================
// Faktury Export - Configuration Management
// =============================================================================
//
// This module handles loading and validating the YAML configuration file and
// applying environment overrides on top of it.
//
// LOAD ORDER:
//   1. Built-in defaults
//   2. YAML file (optional when the default path does not exist)
//   3. Environment variables (FAKTUROID_*, LOG_*, PORT)
//   4. Validation
//
// CONFIGURATION FILE STRUCTURE:
//   input:      which sheet to read and how tolerant header matching is
//   billing:    invoicing policies and invoice defaults
//   output:     where export documents are written
//   fakturoid:  remote invoicing service endpoint and server-held credentials
//   server:     HTTP API settings
//   log:        logging settings
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dpeterek-muni/faktury-export/internal/billing"
	"github.com/dpeterek-muni/faktury-export/internal/fields"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file used when --config is not given.
const DefaultPath = "config.yaml"

// =============================================================================
// CONFIGURATION STRUCTURES
// =============================================================================

// Config is the complete application configuration.
type Config struct {
	Input     InputConfig     `yaml:"input"`
	Billing   BillingConfig   `yaml:"billing"`
	Output    OutputConfig    `yaml:"output"`
	Fakturoid FakturoidConfig `yaml:"fakturoid"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// InputConfig controls ledger ingestion.
type InputConfig struct {
	// SheetName is the worksheet holding the ledger. The first sheet is used
	// when it is missing.
	SheetName string `yaml:"sheet_name"`

	// HeaderRow is the 1-indexed header row of the sheet.
	HeaderRow int `yaml:"header_row"`

	// HeaderPolicy is "first_match" or "strict".
	HeaderPolicy string `yaml:"header_policy"`

	// ExtraHeaders adds header fragments per field, e.g.
	//   billableAmount: ["billed value"]
	ExtraHeaders map[string][]string `yaml:"extra_headers"`

	// CSVDelimiter is a single character or "auto".
	CSVDelimiter string `yaml:"csv_delimiter"`
}

// BillingConfig holds invoicing policies and invoice defaults.
type BillingConfig struct {
	// InvoicedPolicy is "lenient" (partial stays billable) or "strict".
	InvoicedPolicy string `yaml:"invoiced_policy"`

	// GroupingPolicy is "inclusive" (rows without IČO get their own group)
	// or "strict" (rows without IČO are dropped).
	GroupingPolicy string `yaml:"grouping_policy"`

	DueInDays           int    `yaml:"due_in_days"`
	IncludePeriodInName *bool  `yaml:"include_period_in_name"`
	DefaultLineName     string `yaml:"default_line_name"`
	UnitName            string `yaml:"unit_name"`

	// SubmissionCountries limits remote invoice creation to these countries.
	SubmissionCountries []string `yaml:"submission_countries"`
}

// OutputConfig controls where export documents go.
type OutputConfig struct {
	Dir            string `yaml:"dir"`
	ArchiveDir     string `yaml:"archive_dir"`
	FileNameFormat string `yaml:"file_name_format"`
	Namespace      string `yaml:"namespace"`
}

// FakturoidConfig holds the remote service endpoint and server-held
// credentials. Credentials normally come from the environment.
type FakturoidConfig struct {
	BaseURL           string        `yaml:"base_url"`
	ClientID          string        `yaml:"client_id"`
	ClientSecret      string        `yaml:"client_secret"`
	Slug              string        `yaml:"slug"`
	Email             string        `yaml:"email"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	RateLimit      float64  `yaml:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	TimeFormat string `yaml:"time_format"`
}

// =============================================================================
// LOADING
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads the configuration file at path, applies environment overrides
// and validates the result. A missing file is only tolerated for DefaultPath.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && path == DefaultPath:
		// run on defaults
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	applyDefaults(cfg)
	applyEnv(cfg, os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyDefaults fills in every unset value.
func applyDefaults(cfg *Config) {
	if cfg.Input.SheetName == "" {
		cfg.Input.SheetName = "Databáza klientov"
	}
	if cfg.Input.HeaderRow == 0 {
		cfg.Input.HeaderRow = 1
	}
	if cfg.Input.HeaderPolicy == "" {
		cfg.Input.HeaderPolicy = "first_match"
	}
	if cfg.Input.CSVDelimiter == "" {
		cfg.Input.CSVDelimiter = "auto"
	}

	if cfg.Billing.InvoicedPolicy == "" {
		cfg.Billing.InvoicedPolicy = "lenient"
	}
	if cfg.Billing.GroupingPolicy == "" {
		cfg.Billing.GroupingPolicy = "inclusive"
	}
	if cfg.Billing.DueInDays == 0 {
		cfg.Billing.DueInDays = 14
	}
	if cfg.Billing.IncludePeriodInName == nil {
		cfg.Billing.IncludePeriodInName = lo.ToPtr(true)
	}
	if cfg.Billing.DefaultLineName == "" {
		cfg.Billing.DefaultLineName = "Licence"
	}
	if cfg.Billing.UnitName == "" {
		cfg.Billing.UnitName = "ks"
	}
	if len(cfg.Billing.SubmissionCountries) == 0 {
		cfg.Billing.SubmissionCountries = []string{"CZE", "SVK"}
	}

	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "./output"
	}
	if cfg.Output.FileNameFormat == "" {
		cfg.Output.FileNameFormat = "faktury-{date}.xml"
	}
	if cfg.Output.Namespace == "" {
		cfg.Output.Namespace = "http://munipolis.cz/invoices"
	}

	if cfg.Fakturoid.BaseURL == "" {
		cfg.Fakturoid.BaseURL = "https://app.fakturoid.cz/api/v3"
	}
	if cfg.Fakturoid.Timeout == 0 {
		cfg.Fakturoid.Timeout = 30 * time.Second
	}
	if cfg.Fakturoid.RequestsPerSecond == 0 {
		cfg.Fakturoid.RequestsPerSecond = 5
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":3001"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	if cfg.Server.RateLimit == 0 {
		cfg.Server.RateLimit = 10
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = 30
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 10 << 20
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}
	if cfg.Log.TimeFormat == "" {
		cfg.Log.TimeFormat = time.RFC3339
	}
}

// applyEnv overrides config values from the environment. Credentials are
// only ever taken from here or the config file, never written back.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	set("FAKTUROID_CLIENT_ID", &cfg.Fakturoid.ClientID)
	set("FAKTUROID_CLIENT_SECRET", &cfg.Fakturoid.ClientSecret)
	set("FAKTUROID_SLUG", &cfg.Fakturoid.Slug)
	set("FAKTUROID_EMAIL", &cfg.Fakturoid.Email)
	set("FAKTUROID_BASE_URL", &cfg.Fakturoid.BaseURL)
	set("LOG_LEVEL", &cfg.Log.Level)
	set("LOG_FORMAT", &cfg.Log.Format)
	set("LOG_OUTPUT", &cfg.Log.Output)

	if port, ok := lookup("PORT"); ok {
		if _, err := strconv.Atoi(port); err == nil {
			cfg.Server.Addr = ":" + port
		}
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks policy names and numeric ranges.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.HeaderPolicy(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.InvoicedPolicy(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.StrictGrouping(); err != nil {
		errs = append(errs, err)
	}
	if c.Billing.DueInDays < 0 {
		errs = append(errs, fmt.Errorf("billing.due_in_days must not be negative, got %d", c.Billing.DueInDays))
	}
	if c.Input.HeaderRow < 1 {
		errs = append(errs, fmt.Errorf("input.header_row must be at least 1, got %d", c.Input.HeaderRow))
	}
	if c.Fakturoid.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("fakturoid.requests_per_second must not be negative"))
	}
	if !strings.HasPrefix(c.Fakturoid.BaseURL, "http://") && !strings.HasPrefix(c.Fakturoid.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("fakturoid.base_url must be an http(s) URL, got %q", c.Fakturoid.BaseURL))
	}

	return errors.Join(errs...)
}

// HeaderPolicy returns the parsed header ambiguity policy.
func (c *Config) HeaderPolicy() (fields.Policy, error) {
	return fields.ParsePolicy(c.Input.HeaderPolicy)
}

// InvoicedPolicy returns the parsed billability policy.
func (c *Config) InvoicedPolicy() (billing.Policy, error) {
	return billing.ParsePolicy(c.Billing.InvoicedPolicy)
}

// StrictGrouping reports whether rows without IČO are dropped.
func (c *Config) StrictGrouping() (bool, error) {
	switch strings.ToLower(c.Billing.GroupingPolicy) {
	case "inclusive":
		return false, nil
	case "strict":
		return true, nil
	default:
		return false, fmt.Errorf("unknown grouping policy %q", c.Billing.GroupingPolicy)
	}
}

// FieldTable returns the header table with configured extra fragments.
func (c *Config) FieldTable() []fields.Matcher {
	if len(c.Input.ExtraHeaders) == 0 {
		return fields.DefaultTable
	}
	extra := make(map[fields.Field][]string, len(c.Input.ExtraHeaders))
	for k, v := range c.Input.ExtraHeaders {
		extra[fields.Field(k)] = v
	}
	return fields.WithExtra(fields.DefaultTable, extra)
}
