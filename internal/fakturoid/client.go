// =============================================================================
// Faktury Export - Fakturoid API Client
// =============================================================================
//
// Minimal client for the Fakturoid API v3. Only the calls the exporter needs
// are implemented:
//
//   GET  /accounts/{slug}/account.json            connectivity check
//   GET  /accounts/{slug}/subjects/search.json    subject lookup by IČO
//   POST /accounts/{slug}/invoices.json           invoice creation
//
// AUTHENTICATION:
//   OAuth2 client credentials against {base}/oauth/token, client id and secret
//   sent as HTTP Basic auth. Tokens are cached and refreshed by the oauth2
//   transport.
//
// Outgoing calls are throttled with a token bucket. Nothing is retried.
//
// =============================================================================

package fakturoid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dpeterek-muni/faktury-export/internal/normalize"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://app.fakturoid.cz/api/v3"

// ErrSubjectNotFound is returned when no subject carries the searched IČO.
var ErrSubjectNotFound = errors.New("subject not found")

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 64 << 10

// Options configures a Client.
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Logger            zerolog.Logger
}

// Client talks to one Fakturoid account.
type Client struct {
	baseURL   string
	slug      string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	log       zerolog.Logger
}

// New builds a client for creds. No request is made until the first call.
func New(creds Credentials, opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	email := creds.Email
	if email == "" {
		email = DefaultEmail
	}

	oauthCfg := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     baseURL + "/oauth/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	// the token source keeps this context for refreshes
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})
	httpClient := oauthCfg.Client(ctx)
	httpClient.Timeout = timeout

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &Client{
		baseURL:   baseURL,
		slug:      creds.Slug,
		userAgent: fmt.Sprintf("FakturyExport (%s)", email),
		http:      httpClient,
		limiter:   rate.NewLimiter(limit, 1),
		log:       opts.Logger,
	}
}

// =============================================================================
// API CALLS
// =============================================================================

// Account returns the account the credentials belong to.
func (c *Client) Account(ctx context.Context) (*Account, error) {
	var account Account
	if err := c.do(ctx, "account", http.MethodGet, c.accountPath("account.json"), nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// SearchSubjects runs a full-text subject search.
func (c *Client) SearchSubjects(ctx context.Context, query string) ([]Subject, error) {
	path := c.accountPath("subjects/search.json") + "?query=" + url.QueryEscape(query)
	var subjects []Subject
	if err := c.do(ctx, "search subjects", http.MethodGet, path, nil, &subjects); err != nil {
		return nil, err
	}
	return subjects, nil
}

// FindSubjectByRegistrationNo returns the subject whose registration number
// equals taxID once separators are stripped. The search itself is fuzzy, so
// the result is filtered here.
func (c *Client) FindSubjectByRegistrationNo(ctx context.Context, taxID string) (*Subject, error) {
	want := normalize.TaxID(taxID)
	subjects, err := c.SearchSubjects(ctx, want)
	if err != nil {
		return nil, err
	}
	for i := range subjects {
		if subjects[i].RegistrationNo != "" && normalize.TaxID(subjects[i].RegistrationNo) == want {
			return &subjects[i], nil
		}
	}
	return nil, fmt.Errorf("IČO %s: %w", want, ErrSubjectNotFound)
}

// CreateInvoice creates an invoice and returns the stored document.
func (c *Client) CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error) {
	var invoice Invoice
	if err := c.do(ctx, "create invoice", http.MethodPost, c.accountPath("invoices.json"), req, &invoice); err != nil {
		return nil, err
	}
	c.log.Info().Int64("invoice_id", invoice.ID).Str("number", invoice.Number).Int64("subject_id", req.SubjectID).Msg("Invoice created")
	return &invoice, nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

func (c *Client) accountPath(resource string) string {
	return "/accounts/" + url.PathEscape(c.slug) + "/" + resource
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	c.log.Debug().Str("op", op).Str("method", method).Str("path", path).
		Int("status", resp.StatusCode).Dur("took", time.Since(start)).Msg("Fakturoid call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}
