package fakturoid

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"
)

// StatusOpen leaves a created invoice unsent.
const StatusOpen = "open"

// Account is the subset of /account.json the exporter shows.
type Account struct {
	Subdomain    string `json:"subdomain"`
	Name         string `json:"name"`
	Plan         string `json:"plan,omitempty"`
	Currency     string `json:"currency,omitempty"`
	InvoiceEmail string `json:"invoice_email,omitempty"`
}

// Subject is a client record in Fakturoid.
type Subject struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	RegistrationNo string `json:"registration_no"`
	VATNo          string `json:"vat_no,omitempty"`
	Country        string `json:"country,omitempty"`
}

// InvoiceLine is one line of an invoice request.
type InvoiceLine struct {
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitName  string          `json:"unit_name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	VATRate   decimal.Decimal `json:"vat_rate"`
}

// InvoiceRequest is the body of POST /invoices.json.
type InvoiceRequest struct {
	SubjectID             int64         `json:"subject_id"`
	IssuedOn              string        `json:"issued_on"`
	TaxableFulfillmentDue string        `json:"taxable_fulfillment_due"`
	Due                   int           `json:"due"`
	Currency              string        `json:"currency"`
	Language              string        `json:"language,omitempty"`
	Lines                 []InvoiceLine `json:"lines"`
	Status                string        `json:"status"`
}

// Invoice is the subset of a created invoice the exporter reports.
type Invoice struct {
	ID       int64           `json:"id"`
	Number   string          `json:"number"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
	Status   string          `json:"status"`
	HTMLURL  string          `json:"html_url,omitempty"`
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: fakturoid API returned %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: fakturoid API returned %d: %s", e.Op, e.StatusCode, e.Body)
}

// IsAuthError reports whether err looks like rejected or missing
// credentials rather than a general failure.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNeedsCredentials) {
		return true
	}
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) &&
		(apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
		return true
	}
	return strings.Contains(err.Error(), "invalid_client")
}
