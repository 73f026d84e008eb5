// Package countries is the single source of truth for the currency, VAT rate
// and document language billed to each client country.
package countries

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Defaults are the billing defaults of one country.
type Defaults struct {
	Currency string
	VATRate  decimal.Decimal
	Language string
}

// HomeCountry is the operator's own country.
const HomeCountry = "CZE"

// Home is returned for unknown or empty country codes.
var Home = Defaults{Currency: "CZK", VATRate: decimal.NewFromInt(21), Language: "cz"}

// keyed by ISO 3166-1 alpha-3; alpha-2 codes are resolved through aliases
var table = map[string]Defaults{
	HomeCountry: Home,
	"SVK":       {Currency: "EUR", VATRate: decimal.NewFromInt(23), Language: "sk"},
	"POL":       {Currency: "PLN", VATRate: decimal.NewFromInt(23), Language: "pl"},
	"HUN":       {Currency: "HUF", VATRate: decimal.NewFromInt(27), Language: "hu"},
	"AUT":       {Currency: "EUR", VATRate: decimal.NewFromInt(20), Language: "de"},
	"DEU":       {Currency: "EUR", VATRate: decimal.NewFromInt(19), Language: "de"},
}

var aliases = map[string]string{
	"CZ": "CZE",
	"SK": "SVK",
	"PL": "POL",
	"HU": "HUN",
	"AT": "AUT",
	"DE": "DEU",
}

// Canonical returns the alpha-3 form of code, upper-cased. Unknown codes are
// returned upper-cased as given.
func Canonical(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if alpha3, ok := aliases[code]; ok {
		return alpha3
	}
	return code
}

// Lookup returns the defaults for code and whether the code is known.
func Lookup(code string) (Defaults, bool) {
	d, ok := table[Canonical(code)]
	if !ok {
		return Home, false
	}
	return d, true
}

// CurrencyFor returns the invoice currency for a country, CZK if unknown.
func CurrencyFor(code string) string {
	d, _ := Lookup(code)
	return d.Currency
}

// VATRateFor returns the VAT percentage for a country, 21 if unknown.
func VATRateFor(code string) decimal.Decimal {
	d, _ := Lookup(code)
	return d.VATRate
}

// LanguageFor returns the invoice document language for a country.
func LanguageFor(code string) string {
	d, ok := Lookup(code)
	if !ok && Canonical(code) != "" {
		return "en"
	}
	return d.Language
}
