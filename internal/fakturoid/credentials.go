package fakturoid

import (
	"errors"
	"strings"

	"github.com/dpeterek-muni/faktury-export/internal/config"
	"github.com/rs/zerolog"
)

// ErrNeedsCredentials is returned when neither the server nor the caller
// provided a complete credential set.
var ErrNeedsCredentials = errors.New("fakturoid credentials required (client id, client secret, slug)")

// DefaultEmail is used in the User-Agent when no contact email is set.
const DefaultEmail = "noreply@example.com"

// Credentials identify one Fakturoid account.
type Credentials struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	Slug         string `json:"slug"`
	Email        string `json:"email,omitempty"`
}

// Complete reports whether the id, secret and slug are all set.
func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.ClientID) != "" &&
		strings.TrimSpace(c.ClientSecret) != "" &&
		strings.TrimSpace(c.Slug) != ""
}

// ResolveCredentials picks the credential set to use. A complete server set
// always wins; otherwise the supplied set is used. fromServer tells which.
func ResolveCredentials(server, supplied Credentials) (creds Credentials, fromServer bool, err error) {
	switch {
	case server.Complete():
		creds, fromServer = server, true
	case supplied.Complete():
		creds = supplied
	default:
		return Credentials{}, false, ErrNeedsCredentials
	}
	if strings.TrimSpace(creds.Email) == "" {
		creds.Email = DefaultEmail
	}
	return creds, fromServer, nil
}

// ServerCredentials returns the credential set held in the configuration.
// It may be incomplete.
func ServerCredentials(cfg config.FakturoidConfig) Credentials {
	return Credentials{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Slug:         cfg.Slug,
		Email:        cfg.Email,
	}
}

// OptionsFromConfig returns client options for the configured endpoint.
func OptionsFromConfig(cfg config.FakturoidConfig, log zerolog.Logger) Options {
	return Options{
		BaseURL:           cfg.BaseURL,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Logger:            log,
	}
}
