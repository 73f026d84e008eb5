package submit

import (
	"context"
	"errors"

	"github.com/dpeterek-muni/faktury-export/internal/fakturoid"
	"github.com/dpeterek-muni/faktury-export/internal/types"
)

// SubjectMatch is an invoice whose IČO resolved to a remote subject.
type SubjectMatch struct {
	GroupKey    string `json:"groupKey"`
	TaxID       string `json:"ico"`
	ClientName  string `json:"clientName"`
	SubjectID   int64  `json:"subjectId"`
	SubjectName string `json:"subjectName"`
}

// SubjectMiss is an invoice without a remote subject.
type SubjectMiss struct {
	GroupKey   string `json:"groupKey"`
	TaxID      string `json:"ico,omitempty"`
	ClientName string `json:"clientName"`
	Error      string `json:"error"`
}

// SubjectReport is the result of CheckSubjects.
type SubjectReport struct {
	Found    []SubjectMatch `json:"found"`
	NotFound []SubjectMiss  `json:"notFound"`
}

// CheckSubjects resolves the subject of every invoice without creating
// anything. A rejected credential set aborts the check; other failures are
// reported per invoice.
func (s *Submitter) CheckSubjects(ctx context.Context, invoices []*types.DraftInvoice) (*SubjectReport, error) {
	report := &SubjectReport{Found: []SubjectMatch{}, NotFound: []SubjectMiss{}}
	subjects := newSubjectCache()

	for _, inv := range invoices {
		if inv == nil {
			report.NotFound = append(report.NotFound, SubjectMiss{Error: "invoice is null"})
			continue
		}
		miss := SubjectMiss{GroupKey: inv.GroupKey, TaxID: inv.TaxID, ClientName: inv.ClientName}
		if inv.TaxID == "" {
			miss.Error = "no IČO"
			report.NotFound = append(report.NotFound, miss)
			continue
		}

		subject, err := s.subject(ctx, subjects, inv.TaxID)
		if err != nil {
			if fakturoid.IsAuthError(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			miss.Error = err.Error()
			report.NotFound = append(report.NotFound, miss)
			continue
		}
		report.Found = append(report.Found, SubjectMatch{
			GroupKey:    inv.GroupKey,
			TaxID:       inv.TaxID,
			ClientName:  inv.ClientName,
			SubjectID:   subject.ID,
			SubjectName: subject.Name,
		})
	}
	return report, nil
}

// Connection is the result of a connectivity check.
type Connection struct {
	Success              bool               `json:"success"`
	Account              *fakturoid.Account `json:"account,omitempty"`
	UseServerCredentials bool               `json:"useServerCredentials"`
	NeedsCredentials     bool               `json:"needsCredentials,omitempty"`
	Error                string             `json:"error,omitempty"`
}

// CheckConnection fetches the account behind remote's credentials.
func CheckConnection(ctx context.Context, remote Remote, fromServer bool) Connection {
	conn := Connection{UseServerCredentials: fromServer}
	account, err := remote.Account(ctx)
	if err != nil {
		conn.Error = err.Error()
		conn.NeedsCredentials = fakturoid.IsAuthError(err)
		return conn
	}
	conn.Success = true
	conn.Account = account
	return conn
}
