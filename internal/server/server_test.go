package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dpeterek-muni/faktury-export/internal/config"
	"github.com/dpeterek-muni/faktury-export/internal/fakturoid"
	"github.com/dpeterek-muni/faktury-export/internal/logger"
	"github.com/dpeterek-muni/faktury-export/internal/submit"
	"github.com/dpeterek-muni/faktury-export/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ledgerCSV = "ID;IČO;Názov klienta;Štát;Fakturovaná hodnota;Platca DPH\n" +
	"1;123-456 78;Obec <Lhota> & syn;CZE;\"1 000,00\";ano\n" +
	"2;12345678;Obec <Lhota> & syn;CZE;500;ano\n" +
	"3;;Spolek;SVK;200;nie\n"

var serverNow = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

// stubRemote knows one subject and counts the invoices it creates.
type stubRemote struct {
	creds   fakturoid.Credentials
	authErr error
	created int
}

func (s *stubRemote) Account(context.Context) (*fakturoid.Account, error) {
	if s.authErr != nil {
		return nil, s.authErr
	}
	return &fakturoid.Account{Subdomain: s.creds.Slug, Name: "ACME"}, nil
}

func (s *stubRemote) FindSubjectByRegistrationNo(_ context.Context, taxID string) (*fakturoid.Subject, error) {
	if s.authErr != nil {
		return nil, s.authErr
	}
	if taxID != "12345678" {
		return nil, fakturoid.ErrSubjectNotFound
	}
	return &fakturoid.Subject{ID: 7, Name: "Obec Lhota", RegistrationNo: taxID}, nil
}

func (s *stubRemote) CreateInvoice(_ context.Context, req fakturoid.InvoiceRequest) (*fakturoid.Invoice, error) {
	s.created++
	return &fakturoid.Invoice{ID: int64(s.created), Number: fmt.Sprintf("2024-%04d", s.created), Currency: req.Currency}, nil
}

type harness struct {
	srv    *Server
	remote *stubRemote
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.Server.RateLimit = 0
	if mutate != nil {
		mutate(cfg)
	}
	h := &harness{remote: &stubRemote{}}
	srv, err := New(cfg, logger.Nop(), Options{
		Now: func() time.Time { return serverNow },
		Remote: func(creds fakturoid.Credentials) submit.Remote {
			h.remote.creds = creds
			return h.remote
		},
	})
	require.NoError(t, err)
	h.srv = srv
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func withServerCreds(cfg *config.Config) {
	cfg.Fakturoid.ClientID = "id"
	cfg.Fakturoid.ClientSecret = "secret"
	cfg.Fakturoid.Slug = "server-acme"
}

type uploaded struct {
	Success       bool                  `json:"success"`
	Records       []*types.LedgerRecord `json:"records"`
	BillableCount int                   `json:"billableCount"`
	Stats         struct {
		TotalRows int `json:"totalRows"`
	} `json:"stats"`
}

// upload sends the CSV ledger and returns the decoded records.
func (h *harness) upload(t *testing.T) uploaded {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/api/upload", uploadRequest{
		FileName: "ledger.csv",
		FileData: "data:text/csv;base64," + base64.StdEncoding.EncodeToString([]byte(ledgerCSV)),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeBody[uploaded](t, rec)
}

type previewed struct {
	TotalInvoices int                   `json:"totalInvoices"`
	Preview       []*types.DraftInvoice `json:"preview"`
	Dropped       []int                 `json:"dropped"`
}

func (h *harness) preview(t *testing.T, records []*types.LedgerRecord, policy string) previewed {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/api/fakturoid/preview", previewRequest{Records: records, Policy: policy})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeBody[previewed](t, rec)
}

// =============================================================================
// TESTS
// =============================================================================

func TestHealthAndRequestID(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, rec.Header().Get(requestIDHeader), 36)

	rec = h.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", decodeBody[errorBody](t, rec).Error)
}

func TestUploadBase64(t *testing.T) {
	got := newHarness(t, nil).upload(t)
	assert.True(t, got.Success)
	assert.Equal(t, 3, got.Stats.TotalRows)
	assert.Equal(t, 3, got.BillableCount)
	require.Len(t, got.Records, 3)
	assert.Equal(t, "12345678", got.Records[0].TaxID)
	assert.True(t, got.Records[0].BillableAmount.Equal(decimal.NewFromInt(1000)))
}

func TestUploadMultipart(t *testing.T) {
	h := newHarness(t, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "ledger.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(ledgerCSV))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decodeBody[uploaded](t, rec).Records, 3)
}

func TestUploadMultipartTooLarge(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Server.MaxUploadBytes = 64 })

	tests := []struct {
		name string
		size int
	}{
		{"over the file limit", 65},
		{"over the request limit", 2 << 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body bytes.Buffer
			mw := multipart.NewWriter(&body)
			part, err := mw.CreateFormFile("file", "ledger.csv")
			require.NoError(t, err)
			_, err = part.Write(bytes.Repeat([]byte("a"), tt.size))
			require.NoError(t, err)
			require.NoError(t, mw.Close())

			req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
			req.Header.Set("Content-Type", mw.FormDataContentType())
			rec := httptest.NewRecorder()
			h.srv.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
			assert.Contains(t, decodeBody[errorBody](t, rec).Error, "upload limit")
		})
	}
}

func TestUploadRejectsBadInput(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Server.MaxUploadBytes = 64 })

	tests := []struct {
		name string
		body any
		code int
	}{
		{"empty", "", http.StatusBadRequest},
		{"missing data", uploadRequest{FileName: "x.csv"}, http.StatusBadRequest},
		{"bad base64", uploadRequest{FileName: "x.csv", FileData: "***"}, http.StatusBadRequest},
		{"unsupported", uploadRequest{FileName: "x.pdf", FileData: base64.StdEncoding.EncodeToString([]byte("%PDF"))}, http.StatusBadRequest},
		{"too large", uploadRequest{FileName: "x.csv", FileData: base64.StdEncoding.EncodeToString([]byte(strings.Repeat("a", 65)))}, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(t, http.MethodPost, "/api/upload", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decodeBody[errorBody](t, rec).Error)
		})
	}
}

func TestPreview(t *testing.T) {
	h := newHarness(t, nil)
	records := h.upload(t).Records

	got := h.preview(t, records, "")
	assert.Equal(t, 2, got.TotalInvoices)
	first := got.Preview[0]
	assert.Equal(t, "12345678", first.GroupKey)
	require.Len(t, first.Lines, 2)
	assert.Equal(t, "2024-03-10", first.IssuedOn.String())
	assert.True(t, first.TotalWithoutVAT().Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, "EUR", got.Preview[1].Currency)
	assert.True(t, got.Preview[1].Lines[0].VATRate.IsZero(), "not VAT-liable")

	strict := h.preview(t, records, "strict")
	assert.Equal(t, 1, strict.TotalInvoices)
	assert.Equal(t, []int{3}, strict.Dropped)

	rec := h.do(t, http.MethodPost, "/api/fakturoid/preview", previewRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = h.do(t, http.MethodPost, "/api/fakturoid/preview", previewRequest{Records: records, Policy: "loose"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	records[0].BillableAmount = decimal.NewFromInt(-1)
	rec = h.do(t, http.MethodPost, "/api/fakturoid/preview", previewRequest{Records: records})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotNil(t, decodeBody[errorBody](t, rec).Details)
}

func TestExportXML(t *testing.T) {
	h := newHarness(t, nil)
	drafts := h.preview(t, h.upload(t).Records, "").Preview

	rec := h.do(t, http.MethodPost, "/api/munipolis/export-xml", map[string]any{
		"invoices": drafts,
		"options":  map[string]int{"dueInDays": 30},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/xml; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=faktury-2024-03-10.xml`, rec.Header().Get("Content-Disposition"))

	body := rec.Body.String()
	assert.Contains(t, body, "<InvoiceNumber>FAK20240310001</InvoiceNumber>")
	assert.Contains(t, body, "<InvoiceNumber>FAK20240310002</InvoiceNumber>")
	assert.Contains(t, body, "<DueDate>2024-04-09</DueDate>")
	assert.Contains(t, body, "Obec &lt;Lhota&gt; &amp; syn")
	assert.NotContains(t, body, "<Lhota>")

	rec = h.do(t, http.MethodPost, "/api/munipolis/export-xml", map[string]any{"invoices": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateInvoices(t *testing.T) {
	h := newHarness(t, withServerCreds)
	drafts := h.preview(t, h.upload(t).Records, "").Preview

	rec := h.do(t, http.MethodPost, "/api/fakturoid/create-invoices", invoicesRequest{
		Invoices:    drafts,
		Credentials: fakturoid.Credentials{ClientID: "u", ClientSecret: "u", Slug: "user"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	report := decodeBody[submit.Report](t, rec)
	assert.Equal(t, 2, report.TotalInvoices)
	assert.Equal(t, 1, report.SuccessCount)
	assert.Equal(t, 1, report.ErrorCount)
	assert.True(t, report.Results[1].Skipped, "no IČO")
	assert.Equal(t, "server-acme", h.remote.creds.Slug, "server credentials win")
	assert.Equal(t, 1, h.remote.created)
}

func TestCreateInvoicesNeedsCredentials(t *testing.T) {
	h := newHarness(t, nil)
	drafts := h.preview(t, h.upload(t).Records, "").Preview

	rec := h.do(t, http.MethodPost, "/api/fakturoid/create-invoices", invoicesRequest{Invoices: drafts})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, decodeBody[errorBody](t, rec).NeedsCredentials)

	drafts[0].Lines[0].VATRateOverride = lo.ToPtr(decimal.NewFromInt(150))
	rec = h.do(t, http.MethodPost, "/api/fakturoid/create-invoices", invoicesRequest{Invoices: drafts})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "validation runs before credentials")
}

func TestCheckSubjects(t *testing.T) {
	h := newHarness(t, withServerCreds)
	drafts := h.preview(t, h.upload(t).Records, "").Preview

	rec := h.do(t, http.MethodPost, "/api/fakturoid/check-subjects", invoicesRequest{Invoices: drafts})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decodeBody[submit.SubjectReport](t, rec)
	require.Len(t, report.Found, 1)
	assert.Equal(t, int64(7), report.Found[0].SubjectID)
	require.Len(t, report.NotFound, 1)
	assert.Equal(t, 0, h.remote.created)

	h.remote.authErr = &fakturoid.APIError{Op: "search subjects", StatusCode: http.StatusUnauthorized}
	rec = h.do(t, http.MethodPost, "/api/fakturoid/check-subjects", invoicesRequest{Invoices: drafts})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, decodeBody[errorBody](t, rec).NeedsCredentials)
}

func TestCheckSubjectsRejectsMalformedBatch(t *testing.T) {
	h := newHarness(t, withServerCreds)

	for _, body := range []string{`{"invoices":[null]}`, `{"invoices":[]}`, `{}`} {
		t.Run(body, func(t *testing.T) {
			rec := h.do(t, http.MethodPost, "/api/fakturoid/check-subjects", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decodeBody[errorBody](t, rec).Error)
		})
	}
}

func TestConnectionCheck(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, http.MethodPost, "/api/fakturoid/test", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, decodeBody[submit.Connection](t, rec).NeedsCredentials)

	rec = h.do(t, http.MethodPost, "/api/fakturoid/test", testRequest{
		Credentials: fakturoid.Credentials{ClientID: "u", ClientSecret: "u", Slug: "user"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	conn := decodeBody[submit.Connection](t, rec)
	assert.True(t, conn.Success)
	assert.False(t, conn.UseServerCredentials)
	assert.Equal(t, "user", conn.Account.Subdomain)

	h.remote.authErr = fakturoid.ErrNeedsCredentials
	rec = h.do(t, http.MethodPost, "/api/fakturoid/test", testRequest{
		Credentials: fakturoid.Credentials{ClientID: "u", ClientSecret: "u", Slug: "user"},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCORS(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) { cfg.Server.AllowedOrigins = []string{"http://localhost:5173/"} })

	req := httptest.NewRequest(http.MethodOptions, "/api/upload", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Server.RateLimit = 0.001
		cfg.Server.RateBurst = 2
	})
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, h.do(t, http.MethodGet, "/health", nil).Code)
}
