package server

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/dpeterek-muni/faktury-export/internal/assembler"
	"github.com/dpeterek-muni/faktury-export/internal/converter"
	"github.com/dpeterek-muni/faktury-export/internal/fakturoid"
	"github.com/dpeterek-muni/faktury-export/internal/logger"
	"github.com/dpeterek-muni/faktury-export/internal/render"
	"github.com/dpeterek-muni/faktury-export/internal/submit"
	"github.com/dpeterek-muni/faktury-export/internal/types"
	"github.com/dpeterek-muni/faktury-export/internal/validation"
	"github.com/samber/lo"
)

// =============================================================================
// REQUEST AND RESPONSE BODIES
// =============================================================================

type uploadRequest struct {
	FileName string `json:"fileName"`
	FileData string `json:"fileData"`
}

type uploadResponse struct {
	Success bool `json:"success"`
	*converter.Result
	BillableCount int `json:"billableCount"`
}

type previewRequest struct {
	Records      []*types.LedgerRecord `json:"records"`
	Options      assembler.Options     `json:"options"`
	Policy       string                `json:"policy"`
	OnlySelected bool                  `json:"onlySelected"`
	BillableOnly bool                  `json:"billableOnly"`
}

type previewResponse struct {
	TotalInvoices int                           `json:"totalInvoices"`
	Preview       []*types.DraftInvoice         `json:"preview"`
	Dropped       []int                         `json:"dropped,omitempty"`
	Warnings      []*validation.ValidationError `json:"warnings,omitempty"`
}

type invoicesRequest struct {
	Invoices    []*types.DraftInvoice `json:"invoices"`
	Credentials fakturoid.Credentials `json:"credentials"`
}

type exportRequest struct {
	Invoices []*types.DraftInvoice `json:"invoices"`
	Options  struct {
		DueInDays int `json:"dueInDays"`
	} `json:"options"`
}

type testRequest struct {
	Credentials fakturoid.Credentials `json:"credentials"`
}

// =============================================================================
// HANDLERS
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUpload accepts a multipart "file" field or a JSON body with a base64
// encoded file.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.cfg.Server.MaxUploadBytes

	var (
		name string
		data []byte
		err  error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		name, data, err = readMultipartFile(w, r, maxBytes)
	} else {
		name, data, err = readBase64File(w, r, maxBytes)
	}
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge), errors.Is(err, multipart.ErrMessageTooLarge),
		err == nil && int64(len(data)) > maxBytes:
		writeError(w, r, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds the upload limit of %d bytes", maxBytes), nil)
		return
	case err != nil:
		writeError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}

	result, err := s.conv.LoadReader(bytes.NewReader(data), name)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}

	logger.FromContext(r.Context()).Info().
		Str("file", name).
		Str("sheet", result.Sheet).
		Int("rows", result.Stats.Rows).
		Int("billable", result.Stats.Billable).
		Msg("Ledger uploaded")
	writeJSON(w, http.StatusOK, uploadResponse{Success: true, Result: result, BillableCount: result.Stats.Billable})
}

func readMultipartFile(w http.ResponseWriter, r *http.Request, maxBytes int64) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+(1<<20))
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return "", nil, fmt.Errorf("failed to read upload (max %d MB): %w", maxBytes>>20, err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, errors.New("no file uploaded, use the 'file' field")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return "", nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return header.Filename, data, nil
}

func readBase64File(w http.ResponseWriter, r *http.Request, maxBytes int64) (string, []byte, error) {
	var req uploadRequest
	if err := decodeJSON(w, r, int64(base64.StdEncoding.EncodedLen(int(maxBytes)))+4096, &req); err != nil {
		return "", nil, err
	}
	if req.FileName == "" || req.FileData == "" {
		return "", nil, errors.New("fileName and fileData are required")
	}

	// accept data URLs as produced by FileReader.readAsDataURL
	payload := req.FileData
	if i := strings.Index(payload, ","); strings.HasPrefix(payload, "data:") && i >= 0 {
		payload = payload[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("fileData is not valid base64: %w", err)
	}
	return req.FileName, data, nil
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeJSON(w, r, s.cfg.Server.MaxUploadBytes, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}

	checked, ok := s.validate(w, r, func() (*validation.Result, error) { return validation.ValidateRecords(req.Records) })
	if !ok {
		return
	}

	policy := s.policy
	if req.Policy != "" {
		p, err := converter.ParseGroupPolicy(req.Policy)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error(), nil)
			return
		}
		policy = p
	}

	drafts, err := converter.BuildDrafts(s.assembler(), req.Records, converter.DraftOptions{
		Policy:       policy,
		OnlySelected: req.OnlySelected,
		BillableOnly: req.BillableOnly,
		Assembly:     req.Options,
	})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	writeJSON(w, http.StatusOK, previewResponse{
		TotalInvoices: len(drafts.Invoices),
		Preview:       drafts.Invoices,
		Dropped:       lo.Map(drafts.Dropped, func(rec *types.LedgerRecord, _ int) int { return rec.ID }),
		Warnings:      checked.Warnings(),
	})
}

func (s *Server) handleCheckSubjects(w http.ResponseWriter, r *http.Request) {
	var req invoicesRequest
	if err := decodeJSON(w, r, s.cfg.Server.MaxUploadBytes, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if _, ok := s.validate(w, r, func() (*validation.Result, error) { return validation.ValidateDrafts(req.Invoices) }); !ok {
		return
	}

	submitter, ok := s.submitter(w, r, req.Credentials)
	if !ok {
		return
	}
	report, err := submitter.CheckSubjects(r.Context(), req.Invoices)
	switch {
	case fakturoid.IsAuthError(err):
		writeNeedsCredentials(w, r, err)
		return
	case err != nil:
		writeError(w, r, http.StatusBadGateway, err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleCreateInvoices(w http.ResponseWriter, r *http.Request) {
	var req invoicesRequest
	if err := decodeJSON(w, r, s.cfg.Server.MaxUploadBytes, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if _, ok := s.validate(w, r, func() (*validation.Result, error) { return validation.ValidateDrafts(req.Invoices) }); !ok {
		return
	}

	submitter, ok := s.submitter(w, r, req.Credentials)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, submitter.Submit(r.Context(), req.Invoices))
}

func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	var req testRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, 64<<10, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error(), nil)
			return
		}
	}

	creds, fromServer, err := fakturoid.ResolveCredentials(fakturoid.ServerCredentials(s.cfg.Fakturoid), req.Credentials)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, submit.Connection{NeedsCredentials: true, Error: err.Error()})
		return
	}

	conn := submit.CheckConnection(r.Context(), s.remote(creds), fromServer)
	status := http.StatusOK
	switch {
	case conn.NeedsCredentials:
		status = http.StatusUnauthorized
	case !conn.Success:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, conn)
}

func (s *Server) handleExportXML(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := decodeJSON(w, r, s.cfg.Server.MaxUploadBytes, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if _, ok := s.validate(w, r, func() (*validation.Result, error) { return validation.ValidateDrafts(req.Invoices) }); !ok {
		return
	}

	doc, err := s.renderer.ExportDocument(req.Invoices, render.ExportOptions{
		DueInDays: req.Options.DueInDays,
		Namespace: s.cfg.Output.Namespace,
	})
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType+"; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.FileName}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Body)
}

// =============================================================================
// HELPERS
// =============================================================================

// validate runs check and answers 400 for an empty or invalid batch.
func (s *Server) validate(w http.ResponseWriter, r *http.Request, check func() (*validation.Result, error)) (*validation.Result, bool) {
	result, err := check()
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error(), nil)
		return nil, false
	}
	if err := result.Err(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error(), result.Errors)
		return nil, false
	}
	return result, true
}

// submitter resolves credentials and builds a request-scoped submitter.
func (s *Server) submitter(w http.ResponseWriter, r *http.Request, supplied fakturoid.Credentials) (*submit.Submitter, bool) {
	creds, _, err := fakturoid.ResolveCredentials(fakturoid.ServerCredentials(s.cfg.Fakturoid), supplied)
	if err != nil {
		writeNeedsCredentials(w, r, err)
		return nil, false
	}
	log := logger.FromContext(r.Context()).With().Str("component", "submit").Logger()
	return submit.New(s.remote(creds), s.renderer, s.cfg.Billing.SubmissionCountries, log), true
}
