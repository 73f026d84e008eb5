// =============================================================================
// Faktury Export - HTTP API
// =============================================================================
//
// This module exposes the pipeline over HTTP for the browser front end.
//
// ROUTES:
//   GET  /health                          liveness
//   POST /api/upload                      ledger file → records
//   POST /api/fakturoid/preview           records → draft invoices
//   POST /api/fakturoid/check-subjects    drafts → remote subject lookup
//   POST /api/fakturoid/create-invoices   drafts → remote invoices
//   POST /api/fakturoid/test              credentials → account
//   POST /api/munipolis/export-xml        drafts → XML export document
//
// STATE:
//   Requests are independent. Nothing survives between calls; credentials
//   supplied by a client are used for that request only.
//
// =============================================================================

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dpeterek-muni/faktury-export/internal/assembler"
	"github.com/dpeterek-muni/faktury-export/internal/config"
	"github.com/dpeterek-muni/faktury-export/internal/converter"
	"github.com/dpeterek-muni/faktury-export/internal/fakturoid"
	"github.com/dpeterek-muni/faktury-export/internal/render"
	"github.com/dpeterek-muni/faktury-export/internal/submit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// RemoteFactory builds a remote client for one credential set.
type RemoteFactory func(creds fakturoid.Credentials) submit.Remote

// Options are the injectable collaborators of a Server.
type Options struct {
	// Remote builds the Fakturoid client. Defaults to fakturoid.New.
	Remote RemoteFactory

	// Now is the clock for issue and export dates. Defaults to time.Now.
	Now func() time.Time
}

// Server is the HTTP API.
type Server struct {
	cfg      *config.Config
	conv     *converter.Converter
	renderer *render.Renderer
	policy   converter.GroupPolicy
	remote   RemoteFactory
	now      func() time.Time
	log      zerolog.Logger
	router   chi.Router
}

// New wires the API from the application configuration.
func New(cfg *config.Config, log zerolog.Logger, opts Options) (*Server, error) {
	conv, err := converter.New(cfg, log)
	if err != nil {
		return nil, err
	}
	policy, err := converter.ParseGroupPolicy(cfg.Billing.GroupingPolicy)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg,
		conv:   conv,
		policy: policy,
		remote: opts.Remote,
		now:    opts.Now,
		log:    log,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.remote == nil {
		clientOpts := fakturoid.OptionsFromConfig(cfg.Fakturoid, log)
		s.remote = func(creds fakturoid.Credentials) submit.Remote {
			return fakturoid.New(creds, clientOpts)
		}
	}
	s.renderer = &render.Renderer{Now: s.now}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.cors)
	r.Use(s.rateLimit())

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)

		r.Route("/fakturoid", func(r chi.Router) {
			r.Post("/preview", s.handlePreview)
			r.Post("/check-subjects", s.handleCheckSubjects)
			r.Post("/create-invoices", s.handleCreateInvoices)
			r.Post("/test", s.handleTestConnection)
		})

		r.Post("/munipolis/export-xml", s.handleExportXML)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found", nil)
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:        s.cfg.Server.Addr,
		Handler:     s,
		ReadTimeout: 30 * time.Second,
		// submissions run one remote call per invoice
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("Server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Info().Msg("Server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// assembler returns a fresh assembler on the server clock.
func (s *Server) assembler() *assembler.Assembler {
	a := assembler.FromConfig(s.cfg.Billing)
	a.Now = s.now
	return a
}
