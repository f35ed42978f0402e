// Package server serves the dashboard over HTTP: an HTML page driven by a
// sidebar form, a JSON API over the same widget state, PNG charts and
// CSV/XLSX exports.
package server

import (
	"context"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/spektr-org/fuelscope/dashboard"
	"github.com/spektr-org/fuelscope/engine"
	"github.com/spektr-org/fuelscope/filterstate"
	"github.com/spektr-org/fuelscope/schema"
)

// Server holds the dataset and the per-browser widget state.
type Server struct {
	base        engine.RecordView
	sessions    *sessions
	recordLimit int
	logger      zerolog.Logger
	page        *template.Template
}

// Option configures a Server.
type Option func(*options)

type options struct {
	defaults    filterstate.Defaults
	recordLimit int
	sessionTTL  time.Duration
	logger      zerolog.Logger
}

// WithDefaults sets the landing selections of new sessions.
func WithDefaults(d filterstate.Defaults) Option {
	return func(o *options) { o.defaults = d }
}

// WithRecordLimit caps the rows of the records table on the page. Exports
// always carry every row.
func WithRecordLimit(n int) Option {
	return func(o *options) { o.recordLimit = n }
}

// WithSessionTTL sets how long an idle session keeps its widget state.
// Zero keeps sessions for the life of the process.
func WithSessionTTL(d time.Duration) Option {
	return func(o *options) { o.sessionTTL = d }
}

// WithLogger sets the request and build logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New builds a server over base.
func New(base engine.RecordView, sch schema.Config, opts ...Option) *Server {
	o := &options{
		defaults:    filterstate.FuelDefaults(),
		recordLimit: 500,
		sessionTTL:  DefaultSessionTTL,
		logger:      log.Logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Server{
		base:        base,
		sessions:    newSessions(base, sch, o.defaults, o.sessionTTL),
		recordLimit: o.recordLimit,
		logger:      o.logger,
		page:        template.Must(template.New("page").Funcs(pageFuncs).Parse(pageTemplate)),
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handlePage)
	r.Post("/", s.handleForm)
	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/filters", s.handleFilters)
		r.Post("/filters/{key}", s.handleSelect)
		r.Post("/filters/{key}/all", s.handleSelectAll)
		r.Post("/controls", s.handleControls)
		r.Get("/dashboard", s.handleDashboard)
	})

	r.Get("/charts/{panel}.png", s.handleChart)
	r.Get("/export/dashboard.xlsx", s.handleWorkbook)
	r.Get("/export/{panel}.csv", s.handleCSV)
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Int("records", s.base.Len()).Msg("🚀 dashboard listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info().Msg("🛑 shutting down")
		return errors.Wrap(srv.Shutdown(shutdownCtx), "shutdown")
	}
}

// requestLogger logs one line per request with status and latency.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("took", time.Since(start)).
				Msg("🌐 request")
		}()
		next.ServeHTTP(ww, r)
	})
}

// build computes the dashboard for a session. Callers hold sess.mu.
func (s *Server) build(sess *session, recordLimit int) *dashboard.Dashboard {
	return dashboard.Build(s.base, sess.cascade, sess.controls,
		dashboard.WithRecordLimit(recordLimit),
		dashboard.WithLogger(s.logger),
	)
}
