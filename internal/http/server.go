// Package http serves the transaction filter page, its htmx fragments, a
// JSON view of the same results and a spreadsheet export.
package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"txfilter/internal/cache"
	"txfilter/internal/core"
	"txfilter/internal/dataset"
	applog "txfilter/internal/log"
	"txfilter/internal/middleware/ratelimit"
	"txfilter/internal/middleware/security"
	"txfilter/internal/middleware/trace"
	appweb "txfilter/web"
)

// DefaultLoadTimeout bounds one dataset load per request.
const DefaultLoadTimeout = 7 * time.Second

// Options configures a Server.
type Options struct {
	Addr        string
	Window      core.DateRange
	Currency    string
	LoadTimeout time.Duration
	RateLimit   ratelimit.Config
	// Ready reports backend readiness for /readyz. May be nil.
	Ready  func(ctx context.Context) error
	Logger *applog.Logger
}

type Server struct {
	http.Server
	templates *template.Template
	source    dataset.Source
	opts      Options
	logger    *applog.Logger

	detector *security.Detector
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware

	started      time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(src dataset.Source, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = applog.Discard()
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}

	logger := opts.Logger.WithComponent(applog.ComponentHTTP)
	s := &Server{
		templates: t,
		source:    src,
		opts:      opts,
		logger:    logger,
		detector:  security.NewDetector(opts.Logger),
		limiter:   ratelimit.NewLimiter(opts.RateLimit),
		started:   time.Now(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, opts.Logger)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(applog.Middleware(opts.Logger, trace.GetRequestID))
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.With(security.StaticAssetMiddleware(3600)).
		Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	r.Group(func(r chi.Router) {
		r.Use(s.detector.Middleware)
		r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited))

		r.Get("/", s.handleIndex)
		r.Get("/ui/results", s.handleResults)
		r.Get("/transactions.json", s.handleDataset)
		r.Get("/results.json", s.handleJSON)
		r.Get("/export.xlsx", s.handleExport)
	})

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      opts.LoadTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Cleaners returns the in-process state a cache.Manager should sweep.
func (s *Server) Cleaners() []cache.Cleaner {
	return []cache.Cleaner{s.limiter}
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Too many requests. Please try again later.").Write(w)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.logger.InfoContext(ctx, "HTTP server shutting down", applog.FieldOperation, applog.OpShutdown)
		err = s.Server.Shutdown(ctx)
	})
	return err
}
